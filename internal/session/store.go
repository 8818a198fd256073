package session

import (
	"log"
	"math/rand"
	"sync"

	"github.com/soragane/tilescore/internal/models"
)

// codeAlphabet deliberately omits 0/O and 1/I so codes stay unambiguous when
// read aloud or typed from a phone screen.
const codeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

// CodeLength is the length of a session code.
const CodeLength = 6

// maxCodeAttempts bounds collision retries during code generation. With a
// 31^6 code space this is never reached in practice, but generation must not
// spin forever if the store somehow fills up.
const maxCodeAttempts = 100

// Store manages active sessions in memory, keyed by their share code.
// It provides thread-safe add, retrieve, and delete; per-session mutation is
// serialized by each Session's own gate, not by the store lock.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

// NewStore initializes and returns an empty Store.
func NewStore() *Store {
	return &Store{
		sessions: make(map[string]*Session),
	}
}

// Create registers a new session for the given players and returns it.
// Players are assigned seats 0..3 in the order supplied; the caller is
// responsible for validating the name list. A deleted code becomes
// immediately reusable.
func (s *Store) Create(names []string) *Session {
	players := make([]*models.Player, len(names))
	for i, name := range names {
		players[i] = &models.Player{
			ID:   i + 1,
			Name: name,
			Seat: i,
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	code := s.generateCodeUnsafe()
	sess := newSession(code, players)
	s.sessions[code] = sess
	return sess
}

// Get retrieves a session by code.
func (s *Store) Get(code string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[code]
	return sess, ok
}

// Delete removes a session by code and reports whether it existed.
// The caller should hold the session's gate so deletion serializes with any
// in-flight settlement.
func (s *Store) Delete(code string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[code]
	if !ok {
		return false
	}
	sess.closed = true
	delete(s.sessions, code)
	return true
}

// Len returns the number of active sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// generateCodeUnsafe draws random codes until one does not collide with an
// active session. Assumes the store lock is held.
func (s *Store) generateCodeUnsafe() string {
	buf := make([]byte, CodeLength)
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		for i := range buf {
			buf[i] = codeAlphabet[rand.Intn(len(codeAlphabet))]
		}
		code := string(buf)
		if _, taken := s.sessions[code]; !taken {
			return code
		}
	}
	// The active-code space would need to be absurdly saturated to get here.
	log.Printf("Store WARNING: %d code generation collisions in a row", maxCodeAttempts)
	for i := range buf {
		buf[i] = codeAlphabet[rand.Intn(len(codeAlphabet))]
	}
	return string(buf)
}
