package session

import (
	"time"

	"github.com/soragane/tilescore/internal/models"
)

// Session holds the authoritative state of one live table in memory.
//
// All mutation happens inside the session's settlement gate: a capacity-1
// channel acquired with a bounded wait. The gate serializes settlements and
// teardown for this code only; unrelated sessions never contend.
type Session struct {
	Code      string
	Players   []*models.Player
	RoundWind models.Wind

	// DealerSeat is the seat position currently holding the dealer role.
	DealerSeat int
	// Continues counts consecutive dealer repeats within the current wind.
	Continues int
	// WindStartSeat is the seat that held the dealer role when the current
	// wind began. The round wind advances exactly when dealer rotation brings
	// the dealer back to this seat.
	WindStartSeat int

	Rounds []models.RoundRecord

	// closed is set under the gate when the session is torn down, so a
	// settlement that was already waiting on the gate observes the deletion.
	closed bool

	gate chan struct{}
}

func newSession(code string, players []*models.Player) *Session {
	return &Session{
		Code:      code,
		Players:   players,
		RoundWind: models.WindEast,
		gate:      make(chan struct{}, 1),
	}
}

// Acquire takes the session's settlement gate, waiting at most timeout.
// Returns ErrLockTimeout if the gate stayed contended for the whole interval.
func (s *Session) Acquire(timeout time.Duration) error {
	select {
	case s.gate <- struct{}{}:
		return nil
	case <-time.After(timeout):
		return ErrLockTimeout
	}
}

// Release frees the gate taken by Acquire.
func (s *Session) Release() {
	<-s.gate
}

// PlayerByID returns the player with the given id, or nil.
func (s *Session) PlayerByID(id int) *models.Player {
	for _, p := range s.Players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// Snapshot copies the session into its externally-visible form. Callers must
// hold the gate (or otherwise know the session is quiescent).
func (s *Session) Snapshot() models.Snapshot {
	players := make([]models.Player, len(s.Players))
	for i, p := range s.Players {
		players[i] = *p
	}
	rounds := make([]models.RoundRecord, len(s.Rounds))
	copy(rounds, s.Rounds)
	return models.Snapshot{
		Code:       s.Code,
		RoundWind:  s.RoundWind,
		DealerSeat: s.DealerSeat,
		Continues:  s.Continues,
		Players:    players,
		Rounds:     rounds,
	}
}
