package session

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fourNames = []string{"Akira", "Botan", "Chiyo", "Daigo"}

func TestCreateAssignsSeatsInOrder(t *testing.T) {
	store := NewStore()
	sess := store.Create(fourNames)

	require.Len(t, sess.Players, 4)
	for i, p := range sess.Players {
		assert.Equal(t, i, p.Seat)
		assert.Equal(t, i+1, p.ID)
		assert.Equal(t, fourNames[i], p.Name)
		assert.Zero(t, p.Money, "initial balance must be 0")
	}
	assert.Equal(t, 0, sess.DealerSeat)
	assert.Equal(t, 0, sess.WindStartSeat)
}

func TestCodeShape(t *testing.T) {
	store := NewStore()
	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		sess := store.Create(fourNames)
		require.Len(t, sess.Code, CodeLength)
		for _, r := range sess.Code {
			assert.True(t, strings.ContainsRune(codeAlphabet, r), "code %q contains %q outside the alphabet", sess.Code, r)
		}
		assert.False(t, seen[sess.Code], "active codes must be unique")
		seen[sess.Code] = true
	}
	assert.Equal(t, 200, store.Len())
}

func TestGetAndDelete(t *testing.T) {
	store := NewStore()
	sess := store.Create(fourNames)

	got, ok := store.Get(sess.Code)
	require.True(t, ok)
	assert.Same(t, sess, got)

	assert.True(t, store.Delete(sess.Code))
	_, ok = store.Get(sess.Code)
	assert.False(t, ok)

	// Deleting an unknown or already-deleted code reports not-found.
	assert.False(t, store.Delete(sess.Code))
	assert.False(t, store.Delete("ZZZZZZ"))
}

func TestDeleteMarksSessionClosed(t *testing.T) {
	store := NewStore()
	sess := store.Create(fourNames)

	store.Delete(sess.Code)
	assert.True(t, sess.closed, "a deleted session must be observable as closed by gate waiters")
}

func TestGateBoundedAcquire(t *testing.T) {
	store := NewStore()
	sess := store.Create(fourNames)

	require.NoError(t, sess.Acquire(time.Second))

	// A second acquire under contention times out with ErrLockTimeout.
	err := sess.Acquire(50 * time.Millisecond)
	assert.ErrorIs(t, err, ErrLockTimeout)

	sess.Release()
	require.NoError(t, sess.Acquire(time.Second))
	sess.Release()
}

func TestGateIsPerSession(t *testing.T) {
	store := NewStore()
	a := store.Create(fourNames)
	b := store.Create(fourNames)

	require.NoError(t, a.Acquire(time.Second))
	defer a.Release()

	// Holding one session's gate must not serialize an unrelated session.
	require.NoError(t, b.Acquire(50*time.Millisecond))
	b.Release()
}
