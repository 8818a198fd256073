package session

import "github.com/google/uuid"

// newRecordID tags each settlement record so the historian can de-duplicate
// replayed queue entries.
func newRecordID() uuid.UUID {
	return uuid.New()
}
