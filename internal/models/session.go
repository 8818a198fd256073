package models

import (
	"github.com/google/uuid"
)

// Win types for a declared win.
const (
	// WinTypeTsumo is a self-drawn win: every other seat pays the winner the
	// declared amount (per-loser convention, winner gains 3x).
	WinTypeTsumo = "tsumo"
	// WinTypeRon is a discard win: only the named discarder pays.
	WinTypeRon = "ron"
)

// WinDeclaration is the transient input for a settlement. It is validated
// against the session it targets and never persisted as-is.
type WinDeclaration struct {
	WinnerID    int    `json:"winner_id"`
	WinType     string `json:"win_type"`
	DiscarderID int    `json:"discarder_id,omitempty"` // ron only, must differ from winner
	Amount      int    `json:"amount"`
}

// RoundRecord is one settled round in a session's history.
type RoundRecord struct {
	WinnerID    int    `json:"winner_id"`
	DiscarderID *int   `json:"discarder_id,omitempty"` // nil for tsumo
	Amount      int    `json:"amount"`
	WinType     string `json:"win_type"`
	DealerWin   bool   `json:"dealer_win"`
}

// Snapshot is the full externally-visible state of a session. It is what the
// HTTP API returns and what the hub pushes to every subscribed viewer.
type Snapshot struct {
	Code       string        `json:"code"`
	RoundWind  Wind          `json:"round_wind"`
	DealerSeat int           `json:"dealer_seat"`
	Continues  int           `json:"continues"`
	Players    []Player      `json:"players"`
	Rounds     []RoundRecord `json:"rounds"`
}

// SettlementRecord is the unit queued to Redis after every accepted win, for
// the historian to persist. Mirrors RoundRecord plus enough context to rebuild
// the session row.
type SettlementRecord struct {
	ID          uuid.UUID `json:"id"`
	SessionCode string    `json:"session_code"`
	WinnerID    int       `json:"winner_id"`
	DiscarderID *int      `json:"discarder_id,omitempty"`
	Amount      int       `json:"amount"`
	WinType     string    `json:"win_type"`
	DealerWin   bool      `json:"dealer_win"`
	RoundWind   Wind      `json:"round_wind"`
	DealerSeat  int       `json:"dealer_seat"`
	Continues   int       `json:"continues"`
	Timestamp   int64     `json:"timestamp"` // epoch millis
}
