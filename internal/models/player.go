package models

// Player is one of the four fixed seats at a table session. Players are
// created at session-create time and removed only when the whole session is
// deleted.
type Player struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Money int    `json:"money"` // running balance, may go negative
	Seat  int    `json:"seat"`  // 0..3, fixed for the session's lifetime
}
