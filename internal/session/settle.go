package session

import (
	"github.com/soragane/tilescore/internal/models"
)

// SeatWind returns the wind label for a seat relative to the current dealer:
// the dealer's own seat is East, the next seat clockwise is South, and so on.
// It is a pure function of (seat, dealer) and must be recomputed, never
// cached, whenever either changes.
func SeatWind(seat, dealer int) models.Wind {
	return models.WindCycle[(seat-dealer+4)%4]
}

// ApplySettlement applies a declared win to the session: money transfers,
// dealer rotation, continuation counter, and round-wind advancement, as one
// atomic update. On a validation error the session is left untouched.
//
// Money policy: for a tsumo each of the three non-winning seats pays the
// declared amount (per-loser convention, the winner gains 3x). For a ron only
// the named discarder pays. Either way the transfer is zero-sum.
//
// Callers must hold the session's gate.
func ApplySettlement(s *Session, win models.WinDeclaration) error {
	winner := s.PlayerByID(win.WinnerID)
	if winner == nil {
		return validationErrorf("unknown winner id %d", win.WinnerID)
	}
	if win.Amount < 0 {
		return validationErrorf("amount must be non-negative, got %d", win.Amount)
	}

	var discarder *models.Player
	switch win.WinType {
	case models.WinTypeTsumo:
		// no discarder
	case models.WinTypeRon:
		if win.DiscarderID == win.WinnerID {
			return validationErrorf("discarder must differ from winner (id %d)", win.WinnerID)
		}
		discarder = s.PlayerByID(win.DiscarderID)
		if discarder == nil {
			return validationErrorf("unknown discarder id %d", win.DiscarderID)
		}
	default:
		return validationErrorf("unknown win type %q", win.WinType)
	}

	// Validation is done; everything below must apply together.
	if discarder != nil {
		discarder.Money -= win.Amount
		winner.Money += win.Amount
	} else {
		for _, p := range s.Players {
			if p.ID != winner.ID {
				p.Money -= win.Amount
				winner.Money += win.Amount
			}
		}
	}

	dealerWin := winner.Seat == s.DealerSeat
	if dealerWin {
		s.Continues++
	} else {
		s.Continues = 0
		s.DealerSeat = (s.DealerSeat + 1) % 4
		// The wind advances when the dealer role completes a full circuit
		// back to the seat that opened the current wind.
		if s.DealerSeat == s.WindStartSeat {
			s.RoundWind = s.RoundWind.Next()
		}
	}

	rec := models.RoundRecord{
		WinnerID:  winner.ID,
		Amount:    win.Amount,
		WinType:   win.WinType,
		DealerWin: dealerWin,
	}
	if discarder != nil {
		id := discarder.ID
		rec.DiscarderID = &id
	}
	s.Rounds = append(s.Rounds, rec)

	return nil
}
