package ticketing

import (
	"fmt"
	"time"

	"github.com/iliyamo/festival-ticketing/internal/clock"
	"github.com/iliyamo/festival-ticketing/internal/model"
)

// CheckQualified decides whether a user holding tickets for the held
// events may take one more ticket for candidate. Held contains one entry
// per active or used ticket, so a second ticket for the same event is
// rejected as an overlap with itself.
func CheckQualified(p Policy, candidate model.Event, held []*model.Event) error {
	sameDay := 0
	for _, te := range held {
		if te.Overlaps(candidate) {
			return fmt.Errorf("%w: overlaps event %s", ErrNotQualified, te.ID)
		}
		if p.MaxTicketsPerDay != 0 && sameJSTDate(te.StartsAt, candidate.StartsAt) {
			sameDay++
		}
	}
	if p.MaxTickets != 0 {
		over := len(held) > p.MaxTickets
		if p.InclusiveLifetimeCap {
			over = len(held) >= p.MaxTickets
		}
		if over {
			return notQualified("ticket limit reached")
		}
	}
	if p.MaxTicketsPerDay != 0 && sameDay+1 > p.MaxTicketsPerDay {
		return notQualified("daily ticket limit reached")
	}
	return nil
}

func sameJSTDate(a, b time.Time) bool {
	ay, am, ad := a.In(clock.JST).Date()
	by, bm, bd := b.In(clock.JST).Date()
	return ay == by && am == bm && ad == bd
}
