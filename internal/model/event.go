package model

import "time"

// Event is a scheduled performance of a group. Tickets are issued per
// event, bounded by TicketStock (0 disables issuance). Timestamps are
// persisted as ISO-8601 text with an explicit +09:00 offset and parsed
// back into time.Time by the repository.
//
// Fields:
//  StartsAt/EndsAt    : the performance window, StartsAt < EndsAt.
//  SellStarts/SellEnds: the distribution window, SellStarts < SellEnds.
//  Target             : role name gating who may hold a ticket.
//  Lottery            : informational flag, not enforced.
type Event struct {
	ID          string    `json:"id"`           // events.id
	GroupID     string    `json:"group_id"`     // events.group_id
	Eventname   string    `json:"eventname"`    // events.eventname
	Lottery     bool      `json:"lottery"`      // events.lottery
	Target      string    `json:"target"`       // events.target
	TicketStock int       `json:"ticket_stock"` // events.ticket_stock
	StartsAt    time.Time `json:"starts_at"`    // events.starts_at
	EndsAt      time.Time `json:"ends_at"`      // events.ends_at
	SellStarts  time.Time `json:"sell_starts"`  // events.sell_starts
	SellEnds    time.Time `json:"sell_ends"`    // events.sell_ends
}

// Overlaps reports whether the performance windows of e and o intersect.
// Both bounds are exclusive, so events that only touch do not overlap.
func (e Event) Overlaps(o Event) bool {
	return e.StartsAt.Before(o.EndsAt) && o.StartsAt.Before(e.EndsAt)
}

// SellingAt reports whether t lies strictly inside the sell window.
func (e Event) SellingAt(t time.Time) bool {
	return e.SellStarts.Before(t) && t.Before(e.SellEnds)
}

// Ended reports whether the performance finished before t.
func (e Event) Ended(t time.Time) bool {
	return e.EndsAt.Before(t)
}
