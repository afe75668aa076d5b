package ticketing

import (
	"errors"
	"time"
)

// Policy holds the admission limits. It is passed by value into the
// ledgers and the eligibility check; zero caps disable the cap.
type Policy struct {
	PersonPerUser    int // party size limit per standard ticket
	MaxTickets       int // lifetime events per user, 0 = unlimited
	MaxTicketsPerDay int // events per performance day, 0 = unlimited

	// InclusiveLifetimeCap rejects a user already holding MaxTickets
	// events. The default rejects only above the cap, so a user can end
	// up holding MaxTickets+1 events.
	InclusiveLifetimeCap bool

	FamilyTicketLimit      int       // family tickets per user
	FamilyTicketSellStarts time.Time // family pool opens strictly after this instant; zero keeps it closed
	MaxVotesPerUser        int
}

// DefaultPolicy returns the festival's standard limits.
func DefaultPolicy() Policy {
	return Policy{
		PersonPerUser:     3,
		FamilyTicketLimit: 2,
		MaxVotesPerUser:   2,
	}
}

// Validate rejects negative or empty limits.
func (p Policy) Validate() error {
	switch {
	case p.PersonPerUser < 1:
		return errors.New("person per user must be at least 1")
	case p.MaxTickets < 0, p.MaxTicketsPerDay < 0:
		return errors.New("ticket caps must not be negative")
	case p.FamilyTicketLimit < 0:
		return errors.New("family ticket limit must not be negative")
	case p.MaxVotesPerUser < 0:
		return errors.New("vote limit must not be negative")
	}
	return nil
}
