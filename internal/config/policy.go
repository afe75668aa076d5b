package config

import (
	"log"
	"os"

	"github.com/iliyamo/festival-ticketing/internal/clock"
	"github.com/iliyamo/festival-ticketing/internal/ticketing"
)

// LoadPolicy reads the admission limits. Unset variables keep the
// defaults of ticketing.DefaultPolicy.
//
//	PERSON_PER_USER           : party size limit per ticket (3)
//	MAX_TICKETS               : lifetime ticket cap, 0 disables (0)
//	MAX_TICKETS_PER_DAY       : tickets per performance day, 0 disables (0)
//	LIFETIME_CAP_INCLUSIVE    : reject at the cap instead of above it (false)
//	FAMILY_TICKET_LIMIT       : family tickets per user (2)
//	FAMILY_TICKET_SELL_STARTS : RFC3339 instant opening the family pool,
//	                            unset keeps the pool closed
//	MAX_VOTES_PER_USER        : votes per user (2)
func LoadPolicy() ticketing.Policy {
	p := ticketing.DefaultPolicy()
	p.PersonPerUser = envInt("PERSON_PER_USER", p.PersonPerUser)
	p.MaxTickets = envInt("MAX_TICKETS", p.MaxTickets)
	p.MaxTicketsPerDay = envInt("MAX_TICKETS_PER_DAY", p.MaxTicketsPerDay)
	p.InclusiveLifetimeCap = envBool("LIFETIME_CAP_INCLUSIVE", p.InclusiveLifetimeCap)
	p.FamilyTicketLimit = envInt("FAMILY_TICKET_LIMIT", p.FamilyTicketLimit)
	p.MaxVotesPerUser = envInt("MAX_VOTES_PER_USER", p.MaxVotesPerUser)
	if s := os.Getenv("FAMILY_TICKET_SELL_STARTS"); s != "" {
		t, err := clock.Parse(s)
		if err != nil {
			log.Fatalf("invalid FAMILY_TICKET_SELL_STARTS %q: %v", s, err)
		}
		p.FamilyTicketSellStarts = t
	} else {
		log.Printf("FAMILY_TICKET_SELL_STARTS not set; family tickets stay closed")
	}
	if err := p.Validate(); err != nil {
		log.Fatalf("invalid ticket policy: %v", err)
	}
	return p
}
