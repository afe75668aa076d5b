package ticketing

import (
	"context"

	"github.com/iliyamo/festival-ticketing/internal/model"
)

// Notifier receives ticket lifecycle events after they are committed.
// Implementations must not block for long; failures are theirs to log.
type Notifier interface {
	TicketIssued(ctx context.Context, t model.Ticket)
	TicketCancelled(ctx context.Context, t model.Ticket)
}

// Invalidator drops cached reads of an entity after a committed write.
type Invalidator interface {
	Invalidate(ctx context.Context, kind, id string)
}

// Cache kinds invalidated by the ledgers and the schedule service.
const (
	KindEvent   = "event"
	KindTickets = "tickets"
	KindGroup   = "group"
	KindVotes   = "votes"
	KindTag     = "tag"
	KindNews    = "news"
	KindHebe    = "hebe"
)

type nopNotifier struct{}

func (nopNotifier) TicketIssued(context.Context, model.Ticket)    {}
func (nopNotifier) TicketCancelled(context.Context, model.Ticket) {}

type nopInvalidator struct{}

func (nopInvalidator) Invalidate(context.Context, string, string) {}
