// Package ticketing is the admission-control core. It decides, under
// concurrency, whether a ticket may be issued, and records issuance,
// cancellation and use of tickets as well as visitor votes.
package ticketing

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/iliyamo/festival-ticketing/internal/authz"
	"github.com/iliyamo/festival-ticketing/internal/clock"
	"github.com/iliyamo/festival-ticketing/internal/database"
	"github.com/iliyamo/festival-ticketing/internal/identity"
	"github.com/iliyamo/festival-ticketing/internal/model"
	"github.com/iliyamo/festival-ticketing/internal/repository"
)

// Options carries the optional collaborators of a ledger. Zero values
// fall back to the real clock, no notifications, no cache and the
// default logger.
type Options struct {
	Clock    clock.Clock
	Notifier Notifier
	Cache    Invalidator
	Logger   *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.Clock == nil {
		o.Clock = clock.Real()
	}
	if o.Notifier == nil {
		o.Notifier = nopNotifier{}
	}
	if o.Cache == nil {
		o.Cache = nopInvalidator{}
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Ledger issues, cancels and punches tickets.
//
// Every issuance runs in a single transaction that first locks the
// caller's holder row and then the event row, in that order, and only
// then counts, validates and inserts. Two requests for the same event or
// by the same user are therefore evaluated one after the other against
// committed state.
type Ledger struct {
	db      *sql.DB
	dialect database.Dialect
	authz   *authz.Authorizer
	roles   *identity.Resolver
	policy  Policy
	opts    Options

	events  *repository.EventRepo
	tickets *repository.TicketRepo
	holders *repository.HolderRepo
}

// NewLedger constructs a Ledger. The database, authorizer and a valid
// policy are required.
func NewLedger(db *sql.DB, d database.Dialect, az *authz.Authorizer, p Policy, opts Options) *Ledger {
	if db == nil || az == nil {
		panic("nil dependency passed to NewLedger")
	}
	if err := p.Validate(); err != nil {
		panic("invalid ticket policy: " + err.Error())
	}
	return &Ledger{
		db:      db,
		dialect: d,
		authz:   az,
		roles:   az.Roles(),
		policy:  p,
		opts:    opts.withDefaults(),
		events:  repository.NewEventRepo(db),
		tickets: repository.NewTicketRepo(db),
		holders: repository.NewHolderRepo(db, d),
	}
}

// Policy returns the limits the ledger enforces.
func (l *Ledger) Policy() Policy { return l.policy }

// txOptions picks READ COMMITTED on MySQL so that reads after the row
// locks observe rows committed by the previous lock holder. SQLite runs
// one writer at a time and needs no option.
func txOptions(d database.Dialect) *sql.TxOptions {
	if d == database.MySQL {
		return &sql.TxOptions{Isolation: sql.LevelReadCommitted}
	}
	return nil
}

// decideFunc inspects the locked event and returns the ticket to insert.
type decideFunc func(ctx context.Context, tx *sql.Tx, ev *model.Event) (*model.Ticket, error)

// issue runs decide under the holder and event locks and inserts the
// ticket it returns.
func (l *Ledger) issue(ctx context.Context, holder, eventID string, decide decideFunc) (*model.Ticket, error) {
	tx, err := l.db.BeginTx(ctx, txOptions(l.dialect))
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := l.holders.LockTx(ctx, tx, holder); err != nil {
		return nil, fmt.Errorf("lock holder: %w", err)
	}
	if err := l.events.LockTx(ctx, tx, eventID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: event %s", ErrNotFound, eventID)
		}
		return nil, fmt.Errorf("lock event: %w", err)
	}
	ev, err := l.events.GetTx(ctx, tx, eventID)
	if err != nil {
		return nil, err
	}
	t, err := decide(ctx, tx, ev)
	if err != nil {
		return nil, err
	}
	t.EventID = ev.ID
	t.GroupID = ev.GroupID
	t.CreatedAt = clock.Format(l.opts.Clock.Now())
	if err := l.tickets.CreateTx(ctx, tx, t); err != nil {
		return nil, fmt.Errorf("insert ticket: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true

	l.opts.Logger.InfoContext(ctx, "ticket issued",
		slog.String("ticket_id", t.ID), slog.String("event_id", t.EventID),
		slog.String("status", t.Status), slog.Int("person", t.Person))
	l.afterWrite(ctx, t.EventID)
	l.opts.Notifier.TicketIssued(ctx, *t)
	return t, nil
}

func (l *Ledger) afterWrite(ctx context.Context, eventID string) {
	l.opts.Cache.Invalidate(ctx, KindTickets, eventID)
}

// checkStock rejects the request when person more seats do not fit.
func (l *Ledger) checkStock(ctx context.Context, tx *sql.Tx, ev *model.Event, person int) error {
	taken, err := l.tickets.SumTakenTx(ctx, tx, ev.ID)
	if err != nil {
		return err
	}
	if taken+max(person, 1) > ev.TicketStock {
		return fmt.Errorf("%w: %d of %d taken", ErrSoldOut, taken, ev.TicketStock)
	}
	return nil
}

func (l *Ledger) checkPerson(person int) error {
	if person < 1 || person > l.policy.PersonPerUser {
		return Invalid("person", fmt.Sprintf("must be between 1 and %d", l.policy.PersonPerUser))
	}
	return nil
}

func (l *Ledger) checkTarget(c identity.Claims, ev *model.Event) error {
	if !l.roles.Has(c, identity.Role(ev.Target)) {
		return fmt.Errorf("%w: event is for %s", ErrForbidden, ev.Target)
	}
	return nil
}

// CreateTicket issues a standard ticket for person visitors. Checks run
// in a fixed order: event exists, target role, sell window, stock,
// eligibility and finally the party size.
func (l *Ledger) CreateTicket(ctx context.Context, c identity.Claims, eventID string, person int) (*model.Ticket, error) {
	owner := c.OwnerID()
	return l.issue(ctx, owner, eventID, func(ctx context.Context, tx *sql.Tx, ev *model.Event) (*model.Ticket, error) {
		if err := l.checkTarget(c, ev); err != nil {
			return nil, err
		}
		if !ev.SellingAt(l.opts.Clock.Now()) {
			return nil, fmt.Errorf("%w: event %s", ErrOutOfWindow, ev.ID)
		}
		if err := l.checkStock(ctx, tx, ev, person); err != nil {
			return nil, err
		}
		held, err := l.events.TakenByOwnerTx(ctx, tx, owner)
		if err != nil {
			return nil, err
		}
		if err := CheckQualified(l.policy, *ev, held); err != nil {
			return nil, err
		}
		if err := l.checkPerson(person); err != nil {
			return nil, err
		}
		return &model.Ticket{OwnerID: owner, Person: person, Status: model.TicketActive}, nil
	})
}

// AdminCreateTicket issues a ticket regardless of the sell window and
// the holder's other tickets. The caller needs the admin role and must
// still satisfy the event's target.
func (l *Ledger) AdminCreateTicket(ctx context.Context, c identity.Claims, eventID string, person int) (*model.Ticket, error) {
	if !l.roles.Has(c, identity.RoleAdmin) {
		return nil, ErrForbidden
	}
	owner := c.OwnerID()
	return l.issue(ctx, owner, eventID, func(ctx context.Context, tx *sql.Tx, ev *model.Event) (*model.Ticket, error) {
		if err := l.checkTarget(c, ev); err != nil {
			return nil, err
		}
		if err := l.checkStock(ctx, tx, ev, person); err != nil {
			return nil, err
		}
		if err := l.checkPerson(person); err != nil {
			return nil, err
		}
		return &model.Ticket{OwnerID: owner, Person: person, Status: model.TicketActive}, nil
	})
}

// CreateFamilyTicket issues a one-person ticket from the family pool to a
// parent of the class that performs the event.
func (l *Ledger) CreateFamilyTicket(ctx context.Context, c identity.Claims, eventID string) (*model.Ticket, error) {
	owner := c.OwnerID()
	return l.issue(ctx, owner, eventID, func(ctx context.Context, tx *sql.Tx, ev *model.Event) (*model.Ticket, error) {
		if !l.roles.IsParentOf(c, ev.GroupID) {
			return nil, fmt.Errorf("%w: not a parent of %s", ErrForbidden, ev.GroupID)
		}
		if l.policy.FamilyTicketSellStarts.IsZero() {
			return nil, fmt.Errorf("%w: family ticket sale is not scheduled", ErrOutOfWindow)
		}
		if !l.opts.Clock.Now().After(l.policy.FamilyTicketSellStarts) {
			return nil, fmt.Errorf("%w: family tickets not on sale yet", ErrOutOfWindow)
		}
		n, err := l.tickets.CountFamilyTx(ctx, tx, owner)
		if err != nil {
			return nil, err
		}
		if n >= l.policy.FamilyTicketLimit {
			return nil, notQualified("family ticket limit reached")
		}
		if err := l.checkStock(ctx, tx, ev, 1); err != nil {
			return nil, err
		}
		return &model.Ticket{OwnerID: owner, Person: 1, Status: model.TicketActive, IsFamilyTicket: true}, nil
	})
}

// CreatePaperTicket records one paper ticket handed out at the door of a
// paper-target event. Paper tickets do not count against the stock.
func (l *Ledger) CreatePaperTicket(ctx context.Context, c identity.Claims, eventID string) (*model.Ticket, error) {
	if !l.roles.Has(c, identity.RoleChief) {
		return nil, ErrForbidden
	}
	owner := c.OwnerID()
	return l.issue(ctx, owner, eventID, func(ctx context.Context, tx *sql.Tx, ev *model.Event) (*model.Ticket, error) {
		if ev.Target != string(identity.RolePaper) {
			return nil, Invalid("target", "event does not distribute paper tickets")
		}
		taken, err := l.tickets.SumTakenTx(ctx, tx, ev.ID)
		if err != nil {
			return nil, err
		}
		if taken >= ev.TicketStock {
			return nil, fmt.Errorf("%w: %d of %d taken", ErrSoldOut, taken, ev.TicketStock)
		}
		return &model.Ticket{OwnerID: owner, Person: 1, Status: model.TicketPaper}, nil
	})
}

// RetractPaperTicket cancels one outstanding paper ticket of the event.
func (l *Ledger) RetractPaperTicket(ctx context.Context, c identity.Claims, eventID string) (*model.Ticket, error) {
	if !l.roles.Has(c, identity.RoleChief) {
		return nil, ErrForbidden
	}
	tx, err := l.db.BeginTx(ctx, txOptions(l.dialect))
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := l.events.LockTx(ctx, tx, eventID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: event %s", ErrNotFound, eventID)
		}
		return nil, err
	}
	t, err := l.tickets.CancelOnePaperTx(ctx, tx, eventID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: no paper ticket for event %s", ErrNotFound, eventID)
	}
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	l.afterWrite(ctx, eventID)
	l.opts.Notifier.TicketCancelled(ctx, *t)
	return t, nil
}

// CancelTicket cancels one of the caller's tickets. Tickets of other
// users are reported as missing. Cancelling twice succeeds.
func (l *Ledger) CancelTicket(ctx context.Context, c identity.Claims, ticketID string) (*model.Ticket, error) {
	t, err := l.tickets.GetByID(ctx, ticketID)
	if errors.Is(err, repository.ErrNotFound) || (err == nil && t.OwnerID != c.OwnerID()) {
		return nil, fmt.Errorf("%w: ticket %s", ErrNotFound, ticketID)
	}
	if err != nil {
		return nil, err
	}
	if t.Status == model.TicketCancelled {
		return t, nil
	}
	if err := l.tickets.TransitionStatus(ctx, t.ID, model.TicketActive, model.TicketCancelled); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrAlreadyUsed
		}
		return nil, err
	}
	t.Status = model.TicketCancelled
	l.opts.Logger.InfoContext(ctx, "ticket cancelled", slog.String("ticket_id", t.ID))
	l.afterWrite(ctx, t.EventID)
	l.opts.Notifier.TicketCancelled(ctx, *t)
	return t, nil
}

// UseTicket punches an active ticket at the entrance. Entry staff and
// managers of the performing group may punch; a ticket that is missing,
// cancelled, already used or outside the caller's reach yields
// ErrAlreadyUsed, so ticket ids cannot be probed.
func (l *Ledger) UseTicket(ctx context.Context, c identity.Claims, ticketID string) (*model.Ticket, error) {
	t, err := l.tickets.GetByID(ctx, ticketID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrAlreadyUsed
	}
	if err != nil {
		return nil, err
	}
	ok, err := l.authz.CanPunch(ctx, c, t.GroupID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrAlreadyUsed
	}
	if err := l.tickets.TransitionStatus(ctx, t.ID, model.TicketActive, model.TicketUsed); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrAlreadyUsed
		}
		return nil, err
	}
	t.Status = model.TicketUsed
	l.afterWrite(ctx, t.EventID)
	return t, nil
}

// IsAvailable reports whether the ticket exists and is active.
func (l *Ledger) IsAvailable(ctx context.Context, ticketID string) (bool, error) {
	t, err := l.tickets.GetByID(ctx, ticketID)
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return t.Status == model.TicketActive, nil
}

// TakenCount sums the party sizes of the event's active and used tickets.
func (l *Ledger) TakenCount(ctx context.Context, eventID string) (int, error) {
	return l.tickets.SumTaken(ctx, eventID)
}

// TicketsNumber reports taken, remaining and total stock of the event.
func (l *Ledger) TicketsNumber(ctx context.Context, eventID string) (model.TicketsNumber, error) {
	ev, err := l.events.GetByID(ctx, eventID)
	if errors.Is(err, repository.ErrNotFound) {
		return model.TicketsNumber{}, fmt.Errorf("%w: event %s", ErrNotFound, eventID)
	}
	if err != nil {
		return model.TicketsNumber{}, err
	}
	taken, err := l.tickets.SumTaken(ctx, eventID)
	if err != nil {
		return model.TicketsNumber{}, err
	}
	return model.TicketsNumber{Taken: taken, Left: max(ev.TicketStock-taken, 0), Stock: ev.TicketStock}, nil
}

// ListUserTickets returns every ticket held by the caller.
func (l *Ledger) ListUserTickets(ctx context.Context, c identity.Claims) ([]*model.Ticket, error) {
	return l.tickets.ListByOwner(ctx, c.OwnerID())
}

// ListActiveTicketIDs lists the event's active ticket ids for the
// managers of the performing group.
func (l *Ledger) ListActiveTicketIDs(ctx context.Context, c identity.Claims, eventID string) ([]string, error) {
	ev, err := l.events.GetByID(ctx, eventID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: event %s", ErrNotFound, eventID)
	}
	if err != nil {
		return nil, err
	}
	ok, err := l.authz.CanManageGroup(ctx, c, ev.GroupID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrForbidden
	}
	return l.tickets.ListActiveIDs(ctx, eventID)
}
