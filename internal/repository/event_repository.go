package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/iliyamo/festival-ticketing/internal/clock"
	"github.com/iliyamo/festival-ticketing/internal/model"
)

// EventRepo manages events. Timestamps are written with clock.Format and
// parsed back with clock.Parse on every read.
type EventRepo struct {
	db *sql.DB
}

// NewEventRepo returns a new EventRepo bound to the given database.
func NewEventRepo(db *sql.DB) *EventRepo { return &EventRepo{db: db} }

const eventColumns = `id, group_id, eventname, lottery, target, ticket_stock, starts_at, ends_at, sell_starts, sell_ends`

func scanEvent(s rowScanner) (*model.Event, error) {
	var e model.Event
	var starts, ends, sellStarts, sellEnds string
	if err := s.Scan(&e.ID, &e.GroupID, &e.Eventname, &e.Lottery, &e.Target, &e.TicketStock,
		&starts, &ends, &sellStarts, &sellEnds); err != nil {
		return nil, err
	}
	var err error
	if e.StartsAt, err = clock.Parse(starts); err != nil {
		return nil, fmt.Errorf("event %s starts_at: %w", e.ID, err)
	}
	if e.EndsAt, err = clock.Parse(ends); err != nil {
		return nil, fmt.Errorf("event %s ends_at: %w", e.ID, err)
	}
	if e.SellStarts, err = clock.Parse(sellStarts); err != nil {
		return nil, fmt.Errorf("event %s sell_starts: %w", e.ID, err)
	}
	if e.SellEnds, err = clock.Parse(sellEnds); err != nil {
		return nil, fmt.Errorf("event %s sell_ends: %w", e.ID, err)
	}
	return &e, nil
}

func scanEvents(rows *sql.Rows) ([]*model.Event, error) {
	defer rows.Close()
	out := []*model.Event{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Create inserts an event, assigning an id when none is set.
func (r *EventRepo) Create(ctx context.Context, e *model.Event) error {
	return createEvent(ctx, r.db, e)
}

// CreateTx is Create inside a transaction.
func (r *EventRepo) CreateTx(ctx context.Context, tx *sql.Tx, e *model.Event) error {
	return createEvent(ctx, tx, e)
}

func createEvent(ctx context.Context, q querier, e *model.Event) error {
	if e.ID == "" {
		e.ID = newID()
	}
	const ins = `INSERT INTO events (` + eventColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := q.ExecContext(ctx, ins, e.ID, e.GroupID, e.Eventname, e.Lottery, e.Target, e.TicketStock,
		clock.Format(e.StartsAt), clock.Format(e.EndsAt), clock.Format(e.SellStarts), clock.Format(e.SellEnds))
	if isDuplicate(err) {
		return ErrDuplicate
	}
	return err
}

// GetByID returns an event or ErrNotFound.
func (r *EventRepo) GetByID(ctx context.Context, id string) (*model.Event, error) {
	return getEvent(ctx, r.db, id)
}

// GetTx is GetByID inside a transaction.
func (r *EventRepo) GetTx(ctx context.Context, tx *sql.Tx, id string) (*model.Event, error) {
	return getEvent(ctx, tx, id)
}

func getEvent(ctx context.Context, q querier, id string) (*model.Event, error) {
	e, err := scanEvent(q.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return e, err
}

// ListByGroup returns a group's events ordered by start time.
func (r *EventRepo) ListByGroup(ctx context.Context, groupID string) ([]*model.Event, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+eventColumns+` FROM events WHERE group_id = ? ORDER BY starts_at, id`, groupID)
	if err != nil {
		return nil, err
	}
	return scanEvents(rows)
}

// List returns every event ordered by start time.
func (r *EventRepo) List(ctx context.Context) ([]*model.Event, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+eventColumns+` FROM events ORDER BY starts_at, id`)
	if err != nil {
		return nil, err
	}
	return scanEvents(rows)
}

// LockTx serializes issuance against the event: the touch on issue_seq
// takes the row's write lock until the transaction ends. A missing event
// yields ErrNotFound.
func (r *EventRepo) LockTx(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := tx.ExecContext(ctx, `UPDATE events SET issue_seq = issue_seq + 1 WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return affected(res)
}

// TakenByOwnerTx returns the events for which ownerID holds an active or
// used ticket, one entry per ticket.
func (r *EventRepo) TakenByOwnerTx(ctx context.Context, tx *sql.Tx, ownerID string) ([]*model.Event, error) {
	const q = `SELECT e.id, e.group_id, e.eventname, e.lottery, e.target, e.ticket_stock,
		e.starts_at, e.ends_at, e.sell_starts, e.sell_ends
		FROM events e JOIN tickets t ON t.event_id = e.id
		WHERE t.owner_id = ? AND t.status IN ('active', 'used')
		ORDER BY e.starts_at`
	rows, err := tx.QueryContext(ctx, q, ownerID)
	if err != nil {
		return nil, err
	}
	return scanEvents(rows)
}

// Delete removes an event without tickets; otherwise ErrConflict.
func (r *EventRepo) Delete(ctx context.Context, groupID, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var n int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM events WHERE id = ? AND group_id = ?`, id, groupID).Scan(&n); err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM tickets WHERE event_id = ?`, id).Scan(&n); err != nil {
		return err
	}
	if n > 0 {
		return ErrConflict
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM events WHERE id = ?`, id); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}
