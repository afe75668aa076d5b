package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/festival-ticketing/internal/model"
)

// TicketRepo manages tickets. Rows are never deleted; lifecycle changes
// are status updates.
type TicketRepo struct {
	db *sql.DB
}

// NewTicketRepo returns a new TicketRepo bound to the given database.
func NewTicketRepo(db *sql.DB) *TicketRepo { return &TicketRepo{db: db} }

const ticketColumns = `id, created_at, group_id, event_id, owner_id, person, status, is_family_ticket`

func scanTicket(s rowScanner) (*model.Ticket, error) {
	var t model.Ticket
	if err := s.Scan(&t.ID, &t.CreatedAt, &t.GroupID, &t.EventID, &t.OwnerID, &t.Person, &t.Status, &t.IsFamilyTicket); err != nil {
		return nil, err
	}
	return &t, nil
}

// CreateTx inserts a ticket inside the caller's transaction and assigns
// its id.
func (r *TicketRepo) CreateTx(ctx context.Context, tx *sql.Tx, t *model.Ticket) error {
	t.ID = newID()
	const q = `INSERT INTO tickets (` + ticketColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := tx.ExecContext(ctx, q, t.ID, t.CreatedAt, t.GroupID, t.EventID, t.OwnerID, t.Person, t.Status, t.IsFamilyTicket)
	return err
}

// GetByID returns a ticket or ErrNotFound.
func (r *TicketRepo) GetByID(ctx context.Context, id string) (*model.Ticket, error) {
	t, err := scanTicket(r.db.QueryRowContext(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return t, err
}

// SumTaken returns the person sum of the event's active and used tickets.
func (r *TicketRepo) SumTaken(ctx context.Context, eventID string) (int, error) {
	return sumTaken(ctx, r.db, eventID)
}

// SumTakenTx is SumTaken inside a transaction.
func (r *TicketRepo) SumTakenTx(ctx context.Context, tx *sql.Tx, eventID string) (int, error) {
	return sumTaken(ctx, tx, eventID)
}

func sumTaken(ctx context.Context, q querier, eventID string) (int, error) {
	var n int
	err := q.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(person), 0) FROM tickets WHERE event_id = ? AND status IN ('active', 'used')`,
		eventID).Scan(&n)
	return n, err
}

// CountFamilyTx counts the owner's active or used family tickets.
func (r *TicketRepo) CountFamilyTx(ctx context.Context, tx *sql.Tx, ownerID string) (int, error) {
	var n int
	err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM tickets WHERE owner_id = ? AND is_family_ticket = ? AND status IN ('active', 'used')`,
		ownerID, true).Scan(&n)
	return n, err
}

// TransitionStatus moves a ticket from one status to another. It returns
// ErrNotFound when the ticket is absent or not in the from status, which
// makes the transition safe against concurrent callers.
func (r *TicketRepo) TransitionStatus(ctx context.Context, id, from, to string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE tickets SET status = ? WHERE id = ? AND status = ?`, to, id, from)
	if err != nil {
		return err
	}
	return affected(res)
}

// CancelOnePaperTx flips one paper ticket of the event to cancelled and
// returns it. No paper ticket yields ErrNotFound.
func (r *TicketRepo) CancelOnePaperTx(ctx context.Context, tx *sql.Tx, eventID string) (*model.Ticket, error) {
	t, err := scanTicket(tx.QueryRowContext(ctx,
		`SELECT `+ticketColumns+` FROM tickets WHERE event_id = ? AND status = ? ORDER BY id DESC LIMIT 1`,
		eventID, model.TicketPaper))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE tickets SET status = ? WHERE id = ?`, model.TicketCancelled, t.ID); err != nil {
		return nil, err
	}
	t.Status = model.TicketCancelled
	return t, nil
}

// CountPaper counts the event's outstanding paper tickets.
func (r *TicketRepo) CountPaper(ctx context.Context, eventID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tickets WHERE event_id = ? AND status = ?`,
		eventID, model.TicketPaper).Scan(&n)
	return n, err
}

// ListByOwner returns the owner's tickets, newest first.
func (r *TicketRepo) ListByOwner(ctx context.Context, ownerID string) ([]*model.Ticket, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE owner_id = ? ORDER BY id DESC`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []*model.Ticket{}
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// ListActiveIDs returns the ids of the event's active tickets.
func (r *TicketRepo) ListActiveIDs(ctx context.Context, eventID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM tickets WHERE event_id = ? AND status = ? ORDER BY id`,
		eventID, model.TicketActive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// HasAttendedTx reports whether ownerID holds an active or used ticket
// for groupID on an event that ended before now (ISO-8601 JST text).
func (r *TicketRepo) HasAttendedTx(ctx context.Context, tx *sql.Tx, ownerID, groupID, now string) (bool, error) {
	const q = `SELECT COUNT(*) FROM tickets t JOIN events e ON e.id = t.event_id
		WHERE t.owner_id = ? AND t.group_id = ? AND t.status IN ('active', 'used') AND e.ends_at < ?`
	var n int
	err := tx.QueryRowContext(ctx, q, ownerID, groupID, now).Scan(&n)
	return n > 0, err
}
