package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/festival-ticketing/internal/model"
)

// LinkRepo manages the external links shown on group pages.
type LinkRepo struct {
	db *sql.DB
}

// NewLinkRepo returns a new LinkRepo bound to the given database.
func NewLinkRepo(db *sql.DB) *LinkRepo { return &LinkRepo{db: db} }

// Create inserts a link and assigns its id.
func (r *LinkRepo) Create(ctx context.Context, l *model.GroupLink) error {
	l.ID = newID()
	_, err := r.db.ExecContext(ctx, `INSERT INTO grouplinks (id, group_id, name, linktext) VALUES (?, ?, ?, ?)`,
		l.ID, l.GroupID, l.Name, l.Linktext)
	return err
}

// ListByGroup returns a group's links in insertion order.
func (r *LinkRepo) ListByGroup(ctx context.Context, groupID string) ([]model.GroupLink, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, group_id, name, linktext FROM grouplinks WHERE group_id = ? ORDER BY id`, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.GroupLink{}
	for rows.Next() {
		var l model.GroupLink
		if err := rows.Scan(&l.ID, &l.GroupID, &l.Name, &l.Linktext); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// Delete removes one link of a group.
func (r *LinkRepo) Delete(ctx context.Context, groupID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM grouplinks WHERE id = ? AND group_id = ?`, id, groupID)
	if err != nil {
		return err
	}
	return affected(res)
}
