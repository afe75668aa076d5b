package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/festival-ticketing/internal/model"
)

// OwnerRepo stores which users manage which groups.
type OwnerRepo struct {
	db *sql.DB
}

// NewOwnerRepo returns a new OwnerRepo bound to the given database.
func NewOwnerRepo(db *sql.DB) *OwnerRepo { return &OwnerRepo{db: db} }

// Grant records userID as an owner of groupID. Granting twice yields
// ErrDuplicate.
func (r *OwnerRepo) Grant(ctx context.Context, groupID, userID, note string) (*model.GroupOwner, error) {
	o := &model.GroupOwner{ID: newID(), GroupID: groupID, UserID: userID, Note: note}
	_, err := r.db.ExecContext(ctx, `INSERT INTO groupowners (id, group_id, user_id, note) VALUES (?, ?, ?, ?)`,
		o.ID, o.GroupID, o.UserID, o.Note)
	if isDuplicate(err) {
		return nil, ErrDuplicate
	}
	if err != nil {
		return nil, err
	}
	return o, nil
}

// Revoke removes an ownership binding.
func (r *OwnerRepo) Revoke(ctx context.Context, groupID, userID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM groupowners WHERE group_id = ? AND user_id = ?`, groupID, userID)
	if err != nil {
		return err
	}
	return affected(res)
}

// ListByGroup returns the owners of a group.
func (r *OwnerRepo) ListByGroup(ctx context.Context, groupID string) ([]model.GroupOwner, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, group_id, user_id, note FROM groupowners WHERE group_id = ? ORDER BY user_id`, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.GroupOwner{}
	for rows.Next() {
		var o model.GroupOwner
		if err := rows.Scan(&o.ID, &o.GroupID, &o.UserID, &o.Note); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// GroupsOfUser returns the ids of the groups userID owns.
func (r *OwnerRepo) GroupsOfUser(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT group_id FROM groupowners WHERE user_id = ? ORDER BY group_id`, userID)
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

// IsOwner reports whether userID owns groupID.
func (r *OwnerRepo) IsOwner(ctx context.Context, groupID, userID string) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM groupowners WHERE group_id = ? AND user_id = ?`, groupID, userID).Scan(&n)
	return n > 0, err
}
