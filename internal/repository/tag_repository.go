package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/festival-ticketing/internal/model"
)

// TagRepo manages tags and their group assignments.
type TagRepo struct {
	db *sql.DB
}

// NewTagRepo returns a new TagRepo bound to the given database.
func NewTagRepo(db *sql.DB) *TagRepo { return &TagRepo{db: db} }

// Create inserts a tag; a taken name yields ErrDuplicate.
func (r *TagRepo) Create(ctx context.Context, name string) (*model.Tag, error) {
	t := &model.Tag{ID: newID(), Tagname: name}
	_, err := r.db.ExecContext(ctx, `INSERT INTO tags (id, tagname) VALUES (?, ?)`, t.ID, t.Tagname)
	if isDuplicate(err) {
		return nil, ErrDuplicate
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

// GetByID returns a tag or ErrNotFound.
func (r *TagRepo) GetByID(ctx context.Context, id string) (*model.Tag, error) {
	var t model.Tag
	err := r.db.QueryRowContext(ctx, `SELECT id, tagname FROM tags WHERE id = ?`, id).Scan(&t.ID, &t.Tagname)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// List returns every tag ordered by name.
func (r *TagRepo) List(ctx context.Context) ([]model.Tag, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, tagname FROM tags ORDER BY tagname`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Tag{}
	for rows.Next() {
		var t model.Tag
		if err := rows.Scan(&t.ID, &t.Tagname); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Rename changes a tag's name.
func (r *TagRepo) Rename(ctx context.Context, id, name string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE tags SET tagname = ? WHERE id = ?`, name, id)
	if isDuplicate(err) {
		return ErrDuplicate
	}
	if err != nil {
		return err
	}
	return affected(res)
}

// Delete removes a tag that is attached to no group.
func (r *TagRepo) Delete(ctx context.Context, id string) error {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM grouptags WHERE tag_id = ?`, id).Scan(&n); err != nil {
		return err
	}
	if n > 0 {
		return ErrConflict
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM tags WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return affected(res)
}

// AddToGroup attaches a tag to a group. Attaching twice yields
// ErrDuplicate.
func (r *TagRepo) AddToGroup(ctx context.Context, groupID, tagID string) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO grouptags (id, group_id, tag_id) VALUES (?, ?, ?)`, newID(), groupID, tagID)
	if isDuplicate(err) {
		return ErrDuplicate
	}
	return err
}

// RemoveFromGroup detaches a tag from a group.
func (r *TagRepo) RemoveFromGroup(ctx context.Context, groupID, tagID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM grouptags WHERE group_id = ? AND tag_id = ?`, groupID, tagID)
	if err != nil {
		return err
	}
	return affected(res)
}

// ListByGroup returns the tags attached to a group.
func (r *TagRepo) ListByGroup(ctx context.Context, groupID string) ([]model.Tag, error) {
	return tagsOfGroup(ctx, r.db, groupID)
}

func tagsOfGroup(ctx context.Context, q querier, groupID string) ([]model.Tag, error) {
	const sel = `SELECT t.id, t.tagname FROM grouptags gt JOIN tags t ON t.id = gt.tag_id
		WHERE gt.group_id = ? ORDER BY t.tagname`
	rows, err := q.QueryContext(ctx, sel, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Tag{}
	for rows.Next() {
		var t model.Tag
		if err := rows.Scan(&t.ID, &t.Tagname); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
