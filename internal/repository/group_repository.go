package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/festival-ticketing/internal/model"
)

// GroupRepo manages persistence for festival groups.
type GroupRepo struct {
	db *sql.DB
}

// NewGroupRepo returns a new GroupRepo bound to the given database.
func NewGroupRepo(db *sql.DB) *GroupRepo { return &GroupRepo{db: db} }

const groupColumns = `id, groupname, title, description, type, enable_vote, twitter_url, instagram_url,
	stream_url, public_thumbnail_image_url, public_page_content_url, private_page_content_url, floor, place`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGroup(s rowScanner) (*model.Group, error) {
	var g model.Group
	var title, desc, twitter, insta, stream, thumb, pub, priv, place sql.NullString
	var floor sql.NullInt64
	if err := s.Scan(&g.ID, &g.Groupname, &title, &desc, &g.Type, &g.EnableVote, &twitter, &insta,
		&stream, &thumb, &pub, &priv, &floor, &place); err != nil {
		return nil, err
	}
	g.Title = nullString(title)
	g.Description = nullString(desc)
	g.TwitterURL = nullString(twitter)
	g.InstagramURL = nullString(insta)
	g.StreamURL = nullString(stream)
	g.PublicThumbnailURL = nullString(thumb)
	g.PublicPageURL = nullString(pub)
	g.PrivatePageURL = nullString(priv)
	g.Place = nullString(place)
	if floor.Valid {
		f := int(floor.Int64)
		g.Floor = &f
	}
	g.Tags = []model.Tag{}
	return &g, nil
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

// Create inserts a group. An existing id yields ErrDuplicate.
func (r *GroupRepo) Create(ctx context.Context, g *model.Group) error {
	const q = `INSERT INTO festival_groups (` + groupColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, q, g.ID, g.Groupname, g.Title, g.Description, g.Type, g.EnableVote,
		g.TwitterURL, g.InstagramURL, g.StreamURL, g.PublicThumbnailURL, g.PublicPageURL, g.PrivatePageURL,
		g.Floor, g.Place)
	if isDuplicate(err) {
		return ErrDuplicate
	}
	return err
}

// GetByID returns the group with its tags or ErrNotFound.
func (r *GroupRepo) GetByID(ctx context.Context, id string) (*model.Group, error) {
	return getGroup(ctx, r.db, id)
}

// GetTx is GetByID inside a transaction.
func (r *GroupRepo) GetTx(ctx context.Context, tx *sql.Tx, id string) (*model.Group, error) {
	return getGroup(ctx, tx, id)
}

func getGroup(ctx context.Context, q querier, id string) (*model.Group, error) {
	g, err := scanGroup(q.QueryRowContext(ctx, `SELECT `+groupColumns+` FROM festival_groups WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	tags, err := tagsOfGroup(ctx, q, id)
	if err != nil {
		return nil, err
	}
	g.Tags = tags
	return g, nil
}

// ExistsTx reports whether a group with id exists.
func (r *GroupRepo) ExistsTx(ctx context.Context, tx *sql.Tx, id string) (bool, error) {
	var n int
	err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM festival_groups WHERE id = ?`, id).Scan(&n)
	return n > 0, err
}

// List returns every group ordered by id, tags included.
func (r *GroupRepo) List(ctx context.Context) ([]*model.Group, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+groupColumns+` FROM festival_groups ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*model.Group
	byID := map[string]*model.Group{}
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
		byID[g.ID] = g
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	const tq = `SELECT gt.group_id, t.id, t.tagname FROM grouptags gt JOIN tags t ON t.id = gt.tag_id ORDER BY t.tagname`
	trows, err := r.db.QueryContext(ctx, tq)
	if err != nil {
		return nil, err
	}
	defer trows.Close()
	for trows.Next() {
		var gid string
		var t model.Tag
		if err := trows.Scan(&gid, &t.ID, &t.Tagname); err != nil {
			return nil, err
		}
		if g, ok := byID[gid]; ok {
			g.Tags = append(g.Tags, t)
		}
	}
	return out, trows.Err()
}

// Update overwrites the editable fields of a group. The id and type are
// immutable.
func (r *GroupRepo) Update(ctx context.Context, g *model.Group) error {
	const q = `UPDATE festival_groups SET groupname = ?, title = ?, description = ?, enable_vote = ?,
		twitter_url = ?, instagram_url = ?, stream_url = ?, public_page_content_url = ?,
		private_page_content_url = ?, floor = ?, place = ? WHERE id = ?`
	res, err := r.db.ExecContext(ctx, q, g.Groupname, g.Title, g.Description, g.EnableVote,
		g.TwitterURL, g.InstagramURL, g.StreamURL, g.PublicPageURL, g.PrivatePageURL, g.Floor, g.Place, g.ID)
	if err != nil {
		return err
	}
	return affected(res)
}

// UpdateThumbnail replaces the public thumbnail URL.
func (r *GroupRepo) UpdateThumbnail(ctx context.Context, id string, url *string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE festival_groups SET public_thumbnail_image_url = ? WHERE id = ?`, url, id)
	if err != nil {
		return err
	}
	return affected(res)
}

// Delete removes a group that owns no events, tickets, tags or links and
// is not on a Hebe board.
// Ownership and vote rows are removed with it. A group with dependents
// yields ErrConflict.
func (r *GroupRepo) Delete(ctx context.Context, id string) error {
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

	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM festival_groups WHERE id = ?`, id).Scan(&exists); err != nil {
		return err
	}
	if exists == 0 {
		return ErrNotFound
	}

	const depQ = `SELECT
		(SELECT COUNT(*) FROM events WHERE group_id = ?) +
		(SELECT COUNT(*) FROM tickets WHERE group_id = ?) +
		(SELECT COUNT(*) FROM grouptags WHERE group_id = ?) +
		(SELECT COUNT(*) FROM grouplinks WHERE group_id = ?) +
		(SELECT COUNT(*) FROM hebe_boards WHERE group_id = ?)`
	var deps int
	if err := tx.QueryRowContext(ctx, depQ, id, id, id, id, id).Scan(&deps); err != nil {
		return err
	}
	if deps > 0 {
		return ErrConflict
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM groupowners WHERE group_id = ?`, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM votes WHERE group_id = ?`, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM festival_groups WHERE id = ?`, id); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}
