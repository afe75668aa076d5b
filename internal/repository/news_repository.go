package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/festival-ticketing/internal/model"
)

// NewsRepo manages front-page announcements.
type NewsRepo struct {
	db *sql.DB
}

// NewNewsRepo returns a new NewsRepo bound to the given database.
func NewNewsRepo(db *sql.DB) *NewsRepo { return &NewsRepo{db: db} }

const newsColumns = `id, title, timestamp, author, detail`

func scanNews(s rowScanner) (*model.News, error) {
	var n model.News
	var detail sql.NullString
	if err := s.Scan(&n.ID, &n.Title, &n.Timestamp, &n.Author, &detail); err != nil {
		return nil, err
	}
	if detail.Valid {
		n.Detail = &detail.String
	}
	return &n, nil
}

// Create inserts an announcement and assigns its id.
func (r *NewsRepo) Create(ctx context.Context, n *model.News) error {
	n.ID = newID()
	_, err := r.db.ExecContext(ctx, `INSERT INTO news (`+newsColumns+`) VALUES (?, ?, ?, ?, ?)`,
		n.ID, n.Title, n.Timestamp, n.Author, n.Detail)
	return err
}

// GetByID returns an announcement or ErrNotFound.
func (r *NewsRepo) GetByID(ctx context.Context, id string) (*model.News, error) {
	n, err := scanNews(r.db.QueryRowContext(ctx, `SELECT `+newsColumns+` FROM news WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return n, err
}

// List returns every announcement, newest first.
func (r *NewsRepo) List(ctx context.Context) ([]model.News, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+newsColumns+` FROM news ORDER BY timestamp DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.News{}
	for rows.Next() {
		n, err := scanNews(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *n)
	}
	return out, rows.Err()
}

// Update overwrites title, author and detail. The timestamp is kept.
func (r *NewsRepo) Update(ctx context.Context, n *model.News) error {
	res, err := r.db.ExecContext(ctx, `UPDATE news SET title = ?, author = ?, detail = ? WHERE id = ?`,
		n.Title, n.Author, n.Detail, n.ID)
	if err != nil {
		return err
	}
	return affected(res)
}

// Delete removes an announcement.
func (r *NewsRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM news WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return affected(res)
}
