package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/festival-ticketing/internal/model"
)

// HebeRepo stores which group each Hebe stage board shows. A board has
// at most one row.
type HebeRepo struct {
	db *sql.DB
}

// NewHebeRepo returns a new HebeRepo bound to the given database.
func NewHebeRepo(db *sql.DB) *HebeRepo { return &HebeRepo{db: db} }

// Get returns the board's group, or ErrNotFound when nothing is set.
func (r *HebeRepo) Get(ctx context.Context, board string) (*model.HebeBoard, error) {
	b := model.HebeBoard{Board: board}
	err := r.db.QueryRowContext(ctx, `SELECT group_id FROM hebe_boards WHERE board = ?`, board).Scan(&b.GroupID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// Set points the board at groupID, inserting the row on first use.
func (r *HebeRepo) Set(ctx context.Context, board, groupID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `UPDATE hebe_boards SET group_id = ? WHERE board = ?`, groupID, board)
	if err != nil {
		return err
	}
	if err := affected(res); errors.Is(err, ErrNotFound) {
		if _, err := tx.ExecContext(ctx, `INSERT INTO hebe_boards (board, group_id) VALUES (?, ?)`, board, groupID); err != nil {
			if isDuplicate(err) {
				return ErrConflict
			}
			return err
		}
	} else if err != nil {
		return err
	}
	return tx.Commit()
}
