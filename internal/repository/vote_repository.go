package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/festival-ticketing/internal/model"
)

// VoteRepo stores votes. The (user_id, group_id) unique key backs the
// one-vote-per-group rule.
type VoteRepo struct {
	db *sql.DB
}

// NewVoteRepo returns a new VoteRepo bound to the given database.
func NewVoteRepo(db *sql.DB) *VoteRepo { return &VoteRepo{db: db} }

// CreateTx inserts a vote; a second vote for the same group yields
// ErrDuplicate.
func (r *VoteRepo) CreateTx(ctx context.Context, tx *sql.Tx, v *model.Vote) error {
	v.ID = newID()
	_, err := tx.ExecContext(ctx, `INSERT INTO votes (id, group_id, user_id) VALUES (?, ?, ?)`, v.ID, v.GroupID, v.UserID)
	if isDuplicate(err) {
		return ErrDuplicate
	}
	return err
}

// CountByUserTx counts the votes cast by userID.
func (r *VoteRepo) CountByUserTx(ctx context.Context, tx *sql.Tx, userID string) (int, error) {
	return countVotesByUser(ctx, tx, userID)
}

// CountByUser counts the votes cast by userID.
func (r *VoteRepo) CountByUser(ctx context.Context, userID string) (int, error) {
	return countVotesByUser(ctx, r.db, userID)
}

func countVotesByUser(ctx context.Context, q querier, userID string) (int, error) {
	var n int
	err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM votes WHERE user_id = ?`, userID).Scan(&n)
	return n, err
}

// ExistsTx reports whether userID already voted for groupID.
func (r *VoteRepo) ExistsTx(ctx context.Context, tx *sql.Tx, userID, groupID string) (bool, error) {
	var n int
	err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM votes WHERE user_id = ? AND group_id = ?`, userID, groupID).Scan(&n)
	return n > 0, err
}

// ListByUser returns the votes cast by userID.
func (r *VoteRepo) ListByUser(ctx context.Context, userID string) ([]model.Vote, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, group_id, user_id FROM votes WHERE user_id = ? ORDER BY id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Vote{}
	for rows.Next() {
		var v model.Vote
		if err := rows.Scan(&v.ID, &v.GroupID, &v.UserID); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// CountByGroup counts the votes a group received.
func (r *VoteRepo) CountByGroup(ctx context.Context, groupID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM votes WHERE group_id = ?`, groupID).Scan(&n)
	return n, err
}
