package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/festival-ticketing/internal/database"
)

// HolderRepo maintains one lock row per user. Issuance and voting take
// the caller's row first so that a user's concurrent requests are
// evaluated one after another against committed state.
type HolderRepo struct {
	db      *sql.DB
	dialect database.Dialect
}

// NewHolderRepo returns a HolderRepo for the given dialect.
func NewHolderRepo(db *sql.DB, d database.Dialect) *HolderRepo {
	return &HolderRepo{db: db, dialect: d}
}

// LockTx upserts the user's row, holding its write lock until tx ends.
func (r *HolderRepo) LockTx(ctx context.Context, tx *sql.Tx, userID string) error {
	q := `INSERT INTO ticket_holders (user_id, seq) VALUES (?, 1)
		ON DUPLICATE KEY UPDATE seq = seq + 1`
	if r.dialect == database.SQLite {
		q = `INSERT INTO ticket_holders (user_id, seq) VALUES (?, 1)
			ON CONFLICT (user_id) DO UPDATE SET seq = seq + 1`
	}
	_, err := tx.ExecContext(ctx, q, userID)
	return err
}
