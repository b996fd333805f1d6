package repository

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"github.com/obadahasan/numbot/internal/model"
)

// PointsRepo provides data access to the points balance and its
// append-only history.
type PointsRepo struct {
	db *sqlx.DB
}

// NewPointsRepo returns a PointsRepo bound to the provided database.
func NewPointsRepo(db *sqlx.DB) *PointsRepo { return &PointsRepo{db: db} }

// ApplyChange adjusts a user's balance and records the ledger row in one
// transaction. A negative change with requireBalance only applies when
// the balance stays non-negative; it reports whether the change applied.
func (r *PointsRepo) ApplyChange(ctx context.Context, userID, change int64, reason string, relatedID int64, requireBalance bool) (bool, error) {
	var related sql.NullInt64
	if relatedID != 0 {
		related = sql.NullInt64{Int64: relatedID, Valid: true}
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback() }()

	q := `UPDATE users SET points = points + $2 WHERE id = $1`
	if requireBalance && change < 0 {
		q += ` AND points + $2 >= 0`
	}
	res, err := tx.ExecContext(ctx, q, userID, change)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if affected == 0 {
		return false, nil
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO points_history (user_id, points_change, reason, related_id)
		 VALUES ($1, $2, $3, $4)`,
		userID, change, reason, related); err != nil {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}

// History returns the most recent ledger entries for a user.
func (r *PointsRepo) History(ctx context.Context, userID int64, limit int) ([]model.PointsEntry, error) {
	var entries []model.PointsEntry
	err := r.db.SelectContext(ctx, &entries,
		`SELECT id, user_id, points_change, reason, related_id, created_at
		 FROM points_history
		 WHERE user_id = $1
		 ORDER BY id DESC
		 LIMIT $2`,
		userID, limit)
	if err != nil {
		return nil, err
	}
	return entries, nil
}
