package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/obadahasan/numbot/internal/model"
)

// RequestRepo provides data access to the number_requests ledger.
type RequestRepo struct {
	db *sqlx.DB
}

// NewRequestRepo returns a RequestRepo bound to the provided database.
func NewRequestRepo(db *sqlx.DB) *RequestRepo { return &RequestRepo{db: db} }

const requestColumns = `id, user_id, number_id, correlation_id, status, code, created_at, expires_at`

// insertPendingTx records a new PENDING reservation inside the provided
// transaction.
func (r *RequestRepo) insertPendingTx(ctx context.Context, tx *sqlx.Tx, userID, numberID int64, correlationID string, now, expiresAt time.Time) (*model.NumberRequest, error) {
	var req model.NumberRequest
	err := tx.GetContext(ctx, &req,
		`INSERT INTO number_requests (user_id, number_id, correlation_id, status, created_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING `+requestColumns,
		userID, numberID, correlationID, model.StatusPending, now, expiresAt)
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// FindPending returns the live reservation for (user, number), or
// ErrNotFound when none exists.
func (r *RequestRepo) FindPending(ctx context.Context, userID, numberID int64) (*model.NumberRequest, error) {
	var req model.NumberRequest
	err := r.db.GetContext(ctx, &req,
		`SELECT `+requestColumns+` FROM number_requests
		 WHERE user_id = $1 AND number_id = $2 AND status = $3
		 ORDER BY created_at DESC LIMIT 1`,
		userID, numberID, model.StatusPending)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// GetByID returns a reservation by primary key, or ErrNotFound.
func (r *RequestRepo) GetByID(ctx context.Context, requestID int64) (*model.NumberRequest, error) {
	var req model.NumberRequest
	err := r.db.GetContext(ctx, &req,
		`SELECT `+requestColumns+` FROM number_requests WHERE id = $1`,
		requestID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// finalizeIfPendingTx applies a terminal status only when the row is still
// PENDING and reports whether the update won. The guard makes finalize
// idempotent under races between poll, cancel, and the expiry sweep.
func (r *RequestRepo) finalizeIfPendingTx(ctx context.Context, tx *sqlx.Tx, requestID int64, status model.RequestStatus, code string) (int64, bool, error) {
	var codeVal sql.NullString
	if code != "" {
		codeVal = sql.NullString{String: code, Valid: true}
	}
	var numberID int64
	err := tx.GetContext(ctx, &numberID,
		`UPDATE number_requests SET status = $2, code = $3
		 WHERE id = $1 AND status = $4
		 RETURNING number_id`,
		requestID, status, codeVal, model.StatusPending)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return numberID, true, nil
}

// ListExpiredPending returns reservations whose lease window has passed
// but that nobody finalized yet. Used by the background sweep.
func (r *RequestRepo) ListExpiredPending(ctx context.Context, cutoff time.Time, limit int) ([]model.NumberRequest, error) {
	var reqs []model.NumberRequest
	err := r.db.SelectContext(ctx, &reqs,
		`SELECT `+requestColumns+` FROM number_requests
		 WHERE status = $1 AND expires_at < $2
		 ORDER BY expires_at
		 LIMIT $3`,
		model.StatusPending, cutoff, limit)
	if err != nil {
		return nil, err
	}
	return reqs, nil
}

// HistoryByUser returns the most recent reservations of a user.
func (r *RequestRepo) HistoryByUser(ctx context.Context, userID int64, limit int) ([]model.NumberRequest, error) {
	var reqs []model.NumberRequest
	err := r.db.SelectContext(ctx, &reqs,
		`SELECT `+requestColumns+` FROM number_requests
		 WHERE user_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2`,
		userID, limit)
	if err != nil {
		return nil, err
	}
	return reqs, nil
}
