package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/obadahasan/numbot/internal/model"
)

// ProRepo provides data access to PRO subscriptions and voucher codes.
type ProRepo struct {
	db *sqlx.DB
}

// NewProRepo returns a ProRepo bound to the provided database.
func NewProRepo(db *sqlx.DB) *ProRepo { return &ProRepo{db: db} }

// RecordSubscription appends a subscription row for history.
func (r *ProRepo) RecordSubscription(ctx context.Context, userID int64, startedAt, expiresAt time.Time, durationDays int, method string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO pro_subscriptions (user_id, started_at, expires_at, duration_days, method)
		 VALUES ($1, $2, $3, $4, $5)`,
		userID, startedAt, expiresAt, durationDays, method)
	return err
}

// DeactivateSubscriptions marks every active subscription of a user as
// finished.
func (r *ProRepo) DeactivateSubscriptions(ctx context.Context, userID int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE pro_subscriptions SET is_active = FALSE WHERE user_id = $1 AND is_active`, userID)
	return err
}

// CreateCode stores a new voucher.
func (r *ProRepo) CreateCode(ctx context.Context, code string, durationDays int, createdBy int64) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO pro_codes (code, duration_days, created_by) VALUES ($1, $2, $3)`,
		code, durationDays, createdBy)
	return err
}

// RedeemCode consumes an unused voucher. The conditional update returns
// ErrConflict when the code is missing, disabled, or already spent, so a
// voucher is redeemable exactly once.
func (r *ProRepo) RedeemCode(ctx context.Context, code string, userID int64, now time.Time) (*model.ProCode, error) {
	var pc model.ProCode
	err := r.db.GetContext(ctx, &pc,
		`UPDATE pro_codes SET used_by = $2, used_at = $3, is_active = FALSE
		 WHERE code = $1 AND is_active AND used_by IS NULL
		 RETURNING code, duration_days, created_by, used_by, used_at, is_active`,
		code, userID, now)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrConflict
	}
	if err != nil {
		return nil, err
	}
	return &pc, nil
}

// ListCodes returns unused active vouchers, or spent ones when active is
// false.
func (r *ProRepo) ListCodes(ctx context.Context, active bool) ([]model.ProCode, error) {
	q := `SELECT code, duration_days, created_by, used_by, used_at, is_active FROM pro_codes`
	if active {
		q += ` WHERE is_active AND used_by IS NULL`
	} else {
		q += ` WHERE used_by IS NOT NULL`
	}

	var codes []model.ProCode
	if err := r.db.SelectContext(ctx, &codes, q); err != nil {
		return nil, err
	}
	return codes, nil
}

// ListActiveProUsers returns users currently flagged PRO.
func (r *ProRepo) ListActiveProUsers(ctx context.Context) ([]model.User, error) {
	var users []model.User
	err := r.db.SelectContext(ctx, &users,
		`SELECT `+userColumns+` FROM users WHERE is_pro AND pro_expiry IS NOT NULL ORDER BY pro_expiry`)
	if err != nil {
		return nil, err
	}
	return users, nil
}
