package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/obadahasan/numbot/internal/model"
)

// UserRepo provides data access to the users table.
type UserRepo struct {
	db *sqlx.DB
}

// NewUserRepo returns a UserRepo bound to the provided database.
func NewUserRepo(db *sqlx.DB) *UserRepo { return &UserRepo{db: db} }

const userColumns = `id, username, first_name, last_name, joined_at, banned, is_admin,
	points, invited_by, total_invites, is_pro, pro_expiry, last_daily_bonus, proofs_submitted`

// Get fetches a user by Telegram id.
func (r *UserRepo) Get(ctx context.Context, id int64) (*model.User, error) {
	var u model.User
	err := r.db.GetContext(ctx, &u,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Upsert inserts a new user or refreshes the profile fields of an
// existing one. invited_by is only recorded on first insert; it reports
// whether the row was newly created.
func (r *UserRepo) Upsert(ctx context.Context, id int64, username, firstName, lastName string, invitedBy int64) (bool, error) {
	var inviter sql.NullInt64
	if invitedBy != 0 && invitedBy != id {
		inviter = sql.NullInt64{Int64: invitedBy, Valid: true}
	}
	var inserted bool
	err := r.db.GetContext(ctx, &inserted,
		`INSERT INTO users (id, username, first_name, last_name, invited_by)
		 VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), NULLIF($4, ''), $5)
		 ON CONFLICT (id) DO UPDATE SET
		     username = NULLIF($2, ''),
		     first_name = NULLIF($3, ''),
		     last_name = NULLIF($4, '')
		 RETURNING (xmax = 0)`,
		id, username, firstName, lastName, inviter)
	if err != nil {
		return false, err
	}
	return inserted, nil
}

// IncrementInvites bumps the inviter counter after a successful referral.
func (r *UserRepo) IncrementInvites(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET total_invites = total_invites + 1 WHERE id = $1`, id)
	return err
}

// IncrementProofs bumps the accepted-proof counter.
func (r *UserRepo) IncrementProofs(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET proofs_submitted = proofs_submitted + 1 WHERE id = $1`, id)
	return err
}

// SetBanned toggles the ban flag.
func (r *UserRepo) SetBanned(ctx context.Context, id int64, banned bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET banned = $2 WHERE id = $1`, id, banned)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// ClaimDailyBonus stamps last_daily_bonus only when the last claim was on
// an earlier calendar day. The conditional update makes double-taps on
// the bonus button award at most once per day.
func (r *UserRepo) ClaimDailyBonus(ctx context.Context, id int64, now time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET last_daily_bonus = $2
		 WHERE id = $1 AND (last_daily_bonus IS NULL OR last_daily_bonus::date < $2::date)`,
		id, now)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// SetPro updates the cached PRO flag and expiry on the user row.
func (r *UserRepo) SetPro(ctx context.Context, id int64, isPro bool, expiry time.Time) error {
	var exp sql.NullTime
	if isPro {
		exp = sql.NullTime{Time: expiry, Valid: true}
	}
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET is_pro = $2, pro_expiry = $3 WHERE id = $1`, id, isPro, exp)
	return err
}

// TopByPoints returns the leaderboard.
func (r *UserRepo) TopByPoints(ctx context.Context, limit int) ([]model.User, error) {
	var users []model.User
	err := r.db.SelectContext(ctx, &users,
		`SELECT `+userColumns+` FROM users
		 WHERE NOT banned
		 ORDER BY points DESC, id
		 LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	return users, nil
}

// ListIDs returns every non-banned user id, used for broadcasts.
func (r *UserRepo) ListIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	if err := r.db.SelectContext(ctx, &ids,
		`SELECT id FROM users WHERE NOT banned ORDER BY id`); err != nil {
		return nil, err
	}
	return ids, nil
}
