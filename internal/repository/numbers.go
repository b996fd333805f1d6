package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/obadahasan/numbot/internal/model"
)

// NumberRepo provides data access to the numbers table.
type NumberRepo struct {
	db *sqlx.DB
}

// NewNumberRepo returns a NumberRepo bound to the provided database.
func NewNumberRepo(db *sqlx.DB) *NumberRepo { return &NumberRepo{db: db} }

const numberColumns = `id, country_id, value, platform, is_premium, premium_pattern,
	is_available, is_active, times_used, added_by, added_at, last_used_at, last_used_by`

// GetByID fetches an active number regardless of availability.
func (r *NumberRepo) GetByID(ctx context.Context, id int64) (*model.Number, error) {
	var n model.Number
	err := r.db.GetContext(ctx, &n,
		`SELECT `+numberColumns+` FROM numbers WHERE id = $1 AND is_active`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// ListAvailableByCountry returns pageable available numbers for a country,
// premium-first then newest-first. Non-PRO callers only see standard
// numbers.
func (r *NumberRepo) ListAvailableByCountry(ctx context.Context, countryID int64, includePremium bool, page, pageSize int) ([]model.Number, error) {
	if page < 1 {
		page = 1
	}
	offset := (page - 1) * pageSize

	q := `SELECT ` + numberColumns + ` FROM numbers
		WHERE country_id = $1 AND is_active AND is_available`
	args := []any{countryID}
	if !includePremium {
		q += ` AND NOT is_premium`
	}
	q += ` ORDER BY is_premium DESC, added_at DESC LIMIT $2 OFFSET $3`
	args = append(args, pageSize, offset)

	var numbers []model.Number
	if err := r.db.SelectContext(ctx, &numbers, q, args...); err != nil {
		return nil, err
	}
	return numbers, nil
}

// CountAvailableByCountry returns how many available numbers a country has
// for the given visibility tier.
func (r *NumberRepo) CountAvailableByCountry(ctx context.Context, countryID int64, includePremium bool) (int, error) {
	q := `SELECT COUNT(id) FROM numbers WHERE country_id = $1 AND is_active AND is_available`
	if !includePremium {
		q += ` AND NOT is_premium`
	}
	var count int
	if err := r.db.GetContext(ctx, &count, q, countryID); err != nil {
		return 0, err
	}
	return count, nil
}

// SearchPremium finds available premium numbers matching a wildcard
// pattern. The user-facing pattern uses '*'; it is translated to SQL LIKE.
func (r *NumberRepo) SearchPremium(ctx context.Context, countryID int64, pattern string) ([]model.Number, error) {
	var numbers []model.Number
	err := r.db.SelectContext(ctx, &numbers,
		`SELECT `+numberColumns+` FROM numbers
		 WHERE country_id = $1 AND is_active AND is_available AND is_premium
		   AND value LIKE $2
		 ORDER BY added_at DESC`,
		countryID, PatternToLike(pattern))
	if err != nil {
		return nil, err
	}
	return numbers, nil
}

// PatternToLike translates a user wildcard pattern into a LIKE expression.
// '*' becomes '%'; LIKE metacharacters in the input are escaped.
func PatternToLike(pattern string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	escaped := replacer.Replace(pattern)
	return strings.ReplaceAll(escaped, "*", "%")
}

// markHeldTx flips an available number to held. Returns ErrConflict when
// the number is missing, inactive, or already held, so concurrent
// acquisitions have exactly one winner.
func (r *NumberRepo) markHeldTx(ctx context.Context, tx *sqlx.Tx, id, holderID int64, now time.Time) (*model.Number, error) {
	var n model.Number
	err := tx.GetContext(ctx, &n,
		`UPDATE numbers
		 SET is_available = FALSE, last_used_at = $2, last_used_by = $3
		 WHERE id = $1 AND is_active AND is_available
		 RETURNING `+numberColumns,
		id, now, holderID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrConflict
	}
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// markAvailableTx restores a held number to the pool.
func (r *NumberRepo) markAvailableTx(ctx context.Context, tx *sqlx.Tx, id int64) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE numbers SET is_available = TRUE WHERE id = $1`, id)
	return err
}

// incrementUsageTx bumps the usage counter of a spent number. The number
// stays held; administrators decide whether to reactivate it.
func (r *NumberRepo) incrementUsageTx(ctx context.Context, tx *sqlx.Tx, id int64) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE numbers SET times_used = times_used + 1 WHERE id = $1`, id)
	return err
}

// Add inserts a new number and returns its id.
func (r *NumberRepo) Add(ctx context.Context, countryID int64, value, platform string, isPremium bool, premiumPattern string, addedBy int64) (int64, error) {
	var pattern sql.NullString
	if premiumPattern != "" {
		pattern = sql.NullString{String: premiumPattern, Valid: true}
	}
	var id int64
	err := r.db.GetContext(ctx, &id,
		`INSERT INTO numbers (country_id, value, platform, is_premium, premium_pattern, added_by)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id`,
		countryID, value, platform, isPremium, pattern, addedBy)
	if err != nil {
		return 0, err
	}
	return id, nil
}

// Deactivate soft-removes a number from every listing. Historical
// requests keep referencing it.
func (r *NumberRepo) Deactivate(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE numbers SET is_active = FALSE WHERE id = $1 AND is_active`, id)
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

// Reactivate returns a spent or disabled number to the available pool.
func (r *NumberRepo) Reactivate(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE numbers SET is_active = TRUE, is_available = TRUE WHERE id = $1`, id)
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
