package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/obadahasan/numbot/internal/model"
)

// Store bundles all repositories over one connection pool and implements
// the multi-table reservation operations that must commit atomically.
type Store struct {
	db *sqlx.DB

	Numbers   *NumberRepo
	Requests  *RequestRepo
	Countries *CountryRepo
	Users     *UserRepo
	Points    *PointsRepo
	Settings  *SettingsRepo
	Pro       *ProRepo
	Ads       *AdsRepo
	Audit     *AuditRepo
}

// NewStore wires every repository over the shared pool.
func NewStore(db *sqlx.DB) *Store {
	return &Store{
		db:        db,
		Numbers:   NewNumberRepo(db),
		Requests:  NewRequestRepo(db),
		Countries: NewCountryRepo(db),
		Users:     NewUserRepo(db),
		Points:    NewPointsRepo(db),
		Settings:  NewSettingsRepo(db),
		Pro:       NewProRepo(db),
		Ads:       NewAdsRepo(db),
		Audit:     NewAuditRepo(db),
	}
}

func (s *Store) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetNumber fetches an active number by id.
func (s *Store) GetNumber(ctx context.Context, numberID int64) (*model.Number, error) {
	return s.Numbers.GetByID(ctx, numberID)
}

// AcquireNumber atomically flips the number to held and records a PENDING
// reservation. The conditional hold update guarantees at most one winner
// when several users race for the same number; losers get ErrConflict.
func (s *Store) AcquireNumber(ctx context.Context, numberID, userID int64, correlationID string, now, expiresAt time.Time) (*model.NumberRequest, *model.Number, error) {
	var (
		req *model.NumberRequest
		num *model.Number
	)
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		n, err := s.Numbers.markHeldTx(ctx, tx, numberID, userID, now)
		if err != nil {
			return err
		}
		r, err := s.Requests.insertPendingTx(ctx, tx, userID, numberID, correlationID, now, expiresAt)
		if err != nil {
			return err
		}
		req, num = r, n
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return req, num, nil
}

// FindPendingRequest returns the live reservation for (user, number).
func (s *Store) FindPendingRequest(ctx context.Context, userID, numberID int64) (*model.NumberRequest, error) {
	return s.Requests.FindPending(ctx, userID, numberID)
}

// GetRequest fetches a reservation by id.
func (s *Store) GetRequest(ctx context.Context, requestID int64) (*model.NumberRequest, error) {
	return s.Requests.GetByID(ctx, requestID)
}

// FinalizeRequest moves a reservation to a terminal status and applies the
// matching number side effect in the same transaction: SUCCESS bumps the
// usage counter and keeps the number retired; EXPIRED and CANCELLED return
// it to the pool. Finalizing an already-terminal request reports applied =
// false and mutates nothing.
func (s *Store) FinalizeRequest(ctx context.Context, requestID int64, status model.RequestStatus, code string) (bool, error) {
	if !status.Terminal() {
		return false, fmt.Errorf("finalize to non-terminal status %q", status)
	}
	applied := false
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		numberID, won, err := s.Requests.finalizeIfPendingTx(ctx, tx, requestID, status, code)
		if err != nil {
			return err
		}
		if !won {
			return nil
		}
		applied = true
		if status == model.StatusSuccess {
			return s.Numbers.incrementUsageTx(ctx, tx, numberID)
		}
		return s.Numbers.markAvailableTx(ctx, tx, numberID)
	})
	if err != nil {
		return false, err
	}
	return applied, nil
}

// ListExpiredPending exposes stale reservations for the sweep.
func (s *Store) ListExpiredPending(ctx context.Context, cutoff time.Time, limit int) ([]model.NumberRequest, error) {
	return s.Requests.ListExpiredPending(ctx, cutoff, limit)
}

// Stats is the admin dashboard snapshot.
type Stats struct {
	Users            int64 `db:"users"`
	BannedUsers      int64 `db:"banned_users"`
	ProUsers         int64 `db:"pro_users"`
	ActiveCountries  int64 `db:"active_countries"`
	ActiveNumbers    int64 `db:"active_numbers"`
	AvailableNumbers int64 `db:"available_numbers"`
	PendingRequests  int64 `db:"pending_requests"`
	DeliveredCodes   int64 `db:"delivered_codes"`
}

// GetStats collects the counters shown on the admin dashboard.
func (s *Store) GetStats(ctx context.Context) (*Stats, error) {
	const query = `
		SELECT
			(SELECT COUNT(*) FROM users)                                          AS users,
			(SELECT COUNT(*) FROM users WHERE banned)                             AS banned_users,
			(SELECT COUNT(*) FROM users WHERE is_pro)                             AS pro_users,
			(SELECT COUNT(*) FROM countries WHERE is_active)                      AS active_countries,
			(SELECT COUNT(*) FROM numbers WHERE is_active)                        AS active_numbers,
			(SELECT COUNT(*) FROM numbers WHERE is_active AND is_available)       AS available_numbers,
			(SELECT COUNT(*) FROM number_requests WHERE status = 'PENDING')       AS pending_requests,
			(SELECT COUNT(*) FROM number_requests WHERE status = 'SUCCESS')       AS delivered_codes`
	var st Stats
	if err := s.db.GetContext(ctx, &st, query); err != nil {
		return nil, fmt.Errorf("collect stats: %w", err)
	}
	return &st, nil
}
