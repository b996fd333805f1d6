package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/obadahasan/numbot/internal/logger"
	"github.com/obadahasan/numbot/internal/model"
	"github.com/obadahasan/numbot/internal/oracle"
	"github.com/obadahasan/numbot/internal/repository"
)

// ReservationStore is the persistence contract of the reservation
// manager. The repository implements it with conditional updates so that
// concurrent acquisitions and finalizations have exactly one winner.
type ReservationStore interface {
	GetNumber(ctx context.Context, numberID int64) (*model.Number, error)
	AcquireNumber(ctx context.Context, numberID, userID int64, correlationID string, now, expiresAt time.Time) (*model.NumberRequest, *model.Number, error)
	FindPendingRequest(ctx context.Context, userID, numberID int64) (*model.NumberRequest, error)
	GetRequest(ctx context.Context, requestID int64) (*model.NumberRequest, error)
	FinalizeRequest(ctx context.Context, requestID int64, status model.RequestStatus, code string) (bool, error)
	ListExpiredPending(ctx context.Context, cutoff time.Time, limit int) ([]model.NumberRequest, error)
}

// Auditor records user-visible actions for the admin trail.
type Auditor interface {
	Record(ctx context.Context, who int64, action, meta string)
}

// PollState classifies the outcome of one poll.
type PollState int

const (
	// PollPending means no code yet; the user should poll again.
	PollPending PollState = iota
	// PollCodeDelivered means the code arrived and the reservation is done.
	PollCodeDelivered
	// PollExpired means the lease window passed before a code arrived.
	PollExpired
	// PollCancelled means the reservation was cancelled concurrently.
	PollCancelled
)

// PollResult is what the presentation layer renders after a poll.
type PollResult struct {
	State PollState
	Code  string
}

// Reservation is what the presentation layer renders after initiate.
type Reservation struct {
	Request *model.NumberRequest
	Number  *model.Number
}

const (
	defaultLease   = 5 * time.Minute
	sweepBatchSize = 100
)

// ReservationManager is the sole authority over number availability and
// request status. Every reservation operation funnels through it.
type ReservationManager struct {
	store    ReservationStore
	oracle   oracle.Oracle
	settings *Settings
	audit    Auditor

	now   func() time.Time
	newID func() string
}

// NewReservationManager wires the manager. audit may be nil.
func NewReservationManager(store ReservationStore, orc oracle.Oracle, settings *Settings, audit Auditor) *ReservationManager {
	return &ReservationManager{
		store:    store,
		oracle:   orc,
		settings: settings,
		audit:    audit,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

func (m *ReservationManager) leaseDuration(ctx context.Context) time.Duration {
	if m.settings == nil {
		return defaultLease
	}
	return m.settings.Minutes(ctx, SettingLeaseMinutes, defaultLease)
}

// Initiate reserves a number for the user: it generates a correlation id,
// flips the number to held, and records a PENDING request, all in one
// unit. Fails with ErrNumberUnavailable when the number does not exist or
// another user holds it; availability is a point-in-time fact and the
// caller should re-list instead of retrying blindly.
func (m *ReservationManager) Initiate(ctx context.Context, userID, numberID int64) (*Reservation, error) {
	now := m.now()
	correlationID := m.newID()
	expiresAt := now.Add(m.leaseDuration(ctx))

	req, num, err := m.store.AcquireNumber(ctx, numberID, userID, correlationID, now, expiresAt)
	if errors.Is(err, repository.ErrConflict) || errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNumberUnavailable
	}
	if err != nil {
		logger.SVCReservations.Error("initiate failed",
			slog.String("event", "reservation.initiate"),
			slog.Int64("user_id", userID),
			slog.Int64("number_id", numberID),
			slog.String("err", err.Error()),
		)
		return nil, fmt.Errorf("initiate reservation: %w", err)
	}

	if m.audit != nil {
		m.audit.Record(ctx, userID, "NUMBER_REQUEST_INITIATED",
			fmt.Sprintf("number_id=%d correlation_id=%s", numberID, correlationID))
	}
	logger.SVCReservations.Info("reservation initiated",
		slog.String("event", "reservation.initiate"),
		slog.Int64("user_id", userID),
		slog.Int64("number_id", numberID),
		slog.String("correlation_id", correlationID),
		slog.Time("expires_at", expiresAt),
	)
	return &Reservation{Request: req, Number: num}, nil
}

// Poll checks whether the code arrived for the user's live reservation.
// Expiry is decided only by the lease timestamp; oracle failures count as
// "no code yet". Polling is idempotent: a lost finalize race reports the
// actual terminal outcome without mutating anything.
func (m *ReservationManager) Poll(ctx context.Context, userID, numberID int64) (*PollResult, error) {
	req, err := m.store.FindPendingRequest(ctx, userID, numberID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNoActiveRequest
	}
	if err != nil {
		return nil, fmt.Errorf("find pending request: %w", err)
	}

	now := m.now()
	if now.After(req.ExpiresAt) {
		return m.finalize(ctx, req, model.StatusExpired, "")
	}

	code, err := m.oracle.CheckDelivery(ctx, req.CorrelationID)
	if err != nil {
		// Fail-open: a flaky oracle must never expire or fail a lease.
		logger.SVCReservations.Warn("oracle unreachable",
			slog.String("event", "reservation.poll"),
			slog.String("correlation_id", req.CorrelationID),
			slog.String("err", err.Error()),
		)
		return &PollResult{State: PollPending}, nil
	}
	if code == "" {
		return &PollResult{State: PollPending}, nil
	}

	return m.finalize(ctx, req, model.StatusSuccess, code)
}

// Cancel gives up the user's live reservation and returns the number to
// the pool.
func (m *ReservationManager) Cancel(ctx context.Context, userID, numberID int64) error {
	req, err := m.store.FindPendingRequest(ctx, userID, numberID)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrNoActiveRequest
	}
	if err != nil {
		return fmt.Errorf("find pending request: %w", err)
	}

	applied, err := m.store.FinalizeRequest(ctx, req.ID, model.StatusCancelled, "")
	if err != nil {
		return fmt.Errorf("cancel reservation: %w", err)
	}
	if !applied {
		// Finalized concurrently (code delivery or expiry sweep).
		return ErrNoActiveRequest
	}

	if m.audit != nil {
		m.audit.Record(ctx, userID, "NUMBER_REQUEST_CANCELLED",
			fmt.Sprintf("number_id=%d", numberID))
	}
	logger.SVCReservations.Info("reservation cancelled",
		slog.String("event", "reservation.cancel"),
		slog.Int64("user_id", userID),
		slog.Int64("number_id", numberID),
	)
	return nil
}

// finalize applies a terminal status through the store's conditional
// update. When the update loses a race, the request's actual terminal
// state is reported instead.
func (m *ReservationManager) finalize(ctx context.Context, req *model.NumberRequest, status model.RequestStatus, code string) (*PollResult, error) {
	applied, err := m.store.FinalizeRequest(ctx, req.ID, status, code)
	if err != nil {
		return nil, fmt.Errorf("finalize request: %w", err)
	}
	if !applied {
		return m.terminalOutcome(ctx, req.ID)
	}

	switch status {
	case model.StatusSuccess:
		if m.audit != nil {
			m.audit.Record(ctx, req.UserID, "NUMBER_REQUEST_SUCCESS",
				fmt.Sprintf("number_id=%d", req.NumberID))
		}
		logger.SVCReservations.Info("code delivered",
			slog.String("event", "reservation.success"),
			slog.Int64("user_id", req.UserID),
			slog.Int64("number_id", req.NumberID),
			slog.String("correlation_id", req.CorrelationID),
		)
		return &PollResult{State: PollCodeDelivered, Code: code}, nil
	case model.StatusExpired:
		if m.audit != nil {
			m.audit.Record(ctx, req.UserID, "NUMBER_REQUEST_EXPIRED",
				fmt.Sprintf("number_id=%d", req.NumberID))
		}
		logger.SVCReservations.Info("reservation expired",
			slog.String("event", "reservation.expire"),
			slog.Int64("user_id", req.UserID),
			slog.Int64("number_id", req.NumberID),
		)
		return &PollResult{State: PollExpired}, nil
	default:
		return &PollResult{State: PollCancelled}, nil
	}
}

// terminalOutcome reads the request after a lost finalize race and maps
// its terminal status to a poll result.
func (m *ReservationManager) terminalOutcome(ctx context.Context, requestID int64) (*PollResult, error) {
	req, err := m.store.GetRequest(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("load finalized request: %w", err)
	}
	switch req.Status {
	case model.StatusSuccess:
		return &PollResult{State: PollCodeDelivered, Code: req.Code.String}, nil
	case model.StatusExpired:
		return &PollResult{State: PollExpired}, nil
	case model.StatusCancelled:
		return &PollResult{State: PollCancelled}, nil
	default:
		// Still pending: the racing finalize rolled back. Report pending
		// and let the next poll settle it.
		return &PollResult{State: PollPending}, nil
	}
}

// SweepExpired proactively finalizes stale PENDING requests so numbers
// return to the pool without waiting for a poll. It uses the same
// conditional guard as Poll, so racing with a live poll is harmless.
func (m *ReservationManager) SweepExpired(ctx context.Context) (int, error) {
	stale, err := m.store.ListExpiredPending(ctx, m.now(), sweepBatchSize)
	if err != nil {
		return 0, fmt.Errorf("list expired requests: %w", err)
	}

	released := 0
	for _, req := range stale {
		applied, err := m.store.FinalizeRequest(ctx, req.ID, model.StatusExpired, "")
		if err != nil {
			logger.SVCReservations.Error("sweep finalize failed",
				slog.String("event", "reservation.sweep"),
				slog.Int64("request_id", req.ID),
				slog.String("err", err.Error()),
			)
			continue
		}
		if applied {
			released++
		}
	}
	if released > 0 {
		logger.SVCReservations.Info("expired reservations released",
			slog.String("event", "reservation.sweep"),
			slog.Int("count", released),
		)
	}
	return released, nil
}

// RunSweeper finalizes stale reservations on a fixed interval until the
// context is cancelled.
func (m *ReservationManager) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := m.SweepExpired(ctx); err != nil {
				logger.SVCReservations.Error("sweep failed",
					slog.String("event", "reservation.sweep"),
					slog.String("err", err.Error()),
				)
			}
		}
	}
}
