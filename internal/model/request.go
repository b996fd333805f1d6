package model

import (
	"database/sql"
	"time"
)

// RequestStatus is the lifecycle state of a number request.
type RequestStatus string

const (
	// StatusPending marks a live reservation waiting for a code or expiry.
	StatusPending RequestStatus = "PENDING"
	// StatusSuccess marks a reservation whose code was delivered.
	StatusSuccess RequestStatus = "SUCCESS"
	// StatusExpired marks a reservation that outlived its lease window.
	StatusExpired RequestStatus = "EXPIRED"
	// StatusCancelled marks a reservation the user gave up on.
	StatusCancelled RequestStatus = "CANCELLED"
)

// Terminal reports whether the status permits no further transitions.
func (s RequestStatus) Terminal() bool {
	switch s {
	case StatusSuccess, StatusExpired, StatusCancelled:
		return true
	}
	return false
}

// NumberRequest is one reservation attempt for a number. At most one
// PENDING request exists per (user, number) pair; rows are kept forever
// for audit.
type NumberRequest struct {
	ID            int64          `db:"id"`
	UserID        int64          `db:"user_id"`
	NumberID      int64          `db:"number_id"`
	CorrelationID string         `db:"correlation_id"`
	Status        RequestStatus  `db:"status"`
	Code          sql.NullString `db:"code"`
	CreatedAt     time.Time      `db:"created_at"`
	ExpiresAt     time.Time      `db:"expires_at"`
}
