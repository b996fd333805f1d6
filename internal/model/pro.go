package model

import (
	"database/sql"
	"time"
)

// ProSubscription records one PRO activation for history.
type ProSubscription struct {
	ID           int64     `db:"id"`
	UserID       int64     `db:"user_id"`
	StartedAt    time.Time `db:"started_at"`
	ExpiresAt    time.Time `db:"expires_at"`
	DurationDays int       `db:"duration_days"`
	Method       string    `db:"method"`
	IsActive     bool      `db:"is_active"`
}

// Activation methods stored in pro_subscriptions.method.
const (
	ProMethodPoints      = "points"
	ProMethodCode        = "code"
	ProMethodAdmin       = "admin"
	ProMethodAdminExtend = "admin_extend"
)

// ProCode is a redeemable voucher granting PRO for a fixed duration.
type ProCode struct {
	Code         string        `db:"code"`
	DurationDays int           `db:"duration_days"`
	CreatedBy    int64         `db:"created_by"`
	UsedBy       sql.NullInt64 `db:"used_by"`
	UsedAt       sql.NullTime  `db:"used_at"`
	IsActive     bool          `db:"is_active"`
}
