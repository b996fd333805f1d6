package model

import (
	"database/sql"
	"time"
)

// User is a Telegram account known to the bot. The primary key is the
// Telegram user id.
type User struct {
	ID              int64          `db:"id"`
	Username        sql.NullString `db:"username"`
	FirstName       sql.NullString `db:"first_name"`
	LastName        sql.NullString `db:"last_name"`
	JoinedAt        time.Time      `db:"joined_at"`
	Banned          bool           `db:"banned"`
	IsAdmin         bool           `db:"is_admin"`
	Points          int64          `db:"points"`
	InvitedBy       sql.NullInt64  `db:"invited_by"`
	TotalInvites    int            `db:"total_invites"`
	IsPro           bool           `db:"is_pro"`
	ProExpiry       sql.NullTime   `db:"pro_expiry"`
	LastDailyBonus  sql.NullTime   `db:"last_daily_bonus"`
	ProofsSubmitted int            `db:"proofs_submitted"`
}

// PointsEntry is one row of the append-only points ledger.
type PointsEntry struct {
	ID        int64         `db:"id"`
	UserID    int64         `db:"user_id"`
	Change    int64         `db:"points_change"`
	Reason    string        `db:"reason"`
	RelatedID sql.NullInt64 `db:"related_id"`
	CreatedAt time.Time     `db:"created_at"`
}
