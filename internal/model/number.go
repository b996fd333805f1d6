package model

import (
	"database/sql"
	"time"
)

// Number is a shared virtual phone number offered to users. A number is
// either available (may be requested) or held by exactly one pending
// request. Used numbers stay retired until an administrator reactivates
// them.
type Number struct {
	ID             int64          `db:"id"`
	CountryID      int64          `db:"country_id"`
	Value          string         `db:"value"`
	Platform       string         `db:"platform"`
	IsPremium      bool           `db:"is_premium"`
	PremiumPattern sql.NullString `db:"premium_pattern"`
	IsAvailable    bool           `db:"is_available"`
	IsActive       bool           `db:"is_active"`
	TimesUsed      int            `db:"times_used"`
	AddedBy        int64          `db:"added_by"`
	AddedAt        time.Time      `db:"added_at"`
	LastUsedAt     sql.NullTime   `db:"last_used_at"`
	LastUsedBy     sql.NullInt64  `db:"last_used_by"`
}

// Country groups numbers for presentation.
type Country struct {
	ID       int64  `db:"id"`
	Name     string `db:"name"`
	Flag     string `db:"flag"`
	IsActive bool   `db:"is_active"`

	// NumberCount is populated by listing queries only.
	NumberCount int `db:"number_count"`
}
