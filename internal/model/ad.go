package model

import (
	"database/sql"
	"time"
)

// Ad is a sponsored message users can view once for a points reward.
type Ad struct {
	ID           int64          `db:"id"`
	AdType       string         `db:"ad_type"`
	Content      string         `db:"content"`
	MediaFileID  sql.NullString `db:"media_file_id"`
	RewardPoints int64          `db:"reward_points"`
	IsActive     bool           `db:"is_active"`
	CreatedBy    int64          `db:"created_by"`
	CreatedAt    time.Time      `db:"created_at"`
}

// AdView marks that a user already collected the reward for an ad.
type AdView struct {
	ID       int64     `db:"id"`
	AdID     int64     `db:"ad_id"`
	UserID   int64     `db:"user_id"`
	ViewedAt time.Time `db:"viewed_at"`
}
