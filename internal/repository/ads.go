package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/obadahasan/numbot/internal/model"
)

// AdsRepo provides data access to ads and their view log.
type AdsRepo struct {
	db *sqlx.DB
}

// NewAdsRepo returns an AdsRepo bound to the provided database.
func NewAdsRepo(db *sqlx.DB) *AdsRepo { return &AdsRepo{db: db} }

const adColumns = `id, ad_type, content, media_file_id, reward_points, is_active, created_by, created_at`

// Create stores a new ad and returns its id.
func (r *AdsRepo) Create(ctx context.Context, adType, content, mediaFileID string, rewardPoints, createdBy int64) (int64, error) {
	var media sql.NullString
	if mediaFileID != "" {
		media = sql.NullString{String: mediaFileID, Valid: true}
	}
	var id int64
	err := r.db.GetContext(ctx, &id,
		`INSERT INTO ads (ad_type, content, media_file_id, reward_points, created_by)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id`,
		adType, content, media, rewardPoints, createdBy)
	if err != nil {
		return 0, err
	}
	return id, nil
}

// Get fetches an active ad by id.
func (r *AdsRepo) Get(ctx context.Context, id int64) (*model.Ad, error) {
	var ad model.Ad
	err := r.db.GetContext(ctx, &ad,
		`SELECT `+adColumns+` FROM ads WHERE id = $1 AND is_active`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &ad, nil
}

// NextUnseen returns the oldest active ad the user has not viewed yet.
func (r *AdsRepo) NextUnseen(ctx context.Context, userID int64) (*model.Ad, error) {
	var ad model.Ad
	err := r.db.GetContext(ctx, &ad,
		`SELECT `+adColumns+` FROM ads a
		 WHERE a.is_active
		   AND NOT EXISTS (SELECT 1 FROM ad_views v WHERE v.ad_id = a.id AND v.user_id = $1)
		 ORDER BY a.created_at
		 LIMIT 1`,
		userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &ad, nil
}

// RecordView marks the ad as seen. The unique (ad, user) constraint makes
// the first insert win; it reports whether this call was the first view.
func (r *AdsRepo) RecordView(ctx context.Context, adID, userID int64) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO ad_views (ad_id, user_id) VALUES ($1, $2)
		 ON CONFLICT (ad_id, user_id) DO NOTHING`,
		adID, userID)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// Deactivate retires an ad from rotation.
func (r *AdsRepo) Deactivate(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE ads SET is_active = FALSE WHERE id = $1 AND is_active`, id)
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
