package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/obadahasan/numbot/internal/logger"
	"github.com/obadahasan/numbot/internal/model"
	"github.com/obadahasan/numbot/internal/repository"
)

// ErrNoAds means the user has seen every active ad.
var ErrNoAds = errors.New("no unseen ads")

// Ad types accepted by the ads service.
const (
	AdTypeText  = "text"
	AdTypePhoto = "photo"
	AdTypeVideo = "video"
)

// AdInventory is the ads persistence behind the service.
type AdInventory interface {
	Create(ctx context.Context, adType, content, mediaFileID string, rewardPoints, createdBy int64) (int64, error)
	Get(ctx context.Context, id int64) (*model.Ad, error)
	NextUnseen(ctx context.Context, userID int64) (*model.Ad, error)
	RecordView(ctx context.Context, adID, userID int64) (bool, error)
	Deactivate(ctx context.Context, id int64) error
}

// Awarder credits points for earned rewards. Satisfied by *Points.
type Awarder interface {
	Award(ctx context.Context, userID, amount int64, reason string, relatedID int64) error
}

// Ads serves sponsored content and pays the per-view reward exactly once
// per user and ad.
type Ads struct {
	inventory AdInventory
	awarder   Awarder
	audit     Auditor
}

// NewAds wires the ads service. audit may be nil.
func NewAds(inventory AdInventory, awarder Awarder, audit Auditor) *Ads {
	return &Ads{inventory: inventory, awarder: awarder, audit: audit}
}

// Next returns the oldest active ad the user has not collected yet.
func (a *Ads) Next(ctx context.Context, userID int64) (*model.Ad, error) {
	ad, err := a.inventory.NextUnseen(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNoAds
	}
	if err != nil {
		return nil, fmt.Errorf("next ad: %w", err)
	}
	return ad, nil
}

// CollectReward pays the ad's reward to the user. The view row's unique
// constraint makes repeat collections no-ops.
func (a *Ads) CollectReward(ctx context.Context, adID, userID int64) (int64, error) {
	ad, err := a.inventory.Get(ctx, adID)
	if errors.Is(err, repository.ErrNotFound) {
		return 0, ErrNoAds
	}
	if err != nil {
		return 0, fmt.Errorf("load ad: %w", err)
	}

	first, err := a.inventory.RecordView(ctx, adID, userID)
	if err != nil {
		return 0, fmt.Errorf("record view: %w", err)
	}
	if !first {
		return 0, ErrAlreadyClaimed
	}

	if err := a.awarder.Award(ctx, userID, ad.RewardPoints, ReasonAdView, adID); err != nil {
		return 0, err
	}
	logger.SVCAds.Info("ad reward collected",
		slog.String("event", "ads.reward"),
		slog.Int64("ad_id", adID),
		slog.Int64("user_id", userID),
		slog.Int64("points", ad.RewardPoints),
	)
	return ad.RewardPoints, nil
}

// Create registers a new ad for administrators.
func (a *Ads) Create(ctx context.Context, adminID int64, adType, content, mediaFileID string, rewardPoints int64) (int64, error) {
	adType = strings.ToLower(strings.TrimSpace(adType))
	switch adType {
	case AdTypeText, AdTypePhoto, AdTypeVideo:
	default:
		return 0, fmt.Errorf("unsupported ad type %q", adType)
	}
	if strings.TrimSpace(content) == "" {
		return 0, fmt.Errorf("ad content is required")
	}
	if adType != AdTypeText && mediaFileID == "" {
		return 0, fmt.Errorf("media ads require a file id")
	}
	if rewardPoints <= 0 {
		return 0, fmt.Errorf("reward must be positive")
	}

	id, err := a.inventory.Create(ctx, adType, content, mediaFileID, rewardPoints, adminID)
	if err != nil {
		return 0, fmt.Errorf("create ad: %w", err)
	}
	if a.audit != nil {
		a.audit.Record(ctx, adminID, "AD_CREATED",
			fmt.Sprintf("ad_id=%d type=%s reward=%d", id, adType, rewardPoints))
	}
	return id, nil
}

// Deactivate retires an ad from rotation.
func (a *Ads) Deactivate(ctx context.Context, adminID, adID int64) error {
	if err := a.inventory.Deactivate(ctx, adID); err != nil {
		return err
	}
	if a.audit != nil {
		a.audit.Record(ctx, adminID, "AD_DEACTIVATED", fmt.Sprintf("ad_id=%d", adID))
	}
	return nil
}
