package service

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/obadahasan/numbot/internal/logger"
)

// Setting keys read by the services. Values live in the settings table so
// administrators can change them without a redeploy.
const (
	SettingLeaseMinutes     = "lease_minutes"
	SettingDailyBonusPoints = "daily_bonus_points"
	SettingInvitePoints     = "invite_points"
	SettingProofPoints      = "proof_points"
	SettingProDaysDuration  = "pro_days_duration"
	SettingProPointsCost    = "pro_points_cost"
)

// SettingsReader is the persistence contract the cache refreshes from.
type SettingsReader interface {
	Get(ctx context.Context, key string) (string, error)
}

type cachedValue struct {
	value     string
	fetchedAt time.Time
}

// Settings serves mutable runtime configuration with a small TTL cache,
// so every operation sees reasonably fresh values without a query per
// lookup.
type Settings struct {
	repo SettingsReader
	ttl  time.Duration
	now  func() time.Time

	mu    sync.Mutex
	cache map[string]cachedValue
}

// NewSettings builds the cache. A non-positive ttl disables caching.
func NewSettings(repo SettingsReader, ttl time.Duration) *Settings {
	return &Settings{
		repo:  repo,
		ttl:   ttl,
		now:   time.Now,
		cache: make(map[string]cachedValue),
	}
}

// String returns the raw setting value, or def when missing or unreadable.
func (s *Settings) String(ctx context.Context, key, def string) string {
	s.mu.Lock()
	if c, ok := s.cache[key]; ok && s.ttl > 0 && s.now().Sub(c.fetchedAt) < s.ttl {
		s.mu.Unlock()
		return c.value
	}
	s.mu.Unlock()

	value, err := s.repo.Get(ctx, key)
	if err != nil {
		logger.SVCCatalog.Debug("setting fallback",
			slog.String("event", "settings.get"),
			slog.String("key", key),
			slog.String("err", err.Error()),
		)
		return def
	}

	s.mu.Lock()
	s.cache[key] = cachedValue{value: value, fetchedAt: s.now()}
	s.mu.Unlock()
	return value
}

// Int parses the setting as an integer, falling back to def.
func (s *Settings) Int(ctx context.Context, key string, def int) int {
	raw := s.String(ctx, key, "")
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}

// Int64 parses the setting as an int64, falling back to def.
func (s *Settings) Int64(ctx context.Context, key string, def int64) int64 {
	raw := s.String(ctx, key, "")
	if raw == "" {
		return def
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return def
	}
	return v
}

// Minutes reads an integer setting and returns it as a duration of
// minutes, falling back to def.
func (s *Settings) Minutes(ctx context.Context, key string, def time.Duration) time.Duration {
	v := s.Int(ctx, key, -1)
	if v <= 0 {
		return def
	}
	return time.Duration(v) * time.Minute
}

// Invalidate drops a cached key after an admin update.
func (s *Settings) Invalidate(key string) {
	s.mu.Lock()
	delete(s.cache, key)
	s.mu.Unlock()
}
