package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/obadahasan/numbot/internal/logger"
	"github.com/obadahasan/numbot/internal/model"
	"github.com/obadahasan/numbot/internal/repository"
)

const (
	defaultProDays  = 30
	defaultProCost  = 100
	proCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	proCodeGroupLen = 4
	proCodeGroups   = 3
	proCodePrefix   = "PRO"
)

// ProSubscriptions is the subscription and voucher persistence behind the
// service.
type ProSubscriptions interface {
	RecordSubscription(ctx context.Context, userID int64, startedAt, expiresAt time.Time, durationDays int, method string) error
	DeactivateSubscriptions(ctx context.Context, userID int64) error
	CreateCode(ctx context.Context, code string, durationDays int, createdBy int64) error
	RedeemCode(ctx context.Context, code string, userID int64, now time.Time) (*model.ProCode, error)
	ListCodes(ctx context.Context, active bool) ([]model.ProCode, error)
	ListActiveProUsers(ctx context.Context) ([]model.User, error)
}

// ProAccounts is the slice of user persistence the PRO service needs.
type ProAccounts interface {
	Get(ctx context.Context, id int64) (*model.User, error)
	SetPro(ctx context.Context, id int64, isPro bool, expiry time.Time) error
}

// Charger debits points for purchases. Satisfied by *Points.
type Charger interface {
	Charge(ctx context.Context, userID, amount int64, reason string, relatedID int64) error
}

// Pro manages PRO subscriptions: point purchases, voucher redemption,
// admin grants, and lazy expiry of the cached flag.
type Pro struct {
	subs     ProSubscriptions
	accounts ProAccounts
	charger  Charger
	settings *Settings
	audit    Auditor

	now func() time.Time
}

// NewPro wires the PRO service. audit may be nil.
func NewPro(subs ProSubscriptions, accounts ProAccounts, charger Charger, settings *Settings, audit Auditor) *Pro {
	return &Pro{
		subs:     subs,
		accounts: accounts,
		charger:  charger,
		settings: settings,
		audit:    audit,
		now:      time.Now,
	}
}

func (p *Pro) settingInt(ctx context.Context, key string, def int) int {
	if p.settings == nil {
		return def
	}
	return p.settings.Int(ctx, key, def)
}

// IsPro reports whether a user currently holds PRO. The cached flag is
// expired lazily: a stale row is corrected on first read past expiry.
func (p *Pro) IsPro(ctx context.Context, userID int64) (bool, error) {
	u, err := p.accounts.Get(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load user: %w", err)
	}
	if !u.IsPro {
		return false, nil
	}
	if u.ProExpiry.Valid && p.now().After(u.ProExpiry.Time) {
		if err := p.expire(ctx, userID); err != nil {
			logger.SVCPro.Error("lazy expiry failed",
				slog.String("event", "pro.expire"),
				slog.Int64("user_id", userID),
				slog.String("err", err.Error()),
			)
		}
		return false, nil
	}
	return true, nil
}

func (p *Pro) expire(ctx context.Context, userID int64) error {
	if err := p.accounts.SetPro(ctx, userID, false, time.Time{}); err != nil {
		return err
	}
	if err := p.subs.DeactivateSubscriptions(ctx, userID); err != nil {
		return err
	}
	logger.SVCPro.Info("subscription expired",
		slog.String("event", "pro.expire"),
		slog.Int64("user_id", userID),
	)
	return nil
}

// activate grants or extends PRO for durationDays. An active subscription
// extends from its current expiry, not from now.
func (p *Pro) activate(ctx context.Context, userID int64, durationDays int, method string) (time.Time, error) {
	u, err := p.accounts.Get(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return time.Time{}, ErrUserNotFound
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("load user: %w", err)
	}

	now := p.now()
	start := now
	if u.IsPro && u.ProExpiry.Valid && u.ProExpiry.Time.After(now) {
		start = u.ProExpiry.Time
	}
	expiry := start.AddDate(0, 0, durationDays)

	if err := p.accounts.SetPro(ctx, userID, true, expiry); err != nil {
		return time.Time{}, fmt.Errorf("set pro flag: %w", err)
	}
	if err := p.subs.RecordSubscription(ctx, userID, now, expiry, durationDays, method); err != nil {
		return time.Time{}, fmt.Errorf("record subscription: %w", err)
	}

	logger.SVCPro.Info("subscription activated",
		slog.String("event", "pro.activate"),
		slog.Int64("user_id", userID),
		slog.String("method", method),
		slog.Int("days", durationDays),
		slog.Time("expires_at", expiry),
	)
	return expiry, nil
}

// BuyWithPoints purchases PRO with the configured point cost.
func (p *Pro) BuyWithPoints(ctx context.Context, userID int64) (time.Time, error) {
	cost := int64(p.settingInt(ctx, SettingProPointsCost, defaultProCost))
	days := p.settingInt(ctx, SettingProDaysDuration, defaultProDays)

	if err := p.charger.Charge(ctx, userID, cost, ReasonProPurchase, 0); err != nil {
		return time.Time{}, err
	}
	expiry, err := p.activate(ctx, userID, days, model.ProMethodPoints)
	if err != nil {
		return time.Time{}, err
	}
	return expiry, nil
}

// Redeem consumes a voucher code and activates its PRO duration. Each
// voucher works exactly once; invalid or spent codes fail with
// ErrCodeInvalid.
func (p *Pro) Redeem(ctx context.Context, userID int64, code string) (time.Time, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return time.Time{}, ErrCodeInvalid
	}

	pc, err := p.subs.RedeemCode(ctx, code, userID, p.now())
	if errors.Is(err, repository.ErrConflict) {
		return time.Time{}, ErrCodeInvalid
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("redeem code: %w", err)
	}
	return p.activate(ctx, userID, pc.DurationDays, model.ProMethodCode)
}

// Grant activates PRO for a user on behalf of an administrator.
func (p *Pro) Grant(ctx context.Context, adminID, userID int64, durationDays int) (time.Time, error) {
	if durationDays <= 0 {
		durationDays = p.settingInt(ctx, SettingProDaysDuration, defaultProDays)
	}
	method := model.ProMethodAdmin
	if u, err := p.accounts.Get(ctx, userID); err == nil && u.IsPro {
		method = model.ProMethodAdminExtend
	}
	expiry, err := p.activate(ctx, userID, durationDays, method)
	if err != nil {
		return time.Time{}, err
	}
	if p.audit != nil {
		p.audit.Record(ctx, adminID, "PRO_GRANTED",
			fmt.Sprintf("user_id=%d days=%d", userID, durationDays))
	}
	return expiry, nil
}

// Revoke removes PRO from a user immediately.
func (p *Pro) Revoke(ctx context.Context, adminID, userID int64) error {
	if _, err := p.accounts.Get(ctx, userID); errors.Is(err, repository.ErrNotFound) {
		return ErrUserNotFound
	} else if err != nil {
		return fmt.Errorf("load user: %w", err)
	}
	if err := p.expire(ctx, userID); err != nil {
		return err
	}
	if p.audit != nil {
		p.audit.Record(ctx, adminID, "PRO_REVOKED", fmt.Sprintf("user_id=%d", userID))
	}
	return nil
}

// CreateCode mints a fresh voucher for administrators.
func (p *Pro) CreateCode(ctx context.Context, adminID int64, durationDays int) (string, error) {
	if durationDays <= 0 {
		durationDays = p.settingInt(ctx, SettingProDaysDuration, defaultProDays)
	}
	code, err := generateProCode()
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	if err := p.subs.CreateCode(ctx, code, durationDays, adminID); err != nil {
		return "", fmt.Errorf("store code: %w", err)
	}
	if p.audit != nil {
		p.audit.Record(ctx, adminID, "PRO_CODE_CREATED", fmt.Sprintf("days=%d", durationDays))
	}
	return code, nil
}

// ListCodes returns vouchers for administration.
func (p *Pro) ListCodes(ctx context.Context, active bool) ([]model.ProCode, error) {
	return p.subs.ListCodes(ctx, active)
}

// ActiveUsers lists users currently flagged PRO.
func (p *Pro) ActiveUsers(ctx context.Context) ([]model.User, error) {
	return p.subs.ListActiveProUsers(ctx)
}

// generateProCode mints codes like PRO-7K2M-9XQW-4HNT from an alphabet
// without lookalike characters.
func generateProCode() (string, error) {
	raw := make([]byte, proCodeGroups*proCodeGroupLen)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	var b strings.Builder
	b.WriteString(proCodePrefix)
	for i, c := range raw {
		if i%proCodeGroupLen == 0 {
			b.WriteByte('-')
		}
		b.WriteByte(proCodeAlphabet[int(c)%len(proCodeAlphabet)])
	}
	return b.String(), nil
}
