package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/obadahasan/numbot/internal/logger"
	"github.com/obadahasan/numbot/internal/model"
	"github.com/obadahasan/numbot/internal/repository"
)

// Ledger reasons recorded with every balance change.
const (
	ReasonDailyBonus  = "daily_bonus"
	ReasonInvite      = "invite_reward"
	ReasonProof       = "proof_reward"
	ReasonAdView      = "ad_view"
	ReasonTransferOut = "transfer_out"
	ReasonTransferIn  = "transfer_in"
	ReasonProPurchase = "pro_purchase"
	ReasonAdminAdjust = "admin_adjust"
	ReasonRefund      = "refund"
)

const (
	defaultDailyBonus   = 10
	defaultInvitePoints = 5
	defaultProofPoints  = 3
	leaderboardSize     = 10
)

// PointsLedger is the balance and history persistence behind the service.
type PointsLedger interface {
	ApplyChange(ctx context.Context, userID, change int64, reason string, relatedID int64, requireBalance bool) (bool, error)
	History(ctx context.Context, userID int64, limit int) ([]model.PointsEntry, error)
}

// PointsAccounts is the slice of user persistence the points service needs.
type PointsAccounts interface {
	Get(ctx context.Context, id int64) (*model.User, error)
	ClaimDailyBonus(ctx context.Context, id int64, now time.Time) (bool, error)
	IncrementInvites(ctx context.Context, id int64) error
	IncrementProofs(ctx context.Context, id int64) error
	TopByPoints(ctx context.Context, limit int) ([]model.User, error)
}

// Points manages the point economy: earning, spending, transfers, and the
// append-only ledger behind them.
type Points struct {
	ledger   PointsLedger
	accounts PointsAccounts
	settings *Settings
	audit    Auditor

	now func() time.Time
}

// NewPoints wires the points service. audit may be nil.
func NewPoints(ledger PointsLedger, accounts PointsAccounts, settings *Settings, audit Auditor) *Points {
	return &Points{
		ledger:   ledger,
		accounts: accounts,
		settings: settings,
		audit:    audit,
		now:      time.Now,
	}
}

func (p *Points) settingInt(ctx context.Context, key string, def int) int64 {
	if p.settings == nil {
		return int64(def)
	}
	return int64(p.settings.Int(ctx, key, def))
}

// Balance returns a user's current point balance.
func (p *Points) Balance(ctx context.Context, userID int64) (int64, error) {
	u, err := p.accounts.Get(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return 0, ErrUserNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("load user: %w", err)
	}
	return u.Points, nil
}

// ClaimDaily awards the daily bonus at most once per calendar day. The
// claim stamp is a conditional update, so double-taps award once.
func (p *Points) ClaimDaily(ctx context.Context, userID int64) (int64, error) {
	applied, err := p.accounts.ClaimDailyBonus(ctx, userID, p.now())
	if err != nil {
		return 0, fmt.Errorf("claim daily bonus: %w", err)
	}
	if !applied {
		return 0, ErrAlreadyClaimed
	}

	bonus := p.settingInt(ctx, SettingDailyBonusPoints, defaultDailyBonus)
	if _, err := p.ledger.ApplyChange(ctx, userID, bonus, ReasonDailyBonus, 0, false); err != nil {
		return 0, fmt.Errorf("award daily bonus: %w", err)
	}
	logger.SVCPoints.Info("daily bonus claimed",
		slog.String("event", "points.daily"),
		slog.Int64("user_id", userID),
		slog.Int64("points", bonus),
	)
	return bonus, nil
}

// Transfer moves points between users. The debit requires sufficient
// balance; if the credit then fails, the debit is refunded.
func (p *Points) Transfer(ctx context.Context, fromID, toID, amount int64) error {
	if fromID == toID {
		return ErrSelfTransfer
	}
	if amount <= 0 {
		return fmt.Errorf("transfer amount must be positive")
	}

	recipient, err := p.accounts.Get(ctx, toID)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrUserNotFound
	}
	if err != nil {
		return fmt.Errorf("load recipient: %w", err)
	}
	if recipient.Banned {
		return ErrUserNotFound
	}

	applied, err := p.ledger.ApplyChange(ctx, fromID, -amount, ReasonTransferOut, toID, true)
	if err != nil {
		return fmt.Errorf("debit sender: %w", err)
	}
	if !applied {
		return ErrInsufficientPoints
	}

	if _, err := p.ledger.ApplyChange(ctx, toID, amount, ReasonTransferIn, fromID, false); err != nil {
		if _, refundErr := p.ledger.ApplyChange(ctx, fromID, amount, ReasonRefund, toID, false); refundErr != nil {
			logger.SVCPoints.Error("transfer refund failed",
				slog.String("event", "points.transfer"),
				slog.Int64("from", fromID),
				slog.Int64("to", toID),
				slog.String("err", refundErr.Error()),
			)
		}
		return fmt.Errorf("credit recipient: %w", err)
	}

	logger.SVCPoints.Info("points transferred",
		slog.String("event", "points.transfer"),
		slog.Int64("from", fromID),
		slog.Int64("to", toID),
		slog.Int64("amount", amount),
	)
	return nil
}

// Charge debits points for a purchase, failing with ErrInsufficientPoints
// when the balance cannot cover it.
func (p *Points) Charge(ctx context.Context, userID, amount int64, reason string, relatedID int64) error {
	if amount <= 0 {
		return fmt.Errorf("charge amount must be positive")
	}
	applied, err := p.ledger.ApplyChange(ctx, userID, -amount, reason, relatedID, true)
	if err != nil {
		return fmt.Errorf("charge points: %w", err)
	}
	if !applied {
		return ErrInsufficientPoints
	}
	return nil
}

// Award credits points for a named reason.
func (p *Points) Award(ctx context.Context, userID, amount int64, reason string, relatedID int64) error {
	if amount <= 0 {
		return fmt.Errorf("award amount must be positive")
	}
	if _, err := p.ledger.ApplyChange(ctx, userID, amount, reason, relatedID, false); err != nil {
		return fmt.Errorf("award points: %w", err)
	}
	return nil
}

// RewardReferral credits the inviter for a freshly joined referral and
// bumps their invite counter.
func (p *Points) RewardReferral(ctx context.Context, inviterID, newUserID int64) error {
	reward := p.settingInt(ctx, SettingInvitePoints, defaultInvitePoints)
	if _, err := p.ledger.ApplyChange(ctx, inviterID, reward, ReasonInvite, newUserID, false); err != nil {
		return fmt.Errorf("award referral: %w", err)
	}
	if err := p.accounts.IncrementInvites(ctx, inviterID); err != nil {
		return fmt.Errorf("count invite: %w", err)
	}
	logger.SVCPoints.Info("referral rewarded",
		slog.String("event", "points.referral"),
		slog.Int64("inviter", inviterID),
		slog.Int64("invitee", newUserID),
		slog.Int64("points", reward),
	)
	return nil
}

// RewardProof credits a user for an accepted usage proof.
func (p *Points) RewardProof(ctx context.Context, userID int64) (int64, error) {
	reward := p.settingInt(ctx, SettingProofPoints, defaultProofPoints)
	if _, err := p.ledger.ApplyChange(ctx, userID, reward, ReasonProof, 0, false); err != nil {
		return 0, fmt.Errorf("award proof: %w", err)
	}
	if err := p.accounts.IncrementProofs(ctx, userID); err != nil {
		return 0, fmt.Errorf("count proof: %w", err)
	}
	return reward, nil
}

// AdminAdjust applies an arbitrary signed balance change on behalf of an
// administrator. Debits may push the balance negative on purpose.
func (p *Points) AdminAdjust(ctx context.Context, adminID, userID, change int64) error {
	if change == 0 {
		return fmt.Errorf("adjustment must be non-zero")
	}
	if _, err := p.accounts.Get(ctx, userID); errors.Is(err, repository.ErrNotFound) {
		return ErrUserNotFound
	} else if err != nil {
		return fmt.Errorf("load user: %w", err)
	}
	if _, err := p.ledger.ApplyChange(ctx, userID, change, ReasonAdminAdjust, adminID, false); err != nil {
		return fmt.Errorf("apply adjustment: %w", err)
	}
	if p.audit != nil {
		p.audit.Record(ctx, adminID, "POINTS_ADJUSTED",
			fmt.Sprintf("user_id=%d change=%d", userID, change))
	}
	return nil
}

// History returns the most recent ledger entries for a user.
func (p *Points) History(ctx context.Context, userID int64, limit int) ([]model.PointsEntry, error) {
	if limit <= 0 {
		limit = 10
	}
	return p.ledger.History(ctx, userID, limit)
}

// Leaderboard returns the top balances.
func (p *Points) Leaderboard(ctx context.Context) ([]model.User, error) {
	return p.accounts.TopByPoints(ctx, leaderboardSize)
}
