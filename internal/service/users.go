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

// ErrBanned rejects operations from banned accounts.
var ErrBanned = errors.New("user is banned")

// UserDirectory is the user persistence behind the service.
type UserDirectory interface {
	Get(ctx context.Context, id int64) (*model.User, error)
	Upsert(ctx context.Context, id int64, username, firstName, lastName string, invitedBy int64) (bool, error)
	SetBanned(ctx context.Context, id int64, banned bool) error
	ListIDs(ctx context.Context) ([]int64, error)
}

// RequestHistory exposes past reservations for the profile view.
type RequestHistory interface {
	HistoryByUser(ctx context.Context, userID int64, limit int) ([]model.NumberRequest, error)
}

// Referrer pays the inviter of a freshly joined user. Satisfied by *Points.
type Referrer interface {
	RewardReferral(ctx context.Context, inviterID, newUserID int64) error
}

// Users handles registration, referral attribution, bans, and profile
// lookups.
type Users struct {
	directory UserDirectory
	history   RequestHistory
	referrer  Referrer
	audit     Auditor
}

// NewUsers wires the user service. audit may be nil.
func NewUsers(directory UserDirectory, history RequestHistory, referrer Referrer, audit Auditor) *Users {
	return &Users{directory: directory, history: history, referrer: referrer, audit: audit}
}

// Register upserts the user on every /start. A first join carrying an
// inviter id pays the referral reward once; repeat starts only refresh the
// profile. It reports whether the user is new.
func (s *Users) Register(ctx context.Context, id int64, username, firstName, lastName string, invitedBy int64) (bool, error) {
	inserted, err := s.directory.Upsert(ctx, id, username, firstName, lastName, invitedBy)
	if err != nil {
		return false, fmt.Errorf("upsert user: %w", err)
	}
	if !inserted {
		return false, nil
	}

	logger.SVCUsers.Info("user joined",
		slog.String("event", "users.register"),
		slog.Int64("user_id", id),
		slog.Int64("invited_by", invitedBy),
	)
	if invitedBy != 0 && invitedBy != id && s.referrer != nil {
		if _, err := s.directory.Get(ctx, invitedBy); err == nil {
			if err := s.referrer.RewardReferral(ctx, invitedBy, id); err != nil {
				logger.SVCUsers.Error("referral reward failed",
					slog.String("event", "users.register"),
					slog.Int64("inviter", invitedBy),
					slog.String("err", err.Error()),
				)
			}
		}
	}
	return true, nil
}

// Get returns a user profile, rejecting unknown and banned accounts.
func (s *Users) Get(ctx context.Context, id int64) (*model.User, error) {
	u, err := s.directory.Get(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if u.Banned {
		return nil, ErrBanned
	}
	return u, nil
}

// Lookup returns any user row, banned or not, for administration.
func (s *Users) Lookup(ctx context.Context, id int64) (*model.User, error) {
	u, err := s.directory.Get(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	return u, err
}

// History returns the user's recent reservations, newest first.
func (s *Users) History(ctx context.Context, userID int64, limit int) ([]model.NumberRequest, error) {
	if limit <= 0 {
		limit = 10
	}
	return s.history.HistoryByUser(ctx, userID, limit)
}

// Ban blocks a user from the bot.
func (s *Users) Ban(ctx context.Context, adminID, userID int64) error {
	if err := s.directory.SetBanned(ctx, userID, true); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	if s.audit != nil {
		s.audit.Record(ctx, adminID, "USER_BANNED", fmt.Sprintf("user_id=%d", userID))
	}
	return nil
}

// Unban restores a banned user.
func (s *Users) Unban(ctx context.Context, adminID, userID int64) error {
	if err := s.directory.SetBanned(ctx, userID, false); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	if s.audit != nil {
		s.audit.Record(ctx, adminID, "USER_UNBANNED", fmt.Sprintf("user_id=%d", userID))
	}
	return nil
}

// IsBanned reports whether the account exists and is blocked. Unknown
// users are not banned; they simply have not joined yet.
func (s *Users) IsBanned(ctx context.Context, id int64) bool {
	u, err := s.directory.Get(ctx, id)
	if err != nil {
		return false
	}
	return u.Banned
}

// BroadcastTargets returns every reachable user id.
func (s *Users) BroadcastTargets(ctx context.Context) ([]int64, error) {
	return s.directory.ListIDs(ctx)
}

// ReferralLink builds the deep link a user shares to earn invite points.
func ReferralLink(botUsername string, userID int64) string {
	return fmt.Sprintf("https://t.me/%s?start=%d", botUsername, userID)
}

// ParseReferral extracts the inviter id from a /start payload. Returns 0
// for absent or malformed payloads.
func ParseReferral(payload string) int64 {
	var id int64
	if _, err := fmt.Sscanf(payload, "%d", &id); err != nil || id <= 0 {
		return 0
	}
	return id
}

// MemberSince formats the join date for profile rendering.
func MemberSince(u *model.User) string {
	return u.JoinedAt.Format(time.DateOnly)
}
