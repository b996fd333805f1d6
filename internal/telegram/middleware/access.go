package middleware

import (
	"context"

	tele "gopkg.in/telebot.v4"
)

// AdminOptions defines how admin-only checks behave.
type AdminOptions struct {
	AdminID  int64
	OnReject tele.HandlerFunc
}

// AdminOnly lets only the configured administrator reach downstream
// handlers.
func AdminOnly(opts AdminOptions) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			if opts.AdminID != 0 && c.Sender().ID != opts.AdminID {
				if opts.OnReject != nil {
					return opts.OnReject(c)
				}
				return nil
			}
			return next(c)
		}
	}
}

// BanChecker reports whether a user is blocked from the bot.
type BanChecker interface {
	IsBanned(ctx context.Context, userID int64) bool
}

// RejectBanned silently drops updates from banned users. The admin is
// never blocked.
func RejectBanned(checker BanChecker, adminID int64) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			user := c.Sender()
			if user == nil || checker == nil || user.ID == adminID {
				return next(c)
			}
			if checker.IsBanned(context.Background(), user.ID) {
				return nil
			}
			return next(c)
		}
	}
}
