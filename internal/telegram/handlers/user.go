package handlers

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/obadahasan/numbot/internal/service"
	tghelpers "github.com/obadahasan/numbot/internal/telegram/helpers"
	"github.com/obadahasan/numbot/internal/telegram/keyboard"
)

func ctxOf(c tele.Context) context.Context {
	return tghelpers.BuildContext(c)
}

// Start registers the user, applies a referral payload, and greets.
func (h *Handlers) Start(c tele.Context) error {
	u := c.Sender()
	invitedBy := service.ParseReferral(c.Message().Payload)

	isNew, err := h.Users.Register(ctxOf(c), u.ID, u.Username, u.FirstName, u.LastName, invitedBy)
	if err != nil {
		return c.Send("Something went wrong, please try again.")
	}

	greeting := fmt.Sprintf("Welcome back, %s!", u.FirstName)
	if isNew {
		greeting = fmt.Sprintf("Welcome, %s! You can receive virtual numbers here and earn points for invites, daily check-ins, and ads.", u.FirstName)
	}
	return tghelpers.SendMD(c, greeting+"\n\nUse /numbers to browse available numbers, /balance for your points, /help for everything else.")
}

// Help lists the public commands.
func (h *Handlers) Help(c tele.Context) error {
	var b strings.Builder
	b.WriteString("*Commands*\n")
	b.WriteString("/numbers - browse virtual numbers by country\n")
	b.WriteString("/balance - your points and daily bonus\n")
	b.WriteString("/history - your recent number requests\n")
	b.WriteString("/transfer - send points to another user\n")
	b.WriteString("/referral - your invite link\n")
	b.WriteString("/leaderboard - top point holders\n")
	b.WriteString("/pro - PRO subscription\n")
	b.WriteString("/ads - watch an ad, earn points\n")
	return tghelpers.SendMD(c, b.String())
}

// Balance shows points and offers the daily bonus.
func (h *Handlers) Balance(c tele.Context) error {
	ctx := ctxOf(c)
	balance, err := h.Points.Balance(ctx, c.Sender().ID)
	if err != nil {
		return c.Send("Could not load your balance, please try again.")
	}

	markup := keyboard.InlineButtons([]keyboard.InlineBtn{
		{Text: "🎁 Claim daily bonus", Unique: cbDaily},
	})
	return tghelpers.SendMD(c, fmt.Sprintf("Your balance: *%s*", fmtPoints(balance)), markup)
}

// DailyBonus claims the once-per-day reward.
func (h *Handlers) DailyBonus(c tele.Context) error {
	bonus, err := h.Points.ClaimDaily(ctxOf(c), c.Sender().ID)
	switch {
	case errors.Is(err, service.ErrAlreadyClaimed):
		return tghelpers.EditOrSendMD(c, "You already claimed today's bonus. Come back tomorrow!")
	case err != nil:
		return c.Send("Could not claim the bonus, please try again.")
	}
	return tghelpers.EditOrSendMD(c, fmt.Sprintf("Daily bonus claimed: *+%s* 🎉", fmtPoints(bonus)))
}

// History renders the user's recent number requests.
func (h *Handlers) History(c tele.Context) error {
	reqs, err := h.Users.History(ctxOf(c), c.Sender().ID, 10)
	if err != nil {
		return c.Send("Could not load your history, please try again.")
	}
	if len(reqs) == 0 {
		return tghelpers.SendMD(c, "No number requests yet. Try /numbers!")
	}

	var b strings.Builder
	b.WriteString("*Your recent requests*\n")
	for _, r := range reqs {
		line := fmt.Sprintf("• #%d %s (%s)\n", r.ID, r.Status, r.CreatedAt.Format(time.DateOnly))
		b.WriteString(line)
	}
	return tghelpers.SendMD(c, b.String())
}

// Transfer sends points to another user: /transfer <user_id> <amount>.
func (h *Handlers) Transfer(c tele.Context) error {
	args := c.Args()
	if len(args) != 2 {
		return tghelpers.SendMD(c, "Usage: `/transfer <user_id> <amount>`")
	}
	toID, err1 := strconv.ParseInt(args[0], 10, 64)
	amount, err2 := strconv.ParseInt(args[1], 10, 64)
	if err1 != nil || err2 != nil || amount <= 0 {
		return tghelpers.SendMD(c, "Usage: `/transfer <user_id> <amount>`")
	}

	err := h.Points.Transfer(ctxOf(c), c.Sender().ID, toID, amount)
	switch {
	case errors.Is(err, service.ErrSelfTransfer):
		return c.Send("You cannot transfer points to yourself.")
	case errors.Is(err, service.ErrUserNotFound):
		return c.Send("That user is unknown.")
	case errors.Is(err, service.ErrInsufficientPoints):
		return c.Send("Not enough points for this transfer.")
	case err != nil:
		return c.Send("Transfer failed, please try again.")
	}
	return tghelpers.SendMD(c, fmt.Sprintf("Sent *%s* to `%d` ✅", fmtPoints(amount), toID))
}

// Referral shows the user's invite link.
func (h *Handlers) Referral(c tele.Context) error {
	link := service.ReferralLink(h.BotUsername, c.Sender().ID)
	return tghelpers.SendMD(c, fmt.Sprintf("Invite friends and earn points!\n\nYour link:\n%s", link))
}

// Leaderboard shows the top balances.
func (h *Handlers) Leaderboard(c tele.Context) error {
	top, err := h.Points.Leaderboard(ctxOf(c))
	if err != nil {
		return c.Send("Could not load the leaderboard, please try again.")
	}
	if len(top) == 0 {
		return c.Send("The leaderboard is empty.")
	}

	var b strings.Builder
	b.WriteString("*Leaderboard*\n")
	for i, u := range top {
		name := u.Username.String
		if name == "" {
			name = fmt.Sprintf("user %d", u.ID)
		}
		b.WriteString(fmt.Sprintf("%d. %s - %s\n", i+1, name, fmtPoints(u.Points)))
	}
	return tghelpers.SendMD(c, b.String())
}
