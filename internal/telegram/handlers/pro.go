package handlers

import (
	"errors"
	"fmt"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/obadahasan/numbot/internal/service"
	"github.com/obadahasan/numbot/internal/telegram/callbacks"
	tghelpers "github.com/obadahasan/numbot/internal/telegram/helpers"
	"github.com/obadahasan/numbot/internal/telegram/keyboard"
)

// ProStatus shows the caller's subscription and the ways to get PRO.
func (h *Handlers) ProStatus(c tele.Context) error {
	ctx := ctxOf(c)
	userID := c.Sender().ID

	active, err := h.Pro.IsPro(ctx, userID)
	if err != nil {
		return c.Send("Could not load your subscription, please try again.")
	}
	if active {
		text := "*PRO is active* ⭐\n\nYou see premium numbers and can search by pattern."
		if u, err := h.Users.Get(ctx, userID); err == nil && u.ProExpiry.Valid {
			text += fmt.Sprintf("\nExpires on %s.", u.ProExpiry.Time.Format(time.DateOnly))
		}
		return tghelpers.SendMD(c, text)
	}

	markup := keyboard.InlineButtonsRows(
		[]keyboard.InlineBtn{{Text: "💳 Buy with points", Unique: cbProBuy}},
		[]keyboard.InlineBtn{{Text: "🎟 Redeem a code", Unique: cbProRedeem}},
	)
	return tghelpers.SendMD(c,
		"*PRO subscription*\n\nPRO unlocks premium numbers and pattern search.", markup)
}

// ProBuy purchases PRO with points.
func (h *Handlers) ProBuy(c tele.Context) error {
	expiry, err := h.Pro.BuyWithPoints(ctxOf(c), c.Sender().ID)
	switch {
	case errors.Is(err, service.ErrInsufficientPoints):
		return tghelpers.EditOrSendMD(c, "Not enough points for PRO. Earn more with /ads, /referral, and the daily bonus.")
	case err != nil:
		return c.Send("Purchase failed, please try again.")
	}
	return tghelpers.EditOrSendMD(c,
		fmt.Sprintf("*PRO activated* ⭐\nValid until %s.", expiry.Format(time.DateOnly)))
}

// ProRedeemPrompt begins the voucher redemption conversation.
func (h *Handlers) ProRedeemPrompt(c tele.Context) error {
	h.FSM.SetState(c.Sender().ID, stateRedeemCode)
	return tghelpers.EditOrSendMD(c, "Send your voucher code, e.g. `PRO-XXXX-XXXX-XXXX`.")
}

// OnRedeemCode handles the voucher typed during redemption.
func (h *Handlers) OnRedeemCode(c tele.Context) error {
	userID := c.Sender().ID
	h.FSM.Clear(userID)

	expiry, err := h.Pro.Redeem(ctxOf(c), userID, c.Text())
	switch {
	case errors.Is(err, service.ErrCodeInvalid):
		return tghelpers.SendMD(c, "That code is invalid or already used.")
	case err != nil:
		return c.Send("Redemption failed, please try again.")
	}
	return tghelpers.SendMD(c,
		fmt.Sprintf("*PRO activated* ⭐\nValid until %s.", expiry.Format(time.DateOnly)))
}

// ShowAd serves the next unseen ad with its reward button.
func (h *Handlers) ShowAd(c tele.Context) error {
	ad, err := h.Ads.Next(ctxOf(c), c.Sender().ID)
	switch {
	case errors.Is(err, service.ErrNoAds):
		return tghelpers.SendMD(c, "No new ads right now, check back later.")
	case err != nil:
		return c.Send("Could not load an ad, please try again.")
	}

	markup := keyboard.InlineButtons([]keyboard.InlineBtn{{
		Text:   fmt.Sprintf("✅ Collect %s", fmtPoints(ad.RewardPoints)),
		Unique: cbAdClaim,
		Data:   fmt.Sprintf("%d", ad.ID),
	}})

	switch ad.AdType {
	case service.AdTypePhoto:
		photo := &tele.Photo{File: tele.File{FileID: ad.MediaFileID.String}, Caption: ad.Content}
		return c.Send(photo, markup)
	case service.AdTypeVideo:
		video := &tele.Video{File: tele.File{FileID: ad.MediaFileID.String}, Caption: ad.Content}
		return c.Send(video, markup)
	default:
		return tghelpers.SendMD(c, ad.Content, markup)
	}
}

// ClaimAdReward pays the per-view reward, once per user and ad.
func (h *Handlers) ClaimAdReward(c tele.Context) error {
	adID, err := callbacks.PayloadInt64(c)
	if err != nil {
		return nil
	}

	reward, err := h.Ads.CollectReward(ctxOf(c), adID, c.Sender().ID)
	switch {
	case errors.Is(err, service.ErrAlreadyClaimed):
		return tghelpers.EditOrSendMD(c, "You already collected this reward.")
	case errors.Is(err, service.ErrNoAds):
		return tghelpers.EditOrSendMD(c, "This ad is gone.")
	case err != nil:
		return c.Send("Could not collect the reward, please try again.")
	}
	return tghelpers.EditOrSendMD(c, fmt.Sprintf("Reward collected: *+%s* 🎉", fmtPoints(reward)))
}
