// Package handlers implements the bot's commands and callbacks on top of
// the domain services.
package handlers

import (
	"context"
	"fmt"

	tele "gopkg.in/telebot.v4"

	"github.com/obadahasan/numbot/internal/repository"
	"github.com/obadahasan/numbot/internal/service"
	"github.com/obadahasan/numbot/internal/telegram/state"
)

// Callback keys routed through the registry.
const (
	cbCountry   = "country"    // payload: countryID|page
	cbNumPage   = "num_page"   // payload: countryID|page
	cbNumReq    = "num_req"    // payload: numberID
	cbNumCheck  = "num_check"  // payload: numberID
	cbNumCancel = "num_cancel" // payload: numberID
	cbPSearch   = "psearch"    // payload: countryID
	cbProBuy    = "pro_buy"
	cbProRedeem = "pro_redeem"
	cbAdClaim   = "ad_claim" // payload: adID
	cbDaily     = "daily"
	cbBack      = "back_countries"
)

// Conversation states.
const (
	statePatternSearch state.State = "awaiting_pattern"
	stateRedeemCode    state.State = "awaiting_pro_code"
)

const tempCountryID = "country_id"

// SettingsStore is the mutable runtime configuration the admin panel
// edits. Satisfied by *repository.SettingsRepo.
type SettingsStore interface {
	Set(ctx context.Context, key, value string) error
	All(ctx context.Context) (map[string]string, error)
}

// StatsSource serves the admin dashboard counters. Satisfied by
// *repository.Store.
type StatsSource interface {
	GetStats(ctx context.Context) (*repository.Stats, error)
}

// Handlers bundles the services behind the Telegram surface.
type Handlers struct {
	Users        *service.Users
	Points       *service.Points
	Pro          *service.Pro
	Catalog      *service.Catalog
	Reservations *service.ReservationManager
	Ads          *service.Ads
	Settings     *service.Settings
	FSM          state.Manager

	SettingsStore SettingsStore
	Stats         StatsSource

	BotUsername string
	AdminID     int64
}

func (h *Handlers) isPro(c tele.Context) bool {
	ok, _ := h.Pro.IsPro(ctxOf(c), c.Sender().ID)
	return ok
}

func fmtPoints(points int64) string {
	return fmt.Sprintf("%d point(s)", points)
}
