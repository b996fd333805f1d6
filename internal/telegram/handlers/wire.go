package handlers

import (
	tele "gopkg.in/telebot.v4"

	"github.com/obadahasan/numbot/internal/telegram"
	"github.com/obadahasan/numbot/internal/telegram/state"
)

// BuildRegistry assembles the command and callback registry and hooks the
// conversation states into the FSM.
func (h *Handlers) BuildRegistry() *telegram.Registry {
	reg := telegram.NewRegistry()

	reg.RegisterCommand("/start", telegram.Command{Handler: h.Start, Description: "Register and get started", Hidden: true})
	reg.RegisterCommand("/help", telegram.Command{Handler: h.Help, Description: "List commands"})
	reg.RegisterCommand("/numbers", telegram.Command{Handler: h.Numbers, Description: "Browse virtual numbers"})
	reg.RegisterCommand("/balance", telegram.Command{Handler: h.Balance, Description: "Your points balance", Aliases: []string{"points"}})
	reg.RegisterCommand("/history", telegram.Command{Handler: h.History, Description: "Your recent requests"})
	reg.RegisterCommand("/transfer", telegram.Command{Handler: h.Transfer, Description: "Send points to a user"})
	reg.RegisterCommand("/referral", telegram.Command{Handler: h.Referral, Description: "Your invite link", Aliases: []string{"invite"}})
	reg.RegisterCommand("/leaderboard", telegram.Command{Handler: h.Leaderboard, Description: "Top point holders", Aliases: []string{"top"}})
	reg.RegisterCommand("/pro", telegram.Command{Handler: h.ProStatus, Description: "PRO subscription"})
	reg.RegisterCommand("/ads", telegram.Command{Handler: h.ShowAd, Description: "Watch an ad, earn points"})

	reg.RegisterCommand("/admin", telegram.Command{Handler: h.AdminHelp, Description: "Administration", AdminOnly: true})
	reg.RegisterCommand("/stats", telegram.Command{Handler: h.ShowStats, Description: "Bot counters", AdminOnly: true})
	reg.RegisterCommand("/user", telegram.Command{Handler: h.InspectUser, Description: "Inspect a user", AdminOnly: true})
	reg.RegisterCommand("/ban", telegram.Command{Handler: h.BanUser, Description: "Ban a user", AdminOnly: true})
	reg.RegisterCommand("/unban", telegram.Command{Handler: h.UnbanUser, Description: "Unban a user", AdminOnly: true})
	reg.RegisterCommand("/addpoints", telegram.Command{Handler: h.AdjustPoints, Description: "Adjust a balance", AdminOnly: true})
	reg.RegisterCommand("/addcountry", telegram.Command{Handler: h.AddCountry, Description: "Add a country", AdminOnly: true})
	reg.RegisterCommand("/togglecountry", telegram.Command{Handler: h.ToggleCountry, Description: "Toggle a country", AdminOnly: true})
	reg.RegisterCommand("/addnumber", telegram.Command{Handler: h.AddNumber, Description: "Add a number", AdminOnly: true})
	reg.RegisterCommand("/delnumber", telegram.Command{Handler: h.RemoveNumber, Description: "Retire a number", AdminOnly: true})
	reg.RegisterCommand("/restorenumber", telegram.Command{Handler: h.RestoreNumber, Description: "Restore a number", AdminOnly: true})
	reg.RegisterCommand("/gencode", telegram.Command{Handler: h.GenerateCode, Description: "Mint a PRO voucher", AdminOnly: true})
	reg.RegisterCommand("/codes", telegram.Command{Handler: h.ListCodes, Description: "List PRO vouchers", AdminOnly: true})
	reg.RegisterCommand("/grantpro", telegram.Command{Handler: h.GrantPro, Description: "Grant PRO", AdminOnly: true})
	reg.RegisterCommand("/revokepro", telegram.Command{Handler: h.RevokePro, Description: "Revoke PRO", AdminOnly: true})
	reg.RegisterCommand("/addad", telegram.Command{Handler: h.CreateAd, Description: "Create an ad", AdminOnly: true})
	reg.RegisterCommand("/delad", telegram.Command{Handler: h.RemoveAd, Description: "Retire an ad", AdminOnly: true})
	reg.RegisterCommand("/setsetting", telegram.Command{Handler: h.SetSetting, Description: "Change a setting", AdminOnly: true})
	reg.RegisterCommand("/settings", telegram.Command{Handler: h.ListSettings, Description: "List settings", AdminOnly: true})
	reg.RegisterCommand("/broadcast", telegram.Command{Handler: h.Broadcast, Description: "Message every user", AdminOnly: true})

	_ = reg.RegisterCallback(cbCountry, h.CountryPage)
	_ = reg.RegisterCallback(cbNumPage, h.CountryPage)
	_ = reg.RegisterCallback(cbNumReq, h.RequestNumber)
	_ = reg.RegisterCallback(cbNumCheck, h.CheckCode)
	_ = reg.RegisterCallback(cbNumCancel, h.CancelReservation)
	_ = reg.RegisterCallback(cbPSearch, h.StartPatternSearch)
	_ = reg.RegisterCallback(cbProBuy, h.ProBuy)
	_ = reg.RegisterCallback(cbProRedeem, h.ProRedeemPrompt)
	_ = reg.RegisterCallback(cbAdClaim, h.ClaimAdReward)
	_ = reg.RegisterCallback(cbDaily, h.DailyBonus)
	_ = reg.RegisterCallback(cbBack, h.BackToCountries)

	state.Register(h.FSM, statePatternSearch, h.OnPatternInput)
	state.Register(h.FSM, stateRedeemCode, h.OnRedeemCode)

	reg.SetTextFallback(func(c tele.Context) error {
		return c.Send("I did not get that. See /help for what I can do.")
	})

	return reg
}
