package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/obadahasan/numbot/internal/logger"
	"github.com/obadahasan/numbot/internal/service"
	tghelpers "github.com/obadahasan/numbot/internal/telegram/helpers"
)

// AdminHelp lists the administration commands.
func (h *Handlers) AdminHelp(c tele.Context) error {
	var b strings.Builder
	b.WriteString("*Administration*\n")
	b.WriteString("/stats - bot counters\n")
	b.WriteString("/user <id> - inspect a user\n")
	b.WriteString("/ban <id>, /unban <id>\n")
	b.WriteString("/addpoints <id> <change>\n")
	b.WriteString("/addcountry <name> [flag]\n")
	b.WriteString("/togglecountry <id> <on|off>\n")
	b.WriteString("/addnumber <country_id> <value> [platform] [pattern]\n")
	b.WriteString("/delnumber <id>, /restorenumber <id>\n")
	b.WriteString("/gencode [days], /codes\n")
	b.WriteString("/grantpro <id> [days], /revokepro <id>\n")
	b.WriteString("/addad <type> <reward> <content>, /delad <id>\n")
	b.WriteString("/setsetting <key> <value>, /settings\n")
	b.WriteString("/broadcast <text>\n")
	return tghelpers.SendMD(c, b.String())
}

// ShowStats renders the dashboard counters.
func (h *Handlers) ShowStats(c tele.Context) error {
	st, err := h.Stats.GetStats(ctxOf(c))
	if err != nil {
		return c.Send("Could not collect stats.")
	}
	var b strings.Builder
	b.WriteString("*Stats*\n")
	fmt.Fprintf(&b, "Users: %d (%d banned, %d PRO)\n", st.Users, st.BannedUsers, st.ProUsers)
	fmt.Fprintf(&b, "Countries: %d active\n", st.ActiveCountries)
	fmt.Fprintf(&b, "Numbers: %d active, %d available\n", st.ActiveNumbers, st.AvailableNumbers)
	fmt.Fprintf(&b, "Requests: %d pending, %d delivered\n", st.PendingRequests, st.DeliveredCodes)
	return tghelpers.SendMD(c, b.String())
}

// InspectUser shows one user's profile to the administrator.
func (h *Handlers) InspectUser(c tele.Context) error {
	id, ok := argInt64(c, 0)
	if !ok {
		return tghelpers.SendMD(c, "Usage: `/user <id>`")
	}
	u, err := h.Users.Lookup(ctxOf(c), id)
	if errors.Is(err, service.ErrUserNotFound) {
		return c.Send("Unknown user.")
	}
	if err != nil {
		return c.Send("Lookup failed.")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "*User %d*\n", u.ID)
	if u.Username.Valid {
		fmt.Fprintf(&b, "Username: @%s\n", u.Username.String)
	}
	fmt.Fprintf(&b, "Joined: %s\n", service.MemberSince(u))
	fmt.Fprintf(&b, "Points: %d\n", u.Points)
	fmt.Fprintf(&b, "Invites: %d, proofs: %d\n", u.TotalInvites, u.ProofsSubmitted)
	fmt.Fprintf(&b, "PRO: %t", u.IsPro)
	if u.ProExpiry.Valid {
		fmt.Fprintf(&b, " (until %s)", u.ProExpiry.Time.Format(time.DateOnly))
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "Banned: %t\n", u.Banned)
	return tghelpers.SendMD(c, b.String())
}

// BanUser blocks a user: /ban <id>.
func (h *Handlers) BanUser(c tele.Context) error {
	id, ok := argInt64(c, 0)
	if !ok {
		return tghelpers.SendMD(c, "Usage: `/ban <id>`")
	}
	if err := h.Users.Ban(ctxOf(c), c.Sender().ID, id); err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			return c.Send("Unknown user.")
		}
		return c.Send("Ban failed.")
	}
	return tghelpers.SendMD(c, fmt.Sprintf("User `%d` banned.", id))
}

// UnbanUser restores a banned user: /unban <id>.
func (h *Handlers) UnbanUser(c tele.Context) error {
	id, ok := argInt64(c, 0)
	if !ok {
		return tghelpers.SendMD(c, "Usage: `/unban <id>`")
	}
	if err := h.Users.Unban(ctxOf(c), c.Sender().ID, id); err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			return c.Send("Unknown user.")
		}
		return c.Send("Unban failed.")
	}
	return tghelpers.SendMD(c, fmt.Sprintf("User `%d` unbanned.", id))
}

// AdjustPoints applies a signed balance change: /addpoints <id> <change>.
func (h *Handlers) AdjustPoints(c tele.Context) error {
	id, ok1 := argInt64(c, 0)
	change, ok2 := argInt64(c, 1)
	if !ok1 || !ok2 || change == 0 {
		return tghelpers.SendMD(c, "Usage: `/addpoints <id> <change>` (change may be negative)")
	}
	err := h.Points.AdminAdjust(ctxOf(c), c.Sender().ID, id, change)
	if errors.Is(err, service.ErrUserNotFound) {
		return c.Send("Unknown user.")
	}
	if err != nil {
		return c.Send("Adjustment failed.")
	}
	return tghelpers.SendMD(c, fmt.Sprintf("Applied %+d to user `%d`.", change, id))
}

// AddCountry registers a country: /addcountry <name> [flag].
func (h *Handlers) AddCountry(c tele.Context) error {
	args := c.Args()
	if len(args) < 1 {
		return tghelpers.SendMD(c, "Usage: `/addcountry <name> [flag]`")
	}
	flag := ""
	if len(args) > 1 {
		flag = args[len(args)-1]
		args = args[:len(args)-1]
	}
	name := strings.Join(args, " ")

	id, err := h.Catalog.AddCountry(ctxOf(c), c.Sender().ID, name, flag)
	if err != nil {
		return c.Send("Could not add the country.")
	}
	return tghelpers.SendMD(c, fmt.Sprintf("Country `%d` added: %s %s", id, flag, name))
}

// ToggleCountry switches a country on or off: /togglecountry <id> <on|off>.
func (h *Handlers) ToggleCountry(c tele.Context) error {
	id, ok := argInt64(c, 0)
	args := c.Args()
	if !ok || len(args) != 2 || (args[1] != "on" && args[1] != "off") {
		return tghelpers.SendMD(c, "Usage: `/togglecountry <id> <on|off>`")
	}
	active := args[1] == "on"
	if err := h.Catalog.SetCountryActive(ctxOf(c), c.Sender().ID, id, active); err != nil {
		return c.Send("Toggle failed.")
	}
	return tghelpers.SendMD(c, fmt.Sprintf("Country `%d` is now %s.", id, args[1]))
}

// AddNumber registers a number: /addnumber <country_id> <value> [platform]
// [pattern]. A pattern makes the number premium.
func (h *Handlers) AddNumber(c tele.Context) error {
	args := c.Args()
	countryID, ok := argInt64(c, 0)
	if !ok || len(args) < 2 {
		return tghelpers.SendMD(c, "Usage: `/addnumber <country_id> <value> [platform] [pattern]`")
	}
	value := args[1]
	platform := ""
	pattern := ""
	if len(args) > 2 {
		platform = args[2]
	}
	if len(args) > 3 {
		pattern = args[3]
	}

	id, err := h.Catalog.AddNumber(ctxOf(c), c.Sender().ID, countryID, value, platform, pattern != "", pattern)
	if err != nil {
		return c.Send(fmt.Sprintf("Could not add the number: %v", err))
	}
	label := "standard"
	if pattern != "" {
		label = "premium"
	}
	return tghelpers.SendMD(c, fmt.Sprintf("Number `%d` added (%s).", id, label))
}

// RemoveNumber retires a number: /delnumber <id>.
func (h *Handlers) RemoveNumber(c tele.Context) error {
	id, ok := argInt64(c, 0)
	if !ok {
		return tghelpers.SendMD(c, "Usage: `/delnumber <id>`")
	}
	if err := h.Catalog.DeactivateNumber(ctxOf(c), c.Sender().ID, id); err != nil {
		return c.Send("Could not remove the number.")
	}
	return tghelpers.SendMD(c, fmt.Sprintf("Number `%d` removed from listings.", id))
}

// RestoreNumber returns a retired number to the pool: /restorenumber <id>.
func (h *Handlers) RestoreNumber(c tele.Context) error {
	id, ok := argInt64(c, 0)
	if !ok {
		return tghelpers.SendMD(c, "Usage: `/restorenumber <id>`")
	}
	if err := h.Catalog.ReactivateNumber(ctxOf(c), c.Sender().ID, id); err != nil {
		return c.Send("Could not restore the number.")
	}
	return tghelpers.SendMD(c, fmt.Sprintf("Number `%d` is back in the pool.", id))
}

// GenerateCode mints a PRO voucher: /gencode [days].
func (h *Handlers) GenerateCode(c tele.Context) error {
	days := 0
	if d, ok := argInt64(c, 0); ok {
		days = int(d)
	}
	code, err := h.Pro.CreateCode(ctxOf(c), c.Sender().ID, days)
	if err != nil {
		return c.Send("Could not generate a code.")
	}
	return tghelpers.SendMD(c, fmt.Sprintf("Voucher: `%s`", code))
}

// ListCodes shows unredeemed vouchers.
func (h *Handlers) ListCodes(c tele.Context) error {
	codes, err := h.Pro.ListCodes(ctxOf(c), true)
	if err != nil {
		return c.Send("Could not list codes.")
	}
	if len(codes) == 0 {
		return c.Send("No active vouchers.")
	}
	var b strings.Builder
	b.WriteString("*Active vouchers*\n")
	for _, pc := range codes {
		fmt.Fprintf(&b, "`%s` (%d days)\n", pc.Code, pc.DurationDays)
	}
	return tghelpers.SendMD(c, b.String())
}

// GrantPro activates PRO for a user: /grantpro <id> [days].
func (h *Handlers) GrantPro(c tele.Context) error {
	id, ok := argInt64(c, 0)
	if !ok {
		return tghelpers.SendMD(c, "Usage: `/grantpro <id> [days]`")
	}
	days := 0
	if d, ok := argInt64(c, 1); ok {
		days = int(d)
	}
	expiry, err := h.Pro.Grant(ctxOf(c), c.Sender().ID, id, days)
	if errors.Is(err, service.ErrUserNotFound) {
		return c.Send("Unknown user.")
	}
	if err != nil {
		return c.Send("Grant failed.")
	}
	return tghelpers.SendMD(c,
		fmt.Sprintf("PRO granted to `%d` until %s.", id, expiry.Format(time.DateOnly)))
}

// RevokePro removes PRO from a user: /revokepro <id>.
func (h *Handlers) RevokePro(c tele.Context) error {
	id, ok := argInt64(c, 0)
	if !ok {
		return tghelpers.SendMD(c, "Usage: `/revokepro <id>`")
	}
	err := h.Pro.Revoke(ctxOf(c), c.Sender().ID, id)
	if errors.Is(err, service.ErrUserNotFound) {
		return c.Send("Unknown user.")
	}
	if err != nil {
		return c.Send("Revoke failed.")
	}
	return tghelpers.SendMD(c, fmt.Sprintf("PRO revoked from `%d`.", id))
}

// CreateAd registers an ad: /addad <type> <reward> <content...>. Media ads
// take the file id as the first content token.
func (h *Handlers) CreateAd(c tele.Context) error {
	args := c.Args()
	if len(args) < 3 {
		return tghelpers.SendMD(c, "Usage: `/addad <text|photo|video> <reward> <content>`\nMedia ads: `/addad photo <reward> <file_id> <caption>`")
	}
	adType := args[0]
	reward, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return tghelpers.SendMD(c, "Reward must be a number.")
	}

	mediaFileID := ""
	content := strings.Join(args[2:], " ")
	if adType != service.AdTypeText {
		if len(args) < 4 {
			return tghelpers.SendMD(c, "Media ads need a file id and a caption.")
		}
		mediaFileID = args[2]
		content = strings.Join(args[3:], " ")
	}

	id, err := h.Ads.Create(ctxOf(c), c.Sender().ID, adType, content, mediaFileID, reward)
	if err != nil {
		return c.Send(fmt.Sprintf("Could not create the ad: %v", err))
	}
	return tghelpers.SendMD(c, fmt.Sprintf("Ad `%d` created.", id))
}

// RemoveAd retires an ad: /delad <id>.
func (h *Handlers) RemoveAd(c tele.Context) error {
	id, ok := argInt64(c, 0)
	if !ok {
		return tghelpers.SendMD(c, "Usage: `/delad <id>`")
	}
	if err := h.Ads.Deactivate(ctxOf(c), c.Sender().ID, id); err != nil {
		return c.Send("Could not remove the ad.")
	}
	return tghelpers.SendMD(c, fmt.Sprintf("Ad `%d` removed.", id))
}

// SetSetting updates a runtime setting: /setsetting <key> <value>.
func (h *Handlers) SetSetting(c tele.Context) error {
	args := c.Args()
	if len(args) != 2 {
		return tghelpers.SendMD(c, "Usage: `/setsetting <key> <value>`")
	}
	key, value := args[0], args[1]
	if err := h.SettingsStore.Set(ctxOf(c), key, value); err != nil {
		return c.Send("Could not store the setting.")
	}
	if h.Settings != nil {
		h.Settings.Invalidate(key)
	}
	return tghelpers.SendMD(c, fmt.Sprintf("Setting `%s` = `%s`.", key, value))
}

// ListSettings shows every stored setting.
func (h *Handlers) ListSettings(c tele.Context) error {
	all, err := h.SettingsStore.All(ctxOf(c))
	if err != nil {
		return c.Send("Could not load settings.")
	}
	if len(all) == 0 {
		return c.Send("No settings stored, defaults apply.")
	}
	keys := make([]string, 0, len(all))
	for k := range all {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("*Settings*\n")
	for _, k := range keys {
		fmt.Fprintf(&b, "`%s` = `%s`\n", k, all[k])
	}
	return tghelpers.SendMD(c, b.String())
}

// Broadcast sends a message to every known user: /broadcast <text>. The
// fan-out runs in the background and reports back when it finishes.
func (h *Handlers) Broadcast(c tele.Context) error {
	text := strings.TrimSpace(c.Message().Payload)
	if text == "" {
		return tghelpers.SendMD(c, "Usage: `/broadcast <text>`")
	}

	targets, err := h.Users.BroadcastTargets(ctxOf(c))
	if err != nil {
		return c.Send("Could not load recipients.")
	}

	bot := c.Bot()
	adminID := c.Sender().ID
	go func() {
		sent, failed := 0, 0
		for _, id := range targets {
			if _, err := bot.Send(&tele.User{ID: id}, text); err != nil {
				failed++
			} else {
				sent++
			}
			// Stay under Telegram's messages-per-second ceiling.
			time.Sleep(50 * time.Millisecond)
		}
		logger.TG.Info("broadcast finished",
			slog.String("event", "broadcast"),
			slog.Int("sent", sent),
			slog.Int("failed", failed),
		)
		report := fmt.Sprintf("Broadcast done: %d sent, %d failed.", sent, failed)
		if _, err := bot.Send(&tele.User{ID: adminID}, report); err != nil {
			logger.TG.Warn("broadcast report failed",
				slog.String("event", "broadcast"),
				slog.String("err", err.Error()),
			)
		}
	}()
	return tghelpers.SendMD(c, fmt.Sprintf("Broadcasting to %d users…", len(targets)))
}

// argInt64 parses the i-th command argument as an int64.
func argInt64(c tele.Context, i int) (int64, bool) {
	args := c.Args()
	if i >= len(args) {
		return 0, false
	}
	v, err := strconv.ParseInt(args[i], 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
