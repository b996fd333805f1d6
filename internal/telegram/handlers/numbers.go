package handlers

import (
	"errors"
	"fmt"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/obadahasan/numbot/internal/model"
	"github.com/obadahasan/numbot/internal/service"
	"github.com/obadahasan/numbot/internal/telegram/callbacks"
	tghelpers "github.com/obadahasan/numbot/internal/telegram/helpers"
	"github.com/obadahasan/numbot/internal/telegram/keyboard"
)

// Numbers opens the country picker.
func (h *Handlers) Numbers(c tele.Context) error {
	return h.renderCountries(c, false)
}

func (h *Handlers) renderCountries(c tele.Context, edit bool) error {
	ctx := ctxOf(c)
	countries, err := h.Catalog.Countries(ctx, h.isPro(c))
	if err != nil {
		return c.Send("Could not load countries, please try again.")
	}
	if len(countries) == 0 {
		msg := "No numbers are available right now, check back later."
		if edit {
			return tghelpers.EditOrSendMD(c, msg)
		}
		return c.Send(msg)
	}

	buttons := make([]keyboard.InlineBtn, 0, len(countries))
	for _, country := range countries {
		buttons = append(buttons, keyboard.InlineBtn{
			Text:   fmt.Sprintf("%s %s (%d)", country.Flag, country.Name, country.NumberCount),
			Unique: cbCountry,
			Data:   fmt.Sprintf("%d|1", country.ID),
		})
	}
	markup := keyboard.InlineButtonsNPerRow(buttons, 2)

	text := "*Choose a country*"
	if edit {
		return tghelpers.EditOrSendMD(c, text, markup)
	}
	return tghelpers.SendMD(c, text, markup)
}

// CountryPage renders one page of a country's available numbers.
func (h *Handlers) CountryPage(c tele.Context) error {
	countryID, page, err := callbacks.PayloadTwoInt64(c, "|")
	if err != nil {
		return h.renderCountries(c, true)
	}
	return h.renderNumbersPage(c, countryID, int(page))
}

func (h *Handlers) renderNumbersPage(c tele.Context, countryID int64, page int) error {
	ctx := ctxOf(c)
	isPro := h.isPro(c)

	country, err := h.Catalog.Country(ctx, countryID)
	if err != nil {
		return tghelpers.EditOrSendMD(c, "That country is no longer available.")
	}
	numPage, err := h.Catalog.Numbers(ctx, countryID, isPro, page)
	if err != nil {
		return c.Send("Could not load numbers, please try again.")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "*%s %s*\n", country.Flag, country.Name)
	if numPage.Total == 0 {
		b.WriteString("\nNo numbers available right now.")
	} else {
		fmt.Fprintf(&b, "Page %d of %d, %d available\n\n", numPage.Page, numPage.TotalPages, numPage.Total)
		b.WriteString("Tap a number to reserve it.")
	}

	var rows [][]keyboard.InlineBtn
	for _, n := range numPage.Numbers {
		label := n.Value
		if n.IsPremium {
			label = "⭐ " + label
		}
		rows = append(rows, []keyboard.InlineBtn{{
			Text:   label,
			Unique: cbNumReq,
			Data:   fmt.Sprintf("%d", n.ID),
		}})
	}

	var nav []keyboard.InlineBtn
	if numPage.Page > 1 {
		nav = append(nav, keyboard.InlineBtn{
			Text:   "⬅️",
			Unique: cbNumPage,
			Data:   fmt.Sprintf("%d|%d", countryID, numPage.Page-1),
		})
	}
	if numPage.Page < numPage.TotalPages {
		nav = append(nav, keyboard.InlineBtn{
			Text:   "➡️",
			Unique: cbNumPage,
			Data:   fmt.Sprintf("%d|%d", countryID, numPage.Page+1),
		})
	}
	if len(nav) > 0 {
		rows = append(rows, nav)
	}
	if isPro {
		rows = append(rows, []keyboard.InlineBtn{{
			Text:   "🔎 Pattern search",
			Unique: cbPSearch,
			Data:   fmt.Sprintf("%d", countryID),
		}})
	}
	rows = append(rows, []keyboard.InlineBtn{{Text: "« Countries", Unique: cbBack}})

	return tghelpers.EditOrSendMD(c, b.String(), keyboard.InlineButtonsRows(rows...))
}

// BackToCountries returns from a number listing to the country picker.
func (h *Handlers) BackToCountries(c tele.Context) error {
	return h.renderCountries(c, true)
}

// RequestNumber reserves a number for the caller.
func (h *Handlers) RequestNumber(c tele.Context) error {
	numberID, err := callbacks.PayloadInt64(c)
	if err != nil {
		return nil
	}

	res, err := h.Reservations.Initiate(ctxOf(c), c.Sender().ID, numberID)
	switch {
	case errors.Is(err, service.ErrNumberUnavailable):
		return tghelpers.EditOrSendMD(c, "That number was just taken. Pick another one with /numbers.")
	case err != nil:
		return c.Send("Could not reserve the number, please try again.")
	}

	return tghelpers.EditOrSendMD(c, reservationText(res.Request, res.Number), reservationKeyboard(numberID))
}

func reservationText(req *model.NumberRequest, num *model.Number) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Number reserved: `%s`\n\n", num.Value)
	b.WriteString("Use it on the platform of your choice, then press *Check code*.\n")
	fmt.Fprintf(&b, "The reservation expires at %s.", req.ExpiresAt.Format(time.TimeOnly))
	return b.String()
}

func reservationKeyboard(numberID int64) *tele.ReplyMarkup {
	data := fmt.Sprintf("%d", numberID)
	return keyboard.InlineButtonsRows(
		[]keyboard.InlineBtn{{Text: "📩 Check code", Unique: cbNumCheck, Data: data}},
		[]keyboard.InlineBtn{{Text: "✖️ Cancel", Unique: cbNumCancel, Data: data}},
	)
}

// CheckCode polls the caller's live reservation for a delivered code.
func (h *Handlers) CheckCode(c tele.Context) error {
	numberID, err := callbacks.PayloadInt64(c)
	if err != nil {
		return nil
	}

	result, err := h.Reservations.Poll(ctxOf(c), c.Sender().ID, numberID)
	switch {
	case errors.Is(err, service.ErrNoActiveRequest):
		return tghelpers.EditOrSendMD(c, "No live reservation for this number. Start over with /numbers.")
	case err != nil:
		return c.Send("Could not check the code, please try again.")
	}

	switch result.State {
	case service.PollCodeDelivered:
		return tghelpers.EditOrSendMD(c, fmt.Sprintf("Your code: `%s` ✅", result.Code))
	case service.PollExpired:
		return tghelpers.EditOrSendMD(c, "The reservation expired before a code arrived. The number is back in the pool.")
	case service.PollCancelled:
		return tghelpers.EditOrSendMD(c, "This reservation was cancelled.")
	default:
		// Keep the buttons so the user can poll again.
		return tghelpers.EditOrSendMD(c, "No code yet, try again in a moment.", reservationKeyboard(numberID))
	}
}

// CancelReservation gives up the caller's live reservation.
func (h *Handlers) CancelReservation(c tele.Context) error {
	numberID, err := callbacks.PayloadInt64(c)
	if err != nil {
		return nil
	}

	err = h.Reservations.Cancel(ctxOf(c), c.Sender().ID, numberID)
	switch {
	case errors.Is(err, service.ErrNoActiveRequest):
		return tghelpers.EditOrSendMD(c, "Nothing to cancel, the reservation already finished.")
	case err != nil:
		return c.Send("Could not cancel, please try again.")
	}
	return tghelpers.EditOrSendMD(c, "Reservation cancelled. The number is back in the pool.")
}

// StartPatternSearch begins the PRO pattern search conversation.
func (h *Handlers) StartPatternSearch(c tele.Context) error {
	if !h.isPro(c) {
		return tghelpers.EditOrSendMD(c, "Pattern search is a PRO feature. See /pro.")
	}
	countryID, err := callbacks.PayloadInt64(c)
	if err != nil {
		return nil
	}

	userID := c.Sender().ID
	h.FSM.SetTemp(userID, tempCountryID, countryID)
	h.FSM.SetState(userID, statePatternSearch)
	return tghelpers.EditOrSendMD(c,
		"Send a pattern to search for. Digits, `+` and `*` wildcards are allowed, e.g. `*777*`.")
}

// OnPatternInput handles the pattern typed during a PRO search.
func (h *Handlers) OnPatternInput(c tele.Context) error {
	userID := c.Sender().ID
	countryID, ok := h.FSM.GetTempInt64(userID, tempCountryID)
	h.FSM.Clear(userID)
	if !ok {
		return tghelpers.SendMD(c, "The search expired, start again from /numbers.")
	}

	ctx := ctxOf(c)
	numbers, err := h.Catalog.SearchPremium(ctx, countryID, c.Text(), h.isPro(c))
	switch {
	case errors.Is(err, service.ErrBadPattern):
		return tghelpers.SendMD(c, "That pattern is not valid. Digits, `+` and `*` only, up to 20 characters.")
	case errors.Is(err, service.ErrNotPro):
		return tghelpers.SendMD(c, "Pattern search is a PRO feature. See /pro.")
	case err != nil:
		return c.Send("Search failed, please try again.")
	}
	if len(numbers) == 0 {
		return tghelpers.SendMD(c, "No available numbers match that pattern.")
	}

	buttons := make([]keyboard.InlineBtn, 0, len(numbers))
	for _, n := range numbers {
		buttons = append(buttons, keyboard.InlineBtn{
			Text:   "⭐ " + n.Value,
			Unique: cbNumReq,
			Data:   fmt.Sprintf("%d", n.ID),
		})
	}
	return tghelpers.SendMD(c,
		fmt.Sprintf("*%d match(es)*\nTap a number to reserve it.", len(numbers)),
		keyboard.InlineButtons(buttons))
}
