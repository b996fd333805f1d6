package telegram

import (
	"log/slog"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/obadahasan/numbot/internal/logger"
	"github.com/obadahasan/numbot/internal/telegram/callbacks"
	tghelpers "github.com/obadahasan/numbot/internal/telegram/helpers"
	"github.com/obadahasan/numbot/internal/telegram/middleware"
	"github.com/obadahasan/numbot/internal/telegram/state"
)

// Route binds a single handler to a telebot endpoint.
type Route struct {
	Endpoint any
	Handler  tele.HandlerFunc
}

// RouteOptions configures how registry entries become bot routes.
type RouteOptions struct {
	AdminID       int64
	OnAdminReject tele.HandlerFunc
	UnknownText   tele.HandlerFunc
}

// CommandRoutes wraps every registered command with the shared
// middleware chain and admin gating.
func CommandRoutes(reg *Registry, opts RouteOptions) []Route {
	if reg == nil {
		return nil
	}

	adminOpts := middleware.AdminOptions{
		AdminID:  opts.AdminID,
		OnReject: opts.OnAdminReject,
	}

	routes := make([]Route, 0, len(reg.Commands()))
	for name, def := range reg.Commands() {
		h := def.Handler
		if def.AdminOnly {
			h = middleware.AdminOnly(adminOpts)(h)
		}
		h = wrapSummary(normalizeHandlerName(name), h)
		h = middleware.Recover(middleware.Logging(h))
		routes = append(routes, Route{Endpoint: name, Handler: h})
	}

	logger.TWire.Info("tg.wire",
		slog.String("event", "complete"),
		slog.Int("commands", len(reg.Commands())),
		slog.Int("callbacks", len(reg.ListCallbacks())),
	)
	return routes
}

// CallbackRoute answers every callback and dispatches it through the
// registry by its key.
func CallbackRoute(reg *Registry) Route {
	handler := func(c tele.Context) error {
		cb := c.Callback()
		if cb == nil {
			return nil
		}

		// Stop the client spinner before doing any work.
		_ = c.Respond()

		key, _ := callbacks.Parse(cb)
		h, ok := reg.GetCallback(key)
		if !ok || h == nil {
			h = reg.CallbackNotFound()
			if h == nil {
				return nil
			}
		}
		return wrapSummary("callback."+normalizeHandlerName(key), h)(c)
	}
	return Route{
		Endpoint: tele.OnCallback,
		Handler:  middleware.Recover(middleware.Logging(handler)),
	}
}

// TextRoute routes plain text: an in-progress conversation wins, then
// command aliases, then the registry's text fallback.
func TextRoute(fsm state.Manager, reg *Registry, opts RouteOptions) Route {
	handler := func(c tele.Context) error {
		if fsm != nil && fsm.InProgress(c.Sender().ID) {
			return wrapSummary("fsm", fsm.Handle)(c)
		}
		if reg != nil {
			if key, cmd, ok := reg.LookupCommand(c.Text()); ok && cmd.Handler != nil {
				return wrapSummary(normalizeHandlerName(key), cmd.Handler)(c)
			}
			if fb := reg.TextFallback(); fb != nil {
				return wrapSummary("fallback", fb)(c)
			}
		}
		if opts.UnknownText != nil {
			return wrapSummary("unknown_text", opts.UnknownText)(c)
		}
		return nil
	}
	return Route{
		Endpoint: tele.OnText,
		Handler:  middleware.Recover(middleware.Logging(handler)),
	}
}

// wrapSummary logs one outcome line per handled update.
func wrapSummary(name string, h tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		start := time.Now()
		err := h(c)

		status := "ok"
		if err != nil {
			status = "fail"
		}
		ctx := tghelpers.BuildContext(c)
		attrs := []slog.Attr{
			slog.String("status", status),
			slog.String("handler", name),
			slog.Int64("duration_ms", logger.RoundMS(time.Since(start)).Milliseconds()),
		}
		if err != nil {
			attrs = append(attrs, slog.String("err", logger.SanitizeLimit(err.Error(), 256)))
		}
		logger.Info(ctx, "tg", "handler.handled", attrs...)
		return err
	}
}

func normalizeHandlerName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "unknown"
	}
	name = strings.TrimPrefix(name, "/")
	name = strings.ReplaceAll(name, " ", "_")
	return strings.ToLower(name)
}
