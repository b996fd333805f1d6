package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/obadahasan/numbot/internal/config"
	"github.com/obadahasan/numbot/internal/database"
	"github.com/obadahasan/numbot/internal/logger"
	"github.com/obadahasan/numbot/internal/oracle"
	"github.com/obadahasan/numbot/internal/repository"
	"github.com/obadahasan/numbot/internal/service"
	"github.com/obadahasan/numbot/internal/telegram"
	"github.com/obadahasan/numbot/internal/telegram/handlers"
	"github.com/obadahasan/numbot/internal/telegram/middleware"
	"github.com/obadahasan/numbot/internal/telegram/state"
)

const settingsTTL = 30 * time.Second

func main() {
	if err := run(); err != nil {
		log.Fatalf("numbot: %v", err)
	}
}

func run() error {
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}

	if err := logger.Init(cfg.Logging); err != nil {
		return err
	}
	defer func() {
		if err := logger.Shutdown(); err != nil {
			log.Printf("logger shutdown error: %v", err)
		}
	}()

	db, err := database.Connect(cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := database.RunMigrations(cfg.Database); err != nil {
		return err
	}

	store := repository.NewStore(db)
	settings := service.NewSettings(store.Settings, settingsTTL)

	var orc oracle.Oracle
	switch cfg.Reservation.OracleMode {
	case config.OracleModeHTTP:
		orc = oracle.NewHTTP(cfg.Reservation.OracleURL, nil)
	default:
		orc = oracle.NewSimulated(cfg.Reservation.OracleProbability, nil)
	}

	points := service.NewPoints(store.Points, store.Users, settings, store.Audit)
	users := service.NewUsers(store.Users, store.Requests, points, store.Audit)
	pro := service.NewPro(store.Pro, store.Users, points, settings, store.Audit)
	catalog := service.NewCatalog(store.Numbers, store.Countries, store.Audit)
	ads := service.NewAds(store.Ads, points, store.Audit)
	reservations := service.NewReservationManager(store, orc, settings, store.Audit)

	fsm := state.NewMemoryManager()
	h := &handlers.Handlers{
		Users:         users,
		Points:        points,
		Pro:           pro,
		Catalog:       catalog,
		Reservations:  reservations,
		Ads:           ads,
		Settings:      settings,
		FSM:           fsm,
		SettingsStore: store.Settings,
		Stats:         store,
		AdminID:       cfg.Telegram.AdminID,
	}
	reg := h.BuildRegistry()

	routeOpts := telegram.RouteOptions{
		AdminID: cfg.Telegram.AdminID,
		OnAdminReject: func(c tele.Context) error {
			return c.Send("This command is for administrators.")
		},
	}
	routes := telegram.CommandRoutes(reg, routeOpts)
	routes = append(routes, telegram.CallbackRoute(reg))
	routes = append(routes, telegram.TextRoute(fsm, reg, routeOpts))

	var middlewares []telegram.Middleware
	if cfg.RateLimit.IntervalMS > 0 {
		exclude := make(map[string]struct{}, len(cfg.RateLimit.ExcludeUpdates))
		for _, kind := range cfg.RateLimit.ExcludeUpdates {
			exclude[kind] = struct{}{}
		}
		middlewares = append(middlewares, telegram.Middleware{
			Name: "rate_limit",
			Use: middleware.RateLimit(middleware.RateLimitOptions{
				Interval: time.Duration(cfg.RateLimit.IntervalMS) * time.Millisecond,
				Exclude:  exclude,
			}),
		})
	}
	middlewares = append(middlewares, telegram.Middleware{
		Name: "reject_banned",
		Use:  middleware.RejectBanned(users, cfg.Telegram.AdminID),
	})

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	startedAt := time.Now()
	return telegram.Run(ctx, telegram.RunOptions{
		Config:      cfg,
		Registry:    reg,
		Middlewares: middlewares,
		Routes:      routes,
		OnStart: func(ctx context.Context, bot *tele.Bot) error {
			h.BotUsername = bot.Me.Username
			if interval := cfg.Reservation.SweepInterval(); interval > 0 {
				go reservations.RunSweeper(ctx, interval)
			}
			logger.L.With("component", "app").Info("app ready",
				slog.String("event", "ready"),
				slog.String("bot", bot.Me.Username),
				slog.Duration("startup_duration", logger.RoundMS(time.Since(startedAt))),
			)
			return nil
		},
		OnStop: func(ctx context.Context, bot *tele.Bot) error {
			logger.L.With("component", "app").Info("shutting down...",
				slog.String("event", "shutdown"),
			)
			return nil
		},
	})
}
