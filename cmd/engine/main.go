// Package main is the entry point for the Kalshi arbitrage engine.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/kalshiarb/engine/internal/config"
	"github.com/kalshiarb/engine/internal/kalshi"
	"github.com/kalshiarb/engine/internal/match"
	"github.com/kalshiarb/engine/internal/notify"
	"github.com/kalshiarb/engine/internal/odds"
	"github.com/kalshiarb/engine/internal/portfolio"
	"github.com/kalshiarb/engine/internal/session"
	"github.com/kalshiarb/engine/internal/store"
	"github.com/kalshiarb/engine/internal/strategy"
	"github.com/kalshiarb/engine/internal/ui"
)

// EventLogSize bounds the session event log ring buffer.
const EventLogSize = 500

func main() {
	configPath := flag.String("config", "", "path to config.yaml (optional)")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Initialize structured logger
	logger := setupLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	slog.Info("engine starting", "version", "1.0.0")

	slog.Info("config_loaded",
		"kalshi_api_base", cfg.KalshiAPIBase,
		"kalshi_access_key", cfg.MaskedKalshiAccessKey(),
		"odds_api_key", cfg.MaskedOddsAPIKey(),
		"sports", strings.Join(cfg.Sports, ","),
		"bid_margin_percent", cfg.BidMarginPercent,
		"auto_close_margin_percent", cfg.AutoCloseMarginPercent,
		"trade_size", cfg.TradeSize,
		"max_positions", cfg.MaxPositions,
		"auto_bid", cfg.AutoBid,
		"auto_close", cfg.AutoClose,
		"bailout_enabled", cfg.Bailout.Enabled,
		"schedule_enabled", cfg.Schedule.Enabled,
		"refresh_interval", cfg.RefreshInterval,
		"turbo_interval", cfg.TurboInterval,
		"db_path", cfg.DBPath,
		"enable_tui", cfg.EnableTUI,
	)

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Signer from the private key file
	keyPEM, err := os.ReadFile(cfg.KalshiPrivateKeyPath)
	if err != nil {
		slog.Error("failed to read private key", "path", cfg.KalshiPrivateKeyPath, "error", err)
		os.Exit(1)
	}
	signer, err := kalshi.NewSigner(keyPEM)
	if err != nil {
		slog.Error("failed to parse private key", "error", err)
		os.Exit(1)
	}

	// API clients
	exchange := kalshi.NewClient(cfg.KalshiAPIBase, cfg.KalshiAccessKey, signer)
	oddsClient := odds.NewClient(cfg.OddsAPIBase, cfg.OddsAPIKey)

	// Warn early about sports the matcher cannot key.
	for _, sport := range cfg.Sports {
		if match.SeriesTicker(sport) == "" {
			slog.Warn("sport_unsupported", "sport", sport, "supported", strings.Join(match.SupportedSportKeys(), ","))
		}
	}

	// Ledger persistence
	db, err := store.Open(cfg.DBPath)
	if err != nil {
		slog.Error("failed to open ledger database", "path", cfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	ledger, err := db.LoadLedger(ctx)
	if err != nil {
		slog.Error("failed to load trade ledger", "error", err)
		os.Exit(1)
	}
	slog.Info("ledger_loaded", "entries", len(ledger))

	// Core state
	tracker := portfolio.NewTracker(ledger)
	hist := odds.NewHistory(cfg.VolatilityWindow)
	stats := session.NewStats()
	events := session.NewEventLog(EventLogSize)
	notifier := notify.NewDiscord(cfg.DiscordWebhookURL, cfg.AlertCooldown)

	engine := strategy.NewEngine(cfg, exchange, tracker, db, events, notifier)

	window, err := session.ParseWindow(cfg.Schedule)
	if err != nil {
		slog.Error("invalid schedule", "error", err)
		os.Exit(1)
	}

	// Live quote feed
	var feed *kalshi.TickerFeed
	var quoteFeed session.QuoteFeed
	if cfg.KalshiWSURL != "" {
		feed = kalshi.NewTickerFeed(cfg.KalshiWSURL, cfg.KalshiAccessKey, signer)
		quoteFeed = feed
	}

	runner := session.NewRunner(cfg, exchange, oddsClient, engine, tracker, hist, db, stats, events, window, quoteFeed)

	if feed != nil {
		feed.Start(ctx)
		go func() {
			for q := range feed.Updates() {
				runner.ApplyQuote(q)
			}
		}()
	}

	scheduler := session.NewScheduler(cfg.PollInterval(), runner.Tick)
	go scheduler.Run(ctx)

	slog.Info("engine_started",
		"status", "polling",
		"interval", cfg.PollInterval(),
		"ws_enabled", feed != nil,
		"tui_enabled", cfg.EnableTUI,
	)

	// Start TUI or run headless
	if cfg.EnableTUI {
		slog.Info("starting_tui")
		app := ui.NewApp(
			session.NewView(runner, tracker, stats, events),
			ui.Controls{
				Engine:    engine,
				Scheduler: scheduler,
				Normal:    cfg.RefreshInterval,
				Turbo:     cfg.TurboInterval,
			},
			cfg.UIRefreshRate,
		)

		// Run the TUI in a goroutine so signals are still handled.
		go func() {
			if err := app.Run(); err != nil {
				slog.Error("tui_error", "error", err)
			}
			cancel()
		}()

		select {
		case sig := <-sigChan:
			slog.Info("shutdown_signal_received", "signal", sig.String())
			app.Stop()
		case <-ctx.Done():
			app.Stop()
		}
	} else {
		sig := <-sigChan
		slog.Info("shutdown_signal_received", "signal", sig.String())
	}

	cancel()

	slog.Info("shutting_down")
	if feed != nil {
		feed.Stop()
	}

	slog.Info("shutdown_complete")
}

// setupLogger creates a structured logger with the specified level.
// Format: 2025-01-04 14:32:01 [INFO]  message key=value
func setupLogger(levelStr string) *slog.Logger {
	var level slog.Level
	switch strings.ToUpper(levelStr) {
	case "DEBUG":
		level = slog.LevelDebug
	case "INFO":
		level = slog.LevelInfo
	case "WARN", "WARNING":
		level = slog.LevelWarn
	case "ERROR":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				if t, ok := a.Value.Any().(time.Time); ok {
					a.Value = slog.StringValue(t.Format("2006-01-02 15:04:05"))
				}
			}
			return a
		},
	}

	handler := slog.NewTextHandler(os.Stdout, opts)
	return slog.New(handler)
}
