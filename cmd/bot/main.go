package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/apoyointegral/sesiones-bot/internal/config"
	"github.com/apoyointegral/sesiones-bot/internal/health"
	"github.com/apoyointegral/sesiones-bot/internal/session"
	"github.com/apoyointegral/sesiones-bot/internal/storage"
	"github.com/apoyointegral/sesiones-bot/internal/telegram"
)

func main() {
	// Setup logger
	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(log)

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Debug("no .env file found")
	}

	// Load config
	cfg := config.Load()

	if cfg.BotToken == "" {
		log.Error("TELEGRAM_TOKEN is required")
		os.Exit(1)
	}
	if !cfg.AdminConfigured() {
		log.Warn("YOUR_TELEGRAM_ID not set: receipts and questions cannot be forwarded")
	}
	if !cfg.PaymentConfigured() {
		log.Warn("payment details incomplete: session purchases will fail until configured")
	}

	// Initialize audit trail storage
	store, err := storage.New(cfg.DBPath)
	if err != nil {
		log.Error("init storage", "error", err)
		os.Exit(1)
	}
	defer store.Close()
	log.Info("audit storage initialized", "path", cfg.DBPath)

	// The registry holds all live session/payment state; it is volatile by
	// design and starts empty on every boot.
	registry := session.NewRegistry()

	// Initialize telegram bot
	bot, err := telegram.New(cfg, registry, store, log)
	if err != nil {
		log.Error("init telegram bot", "error", err)
		os.Exit(1)
	}
	log.Info("telegram bot initialized")

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start health server
	healthServer := health.NewServer(registry, log)
	go func() {
		if err := healthServer.Start(ctx, cfg.Port); err != nil && err != http.ErrServerClosed {
			log.Error("health server", "error", err)
		}
	}()

	// Start keep-alive pinger
	if cfg.KeepAliveInterval > 0 {
		pinger := health.NewPinger(cfg.KeepAliveURL, cfg.KeepAliveInterval, log)
		go pinger.Start(ctx)
	}

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		log.Info("shutting down...")
		cancel()
	}()

	// Start bot polling
	log.Info("starting bot polling...")
	bot.Start(ctx)
}
