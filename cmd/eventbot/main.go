package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/clanops/eventbot/internal/bot"
	"github.com/clanops/eventbot/internal/clock"
	"github.com/clanops/eventbot/internal/config"
	"github.com/clanops/eventbot/internal/event"
	"github.com/clanops/eventbot/internal/health"
	"github.com/clanops/eventbot/internal/reminder"
	"github.com/clanops/eventbot/internal/telemetry"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	if err := run(*configPath); err != nil {
		slog.Error("fatal error", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(configPath string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Load configuration.
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Setup telemetry.
	tp, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		slog.Warn("telemetry setup failed, continuing without OTEL export", slog.Any("error", err))
		tp = telemetry.NewNopProvider()
	}
	defer func() {
		if shutdownErr := tp.Shutdown(context.Background()); shutdownErr != nil {
			slog.Error("telemetry shutdown error", slog.Any("error", shutdownErr))
		}
	}()

	logger := tp.Logger
	clk := clock.Real{}

	registry := event.NewRegistry(logger, tp.TracerProvider, clk)

	discordBot, err := bot.New(cfg.Discord, registry, logger, tp.TracerProvider)
	if err != nil {
		return fmt.Errorf("creating bot: %w", err)
	}

	// The bot renders the scheduler's reminders and prompts.
	scheduler := reminder.NewScheduler(registry, discordBot, logger, tp.TracerProvider, clk, reminder.Options{
		ScanInterval:  cfg.Reminder.ScanInterval,
		ErrorBackoff:  cfg.Reminder.ErrorBackoff,
		WindowMin:     cfg.Reminder.WindowMin,
		WindowMax:     cfg.Reminder.WindowMax,
		PromptTimeout: cfg.Reminder.PromptTimeout,
	})
	discordBot.SetScheduler(scheduler)

	// Setup health checks.
	healthHandler := health.NewHandler(clk)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", healthHandler.LivenessHandler())
	mux.HandleFunc("/readyz", healthHandler.ReadinessHandler())

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.InfoContext(ctx, "starting health server", slog.Int("port", cfg.Server.Port))
		if listenErr := httpServer.ListenAndServe(); listenErr != nil && listenErr != http.ErrServerClosed {
			logger.ErrorContext(ctx, "health server error", slog.Any("error", listenErr))
		}
	}()

	if err := discordBot.Start(ctx); err != nil {
		return fmt.Errorf("starting bot: %w", err)
	}

	scheduler.Start(ctx)

	// Periodically prune events past the retention window.
	go func() {
		ticker := time.NewTicker(cfg.Cleanup.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				registry.CleanupOld(ctx, cfg.Cleanup.RetentionDays)
			}
		}
	}()

	healthHandler.SetReady(true)
	logger.InfoContext(ctx, "eventbot is running", slog.String("version", version))

	// Wait for shutdown signal.
	<-ctx.Done()
	logger.Info("shutting down...")

	healthHandler.SetReady(false)
	scheduler.Stop()

	if stopErr := discordBot.Stop(); stopErr != nil {
		logger.Error("bot shutdown error", slog.Any("error", stopErr))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", slog.Any("error", err))
	}

	logger.Info("shutdown complete")
	return nil
}
