// Package main is the entry point for ledgerbridge, which mirrors Up bank
// transactions into a YNAB budget as they happen.
//
// Startup order matters:
//   - Budget accounts are loaded before Upstream accounts, because the
//     Transactional account is linked to its Budget counterpart by name
//   - The webhook is registered only once the directory can resolve accounts
//   - The HTTP server starts last, so no event arrives before the directory is ready
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aristath/ledgerbridge/internal/config"
	"github.com/aristath/ledgerbridge/internal/di"
	"github.com/aristath/ledgerbridge/internal/server"
	"github.com/aristath/ledgerbridge/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Use fallback logger if config fails
		fallbackLog := logger.New(logger.Config{
			Level:  "info",
			Pretty: true,
		})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.LogPretty,
	})
	logger.SetGlobalLogger(log)

	log.Info().
		Str("data_dir", cfg.DataDir).
		Str("budget_id", cfg.YNABBudgetID).
		Msg("Starting ledgerbridge")

	container, jobs, err := di.Wire(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire dependencies")
	}

	// Account directory must be populated before any event can be translated.
	// A resolution error here means the two systems disagree on account names.
	setupCtx, setupCancel := context.WithTimeout(context.Background(), 2*time.Minute)
	if err := container.Directory.Refresh(setupCtx, cfg.YNABBudgetID); err != nil {
		setupCancel()
		log.Fatal().Err(err).Msg("Failed to refresh accounts")
	}

	registration, err := container.Registrar.EnsureRegistered(setupCtx, cfg.CallbackURL())
	setupCancel()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to register webhook")
	}
	log.Info().
		Str("webhook_id", registration.Webhook.ID).
		Bool("created", registration.Created).
		Bool("signed", registration.Webhook.SecretKey != "").
		Msg("Webhook ready")

	srv := server.New(server.Config{
		Log:         log,
		Port:        cfg.Port,
		BudgetID:    cfg.YNABBudgetID,
		CallbackURL: cfg.CallbackURL(),
		Pipeline:    container.Pipeline,
		Accounts:    container.Directory,
		Webhooks:    container.Registrar,
		Stores:      container.Store,
	})

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	container.Scheduler.Start()

	// Check store integrity once at startup
	if err := container.Scheduler.RunNow(jobs.CheckStores); err != nil {
		log.Warn().Err(err).Msg("Store integrity check failed at startup")
	}

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down...")

	// Let a running refresh or backup finish before the server goes away
	container.Scheduler.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
