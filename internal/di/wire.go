// Package di provides dependency injection wiring and initialization.
package di

import (
	"context"
	"fmt"

	"github.com/aristath/ledgerbridge/internal/accounts"
	"github.com/aristath/ledgerbridge/internal/clients/up"
	"github.com/aristath/ledgerbridge/internal/clients/ynab"
	"github.com/aristath/ledgerbridge/internal/config"
	"github.com/aristath/ledgerbridge/internal/pipeline"
	"github.com/aristath/ledgerbridge/internal/reliability"
	"github.com/aristath/ledgerbridge/internal/scheduler"
	"github.com/aristath/ledgerbridge/internal/store"
	"github.com/aristath/ledgerbridge/internal/translate"
	"github.com/aristath/ledgerbridge/internal/webhooks"
	"github.com/rs/zerolog"
)

// Wire initializes all dependencies and returns a fully configured container
// Order of operations:
// 1. Initialize the store
// 2. Initialize API clients
// 3. Initialize core services
// 4. Register jobs
// Nothing here talks to the remote APIs; the startup refresh happens in main.
func Wire(cfg *config.Config, log zerolog.Logger) (*Container, *JobInstances, error) {
	container := &Container{
		Store: store.NewSQLiteStore(cfg.StoreDir(), log),
	}

	container.UpClient = up.NewClient(cfg.UpBaseURL, cfg.UpAPIToken, log)
	container.YNABClient = ynab.NewClient(cfg.YNABBaseURL, cfg.YNABAPIToken, log)

	container.Directory = accounts.New(container.Store, container.UpClient, container.YNABClient, log)
	container.Translator = translate.New(container.Directory, translate.Options{AmountScale: cfg.AmountScale})
	container.Pipeline = pipeline.New(
		container.UpClient,
		container.YNABClient,
		container.Translator,
		container.Store,
		cfg.YNABBudgetID,
		log,
	)
	container.Registrar = webhooks.NewRegistrar(container.UpClient, container.Store, log)

	if cfg.Backup.Enabled() {
		bucket, err := reliability.NewS3Client(context.Background(), reliability.BucketConfig{
			Bucket:          cfg.Backup.Bucket,
			Endpoint:        cfg.Backup.Endpoint,
			Region:          cfg.Backup.Region,
			AccessKeyID:     cfg.Backup.AccessKeyID,
			SecretAccessKey: cfg.Backup.SecretAccessKey,
		}, log)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize backup bucket: %w", err)
		}
		container.BackupService = reliability.NewBackupService(container.Store, bucket, cfg.DataDir, log)
	}

	container.Scheduler = scheduler.New(log)
	jobs, err := RegisterJobs(container, cfg, log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to register jobs: %w", err)
	}

	log.Info().Msg("Dependency injection wiring completed successfully")

	return container, jobs, nil
}

// RegisterJobs creates the background jobs and adds them to the scheduler
func RegisterJobs(container *Container, cfg *config.Config, log zerolog.Logger) (*JobInstances, error) {
	jobs := &JobInstances{
		RefreshAccounts: scheduler.NewRefreshAccountsJob(container.Directory, cfg.YNABBudgetID, log),
		CheckStores:     scheduler.NewCheckStoresJob(container.Store, log),
	}

	if err := container.Scheduler.AddJob(cfg.RefreshSchedule, jobs.RefreshAccounts); err != nil {
		return nil, fmt.Errorf("invalid REFRESH_SCHEDULE %q: %w", cfg.RefreshSchedule, err)
	}
	if err := container.Scheduler.AddJob(cfg.CheckSchedule, jobs.CheckStores); err != nil {
		return nil, fmt.Errorf("invalid CHECK_SCHEDULE %q: %w", cfg.CheckSchedule, err)
	}

	if container.BackupService != nil {
		jobs.Backup = scheduler.NewBackupJob(container.BackupService, cfg.BackupRetentionDays, log)
		if err := container.Scheduler.AddJob(cfg.BackupSchedule, jobs.Backup); err != nil {
			return nil, fmt.Errorf("invalid BACKUP_SCHEDULE %q: %w", cfg.BackupSchedule, err)
		}
	}

	return jobs, nil
}
