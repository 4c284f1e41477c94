package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// AccountRefresher reloads the account directory
type AccountRefresher interface {
	Refresh(ctx context.Context, budgetID string) error
}

// RefreshAccountsJob keeps the account directory in step with both systems
type RefreshAccountsJob struct {
	log       zerolog.Logger
	directory AccountRefresher
	budgetID  string
	timeout   time.Duration
}

// NewRefreshAccountsJob creates a new RefreshAccountsJob
func NewRefreshAccountsJob(directory AccountRefresher, budgetID string, log zerolog.Logger) *RefreshAccountsJob {
	return &RefreshAccountsJob{
		log:       log.With().Str("job", "refresh_accounts").Logger(),
		directory: directory,
		budgetID:  budgetID,
		timeout:   2 * time.Minute,
	}
}

// Name returns the job name
func (j *RefreshAccountsJob) Name() string {
	return "refresh_accounts"
}

// Run executes the refresh
func (j *RefreshAccountsJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	if err := j.directory.Refresh(ctx, j.budgetID); err != nil {
		return fmt.Errorf("account refresh failed: %w", err)
	}
	j.log.Info().Msg("Accounts refreshed")
	return nil
}

// Backupper creates an off-site store backup
type Backupper interface {
	CreateAndUploadBackup(ctx context.Context) error
	RotateOldBackups(ctx context.Context, retentionDays int) error
}

// BackupJob snapshots the stores and uploads them
type BackupJob struct {
	log           zerolog.Logger
	backup        Backupper
	retentionDays int
	timeout       time.Duration
}

// NewBackupJob creates a new BackupJob. retentionDays <= 0 disables rotation.
func NewBackupJob(backup Backupper, retentionDays int, log zerolog.Logger) *BackupJob {
	return &BackupJob{
		log:           log.With().Str("job", "backup").Logger(),
		backup:        backup,
		retentionDays: retentionDays,
		timeout:       10 * time.Minute,
	}
}

// Name returns the job name
func (j *BackupJob) Name() string {
	return "backup"
}

// Run executes the backup and rotation
func (j *BackupJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	if err := j.backup.CreateAndUploadBackup(ctx); err != nil {
		return fmt.Errorf("backup failed: %w", err)
	}

	if j.retentionDays > 0 {
		if err := j.backup.RotateOldBackups(ctx, j.retentionDays); err != nil {
			// The new backup is already uploaded
			j.log.Warn().Err(err).Msg("Backup rotation failed")
		}
	}
	return nil
}

// StoreChecker verifies store integrity
type StoreChecker interface {
	Check(ctx context.Context) error
}

// CheckStoresJob verifies integrity of the SQLite store files
type CheckStoresJob struct {
	log    zerolog.Logger
	stores StoreChecker
}

// NewCheckStoresJob creates a new CheckStoresJob
func NewCheckStoresJob(stores StoreChecker, log zerolog.Logger) *CheckStoresJob {
	return &CheckStoresJob{
		log:    log.With().Str("job", "check_stores").Logger(),
		stores: stores,
	}
}

// Name returns the job name
func (j *CheckStoresJob) Name() string {
	return "check_stores"
}

// Run executes the integrity check
func (j *CheckStoresJob) Run() error {
	if err := j.stores.Check(context.Background()); err != nil {
		// Corruption cannot be repaired in place; a refresh rebuilds the account stores
		j.log.Error().Err(err).Msg("Store integrity check failed")
		return err
	}
	j.log.Info().Msg("All stores passed integrity check")
	return nil
}
