package di

import (
	"path/filepath"
	"testing"

	"github.com/aristath/ledgerbridge/internal/config"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	dataDir := t.TempDir()
	return &config.Config{
		DataDir:             dataDir,
		AmountScale:         10,
		UpAPIToken:          "up-token",
		YNABAPIToken:        "ynab-token",
		YNABBudgetID:        "budget-1",
		PublicBaseURL:       "https://bridge.example",
		RefreshSchedule:     "@every 6h",
		BackupSchedule:      "@daily",
		CheckSchedule:       "@every 24h",
		BackupRetentionDays: 30,
		Backup:              &config.BackupConfig{},
	}
}

func TestWire(t *testing.T) {
	cfg := testConfig(t)

	container, jobs, err := Wire(cfg, zerolog.Nop())
	require.NoError(t, err)
	require.NotNil(t, container)
	require.NotNil(t, jobs)

	assert.NotNil(t, container.Store)
	assert.Equal(t, filepath.Join(cfg.DataDir, "stores"), container.Store.Dir())
	assert.NotNil(t, container.UpClient)
	assert.NotNil(t, container.YNABClient)
	assert.NotNil(t, container.Directory)
	assert.NotNil(t, container.Translator)
	assert.NotNil(t, container.Pipeline)
	assert.NotNil(t, container.Registrar)
	assert.NotNil(t, container.Scheduler)

	// Backups stay off without a bucket
	assert.Nil(t, container.BackupService)
	assert.Nil(t, jobs.Backup)
	assert.NotNil(t, jobs.RefreshAccounts)
	assert.NotNil(t, jobs.CheckStores)
	assert.ElementsMatch(t, []string{"refresh_accounts", "check_stores"}, container.Scheduler.Jobs())
}

func TestWire_WithBackup(t *testing.T) {
	cfg := testConfig(t)
	cfg.Backup = &config.BackupConfig{
		Bucket:          "snapshots",
		Endpoint:        "http://127.0.0.1:9000",
		Region:          "auto",
		AccessKeyID:     "key",
		SecretAccessKey: "secret",
	}

	container, jobs, err := Wire(cfg, zerolog.Nop())
	require.NoError(t, err)
	assert.NotNil(t, container.BackupService)
	assert.NotNil(t, jobs.Backup)
	assert.ElementsMatch(t, []string{"refresh_accounts", "check_stores", "backup"}, container.Scheduler.Jobs())
}

func TestWire_InvalidSchedule(t *testing.T) {
	cfg := testConfig(t)
	cfg.RefreshSchedule = "whenever"

	_, _, err := Wire(cfg, zerolog.Nop())
	assert.ErrorContains(t, err, "REFRESH_SCHEDULE")
}
