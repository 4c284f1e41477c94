// Package di provides dependency injection type definitions.
//
// The Container holds every long-lived service instance and is the single
// source of truth handed to the server and the scheduler.
package di

import (
	"github.com/aristath/ledgerbridge/internal/accounts"
	"github.com/aristath/ledgerbridge/internal/clients/up"
	"github.com/aristath/ledgerbridge/internal/clients/ynab"
	"github.com/aristath/ledgerbridge/internal/pipeline"
	"github.com/aristath/ledgerbridge/internal/reliability"
	"github.com/aristath/ledgerbridge/internal/scheduler"
	"github.com/aristath/ledgerbridge/internal/store"
	"github.com/aristath/ledgerbridge/internal/translate"
	"github.com/aristath/ledgerbridge/internal/webhooks"
)

// Container holds all application dependencies
type Container struct {
	// Persistence
	Store *store.SQLiteStore

	// API clients
	UpClient   *up.Client
	YNABClient *ynab.Client

	// Core
	Directory  *accounts.Directory
	Translator *translate.Translator
	Pipeline   *pipeline.Pipeline
	Registrar  *webhooks.Registrar

	// Background
	Scheduler     *scheduler.Scheduler
	BackupService *reliability.BackupService // nil when backups are not configured
}

// JobInstances holds references to the registered jobs for manual triggering
type JobInstances struct {
	RefreshAccounts *scheduler.RefreshAccountsJob
	CheckStores     *scheduler.CheckStoresJob
	Backup          *scheduler.BackupJob // nil when backups are not configured
}
