// Package pipeline turns one webhook event into one Budget ledger entry.
//
// A run moves RECEIVED -> FETCHED -> TRANSLATED -> SUBMITTED -> DONE and stops
// at FAILED on the first error. Runs share no mutable state beyond the store,
// so concurrent deliveries are safe.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aristath/ledgerbridge/internal/domain"
	"github.com/aristath/ledgerbridge/internal/store"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Stage is a pipeline state
type Stage string

const (
	StageReceived   Stage = "RECEIVED"
	StageFetched    Stage = "FETCHED"
	StageTranslated Stage = "TRANSLATED"
	StageSubmitted  Stage = "SUBMITTED"
	StageDone       Stage = "DONE"
	StageFailed     Stage = "FAILED"
)

// SubmissionsStore records import ids already accepted by the Budget system
const SubmissionsStore = "submissions__importId"

// Translator maps an Upstream transaction to a Budget entry
type Translator interface {
	Translate(tx *domain.Transaction) (domain.BudgetTransaction, error)
}

// Result is the terminal state of one run
type Result struct {
	RunID       string
	Stage       Stage // StageDone or StageFailed
	FailedStage Stage // the stage that could not be reached
	Err         error
	Summary     string
	Ignored     bool
	Duplicate   bool
	Transaction *domain.BudgetTransaction
}

// OK reports whether the run reached DONE
func (r Result) OK() bool {
	return r.Stage == StageDone
}

type submission struct {
	TransactionID string    `msgpack:"transaction_id"`
	AccountID     string    `msgpack:"account_id"`
	SubmittedAt   time.Time `msgpack:"submitted_at"`
}

// Pipeline processes webhook events
type Pipeline struct {
	up         domain.UpstreamClient
	budget     domain.BudgetClient
	translator Translator
	store      store.Store
	budgetID   string
	log        zerolog.Logger
}

// New creates a pipeline submitting into budgetID
func New(up domain.UpstreamClient, budget domain.BudgetClient, translator Translator, s store.Store, budgetID string, log zerolog.Logger) *Pipeline {
	return &Pipeline{
		up:         up,
		budget:     budget,
		translator: translator,
		store:      s,
		budgetID:   budgetID,
		log:        log.With().Str("component", "pipeline").Logger(),
	}
}

// Handle runs one event to completion. It never panics on remote errors;
// failures are reported in the Result.
func (p *Pipeline) Handle(ctx context.Context, event domain.WebhookEvent) Result {
	res := Result{RunID: uuid.NewString(), Stage: StageReceived}
	log := p.log.With().
		Str("run_id", res.RunID).
		Str("event_type", event.Type).
		Str("transaction_id", event.TransactionID).
		Logger()

	if !event.Actionable() {
		log.Debug().Msg("Ignoring event")
		res.Stage = StageDone
		res.Ignored = true
		return res
	}

	tx, err := p.up.GetTransaction(ctx, event.TransactionID)
	if err != nil {
		return p.fail(log, res, StageFetched, fmt.Errorf("fetch transaction %s: %w", event.TransactionID, err))
	}
	res.Stage = StageFetched

	entry, err := p.translator.Translate(tx)
	if err != nil {
		return p.fail(log, res, StageTranslated, err)
	}
	res.Stage = StageTranslated
	res.Transaction = &entry
	log = log.With().Str("import_id", entry.ImportID).Logger()

	if p.alreadySubmitted(log, entry.ImportID) {
		log.Info().Msg("Transaction already submitted, skipping")
		res.Stage = StageDone
		res.Duplicate = true
		res.Summary = summarize(tx, entry)
		return res
	}

	duplicate, err := p.budget.CreateTransaction(ctx, p.budgetID, entry)
	if err != nil {
		return p.fail(log, res, StageSubmitted, fmt.Errorf("submit transaction %s: %w", tx.ID, err))
	}
	res.Stage = StageSubmitted
	res.Duplicate = duplicate

	record := submission{TransactionID: tx.ID, AccountID: entry.AccountID, SubmittedAt: time.Now().UTC()}
	if err := p.store.Set(SubmissionsStore, entry.ImportID, record); err != nil {
		log.Warn().Err(err).Msg("Failed to record submission")
	}

	res.Stage = StageDone
	res.Summary = summarize(tx, entry)
	log.Info().
		Bool("duplicate", duplicate).
		Str("summary", res.Summary).
		Msg("Transaction synced")
	return res
}

// Forget drops the local submission record for importID so the transaction
// can be submitted again. Unknown ids yield domain.ErrNotFound.
func (p *Pipeline) Forget(importID string) error {
	if err := p.store.Delete(SubmissionsStore, importID); err != nil {
		return fmt.Errorf("forget submission %s: %w", importID, err)
	}
	p.log.Info().Str("import_id", importID).Msg("Submission record removed")
	return nil
}

// alreadySubmitted consults the local record. A storage failure is logged and
// treated as not submitted: the Budget API deduplicates import ids anyway.
func (p *Pipeline) alreadySubmitted(log zerolog.Logger, importID string) bool {
	var rec submission
	found, err := p.store.Get(SubmissionsStore, importID, &rec)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to read submission record")
		return false
	}
	return found
}

func (p *Pipeline) fail(log zerolog.Logger, res Result, stage Stage, err error) Result {
	res.Stage = StageFailed
	res.FailedStage = stage
	res.Err = err

	ev := log.Error()
	if errors.Is(err, domain.ErrNotFound) {
		ev = log.Warn()
	}
	ev.Err(err).Str("failed_stage", string(stage)).Msg("Pipeline run failed")
	return res
}

func summarize(tx *domain.Transaction, entry domain.BudgetTransaction) string {
	return fmt.Sprintf("%s paid to %s at %s", tx.Value, entry.PayeeName, entry.Date)
}
