// Package accounts maintains the cross-system account directory: which Budget
// account corresponds to each Upstream account, and which Upstream account is
// the designated Transactional one for round-up detection.
package accounts

import (
	"context"
	"errors"
	"fmt"

	"github.com/aristath/ledgerbridge/internal/domain"
	"github.com/aristath/ledgerbridge/internal/store"
	"github.com/rs/zerolog"
)

// Store names and collections used by the directory
const (
	UpstreamCollection = "up_accounts"
	BudgetCollection   = "budget_accounts"

	metaCollection = "directory"
	metaKeyField   = "meta"

	upstreamByID = "up_accounts__id"
	budgetByName = "budget_accounts__name"
	budgetByID   = "budget_accounts__id"
	metaStore    = "directory__meta"

	transactionalKey = "transactional"
)

// transactionalLink records the designated Transactional account
type transactionalLink struct {
	UpstreamID       string `msgpack:"upstream_id"`
	BudgetAccountID  string `msgpack:"budget_account_id"`
	BudgetTransferID string `msgpack:"budget_transfer_id"`
}

// Field keys the link under transactionalKey in the meta store
func (l transactionalLink) Field(name string) (string, bool) {
	if name == metaKeyField {
		return transactionalKey, true
	}
	return "", false
}

// Directory resolves accounts across the Upstream and Budget systems.
// All state lives in the store; the directory itself holds none.
type Directory struct {
	store  store.Store
	up     domain.UpstreamClient
	budget domain.BudgetClient
	log    zerolog.Logger
}

// New creates a directory backed by s
func New(s store.Store, up domain.UpstreamClient, budget domain.BudgetClient, log zerolog.Logger) *Directory {
	return &Directory{
		store:  s,
		up:     up,
		budget: budget,
		log:    log.With().Str("component", "accounts").Logger(),
	}
}

// Refresh reloads both account sets. Budget accounts must be loaded first
// because the Upstream refresh links against them by name.
func (d *Directory) Refresh(ctx context.Context, budgetID string) error {
	if err := d.RefreshBudgetAccounts(ctx, budgetID); err != nil {
		return err
	}
	return d.RefreshUpstreamAccounts(ctx)
}

// RefreshBudgetAccounts replaces the Budget account indexes with the current
// open accounts of budgetID.
func (d *Directory) RefreshBudgetAccounts(ctx context.Context, budgetID string) error {
	budget, err := d.budget.GetBudget(ctx, budgetID)
	if err != nil {
		return fmt.Errorf("failed to get budget %s: %w", budgetID, err)
	}

	accounts, err := d.budget.ListAccounts(ctx, budgetID)
	if err != nil {
		return fmt.Errorf("failed to list budget accounts: %w", err)
	}

	// Both indexes change under one lock hold so they never disagree
	objects := keyed(accounts)
	results, err := d.store.Apply(
		store.Write{Collection: BudgetCollection, KeyField: "name", Objects: objects, Replace: true},
		store.Write{Collection: BudgetCollection, KeyField: "id", Objects: objects, Replace: true},
	)
	if err != nil {
		return fmt.Errorf("failed to store budget accounts: %w", err)
	}
	d.logSkipped(results[0], "name")
	d.logSkipped(results[1], "id")

	d.log.Info().
		Str("budget", budget.Name).
		Int("accounts", len(accounts)).
		Msg("Budget accounts refreshed")
	return nil
}

// RefreshUpstreamAccounts replaces the Upstream account index and links the
// Transactional account to its Budget counterpart. It fails with
// domain.ErrResolution when no Budget account carries the Transactional
// account's name, which includes the case where Budget accounts were never
// loaded. On failure the previous index and link are left untouched.
func (d *Directory) RefreshUpstreamAccounts(ctx context.Context) error {
	accounts, err := d.up.ListAccounts(ctx)
	if err != nil {
		return fmt.Errorf("failed to list upstream accounts: %w", err)
	}

	var transactional *domain.Account
	for i := range accounts {
		if accounts[i].Type == domain.AccountTypeTransactional {
			transactional = &accounts[i]
			break
		}
	}
	if transactional == nil {
		return fmt.Errorf("%w: no %s account upstream", domain.ErrResolution, domain.AccountTypeTransactional)
	}

	budgetAccount, found, err := store.Lookup[domain.Account](d.store, budgetByName, transactional.Name)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%w: no budget account named %q (refresh budget accounts first)",
			domain.ErrResolution, transactional.Name)
	}

	link := transactionalLink{
		UpstreamID:       transactional.ID,
		BudgetAccountID:  budgetAccount.ID,
		BudgetTransferID: budgetAccount.TransferID,
	}
	results, err := d.store.Apply(
		store.Write{Collection: UpstreamCollection, KeyField: "id", Objects: keyed(accounts), Replace: true},
		store.Write{Collection: metaCollection, KeyField: metaKeyField, Objects: []store.Keyed{link}},
	)
	if err != nil {
		return fmt.Errorf("failed to store upstream accounts: %w", err)
	}
	d.logSkipped(results[0], "id")

	d.log.Info().
		Int("accounts", len(accounts)).
		Str("transactional", transactional.Name).
		Msg("Upstream accounts refreshed")
	return nil
}

// ResolveBudgetAccountID maps an Upstream account id to the Budget account
// with the same name.
func (d *Directory) ResolveBudgetAccountID(upstreamID string) (string, error) {
	upstream, found, err := store.Lookup[domain.Account](d.store, upstreamByID, upstreamID)
	if err != nil {
		return "", err
	}
	if !found {
		return "", fmt.Errorf("upstream account %s: %w", upstreamID, domain.ErrNotFound)
	}

	budgetAccount, found, err := store.Lookup[domain.Account](d.store, budgetByName, upstream.Name)
	if err != nil {
		return "", err
	}
	if !found {
		return "", fmt.Errorf("budget account %q: %w", upstream.Name, domain.ErrNotFound)
	}
	return budgetAccount.ID, nil
}

// IsRoundUp reports whether a transaction on accountID with the given
// transfer account is a round-up: money moved into a Saver account from the
// designated Transactional account.
func (d *Directory) IsRoundUp(accountID, transferAccountID string) (bool, error) {
	if transferAccountID == "" {
		return false, nil
	}

	link, found, err := d.transactional()
	if err != nil || !found {
		return false, err
	}
	if transferAccountID != link.UpstreamID {
		return false, nil
	}

	account, found, err := store.Lookup[domain.Account](d.store, upstreamByID, accountID)
	if err != nil || !found {
		return false, err
	}
	return account.Type == domain.AccountTypeSaver, nil
}

// TransactionalTransferID returns the Budget transfer payee id of the
// Transactional account's Budget counterpart.
func (d *Directory) TransactionalTransferID() (string, error) {
	link, found, err := d.transactional()
	if err != nil {
		return "", err
	}
	if !found || link.BudgetTransferID == "" {
		return "", fmt.Errorf("transactional transfer payee: %w", domain.ErrNotFound)
	}
	return link.BudgetTransferID, nil
}

// UpstreamAccounts lists the stored Upstream accounts ordered by id
func (d *Directory) UpstreamAccounts() ([]domain.Account, error) {
	return d.list(upstreamByID)
}

// BudgetAccounts lists the stored Budget accounts ordered by id
func (d *Directory) BudgetAccounts() ([]domain.Account, error) {
	return d.list(budgetByID)
}

func (d *Directory) list(name string) ([]domain.Account, error) {
	keys, err := d.store.Keys(name)
	if err != nil {
		return nil, err
	}

	accounts := make([]domain.Account, 0, len(keys))
	for _, key := range keys {
		account, found, err := store.Lookup[domain.Account](d.store, name, key)
		if err != nil {
			return nil, err
		}
		// Replaced between Keys and Lookup
		if !found {
			continue
		}
		accounts = append(accounts, account)
	}
	return accounts, nil
}

func (d *Directory) transactional() (transactionalLink, bool, error) {
	return store.Lookup[transactionalLink](d.store, metaStore, transactionalKey)
}

func keyed(accounts []domain.Account) []store.Keyed {
	out := make([]store.Keyed, len(accounts))
	for i := range accounts {
		out[i] = accounts[i]
	}
	return out
}

func (d *Directory) logSkipped(results []store.PutResult, keyField string) {
	for _, r := range store.Skipped(results) {
		if errors.Is(r.Err, store.ErrMissingKey) {
			d.log.Warn().Int("index", r.Index).Str("key_field", keyField).Msg("Skipped account without key field")
		}
	}
}
