package accounts

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/aristath/ledgerbridge/internal/domain"
	"github.com/aristath/ledgerbridge/internal/store"
	testutil "github.com/aristath/ledgerbridge/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	dir    *Directory
	store  store.Store
	up     *testutil.MockUpstreamClient
	budget *testutil.MockBudgetClient
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	up := testutil.NewMockUpstreamClient()
	up.SetAccounts(testutil.NewUpstreamAccountFixtures())

	budget := testutil.NewMockBudgetClient()
	budget.SetBudget(testutil.NewBudgetFixture())
	budget.SetAccounts(testutil.NewBudgetAccountFixtures())

	s := testutil.NewTestStore(t)
	return &fixture{
		dir:    New(s, up, budget, zerolog.Nop()),
		store:  s,
		up:     up,
		budget: budget,
	}
}

func TestRefresh_ResolvesAccounts(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.dir.Refresh(context.Background(), testutil.BudgetID))

	id, err := f.dir.ResolveBudgetAccountID(testutil.UpSpendingID)
	require.NoError(t, err)
	assert.Equal(t, testutil.BudgetSpendingID, id)

	id, err = f.dir.ResolveBudgetAccountID(testutil.UpSaverID)
	require.NoError(t, err)
	assert.Equal(t, testutil.BudgetSaverID, id)

	transferID, err := f.dir.TransactionalTransferID()
	require.NoError(t, err)
	assert.Equal(t, testutil.BudgetSpendingTransferID, transferID)
}

func TestRefreshUpstreamAccounts_BeforeBudgetRefreshFails(t *testing.T) {
	f := newFixture(t)

	err := f.dir.RefreshUpstreamAccounts(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrResolution)
}

func TestRefreshUpstreamAccounts_NoMatchingBudgetAccount(t *testing.T) {
	f := newFixture(t)
	f.budget.SetAccounts([]domain.Account{
		{Origin: domain.OriginBudget, ID: "B9", Name: "Something Else", TransferID: "P9"},
	})
	require.NoError(t, f.dir.RefreshBudgetAccounts(context.Background(), testutil.BudgetID))

	err := f.dir.RefreshUpstreamAccounts(context.Background())
	assert.ErrorIs(t, err, domain.ErrResolution)
}

func TestRefreshUpstreamAccounts_NoTransactionalAccount(t *testing.T) {
	f := newFixture(t)
	f.up.SetAccounts([]domain.Account{
		{Origin: domain.OriginUpstream, ID: testutil.UpSaverID, Name: "Rainy Day", Type: domain.AccountTypeSaver},
	})
	require.NoError(t, f.dir.RefreshBudgetAccounts(context.Background(), testutil.BudgetID))

	err := f.dir.RefreshUpstreamAccounts(context.Background())
	assert.ErrorIs(t, err, domain.ErrResolution)
}

func TestRefreshBudgetAccounts_UnknownBudget(t *testing.T) {
	f := newFixture(t)

	err := f.dir.RefreshBudgetAccounts(context.Background(), "other-budget")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRefresh_TransportErrorPropagates(t *testing.T) {
	f := newFixture(t)
	f.budget.SetError(&domain.TransportError{Op: "get budget", Err: errors.New("connection refused")})

	err := f.dir.Refresh(context.Background(), testutil.BudgetID)
	assert.ErrorIs(t, err, domain.ErrTransport)
	assert.Zero(t, f.up.Calls())
}

func TestRefresh_ReplacesWholesale(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.dir.Refresh(context.Background(), testutil.BudgetID))

	f.budget.SetAccounts(testutil.NewBudgetAccountFixtures()[:1])
	require.NoError(t, f.dir.Refresh(context.Background(), testutil.BudgetID))

	budgetAccounts, err := f.dir.BudgetAccounts()
	require.NoError(t, err)
	require.Len(t, budgetAccounts, 1)
	assert.Equal(t, testutil.BudgetSpendingID, budgetAccounts[0].ID)

	_, err = f.dir.ResolveBudgetAccountID(testutil.UpSaverID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestResolveBudgetAccountID_NotFound(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.dir.Refresh(context.Background(), testutil.BudgetID))

	tests := []struct {
		name       string
		upstreamID string
	}{
		{"never seen", "unknown"},
		{"no budget counterpart", testutil.UpHomeLoanID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.dir.ResolveBudgetAccountID(tt.upstreamID)
			assert.ErrorIs(t, err, domain.ErrNotFound)
		})
	}
}

func TestIsRoundUp(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.dir.Refresh(context.Background(), testutil.BudgetID))

	tests := []struct {
		name              string
		accountID         string
		transferAccountID string
		want              bool
	}{
		{"saver from transactional", testutil.UpSaverID, testutil.UpSpendingID, true},
		{"not a transfer", testutil.UpSaverID, "", false},
		{"transactional to saver", testutil.UpSpendingID, testutil.UpSaverID, false},
		{"home loan from transactional", testutil.UpHomeLoanID, testutil.UpSpendingID, false},
		{"saver from unknown account", testutil.UpSaverID, "elsewhere", false},
		{"unknown account", "unknown", testutil.UpSpendingID, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.dir.IsRoundUp(tt.accountID, tt.transferAccountID)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTransactionalTransferID_BeforeRefresh(t *testing.T) {
	f := newFixture(t)

	_, err := f.dir.TransactionalTransferID()
	assert.ErrorIs(t, err, domain.ErrNotFound)

	roundUp, err := f.dir.IsRoundUp(testutil.UpSaverID, testutil.UpSpendingID)
	require.NoError(t, err)
	assert.False(t, roundUp)
}

func TestUpstreamAccounts(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.dir.Refresh(context.Background(), testutil.BudgetID))

	accounts, err := f.dir.UpstreamAccounts()
	require.NoError(t, err)
	require.Len(t, accounts, 3)
	assert.Equal(t, []string{"A1", "A2", "A3"}, []string{accounts[0].ID, accounts[1].ID, accounts[2].ID})
	for _, a := range accounts {
		assert.Equal(t, domain.OriginUpstream, a.Origin)
	}
}

func TestRefresh_IndexesAgree(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.dir.Refresh(context.Background(), testutil.BudgetID))

	for _, want := range testutil.NewBudgetAccountFixtures() {
		byID, found, err := store.Lookup[domain.Account](f.store, "budget_accounts__id", want.ID)
		require.NoError(t, err)
		require.True(t, found)
		byName, found, err := store.Lookup[domain.Account](f.store, "budget_accounts__name", want.Name)
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, byID, byName)
	}
}

func TestRefreshUpstreamAccounts_FailedResolutionKeepsPreviousSet(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.dir.Refresh(context.Background(), testutil.BudgetID))

	// Transactional account renamed upstream with no Budget account to match
	f.up.SetAccounts([]domain.Account{
		{Origin: domain.OriginUpstream, ID: "A9", Name: "Everyday", Type: domain.AccountTypeTransactional},
		{Origin: domain.OriginUpstream, ID: testutil.UpSaverID, Name: "Rainy Day", Type: domain.AccountTypeSaver},
	})

	err := f.dir.Refresh(context.Background(), testutil.BudgetID)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrResolution)

	accounts, err := f.dir.UpstreamAccounts()
	require.NoError(t, err)
	ids := make([]string, len(accounts))
	for i, a := range accounts {
		ids[i] = a.ID
	}
	assert.Equal(t, []string{testutil.UpSpendingID, testutil.UpSaverID, testutil.UpHomeLoanID}, ids)

	id, err := f.dir.ResolveBudgetAccountID(testutil.UpSpendingID)
	require.NoError(t, err)
	assert.Equal(t, testutil.BudgetSpendingID, id)

	_, err = f.dir.ResolveBudgetAccountID("A9")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	roundUp, err := f.dir.IsRoundUp(testutil.UpSaverID, testutil.UpSpendingID)
	require.NoError(t, err)
	assert.True(t, roundUp)

	transferID, err := f.dir.TransactionalTransferID()
	require.NoError(t, err)
	assert.Equal(t, testutil.BudgetSpendingTransferID, transferID)
}

// recordingStore counts how index writes reach the store
type recordingStore struct {
	store.Store
	mu      sync.Mutex
	batches [][]string
}

func (r *recordingStore) Replace(collection, keyField string, objects []store.Keyed) ([]store.PutResult, error) {
	r.record(store.Write{Collection: collection, KeyField: keyField})
	return r.Store.Replace(collection, keyField, objects)
}

func (r *recordingStore) Apply(writes ...store.Write) ([][]store.PutResult, error) {
	r.record(writes...)
	return r.Store.Apply(writes...)
}

func (r *recordingStore) record(writes ...store.Write) {
	names := make([]string, len(writes))
	for i, w := range writes {
		names[i] = store.Name(w.Collection, w.KeyField)
	}
	r.mu.Lock()
	r.batches = append(r.batches, names)
	r.mu.Unlock()
}

func TestRefresh_WritesIndexesInOneBatch(t *testing.T) {
	f := newFixture(t)
	rec := &recordingStore{Store: f.store}
	dir := New(rec, f.up, f.budget, zerolog.Nop())

	require.NoError(t, dir.Refresh(context.Background(), testutil.BudgetID))

	assert.Equal(t, [][]string{
		{"budget_accounts__name", "budget_accounts__id"},
		{"up_accounts__id", "directory__meta"},
	}, rec.batches)
}
