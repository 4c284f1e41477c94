package translate

import (
	"fmt"
	"testing"
	"time"

	"github.com/aristath/ledgerbridge/internal/domain"
	testutil "github.com/aristath/ledgerbridge/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubDirectory resolves from fixed maps
type stubDirectory struct {
	budgetIDs  map[string]string
	roundUps   map[string]string // saver id -> transactional id
	transferID string
	err        error
}

func newStubDirectory() *stubDirectory {
	return &stubDirectory{
		budgetIDs: map[string]string{
			testutil.UpSpendingID: testutil.BudgetSpendingID,
			testutil.UpSaverID:    testutil.BudgetSaverID,
		},
		roundUps:   map[string]string{testutil.UpSaverID: testutil.UpSpendingID},
		transferID: testutil.BudgetSpendingTransferID,
	}
}

func (d *stubDirectory) ResolveBudgetAccountID(upstreamID string) (string, error) {
	if d.err != nil {
		return "", d.err
	}
	id, ok := d.budgetIDs[upstreamID]
	if !ok {
		return "", fmt.Errorf("account %s: %w", upstreamID, domain.ErrNotFound)
	}
	return id, nil
}

func (d *stubDirectory) IsRoundUp(accountID, transferAccountID string) (bool, error) {
	return transferAccountID != "" && d.roundUps[accountID] == transferAccountID, nil
}

func (d *stubDirectory) TransactionalTransferID() (string, error) {
	if d.transferID == "" {
		return "", domain.ErrNotFound
	}
	return d.transferID, nil
}

func TestTranslate_Purchase(t *testing.T) {
	tr := New(newStubDirectory(), Options{})

	got, err := tr.Translate(testutil.NewTransactionFixture())
	require.NoError(t, err)

	assert.Equal(t, domain.BudgetTransaction{
		AccountID: testutil.BudgetSpendingID,
		PayeeName: "Coffee Shop",
		Amount:    -4500,
		Date:      "2024-01-05",
		Cleared:   domain.ClearedCleared,
		ImportID:  ImportID("T1"),
	}, got)
}

func TestTranslate_PassThroughScale(t *testing.T) {
	tr := New(newStubDirectory(), Options{AmountScale: 1})

	got, err := tr.Translate(testutil.NewTransactionFixture())
	require.NoError(t, err)
	assert.Equal(t, int64(-450), got.Amount)
}

func TestTranslate_Amounts(t *testing.T) {
	tests := []struct {
		name  string
		cents int64
		scale int64
		want  int64
	}{
		{"outflow", -450, 10, -4500},
		{"inflow", 12345, 10, 123450},
		{"zero", 0, 10, 0},
		{"one cent out", -1, 10, -10},
		{"pass through outflow", -450, 1, -450},
		{"pass through inflow", 999, 1, 999},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := testutil.NewTransactionFixture()
			tx.Value.ValueInBaseUnits = tt.cents

			got, err := New(newStubDirectory(), Options{AmountScale: tt.scale}).Translate(tx)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Amount)
			assert.Equal(t, tt.cents < 0, got.Amount < 0)
		})
	}
}

func TestTranslate_RoundUp(t *testing.T) {
	tr := New(newStubDirectory(), Options{})

	got, err := tr.Translate(testutil.NewRoundUpFixture())
	require.NoError(t, err)

	assert.Equal(t, RoundUpPayee, got.PayeeName)
	assert.Equal(t, testutil.BudgetSpendingTransferID, got.PayeeID)
	assert.Equal(t, testutil.BudgetSaverID, got.AccountID)
	assert.Equal(t, int64(500), got.Amount)
	assert.Equal(t, domain.ClearedUncleared, got.Cleared)
}

func TestTranslate_TransferThatIsNotARoundUp(t *testing.T) {
	tx := testutil.NewTransactionFixture()
	tx.TransferAccountID = testutil.UpSaverID

	got, err := New(newStubDirectory(), Options{}).Translate(tx)
	require.NoError(t, err)
	assert.Equal(t, "Coffee Shop", got.PayeeName)
	assert.Empty(t, got.PayeeID)
}

func TestTranslate_RoundUpWithoutTransferPayee(t *testing.T) {
	dir := newStubDirectory()
	dir.transferID = ""

	_, err := New(dir, Options{}).Translate(testutil.NewRoundUpFixture())
	assert.ErrorIs(t, err, domain.ErrTranslation)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestTranslate_EmptyPayee(t *testing.T) {
	tx := testutil.NewTransactionFixture()
	tx.PayeeDescription = ""

	got, err := New(newStubDirectory(), Options{}).Translate(tx)
	require.NoError(t, err)
	assert.Equal(t, UnknownPayee, got.PayeeName)
}

func TestTranslate_Memo(t *testing.T) {
	tx := testutil.NewTransactionFixture()
	tx.Message = "lunch with Sam"

	got, err := New(newStubDirectory(), Options{}).Translate(tx)
	require.NoError(t, err)
	assert.Equal(t, "lunch with Sam", got.Memo)
}

func TestTranslate_DateUsesOwnOffset(t *testing.T) {
	tx := testutil.NewTransactionFixture()
	// 00:30 on the 6th in Sydney is still the 5th in UTC
	tx.CreatedAt = time.Date(2024, 1, 6, 0, 30, 0, 0, time.FixedZone("AEDT", 11*3600))

	got, err := New(newStubDirectory(), Options{}).Translate(tx)
	require.NoError(t, err)
	assert.Equal(t, "2024-01-06", got.Date)
}

func TestTranslate_UnresolvableAccount(t *testing.T) {
	tx := testutil.NewTransactionFixture()
	tx.AccountID = "unknown"

	_, err := New(newStubDirectory(), Options{}).Translate(tx)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrTranslation)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestTranslate_StorageFailure(t *testing.T) {
	dir := newStubDirectory()
	dir.err = fmt.Errorf("%w: disk gone", domain.ErrStorage)

	_, err := New(dir, Options{}).Translate(testutil.NewTransactionFixture())
	assert.ErrorIs(t, err, domain.ErrTranslation)
	assert.ErrorIs(t, err, domain.ErrStorage)
}

func TestTranslate_Nil(t *testing.T) {
	_, err := New(newStubDirectory(), Options{}).Translate(nil)
	assert.ErrorIs(t, err, domain.ErrTranslation)
}

func TestTranslate_Deterministic(t *testing.T) {
	tr := New(newStubDirectory(), Options{})

	first, err := tr.Translate(testutil.NewTransactionFixture())
	require.NoError(t, err)
	second, err := tr.Translate(testutil.NewTransactionFixture())
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestImportID(t *testing.T) {
	a := ImportID("T1")
	assert.Len(t, a, 36)
	assert.Equal(t, a, ImportID("T1"))
	assert.NotEqual(t, a, ImportID("T2"))

	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := ImportID(fmt.Sprintf("tx-%d", i))
		assert.False(t, seen[id])
		seen[id] = true
	}
}
