// Package translate maps Upstream transactions onto Budget ledger entries
package translate

import (
	"fmt"

	"github.com/aristath/ledgerbridge/internal/domain"
	"github.com/google/uuid"
)

const (
	// RoundUpPayee is the payee name of every round-up transfer
	RoundUpPayee = "Round Up"
	// UnknownPayee stands in for an empty Upstream description
	UnknownPayee = "Unknown Payee"

	// DefaultAmountScale converts cents to YNAB milliunits
	DefaultAmountScale = 10

	dateLayout = "2006-01-02"
)

// importNamespace scopes import ids to this bridge
var importNamespace = uuid.MustParse("6f0e7c52-8a4e-4d36-9a65-2f6f0f3b8a11")

// Directory is the account lookup surface the translator needs
type Directory interface {
	ResolveBudgetAccountID(upstreamID string) (string, error)
	IsRoundUp(accountID, transferAccountID string) (bool, error)
	TransactionalTransferID() (string, error)
}

// Options configures a Translator
type Options struct {
	// AmountScale multiplies ValueInBaseUnits into Budget amounts
	AmountScale int64
}

// Translator converts transactions. It holds no mutable state.
type Translator struct {
	dir   Directory
	scale int64
}

// New creates a translator. A zero AmountScale selects DefaultAmountScale.
func New(dir Directory, opts Options) *Translator {
	scale := opts.AmountScale
	if scale == 0 {
		scale = DefaultAmountScale
	}
	return &Translator{dir: dir, scale: scale}
}

// Translate builds the Budget entry for tx. Failures wrap domain.ErrTranslation
// together with the underlying cause.
func (t *Translator) Translate(tx *domain.Transaction) (domain.BudgetTransaction, error) {
	if tx == nil {
		return domain.BudgetTransaction{}, fmt.Errorf("%w: nil transaction", domain.ErrTranslation)
	}

	accountID, err := t.dir.ResolveBudgetAccountID(tx.AccountID)
	if err != nil {
		return domain.BudgetTransaction{}, fmt.Errorf("%w: transaction %s: %w", domain.ErrTranslation, tx.ID, err)
	}

	out := domain.BudgetTransaction{
		AccountID: accountID,
		PayeeName: tx.PayeeDescription,
		Amount:    tx.Value.ValueInBaseUnits * t.scale,
		Date:      tx.CreatedAt.Format(dateLayout),
		Cleared:   cleared(tx.Status),
		Memo:      tx.Message,
		ImportID:  ImportID(tx.ID),
	}
	if out.PayeeName == "" {
		out.PayeeName = UnknownPayee
	}

	roundUp, err := t.dir.IsRoundUp(tx.AccountID, tx.TransferAccountID)
	if err != nil {
		return domain.BudgetTransaction{}, fmt.Errorf("%w: transaction %s: %w", domain.ErrTranslation, tx.ID, err)
	}
	if roundUp {
		payeeID, err := t.dir.TransactionalTransferID()
		if err != nil {
			return domain.BudgetTransaction{}, fmt.Errorf("%w: transaction %s: %w", domain.ErrTranslation, tx.ID, err)
		}
		out.PayeeName = RoundUpPayee
		out.PayeeID = payeeID
	}

	return out, nil
}

// ImportID derives the Budget import id for an Upstream transaction id.
// The result is a 36 character UUIDv5, stable across runs.
func ImportID(transactionID string) string {
	return uuid.NewSHA1(importNamespace, []byte(transactionID)).String()
}

func cleared(status domain.TransactionStatus) string {
	if status == domain.StatusSettled {
		return domain.ClearedCleared
	}
	return domain.ClearedUncleared
}
