package testing

import (
	"time"

	"github.com/aristath/ledgerbridge/internal/domain"
)

// Fixture account ids
const (
	UpSpendingID = "A1"
	UpSaverID    = "A2"
	UpHomeLoanID = "A3"

	BudgetSpendingID = "B1"
	BudgetSaverID    = "B2"

	BudgetSpendingTransferID = "P1"
	BudgetSaverTransferID    = "P2"

	BudgetID = "budget-1"
)

// NewUpstreamAccountFixtures returns a Transactional, a Saver and a home loan account
func NewUpstreamAccountFixtures() []domain.Account {
	return []domain.Account{
		{Origin: domain.OriginUpstream, ID: UpSpendingID, Name: "Spending", Type: domain.AccountTypeTransactional},
		{Origin: domain.OriginUpstream, ID: UpSaverID, Name: "Rainy Day", Type: domain.AccountTypeSaver},
		{Origin: domain.OriginUpstream, ID: UpHomeLoanID, Name: "Home Loan", Type: domain.AccountTypeHomeLoan},
	}
}

// NewBudgetAccountFixtures returns Budget accounts matching the Upstream
// Transactional and Saver accounts by name. The home loan has no counterpart.
func NewBudgetAccountFixtures() []domain.Account {
	return []domain.Account{
		{Origin: domain.OriginBudget, ID: BudgetSpendingID, Name: "Spending", Type: "checking", TransferID: BudgetSpendingTransferID},
		{Origin: domain.OriginBudget, ID: BudgetSaverID, Name: "Rainy Day", Type: "savings", TransferID: BudgetSaverTransferID},
	}
}

// NewBudgetFixture returns the budget the fixture accounts belong to
func NewBudgetFixture() *domain.Budget {
	return &domain.Budget{ID: BudgetID, Name: "Household", CurrencyCode: "AUD"}
}

// NewTransactionFixture returns a settled purchase of 4.50 AUD on the Spending account
func NewTransactionFixture() *domain.Transaction {
	return &domain.Transaction{
		ID:               "T1",
		Status:           domain.StatusSettled,
		Value:            domain.Money{CurrencyCode: "AUD", ValueInBaseUnits: -450},
		PayeeDescription: "Coffee Shop",
		CreatedAt:        time.Date(2024, 1, 5, 8, 30, 0, 0, time.FixedZone("AEDT", 11*3600)),
		AccountID:        UpSpendingID,
	}
}

// NewRoundUpFixture returns a held round-up transfer into the Saver account
func NewRoundUpFixture() *domain.Transaction {
	return &domain.Transaction{
		ID:                "T2",
		Status:            domain.StatusHeld,
		Value:             domain.Money{CurrencyCode: "AUD", ValueInBaseUnits: 50},
		PayeeDescription:  "Transfer from Spending",
		CreatedAt:         time.Date(2024, 1, 5, 8, 30, 1, 0, time.FixedZone("AEDT", 11*3600)),
		AccountID:         UpSaverID,
		TransferAccountID: UpSpendingID,
	}
}
