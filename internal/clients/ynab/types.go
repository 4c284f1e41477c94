package ynab

import "github.com/aristath/ledgerbridge/internal/domain"

type apiError struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Detail string `json:"detail"`
}

type errorResponse struct {
	Error apiError `json:"error"`
}

type currencyFormat struct {
	ISOCode string `json:"iso_code"`
}

type budgetResponse struct {
	Data struct {
		Budget struct {
			ID             string         `json:"id"`
			Name           string         `json:"name"`
			CurrencyFormat currencyFormat `json:"currency_format"`
		} `json:"budget"`
	} `json:"data"`
}

type account struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Type            string `json:"type"`
	OnBudget        bool   `json:"on_budget"`
	Closed          bool   `json:"closed"`
	Deleted         bool   `json:"deleted"`
	Balance         int64  `json:"balance"`
	TransferPayeeID string `json:"transfer_payee_id"`
}

type accountsResponse struct {
	Data struct {
		Accounts        []account `json:"accounts"`
		ServerKnowledge int64     `json:"server_knowledge"`
	} `json:"data"`
}

// saveTransaction is the body of a single transaction create
type saveTransaction struct {
	AccountID string  `json:"account_id"`
	Date      string  `json:"date"`
	Amount    int64   `json:"amount"`
	PayeeID   *string `json:"payee_id,omitempty"`
	PayeeName *string `json:"payee_name,omitempty"`
	Memo      *string `json:"memo,omitempty"`
	Cleared   string  `json:"cleared"`
	Approved  bool    `json:"approved"`
	ImportID  string  `json:"import_id,omitempty"`
}

type saveTransactionRequest struct {
	Transaction saveTransaction `json:"transaction"`
}

type saveTransactionsResponse struct {
	Data struct {
		TransactionIDs     []string `json:"transaction_ids"`
		DuplicateImportIDs []string `json:"duplicate_import_ids"`
		ServerKnowledge    int64    `json:"server_knowledge"`
	} `json:"data"`
}

func (a account) toDomain() domain.Account {
	return domain.Account{
		Origin:     domain.OriginBudget,
		ID:         a.ID,
		Name:       a.Name,
		Type:       a.Type,
		TransferID: a.TransferPayeeID,
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func fromDomain(tx domain.BudgetTransaction) saveTransaction {
	return saveTransaction{
		AccountID: tx.AccountID,
		Date:      tx.Date,
		Amount:    tx.Amount,
		PayeeID:   optional(tx.PayeeID),
		PayeeName: optional(tx.PayeeName),
		Memo:      optional(tx.Memo),
		Cleared:   tx.Cleared,
		Approved:  tx.Approved,
		ImportID:  tx.ImportID,
	}
}
