// Package ynab provides a client for the YNAB budget API
package ynab

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aristath/ledgerbridge/internal/domain"
	"github.com/rs/zerolog"
)

// DefaultBaseURL is the production API root
const DefaultBaseURL = "https://api.ynab.com/v1"

// Client is the YNAB API client. It implements domain.BudgetClient.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	log        zerolog.Logger
}

// NewClient creates a new YNAB client. An empty baseURL selects DefaultBaseURL.
func NewClient(baseURL, token string, log zerolog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		log: log.With().Str("client", "ynab").Logger(),
	}
}

// GetBudget fetches budget metadata
func (c *Client) GetBudget(ctx context.Context, budgetID string) (*domain.Budget, error) {
	var resp budgetResponse
	url := fmt.Sprintf("%s/budgets/%s", c.baseURL, budgetID)
	if err := c.do(ctx, "get budget", http.MethodGet, url, nil, &resp); err != nil {
		return nil, err
	}

	b := resp.Data.Budget
	return &domain.Budget{
		ID:           b.ID,
		Name:         b.Name,
		CurrencyCode: b.CurrencyFormat.ISOCode,
	}, nil
}

// ListAccounts returns the budget's open accounts. Closed and deleted
// accounts are skipped.
func (c *Client) ListAccounts(ctx context.Context, budgetID string) ([]domain.Account, error) {
	var resp accountsResponse
	url := fmt.Sprintf("%s/budgets/%s/accounts", c.baseURL, budgetID)
	if err := c.do(ctx, "list accounts", http.MethodGet, url, nil, &resp); err != nil {
		return nil, err
	}

	accounts := make([]domain.Account, 0, len(resp.Data.Accounts))
	for _, a := range resp.Data.Accounts {
		if a.Closed || a.Deleted {
			continue
		}
		accounts = append(accounts, a.toDomain())
	}

	c.log.Debug().
		Int("count", len(accounts)).
		Int("skipped", len(resp.Data.Accounts)-len(accounts)).
		Msg("Fetched accounts")
	return accounts, nil
}

// CreateTransaction submits one transaction. YNAB accepts a repeated
// import_id without creating a second entry and lists it in
// duplicate_import_ids.
func (c *Client) CreateTransaction(ctx context.Context, budgetID string, tx domain.BudgetTransaction) (bool, error) {
	var resp saveTransactionsResponse
	url := fmt.Sprintf("%s/budgets/%s/transactions", c.baseURL, budgetID)
	body := saveTransactionRequest{Transaction: fromDomain(tx)}
	if err := c.do(ctx, "create transaction", http.MethodPost, url, body, &resp); err != nil {
		return false, err
	}

	for _, id := range resp.Data.DuplicateImportIDs {
		if id == tx.ImportID {
			c.log.Info().Str("import_id", tx.ImportID).Msg("Transaction already imported")
			return true, nil
		}
	}
	return false, nil
}

// do performs an authenticated JSON request. Non-2xx responses become
// *domain.TransportError carrying YNAB's error detail.
func (c *Client) do(ctx context.Context, op, method, url string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: failed to encode request: %w", op, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return &domain.TransportError{Op: op, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &domain.TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr errorResponse
		_ = json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&apiErr)
		c.log.Warn().
			Str("op", op).
			Int("status", resp.StatusCode).
			Str("error_id", apiErr.Error.ID).
			Str("detail", apiErr.Error.Detail).
			Msg("YNAB API error")

		terr := &domain.TransportError{Op: op, StatusCode: resp.StatusCode}
		if apiErr.Error.Detail != "" {
			terr.Err = fmt.Errorf("%s: %s", apiErr.Error.Name, apiErr.Error.Detail)
		}
		return terr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &domain.TransportError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to parse response: %w", err)}
	}
	return nil
}
