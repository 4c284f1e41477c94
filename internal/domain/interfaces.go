package domain

import "context"

// UpstreamClient defines the Up bank API operations the bridge consumes.
// Implementations return *TransportError for non-2xx responses.
type UpstreamClient interface {
	// ListAccounts returns every account, following pagination
	ListAccounts(ctx context.Context) ([]Account, error)

	// GetTransaction fetches a single transaction by id
	GetTransaction(ctx context.Context, id string) (*Transaction, error)

	// ListWebhooks returns every registered webhook subscription
	ListWebhooks(ctx context.Context) ([]Webhook, error)

	// CreateWebhook registers a new subscription; the returned webhook carries its secret key
	CreateWebhook(ctx context.Context, url, description string) (*Webhook, error)
}

// BudgetClient defines the YNAB API operations the bridge consumes
type BudgetClient interface {
	GetBudget(ctx context.Context, budgetID string) (*Budget, error)
	ListAccounts(ctx context.Context, budgetID string) ([]Account, error)

	// CreateTransaction submits a ledger entry. A duplicate ImportID is accepted
	// by the Budget API and reported through the returned flag.
	CreateTransaction(ctx context.Context, budgetID string, tx BudgetTransaction) (duplicate bool, err error)
}
