package testing

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/aristath/ledgerbridge/internal/domain"
)

// MockUpstreamClient is an in-memory domain.UpstreamClient
type MockUpstreamClient struct {
	mu           sync.RWMutex
	accounts     []domain.Account
	transactions map[string]*domain.Transaction
	webhooks     []domain.Webhook
	err          error
	calls        int
	nextHook     int
}

// NewMockUpstreamClient creates a new mock Upstream client
func NewMockUpstreamClient() *MockUpstreamClient {
	return &MockUpstreamClient{
		transactions: make(map[string]*domain.Transaction),
	}
}

// SetAccounts sets the accounts to return
func (m *MockUpstreamClient) SetAccounts(accounts []domain.Account) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts = accounts
}

// AddTransaction makes a transaction fetchable
func (m *MockUpstreamClient) AddTransaction(tx *domain.Transaction) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transactions[tx.ID] = tx
}

// SetError sets the error every call returns
func (m *MockUpstreamClient) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns the number of API calls made
func (m *MockUpstreamClient) Calls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls
}

// Webhooks returns the registered subscriptions
func (m *MockUpstreamClient) Webhooks() []domain.Webhook {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]domain.Webhook(nil), m.webhooks...)
}

// ListAccounts returns the configured accounts
func (m *MockUpstreamClient) ListAccounts(ctx context.Context) ([]domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return append([]domain.Account(nil), m.accounts...), nil
}

// GetTransaction returns a stored transaction, or a 404 TransportError
func (m *MockUpstreamClient) GetTransaction(ctx context.Context, id string) (*domain.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	tx, ok := m.transactions[id]
	if !ok {
		return nil, &domain.TransportError{Op: "get transaction", StatusCode: http.StatusNotFound}
	}
	copied := *tx
	return &copied, nil
}

// ListWebhooks returns the registered subscriptions without secrets
func (m *MockUpstreamClient) ListWebhooks(ctx context.Context) ([]domain.Webhook, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	hooks := make([]domain.Webhook, len(m.webhooks))
	for i, w := range m.webhooks {
		w.SecretKey = ""
		hooks[i] = w
	}
	return hooks, nil
}

// CreateWebhook registers a subscription with a generated secret
func (m *MockUpstreamClient) CreateWebhook(ctx context.Context, url, description string) (*domain.Webhook, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	m.nextHook++
	hook := domain.Webhook{
		ID:          fmt.Sprintf("wh-%d", m.nextHook),
		URL:         url,
		Description: description,
		SecretKey:   fmt.Sprintf("secret-%d", m.nextHook),
	}
	m.webhooks = append(m.webhooks, hook)
	return &hook, nil
}

// MockBudgetClient is an in-memory domain.BudgetClient
type MockBudgetClient struct {
	mu        sync.RWMutex
	budget    *domain.Budget
	accounts  []domain.Account
	submitted []domain.BudgetTransaction
	imported  map[string]bool
	err       error
	submitErr error
	calls     int
}

// NewMockBudgetClient creates a new mock Budget client
func NewMockBudgetClient() *MockBudgetClient {
	return &MockBudgetClient{imported: make(map[string]bool)}
}

// SetBudget sets the budget GetBudget returns; nil yields a 404
func (m *MockBudgetClient) SetBudget(budget *domain.Budget) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.budget = budget
}

// SetAccounts sets the accounts to return
func (m *MockBudgetClient) SetAccounts(accounts []domain.Account) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts = accounts
}

// SetError sets the error every call returns
func (m *MockBudgetClient) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// SetSubmitError sets the error CreateTransaction returns
func (m *MockBudgetClient) SetSubmitError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.submitErr = err
}

// Calls returns the number of API calls made
func (m *MockBudgetClient) Calls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls
}

// Submitted returns every transaction accepted as new
func (m *MockBudgetClient) Submitted() []domain.BudgetTransaction {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]domain.BudgetTransaction(nil), m.submitted...)
}

// GetBudget returns the configured budget
func (m *MockBudgetClient) GetBudget(ctx context.Context, budgetID string) (*domain.Budget, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	if m.budget == nil || m.budget.ID != budgetID {
		return nil, &domain.TransportError{Op: "get budget", StatusCode: http.StatusNotFound}
	}
	b := *m.budget
	return &b, nil
}

// ListAccounts returns the configured accounts
func (m *MockBudgetClient) ListAccounts(ctx context.Context, budgetID string) ([]domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return append([]domain.Account(nil), m.accounts...), nil
}

// CreateTransaction records the transaction; a repeated ImportID is reported as duplicate
func (m *MockBudgetClient) CreateTransaction(ctx context.Context, budgetID string, tx domain.BudgetTransaction) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return false, m.err
	}
	if m.submitErr != nil {
		return false, m.submitErr
	}
	if tx.ImportID != "" && m.imported[tx.ImportID] {
		return true, nil
	}
	m.imported[tx.ImportID] = true
	m.submitted = append(m.submitted, tx)
	return false, nil
}
