// Package up provides a client for the Up bank API (accounts, transactions
// and webhook subscriptions).
package up

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aristath/ledgerbridge/internal/domain"
	"github.com/rs/zerolog"
)

const (
	// DefaultBaseURL is the production API root
	DefaultBaseURL = "https://api.up.com.au/api/v1"
	pageSize       = 100
)

// Client is the Up API client. It implements domain.UpstreamClient.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	log        zerolog.Logger
}

// NewClient creates a new Up client. An empty baseURL selects DefaultBaseURL.
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
		log: log.With().Str("client", "up").Logger(),
	}
}

// ListAccounts returns every account, following pagination
func (c *Client) ListAccounts(ctx context.Context) ([]domain.Account, error) {
	var accounts []domain.Account

	next := fmt.Sprintf("%s/accounts?page[size]=%d", c.baseURL, pageSize)
	for next != "" {
		var page accountsResponse
		if err := c.do(ctx, "list accounts", http.MethodGet, next, nil, &page); err != nil {
			return nil, err
		}
		for _, a := range page.Data {
			accounts = append(accounts, a.toDomain())
		}
		next = nextPage(page.Links)
	}

	c.log.Debug().Int("count", len(accounts)).Msg("Fetched accounts")
	return accounts, nil
}

// GetTransaction fetches a single transaction by id
func (c *Client) GetTransaction(ctx context.Context, id string) (*domain.Transaction, error) {
	var resp transactionResponse
	endpoint := fmt.Sprintf("%s/transactions/%s", c.baseURL, url.PathEscape(id))
	if err := c.do(ctx, "get transaction", http.MethodGet, endpoint, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data.toDomain(), nil
}

// ListWebhooks returns every registered webhook subscription
func (c *Client) ListWebhooks(ctx context.Context) ([]domain.Webhook, error) {
	var hooks []domain.Webhook

	next := fmt.Sprintf("%s/webhooks?page[size]=%d", c.baseURL, pageSize)
	for next != "" {
		var page webhooksResponse
		if err := c.do(ctx, "list webhooks", http.MethodGet, next, nil, &page); err != nil {
			return nil, err
		}
		for _, w := range page.Data {
			hooks = append(hooks, w.toDomain())
		}
		next = nextPage(page.Links)
	}

	return hooks, nil
}

// CreateWebhook registers a webhook subscription. The secret key is only
// ever returned by this call.
func (c *Client) CreateWebhook(ctx context.Context, url, description string) (*domain.Webhook, error) {
	var req createWebhookRequest
	req.Data.Attributes.URL = url
	req.Data.Attributes.Description = description

	var resp webhookResponse
	if err := c.do(ctx, "create webhook", http.MethodPost, c.baseURL+"/webhooks", req, &resp); err != nil {
		return nil, err
	}

	hook := resp.Data.toDomain()
	c.log.Info().Str("webhook_id", hook.ID).Str("url", hook.URL).Msg("Created webhook")
	return &hook, nil
}

func nextPage(l links) string {
	if l.Next == nil {
		return ""
	}
	return *l.Next
}

// do performs an authenticated JSON request. Non-2xx responses become
// *domain.TransportError.
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
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.log.Warn().
			Str("op", op).
			Int("status", resp.StatusCode).
			Str("body", string(detail)).
			Msg("Up API error")
		return &domain.TransportError{Op: op, StatusCode: resp.StatusCode}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &domain.TransportError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to parse response: %w", err)}
	}
	return nil
}
