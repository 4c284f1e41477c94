package up

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aristath/ledgerbridge/internal/domain"
)

// Up's API follows JSON:API: every payload is wrapped in "data", related
// resources sit under "relationships" and list endpoints paginate via
// "links.next".

type moneyObject struct {
	CurrencyCode     string `json:"currencyCode"`
	Value            string `json:"value"`
	ValueInBaseUnits int64  `json:"valueInBaseUnits"`
}

type relationship struct {
	Data *struct {
		Type string `json:"type"`
		ID   string `json:"id"`
	} `json:"data"`
}

func (r relationship) id() string {
	if r.Data == nil {
		return ""
	}
	return r.Data.ID
}

type links struct {
	Prev *string `json:"prev"`
	Next *string `json:"next"`
}

type accountResource struct {
	ID         string `json:"id"`
	Attributes struct {
		DisplayName   string      `json:"displayName"`
		AccountType   string      `json:"accountType"`
		OwnershipType string      `json:"ownershipType"`
		Balance       moneyObject `json:"balance"`
		CreatedAt     time.Time   `json:"createdAt"`
	} `json:"attributes"`
}

type accountsResponse struct {
	Data  []accountResource `json:"data"`
	Links links             `json:"links"`
}

type transactionResource struct {
	ID         string `json:"id"`
	Attributes struct {
		Status      string      `json:"status"`
		RawText     *string     `json:"rawText"`
		Description string      `json:"description"`
		Message     *string     `json:"message"`
		Amount      moneyObject `json:"amount"`
		CreatedAt   time.Time   `json:"createdAt"`
		SettledAt   *time.Time  `json:"settledAt"`
	} `json:"attributes"`
	Relationships struct {
		Account         relationship `json:"account"`
		TransferAccount relationship `json:"transferAccount"`
	} `json:"relationships"`
}

type transactionResponse struct {
	Data transactionResource `json:"data"`
}

type webhookResource struct {
	ID         string `json:"id"`
	Attributes struct {
		URL         string    `json:"url"`
		Description string    `json:"description"`
		SecretKey   string    `json:"secretKey,omitempty"`
		CreatedAt   time.Time `json:"createdAt"`
	} `json:"attributes"`
}

type webhooksResponse struct {
	Data  []webhookResource `json:"data"`
	Links links             `json:"links"`
}

type webhookResponse struct {
	Data webhookResource `json:"data"`
}

type createWebhookRequest struct {
	Data struct {
		Attributes struct {
			URL         string `json:"url"`
			Description string `json:"description"`
		} `json:"attributes"`
	} `json:"data"`
}

type webhookEventPayload struct {
	Data *struct {
		Type       string `json:"type"`
		ID         string `json:"id"`
		Attributes struct {
			EventType string    `json:"eventType"`
			CreatedAt time.Time `json:"createdAt"`
		} `json:"attributes"`
		Relationships struct {
			Webhook     relationship `json:"webhook"`
			Transaction relationship `json:"transaction"`
			Account     relationship `json:"account"`
		} `json:"relationships"`
	} `json:"data"`
}

func (a accountResource) toDomain() domain.Account {
	return domain.Account{
		Origin: domain.OriginUpstream,
		ID:     a.ID,
		Name:   a.Attributes.DisplayName,
		Type:   a.Attributes.AccountType,
	}
}

func (t transactionResource) toDomain() *domain.Transaction {
	tx := &domain.Transaction{
		ID:     t.ID,
		Status: domain.TransactionStatus(t.Attributes.Status),
		Value: domain.Money{
			CurrencyCode:     t.Attributes.Amount.CurrencyCode,
			ValueInBaseUnits: t.Attributes.Amount.ValueInBaseUnits,
		},
		PayeeDescription:  t.Attributes.Description,
		CreatedAt:         t.Attributes.CreatedAt,
		AccountID:         t.Relationships.Account.id(),
		TransferAccountID: t.Relationships.TransferAccount.id(),
	}
	if t.Attributes.Message != nil {
		tx.Message = *t.Attributes.Message
	}
	if t.Attributes.RawText != nil {
		tx.RawText = *t.Attributes.RawText
	}
	return tx
}

func (w webhookResource) toDomain() domain.Webhook {
	return domain.Webhook{
		ID:          w.ID,
		URL:         w.Attributes.URL,
		Description: w.Attributes.Description,
		SecretKey:   w.Attributes.SecretKey,
	}
}

// ParseWebhookEvent decodes an inbound webhook delivery body
func ParseWebhookEvent(body []byte) (domain.WebhookEvent, error) {
	var payload webhookEventPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return domain.WebhookEvent{}, fmt.Errorf("failed to decode webhook event: %w", err)
	}
	if payload.Data == nil || payload.Data.Attributes.EventType == "" {
		return domain.WebhookEvent{}, fmt.Errorf("webhook event has no eventType")
	}

	d := payload.Data
	event := domain.WebhookEvent{
		Type:          d.Attributes.EventType,
		WebhookID:     d.Relationships.Webhook.id(),
		TransactionID: d.Relationships.Transaction.id(),
		AccountID:     d.Relationships.Account.id(),
		CreatedAt:     d.Attributes.CreatedAt,
	}
	if event.Actionable() && event.TransactionID == "" {
		return domain.WebhookEvent{}, fmt.Errorf("%s event has no transaction id", event.Type)
	}

	return event, nil
}

// SignatureHeader carries the HMAC of a webhook delivery
const SignatureHeader = "X-Up-Authenticity-Signature"

// VerifySignature checks a delivery's HMAC-SHA256 (hex) against the webhook secret
func VerifySignature(secretKey string, body []byte, signature string) bool {
	mac := hmac.New(sha256.New, []byte(secretKey))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
