// Package domain provides the core entities shared by the Upstream (Up bank) and
// Budget (YNAB) sides of the bridge.
package domain

import (
	"strconv"
	"time"
)

// Origin identifies which system an account record came from
type Origin string

const (
	OriginUpstream Origin = "UPSTREAM"
	OriginBudget   Origin = "BUDGET"
)

// Upstream account types
const (
	AccountTypeTransactional = "TRANSACTIONAL"
	AccountTypeSaver         = "SAVER"
	AccountTypeHomeLoan      = "HOME_LOAN"
)

// TransactionStatus is the Upstream settlement status
type TransactionStatus string

const (
	StatusHeld    TransactionStatus = "HELD"
	StatusSettled TransactionStatus = "SETTLED"
)

// Budget cleared states
const (
	ClearedCleared   = "cleared"
	ClearedUncleared = "uncleared"
)

// EventTransactionCreated is the only actionable webhook event type
const EventTransactionCreated = "TRANSACTION_CREATED"

// Money is a signed amount in the currency's smallest unit (cents for AUD).
type Money struct {
	CurrencyCode     string `msgpack:"currency_code" json:"currency_code"`
	ValueInBaseUnits int64  `msgpack:"value_in_base_units" json:"value_in_base_units"`
}

// String formats the amount with two decimal places, e.g. "-4.50 AUD".
func (m Money) String() string {
	sign := ""
	v := m.ValueInBaseUnits
	if v < 0 {
		sign = "-"
		v = -v
	}
	cents := v % 100
	s := sign + strconv.FormatInt(v/100, 10) + "." + strconv.FormatInt(cents/10, 10) + strconv.FormatInt(cents%10, 10)
	if m.CurrencyCode != "" {
		s += " " + m.CurrencyCode
	}
	return s
}

// Transaction is an immutable snapshot of an Upstream transaction
type Transaction struct {
	ID                string
	Status            TransactionStatus
	Value             Money
	PayeeDescription  string
	Message           string
	RawText           string
	CreatedAt         time.Time
	AccountID         string
	TransferAccountID string // empty unless this is an internal transfer
}

// IsTransfer reports whether the transaction moves money between own accounts
func (t Transaction) IsTransfer() bool {
	return t.TransferAccountID != ""
}

// BudgetTransaction is a ledger entry ready to submit to the Budget system.
// AccountID is always a Budget account id.
type BudgetTransaction struct {
	AccountID string
	PayeeName string
	PayeeID   string
	Amount    int64 // milliunits
	Date      string
	Cleared   string
	Approved  bool
	Memo      string
	ImportID  string
}

// Account is one financial account from either system
type Account struct {
	Origin     Origin `msgpack:"origin" json:"origin"`
	ID         string `msgpack:"id" json:"id"`
	Name       string `msgpack:"name" json:"name"`
	Type       string `msgpack:"type" json:"type"`
	TransferID string `msgpack:"transfer_id,omitempty" json:"transfer_id,omitempty"`
}

// Field returns the value of a store key field. Empty values count as absent.
func (a Account) Field(name string) (string, bool) {
	var v string
	switch name {
	case "id":
		v = a.ID
	case "name":
		v = a.Name
	case "type":
		v = a.Type
	case "transferId":
		v = a.TransferID
	case "origin":
		v = string(a.Origin)
	}
	return v, v != ""
}

// WebhookEvent is the decoded inbound webhook notification
type WebhookEvent struct {
	Type          string
	WebhookID     string
	TransactionID string
	AccountID     string
	CreatedAt     time.Time
}

// Actionable reports whether the pipeline should process the event
func (e WebhookEvent) Actionable() bool {
	return e.Type == EventTransactionCreated
}

// Webhook is an Upstream webhook subscription
type Webhook struct {
	ID          string `msgpack:"id" json:"id"`
	URL         string `msgpack:"url" json:"url"`
	Description string `msgpack:"description" json:"description"`
	SecretKey   string `msgpack:"secret_key,omitempty" json:"-"`
}

// Field returns the value of a store key field
func (w Webhook) Field(name string) (string, bool) {
	switch name {
	case "id":
		return w.ID, w.ID != ""
	case "url":
		return w.URL, w.URL != ""
	}
	return "", false
}

// Budget is the subset of Budget-system budget metadata the bridge uses
type Budget struct {
	ID           string
	Name         string
	CurrencyCode string
}
