// Package gateway talks to the hosted-invoice payment gateway. Every call
// reports failure through its result value; transport problems never reach
// callers as errors or panics.
package gateway

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

const (
	InvoiceStatusPaid    = "paid"
	InvoiceStatusExpired = "expired"
	InvoiceStatusPending = "pending"
	InvoiceStatusUnknown = "unknown"
)

type Item struct {
	Name     string
	Quantity int32
	Price    decimal.Decimal
}

type InvoiceRequest struct {
	OrderID     string
	OrderNumber string
	UserID      string
	Email       string
	Amount      decimal.Decimal
	Description string
	Items       []Item
}

type InvoiceResult struct {
	Success    bool
	InvoiceID  string
	InvoiceURL string
	ExternalID string
	ExpiryDate *time.Time
	Error      string
}

type InvoiceStatusResult struct {
	Success bool
	Status  string
	PaidAt  *time.Time
	Error   string
}

type Result struct {
	Success bool
	Error   string
}

type CallbackEvent struct {
	InvoiceID      string
	ExternalID     string
	Status         string
	Amount         decimal.Decimal
	PaidAmount     decimal.Decimal
	PaidAt         *time.Time
	PaymentMethod  string
	PaymentChannel string
	OrderID        string
	OrderNumber    string
	UserID         string
}

type Gateway interface {
	CreateInvoice(ctx context.Context, req InvoiceRequest) InvoiceResult
	GetInvoice(ctx context.Context, invoiceID string) InvoiceStatusResult
	ExpireInvoice(ctx context.Context, invoiceID string) Result
	VerifyWebhookToken(token string) bool
	NormalizeCallback(payload []byte) (*CallbackEvent, error)
}
