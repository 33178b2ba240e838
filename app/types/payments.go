package types

import (
	"errors"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

type TopupRequest struct {
	Amount        decimal.Decimal `json:"amount"`
	PaymentMethod string          `json:"payment_method"`
}

func NewTopupRequestFromContext(ctx echo.Context) (*TopupRequest, error) {
	var body TopupRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}
	body.PaymentMethod = strings.ToUpper(strings.TrimSpace(body.PaymentMethod))
	return &body, nil
}

func (r *TopupRequest) Validate() error {
	if !r.Amount.IsPositive() {
		return errors.New("amount must be > 0")
	}
	if !r.Amount.Equal(r.Amount.Truncate(0)) {
		return errors.New("amount must be a whole number")
	}
	if r.PaymentMethod == "" {
		return errors.New("payment_method is required")
	}
	return nil
}

// AdjustBalanceRequest is a signed operator correction. Negative amounts
// debit the balance.
type AdjustBalanceRequest struct {
	UserID      string          `json:"-"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
}

func NewAdjustBalanceRequestFromContext(ctx echo.Context) (*AdjustBalanceRequest, error) {
	var body AdjustBalanceRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}
	body.UserID = strings.TrimSpace(ctx.Param("id"))
	body.Description = strings.TrimSpace(body.Description)
	return &body, nil
}

func (r *AdjustBalanceRequest) Validate() error {
	if r.UserID == "" {
		return errors.New("user id is required")
	}
	if r.Amount.IsZero() {
		return errors.New("amount must not be zero")
	}
	if !r.Amount.Equal(r.Amount.Truncate(0)) {
		return errors.New("amount must be a whole number")
	}
	return nil
}

type ListTransactionsRequest struct {
	PageRequest
	Type string
}

func NewListTransactionsRequestFromContext(ctx echo.Context) (*ListTransactionsRequest, error) {
	page, err := pageRequestFromContext(ctx)
	if err != nil {
		return nil, err
	}
	return &ListTransactionsRequest{
		PageRequest: page,
		Type:        strings.ToLower(strings.TrimSpace(ctx.QueryParam("type"))),
	}, nil
}

func (r *ListTransactionsRequest) Validate() error {
	return r.validate()
}

type PaymentMethod struct {
	Code      string `json:"code"`
	Name      string `json:"name"`
	Type      string `json:"type"`
	Fee       string `json:"fee"`
	MinAmount string `json:"min_amount"`
}

type PaymentMethodsResponse struct {
	Methods map[string][]*PaymentMethod `json:"methods"`
	Balance *string                     `json:"balance,omitempty"`
}

type PaymentStatusResponse struct {
	OrderID       string  `json:"order_id"`
	OrderNumber   string  `json:"order_number"`
	Status        string  `json:"status"`
	PaymentStatus string  `json:"payment_status"`
	PaymentMethod string  `json:"payment_method"`
	PaymentURL    string  `json:"payment_url,omitempty"`
	PaidAt        *string `json:"paid_at,omitempty"`
}

type BalanceResponse struct {
	Balance string `json:"balance"`
}

type Transaction struct {
	ID            uint64 `json:"id"`
	OrderID       string `json:"order_id,omitempty"`
	Type          string `json:"type"`
	Amount        string `json:"amount"`
	BalanceBefore string `json:"balance_before"`
	BalanceAfter  string `json:"balance_after"`
	Description   string `json:"description"`
	CreatedAt     string `json:"created_at"`
}

type TransactionEnvelopeResponse struct {
	Transaction *Transaction `json:"transaction"`
}

type ListTransactionsResponse struct {
	Transactions []*Transaction `json:"transactions"`
	Pagination   Pagination     `json:"pagination"`
}
