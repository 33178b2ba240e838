package types

import (
	"errors"
	"strings"

	"github.com/labstack/echo/v4"
)

type CreateOrderRequest struct {
	ProductID     string `json:"product_id"`
	TargetID      string `json:"target_id"`
	TargetServer  string `json:"target_server"`
	Quantity      int32  `json:"quantity"`
	PaymentMethod string `json:"payment_method"`
	Email         string `json:"email"`
}

func NewCreateOrderRequestFromContext(ctx echo.Context) (*CreateOrderRequest, error) {
	var body CreateOrderRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}

	body.ProductID = strings.TrimSpace(body.ProductID)
	body.TargetID = strings.TrimSpace(body.TargetID)
	body.TargetServer = strings.TrimSpace(body.TargetServer)
	body.PaymentMethod = strings.ToUpper(strings.TrimSpace(body.PaymentMethod))
	body.Email = strings.TrimSpace(body.Email)
	if body.Quantity == 0 {
		body.Quantity = 1
	}

	return &body, nil
}

func (r *CreateOrderRequest) Validate() error {
	if r.ProductID == "" {
		return errors.New("product_id is required")
	}
	if r.TargetID == "" {
		return errors.New("target_id is required")
	}
	if r.Quantity < 1 {
		return errors.New("quantity must be >= 1")
	}
	if r.PaymentMethod == "" {
		return errors.New("payment_method is required")
	}
	if r.Email != "" && !strings.Contains(r.Email, "@") {
		return errors.New("email is invalid")
	}
	return nil
}

type OrderIDRequest struct {
	ID string
}

// NewOrderIDRequestFromContext reads the order id from the named path param.
func NewOrderIDRequestFromContext(ctx echo.Context, param string) (*OrderIDRequest, error) {
	return &OrderIDRequest{ID: strings.TrimSpace(ctx.Param(param))}, nil
}

func (r *OrderIDRequest) Validate() error {
	if r.ID == "" {
		return errors.New("order id is required")
	}
	return nil
}

type TrackOrderRequest struct {
	OrderNumber string
}

func NewTrackOrderRequestFromContext(ctx echo.Context) (*TrackOrderRequest, error) {
	return &TrackOrderRequest{OrderNumber: strings.ToUpper(strings.TrimSpace(ctx.Param("orderNumber")))}, nil
}

func (r *TrackOrderRequest) Validate() error {
	if !strings.HasPrefix(r.OrderNumber, "ORD-") {
		return errors.New("invalid order number")
	}
	return nil
}

type ListOrdersRequest struct {
	PageRequest
	Status string
}

func NewListOrdersRequestFromContext(ctx echo.Context) (*ListOrdersRequest, error) {
	page, err := pageRequestFromContext(ctx)
	if err != nil {
		return nil, err
	}
	return &ListOrdersRequest{
		PageRequest: page,
		Status:      strings.ToLower(strings.TrimSpace(ctx.QueryParam("status"))),
	}, nil
}

func (r *ListOrdersRequest) Validate() error {
	return r.validate()
}

type Order struct {
	ID               string  `json:"id"`
	OrderNumber      string  `json:"order_number"`
	Kind             string  `json:"kind"`
	ProductID        string  `json:"product_id,omitempty"`
	ProductName      string  `json:"product_name"`
	TargetID         string  `json:"target_id"`
	TargetServer     string  `json:"target_server,omitempty"`
	Quantity         int32   `json:"quantity"`
	UnitPrice        string  `json:"unit_price"`
	Discount         string  `json:"discount"`
	AdminFee         string  `json:"admin_fee"`
	TotalPrice       string  `json:"total_price"`
	Status           string  `json:"status"`
	PaymentStatus    string  `json:"payment_status"`
	PaymentMethod    string  `json:"payment_method"`
	PaymentURL       string  `json:"payment_url,omitempty"`
	PaymentExpiredAt *string `json:"payment_expired_at,omitempty"`
	PaidAt           *string `json:"paid_at,omitempty"`
	ProviderStatus   string  `json:"provider_status,omitempty"`
	ProviderSN       string  `json:"provider_sn,omitempty"`
	ProviderMessage  string  `json:"provider_message,omitempty"`
	Notes            string  `json:"notes,omitempty"`
	CreatedAt        string  `json:"created_at"`
	UpdatedAt        string  `json:"updated_at"`
	CompletedAt      *string `json:"completed_at,omitempty"`
}

type OrderEnvelopeResponse struct {
	Order *Order `json:"order"`
}

type ListOrdersResponse struct {
	Orders     []*Order   `json:"orders"`
	Pagination Pagination `json:"pagination"`
}
