package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusSuccess    OrderStatus = "success"
	OrderStatusFailed     OrderStatus = "failed"
	OrderStatusCancelled  OrderStatus = "cancelled"
	OrderStatusRefunded   OrderStatus = "refunded"
)

type PaymentStatus string

const (
	PaymentStatusUnpaid   PaymentStatus = "unpaid"
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusExpired  PaymentStatus = "expired"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// OrderKind separates catalog purchases from balance top-ups. It is fixed at
// creation and decides what happens once the order is paid.
type OrderKind string

const (
	OrderKindPurchase OrderKind = "purchase"
	OrderKindTopup    OrderKind = "topup"
)

const PaymentMethodBalance = "BALANCE"

type Order struct {
	ID          string
	OrderNumber string
	Kind        OrderKind

	UserID    *string
	ProductID *string

	TargetID     string
	TargetServer *string

	ProductName string
	ProductSKU  *string
	Quantity    int32

	UnitPrice  decimal.Decimal
	Discount   decimal.Decimal
	AdminFee   decimal.Decimal
	TotalPrice decimal.Decimal

	Status        OrderStatus
	PaymentStatus PaymentStatus
	PaymentMethod string

	ProviderTrxID   *string
	ProviderStatus  *string
	ProviderSN      *string
	ProviderMessage *string

	PaymentID        *string
	PaymentURL       *string
	PaymentExpiredAt *time.Time
	PaidAt           *time.Time

	Notes     *string
	IPAddress *string
	UserAgent *string

	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt *time.Time
}

func (o *Order) State() OrderState {
	return OrderState{Status: o.Status, PaymentStatus: o.PaymentStatus}
}

func (o *Order) BalanceFunded() bool {
	return o.PaymentMethod == PaymentMethodBalance
}

func (o *Order) HasOwner() bool {
	return o.UserID != nil && *o.UserID != ""
}

func (o *Order) OwnedBy(userID string) bool {
	return o.HasOwner() && *o.UserID == userID
}
