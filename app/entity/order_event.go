package entity

import "time"

const (
	OrderEventSourceAPI      = "api"
	OrderEventSourceGateway  = "gateway"
	OrderEventSourceProvider = "provider"
	OrderEventSourceJob      = "job"
	OrderEventSourceAdmin    = "admin"
)

type OrderEvent struct {
	ID uint64

	OrderID string

	EventType string

	OldStatus        *OrderStatus
	NewStatus        OrderStatus
	OldPaymentStatus *PaymentStatus
	NewPaymentStatus PaymentStatus

	Source      string
	PayloadJSON *string

	CreatedAt time.Time
}
