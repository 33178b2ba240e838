package entity

import "time"

const (
	WebhookSourceGateway  = "gateway"
	WebhookSourceProvider = "provider"
)

const (
	WebhookCallbackProcessed int32 = 10
	WebhookCallbackIgnored   int32 = 15
	WebhookCallbackRejected  int32 = 20
)

type WebhookCallback struct {
	ID uint64

	Source      string
	ExternalRef *string
	OrderID     *string

	Signature   string
	PayloadJSON string
	Status      int32
	Error       *string

	CreatedAt time.Time
}
