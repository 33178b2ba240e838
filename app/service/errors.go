package service

import "errors"

var (
	ErrInvalidRequest         = errors.New("invalid request")
	ErrProductNotFound        = errors.New("product not found")
	ErrOrderNotFound          = errors.New("order not found")
	ErrAccountNotFound        = errors.New("account not found")
	ErrInvalidStatus          = errors.New("invalid status")
	ErrAuthenticationRequired = errors.New("authentication required")
	ErrForbidden              = errors.New("forbidden")
	ErrInsufficientBalance    = errors.New("insufficient balance")
	ErrPaymentGatewayFailed   = errors.New("payment gateway failed")
	ErrWebhookUnauthorized    = errors.New("webhook unauthorized")
	ErrGuestRefundUnsupported = errors.New("guest orders cannot be refunded to a balance")
)
