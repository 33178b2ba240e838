// Package fulfillment places and tracks top-up orders at the upstream
// reseller. Like the gateway, results carry failures as values.
package fulfillment

import "context"

const (
	StatusProcessing = "processing"
	StatusSuccess    = "success"
	StatusFailed     = "failed"
)

type PlaceOrderRequest struct {
	SKU          string
	TargetID     string
	TargetServer string
}

type PlaceOrderResult struct {
	Success bool
	TrxID   string
	Status  string
	Message string
	Error   string
}

type StatusResult struct {
	Success bool
	TrxID   string
	Status  string
	SN      string
	Message string
	Error   string
}

type Service struct {
	Code   string `json:"code"`
	Game   string `json:"game"`
	Name   string `json:"name"`
	Price  string `json:"price"`
	Status string `json:"status"`
}

type Profile struct {
	FullName string `json:"full_name"`
	Username string `json:"username"`
	Balance  string `json:"balance"`
	Level    string `json:"level"`
}

type CallbackEvent struct {
	TrxID   string
	Status  string
	SN      string
	Message string
}

type Provider interface {
	PlaceOrder(ctx context.Context, req PlaceOrderRequest) PlaceOrderResult
	CheckStatus(ctx context.Context, trxID string) StatusResult
	Services(ctx context.Context) ([]Service, error)
	Profile(ctx context.Context) (*Profile, error)
	VerifyCallbackSignature(payload []byte, header string) bool
	NormalizeCallback(payload []byte) (*CallbackEvent, error)
}

// MapStatus folds reseller status codes into processing, success and failed.
// Unrecognised codes come back unchanged.
func MapStatus(status string) string {
	switch status {
	case "pending", "process":
		return StatusProcessing
	case "success":
		return StatusSuccess
	case "failed", "error":
		return StatusFailed
	default:
		return status
	}
}
