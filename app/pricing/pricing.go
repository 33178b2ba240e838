// Package pricing computes order totals and validates purchase input before
// anything reaches the ledger.
package pricing

import (
	"errors"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidTarget        = errors.New("invalid target id format")
	ErrServerRequired       = errors.New("server id is required")
	ErrInvalidServer        = errors.New("invalid server id format")
	ErrUnknownProvider      = errors.New("no target rule for provider")
	ErrInvalidPaymentMethod = errors.New("invalid payment method")
	ErrBelowMinimumAmount   = errors.New("amount below payment method minimum")
)

// ComputeTotal returns unitPrice*quantity - discount + adminFee. It does not
// clamp the result; callers validate the inputs.
func ComputeTotal(unitPrice decimal.Decimal, quantity int32, discount, adminFee decimal.Decimal) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt32(quantity)).Sub(discount).Add(adminFee)
}
