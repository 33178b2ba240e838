package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

type BalanceTransactionType string

const (
	BalanceTransactionPurchase   BalanceTransactionType = "purchase"
	BalanceTransactionRefund     BalanceTransactionType = "refund"
	BalanceTransactionTopup      BalanceTransactionType = "topup"
	BalanceTransactionAdjustment BalanceTransactionType = "adjustment"
)

// BalanceTransaction is an append-only ledger entry. BalanceAfter always
// equals BalanceBefore plus Amount.
type BalanceTransaction struct {
	ID uint64

	UserID  string
	OrderID *string

	Type          BalanceTransactionType
	Amount        decimal.Decimal
	BalanceBefore decimal.Decimal
	BalanceAfter  decimal.Decimal
	Description   string

	CreatedAt time.Time
}
