package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	RoleUser     = "user"
	RoleAdmin    = "admin"
	RoleReseller = "reseller"
)

// Account holds the prepaid balance of an actor.
type Account struct {
	ID      string
	Email   string
	Phone   *string
	Role    string
	Balance decimal.Decimal

	CreatedAt time.Time
	UpdatedAt time.Time
}
