package entity

import "github.com/shopspring/decimal"

type Product struct {
	ID       string
	Provider string
	Name     string
	SKU      *string
	Price    decimal.Decimal
	Discount decimal.Decimal
	IsActive bool
	MinQty   int32
	MaxQty   int32
}
