package mapper

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/vibast-solutions/ms-go-orders/app/entity"
	"github.com/vibast-solutions/ms-go-orders/app/pricing"
	"github.com/vibast-solutions/ms-go-orders/app/types"
)

func TransactionToResponse(item *entity.BalanceTransaction) *types.Transaction {
	if item == nil {
		return nil
	}

	return &types.Transaction{
		ID:            item.ID,
		OrderID:       derefString(item.OrderID),
		Type:          string(item.Type),
		Amount:        item.Amount.StringFixed(0),
		BalanceBefore: item.BalanceBefore.StringFixed(0),
		BalanceAfter:  item.BalanceAfter.StringFixed(0),
		Description:   item.Description,
		CreatedAt:     item.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func TransactionsToResponse(items []*entity.BalanceTransaction) []*types.Transaction {
	result := make([]*types.Transaction, 0, len(items))
	for _, item := range items {
		result = append(result, TransactionToResponse(item))
	}
	return result
}

func MethodsToResponse(groups map[pricing.MethodType][]pricing.Method, balance *decimal.Decimal) *types.PaymentMethodsResponse {
	resp := &types.PaymentMethodsResponse{Methods: make(map[string][]*types.PaymentMethod, len(groups))}
	for group, methods := range groups {
		items := make([]*types.PaymentMethod, 0, len(methods))
		for _, m := range methods {
			items = append(items, &types.PaymentMethod{
				Code:      m.Code,
				Name:      m.Name,
				Type:      string(m.Type),
				Fee:       m.Fee.StringFixed(0),
				MinAmount: m.MinAmount.StringFixed(0),
			})
		}
		resp.Methods[string(group)] = items
	}
	if balance != nil {
		formatted := balance.StringFixed(0)
		resp.Balance = &formatted
	}
	return resp
}
