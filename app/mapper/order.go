package mapper

import (
	"time"

	"github.com/vibast-solutions/ms-go-orders/app/entity"
	"github.com/vibast-solutions/ms-go-orders/app/types"
)

func OrderToResponse(item *entity.Order) *types.Order {
	if item == nil {
		return nil
	}

	return &types.Order{
		ID:               item.ID,
		OrderNumber:      item.OrderNumber,
		Kind:             string(item.Kind),
		ProductID:        derefString(item.ProductID),
		ProductName:      item.ProductName,
		TargetID:         item.TargetID,
		TargetServer:     derefString(item.TargetServer),
		Quantity:         item.Quantity,
		UnitPrice:        item.UnitPrice.StringFixed(0),
		Discount:         item.Discount.StringFixed(0),
		AdminFee:         item.AdminFee.StringFixed(0),
		TotalPrice:       item.TotalPrice.StringFixed(0),
		Status:           string(item.Status),
		PaymentStatus:    string(item.PaymentStatus),
		PaymentMethod:    item.PaymentMethod,
		PaymentURL:       derefString(item.PaymentURL),
		PaymentExpiredAt: formatTime(item.PaymentExpiredAt),
		PaidAt:           formatTime(item.PaidAt),
		ProviderStatus:   derefString(item.ProviderStatus),
		ProviderSN:       derefString(item.ProviderSN),
		ProviderMessage:  derefString(item.ProviderMessage),
		Notes:            derefString(item.Notes),
		CreatedAt:        item.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:        item.UpdatedAt.UTC().Format(time.RFC3339),
		CompletedAt:      formatTime(item.CompletedAt),
	}
}

func OrdersToResponse(items []*entity.Order) []*types.Order {
	result := make([]*types.Order, 0, len(items))
	for _, item := range items {
		result = append(result, OrderToResponse(item))
	}
	return result
}

func PaymentStatusToResponse(item *entity.Order) *types.PaymentStatusResponse {
	if item == nil {
		return nil
	}

	return &types.PaymentStatusResponse{
		OrderID:       item.ID,
		OrderNumber:   item.OrderNumber,
		Status:        string(item.Status),
		PaymentStatus: string(item.PaymentStatus),
		PaymentMethod: item.PaymentMethod,
		PaymentURL:    derefString(item.PaymentURL),
		PaidAt:        formatTime(item.PaidAt),
	}
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func formatTime(v *time.Time) *string {
	if v == nil {
		return nil
	}
	formatted := v.UTC().Format(time.RFC3339)
	return &formatted
}
