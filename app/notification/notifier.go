// Package notification fans order lifecycle events out to buyers, the store
// admin and downstream consumers. Delivery is best effort: failures are logged
// and never surface to the order flow.
package notification

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/vibast-solutions/ms-go-orders/app/entity"
)

const (
	EventOrderCreated = "order.created"
	EventOrderPaid    = "order.paid"
	EventOrderSuccess = "order.success"
	EventOrderFailed  = "order.failed"
	EventOrderRefund  = "order.refunded"
	EventTopupSuccess = "balance.topup_success"
)

type Notifier interface {
	NotifyOrderCreated(ctx context.Context, order *entity.Order, phone string)
	NotifyOrderPaid(ctx context.Context, order *entity.Order, phone string)
	NotifyOrderSuccess(ctx context.Context, order *entity.Order, phone string)
	NotifyOrderFailed(ctx context.Context, order *entity.Order, phone string)
	NotifyRefund(ctx context.Context, order *entity.Order, amount decimal.Decimal, phone string)
	NotifyTopupSuccess(ctx context.Context, txn *entity.BalanceTransaction, phone string)
}

type Multi []Notifier

func (m Multi) NotifyOrderCreated(ctx context.Context, order *entity.Order, phone string) {
	for _, n := range m {
		n.NotifyOrderCreated(ctx, order, phone)
	}
}

func (m Multi) NotifyOrderPaid(ctx context.Context, order *entity.Order, phone string) {
	for _, n := range m {
		n.NotifyOrderPaid(ctx, order, phone)
	}
}

func (m Multi) NotifyOrderSuccess(ctx context.Context, order *entity.Order, phone string) {
	for _, n := range m {
		n.NotifyOrderSuccess(ctx, order, phone)
	}
}

func (m Multi) NotifyOrderFailed(ctx context.Context, order *entity.Order, phone string) {
	for _, n := range m {
		n.NotifyOrderFailed(ctx, order, phone)
	}
}

func (m Multi) NotifyRefund(ctx context.Context, order *entity.Order, amount decimal.Decimal, phone string) {
	for _, n := range m {
		n.NotifyRefund(ctx, order, amount, phone)
	}
}

func (m Multi) NotifyTopupSuccess(ctx context.Context, txn *entity.BalanceTransaction, phone string) {
	for _, n := range m {
		n.NotifyTopupSuccess(ctx, txn, phone)
	}
}
