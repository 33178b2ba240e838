package controller

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/vibast-solutions/ms-go-orders/app/auth"
	"github.com/vibast-solutions/ms-go-orders/app/entity"
	"github.com/vibast-solutions/ms-go-orders/app/service"
)

type fakeService struct {
	createOrderFn      func(ctx context.Context, in service.CreateOrderInput) (*entity.Order, error)
	getOrderFn         func(ctx context.Context, id string, actor *auth.Actor) (*entity.Order, error)
	getOrderByNumberFn func(ctx context.Context, orderNumber string, actor *auth.Actor) (*entity.Order, error)
	listUserOrdersFn   func(ctx context.Context, actor *auth.Actor, status string, page, limit int32) ([]*entity.Order, int64, error)
	checkOrderStatusFn func(ctx context.Context, orderID string) (*entity.Order, error)
	cancelOrderFn      func(ctx context.Context, id string, actor *auth.Actor) (*entity.Order, error)
	adminRefundFn      func(ctx context.Context, orderID string, actor *auth.Actor) (*entity.Order, error)
	adminRetryFn       func(ctx context.Context, orderID string, actor *auth.Actor) (*entity.Order, error)
	paymentMethodsFn   func(ctx context.Context, actor *auth.Actor) (*service.PaymentMethodsResult, error)
	paymentStatusFn    func(ctx context.Context, orderID string) (*entity.Order, error)
	topupFn            func(ctx context.Context, actor *auth.Actor, amount decimal.Decimal, method string) (*entity.Order, error)
	balanceFn          func(ctx context.Context, actor *auth.Actor) (decimal.Decimal, error)
	transactionsFn     func(ctx context.Context, actor *auth.Actor, txnType string, page, limit int32) ([]*entity.BalanceTransaction, int64, error)
	adjustBalanceFn    func(ctx context.Context, actor *auth.Actor, userID string, amount decimal.Decimal, description string) (*entity.BalanceTransaction, error)
	gatewayWebhookFn   func(ctx context.Context, token string, payload []byte) error
	providerWebhookFn  func(ctx context.Context, signature string, payload []byte) error

	checkCalls int
}

func (f *fakeService) CreateOrder(ctx context.Context, in service.CreateOrderInput) (*entity.Order, error) {
	if f.createOrderFn != nil {
		return f.createOrderFn(ctx, in)
	}
	return sampleOrder(), nil
}

func (f *fakeService) GetOrder(ctx context.Context, id string, actor *auth.Actor) (*entity.Order, error) {
	if f.getOrderFn != nil {
		return f.getOrderFn(ctx, id, actor)
	}
	return sampleOrder(), nil
}

func (f *fakeService) GetOrderByNumber(ctx context.Context, orderNumber string, actor *auth.Actor) (*entity.Order, error) {
	if f.getOrderByNumberFn != nil {
		return f.getOrderByNumberFn(ctx, orderNumber, actor)
	}
	return sampleOrder(), nil
}

func (f *fakeService) ListUserOrders(ctx context.Context, actor *auth.Actor, status string, page, limit int32) ([]*entity.Order, int64, error) {
	if f.listUserOrdersFn != nil {
		return f.listUserOrdersFn(ctx, actor, status, page, limit)
	}
	return []*entity.Order{}, 0, nil
}

func (f *fakeService) CheckOrderStatus(ctx context.Context, orderID string) (*entity.Order, error) {
	f.checkCalls++
	if f.checkOrderStatusFn != nil {
		return f.checkOrderStatusFn(ctx, orderID)
	}
	return sampleOrder(), nil
}

func (f *fakeService) CancelOrder(ctx context.Context, id string, actor *auth.Actor) (*entity.Order, error) {
	if f.cancelOrderFn != nil {
		return f.cancelOrderFn(ctx, id, actor)
	}
	return sampleOrder(), nil
}

func (f *fakeService) AdminRefundOrder(ctx context.Context, orderID string, actor *auth.Actor) (*entity.Order, error) {
	if f.adminRefundFn != nil {
		return f.adminRefundFn(ctx, orderID, actor)
	}
	return sampleOrder(), nil
}

func (f *fakeService) AdminRetryOrder(ctx context.Context, orderID string, actor *auth.Actor) (*entity.Order, error) {
	if f.adminRetryFn != nil {
		return f.adminRetryFn(ctx, orderID, actor)
	}
	return sampleOrder(), nil
}

func (f *fakeService) PaymentMethods(ctx context.Context, actor *auth.Actor) (*service.PaymentMethodsResult, error) {
	if f.paymentMethodsFn != nil {
		return f.paymentMethodsFn(ctx, actor)
	}
	return &service.PaymentMethodsResult{}, nil
}

func (f *fakeService) GetPaymentStatus(ctx context.Context, orderID string) (*entity.Order, error) {
	if f.paymentStatusFn != nil {
		return f.paymentStatusFn(ctx, orderID)
	}
	return sampleOrder(), nil
}

func (f *fakeService) TopupBalance(ctx context.Context, actor *auth.Actor, amount decimal.Decimal, method string) (*entity.Order, error) {
	if f.topupFn != nil {
		return f.topupFn(ctx, actor, amount, method)
	}
	return sampleOrder(), nil
}

func (f *fakeService) GetBalance(ctx context.Context, actor *auth.Actor) (decimal.Decimal, error) {
	if f.balanceFn != nil {
		return f.balanceFn(ctx, actor)
	}
	return decimal.Zero, nil
}

func (f *fakeService) ListTransactions(ctx context.Context, actor *auth.Actor, txnType string, page, limit int32) ([]*entity.BalanceTransaction, int64, error) {
	if f.transactionsFn != nil {
		return f.transactionsFn(ctx, actor, txnType, page, limit)
	}
	return []*entity.BalanceTransaction{}, 0, nil
}

func (f *fakeService) AdminAdjustBalance(ctx context.Context, actor *auth.Actor, userID string, amount decimal.Decimal, description string) (*entity.BalanceTransaction, error) {
	if f.adjustBalanceFn != nil {
		return f.adjustBalanceFn(ctx, actor, userID, amount, description)
	}
	return &entity.BalanceTransaction{UserID: userID, Type: entity.BalanceTransactionAdjustment, Amount: amount}, nil
}

func (f *fakeService) HandleGatewayWebhook(ctx context.Context, token string, payload []byte) error {
	if f.gatewayWebhookFn != nil {
		return f.gatewayWebhookFn(ctx, token, payload)
	}
	return nil
}

func (f *fakeService) HandleProviderWebhook(ctx context.Context, signature string, payload []byte) error {
	if f.providerWebhookFn != nil {
		return f.providerWebhookFn(ctx, signature, payload)
	}
	return nil
}
