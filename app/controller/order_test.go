package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/vibast-solutions/ms-go-orders/app/auth"
	"github.com/vibast-solutions/ms-go-orders/app/entity"
	"github.com/vibast-solutions/ms-go-orders/app/service"
	"github.com/vibast-solutions/ms-go-orders/app/types"
)

func sampleOrder() *entity.Order {
	created := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	productID := "ml-86"
	return &entity.Order{
		ID:            "order-1",
		OrderNumber:   "ORD-20260101-01JABCDEF",
		Kind:          entity.OrderKindPurchase,
		ProductID:     &productID,
		ProductName:   "86 Diamonds",
		TargetID:      "12345",
		Quantity:      2,
		UnitPrice:     decimal.NewFromInt(50000),
		Discount:      decimal.NewFromInt(5000),
		AdminFee:      decimal.NewFromInt(5000),
		TotalPrice:    decimal.NewFromInt(100000),
		Status:        entity.OrderStatusProcessing,
		PaymentStatus: entity.PaymentStatusPaid,
		PaymentMethod: entity.PaymentMethodBalance,
		PaidAt:        &created,
		CreatedAt:     created,
		UpdatedAt:     created,
	}
}

func newJSONContext(method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(method, target, bytes.NewBufferString(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestCreateOrderBadBody(t *testing.T) {
	ctrl := NewOrderController(&fakeService{})
	ctx, rec := newJSONContext(http.MethodPost, "/orders", "{bad")

	if err := ctrl.CreateOrder(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestCreateOrderValidation(t *testing.T) {
	ctrl := NewOrderController(&fakeService{})
	ctx, rec := newJSONContext(http.MethodPost, "/orders", `{"product_id":"ml-86","payment_method":"BALANCE"}`)

	_ = ctrl.CreateOrder(ctx)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if !bytes.Contains(rec.Body.Bytes(), []byte("target_id is required")) {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}

func TestCreateOrderSuccess(t *testing.T) {
	var got service.CreateOrderInput
	svc := &fakeService{createOrderFn: func(_ context.Context, in service.CreateOrderInput) (*entity.Order, error) {
		got = in
		return sampleOrder(), nil
	}}
	ctrl := NewOrderController(svc)
	ctx, rec := newJSONContext(http.MethodPost, "/orders", `{"product_id":" ml-86 ","target_id":"12345","target_server":"2001","quantity":2,"payment_method":"balance"}`)
	auth.WithActor(ctx, &auth.Actor{ID: "user-1", Role: entity.RoleUser})

	_ = ctrl.CreateOrder(ctx)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d body=%s", rec.Code, rec.Body.String())
	}
	if got.ProductID != "ml-86" || got.PaymentMethod != "BALANCE" || got.Quantity != 2 || got.TargetServer != "2001" {
		t.Fatalf("unexpected input: %+v", got)
	}
	if got.Actor == nil || got.Actor.ID != "user-1" {
		t.Fatalf("expected actor to be forwarded, got %+v", got.Actor)
	}

	var payload types.OrderEnvelopeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if payload.Order == nil || payload.Order.TotalPrice != "100000" || payload.Order.Status != "processing" {
		t.Fatalf("unexpected order payload: %+v", payload.Order)
	}
	if payload.Order.PaidAt == nil || *payload.Order.PaidAt != "2026-01-01T10:00:00Z" {
		t.Fatalf("unexpected paid_at: %v", payload.Order.PaidAt)
	}
}

func TestCreateOrderErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{fmt.Errorf("%w: quantity out of range", service.ErrInvalidRequest), http.StatusBadRequest},
		{service.ErrInsufficientBalance, http.StatusBadRequest},
		{service.ErrAuthenticationRequired, http.StatusUnauthorized},
		{service.ErrForbidden, http.StatusForbidden},
		{service.ErrProductNotFound, http.StatusNotFound},
		{service.ErrAccountNotFound, http.StatusNotFound},
		{service.ErrInvalidStatus, http.StatusConflict},
		{service.ErrPaymentGatewayFailed, http.StatusBadGateway},
		{errors.New("db down"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		svc := &fakeService{createOrderFn: func(context.Context, service.CreateOrderInput) (*entity.Order, error) {
			return nil, tc.err
		}}
		ctrl := NewOrderController(svc)
		ctx, rec := newJSONContext(http.MethodPost, "/orders", `{"product_id":"ml-86","target_id":"1","payment_method":"QRIS"}`)

		_ = ctrl.CreateOrder(ctx)
		if rec.Code != tc.code {
			t.Fatalf("%v: expected %d, got %d", tc.err, tc.code, rec.Code)
		}
	}
}

func TestGetOrderNotFound(t *testing.T) {
	svc := &fakeService{getOrderFn: func(_ context.Context, id string, _ *auth.Actor) (*entity.Order, error) {
		if id != "missing" {
			t.Fatalf("unexpected id %q", id)
		}
		return nil, service.ErrOrderNotFound
	}}
	ctrl := NewOrderController(svc)
	ctx, rec := newJSONContext(http.MethodGet, "/orders/missing", "")
	ctx.SetParamNames("id")
	ctx.SetParamValues("missing")

	_ = ctrl.GetOrder(ctx)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestTrackOrderRejectsMalformedNumber(t *testing.T) {
	ctrl := NewOrderController(&fakeService{})
	ctx, rec := newJSONContext(http.MethodGet, "/orders/track/abc", "")
	ctx.SetParamNames("orderNumber")
	ctx.SetParamValues("abc")

	_ = ctrl.TrackOrder(ctx)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestTrackOrderNormalizesNumber(t *testing.T) {
	var got string
	svc := &fakeService{getOrderByNumberFn: func(_ context.Context, number string, _ *auth.Actor) (*entity.Order, error) {
		got = number
		return sampleOrder(), nil
	}}
	ctrl := NewOrderController(svc)
	ctx, rec := newJSONContext(http.MethodGet, "/orders/track/ord-20260101-x", "")
	ctx.SetParamNames("orderNumber")
	ctx.SetParamValues("ord-20260101-x")

	_ = ctrl.TrackOrder(ctx)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got != "ORD-20260101-X" {
		t.Fatalf("unexpected order number %q", got)
	}
}

func TestListOrdersPagination(t *testing.T) {
	svc := &fakeService{listUserOrdersFn: func(_ context.Context, _ *auth.Actor, status string, page, limit int32) ([]*entity.Order, int64, error) {
		if status != "success" || page != 2 || limit != 5 {
			t.Fatalf("unexpected args status=%q page=%d limit=%d", status, page, limit)
		}
		return []*entity.Order{sampleOrder()}, 11, nil
	}}
	ctrl := NewOrderController(svc)
	ctx, rec := newJSONContext(http.MethodGet, "/orders/history?status=success&page=2&limit=5", "")
	auth.WithActor(ctx, &auth.Actor{ID: "user-1"})

	_ = ctrl.ListOrders(ctx)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}

	var payload types.ListOrdersResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if len(payload.Orders) != 1 || payload.Pagination.Total != 11 || payload.Pagination.TotalPages != 3 {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestListOrdersRejectsBadLimit(t *testing.T) {
	ctrl := NewOrderController(&fakeService{})
	ctx, rec := newJSONContext(http.MethodGet, "/orders/history?limit=500", "")

	_ = ctrl.ListOrders(ctx)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestOrderStatusChecksAccessBeforePolling(t *testing.T) {
	svc := &fakeService{getOrderFn: func(context.Context, string, *auth.Actor) (*entity.Order, error) {
		return nil, service.ErrOrderNotFound
	}}
	ctrl := NewOrderController(svc)
	ctx, rec := newJSONContext(http.MethodGet, "/orders/order-1/status", "")
	ctx.SetParamNames("id")
	ctx.SetParamValues("order-1")

	_ = ctrl.OrderStatus(ctx)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if svc.checkCalls != 0 {
		t.Fatalf("expected no provider poll, got %d", svc.checkCalls)
	}
}

func TestOrderStatusPolls(t *testing.T) {
	svc := &fakeService{checkOrderStatusFn: func(context.Context, string) (*entity.Order, error) {
		order := sampleOrder()
		order.Status = entity.OrderStatusSuccess
		return order, nil
	}}
	ctrl := NewOrderController(svc)
	ctx, rec := newJSONContext(http.MethodGet, "/orders/order-1/status", "")
	ctx.SetParamNames("id")
	ctx.SetParamValues("order-1")

	_ = ctrl.OrderStatus(ctx)
	if rec.Code != http.StatusOK || svc.checkCalls != 1 {
		t.Fatalf("expected 200 with one poll, got %d calls=%d", rec.Code, svc.checkCalls)
	}
	if !bytes.Contains(rec.Body.Bytes(), []byte(`"status":"success"`)) {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}

func TestCancelOrderConflict(t *testing.T) {
	svc := &fakeService{cancelOrderFn: func(context.Context, string, *auth.Actor) (*entity.Order, error) {
		return nil, fmt.Errorf("%w: paid orders cannot be cancelled", service.ErrInvalidStatus)
	}}
	ctrl := NewOrderController(svc)
	ctx, rec := newJSONContext(http.MethodPost, "/orders/order-1/cancel", "")
	ctx.SetParamNames("id")
	ctx.SetParamValues("order-1")

	_ = ctrl.CancelOrder(ctx)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestRefundOrderGuestConflict(t *testing.T) {
	svc := &fakeService{adminRefundFn: func(context.Context, string, *auth.Actor) (*entity.Order, error) {
		return nil, service.ErrGuestRefundUnsupported
	}}
	ctrl := NewOrderController(svc)
	ctx, rec := newJSONContext(http.MethodPost, "/orders/order-1/refund", "")
	ctx.SetParamNames("id")
	ctx.SetParamValues("order-1")
	auth.WithActor(ctx, &auth.Actor{ID: "admin-1", Role: entity.RoleAdmin})

	_ = ctrl.RefundOrder(ctx)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestRetryOrderPassesActorAndID(t *testing.T) {
	var gotID string
	var gotActor *auth.Actor
	svc := &fakeService{adminRetryFn: func(_ context.Context, orderID string, actor *auth.Actor) (*entity.Order, error) {
		gotID, gotActor = orderID, actor
		order := sampleOrder()
		order.Status = entity.OrderStatusProcessing
		return order, nil
	}}
	ctrl := NewOrderController(svc)
	ctx, rec := newJSONContext(http.MethodPost, "/orders/order-1/retry", "")
	ctx.SetParamNames("id")
	ctx.SetParamValues("order-1")
	auth.WithActor(ctx, &auth.Actor{ID: "admin-1", Role: entity.RoleAdmin})

	_ = ctrl.RetryOrder(ctx)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}
	if gotID != "order-1" || gotActor == nil || gotActor.ID != "admin-1" {
		t.Fatalf("unexpected args id=%q actor=%+v", gotID, gotActor)
	}

	var payload types.OrderEnvelopeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if payload.Order == nil || payload.Order.Status != string(entity.OrderStatusProcessing) {
		t.Fatalf("unexpected payload: %+v", payload.Order)
	}
}

func TestRetryOrderMapsServiceErrors(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{service.ErrInvalidStatus, http.StatusConflict},
		{service.ErrForbidden, http.StatusForbidden},
		{service.ErrOrderNotFound, http.StatusNotFound},
	}
	for _, tc := range cases {
		err := tc.err
		svc := &fakeService{adminRetryFn: func(context.Context, string, *auth.Actor) (*entity.Order, error) {
			return nil, err
		}}
		ctrl := NewOrderController(svc)
		ctx, rec := newJSONContext(http.MethodPost, "/orders/order-1/retry", "")
		ctx.SetParamNames("id")
		ctx.SetParamValues("order-1")

		_ = ctrl.RetryOrder(ctx)
		if rec.Code != tc.want {
			t.Fatalf("%v: expected %d, got %d", tc.err, tc.want, rec.Code)
		}
	}
}

func TestHealth(t *testing.T) {
	ctrl := NewOrderController(&fakeService{})
	ctx, rec := newJSONContext(http.MethodGet, "/health", "")

	_ = ctrl.Health(ctx)
	if rec.Code != http.StatusOK || !bytes.Contains(rec.Body.Bytes(), []byte(`"ok"`)) {
		t.Fatalf("unexpected health response %d %s", rec.Code, rec.Body.String())
	}
}
