package entity

import (
	"errors"
	"fmt"
)

var ErrTransitionNotAllowed = errors.New("order transition not allowed")

type OrderState struct {
	Status        OrderStatus
	PaymentStatus PaymentStatus
}

func (s OrderState) String() string {
	return string(s.Status) + "/" + string(s.PaymentStatus)
}

// Transition names one lifecycle event applied to an order.
type Transition string

const (
	TransitionAwaitPayment      Transition = "await_payment"
	TransitionPayWithBalance    Transition = "pay_with_balance"
	TransitionInvoiceFailed     Transition = "invoice_failed"
	TransitionGatewayPaid       Transition = "gateway_paid"
	TransitionPaymentExpired    Transition = "payment_expired"
	TransitionDispatch          Transition = "dispatch"
	TransitionFulfilled         Transition = "fulfilled"
	TransitionFulfillmentFailed Transition = "fulfillment_failed"
	TransitionTopupCredited     Transition = "topup_credited"
	TransitionCancel            Transition = "cancel"
	TransitionRefund            Transition = "refund"
	TransitionRetry             Transition = "retry"
)

type transitionRule struct {
	from OrderState
	to   OrderState
	kind OrderKind
}

func rule(from, to OrderState) transitionRule {
	return transitionRule{from: from, to: to}
}

func kindRule(kind OrderKind, from, to OrderState) transitionRule {
	return transitionRule{from: from, to: to, kind: kind}
}

var (
	pendingUnpaid     = OrderState{OrderStatusPending, PaymentStatusUnpaid}
	pendingAwaiting   = OrderState{OrderStatusPending, PaymentStatusPending}
	pendingPaid       = OrderState{OrderStatusPending, PaymentStatusPaid}
	pendingExpired    = OrderState{OrderStatusPending, PaymentStatusExpired}
	processingPaid    = OrderState{OrderStatusProcessing, PaymentStatusPaid}
	successPaid       = OrderState{OrderStatusSuccess, PaymentStatusPaid}
	failedUnpaid      = OrderState{OrderStatusFailed, PaymentStatusUnpaid}
	failedPaid        = OrderState{OrderStatusFailed, PaymentStatusPaid}
	cancelledUnpaid   = OrderState{OrderStatusCancelled, PaymentStatusUnpaid}
	cancelledAwaiting = OrderState{OrderStatusCancelled, PaymentStatusPending}
	cancelledPaid     = OrderState{OrderStatusCancelled, PaymentStatusPaid}
	cancelledExpired  = OrderState{OrderStatusCancelled, PaymentStatusExpired}
	refunded          = OrderState{OrderStatusRefunded, PaymentStatusRefunded}
)

// transitionTable enumerates every state change an order may go through.
// Anything not listed is rejected.
var transitionTable = map[Transition][]transitionRule{
	TransitionAwaitPayment:   {rule(pendingUnpaid, pendingAwaiting)},
	TransitionPayWithBalance: {kindRule(OrderKindPurchase, pendingUnpaid, pendingPaid)},
	TransitionInvoiceFailed:  {rule(pendingUnpaid, failedUnpaid)},
	TransitionGatewayPaid: {
		rule(pendingAwaiting, pendingPaid),
		rule(pendingExpired, pendingPaid),
		// A payment that lands after the buyer cancelled is recorded but never fulfilled.
		rule(cancelledAwaiting, cancelledPaid),
	},
	TransitionPaymentExpired: {
		rule(pendingAwaiting, cancelledExpired),
		rule(cancelledAwaiting, cancelledExpired),
	},
	TransitionDispatch:          {kindRule(OrderKindPurchase, pendingPaid, processingPaid)},
	TransitionFulfilled:         {kindRule(OrderKindPurchase, processingPaid, successPaid)},
	TransitionFulfillmentFailed: {kindRule(OrderKindPurchase, processingPaid, failedPaid)},
	TransitionTopupCredited:     {kindRule(OrderKindTopup, pendingPaid, successPaid)},
	TransitionCancel: {
		rule(pendingUnpaid, cancelledUnpaid),
		rule(pendingAwaiting, cancelledAwaiting),
	},
	TransitionRefund: {
		rule(failedPaid, refunded),
		rule(cancelledPaid, refunded),
	},
	// Operator re-drive of a paid purchase the provider never confirmed.
	TransitionRetry: {
		kindRule(OrderKindPurchase, failedPaid, pendingPaid),
		kindRule(OrderKindPurchase, processingPaid, pendingPaid),
	},
}

// NextState resolves the state an order of the given kind moves to when t is
// applied in state from.
func NextState(kind OrderKind, from OrderState, t Transition) (OrderState, error) {
	for _, r := range transitionTable[t] {
		if r.from != from {
			continue
		}
		if r.kind != "" && r.kind != kind {
			continue
		}
		return r.to, nil
	}
	return OrderState{}, fmt.Errorf("%w: %s from %s", ErrTransitionNotAllowed, t, from)
}

func CanTransition(kind OrderKind, from OrderState, t Transition) bool {
	_, err := NextState(kind, from, t)
	return err == nil
}

// Terminal reports whether the order status closes the lifecycle.
func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderStatusSuccess, OrderStatusFailed, OrderStatusCancelled, OrderStatusRefunded:
		return true
	default:
		return false
	}
}
