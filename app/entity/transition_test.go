package entity

import (
	"errors"
	"testing"
)

func TestNextStateAllowedTransitions(t *testing.T) {
	cases := []struct {
		name  string
		kind  OrderKind
		from  OrderState
		event Transition
		want  OrderState
	}{
		{"invoice issued", OrderKindPurchase, pendingUnpaid, TransitionAwaitPayment, pendingAwaiting},
		{"balance debit", OrderKindPurchase, pendingUnpaid, TransitionPayWithBalance, pendingPaid},
		{"gateway paid", OrderKindPurchase, pendingAwaiting, TransitionGatewayPaid, pendingPaid},
		{"late payment after cancel", OrderKindPurchase, cancelledAwaiting, TransitionGatewayPaid, cancelledPaid},
		{"dispatch", OrderKindPurchase, pendingPaid, TransitionDispatch, processingPaid},
		{"fulfilled", OrderKindPurchase, processingPaid, TransitionFulfilled, successPaid},
		{"fulfillment failed", OrderKindPurchase, processingPaid, TransitionFulfillmentFailed, failedPaid},
		{"refund", OrderKindPurchase, failedPaid, TransitionRefund, refunded},
		{"expire", OrderKindPurchase, pendingAwaiting, TransitionPaymentExpired, cancelledExpired},
		{"cancel unpaid", OrderKindPurchase, pendingUnpaid, TransitionCancel, cancelledUnpaid},
		{"topup credited", OrderKindTopup, pendingPaid, TransitionTopupCredited, successPaid},
		{"retry failed", OrderKindPurchase, failedPaid, TransitionRetry, pendingPaid},
		{"retry processing", OrderKindPurchase, processingPaid, TransitionRetry, pendingPaid},
	}

	for _, tc := range cases {
		got, err := NextState(tc.kind, tc.from, tc.event)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.name, err)
		}
		if got != tc.want {
			t.Fatalf("%s: expected %s, got %s", tc.name, tc.want, got)
		}
	}
}

func TestNextStateRejectsUnlistedTransitions(t *testing.T) {
	cases := []struct {
		name  string
		kind  OrderKind
		from  OrderState
		event Transition
	}{
		{"cancel paid order", OrderKindPurchase, pendingPaid, TransitionCancel},
		{"dispatch before payment", OrderKindPurchase, pendingAwaiting, TransitionDispatch},
		{"dispatch twice", OrderKindPurchase, processingPaid, TransitionDispatch},
		{"refund twice", OrderKindPurchase, refunded, TransitionRefund},
		{"expire paid order", OrderKindPurchase, pendingPaid, TransitionPaymentExpired},
		{"dispatch topup", OrderKindTopup, pendingPaid, TransitionDispatch},
		{"credit purchase", OrderKindPurchase, pendingPaid, TransitionTopupCredited},
		{"topup paid with balance", OrderKindTopup, pendingUnpaid, TransitionPayWithBalance},
		{"retry delivered order", OrderKindPurchase, successPaid, TransitionRetry},
		{"retry refunded order", OrderKindPurchase, refunded, TransitionRetry},
		{"retry unpaid failure", OrderKindPurchase, failedUnpaid, TransitionRetry},
	}

	for _, tc := range cases {
		_, err := NextState(tc.kind, tc.from, tc.event)
		if !errors.Is(err, ErrTransitionNotAllowed) {
			t.Fatalf("%s: expected ErrTransitionNotAllowed, got %v", tc.name, err)
		}
	}
}

func TestOrderOwnership(t *testing.T) {
	owner := "user-1"
	order := &Order{UserID: &owner, PaymentMethod: PaymentMethodBalance}
	if !order.OwnedBy("user-1") || order.OwnedBy("user-2") {
		t.Fatal("unexpected ownership result")
	}
	if !order.BalanceFunded() {
		t.Fatal("expected balance funded order")
	}

	guest := &Order{PaymentMethod: "QRIS"}
	if guest.HasOwner() || guest.OwnedBy("") {
		t.Fatal("guest order must not have an owner")
	}
}
