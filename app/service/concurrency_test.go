package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/vibast-solutions/ms-go-orders/app/entity"
)

func TestConcurrentPaidWebhooksDispatchOnce(t *testing.T) {
	h := newHarness(t)
	order := h.createGatewayOrder(t, buyer)
	payload := paidPayload(*order.PaymentID)

	const deliveries = 8
	start := make(chan struct{})
	errs := make([]error, deliveries)
	var wg sync.WaitGroup
	for i := 0; i < deliveries; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			errs[i] = h.svc.HandleGatewayWebhook(context.Background(), "callback-token", payload)
		}(i)
	}
	close(start)
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("delivery %d: expected no error, got %v", i, err)
		}
	}

	assertState(t, h.store.order(order.ID), entity.OrderStatusProcessing, entity.PaymentStatusPaid)
	if len(h.provider.placeCalls) != 1 {
		t.Fatalf("expected exactly one provider call, got %d", len(h.provider.placeCalls))
	}

	counts := map[string]int{}
	for _, event := range h.store.eventTypes(order.ID) {
		counts[event]++
	}
	if counts[string(entity.TransitionGatewayPaid)] != 1 || counts[string(entity.TransitionDispatch)] != 1 {
		t.Fatalf("expected one gateway_paid and one dispatch event, got %v", counts)
	}
	if h.notifier.count("paid:") != 1 {
		t.Fatalf("expected one paid notification, got %v", h.notifier.events)
	}

	if len(h.store.callbacks) != deliveries {
		t.Fatalf("expected %d persisted callbacks, got %d", deliveries, len(h.store.callbacks))
	}
	processed := 0
	for _, callback := range h.store.callbacks {
		if callback.Status == entity.WebhookCallbackProcessed {
			processed++
		}
	}
	if processed != 1 {
		t.Fatalf("expected one processed callback, got %d", processed)
	}
}

func TestConcurrentBalancePurchasesConserveBalance(t *testing.T) {
	h := newHarness(t)
	input := h.balanceOrderInput()
	input.Quantity = 1

	// Each purchase costs 50000 against an opening balance of 200000.
	const buyers = 6
	start := make(chan struct{})
	errs := make([]error, buyers)
	var wg sync.WaitGroup
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, errs[i] = h.svc.CreateOrder(context.Background(), input)
		}(i)
	}
	close(start)
	wg.Wait()

	succeeded := 0
	for i, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, ErrInsufficientBalance):
		default:
			t.Fatalf("purchase %d: unexpected error %v", i, err)
		}
	}
	if succeeded != 4 {
		t.Fatalf("expected 4 purchases to succeed, got %d", succeeded)
	}
	if len(h.store.orders) != 4 {
		t.Fatalf("expected rejected purchases to leave no order, got %d orders", len(h.store.orders))
	}
	if len(h.provider.placeCalls) != 4 {
		t.Fatalf("expected 4 provider calls, got %d", len(h.provider.placeCalls))
	}

	balance := h.store.accounts[buyer.ID].Balance
	if !balance.IsZero() {
		t.Fatalf("expected balance 0, got %s", balance)
	}
	if len(h.store.txns) != 4 {
		t.Fatalf("expected 4 ledger entries, got %d", len(h.store.txns))
	}
	if !h.store.txns[0].BalanceBefore.Equal(dec(200000)) {
		t.Fatalf("expected ledger to start at 200000, got %s", h.store.txns[0].BalanceBefore)
	}
	for i, txn := range h.store.txns {
		if txn.Type != entity.BalanceTransactionPurchase || !txn.Amount.Equal(dec(-50000)) {
			t.Fatalf("unexpected ledger entry %d: %+v", i, txn)
		}
		if !txn.BalanceAfter.Equal(txn.BalanceBefore.Add(txn.Amount)) {
			t.Fatalf("transaction %d breaks balance_after = balance_before + amount", i)
		}
		if i > 0 && !txn.BalanceBefore.Equal(h.store.txns[i-1].BalanceAfter) {
			t.Fatalf("transaction %d does not chain from the previous one", i)
		}
	}
	if !h.store.txns[len(h.store.txns)-1].BalanceAfter.Equal(balance) {
		t.Fatal("expected the last ledger entry to match the stored balance")
	}
}
