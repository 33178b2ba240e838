package service

import (
	"context"
	"time"

	"github.com/vibast-solutions/ms-go-orders/app/entity"
)

const defaultOrphanDispatchAfter = 30 * time.Minute

// RunReconcileInvoicesBatch asks the gateway about invoices that have been
// open for longer than the reconcile window.
func (s *OrderService) RunReconcileInvoicesBatch(ctx context.Context) error {
	before := s.now().Add(-s.cfg.InvoiceReconcileAfter)
	items, err := s.orders.ListAwaitingPayment(ctx, before, s.batchSize())
	if err != nil {
		return err
	}

	var firstErr error
	for _, order := range items {
		if order == nil {
			continue
		}
		if err := s.reconcileInvoice(ctx, order, entity.OrderEventSourceJob); err != nil {
			firstErr = keepFirstErr(firstErr, err)
		}
	}
	return firstErr
}

func (s *OrderService) RunReconcileFulfillmentBatch(ctx context.Context) error {
	before := s.now().Add(-s.cfg.FulfillmentReconcileAfter)
	items, err := s.orders.ListStaleProcessing(ctx, before, s.batchSize())
	if err != nil {
		return err
	}

	var firstErr error
	for _, order := range items {
		if order == nil {
			continue
		}
		if err := s.reconcileFulfillment(ctx, order, entity.OrderEventSourceJob); err != nil {
			firstErr = keepFirstErr(firstErr, err)
		}
	}
	return firstErr
}

// RunExpirePendingBatch mirrors the gateway-side invoice expiry locally for
// invoices whose expiry passed without a callback.
func (s *OrderService) RunExpirePendingBatch(ctx context.Context) error {
	items, err := s.orders.ListPaymentOverdue(ctx, s.now(), s.batchSize())
	if err != nil {
		return err
	}

	var firstErr error
	for _, item := range items {
		if item == nil {
			continue
		}
		err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
			order, err := s.lockOrder(ctx, item.ID)
			if err != nil {
				return err
			}
			_, err = s.expireLocked(ctx, order, entity.OrderEventSourceJob)
			return err
		})
		if err != nil {
			firstErr = keepFirstErr(firstErr, err)
		}
	}
	return firstErr
}

// RunDispatchPaidBatch re-drives purchases that were paid but never reached
// the provider, e.g. after a crash between payment and dispatch.
func (s *OrderService) RunDispatchPaidBatch(ctx context.Context) error {
	before := s.now().Add(-s.cfg.DispatchRetryAfter)
	items, err := s.orders.ListPaidUndispatched(ctx, before, s.batchSize())
	if err != nil {
		return err
	}

	var firstErr error
	for _, order := range items {
		if order == nil {
			continue
		}
		if _, err := s.dispatch(ctx, order.ID, entity.OrderEventSourceJob); err != nil {
			firstErr = keepFirstErr(firstErr, err)
		}
	}
	return firstErr
}

// RunRecoverOrphanedDispatchBatch settles orders that were claimed for
// dispatch but never recorded a provider transaction, e.g. after a crash
// between claim and finalize. Neither the reconcile job nor a callback can
// reach them.
func (s *OrderService) RunRecoverOrphanedDispatchBatch(ctx context.Context) error {
	after := s.cfg.OrphanDispatchAfter
	if after <= 0 {
		after = defaultOrphanDispatchAfter
	}
	items, err := s.orders.ListOrphanedProcessing(ctx, s.now().Add(-after), s.batchSize())
	if err != nil {
		return err
	}

	var firstErr error
	for _, order := range items {
		if order == nil {
			continue
		}
		if err := s.recoverOrphanedDispatch(ctx, order.ID, entity.OrderEventSourceJob); err != nil {
			firstErr = keepFirstErr(firstErr, err)
		}
	}
	return firstErr
}
