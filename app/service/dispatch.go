package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-orders/app/auth"
	"github.com/vibast-solutions/ms-go-orders/app/entity"
	"github.com/vibast-solutions/ms-go-orders/app/fulfillment"
)

const (
	manualRefundNote       = "manual refund required"
	unconfirmedDispatchMsg = "provider submission unconfirmed"
)

// AdminRetryOrder puts a paid purchase that is stuck in processing or failed
// at the provider back to pending/paid and submits it again.
func (s *OrderService) AdminRetryOrder(ctx context.Context, orderID string, actor *auth.Actor) (*entity.Order, error) {
	if actor == nil {
		return nil, ErrAuthenticationRequired
	}
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}

	orderID = strings.TrimSpace(orderID)
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		order, err := s.lockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if !entity.CanTransition(order.Kind, order.State(), entity.TransitionRetry) {
			return fmt.Errorf("%w: order is %s", ErrInvalidStatus, order.State())
		}
		return s.applyTransition(ctx, order, entity.TransitionRetry, entity.OrderEventSourceAdmin, func(o *entity.Order) {
			o.ProviderTrxID = nil
			o.ProviderStatus = nil
			o.ProviderSN = nil
			o.ProviderMessage = nil
			if o.Notes != nil && strings.HasPrefix(*o.Notes, manualRefundNote) {
				o.Notes = nil
			}
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{"order_id": orderID, "by": actor.ID}).Info("admin retry of order")
	return s.dispatch(ctx, orderID, entity.OrderEventSourceAdmin)
}

// dispatch submits a paid order to the fulfillment provider. Orders that are
// not pending/paid are returned unchanged.
func (s *OrderService) dispatch(ctx context.Context, orderID, source string) (*entity.Order, error) {
	var claimed *entity.Order
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		order, err := s.lockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if !entity.CanTransition(order.Kind, order.State(), entity.TransitionDispatch) {
			return nil
		}
		if err := s.applyTransition(ctx, order, entity.TransitionDispatch, source, nil); err != nil {
			return err
		}
		claimed = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	if claimed == nil {
		current, err := s.orders.FindByID(ctx, orderID)
		if err != nil {
			return nil, err
		}
		if current == nil {
			return nil, ErrOrderNotFound
		}
		return current, nil
	}

	result := s.placeOrder(ctx, claimed)

	var outcome entity.Transition
	var finalized *entity.Order
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		order, err := s.lockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		finalized = order

		if !result.Success {
			outcome, err = s.applyProviderStatus(ctx, order, fulfillment.StatusFailed, "", result.Error, source)
			return err
		}

		status := fulfillment.MapStatus(result.Status)
		order.ProviderTrxID = normalizeOptionalString(result.TrxID)
		if order.ProviderTrxID == nil && status != fulfillment.StatusSuccess && status != fulfillment.StatusFailed {
			// Nothing to poll or match a callback against; the orphan job settles it.
			s.logger.WithField("order_id", order.ID).Warn("provider accepted order without a transaction id")
		}
		outcome, err = s.applyProviderStatus(ctx, order, status, "", result.Message, source)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.afterProviderOutcome(ctx, finalized, outcome, source)
	return s.reload(ctx, finalized), nil
}

func (s *OrderService) placeOrder(ctx context.Context, order *entity.Order) fulfillment.PlaceOrderResult {
	if order.ProductSKU == nil || strings.TrimSpace(*order.ProductSKU) == "" {
		return fulfillment.PlaceOrderResult{Status: fulfillment.StatusFailed, Error: "product has no provider sku"}
	}

	server := ""
	if order.TargetServer != nil {
		server = *order.TargetServer
	}
	return s.provider.PlaceOrder(ctx, fulfillment.PlaceOrderRequest{
		SKU:          *order.ProductSKU,
		TargetID:     order.TargetID,
		TargetServer: server,
	})
}

// applyProviderStatus reconciles a locked order with a normalized provider
// status and returns the transition it applied, if any. Statuses other than
// success and failed only refresh the provider fields.
func (s *OrderService) applyProviderStatus(ctx context.Context, order *entity.Order, status, sn, message, source string) (entity.Transition, error) {
	logger := s.logger.WithFields(logrus.Fields{"order_id": order.ID, "provider_status": status})

	switch status {
	case fulfillment.StatusSuccess:
		if !entity.CanTransition(order.Kind, order.State(), entity.TransitionFulfilled) {
			if order.Status != entity.OrderStatusSuccess {
				logger.WithField("state", order.State().String()).Warn("ignoring provider success for order not in processing")
			}
			return "", nil
		}
		err := s.applyTransition(ctx, order, entity.TransitionFulfilled, source, func(o *entity.Order) {
			o.ProviderStatus = normalizeOptionalString(status)
			o.ProviderSN = normalizeOptionalString(sn)
			o.ProviderMessage = normalizeOptionalString(message)
			completedAt := o.UpdatedAt
			o.CompletedAt = &completedAt
		})
		return entity.TransitionFulfilled, err

	case fulfillment.StatusFailed:
		if !entity.CanTransition(order.Kind, order.State(), entity.TransitionFulfillmentFailed) {
			if order.Status != entity.OrderStatusFailed && order.Status != entity.OrderStatusRefunded {
				logger.WithField("state", order.State().String()).Warn("ignoring provider failure for order not in processing")
			}
			return "", nil
		}
		err := s.applyTransition(ctx, order, entity.TransitionFulfillmentFailed, source, func(o *entity.Order) {
			o.ProviderStatus = normalizeOptionalString(status)
			o.ProviderMessage = normalizeOptionalString(message)
			if !o.BalanceFunded() {
				note := manualRefundNote
				if message != "" {
					note += ": " + message
				}
				o.Notes = &note
			}
		})
		return entity.TransitionFulfillmentFailed, err

	default:
		if order.Status != entity.OrderStatusProcessing {
			return "", nil
		}
		order.ProviderStatus = normalizeOptionalString(status)
		if message != "" {
			order.ProviderMessage = &message
		}
		if sn != "" {
			order.ProviderSN = &sn
		}
		order.UpdatedAt = s.now()
		return "", s.orders.Update(ctx, order)
	}
}

// afterProviderOutcome runs the side effects of a committed provider
// transition. Refund failures are logged; the order stays failed/paid and is
// refundable by an admin.
func (s *OrderService) afterProviderOutcome(ctx context.Context, order *entity.Order, outcome entity.Transition, source string) {
	switch outcome {
	case entity.TransitionFulfilled:
		s.notifier.NotifyOrderSuccess(ctx, order, s.phoneFor(ctx, order))
	case entity.TransitionFulfillmentFailed:
		s.notifier.NotifyOrderFailed(ctx, order, s.phoneFor(ctx, order))
		if order.BalanceFunded() {
			if _, err := s.refund(ctx, order.ID, source, false); err != nil {
				s.logger.WithError(err).WithField("order_id", order.ID).Error("automatic refund failed")
			}
		} else {
			s.logger.WithField("order_id", order.ID).Warn("gateway-funded order failed at provider, manual refund required")
		}
	}
}

// CheckOrderStatus polls the provider for processing orders and applies the
// result inline.
func (s *OrderService) CheckOrderStatus(ctx context.Context, orderID string) (*entity.Order, error) {
	order, err := s.orders.FindByID(ctx, strings.TrimSpace(orderID))
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}

	if err := s.reconcileFulfillment(ctx, order, entity.OrderEventSourceAPI); err != nil {
		return nil, err
	}
	return s.reload(ctx, order), nil
}

func (s *OrderService) reconcileFulfillment(ctx context.Context, order *entity.Order, source string) error {
	if order.Status != entity.OrderStatusProcessing || order.ProviderTrxID == nil {
		return nil
	}

	result := s.provider.CheckStatus(ctx, *order.ProviderTrxID)
	if !result.Success {
		s.logger.WithFields(logrus.Fields{"order_id": order.ID, "error": result.Error}).Warn("provider status check failed")
		return nil
	}

	var outcome entity.Transition
	var locked *entity.Order
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		locked, err = s.lockOrder(ctx, order.ID)
		if err != nil {
			return err
		}
		outcome, err = s.applyProviderStatus(ctx, locked, fulfillment.MapStatus(result.Status), result.SN, result.Message, source)
		return err
	})
	if err != nil {
		return err
	}

	s.afterProviderOutcome(ctx, locked, outcome, source)
	return nil
}

// recoverOrphanedDispatch fails a processing order that never recorded a
// provider transaction id. Balance-funded orders are refunded; the rest are
// left failed/paid for an operator to retry or refund.
func (s *OrderService) recoverOrphanedDispatch(ctx context.Context, orderID, source string) error {
	var order *entity.Order
	var outcome entity.Transition
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		order, err = s.lockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if order.Status != entity.OrderStatusProcessing || order.ProviderTrxID != nil {
			return nil
		}
		outcome, err = s.applyProviderStatus(ctx, order, fulfillment.StatusFailed, "", unconfirmedDispatchMsg, source)
		return err
	})
	if err != nil {
		return err
	}

	if outcome != "" {
		s.logger.WithField("order_id", order.ID).Warn("failed orphaned dispatch")
	}
	s.afterProviderOutcome(ctx, order, outcome, source)
	return nil
}
