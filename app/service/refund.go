package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/vibast-solutions/ms-go-orders/app/auth"
	"github.com/vibast-solutions/ms-go-orders/app/entity"
)

const eventRefundSkippedGuest = "refund_skipped_guest"

// AdminRefundOrder credits the order total back to the owner balance. Guest
// orders have no balance to credit and are reported as
// ErrGuestRefundUnsupported.
func (s *OrderService) AdminRefundOrder(ctx context.Context, orderID string, actor *auth.Actor) (*entity.Order, error) {
	if actor == nil {
		return nil, ErrAuthenticationRequired
	}
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	return s.refund(ctx, strings.TrimSpace(orderID), entity.OrderEventSourceAdmin, true)
}

// refund is a no-op for refunded orders. Guest orders are rejected when
// rejectGuest is set and otherwise only logged, which is what the automatic
// paths want.
func (s *OrderService) refund(ctx context.Context, orderID, source string, rejectGuest bool) (*entity.Order, error) {
	var order *entity.Order
	var account *entity.Account
	refunded := false

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		order, err = s.lockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if order.Status == entity.OrderStatusRefunded {
			return nil
		}

		if !order.HasOwner() {
			if rejectGuest {
				return ErrGuestRefundUnsupported
			}
			s.logger.WithField("order_id", order.ID).Warn("skipping refund of guest order")
			oldStatus := order.Status
			oldPaymentStatus := order.PaymentStatus
			return s.events.Create(ctx, &entity.OrderEvent{
				OrderID:          order.ID,
				EventType:        eventRefundSkippedGuest,
				OldStatus:        &oldStatus,
				NewStatus:        order.Status,
				OldPaymentStatus: &oldPaymentStatus,
				NewPaymentStatus: order.PaymentStatus,
				Source:           source,
				CreatedAt:        s.now(),
			})
		}

		if !entity.CanTransition(order.Kind, order.State(), entity.TransitionRefund) {
			return fmt.Errorf("%w: order is %s", ErrInvalidStatus, order.State())
		}

		account, err = s.accounts.FindByIDForUpdate(ctx, *order.UserID)
		if err != nil {
			return err
		}
		if account == nil {
			return ErrAccountNotFound
		}

		description := fmt.Sprintf("Refund %s (%s)", order.ProductName, order.OrderNumber)
		if _, err := s.moveBalance(ctx, account, order, entity.BalanceTransactionRefund, order.TotalPrice, description); err != nil {
			return err
		}
		if err := s.applyTransition(ctx, order, entity.TransitionRefund, source, nil); err != nil {
			return err
		}
		refunded = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if refunded {
		s.notifier.NotifyRefund(ctx, order, order.TotalPrice, phoneOf(account))
	}
	return order, nil
}
