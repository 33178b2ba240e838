package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-orders/app/auth"
	"github.com/vibast-solutions/ms-go-orders/app/entity"
	"github.com/vibast-solutions/ms-go-orders/app/gateway"
	"github.com/vibast-solutions/ms-go-orders/app/pricing"
	"github.com/vibast-solutions/ms-go-orders/app/repository"
)

const topupProductName = "Top Up Saldo"

var (
	defaultMinTopup = decimal.NewFromInt(10000)
	defaultMaxTopup = decimal.NewFromInt(10000000)
)

type PaymentMethodsResult struct {
	Groups  map[pricing.MethodType][]pricing.Method
	Balance *decimal.Decimal
}

// gatewayOutcome reports what a gateway status update did to the ledger.
type gatewayOutcome int

const (
	gatewayOrderMissing gatewayOutcome = iota
	gatewayNoop
	gatewayApplied
)

func (s *OrderService) PaymentMethods(ctx context.Context, actor *auth.Actor) (*PaymentMethodsResult, error) {
	result := &PaymentMethodsResult{Groups: s.methods.Grouped(actor != nil)}
	if actor == nil {
		return result, nil
	}

	account, err := s.accounts.FindByID(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	balance := decimal.Zero
	if account != nil {
		balance = account.Balance
	}
	result.Balance = &balance
	return result, nil
}

// GetPaymentStatus asks the gateway about an open invoice before answering,
// so a poll can settle an order whose webhook has not arrived yet.
func (s *OrderService) GetPaymentStatus(ctx context.Context, orderID string) (*entity.Order, error) {
	order, err := s.orders.FindByID(ctx, strings.TrimSpace(orderID))
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}

	if err := s.reconcileInvoice(ctx, order, entity.OrderEventSourceAPI); err != nil {
		return nil, err
	}
	return s.reload(ctx, order), nil
}

func (s *OrderService) reconcileInvoice(ctx context.Context, order *entity.Order, source string) error {
	if order.PaymentStatus != entity.PaymentStatusPending || order.PaymentID == nil {
		return nil
	}

	result := s.gateway.GetInvoice(ctx, *order.PaymentID)
	if !result.Success {
		s.logger.WithFields(logrus.Fields{"order_id": order.ID, "error": result.Error}).Warn("invoice status check failed")
		return nil
	}

	var err error
	switch result.Status {
	case gateway.InvoiceStatusPaid:
		_, err = s.applyGatewayPaid(ctx, *order.PaymentID, decimal.Zero, result.PaidAt, source)
	case gateway.InvoiceStatusExpired:
		_, err = s.applyGatewayExpired(ctx, *order.PaymentID, source)
	}
	return err
}

// applyGatewayPaid settles the order holding invoiceID. Redelivery of the
// same payment is a no-op. Top-ups are credited inside the same transaction;
// purchases are dispatched after commit. A zero paidAmount means the caller
// does not know it; any other amount that differs from the order total is
// noted on the order.
func (s *OrderService) applyGatewayPaid(ctx context.Context, invoiceID string, paidAmount decimal.Decimal, paidAt *time.Time, source string) (gatewayOutcome, error) {
	var order *entity.Order
	var topupTxn *entity.BalanceTransaction
	var account *entity.Account
	outcome := gatewayOrderMissing

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		order, err = s.orders.FindByPaymentIDForUpdate(ctx, invoiceID)
		if err != nil {
			return err
		}
		if order == nil {
			s.logger.WithField("invoice_id", invoiceID).Warn("paid invoice does not match any order")
			return nil
		}

		outcome = gatewayNoop
		if !entity.CanTransition(order.Kind, order.State(), entity.TransitionGatewayPaid) {
			if order.PaymentStatus != entity.PaymentStatusPaid && order.PaymentStatus != entity.PaymentStatusRefunded {
				s.logger.WithFields(logrus.Fields{"order_id": order.ID, "state": order.State().String()}).Warn("ignoring paid invoice for order")
			}
			return nil
		}

		lateAfterCancel := order.Status == entity.OrderStatusCancelled
		mismatch := paidAmount.IsPositive() && !paidAmount.Equal(order.TotalPrice)
		err = s.applyTransition(ctx, order, entity.TransitionGatewayPaid, source, func(o *entity.Order) {
			paid := o.UpdatedAt
			if paidAt != nil {
				paid = paidAt.UTC()
			}
			o.PaidAt = &paid

			notes := make([]string, 0, 2)
			if lateAfterCancel {
				notes = append(notes, manualRefundNote+": payment received after cancellation")
			}
			if mismatch {
				notes = append(notes, fmt.Sprintf("amount mismatch: paid %s expected %s", paidAmount.String(), o.TotalPrice.String()))
			}
			if len(notes) > 0 {
				note := strings.Join(notes, "; ")
				o.Notes = &note
			}
		})
		if err != nil {
			return err
		}
		outcome = gatewayApplied

		if mismatch {
			s.logger.WithFields(logrus.Fields{
				"order_id": order.ID,
				"paid":     paidAmount.String(),
				"expected": order.TotalPrice.String(),
			}).Warn("gateway paid amount differs from order total")
		}

		if lateAfterCancel {
			s.logger.WithField("order_id", order.ID).Warn("payment received for cancelled order, manual refund required")
			return nil
		}
		if order.Kind == entity.OrderKindTopup {
			account, topupTxn, err = s.creditTopup(ctx, order, source)
			return err
		}
		return nil
	})
	if err != nil {
		return outcome, err
	}
	if outcome != gatewayApplied {
		return outcome, nil
	}

	if topupTxn != nil {
		s.notifier.NotifyTopupSuccess(ctx, topupTxn, phoneOf(account))
		return outcome, nil
	}

	s.notifier.NotifyOrderPaid(ctx, order, s.phoneFor(ctx, order))
	if order.Kind == entity.OrderKindPurchase && order.Status == entity.OrderStatusPending {
		if _, err := s.dispatch(ctx, order.ID, source); err != nil {
			s.logger.WithError(err).WithField("order_id", order.ID).Error("dispatch after gateway payment failed")
		}
	}
	return outcome, nil
}

func (s *OrderService) creditTopup(ctx context.Context, order *entity.Order, source string) (*entity.Account, *entity.BalanceTransaction, error) {
	if !order.HasOwner() {
		return nil, nil, fmt.Errorf("%w: top-up order %s has no owner", ErrInvalidStatus, order.ID)
	}

	account, err := s.accounts.FindByIDForUpdate(ctx, *order.UserID)
	if err != nil {
		return nil, nil, err
	}
	if account == nil {
		return nil, nil, ErrAccountNotFound
	}

	amount := order.TotalPrice.Sub(order.AdminFee)
	txn, err := s.moveBalance(ctx, account, order, entity.BalanceTransactionTopup, amount, "Top up "+order.OrderNumber)
	if err != nil {
		return nil, nil, err
	}

	if err := s.applyTransition(ctx, order, entity.TransitionTopupCredited, source, func(o *entity.Order) {
		completedAt := o.UpdatedAt
		o.CompletedAt = &completedAt
	}); err != nil {
		return nil, nil, err
	}
	return account, txn, nil
}

// applyGatewayExpired cancels the order holding invoiceID while its payment
// is still pending. Any other payment state wins over the expiry.
func (s *OrderService) applyGatewayExpired(ctx context.Context, invoiceID, source string) (gatewayOutcome, error) {
	outcome := gatewayOrderMissing
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		order, err := s.orders.FindByPaymentIDForUpdate(ctx, invoiceID)
		if err != nil {
			return err
		}
		if order == nil {
			s.logger.WithField("invoice_id", invoiceID).Warn("expired invoice does not match any order")
			return nil
		}
		outcome, err = s.expireLocked(ctx, order, source)
		return err
	})
	return outcome, err
}

func (s *OrderService) expireLocked(ctx context.Context, order *entity.Order, source string) (gatewayOutcome, error) {
	if order.PaymentStatus != entity.PaymentStatusPending {
		return gatewayNoop, nil
	}
	if !entity.CanTransition(order.Kind, order.State(), entity.TransitionPaymentExpired) {
		return gatewayNoop, nil
	}
	if err := s.applyTransition(ctx, order, entity.TransitionPaymentExpired, source, nil); err != nil {
		return gatewayNoop, err
	}
	return gatewayApplied, nil
}

func (s *OrderService) TopupBalance(ctx context.Context, actor *auth.Actor, amount decimal.Decimal, method string) (*entity.Order, error) {
	if actor == nil {
		return nil, ErrAuthenticationRequired
	}

	minTopup, maxTopup := s.cfg.MinTopup, s.cfg.MaxTopup
	if !minTopup.IsPositive() {
		minTopup = defaultMinTopup
	}
	if !maxTopup.IsPositive() {
		maxTopup = defaultMaxTopup
	}
	if amount.LessThan(minTopup) || amount.GreaterThan(maxTopup) {
		return nil, fmt.Errorf("%w: top-up amount must be between %s and %s", ErrInvalidRequest, minTopup.String(), maxTopup.String())
	}

	method = strings.ToUpper(strings.TrimSpace(method))
	if method == entity.PaymentMethodBalance || !s.methods.IsValid(method) {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, pricing.ErrInvalidPaymentMethod)
	}
	if amount.LessThan(s.methods.MinimumAmount(method)) {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, pricing.ErrBelowMinimumAmount)
	}

	adminFee := s.methods.AdminFee(method)
	now := s.now()
	userID := actor.ID
	order := &entity.Order{
		ID:            uuid.NewString(),
		OrderNumber:   newOrderNumber(now),
		Kind:          entity.OrderKindTopup,
		UserID:        &userID,
		TargetID:      actor.ID,
		ProductName:   topupProductName,
		Quantity:      1,
		UnitPrice:     amount,
		Discount:      decimal.Zero,
		AdminFee:      adminFee,
		TotalPrice:    pricing.ComputeTotal(amount, 1, decimal.Zero, adminFee),
		Status:        entity.OrderStatusPending,
		PaymentStatus: entity.PaymentStatusUnpaid,
		PaymentMethod: method,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	items := []gateway.Item{{Name: topupProductName, Quantity: 1, Price: amount}}
	if adminFee.IsPositive() {
		items = append(items, gateway.Item{Name: "Biaya admin", Quantity: 1, Price: adminFee})
	}
	return s.createInvoicedOrder(ctx, order, actor.Email, items)
}

func (s *OrderService) GetBalance(ctx context.Context, actor *auth.Actor) (decimal.Decimal, error) {
	if actor == nil {
		return decimal.Zero, ErrAuthenticationRequired
	}
	account, err := s.accounts.FindByID(ctx, actor.ID)
	if err != nil {
		return decimal.Zero, err
	}
	if account == nil {
		return decimal.Zero, ErrAccountNotFound
	}
	return account.Balance, nil
}

// AdminAdjustBalance applies a signed operator correction to a user balance
// and records it as an adjustment entry. A debit may not take the balance
// below zero.
func (s *OrderService) AdminAdjustBalance(ctx context.Context, actor *auth.Actor, userID string, amount decimal.Decimal, description string) (*entity.BalanceTransaction, error) {
	if actor == nil {
		return nil, ErrAuthenticationRequired
	}
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}

	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidRequest)
	}
	if amount.IsZero() {
		return nil, fmt.Errorf("%w: amount must not be zero", ErrInvalidRequest)
	}
	description = strings.TrimSpace(description)
	if description == "" {
		description = "Admin adjustment by " + actor.ID
	}

	var txn *entity.BalanceTransaction
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		account, err := s.accounts.FindByIDForUpdate(ctx, userID)
		if err != nil {
			return err
		}
		if account == nil {
			return ErrAccountNotFound
		}
		if account.Balance.Add(amount).IsNegative() {
			return fmt.Errorf("%w: balance cannot go below zero", ErrInsufficientBalance)
		}
		txn, err = s.moveBalance(ctx, account, nil, entity.BalanceTransactionAdjustment, amount, description)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"user_id": userID,
		"amount":  amount.String(),
		"by":      actor.ID,
	}).Info("user balance adjusted")
	return txn, nil
}

func (s *OrderService) ListTransactions(ctx context.Context, actor *auth.Actor, txnType string, page, limit int32) ([]*entity.BalanceTransaction, int64, error) {
	if actor == nil {
		return nil, 0, ErrAuthenticationRequired
	}

	filter := repository.BalanceTransactionFilter{UserID: actor.ID}
	if txnType = strings.TrimSpace(txnType); txnType != "" {
		switch entity.BalanceTransactionType(txnType) {
		case entity.BalanceTransactionPurchase, entity.BalanceTransactionRefund,
			entity.BalanceTransactionTopup, entity.BalanceTransactionAdjustment:
			filter.Type = entity.BalanceTransactionType(txnType)
		default:
			return nil, 0, fmt.Errorf("%w: unknown transaction type %q", ErrInvalidRequest, txnType)
		}
	}
	filter.Limit, filter.Offset = paginate(page, limit)

	items, err := s.balances.List(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.balances.Count(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}
