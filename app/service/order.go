package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-orders/app/auth"
	"github.com/vibast-solutions/ms-go-orders/app/entity"
	"github.com/vibast-solutions/ms-go-orders/app/factory"
	"github.com/vibast-solutions/ms-go-orders/app/fulfillment"
	"github.com/vibast-solutions/ms-go-orders/app/gateway"
	"github.com/vibast-solutions/ms-go-orders/app/metrics"
	"github.com/vibast-solutions/ms-go-orders/app/notification"
	"github.com/vibast-solutions/ms-go-orders/app/pricing"
	"github.com/vibast-solutions/ms-go-orders/app/repository"
	"github.com/vibast-solutions/ms-go-orders/config"
)

const (
	defaultPageLimit = int32(10)
	maxPageLimit     = int32(100)
	defaultBatchSize = int32(100)
)

type orderRepository interface {
	Create(ctx context.Context, order *entity.Order) error
	Update(ctx context.Context, order *entity.Order) error
	FindByID(ctx context.Context, id string) (*entity.Order, error)
	FindByIDForUpdate(ctx context.Context, id string) (*entity.Order, error)
	FindByOrderNumber(ctx context.Context, orderNumber string) (*entity.Order, error)
	FindByPaymentIDForUpdate(ctx context.Context, paymentID string) (*entity.Order, error)
	FindByProviderTrxIDForUpdate(ctx context.Context, trxID string) (*entity.Order, error)
	List(ctx context.Context, filter repository.OrderFilter) ([]*entity.Order, error)
	Count(ctx context.Context, filter repository.OrderFilter) (int64, error)
	ListAwaitingPayment(ctx context.Context, before time.Time, limit int32) ([]*entity.Order, error)
	ListPaymentOverdue(ctx context.Context, now time.Time, limit int32) ([]*entity.Order, error)
	ListStaleProcessing(ctx context.Context, before time.Time, limit int32) ([]*entity.Order, error)
	ListPaidUndispatched(ctx context.Context, before time.Time, limit int32) ([]*entity.Order, error)
	ListOrphanedProcessing(ctx context.Context, before time.Time, limit int32) ([]*entity.Order, error)
}

type accountRepository interface {
	FindByID(ctx context.Context, id string) (*entity.Account, error)
	FindByIDForUpdate(ctx context.Context, id string) (*entity.Account, error)
	UpdateBalance(ctx context.Context, id string, balance decimal.Decimal, now time.Time) error
}

type balanceTransactionRepository interface {
	Create(ctx context.Context, txn *entity.BalanceTransaction) error
	List(ctx context.Context, filter repository.BalanceTransactionFilter) ([]*entity.BalanceTransaction, error)
	Count(ctx context.Context, filter repository.BalanceTransactionFilter) (int64, error)
}

type productRepository interface {
	FindActiveByID(ctx context.Context, id string) (*entity.Product, error)
}

type orderEventRepository interface {
	Create(ctx context.Context, event *entity.OrderEvent) error
}

type webhookCallbackRepository interface {
	Create(ctx context.Context, callback *entity.WebhookCallback) error
}

type txManager interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type Repositories struct {
	Orders              orderRepository
	Accounts            accountRepository
	BalanceTransactions balanceTransactionRepository
	Products            productRepository
	OrderEvents         orderEventRepository
	WebhookCallbacks    webhookCallbackRepository
}

type CreateOrderInput struct {
	ProductID     string
	TargetID      string
	TargetServer  string
	Quantity      int32
	PaymentMethod string
	Email         string
	Actor         *auth.Actor
	IPAddress     string
	UserAgent     string
}

type OrderService struct {
	tx        txManager
	orders    orderRepository
	accounts  accountRepository
	balances  balanceTransactionRepository
	products  productRepository
	events    orderEventRepository
	callbacks webhookCallbackRepository
	gateway   gateway.Gateway
	provider  fulfillment.Provider
	notifier  notification.Notifier
	methods   *pricing.Methods
	rules     *pricing.Rules
	cfg       config.OrdersConfig
	logger    logrus.FieldLogger
	now       func() time.Time
}

func NewOrderService(
	tx txManager,
	repos Repositories,
	gw gateway.Gateway,
	provider fulfillment.Provider,
	notifier notification.Notifier,
	methods *pricing.Methods,
	rules *pricing.Rules,
	cfg config.OrdersConfig,
) *OrderService {
	if notifier == nil {
		notifier = notification.Multi{}
	}

	return &OrderService{
		tx:        tx,
		orders:    repos.Orders,
		accounts:  repos.Accounts,
		balances:  repos.BalanceTransactions,
		products:  repos.Products,
		events:    repos.OrderEvents,
		callbacks: repos.WebhookCallbacks,
		gateway:   gw,
		provider:  provider,
		notifier:  notifier,
		methods:   methods,
		rules:     rules,
		cfg:       cfg,
		logger:    factory.NewModuleLogger("order-service"),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *OrderService) CreateOrder(ctx context.Context, in CreateOrderInput) (*entity.Order, error) {
	method := strings.ToUpper(strings.TrimSpace(in.PaymentMethod))
	if !s.methods.IsValid(method) {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, pricing.ErrInvalidPaymentMethod)
	}

	productID := strings.TrimSpace(in.ProductID)
	targetID := strings.TrimSpace(in.TargetID)
	targetServer := strings.TrimSpace(in.TargetServer)
	if productID == "" || targetID == "" {
		return nil, fmt.Errorf("%w: product id and target id are required", ErrInvalidRequest)
	}

	quantity := in.Quantity
	if quantity == 0 {
		quantity = 1
	}
	if quantity < 0 {
		return nil, fmt.Errorf("%w: quantity must be positive", ErrInvalidRequest)
	}

	product, err := s.products.FindActiveByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, ErrProductNotFound
	}
	if (product.MinQty > 0 && quantity < product.MinQty) || (product.MaxQty > 0 && quantity > product.MaxQty) {
		return nil, fmt.Errorf("%w: quantity must be between %d and %d", ErrInvalidRequest, product.MinQty, product.MaxQty)
	}

	if err := s.rules.ValidateTarget(product.Provider, targetID, targetServer); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	adminFee := s.methods.AdminFee(method)
	total := pricing.ComputeTotal(product.Price, quantity, product.Discount, adminFee)
	if total.LessThan(s.methods.MinimumAmount(method)) {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, pricing.ErrBelowMinimumAmount)
	}

	now := s.now()
	order := &entity.Order{
		ID:            uuid.NewString(),
		OrderNumber:   newOrderNumber(now),
		Kind:          entity.OrderKindPurchase,
		ProductID:     &product.ID,
		TargetID:      targetID,
		TargetServer:  normalizeOptionalString(targetServer),
		ProductName:   product.Name,
		ProductSKU:    product.SKU,
		Quantity:      quantity,
		UnitPrice:     product.Price,
		Discount:      product.Discount,
		AdminFee:      adminFee,
		TotalPrice:    total,
		Status:        entity.OrderStatusPending,
		PaymentStatus: entity.PaymentStatusUnpaid,
		PaymentMethod: method,
		IPAddress:     normalizeOptionalString(in.IPAddress),
		UserAgent:     normalizeOptionalString(in.UserAgent),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if in.Actor != nil {
		actorID := in.Actor.ID
		order.UserID = &actorID
	}

	if method == entity.PaymentMethodBalance {
		return s.createBalanceOrder(ctx, order, in.Actor)
	}

	email := strings.TrimSpace(in.Email)
	if email == "" && in.Actor != nil {
		email = in.Actor.Email
	}
	items := []gateway.Item{{Name: product.Name, Quantity: quantity, Price: product.Price}}
	return s.createInvoicedOrder(ctx, order, email, items)
}

func (s *OrderService) createBalanceOrder(ctx context.Context, order *entity.Order, actor *auth.Actor) (*entity.Order, error) {
	if actor == nil {
		return nil, ErrAuthenticationRequired
	}

	account, err := s.accounts.FindByID(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, ErrAccountNotFound
	}
	if account.Balance.LessThan(order.TotalPrice) {
		return nil, ErrInsufficientBalance
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		locked, err := s.accounts.FindByIDForUpdate(ctx, actor.ID)
		if err != nil {
			return err
		}
		if locked == nil {
			return ErrAccountNotFound
		}
		if locked.Balance.LessThan(order.TotalPrice) {
			return ErrInsufficientBalance
		}

		if err := s.orders.Create(ctx, order); err != nil {
			return err
		}

		description := fmt.Sprintf("Purchase %s (%s)", order.ProductName, order.OrderNumber)
		if _, err := s.moveBalance(ctx, locked, order, entity.BalanceTransactionPurchase, order.TotalPrice.Neg(), description); err != nil {
			return err
		}

		return s.applyTransition(ctx, order, entity.TransitionPayWithBalance, entity.OrderEventSourceAPI, func(o *entity.Order) {
			paidAt := o.UpdatedAt
			o.PaidAt = &paidAt
		})
	})
	if err != nil {
		return nil, err
	}

	s.notifier.NotifyOrderCreated(ctx, order, phoneOf(account))

	dispatched, err := s.dispatch(ctx, order.ID, entity.OrderEventSourceAPI)
	if err != nil {
		s.logger.WithError(err).WithField("order_id", order.ID).Error("dispatch after balance payment failed")
		return order, nil
	}
	return dispatched, nil
}

// createInvoicedOrder stores the order as pending/unpaid first and calls the
// gateway with no transaction open.
func (s *OrderService) createInvoicedOrder(ctx context.Context, order *entity.Order, email string, items []gateway.Item) (*entity.Order, error) {
	if err := s.orders.Create(ctx, order); err != nil {
		return nil, err
	}

	userID := ""
	if order.UserID != nil {
		userID = *order.UserID
	}
	result := s.gateway.CreateInvoice(ctx, gateway.InvoiceRequest{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		UserID:      userID,
		Email:       email,
		Amount:      order.TotalPrice,
		Description: invoiceDescription(order),
		Items:       items,
	})

	if !result.Success {
		err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
			locked, err := s.lockOrder(ctx, order.ID)
			if err != nil {
				return err
			}
			*order = *locked
			return s.applyTransition(ctx, order, entity.TransitionInvoiceFailed, entity.OrderEventSourceAPI, func(o *entity.Order) {
				o.Notes = normalizeOptionalString("payment gateway error: " + result.Error)
			})
		})
		if err != nil {
			s.logger.WithError(err).WithField("order_id", order.ID).Error("failed to record invoice failure")
		}
		return nil, fmt.Errorf("%w: %s", ErrPaymentGatewayFailed, result.Error)
	}

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		locked, err := s.lockOrder(ctx, order.ID)
		if err != nil {
			return err
		}
		*order = *locked
		return s.applyTransition(ctx, order, entity.TransitionAwaitPayment, entity.OrderEventSourceAPI, func(o *entity.Order) {
			o.PaymentID = normalizeOptionalString(result.InvoiceID)
			o.PaymentURL = normalizeOptionalString(result.InvoiceURL)
			o.PaymentExpiredAt = result.ExpiryDate
		})
	})
	if err != nil {
		return nil, err
	}

	s.notifier.NotifyOrderCreated(ctx, order, s.phoneFor(ctx, order))
	return order, nil
}

func (s *OrderService) GetOrder(ctx context.Context, id string, actor *auth.Actor) (*entity.Order, error) {
	order, err := s.orders.FindByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return nil, err
	}
	if order == nil || !canView(order, actor) {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

// GetOrderByNumber backs public order tracking. Anonymous callers may track
// any order; a signed-in caller only sees their own unless they are admin.
func (s *OrderService) GetOrderByNumber(ctx context.Context, orderNumber string, actor *auth.Actor) (*entity.Order, error) {
	order, err := s.orders.FindByOrderNumber(ctx, strings.TrimSpace(orderNumber))
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	if actor != nil && !actor.IsAdmin() && order.HasOwner() && !order.OwnedBy(actor.ID) {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

func (s *OrderService) ListUserOrders(ctx context.Context, actor *auth.Actor, status string, page, limit int32) ([]*entity.Order, int64, error) {
	if actor == nil {
		return nil, 0, ErrAuthenticationRequired
	}

	filter := repository.OrderFilter{UserID: actor.ID}
	if status = strings.TrimSpace(status); status != "" {
		if !validOrderStatus(entity.OrderStatus(status)) {
			return nil, 0, fmt.Errorf("%w: unknown status %q", ErrInvalidRequest, status)
		}
		filter.Status = entity.OrderStatus(status)
	}
	filter.Limit, filter.Offset = paginate(page, limit)

	items, err := s.orders.List(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.orders.Count(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (s *OrderService) CancelOrder(ctx context.Context, id string, actor *auth.Actor) (*entity.Order, error) {
	if actor == nil {
		return nil, ErrAuthenticationRequired
	}

	var order *entity.Order
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		locked, err := s.orders.FindByIDForUpdate(ctx, strings.TrimSpace(id))
		if err != nil {
			return err
		}
		if locked == nil || !locked.OwnedBy(actor.ID) {
			return ErrOrderNotFound
		}
		if !entity.CanTransition(locked.Kind, locked.State(), entity.TransitionCancel) {
			if locked.PaymentStatus == entity.PaymentStatusPaid {
				return fmt.Errorf("%w: paid orders cannot be cancelled", ErrInvalidStatus)
			}
			return fmt.Errorf("%w: order is %s", ErrInvalidStatus, locked.State())
		}

		order = locked
		return s.applyTransition(ctx, order, entity.TransitionCancel, entity.OrderEventSourceAPI, nil)
	})
	if err != nil {
		return nil, err
	}

	if order.PaymentID != nil {
		if result := s.gateway.ExpireInvoice(ctx, *order.PaymentID); !result.Success {
			s.logger.WithFields(logrus.Fields{
				"order_id":   order.ID,
				"invoice_id": *order.PaymentID,
				"error":      result.Error,
			}).Warn("failed to expire invoice of cancelled order")
		}
	}

	return order, nil
}

// applyTransition moves a locked order through t, persists it and appends
// the audit event. mutate runs after the state change and before the write.
func (s *OrderService) applyTransition(ctx context.Context, order *entity.Order, t entity.Transition, source string, mutate func(*entity.Order)) error {
	from := order.State()
	to, err := entity.NextState(order.Kind, from, t)
	if err != nil {
		return err
	}

	order.Status = to.Status
	order.PaymentStatus = to.PaymentStatus
	order.UpdatedAt = s.now()
	if mutate != nil {
		mutate(order)
	}

	if err := s.orders.Update(ctx, order); err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return ErrOrderNotFound
		}
		return err
	}

	oldStatus := from.Status
	oldPaymentStatus := from.PaymentStatus
	if err := s.events.Create(ctx, &entity.OrderEvent{
		OrderID:          order.ID,
		EventType:        string(t),
		OldStatus:        &oldStatus,
		NewStatus:        order.Status,
		OldPaymentStatus: &oldPaymentStatus,
		NewPaymentStatus: order.PaymentStatus,
		Source:           source,
		CreatedAt:        order.UpdatedAt,
	}); err != nil {
		return err
	}

	metrics.RecordTransition(string(t))
	return nil
}

// moveBalance applies a signed amount to a locked account and appends the
// matching ledger entry. order is nil for adjustments that belong to no order.
func (s *OrderService) moveBalance(
	ctx context.Context,
	account *entity.Account,
	order *entity.Order,
	typ entity.BalanceTransactionType,
	amount decimal.Decimal,
	description string,
) (*entity.BalanceTransaction, error) {
	now := s.now()
	before := account.Balance
	after := before.Add(amount)
	if after.IsNegative() {
		return nil, ErrInsufficientBalance
	}

	if err := s.accounts.UpdateBalance(ctx, account.ID, after, now); err != nil {
		if errors.Is(err, repository.ErrNegativeBalance) {
			return nil, ErrInsufficientBalance
		}
		if errors.Is(err, repository.ErrAccountNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	account.Balance = after
	account.UpdatedAt = now

	var orderID *string
	if order != nil {
		id := order.ID
		orderID = &id
	}
	txn := &entity.BalanceTransaction{
		UserID:        account.ID,
		OrderID:       orderID,
		Type:          typ,
		Amount:        amount,
		BalanceBefore: before,
		BalanceAfter:  after,
		Description:   description,
		CreatedAt:     now,
	}
	if err := s.balances.Create(ctx, txn); err != nil {
		return nil, err
	}
	return txn, nil
}

func (s *OrderService) lockOrder(ctx context.Context, id string) (*entity.Order, error) {
	order, err := s.orders.FindByIDForUpdate(ctx, id)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

func (s *OrderService) reload(ctx context.Context, order *entity.Order) *entity.Order {
	fresh, err := s.orders.FindByID(ctx, order.ID)
	if err != nil || fresh == nil {
		return order
	}
	return fresh
}

// phoneFor resolves the contact number of the order owner. Guests and
// lookup failures yield an empty phone, which notifiers skip.
func (s *OrderService) phoneFor(ctx context.Context, order *entity.Order) string {
	if !order.HasOwner() {
		return ""
	}
	account, err := s.accounts.FindByID(ctx, *order.UserID)
	if err != nil {
		s.logger.WithError(err).WithField("user_id", *order.UserID).Warn("failed to resolve notification phone")
		return ""
	}
	return phoneOf(account)
}

func (s *OrderService) batchSize() int32 {
	if s.cfg.JobBatchSize > 0 {
		return s.cfg.JobBatchSize
	}
	return defaultBatchSize
}

func canView(order *entity.Order, actor *auth.Actor) bool {
	if actor.IsAdmin() || !order.HasOwner() {
		return true
	}
	return actor != nil && order.OwnedBy(actor.ID)
}

func newOrderNumber(now time.Time) string {
	return "ORD-" + now.Format("20060102") + "-" + ulid.Make().String()
}

func invoiceDescription(order *entity.Order) string {
	if order.Kind == entity.OrderKindTopup {
		return "Top up saldo " + order.OrderNumber
	}
	target := order.TargetID
	if order.TargetServer != nil {
		target += " (" + *order.TargetServer + ")"
	}
	return fmt.Sprintf("%s untuk %s", order.ProductName, target)
}

func validOrderStatus(status entity.OrderStatus) bool {
	switch status {
	case entity.OrderStatusPending, entity.OrderStatusProcessing, entity.OrderStatusSuccess,
		entity.OrderStatusFailed, entity.OrderStatusCancelled, entity.OrderStatusRefunded:
		return true
	default:
		return false
	}
}

func paginate(page, limit int32) (int32, int32) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	return limit, (page - 1) * limit
}

func phoneOf(account *entity.Account) string {
	if account == nil || account.Phone == nil {
		return ""
	}
	return *account.Phone
}

func normalizeOptionalString(v string) *string {
	trimmed := strings.TrimSpace(v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func keepFirstErr(current, candidate error) error {
	if current != nil {
		return current
	}
	return candidate
}
