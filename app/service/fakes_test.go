package service

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vibast-solutions/ms-go-orders/app/entity"
	"github.com/vibast-solutions/ms-go-orders/app/fulfillment"
	"github.com/vibast-solutions/ms-go-orders/app/gateway"
	"github.com/vibast-solutions/ms-go-orders/app/repository"
)

// memStore stands in for the database. WithinTx holds mu for the whole
// transaction, which models row locks as one store-wide lock; repository
// calls made outside a transaction take mu themselves.
type memStore struct {
	mu sync.Mutex

	orders    map[string]*entity.Order
	accounts  map[string]*entity.Account
	products  map[string]*entity.Product
	txns      []*entity.BalanceTransaction
	events    []*entity.OrderEvent
	callbacks []*entity.WebhookCallback

	commits   int
	rollbacks int
}

func newMemStore() *memStore {
	return &memStore{
		orders:   map[string]*entity.Order{},
		accounts: map[string]*entity.Account{},
		products: map[string]*entity.Product{},
	}
}

type memTxKey struct{}

// WithinTx snapshots the store and restores it when fn fails, so tests can
// assert that rejected operations leave nothing behind. Nested calls join
// the outer transaction.
func (m *memStore) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(memTxKey{}) != nil {
		return fn(ctx)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	orders := make(map[string]*entity.Order, len(m.orders))
	for k, v := range m.orders {
		copyItem := *v
		orders[k] = &copyItem
	}
	accounts := make(map[string]*entity.Account, len(m.accounts))
	for k, v := range m.accounts {
		copyItem := *v
		accounts[k] = &copyItem
	}
	txns, events := len(m.txns), len(m.events)

	if err := fn(context.WithValue(ctx, memTxKey{}, true)); err != nil {
		m.orders = orders
		m.accounts = accounts
		m.txns = m.txns[:txns]
		m.events = m.events[:events]
		m.rollbacks++
		return err
	}
	m.commits++
	return nil
}

// guard locks the store for a repository call made outside a transaction.
func (m *memStore) guard(ctx context.Context) func() {
	if ctx.Value(memTxKey{}) != nil {
		return func() {}
	}
	m.mu.Lock()
	return m.mu.Unlock
}

func (m *memStore) order(id string) *entity.Order {
	item, ok := m.orders[id]
	if !ok {
		return nil
	}
	copyItem := *item
	return &copyItem
}

func (m *memStore) eventTypes(orderID string) []string {
	out := make([]string, 0)
	for _, event := range m.events {
		if event.OrderID == orderID {
			out = append(out, event.EventType)
		}
	}
	return out
}

type memOrderRepo struct{ store *memStore }

func (r memOrderRepo) Create(ctx context.Context, order *entity.Order) error {
	defer r.store.guard(ctx)()
	if _, ok := r.store.orders[order.ID]; ok {
		return repository.ErrOrderAlreadyExists
	}
	copyItem := *order
	r.store.orders[order.ID] = &copyItem
	return nil
}

func (r memOrderRepo) Update(ctx context.Context, order *entity.Order) error {
	defer r.store.guard(ctx)()
	if _, ok := r.store.orders[order.ID]; !ok {
		return repository.ErrOrderNotFound
	}
	copyItem := *order
	r.store.orders[order.ID] = &copyItem
	return nil
}

func (r memOrderRepo) FindByID(ctx context.Context, id string) (*entity.Order, error) {
	defer r.store.guard(ctx)()
	return r.store.order(id), nil
}

func (r memOrderRepo) FindByIDForUpdate(ctx context.Context, id string) (*entity.Order, error) {
	return r.FindByID(ctx, id)
}

func (r memOrderRepo) FindByOrderNumber(ctx context.Context, orderNumber string) (*entity.Order, error) {
	defer r.store.guard(ctx)()
	return r.findFirst(func(o *entity.Order) bool { return o.OrderNumber == orderNumber }), nil
}

func (r memOrderRepo) FindByPaymentIDForUpdate(ctx context.Context, paymentID string) (*entity.Order, error) {
	defer r.store.guard(ctx)()
	return r.findFirst(func(o *entity.Order) bool { return o.PaymentID != nil && *o.PaymentID == paymentID }), nil
}

func (r memOrderRepo) FindByProviderTrxIDForUpdate(ctx context.Context, trxID string) (*entity.Order, error) {
	defer r.store.guard(ctx)()
	return r.findFirst(func(o *entity.Order) bool { return o.ProviderTrxID != nil && *o.ProviderTrxID == trxID }), nil
}

func (r memOrderRepo) List(ctx context.Context, filter repository.OrderFilter) ([]*entity.Order, error) {
	defer r.store.guard(ctx)()
	items := r.filter(filter)
	start := int(filter.Offset)
	if start > len(items) {
		return []*entity.Order{}, nil
	}
	end := start + int(filter.Limit)
	if filter.Limit <= 0 || end > len(items) {
		end = len(items)
	}
	return items[start:end], nil
}

func (r memOrderRepo) Count(ctx context.Context, filter repository.OrderFilter) (int64, error) {
	defer r.store.guard(ctx)()
	return int64(len(r.filter(filter))), nil
}

func (r memOrderRepo) ListAwaitingPayment(ctx context.Context, before time.Time, _ int32) ([]*entity.Order, error) {
	defer r.store.guard(ctx)()
	return r.findAll(func(o *entity.Order) bool {
		return o.PaymentStatus == entity.PaymentStatusPending && o.PaymentID != nil && !o.UpdatedAt.After(before)
	}), nil
}

func (r memOrderRepo) ListPaymentOverdue(ctx context.Context, now time.Time, _ int32) ([]*entity.Order, error) {
	defer r.store.guard(ctx)()
	return r.findAll(func(o *entity.Order) bool {
		return o.PaymentStatus == entity.PaymentStatusPending && o.PaymentExpiredAt != nil && !o.PaymentExpiredAt.After(now)
	}), nil
}

func (r memOrderRepo) ListStaleProcessing(ctx context.Context, before time.Time, _ int32) ([]*entity.Order, error) {
	defer r.store.guard(ctx)()
	return r.findAll(func(o *entity.Order) bool {
		return o.Status == entity.OrderStatusProcessing && o.ProviderTrxID != nil && !o.UpdatedAt.After(before)
	}), nil
}

func (r memOrderRepo) ListPaidUndispatched(ctx context.Context, before time.Time, _ int32) ([]*entity.Order, error) {
	defer r.store.guard(ctx)()
	return r.findAll(func(o *entity.Order) bool {
		return o.Status == entity.OrderStatusPending && o.PaymentStatus == entity.PaymentStatusPaid &&
			o.Kind == entity.OrderKindPurchase && !o.UpdatedAt.After(before)
	}), nil
}

func (r memOrderRepo) ListOrphanedProcessing(ctx context.Context, before time.Time, _ int32) ([]*entity.Order, error) {
	defer r.store.guard(ctx)()
	return r.findAll(func(o *entity.Order) bool {
		return o.Status == entity.OrderStatusProcessing && o.PaymentStatus == entity.PaymentStatusPaid &&
			o.ProviderTrxID == nil && !o.UpdatedAt.After(before)
	}), nil
}

func (r memOrderRepo) filter(filter repository.OrderFilter) []*entity.Order {
	return r.findAll(func(o *entity.Order) bool {
		if filter.UserID != "" && !o.OwnedBy(filter.UserID) {
			return false
		}
		if filter.Status != "" && o.Status != filter.Status {
			return false
		}
		if filter.Kind != "" && o.Kind != filter.Kind {
			return false
		}
		return true
	})
}

func (r memOrderRepo) findFirst(match func(*entity.Order) bool) *entity.Order {
	items := r.findAll(match)
	if len(items) == 0 {
		return nil
	}
	return items[0]
}

func (r memOrderRepo) findAll(match func(*entity.Order) bool) []*entity.Order {
	items := make([]*entity.Order, 0)
	for _, item := range r.store.orders {
		if match(item) {
			copyItem := *item
			items = append(items, &copyItem)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].OrderNumber > items[j].OrderNumber })
	return items
}

type memAccountRepo struct{ store *memStore }

func (r memAccountRepo) FindByID(ctx context.Context, id string) (*entity.Account, error) {
	defer r.store.guard(ctx)()
	item, ok := r.store.accounts[id]
	if !ok {
		return nil, nil
	}
	copyItem := *item
	return &copyItem, nil
}

func (r memAccountRepo) FindByIDForUpdate(ctx context.Context, id string) (*entity.Account, error) {
	return r.FindByID(ctx, id)
}

func (r memAccountRepo) UpdateBalance(ctx context.Context, id string, balance decimal.Decimal, now time.Time) error {
	defer r.store.guard(ctx)()
	if balance.IsNegative() {
		return repository.ErrNegativeBalance
	}
	item, ok := r.store.accounts[id]
	if !ok {
		return repository.ErrAccountNotFound
	}
	item.Balance = balance
	item.UpdatedAt = now
	return nil
}

type memBalanceRepo struct{ store *memStore }

func (r memBalanceRepo) Create(ctx context.Context, txn *entity.BalanceTransaction) error {
	defer r.store.guard(ctx)()
	txn.ID = uint64(len(r.store.txns) + 1)
	copyItem := *txn
	r.store.txns = append(r.store.txns, &copyItem)
	return nil
}

func (r memBalanceRepo) List(ctx context.Context, filter repository.BalanceTransactionFilter) ([]*entity.BalanceTransaction, error) {
	defer r.store.guard(ctx)()
	items := make([]*entity.BalanceTransaction, 0)
	for _, txn := range r.store.txns {
		if txn.UserID == filter.UserID && (filter.Type == "" || txn.Type == filter.Type) {
			items = append(items, txn)
		}
	}
	return items, nil
}

func (r memBalanceRepo) Count(ctx context.Context, filter repository.BalanceTransactionFilter) (int64, error) {
	items, _ := r.List(ctx, filter)
	return int64(len(items)), nil
}

type memProductRepo struct{ store *memStore }

func (r memProductRepo) FindActiveByID(ctx context.Context, id string) (*entity.Product, error) {
	defer r.store.guard(ctx)()
	item, ok := r.store.products[id]
	if !ok || !item.IsActive {
		return nil, nil
	}
	copyItem := *item
	return &copyItem, nil
}

type memEventRepo struct{ store *memStore }

func (r memEventRepo) Create(ctx context.Context, event *entity.OrderEvent) error {
	defer r.store.guard(ctx)()
	r.store.events = append(r.store.events, event)
	return nil
}

type memCallbackRepo struct{ store *memStore }

func (r memCallbackRepo) Create(ctx context.Context, callback *entity.WebhookCallback) error {
	defer r.store.guard(ctx)()
	r.store.callbacks = append(r.store.callbacks, callback)
	return nil
}

type fakeGateway struct {
	mu sync.Mutex

	token       string
	createFn    func(req gateway.InvoiceRequest) gateway.InvoiceResult
	getFn       func(invoiceID string) gateway.InvoiceStatusResult
	createCalls int
	expireCalls []string
	lastInvoice gateway.InvoiceRequest
}

func (g *fakeGateway) CreateInvoice(_ context.Context, req gateway.InvoiceRequest) gateway.InvoiceResult {
	g.mu.Lock()
	g.createCalls++
	g.lastInvoice = req
	g.mu.Unlock()
	if g.createFn != nil {
		return g.createFn(req)
	}
	expiry := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	return gateway.InvoiceResult{
		Success:    true,
		InvoiceID:  "inv-" + req.OrderNumber,
		InvoiceURL: "https://checkout.example/" + req.OrderNumber,
		ExpiryDate: &expiry,
	}
}

func (g *fakeGateway) GetInvoice(_ context.Context, invoiceID string) gateway.InvoiceStatusResult {
	if g.getFn != nil {
		return g.getFn(invoiceID)
	}
	return gateway.InvoiceStatusResult{Success: true, Status: gateway.InvoiceStatusPending}
}

func (g *fakeGateway) ExpireInvoice(_ context.Context, invoiceID string) gateway.Result {
	g.mu.Lock()
	g.expireCalls = append(g.expireCalls, invoiceID)
	g.mu.Unlock()
	return gateway.Result{Success: true}
}

func (g *fakeGateway) VerifyWebhookToken(token string) bool {
	return g.token != "" && token == g.token
}

func (g *fakeGateway) NormalizeCallback(payload []byte) (*gateway.CallbackEvent, error) {
	var raw struct {
		ID         string          `json:"id"`
		Status     string          `json:"status"`
		ExternalID string          `json:"external_id"`
		PaidAmount decimal.Decimal `json:"paid_amount"`
	}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, err
	}
	return &gateway.CallbackEvent{InvoiceID: raw.ID, ExternalID: raw.ExternalID, Status: raw.Status, PaidAmount: raw.PaidAmount}, nil
}

type fakeProvider struct {
	mu sync.Mutex

	placeFn    func(req fulfillment.PlaceOrderRequest) fulfillment.PlaceOrderResult
	checkFn    func(trxID string) fulfillment.StatusResult
	placeCalls []fulfillment.PlaceOrderRequest
}

func (p *fakeProvider) PlaceOrder(_ context.Context, req fulfillment.PlaceOrderRequest) fulfillment.PlaceOrderResult {
	p.mu.Lock()
	p.placeCalls = append(p.placeCalls, req)
	p.mu.Unlock()
	if p.placeFn != nil {
		return p.placeFn(req)
	}
	return fulfillment.PlaceOrderResult{Success: true, TrxID: "trx-1", Status: fulfillment.StatusProcessing}
}

func (p *fakeProvider) CheckStatus(_ context.Context, trxID string) fulfillment.StatusResult {
	if p.checkFn != nil {
		return p.checkFn(trxID)
	}
	return fulfillment.StatusResult{Success: true, TrxID: trxID, Status: fulfillment.StatusProcessing}
}

func (p *fakeProvider) Services(context.Context) ([]fulfillment.Service, error) {
	return nil, nil
}

func (p *fakeProvider) Profile(context.Context) (*fulfillment.Profile, error) {
	return &fulfillment.Profile{}, nil
}

func (p *fakeProvider) VerifyCallbackSignature(_ []byte, header string) bool {
	return header == "valid"
}

func (p *fakeProvider) NormalizeCallback(payload []byte) (*fulfillment.CallbackEvent, error) {
	var raw struct {
		TrxID   string `json:"trxid"`
		Status  string `json:"status"`
		SN      string `json:"sn"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, err
	}
	return &fulfillment.CallbackEvent{TrxID: raw.TrxID, Status: raw.Status, SN: raw.SN, Message: raw.Message}, nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []string
}

func (n *recordingNotifier) record(event string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

func (n *recordingNotifier) NotifyOrderCreated(_ context.Context, order *entity.Order, _ string) {
	n.record("created:" + order.ID)
}

func (n *recordingNotifier) NotifyOrderPaid(_ context.Context, order *entity.Order, _ string) {
	n.record("paid:" + order.ID)
}

func (n *recordingNotifier) NotifyOrderSuccess(_ context.Context, order *entity.Order, _ string) {
	n.record("success:" + order.ID)
}

func (n *recordingNotifier) NotifyOrderFailed(_ context.Context, order *entity.Order, _ string) {
	n.record("failed:" + order.ID)
}

func (n *recordingNotifier) NotifyRefund(_ context.Context, order *entity.Order, _ decimal.Decimal, _ string) {
	n.record("refund:" + order.ID)
}

func (n *recordingNotifier) NotifyTopupSuccess(_ context.Context, txn *entity.BalanceTransaction, _ string) {
	n.record("topup:" + txn.UserID)
}

func (n *recordingNotifier) count(prefix string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	total := 0
	for _, event := range n.events {
		if len(event) >= len(prefix) && event[:len(prefix)] == prefix {
			total++
		}
	}
	return total
}
