package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/vibast-solutions/ms-go-orders/app/entity"
)

var (
	ErrOrderNotFound      = errors.New("order not found")
	ErrOrderAlreadyExists = errors.New("order already exists")
)

type OrderFilter struct {
	UserID string
	Status entity.OrderStatus
	Kind   entity.OrderKind
	Limit  int32
	Offset int32
}

const orderColumns = `
	id, order_number, kind, user_id, product_id, target_id, target_server,
	product_name, product_sku, quantity, unit_price, discount, admin_fee, total_price,
	status, payment_status, payment_method,
	provider_trx_id, provider_status, provider_sn, provider_message,
	payment_id, payment_url, payment_expired_at, paid_at,
	notes, ip_address, user_agent, created_at, updated_at, completed_at
`

type OrderRepository struct {
	db DBTX
}

func NewOrderRepository(db DBTX) *OrderRepository {
	return &OrderRepository{db: db}
}

func (r *OrderRepository) Create(ctx context.Context, order *entity.Order) error {
	query := `
		INSERT INTO orders (` + orderColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := conn(ctx, r.db).ExecContext(ctx, query,
		order.ID,
		order.OrderNumber,
		order.Kind,
		nullableStringValue(order.UserID),
		nullableStringValue(order.ProductID),
		order.TargetID,
		nullableStringValue(order.TargetServer),
		order.ProductName,
		nullableStringValue(order.ProductSKU),
		order.Quantity,
		order.UnitPrice,
		order.Discount,
		order.AdminFee,
		order.TotalPrice,
		order.Status,
		order.PaymentStatus,
		order.PaymentMethod,
		nullableStringValue(order.ProviderTrxID),
		nullableStringValue(order.ProviderStatus),
		nullableStringValue(order.ProviderSN),
		nullableStringValue(order.ProviderMessage),
		nullableStringValue(order.PaymentID),
		nullableStringValue(order.PaymentURL),
		nullableTimeValue(order.PaymentExpiredAt),
		nullableTimeValue(order.PaidAt),
		nullableStringValue(order.Notes),
		nullableStringValue(order.IPAddress),
		nullableStringValue(order.UserAgent),
		order.CreatedAt,
		order.UpdatedAt,
		nullableTimeValue(order.CompletedAt),
	)
	if err != nil {
		if isDuplicateEntryError(err) {
			return ErrOrderAlreadyExists
		}
		return err
	}

	return nil
}

// Update writes the mutable part of an order. The pricing snapshot is frozen
// at creation and never rewritten.
func (r *OrderRepository) Update(ctx context.Context, order *entity.Order) error {
	query := `
		UPDATE orders SET
			status = ?,
			payment_status = ?,
			provider_trx_id = ?,
			provider_status = ?,
			provider_sn = ?,
			provider_message = ?,
			payment_id = ?,
			payment_url = ?,
			payment_expired_at = ?,
			paid_at = ?,
			notes = ?,
			updated_at = ?,
			completed_at = ?
		WHERE id = ?
	`

	result, err := conn(ctx, r.db).ExecContext(ctx, query,
		order.Status,
		order.PaymentStatus,
		nullableStringValue(order.ProviderTrxID),
		nullableStringValue(order.ProviderStatus),
		nullableStringValue(order.ProviderSN),
		nullableStringValue(order.ProviderMessage),
		nullableStringValue(order.PaymentID),
		nullableStringValue(order.PaymentURL),
		nullableTimeValue(order.PaymentExpiredAt),
		nullableTimeValue(order.PaidAt),
		nullableStringValue(order.Notes),
		order.UpdatedAt,
		nullableTimeValue(order.CompletedAt),
		order.ID,
	)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrOrderNotFound
	}

	return nil
}

func (r *OrderRepository) FindByID(ctx context.Context, id string) (*entity.Order, error) {
	return r.findOne(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = ?`, id)
}

// FindByIDForUpdate locks the order row until the surrounding transaction ends.
func (r *OrderRepository) FindByIDForUpdate(ctx context.Context, id string) (*entity.Order, error) {
	return r.findOne(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = ? FOR UPDATE`, id)
}

func (r *OrderRepository) FindByOrderNumber(ctx context.Context, orderNumber string) (*entity.Order, error) {
	return r.findOne(ctx, `SELECT `+orderColumns+` FROM orders WHERE order_number = ? LIMIT 1`, orderNumber)
}

func (r *OrderRepository) FindByPaymentIDForUpdate(ctx context.Context, paymentID string) (*entity.Order, error) {
	return r.findOne(ctx, `SELECT `+orderColumns+` FROM orders WHERE payment_id = ? LIMIT 1 FOR UPDATE`, paymentID)
}

func (r *OrderRepository) FindByProviderTrxIDForUpdate(ctx context.Context, trxID string) (*entity.Order, error) {
	return r.findOne(ctx, `SELECT `+orderColumns+` FROM orders WHERE provider_trx_id = ? LIMIT 1 FOR UPDATE`, trxID)
}

func (r *OrderRepository) List(ctx context.Context, filter OrderFilter) ([]*entity.Order, error) {
	where, args := orderFilterClause(filter)
	query := `SELECT ` + orderColumns + ` FROM orders` + where + ` ORDER BY created_at DESC LIMIT ? OFFSET ?`
	args = append(args, filter.Limit, filter.Offset)
	return r.findMany(ctx, query, args...)
}

func (r *OrderRepository) Count(ctx context.Context, filter OrderFilter) (int64, error) {
	where, args := orderFilterClause(filter)

	var total int64
	if err := conn(ctx, r.db).QueryRowContext(ctx, `SELECT COUNT(*) FROM orders`+where, args...).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

// ListAwaitingPayment returns orders holding an open invoice that has not
// been touched since before.
func (r *OrderRepository) ListAwaitingPayment(ctx context.Context, before time.Time, limit int32) ([]*entity.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders
		WHERE payment_status = ?
		  AND payment_id IS NOT NULL
		  AND updated_at <= ?
		ORDER BY updated_at ASC
		LIMIT ?`
	return r.findMany(ctx, query, entity.PaymentStatusPending, before, limit)
}

func (r *OrderRepository) ListPaymentOverdue(ctx context.Context, now time.Time, limit int32) ([]*entity.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders
		WHERE payment_status = ?
		  AND payment_expired_at IS NOT NULL
		  AND payment_expired_at <= ?
		ORDER BY payment_expired_at ASC
		LIMIT ?`
	return r.findMany(ctx, query, entity.PaymentStatusPending, now, limit)
}

func (r *OrderRepository) ListStaleProcessing(ctx context.Context, before time.Time, limit int32) ([]*entity.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders
		WHERE status = ?
		  AND provider_trx_id IS NOT NULL
		  AND updated_at <= ?
		ORDER BY updated_at ASC
		LIMIT ?`
	return r.findMany(ctx, query, entity.OrderStatusProcessing, before, limit)
}

// ListOrphanedProcessing returns orders claimed for dispatch that never
// recorded a provider transaction id.
func (r *OrderRepository) ListOrphanedProcessing(ctx context.Context, before time.Time, limit int32) ([]*entity.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders
		WHERE status = ?
		  AND payment_status = ?
		  AND provider_trx_id IS NULL
		  AND updated_at <= ?
		ORDER BY updated_at ASC
		LIMIT ?`
	return r.findMany(ctx, query, entity.OrderStatusProcessing, entity.PaymentStatusPaid, before, limit)
}

func (r *OrderRepository) ListPaidUndispatched(ctx context.Context, before time.Time, limit int32) ([]*entity.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders
		WHERE status = ?
		  AND payment_status = ?
		  AND kind = ?
		  AND updated_at <= ?
		ORDER BY updated_at ASC
		LIMIT ?`
	return r.findMany(ctx, query, entity.OrderStatusPending, entity.PaymentStatusPaid, entity.OrderKindPurchase, before, limit)
}

func (r *OrderRepository) findOne(ctx context.Context, query string, args ...interface{}) (*entity.Order, error) {
	order := &entity.Order{}
	if err := scanOrder(conn(ctx, r.db).QueryRowContext(ctx, query, args...), order); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	return order, nil
}

func (r *OrderRepository) findMany(ctx context.Context, query string, args ...interface{}) ([]*entity.Order, error) {
	rows, err := conn(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := make([]*entity.Order, 0)
	for rows.Next() {
		item := &entity.Order{}
		if err := scanOrder(rows, item); err != nil {
			return nil, err
		}
		orders = append(orders, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return orders, nil
}

func orderFilterClause(filter OrderFilter) (string, []interface{}) {
	conditions := make([]string, 0, 3)
	args := make([]interface{}, 0, 5)

	if strings.TrimSpace(filter.UserID) != "" {
		conditions = append(conditions, "user_id = ?")
		args = append(args, filter.UserID)
	}
	if filter.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, filter.Status)
	}
	if filter.Kind != "" {
		conditions = append(conditions, "kind = ?")
		args = append(args, filter.Kind)
	}

	if len(conditions) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

func scanOrder(scan rowScanner, order *entity.Order) error {
	var userID, productID, targetServer, productSKU sql.NullString
	var providerTrxID, providerStatus, providerSN, providerMessage sql.NullString
	var paymentID, paymentURL sql.NullString
	var paymentExpiredAt, paidAt, completedAt sql.NullTime
	var notes, ipAddress, userAgent sql.NullString

	err := scan.Scan(
		&order.ID,
		&order.OrderNumber,
		&order.Kind,
		&userID,
		&productID,
		&order.TargetID,
		&targetServer,
		&order.ProductName,
		&productSKU,
		&order.Quantity,
		&order.UnitPrice,
		&order.Discount,
		&order.AdminFee,
		&order.TotalPrice,
		&order.Status,
		&order.PaymentStatus,
		&order.PaymentMethod,
		&providerTrxID,
		&providerStatus,
		&providerSN,
		&providerMessage,
		&paymentID,
		&paymentURL,
		&paymentExpiredAt,
		&paidAt,
		&notes,
		&ipAddress,
		&userAgent,
		&order.CreatedAt,
		&order.UpdatedAt,
		&completedAt,
	)
	if err != nil {
		return err
	}

	order.UserID = stringPtrFromNull(userID)
	order.ProductID = stringPtrFromNull(productID)
	order.TargetServer = stringPtrFromNull(targetServer)
	order.ProductSKU = stringPtrFromNull(productSKU)
	order.ProviderTrxID = stringPtrFromNull(providerTrxID)
	order.ProviderStatus = stringPtrFromNull(providerStatus)
	order.ProviderSN = stringPtrFromNull(providerSN)
	order.ProviderMessage = stringPtrFromNull(providerMessage)
	order.PaymentID = stringPtrFromNull(paymentID)
	order.PaymentURL = stringPtrFromNull(paymentURL)
	order.PaymentExpiredAt = timePtrFromNull(paymentExpiredAt)
	order.PaidAt = timePtrFromNull(paidAt)
	order.Notes = stringPtrFromNull(notes)
	order.IPAddress = stringPtrFromNull(ipAddress)
	order.UserAgent = stringPtrFromNull(userAgent)
	order.CompletedAt = timePtrFromNull(completedAt)

	return nil
}
