package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/vibast-solutions/ms-go-orders/app/entity"
)

type BalanceTransactionFilter struct {
	UserID string
	Type   entity.BalanceTransactionType
	Limit  int32
	Offset int32
}

type BalanceTransactionRepository struct {
	db DBTX
}

func NewBalanceTransactionRepository(db DBTX) *BalanceTransactionRepository {
	return &BalanceTransactionRepository{db: db}
}

func (r *BalanceTransactionRepository) Create(ctx context.Context, txn *entity.BalanceTransaction) error {
	query := `
		INSERT INTO balance_transactions (
			user_id, order_id, type, amount, balance_before, balance_after, description, created_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := conn(ctx, r.db).ExecContext(ctx, query,
		txn.UserID,
		nullableStringValue(txn.OrderID),
		txn.Type,
		txn.Amount,
		txn.BalanceBefore,
		txn.BalanceAfter,
		txn.Description,
		txn.CreatedAt,
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	txn.ID = uint64(id)

	return nil
}

func (r *BalanceTransactionRepository) List(ctx context.Context, filter BalanceTransactionFilter) ([]*entity.BalanceTransaction, error) {
	where, args := balanceTransactionFilterClause(filter)
	query := `
		SELECT id, user_id, order_id, type, amount, balance_before, balance_after, description, created_at
		FROM balance_transactions` + where + `
		ORDER BY id DESC LIMIT ? OFFSET ?`
	args = append(args, filter.Limit, filter.Offset)

	rows, err := conn(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]*entity.BalanceTransaction, 0)
	for rows.Next() {
		item := &entity.BalanceTransaction{}
		var orderID sql.NullString
		if err := rows.Scan(
			&item.ID,
			&item.UserID,
			&orderID,
			&item.Type,
			&item.Amount,
			&item.BalanceBefore,
			&item.BalanceAfter,
			&item.Description,
			&item.CreatedAt,
		); err != nil {
			return nil, err
		}
		item.OrderID = stringPtrFromNull(orderID)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return items, nil
}

func (r *BalanceTransactionRepository) Count(ctx context.Context, filter BalanceTransactionFilter) (int64, error) {
	where, args := balanceTransactionFilterClause(filter)

	var total int64
	if err := conn(ctx, r.db).QueryRowContext(ctx, `SELECT COUNT(*) FROM balance_transactions`+where, args...).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

func balanceTransactionFilterClause(filter BalanceTransactionFilter) (string, []interface{}) {
	conditions := make([]string, 0, 2)
	args := make([]interface{}, 0, 4)

	if strings.TrimSpace(filter.UserID) != "" {
		conditions = append(conditions, "user_id = ?")
		args = append(args, filter.UserID)
	}
	if filter.Type != "" {
		conditions = append(conditions, "type = ?")
		args = append(args, filter.Type)
	}

	if len(conditions) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}
