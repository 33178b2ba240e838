package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vibast-solutions/ms-go-orders/app/entity"
)

var (
	ErrAccountNotFound = errors.New("account not found")
	ErrNegativeBalance = errors.New("balance cannot go negative")
)

const accountColumns = `id, email, phone, role, balance, created_at, updated_at`

type AccountRepository struct {
	db DBTX
}

func NewAccountRepository(db DBTX) *AccountRepository {
	return &AccountRepository{db: db}
}

func (r *AccountRepository) FindByID(ctx context.Context, id string) (*entity.Account, error) {
	return r.findOne(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id)
}

// FindByIDForUpdate locks the balance row for the surrounding transaction.
func (r *AccountRepository) FindByIDForUpdate(ctx context.Context, id string) (*entity.Account, error) {
	return r.findOne(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = ? FOR UPDATE`, id)
}

func (r *AccountRepository) UpdateBalance(ctx context.Context, id string, balance decimal.Decimal, now time.Time) error {
	if balance.IsNegative() {
		return ErrNegativeBalance
	}

	result, err := conn(ctx, r.db).ExecContext(ctx,
		`UPDATE accounts SET balance = ?, updated_at = ? WHERE id = ?`,
		balance, now, id,
	)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (r *AccountRepository) findOne(ctx context.Context, query string, args ...interface{}) (*entity.Account, error) {
	account := &entity.Account{}
	var phone sql.NullString

	err := conn(ctx, r.db).QueryRowContext(ctx, query, args...).Scan(
		&account.ID,
		&account.Email,
		&phone,
		&account.Role,
		&account.Balance,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	account.Phone = stringPtrFromNull(phone)
	return account, nil
}
