package repository

import (
	"context"
	"database/sql"

	"github.com/vibast-solutions/ms-go-orders/app/entity"
)

type ProductRepository struct {
	db DBTX
}

func NewProductRepository(db DBTX) *ProductRepository {
	return &ProductRepository{db: db}
}

func (r *ProductRepository) FindActiveByID(ctx context.Context, id string) (*entity.Product, error) {
	query := `
		SELECT id, provider, name, sku, price, discount, is_active, min_qty, max_qty
		FROM products
		WHERE id = ? AND is_active = 1
	`

	product := &entity.Product{}
	var sku sql.NullString
	err := conn(ctx, r.db).QueryRowContext(ctx, query, id).Scan(
		&product.ID,
		&product.Provider,
		&product.Name,
		&sku,
		&product.Price,
		&product.Discount,
		&product.IsActive,
		&product.MinQty,
		&product.MaxQty,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	product.SKU = stringPtrFromNull(sku)
	return product, nil
}
