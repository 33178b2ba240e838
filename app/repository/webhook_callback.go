package repository

import (
	"context"

	"github.com/vibast-solutions/ms-go-orders/app/entity"
)

type WebhookCallbackRepository struct {
	db DBTX
}

func NewWebhookCallbackRepository(db DBTX) *WebhookCallbackRepository {
	return &WebhookCallbackRepository{db: db}
}

func (r *WebhookCallbackRepository) Create(ctx context.Context, callback *entity.WebhookCallback) error {
	query := `
		INSERT INTO webhook_callbacks (
			source, external_ref, order_id, signature, payload_json, status, error, created_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := conn(ctx, r.db).ExecContext(ctx, query,
		callback.Source,
		nullableStringValue(callback.ExternalRef),
		nullableStringValue(callback.OrderID),
		callback.Signature,
		callback.PayloadJSON,
		callback.Status,
		nullableStringValue(callback.Error),
		callback.CreatedAt,
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	callback.ID = uint64(id)

	return nil
}
