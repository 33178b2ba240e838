package service

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-orders/app/entity"
	"github.com/vibast-solutions/ms-go-orders/app/fulfillment"
	"github.com/vibast-solutions/ms-go-orders/app/gateway"
	"github.com/vibast-solutions/ms-go-orders/app/metrics"
)

const (
	webhookOutcomeProcessed = "processed"
	webhookOutcomeIgnored   = "ignored"
	webhookOutcomeRejected  = "rejected"
)

// HandleGatewayWebhook verifies and applies an invoice callback. Only an
// invalid token is reported to the caller; every authenticated delivery is
// acknowledged and internal failures are logged.
func (s *OrderService) HandleGatewayWebhook(ctx context.Context, token string, payload []byte) error {
	if !s.gateway.VerifyWebhookToken(strings.TrimSpace(token)) {
		s.recordCallback(ctx, entity.WebhookSourceGateway, "", nil, "", payload, webhookOutcomeRejected, "invalid callback token")
		return ErrWebhookUnauthorized
	}

	event, err := s.gateway.NormalizeCallback(payload)
	if err != nil {
		s.recordCallback(ctx, entity.WebhookSourceGateway, "", nil, "", payload, webhookOutcomeRejected, err.Error())
		return nil
	}

	logger := s.logger.WithFields(logrus.Fields{"invoice_id": event.InvoiceID, "status": event.Status})
	var outcome gatewayOutcome
	switch event.Status {
	case gateway.InvoiceStatusPaid:
		paid := event.PaidAmount
		if paid.IsZero() {
			paid = event.Amount
		}
		outcome, err = s.applyGatewayPaid(ctx, event.InvoiceID, paid, event.PaidAt, entity.OrderEventSourceGateway)
	case gateway.InvoiceStatusExpired:
		outcome, err = s.applyGatewayExpired(ctx, event.InvoiceID, entity.OrderEventSourceGateway)
	default:
		outcome = gatewayNoop
	}

	result, errMsg := webhookOutcomeIgnored, ""
	switch {
	case err != nil:
		logger.WithError(err).Error("failed to apply gateway callback")
		result, errMsg = webhookOutcomeRejected, err.Error()
	case outcome == gatewayApplied:
		result = webhookOutcomeProcessed
	}

	s.recordCallback(ctx, entity.WebhookSourceGateway, event.InvoiceID, normalizeOptionalString(event.OrderID), "", payload, result, errMsg)
	return nil
}

// HandleProviderWebhook verifies the HMAC signature header and applies the
// reported fulfillment status.
func (s *OrderService) HandleProviderWebhook(ctx context.Context, signature string, payload []byte) error {
	signature = strings.TrimSpace(signature)
	if !s.provider.VerifyCallbackSignature(payload, signature) {
		s.recordCallback(ctx, entity.WebhookSourceProvider, "", nil, signature, payload, webhookOutcomeRejected, "invalid callback signature")
		return ErrWebhookUnauthorized
	}

	event, err := s.provider.NormalizeCallback(payload)
	if err != nil {
		s.recordCallback(ctx, entity.WebhookSourceProvider, "", nil, signature, payload, webhookOutcomeRejected, err.Error())
		return nil
	}

	var order *entity.Order
	var outcome entity.Transition
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		order, err = s.orders.FindByProviderTrxIDForUpdate(ctx, event.TrxID)
		if err != nil {
			return err
		}
		if order == nil {
			s.logger.WithField("trx_id", event.TrxID).Warn("provider callback does not match any order")
			return nil
		}
		outcome, err = s.applyProviderStatus(ctx, order, fulfillment.MapStatus(event.Status), event.SN, event.Message, entity.OrderEventSourceProvider)
		return err
	})

	result, errMsg := webhookOutcomeIgnored, ""
	var orderID *string
	if order != nil {
		orderID = &order.ID
	}
	switch {
	case err != nil:
		s.logger.WithError(err).WithField("trx_id", event.TrxID).Error("failed to apply provider callback")
		result, errMsg = webhookOutcomeRejected, err.Error()
	case order != nil:
		result = webhookOutcomeProcessed
		s.afterProviderOutcome(ctx, order, outcome, entity.OrderEventSourceProvider)
	}

	s.recordCallback(ctx, entity.WebhookSourceProvider, event.TrxID, orderID, signature, payload, result, errMsg)
	return nil
}

func (s *OrderService) recordCallback(
	ctx context.Context,
	source string,
	externalRef string,
	orderID *string,
	signature string,
	payload []byte,
	outcome string,
	errMsg string,
) {
	metrics.RecordWebhook(source, outcome)

	status := entity.WebhookCallbackProcessed
	switch outcome {
	case webhookOutcomeIgnored:
		status = entity.WebhookCallbackIgnored
	case webhookOutcomeRejected:
		status = entity.WebhookCallbackRejected
	}

	callback := &entity.WebhookCallback{
		Source:      source,
		ExternalRef: normalizeOptionalString(externalRef),
		OrderID:     orderID,
		Signature:   signature,
		PayloadJSON: string(payload),
		Status:      status,
		Error:       normalizeOptionalString(errMsg),
		CreatedAt:   s.now(),
	}
	if err := s.callbacks.Create(ctx, callback); err != nil {
		s.logger.WithError(err).WithField("source", source).Error("failed to persist webhook callback")
	}
}
