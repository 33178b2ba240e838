package controller

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-orders/app/factory"
	"github.com/vibast-solutions/ms-go-orders/app/service"
	"github.com/vibast-solutions/ms-go-orders/app/types"
)

type webhookService interface {
	HandleGatewayWebhook(ctx context.Context, token string, payload []byte) error
	HandleProviderWebhook(ctx context.Context, signature string, payload []byte) error
}

// WebhookController acknowledges every authenticated callback so the sender
// stops retrying; processing problems are recorded by the service.
type WebhookController struct {
	webhookService webhookService
	logger         logrus.FieldLogger
}

func NewWebhookController(webhookService webhookService) *WebhookController {
	return &WebhookController{
		webhookService: webhookService,
		logger:         factory.NewModuleLogger("webhooks-controller"),
	}
}

func (c *WebhookController) Gateway(ctx echo.Context) error {
	req, err := types.NewGatewayWebhookRequestFromContext(ctx)
	if err != nil {
		return writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return writeError(ctx, http.StatusBadRequest, err.Error())
	}

	return c.ack(ctx, "Gateway webhook", c.webhookService.HandleGatewayWebhook(ctx.Request().Context(), req.Credential, req.Payload))
}

func (c *WebhookController) Provider(ctx echo.Context) error {
	req, err := types.NewProviderWebhookRequestFromContext(ctx)
	if err != nil {
		return writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return writeError(ctx, http.StatusBadRequest, err.Error())
	}

	return c.ack(ctx, "Provider webhook", c.webhookService.HandleProviderWebhook(ctx.Request().Context(), req.Credential, req.Payload))
}

func (c *WebhookController) ack(ctx echo.Context, action string, err error) error {
	if errors.Is(err, service.ErrWebhookUnauthorized) {
		return writeError(ctx, http.StatusUnauthorized, "unauthorized")
	}
	if err != nil {
		c.logger.WithError(err).Error(action + " failed")
	}
	return ctx.JSON(http.StatusOK, &types.WebhookAckResponse{Received: true})
}
