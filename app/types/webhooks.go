package types

import (
	"errors"
	"io"
	"strings"

	"github.com/labstack/echo/v4"
)

const (
	HeaderGatewayCallbackToken = "X-Callback-Token"
	HeaderProviderSignature    = "X-Callback-Signature"

	maxWebhookBodyBytes = 1 << 20
)

// WebhookRequest carries the raw body untouched; signatures are computed
// over the exact bytes received.
type WebhookRequest struct {
	Credential string
	Payload    []byte
}

func NewGatewayWebhookRequestFromContext(ctx echo.Context) (*WebhookRequest, error) {
	return newWebhookRequest(ctx, HeaderGatewayCallbackToken)
}

func NewProviderWebhookRequestFromContext(ctx echo.Context) (*WebhookRequest, error) {
	return newWebhookRequest(ctx, HeaderProviderSignature)
}

func newWebhookRequest(ctx echo.Context, header string) (*WebhookRequest, error) {
	body, err := io.ReadAll(io.LimitReader(ctx.Request().Body, maxWebhookBodyBytes))
	if err != nil {
		return nil, err
	}
	return &WebhookRequest{
		Credential: strings.TrimSpace(ctx.Request().Header.Get(header)),
		Payload:    body,
	}, nil
}

func (r *WebhookRequest) Validate() error {
	if len(r.Payload) == 0 {
		return errors.New("payload is required")
	}
	return nil
}
