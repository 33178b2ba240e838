package controller

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-orders/app/service"
	"github.com/vibast-solutions/ms-go-orders/app/types"
)

func writeError(ctx echo.Context, statusCode int, message string) error {
	return ctx.JSON(statusCode, &types.ErrorResponse{Error: message})
}

// writeServiceError maps service sentinels to HTTP status codes. Unknown
// errors are logged and reported as 500 without details.
func writeServiceError(ctx echo.Context, logger logrus.FieldLogger, action string, err error) error {
	switch {
	case errors.Is(err, service.ErrInvalidRequest), errors.Is(err, service.ErrInsufficientBalance):
		return writeError(ctx, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrAuthenticationRequired):
		return writeError(ctx, http.StatusUnauthorized, "authentication required")
	case errors.Is(err, service.ErrForbidden):
		return writeError(ctx, http.StatusForbidden, "forbidden")
	case errors.Is(err, service.ErrOrderNotFound):
		return writeError(ctx, http.StatusNotFound, "order not found")
	case errors.Is(err, service.ErrProductNotFound):
		return writeError(ctx, http.StatusNotFound, "product not found")
	case errors.Is(err, service.ErrAccountNotFound):
		return writeError(ctx, http.StatusNotFound, "account not found")
	case errors.Is(err, service.ErrInvalidStatus), errors.Is(err, service.ErrGuestRefundUnsupported):
		return writeError(ctx, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrPaymentGatewayFailed):
		return writeError(ctx, http.StatusBadGateway, "payment gateway unavailable")
	default:
		logger.WithError(err).Error(action + " failed")
		return writeError(ctx, http.StatusInternalServerError, "internal server error")
	}
}
