package factory

import (
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

const requestIDHeader = "X-Request-ID"

func NewModuleLogger(module string) logrus.FieldLogger {
	return logrus.WithField("module", module)
}

// LoggerWithContext tags the logger with the request id echo saw, falling
// back to the inbound header when the response has not been stamped yet.
func LoggerWithContext(logger logrus.FieldLogger, ctx echo.Context) logrus.FieldLogger {
	if ctx == nil {
		return logger
	}
	requestID := ctx.Response().Header().Get(requestIDHeader)
	if requestID == "" {
		requestID = ctx.Request().Header.Get(requestIDHeader)
	}
	if requestID == "" {
		return logger
	}
	return logger.WithField("request_id", requestID)
}
