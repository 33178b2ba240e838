package metrics

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	gatewayRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gateway_request_duration_seconds",
			Help:    "Payment gateway call duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "outcome"},
	)

	providerRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "provider_request_duration_seconds",
			Help:    "Fulfillment provider call duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "outcome"},
	)

	orderTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "order_transitions_total",
			Help: "Total number of applied order state transitions",
		},
		[]string{"event"},
	)

	webhookCallbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_callbacks_total",
			Help: "Total number of inbound webhooks by source and outcome",
		},
		[]string{"source", "outcome"},
	)

	notificationsSentTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_sent_total",
			Help: "Total number of notifications handed to a channel",
		},
		[]string{"channel", "event_type", "outcome"},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal)
	prometheus.MustRegister(httpRequestDuration)
	prometheus.MustRegister(gatewayRequestDuration)
	prometheus.MustRegister(providerRequestDuration)
	prometheus.MustRegister(orderTransitionsTotal)
	prometheus.MustRegister(webhookCallbacksTotal)
	prometheus.MustRegister(notificationsSentTotal)
}

func Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			route := c.Path()
			if route == "" {
				route = c.Request().URL.Path
			}
			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}

			httpRequestsTotal.WithLabelValues(c.Request().Method, route, strconv.Itoa(status)).Inc()
			httpRequestDuration.WithLabelValues(c.Request().Method, route).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

func Handler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.Handler())
}

func Outcome(ok bool) string {
	if ok {
		return OutcomeSuccess
	}
	return OutcomeError
}

func ObserveGatewayRequest(operation string, start time.Time, ok bool) {
	gatewayRequestDuration.WithLabelValues(operation, Outcome(ok)).Observe(time.Since(start).Seconds())
}

func ObserveProviderRequest(operation string, start time.Time, ok bool) {
	providerRequestDuration.WithLabelValues(operation, Outcome(ok)).Observe(time.Since(start).Seconds())
}

func RecordTransition(event string) {
	orderTransitionsTotal.WithLabelValues(event).Inc()
}

func RecordWebhook(source, outcome string) {
	webhookCallbacksTotal.WithLabelValues(source, outcome).Inc()
}

func RecordNotification(channel, eventType string, ok bool) {
	notificationsSentTotal.WithLabelValues(channel, eventType, Outcome(ok)).Inc()
}
