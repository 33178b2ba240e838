package cmd

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/vibast-solutions/ms-go-orders/app/auth"
	"github.com/vibast-solutions/ms-go-orders/app/controller"
	ordergrpc "github.com/vibast-solutions/ms-go-orders/app/grpc"
	"github.com/vibast-solutions/ms-go-orders/app/metrics"
	"github.com/vibast-solutions/ms-go-orders/app/ratelimit"
	"github.com/vibast-solutions/ms-go-orders/app/service"
	"github.com/vibast-solutions/ms-go-orders/config"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP and gRPC servers",
	Long:  "Start both HTTP (Echo) and gRPC servers for the orders service.",
	Run:   runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

type limiters struct {
	api     echo.MiddlewareFunc
	order   echo.MiddlewareFunc
	webhook echo.MiddlewareFunc
}

func runServe(_ *cobra.Command, _ []string) {
	cfg, orderService, cleanup := mustCreateOrderService()
	defer cleanup()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer func() {
		if err := redisClient.Close(); err != nil {
			logrus.WithError(err).Warn("Failed to close redis client")
		}
	}()

	e := setupHTTPServer(cfg, orderService, newLimiters(cfg, redisClient))
	grpcSrv, healthSrv, lis := setupGRPCServer(cfg, ordergrpc.NewServer(orderService))

	go func() {
		httpAddr := net.JoinHostPort(cfg.HTTP.Host, cfg.HTTP.Port)
		logrus.WithField("addr", httpAddr).Info("Starting HTTP server")
		if err := e.Start(httpAddr); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Fatal("HTTP server error")
		}
	}()

	go func() {
		logrus.WithField("addr", lis.Addr().String()).Info("Starting gRPC server")
		if err := grpcSrv.Serve(lis); err != nil {
			logrus.WithError(err).Fatal("gRPC server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("Shutting down...")

	healthSrv.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Warn("HTTP shutdown error")
	}
	grpcSrv.GracefulStop()

	logrus.Info("Server stopped")
}

func newLimiters(cfg *config.Config, client *redis.Client) limiters {
	passthrough := func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	if !cfg.RateLimit.Enabled {
		return limiters{api: passthrough, order: passthrough, webhook: passthrough}
	}

	counter := ratelimit.NewRedisCounter(client)
	window := cfg.RateLimit.Window
	return limiters{
		api:     ratelimit.NewLimiter(counter, "api", cfg.RateLimit.APIMax, window, ratelimit.ByIP).Middleware(),
		order:   ratelimit.NewLimiter(counter, "order", cfg.RateLimit.OrderMax, window, ratelimit.ByActorOrIP).Middleware(),
		webhook: ratelimit.NewLimiter(counter, "webhook", cfg.RateLimit.WebhookMax, window, ratelimit.ByIP).Middleware(),
	}
}

func setupHTTPServer(cfg *config.Config, orderService *service.OrderService, limits limiters) *echo.Echo {
	orderController := controller.NewOrderController(orderService)
	paymentController := controller.NewPaymentController(orderService)
	webhookController := controller.NewWebhookController(orderService)
	tokens := auth.NewTokenParser(cfg.Auth.JWTSecret)

	e := echo.New()
	e.HideBanner = true

	e.Use(echomiddleware.RequestIDWithConfig(echomiddleware.RequestIDConfig{Generator: uuid.NewString}))
	e.Use(echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogRemoteIP:  true,
		LogLatency:   true,
		LogUserAgent: true,
		LogError:     true,
		HandleError:  true,
		LogRequestID: true,
		LogValuesFunc: func(_ echo.Context, v echomiddleware.RequestLoggerValues) error {
			fields := logrus.Fields{
				"request_id": v.RequestID,
				"remote_ip":  v.RemoteIP,
				"host":       v.Host,
				"method":     v.Method,
				"uri":        v.URI,
				"status":     v.Status,
				"latency":    v.Latency.String(),
				"latency_ns": v.Latency.Nanoseconds(),
				"user_agent": v.UserAgent,
			}
			entry := logrus.WithFields(fields)
			if v.Error != nil {
				entry = entry.WithError(v.Error)
			}
			entry.Info("http_request")
			return nil
		},
	}))
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())
	e.Use(metrics.Middleware())

	e.GET("/health", orderController.Health)
	e.GET("/metrics", metrics.Handler())

	orders := e.Group("/orders", limits.api, tokens.Optional())
	orders.POST("", orderController.CreateOrder, limits.order)
	orders.GET("/history", orderController.ListOrders, tokens.Require())
	orders.GET("/track/:orderNumber", orderController.TrackOrder)
	orders.GET("/:id", orderController.GetOrder)
	orders.GET("/:id/status", orderController.OrderStatus)
	orders.POST("/:id/cancel", orderController.CancelOrder, tokens.Require())
	orders.POST("/:id/refund", orderController.RefundOrder, tokens.Require(), auth.RequireAdmin())
	orders.POST("/:id/retry", orderController.RetryOrder, tokens.Require(), auth.RequireAdmin())

	payments := e.Group("/payments", limits.api, tokens.Optional())
	payments.GET("/methods", paymentController.Methods)
	payments.GET("/:orderId/status", paymentController.PaymentStatus)
	payments.POST("/topup", paymentController.Topup, tokens.Require())
	payments.GET("/balance", paymentController.Balance, tokens.Require())
	payments.GET("/transactions", paymentController.Transactions, tokens.Require())

	admin := e.Group("/admin", limits.api, tokens.Require(), auth.RequireAdmin())
	admin.POST("/users/:id/balance", paymentController.AdjustBalance)

	webhooks := e.Group("/webhooks", limits.webhook)
	webhooks.POST("/xendit", webhookController.Gateway)
	webhooks.POST("/vipreseller", webhookController.Provider)

	return e
}

func setupGRPCServer(cfg *config.Config, orderServer *ordergrpc.Server) (*grpc.Server, *health.Server, net.Listener) {
	grpcAddr := net.JoinHostPort(cfg.GRPC.Host, cfg.GRPC.Port)
	lis, err := net.Listen("tcp", grpcAddr)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to listen on gRPC port")
	}

	grpcSrv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			ordergrpc.RecoveryInterceptor(),
			ordergrpc.RequestIDInterceptor(),
			ordergrpc.LoggingInterceptor(),
		),
	)
	ordergrpc.RegisterOrderQueryServer(grpcSrv, orderServer)

	healthSrv := health.NewServer()
	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthSrv.SetServingStatus(ordergrpc.OrderQueryServiceDesc.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcSrv, healthSrv)

	return grpcSrv, healthSrv, lis
}
