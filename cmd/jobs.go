package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/vibast-solutions/ms-go-orders/app/service"
	"github.com/vibast-solutions/ms-go-orders/config"
)

var (
	workerMode bool
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Reconcile orders against the payment gateway and fulfillment provider",
}

var reconcileInvoicesCmd = &cobra.Command{
	Use:   "invoices",
	Short: "Poll the gateway for invoices whose webhook has not arrived",
	Run: func(_ *cobra.Command, _ []string) {
		runCommand(
			"reconcile_invoices",
			func(cfg *config.Config) time.Duration { return cfg.Jobs.InvoiceReconcileInterval },
			func(s *service.OrderService, ctx context.Context) error {
				return s.RunReconcileInvoicesBatch(ctx)
			},
		)
	},
}

var reconcileFulfillmentCmd = &cobra.Command{
	Use:   "fulfillment",
	Short: "Poll the provider for orders stuck in processing",
	Run: func(_ *cobra.Command, _ []string) {
		runCommand(
			"reconcile_fulfillment",
			func(cfg *config.Config) time.Duration { return cfg.Jobs.FulfillmentReconcileInterval },
			func(s *service.OrderService, ctx context.Context) error {
				return s.RunReconcileFulfillmentBatch(ctx)
			},
		)
	},
}

var expireCmd = &cobra.Command{
	Use:   "expire",
	Short: "Run expiration-related commands",
}

var expirePendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "Cancel orders whose invoice expired without payment",
	Run: func(_ *cobra.Command, _ []string) {
		runCommand(
			"expire_pending",
			func(cfg *config.Config) time.Duration { return cfg.Jobs.ExpirePendingInterval },
			func(s *service.OrderService, ctx context.Context) error {
				return s.RunExpirePendingBatch(ctx)
			},
		)
	},
}

var dispatchCmd = &cobra.Command{
	Use:   "dispatch",
	Short: "Run fulfillment dispatch commands",
}

var dispatchPaidCmd = &cobra.Command{
	Use:   "paid",
	Short: "Submit paid orders that never reached the provider",
	Run: func(_ *cobra.Command, _ []string) {
		runCommand(
			"dispatch_paid",
			func(cfg *config.Config) time.Duration { return cfg.Jobs.DispatchPaidInterval },
			func(s *service.OrderService, ctx context.Context) error {
				return s.RunDispatchPaidBatch(ctx)
			},
		)
	},
}

var dispatchOrphanedCmd = &cobra.Command{
	Use:   "orphaned",
	Short: "Fail and refund orders claimed for dispatch that never got a provider transaction",
	Run: func(_ *cobra.Command, _ []string) {
		runCommand(
			"dispatch_orphaned",
			func(cfg *config.Config) time.Duration { return cfg.Jobs.DispatchOrphanedInterval },
			func(s *service.OrderService, ctx context.Context) error {
				return s.RunRecoverOrphanedDispatchBatch(ctx)
			},
		)
	},
}

func init() {
	rootCmd.AddCommand(reconcileCmd)
	rootCmd.AddCommand(expireCmd)
	rootCmd.AddCommand(dispatchCmd)
	reconcileCmd.AddCommand(reconcileInvoicesCmd)
	reconcileCmd.AddCommand(reconcileFulfillmentCmd)
	expireCmd.AddCommand(expirePendingCmd)
	dispatchCmd.AddCommand(dispatchPaidCmd)
	dispatchCmd.AddCommand(dispatchOrphanedCmd)

	rootCmd.PersistentFlags().BoolVar(&workerMode, "worker", false, "Run continuously using configured interval")
}

func runCommand(
	name string,
	intervalResolver func(cfg *config.Config) time.Duration,
	fn func(s *service.OrderService, ctx context.Context) error,
) {
	cfg, orderService, cleanup := mustCreateOrderService()
	defer cleanup()

	if workerMode {
		runWorker(name, intervalResolver(cfg), orderService, fn)
		return
	}

	ctx := context.Background()
	runJob(name, func() error { return fn(orderService, ctx) })
}

func runWorker(
	name string,
	interval time.Duration,
	orderService *service.OrderService,
	fn func(s *service.OrderService, ctx context.Context) error,
) {
	if interval <= 0 {
		logrus.WithField("job", name).Fatal("invalid worker interval")
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runJob(name, func() error { return fn(orderService, ctx) })

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	for {
		select {
		case <-quit:
			logrus.WithField("job", name).Info("Worker shutdown requested")
			return
		case <-ticker.C:
			runJob(name, func() error { return fn(orderService, ctx) })
		}
	}
}

func runJob(name string, fn func() error) {
	start := time.Now()
	err := fn()
	latency := time.Since(start)
	entry := logrus.WithFields(logrus.Fields{"job": name, "latency": latency.String()})
	if err != nil {
		entry.WithError(err).Error("job_failed")
		return
	}
	entry.Info("job_completed")
}
