package cmd

import (
	"database/sql"

	_ "github.com/go-sql-driver/mysql"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-orders/app/fulfillment"
	"github.com/vibast-solutions/ms-go-orders/app/gateway"
	"github.com/vibast-solutions/ms-go-orders/app/notification"
	"github.com/vibast-solutions/ms-go-orders/app/pricing"
	"github.com/vibast-solutions/ms-go-orders/app/repository"
	"github.com/vibast-solutions/ms-go-orders/app/service"
	"github.com/vibast-solutions/ms-go-orders/config"
)

func mustLoadConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	if err := configureLogging(cfg); err != nil {
		logrus.WithError(err).Fatal("Failed to configure logging")
	}
	return cfg
}

func mustOpenDB(cfg *config.Config) *sql.DB {
	db, err := sql.Open("mysql", cfg.MySQL.DSN)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to connect to database")
	}

	db.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MySQL.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.MySQL.ConnMaxLifetime)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		logrus.WithError(err).Fatal("Failed to ping database")
	}
	return db
}

func newProvider(cfg *config.Config) *fulfillment.VIPReseller {
	return fulfillment.NewVIPReseller(fulfillment.VIPResellerConfig{
		BaseURL:                   cfg.VIPReseller.BaseURL,
		APIID:                     cfg.VIPReseller.APIID,
		APIKey:                    cfg.VIPReseller.APIKey,
		CallbackSecret:            cfg.VIPReseller.CallbackSecret,
		SignatureToleranceSeconds: cfg.VIPReseller.SignatureToleranceSeconds,
		HTTPTimeout:               cfg.VIPReseller.HTTPTimeout,
		RetryAttempts:             cfg.VIPReseller.RetryAttempts,
		RetryBaseDelay:            cfg.VIPReseller.RetryBaseDelay,
	})
}

func newNotifier(cfg *config.Config) (notification.Notifier, func()) {
	var notifiers notification.Multi
	var closers []func()

	if cfg.Notifications.WhatsAppAPIURL != "" {
		whatsApp := notification.NewWhatsAppNotifier(notification.WhatsAppConfig{
			APIURL:     cfg.Notifications.WhatsAppAPIURL,
			APIKey:     cfg.Notifications.WhatsAppAPIKey,
			AdminPhone: cfg.Notifications.AdminPhone,
			Workers:    cfg.Notifications.Workers,
			QueueSize:  cfg.Notifications.QueueSize,
		})
		whatsApp.Start()
		notifiers = append(notifiers, whatsApp)
		closers = append(closers, whatsApp.Close)
	}

	if len(cfg.Notifications.KafkaBrokers) > 0 && cfg.Notifications.KafkaTopic != "" {
		kafkaNotifier := notification.NewKafkaNotifier(cfg.Notifications.KafkaBrokers, cfg.Notifications.KafkaTopic, cfg.App.ServiceName)
		notifiers = append(notifiers, kafkaNotifier)
		closers = append(closers, func() {
			if err := kafkaNotifier.Close(); err != nil {
				logrus.WithError(err).Warn("Failed to close kafka writer")
			}
		})
	}

	return notifiers, func() {
		for _, closeFn := range closers {
			closeFn()
		}
	}
}

func mustCreateOrderService() (*config.Config, *service.OrderService, func()) {
	cfg := mustLoadConfig()
	db := mustOpenDB(cfg)

	repos := service.Repositories{
		Orders:              repository.NewOrderRepository(db),
		Accounts:            repository.NewAccountRepository(db),
		BalanceTransactions: repository.NewBalanceTransactionRepository(db),
		Products:            repository.NewProductRepository(db),
		OrderEvents:         repository.NewOrderEventRepository(db),
		WebhookCallbacks:    repository.NewWebhookCallbackRepository(db),
	}

	xendit := gateway.NewXenditGateway(gateway.XenditConfig{
		BaseURL:            cfg.Xendit.BaseURL,
		SecretKey:          cfg.Xendit.SecretKey,
		CallbackToken:      cfg.Xendit.CallbackToken,
		SuccessRedirectURL: cfg.Xendit.SuccessRedirectURL,
		FailureRedirectURL: cfg.Xendit.FailureRedirectURL,
		InvoiceDuration:    cfg.Xendit.InvoiceDuration,
		HTTPTimeout:        cfg.Xendit.HTTPTimeout,
	})

	notifier, closeNotifier := newNotifier(cfg)

	orderService := service.NewOrderService(
		repository.NewTxManager(db),
		repos,
		xendit,
		newProvider(cfg),
		notifier,
		pricing.NewMethods(cfg.Orders.AdminFees, cfg.Orders.MinimumAmounts),
		pricing.DefaultRules(cfg.Orders.StrictTargetValidation),
		cfg.Orders,
	)

	cleanup := func() {
		closeNotifier()
		if err := db.Close(); err != nil {
			logrus.WithError(err).Warn("Failed to close database")
		}
	}

	return cfg, orderService, cleanup
}
