package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type Config struct {
	App           AppConfig
	HTTP          ServerConfig
	GRPC          ServerConfig
	MySQL         MySQLConfig
	Log           LogConfig
	Auth          AuthConfig
	Redis         RedisConfig
	RateLimit     RateLimitConfig
	Xendit        XenditConfig
	VIPReseller   VIPResellerConfig
	Notifications NotificationsConfig
	Orders        OrdersConfig
	Jobs          JobsConfig
}

type AppConfig struct {
	ServiceName string
}

type ServerConfig struct {
	Host string
	Port string
}

type MySQLConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type LogConfig struct {
	Level  string
	Format string
}

type AuthConfig struct {
	JWTSecret string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type RateLimitConfig struct {
	Enabled    bool
	Window     time.Duration
	APIMax     int
	OrderMax   int
	WebhookMax int
}

type XenditConfig struct {
	BaseURL            string
	SecretKey          string
	CallbackToken      string
	SuccessRedirectURL string
	FailureRedirectURL string
	InvoiceDuration    time.Duration
	HTTPTimeout        time.Duration
}

type VIPResellerConfig struct {
	BaseURL                   string
	APIID                     string
	APIKey                    string
	CallbackSecret            string
	SignatureToleranceSeconds int64
	HTTPTimeout               time.Duration
	RetryAttempts             int
	RetryBaseDelay            time.Duration
}

type NotificationsConfig struct {
	WhatsAppAPIURL string
	WhatsAppAPIKey string
	AdminPhone     string
	Workers        int
	QueueSize      int
	KafkaBrokers   []string
	KafkaTopic     string
}

type FeeSchedule struct {
	Balance        decimal.Decimal
	EWallet        decimal.Decimal
	VirtualAccount decimal.Decimal
	QRIS           decimal.Decimal
	RetailOutlet   decimal.Decimal
}

type OrdersConfig struct {
	AdminFees                 FeeSchedule
	MinimumAmounts            FeeSchedule
	MinTopup                  decimal.Decimal
	MaxTopup                  decimal.Decimal
	StrictTargetValidation    bool
	InvoiceReconcileAfter     time.Duration
	FulfillmentReconcileAfter time.Duration
	DispatchRetryAfter        time.Duration
	OrphanDispatchAfter       time.Duration
	JobBatchSize              int32
}

type JobsConfig struct {
	InvoiceReconcileInterval     time.Duration
	FulfillmentReconcileInterval time.Duration
	ExpirePendingInterval        time.Duration
	DispatchPaidInterval         time.Duration
	DispatchOrphanedInterval     time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	mysqlDSN := os.Getenv("MYSQL_DSN")
	if mysqlDSN == "" {
		return nil, errors.New("MYSQL_DSN environment variable is required")
	}

	return &Config{
		App: AppConfig{
			ServiceName: getEnv("APP_SERVICE_NAME", "orders-service"),
		},
		HTTP: ServerConfig{
			Host: getEnv("HTTP_HOST", "0.0.0.0"),
			Port: getEnv("HTTP_PORT", "8080"),
		},
		GRPC: ServerConfig{
			Host: getEnv("GRPC_HOST", "0.0.0.0"),
			Port: getEnv("GRPC_PORT", "9090"),
		},
		MySQL: MySQLConfig{
			DSN:             mysqlDSN,
			MaxOpenConns:    getIntEnv("MYSQL_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getIntEnv("MYSQL_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getMinutesEnv("MYSQL_CONN_MAX_LIFETIME_MINUTES", 30*time.Minute),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("AUTH_JWT_SECRET", ""),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
		},
		RateLimit: RateLimitConfig{
			Enabled:    getBoolEnv("RATE_LIMIT_ENABLED", true),
			Window:     getSecondsEnv("RATE_LIMIT_WINDOW_SECONDS", time.Minute),
			APIMax:     getIntEnv("RATE_LIMIT_API_MAX", 100),
			OrderMax:   getIntEnv("RATE_LIMIT_ORDER_MAX", 10),
			WebhookMax: getIntEnv("RATE_LIMIT_WEBHOOK_MAX", 100),
		},
		Xendit: XenditConfig{
			BaseURL:            getEnv("XENDIT_BASE_URL", "https://api.xendit.co"),
			SecretKey:          getEnv("XENDIT_SECRET_KEY", ""),
			CallbackToken:      getEnv("XENDIT_CALLBACK_TOKEN", ""),
			SuccessRedirectURL: getEnv("XENDIT_SUCCESS_REDIRECT_URL", ""),
			FailureRedirectURL: getEnv("XENDIT_FAILURE_REDIRECT_URL", ""),
			InvoiceDuration:    getSecondsEnv("XENDIT_INVOICE_DURATION_SECONDS", 24*time.Hour),
			HTTPTimeout:        getSecondsEnv("XENDIT_HTTP_TIMEOUT_SECONDS", 30*time.Second),
		},
		VIPReseller: VIPResellerConfig{
			BaseURL:                   getEnv("VIPRESELLER_BASE_URL", "https://vip-reseller.co.id/api"),
			APIID:                     getEnv("VIPRESELLER_API_ID", ""),
			APIKey:                    getEnv("VIPRESELLER_API_KEY", ""),
			CallbackSecret:            getEnv("VIPRESELLER_CALLBACK_SECRET", ""),
			SignatureToleranceSeconds: int64(getIntEnv("VIPRESELLER_SIGNATURE_TOLERANCE_SECONDS", 300)),
			HTTPTimeout:               getSecondsEnv("VIPRESELLER_HTTP_TIMEOUT_SECONDS", 30*time.Second),
			RetryAttempts:             getIntEnv("VIPRESELLER_RETRY_ATTEMPTS", 3),
			RetryBaseDelay:            getSecondsEnv("VIPRESELLER_RETRY_BASE_DELAY_SECONDS", time.Second),
		},
		Notifications: NotificationsConfig{
			WhatsAppAPIURL: getEnv("WHATSAPP_API_URL", ""),
			WhatsAppAPIKey: getEnv("WHATSAPP_API_KEY", ""),
			AdminPhone:     getEnv("ADMIN_WHATSAPP", getEnv("CONTACT_WHATSAPP", "")),
			Workers:        getIntEnv("NOTIFICATIONS_WORKERS", 2),
			QueueSize:      getIntEnv("NOTIFICATIONS_QUEUE_SIZE", 256),
			KafkaBrokers:   getListEnv("KAFKA_BROKERS"),
			KafkaTopic:     getEnv("KAFKA_ORDER_EVENTS_TOPIC", "storefront.order-events"),
		},
		Orders: OrdersConfig{
			AdminFees: FeeSchedule{
				Balance:        getDecimalEnv("ORDERS_FEE_BALANCE", decimal.Zero),
				EWallet:        getDecimalEnv("ORDERS_FEE_EWALLET", decimal.NewFromInt(1500)),
				VirtualAccount: getDecimalEnv("ORDERS_FEE_VIRTUAL_ACCOUNT", decimal.NewFromInt(4000)),
				QRIS:           getDecimalEnv("ORDERS_FEE_QRIS", decimal.NewFromInt(1000)),
				RetailOutlet:   getDecimalEnv("ORDERS_FEE_RETAIL_OUTLET", decimal.NewFromInt(5000)),
			},
			MinimumAmounts: FeeSchedule{
				Balance:        decimal.Zero,
				EWallet:        getDecimalEnv("ORDERS_MIN_EWALLET", decimal.NewFromInt(1000)),
				VirtualAccount: getDecimalEnv("ORDERS_MIN_VIRTUAL_ACCOUNT", decimal.NewFromInt(10000)),
				QRIS:           getDecimalEnv("ORDERS_MIN_QRIS", decimal.NewFromInt(1500)),
				RetailOutlet:   getDecimalEnv("ORDERS_MIN_RETAIL_OUTLET", decimal.NewFromInt(10000)),
			},
			MinTopup:                  getDecimalEnv("ORDERS_MIN_TOPUP", decimal.NewFromInt(10000)),
			MaxTopup:                  getDecimalEnv("ORDERS_MAX_TOPUP", decimal.NewFromInt(10000000)),
			StrictTargetValidation:    getBoolEnv("ORDERS_STRICT_TARGET_VALIDATION", false),
			InvoiceReconcileAfter:     getMinutesEnv("ORDERS_INVOICE_RECONCILE_AFTER_MINUTES", 15*time.Minute),
			FulfillmentReconcileAfter: getMinutesEnv("ORDERS_FULFILLMENT_RECONCILE_AFTER_MINUTES", 5*time.Minute),
			DispatchRetryAfter:        getMinutesEnv("ORDERS_DISPATCH_RETRY_AFTER_MINUTES", 5*time.Minute),
			OrphanDispatchAfter:       getMinutesEnv("ORDERS_ORPHAN_DISPATCH_AFTER_MINUTES", 30*time.Minute),
			JobBatchSize:              int32(getIntEnv("ORDERS_JOB_BATCH_SIZE", 100)),
		},
		Jobs: JobsConfig{
			InvoiceReconcileInterval:     getMinutesEnv("ORDERS_INVOICE_RECONCILE_INTERVAL_MINUTES", 5*time.Minute),
			FulfillmentReconcileInterval: getMinutesEnv("ORDERS_FULFILLMENT_RECONCILE_INTERVAL_MINUTES", 2*time.Minute),
			ExpirePendingInterval:        getMinutesEnv("ORDERS_EXPIRE_PENDING_INTERVAL_MINUTES", 5*time.Minute),
			DispatchPaidInterval:         getMinutesEnv("ORDERS_DISPATCH_PAID_INTERVAL_MINUTES", 2*time.Minute),
			DispatchOrphanedInterval:     getMinutesEnv("ORDERS_DISPATCH_ORPHANED_INTERVAL_MINUTES", 10*time.Minute),
		},
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getMinutesEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if minutes, err := strconv.Atoi(value); err == nil {
			return time.Duration(minutes) * time.Minute
		}
	}
	return defaultValue
}

func getSecondsEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if seconds, err := strconv.Atoi(value); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return defaultValue
}

func getDecimalEnv(key string, defaultValue decimal.Decimal) decimal.Decimal {
	if value := os.Getenv(key); value != "" {
		if d, err := decimal.NewFromString(strings.TrimSpace(value)); err == nil {
			return d
		}
	}
	return defaultValue
}

func getListEnv(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	items := make([]string, 0)
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			items = append(items, part)
		}
	}
	return items
}
