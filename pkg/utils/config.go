package utils

import (
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Storage   StorageConfig
	Checkout  CheckoutConfig
	Redis     RedisConfig
	Payment   PaymentConfig
	Broker    BrokerConfig
	JWT       JWTConfig
	Telemetry TelemetryConfig
}

type AppConfig struct {
	Name            string
	Port            string
	Debug           bool
	LogPath         string
	ShutdownTimeout time.Duration
}

type DatabaseConfig struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	MaxConns int32
}

type StorageConfig struct {
	Driver   string // postgres | memory
	SeedFile string
}

// CheckoutConfig holds the hold/session policy knobs.
type CheckoutConfig struct {
	HoldTTL            time.Duration
	SweepInterval      time.Duration
	SessionRetention   time.Duration
	Currency           string
	CurrencyMinorUnits int64
	Ledger             string // memory | redis
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type PaymentConfig struct {
	Gateway             string // mock | stripe
	StripeSecretKey     string
	StripeWebhookSecret string
}

type BrokerConfig struct {
	URL string
}

type JWTConfig struct {
	Secret string
}

type TelemetryConfig struct {
	Enabled       bool
	ServiceName   string
	CollectorAddr string
}

func LoadConfig() (*Config, error) {
	viper.SetConfigFile(".env")
	viper.SetConfigType("env")

	// Set defaults
	viper.SetDefault("APP_NAME", "cinema-checkout")
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("DEBUG", false)
	viper.SetDefault("LOG_PATH", "logs/")
	viper.SetDefault("SHUTDOWN_TIMEOUT", "10s")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_MAX_CONNS", 10)
	viper.SetDefault("STORAGE_DRIVER", "postgres")
	viper.SetDefault("HOLD_TTL", "5m")
	viper.SetDefault("HOLD_SWEEP_INTERVAL", "10s")
	viper.SetDefault("SESSION_RETENTION", "30m")
	viper.SetDefault("CURRENCY", "inr")
	viper.SetDefault("CURRENCY_MINOR_UNITS", 100)
	viper.SetDefault("HOLD_LEDGER", "memory")
	viper.SetDefault("REDIS_ADDR", "localhost:6379")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("PAYMENT_GATEWAY", "mock")
	viper.SetDefault("OTEL_ENABLED", false)
	viper.SetDefault("OTEL_SERVICE_NAME", "cinema-checkout")
	viper.SetDefault("OTEL_COLLECTOR_ADDR", "localhost:4317")

	// .env optional, container deploys pass plain env vars
	if _, err := os.Stat(".env"); err == nil {
		if err := viper.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	viper.AutomaticEnv()

	config := &Config{
		App: AppConfig{
			Name:            viper.GetString("APP_NAME"),
			Port:            viper.GetString("PORT"),
			Debug:           viper.GetBool("DEBUG"),
			LogPath:         viper.GetString("LOG_PATH"),
			ShutdownTimeout: viper.GetDuration("SHUTDOWN_TIMEOUT"),
		},
		Database: DatabaseConfig{
			Host:     viper.GetString("DB_HOST"),
			Port:     viper.GetString("DB_PORT"),
			Name:     viper.GetString("DB_NAME"),
			User:     viper.GetString("DB_USER"),
			Password: viper.GetString("DB_PASS"),
			MaxConns: viper.GetInt32("DB_MAX_CONNS"),
		},
		Storage: StorageConfig{
			Driver:   viper.GetString("STORAGE_DRIVER"),
			SeedFile: viper.GetString("SEED_FILE"),
		},
		Checkout: CheckoutConfig{
			HoldTTL:            viper.GetDuration("HOLD_TTL"),
			SweepInterval:      viper.GetDuration("HOLD_SWEEP_INTERVAL"),
			SessionRetention:   viper.GetDuration("SESSION_RETENTION"),
			Currency:           viper.GetString("CURRENCY"),
			CurrencyMinorUnits: viper.GetInt64("CURRENCY_MINOR_UNITS"),
			Ledger:             viper.GetString("HOLD_LEDGER"),
		},
		Redis: RedisConfig{
			Addr:     viper.GetString("REDIS_ADDR"),
			Password: viper.GetString("REDIS_PASSWORD"),
			DB:       viper.GetInt("REDIS_DB"),
		},
		Payment: PaymentConfig{
			Gateway:             viper.GetString("PAYMENT_GATEWAY"),
			StripeSecretKey:     viper.GetString("STRIPE_SECRET_KEY"),
			StripeWebhookSecret: viper.GetString("STRIPE_WEBHOOK_SECRET"),
		},
		Broker: BrokerConfig{
			URL: viper.GetString("AMQP_URL"),
		},
		JWT: JWTConfig{
			Secret: viper.GetString("JWT_SECRET"),
		},
		Telemetry: TelemetryConfig{
			Enabled:       viper.GetBool("OTEL_ENABLED"),
			ServiceName:   viper.GetString("OTEL_SERVICE_NAME"),
			CollectorAddr: viper.GetString("OTEL_COLLECTOR_ADDR"),
		},
	}

	return config, nil
}
