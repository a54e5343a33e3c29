package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/mfs-pay/mfs_pay/internal/fees"
	"github.com/mfs-pay/mfs_pay/internal/money"
	"github.com/mfs-pay/mfs_pay/internal/scheduler"
)

const (
	defaultAppName        = "MFS"
	defaultAppEnv         = "development"
	defaultPort           = "3000"
	defaultLogLevel       = "info"
	defaultShutdownDelay  = 10 * time.Second
	defaultIdempotencyTTL = 24 * time.Hour
	defaultTokenTTL       = time.Hour
	defaultStoreTimeout   = 5 * time.Second
	defaultPINHashCost    = 10
	minPINHashCost        = 10
	defaultLoginRateLimit = 5
	defaultExpirySchedule = "@every 15m"
	defaultCORSOrigins    = "http://localhost:5173,https://mfs-ph.web.app,https://mfs-ph.firebaseapp.com"
)

// Config captures application runtime configuration loaded from environment variables.
type Config struct {
	AppName        string
	AppEnv         string
	Port           string
	LogLevel       string
	DatabaseURL    string
	RedisURL       string
	RabbitMQURL    string
	ShutdownPeriod time.Duration
	IdempotencyTTL time.Duration

	JWTSecret      string
	TokenTTL       time.Duration
	PINHashCost    int
	StoreTimeout   time.Duration
	LoginRateLimit int
	CORSOrigins    []string

	PendingExpirySchedule string
	PendingRequestTTL     time.Duration

	Fees fees.Policy
}

// Load reads configuration values from the environment and populates a Config instance.
func Load() (Config, error) {
	v := viper.New()
	v.SetDefault("APP_NAME", defaultAppName)
	v.SetDefault("APP_ENV", defaultAppEnv)
	v.SetDefault("PORT", defaultPort)
	v.SetDefault("LOG_LEVEL", defaultLogLevel)
	v.SetDefault("SHUTDOWN_TIMEOUT", defaultShutdownDelay)
	v.SetDefault("IDEMPOTENCY_TTL", defaultIdempotencyTTL)
	v.SetDefault("TOKEN_TTL", defaultTokenTTL)
	v.SetDefault("PIN_HASH_COST", defaultPINHashCost)
	v.SetDefault("STORE_TIMEOUT", defaultStoreTimeout)
	v.SetDefault("LOGIN_RATE_LIMIT", defaultLoginRateLimit)
	v.SetDefault("CORS_ALLOWED_ORIGINS", defaultCORSOrigins)
	v.SetDefault("PENDING_EXPIRY_SCHEDULE", defaultExpirySchedule)
	v.SetDefault("PENDING_REQUEST_TTL", time.Duration(0))
	v.SetDefault("TRANSFER_FEE", "5")
	v.SetDefault("TRANSFER_FEE_THRESHOLD", "100")
	v.SetDefault("CASH_OUT_ADMIN_RATE", "0.005")
	v.SetDefault("CASH_OUT_AGENT_RATE", "0.01")
	v.AutomaticEnv()

	cfg := Config{
		AppName:               v.GetString("APP_NAME"),
		AppEnv:                v.GetString("APP_ENV"),
		Port:                  v.GetString("PORT"),
		LogLevel:              strings.ToLower(v.GetString("LOG_LEVEL")),
		DatabaseURL:           v.GetString("DATABASE_URL"),
		RedisURL:              v.GetString("REDIS_URL"),
		RabbitMQURL:           v.GetString("RABBITMQ_URL"),
		ShutdownPeriod:        v.GetDuration("SHUTDOWN_TIMEOUT"),
		IdempotencyTTL:        v.GetDuration("IDEMPOTENCY_TTL"),
		JWTSecret:             v.GetString("ACCESS_TOKEN_SECRET"),
		TokenTTL:              v.GetDuration("TOKEN_TTL"),
		PINHashCost:           v.GetInt("PIN_HASH_COST"),
		StoreTimeout:          v.GetDuration("STORE_TIMEOUT"),
		LoginRateLimit:        v.GetInt("LOGIN_RATE_LIMIT"),
		CORSOrigins:           splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
		PendingExpirySchedule: v.GetString("PENDING_EXPIRY_SCHEDULE"),
		PendingRequestTTL:     v.GetDuration("PENDING_REQUEST_TTL"),
	}

	policy, err := loadFees(v)
	if err != nil {
		return Config{}, err
	}
	cfg.Fees = policy

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("ACCESS_TOKEN_SECRET must be set")
	}
	if cfg.TokenTTL <= 0 {
		return Config{}, fmt.Errorf("TOKEN_TTL must be positive")
	}
	if cfg.PINHashCost < minPINHashCost {
		return Config{}, fmt.Errorf("PIN_HASH_COST must be at least %d", minPINHashCost)
	}
	if cfg.StoreTimeout <= 0 {
		return Config{}, fmt.Errorf("STORE_TIMEOUT must be positive")
	}
	if cfg.PendingRequestTTL < 0 {
		return Config{}, fmt.Errorf("PENDING_REQUEST_TTL must not be negative")
	}
	if err := scheduler.Validate(cfg.PendingExpirySchedule); err != nil {
		return Config{}, fmt.Errorf("PENDING_EXPIRY_SCHEDULE: %w", err)
	}

	if !cfg.IsDev() {
		if cfg.DatabaseURL == "" {
			return Config{}, fmt.Errorf("DATABASE_URL must be set when APP_ENV=%s", cfg.AppEnv)
		}
		if cfg.RedisURL == "" {
			return Config{}, fmt.Errorf("REDIS_URL must be set when APP_ENV=%s", cfg.AppEnv)
		}
	}

	return cfg, nil
}

func loadFees(v *viper.Viper) (fees.Policy, error) {
	transferFee, err := parseTariff(v.GetString("TRANSFER_FEE"))
	if err != nil {
		return fees.Policy{}, fmt.Errorf("invalid TRANSFER_FEE: %w", err)
	}
	threshold, err := parseTariff(v.GetString("TRANSFER_FEE_THRESHOLD"))
	if err != nil {
		return fees.Policy{}, fmt.Errorf("invalid TRANSFER_FEE_THRESHOLD: %w", err)
	}
	adminRate, err := decimal.NewFromString(v.GetString("CASH_OUT_ADMIN_RATE"))
	if err != nil {
		return fees.Policy{}, fmt.Errorf("invalid CASH_OUT_ADMIN_RATE: %w", err)
	}
	agentRate, err := decimal.NewFromString(v.GetString("CASH_OUT_AGENT_RATE"))
	if err != nil {
		return fees.Policy{}, fmt.Errorf("invalid CASH_OUT_AGENT_RATE: %w", err)
	}

	policy := fees.Policy{
		TransferFee:          transferFee,
		TransferFeeThreshold: threshold,
		CashOutAdminRate:     adminRate,
		CashOutAgentRate:     agentRate,
	}
	if err := policy.Validate(); err != nil {
		return fees.Policy{}, fmt.Errorf("invalid fee policy: %w", err)
	}
	return policy, nil
}

// parseTariff accepts zero so a fee can be switched off.
func parseTariff(raw string) (money.Money, error) {
	if d, err := decimal.NewFromString(strings.TrimSpace(raw)); err == nil && d.IsZero() {
		return 0, nil
	}
	return money.Parse(raw)
}

// IsDev reports whether the service runs in a local development environment.
func (c Config) IsDev() bool {
	switch strings.ToLower(c.AppEnv) {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
