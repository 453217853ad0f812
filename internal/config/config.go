package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/finbase/subcore/internal/types"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

type Configuration struct {
	Deployment DeploymentConfig `validate:"required"`
	Logging    LoggingConfig    `validate:"required"`
	Billing    BillingConfig    `validate:"required"`
	Resilience ResilienceConfig
	Cache      CacheConfig
	Catalog    CatalogConfig `validate:"required"`
}

type DeploymentConfig struct {
	Mode types.RunMode `validate:"required"`
}

type LoggingConfig struct {
	Level types.LogLevel `validate:"required"`
}

// BillingConfig carries the billing knobs that are not part of the tier
// catalog itself. PromotionPercent is kept as a decimal string so the
// configured value survives exactly; it is parsed on access.
type BillingConfig struct {
	Currency         string `mapstructure:"currency" validate:"required,len=3"`
	PromotionPercent string `mapstructure:"promotion_percent" validate:"required"`
}

// GetPromotionPercent parses the configured promotional discount fraction
func (c BillingConfig) GetPromotionPercent() (decimal.Decimal, error) {
	pct, err := decimal.NewFromString(c.PromotionPercent)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid promotion_percent %q: %w", c.PromotionPercent, err)
	}
	return pct, nil
}

// ResilienceConfig is the policy the caller-side gateway applies around
// repository access. The engine itself is pure and is never wrapped.
type ResilienceConfig struct {
	Retry   RetryConfig   `mapstructure:"retry"`
	Breaker BreakerConfig `mapstructure:"breaker"`
}

// RetryConfig bounds the optimistic-lock retry loop around version-checked
// updates. Only version conflicts are retried, always on a fresh snapshot.
type RetryConfig struct {
	MaxAttempts     int           `mapstructure:"max_attempts" validate:"omitempty,min=1"`
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval"`
	Multiplier      float64       `mapstructure:"multiplier"`
}

// BreakerConfig configures the circuit breaker wrapped around repositories
type BreakerConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	MaxRequests      uint32        `mapstructure:"max_requests"`
	Interval         time.Duration `mapstructure:"interval"`
	Timeout          time.Duration `mapstructure:"timeout"`
	FailureThreshold uint32        `mapstructure:"failure_threshold"`
}

type CacheConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	TTL     time.Duration `mapstructure:"ttl"`
}

func NewConfig() (*Configuration, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./internal/config")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/subcore")

	// Set up environment variables support
	v.SetEnvPrefix("SUBCORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(
		".", "_",
		"-", "_",
	))
	v.AutomaticEnv()

	// Read config file if exists
	if err := v.ReadInConfig(); err != nil {
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, err
		}
	}

	var config Configuration
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	// Validate configuration
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c Configuration) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return err
	}
	if _, err := c.Billing.GetPromotionPercent(); err != nil {
		return err
	}
	// The catalog section must resolve into a complete valid catalog.
	if _, err := c.Catalog.ToCatalog(); err != nil {
		return err
	}
	return nil
}

// GetDefaultConfig returns a working local configuration carrying the
// reference tier catalog. Tests and one-shot scripts run on this.
func GetDefaultConfig() *Configuration {
	return &Configuration{
		Deployment: DeploymentConfig{Mode: types.ModeLocal},
		Logging:    LoggingConfig{Level: types.LogLevelDebug},
		Billing: BillingConfig{
			Currency:         "usd",
			PromotionPercent: "0.20",
		},
		Resilience: ResilienceConfig{
			Retry: RetryConfig{
				MaxAttempts:     3,
				InitialInterval: 50 * time.Millisecond,
				MaxInterval:     500 * time.Millisecond,
				Multiplier:      2.0,
			},
			Breaker: BreakerConfig{
				Enabled:          true,
				MaxRequests:      3,
				Interval:         10 * time.Second,
				Timeout:          30 * time.Second,
				FailureThreshold: 5,
			},
		},
		Cache: CacheConfig{
			Enabled: true,
			TTL:     5 * time.Minute,
		},
		Catalog: DefaultCatalogConfig(),
	}
}
