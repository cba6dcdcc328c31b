// Package config provides configuration loading and management using koanf.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Default configuration values.
const (
	// DefaultServerPort is the default HTTP server port.
	DefaultServerPort = 8080

	// DefaultMaxRequestSize is the default maximum request body size.
	// It must admit max_files uploads of max_file_size each.
	DefaultMaxRequestSize = 512 << 20

	// DefaultClientRetryMaxAttempts is the default number of retry attempts.
	DefaultClientRetryMaxAttempts = 3

	// DefaultClientRetryMultiplier is the default exponential backoff multiplier.
	DefaultClientRetryMultiplier = 2.0

	// DefaultClientRetryJitterFactor is the default jitter percentage (±25%).
	DefaultClientRetryJitterFactor = 0.25

	// DefaultClientCircuitMaxFailures is the default failures before circuit opens.
	DefaultClientCircuitMaxFailures = 5

	// DefaultClientCircuitHalfOpenLimit is the default successes to close circuit.
	DefaultClientCircuitHalfOpenLimit = 3

	// DefaultTransportMaxIdleConns is the default max idle connections.
	DefaultTransportMaxIdleConns = 100

	// DefaultTransportMaxIdleConnsPerHost is the default max idle connections per host.
	DefaultTransportMaxIdleConnsPerHost = 10

	// DefaultLogFileMaxSizeMB is the default max log file size in megabytes.
	DefaultLogFileMaxSizeMB = 100

	// DefaultLogFileMaxBackups is the default number of old log files to retain.
	DefaultLogFileMaxBackups = 3

	// DefaultLogFileMaxAgeDays is the default max days to retain old log files.
	DefaultLogFileMaxAgeDays = 28

	// DefaultMarkupPercentage is the markup applied over material cost.
	DefaultMarkupPercentage = 15.0

	// DefaultMinimumOrder is the smallest accepted quote total in the pricing currency.
	DefaultMinimumOrder = 20.0

	// DefaultEstimatedShippingDays is quoted on every order.
	DefaultEstimatedShippingDays = 5

	// DefaultPricingWorkers bounds concurrent mesh analysis per submission.
	DefaultPricingWorkers = 4

	// DefaultMaxFiles is the most files accepted in a single submission.
	DefaultMaxFiles = 10

	// DefaultRedisPort is the default redis port.
	DefaultRedisPort = 6379
)

// Config is the root configuration structure.
type Config struct {
	App       AppConfig       `koanf:"app"       validate:"required"`
	Server    ServerConfig    `koanf:"server"    validate:"required"`
	Log       LogConfig       `koanf:"log"       validate:"required"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
	Client    ClientConfig    `koanf:"client"    validate:"required"`
	Pricing   PricingConfig   `koanf:"pricing"   validate:"required"`
	Materials MaterialsConfig `koanf:"materials" validate:"required"`
	Shipping  ShippingConfig  `koanf:"shipping"  validate:"required"`
	Printer   PrinterConfig   `koanf:"printer"   validate:"required"`
	Upload    UploadConfig    `koanf:"upload"    validate:"required"`
	Storage   StorageConfig   `koanf:"storage"   validate:"required"`
	Redis     RedisConfig     `koanf:"redis"`
	DynamoDB  DynamoDBConfig  `koanf:"dynamodb"`
	Notifier  NotifierConfig  `koanf:"notifier"`
}

// AppConfig contains application-level settings.
type AppConfig struct {
	Name        string `koanf:"name"        validate:"required"`
	Version     string `koanf:"version"     validate:"required"`
	Environment string `koanf:"environment" validate:"required,oneof=local dev qa prod test"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port            int           `koanf:"port"             validate:"required,min=1,max=65535"`
	Host            string        `koanf:"host"             validate:"required"`
	ReadTimeout     time.Duration `koanf:"read_timeout"     validate:"required,min=1s"`
	WriteTimeout    time.Duration `koanf:"write_timeout"    validate:"required,min=1s"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"     validate:"required,min=1s"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"required,min=1s"`
	RequestTimeout  time.Duration `koanf:"request_timeout"  validate:"required,min=1s"`
	MaxRequestSize  int64         `koanf:"max_request_size" validate:"required,min=1"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string        `koanf:"level"  validate:"required,oneof=trace debug info warn error"`
	Format string        `koanf:"format" validate:"required,oneof=json text pretty"`
	File   LogFileConfig `koanf:"file"`
}

// LogFileConfig contains rolling log file settings.
type LogFileConfig struct {
	Enabled    bool   `koanf:"enabled"`
	Path       string `koanf:"path"        validate:"required_if=Enabled true"`
	Level      string `koanf:"level"       validate:"omitempty,oneof=trace debug info warn error"`
	MaxSizeMB  int    `koanf:"max_size"    validate:"omitempty,min=1,max=1024"`
	MaxBackups int    `koanf:"max_backups" validate:"omitempty,min=0,max=100"`
	MaxAgeDays int    `koanf:"max_age"     validate:"omitempty,min=0,max=365"`
	Compress   bool   `koanf:"compress"`
}

// TelemetryConfig contains OpenTelemetry settings.
type TelemetryConfig struct {
	Enabled      bool    `koanf:"enabled"`
	Endpoint     string  `koanf:"endpoint"      validate:"required_if=Enabled true,omitempty,url"`
	ServiceName  string  `koanf:"service_name"  validate:"required_if=Enabled true"`
	SamplingRate float64 `koanf:"sampling_rate" validate:"min=0,max=1"`
	Insecure     bool    `koanf:"insecure"`
}

// ClientConfig contains HTTP client settings for downstream services.
type ClientConfig struct {
	Timeout        time.Duration        `koanf:"timeout"         validate:"required,min=100ms"`
	Retry          RetryConfig          `koanf:"retry"           validate:"required"`
	CircuitBreaker CircuitBreakerConfig `koanf:"circuit_breaker" validate:"required"`
	Transport      TransportConfig      `koanf:"transport"       validate:"required"`
}

// RetryConfig contains retry settings for HTTP clients.
type RetryConfig struct {
	MaxAttempts     int           `koanf:"max_attempts"     validate:"required,min=1,max=10"`
	InitialInterval time.Duration `koanf:"initial_interval" validate:"required,min=10ms"`
	MaxInterval     time.Duration `koanf:"max_interval"     validate:"required,min=100ms"`
	Multiplier      float64       `koanf:"multiplier"       validate:"required,min=1.1,max=10"`
	JitterFactor    float64       `koanf:"jitter_factor"    validate:"min=0,max=1"`
}

// CircuitBreakerConfig contains circuit breaker settings for HTTP clients.
type CircuitBreakerConfig struct {
	MaxFailures   int           `koanf:"max_failures"    validate:"required,min=1"`
	Timeout       time.Duration `koanf:"timeout"         validate:"required,min=1s"`
	HalfOpenLimit int           `koanf:"half_open_limit" validate:"required,min=1"`
}

// TransportConfig contains HTTP transport pool settings.
type TransportConfig struct {
	MaxIdleConns        int           `koanf:"max_idle_conns"          validate:"required,min=1"`
	MaxIdleConnsPerHost int           `koanf:"max_idle_conns_per_host" validate:"required,min=1"`
	IdleConnTimeout     time.Duration `koanf:"idle_conn_timeout"       validate:"required,min=1s"`
}

// PricingConfig contains quote pricing rules.
type PricingConfig struct {
	Currency              string               `koanf:"currency"                validate:"required,len=3"`
	MarkupPercentage      float64              `koanf:"markup_percentage"       validate:"min=0,max=1000"`
	MinimumOrder          float64              `koanf:"minimum_order"           validate:"min=0"`
	EstimatedShippingDays int                  `koanf:"estimated_shipping_days" validate:"required,min=1"`
	Workers               int                  `koanf:"workers"                 validate:"required,min=1,max=64"`
	DiscountTiers         []DiscountTierConfig `koanf:"discount_tiers"          validate:"dive"`
}

// DiscountTierConfig grants Percent off the unit price from MinQuantity units upward.
type DiscountTierConfig struct {
	MinQuantity int     `koanf:"min_quantity" validate:"required,min=1"`
	Percent     float64 `koanf:"percent"      validate:"min=0,max=100"`
}

// MaterialsConfig contains per-cm³ material rates.
type MaterialsConfig struct {
	Rates MaterialRatesConfig `koanf:"rates" validate:"required"`
}

// MaterialRatesConfig holds one rate per supported material code.
type MaterialRatesConfig struct {
	PA12Grey  float64 `koanf:"pa12_grey"  validate:"gt=0"`
	PA12Black float64 `koanf:"pa12_black" validate:"gt=0"`
	PA12GB    float64 `koanf:"pa12_gb"    validate:"gt=0"`
}

// ShippingConfig contains shipping tier fees and volume thresholds.
type ShippingConfig struct {
	Costs      ShippingCostsConfig      `koanf:"costs"      validate:"required"`
	Thresholds ShippingThresholdsConfig `koanf:"thresholds" validate:"required"`
}

// ShippingCostsConfig holds the fee of each shipping tier.
type ShippingCostsConfig struct {
	Small  float64 `koanf:"small"  validate:"min=0"`
	Medium float64 `koanf:"medium" validate:"min=0"`
	Large  float64 `koanf:"large"  validate:"min=0"`
}

// ShippingThresholdsConfig holds the upper volume bound (cm³) of the smaller tiers.
type ShippingThresholdsConfig struct {
	Small  float64 `koanf:"small"  validate:"gt=0"`
	Medium float64 `koanf:"medium" validate:"gtfield=Small"`
}

// PrinterConfig is the build envelope in millimetres.
type PrinterConfig struct {
	MaxX float64 `koanf:"max_x" validate:"gt=0"`
	MaxY float64 `koanf:"max_y" validate:"gt=0"`
	MaxZ float64 `koanf:"max_z" validate:"gt=0"`
}

// UploadConfig contains upload staging settings.
type UploadConfig struct {
	TempDir           string        `koanf:"temp_dir"           validate:"required"`
	MaxFileSize       string        `koanf:"max_file_size"      validate:"required,filesize"`
	AllowedExtensions []string      `koanf:"allowed_extensions" validate:"required,min=1,dive,startswith=."`
	CleanupDelay      time.Duration `koanf:"cleanup_delay"      validate:"required,min=1s"`
	MaxFiles          int           `koanf:"max_files"          validate:"required,min=1,max=100"`
}

// MaxFileSizeBytes returns MaxFileSize in bytes.
func (u UploadConfig) MaxFileSizeBytes() int64 {
	n, err := ParseSize(u.MaxFileSize)
	if err != nil {
		return 0
	}

	return n
}

// StorageConfig selects the quote repository implementation.
type StorageConfig struct {
	Driver    string        `koanf:"driver"     validate:"required,oneof=memory redis dynamodb"`
	KeyPrefix string        `koanf:"key_prefix"`
	Retention time.Duration `koanf:"retention"  validate:"min=0"`
}

// RedisConfig contains redis connection settings.
type RedisConfig struct {
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"     validate:"omitempty,min=1,max=65535"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"       validate:"min=0"`
}

// DynamoDBConfig contains DynamoDB connection settings.
type DynamoDBConfig struct {
	Region          string `koanf:"region"`
	Endpoint        string `koanf:"endpoint"          validate:"omitempty,url"`
	Table           string `koanf:"table"`
	AccessKeyID     string `koanf:"access_key_id"`
	SecretAccessKey string `koanf:"secret_access_key"`
}

// NotifierConfig configures the CRM webhook that receives quote events.
type NotifierConfig struct {
	Enabled bool   `koanf:"enabled"`
	BaseURL string `koanf:"base_url" validate:"required_if=Enabled true,omitempty,url"`
	Path    string `koanf:"path"     validate:"required_if=Enabled true"`
	Name    string `koanf:"name"     validate:"required_if=Enabled true"`

	// HealthPath is probed by readiness; empty skips the check.
	HealthPath string `koanf:"health_path"`

	// Secret signs webhook bodies (HMAC-SHA256); empty sends them unsigned.
	Secret string `koanf:"secret"`
}

// defaults returns the default configuration values.
func defaults() map[string]any {
	return map[string]any{
		"app.name":        "print-quote-service",
		"app.version":     "dev",
		"app.environment": "local",

		"server.port":             DefaultServerPort,
		"server.host":             "0.0.0.0",
		"server.read_timeout":     "60s",
		"server.write_timeout":    "60s",
		"server.idle_timeout":     "120s",
		"server.shutdown_timeout": "10s",
		"server.request_timeout":  "30s",
		"server.max_request_size": DefaultMaxRequestSize,

		"log.level":            "info",
		"log.format":           "json",
		"log.file.enabled":     false,
		"log.file.path":        "./logs/app.log",
		"log.file.max_size":    DefaultLogFileMaxSizeMB,
		"log.file.max_backups": DefaultLogFileMaxBackups,
		"log.file.max_age":     DefaultLogFileMaxAgeDays,
		"log.file.compress":    true,

		"telemetry.enabled":       false,
		"telemetry.endpoint":      "",
		"telemetry.service_name":  "print-quote-service",
		"telemetry.sampling_rate": 1.0,

		"client.timeout":                           "10s",
		"client.retry.max_attempts":                DefaultClientRetryMaxAttempts,
		"client.retry.initial_interval":            "100ms",
		"client.retry.max_interval":                "5s",
		"client.retry.multiplier":                  DefaultClientRetryMultiplier,
		"client.retry.jitter_factor":               DefaultClientRetryJitterFactor,
		"client.circuit_breaker.max_failures":      DefaultClientCircuitMaxFailures,
		"client.circuit_breaker.timeout":           "30s",
		"client.circuit_breaker.half_open_limit":   DefaultClientCircuitHalfOpenLimit,
		"client.transport.max_idle_conns":          DefaultTransportMaxIdleConns,
		"client.transport.max_idle_conns_per_host": DefaultTransportMaxIdleConnsPerHost,
		"client.transport.idle_conn_timeout":       "90s",

		"pricing.currency":                "USD",
		"pricing.markup_percentage":       DefaultMarkupPercentage,
		"pricing.minimum_order":           DefaultMinimumOrder,
		"pricing.estimated_shipping_days": DefaultEstimatedShippingDays,
		"pricing.workers":                 DefaultPricingWorkers,

		"materials.rates.pa12_grey":  0.50,
		"materials.rates.pa12_black": 0.55,
		"materials.rates.pa12_gb":    0.60,

		"shipping.costs.small":       5.0,
		"shipping.costs.medium":      10.0,
		"shipping.costs.large":       15.0,
		"shipping.thresholds.small":  100.0,
		"shipping.thresholds.medium": 500.0,

		"printer.max_x": 380.0,
		"printer.max_y": 284.0,
		"printer.max_z": 380.0,

		"upload.temp_dir":           "data/temp_uploads",
		"upload.max_file_size":      "50MB",
		"upload.allowed_extensions": []string{".stl"},
		"upload.cleanup_delay":      "1h",
		"upload.max_files":          DefaultMaxFiles,

		"storage.driver":     "memory",
		"storage.key_prefix": "pqs:",
		"storage.retention":  "24h",

		"redis.host": "127.0.0.1",
		"redis.port": DefaultRedisPort,
		"redis.db":   0,

		"dynamodb.region": "us-east-1",
		"dynamodb.table":  "quotes",

		"notifier.enabled":     false,
		"notifier.base_url":    "",
		"notifier.path":        "/webhooks/quotes",
		"notifier.name":        "crm",
		"notifier.health_path": "/health",
		"notifier.secret":      "",
	}
}

// Load loads configuration with the following precedence (highest to lowest):
//  1. Environment variables (APP_ prefix), including those from a .env file
//  2. Profile config file (configs/{profile}.yaml)
//  3. Base config file (configs/base.yaml)
//  4. Default values
func Load(profile string) (*Config, error) {
	k := koanf.New(".")

	// 1. Load defaults
	err := k.Load(confmap.Provider(defaults(), "."), nil)
	if err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	// 2. Load base config file if it exists
	err = loadFileIfExists(k, "configs/base.yaml")
	if err != nil {
		return nil, fmt.Errorf("loading base config: %w", err)
	}

	// 3. Load profile config file if it exists
	if profile != "" {
		profilePath := fmt.Sprintf("configs/%s.yaml", profile)

		err := loadFileIfExists(k, profilePath)
		if err != nil {
			return nil, fmt.Errorf("loading profile config %q: %w", profile, err)
		}
	}

	// 4. .env never overrides variables already present in the process environment
	err = loadDotEnv(".env")
	if err != nil {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	// 5. Load environment variables with APP_ prefix
	err = k.Load(env.Provider("APP_", ".", func(s string) string {
		return strings.ReplaceAll(
			strings.ToLower(strings.TrimPrefix(s, "APP_")),
			"_",
			".",
		)
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("loading env vars: %w", err)
	}

	// Unmarshal into Config struct
	var cfg Config

	err = k.Unmarshal("", &cfg)
	if err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	return &cfg, nil
}

// loadFileIfExists loads a YAML config file if it exists.
// Returns nil if the file doesn't exist, error only for parse/read failures.
func loadFileIfExists(k *koanf.Koanf, path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil // File doesn't exist, that's fine
	}

	return k.Load(file.Provider(path), yaml.Parser())
}

// loadDotEnv populates the process environment from path if it exists.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}

	return godotenv.Load(path)
}

var sizeUnits = []struct {
	suffix     string
	multiplier int64
}{
	{"GB", 1 << 30},
	{"MB", 1 << 20},
	{"KB", 1 << 10},
	{"B", 1},
}

// ParseSize parses a human-readable size such as "50MB" into bytes.
// Units are binary (1KB = 1024B) and case-insensitive; a bare number is bytes.
func ParseSize(s string) (int64, error) {
	v := strings.ToUpper(strings.TrimSpace(s))
	if v == "" {
		return 0, errors.New("empty size")
	}

	multiplier := int64(1)

	for _, u := range sizeUnits {
		if strings.HasSuffix(v, u.suffix) {
			multiplier = u.multiplier
			v = strings.TrimSpace(strings.TrimSuffix(v, u.suffix))

			break
		}
	}

	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", s, err)
	}

	if n <= 0 {
		return 0, fmt.Errorf("invalid size %q: must be positive", s)
	}

	return n * multiplier, nil
}
