// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment gates the mock checkout path. Anything but development is
// treated as production by the wiring code.
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvProduction  Environment = "production"
)

func (e Environment) IsProduction() bool { return e != EnvDevelopment }

type RuntimeConfig struct {
	Dev bool
}

type ServiceConfig struct {
	Name    string `yaml:"name" env:"SERVICE_NAME"`
	Version string `yaml:"version" env:"SERVICE_VERSION"`
}

type HTTPConfig struct {
	Port           int           `yaml:"port" env:"HTTP_PORT"`
	ReadTimeout    time.Duration `yaml:"read_timeout" env:"HTTP_READ_TIMEOUT"`
	WriteTimeout   time.Duration `yaml:"write_timeout" env:"HTTP_WRITE_TIMEOUT"`
	RequestTimeout time.Duration `yaml:"request_timeout" env:"HTTP_REQUEST_TIMEOUT"`
	CORSOrigins    []string      `yaml:"cors_origins" env:"CORS_ALLOWED_ORIGINS" envSeparator:","`
	// CheckoutRateLimit caps create-checkout calls per client IP per minute.
	// Needs redis; 0 disables.
	CheckoutRateLimit int `yaml:"checkout_rate_limit" env:"CHECKOUT_RATE_LIMIT"`
}

type LogConfig struct {
	Level    string `yaml:"level" env:"LOG_LEVEL"`   // trace|debug|info|warn|error
	Format   string `yaml:"format" env:"LOG_FORMAT"` // json|console
	Sampling bool   `yaml:"sampling" env:"LOG_SAMPLING"`
}

type StoreConfig struct {
	Driver string `yaml:"driver" env:"STORE_DRIVER"` // redis|postgres|memory
}

type RedisConfig struct {
	URL        string `yaml:"url" env:"REDIS_URL"`
	Password   string `yaml:"password" env:"REDIS_PASSWORD"`
	DB         int    `yaml:"db" env:"REDIS_DB"`
	KeyPrefix  string `yaml:"key_prefix" env:"REDIS_KEY_PREFIX"`
	MaxRetries int    `yaml:"max_retries" env:"REDIS_TX_RETRIES"` // optimistic tx retries per update
}

type DatabaseConfig struct {
	URL      string `yaml:"url" env:"DATABASE_URL"`
	MaxConns int32  `yaml:"max_conns" env:"DATABASE_MAX_CONNS"`
}

type PaddleConfig struct {
	VendorID         string        `yaml:"vendor_id" env:"PADDLE_VENDOR_ID"`
	VendorAuthCode   string        `yaml:"vendor_auth_code" env:"PADDLE_VENDOR_AUTH_CODE"`
	WebhookSecret    string        `yaml:"webhook_secret" env:"PADDLE_WEBHOOK_SECRET"`
	PremiumProductID string        `yaml:"premium_product_id" env:"PADDLE_PREMIUM_PRODUCT_ID"`
	BasicProductID   string        `yaml:"basic_product_id" env:"PADDLE_BASIC_PRODUCT_ID"`
	APIBaseURL       string        `yaml:"api_base_url" env:"PADDLE_API_BASE_URL"`
	CheckoutBaseURL  string        `yaml:"checkout_base_url" env:"PADDLE_CHECKOUT_BASE_URL"`
	Prices           []string      `yaml:"prices" env:"PADDLE_PRICES" envSeparator:","`
	ReturnURL        string        `yaml:"return_url" env:"PADDLE_RETURN_URL"`
	SignatureAlgo    string        `yaml:"signature_algo" env:"PADDLE_SIGNATURE_ALGO"` // sha1|sha256
	Timeout          time.Duration `yaml:"timeout" env:"PADDLE_TIMEOUT"`
}

// ClientConfig is read by premiumctl, not by the service.
type ClientConfig struct {
	APIBase string        `yaml:"api_base" env:"PREMIUM_API_BASE"`
	DataDir string        `yaml:"data_dir" env:"PREMIUM_DATA_DIR"`
	Timeout time.Duration `yaml:"timeout" env:"PREMIUM_CLIENT_TIMEOUT"`
}

type Config struct {
	Environment Environment    `yaml:"environment" env:"ENVIRONMENT"`
	Service     ServiceConfig  `yaml:"service"`
	HTTP        HTTPConfig     `yaml:"http"`
	Log         LogConfig      `yaml:"log"`
	Store       StoreConfig    `yaml:"store"`
	Redis       RedisConfig    `yaml:"redis"`
	Database    DatabaseConfig `yaml:"database"`
	Paddle      PaddleConfig   `yaml:"paddle"`
	Client      ClientConfig   `yaml:"client"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads the optional YAML file at path, then applies a .env file
// (if present) and process environment on top. Environment wins.
func LoadConfig(path string, dev bool) (*Config, error) {
	var cfg Config
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	_ = godotenv.Load()
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	applyDefaults(&cfg)
	if dev {
		cfg.Environment = EnvDevelopment
	}
	cfg.Runtime.Dev = cfg.Environment == EnvDevelopment

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	cfg.Environment = Environment(strings.ToLower(strings.TrimSpace(string(cfg.Environment))))
	if cfg.Environment == "" {
		cfg.Environment = EnvProduction
	}
	if cfg.Service.Name == "" {
		cfg.Service.Name = "BigDayTimer Backend"
	}
	if cfg.Service.Version == "" {
		cfg.Service.Version = "1.0.0"
	}
	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = 8787
	}
	if cfg.HTTP.ReadTimeout <= 0 {
		cfg.HTTP.ReadTimeout = 10 * time.Second
	}
	if cfg.HTTP.WriteTimeout <= 0 {
		cfg.HTTP.WriteTimeout = 30 * time.Second
	}
	if cfg.HTTP.RequestTimeout <= 0 {
		cfg.HTTP.RequestTimeout = 20 * time.Second
	}
	if len(cfg.HTTP.CORSOrigins) == 0 {
		cfg.HTTP.CORSOrigins = []string{"*"}
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	cfg.Store.Driver = strings.ToLower(strings.TrimSpace(cfg.Store.Driver))
	if cfg.Store.Driver == "" {
		cfg.Store.Driver = "redis"
	}
	if cfg.Redis.KeyPrefix == "" {
		cfg.Redis.KeyPrefix = "premium_user:"
	}
	if cfg.Redis.MaxRetries <= 0 {
		cfg.Redis.MaxRetries = 5
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}
	if cfg.Paddle.APIBaseURL == "" {
		cfg.Paddle.APIBaseURL = "https://vendors.paddle.com/api/2.0"
	}
	if cfg.Paddle.CheckoutBaseURL == "" {
		cfg.Paddle.CheckoutBaseURL = "https://checkout.paddle.com/checkout"
	}
	if len(cfg.Paddle.Prices) == 0 {
		cfg.Paddle.Prices = []string{"USD:4.99"}
	}
	if cfg.Paddle.ReturnURL == "" {
		cfg.Paddle.ReturnURL = "https://bigdaytimer.com/success"
	}
	cfg.Paddle.SignatureAlgo = strings.ToLower(strings.TrimSpace(cfg.Paddle.SignatureAlgo))
	if cfg.Paddle.SignatureAlgo == "" {
		cfg.Paddle.SignatureAlgo = "sha1"
	}
	if cfg.Paddle.Timeout <= 0 {
		cfg.Paddle.Timeout = 15 * time.Second
	}
	if cfg.Client.APIBase == "" {
		cfg.Client.APIBase = "https://bigdaytimer.com"
	}
	if cfg.Client.DataDir == "" {
		cfg.Client.DataDir = ".premiumctl"
	}
	if cfg.Client.Timeout <= 0 {
		cfg.Client.Timeout = 10 * time.Second
	}
}

// Validate checks the settings the service cannot run without.
func (c *Config) Validate() error {
	switch c.Environment {
	case EnvDevelopment, EnvProduction:
	default:
		return fmt.Errorf("environment must be development or production, got %q", c.Environment)
	}
	switch c.Store.Driver {
	case "redis":
		if c.Redis.URL == "" {
			return errors.New("redis.url is required for store.driver=redis")
		}
	case "postgres":
		if c.Database.URL == "" {
			return errors.New("database.url is required for store.driver=postgres")
		}
	case "memory":
		if c.Environment.IsProduction() {
			return errors.New("store.driver=memory is not durable and not allowed in production")
		}
	default:
		return fmt.Errorf("unknown store.driver %q", c.Store.Driver)
	}
	switch c.Paddle.SignatureAlgo {
	case "sha1", "sha256":
	default:
		return fmt.Errorf("paddle.signature_algo must be sha1 or sha256, got %q", c.Paddle.SignatureAlgo)
	}
	if c.Environment.IsProduction() {
		if c.Paddle.VendorID == "" || c.Paddle.VendorAuthCode == "" {
			return errors.New("paddle.vendor_id and paddle.vendor_auth_code are required in production")
		}
		if c.Paddle.WebhookSecret == "" {
			return errors.New("paddle.webhook_secret is required in production")
		}
		if c.Paddle.PremiumProductID == "" {
			return errors.New("paddle.premium_product_id is required in production")
		}
	}
	return nil
}

// LoadClientConfig reads only what premiumctl needs. It skips the service
// validation so the CLI works without provider credentials.
func LoadClientConfig(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	_ = godotenv.Load()
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	applyDefaults(&cfg)
	return &cfg, nil
}
