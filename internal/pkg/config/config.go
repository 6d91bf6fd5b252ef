package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all runtime configuration. Values are resolved in three
// layers: built-in defaults, then an optional YAML file, then
// environment variables.
type Config struct {
	ServiceName string `yaml:"service_name"`
	Env         string `yaml:"env"`
	HTTPAddr    string `yaml:"http_addr"`

	// Order placement.
	DeliveryFee float64 `yaml:"delivery_fee"`

	// Carrier aggregator client.
	Carrier CarrierConfig `yaml:"carrier"`

	// Tracking lookups.
	Tracking TrackingConfig `yaml:"tracking"`

	// Background sweeps.
	Sweep SweepConfig `yaml:"sweep"`
}

type CarrierConfig struct {
	BaseURL       string        `yaml:"base_url"`
	Email         string        `yaml:"email"`
	Password      string        `yaml:"password"`
	PickupName    string        `yaml:"pickup_name"`
	Timeout       time.Duration `yaml:"timeout"`
	RefreshBuffer time.Duration `yaml:"refresh_buffer"`
}

type TrackingConfig struct {
	// Backend selects the cache store: "memory" or "redis".
	Backend   string        `yaml:"backend"`
	TTL       time.Duration `yaml:"ttl"`
	RedisAddr string        `yaml:"redis_addr"`
}

type SweepConfig struct {
	DiscountInterval time.Duration `yaml:"discount_interval"`
	RetentionWindow  time.Duration `yaml:"retention_window"`
	OrderInterval    time.Duration `yaml:"order_interval"`
}

func Default() Config {
	return Config{
		ServiceName: "fulfillment",
		Env:         "dev",
		HTTPAddr:    ":8080",
		DeliveryFee: 10,
		Carrier: CarrierConfig{
			BaseURL:       "https://apiv2.shipway.example/v1",
			PickupName:    "Primary",
			Timeout:       10 * time.Second,
			RefreshBuffer: 24 * time.Hour,
		},
		Tracking: TrackingConfig{
			Backend:   "memory",
			TTL:       5 * time.Minute,
			RedisAddr: "localhost:6379",
		},
		Sweep: SweepConfig{
			DiscountInterval: 24 * time.Hour,
			RetentionWindow:  48 * time.Hour,
			OrderInterval:    time.Hour,
		},
	}
}

// Load resolves configuration from defaults, the YAML file at path (if
// path is non-empty and the file exists), and environment variables.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// fall through to env overrides
		case err != nil:
			return cfg, fmt.Errorf("config: read %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("config: parse %s: %w", path, err)
			}
		}
	}

	cfg.applyEnv()

	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	setString(&c.ServiceName, "SERVICE_NAME")
	setString(&c.Env, "ENV")
	setString(&c.HTTPAddr, "HTTP_ADDR")
	setFloat(&c.DeliveryFee, "DELIVERY_FEE")

	setString(&c.Carrier.BaseURL, "CARRIER_BASE_URL")
	setString(&c.Carrier.Email, "CARRIER_EMAIL")
	setString(&c.Carrier.Password, "CARRIER_PASSWORD")
	setString(&c.Carrier.PickupName, "CARRIER_PICKUP_NAME")
	setDuration(&c.Carrier.Timeout, "CARRIER_TIMEOUT")
	setDuration(&c.Carrier.RefreshBuffer, "CARRIER_REFRESH_BUFFER")

	setString(&c.Tracking.Backend, "TRACKING_BACKEND")
	setDuration(&c.Tracking.TTL, "TRACKING_TTL")
	setString(&c.Tracking.RedisAddr, "TRACKING_REDIS_ADDR")

	setDuration(&c.Sweep.DiscountInterval, "DISCOUNT_SWEEP_INTERVAL")
	setDuration(&c.Sweep.RetentionWindow, "ORDER_RETENTION_WINDOW")
	setDuration(&c.Sweep.OrderInterval, "ORDER_SWEEP_INTERVAL")
}

func (c *Config) validate() error {
	if c.DeliveryFee < 0 {
		return fmt.Errorf("config: delivery fee must be zero or greater")
	}
	switch c.Tracking.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("config: unknown tracking backend %q", c.Tracking.Backend)
	}
	if c.Tracking.TTL <= 0 {
		return fmt.Errorf("config: tracking ttl must be positive")
	}
	if c.Sweep.RetentionWindow <= 0 {
		return fmt.Errorf("config: retention window must be positive")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setFloat(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
