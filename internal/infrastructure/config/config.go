package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Environment string `koanf:"environment"`
	LogLevel    string `koanf:"log_level"`

	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Redis     RedisConfig     `koanf:"redis"`
	Detection DetectionConfig `koanf:"detection"`
	Captcha   CaptchaConfig   `koanf:"captcha"`
	Alerts    AlertsConfig    `koanf:"alerts"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
}

type ServerConfig struct {
	Port            int           `koanf:"port" validate:"gt=0,lte=65535"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	RateLimit RateLimitConfig `koanf:"rate_limit"`
}

type RateLimitConfig struct {
	RequestsPerSecond float64 `koanf:"requests_per_second" validate:"gt=0"`
	BurstSize         int     `koanf:"burst_size" validate:"gt=0"`
}

type DatabaseConfig struct {
	URL             string        `koanf:"url"`
	MaxConns        int32         `koanf:"max_conns" validate:"gt=0"`
	MinConns        int32         `koanf:"min_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	QueryTimeout    time.Duration `koanf:"query_timeout" validate:"gt=0"`
}

type RedisConfig struct {
	URL      string `koanf:"url"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
}

// DetectionConfig carries the thresholds for both detection paths.
type DetectionConfig struct {
	OrderRateThreshold   int           `koanf:"order_rate_threshold" validate:"gt=0"`
	DeclineRateThreshold float64       `koanf:"decline_rate_threshold" validate:"gt=0,lte=100"`
	MinTransactionSample int           `koanf:"min_transaction_sample" validate:"gt=0"`
	BlockDuration        time.Duration `koanf:"block_duration" validate:"gt=0"`
	BatchLimit           int           `koanf:"batch_limit" validate:"gt=0"`
	ScanInterval         time.Duration `koanf:"scan_interval" validate:"gt=0"`
	WindowPolicy         string        `koanf:"window_policy" validate:"oneof=sliding_hour calendar_day"`
	Triggers             []string      `koanf:"triggers" validate:"min=1,dive,oneof=create delete_attempt"`
}

type CaptchaConfig struct {
	Endpoint      string        `koanf:"endpoint"`
	Secret        string        `koanf:"secret"`
	VerifyTimeout time.Duration `koanf:"verify_timeout" validate:"gt=0"`
	SessionSecret string        `koanf:"session_secret"`
	SessionTTL    time.Duration `koanf:"session_ttl" validate:"gt=0,lte=30m"`
}

type AlertsConfig struct {
	WebhookURL   string        `koanf:"webhook_url"`
	Recipients   []string      `koanf:"recipients"`
	SendTimeout  time.Duration `koanf:"send_timeout" validate:"gt=0"`
}

type TelemetryConfig struct {
	Enabled      bool    `koanf:"enabled"`
	OTLPEndpoint string  `koanf:"otlp_endpoint"`
	SamplingRate float64 `koanf:"sampling_rate" validate:"gte=0,lte=1"`
}

func defaults() *Config {
	return &Config{
		Environment: "development",
		LogLevel:    "info",
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			RateLimit: RateLimitConfig{
				RequestsPerSecond: 10,
				BurstSize:         20,
			},
		},
		Database: DatabaseConfig{
			MaxConns:        25,
			MinConns:        2,
			ConnMaxLifetime: 5 * time.Minute,
			QueryTimeout:    5 * time.Second,
		},
		Redis: RedisConfig{
			DB: 0,
		},
		Detection: DetectionConfig{
			OrderRateThreshold:   5,
			DeclineRateThreshold: 40,
			MinTransactionSample: 10,
			BlockDuration:        24 * time.Hour,
			BatchLimit:           1000,
			ScanInterval:         time.Hour,
			WindowPolicy:         "sliding_hour",
			Triggers:             []string{"create"},
		},
		Captcha: CaptchaConfig{
			VerifyTimeout: 5 * time.Second,
			SessionTTL:    30 * time.Minute,
		},
		Alerts: AlertsConfig{
			SendTimeout: 10 * time.Second,
		},
		Telemetry: TelemetryConfig{
			Enabled:      false,
			OTLPEndpoint: "localhost:4317",
			SamplingRate: 1.0,
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file, and
// SENTINEL_-prefixed environment variables, in ascending precedence.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaults(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	if path != "" {
		// Config file is optional; a missing file falls back to defaults.
		_ = k.Load(file.Provider(path), yaml.Parser())
	}

	if err := k.Load(env.Provider("SENTINEL_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(
			strings.TrimPrefix(s, "SENTINEL_")), "_", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("loading environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}
