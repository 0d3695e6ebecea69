package config

import (
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the configuration settings for the coordinate translation service.
//
// Fields:
// - Env: The current environment (e.g., local, development, production).
// - Port: The port the HTTP server listens on.
// - Provider: Which mapping API to call and how.
// - Workers: The batch concurrency limit.
// - Limits: Upload and input size limits.
// - CORSOrigins: Allowed browser origins.
// - StaticDir: Built frontend served on unmatched routes, disabled when empty.
// - ShutdownTimeout: Grace period for in-flight requests on shutdown.
type Config struct {
	Env             string         `mapstructure:"env"`
	Port            int            `mapstructure:"port"`
	Provider        ProviderConfig `mapstructure:"provider"`
	Workers         int            `mapstructure:"workers"`
	Limits          Limits         `mapstructure:"limits"`
	CORSOrigins     []string       `mapstructure:"cors_origins"`
	StaticDir       string         `mapstructure:"static_dir"`
	ShutdownTimeout time.Duration  `mapstructure:"shutdown_timeout"`
}

// ProviderConfig describes the upstream mapping API.
type ProviderConfig struct {
	Type       string        `mapstructure:"type"`        // amap, google or nominatim
	APIKey     string        `mapstructure:"key"`         // required by amap and google
	BaseURL    string        `mapstructure:"url"`         // overrides the provider endpoint
	RateLimit  int           `mapstructure:"rate_limit"`  // requests per second, 0 = unlimited
	Timeout    time.Duration `mapstructure:"timeout"`     // per attempt
	RetryDelay time.Duration `mapstructure:"retry_delay"` // pause before the single retry
}

// Limits bounds what a single request may ask for.
type Limits struct {
	MaxBatchRows     int   `mapstructure:"max_batch_rows"`
	MaxUploadSize    int64 `mapstructure:"max_upload_size"`
	MaxAddressLength int   `mapstructure:"max_address_length"`
	MaxCityLength    int   `mapstructure:"max_city_length"`
}

// MustLoad reads the configuration from the environment (and an optional .env file).
// It panics when a value cannot be parsed.
func MustLoad() *Config {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("COORDTRANS")
	v.AutomaticEnv()

	v.SetDefault("env", "production")
	v.SetDefault("port", "8000")
	v.SetDefault("provider_type", "amap")
	v.SetDefault("request_timeout", "10s")
	v.SetDefault("retry_delay", "500ms")
	v.SetDefault("rate_limit", "0")
	v.SetDefault("workers", "10")
	v.SetDefault("max_batch_rows", "1000")
	v.SetDefault("max_upload_size", "10485760")
	v.SetDefault("max_address_length", "200")
	v.SetDefault("max_city_length", "50")
	v.SetDefault("cors_origins", "*")
	v.SetDefault("shutdown_timeout", "10s")

	// Older deployments export a bare AMAP_KEY.
	_ = v.BindEnv("provider_key", "COORDTRANS_PROVIDER_KEY", "AMAP_KEY")

	port := mustInt(v, "port", "failed to parse port for server from configuration")
	if port <= 0 || port > 65535 {
		panic("port must be between 1 and 65535")
	}

	workers := mustInt(v, "workers", "failed to parse workers from configuration, must be an integer types")
	if workers < 1 {
		panic("workers must be at least 1")
	}

	maxUpload, err := strconv.ParseInt(v.GetString("max_upload_size"), 10, 64)
	if err != nil || maxUpload <= 0 {
		panic("failed to parse max upload size from configuration")
	}

	return &Config{
		Env:  v.GetString("env"),
		Port: port,
		Provider: ProviderConfig{
			Type:       strings.ToLower(v.GetString("provider_type")),
			APIKey:     v.GetString("provider_key"),
			BaseURL:    v.GetString("provider_url"),
			RateLimit:  mustInt(v, "rate_limit", "failed to parse rate limit from configuration"),
			Timeout:    mustDuration(v, "request_timeout", "failed to parse request timeout from configuration"),
			RetryDelay: mustDuration(v, "retry_delay", "failed to parse retry delay from configuration"),
		},
		Workers: workers,
		Limits: Limits{
			MaxBatchRows:     mustInt(v, "max_batch_rows", "failed to parse max batch rows from configuration"),
			MaxUploadSize:    maxUpload,
			MaxAddressLength: mustInt(v, "max_address_length", "failed to parse max address length from configuration"),
			MaxCityLength:    mustInt(v, "max_city_length", "failed to parse max city length from configuration"),
		},
		CORSOrigins:     splitList(v.GetString("cors_origins")),
		StaticDir:       v.GetString("static_dir"),
		ShutdownTimeout: mustDuration(v, "shutdown_timeout", "failed to parse shutdown timeout from configuration"),
	}
}

func mustInt(v *viper.Viper, key, msg string) int {
	value, err := strconv.Atoi(strings.TrimSpace(v.GetString(key)))
	if err != nil {
		panic(msg)
	}

	return value
}

func mustDuration(v *viper.Viper, key, msg string) time.Duration {
	value, err := time.ParseDuration(strings.TrimSpace(v.GetString(key)))
	if err != nil {
		panic(msg)
	}

	return value
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}

	return out
}
