// Package config loads and validates service configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Admission store backends.
const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Admission  AdmissionConfig  `mapstructure:"admission"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Fetch      FetchConfig      `mapstructure:"fetch"`
	Headless   HeadlessConfig   `mapstructure:"headless"`
	Aggregate  AggregateConfig  `mapstructure:"aggregate"`
	Completion CompletionConfig `mapstructure:"completion"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port                  int    `mapstructure:"port"`
	APIPrefix             string `mapstructure:"api_prefix"`
	RequestTimeoutSeconds int    `mapstructure:"request_timeout_seconds"`
	MaxBodyBytes          int64  `mapstructure:"max_body_bytes"`
}

// AdmissionConfig sets the per-client quota on the API prefix.
type AdmissionConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	Store             string `mapstructure:"store"`
	Limit             int64  `mapstructure:"limit"`
	WindowSeconds     int    `mapstructure:"window_seconds"`
	KeyPrefix         string `mapstructure:"key_prefix"`
	FailOpen          bool   `mapstructure:"fail_open"`
	TrustForwardedFor bool   `mapstructure:"trust_forwarded_for"`
}

// RedisConfig locates the shared counter store. There is no default address.
type RedisConfig struct {
	Addr          string `mapstructure:"addr"`
	Username      string `mapstructure:"username"`
	Password      string `mapstructure:"password"`
	DB            int    `mapstructure:"db"`
	DialTimeoutMs int    `mapstructure:"dial_timeout_ms"`
	TLS           bool   `mapstructure:"tls"`
}

// FetchConfig configures the static strategy.
type FetchConfig struct {
	UserAgent      string  `mapstructure:"user_agent"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
	Selector       string  `mapstructure:"selector"`
	MaxBodyBytes   int     `mapstructure:"max_body_bytes"`
	PerHostRPS     float64 `mapstructure:"per_host_rps"`
	PerHostBurst   int     `mapstructure:"per_host_burst"`
}

// HeadlessConfig configures the dynamic strategy.
type HeadlessConfig struct {
	Enabled           bool `mapstructure:"enabled"`
	MaxParallel       int  `mapstructure:"max_parallel"`
	NavTimeoutSeconds int  `mapstructure:"nav_timeout_seconds"`
	IdleWindowMs      int  `mapstructure:"idle_window_ms"`
	IdleMaxInflight   int  `mapstructure:"idle_max_inflight"`
	NoSandbox         bool `mapstructure:"no_sandbox"`
}

// AggregateConfig bounds per-request fan-out.
type AggregateConfig struct {
	Concurrency int `mapstructure:"concurrency"`
}

// CompletionConfig selects and authenticates the model endpoint.
type CompletionConfig struct {
	Provider       string `mapstructure:"provider"`
	BaseURL        string `mapstructure:"base_url"`
	APIKey         string `mapstructure:"api_key"`
	Model          string `mapstructure:"model"`
	MaxTokens      int    `mapstructure:"max_tokens"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	SystemPrompt   string `mapstructure:"system_prompt"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SOURCECHAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// setDefaults registers every key so AutomaticEnv can override it. Secrets and
// endpoints that carry credentials get empty defaults.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.api_prefix", "/api")
	v.SetDefault("server.request_timeout_seconds", 90)
	v.SetDefault("server.max_body_bytes", 1<<20)

	v.SetDefault("admission.enabled", true)
	v.SetDefault("admission.store", StoreMemory)
	v.SetDefault("admission.limit", 5)
	v.SetDefault("admission.window_seconds", 60)
	v.SetDefault("admission.key_prefix", "rate-limit:")
	v.SetDefault("admission.fail_open", true)
	v.SetDefault("admission.trust_forwarded_for", false)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.username", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.dial_timeout_ms", 2000)
	v.SetDefault("redis.tls", false)

	v.SetDefault("fetch.user_agent", "sourcechat/0.1")
	v.SetDefault("fetch.timeout_seconds", 15)
	v.SetDefault("fetch.selector", "h1")
	v.SetDefault("fetch.max_body_bytes", 5<<20)
	v.SetDefault("fetch.per_host_rps", 0)
	v.SetDefault("fetch.per_host_burst", 1)

	v.SetDefault("headless.enabled", true)
	v.SetDefault("headless.max_parallel", 2)
	v.SetDefault("headless.nav_timeout_seconds", 30)
	v.SetDefault("headless.idle_window_ms", 500)
	v.SetDefault("headless.idle_max_inflight", 2)
	v.SetDefault("headless.no_sandbox", true)

	v.SetDefault("aggregate.concurrency", 4)

	v.SetDefault("completion.provider", "openai")
	v.SetDefault("completion.base_url", "https://api.groq.com/openai/v1")
	v.SetDefault("completion.api_key", "")
	v.SetDefault("completion.model", "llama3-8b-8192")
	v.SetDefault("completion.max_tokens", 1024)
	v.SetDefault("completion.timeout_seconds", 60)
	v.SetDefault("completion.system_prompt", "")

	v.SetDefault("logging.development", false)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 {
		errs = append(errs, errors.New("server.port must be > 0"))
	}
	if !strings.HasPrefix(c.Server.APIPrefix, "/") {
		errs = append(errs, errors.New("server.api_prefix must start with /"))
	}
	if c.Admission.Enabled {
		if c.Admission.Limit <= 0 {
			errs = append(errs, errors.New("admission.limit must be > 0"))
		}
		if c.Admission.WindowSeconds <= 0 {
			errs = append(errs, errors.New("admission.window_seconds must be > 0"))
		}
		switch c.Admission.Store {
		case StoreMemory:
		case StoreRedis:
			if c.Redis.Addr == "" {
				errs = append(errs, errors.New("redis.addr must be set when admission.store is redis"))
			}
		default:
			errs = append(errs, fmt.Errorf("admission.store must be %q or %q, got %q", StoreMemory, StoreRedis, c.Admission.Store))
		}
	}
	if c.Fetch.TimeoutSeconds <= 0 {
		errs = append(errs, errors.New("fetch.timeout_seconds must be > 0"))
	}
	if strings.TrimSpace(c.Fetch.Selector) == "" {
		errs = append(errs, errors.New("fetch.selector must be set"))
	}
	if c.Headless.Enabled && c.Headless.MaxParallel <= 0 {
		errs = append(errs, errors.New("headless.max_parallel must be > 0 when headless is enabled"))
	}
	if c.Aggregate.Concurrency < 0 {
		errs = append(errs, errors.New("aggregate.concurrency must be >= 0"))
	}
	if strings.TrimSpace(c.Completion.APIKey) == "" {
		errs = append(errs, errors.New("completion.api_key must be set"))
	}
	if strings.TrimSpace(c.Completion.Model) == "" {
		errs = append(errs, errors.New("completion.model must be set"))
	}
	switch strings.ToLower(c.Completion.Provider) {
	case "openai", "anthropic":
	default:
		errs = append(errs, fmt.Errorf("completion.provider must be openai or anthropic, got %q", c.Completion.Provider))
	}
	return errors.Join(errs...)
}

// AdmissionWindow returns the quota window as a duration.
func (c Config) AdmissionWindow() time.Duration {
	return time.Duration(c.Admission.WindowSeconds) * time.Second
}

// RequestTimeout bounds one API request.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Server.RequestTimeoutSeconds) * time.Second
}

// FetchTimeout bounds one static fetch.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.Fetch.TimeoutSeconds) * time.Second
}

// NavTimeout bounds one headless render.
func (c Config) NavTimeout() time.Duration {
	return time.Duration(c.Headless.NavTimeoutSeconds) * time.Second
}

// IdleWindow is how long the rendered page's network must stay quiet.
func (c Config) IdleWindow() time.Duration {
	return time.Duration(c.Headless.IdleWindowMs) * time.Millisecond
}

// CompletionTimeout bounds one model call.
func (c Config) CompletionTimeout() time.Duration {
	return time.Duration(c.Completion.TimeoutSeconds) * time.Second
}

// RedisDialTimeout bounds connection setup.
func (c Config) RedisDialTimeout() time.Duration {
	return time.Duration(c.Redis.DialTimeoutMs) * time.Millisecond
}
