// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package config

import (
	"errors"
	"fmt"
	"net"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/sigil-dev/chroma-go/pkg/chroma"
	chromaerr "github.com/sigil-dev/chroma-go/pkg/errors"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. CHROMA_CLIENT_HOST.
const EnvPrefix = "CHROMA"

// Config is the top-level chromactl configuration.
type Config struct {
	Client    ClientConfig    `mapstructure:"client" yaml:"client"`
	Embedding EmbeddingConfig `mapstructure:"embedding" yaml:"embedding"`
	Emulator  EmulatorConfig  `mapstructure:"emulator" yaml:"emulator"`
}

// ClientConfig describes how to reach a Chroma server.
type ClientConfig struct {
	Host             string          `mapstructure:"host" yaml:"host"`
	Port             int             `mapstructure:"port" yaml:"port"`
	SSL              bool            `mapstructure:"ssl" yaml:"ssl"`
	Tenant           string          `mapstructure:"tenant" yaml:"tenant"`
	Database         string          `mapstructure:"database" yaml:"database"`
	Token            string          `mapstructure:"token" yaml:"token,omitempty"`
	TokenHeader      string          `mapstructure:"token_header" yaml:"token_header,omitempty"`
	Timeout          time.Duration   `mapstructure:"timeout" yaml:"timeout"`
	MaxRetries       int             `mapstructure:"max_retries" yaml:"max_retries"`
	RetryBaseDelay   time.Duration   `mapstructure:"retry_base_delay" yaml:"retry_base_delay"`
	RetryMaxDelay    time.Duration   `mapstructure:"retry_max_delay" yaml:"retry_max_delay"`
	MaxConcurrency   int             `mapstructure:"max_concurrency" yaml:"max_concurrency"`
	QueryBatchSize   int             `mapstructure:"query_batch_size" yaml:"query_batch_size"`
	IdempotentDelete bool            `mapstructure:"idempotent_delete" yaml:"idempotent_delete"`
	RateLimit        RateLimitConfig `mapstructure:"rate_limit" yaml:"rate_limit"`
}

// RateLimitConfig is a token bucket: RPS tokens per second, Burst capacity.
// RPS 0 disables limiting.
type RateLimitConfig struct {
	RPS   float64 `mapstructure:"rps" yaml:"rps"`
	Burst int     `mapstructure:"burst" yaml:"burst"`
}

// EmbeddingConfig selects the embedding provider used for document text.
type EmbeddingConfig struct {
	Provider   string `mapstructure:"provider" yaml:"provider"`
	Model      string `mapstructure:"model" yaml:"model,omitempty"`
	APIKey     string `mapstructure:"api_key" yaml:"api_key,omitempty"`
	BaseURL    string `mapstructure:"base_url" yaml:"base_url,omitempty"`
	Dimensions int    `mapstructure:"dimensions" yaml:"dimensions,omitempty"`
}

// EmulatorConfig controls `chromactl serve`.
type EmulatorConfig struct {
	Listen      string          `mapstructure:"listen" yaml:"listen"`
	Backend     string          `mapstructure:"backend" yaml:"backend"`
	DataDir     string          `mapstructure:"data_dir" yaml:"data_dir,omitempty"`
	CORSOrigins []string        `mapstructure:"cors_origins" yaml:"cors_origins,omitempty"`
	AuthToken   string          `mapstructure:"auth_token" yaml:"auth_token,omitempty"`
	AllowReset  bool            `mapstructure:"allow_reset" yaml:"allow_reset"`
	RateLimit   RateLimitConfig `mapstructure:"rate_limit" yaml:"rate_limit"`
}

var (
	embeddingProviders = []string{"", "openai", "google", "gemini"}
	storageBackends    = []string{"memory", "sqlite"}
)

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("client.host", "localhost")
	v.SetDefault("client.port", 8000)
	v.SetDefault("client.ssl", false)
	v.SetDefault("client.tenant", chroma.DefaultTenant)
	v.SetDefault("client.database", chroma.DefaultDatabase)
	v.SetDefault("client.token", "")
	v.SetDefault("client.token_header", "")
	v.SetDefault("client.timeout", chroma.DefaultTimeout)
	v.SetDefault("client.max_retries", chroma.DefaultMaxAttempts-1)
	v.SetDefault("client.retry_base_delay", chroma.DefaultRetryBaseDelay)
	v.SetDefault("client.retry_max_delay", chroma.DefaultRetryMaxDelay)
	v.SetDefault("client.max_concurrency", chroma.DefaultMaxConcurrency)
	v.SetDefault("client.query_batch_size", chroma.DefaultQueryBatchSize)
	v.SetDefault("client.idempotent_delete", true)
	v.SetDefault("client.rate_limit.rps", 0)
	v.SetDefault("client.rate_limit.burst", 0)

	v.SetDefault("embedding.provider", "")
	v.SetDefault("embedding.model", "")
	v.SetDefault("embedding.api_key", "")
	v.SetDefault("embedding.base_url", "")
	v.SetDefault("embedding.dimensions", 0)

	v.SetDefault("emulator.listen", "127.0.0.1:8000")
	v.SetDefault("emulator.backend", "memory")
	v.SetDefault("emulator.data_dir", "")
	v.SetDefault("emulator.cors_origins", []string{})
	v.SetDefault("emulator.auth_token", "")
	v.SetDefault("emulator.allow_reset", false)
	v.SetDefault("emulator.rate_limit.rps", 0)
	v.SetDefault("emulator.rate_limit.burst", 0)
}

// SetupEnv binds CHROMA_* environment variables. Nested keys use
// underscores: client.rate_limit.rps becomes CHROMA_CLIENT_RATE_LIMIT_RPS.
func SetupEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// FromViper decodes and validates the configuration held by v.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, chromaerr.Errorf(chromaerr.CodeConfigParseInvalidFormat, "unmarshalling config: %w", err)
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, chromaerr.Errorf(chromaerr.CodeConfigValidateInvalidValue, "validating config: %w", errors.Join(errs...))
	}

	return &cfg, nil
}

// Load reads configuration from the given path (or defaults) with
// environment variable overrides (prefix CHROMA_).
func Load(path string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)
	SetupEnv(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, chromaerr.Errorf(chromaerr.CodeConfigLoadReadFailure, "reading config %s: %w", path, err)
		}
	}

	return FromViper(v)
}

// Endpoint renders the client base URL.
func (c ClientConfig) Endpoint() string {
	scheme := "http"
	if c.SSL {
		scheme = "https"
	}
	return scheme + "://" + net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Options converts c into client options. Token must already be resolved;
// callers pass it separately so keyring references never reach the wire.
func (c ClientConfig) Options(token string) []chroma.Option {
	opts := []chroma.Option{
		chroma.WithTenant(c.Tenant),
		chroma.WithDatabase(c.Database),
		chroma.WithTimeout(c.Timeout),
		chroma.WithRetry(c.MaxRetries+1, c.RetryBaseDelay, c.RetryMaxDelay),
		chroma.WithMaxConcurrency(c.MaxConcurrency),
		chroma.WithQueryBatchSize(c.QueryBatchSize),
		chroma.WithIdempotentDelete(c.IdempotentDelete),
	}
	if c.RateLimit.RPS > 0 {
		opts = append(opts, chroma.WithRateLimit(c.RateLimit.RPS, c.RateLimit.Burst))
	}
	if token != "" {
		opts = append(opts, chroma.WithToken(token))
		if c.TokenHeader != "" {
			opts = append(opts, chroma.WithTokenHeader(c.TokenHeader))
		}
	}
	return opts
}

// Validate checks the configuration for logical errors.
// It returns every problem found rather than stopping at the first.
func (c *Config) Validate() []error {
	var errs []error

	errs = append(errs, c.validateClient()...)
	errs = append(errs, c.validateEmbedding()...)
	errs = append(errs, c.validateEmulator()...)

	return errs
}

func invalid(format string, args ...any) error {
	return chromaerr.Errorf(chromaerr.CodeConfigValidateInvalidValue, "config: "+format, args...)
}

func (c *Config) validateClient() []error {
	var errs []error
	cc := c.Client

	if strings.TrimSpace(cc.Host) == "" {
		errs = append(errs, invalid("client.host must not be empty"))
	}
	if cc.Port < 1 || cc.Port > 65535 {
		errs = append(errs, invalid("client.port must be between 1 and 65535, got %d", cc.Port))
	}
	if cc.Tenant == "" {
		errs = append(errs, invalid("client.tenant must not be empty"))
	}
	if cc.Database == "" {
		errs = append(errs, invalid("client.database must not be empty"))
	}
	if cc.Timeout <= 0 {
		errs = append(errs, invalid("client.timeout must be greater than 0, got %s", cc.Timeout))
	}
	if cc.MaxRetries < 0 {
		errs = append(errs, invalid("client.max_retries must be >= 0, got %d", cc.MaxRetries))
	}
	if cc.RetryBaseDelay <= 0 {
		errs = append(errs, invalid("client.retry_base_delay must be greater than 0, got %s", cc.RetryBaseDelay))
	}
	if cc.RetryMaxDelay < cc.RetryBaseDelay {
		errs = append(errs, invalid("client.retry_max_delay (%s) must be >= client.retry_base_delay (%s)",
			cc.RetryMaxDelay, cc.RetryBaseDelay))
	}
	if cc.MaxConcurrency < 1 {
		errs = append(errs, invalid("client.max_concurrency must be at least 1, got %d", cc.MaxConcurrency))
	}
	if cc.QueryBatchSize < 1 {
		errs = append(errs, invalid("client.query_batch_size must be at least 1, got %d", cc.QueryBatchSize))
	}
	errs = append(errs, validateRateLimit("client.rate_limit", cc.RateLimit)...)

	return errs
}

func (c *Config) validateEmbedding() []error {
	var errs []error
	ec := c.Embedding

	if !slices.Contains(embeddingProviders, strings.ToLower(ec.Provider)) {
		errs = append(errs, invalid("embedding.provider must be one of [openai, google], got %q", ec.Provider))
	}
	if ec.Dimensions < 0 {
		errs = append(errs, invalid("embedding.dimensions must be >= 0, got %d", ec.Dimensions))
	}

	return errs
}

func (c *Config) validateEmulator() []error {
	var errs []error
	ec := c.Emulator

	if err := validateListen(ec.Listen); err != nil {
		errs = append(errs, err)
	}
	if !slices.Contains(storageBackends, ec.Backend) {
		errs = append(errs, invalid("emulator.backend must be one of %v, got %q", storageBackends, ec.Backend))
	}
	errs = append(errs, validateRateLimit("emulator.rate_limit", ec.RateLimit)...)

	return errs
}

func validateListen(listen string) error {
	if listen == "" {
		return invalid("emulator.listen must not be empty")
	}
	_, portStr, err := net.SplitHostPort(listen)
	if err != nil {
		return invalid("emulator.listen must be a valid host:port address, got %q: %w", listen, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return invalid("emulator.listen port must be a number, got %q", portStr)
	}
	// 0 asks the kernel for a free port.
	if port < 0 || port > 65535 {
		return invalid("emulator.listen port must be between 0 and 65535, got %d", port)
	}
	return nil
}

func validateRateLimit(key string, rl RateLimitConfig) []error {
	var errs []error
	if rl.RPS < 0 {
		errs = append(errs, invalid("%s.rps must be >= 0, got %g", key, rl.RPS))
	}
	if rl.Burst < 0 {
		errs = append(errs, invalid("%s.burst must be >= 0, got %d", key, rl.Burst))
	}
	if rl.RPS > 0 && rl.Burst == 0 {
		errs = append(errs, invalid("%s.burst must be at least 1 when rps is set", key))
	}
	return errs
}

// String renders a redacted one-line summary, safe for logs.
func (c ClientConfig) String() string {
	token := ""
	if c.Token != "" {
		token = " token=<redacted>"
	}
	return fmt.Sprintf("%s tenant=%s database=%s%s", c.Endpoint(), c.Tenant, c.Database, token)
}
