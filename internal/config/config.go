// Package config provides application configuration with multi-source
// priority: environment variables override the config file, which
// overrides built-in defaults.
//
// Sensitive values (database password, image API key) are masked in
// MarshalJSON so a dumped config never leaks credentials.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Sentinel validation errors.
var (
	ErrConfigNil            = errors.New("configuration is nil")
	ErrInvalidListenAddr    = errors.New("invalid listen address")
	ErrInvalidPostgresHost  = errors.New("invalid PostgreSQL host")
	ErrInvalidPostgresPort  = errors.New("invalid PostgreSQL port")
	ErrInvalidPostgresDB    = errors.New("invalid PostgreSQL database name")
	ErrInvalidStreamTimeout = errors.New("invalid stream timeout")
	ErrInvalidBlobThreshold = errors.New("invalid blob inline threshold")
	ErrInvalidBlobDriver    = errors.New("invalid blob driver")
	ErrInvalidTierCap       = errors.New("invalid tier message cap")
)

// Defaults.
const (
	DefaultListenAddr      = "127.0.0.1:8080"
	DefaultStreamTimeout   = 60 * time.Second
	DefaultBlobThreshold   = 64 * 1024 // bytes stored inline before spilling to the blob store
	DefaultMaxUploadBytes  = 50 * 1024 * 1024
	DefaultRateBurst       = 60
	DefaultImageModel      = "black-forest-labs/FLUX.1-schnell-Free"
	DefaultImageAPIBaseURL = "https://api.together.xyz/v1"
)

// Blob driver identifiers used in Config.Blob.Driver.
const (
	BlobDriverGCS    = "gcs"
	BlobDriverMemory = "memory"
)

// Tier holds the entitlement values for one caller tier.
type Tier struct {
	MaxMessagesPerDay int      `mapstructure:"max_messages_per_day" json:"max_messages_per_day"`
	ChatModels        []string `mapstructure:"chat_models" json:"chat_models"`
}

// Postgres holds database connection settings.
type Postgres struct {
	Host     string `mapstructure:"host" json:"host"`
	Port     int    `mapstructure:"port" json:"port"`
	User     string `mapstructure:"user" json:"user"`
	Password string `mapstructure:"password" json:"-"`
	DBName   string `mapstructure:"dbname" json:"dbname"`
	SSLMode  string `mapstructure:"sslmode" json:"sslmode"`
}

// URL returns the postgres:// connection URL.
func (p Postgres) URL() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(p.User, p.Password),
		Host:   fmt.Sprintf("%s:%d", p.Host, p.Port),
		Path:   "/" + p.DBName,
	}
	q := url.Values{}
	if p.SSLMode != "" {
		q.Set("sslmode", p.SSLMode)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// Blob holds blob store settings.
type Blob struct {
	Driver          string `mapstructure:"driver" json:"driver"` // "gcs" or "memory"
	Bucket          string `mapstructure:"bucket" json:"bucket"`
	InlineThreshold int    `mapstructure:"inline_threshold" json:"inline_threshold"`
	MaxUploadBytes  int64  `mapstructure:"max_upload_bytes" json:"max_upload_bytes"`
}

// Image holds settings for the external image-generation model.
// The endpoint speaks the OpenAI images API (base64 responses).
type Image struct {
	APIBaseURL string `mapstructure:"api_base_url" json:"api_base_url"`
	APIKey     string `mapstructure:"api_key" json:"-"`
	Model      string `mapstructure:"model" json:"model"`
}

// Config stores the application configuration.
type Config struct {
	ListenAddr    string          `mapstructure:"listen_addr" json:"listen_addr"`
	TrustProxy    bool            `mapstructure:"trust_proxy" json:"trust_proxy"`
	RateBurst     int             `mapstructure:"rate_burst" json:"rate_burst"`
	StreamTimeout time.Duration   `mapstructure:"stream_timeout" json:"stream_timeout"`
	LogJSON       bool            `mapstructure:"log_json" json:"log_json"`
	Postgres      Postgres        `mapstructure:"postgres" json:"postgres"`
	Blob          Blob            `mapstructure:"blob" json:"blob"`
	Image         Image           `mapstructure:"image" json:"image"`
	Tiers         map[string]Tier `mapstructure:"tiers" json:"tiers"`
}

// MarshalJSON masks sensitive fields.
func (c *Config) MarshalJSON() ([]byte, error) {
	type alias Config // avoid recursion
	cp := *c
	cp.Postgres.Password = masked(c.Postgres.Password)
	cp.Image.APIKey = masked(c.Image.APIKey)
	return json.Marshal((*alias)(&cp))
}

func masked(s string) string {
	if s == "" {
		return ""
	}
	return "****"
}

// Load reads configuration from defaults, an optional config file
// (./parley.yaml or /etc/parley/parley.yaml) and PARLEY_* environment
// variables, in ascending priority.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("listen_addr", DefaultListenAddr)
	v.SetDefault("trust_proxy", false)
	v.SetDefault("rate_burst", DefaultRateBurst)
	v.SetDefault("stream_timeout", DefaultStreamTimeout)
	v.SetDefault("log_json", false)
	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "parley")
	v.SetDefault("postgres.dbname", "parley")
	v.SetDefault("postgres.sslmode", "disable")
	v.SetDefault("blob.driver", BlobDriverMemory)
	v.SetDefault("blob.inline_threshold", DefaultBlobThreshold)
	v.SetDefault("blob.max_upload_bytes", DefaultMaxUploadBytes)
	v.SetDefault("image.api_base_url", DefaultImageAPIBaseURL)
	v.SetDefault("image.model", DefaultImageModel)

	v.SetConfigName("parley")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/parley")

	v.SetEnvPrefix("PARLEY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Missing file is fine; defaults and env cover everything.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}

// Validate checks configuration invariants needed to serve requests.
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}
	if c.ListenAddr == "" {
		return ErrInvalidListenAddr
	}
	if c.Postgres.Host == "" {
		return ErrInvalidPostgresHost
	}
	if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPostgresPort, c.Postgres.Port)
	}
	if c.Postgres.DBName == "" {
		return ErrInvalidPostgresDB
	}
	if c.StreamTimeout <= 0 {
		return fmt.Errorf("%w: %s", ErrInvalidStreamTimeout, c.StreamTimeout)
	}
	if c.Blob.InlineThreshold <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidBlobThreshold, c.Blob.InlineThreshold)
	}
	switch c.Blob.Driver {
	case BlobDriverGCS, BlobDriverMemory:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidBlobDriver, c.Blob.Driver)
	}
	for name, tier := range c.Tiers {
		if tier.MaxMessagesPerDay < 0 {
			return fmt.Errorf("%w: tier %q", ErrInvalidTierCap, name)
		}
	}
	return nil
}
