// Package conf provides configuration management using Viper.
// It supports loading configuration from YAML files and environment variables,
// with CLI flag overrides.
package conf

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Bootstrap is the root configuration for the service.
type Bootstrap struct {
	Server    *Server
	Data      *Data
	Upstream  *Upstream
	RateLimit *RateLimit
	Breaker   *Breaker
	Auth      *Auth
	Log       *Log
}

// Server holds transport server configuration.
type Server struct {
	HTTP *HTTPServer
}

// HTTPServer holds the HTTP listener configuration.
type HTTPServer struct {
	Network string
	Addr    string
	Timeout time.Duration
}

// Data holds storage backend configuration.
type Data struct {
	Database *Database
	Redis    *Redis
}

// Database holds the MySQL connection configuration.
type Database struct {
	Driver string
	Source string
}

// Redis holds the Redis connection configuration.
type Redis struct {
	Network      string
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Upstream holds configuration for external collaborators.
type Upstream struct {
	OAuth *OAuth
	API   *API
}

// OAuth holds the credential provider configuration.
type OAuth struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	// LockTTL bounds how long a crashed refresher can hold the refresh lock.
	LockTTL time.Duration
	// RetryDelay is the wait between lock-acquisition attempts.
	RetryDelay time.Duration
	// SafetyMargin is subtracted from the token lifetime when caching.
	SafetyMargin time.Duration
}

// API holds the upstream data provider configuration.
type API struct {
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
}

// RateLimit holds the fixed-window rate limiter configuration.
type RateLimit struct {
	Window      time.Duration
	MaxRequests int
}

// Breaker holds the circuit breaker thresholds.
type Breaker struct {
	FailureThreshold int
	SuccessThreshold int
	Timeout          time.Duration
}

// Auth holds security-related configuration.
type Auth struct {
	Encryption *Encryption
}

// Encryption holds the at-rest encryption key for cached credentials.
type Encryption struct {
	Key string
}

// Log holds logging configuration.
type Log struct {
	Level      string
	Format     string
	Env        string
	OutputFile string
}

// NewBootstrap creates and initializes a Bootstrap configuration.
// It loads configuration from the specified config file path, applies defaults,
// and allows overrides from environment variables prefixed with FARMLOKAL_.
//
// Configuration priority: CLI flags > Environment variables > Config file > Defaults
//
// Required environment variables:
//   - MYSQL_DSN or FARMLOKAL_DATA_DATABASE_SOURCE: MySQL connection string
func NewBootstrap(configPath string) (*Bootstrap, error) {
	v := viper.New()

	setDefaults(v)

	// Enable environment variable support with FARMLOKAL_ prefix
	v.SetEnvPrefix("FARMLOKAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Allow direct environment variable names (without FARMLOKAL_ prefix) for compatibility
	_ = v.BindEnv("data.database.source", "MYSQL_DSN", "FARMLOKAL_DATA_DATABASE_SOURCE")
	_ = v.BindEnv("data.redis.addr", "REDIS_ADDR", "FARMLOKAL_DATA_REDIS_ADDR")
	_ = v.BindEnv("upstream.oauth.token_url", "OAUTH_TOKEN_URL", "FARMLOKAL_UPSTREAM_OAUTH_TOKEN_URL")
	_ = v.BindEnv("upstream.oauth.client_id", "OAUTH_CLIENT_ID", "FARMLOKAL_UPSTREAM_OAUTH_CLIENT_ID")
	_ = v.BindEnv("upstream.oauth.client_secret", "OAUTH_CLIENT_SECRET", "FARMLOKAL_UPSTREAM_OAUTH_CLIENT_SECRET")
	_ = v.BindEnv("upstream.api.base_url", "API_A_BASE_URL", "FARMLOKAL_UPSTREAM_API_BASE_URL")
	_ = v.BindEnv("auth.encryption.key", "ENCRYPTION_KEY", "FARMLOKAL_AUTH_ENCRYPTION_KEY")

	// Load configuration file
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
		}
	}

	bc := &Bootstrap{
		Server: &Server{
			HTTP: &HTTPServer{
				Network: v.GetString("server.http.network"),
				Addr:    v.GetString("server.http.addr"),
				Timeout: v.GetDuration("server.http.timeout"),
			},
		},
		Data: &Data{
			Database: &Database{
				Driver: v.GetString("data.database.driver"),
				Source: v.GetString("data.database.source"),
			},
			Redis: &Redis{
				Network:      v.GetString("data.redis.network"),
				Addr:         v.GetString("data.redis.addr"),
				ReadTimeout:  v.GetDuration("data.redis.read_timeout"),
				WriteTimeout: v.GetDuration("data.redis.write_timeout"),
			},
		},
		Upstream: &Upstream{
			OAuth: &OAuth{
				TokenURL:     v.GetString("upstream.oauth.token_url"),
				ClientID:     v.GetString("upstream.oauth.client_id"),
				ClientSecret: v.GetString("upstream.oauth.client_secret"),
				LockTTL:      v.GetDuration("upstream.oauth.lock_ttl"),
				RetryDelay:   v.GetDuration("upstream.oauth.retry_delay"),
				SafetyMargin: v.GetDuration("upstream.oauth.safety_margin"),
			},
			API: &API{
				BaseURL:    v.GetString("upstream.api.base_url"),
				Timeout:    v.GetDuration("upstream.api.timeout"),
				MaxRetries: v.GetInt("upstream.api.max_retries"),
			},
		},
		RateLimit: &RateLimit{
			Window:      v.GetDuration("rate_limit.window"),
			MaxRequests: v.GetInt("rate_limit.max_requests"),
		},
		Breaker: &Breaker{
			FailureThreshold: v.GetInt("breaker.failure_threshold"),
			SuccessThreshold: v.GetInt("breaker.success_threshold"),
			Timeout:          v.GetDuration("breaker.timeout"),
		},
		Auth: &Auth{
			Encryption: &Encryption{
				Key: v.GetString("auth.encryption.key"),
			},
		},
		Log: &Log{
			Level:      v.GetString("log.level"),
			Format:     v.GetString("log.format"),
			Env:        v.GetString("log.env"),
			OutputFile: v.GetString("log.output_file"),
		},
	}

	if err := Validate(bc); err != nil {
		return nil, err
	}

	return bc, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.http.network", "tcp")
	v.SetDefault("server.http.addr", ":8080")
	v.SetDefault("server.http.timeout", 30*time.Second)

	// Data defaults
	v.SetDefault("data.database.driver", "mysql")
	// Note: data.database.source (MYSQL_DSN) is required from environment

	v.SetDefault("data.redis.network", "tcp")
	v.SetDefault("data.redis.addr", "127.0.0.1:6379")
	v.SetDefault("data.redis.read_timeout", 200*time.Millisecond)
	v.SetDefault("data.redis.write_timeout", 200*time.Millisecond)

	// Upstream defaults
	v.SetDefault("upstream.oauth.lock_ttl", 5*time.Second)
	v.SetDefault("upstream.oauth.retry_delay", 100*time.Millisecond)
	v.SetDefault("upstream.oauth.safety_margin", 60*time.Second)
	v.SetDefault("upstream.api.timeout", 5*time.Second)
	v.SetDefault("upstream.api.max_retries", 3)

	// Rate limiter defaults: 100 requests per minute
	v.SetDefault("rate_limit.window", time.Minute)
	v.SetDefault("rate_limit.max_requests", 100)

	// Breaker defaults
	v.SetDefault("breaker.failure_threshold", 5)
	v.SetDefault("breaker.success_threshold", 2)
	v.SetDefault("breaker.timeout", 30*time.Second)

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Validate checks that all required configuration fields are present and valid.
// It returns an error listing all missing required fields.
func Validate(bc *Bootstrap) error {
	var missingFields []string

	if bc.Data == nil || bc.Data.Database == nil || bc.Data.Database.Source == "" {
		missingFields = append(missingFields, "data.database.source (MYSQL_DSN)")
	}

	if len(missingFields) > 0 {
		return fmt.Errorf("missing required configuration fields: %s", strings.Join(missingFields, ", "))
	}

	if bc.RateLimit != nil && bc.RateLimit.MaxRequests < 0 {
		return fmt.Errorf("rate_limit.max_requests must not be negative")
	}

	if bc.Auth != nil && bc.Auth.Encryption != nil && bc.Auth.Encryption.Key != "" && len(bc.Auth.Encryption.Key) != 32 {
		return fmt.Errorf("auth.encryption.key must be 32 bytes, got %d", len(bc.Auth.Encryption.Key))
	}

	return nil
}
