// Package config provides centralized configuration management for the operator console.
// Values come from environment variables, optionally backed by a config.yaml, with
// sensible defaults. Everything is validated on startup to fail fast on misconfiguration.
package config

import (
	"strconv"
	"time"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server   ServerConfig
	Backend  BackendConfig
	Upload   UploadConfig
	Session  SessionConfig
	Rate     RateLimitConfig
	Security SecurityConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout is the maximum duration for writing response (default: 60s)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"60s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// BackendConfig points at the transformation service.
type BackendConfig struct {
	// URL is the service root (default: http://localhost:8000)
	URL string `env:"BACKEND_URL" envAlt:"API_BASE_URL" default:"http://localhost:8000"`

	// Timeout bounds every backend call (default: 30s)
	Timeout time.Duration `env:"BACKEND_TIMEOUT" default:"30s"`

	// SubmitPath is the transform endpoint (default: /procesar)
	SubmitPath string `env:"BACKEND_SUBMIT_PATH" default:"/procesar"`

	// SubmitField is the multipart field carrying the file (default: file)
	SubmitField string `env:"BACKEND_SUBMIT_FIELD" default:"file"`
}

// UploadConfig holds file intake settings.
type UploadConfig struct {
	// MaxFileSize is the maximum accepted file size in bytes (default: 20MB)
	MaxFileSize int64 `env:"UPLOAD_MAX_FILE_SIZE" default:"20971520"`

	// MaxConcurrent is the maximum number of parallel submissions (default: 5)
	MaxConcurrent int `env:"UPLOAD_MAX_CONCURRENT" default:"5"`

	// MaxWaitTime is how long to wait for a submission slot (default: 30s)
	MaxWaitTime time.Duration `env:"UPLOAD_MAX_WAIT_TIME" default:"30s"`

	// AcceptedExtension is the only file extension accepted (default: .csv)
	AcceptedExtension string `env:"UPLOAD_ACCEPTED_EXTENSION" default:".csv"`

	// AcceptedMediaTypes are the media types accepted for that extension
	AcceptedMediaTypes []string `env:"UPLOAD_ACCEPTED_MEDIA_TYPES" default:"text/csv,application/csv,application/vnd.ms-excel"`
}

// SessionConfig holds operator session settings.
type SessionConfig struct {
	// TTL is how long an idle session is kept (default: 2h)
	TTL time.Duration `env:"SESSION_TTL" default:"2h"`

	// CookieName carries the session ID (default: erpload_session)
	CookieName string `env:"SESSION_COOKIE_NAME" default:"erpload_session"`

	// SweepInterval is how often expired sessions are removed (default: 5m)
	SweepInterval time.Duration `env:"SESSION_SWEEP_INTERVAL" default:"5m"`

	// SecureCookie sets the Secure flag on the session cookie (default: false)
	SecureCookie bool `env:"SESSION_SECURE_COOKIE" default:"false"`
}

// RateLimitConfig holds per-IP rate limiting settings.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the sustained rate per IP (default: 100)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`

	// Burst is how many requests may arrive at once (default: 20)
	Burst int `env:"RATE_LIMIT_BURST" default:"20"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// EnableCSP enables Content-Security-Policy headers (default: true)
	EnableCSP bool `env:"SECURITY_ENABLE_CSP" default:"true"`

	// RequireAPIKey protects the JSON API with X-API-Key (default: false)
	RequireAPIKey bool `env:"REQUIRE_API_KEY" default:"false"`

	// APIKeys is a comma-separated list of accepted API keys
	APIKeys []string `env:"API_KEYS"`

	// CORSAllowedOrigins enables CORS on the JSON API for these origins
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`

	// File receives a rotated copy of the log when set
	File string `env:"LOG_FILE"`

	// MaxSizeMB is the size at which the log file rotates (default: 50)
	MaxSizeMB int `env:"LOG_MAX_SIZE_MB" default:"50"`

	// MaxBackups is how many rotated files are kept (default: 5)
	MaxBackups int `env:"LOG_MAX_BACKUPS" default:"5"`

	// MaxAgeDays is how long rotated files are kept (default: 30)
	MaxAgeDays int `env:"LOG_MAX_AGE_DAYS" default:"30"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}
