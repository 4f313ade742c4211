package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// emptyDir returns a directory with no config.yaml so only env and defaults apply.
func emptyDir(t *testing.T) string {
	t.Helper()
	return t.TempDir()
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(body), 0o600); err != nil {
		t.Fatalf("write config.yaml: %v", err)
	}
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := LoadFrom(emptyDir(t))
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}

	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Server.Host = %q, want %q", cfg.Server.Host, "0.0.0.0")
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, 8080)
	}
	if cfg.Backend.URL != "http://localhost:8000" {
		t.Errorf("Backend.URL = %q, want %q", cfg.Backend.URL, "http://localhost:8000")
	}
	if cfg.Backend.SubmitPath != "/procesar" {
		t.Errorf("Backend.SubmitPath = %q, want %q", cfg.Backend.SubmitPath, "/procesar")
	}
	if cfg.Backend.SubmitField != "file" {
		t.Errorf("Backend.SubmitField = %q, want %q", cfg.Backend.SubmitField, "file")
	}
	if cfg.Upload.MaxConcurrent != 5 {
		t.Errorf("Upload.MaxConcurrent = %d, want %d", cfg.Upload.MaxConcurrent, 5)
	}
	if cfg.Upload.AcceptedExtension != ".csv" {
		t.Errorf("Upload.AcceptedExtension = %q, want %q", cfg.Upload.AcceptedExtension, ".csv")
	}
	if len(cfg.Upload.AcceptedMediaTypes) != 3 {
		t.Errorf("Upload.AcceptedMediaTypes = %v, want 3 entries", cfg.Upload.AcceptedMediaTypes)
	}
	if cfg.Session.TTL != 2*time.Hour {
		t.Errorf("Session.TTL = %v, want %v", cfg.Session.TTL, 2*time.Hour)
	}
	if cfg.Rate.RequestsPerMinute != 100 {
		t.Errorf("Rate.RequestsPerMinute = %d, want %d", cfg.Rate.RequestsPerMinute, 100)
	}
	if cfg.Security.RequireAPIKey {
		t.Error("Security.RequireAPIKey = true, want false")
	}
}

func TestLoad_OverrideDefaults(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("BACKEND_URL", "https://erp.internal:8443")
	t.Setenv("UPLOAD_MAX_CONCURRENT", "10")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := LoadFrom(emptyDir(t))
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, 9090)
	}
	if cfg.Backend.URL != "https://erp.internal:8443" {
		t.Errorf("Backend.URL = %q, want %q", cfg.Backend.URL, "https://erp.internal:8443")
	}
	if cfg.Upload.MaxConcurrent != 10 {
		t.Errorf("Upload.MaxConcurrent = %d, want %d", cfg.Upload.MaxConcurrent, 10)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "debug")
	}
}

func TestLoad_AltEnvVar(t *testing.T) {
	t.Setenv("API_BASE_URL", "http://transform:9000")

	cfg, err := LoadFrom(emptyDir(t))
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}

	if cfg.Backend.URL != "http://transform:9000" {
		t.Errorf("Backend.URL = %q, want %q", cfg.Backend.URL, "http://transform:9000")
	}
}

func TestLoad_Duration(t *testing.T) {
	t.Setenv("SERVER_READ_TIMEOUT", "45s")
	t.Setenv("UPLOAD_MAX_WAIT_TIME", "1m30s")

	cfg, err := LoadFrom(emptyDir(t))
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}

	if cfg.Server.ReadTimeout != 45*time.Second {
		t.Errorf("Server.ReadTimeout = %v, want %v", cfg.Server.ReadTimeout, 45*time.Second)
	}
	if cfg.Upload.MaxWaitTime != 90*time.Second {
		t.Errorf("Upload.MaxWaitTime = %v, want %v", cfg.Upload.MaxWaitTime, 90*time.Second)
	}
}

func TestLoad_InvalidValue(t *testing.T) {
	t.Setenv("BACKEND_TIMEOUT", "soon")

	_, err := LoadFrom(emptyDir(t))
	if err == nil {
		t.Fatal("LoadFrom() expected error for invalid duration")
	}
	if !strings.Contains(err.Error(), "BACKEND_TIMEOUT") {
		t.Errorf("error should mention BACKEND_TIMEOUT: %v", err)
	}
}

func TestLoad_CommaSeparatedSlice(t *testing.T) {
	t.Setenv("TRUSTED_PROXIES", "10.0.0.0/8, 172.16.0.0/12 , 192.168.0.0/16")

	cfg, err := LoadFrom(emptyDir(t))
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}

	expected := []string{"10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16"}
	if len(cfg.Security.TrustedProxies) != len(expected) {
		t.Fatalf("TrustedProxies length = %d, want %d", len(cfg.Security.TrustedProxies), len(expected))
	}
	for i, v := range expected {
		if cfg.Security.TrustedProxies[i] != v {
			t.Errorf("TrustedProxies[%d] = %q, want %q", i, cfg.Security.TrustedProxies[i], v)
		}
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := writeConfig(t, `
server_port: 7070
backend_url: http://from-file:8000
session_ttl: 30m
rate_limit_enabled: false
cors_allowed_origins:
  - http://localhost:5173
  - http://127.0.0.1:5173
`)

	cfg, err := LoadFrom(dir)
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}

	if cfg.Server.Port != 7070 {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, 7070)
	}
	if cfg.Backend.URL != "http://from-file:8000" {
		t.Errorf("Backend.URL = %q, want %q", cfg.Backend.URL, "http://from-file:8000")
	}
	if cfg.Session.TTL != 30*time.Minute {
		t.Errorf("Session.TTL = %v, want %v", cfg.Session.TTL, 30*time.Minute)
	}
	if cfg.Rate.Enabled {
		t.Error("Rate.Enabled = true, want false")
	}
	if got := strings.Join(cfg.Security.CORSAllowedOrigins, ","); got != "http://localhost:5173,http://127.0.0.1:5173" {
		t.Errorf("CORSAllowedOrigins = %q", got)
	}
}

func TestLoad_EnvBeatsConfigFile(t *testing.T) {
	dir := writeConfig(t, "server_port: 7070\n")
	t.Setenv("SERVER_PORT", "6060")

	cfg, err := LoadFrom(dir)
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}
	if cfg.Server.Port != 6060 {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, 6060)
	}
}

func TestLoad_ConfigPathEnv(t *testing.T) {
	dir := writeConfig(t, "log_format: json\n")
	t.Setenv("CONFIG_PATH", dir)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Logging.Format = %q, want %q", cfg.Logging.Format, "json")
	}
}

func TestLoad_BrokenConfigFile(t *testing.T) {
	dir := writeConfig(t, "server_port: [unterminated\n")

	if _, err := LoadFrom(dir); err == nil {
		t.Fatal("LoadFrom() expected error for unparsable config.yaml")
	}
}

func validConfig() *Config {
	return &Config{
		Server:  ServerConfig{Port: 8080, ShutdownTimeout: time.Second},
		Backend: BackendConfig{URL: "http://localhost:8000", Timeout: time.Second, SubmitField: "file"},
		Upload:  UploadConfig{MaxFileSize: 1, MaxConcurrent: 1, MaxWaitTime: time.Second, AcceptedExtension: ".csv"},
		Session: SessionConfig{TTL: time.Hour, SweepInterval: time.Minute, CookieName: "s"},
		Rate:    RateLimitConfig{Enabled: true, RequestsPerMinute: 100, Burst: 10},
		Logging: LoggingConfig{Level: "info", Format: "text"},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"invalid port", func(c *Config) { c.Server.Port = 99999 }, "SERVER_PORT"},
		{"relative backend URL", func(c *Config) { c.Backend.URL = "localhost:8000" }, "BACKEND_URL"},
		{"zero backend timeout", func(c *Config) { c.Backend.Timeout = 0 }, "BACKEND_TIMEOUT"},
		{"extension without dot", func(c *Config) { c.Upload.AcceptedExtension = "csv" }, "UPLOAD_ACCEPTED_EXTENSION"},
		{"zero session TTL", func(c *Config) { c.Session.TTL = 0 }, "SESSION_TTL"},
		{"api key required without keys", func(c *Config) { c.Security.RequireAPIKey = true }, "API_KEYS"},
		{"invalid log level", func(c *Config) { c.Logging.Level = "verbose" }, "LOG_LEVEL"},
		{"rate limit disabled ignores zero rpm", func(c *Config) {
			c.Rate = RateLimitConfig{Enabled: false}
		}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() expected error mentioning %s", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error should mention %s: %v", tt.wantErr, err)
			}
		})
	}
}

func TestValidate_ReportsAllFailures(t *testing.T) {
	cfg := validConfig()
	cfg.Server.Port = 0
	cfg.Logging.Format = "xml"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() expected error")
	}
	for _, want := range []string{"SERVER_PORT", "LOG_FORMAT"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error should mention %s: %v", want, err)
		}
	}
}

func TestServerAddr(t *testing.T) {
	tests := []struct {
		host string
		port int
		want string
	}{
		{"", 8080, ":8080"},
		{"0.0.0.0", 8080, "0.0.0.0:8080"},
		{"127.0.0.1", 3000, "127.0.0.1:3000"},
		{"localhost", 443, "localhost:443"},
	}

	for _, tt := range tests {
		cfg := &ServerConfig{Host: tt.host, Port: tt.port}
		got := cfg.Addr()
		if got != tt.want {
			t.Errorf("Addr() with host=%q, port=%d = %q, want %q", tt.host, tt.port, got, tt.want)
		}
	}
}

func TestConfigString_MasksAPIKeys(t *testing.T) {
	cfg := validConfig()
	cfg.Security.APIKeys = []string{"s3cret-key"}

	str := cfg.String()
	if strings.Contains(str, "s3cret-key") {
		t.Error("String() should mask API keys")
	}
	if !strings.Contains(str, "MASKED") {
		t.Error("String() should contain MASKED placeholder")
	}
}
