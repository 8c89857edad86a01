// Package config loads this service's configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// EnvConfig reads environment variables under an optional prefix.
type EnvConfig struct {
	prefix string
}

// NewEnvConfig creates a new environment configuration loader.
func NewEnvConfig(prefix string) *EnvConfig {
	return &EnvConfig{prefix: prefix}
}

// GetString retrieves a string value from environment with optional default.
func (ec *EnvConfig) GetString(key, defaultValue string) string {
	if value := os.Getenv(ec.buildKey(key)); value != "" {
		return value
	}
	return defaultValue
}

// MustGetString retrieves a required string value from environment or panics.
func (ec *EnvConfig) MustGetString(key string) string {
	fullKey := ec.buildKey(key)
	value := os.Getenv(fullKey)
	if value == "" {
		panic(fmt.Sprintf("required environment variable %s not set", fullKey))
	}
	return value
}

// GetInt retrieves an integer value from environment with optional default.
func (ec *EnvConfig) GetInt(key string, defaultValue int) int {
	if value := os.Getenv(ec.buildKey(key)); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// GetBool retrieves a boolean value from environment with optional default.
func (ec *EnvConfig) GetBool(key string, defaultValue bool) bool {
	if value := os.Getenv(ec.buildKey(key)); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// GetDuration retrieves a duration value from environment with optional default.
func (ec *EnvConfig) GetDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(ec.buildKey(key)); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// GetStringSlice retrieves a comma-separated string slice from environment.
func (ec *EnvConfig) GetStringSlice(key string, defaultValue []string) []string {
	value := os.Getenv(ec.buildKey(key))
	if value == "" {
		return defaultValue
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func (ec *EnvConfig) buildKey(key string) string {
	if ec.prefix != "" {
		return ec.prefix + "_" + key
	}
	return key
}

// ServerConfig holds the HTTP server's own knobs.
type ServerConfig struct {
	Port            int
	Host            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	Debug           bool
}

// LoadServerConfig loads server configuration from environment.
func LoadServerConfig(prefix string) ServerConfig {
	env := NewEnvConfig(prefix)
	return ServerConfig{
		Port:            env.GetInt("PORT", 8080),
		Host:            env.GetString("HOST", "0.0.0.0"),
		ReadTimeout:     env.GetDuration("READ_TIMEOUT", 30*time.Second),
		WriteTimeout:    env.GetDuration("WRITE_TIMEOUT", 30*time.Second),
		ShutdownTimeout: env.GetDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		Debug:           env.GetBool("DEBUG", false),
	}
}

// TenantStoreConfig controls the per-tenant embedded-database layer.
type TenantStoreConfig struct {
	DataDir       string // root directory holding one SQLite file per tenant
	CacheSize     int    // max number of open tenant stores held in the LRU
	BusyTimeout   time.Duration
}

// LoadTenantStoreConfig loads tenant store configuration from environment.
func LoadTenantStoreConfig(prefix string) TenantStoreConfig {
	env := NewEnvConfig(prefix)
	return TenantStoreConfig{
		DataDir:     env.GetString("DATA_DIR", "./data"),
		CacheSize:   env.GetInt("TENANT_CACHE_SIZE", 128),
		BusyTimeout: env.GetDuration("BUSY_TIMEOUT", 5*time.Second),
	}
}

// CoordinationConfig points at the redis instance backing the Version
// Oracle and the Notification Bus.
type CoordinationConfig struct {
	Addr string
}

// LoadCoordinationConfig loads coordination-service configuration from environment.
func LoadCoordinationConfig(prefix string) CoordinationConfig {
	env := NewEnvConfig(prefix)
	return CoordinationConfig{
		Addr: env.GetString("REDIS_ADDR", "localhost:6379"),
	}
}

// ServiceConfig contains process-identity configuration used in logs and health checks.
type ServiceConfig struct {
	Name        string
	Version     string
	Environment string
	LogLevel    string
	LogFormat   string
}

// LoadServiceConfig loads service configuration from environment.
func LoadServiceConfig(prefix string) ServiceConfig {
	env := NewEnvConfig(prefix)
	return ServiceConfig{
		Name:        env.GetString("NAME", "deltasync"),
		Version:     env.GetString("VERSION", "0.0.1"),
		Environment: env.GetString("ENVIRONMENT", "development"),
		LogLevel:    env.GetString("LOG_LEVEL", "info"),
		LogFormat:   env.GetString("LOG_FORMAT", "text"),
	}
}

// AuthConfig contains the Identity Context's JWT configuration.
type AuthConfig struct {
	JWTSecret string
	JWTExpiry time.Duration
}

// LoadAuthConfig loads authentication configuration from environment.
func LoadAuthConfig(prefix string) AuthConfig {
	env := NewEnvConfig(prefix)
	return AuthConfig{
		JWTSecret: env.GetString("JWT_SECRET", ""),
		JWTExpiry: env.GetDuration("JWT_EXPIRY", 24*time.Hour),
	}
}

// CORSConfig contains CORS configuration.
type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
	MaxAge         time.Duration
}

// LoadCORSConfig loads CORS configuration from environment.
func LoadCORSConfig(prefix string) CORSConfig {
	env := NewEnvConfig(prefix)
	return CORSConfig{
		AllowedOrigins: env.GetStringSlice("ALLOWED_ORIGINS", []string{"*"}),
		AllowedMethods: env.GetStringSlice("ALLOWED_METHODS", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		AllowedHeaders: env.GetStringSlice("ALLOWED_HEADERS", []string{"Content-Type", "Authorization"}),
		MaxAge:         env.GetDuration("MAX_AGE", 12*time.Hour),
	}
}

// StreamConfig controls the Stream Endpoint's per-subscriber behavior.
type StreamConfig struct {
	QueueDepth int // bounded channel depth per SSE subscriber, spec default 16
}

// LoadStreamConfig loads stream configuration from environment.
func LoadStreamConfig(prefix string) StreamConfig {
	env := NewEnvConfig(prefix)
	return StreamConfig{
		QueueDepth: env.GetInt("SSE_QUEUE_DEPTH", 16),
	}
}

// Validator accumulates configuration validation errors.
type Validator struct {
	errors []string
}

// NewValidator creates a new configuration validator.
func NewValidator() *Validator {
	return &Validator{errors: make([]string, 0)}
}

// RequireString validates that a string field is not empty.
func (v *Validator) RequireString(field, value string) {
	if value == "" {
		v.errors = append(v.errors, fmt.Sprintf("%s is required", field))
	}
}

// RequirePositiveInt validates that an integer field is positive.
func (v *Validator) RequirePositiveInt(field string, value int) {
	if value <= 0 {
		v.errors = append(v.errors, fmt.Sprintf("%s must be positive", field))
	}
}

// RequireOneOf validates that a value is one of the allowed options.
func (v *Validator) RequireOneOf(field, value string, allowed []string) {
	if value == "" {
		v.errors = append(v.errors, fmt.Sprintf("%s is required", field))
		return
	}
	for _, option := range allowed {
		if value == option {
			return
		}
	}
	v.errors = append(v.errors, fmt.Sprintf("%s must be one of: %s", field, strings.Join(allowed, ", ")))
}

// IsValid returns true if there are no validation errors.
func (v *Validator) IsValid() bool {
	return len(v.errors) == 0
}

// Validate runs validation and returns an error if invalid.
func (v *Validator) Validate() error {
	if !v.IsValid() {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(v.errors, "; "))
	}
	return nil
}

// AllConfig aggregates every configuration section the service needs to boot.
type AllConfig struct {
	Server       ServerConfig
	TenantStore  TenantStoreConfig
	Coordination CoordinationConfig
	Service      ServiceConfig
	Auth         AuthConfig
	CORS         CORSConfig
	Stream       StreamConfig
}

// Load reads and validates every configuration section from the environment.
// prefix is typically empty; it exists so tests can load an isolated namespace.
func Load(prefix string) (*AllConfig, error) {
	cfg := &AllConfig{
		Server:       LoadServerConfig(prefix),
		TenantStore:  LoadTenantStoreConfig(prefix),
		Coordination: LoadCoordinationConfig(prefix),
		Service:      LoadServiceConfig(prefix),
		Auth:         LoadAuthConfig(prefix),
		CORS:         LoadCORSConfig(prefix),
		Stream:       LoadStreamConfig(prefix),
	}

	v := NewValidator()
	v.RequireOneOf("Service.Environment", cfg.Service.Environment,
		[]string{"development", "staging", "production"})
	v.RequireOneOf("Service.LogLevel", cfg.Service.LogLevel,
		[]string{"debug", "info", "warn", "error"})
	v.RequirePositiveInt("Server.Port", cfg.Server.Port)
	v.RequireString("Auth.JWTSecret", cfg.Auth.JWTSecret)
	v.RequirePositiveInt("TenantStore.CacheSize", cfg.TenantStore.CacheSize)
	v.RequirePositiveInt("Stream.QueueDepth", cfg.Stream.QueueDepth)
	if err := v.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}
