package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	// Server config
	Server ServerConfig `yaml:"server"`

	// CSRF and CORS config
	Security SecurityConfig `yaml:"security"`

	// Generative model config
	Model ModelConfig `yaml:"model"`

	// upload limits
	Limits LimitsConfig `yaml:"limits"`

	Log LogConfig `yaml:"log"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Address         string        `yaml:"address"`
	Environment     string        `yaml:"environment"` // development, staging, production
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	CSRFKey            string   `yaml:"csrf_key"`
	CSRFSecure         bool     `yaml:"csrf_secure"`
	CSRFTrustedOrigins []string `yaml:"csrf_trusted_origins"`
	CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`
}

// ModelConfig describes the external generative model. The API key is not
// part of it: every user supplies their own per request.
type ModelConfig struct {
	BaseURL     string        `yaml:"base_url"`
	Default     string        `yaml:"default"`
	Allowed     []string      `yaml:"allowed"`
	Timeout     time.Duration `yaml:"timeout"`
	Temperature float32       `yaml:"temperature"`
}

// LimitsConfig holds upload limits.
type LimitsConfig struct {
	MaxUploadBytes int64 `yaml:"max_upload_bytes"`
	MaxImageEdge   int   `yaml:"max_image_edge"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json or text
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Server.Environment == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Address:         ":8080",
			Environment:     "development",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    90 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Model: ModelConfig{
			BaseURL:     "https://generativelanguage.googleapis.com/v1beta/openai",
			Default:     "gemini-2.5-flash",
			Allowed:     []string{"gemini-2.5-flash", "gemini-2.5-pro"},
			Timeout:     60 * time.Second,
			Temperature: 0.4,
		},
		Limits: LimitsConfig{
			MaxUploadBytes: 10 << 20,
			MaxImageEdge:   2048,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads .env (if present), then the YAML file named by CONFIG_PATH (if
// set), then environment variables, in increasing precedence.
func Load() (*Config, error) {
	// .env is a local development convenience; missing is fine
	_ = godotenv.Load()

	cfg := Default()

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if cfg.Security.CSRFKey == "" && cfg.IsDevelopment() {
		key, err := randomKey()
		if err != nil {
			return nil, err
		}
		cfg.Security.CSRFKey = key
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	var errs []error

	c.Server.Address = getEnvOrDefault("SERVER_ADDRESS", c.Server.Address)
	c.Server.Environment = getEnvOrDefault("APP_ENV", c.Server.Environment)
	c.Server.ReadTimeout = getDuration("SERVER_READ_TIMEOUT", c.Server.ReadTimeout, &errs)
	c.Server.WriteTimeout = getDuration("SERVER_WRITE_TIMEOUT", c.Server.WriteTimeout, &errs)
	c.Server.IdleTimeout = getDuration("SERVER_IDLE_TIMEOUT", c.Server.IdleTimeout, &errs)
	c.Server.ShutdownTimeout = getDuration("SHUTDOWN_TIMEOUT", c.Server.ShutdownTimeout, &errs)

	c.Security.CSRFKey = getEnvOrDefault("CSRF_KEY", c.Security.CSRFKey)
	if v := os.Getenv("CSRF_SECURE"); v != "" {
		secure, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid CSRF_SECURE: %w", err))
		}
		c.Security.CSRFSecure = secure
	}
	c.Security.CSRFTrustedOrigins = getList("CSRF_TRUSTED_ORIGINS", c.Security.CSRFTrustedOrigins)
	c.Security.CORSAllowedOrigins = getList("CORS_ALLOWED_ORIGINS", c.Security.CORSAllowedOrigins)

	c.Model.BaseURL = getEnvOrDefault("MODEL_BASE_URL", c.Model.BaseURL)
	c.Model.Default = getEnvOrDefault("MODEL_DEFAULT", c.Model.Default)
	c.Model.Allowed = getList("MODEL_ALLOWED", c.Model.Allowed)
	c.Model.Timeout = getDuration("MODEL_TIMEOUT", c.Model.Timeout, &errs)
	if v := os.Getenv("MODEL_TEMPERATURE"); v != "" {
		temp, err := strconv.ParseFloat(v, 32)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid MODEL_TEMPERATURE: %w", err))
		}
		c.Model.Temperature = float32(temp)
	}

	if v := os.Getenv("MAX_UPLOAD_BYTES"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid MAX_UPLOAD_BYTES: %w", err))
		}
		c.Limits.MaxUploadBytes = n
	}
	if v := os.Getenv("MAX_IMAGE_EDGE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid MAX_IMAGE_EDGE: %w", err))
		}
		c.Limits.MaxImageEdge = n
	}

	c.Log.Level = getEnvOrDefault("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnvOrDefault("LOG_FORMAT", c.Log.Format)

	return errors.Join(errs...)
}

// validate checks that all required configuration is present and valid.
func (c *Config) validate() error {
	var errs []error

	if c.Server.Address == "" {
		errs = append(errs, errors.New("SERVER_ADDRESS is required"))
	}

	// CSRF key must be set and sufficiently long
	if c.Security.CSRFKey == "" {
		errs = append(errs, errors.New("CSRF_KEY is required"))
	} else if len(c.Security.CSRFKey) < 32 {
		errs = append(errs, errors.New("CSRF_KEY must be at least 32 characters"))
	}

	if c.Model.BaseURL == "" {
		errs = append(errs, errors.New("MODEL_BASE_URL is required"))
	}
	if c.Model.Default == "" {
		errs = append(errs, errors.New("MODEL_DEFAULT is required"))
	} else if !contains(c.Model.Allowed, c.Model.Default) {
		errs = append(errs, fmt.Errorf("MODEL_DEFAULT %q is not in MODEL_ALLOWED", c.Model.Default))
	}
	if c.Model.Timeout <= 0 {
		errs = append(errs, errors.New("MODEL_TIMEOUT must be positive"))
	}
	if c.Model.Temperature < 0 || c.Model.Temperature > 2 {
		errs = append(errs, errors.New("MODEL_TEMPERATURE must be between 0 and 2"))
	}

	if c.Limits.MaxUploadBytes <= 0 {
		errs = append(errs, errors.New("MAX_UPLOAD_BYTES must be positive"))
	}
	if c.Limits.MaxImageEdge < 64 {
		errs = append(errs, errors.New("MAX_IMAGE_EDGE must be at least 64"))
	}

	// Validate environment is a known value
	validEnvs := map[string]bool{
		"development": true,
		"staging":     true,
		"production":  true,
	}
	if !validEnvs[c.Server.Environment] {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of: development, staging, production (got: %s)", c.Server.Environment))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n%w", errors.Join(errs...))
	}

	return nil
}

// getEnvOrDefault returns the env value or a default.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration, errs *[]error) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
		return defaultValue
	}
	return d
}

// getList splits a comma or space separated variable.
func getList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return strings.FieldsFunc(value, func(r rune) bool {
		return r == ',' || r == ' '
	})
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

func randomKey() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate csrf key: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// MustLoad is like Load but panics on error.
// Used in main() where its required to fail fast
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}
