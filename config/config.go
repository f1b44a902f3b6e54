// Package config provides configuration loading and management for RoleFit.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/c360studio/rolefit/llm"
	_ "github.com/c360studio/rolefit/llm/providers"
	"github.com/c360studio/rolefit/model"
	"github.com/c360studio/rolefit/recorder"
	"github.com/c360studio/rolefit/session"
	"gopkg.in/yaml.v3"
)

// Config represents the complete RoleFit configuration
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Model      ModelConfig      `yaml:"model"`
	Assessment AssessmentConfig `yaml:"assessment"`
	Session    SessionConfig    `yaml:"session"`
	NATS       NATSConfig       `yaml:"nats"`
	Log        LogConfig        `yaml:"log"`
}

// ServerConfig configures the HTTP server
type ServerConfig struct {
	// Addr is the listen address (default: :8080)
	Addr            string          `yaml:"addr"`
	ReadTimeout     time.Duration   `yaml:"read_timeout"`
	WriteTimeout    time.Duration   `yaml:"write_timeout"`
	ShutdownTimeout time.Duration   `yaml:"shutdown_timeout"`
	RateLimit       RateLimitConfig `yaml:"rate_limit"`
}

// RateLimitConfig limits the generation endpoints. RPS 0 disables limiting.
type RateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

// ModelConfig configures the LLM used for both questions and suggestions
type ModelConfig struct {
	// Provider is the wire adapter: openai, ollama or anthropic (default: openai)
	Provider string `yaml:"provider"`
	// Endpoint is the API base URL (empty = provider default)
	Endpoint string `yaml:"endpoint"`
	// Name is the model identifier (default: gpt-4o-mini)
	Name string `yaml:"name"`
	// Temperature controls randomness (0.0-2.0, default: 0.7)
	Temperature float64 `yaml:"temperature"`
	// MaxTokens caps completion length (0 = provider default)
	MaxTokens int `yaml:"max_tokens"`
	// Timeout is the maximum time to wait for a question
	Timeout time.Duration `yaml:"timeout"`
	// MaxAttempts is how often one endpoint is tried before falling back.
	// 1 means no retry.
	MaxAttempts int `yaml:"max_attempts"`
	// Fallback models are tried in order when the primary fails
	Fallback []FallbackModel `yaml:"fallback"`
	// FailureThreshold is how many consecutive failures take an endpoint
	// out of rotation (default: 3)
	FailureThreshold int `yaml:"failure_threshold"`
	// RecoveryTimeout is how long a failed endpoint stays out (default: 30s)
	RecoveryTimeout time.Duration `yaml:"recovery_timeout"`
}

// FallbackModel is one backup endpoint
type FallbackModel struct {
	Provider string `yaml:"provider"`
	Endpoint string `yaml:"endpoint"`
	Name     string `yaml:"name"`
}

// AssessmentConfig configures the questionnaire flow
type AssessmentConfig struct {
	SuggestionDelay    time.Duration `yaml:"suggestion_delay"`
	MinSuggestionInput int           `yaml:"min_suggestion_input"`
	MaxSuggestions     int           `yaml:"max_suggestions"`
	SuggestionTimeout  time.Duration `yaml:"suggestion_timeout"`
}

// SessionConfig configures server-hosted sessions
type SessionConfig struct {
	IdleTimeout   time.Duration `yaml:"idle_timeout"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// NATSConfig configures result recording (empty URL = recording disabled)
type NATSConfig struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

// LogConfig configures logging
type LogConfig struct {
	// Level is debug, info, warn or error
	Level string `yaml:"level"`
	// Format is text or json
	Format string `yaml:"format"`
	// File additionally writes logs to a rotated file when set
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    90 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Model: ModelConfig{
			Provider:    "openai",
			Name:        "gpt-4o-mini",
			Temperature: 0.7,
			Timeout:     60 * time.Second,
			MaxAttempts: 1,

			FailureThreshold: 3,
			RecoveryTimeout:  30 * time.Second,
		},
		Assessment: AssessmentConfig{
			SuggestionDelay:    session.DefaultSuggestionDelay,
			MinSuggestionInput: 2,
			MaxSuggestions:     5,
			SuggestionTimeout:  15 * time.Second,
		},
		Session: SessionConfig{
			IdleTimeout:   session.DefaultIdleTimeout,
			SweepInterval: time.Minute,
		},
		NATS: NATSConfig{
			Subject: recorder.DefaultSubject,
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "text",
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if c.Server.RateLimit.RPS < 0 {
		errs = append(errs, errors.New("server.rate_limit.rps must not be negative"))
	}
	if c.Model.Name == "" {
		errs = append(errs, errors.New("model.name is required"))
	}
	if err := validateProvider("model.provider", c.Model.Provider); err != nil {
		errs = append(errs, err)
	}
	for i, fb := range c.Model.Fallback {
		if fb.Name == "" {
			errs = append(errs, fmt.Errorf("model.fallback[%d].name is required", i))
		}
		if err := validateProvider(fmt.Sprintf("model.fallback[%d].provider", i), fb.Provider); err != nil {
			errs = append(errs, err)
		}
	}
	if c.Model.Temperature < 0 || c.Model.Temperature > 2 {
		errs = append(errs, errors.New("model.temperature must be between 0 and 2"))
	}
	if c.Model.MaxAttempts < 1 {
		errs = append(errs, errors.New("model.max_attempts must be at least 1"))
	}
	if c.Model.FailureThreshold < 1 {
		errs = append(errs, errors.New("model.failure_threshold must be at least 1"))
	}
	if c.Assessment.MaxSuggestions < 1 {
		errs = append(errs, errors.New("assessment.max_suggestions must be at least 1"))
	}
	if c.Assessment.MinSuggestionInput < 1 {
		errs = append(errs, errors.New("assessment.min_suggestion_input must be at least 1"))
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

func validateProvider(field, name string) error {
	if name == "" {
		return fmt.Errorf("%s is required", field)
	}
	if llm.GetProvider(name) == nil {
		return fmt.Errorf("%s: unknown provider %q (available: %s)", field, name, strings.Join(llm.ListProviders(), ", "))
	}
	return nil
}

// Registry builds the model registry: the primary endpoint first, then each
// fallback, for both capabilities.
func (m ModelConfig) Registry() *model.Registry {
	const primary = "primary"

	endpoints := map[string]*model.EndpointConfig{
		primary: {Provider: m.Provider, URL: m.Endpoint, Model: m.Name, MaxTokens: m.MaxTokens},
	}
	var fallback []string
	for i, fb := range m.Fallback {
		name := fmt.Sprintf("fallback-%d", i+1)
		endpoints[name] = &model.EndpointConfig{Provider: fb.Provider, URL: fb.Endpoint, Model: fb.Name, MaxTokens: m.MaxTokens}
		fallback = append(fallback, name)
	}

	caps := make(map[model.Capability]*model.CapabilityConfig)
	for _, c := range []model.Capability{model.CapabilityQuestion, model.CapabilitySuggestion} {
		caps[c] = &model.CapabilityConfig{Preferred: []string{primary}, Fallback: fallback}
	}
	r := model.NewRegistry(caps, endpoints, primary)
	r.SetHealthConfig(m.HealthConfig())
	return r
}

// HealthConfig returns the endpoint circuit breaker settings.
func (m ModelConfig) HealthConfig() model.HealthConfig {
	cfg := model.DefaultHealthConfig()
	if m.FailureThreshold > 0 {
		cfg.FailureThreshold = m.FailureThreshold
	}
	if m.RecoveryTimeout > 0 {
		cfg.RecoveryTimeout = m.RecoveryTimeout
	}
	return cfg
}

// RetryConfig returns the per-endpoint retry settings.
func (m ModelConfig) RetryConfig() llm.RetryConfig {
	cfg := llm.DefaultRetryConfig()
	cfg.MaxAttempts = max(m.MaxAttempts, 1)
	return cfg
}

// SessionConfig returns the per-session tunables.
func (c *Config) SessionConfig() session.Config {
	return session.Config{
		SuggestionDelay:    c.Assessment.SuggestionDelay,
		MinSuggestionInput: c.Assessment.MinSuggestionInput,
		MaxSuggestions:     c.Assessment.MaxSuggestions,
		SuggestionTimeout:  c.Assessment.SuggestionTimeout,
	}
}

// ManagerConfig returns the session manager settings.
func (c *Config) ManagerConfig() session.ManagerConfig {
	return session.ManagerConfig{
		IdleTimeout:   c.Session.IdleTimeout,
		SweepInterval: c.Session.SweepInterval,
		Session:       c.SessionConfig(),
	}
}

// LoadFromFile loads configuration from a YAML file on top of the defaults,
// expanding ${VAR:-default} references first
func LoadFromFile(path string) (*Config, error) {
	return loadInto(path, DefaultConfig())
}

// loadOverlay loads only the values a file sets, for merging.
func loadOverlay(path string) (*Config, error) {
	return loadInto(path, &Config{})
}

func loadInto(path string, config *Config) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal([]byte(ExpandEnvWithDefaults(string(data))), config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Merge merges another config into this one (other takes precedence for non-zero values)
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	// Server
	setString(&c.Server.Addr, other.Server.Addr)
	setDuration(&c.Server.ReadTimeout, other.Server.ReadTimeout)
	setDuration(&c.Server.WriteTimeout, other.Server.WriteTimeout)
	setDuration(&c.Server.ShutdownTimeout, other.Server.ShutdownTimeout)
	if other.Server.RateLimit.RPS != 0 {
		c.Server.RateLimit = other.Server.RateLimit
	}

	// Model
	if other.Model.Provider != "" && other.Model.Provider != c.Model.Provider {
		// A different provider makes the old endpoint meaningless.
		c.Model.Provider = other.Model.Provider
		c.Model.Endpoint = ""
	}
	setString(&c.Model.Endpoint, other.Model.Endpoint)
	setString(&c.Model.Name, other.Model.Name)
	if other.Model.Temperature != 0 {
		c.Model.Temperature = other.Model.Temperature
	}
	setInt(&c.Model.MaxTokens, other.Model.MaxTokens)
	setDuration(&c.Model.Timeout, other.Model.Timeout)
	setInt(&c.Model.MaxAttempts, other.Model.MaxAttempts)
	if len(other.Model.Fallback) > 0 {
		c.Model.Fallback = other.Model.Fallback
	}
	setInt(&c.Model.FailureThreshold, other.Model.FailureThreshold)
	setDuration(&c.Model.RecoveryTimeout, other.Model.RecoveryTimeout)

	// Assessment
	setDuration(&c.Assessment.SuggestionDelay, other.Assessment.SuggestionDelay)
	setInt(&c.Assessment.MinSuggestionInput, other.Assessment.MinSuggestionInput)
	setInt(&c.Assessment.MaxSuggestions, other.Assessment.MaxSuggestions)
	setDuration(&c.Assessment.SuggestionTimeout, other.Assessment.SuggestionTimeout)

	// Session
	setDuration(&c.Session.IdleTimeout, other.Session.IdleTimeout)
	setDuration(&c.Session.SweepInterval, other.Session.SweepInterval)

	// NATS
	setString(&c.NATS.URL, other.NATS.URL)
	setString(&c.NATS.Subject, other.NATS.Subject)

	// Log
	setString(&c.Log.Level, other.Log.Level)
	setString(&c.Log.Format, other.Log.Format)
	setString(&c.Log.File, other.Log.File)
	setInt(&c.Log.MaxSizeMB, other.Log.MaxSizeMB)
	setInt(&c.Log.MaxBackups, other.Log.MaxBackups)
	setInt(&c.Log.MaxAgeDays, other.Log.MaxAgeDays)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v time.Duration) {
	if v != 0 {
		*dst = v
	}
}
