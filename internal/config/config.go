package config

import (
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
)

// Config holds application configuration
type Config struct {
	// Logging configuration
	LogLevel string

	// Authentication configuration for the HTTP API
	EnableAuthentication bool
	BearerToken          string

	// Redis configuration (project bindings and fetch bookkeeping)
	RedisURL string

	// GitLab configuration
	GitLabProjectURL     string
	GitLabToken          string
	GitLabSkipTLS        bool
	GitLabTimeoutSeconds int

	// Server configuration
	Port string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		// Logging
		LogLevel: getEnvString("LOG_LEVEL", "info"),

		// Authentication
		EnableAuthentication: getEnvBool("ENABLE_AUTHENTICATION", false),
		BearerToken:          getEnvString("BEARER_TOKEN", ""),

		// Redis
		RedisURL: getEnvString("REDIS_URL", ""),

		// GitLab
		GitLabProjectURL:     getEnvString("GITLAB_PROJECT_URL", ""),
		GitLabToken:          getEnvString("GITLAB_API_TOKEN", ""),
		GitLabSkipTLS:        getEnvBool("GITLAB_SKIP_TLS_VERIFY", false),
		GitLabTimeoutSeconds: getEnvInt("GITLAB_TIMEOUT_SECONDS", 30),

		// Server
		Port: getEnvString("PORT", "8080"),
	}
}

// MergeFile fills GitLab credentials that the environment left empty from the
// CLI configuration file.
func (c *Config) MergeFile(file FileConfig) {
	if c.GitLabProjectURL == "" {
		c.GitLabProjectURL = file.URL
	}
	if c.GitLabToken == "" {
		c.GitLabToken = file.Token
	}
	if !c.GitLabSkipTLS {
		c.GitLabSkipTLS = file.SkipTLSVerify
	}
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.RedisURL == "" {
		return &ConfigError{Field: "REDIS_URL", Message: "Redis URL is required"}
	}

	if c.EnableAuthentication && c.BearerToken == "" {
		return &ConfigError{Field: "BEARER_TOKEN", Message: "Bearer token is required when authentication is enabled"}
	}

	if c.GitLabTimeoutSeconds <= 0 {
		return &ConfigError{Field: "GITLAB_TIMEOUT_SECONDS", Message: "timeout must be a positive number of seconds"}
	}

	if c.GitLabProjectURL != "" && !hasHost(c.GitLabProjectURL) {
		return &ConfigError{Field: "GITLAB_PROJECT_URL", Message: "project URL must name a GitLab host"}
	}

	if c.Port != "" {
		if port, err := strconv.Atoi(c.Port); err != nil || port <= 0 || port > 65535 {
			return &ConfigError{Field: "PORT", Message: "port must be a number between 1 and 65535"}
		}
	}

	return nil
}

// HasGitLabCredentials reports whether both project URL and token are set
func (c *Config) HasGitLabCredentials() bool {
	return c.GitLabProjectURL != "" && c.GitLabToken != ""
}

// GetLogLevel returns the slog.Level for the configured log level
func (c *Config) GetLogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// hasHost accepts URLs with or without scheme, defaulting to https like the client
func hasHost(rawURL string) bool {
	if !strings.Contains(rawURL, "://") {
		rawURL = "https://" + rawURL
	}
	u, err := url.Parse(rawURL)
	return err == nil && u.Host != ""
}

// ConfigError represents a configuration validation error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "Configuration error for " + e.Field + ": " + e.Message
}

// Helper functions for environment variable parsing

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
