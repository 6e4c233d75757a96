package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// FileName is the name of the configuration file in the user's home directory.
const FileName = ".gitlab-trace.yaml"

// ErrNoConfigFile is returned by LoadFile when the file does not exist.
var ErrNoConfigFile = errors.New("config file not found")

// FileConfig is the on-disk configuration used by the CLI.
type FileConfig struct {
	URL            string `yaml:"url"`
	Token          string `yaml:"token"`
	SkipTLSVerify  bool   `yaml:"skip_tls_verify,omitempty"`
	Classification string `yaml:"default_classification,omitempty"`
}

// DefaultFilePath returns the absolute path of the configuration file.
func DefaultFilePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(home, FileName), nil
}

// LoadFile reads the configuration file at path.
func LoadFile(path string) (FileConfig, error) {
	var cfg FileConfig

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, fmt.Errorf("%w at %s, run 'gitlab-trace-cli config set'", ErrNoConfigFile, path)
		}
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return cfg, nil
}

// SaveFile writes cfg to path, readable only by the owner since it holds the token.
func SaveFile(path string, cfg FileConfig) error {
	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file to %s: %w", path, err)
	}
	return nil
}

// SetFileValue updates a single key in the configuration file, creating it if needed.
func SetFileValue(path, key, value string) error {
	cfg, err := LoadFile(path)
	if err != nil && !errors.Is(err, ErrNoConfigFile) {
		return err
	}

	switch key {
	case "url":
		cfg.URL = value
	case "token":
		cfg.Token = value
	case "skip_tls_verify":
		cfg.SkipTLSVerify = value == "true"
	case "default_classification":
		cfg.Classification = value
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}

	return SaveFile(path, cfg)
}
