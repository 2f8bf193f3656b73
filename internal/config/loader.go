package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"

	"pathways/pkg/logging"
)

const (
	userConfigDir  = ".config/pathways"
	configFileName = "config.yaml"
)

// GetDefaultConfigPath returns the default configuration directory
// (~/.config/pathways).
func GetDefaultConfigPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine user config directory: %w", err)
	}
	return filepath.Join(homeDir, userConfigDir), nil
}

// LoadConfig loads configuration from the given directory. Missing files are
// not an error: defaults apply, then config.yaml, then environment overrides.
func LoadConfig(configPath string) (Config, error) {
	config := GetDefaultConfig()

	configFilePath := filepath.Join(configPath, configFileName)
	data, err := os.ReadFile(configFilePath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		logging.Debug("ConfigLoader", "No config.yaml found at %s, using defaults", configFilePath)
	case err != nil:
		return Config{}, fmt.Errorf("error reading config from %s: %w", configFilePath, err)
	default:
		if err := yaml.Unmarshal(data, &config); err != nil {
			return Config{}, fmt.Errorf("error loading config from %s: %w", configFilePath, err)
		}
		logging.Debug("ConfigLoader", "Loaded configuration from %s", configFilePath)
	}

	applyEnv(&config)

	if config.Storage.Dir == "" {
		config.Storage.Dir = configPath
	}

	if err := validate(config); err != nil {
		return Config{}, err
	}

	return config, nil
}

// Environment variables recognized as overrides.
const (
	EnvBackendURL     = "PATHWAYS_BACKEND_URL"
	EnvAuthURL        = "PATHWAYS_AUTH_URL"
	EnvAuthEnabled    = "PATHWAYS_AUTH_ENABLED"
	EnvTokenKey       = "PATHWAYS_TOKEN_KEY"
	EnvStorageDir     = "PATHWAYS_STORAGE_DIR"
	EnvCredentialMode = "PATHWAYS_CREDENTIAL_MODE"
	EnvLogLevel       = "PATHWAYS_LOG_LEVEL"
)

func applyEnv(config *Config) {
	if v := os.Getenv(EnvBackendURL); v != "" {
		config.Backend.BaseURL = v
	}
	if v := os.Getenv(EnvAuthURL); v != "" {
		config.Auth.BaseURL = v
	}
	if v := os.Getenv(EnvAuthEnabled); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			config.Auth.Enabled = enabled
		} else {
			logging.Warn("ConfigLoader", "Ignoring invalid %s value %q", EnvAuthEnabled, v)
		}
	}
	if v := os.Getenv(EnvTokenKey); v != "" {
		config.Storage.TokenKey = v
	}
	if v := os.Getenv(EnvStorageDir); v != "" {
		config.Storage.Dir = v
	}
	if v := os.Getenv(EnvCredentialMode); v != "" {
		config.Auth.CredentialMode = CredentialMode(v)
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		config.LogLevel = v
	}
}

func validate(config Config) error {
	switch config.Auth.CredentialMode {
	case CredentialModeHeader, CredentialModeCookie:
	default:
		return fmt.Errorf("invalid credential mode %q (expected %q or %q)",
			config.Auth.CredentialMode, CredentialModeHeader, CredentialModeCookie)
	}

	if config.Backend.Retries < 1 {
		return fmt.Errorf("backend.retries must be at least 1, got %d", config.Backend.Retries)
	}

	if config.Storage.TokenKey == "" {
		return errors.New("storage.tokenKey must not be empty")
	}
	if config.Storage.NonceKey == "" {
		return errors.New("storage.nonceKey must not be empty")
	}

	return nil
}
