package config

import "time"

// Config is the top-level configuration structure for pathways.
type Config struct {
	Backend  BackendConfig `yaml:"backend"`
	Auth     AuthConfig    `yaml:"auth"`
	Storage  StorageConfig `yaml:"storage"`
	Content  ContentConfig `yaml:"content"`
	LogLevel string        `yaml:"logLevel,omitempty"`
}

// BackendConfig describes the catalog backend serving the content bundle.
type BackendConfig struct {
	// BaseURL is the backend base URL (e.g. https://api.pathways.example.com).
	BaseURL string `yaml:"baseURL,omitempty"`

	// Retries is the total number of request attempts for transient failures.
	Retries int `yaml:"retries,omitempty"`
}

// CredentialMode selects how the session token is attached to requests.
type CredentialMode string

const (
	// CredentialModeHeader sends the token as an Authorization bearer header.
	CredentialModeHeader CredentialMode = "header"
	// CredentialModeCookie sends the token as a session cookie.
	CredentialModeCookie CredentialMode = "cookie"
)

// AuthConfig describes the identity service and session behavior.
type AuthConfig struct {
	// Enabled toggles the whole authentication feature. When false the
	// session goes straight to unauthenticated with no network calls.
	Enabled bool `yaml:"enabled"`

	// BaseURL is the identity service base URL.
	BaseURL string `yaml:"baseURL,omitempty"`

	// CredentialMode is "header" or "cookie".
	CredentialMode CredentialMode `yaml:"credentialMode,omitempty"`

	// CookieName is the session cookie name used in cookie mode.
	CookieName string `yaml:"cookieName,omitempty"`

	// CallbackPort is the port for the local login callback server.
	// Zero picks a random free port.
	CallbackPort int `yaml:"callbackPort,omitempty"`

	// LoginTimeoutSeconds bounds how long a browser login may take.
	LoginTimeoutSeconds int `yaml:"loginTimeoutSeconds,omitempty"`

	// RefreshIntervalSeconds is how often the scheduler checks token lifetime.
	RefreshIntervalSeconds int `yaml:"refreshIntervalSeconds,omitempty"`

	// RefreshThresholdSeconds is the remaining-lifetime low-water mark below
	// which a proactive refresh is triggered.
	RefreshThresholdSeconds int `yaml:"refreshThresholdSeconds,omitempty"`
}

// StorageConfig describes local persistence of the session token and nonce.
type StorageConfig struct {
	// Dir is the directory holding persisted values.
	// Defaults to ~/.config/pathways.
	Dir string `yaml:"dir,omitempty"`

	// TokenKey is the storage key under which the session token is kept.
	TokenKey string `yaml:"tokenKey,omitempty"`

	// NonceKey is the session-scoped storage key for the login nonce.
	NonceKey string `yaml:"nonceKey,omitempty"`
}

// ContentConfig describes content bundle caching behavior.
type ContentConfig struct {
	// FreshMinutes is how long a fetched bundle is considered fresh.
	FreshMinutes int `yaml:"freshMinutes,omitempty"`

	// StaleMinutes is the additional window during which a stale bundle is
	// still served before a forced refetch.
	StaleMinutes int `yaml:"staleMinutes,omitempty"`
}

// LoginTimeout returns the login timeout as a duration.
func (a AuthConfig) LoginTimeout() time.Duration {
	return time.Duration(a.LoginTimeoutSeconds) * time.Second
}

// RefreshInterval returns the scheduler check interval as a duration.
func (a AuthConfig) RefreshInterval() time.Duration {
	return time.Duration(a.RefreshIntervalSeconds) * time.Second
}

// RefreshThreshold returns the low-water mark as a duration.
func (a AuthConfig) RefreshThreshold() time.Duration {
	return time.Duration(a.RefreshThresholdSeconds) * time.Second
}

// Fresh returns the bundle freshness window as a duration.
func (c ContentConfig) Fresh() time.Duration {
	return time.Duration(c.FreshMinutes) * time.Minute
}

// Stale returns the stale-but-served window as a duration.
func (c ContentConfig) Stale() time.Duration {
	return time.Duration(c.StaleMinutes) * time.Minute
}
