package config

const (
	// DefaultTokenKey is the storage key for the session token.
	DefaultTokenKey = "session_token"

	// DefaultNonceKey is the storage key for the login nonce.
	DefaultNonceKey = "oauth_nonce"
)

// GetDefaultConfig returns the default configuration for pathways.
func GetDefaultConfig() Config {
	return Config{
		Backend: BackendConfig{
			BaseURL: "http://localhost:8000",
			Retries: 3,
		},
		Auth: AuthConfig{
			Enabled:                 true,
			BaseURL:                 "http://localhost:8000/auth",
			CredentialMode:          CredentialModeHeader,
			CookieName:              "pathways_session",
			CallbackPort:            0,
			LoginTimeoutSeconds:     300,
			RefreshIntervalSeconds:  60,
			RefreshThresholdSeconds: 300,
		},
		Storage: StorageConfig{
			TokenKey: DefaultTokenKey,
			NonceKey: DefaultNonceKey,
		},
		Content: ContentConfig{
			FreshMinutes: 5,
			StaleMinutes: 30,
		},
		LogLevel: "info",
	}
}
