package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"pathways/internal/config"
	"pathways/internal/httpclient"
	"pathways/internal/identity"
	"pathways/pkg/logging"
)

// Exit codes for CLI commands.
const (
	// ExitCodeSuccess indicates successful execution.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error (command failed, invalid arguments).
	ExitCodeError = 1
	// ExitCodeAuthRequired indicates authentication is required but not available.
	ExitCodeAuthRequired = 2
	// ExitCodeAuthFailed indicates the login flow failed.
	ExitCodeAuthFailed = 3
)

var (
	configPath string
	logLevel   string

	cfg config.Config
)

// rootCmd represents the base command for the pathways application.
var rootCmd = &cobra.Command{
	Use:   "pathways",
	Short: "Browse the course catalog and manage your learning session",
	Long: `pathways is a client for the course-catalog service. It signs you in
through your browser, keeps the session token fresh, and fetches the
catalog even when the backend is down.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// A missing .env is fine; explicit settings simply don't load.
		_ = godotenv.Load()

		if configPath == "" {
			defaultPath, err := config.GetDefaultConfigPath()
			if err != nil {
				return err
			}
			configPath = defaultPath
		}

		loaded, err := config.LoadConfig(configPath)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		cfg = loaded

		level := cfg.LogLevel
		if logLevel != "" {
			level = logLevel
		}
		logging.Init(logging.ParseLevel(level), os.Stderr)
		return nil
	},
}

// SetVersion sets the version for the root command. Called from main with
// the build-time version.
func SetVersion(v string) {
	rootCmd.Version = v
}

// GetVersion returns the current version of the application.
func GetVersion() string {
	return rootCmd.Version
}

// Execute is the main entry point for the CLI application.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "pathways version %s\n" .Version}}`)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(getExitCode(err))
	}
}

// getExitCode maps error types to semantic exit codes for scripting.
func getExitCode(err error) int {
	if errors.Is(err, errNotLoggedIn) || errors.Is(err, httpclient.ErrAuthExpired) {
		return ExitCodeAuthRequired
	}

	var callbackErr *identity.CallbackError
	if errors.As(err, &callbackErr) || errors.Is(err, identity.ErrStateMismatch) {
		return ExitCodeAuthFailed
	}

	return ExitCodeError
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config directory (default is $HOME/.config/pathways)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")

	rootCmd.AddCommand(newLoginCmd())
	rootCmd.AddCommand(newLogoutCmd())
	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newRefreshCmd())
	rootCmd.AddCommand(newCatalogCmd())
	rootCmd.AddCommand(newProgressCmd())
	rootCmd.AddCommand(newVersionCmd())
}
