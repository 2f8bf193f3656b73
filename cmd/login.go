package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"pathways/internal/identity"
)

var loginProvider string

func newLoginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in through your browser",
		Long: `Sign in to the catalog service using OAuth.

This command opens your browser at the identity provider, waits for the
redirect on a local callback server, and stores the resulting session
token.

Examples:
  pathways login                      # Sign in with Google (default)
  pathways login --provider github    # Sign in with GitHub`,
		RunE: runLogin,
	}
	cmd.Flags().StringVar(&loginProvider, "provider", identity.ProviderGoogle, "identity provider: google or github")
	return cmd
}

func runLogin(cmd *cobra.Command, args []string) error {
	app, err := buildApp()
	if err != nil {
		return err
	}
	defer app.manager.Stop()

	if !app.cfg.Auth.Enabled {
		return fmt.Errorf("authentication is disabled in the configuration")
	}

	if err := app.manager.Login(cmd.Context(), loginProvider); err != nil {
		return err
	}

	snapshot := app.manager.Snapshot()
	if snapshot.User != nil {
		fmt.Printf("Signed in as %s\n", snapshot.User.String())
	} else {
		fmt.Println("Signed in")
	}
	return nil
}
