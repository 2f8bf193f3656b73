package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newRefreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Exchange the session token for a fresh one",
		Long: `Exchange the current session token for a fresh one.

If the exchange fails the stored session is cleared and you must sign in
again.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := buildApp()
			if err != nil {
				return err
			}
			defer app.manager.Stop()

			if !app.tokens.IsValid() {
				return errNotLoggedIn
			}

			if err := app.manager.Refresh(cmd.Context()); err != nil {
				return err
			}
			fmt.Println("Session token refreshed")
			return nil
		},
	}
}
