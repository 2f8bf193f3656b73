package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"pathways/internal/session"
)

var statusWatch bool

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the current session status",
		Long: `Show the current session status: whether you are signed in, as whom,
and when the session token expires.

With --watch the command keeps running and reports session changes,
including logins and logouts performed by another pathways process.`,
		RunE: runStatus,
	}
	cmd.Flags().BoolVar(&statusWatch, "watch", false, "keep running and report session changes")
	return cmd
}

func runStatus(cmd *cobra.Command, args []string) error {
	app, err := buildApp()
	if err != nil {
		return err
	}
	defer app.manager.Stop()

	if err := app.manager.Start(cmd.Context()); err != nil {
		return err
	}

	printSnapshot(app, app.manager.Snapshot())

	if !statusWatch {
		return nil
	}

	app.manager.Subscribe(func(s session.Snapshot) {
		if s.Loading {
			return
		}
		fmt.Printf("[%s] session: %s\n", time.Now().Format(time.Kitchen), s.Phase)
		if s.User != nil {
			fmt.Printf("         user: %s\n", s.User.String())
		}
	})

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	select {
	case <-stop:
	case <-cmd.Context().Done():
	}
	return nil
}

func printSnapshot(app *app, snapshot session.Snapshot) {
	fmt.Printf("Session: %s\n", snapshot.Phase)

	if snapshot.User != nil {
		fmt.Printf("User:    %s\n", snapshot.User.String())
	}

	if claims := app.tokens.Claims(); claims != nil && claims.ExpiresAt != nil {
		remaining := time.Until(claims.ExpiresAt.Time).Round(time.Second)
		if remaining > 0 {
			fmt.Printf("Token:   expires in %s\n", remaining)
		} else {
			fmt.Printf("Token:   expired %s ago\n", -remaining)
		}
	}

	if snapshot.Err != nil {
		fmt.Printf("Error:   %v\n", snapshot.Err)
	}
}
