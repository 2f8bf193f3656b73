package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"pathways/internal/content"
)

var progressComplete string

func newProgressCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "progress",
		Short: "Show or update your learning progress",
		Long: `Show your progress across the catalog, or mark an item complete.

Requires a signed-in session.

Examples:
  pathways progress                         # List progress
  pathways progress --complete course-intro # Mark a course complete`,
		RunE: runProgress,
	}
	cmd.Flags().StringVar(&progressComplete, "complete", "", "mark the given item ID as completed")
	return cmd
}

func runProgress(cmd *cobra.Command, args []string) error {
	app, err := buildApp()
	if err != nil {
		return err
	}
	defer app.manager.Stop()

	if !app.tokens.IsValid() {
		return errNotLoggedIn
	}

	if progressComplete != "" {
		items := []content.ProgressItem{{
			ItemID:      progressComplete,
			Status:      "completed",
			CompletedAt: time.Now().UTC().Format(time.RFC3339),
		}}
		if err := app.aggregator.SaveProgress(cmd.Context(), items); err != nil {
			return err
		}
		fmt.Printf("Marked %s as completed\n", progressComplete)
		return nil
	}

	items, err := app.aggregator.Progress(cmd.Context())
	if err != nil {
		return err
	}
	if len(items) == 0 {
		fmt.Println("No progress recorded yet")
		return nil
	}

	for _, item := range items {
		line := fmt.Sprintf("  %-24s %s", item.ItemID, item.Status)
		if item.CompletedAt != "" {
			line += fmt.Sprintf(" (%s)", item.CompletedAt)
		}
		fmt.Println(line)
	}
	return nil
}
