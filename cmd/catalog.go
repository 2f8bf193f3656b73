package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"pathways/internal/content"
)

var (
	catalogRefetch bool
	catalogJSON    bool
)

func newCatalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Show the course catalog",
		Long: `Show the course catalog: learning paths, courses and projects.

Content falls back to a bundled snapshot when the backend is unreachable.

Examples:
  pathways catalog             # Show the catalog
  pathways catalog --refetch   # Bypass the cache
  pathways catalog --json      # Raw JSON output`,
		RunE: runCatalog,
	}
	cmd.Flags().BoolVar(&catalogRefetch, "refetch", false, "bypass the content cache")
	cmd.Flags().BoolVar(&catalogJSON, "json", false, "print the bundle as JSON")
	return cmd
}

func runCatalog(cmd *cobra.Command, args []string) error {
	app, err := buildApp()
	if err != nil {
		return err
	}
	defer app.manager.Stop()

	var bundle *content.ContentBundle
	if catalogRefetch {
		bundle, err = app.aggregator.Refetch(cmd.Context())
	} else {
		bundle, err = app.aggregator.Bundle(cmd.Context())
	}
	if err != nil {
		return err
	}

	if catalogJSON {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(bundle)
	}

	if app.aggregator.LastError() != nil {
		fmt.Println("Note: the catalog service is unreachable; showing saved content.")
		fmt.Println()
	}

	printCatalog(bundle)
	return nil
}

func printCatalog(bundle *content.ContentBundle) {
	if len(bundle.LearningPaths) > 0 {
		fmt.Println("Learning paths:")
		for _, path := range bundle.LearningPaths {
			fmt.Printf("  %-24s %s (%d courses)\n", path.ID, path.Title, len(path.CourseIDs))
		}
		fmt.Println()
	}

	if len(bundle.Courses) > 0 {
		fmt.Println("Courses:")
		for _, course := range bundle.Courses {
			line := fmt.Sprintf("  %-24s %s", course.ID, course.Title)
			if course.Level != "" {
				line += fmt.Sprintf(" [%s]", course.Level)
			}
			if course.Duration != "" {
				line += fmt.Sprintf(" (%s)", course.Duration)
			}
			fmt.Println(line)
		}
		fmt.Println()
	}

	if len(bundle.Projects) > 0 {
		fmt.Println("Projects:")
		for _, project := range bundle.Projects {
			fmt.Printf("  %-24s %s\n", project.ID, project.Title)
		}
		fmt.Println()
	}

	if bundle.Metadata.LastUpdated != "" {
		fmt.Printf("Last updated: %s\n", bundle.Metadata.LastUpdated)
	}
}
