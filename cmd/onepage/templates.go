package main

import (
	"encoding/json"

	"github.com/jonathan/resume-onepage/internal/observability"
	"github.com/jonathan/resume-onepage/internal/rendering"
	"github.com/spf13/cobra"
)

var templatesJSON bool

var templatesCmd = &cobra.Command{
	Use:   "templates",
	Short: "List export templates",
	RunE:  runTemplates,
}

func init() {
	templatesCmd.Flags().BoolVar(&templatesJSON, "json", false, "Print templates as JSON")
	rootCmd.AddCommand(templatesCmd)
}

func runTemplates(cmd *cobra.Command, _ []string) error {
	templates := rendering.ListTemplates()
	if templatesJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(templates)
	}
	observability.NewPrinter(cmd.OutOrStdout()).PrintTemplates(templates)
	return nil
}
