package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/jonathan/resume-onepage/internal/config"
	"github.com/jonathan/resume-onepage/internal/export"
	"github.com/jonathan/resume-onepage/internal/observability"
	"github.com/jonathan/resume-onepage/internal/rendering"
	"github.com/jonathan/resume-onepage/internal/schemas"
	"github.com/spf13/cobra"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a resume to a one-page PDF",
	Long: "Resolves a document onto a single page with the selected template and writes the PDF. " +
		"The document comes from a JSON file (--in) or a stored loadout (--loadout, requires DATABASE_URL).",
	RunE: runExport,
}

var (
	exportInFile   string
	exportLoadout  string
	exportTemplate string
	exportOut      string
	exportPhoto    string
	exportVerbose  bool
)

func init() {
	exportCmd.Flags().StringVarP(&exportInFile, "in", "i", "", "Path to a document or export request JSON file")
	exportCmd.Flags().StringVarP(&exportLoadout, "loadout", "l", "", "Loadout ID or slug to load from the database")
	exportCmd.Flags().StringVarP(&exportTemplate, "template", "t", "", "Template ID (ats-classic, modern-dark)")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "Output PDF path or directory (default: generated filename in the current directory)")
	exportCmd.Flags().StringVar(&exportPhoto, "photo", "", "Photo URL for templates that support one")
	exportCmd.Flags().BoolVarP(&exportVerbose, "verbose", "v", false, "Show the document and debug logs")

	exportCmd.MarkFlagsMutuallyExclusive("in", "loadout")
	exportCmd.MarkFlagsOneRequired("in", "loadout")

	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, _ []string) error {
	if exportTemplate != "" && !rendering.IsValidTemplateID(exportTemplate) {
		return fmt.Errorf("unknown template %q", exportTemplate)
	}

	req := export.Request{LoadoutID: exportLoadout, TemplateID: exportTemplate, PhotoURL: exportPhoto}
	if exportInFile != "" {
		parsed, err := readExportRequest(exportInFile)
		if err != nil {
			return err
		}
		req.Document = parsed.Document
		if req.TemplateID == "" {
			req.TemplateID = parsed.TemplateID
		}
		if req.PhotoURL == "" {
			req.PhotoURL = parsed.PhotoURL
		}
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if exportVerbose {
		cfg.LogFormat = "text"
		cfg.LogLevel = "debug"
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.Close()

	printer := observability.NewPrinter(cmd.OutOrStdout())
	if exportVerbose && req.Document != nil {
		printer.PrintDocument(req.Document)
	}

	res, err := a.service.Export(ctx, req)
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}

	path := outputPath(exportOut, res.Filename)
	if err := os.WriteFile(path, res.Artifact, 0o644); err != nil {
		return fmt.Errorf("failed to write PDF: %w", err)
	}

	printer.PrintCompression(res.Template, res.Summary)
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%d bytes) in %s\n", path, len(res.Artifact), res.Duration.Round(time.Millisecond))
	if !res.Summary.CanFit {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %s\n", res.Summary.Warning)
	}
	return nil
}

// readExportRequest reads either a bare document or a full export request
// ({"document": ..., "template_id": ...}) and validates it.
func readExportRequest(path string) (*schemas.ExportRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read input file: %w", err)
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if _, ok := probe["document"]; !ok {
		data, err = json.Marshal(map[string]json.RawMessage{"document": data})
		if err != nil {
			return nil, fmt.Errorf("failed to wrap document: %w", err)
		}
	}

	req, err := schemas.ParseExportRequest(data)
	if err != nil {
		return nil, fmt.Errorf("invalid input %s: %w", path, err)
	}
	return req, nil
}

// outputPath resolves --out: empty writes the generated filename to the
// current directory, an existing directory receives the generated filename.
func outputPath(out, filename string) string {
	if out == "" {
		return filename
	}
	if info, err := os.Stat(out); err == nil && info.IsDir() {
		return filepath.Join(out, filename)
	}
	return out
}
