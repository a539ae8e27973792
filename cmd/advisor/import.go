package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hyperengineering/advisor"
	"github.com/spf13/cobra"
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import student records from a file",
	Long: `Import students written by 'advisor export'.

Merge strategies:
  skip    - Keep students that already exist
  replace - Replace existing students and their records
  merge   - Upsert students and add their records (default)

Format auto-detection:
  .json           -> JSON format
  .db, .sqlite    -> SQLite format

Example:
  advisor import -i backup.json
  advisor import -i backup.json --strategy replace
  advisor import -i backup.db --dry-run`,
	Args: cobra.NoArgs,
	RunE: runImport,
}

var (
	importInputPath string
	importStrategy  string
	importDryRun    bool
	importFormat    string
)

func init() {
	importCmd.Flags().StringVarP(&importInputPath, "input", "i", "", "Input file path (required)")
	importCmd.Flags().StringVar(&importStrategy, "strategy", "merge", "Merge strategy: skip, replace, merge")
	importCmd.Flags().BoolVar(&importDryRun, "dry-run", false, "Preview import without making changes")
	importCmd.Flags().StringVar(&importFormat, "format", "", "Override format detection: json, sqlite")
	_ = importCmd.MarkFlagRequired("input")
}

// importSummary is the JSON form of an import.
type importSummary struct {
	InputFile  string   `json:"input_file"`
	Format     string   `json:"format"`
	Strategy   string   `json:"merge_strategy"`
	DryRun     bool     `json:"dry_run"`
	Total      int      `json:"total"`
	Created    int      `json:"created"`
	Merged     int      `json:"merged"`
	Skipped    int      `json:"skipped"`
	ErrorCount int      `json:"error_count"`
	Errors     []string `json:"errors,omitempty"`
	Duration   string   `json:"duration"`
}

func runImport(cmd *cobra.Command, args []string) error {
	strategy := advisor.MergeStrategy(strings.ToLower(importStrategy))
	if !strategy.IsValid() {
		return fmt.Errorf("invalid merge strategy %q: must be 'skip', 'replace', or 'merge'", importStrategy)
	}
	if _, err := os.Stat(importInputPath); err != nil {
		return fmt.Errorf("input file not found: %s", importInputPath)
	}

	format := detectImportFormat(importInputPath)
	if importFormat != "" {
		format = strings.ToLower(importFormat)
	}
	if format != "json" && format != "sqlite" {
		return fmt.Errorf("cannot detect format for %q, use --format to specify", importInputPath)
	}

	client, err := newClient()
	if err != nil {
		return err
	}
	defer client.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	progress := out
	if outputJSON {
		progress = io.Discard
	}

	start := time.Now()
	var result *advisor.ImportResult
	err = runWithSpinner(progress, "Importing "+importInputPath, func() error {
		var opErr error
		switch format {
		case "json":
			result, opErr = importJSON(ctx, client, importInputPath, strategy, importDryRun)
		case "sqlite":
			result, opErr = importSQLite(ctx, client, importInputPath, strategy, importDryRun)
		}
		return opErr
	})
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}
	duration := time.Since(start).Round(time.Millisecond)

	if outputJSON {
		return outputAsJSON(cmd, importSummary{
			InputFile:  importInputPath,
			Format:     format,
			Strategy:   string(strategy),
			DryRun:     importDryRun,
			Total:      result.Total,
			Created:    result.Created,
			Merged:     result.Merged,
			Skipped:    result.Skipped,
			ErrorCount: len(result.Errors),
			Errors:     result.Errors,
			Duration:   duration.String(),
		})
	}

	verb := map[bool][3]string{
		false: {"Created", "Merged", "Skipped"},
		true:  {"Would create", "Would merge", "Would skip"},
	}[importDryRun]
	fmt.Fprintf(out, "  Students: %d\n", result.Total)
	fmt.Fprintf(out, "  %s: %d\n", verb[0], result.Created)
	if strategy == advisor.MergeStrategySkip {
		fmt.Fprintf(out, "  %s: %d\n", verb[2], result.Skipped)
	} else {
		fmt.Fprintf(out, "  %s: %d\n", verb[1], result.Merged)
	}
	fmt.Fprintf(out, "  Errors: %d\n", len(result.Errors))

	if len(result.Errors) > 0 {
		fmt.Fprintln(out)
		printWarning(out, "Errors encountered:")
		const maxErrors = 10
		for i, e := range result.Errors {
			if i >= maxErrors {
				fmt.Fprintf(out, "  ... and %d more errors\n", len(result.Errors)-maxErrors)
				break
			}
			fmt.Fprintf(out, "  - %s\n", e)
		}
	}

	fmt.Fprintln(out)
	if importDryRun {
		printMuted(out, "Dry-run complete. No changes made.")
	} else {
		printSuccess(out, "Import complete (took %s)", duration)
	}
	return nil
}

// detectImportFormat detects the format based on file extension.
func detectImportFormat(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return "json"
	case ".db", ".sqlite", ".sqlite3":
		return "sqlite"
	default:
		return ""
	}
}

func importJSON(ctx context.Context, client *advisor.Client, path string, strategy advisor.MergeStrategy, dryRun bool) (*advisor.ImportResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input file: %w", err)
	}
	defer f.Close()

	return client.ImportJSON(ctx, f, strategy, dryRun)
}

// importSQLite streams a database written by 'export --format sqlite' through
// the JSON import path.
func importSQLite(ctx context.Context, client *advisor.Client, path string, strategy advisor.MergeStrategy, dryRun bool) (*advisor.ImportResult, error) {
	src, err := advisor.NewStore(path)
	if err != nil {
		return nil, fmt.Errorf("open source database: %w", err)
	}
	defer src.Close()

	pr, pw := io.Pipe()
	go func() {
		pw.CloseWithError(src.ExportJSON(ctx, "import", pw))
	}()
	defer pr.Close()

	return client.ImportJSON(ctx, pr, strategy, dryRun)
}
