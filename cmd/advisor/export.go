package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hyperengineering/advisor"
	"github.com/spf13/cobra"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export student records to a file",
	Long: `Export every student with their history and enrollments.

Supports JSON (default) and SQLite formats. JSON exports are streamed
one student at a time.

Example:
  advisor export -o backup.json
  advisor export -o backup.db --format sqlite
  advisor export --program computer-science -o cs.json`,
	Args: cobra.NoArgs,
	RunE: runExport,
}

var (
	exportOutputPath string
	exportFormat     string
)

func init() {
	exportCmd.Flags().StringVarP(&exportOutputPath, "output", "o", "", "Output file path (required)")
	exportCmd.Flags().StringVar(&exportFormat, "format", "json", "Export format: json, sqlite")
	_ = exportCmd.MarkFlagRequired("output")
}

// exportSummary is the JSON form of an export.
type exportSummary struct {
	Program  string `json:"program"`
	Format   string `json:"format"`
	Students int    `json:"students"`
	FilePath string `json:"file_path"`
	FileSize int64  `json:"file_size"`
	Duration string `json:"duration"`
}

func runExport(cmd *cobra.Command, args []string) error {
	format := strings.ToLower(exportFormat)
	if format != "json" && format != "sqlite" {
		return fmt.Errorf("invalid format %q: must be 'json' or 'sqlite'", exportFormat)
	}

	client, err := newClient()
	if err != nil {
		return err
	}
	defer client.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	stats, err := client.Stats(ctx)
	if err != nil {
		return fmt.Errorf("get stats: %w", err)
	}
	if err := ensureParentDir(exportOutputPath); err != nil {
		return err
	}

	start := time.Now()
	switch format {
	case "json":
		err = exportJSON(cmd, client, exportOutputPath)
	case "sqlite":
		err = client.ExportSQLite(ctx, exportOutputPath)
	}
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}
	duration := time.Since(start).Round(time.Millisecond)

	var size int64
	if fi, statErr := os.Stat(exportOutputPath); statErr == nil {
		size = fi.Size()
	}

	if outputJSON {
		return outputAsJSON(cmd, exportSummary{
			Program:  stats.Program,
			Format:   format,
			Students: stats.Students,
			FilePath: exportOutputPath,
			FileSize: size,
			Duration: duration.String(),
		})
	}

	summary := fmt.Sprintf("Program:  %s\nFormat:   %s\nStudents: %d\nSize:     %s\nDuration: %s\nOutput:   %s",
		stats.Program, strings.ToUpper(format), stats.Students, formatBytes(size), duration, exportOutputPath)
	fmt.Fprintln(out, renderPanel("Export Summary", summary))
	printSuccess(out, "Export complete")
	return nil
}

func exportJSON(cmd *cobra.Command, client *advisor.Client, destPath string) error {
	f, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	defer f.Close()

	if err := client.ExportJSON(cmd.Context(), f); err != nil {
		_ = os.Remove(destPath)
		return err
	}
	return f.Sync()
}

// ensureParentDir creates the parent directory of path if it doesn't exist.
func ensureParentDir(path string) error {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}
	return nil
}

// formatBytes formats a byte count as a human-readable string.
func formatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(b)/float64(div), "KMGTPE"[exp])
}
