package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/billmal071/zlibdl/internal/db"
	"github.com/billmal071/zlibdl/internal/tui"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List downloads",
	Long: `List all downloads and their status.

By default, completed downloads are hidden. Use -a/--all to show them.

Examples:
  zlibdl list                  List active downloads
  zlibdl list -a               List all downloads
  zlibdl list -s failed        List failed downloads`,
	RunE: runList,
}

func init() {
	listCmd.Flags().StringP("status", "s", "", "filter by status (pending, downloading, completed, failed)")
	listCmd.Flags().BoolP("all", "a", false, "show all downloads including completed")
}

func runList(cmd *cobra.Command, args []string) error {
	statusFilter, _ := cmd.Flags().GetString("status")
	showAll, _ := cmd.Flags().GetBool("all")

	var status db.DownloadStatus
	if statusFilter != "" {
		status = db.DownloadStatus(strings.ToLower(statusFilter))
	}

	downloads, err := db.ListDownloads(status, showAll)
	if err != nil {
		return fmt.Errorf("failed to list downloads: %w", err)
	}

	if len(downloads) == 0 {
		if statusFilter != "" {
			fmt.Printf("No downloads with status '%s'.\n", statusFilter)
		} else {
			fmt.Println("No active downloads.")
		}
		return nil
	}

	fmt.Printf("Downloads (%d):\n\n", len(downloads))

	for _, d := range downloads {
		printDownload(d)
	}

	return nil
}

func printDownload(d *db.Download) {
	// Status indicator
	var statusIcon string
	switch d.Status {
	case db.StatusPending:
		statusIcon = "⏳"
	case db.StatusDownloading:
		statusIcon = "⬇️ "
	case db.StatusCompleted:
		statusIcon = "✅"
	case db.StatusFailed:
		statusIcon = "❌"
	default:
		statusIcon = "  "
	}

	// Title (truncate if too long)
	title := d.Title
	if r := []rune(title); len(r) > 50 {
		title = string(r[:47]) + "..."
	}

	fmt.Printf("%s [%d] %s\n", statusIcon, d.ID, title)

	// Progress
	if d.FileSize > 0 {
		progress := float64(d.DownloadedSize) / float64(d.FileSize) * 100
		fmt.Printf("   Progress: %.1f%% (%s / %s)\n",
			progress,
			tui.FormatSize(d.DownloadedSize),
			tui.FormatSize(d.FileSize))
	}

	// Status details
	fmt.Printf("   Status: %s", d.Status)
	if d.ErrorMessage != "" {
		fmt.Printf(" - %s", d.ErrorMessage)
	}
	fmt.Println()

	// File info
	if d.FilePath != "" {
		fmt.Printf("   File: %s\n", d.FilePath)
	}

	if d.Authors != "" {
		fmt.Printf("   Author: %s\n", d.Authors)
	}
	if d.RetryCount > 0 {
		fmt.Printf("   Retries: %d\n", d.RetryCount)
	}
	fmt.Printf("   Book: %s (%s)\n", d.BookID, d.SourceURL)

	fmt.Println()
}
