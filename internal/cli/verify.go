package cli

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/billmal071/zlibdl/internal/db"
	"github.com/billmal071/zlibdl/internal/downloader"
)

var verifyCmd = &cobra.Command{
	Use:   "verify [download-id]",
	Short: "Check downloaded files are real books",
	Long: `Check that downloaded files match their format, catching limit pages
and truncated files saved in place of a book.

Examples:
  zlibdl verify 1          # Verify specific download
  zlibdl verify --all      # Verify all completed downloads
  zlibdl verify --all --fix`,
	RunE: runVerify,
}

func init() {
	verifyCmd.Flags().Bool("all", false, "verify all completed downloads")
	verifyCmd.Flags().Bool("fix", false, "automatically re-download broken files")
}

func runVerify(cmd *cobra.Command, args []string) error {
	verifyAll, _ := cmd.Flags().GetBool("all")
	autoFix, _ := cmd.Flags().GetBool("fix")

	var downloads []*db.Download
	switch {
	case verifyAll:
		all, err := db.ListDownloads(db.StatusCompleted, false)
		if err != nil {
			return fmt.Errorf("failed to list downloads: %w", err)
		}
		downloads = all
	case len(args) == 0:
		return fmt.Errorf("provide a download ID or use --all flag")
	default:
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid download ID: %s", args[0])
		}
		download, err := db.GetDownload(id)
		if err != nil {
			return fmt.Errorf("download not found: %w", err)
		}
		if download.Status != db.StatusCompleted {
			return fmt.Errorf("download is not completed (status: %s)", download.Status)
		}
		downloads = []*db.Download{download}
	}

	if len(downloads) == 0 {
		fmt.Println("No downloads to verify")
		return nil
	}

	fmt.Printf("Verifying %d download(s)...\n\n", len(downloads))

	var verified, failed, missing int
	var broken []*db.Download

	for _, download := range downloads {
		if _, err := os.Stat(download.FilePath); os.IsNotExist(err) {
			fmt.Printf("❌ [%d] %s\n", download.ID, download.Title)
			fmt.Printf("    File not found: %s\n\n", download.FilePath)
			missing++
			broken = append(broken, download)
			continue
		}

		fmt.Printf("🔍 [%d] %s\n", download.ID, download.Title)
		if err := downloader.VerifyFile(download.FilePath, download.Extension); err != nil {
			fmt.Printf("    ❌ Verification failed: %v\n\n", err)
			if uerr := db.UpdateStatus(download.ID, db.StatusFailed, err.Error()); uerr != nil {
				Errorf("failed to update download %d: %v", download.ID, uerr)
			}
			failed++
			broken = append(broken, download)
			continue
		}
		fmt.Printf("    ✓ Looks like %s\n\n", download.Extension)
		verified++
	}

	// Summary
	fmt.Println("─────────────────────────────────")
	fmt.Printf("Verified: %d\n", verified)
	if failed > 0 {
		fmt.Printf("Failed: %d\n", failed)
	}
	if missing > 0 {
		fmt.Printf("Missing: %d\n", missing)
	}

	if len(broken) == 0 {
		return nil
	}
	if !autoFix {
		fmt.Println("\nTip: Use --fix flag to automatically re-download broken files")
		return nil
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if err := a.client.Init(ctx); err != nil {
		return fmt.Errorf("failed to reach catalog: %w", err)
	}

	for _, download := range broken {
		fmt.Printf("\n🔄 Re-downloading [%d] %s\n", download.ID, download.Title)
		entry, err := a.client.FetchDetailURL(ctx, download.SourceURL)
		if err != nil {
			fmt.Printf("    ⚠️  Failed to fetch book details: %v\n", err)
			continue
		}
		if entry.ID == "" {
			entry.ID = download.BookID
		}
		if err := startDownload(ctx, a, entry, ""); err != nil {
			fmt.Printf("    ⚠️  Re-download failed: %v\n", err)
		}
	}
	return nil
}
