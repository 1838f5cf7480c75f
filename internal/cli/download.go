package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/billmal071/zlibdl/internal/config"
	"github.com/billmal071/zlibdl/internal/db"
	"github.com/billmal071/zlibdl/internal/downloader"
	"github.com/billmal071/zlibdl/internal/notify"
	"github.com/billmal071/zlibdl/internal/zlib"
)

var downloadCmd = &cobra.Command{
	Use:   "download [book-url]",
	Short: "Download a book by its detail page URL",
	Long: `Download a book using the URL of its detail page.

The URL is printed by search and details. Most mirrors only hand out
download links to logged in accounts, so run 'zlibdl login' first.

Examples:
  zlibdl download https://mirror/book/5386911/a1b2c3
  zlibdl download -o ~/Books https://mirror/book/5386911/a1b2c3`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		outputDir := getString(cmd, "output")
		force, _ := cmd.Flags().GetBool("force")

		a, err := newApp()
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		if err := a.client.Init(ctx); err != nil {
			return fmt.Errorf("failed to reach catalog: %w", err)
		}

		Printf("Fetching book information...\n")
		entry, err := a.client.FetchDetailURL(ctx, args[0])
		if err != nil {
			return fmt.Errorf("failed to fetch book details: %w", err)
		}
		if force {
			return startDownload(ctx, a, entry, outputDir)
		}
		return downloadEntry(ctx, a, entry, outputDir)
	},
}

func init() {
	downloadCmd.Flags().StringP("output", "o", "", "output directory (default: downloads.path)")
	downloadCmd.Flags().Bool("force", false, "download again even if already downloaded")
}

// downloadEntry downloads entry unless a completed copy is already on disk
func downloadEntry(ctx context.Context, a *app, entry *zlib.CatalogEntry, outputDir string) error {
	if entry.ID != "" {
		existing, err := db.GetLatestDownloadByBook(entry.ID)
		switch {
		case err == nil && existing.Status == db.StatusCompleted:
			if _, statErr := os.Stat(existing.FilePath); statErr == nil {
				fmt.Printf("Already downloaded: %s\n", existing.FilePath)
				return nil
			}
			Printf("Previous download is missing from disk, downloading again...\n")
		case err == nil && existing.Status == db.StatusFailed:
			fmt.Printf("Previous download failed (%s). Retrying...\n", existing.ErrorMessage)
		case err != nil && !errors.Is(err, sql.ErrNoRows):
			return fmt.Errorf("failed to check download history: %w", err)
		}
	}
	return startDownload(ctx, a, entry, outputDir)
}

func startDownload(ctx context.Context, a *app, entry *zlib.CatalogEntry, outputDir string) error {
	if entry.Detail == nil {
		Printf("Fetching book information...\n")
		if _, err := a.client.FetchDetail(ctx, entry); err != nil {
			return fmt.Errorf("failed to fetch book details: %w", err)
		}
	}
	if entry.Detail.DownloadURL == "" {
		if !a.client.Session().LoggedIn() {
			return fmt.Errorf("no download link found, run 'zlibdl login' first")
		}
		return fmt.Errorf("no download link found on the book page")
	}

	if outputDir == "" {
		outputDir = config.Get().Downloads.Path
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	filename := downloader.FileName(entry.Name, entry.AuthorNames(), entry.Extension, "")
	download := &db.Download{
		BookID:      entry.ID,
		Title:       entry.Name,
		Authors:     entry.AuthorNames(),
		Publisher:   entry.Publisher,
		Language:    entry.Language,
		Extension:   entry.Extension,
		SourceURL:   entry.URL,
		DownloadURL: entry.Detail.DownloadURL,
		FilePath:    filepath.Join(outputDir, filename),
	}
	if err := db.CreateDownload(download); err != nil {
		return fmt.Errorf("failed to create download record: %w", err)
	}

	fmt.Printf("Downloading: %s\n", download.Title)
	fmt.Printf("Destination: %s\n", download.FilePath)
	fmt.Println()

	dlCtx, cancel := context.WithTimeout(ctx, 30*time.Minute)
	defer cancel()

	mgr := downloader.NewManager(a.http, downloader.DefaultRetryConfig())
	start := time.Now()
	if err := mgr.Download(dlCtx, download, a.client.Session().Cookies()); err != nil {
		notify.DownloadFailed(filename, err.Error())
		if errors.Is(err, downloader.ErrHTMLContent) {
			return fmt.Errorf("download failed: %w (the daily download limit may be reached)", err)
		}
		return fmt.Errorf("download failed: %w", err)
	}

	if err := downloader.VerifyFile(download.FilePath, download.Extension); err != nil {
		Errorf("downloaded file failed verification: %v", err)
	}

	Successf("Downloaded: %s (%s in %s)", download.FilePath,
		humanize.Bytes(uint64(download.DownloadedSize)),
		time.Since(start).Round(time.Second))
	notify.DownloadComplete(filename)
	return nil
}
