package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/schollz/progressbar/v3"

	"github.com/billmal071/zlibdl/internal/db"
	"github.com/billmal071/zlibdl/internal/transport"
)

// ErrHTMLContent indicates the download returned HTML instead of a file
var ErrHTMLContent = errors.New("received HTML content instead of file")

// Streamer opens a download body. *transport.Transport implements it.
type Streamer interface {
	Stream(ctx context.Context, url string, cookies transport.Cookies) (*transport.Stream, error)
}

// Manager handles download operations
type Manager struct {
	http     Streamer
	retry    RetryConfig
	progress io.Writer
	log      *slog.Logger
}

// NewManager creates a new download manager
func NewManager(http Streamer, retry RetryConfig) *Manager {
	return &Manager{
		http:     http,
		retry:    retry,
		progress: os.Stderr,
		log:      slog.Default(),
	}
}

// SetProgressOutput redirects the progress bar, io.Discard hides it
func (m *Manager) SetProgressOutput(w io.Writer) {
	m.progress = w
}

// Download fetches d.DownloadURL into d.FilePath, retrying transient
// failures. The record is kept up to date in the database.
func (m *Manager) Download(ctx context.Context, d *db.Download, cookies transport.Cookies) error {
	if err := db.UpdateStatus(d.ID, db.StatusDownloading, ""); err != nil {
		return err
	}

	attempt := 0
	err := RetryOperation(ctx, m.retry, func() (int, error) {
		if attempt > 0 {
			m.log.Debug("retrying download", "id", d.ID, "attempt", attempt+1)
			if err := db.IncrementRetry(d.ID); err != nil {
				m.log.Warn("failed to record retry", "id", d.ID, "error", err)
			}
		}
		attempt++
		return m.fetch(ctx, d, cookies)
	})
	if err != nil {
		if uerr := db.UpdateStatus(d.ID, db.StatusFailed, err.Error()); uerr != nil {
			m.log.Warn("failed to record failure", "id", d.ID, "error", uerr)
		}
		return err
	}

	return db.MarkCompleted(d.ID, d.FilePath)
}

// fetch performs one attempt and reports the HTTP status for retry decisions
func (m *Manager) fetch(ctx context.Context, d *db.Download, cookies transport.Cookies) (int, error) {
	s, err := m.http.Stream(ctx, d.DownloadURL, cookies)
	if err != nil {
		return 0, err
	}
	defer s.Body.Close()

	if s.StatusCode != http.StatusOK {
		return s.StatusCode, fmt.Errorf("server returned %d", s.StatusCode)
	}

	// Check content type - if it's HTML, this is likely a limit or error page
	if strings.Contains(s.ContentType, "text/html") {
		return s.StatusCode, ErrHTMLContent
	}

	if d.FilePath == "" {
		return s.StatusCode, errors.New("download has no destination path")
	}
	if s.FileName != "" {
		// Prefer the server's name, Download stores the new path on completion
		d.FilePath = filepath.Join(filepath.Dir(d.FilePath), FileName(d.Title, d.Authors, d.Extension, s.FileName))
	}
	if err := os.MkdirAll(filepath.Dir(d.FilePath), 0755); err != nil {
		return s.StatusCode, err
	}

	tempPath := d.FilePath + ".part"
	file, err := os.Create(tempPath)
	if err != nil {
		return s.StatusCode, err
	}
	cleanup := func() {
		file.Close()
		os.Remove(tempPath)
	}

	bar := progressbar.NewOptions64(
		s.Size,
		progressbar.OptionSetWriter(m.progress),
		progressbar.OptionSetDescription("Downloading"),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)

	// Read the first few bytes to validate content
	header := make([]byte, 512)
	n, err := io.ReadFull(s.Body, header)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		cleanup()
		return s.StatusCode, err
	}
	if n > 0 {
		if looksLikeHTML(header[:n]) {
			cleanup()
			return s.StatusCode, ErrHTMLContent
		}
		if _, err := file.Write(header[:n]); err != nil {
			cleanup()
			return s.StatusCode, err
		}
		bar.Add(n)
	}

	written, err := io.Copy(io.MultiWriter(file, bar), s.Body)
	if err != nil {
		cleanup()
		return s.StatusCode, err
	}
	fmt.Fprintln(m.progress) // New line after progress bar

	total := int64(n) + written
	if err := db.UpdateProgress(d.ID, total, total); err != nil {
		m.log.Warn("failed to record progress", "id", d.ID, "error", err)
	}
	d.DownloadedSize = total
	d.FileSize = max(d.FileSize, total)

	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return s.StatusCode, err
	}
	return s.StatusCode, os.Rename(tempPath, d.FilePath)
}

func looksLikeHTML(head []byte) bool {
	s := strings.ToLower(string(head))
	return strings.Contains(s, "<!doctype html") ||
		strings.Contains(s, "<html") ||
		strings.Contains(s, "<head")
}

// FileName builds a safe file name for a book
func FileName(title, authors, ext, serverName string) string {
	if serverName != "" {
		if name := SanitizeFilename(filepath.Base(serverName)); name != "" && name != "." && name != ".." {
			return name
		}
	}
	name := SanitizeFilename(title)
	if authors != "" {
		name = fmt.Sprintf("%s - %s", name, SanitizeFilename(authors))
	}
	if name == "" {
		name = "book"
	}
	ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
	if ext == "" {
		return name
	}
	return name + "." + ext
}

// SanitizeFilename removes invalid characters from filename
func SanitizeFilename(name string) string {
	// Remove or replace invalid characters
	invalid := []string{"/", "\\", ":", "*", "?", "\"", "<", ">", "|"}
	for _, char := range invalid {
		name = strings.ReplaceAll(name, char, "_")
	}

	// Trim whitespace and limit length
	name = strings.TrimSpace(name)
	if r := []rune(name); len(r) > 100 {
		name = strings.TrimSpace(string(r[:100]))
	}

	return name
}
