package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/billmal071/zlibdl/internal/db"
	"github.com/billmal071/zlibdl/internal/transport"
)

const epubBody = "PK\x03\x04mimetypeapplication/epub+zip and the rest of the book"

var fastRetry = RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, Multiplier: 2}

func openDB(t *testing.T) {
	t.Helper()
	require.NoError(t, db.Open(filepath.Join(t.TempDir(), "test.db")))
	t.Cleanup(func() { db.Close() })
}

func newManager(t *testing.T) *Manager {
	t.Helper()
	tr, err := transport.New(transport.DefaultOptions())
	require.NoError(t, err)
	m := NewManager(tr, fastRetry)
	m.SetProgressOutput(io.Discard)
	return m
}

func newRecord(t *testing.T, url string) *db.Download {
	t.Helper()
	d := &db.Download{
		BookID:      "5386911",
		Title:       "Foundation",
		Extension:   "epub",
		SourceURL:   "https://mirror.example.org/book/5386911",
		DownloadURL: url,
		FilePath:    filepath.Join(t.TempDir(), "out", "Foundation.epub"),
	}
	require.NoError(t, db.CreateDownload(d))
	return d
}

func TestDownloadWritesFile(t *testing.T) {
	openDB(t)
	var gotCookie string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie("remix_userid"); err == nil {
			gotCookie = c.Value
		}
		w.Header().Set("Content-Type", "application/epub+zip")
		_, _ = w.Write([]byte(epubBody))
	}))
	defer server.Close()

	d := newRecord(t, server.URL+"/dl/5386911")
	err := newManager(t).Download(context.Background(), d, transport.Cookies{"remix_userid": "123"})
	require.NoError(t, err)

	data, err := os.ReadFile(d.FilePath)
	require.NoError(t, err)
	assert.Equal(t, epubBody, string(data))
	assert.NoFileExists(t, d.FilePath+".part")
	assert.Equal(t, "123", gotCookie)

	stored, err := db.GetDownload(d.ID)
	require.NoError(t, err)
	assert.Equal(t, db.StatusCompleted, stored.Status)
	assert.Equal(t, int64(len(epubBody)), stored.DownloadedSize)
	assert.NotNil(t, stored.CompletedAt)
	assert.NoError(t, VerifyFile(d.FilePath, "epub"))
}

func TestDownloadUsesServerFileName(t *testing.T) {
	openDB(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/epub+zip")
		w.Header().Set("Content-Disposition", `attachment; filename="Isaac Asimov - Foundation (z-lib.org).epub"`)
		_, _ = w.Write([]byte(epubBody))
	}))
	defer server.Close()

	d := newRecord(t, server.URL+"/dl/5386911")
	dir := filepath.Dir(d.FilePath)
	require.NoError(t, newManager(t).Download(context.Background(), d, nil))

	want := filepath.Join(dir, "Isaac Asimov - Foundation (z-lib.org).epub")
	assert.Equal(t, want, d.FilePath)
	assert.FileExists(t, want)
	assert.NoFileExists(t, filepath.Join(dir, "Foundation.epub"))

	stored, err := db.GetDownload(d.ID)
	require.NoError(t, err)
	assert.Equal(t, want, stored.FilePath)
}

func TestDownloadRejectsHTML(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
	}{
		{name: "content type", contentType: "text/html; charset=utf-8", body: "<p>limit</p>"},
		{name: "sniffed body", contentType: "application/octet-stream", body: "<!DOCTYPE html><html><body>Daily limit reached</body></html>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			openDB(t)
			var hits atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				hits.Add(1)
				w.Header().Set("Content-Type", tt.contentType)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			d := newRecord(t, server.URL)
			err := newManager(t).Download(context.Background(), d, nil)
			assert.True(t, errors.Is(err, ErrHTMLContent), "got %v", err)
			assert.Equal(t, int32(1), hits.Load())
			assert.NoFileExists(t, d.FilePath)
			assert.NoFileExists(t, d.FilePath+".part")

			stored, err := db.GetDownload(d.ID)
			require.NoError(t, err)
			assert.Equal(t, db.StatusFailed, stored.Status)
			assert.Contains(t, stored.ErrorMessage, "HTML")
		})
	}
}

func TestDownloadRetriesTransientStatus(t *testing.T) {
	openDB(t)
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(epubBody))
	}))
	defer server.Close()

	d := newRecord(t, server.URL)
	require.NoError(t, newManager(t).Download(context.Background(), d, nil))
	assert.Equal(t, int32(2), hits.Load())

	stored, err := db.GetDownload(d.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.RetryCount)
	assert.Equal(t, db.StatusCompleted, stored.Status)
}

func TestDownloadDoesNotRetryNotFound(t *testing.T) {
	openDB(t)
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.NotFound(w, r)
	}))
	defer server.Close()

	d := newRecord(t, server.URL)
	err := newManager(t).Download(context.Background(), d, nil)
	require.Error(t, err)
	assert.Equal(t, int32(1), hits.Load())
}

func TestCategorizeError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		want   ErrorCategory
	}{
		{name: "rate limited", err: errors.New("x"), status: http.StatusTooManyRequests, want: ErrorRateLimited},
		{name: "not found", err: errors.New("x"), status: http.StatusNotFound, want: ErrorNonRetryable},
		{name: "bad gateway", err: errors.New("x"), status: http.StatusBadGateway, want: ErrorRetryable},
		{name: "transport timeout", err: fmt.Errorf("%w: slow", transport.ErrTimeout), want: ErrorRetryable},
		{name: "cancelled", err: fmt.Errorf("%w: stop", transport.ErrCancelled), want: ErrorNonRetryable},
		{name: "reset", err: errors.New("read: connection reset by peer"), want: ErrorRetryable},
		{name: "unexpected eof", err: io.ErrUnexpectedEOF, want: ErrorRetryable},
		{name: "html page", err: ErrHTMLContent, status: http.StatusOK, want: ErrorNonRetryable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CategorizeError(tt.err, tt.status))
		})
	}
}

func TestCalculateBackoffIsCapped(t *testing.T) {
	cfg := RetryConfig{MaxAttempts: 5, BaseDelay: 100 * time.Millisecond, MaxDelay: time.Second, Multiplier: 2}

	assert.Equal(t, cfg.BaseDelay, CalculateBackoff(0, cfg))
	for attempt := 1; attempt < 10; attempt++ {
		d := CalculateBackoff(attempt, cfg)
		assert.LessOrEqual(t, d, time.Duration(float64(cfg.MaxDelay)*1.25))
		assert.Greater(t, d, time.Duration(0))
	}
}

func TestRetryOperationStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := RetryOperation(ctx, RetryConfig{MaxAttempts: 5, BaseDelay: time.Hour, MaxDelay: time.Hour, Multiplier: 2}, func() (int, error) {
		calls++
		cancel()
		return http.StatusBadGateway, errors.New("bad gateway")
	})
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, 1, calls)
}

func TestRetryOperationRunsAtLeastOnce(t *testing.T) {
	calls := 0
	err := RetryOperation(context.Background(), RetryConfig{}, func() (int, error) {
		calls++
		return 0, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestVerifyFile(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) string {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(content), 0644))
		return p
	}

	assert.NoError(t, VerifyFile(write("a.pdf", "%PDF-1.7 ..."), "pdf"))
	assert.NoError(t, VerifyFile(write("a.epub", epubBody), ".EPUB"))
	assert.NoError(t, VerifyFile(write("a.txt", "plain"), "txt"))
	assert.Error(t, VerifyFile(write("b.pdf", "PK\x03\x04"), "pdf"))
	assert.True(t, errors.Is(VerifyFile(write("c.epub", "<html><body>limit</body></html>"), "epub"), ErrHTMLContent))
	assert.Error(t, VerifyFile(write("empty.pdf", ""), "pdf"))

	mobi := make([]byte, 80)
	copy(mobi[60:], "BOOKMOBI")
	assert.NoError(t, VerifyFile(write("a.mobi", string(mobi)), "mobi"))
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "Foundation - Isaac Asimov.epub", FileName("Foundation", "Isaac Asimov", "EPUB", ""))
	assert.Equal(t, "Server Name.pdf", FileName("Foundation", "", "epub", "../Server Name.pdf"))
	assert.Equal(t, "What_ A_B.pdf", FileName("What? A/B", "", ".pdf", ""))
	assert.Equal(t, "book", FileName("", "", "", ""))
	assert.Equal(t, "Foundation.epub", FileName("Foundation", "", "epub", ".."))
}
