package zlib

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Resolver discovers the active mirror behind the entry domain
type Resolver struct {
	http Fetcher
	log  *slog.Logger
}

// NewResolver creates a Resolver issuing requests through http
func NewResolver(http Fetcher, log *slog.Logger) *Resolver {
	if log == nil {
		log = slog.Default()
	}
	return &Resolver{http: http, log: log}
}

// Resolve probes entryDomain and returns the mirror it points at,
// normalised to carry a scheme and no trailing slash.
func (r *Resolver) Resolve(ctx context.Context, entryDomain string) (string, error) {
	body, err := r.http.Get(ctx, entryDomain, nil)
	if err != nil {
		return "", fmt.Errorf("failed to probe %s: %w", entryDomain, err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrNoMirror, err)
	}

	if failure := doc.Find("div.domain-check-error"); failure.Length() > 0 && !failure.HasClass("hidden") {
		return "", fmt.Errorf("%w: domain check failed: %s", ErrNoMirror, cleanText(failure.Text()))
	}

	host := strings.TrimSpace(doc.Find("div.domain-check-success").First().Text())
	if host == "" {
		return "", fmt.Errorf("%w: no domain check result on %s", ErrNoMirror, entryDomain)
	}

	mirror := normaliseMirror(host)
	r.log.Debug("resolved mirror", "entry", entryDomain, "mirror", mirror)
	return mirror, nil
}

func normaliseMirror(host string) string {
	if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
		host = "https://" + host
	}
	return strings.TrimRight(host, "/")
}
