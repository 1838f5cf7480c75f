package zlib

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/billmal071/zlibdl/internal/transport"
)

const (
	// DefaultDomain is the entry domain probed for the active mirror
	DefaultDomain = "https://z-lib.org/"
	// DefaultLoginURL is the single sign-on endpoint
	DefaultLoginURL = "https://singlelogin.me/rpc.php"
	// DefaultOnionDomain is the fixed hidden-service mirror
	DefaultOnionDomain = "http://bookszlibb74ugqojhzhg2a63w5i2atv5bqarulgczawnbmsb6s6qead.onion"
	// DefaultOnionLoginURL is the hidden-service login endpoint
	DefaultOnionLoginURL = "http://loginzlib2vrak5zzpcocc3ouizykn6k5qecgj2tzlnab5wcbqhembyd.onion/rpc.php"
	// DefaultWindowSize is the number of entries a Paginator returns per move
	DefaultWindowSize = 10
)

// Fetcher issues the HTTP calls the client needs. *transport.Transport
// implements it.
type Fetcher interface {
	Get(ctx context.Context, url string, cookies transport.Cookies) (string, error)
	GetWithCookies(ctx context.Context, url string, cookies transport.Cookies) (string, transport.Cookies, error)
	Post(ctx context.Context, url string, form map[string]string) (string, transport.Cookies, error)
}

// Options configures a Client
type Options struct {
	Domain        string
	LoginURL      string
	Onion         bool
	OnionDomain   string
	OnionLoginURL string

	Proxies           []string
	UserAgent         string
	Timeout           time.Duration
	ConnectTimeout    time.Duration
	ReadTimeout       time.Duration
	MaxConcurrent     int
	RequestsPerSecond float64

	Logger *slog.Logger

	// Transport replaces the HTTP layer built from the options above
	Transport Fetcher
}

// Client searches the catalog through the mirror resolved at Init
type Client struct {
	opts    Options
	http    Fetcher
	session *Session
	log     *slog.Logger

	mu     sync.Mutex
	mirror string
}

// New creates a Client. Proxy configuration is validated here, no request is made.
func New(opts Options) (*Client, error) {
	if opts.Domain == "" {
		opts.Domain = DefaultDomain
	}
	if opts.LoginURL == "" {
		opts.LoginURL = DefaultLoginURL
	}
	if opts.OnionDomain == "" {
		opts.OnionDomain = DefaultOnionDomain
	}
	if opts.OnionLoginURL == "" {
		opts.OnionLoginURL = DefaultOnionLoginURL
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Onion && len(opts.Proxies) == 0 && opts.Transport == nil {
		return nil, fmt.Errorf("%w: onion mode needs at least one proxy", ErrProxyConfig)
	}

	http := opts.Transport
	if http == nil {
		tr, err := transport.New(transport.Options{
			UserAgent:         opts.UserAgent,
			Timeout:           opts.Timeout,
			ConnectTimeout:    opts.ConnectTimeout,
			ReadTimeout:       opts.ReadTimeout,
			Proxies:           opts.Proxies,
			MaxConcurrent:     opts.MaxConcurrent,
			RequestsPerSecond: opts.RequestsPerSecond,
			Logger:            opts.Logger,
		})
		if err != nil {
			return nil, err
		}
		http = tr
	}

	return &Client{
		opts:    opts,
		http:    http,
		session: &Session{},
		log:     opts.Logger,
	}, nil
}

// Init resolves the working mirror. Later calls return immediately once a
// mirror is known.
func (c *Client) Init(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.mirror != "" {
		return nil
	}
	if c.opts.Onion {
		c.mirror = strings.TrimRight(c.opts.OnionDomain, "/")
		return nil
	}

	mirror, err := NewResolver(c.http, c.log).Resolve(ctx, c.opts.Domain)
	if err != nil {
		return err
	}
	c.mirror = mirror
	return nil
}

// Mirror returns the resolved mirror, empty before Init
func (c *Client) Mirror() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mirror
}

// SearchOptions narrows a search
type SearchOptions struct {
	Exact      bool
	YearFrom   int
	YearTo     int
	Languages  []string
	Extensions []string
	// Count is the window size, DefaultWindowSize when zero
	Count int
}

// MatchMode selects how full-text search matches the query
type MatchMode string

const (
	MatchPhrase MatchMode = "phrase"
	MatchWords  MatchMode = "words"
)

// FullTextOptions narrows a full-text search
type FullTextOptions struct {
	SearchOptions
	Match MatchMode
}

// Search runs a keyword search and returns an initialised Paginator
func (c *Client) Search(ctx context.Context, query string, opts SearchOptions) (*Paginator, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}

	mirror := c.Mirror()
	if mirror == "" {
		return nil, ErrNotInitialized
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s/s/%s?", mirror, url.PathEscape(query))
	opts.appendFilters(&b)

	return c.paginate(ctx, mirror, b.String(), opts.Count)
}

// FullTextSearch searches inside book texts and returns an initialised Paginator
func (c *Client) FullTextSearch(ctx context.Context, query string, opts FullTextOptions) (*Paginator, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	switch opts.Match {
	case MatchPhrase:
		if len(strings.Fields(query)) < 2 {
			return nil, fmt.Errorf("%w: phrase search needs at least two words", ErrInvalidQuery)
		}
	case MatchWords:
	default:
		return nil, fmt.Errorf("%w: match mode must be %q or %q", ErrInvalidQuery, MatchPhrase, MatchWords)
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}

	mirror := c.Mirror()
	if mirror == "" {
		return nil, ErrNotInitialized
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s/fulltext/%s?&type=%s", mirror, url.PathEscape(query), opts.Match)
	opts.appendFilters(&b)

	return c.paginate(ctx, mirror, b.String(), opts.Count)
}

// FetchDetail fetches the entry's detail page and fills entry.Detail.
// entry is left untouched on failure.
func (c *Client) FetchDetail(ctx context.Context, entry *CatalogEntry) (*CatalogEntry, error) {
	if entry == nil || entry.URL == "" {
		return nil, fmt.Errorf("%w: entry has no detail url", ErrParse)
	}

	body, err := c.http.Get(ctx, entry.URL, c.session.Cookies())
	if err != nil {
		return nil, err
	}
	detail, err := parseDetail(body, c.baseFor(entry.URL))
	if err != nil {
		return nil, err
	}

	entry.Detail = detail
	if entry.Name == "" {
		entry.Name = detail.Title
	}
	if entry.Cover == "" {
		entry.Cover = detail.Cover
	}
	if entry.Publisher == "" {
		entry.Publisher = detail.Publisher
	}
	if entry.Year == "" {
		entry.Year = detail.Year
	}
	if entry.Language == "" {
		entry.Language = detail.Language
	}
	if entry.Extension == "" {
		entry.Extension, entry.Size = detail.Extension, detail.Size
	}
	if entry.Rating == "" {
		entry.Rating = detail.Rating
	}
	return entry, nil
}

// FetchDetailURL fetches a detail page by URL. The entry name is taken from
// the page title when present.
func (c *Client) FetchDetailURL(ctx context.Context, detailURL string) (*CatalogEntry, error) {
	u, err := url.Parse(strings.TrimSpace(detailURL))
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("%w: %q is not an absolute url", ErrInvalidQuery, detailURL)
	}
	return c.FetchDetail(ctx, &CatalogEntry{URL: u.String()})
}

func (c *Client) paginate(ctx context.Context, mirror, queryURL string, count int) (*Paginator, error) {
	p := newPaginator(c.http, c.session, mirror, queryURL, count, c.log)
	c.log.Debug("starting search", "url", queryURL, "window", p.Count())
	if err := p.Init(ctx); err != nil {
		return nil, err
	}
	return p, nil
}

func (c *Client) loginURL() string {
	if c.opts.Onion {
		return c.opts.OnionLoginURL
	}
	return c.opts.LoginURL
}

// baseFor picks the origin relative links on a detail page resolve against
func (c *Client) baseFor(pageURL string) string {
	if m := c.Mirror(); m != "" {
		return m
	}
	u, err := url.Parse(pageURL)
	if err != nil {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

func (o SearchOptions) validate() error {
	if o.YearFrom < 0 || o.YearTo < 0 {
		return fmt.Errorf("%w: year bounds must not be negative", ErrInvalidQuery)
	}
	if o.Count < 0 {
		return fmt.Errorf("%w: window size must not be negative", ErrInvalidQuery)
	}
	return nil
}

func (o SearchOptions) appendFilters(b *strings.Builder) {
	if o.Exact {
		b.WriteString("&e=1")
	}
	if o.YearFrom > 0 {
		fmt.Fprintf(b, "&yearFrom=%d", o.YearFrom)
	}
	if o.YearTo > 0 {
		fmt.Fprintf(b, "&yearTo=%d", o.YearTo)
	}
	for _, lang := range o.Languages {
		if lang = strings.TrimSpace(lang); lang != "" {
			b.WriteString("&languages%5B%5D=" + url.QueryEscape(lang))
		}
	}
	for _, ext := range o.Extensions {
		if ext = strings.TrimSpace(ext); ext != "" {
			b.WriteString("&extensions%5B%5D=" + url.QueryEscape(ext))
		}
	}
}
