package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/net/html/charset"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

const (
	// DefaultUserAgent is sent on every request unless overridden
	DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/96.0.4664.110 Safari/537.36"
	// DefaultTimeout is the overall budget of one request
	DefaultTimeout = 90 * time.Second
	// DefaultConnectTimeout bounds establishing a connection
	DefaultConnectTimeout = 60 * time.Second
	// DefaultReadTimeout bounds waiting for the response
	DefaultReadTimeout = 90 * time.Second
	// DefaultMaxConcurrent is the number of requests allowed in flight at once
	DefaultMaxConcurrent = 64
)

var (
	// ErrTimeout indicates a request exceeded one of its time budgets
	ErrTimeout = errors.New("request timed out")
	// ErrCancelled indicates the caller's context was cancelled before the request finished
	ErrCancelled = errors.New("request cancelled")
	// ErrProxyConfig indicates a proxy URI could not be used
	ErrProxyConfig = errors.New("invalid proxy configuration")
)

// Cookies maps cookie names to values
type Cookies map[string]string

// Options configures a Transport
type Options struct {
	UserAgent      string
	Timeout        time.Duration
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration

	// Proxies is an ordered chain of proxy URIs (e.g. socks5://127.0.0.1:9050).
	// The first entry is the first hop.
	Proxies []string

	// MaxConcurrent caps in-flight requests. Zero disables the cap.
	MaxConcurrent int
	// RequestsPerSecond throttles outgoing requests. Zero disables throttling.
	RequestsPerSecond float64

	Logger *slog.Logger
}

// DefaultOptions returns the reference timeouts and limits
func DefaultOptions() Options {
	return Options{
		UserAgent:      DefaultUserAgent,
		Timeout:        DefaultTimeout,
		ConnectTimeout: DefaultConnectTimeout,
		ReadTimeout:    DefaultReadTimeout,
		MaxConcurrent:  DefaultMaxConcurrent,
	}
}

// Transport issues single GET/POST requests with a fixed User-Agent,
// optional cookies and an optional proxy chain.
type Transport struct {
	opts    Options
	base    *http.Transport
	sem     *semaphore.Weighted
	limiter *rate.Limiter
	log     *slog.Logger
}

// Stream is an open response body for large downloads.
// The caller must Close it.
type Stream struct {
	Body        io.ReadCloser
	Size        int64
	ContentType string
	FileName    string
	StatusCode  int
}

// New creates a Transport. Proxy URIs are validated here, before any network I/O.
func New(opts Options) (*Transport, error) {
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = DefaultConnectTimeout
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = DefaultReadTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	direct := &net.Dialer{Timeout: opts.ConnectTimeout, KeepAlive: 30 * time.Second}
	dial, err := chainDialer(direct, opts.Proxies)
	if err != nil {
		return nil, err
	}

	t := &Transport{
		opts: opts,
		base: &http.Transport{
			DialContext:           dial,
			ResponseHeaderTimeout: opts.ReadTimeout,
			TLSHandshakeTimeout:   opts.ConnectTimeout,
			MaxIdleConns:          10,
			MaxIdleConnsPerHost:   5,
			IdleConnTimeout:       30 * time.Second,
		},
		log: logger,
	}
	if opts.MaxConcurrent > 0 {
		t.sem = semaphore.NewWeighted(int64(opts.MaxConcurrent))
	}
	if opts.RequestsPerSecond > 0 {
		burst := int(opts.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		t.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}

	return t, nil
}

// Proxied reports whether requests are routed through a proxy chain
func (t *Transport) Proxied() bool {
	return len(t.opts.Proxies) > 0
}

// Get fetches url and returns the decoded body
func (t *Transport) Get(ctx context.Context, rawURL string, cookies Cookies) (string, error) {
	body, _, err := t.GetWithCookies(ctx, rawURL, cookies)
	return body, err
}

// GetWithCookies fetches url and returns the decoded body along with every
// cookie held by the request's jar once the response is complete.
func (t *Transport) GetWithCookies(ctx context.Context, rawURL string, cookies Cookies) (string, Cookies, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", nil, fmt.Errorf("invalid url %q: %w", rawURL, err)
	}

	release, err := t.acquire(ctx)
	if err != nil {
		return "", nil, err
	}
	defer release()

	jar, err := seededJar(u, cookies)
	if err != nil {
		return "", nil, err
	}

	t.log.Debug("http request", "method", http.MethodGet, "url", rawURL)
	res, err := t.client(jar, t.opts.Timeout).R().
		SetContext(ctx).
		Get(rawURL)
	if err != nil {
		return "", nil, classify(ctx, err)
	}

	text, err := t.decode(res)
	if err != nil {
		return "", nil, err
	}
	return text, collectCookies(jar, u, res), nil
}

// Post submits form to url and returns the decoded body and the cookies set by the response
func (t *Transport) Post(ctx context.Context, rawURL string, form map[string]string) (string, Cookies, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", nil, fmt.Errorf("invalid url %q: %w", rawURL, err)
	}

	release, err := t.acquire(ctx)
	if err != nil {
		return "", nil, err
	}
	defer release()

	jar, err := seededJar(u, nil)
	if err != nil {
		return "", nil, err
	}

	t.log.Debug("http request", "method", http.MethodPost, "url", rawURL)
	res, err := t.client(jar, t.opts.Timeout).R().
		SetContext(ctx).
		SetFormData(form).
		Post(rawURL)
	if err != nil {
		return "", nil, classify(ctx, err)
	}

	text, err := t.decode(res)
	if err != nil {
		return "", nil, err
	}
	return text, collectCookies(jar, u, res), nil
}

// Stream opens url for reading without an overall time budget.
// The concurrency slot is held until the body is closed.
func (t *Transport) Stream(ctx context.Context, rawURL string, cookies Cookies) (*Stream, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid url %q: %w", rawURL, err)
	}

	release, err := t.acquire(ctx)
	if err != nil {
		return nil, err
	}

	jar, err := seededJar(u, cookies)
	if err != nil {
		release()
		return nil, err
	}

	t.log.Debug("http request", "method", http.MethodGet, "url", rawURL, "stream", true)
	res, err := t.client(jar, 0).R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(rawURL)
	if err != nil {
		release()
		return nil, classify(ctx, err)
	}

	raw := res.RawResponse
	s := &Stream{
		Body:        &releasingBody{ReadCloser: res.RawBody(), release: release},
		Size:        raw.ContentLength,
		ContentType: raw.Header.Get("Content-Type"),
		StatusCode:  raw.StatusCode,
	}
	if _, params, err := mime.ParseMediaType(raw.Header.Get("Content-Disposition")); err == nil {
		s.FileName = params["filename"]
	}
	return s, nil
}

func (t *Transport) client(jar http.CookieJar, timeout time.Duration) *resty.Client {
	c := resty.NewWithClient(&http.Client{
		Transport: t.base,
		Jar:       jar,
	})
	c.SetHeader("User-Agent", t.opts.UserAgent)
	c.SetTimeout(timeout)
	if t.limiter != nil {
		c.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
			if err := t.limiter.Wait(req.Context()); err != nil {
				return classify(req.Context(), err)
			}
			return nil
		})
	}
	return c
}

func (t *Transport) acquire(ctx context.Context) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, classify(ctx, err)
	}
	if t.sem == nil {
		return func() {}, nil
	}
	if err := t.sem.Acquire(ctx, 1); err != nil {
		return nil, classify(ctx, err)
	}
	return func() { t.sem.Release(1) }, nil
}

func (t *Transport) decode(res *resty.Response) (string, error) {
	if res.StatusCode() < 200 || res.StatusCode() >= 300 {
		t.log.Warn("unexpected status", "url", res.Request.URL, "status", res.StatusCode())
	}

	r, err := charset.NewReader(bytes.NewReader(res.Body()), res.Header().Get("Content-Type"))
	if err != nil {
		// Unknown charset, fall back to the raw bytes
		return string(res.Body()), nil
	}
	decoded, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("failed to decode response body: %w", err)
	}
	return string(decoded), nil
}

func seededJar(u *url.URL, cookies Cookies) (*cookiejar.Jar, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	if len(cookies) > 0 {
		seed := make([]*http.Cookie, 0, len(cookies))
		for name, value := range cookies {
			seed = append(seed, &http.Cookie{Name: name, Value: value, Path: "/"})
		}
		jar.SetCookies(&url.URL{Scheme: u.Scheme, Host: u.Host, Path: "/"}, seed)
	}
	return jar, nil
}

// collectCookies flattens the jar for the request and final URLs
func collectCookies(jar *cookiejar.Jar, requested *url.URL, res *resty.Response) Cookies {
	out := Cookies{}
	urls := []*url.URL{requested}
	if res.RawResponse != nil && res.RawResponse.Request != nil && res.RawResponse.Request.URL != nil {
		urls = append(urls, res.RawResponse.Request.URL)
	}
	for _, u := range urls {
		for _, c := range jar.Cookies(u) {
			out[c.Name] = c.Value
		}
	}
	return out
}

// classify maps context and network failures onto the package's error kinds
func classify(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled) {
		return fmt.Errorf("%w: %w", ErrCancelled, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	return err
}

type releasingBody struct {
	io.ReadCloser
	release func()
	closed  bool
}

func (b *releasingBody) Close() error {
	err := b.ReadCloser.Close()
	if !b.closed {
		b.closed = true
		b.release()
	}
	return err
}
