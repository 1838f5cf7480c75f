package zlib

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
)

// State is the lifecycle state of a Paginator
type State int

const (
	// Uninitialized means page 1 has not been fetched yet
	Uninitialized State = iota
	// Ready means the cursor sits inside the known pages
	Ready
	// Exhausted means the last move hit the first or last page boundary.
	// Moving back into range returns to Ready.
	Exhausted
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Ready:
		return "ready"
	case Exhausted:
		return "exhausted"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Paginator walks the results of one query in windows of Count entries,
// fetching and caching result pages as the cursor reaches them.
//
// The cursor is the page number plus the window [start, end) inside that
// page; Pos reports end. Windows are aligned to multiples of Count, so the
// window at a page boundary may be shorter than Count.
//
// Prev at the start of page 1 rewinds the cursor to where Init left it while
// the first window stays current, so the following Next returns the second
// window.
//
// Calls are serialised internally, but a Paginator is meant to be driven by
// a single consumer.
type Paginator struct {
	mu sync.Mutex

	http    Fetcher
	session *Session
	mirror  string
	url     string
	count   int
	log     *slog.Logger

	page    int
	total   int
	storage map[int][]*CatalogEntry
	start   int
	end     int
	state   State
	rewound bool
}

func newPaginator(http Fetcher, session *Session, mirror, queryURL string, count int, log *slog.Logger) *Paginator {
	if count <= 0 {
		count = DefaultWindowSize
	}
	if session == nil {
		session = &Session{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Paginator{
		http:    http,
		session: session,
		mirror:  mirror,
		url:     queryURL,
		count:   count,
		log:     log,
		page:    1,
		storage: map[int][]*CatalogEntry{},
	}
}

// Init fetches the first page. It is a no-op once it has succeeded.
func (p *Paginator) Init(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != Uninitialized {
		return nil
	}
	if err := p.ensure(ctx, 1); err != nil {
		return err
	}
	p.page = 1
	p.start, p.end = 0, 0
	p.rewound = false
	p.state = Ready
	return nil
}

// Next returns the window after the current one, moving to the next page
// when the current page is used up. At the last page it returns the tail
// of that page and the state becomes Exhausted.
func (p *Paginator) Next(ctx context.Context) ([]*CatalogEntry, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == Uninitialized {
		return nil, ErrNotInitialized
	}

	entries := p.storage[p.page]
	end := p.end
	if p.rewound {
		end = min(p.count, len(entries))
	}
	if end < len(entries) {
		p.rewound = false
		p.start = end
		p.end = min(end+p.count, len(entries))
		p.state = Ready
		return p.window(), nil
	}

	if p.page < p.total {
		if err := p.ensure(ctx, p.page+1); err != nil {
			return nil, err
		}
		p.rewound = false
		p.page++
		p.start = 0
		p.end = min(p.count, len(p.storage[p.page]))
		p.state = Ready
		return p.window(), nil
	}

	p.rewound = false
	p.tail()
	p.state = Exhausted
	return p.window(), nil
}

// Prev returns the window before the current one, moving to the previous
// page when the cursor is at the start of a page. At page 1 the cursor
// rewinds to where Init left it, the first window is returned and the
// state becomes Exhausted.
func (p *Paginator) Prev(ctx context.Context) ([]*CatalogEntry, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == Uninitialized {
		return nil, ErrNotInitialized
	}

	if p.start > 0 {
		p.end = p.start
		p.start = max(p.start-p.count, 0)
		p.state = Ready
		return p.window(), nil
	}

	if p.page > 1 {
		if err := p.ensure(ctx, p.page-1); err != nil {
			return nil, err
		}
		p.page--
		p.tail()
		p.state = Ready
		return p.window(), nil
	}

	p.start, p.end = 0, 0
	p.rewound = true
	p.state = Exhausted
	return p.window(), nil
}

// Current returns the window under the cursor without moving it
func (p *Paginator) Current() []*CatalogEntry {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.window()
}

// Page returns the current page number
func (p *Paginator) Page() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.page
}

// Total returns the known number of result pages
func (p *Paginator) Total() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.total
}

// Pos returns the in-page read offset. It is 0 after Prev rewinds page 1.
func (p *Paginator) Pos() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.end
}

// Count returns the window size
func (p *Paginator) Count() int {
	return p.count
}

// State returns the lifecycle state
func (p *Paginator) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Cached returns the stored entries of page n and whether it was fetched
func (p *Paginator) Cached(n int) ([]*CatalogEntry, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	entries, ok := p.storage[n]
	return slices.Clone(entries), ok
}

// URL returns the query URL without a page number
func (p *Paginator) URL() string {
	return p.url
}

func (p *Paginator) window() []*CatalogEntry {
	entries := p.storage[p.page]
	if p.rewound {
		return slices.Clone(entries[:min(p.count, len(entries))])
	}
	if p.start >= p.end || p.end > len(entries) {
		return []*CatalogEntry{}
	}
	return slices.Clone(entries[p.start:p.end])
}

// tail moves the window to the last aligned window of the current page
func (p *Paginator) tail() {
	n := len(p.storage[p.page])
	if n == 0 {
		p.start, p.end = 0, 0
		return
	}
	p.start = ((n - 1) / p.count) * p.count
	p.end = n
}

// ensure caches page n, fetching it when missing. A failed fetch changes nothing.
func (p *Paginator) ensure(ctx context.Context, n int) error {
	if _, ok := p.storage[n]; ok {
		return nil
	}

	pageURL := fmt.Sprintf("%s&page=%d", p.url, n)
	body, err := p.http.Get(ctx, pageURL, p.session.Cookies())
	if err != nil {
		return err
	}
	res, err := parseResultsPage(body, p.mirror, p.log)
	if err != nil {
		return fmt.Errorf("page %d: %w", n, err)
	}

	p.storage[n] = res.entries
	switch {
	case res.pagesTotal >= 0:
		p.total = res.pagesTotal
	case !res.notFound:
		p.total = max(p.total, n)
	}

	p.log.Debug("cached result page", "page", n, "entries", len(res.entries), "total", p.total)
	return nil
}
