package zlib

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/billmal071/zlibdl/internal/transport"
)

const fullRow = `<div class="resItemBox resItemBoxBooks exactMatch">
  <table class="resItemTable"><tr>
    <td class="itemCover">
      <div class="itemCoverWrapper" data-book_id="5386911" data-isbn="9780553293357">
        <a href="/book/5386911/0e2b9c/foundation.html"><img class="cover lazy" data-src="https://covers.example.org/covers100/5386911.jpg" alt=""></a>
      </div>
    </td>
    <td>
      <h3 itemprop="name"><a href="/book/5386911/0e2b9c/foundation.html">Foundation</a></h3>
      <div><a title="Publisher" href="/s/?q=Bantam+Spectra">Bantam   Spectra</a></div>
      <div class="authors">
        <a itemprop="author" href="/g/Isaac Asimov">Isaac Asimov</a>,
        <a itemprop="author" href="/g/Jane Doe">Jane Doe</a>
      </div>
      <div class="bookProperty property_year"><div class="property_label">Year:</div><div class="property_value">1991</div></div>
      <div class="bookProperty property_language"><div class="property_label">Language:</div><div class="property_value">english</div></div>
      <div class="bookProperty property__file"><div class="property_label">File:</div><div class="property_value">EPUB, 2.31 MB</div></div>
      <div class="property_rating">
        <span class="book-rating-interest-score">5.0</span> /
        <span class="book-rating-quality-score">4.5</span>
      </div>
    </td>
  </tr></table>
</div>`

func row(id int, title string) string {
	return fmt.Sprintf(`<div class="resItemBox">
  <table class="resItemTable"><tr><td>
    <div class="itemCoverWrapper" data-book_id="%d" data-isbn="">
      <a href="/book/%d/x/b.html"><img data-src="/covers/%d.jpg"></a>
    </div>
    <h3 itemprop="name"><a href="/book/%d/x/b.html">%s</a></h3>
  </td></tr></table>
</div>`, id, id, id, id, title)
}

// resultsHTML renders a results page. pagesTotal < 0 omits the pager script.
func resultsHTML(rows []string, pagesTotal int) string {
	var b strings.Builder
	b.WriteString(`<html><body><div id="searchResultBox">`)
	for _, r := range rows {
		b.WriteString(r)
	}
	b.WriteString(`</div>`)
	if pagesTotal >= 0 {
		fmt.Fprintf(&b, `<script>var pagerOptions = { pagesTotal: %d, startPage: 1 };</script>`, pagesTotal)
	}
	b.WriteString(`</body></html>`)
	return b.String()
}

// pageOf renders page n of a catalog with perPage entries per page
func pageOf(n, perPage, pagesTotal int) string {
	rows := make([]string, 0, perPage)
	for i := 0; i < perPage; i++ {
		id := (n-1)*perPage + i + 1
		rows = append(rows, row(id, fmt.Sprintf("Book %d", id)))
	}
	return resultsHTML(rows, pagesTotal)
}

const notFoundHTML = `<html><body><div id="searchResultBox"><div class="notFound">Nothing has been found</div></div></body></html>`

const detailHTML = `<html><body>
<div class="row cardBooks">
  <div class="col-sm-3"><a class="details-book-cover" href="/covers/5386911.jpg"><img src="/covers/5386911.jpg"></a></div>
  <div class="col-sm-9">
    <h1 itemprop="name">Foundation</h1>
    <div id="bookDescriptionBox"><p>The first novel of the Foundation trilogy.</p></div>
    <div class="bookDetailsBox">
      <div class="bookProperty property_year"><div class="property_label">Year:</div><div class="property_value">1991</div></div>
      <div class="bookProperty property_edition"><div class="property_label">Edition:</div><div class="property_value">Reissue</div></div>
      <div class="bookProperty property_publisher"><div class="property_label">Publisher:</div><div class="property_value">Bantam Spectra</div></div>
      <div class="bookProperty property_language"><div class="property_label">Language:</div><div class="property_value">english</div></div>
      <div class="bookProperty property_isbn 10"><div class="property_label">ISBN 10:</div><div class="property_value">0553293354</div></div>
      <div class="bookProperty property_isbn 13"><div class="property_label">ISBN 13:</div><div class="property_value">9780553293357</div></div>
      <div class="bookProperty property_categories"><div class="property_label">Categories:</div><div class="property_value"><a href="/category/268/Fiction">Fiction</a></div></div>
      <div class="bookProperty property__file"><div class="property_label">File:</div><div class="property_value">EPUB, 2.31 MB</div></div>
    </div>
    <div class="book-rating"><span>5.0</span> / <span>4.5</span></div>
  </div>
</div>
<div class="book-details-button"><a class="btn btn-primary dlButton" href="/dl/5386911/ab12cd">Download (epub, 2.31 MB)</a></div>
</body></html>`

const mirrorHTML = `<html><body>
<div class="domain-check-error hidden">Unable to find a domain</div>
<div class="domain-check-success">%s</div>
</body></html>`

// fakeFetcher serves canned bodies keyed by URL and counts requests
type fakeFetcher struct {
	mu      sync.Mutex
	pages   map[string]string
	errs    map[string]error
	calls   map[string]int
	cookies []transport.Cookies
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		pages: map[string]string{},
		errs:  map[string]error{},
		calls: map[string]int{},
	}
}

func (f *fakeFetcher) Get(ctx context.Context, url string, cookies transport.Cookies) (string, error) {
	body, _, err := f.GetWithCookies(ctx, url, cookies)
	return body, err
}

func (f *fakeFetcher) GetWithCookies(ctx context.Context, url string, cookies transport.Cookies) (string, transport.Cookies, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[url]++
	f.cookies = append(f.cookies, cookies)
	if err := ctx.Err(); err != nil {
		return "", nil, fmt.Errorf("%w: %w", transport.ErrCancelled, err)
	}
	if err, ok := f.errs[url]; ok {
		return "", nil, err
	}
	body, ok := f.pages[url]
	if !ok {
		return "", nil, fmt.Errorf("unexpected request to %s", url)
	}
	return body, transport.Cookies{}, nil
}

func (f *fakeFetcher) Post(ctx context.Context, url string, form map[string]string) (string, transport.Cookies, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[url]++
	return "", nil, fmt.Errorf("unexpected post to %s", url)
}

func (f *fakeFetcher) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func (f *fakeFetcher) count(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[url]
}

func (f *fakeFetcher) setErr(url string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.errs, url)
		return
	}
	f.errs[url] = err
}
