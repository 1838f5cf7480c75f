package zlib

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/billmal071/zlibdl/internal/transport"
)

const testQuery = testMirror + "/s/foundation%20asimov?"

func pageURL(n int) string {
	return fmt.Sprintf("%s&page=%d", testQuery, n)
}

// catalog serves pages of perPage entries each, with every page announcing pages total
func catalog(pages, perPage int) *fakeFetcher {
	f := newFakeFetcher()
	for n := 1; n <= pages; n++ {
		f.pages[pageURL(n)] = pageOf(n, perPage, pages)
	}
	return f
}

func newTestPaginator(t *testing.T, f *fakeFetcher, count int) *Paginator {
	t.Helper()
	p := newPaginator(f, &Session{}, testMirror, testQuery, count, nil)
	require.NoError(t, p.Init(context.Background()))
	return p
}

func names(entries []*CatalogEntry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Name)
	}
	return out
}

func TestPaginatorInit(t *testing.T) {
	f := catalog(3, 10)
	p := newTestPaginator(t, f, 10)

	assert.Equal(t, Ready, p.State())
	assert.Equal(t, 1, p.Page())
	assert.Equal(t, 3, p.Total())
	assert.Equal(t, 0, p.Pos())
	assert.Equal(t, 1, f.count(pageURL(1)))

	// Init again is a no-op
	require.NoError(t, p.Init(context.Background()))
	assert.Equal(t, 1, f.count(pageURL(1)))
}

func TestPaginatorRequiresInit(t *testing.T) {
	p := newPaginator(catalog(1, 1), nil, testMirror, testQuery, 10, nil)
	assert.Equal(t, Uninitialized, p.State())

	_, err := p.Next(context.Background())
	assert.True(t, errors.Is(err, ErrNotInitialized))
	_, err = p.Prev(context.Background())
	assert.True(t, errors.Is(err, ErrNotInitialized))
}

func TestPaginatorScenarioThreePagesOfTen(t *testing.T) {
	ctx := context.Background()
	p := newTestPaginator(t, catalog(3, 10), 10)

	for i := 0; i < 3; i++ {
		w, err := p.Next(ctx)
		require.NoError(t, err)
		require.Len(t, w, 10)
		assert.Equal(t, fmt.Sprintf("Book %d", i*10+1), w[0].Name)
		assert.Equal(t, i+1, p.Page())
		assert.Equal(t, Ready, p.State())
	}

	last, err := p.Next(ctx)
	require.NoError(t, err)
	assert.Len(t, last, 10)
	assert.Equal(t, "Book 21", last[0].Name)
	assert.Equal(t, 3, p.Page())
	assert.Equal(t, Exhausted, p.State())
}

func TestPaginatorCacheIdempotence(t *testing.T) {
	ctx := context.Background()
	f := catalog(2, 10)
	p := newTestPaginator(t, f, 10)

	_, err := p.Next(ctx) // page 1
	require.NoError(t, err)
	_, err = p.Next(ctx) // page 2
	require.NoError(t, err)
	_, err = p.Prev(ctx) // back to page 1
	require.NoError(t, err)
	_, err = p.Next(ctx) // page 2 again
	require.NoError(t, err)
	_, err = p.Next(ctx) // clamp on page 2
	require.NoError(t, err)

	assert.Equal(t, 1, f.count(pageURL(1)))
	assert.Equal(t, 1, f.count(pageURL(2)))
}

func TestPaginatorRoundTripReturnsToOrigin(t *testing.T) {
	tests := []struct {
		name    string
		pages   int
		perPage int
		count   int
	}{
		{name: "aligned", pages: 3, perPage: 10, count: 10},
		{name: "several windows per page", pages: 2, perPage: 25, count: 10},
		{name: "window larger than page", pages: 3, perPage: 4, count: 10},
		{name: "single page", pages: 1, perPage: 7, count: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			p := newTestPaginator(t, catalog(tt.pages, tt.perPage), tt.count)
			startPage, startPos := p.Page(), p.Pos()

			moves := 0
			for p.State() != Exhausted {
				_, err := p.Next(ctx)
				require.NoError(t, err)
				moves++
				require.Less(t, moves, 100)
			}
			for i := 0; i < moves; i++ {
				_, err := p.Prev(ctx)
				require.NoError(t, err)
			}

			assert.Equal(t, startPage, p.Page())
			assert.Equal(t, startPos, p.Pos())
		})
	}
}

func TestPaginatorClampsAtLastPage(t *testing.T) {
	ctx := context.Background()
	f := newFakeFetcher()
	f.pages[pageURL(1)] = pageOf(1, 10, 2)
	f.pages[pageURL(2)] = pageOf(2, 3, 2)
	p := newTestPaginator(t, f, 10)

	var last []*CatalogEntry
	for i := 0; i < 6; i++ {
		w, err := p.Next(ctx)
		require.NoError(t, err)
		assert.LessOrEqual(t, p.Page(), p.Total())
		last = w
	}

	assert.Equal(t, []string{"Book 4", "Book 5", "Book 6"}, names(last))
	assert.Equal(t, 2, p.Page())
	assert.Equal(t, Exhausted, p.State())
	assert.Equal(t, 3, p.Pos())
}

func TestPaginatorWindowsWithinPage(t *testing.T) {
	ctx := context.Background()
	p := newTestPaginator(t, catalog(1, 25), 10)

	w, err := p.Next(ctx)
	require.NoError(t, err)
	assert.Len(t, w, 10)
	w, err = p.Next(ctx)
	require.NoError(t, err)
	assert.Len(t, w, 10)
	w, err = p.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Book 21", "Book 22", "Book 23", "Book 24", "Book 25"}, names(w))

	w, err = p.Prev(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Book 11", w[0].Name)
	assert.Equal(t, 20, p.Pos())
	assert.Equal(t, names(w), names(p.Current()))
}

func TestPaginatorPrevAtFirstPage(t *testing.T) {
	ctx := context.Background()
	p := newTestPaginator(t, catalog(2, 10), 10)

	w, err := p.Prev(ctx)
	require.NoError(t, err)
	assert.Len(t, w, 10)
	assert.Equal(t, "Book 1", w[0].Name)
	assert.Equal(t, Exhausted, p.State())
	assert.Equal(t, 1, p.Page())
	assert.Equal(t, 0, p.Pos())
	assert.Equal(t, names(w), names(p.Current()))

	// the first window was shown, so moving forward goes past it
	w, err = p.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Book 11", w[0].Name)
	assert.Equal(t, 2, p.Page())
	assert.Equal(t, Ready, p.State())
}

func TestPaginatorRewindKeepsFirstWindowCurrent(t *testing.T) {
	ctx := context.Background()
	p := newTestPaginator(t, catalog(1, 12), 5)

	w, err := p.Next(ctx)
	require.NoError(t, err)
	first := names(w)
	assert.Equal(t, 5, p.Pos())

	w, err = p.Prev(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, names(w))
	assert.Equal(t, first, names(p.Current()))
	assert.Equal(t, 0, p.Pos())
	assert.Equal(t, Exhausted, p.State())

	w, err = p.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Book 6", "Book 7", "Book 8", "Book 9", "Book 10"}, names(w))
	assert.Equal(t, 10, p.Pos())
}

func TestPaginatorRewindFailedFetchKeepsFirstWindow(t *testing.T) {
	ctx := context.Background()
	f := catalog(2, 5)
	p := newTestPaginator(t, f, 5)
	f.setErr(pageURL(2), transport.ErrTimeout)

	_, err := p.Prev(ctx)
	require.NoError(t, err)

	_, err = p.Next(ctx)
	assert.ErrorIs(t, err, transport.ErrTimeout)
	assert.Equal(t, 1, p.Page())
	assert.Equal(t, 0, p.Pos())
	assert.Equal(t, []string{"Book 1", "Book 2", "Book 3", "Book 4", "Book 5"}, names(p.Current()))

	f.setErr(pageURL(2), nil)
	w, err := p.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Book 6", w[0].Name)
}

func TestPaginatorPrevFetchesPreviousPageAtItsTail(t *testing.T) {
	ctx := context.Background()
	f := newFakeFetcher()
	f.pages[pageURL(1)] = pageOf(1, 3, 2)
	f.pages[pageURL(2)] = pageOf(2, 3, 2)
	p := newTestPaginator(t, f, 2)

	for i := 0; i < 3; i++ { // [1,2] [3] [4,5]
		_, err := p.Next(ctx)
		require.NoError(t, err)
	}
	require.Equal(t, 2, p.Page())

	w, err := p.Prev(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Book 3"}, names(w))
	assert.Equal(t, 1, p.Page())
}

func TestPaginatorEmptyResults(t *testing.T) {
	ctx := context.Background()
	f := newFakeFetcher()
	f.pages[pageURL(1)] = notFoundHTML
	p := newTestPaginator(t, f, 10)

	stored, ok := p.Cached(1)
	assert.True(t, ok)
	assert.Empty(t, stored)
	assert.Equal(t, 0, p.Total())

	w, err := p.Next(ctx)
	require.NoError(t, err)
	assert.Empty(t, w)
	w, err = p.Prev(ctx)
	require.NoError(t, err)
	assert.Empty(t, w)
	assert.Equal(t, 1, f.total())
}

func TestPaginatorTotalWithoutPagerScript(t *testing.T) {
	f := newFakeFetcher()
	f.pages[pageURL(1)] = pageOf(1, 4, -1)
	p := newTestPaginator(t, f, 10)
	assert.Equal(t, 1, p.Total())
}

func TestPaginatorFailedFetchLeavesStateUnchanged(t *testing.T) {
	ctx := context.Background()
	f := catalog(2, 10)
	p := newTestPaginator(t, f, 10)

	_, err := p.Next(ctx)
	require.NoError(t, err)

	f.setErr(pageURL(2), transport.ErrTimeout)
	_, err = p.Next(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, transport.ErrTimeout))
	assert.Equal(t, 1, p.Page())
	assert.Equal(t, 10, p.Pos())
	assert.Equal(t, Ready, p.State())
	_, cached := p.Cached(2)
	assert.False(t, cached)

	// a broken page is not cached either
	f.setErr(pageURL(2), nil)
	f.pages[pageURL(2)] = `<html><body>captcha</body></html>`
	_, err = p.Next(ctx)
	assert.True(t, errors.Is(err, ErrParse))
	_, cached = p.Cached(2)
	assert.False(t, cached)

	// the same call succeeds once the page is served again
	f.pages[pageURL(2)] = pageOf(2, 10, 2)
	w, err := p.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Book 11", w[0].Name)
	assert.Equal(t, 2, p.Page())
}

func TestPaginatorCancelledFetch(t *testing.T) {
	f := catalog(2, 10)
	p := newTestPaginator(t, f, 10)
	_, err := p.Next(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = p.Next(ctx)
	assert.True(t, errors.Is(err, transport.ErrCancelled))
	_, cached := p.Cached(2)
	assert.False(t, cached)
	assert.Equal(t, 1, p.Page())
}

func TestPaginatorSendsSessionCookies(t *testing.T) {
	f := catalog(1, 1)
	s := &Session{}
	s.replace(map[string]string{"remix_userid": "123"})
	p := newPaginator(f, s, testMirror, testQuery, 10, nil)
	require.NoError(t, p.Init(context.Background()))

	require.Len(t, f.cookies, 1)
	assert.Equal(t, transport.Cookies{"remix_userid": "123"}, f.cookies[0])
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "ready", Ready.String())
	assert.Equal(t, "exhausted", Exhausted.String())
	assert.Equal(t, "uninitialized", Uninitialized.String())
}
