package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/billmal071/zlibdl/internal/db"
	"github.com/billmal071/zlibdl/internal/zlib"
)

type fakePager struct {
	windows [][]*zlib.CatalogEntry
	idx     int
	err     error
}

func entries(names ...string) []*zlib.CatalogEntry {
	out := make([]*zlib.CatalogEntry, len(names))
	for i, n := range names {
		out[i] = &zlib.CatalogEntry{ID: fmt.Sprint(i + 1), Name: n}
	}
	return out
}

func (f *fakePager) Next(context.Context) ([]*zlib.CatalogEntry, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.idx < len(f.windows)-1 {
		f.idx++
	}
	return f.windows[f.idx], nil
}

func (f *fakePager) Prev(context.Context) ([]*zlib.CatalogEntry, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.idx > 0 {
		f.idx--
	}
	return f.windows[f.idx], nil
}

func (f *fakePager) Current() []*zlib.CatalogEntry { return f.windows[f.idx] }
func (f *fakePager) Page() int                     { return f.idx + 1 }
func (f *fakePager) Total() int                    { return len(f.windows) }

func (f *fakePager) State() zlib.State {
	if f.idx == len(f.windows)-1 {
		return zlib.Exhausted
	}
	return zlib.Ready
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// press sends a key and runs the command it returns, feeding the result back
func press(t *testing.T, m SelectorModel, k string) SelectorModel {
	t.Helper()
	next, cmd := m.Update(key(k))
	m = next.(SelectorModel)
	if cmd != nil {
		if msg, ok := cmd().(windowMsg); ok {
			next, _ = m.Update(msg)
			m = next.(SelectorModel)
		}
	}
	return m
}

func names(m SelectorModel) []string {
	var out []string
	for _, item := range m.list.Items() {
		out = append(out, item.(EntryItem).Entry.Name)
	}
	return out
}

func TestSelectorPaging(t *testing.T) {
	pager := &fakePager{windows: [][]*zlib.CatalogEntry{
		entries("Foundation", "I, Robot"),
		entries("The Gods Themselves"),
	}}
	m := NewSelector(context.Background(), pager, "Results")
	assert.Equal(t, []string{"Foundation", "I, Robot"}, names(m))
	assert.Contains(t, m.View(), "page 1 of 2")

	m = press(t, m, "n")
	assert.Equal(t, []string{"The Gods Themselves"}, names(m))
	assert.Contains(t, m.View(), "no more results")

	m = press(t, m, "p")
	assert.Equal(t, []string{"Foundation", "I, Robot"}, names(m))
	assert.False(t, m.loading)
}

func TestSelectorSelect(t *testing.T) {
	pager := &fakePager{windows: [][]*zlib.CatalogEntry{entries("Foundation", "I, Robot")}}
	m := NewSelector(context.Background(), pager, "Results")

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m = next.(SelectorModel)
	next, cmd := m.Update(key("enter"))
	m = next.(SelectorModel)

	require.NotNil(t, cmd)
	require.NotNil(t, m.Selected())
	assert.Equal(t, "I, Robot", m.Selected().Name)
	assert.Contains(t, m.View(), "Selected: I, Robot")
}

func TestSelectorShowsPagingError(t *testing.T) {
	pager := &fakePager{windows: [][]*zlib.CatalogEntry{entries("Foundation")}}
	m := NewSelector(context.Background(), pager, "Results")
	pager.err = errors.New("mirror unreachable")

	m = press(t, m, "n")
	assert.EqualError(t, m.Err(), "mirror unreachable")
	assert.Equal(t, []string{"Foundation"}, names(m))
	assert.Contains(t, m.View(), "mirror unreachable")
}

func TestSelectorIgnoresKeysWhileLoading(t *testing.T) {
	pager := &fakePager{windows: [][]*zlib.CatalogEntry{entries("Foundation"), entries("Nemesis")}}
	m := NewSelector(context.Background(), pager, "Results")

	next, cmd := m.Update(key("n"))
	m = next.(SelectorModel)
	require.NotNil(t, cmd)
	assert.True(t, m.loading)

	next, again := m.Update(key("n"))
	m = next.(SelectorModel)
	assert.Nil(t, again)
	assert.Contains(t, m.View(), "Loading")
}

func TestSelectorCancel(t *testing.T) {
	pager := &fakePager{windows: [][]*zlib.CatalogEntry{entries("Foundation")}}
	next, _ := NewSelector(context.Background(), pager, "Results").Update(key("esc"))
	m := next.(SelectorModel)
	assert.Nil(t, m.Selected())
	assert.Contains(t, m.View(), "Cancelled")
}

func TestEntryDescription(t *testing.T) {
	e := EntryItem{Entry: &zlib.CatalogEntry{
		Name:      "Foundation",
		Authors:   []zlib.Author{{Name: "Isaac Asimov"}},
		Year:      "1951",
		Extension: "epub",
		Size:      "1.2 MB",
	}}
	desc := e.Description()
	for _, want := range []string{"Isaac Asimov", "1951", "epub", "1.2 MB"} {
		assert.Contains(t, desc, want)
	}
	assert.Contains(t, EntryItem{Entry: &zlib.CatalogEntry{Name: "x"}}.Description(), "No metadata")
}

func TestHistoryDescription(t *testing.T) {
	h := HistoryItem{History: &db.SearchHistory{
		Query:       "foundation",
		Mode:        db.ModeFullText,
		ResultCount: 7,
		Filters:     db.SearchFilters{YearFrom: 1950, Languages: []string{"english", "french"}, Match: "phrase"},
		CreatedAt:   time.Date(2026, 1, 2, 15, 4, 0, 0, time.UTC),
	}}
	desc := h.Description()
	for _, want := range []string{"7 results", "fulltext", "match=phrase", "years=1950-any", "languages=english,french", "2026-01-02 15:04"} {
		assert.True(t, strings.Contains(desc, want), "missing %q in %q", want, desc)
	}
}

func TestFormatSize(t *testing.T) {
	assert.Equal(t, "512 B", FormatSize(512))
	assert.Equal(t, "1.5 KiB", FormatSize(1536))
	assert.Equal(t, "0 B", FormatSize(-1))
}
