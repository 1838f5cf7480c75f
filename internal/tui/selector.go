package tui

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/billmal071/zlibdl/internal/zlib"
)

// Pager is the part of *zlib.Paginator the browser drives
type Pager interface {
	Next(ctx context.Context) ([]*zlib.CatalogEntry, error)
	Prev(ctx context.Context) ([]*zlib.CatalogEntry, error)
	Current() []*zlib.CatalogEntry
	Page() int
	Total() int
	State() zlib.State
}

// windowMsg carries the result of a Next or Prev call
type windowMsg struct {
	entries []*zlib.CatalogEntry
	err     error
}

// EntryItem wraps a CatalogEntry for the list component
type EntryItem struct {
	Entry *zlib.CatalogEntry
}

func (e EntryItem) Title() string { return e.Entry.Name }

func (e EntryItem) Description() string {
	var parts []string

	if authors := e.Entry.AuthorNames(); authors != "" {
		parts = append(parts, authors)
	}
	if e.Entry.Year != "" {
		parts = append(parts, e.Entry.Year)
	}
	if e.Entry.Extension != "" {
		parts = append(parts, e.Entry.Extension)
	}
	if e.Entry.Size != "" {
		parts = append(parts, e.Entry.Size)
	}
	if e.Entry.Language != "" {
		parts = append(parts, e.Entry.Language)
	}

	if len(parts) == 0 {
		return DimStyle.Render("No metadata available")
	}
	return DimStyle.Render(strings.Join(parts, " | "))
}

func (e EntryItem) FilterValue() string { return e.Entry.Name }

// EntryDelegate handles rendering of catalog entries
type EntryDelegate struct{}

func (d EntryDelegate) Height() int                             { return 3 }
func (d EntryDelegate) Spacing() int                            { return 0 }
func (d EntryDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd { return nil }

func (d EntryDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	entry, ok := item.(EntryItem)
	if !ok {
		return
	}

	title := entry.Entry.Name
	if r := []rune(title); len(r) > 60 {
		title = string(r[:57]) + "..."
	}

	var str string
	if index == m.Index() {
		str = SelectedStyle.Render(fmt.Sprintf("  ➤ %d. %s", index+1, title))
	} else {
		str = NormalStyle.Render(fmt.Sprintf("    %d. %s", index+1, title))
	}
	str += "\n" + DimStyle.Render(fmt.Sprintf("      %s", entry.Description()))
	str += "\n" + DimStyle.Render(fmt.Sprintf("      ID: %s", entry.Entry.ID))

	fmt.Fprint(w, str)
}

// SelectorModel is the Bubble Tea model for browsing search results
// one window at a time
type SelectorModel struct {
	ctx      context.Context
	pager    Pager
	list     list.Model
	selected *zlib.CatalogEntry
	quitting bool
	loading  bool
	err      error
}

// NewSelector creates a browser showing the pager's current window
func NewSelector(ctx context.Context, pager Pager, title string) SelectorModel {
	delegate := EntryDelegate{}
	l := list.New(nil, delegate, 70, 0)
	l.Title = title
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(false)
	l.SetShowHelp(false)
	l.Styles.Title = TitleStyle

	m := SelectorModel{ctx: ctx, pager: pager, list: l}
	m.setEntries(pager.Current())
	return m
}

func (m *SelectorModel) setEntries(entries []*zlib.CatalogEntry) {
	items := make([]list.Item, len(entries))
	for i, e := range entries {
		items[i] = EntryItem{Entry: e}
	}
	m.list.SetItems(items)
	m.list.SetHeight(4 + len(items)*3)
	m.list.Select(0)
}

func (m SelectorModel) Init() tea.Cmd {
	return nil
}

func (m SelectorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		// Don't handle keys while loading
		if m.loading {
			return m, nil
		}
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		case "enter":
			if item, ok := m.list.SelectedItem().(EntryItem); ok {
				m.selected = item.Entry
			}
			return m, tea.Quit
		case "n", "right":
			m.loading = true
			m.err = nil
			return m, m.move(m.pager.Next)
		case "p", "left":
			m.loading = true
			m.err = nil
			return m, m.move(m.pager.Prev)
		}
	case windowMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.setEntries(msg.entries)
		return m, nil
	case tea.WindowSizeMsg:
		m.list.SetWidth(msg.Width)
		return m, nil
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m SelectorModel) move(step func(context.Context) ([]*zlib.CatalogEntry, error)) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		entries, err := step(ctx)
		return windowMsg{entries: entries, err: err}
	}
}

func (m SelectorModel) View() string {
	if m.selected != nil {
		return SuccessStyle.Render(fmt.Sprintf("\n  ✓ Selected: %s\n", m.selected.Name))
	}

	if m.quitting {
		return DimStyle.Render("\n  Cancelled.\n")
	}

	var view strings.Builder
	view.WriteString("\n")
	view.WriteString(m.list.View())
	view.WriteString("\n")
	view.WriteString(DimStyle.Render(fmt.Sprintf("  page %d of %d", m.pager.Page(), m.pager.Total())))
	if m.pager.State() == zlib.Exhausted {
		view.WriteString(DimStyle.Render(" (no more results)"))
	}
	view.WriteString("\n")

	switch {
	case m.loading:
		view.WriteString(WarningStyle.Render("  Loading..."))
	case m.err != nil:
		view.WriteString(ErrorStyle.Render(fmt.Sprintf("  Error: %s", m.err.Error())))
	default:
		view.WriteString(HelpStyle.Render("  ↑/↓: navigate • n/→: next • p/←: previous • enter: select • q/esc: cancel"))
	}

	return view.String()
}

// Selected returns the selected entry
func (m SelectorModel) Selected() *zlib.CatalogEntry {
	return m.selected
}

// Err returns the last paging error shown to the user
func (m SelectorModel) Err() error {
	return m.err
}

// RunSelector displays the browser and returns the selected entry
func RunSelector(ctx context.Context, pager Pager, title string) (*zlib.CatalogEntry, error) {
	if len(pager.Current()) == 0 {
		return nil, fmt.Errorf("no books to select from")
	}

	model := NewSelector(ctx, pager, title)
	p := tea.NewProgram(model, tea.WithContext(ctx))

	finalModel, err := p.Run()
	if err != nil {
		return nil, err
	}

	return finalModel.(SelectorModel).Selected(), nil
}
