package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/billmal071/zlibdl/internal/config"
	"github.com/billmal071/zlibdl/internal/db"
	"github.com/billmal071/zlibdl/internal/tui"
	"github.com/billmal071/zlibdl/internal/zlib"
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search for books",
	Long: `Search the catalog for books matching the query.

By default, shows an interactive browser: n/p move between result windows
and enter picks a book. Use -d/--download to download the picked book.

Examples:
  zlibdl search "foundation"
  zlibdl search -n 5 "golang programming"
  zlibdl search -f epub -f pdf "design patterns"
  zlibdl search -l english "machine learning"
  zlibdl search --year 2020-2024 "python"
  zlibdl search --exact "the gods themselves"
  zlibdl search --no-interactive --windows 3 "asimov"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := searchOptions(cmd)
		if err != nil {
			return err
		}
		return runQuery(cmd, queryRequest{
			query: strings.Join(args, " "),
			mode:  db.ModeSearch,
			opts:  zlib.FullTextOptions{SearchOptions: opts},
		})
	},
}

var fulltextCmd = &cobra.Command{
	Use:   "fulltext [query]",
	Short: "Search inside book texts",
	Long: `Search the full text of books.

--match phrase looks for the words as one phrase and needs at least two
words. --match words matches any of them.

Examples:
  zlibdl fulltext "psychohistory"
  zlibdl fulltext --match phrase "the mule is coming"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := searchOptions(cmd)
		if err != nil {
			return err
		}
		match, _ := cmd.Flags().GetString("match")
		return runQuery(cmd, queryRequest{
			query: strings.Join(args, " "),
			mode:  db.ModeFullText,
			opts:  zlib.FullTextOptions{SearchOptions: opts, Match: zlib.MatchMode(strings.ToLower(match))},
		})
	},
}

// queryRequest is one search as run by search, fulltext or history
type queryRequest struct {
	query string
	mode  db.SearchMode
	opts  zlib.FullTextOptions
}

func init() {
	for _, cmd := range []*cobra.Command{searchCmd, fulltextCmd} {
		addSearchFlags(cmd)
	}
	fulltextCmd.Flags().String("match", string(zlib.MatchWords), "match mode (phrase, words)")
}

func addSearchFlags(cmd *cobra.Command) {
	cmd.Flags().IntP("count", "n", 0, "results per window (default: search.window_size)")
	cmd.Flags().StringSliceP("format", "f", nil, "filter by format, repeatable (epub, pdf, mobi, djvu)")
	cmd.Flags().StringSliceP("language", "l", nil, "filter by language, repeatable (english, spanish, etc.)")
	cmd.Flags().String("year", "", "filter by year (2020) or year range (2020-2024, 2020-, -2024)")
	cmd.Flags().Bool("exact", false, "exact match only")
	cmd.Flags().BoolP("download", "d", false, "immediately download the selected book")
	cmd.Flags().StringP("output", "o", "", "output directory for --download")
	cmd.Flags().Bool("no-interactive", false, "disable interactive mode, just print results")
	cmd.Flags().Int("windows", 1, "number of result windows to print with --no-interactive")
}

// searchOptions collects the filter flags shared by search and fulltext
func searchOptions(cmd *cobra.Command) (zlib.SearchOptions, error) {
	count, _ := cmd.Flags().GetInt("count")
	if count == 0 {
		count = config.Get().Search.WindowSize
	}
	formats, _ := cmd.Flags().GetStringSlice("format")
	languages, _ := cmd.Flags().GetStringSlice("language")
	exact, _ := cmd.Flags().GetBool("exact")

	from, to, err := parseYearRange(getString(cmd, "year"))
	if err != nil {
		return zlib.SearchOptions{}, err
	}

	return zlib.SearchOptions{
		Exact:      exact,
		YearFrom:   from,
		YearTo:     to,
		Languages:  languages,
		Extensions: formats,
		Count:      count,
	}, nil
}

// parseYearRange parses a single year (2020) or a range (2020-2024).
// Either end of a range may be left open.
func parseYearRange(s string) (from, to int, err error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, 0, nil
	}

	parse := func(part string) (int, error) {
		part = strings.TrimSpace(part)
		if part == "" {
			return 0, nil
		}
		y, err := strconv.Atoi(part)
		if err != nil || y < 0 {
			return 0, fmt.Errorf("%w: invalid year %q", zlib.ErrInvalidQuery, part)
		}
		return y, nil
	}

	start, end, isRange := strings.Cut(s, "-")
	if from, err = parse(start); err != nil {
		return 0, 0, err
	}
	if !isRange {
		return from, from, nil
	}
	if to, err = parse(end); err != nil {
		return 0, 0, err
	}
	if from > 0 && to > 0 && from > to {
		return 0, 0, fmt.Errorf("%w: year range %q is reversed", zlib.ErrInvalidQuery, s)
	}
	return from, to, nil
}

// getString safely gets a string flag value
func getString(cmd *cobra.Command, name string) string {
	val, _ := cmd.Flags().GetString(name)
	return val
}

func runQuery(cmd *cobra.Command, req queryRequest) error {
	autoDownload, _ := cmd.Flags().GetBool("download")
	noInteractive, _ := cmd.Flags().GetBool("no-interactive")
	windows, _ := cmd.Flags().GetInt("windows")
	outputDir := getString(cmd, "output")

	Printf("Searching for: %s\n", req.query)
	if f := describeFilters(historyFilters(req.opts)); f != "" {
		Printf("Filters: %s\n", f)
	}

	a, err := newApp()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if err := a.client.Init(ctx); err != nil {
		return fmt.Errorf("failed to reach catalog: %w", err)
	}
	Printf("Mirror: %s\n", a.client.Mirror())

	var pager *zlib.Paginator
	if req.mode == db.ModeFullText {
		pager, err = a.client.FullTextSearch(ctx, req.query, req.opts)
	} else {
		pager, err = a.client.Search(ctx, req.query, req.opts.SearchOptions)
	}
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	first, _ := pager.Cached(1)
	recordSearch(req, len(first))

	// The cursor starts before the first window
	window, err := pager.Next(ctx)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	if len(window) == 0 {
		fmt.Println("No books found matching your query.")
		return nil
	}

	Printf("Found %d result(s) on the first page, %d page(s)\n\n", len(first), pager.Total())

	// Non-interactive mode: just print results
	if noInteractive {
		return printWindows(ctx, pager, windows)
	}

	selected, err := tui.RunSelector(ctx, pager, fmt.Sprintf("Results for %q", req.query))
	if err != nil {
		return fmt.Errorf("selection failed: %w", err)
	}
	if selected == nil {
		return nil // User cancelled
	}

	fmt.Println()

	if autoDownload {
		return downloadEntry(ctx, a, selected, outputDir)
	}

	fmt.Printf("Selected: %s\n", selected.Name)
	if selected.URL != "" {
		fmt.Printf("\nTo download, run:\n")
		fmt.Printf("  zlibdl download %s\n", selected.URL)
	}
	return nil
}

// recordSearch stores the search in history when enabled
func recordSearch(req queryRequest, results int) {
	if !config.Get().Search.History {
		return
	}
	if err := db.AddSearchHistory(req.query, req.mode, results, historyFilters(req.opts)); err != nil {
		Printf("Warning: failed to save search history: %v\n", err)
	}
}

// historyFilters converts search options to their stored form
func historyFilters(opts zlib.FullTextOptions) db.SearchFilters {
	return db.SearchFilters{
		Exact:      opts.Exact,
		YearFrom:   opts.YearFrom,
		YearTo:     opts.YearTo,
		Languages:  opts.Languages,
		Extensions: opts.Extensions,
		Match:      string(opts.Match),
	}
}

// requestFromHistory rebuilds a search from a history entry
func requestFromHistory(h *db.SearchHistory) queryRequest {
	f := h.Filters
	mode := h.Mode
	if mode == "" {
		mode = db.ModeSearch
	}
	return queryRequest{
		query: h.Query,
		mode:  mode,
		opts: zlib.FullTextOptions{
			SearchOptions: zlib.SearchOptions{
				Exact:      f.Exact,
				YearFrom:   f.YearFrom,
				YearTo:     f.YearTo,
				Languages:  f.Languages,
				Extensions: f.Extensions,
				Count:      config.Get().Search.WindowSize,
			},
			Match: zlib.MatchMode(f.Match),
		},
	}
}

// describeFilters returns a human-readable representation of active filters
func describeFilters(f db.SearchFilters) string {
	var parts []string
	if f.Exact {
		parts = append(parts, "exact")
	}
	if f.Match != "" {
		parts = append(parts, "match="+f.Match)
	}
	if f.YearFrom > 0 || f.YearTo > 0 {
		parts = append(parts, fmt.Sprintf("year=%s-%s", yearText(f.YearFrom), yearText(f.YearTo)))
	}
	if len(f.Languages) > 0 {
		parts = append(parts, "language="+strings.Join(f.Languages, ","))
	}
	if len(f.Extensions) > 0 {
		parts = append(parts, "format="+strings.Join(f.Extensions, ","))
	}
	return strings.Join(parts, ", ")
}

func yearText(y int) string {
	if y <= 0 {
		return ""
	}
	return strconv.Itoa(y)
}

// printWindows prints up to n windows, stopping early at the end of results
func printWindows(ctx context.Context, pager *zlib.Paginator, n int) error {
	entries := pager.Current()
	for i := 0; ; i++ {
		printEntries(entries, pager.Pos()-len(entries)+1)
		if i+1 >= n || pager.State() == zlib.Exhausted {
			return nil
		}
		next, err := pager.Next(ctx)
		if err != nil {
			return fmt.Errorf("failed to load more results: %w", err)
		}
		if pager.State() == zlib.Exhausted && sameWindow(entries, next) {
			return nil
		}
		entries = next
	}
}

func sameWindow(a, b []*zlib.CatalogEntry) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID != b[i].ID {
			return false
		}
	}
	return true
}

// printEntries prints entries in a simple format, numbered from start
func printEntries(entries []*zlib.CatalogEntry, start int) {
	for i, e := range entries {
		fmt.Printf("%d. %s\n", start+i, e.Name)
		if authors := e.AuthorNames(); authors != "" {
			fmt.Printf("   Author: %s\n", authors)
		}
		fmt.Print(entryFacts(e))
		fmt.Println()
		if e.URL != "" {
			fmt.Printf("   URL: %s\n", e.URL)
		}
		fmt.Println()
	}
}

func entryFacts(e *zlib.CatalogEntry) string {
	var parts []string
	if e.Extension != "" {
		parts = append(parts, "Format: "+e.Extension)
	}
	if e.Size != "" {
		parts = append(parts, "Size: "+e.Size)
	}
	if e.Year != "" {
		parts = append(parts, "Year: "+e.Year)
	}
	if e.Language != "" {
		parts = append(parts, "Language: "+e.Language)
	}
	if len(parts) == 0 {
		return ""
	}
	return "   " + strings.Join(parts, " | ")
}
