package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/billmal071/zlibdl/internal/zlib"
)

var detailsCmd = &cobra.Command{
	Use:   "details [book-url]",
	Short: "Show a book's detail page",
	Long: `Fetch a book's detail page and print everything it lists.

Examples:
  zlibdl details https://mirror/book/5386911/a1b2c3
  zlibdl details --json https://mirror/book/5386911/a1b2c3`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")

		a, err := newApp()
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		if err := a.client.Init(ctx); err != nil {
			return fmt.Errorf("failed to reach catalog: %w", err)
		}

		entry, err := a.client.FetchDetailURL(ctx, args[0])
		if err != nil {
			return fmt.Errorf("failed to fetch book details: %w", err)
		}

		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(entry)
		}
		printDetail(os.Stdout, entry)
		return nil
	},
}

func init() {
	detailsCmd.Flags().Bool("json", false, "print the entry as JSON")
}

func printDetail(w io.Writer, e *zlib.CatalogEntry) {
	d := e.Detail
	if d == nil {
		d = &zlib.Detail{}
	}

	field := func(label, value string) {
		if value != "" {
			fmt.Fprintf(w, "%-12s %s\n", label+":", value)
		}
	}

	fmt.Fprintln(w, e.Name)
	fmt.Fprintln(w, strings.Repeat("-", min(len([]rune(e.Name)), 70)))
	field("Authors", e.AuthorNames())
	field("Publisher", d.Publisher)
	field("Year", d.Year)
	field("Edition", d.Edition)
	field("Language", d.Language)
	field("Categories", d.Categories)
	field("Format", d.Extension)
	field("Size", d.Size)
	field("Rating", d.Rating)

	labels := make([]string, 0, len(d.ISBNs))
	for label := range d.ISBNs {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	for _, label := range labels {
		field(label, d.ISBNs[label])
	}

	field("Cover", d.Cover)
	field("Download", d.DownloadURL)

	if d.Description != "" {
		fmt.Fprintf(w, "\n%s\n", d.Description)
	}
}
