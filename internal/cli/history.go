package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/billmal071/zlibdl/internal/db"
	"github.com/billmal071/zlibdl/internal/tui"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View and re-run past searches",
	Long: `Pick a past search and run it again.

Examples:
  zlibdl history              Pick a recent search to re-run
  zlibdl history list         List recent searches
  zlibdl history clear        Clear all search history
  zlibdl history prune 720h   Drop searches older than 30 days`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		history, err := db.GetUniqueSearchHistory(50)
		if err != nil {
			return fmt.Errorf("failed to get search history: %w", err)
		}
		if len(history) == 0 {
			fmt.Println("No search history.")
			return nil
		}

		selected, err := tui.RunHistorySelector(history)
		if err != nil {
			return fmt.Errorf("selection failed: %w", err)
		}
		if selected == nil {
			return nil
		}
		return runQuery(cmd, requestFromHistory(selected))
	},
}

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear all search history",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := db.ClearSearchHistory(); err != nil {
			return fmt.Errorf("failed to clear history: %w", err)
		}
		Successf("Search history cleared.")
		return nil
	},
}

var historyPruneCmd = &cobra.Command{
	Use:   "prune [age]",
	Short: "Remove searches older than the given age (e.g. 720h)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		age, err := time.ParseDuration(args[0])
		if err != nil {
			return fmt.Errorf("invalid age %q: %w", args[0], err)
		}
		if err := db.DeleteSearchHistoryOlderThan(age); err != nil {
			return fmt.Errorf("failed to prune history: %w", err)
		}
		Successf("Removed searches older than %s.", age)
		return nil
	},
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent searches",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		return showSearchHistory(limit)
	},
}

func init() {
	historyListCmd.Flags().IntP("limit", "n", 20, "number of entries to show")

	// The picker re-runs searches, so it takes the same output flags
	historyCmd.Flags().BoolP("download", "d", false, "immediately download the selected book")
	historyCmd.Flags().StringP("output", "o", "", "output directory for --download")
	historyCmd.Flags().Bool("no-interactive", false, "print the re-run results instead of browsing them")
	historyCmd.Flags().Int("windows", 1, "number of result windows to print with --no-interactive")

	historyCmd.AddCommand(historyClearCmd)
	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyPruneCmd)
}

// showSearchHistory lists the most recent unique searches
func showSearchHistory(limit int) error {
	history, err := db.GetUniqueSearchHistory(limit)
	if err != nil {
		return fmt.Errorf("failed to get search history: %w", err)
	}

	if len(history) == 0 {
		fmt.Println("No search history.")
		fmt.Println("\nSearches are saved automatically when search.history is enabled.")
		return nil
	}

	fmt.Printf("Recent Searches (%d):\n\n", len(history))

	for i, h := range history {
		fmt.Printf("  %d. \"%s\" (%s, %d results)\n", i+1, h.Query, h.Mode, h.ResultCount)
		if filters := describeFilters(h.Filters); filters != "" {
			fmt.Printf("     Filters: %s\n", filters)
		}
		fmt.Printf("     %s\n\n", h.CreatedAt.Format("2006-01-02 15:04"))
	}

	return nil
}
