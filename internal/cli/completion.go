package cli

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/billmal071/zlibdl/internal/db"
)

var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion scripts",
	Long: `Generate shell completion scripts for zlibdl.

To load completions:

Bash:
  $ source <(zlibdl completion bash)

  # To load completions for each session, execute once:
  # Linux:
  $ zlibdl completion bash > /etc/bash_completion.d/zlibdl
  # macOS:
  $ zlibdl completion bash > /usr/local/etc/bash_completion.d/zlibdl

Zsh:
  # If shell completion is not already enabled in your environment,
  # you will need to enable it.  You can execute the following once:
  $ echo "autoload -U compinit; compinit" >> ~/.zshrc

  # To load completions for each session, execute once:
  $ zlibdl completion zsh > "${fpath[1]}/_zlibdl"

  # You will need to start a new shell for this setup to take effect.

Fish:
  $ zlibdl completion fish | source

  # To load completions for each session, execute once:
  $ zlibdl completion fish > ~/.config/fish/completions/zlibdl.fish

PowerShell:
  PS> zlibdl completion powershell | Out-String | Invoke-Expression

  # To load completions for every new session, run:
  PS> zlibdl completion powershell > zlibdl.ps1
  # and source this file from your PowerShell profile.`,
	DisableFlagsInUseLine: true,
	ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
	Args:                  cobra.ExactValidArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		switch args[0] {
		case "bash":
			return rootCmd.GenBashCompletion(os.Stdout)
		case "zsh":
			return rootCmd.GenZshCompletion(os.Stdout)
		case "fish":
			return rootCmd.GenFishCompletion(os.Stdout, true)
		case "powershell":
			return rootCmd.GenPowerShellCompletionWithDesc(os.Stdout)
		default:
			return fmt.Errorf("unsupported shell: %s", args[0])
		}
	},
}

func init() {
	// Past downloads give the book URLs worth completing
	downloadCmd.ValidArgsFunction = completeBookURLs
	detailsCmd.ValidArgsFunction = completeBookURLs
	configGetCmd.ValidArgsFunction = completeConfigKeys
	configSetCmd.ValidArgsFunction = completeConfigKeys
}

// completeBookURLs completes detail page URLs of recorded downloads
func completeBookURLs(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}

	downloads, err := db.ListDownloads("", true)
	if err != nil {
		return nil, cobra.ShellCompDirectiveError
	}

	seen := make(map[string]bool)
	var completions []string
	for _, d := range downloads {
		if d.SourceURL == "" || seen[d.SourceURL] || !strings.HasPrefix(d.SourceURL, toComplete) {
			continue
		}
		seen[d.SourceURL] = true
		// Format: "URL<tab>Title (Status)"
		completions = append(completions, fmt.Sprintf("%s\t%s (%s)", d.SourceURL, truncateTitle(d.Title, 40), d.Status))
	}

	return completions, cobra.ShellCompDirectiveNoFileComp
}

// completeConfigKeys completes the first argument with known config keys
func completeConfigKeys(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	var keys []string
	for _, key := range viper.AllKeys() {
		if strings.HasPrefix(key, toComplete) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, cobra.ShellCompDirectiveNoFileComp
}

// truncateTitle truncates a title to the specified length
func truncateTitle(title string, maxLen int) string {
	r := []rune(title)
	if len(r) <= maxLen {
		return title
	}
	return string(r[:maxLen-3]) + "..."
}
