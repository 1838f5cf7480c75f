package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/lepinkainen/humanlog"
	"github.com/spf13/cobra"

	"github.com/billmal071/zlibdl/internal/config"
	"github.com/billmal071/zlibdl/internal/db"
	"github.com/billmal071/zlibdl/internal/transport"
	"github.com/billmal071/zlibdl/internal/zlib"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "zlibdl",
	Short: "Search and download books from Z-Library mirrors",
	Long: `zlibdl searches the Z-Library catalog through whichever mirror is currently
active, pages through results and downloads books with your account session.

Traffic can be routed through a chain of SOCKS5 proxies (network.proxies),
which is required for the onion mirror (zlib.onion).

Examples:
  zlibdl login                                    Log in with credentials from config or .env
  zlibdl search "foundation"                      Browse results interactively
  zlibdl search -f epub -l english "asimov"       Search for English EPUB books
  zlibdl fulltext --match phrase "psychohistory"  Search inside book texts
  zlibdl details https://mirror/book/123/abc      Show a book's detail page
  zlibdl download https://mirror/book/123/abc     Download a book
  zlibdl list                                     List downloads
  zlibdl verify --all                             Check downloaded files`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		initLogging()

		// Initialize config
		if err := config.Init(cfgFile); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		// Initialize database
		if err := db.Init(); err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		db.Close()
	},
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default $HOME/.config/zlibdl/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	// Add subcommands
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(fulltextCmd)
	rootCmd.AddCommand(detailsCmd)
	rootCmd.AddCommand(downloadCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(completionCmd)
}

func initLogging() {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(humanlog.NewHandler(os.Stderr, &humanlog.Options{
		Level: level,
	})))
}

// app bundles the shared transport and the catalog client built from config
type app struct {
	http   *transport.Transport
	client *zlib.Client
}

// newApp builds the transport and client from config and restores any
// stored login session
func newApp() (*app, error) {
	cfg := config.Get()
	http, err := transport.New(transport.Options{
		UserAgent:         cfg.Network.UserAgent,
		Timeout:           cfg.Network.Timeout,
		ConnectTimeout:    cfg.Network.ConnectTimeout,
		ReadTimeout:       cfg.Network.ReadTimeout,
		Proxies:           cfg.Network.Proxies,
		MaxConcurrent:     cfg.Network.MaxConcurrent,
		RequestsPerSecond: cfg.Network.RequestsPerSecond,
		Logger:            slog.Default(),
	})
	if err != nil {
		return nil, err
	}
	if err := checkOnion(cfg.Zlib.Onion, http); err != nil {
		return nil, err
	}

	client, err := zlib.New(zlib.Options{
		Domain:        cfg.Zlib.Domain,
		LoginURL:      cfg.Zlib.LoginURL,
		Onion:         cfg.Zlib.Onion,
		OnionDomain:   cfg.Zlib.OnionDomain,
		OnionLoginURL: cfg.Zlib.OnionLoginURL,
		Proxies:       cfg.Network.Proxies,
		Logger:        slog.Default(),
		Transport:     http,
	})
	if err != nil {
		return nil, err
	}

	session, err := db.GetSession()
	if err != nil {
		slog.Warn("failed to load stored session", "error", err)
	} else if session != nil {
		client.RestoreSession(session.Cookies)
		Printf("Using session for %s\n", session.Email)
	}

	return &app{http: http, client: client}, nil
}

// checkOnion refuses onion mode on a transport that would dial directly
func checkOnion(onion bool, http *transport.Transport) error {
	if onion && !http.Proxied() {
		return fmt.Errorf("%w: zlib.onion needs network.proxies", zlib.ErrProxyConfig)
	}
	return nil
}

// Verbose returns whether verbose mode is enabled
func Verbose() bool {
	return verbose
}

// Printf prints if verbose mode is enabled
func Printf(format string, args ...interface{}) {
	if verbose {
		fmt.Printf(format, args...)
	}
}

// Errorf prints an error message to stderr
func Errorf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
}

// Successf prints a success message
func Successf(format string, args ...interface{}) {
	fmt.Printf("✓ "+format+"\n", args...)
}
