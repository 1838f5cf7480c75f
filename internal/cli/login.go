package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/billmal071/zlibdl/internal/config"
	"github.com/billmal071/zlibdl/internal/db"
	"github.com/billmal071/zlibdl/internal/notify"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in and store the session",
	Long: `Log in to your account and store the session cookies for later commands.

Credentials come from the flags, from zlib.email and zlib.password in the
config file, or from ZLIBDL_ZLIB_EMAIL and ZLIBDL_ZLIB_PASSWORD, which may
also be set in a .env file.

Examples:
  zlibdl login
  zlibdl login --email me@example.org --password secret`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Get()
		email := getString(cmd, "email")
		if email == "" {
			email = cfg.Zlib.Email
		}
		password := getString(cmd, "password")
		if password == "" {
			password = cfg.Zlib.Password
		}
		if email == "" || password == "" {
			return fmt.Errorf("email and password are required (flags, config, or ZLIBDL_ZLIB_EMAIL/ZLIBDL_ZLIB_PASSWORD)")
		}

		a, err := newApp()
		if err != nil {
			return err
		}

		Printf("Logging in as %s...\n", email)
		cookies, err := a.client.Login(cmd.Context(), email, password)
		if err != nil {
			return fmt.Errorf("login failed: %w", err)
		}

		if err := db.SaveSession(email, cookies); err != nil {
			return fmt.Errorf("failed to store session: %w", err)
		}

		Successf("Logged in as %s", email)
		notify.LoggedIn(email)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := db.DeleteSession(); err != nil {
			return fmt.Errorf("failed to remove session: %w", err)
		}
		Successf("Logged out.")
		return nil
	},
}

func init() {
	loginCmd.Flags().String("email", "", "account email")
	loginCmd.Flags().String("password", "", "account password")
}
