package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/billmal071/zlibdl/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long: `View and modify zlibdl configuration.

Configuration is stored in ~/.config/zlibdl/config.yaml. Every key can also
be set through the environment, e.g. ZLIBDL_NETWORK_PROXIES.

Examples:
  zlibdl config get zlib.domain
  zlibdl config set network.proxies socks5://127.0.0.1:9050
  zlibdl config set zlib.onion true
  zlibdl config set downloads.path ~/Books`,
}

var configGetCmd = &cobra.Command{
	Use:   "get [key]",
	Short: "Get a configuration value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key := args[0]
		value := config.GetValue(key)
		if value == nil {
			return fmt.Errorf("key not found: %s", key)
		}
		if key == "zlib.password" && value != "" {
			value = "********"
		}
		fmt.Printf("%s = %v\n", key, value)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set [key] [value]",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key := args[0]
		value := args[1]

		if key == "zlib.password" {
			Errorf("storing the password in plain text, prefer ZLIBDL_ZLIB_PASSWORD in a .env file")
		}
		if err := config.Set(key, value); err != nil {
			return fmt.Errorf("failed to set config: %w", err)
		}

		if key == "zlib.password" {
			value = "********"
		}
		Successf("Set %s = %s", key, value)
		fmt.Printf("Config saved to: %s\n", config.GetConfigPath())
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show configuration file path",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("Config file: %s\n", config.GetConfigPath())
		fmt.Printf("Database:    %s\n", config.GetDBPath())
		fmt.Printf("Config dir:  %s\n", config.GetConfigDir())
	},
}

func init() {
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configPathCmd)
}
