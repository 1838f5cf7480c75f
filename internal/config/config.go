package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Zlib      ZlibConfig     `mapstructure:"zlib"`
	Network   NetworkConfig  `mapstructure:"network"`
	Search    SearchConfig   `mapstructure:"search"`
	Downloads DownloadConfig `mapstructure:"downloads"`
}

// ZlibConfig holds catalog endpoints and credentials
type ZlibConfig struct {
	Domain        string `mapstructure:"domain"`
	LoginURL      string `mapstructure:"login_url"`
	Onion         bool   `mapstructure:"onion"`
	OnionDomain   string `mapstructure:"onion_domain"`
	OnionLoginURL string `mapstructure:"onion_login_url"`
	Email         string `mapstructure:"email"`    // usually from ZLIBDL_ZLIB_EMAIL
	Password      string `mapstructure:"password"` // usually from ZLIBDL_ZLIB_PASSWORD
}

// NetworkConfig holds network settings
type NetworkConfig struct {
	Proxies           []string      `mapstructure:"proxies"`
	Timeout           time.Duration `mapstructure:"timeout"`
	ConnectTimeout    time.Duration `mapstructure:"connect_timeout"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	MaxConcurrent     int           `mapstructure:"max_concurrent"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	UserAgent         string        `mapstructure:"user_agent"`
	RetryAttempts     int           `mapstructure:"retry_attempts"`
	RetryBaseDelay    time.Duration `mapstructure:"retry_base_delay"`
	RetryMaxDelay     time.Duration `mapstructure:"retry_max_delay"`
}

// SearchConfig holds search preferences
type SearchConfig struct {
	WindowSize int  `mapstructure:"window_size"`
	History    bool `mapstructure:"history"`
}

// DownloadConfig holds download settings
type DownloadConfig struct {
	Path          string `mapstructure:"path"`
	Notifications bool   `mapstructure:"notifications"`
}

var cfg *Config

// GetConfigDir returns the configuration directory path.
// ZLIBDL_HOME overrides the default location.
func GetConfigDir() string {
	if dir := os.Getenv("ZLIBDL_HOME"); dir != "" {
		return dir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "zlibdl")
}

// GetDBPath returns the database file path
func GetDBPath() string {
	return filepath.Join(GetConfigDir(), "zlibdl.db")
}

// GetConfigPath returns the config file path
func GetConfigPath() string {
	return filepath.Join(GetConfigDir(), "config.yaml")
}

// Init initializes the configuration
func Init(cfgFile string) error {
	// .env files only fill variables that are not already set
	for _, envFile := range []string{".env", filepath.Join(GetConfigDir(), ".env")} {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}

	setDefaults()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(GetConfigDir())
	}

	// Environment variable overrides
	viper.SetEnvPrefix("ZLIBDL")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file (ignore if not found)
	_ = viper.ReadInConfig()

	cfg = nil
	return nil
}

func setDefaults() {
	viper.SetDefault("zlib.domain", "https://z-lib.org/")
	viper.SetDefault("zlib.login_url", "https://singlelogin.me/rpc.php")
	viper.SetDefault("zlib.onion", false)
	viper.SetDefault("zlib.onion_domain", "http://bookszlibb74ugqojhzhg2a63w5i2atv5bqarulgczawnbmsb6s6qead.onion")
	viper.SetDefault("zlib.onion_login_url", "http://loginzlib2vrak5zzpcocc3ouizykn6k5qecgj2tzlnab5wcbqhembyd.onion/rpc.php")
	viper.SetDefault("zlib.email", "")
	viper.SetDefault("zlib.password", "")
	viper.SetDefault("network.proxies", []string{})
	viper.SetDefault("network.timeout", 90*time.Second)
	viper.SetDefault("network.connect_timeout", 60*time.Second)
	viper.SetDefault("network.read_timeout", 90*time.Second)
	viper.SetDefault("network.max_concurrent", 64)
	viper.SetDefault("network.requests_per_second", 0)
	viper.SetDefault("network.user_agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/96.0.4664.110 Safari/537.36")
	viper.SetDefault("network.retry_attempts", 3)
	viper.SetDefault("network.retry_base_delay", 2*time.Second)
	viper.SetDefault("network.retry_max_delay", 60*time.Second)
	viper.SetDefault("search.window_size", 10)
	viper.SetDefault("search.history", true)
	viper.SetDefault("downloads.path", "~/Downloads/books")
	viper.SetDefault("downloads.notifications", false)
}

// Get returns the current configuration
func Get() *Config {
	if cfg == nil {
		cfg = &Config{}
		viper.Unmarshal(cfg)
		cfg.Downloads.Path = expandPath(cfg.Downloads.Path)
		cfg.Network.Proxies = splitList(cfg.Network.Proxies)
	}
	return cfg
}

// Set sets a configuration value
func Set(key, value string) error {
	if key == "network.proxies" {
		viper.Set(key, splitList([]string{value}))
	} else {
		viper.Set(key, value)
	}

	// Ensure config directory exists
	configDir := GetConfigDir()
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return err
	}

	// Reset cached config
	cfg = nil

	return viper.WriteConfigAs(GetConfigPath())
}

// GetValue retrieves a configuration value
func GetValue(key string) interface{} {
	return viper.Get(key)
}

// Reset drops all configuration state
func Reset() {
	viper.Reset()
	cfg = nil
}

// splitList flattens comma separated entries, as produced by env overrides
func splitList(items []string) []string {
	out := []string{}
	for _, item := range items {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}
