// Package config provides configuration helpers and TOML parsing.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Defaults applied when neither the file, the environment nor a flag sets a value.
const (
	DefaultBaseURL    = "https://livraria-backend.onrender.com"
	DefaultTimeout    = 15 * time.Second
	DefaultTop        = 5
	DefaultRankWindow = "all"
	DefaultCurrency   = "R$"
	DefaultSeller     = "select"
	DefaultLogLevel   = "info"
)

// Environment variables recognised on top of the config file.
const (
	EnvBaseURL  = "BOOKDESK_API_URL"
	EnvLogLevel = "BOOKDESK_LOG_LEVEL"
	EnvDBPath   = "BOOKDESK_DB"
)

// FileConfig represents the TOML configuration file.
type FileConfig struct {
	API       APIConfig       `toml:"api"`
	Dashboard DashboardConfig `toml:"dashboard"`
	Sales     SalesConfig     `toml:"sales"`
	Log       LogConfig       `toml:"log"`
}

// APIConfig maps backend connection settings.
type APIConfig struct {
	BaseURL *string `toml:"base-url"`
	Timeout *string `toml:"timeout"`
}

// DashboardConfig maps analytics settings.
type DashboardConfig struct {
	Top        *int    `toml:"top"`
	RankWindow *string `toml:"rank-window"`
	Currency   *string `toml:"currency"`
}

// SalesConfig maps sale recording settings.
type SalesConfig struct {
	Seller *string `toml:"seller"`
}

// LogConfig maps logging settings.
type LogConfig struct {
	Level *string `toml:"level"`
	File  *string `toml:"file"`
}

// Settings is the resolved configuration used by the application.
type Settings struct {
	BaseURL    string
	Timeout    time.Duration
	Top        int
	RankWindow string
	Currency   string
	Seller     string
	LogLevel   string
	LogFile    string
	DBPath     string
}

// DefaultSettings returns settings populated with built-in defaults.
func DefaultSettings() Settings {
	return Settings{
		BaseURL:    DefaultBaseURL,
		Timeout:    DefaultTimeout,
		Top:        DefaultTop,
		RankWindow: DefaultRankWindow,
		Currency:   DefaultCurrency,
		Seller:     DefaultSeller,
		LogLevel:   DefaultLogLevel,
		LogFile:    DefaultLogPath(),
		DBPath:     DefaultDBPath(),
	}
}

// LoadConfig reads a TOML config from the given path. Missing file is not an error.
func LoadConfig(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("failed to stat config: %w", err)
	}
	var cfg FileConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}

// LoadDotEnv loads variables from a .env file without overriding the real
// environment. A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to stat env file: %w", err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load env file: %w", err)
	}
	return nil
}

// Resolve merges the file config and the environment over the defaults.
// Command-line flags are applied afterwards by the caller.
func Resolve(file FileConfig, getenv func(string) string) (Settings, error) {
	if getenv == nil {
		getenv = os.Getenv
	}
	s := DefaultSettings()
	if v := file.API.BaseURL; v != nil {
		s.BaseURL = *v
	}
	if v := file.API.Timeout; v != nil {
		d, err := time.ParseDuration(*v)
		if err != nil {
			return Settings{}, fmt.Errorf("invalid api.timeout: %w", err)
		}
		s.Timeout = d
	}
	if v := file.Dashboard.Top; v != nil {
		s.Top = *v
	}
	if v := file.Dashboard.RankWindow; v != nil {
		s.RankWindow = *v
	}
	if v := file.Dashboard.Currency; v != nil {
		s.Currency = *v
	}
	if v := file.Sales.Seller; v != nil {
		s.Seller = *v
	}
	if v := file.Log.Level; v != nil {
		s.LogLevel = *v
	}
	if v := file.Log.File; v != nil && *v != "" {
		s.LogFile = *v
	}

	if v := strings.TrimSpace(getenv(EnvBaseURL)); v != "" {
		s.BaseURL = v
	}
	if v := strings.TrimSpace(getenv(EnvLogLevel)); v != "" {
		s.LogLevel = v
	}
	if v := strings.TrimSpace(getenv(EnvDBPath)); v != "" {
		s.DBPath = v
	}
	return s, nil
}

// Validate reports the first invalid setting.
func (s Settings) Validate() error {
	if strings.TrimSpace(s.BaseURL) == "" {
		return fmt.Errorf("api base url must not be empty")
	}
	if s.Timeout < 0 {
		return fmt.Errorf("api timeout must be >= 0")
	}
	if s.Top <= 0 {
		return fmt.Errorf("--top must be > 0")
	}
	switch s.RankWindow {
	case "all", "month", "today":
	default:
		return fmt.Errorf("--rank-window must be one of all, month, today")
	}
	switch s.Seller {
	case "select", "self":
	default:
		return fmt.Errorf("sales seller must be select or self")
	}
	return nil
}
