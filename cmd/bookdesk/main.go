// Package main provides the CLI entrypoint for bookdesk.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/verte-zerg/bookdesk/internal/api"
	"github.com/verte-zerg/bookdesk/internal/app"
	"github.com/verte-zerg/bookdesk/internal/config"
	"github.com/verte-zerg/bookdesk/internal/session"
	"github.com/verte-zerg/bookdesk/internal/ui"
)

var errNotLoggedIn = errors.New("not logged in; run: bookdesk login")

var (
	globalAPIURL   string
	globalTimeout  time.Duration
	globalDB       string
	globalLogLevel string
	globalCurrency string
	globalEnvFile  string
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	rootCmd := newRootCmd()
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		reportError(err)
		os.Exit(1)
	}
}

func reportError(err error) {
	switch {
	case errors.Is(err, api.ErrAuthorizationExpired):
		logErrln("session expired; run: bookdesk login")
	case errors.Is(err, errNotLoggedIn):
		logErrln(errNotLoggedIn.Error())
	default:
		logErrf("Error: %s\n", api.UserMessage(err))
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "bookdesk",
		Short:         "Bookstore admin client",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE:          runRootCmd,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&globalAPIURL, "api-url", config.DefaultBaseURL, "backend base URL")
	flags.DurationVar(&globalTimeout, "timeout", config.DefaultTimeout, "per-request timeout")
	flags.StringVar(&globalDB, "db", config.DefaultDBPath(), "path to the local database")
	flags.StringVar(&globalLogLevel, "log-level", config.DefaultLogLevel, "log level (debug, info, warn, error)")
	flags.StringVar(&globalCurrency, "currency", config.DefaultCurrency, "currency symbol")
	flags.StringVar(&globalEnvFile, "env-file", ".env", "dotenv file loaded before the environment is read")

	rootCmd.AddCommand(newLoginCmd())
	rootCmd.AddCommand(newLogoutCmd())
	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newBooksCmd())
	rootCmd.AddCommand(newSalesCmd())
	rootCmd.AddCommand(newUsersCmd())
	rootCmd.AddCommand(newDashboardCmd())
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newDemoServerCmd())

	return rootCmd
}

// loadSettings resolves defaults, the config file, the environment and the
// flags of cmd, in increasing order of precedence.
func loadSettings(cmd *cobra.Command) (config.Settings, error) {
	if err := config.LoadDotEnv(globalEnvFile); err != nil {
		return config.Settings{}, err
	}
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return config.Settings{}, fmt.Errorf("failed to load config: %w", err)
	}
	settings, err := config.Resolve(fileCfg, os.Getenv)
	if err != nil {
		return config.Settings{}, err
	}
	applyConfig(cmd, "api-url", &globalAPIURL, settings.BaseURL)
	applyConfig(cmd, "timeout", &globalTimeout, settings.Timeout)
	applyConfig(cmd, "db", &globalDB, settings.DBPath)
	applyConfig(cmd, "log-level", &globalLogLevel, settings.LogLevel)
	applyConfig(cmd, "currency", &globalCurrency, settings.Currency)
	settings.BaseURL = globalAPIURL
	settings.Timeout = globalTimeout
	settings.DBPath = globalDB
	settings.LogLevel = globalLogLevel
	settings.Currency = globalCurrency
	return settings, nil
}

func openApp(cmd *cobra.Command, adjust func(*config.Settings)) (*app.App, error) {
	settings, err := loadSettings(cmd)
	if err != nil {
		return nil, err
	}
	if adjust != nil {
		adjust(&settings)
	}
	return app.New(cmd.Context(), settings, app.Options{})
}

func closeApp(a *app.App) {
	if err := a.Close(); err != nil {
		logErrf("%v\n", err)
	}
}

// requireSession fails fast when no credential is stored.
func requireSession(a *app.App) error {
	if a.Session.State() == session.Anonymous {
		return errNotLoggedIn
	}
	return nil
}

func runRootCmd(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd, nil)
	if err != nil {
		return err
	}
	defer closeApp(a)
	ctx := cmd.Context()

	opts := ui.Options{
		Email:    a.Store.LastEmail(ctx),
		Currency: a.Settings.Currency,
		Location: time.Local,
	}
	if err := a.Restore(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		if errors.Is(err, api.ErrAuthorizationExpired) {
			opts.Notice = ui.ExpiredNotice
		} else {
			opts.Notice = "Could not restore session: " + api.UserMessage(err)
		}
	}
	if identity, ok := a.Session.Identity(); ok {
		opts.Authenticated = true
		opts.Identity = identity
	}

	m := ui.NewModel(ctx, a, opts)
	program := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	a.OnSessionExpired(func(reason string) {
		program.Send(ui.SessionExpiredMsg{Reason: reason})
	})
	if _, err := program.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("failed to run TUI: %w", err)
	}
	return nil
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Create/open config file",
		Args:  cobra.NoArgs,
		RunE:  runConfigCmd,
	}
}

func runConfigCmd(_ *cobra.Command, _ []string) error {
	path := config.DefaultConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat config: %w", err)
		}
		if err := os.WriteFile(path, []byte(defaultConfigTemplate()), 0o644); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
	}

	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = "vi"
	}
	parts := strings.Fields(editor)
	if len(parts) == 0 {
		return fmt.Errorf("editor command is empty")
	}
	cmd := exec.Command(parts[0], append(parts[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to open editor: %w", err)
	}
	return nil
}

func defaultConfigTemplate() string {
	return fmt.Sprintf(`# bookdesk configuration
# Uncomment a value to enable it. Environment variables (%s, %s, %s)
# override the file; CLI flags override both.

[api]
# base-url = %q
# timeout = %q

[dashboard]
# top = %d                 # Entries per ranking
# rank-window = %q       # all, month or today
# currency = %q

[sales]
# seller = %q         # select: pick any seller; self: record as the signed-in user

[log]
# level = %q            # debug, info, warn, error
# file = %q
`,
		config.EnvBaseURL,
		config.EnvLogLevel,
		config.EnvDBPath,
		config.DefaultBaseURL,
		config.DefaultTimeout.String(),
		config.DefaultTop,
		config.DefaultRankWindow,
		config.DefaultCurrency,
		config.DefaultSeller,
		config.DefaultLogLevel,
		config.DefaultLogPath(),
	)
}

// applyConfig copies a resolved value into a flag target unless the flag was
// set on the command line.
func applyConfig[T any](cmd *cobra.Command, name string, target *T, value T) {
	if cmd.Flags().Changed(name) {
		return
	}
	*target = value
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}

func logErrln(args ...any) {
	if _, err := fmt.Fprintln(os.Stderr, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}
