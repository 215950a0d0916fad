package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/verte-zerg/bookdesk/internal/session"
)

var (
	loginEmail    string
	loginPassword string
)

func newLoginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session token",
		Args:  cobra.NoArgs,
		RunE:  runLoginCmd,
	}
	cmd.Flags().StringVar(&loginEmail, "email", "", "account email (prompted when empty)")
	cmd.Flags().StringVar(&loginPassword, "password", "", "account password (prompted without echo when empty)")
	return cmd
}

func runLoginCmd(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd, nil)
	if err != nil {
		return err
	}
	defer closeApp(a)
	ctx := cmd.Context()

	in := bufio.NewReader(cmd.InOrStdin())
	email := strings.TrimSpace(loginEmail)
	if email == "" {
		last := a.Store.LastEmail(ctx)
		email, err = promptLine(in, cmd.ErrOrStderr(), "Email", last)
		if err != nil {
			return err
		}
	}
	password := loginPassword
	if password == "" {
		password, err = promptPassword(in, cmd.ErrOrStderr())
		if err != nil {
			return err
		}
	}

	identity, err := a.Login(ctx, email, password)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s <%s>\n", identity.Name, identity.Email)
	return err
}

func promptLine(in *bufio.Reader, out io.Writer, label, fallback string) (string, error) {
	prompt := label + ": "
	if fallback != "" {
		prompt = fmt.Sprintf("%s [%s]: ", label, fallback)
	}
	if _, err := fmt.Fprint(out, prompt); err != nil {
		return "", fmt.Errorf("failed to write prompt: %w", err)
	}
	line, err := in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", fmt.Errorf("failed to read %s: %w", strings.ToLower(label), err)
	}
	value := strings.TrimSpace(line)
	if value == "" {
		value = fallback
	}
	return value, nil
}

// promptPassword reads without echo on a terminal and falls back to a plain
// line for piped input.
func promptPassword(in *bufio.Reader, out io.Writer) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		line, err := in.ReadString('\n')
		if err != nil && (err != io.EOF || line == "") {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return strings.TrimRight(line, "\r\n"), nil
	}
	if _, err := fmt.Fprint(out, "Password: "); err != nil {
		return "", fmt.Errorf("failed to write prompt: %w", err)
	}
	data, err := term.ReadPassword(fd)
	if _, werr := fmt.Fprintln(out); werr != nil {
		// Best-effort newline after the hidden input.
		_ = werr
	}
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(data), nil
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd, nil)
			if err != nil {
				return err
			}
			defer closeApp(a)
			if err := a.Logout(); err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), "Signed out.")
			return err
		},
	}
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the session state",
		Args:  cobra.NoArgs,
		RunE:  runStatusCmd,
	}
}

func runStatusCmd(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd, nil)
	if err != nil {
		return err
	}
	defer closeApp(a)
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if a.Session.State() == session.Anonymous {
		_, err := fmt.Fprintf(out, "State:   %s\nBackend: %s\n", session.Anonymous, a.Settings.BaseURL)
		return err
	}
	identity, err := a.Session.ResolveIdentity(ctx)
	if err != nil {
		return err
	}
	lines := []string{
		fmt.Sprintf("State:   %s", a.Session.State()),
		fmt.Sprintf("User:    %s <%s>", identity.Name, identity.Email),
		fmt.Sprintf("Backend: %s", a.Settings.BaseURL),
	}
	token, err := a.Store.LoadToken(ctx)
	if err != nil {
		return fmt.Errorf("failed to load token: %w", err)
	}
	if expiry, ok := session.TokenExpiry(token); ok {
		lines = append(lines, fmt.Sprintf("Expires: %s (in %s)", expiry.Local().Format("2006-01-02 15:04"), time.Until(expiry).Round(time.Minute)))
	}
	_, err = fmt.Fprintln(out, strings.Join(lines, "\n"))
	return err
}
