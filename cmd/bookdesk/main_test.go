package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verte-zerg/bookdesk/internal/api"
	"github.com/verte-zerg/bookdesk/internal/fakeapi"
	"github.com/verte-zerg/bookdesk/internal/fixture"
	"github.com/verte-zerg/bookdesk/internal/model"
)

type cliEnv struct {
	srv     *fakeapi.Server
	sellers []model.User
	config  string
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	srv := fakeapi.New()
	sellers, err := srv.Seed(fixture.New(3), time.Now(), fakeapi.SeedOptions{
		Books:    5,
		Sellers:  2,
		Sales:    20,
		Days:     5,
		Password: "secret",
	})
	require.NoError(t, err)
	httpSrv := srv.Start()
	t.Cleanup(httpSrv.Close)

	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("XDG_STATE_HOME", filepath.Join(dir, "state"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(dir, "data"))
	t.Setenv("BOOKDESK_API_URL", httpSrv.URL)
	t.Setenv("BOOKDESK_DB", filepath.Join(dir, "bookdesk.db"))
	t.Setenv("BOOKDESK_LOG_LEVEL", "")
	t.Setenv("NO_COLOR", "1")

	return &cliEnv{
		srv:     srv,
		sellers: sellers,
		config:  filepath.Join(dir, "config", "bookdesk", "config.toml"),
	}
}

func (e *cliEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetIn(strings.NewReader(""))
	cmd.SetArgs(append([]string{"--env-file", filepath.Join(t.TempDir(), "missing.env")}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func (e *cliEnv) login(t *testing.T) {
	t.Helper()
	out, err := e.run(t, "login", "--email", e.sellers[0].Email, "--password", "secret")
	require.NoError(t, err)
	require.Contains(t, out, "Signed in as "+e.sellers[0].Name)
}

func field(out, label string) string {
	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(line, label) {
			return strings.TrimSpace(strings.TrimPrefix(line, label))
		}
	}
	return ""
}

func TestLoginListAndLogout(t *testing.T) {
	env := newCLIEnv(t)
	env.login(t)

	out, err := env.run(t, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "authenticated")
	assert.Contains(t, out, env.sellers[0].Email)
	assert.Contains(t, out, "Expires:")

	out, err = env.run(t, "books", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Page 1/1  5 matches")

	out, err = env.run(t, "logout")
	require.NoError(t, err)
	assert.Contains(t, out, "Signed out.")

	_, err = env.run(t, "books", "list")
	assert.ErrorIs(t, err, errNotLoggedIn)
}

func TestWrongPasswordIsRejected(t *testing.T) {
	env := newCLIEnv(t)
	_, err := env.run(t, "login", "--email", env.sellers[0].Email, "--password", "nope")
	assert.ErrorIs(t, err, api.ErrInvalidCredentials)
}

func TestExpiredSessionIsReported(t *testing.T) {
	env := newCLIEnv(t)
	env.login(t)
	env.srv.RevokeAll()

	_, err := env.run(t, "sales", "list")
	require.ErrorIs(t, err, api.ErrAuthorizationExpired)

	// The rejected token is gone, so the next command asks for a login.
	out, err := env.run(t, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "anonymous")
	_, err = env.run(t, "books", "list")
	assert.ErrorIs(t, err, errNotLoggedIn)
}

func TestBookLifecycle(t *testing.T) {
	env := newCLIEnv(t)
	env.login(t)

	out, err := env.run(t, "books", "add", "--title", "Dom Casmurro", "--author", "Machado de Assis",
		"--isbn", "9788535910682", "--price", "30", "--stock", "4")
	require.NoError(t, err)
	id := field(out, "ID:")
	require.NotEmpty(t, id)
	assert.Equal(t, "R$ 30,00", field(out, "Price:"))

	out, err = env.run(t, "books", "edit", id, "--price", "32.5")
	require.NoError(t, err)
	assert.Equal(t, "R$ 32,50", field(out, "Price:"))
	assert.Equal(t, "Dom Casmurro", field(out, "Title:"), "unset flags keep their values")
	assert.Equal(t, "4", field(out, "Stock:"))

	out, err = env.run(t, "books", "list", "--search", "machado")
	require.NoError(t, err)
	assert.Contains(t, out, "Dom Casmurro")

	_, err = env.run(t, "books", "delete", id)
	require.NoError(t, err)
	_, err = env.run(t, "books", "show", id)
	assert.ErrorIs(t, err, api.ErrNotFound)
}

func TestBooksAddValidatesLocally(t *testing.T) {
	env := newCLIEnv(t)
	env.login(t)
	_, err := env.run(t, "books", "add", "--title", "X", "--author", "Y", "--isbn", "1", "--price", "abc")
	assert.ErrorIs(t, err, api.ErrValidation)
	_, err = env.run(t, "books", "add", "--author", "Y", "--isbn", "1")
	assert.ErrorIs(t, err, api.ErrValidation)
}

func TestSalesAddSelectMode(t *testing.T) {
	env := newCLIEnv(t)
	env.login(t)
	out, err := env.run(t, "books", "add", "--title", "Livro de Teste", "--author", "José de Alencar",
		"--isbn", "9788508133", "--price", "19.90", "--stock", "10")
	require.NoError(t, err)
	require.NotEmpty(t, field(out, "ID:"))

	_, err = env.run(t, "sales", "add", "--book", "livro de teste")
	assert.ErrorIs(t, err, api.ErrValidation, "select mode needs a seller")

	out, err = env.run(t, "sales", "add", "--book", "livro de teste", "--seller", env.sellers[1].Email, "--quantity", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "total R$ 39,80")

	out, err = env.run(t, "sales", "list", "--search", "livro de teste")
	require.NoError(t, err)
	assert.Contains(t, out, env.sellers[1].Name)
	assert.Contains(t, out, "Page 1/1  1 matches")
}

func TestSalesAddSelfModeFromConfig(t *testing.T) {
	env := newCLIEnv(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(env.config), 0o755))
	require.NoError(t, os.WriteFile(env.config, []byte("[sales]\nseller = \"self\"\n"), 0o644))
	env.login(t)

	out, err := env.run(t, "books", "add", "--title", "Livro de Teste", "--author", "Ana Silva",
		"--isbn", "9788508134", "--price", "10", "--stock", "3")
	require.NoError(t, err)
	_, err = env.run(t, "sales", "add", "--book", field(out, "ID:"), "--seller", "ignored")
	require.NoError(t, err)

	sales := env.srv.Sales()
	last := sales[len(sales)-1]
	assert.Equal(t, env.sellers[0].ID, last.User.ID)
}

func TestSalesListRejectsBadRange(t *testing.T) {
	env := newCLIEnv(t)
	_, err := env.run(t, "sales", "list", "--from", "2024-03-10", "--to", "2024-03-01")
	assert.Error(t, err)
	_, err = env.run(t, "sales", "list", "--from", "10/03/2024")
	assert.Error(t, err)
}

func TestFlagsOverrideConfig(t *testing.T) {
	env := newCLIEnv(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(env.config), 0o755))
	require.NoError(t, os.WriteFile(env.config, []byte("[dashboard]\ncurrency = \"US$\"\ntop = 2\n"), 0o644))
	env.login(t)

	out, err := env.run(t, "books", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "US$ ")

	out, err = env.run(t, "books", "list", "--currency", "EUR")
	require.NoError(t, err)
	assert.Contains(t, out, "EUR ")
	assert.NotContains(t, out, "US$")
}

func TestDashboardCommand(t *testing.T) {
	env := newCLIEnv(t)
	env.login(t)
	out, err := env.run(t, "dashboard", "--top", "1", "--rank-window", "month", "--width", "60")
	require.NoError(t, err)
	assert.Contains(t, out, "Sales today")
	assert.Contains(t, out, "Top books")
	assert.Contains(t, out, "Top sellers")
	assert.Contains(t, out, "Revenue by day")

	_, err = env.run(t, "dashboard", "--rank-window", "year")
	assert.Error(t, err)
}

func TestUsersCommand(t *testing.T) {
	env := newCLIEnv(t)
	env.login(t)
	out, err := env.run(t, "users")
	require.NoError(t, err)
	for _, u := range env.sellers {
		assert.Contains(t, out, u.Email)
	}
}

func TestFindBook(t *testing.T) {
	books := []model.Book{
		{ID: "b1", Title: "Iracema"},
		{ID: "b2", Title: "Helena"},
		{ID: "b3", Title: "helena"},
	}
	got, err := findBook(books, " b1 ")
	require.NoError(t, err)
	assert.Equal(t, "b1", got.ID)

	got, err = findBook(books, "IRACEMA")
	require.NoError(t, err)
	assert.Equal(t, "b1", got.ID)

	_, err = findBook(books, "Helena")
	assert.ErrorIs(t, err, api.ErrValidation)

	_, err = findBook(books, "Senhora")
	assert.True(t, errors.Is(err, api.ErrNotFound))
}

func TestDefaultConfigTemplateDecodes(t *testing.T) {
	env := newCLIEnv(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(env.config), 0o755))
	require.NoError(t, os.WriteFile(env.config, []byte(defaultConfigTemplate()), 0o644))
	out, err := env.run(t, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "anonymous")
}
