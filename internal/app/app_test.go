package app

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verte-zerg/bookdesk/internal/api"
	"github.com/verte-zerg/bookdesk/internal/config"
	"github.com/verte-zerg/bookdesk/internal/fakeapi"
	"github.com/verte-zerg/bookdesk/internal/fixture"
	"github.com/verte-zerg/bookdesk/internal/logging"
	"github.com/verte-zerg/bookdesk/internal/model"
	"github.com/verte-zerg/bookdesk/internal/session"
)

const (
	testEmail    = "seller1@bookdesk.test"
	testPassword = "secret"
)

var testNow = time.Date(2024, 3, 15, 18, 0, 0, 0, time.UTC)

type env struct {
	backend *fakeapi.Server
	users   []model.User
	dbPath  string
	url     string
}

func newEnv(t *testing.T) *env {
	t.Helper()
	backend := fakeapi.New()
	backend.SetClock(func() time.Time { return testNow })
	users, err := backend.Seed(fixture.New(1), testNow, fakeapi.SeedOptions{
		Books:    6,
		Sellers:  3,
		Sales:    80,
		Days:     20,
		Password: testPassword,
	})
	require.NoError(t, err)
	server := backend.Start()
	t.Cleanup(server.Close)
	return &env{
		backend: backend,
		users:   users,
		dbPath:  filepath.Join(t.TempDir(), "bookdesk.db"),
		url:     server.URL,
	}
}

func (e *env) settings() config.Settings {
	s := config.DefaultSettings()
	s.BaseURL = e.url
	s.Timeout = 5 * time.Second
	s.DBPath = e.dbPath
	s.LogFile = ""
	return s
}

func (e *env) open(t *testing.T, s config.Settings) *App {
	t.Helper()
	a, err := New(context.Background(), s, Options{
		Logger: logging.Discard(),
		Now:    func() time.Time { return testNow },
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestNewRejectsInvalidSettings(t *testing.T) {
	s := config.DefaultSettings()
	s.Top = 0
	_, err := New(context.Background(), s, Options{Logger: logging.Discard()})
	assert.Error(t, err)
}

func TestLoginAndDashboard(t *testing.T) {
	e := newEnv(t)
	a := e.open(t, e.settings())

	identity, err := a.Login(context.Background(), testEmail, testPassword)
	require.NoError(t, err)
	assert.Equal(t, e.users[0].ID, identity.ID)
	assert.Equal(t, testEmail, a.Store.LastEmail(context.Background()))

	d, err := a.Dashboard(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 80, d.SaleCount)
	assert.LessOrEqual(t, len(d.Summary.TopBooks), 5)
	assert.NotEmpty(t, d.Summary.ByDate)
}

func TestRestoreFromDurableToken(t *testing.T) {
	e := newEnv(t)
	first := e.open(t, e.settings())
	_, err := first.Login(context.Background(), testEmail, testPassword)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second := e.open(t, e.settings())
	assert.Equal(t, session.Restoring, second.Session.State())
	require.NoError(t, second.Restore(context.Background()))
	assert.Equal(t, session.Authenticated, second.Session.State())
}

func TestExpiredSessionRedirectsOnce(t *testing.T) {
	e := newEnv(t)
	a := e.open(t, e.settings())
	_, err := a.Login(context.Background(), testEmail, testPassword)
	require.NoError(t, err)

	var redirects int32
	a.OnSessionExpired(func(string) { atomic.AddInt32(&redirects, 1) })
	e.backend.RevokeAll()
	e.backend.SetLatency(30 * time.Millisecond)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := a.Dashboard(context.Background())
			assert.ErrorIs(t, err, api.ErrAuthorizationExpired)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&redirects))
	assert.False(t, a.Session.IsAuthenticated())
	token, err := a.Store.LoadToken(context.Background())
	require.NoError(t, err)
	assert.Empty(t, token)
}

func TestLogoutDoesNotRedirect(t *testing.T) {
	e := newEnv(t)
	a := e.open(t, e.settings())
	_, err := a.Login(context.Background(), testEmail, testPassword)
	require.NoError(t, err)

	redirected := false
	a.OnSessionExpired(func(string) { redirected = true })
	require.NoError(t, a.Session.Logout())
	assert.False(t, redirected)
}

func stockedBook(t *testing.T, e *env) model.Book {
	t.Helper()
	return e.backend.AddBook(model.Book{
		Title:  "Quincas Borba",
		Author: "Machado de Assis",
		ISBN:   "9780000000001",
		Price:  decimal.RequireFromString("39.90"),
		Stock:  10,
	})
}

func TestRecordSaleSelectMode(t *testing.T) {
	e := newEnv(t)
	a := e.open(t, e.settings())
	_, err := a.Login(context.Background(), testEmail, testPassword)
	require.NoError(t, err)
	book := stockedBook(t, e)

	sale, err := a.RecordSale(context.Background(), book.ID, e.users[2].ID, 2)
	require.NoError(t, err)
	assert.Equal(t, e.users[2].ID, sale.User.ID)
	assert.True(t, sale.Total.Equal(decimal.RequireFromString("79.80")))
}

func TestRecordSaleSelfMode(t *testing.T) {
	e := newEnv(t)
	s := e.settings()
	s.Seller = string(SellerSelf)
	a := e.open(t, s)
	require.Equal(t, SellerSelf, a.SellerMode())
	_, err := a.Login(context.Background(), testEmail, testPassword)
	require.NoError(t, err)
	book := stockedBook(t, e)

	sale, err := a.RecordSale(context.Background(), book.ID, e.users[2].ID, 1)
	require.NoError(t, err)
	assert.Equal(t, e.users[0].ID, sale.User.ID)
}

func TestStatsOptionsFromSettings(t *testing.T) {
	e := newEnv(t)
	s := e.settings()
	s.Top = 3
	s.RankWindow = "month"
	a := e.open(t, s)
	opts := a.StatsOptions()
	assert.Equal(t, 3, opts.TopN)
	assert.Equal(t, "month", string(opts.RankWindow))
}
