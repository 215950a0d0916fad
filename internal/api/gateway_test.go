package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/verte-zerg/bookdesk/internal/fakeapi"
	"github.com/verte-zerg/bookdesk/internal/model"
)

type staticSource struct {
	mu   sync.Mutex
	cred Credential
}

func (s *staticSource) Credential() Credential {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cred
}

func (s *staticSource) set(c Credential) {
	s.mu.Lock()
	s.cred = c
	s.mu.Unlock()
}

type fixtureEnv struct {
	backend *fakeapi.Server
	server  *httptest.Server
	gw      *Gateway
	src     *staticSource
	user    model.User
}

func newEnv(t *testing.T) *fixtureEnv {
	t.Helper()
	backend := fakeapi.New()
	user, err := backend.AddUser("Ana Souza", "ana@example.com", "secret")
	require.NoError(t, err)
	server := backend.Start()
	t.Cleanup(server.Close)
	src := &staticSource{}
	gw := New(Options{BaseURL: server.URL + "/", Timeout: 5 * time.Second})
	gw.SetCredentialSource(src)
	return &fixtureEnv{backend: backend, server: server, gw: gw, src: src, user: user}
}

func (e *fixtureEnv) login(t *testing.T, epoch uint64) {
	t.Helper()
	token, err := e.gw.Login(context.Background(), "ana@example.com", "secret")
	require.NoError(t, err)
	e.src.set(Credential{Token: token, Epoch: epoch})
}

func TestLoginAndMe(t *testing.T) {
	env := newEnv(t)
	env.login(t, 1)
	identity, err := env.gw.Me(context.Background())
	require.NoError(t, err)
	assert.Equal(t, env.user.ID, identity.ID)
	assert.Equal(t, "Ana Souza", identity.Name)
}

func TestLoginRejectedIsInvalidCredentials(t *testing.T) {
	env := newEnv(t)
	var calls int32
	env.gw.OnUnauthorized(func(Credential) { atomic.AddInt32(&calls, 1) })

	_, err := env.gw.Login(context.Background(), "ana@example.com", "wrong")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.NotErrorIs(t, err, ErrAuthorizationExpired)
	assert.Zero(t, atomic.LoadInt32(&calls))
}

func TestLoginSendsNoCredential(t *testing.T) {
	var sawAuth atomic.Bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "" {
			sawAuth.Store(true)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"token":"t"}`))
	}))
	defer server.Close()
	gw := New(Options{BaseURL: server.URL})
	gw.SetCredentialSource(&staticSource{cred: Credential{Token: "old", Epoch: 1}})
	token, err := gw.Login(context.Background(), "a", "b")
	require.NoError(t, err)
	assert.Equal(t, "t", token)
	assert.False(t, sawAuth.Load())
}

func TestRequestWithoutCredentialIsAnonymous(t *testing.T) {
	env := newEnv(t)
	var calls int32
	env.gw.OnUnauthorized(func(Credential) { atomic.AddInt32(&calls, 1) })
	_, err := env.gw.ListBooks(context.Background())
	assert.ErrorIs(t, err, ErrAuthorizationExpired)
	assert.Zero(t, atomic.LoadInt32(&calls), "a 401 on an anonymous request must not tear anything down")
}

func TestConcurrentUnauthorizedCollapsesToOne(t *testing.T) {
	env := newEnv(t)
	env.login(t, 7)
	env.backend.RevokeAll()
	env.backend.SetLatency(50 * time.Millisecond)

	var calls int32
	env.gw.OnUnauthorized(func(c Credential) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, uint64(7), c.Epoch)
	})

	var wg sync.WaitGroup
	errs := make([]error, 5)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = env.gw.ListSales(context.Background())
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	for _, err := range errs {
		assert.ErrorIs(t, err, ErrAuthorizationExpired)
	}
}

func TestInvalidatedEpochSentWithoutHeader(t *testing.T) {
	env := newEnv(t)
	env.login(t, 3)
	env.backend.RevokeAll()
	_, err := env.gw.ListBooks(context.Background())
	require.ErrorIs(t, err, ErrAuthorizationExpired)

	// The source still returns epoch 3; it must not be sent again.
	before := env.backend.Calls("GET /books")
	_, err = env.gw.ListBooks(context.Background())
	require.ErrorIs(t, err, ErrAuthorizationExpired)
	assert.Equal(t, before+1, env.backend.Calls("GET /books"))
	assert.Equal(t, Credential{}, env.gw.credentialFor(Request{}))
}

func TestNewEpochAfterTeardownIsUsed(t *testing.T) {
	env := newEnv(t)
	var calls int32
	env.gw.OnUnauthorized(func(Credential) { atomic.AddInt32(&calls, 1) })
	env.login(t, 1)
	env.backend.RevokeAll()
	_, err := env.gw.ListBooks(context.Background())
	require.ErrorIs(t, err, ErrAuthorizationExpired)

	env.login(t, 2)
	_, err = env.gw.ListBooks(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestBookLifecycle(t *testing.T) {
	env := newEnv(t)
	env.login(t, 1)
	ctx := context.Background()

	created, err := env.gw.CreateBook(ctx, model.BookInput{
		Title: "Dom Casmurro", Author: "Machado de Assis", ISBN: "9788535910663",
		Price: decimal.RequireFromString("39.90"), Stock: 4,
	})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	assert.True(t, created.Price.Equal(decimal.RequireFromString("39.9")))

	got, err := env.gw.GetBook(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Dom Casmurro", got.Title)

	in := got.Input()
	in.Stock = 10
	updated, err := env.gw.UpdateBook(ctx, got.ID, in)
	require.NoError(t, err)
	assert.Equal(t, 10, updated.Stock)

	require.NoError(t, env.gw.DeleteBook(ctx, got.ID))
	_, err = env.gw.GetBook(ctx, got.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBackendValidationMessageSurfaces(t *testing.T) {
	env := newEnv(t)
	env.login(t, 1)
	ctx := context.Background()
	in := model.BookInput{Title: "A", Author: "B", ISBN: "1", Price: decimal.NewFromInt(1), Stock: 1}
	_, err := env.gw.CreateBook(ctx, in)
	require.NoError(t, err)
	_, err = env.gw.CreateBook(ctx, in)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, "ISBN already registered", UserMessage(err))
}

func TestLocalValidation(t *testing.T) {
	env := newEnv(t)
	_, err := env.gw.CreateBook(context.Background(), model.BookInput{Author: "x", ISBN: "1"})
	assert.ErrorIs(t, err, ErrValidation)
	_, err = env.gw.CreateSale(context.Background(), model.SaleInput{UserID: "u", BookID: "b"})
	assert.ErrorIs(t, err, ErrValidation)
	assert.Zero(t, env.backend.Calls("POST /books"))
	assert.Zero(t, env.backend.Calls("POST /sales"))
}

func TestCreateSaleAndLoadForm(t *testing.T) {
	env := newEnv(t)
	env.login(t, 1)
	ctx := context.Background()
	book := env.backend.AddBook(model.Book{Title: "Iracema", Author: "Alencar", ISBN: "1", Price: decimal.RequireFromString("20.00"), Stock: 3})

	form, err := env.gw.LoadSaleForm(ctx)
	require.NoError(t, err)
	require.Len(t, form.Users, 1)
	require.Len(t, form.Books, 1)

	sale, err := env.gw.CreateSale(ctx, model.SaleInput{UserID: form.Users[0].ID, BookID: book.ID, Quantity: 2})
	require.NoError(t, err)
	assert.True(t, sale.Total.Equal(decimal.RequireFromString("40")))
	assert.Equal(t, "Iracema", sale.Book.Title)

	_, err = env.gw.CreateSale(ctx, model.SaleInput{UserID: form.Users[0].ID, BookID: book.ID, Quantity: 5})
	assert.ErrorIs(t, err, ErrValidation)

	sales, err := env.gw.ListSales(ctx)
	require.NoError(t, err)
	assert.Len(t, sales, 1)
}

func TestLoadSaleFormFailsAsUnit(t *testing.T) {
	env := newEnv(t)
	_, err := env.gw.LoadSaleForm(context.Background())
	assert.ErrorIs(t, err, ErrAuthorizationExpired)
}

func TestServerErrorIsUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"message":"upstream down","code":"UPSTREAM"}`))
	}))
	defer server.Close()
	gw := New(Options{BaseURL: server.URL})
	_, err := gw.ListBooks(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadGateway, apiErr.Status)
	assert.Equal(t, "upstream down", apiErr.Message)
	assert.Equal(t, "UPSTREAM", apiErr.Code)
}

func TestTransportErrorKeepsContextCause(t *testing.T) {
	env := newEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := env.gw.ListBooks(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, err, context.Canceled)
}
