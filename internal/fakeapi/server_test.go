package fakeapi

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/verte-zerg/bookdesk/internal/fixture"
)

func TestProtectedRouteRequiresToken(t *testing.T) {
	s := New()
	req := httptest.NewRequest("GET", "/books", nil)
	resp, err := s.App().Test(req)
	require.NoError(t, err)
	assert.Equal(t, 401, resp.StatusCode)
}

func TestUnknownRouteNotFound(t *testing.T) {
	s := New()
	req := httptest.NewRequest("GET", "/invoices", nil)
	resp, err := s.App().Test(req)
	require.NoError(t, err)
	assert.Equal(t, 404, resp.StatusCode)
}

func TestLoginIssuesUsableToken(t *testing.T) {
	s := New()
	_, err := s.AddUser("Ana", "ana@example.com", "secret")
	require.NoError(t, err)

	req := httptest.NewRequest("POST", "/login", strings.NewReader(`{"email":"ana@example.com","password":"secret"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.App().Test(req)
	require.NoError(t, err)
	require.Equal(t, 200, resp.StatusCode)
	var body struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.NotEmpty(t, body.Token)

	me := httptest.NewRequest("GET", "/users/me", nil)
	me.Header.Set("Authorization", "Bearer "+body.Token)
	resp, err = s.App().Test(me)
	require.NoError(t, err)
	data, _ := io.ReadAll(resp.Body)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Contains(t, string(data), "Ana")
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	s := New()
	_, err := s.AddUser("Ana", "ana@example.com", "secret")
	require.NoError(t, err)
	req := httptest.NewRequest("POST", "/login", strings.NewReader(`{"email":"ana@example.com","password":"nope"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.App().Test(req)
	require.NoError(t, err)
	assert.Equal(t, 401, resp.StatusCode)
}

func TestExpiredTokenRejected(t *testing.T) {
	s := New()
	user, err := s.AddUser("Ana", "ana@example.com", "secret")
	require.NoError(t, err)
	token, err := s.IssueToken(user.ID, -time.Minute)
	require.NoError(t, err)
	req := httptest.NewRequest("GET", "/users/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := s.App().Test(req)
	require.NoError(t, err)
	assert.Equal(t, 401, resp.StatusCode)
}

func TestSeed(t *testing.T) {
	s := New()
	now := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	users, err := s.Seed(fixture.New(3), now, SeedOptions{Books: 4, Sellers: 2, Sales: 30, Days: 7, Password: "pw"})
	require.NoError(t, err)
	assert.Len(t, users, 2)
	assert.Len(t, s.Books(), 4)
	sales := s.Sales()
	assert.Len(t, sales, 30)
	for _, sale := range sales {
		assert.False(t, sale.Date.After(now))
	}
}
