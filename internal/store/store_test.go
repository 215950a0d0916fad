package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "nested", "bookdesk.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		if cerr := st.Close(); cerr != nil {
			// Best-effort close.
			_ = cerr
		}
	})
	return st
}

func TestTokenRoundTrip(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)

	token, err := st.LoadToken(ctx)
	require.NoError(t, err)
	assert.Empty(t, token)

	require.NoError(t, st.SaveToken(ctx, "abc"))
	require.NoError(t, st.SaveToken(ctx, "def"))
	token, err = st.LoadToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "def", token)

	require.NoError(t, st.DeleteToken(ctx))
	require.NoError(t, st.DeleteToken(ctx))
	token, err = st.LoadToken(ctx)
	require.NoError(t, err)
	assert.Empty(t, token)
}

func TestTokenSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "bookdesk.db")

	st, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, st.SaveToken(ctx, "persisted"))
	require.NoError(t, st.Close())

	st, err = Open(path)
	require.NoError(t, err)
	defer func() { _ = st.Close() }()
	token, err := st.LoadToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "persisted", token)
}

func TestGetMissingKey(t *testing.T) {
	st := openTestStore(t)
	_, err := st.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, st.LastEmail(context.Background()))
}

func TestLastEmail(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)
	require.NoError(t, st.SaveLastEmail(ctx, "ana@example.com"))
	assert.Equal(t, "ana@example.com", st.LastEmail(ctx))
}
