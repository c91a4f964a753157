package token

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ermakartekovec-star/E-Genius5-AI/internal/store"
)

func TestFileProviderRoundTrip(t *testing.T) {
	dir := t.TempDir()
	base := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	clock := base
	provider := NewFileProvider(dir, func() time.Time { return clock })

	require.NoError(t, provider.Store("tok-abc", 3600))

	got, err := provider.ValidToken(context.Background())
	require.NoError(t, err)
	require.Equal(t, "tok-abc", got)

	// Still inside the lifetime.
	clock = base.Add(59 * time.Minute)
	got, err = provider.ValidToken(context.Background())
	require.NoError(t, err)
	require.Equal(t, "tok-abc", got)
}

func TestFileProviderExpiryDeletesCache(t *testing.T) {
	dir := t.TempDir()
	base := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	clock := base
	provider := NewFileProvider(dir, func() time.Time { return clock })

	require.NoError(t, provider.Store("tok-abc", 3600))

	clock = base.Add(time.Hour)
	_, err := provider.ValidToken(context.Background())
	require.ErrorIs(t, err, store.ErrNoToken)

	_, statErr := os.Stat(filepath.Join(dir, cacheFileName))
	require.True(t, os.IsNotExist(statErr))
}

func TestFileProviderMissingCache(t *testing.T) {
	provider := NewFileProvider(t.TempDir(), nil)
	_, err := provider.ValidToken(context.Background())
	require.ErrorIs(t, err, store.ErrNoToken)
}

func TestFileProviderCorruptCache(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, cacheFileName), []byte("{nope"), 0o600))

	provider := NewFileProvider(dir, nil)
	_, err := provider.ValidToken(context.Background())
	require.ErrorIs(t, err, store.ErrNoToken)
}

func TestFileProviderDefaultLifetime(t *testing.T) {
	dir := t.TempDir()
	base := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	clock := base
	provider := NewFileProvider(dir, func() time.Time { return clock })

	require.NoError(t, provider.Store("tok-abc", 0))

	clock = base.Add(59 * time.Minute)
	got, err := provider.ValidToken(context.Background())
	require.NoError(t, err)
	require.Equal(t, "tok-abc", got)
}

func TestStatic(t *testing.T) {
	got, err := Static("fixed").ValidToken(context.Background())
	require.NoError(t, err)
	require.Equal(t, "fixed", got)

	_, err = Static("").ValidToken(context.Background())
	require.ErrorIs(t, err, store.ErrNoToken)
}
