package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lyricgen/internal/models"
	"lyricgen/internal/store"
)

func TestSessionRoundTrip(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemory()
	s := New(kv)

	_, ok, err := s.Load(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Save(ctx, models.LastUsed{Provider: "OpenAI", Model: "gpt-4o"}))

	got, ok, err := s.Load(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, models.LastUsed{Provider: "OpenAI", Model: "gpt-4o"}, got)

	raw, _, err := kv.Get(ctx, store.KeyLastUsed)
	require.NoError(t, err)
	assert.JSONEq(t, `{"provider":"OpenAI","model":"gpt-4o"}`, raw)
}

func TestSessionRejectsEmptyProvider(t *testing.T) {
	assert.Error(t, New(store.NewMemory()).Save(context.Background(), models.LastUsed{Model: "m"}))
}

func TestSessionMalformedValue(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemory()
	require.NoError(t, kv.Set(ctx, store.KeyLastUsed, "{"))

	_, _, err := New(kv).Load(ctx)
	assert.Error(t, err)
}
