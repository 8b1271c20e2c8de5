package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lyricgen/internal/models"
	"lyricgen/internal/store"
)

func testDefaults() []models.Provider {
	return []models.Provider{
		{
			Name:             "OpenRouter",
			Kind:             models.KindOpenRouter,
			APIKeyRef:        "OPENROUTER_API_KEY",
			ChatEndpoint:     "https://openrouter.ai/api/v1/chat/completions",
			AuthHeaderPrefix: "Bearer ",
		},
		{
			Name:             "OpenAI",
			Kind:             models.KindOpenAI,
			APIKeyRef:        "OPENAI_API_KEY",
			ChatEndpoint:     "https://api.openai.com/v1/chat/completions",
			AuthHeaderPrefix: "Bearer ",
		},
	}
}

func newTestRegistry(t *testing.T, kv store.KV) *Registry {
	t.Helper()
	reg, err := NewRegistry(testDefaults(), kv, nil)
	require.NoError(t, err)
	return reg
}

func names(list []models.Provider) []string {
	out := make([]string, len(list))
	for i, p := range list {
		out[i] = p.Name
	}
	return out
}

func TestRegistryAddAppendsAndPersistsCustomOnly(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemory()
	reg := newTestRegistry(t, kv)

	added, err := reg.Add(ctx, models.Provider{
		Name:         "My Provider",
		ChatEndpoint: "https://llm.example.com/v1/chat/completions",
	})
	require.NoError(t, err)

	assert.Equal(t, models.KindOpenAI, added.Kind)
	assert.Equal(t, "https://llm.example.com/v1/models", added.ModelsEndpoint)
	assert.Equal(t, "MY_PROVIDER_API_KEY", added.APIKeyRef)
	assert.Equal(t, "id", added.ModelIDField)
	assert.Equal(t, "name", added.ModelNameField)
	assert.Regexp(t, `^my_provider_[0-9a-f]{8}$`, added.ID)
	assert.Equal(t, []string{"OpenRouter", "OpenAI", "My Provider"}, names(reg.List()))

	raw, ok, err := kv.Get(ctx, store.KeyProviders)
	require.NoError(t, err)
	require.True(t, ok)

	var saved []models.Provider
	require.NoError(t, json.Unmarshal([]byte(raw), &saved))
	assert.Equal(t, []string{"My Provider"}, names(saved))
}

func TestRegistryAddDuplicateName(t *testing.T) {
	reg := newTestRegistry(t, nil)

	_, err := reg.Add(context.Background(), models.Provider{
		Name:         "OpenAI",
		ChatEndpoint: "https://other.example.com/v1/chat/completions",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDuplicateProviderName))
	assert.Len(t, reg.List(), 2)
}

func TestRegistryNamesAreCaseSensitive(t *testing.T) {
	reg := newTestRegistry(t, nil)

	_, err := reg.Add(context.Background(), models.Provider{
		Name:         "openai",
		ChatEndpoint: "https://other.example.com/v1/chat/completions",
	})
	require.NoError(t, err)
	assert.Len(t, reg.List(), 3)
}

func TestRegistryRemove(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemory()
	reg := newTestRegistry(t, kv)

	_, err := reg.Add(ctx, models.Provider{Name: "Local", BaseURL: "http://localhost:11434/v1"})
	require.NoError(t, err)

	list := reg.Remove(ctx, "Local")
	assert.Equal(t, []string{"OpenRouter", "OpenAI"}, names(list))

	raw, ok, err := kv.Get(ctx, store.KeyProviders)
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `[]`, raw)
}

func TestRegistryRemoveUnknownIsNoop(t *testing.T) {
	reg := newTestRegistry(t, nil)

	before := reg.List()
	after := reg.Remove(context.Background(), "Nope")
	assert.Equal(t, before, after)
}

func TestRegistryListReturnsCopies(t *testing.T) {
	reg := newTestRegistry(t, nil)

	list := reg.List()
	list[0].Name = "mutated"
	assert.Equal(t, "OpenRouter", reg.List()[0].Name)
}

func TestRegistryLookup(t *testing.T) {
	reg := newTestRegistry(t, nil)

	p, err := reg.Lookup("OpenAI")
	require.NoError(t, err)
	assert.True(t, p.Default)
	assert.Equal(t, "https://api.openai.com/v1/models", p.ModelsEndpoint)

	_, err = reg.Lookup("Missing")
	assert.ErrorIs(t, err, ErrUnknownProvider)
}

func TestRegistryLoadRestoresSavedProviders(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemory()

	first := newTestRegistry(t, kv)
	_, err := first.Add(ctx, models.Provider{Name: "Groq", BaseURL: "https://api.groq.com/openai/v1"})
	require.NoError(t, err)

	second := newTestRegistry(t, kv)
	require.NoError(t, second.Load(ctx))
	assert.Equal(t, []string{"OpenRouter", "OpenAI", "Groq"}, names(second.List()))

	groq, err := second.Lookup("Groq")
	require.NoError(t, err)
	assert.False(t, groq.Default)
	assert.Equal(t, "https://api.groq.com/openai/v1/chat/completions", groq.ChatEndpoint)
}

func TestRegistryLoadSkipsCollisionsWithDefaults(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemory()
	require.NoError(t, kv.Set(ctx, store.KeyProviders,
		`[{"name":"OpenAI","chatEndpoint":"https://evil.example.com/v1/chat/completions"},{"name":"","chatEndpoint":"x"}]`))

	reg := newTestRegistry(t, kv)
	require.NoError(t, reg.Load(ctx))

	list := reg.List()
	require.Len(t, list, 2)
	assert.Equal(t, "https://api.openai.com/v1/chat/completions", list[1].ChatEndpoint)
}

func TestRegistryLoadMalformedJSON(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemory()
	require.NoError(t, kv.Set(ctx, store.KeyProviders, `{not json`))

	reg := newTestRegistry(t, kv)
	assert.Error(t, reg.Load(ctx))
	assert.Len(t, reg.List(), 2)
}

func TestRegistriesSharingAStoreKeepEachOthersProviders(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "lyricgen.db")
	open := func() *Registry {
		kv, err := store.OpenSQLite(path)
		require.NoError(t, err)
		t.Cleanup(func() { _ = kv.Close() })
		reg := newTestRegistry(t, kv)
		require.NoError(t, reg.Load(ctx))
		return reg
	}

	server := open()
	cli := open()

	_, err := cli.Add(ctx, models.Provider{Name: "CliProv", BaseURL: "https://cli.example.com/v1"})
	require.NoError(t, err)
	_, err = server.Add(ctx, models.Provider{Name: "SrvProv", BaseURL: "https://srv.example.com/v1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"OpenRouter", "OpenAI", "CliProv", "SrvProv"}, names(server.List()))

	_, err = cli.Add(ctx, models.Provider{Name: "SrvProv", BaseURL: "https://other.example.com/v1"})
	assert.ErrorIs(t, err, ErrDuplicateProviderName)

	assert.Equal(t, []string{"OpenRouter", "OpenAI", "CliProv", "SrvProv"}, names(open().List()))

	cli.Remove(ctx, "SrvProv")
	assert.Equal(t, []string{"OpenRouter", "OpenAI", "CliProv"}, names(open().List()))
}

func TestRegistryConcurrentAddAndRemove(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemory()
	reg := newTestRegistry(t, kv)

	const workers = 16
	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			keep := fmt.Sprintf("keep-%d", i)
			temp := fmt.Sprintf("temp-%d", i)
			for _, name := range []string{keep, temp} {
				_, err := reg.Add(ctx, models.Provider{Name: name, BaseURL: "https://llm.example.com/v1"})
				assert.NoError(t, err)
			}
			reg.Remove(ctx, temp)
			_ = reg.List()
		}()
	}
	wg.Wait()

	assert.Len(t, reg.List(), len(testDefaults())+workers)

	reopened := newTestRegistry(t, kv)
	require.NoError(t, reopened.Load(ctx))
	assert.Len(t, reopened.List(), len(testDefaults())+workers)
}

func TestRegistryRemoveDefaultIsNotPersisted(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemory()
	reg := newTestRegistry(t, kv)

	assert.Equal(t, []string{"OpenRouter"}, names(reg.Remove(ctx, "OpenAI")))

	_, ok, err := kv.Get(ctx, store.KeyProviders)
	require.NoError(t, err)
	assert.False(t, ok)

	reopened := newTestRegistry(t, kv)
	require.NoError(t, reopened.Load(ctx))
	assert.Equal(t, []string{"OpenRouter", "OpenAI"}, names(reopened.List()))
}

type failingKV struct{ store.KV }

var errDiskFull = errors.New("disk full")

func (failingKV) Update(context.Context, string, store.UpdateFunc) error { return errDiskFull }

func TestRegistryPersistFailureKeepsMemoryState(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry(t, failingKV{KV: store.NewMemory()})

	_, err := reg.Add(ctx, models.Provider{Name: "Local", BaseURL: "http://localhost:11434/v1"})
	require.NoError(t, err)
	assert.ErrorIs(t, reg.PersistErr(), errDiskFull)
	assert.Equal(t, []string{"OpenRouter", "OpenAI", "Local"}, names(reg.List()))

	assert.Equal(t, []string{"OpenRouter", "OpenAI"}, names(reg.Remove(ctx, "Local")))
}

func TestNewRegistryRejectsDuplicateDefaults(t *testing.T) {
	defaults := append(testDefaults(), testDefaults()[0])
	_, err := NewRegistry(defaults, nil, nil)
	assert.ErrorIs(t, err, ErrDuplicateProviderName)
}

func TestPrepare(t *testing.T) {
	tests := []struct {
		name    string
		in      models.Provider
		wantErr bool
		check   func(t *testing.T, p models.Provider)
	}{
		{
			name:    "missing name",
			in:      models.Provider{ChatEndpoint: "https://x.example.com/v1/chat/completions"},
			wantErr: true,
		},
		{
			name:    "missing endpoint",
			in:      models.Provider{Name: "x"},
			wantErr: true,
		},
		{
			name:    "bad scheme",
			in:      models.Provider{Name: "x", ChatEndpoint: "ftp://x.example.com/chat"},
			wantErr: true,
		},
		{
			name:    "unknown kind",
			in:      models.Provider{Name: "x", Kind: "gemini", ChatEndpoint: "https://x.example.com/v1/chat/completions"},
			wantErr: true,
		},
		{
			name:    "invalid header",
			in:      models.Provider{Name: "x", ChatEndpoint: "https://x.example.com/v1/chat/completions", Headers: map[string]string{"Bad Header": "v"}},
			wantErr: true,
		},
		{
			name:    "header with separator",
			in:      models.Provider{Name: "x", ChatEndpoint: "https://x.example.com/v1/chat/completions", Headers: map[string]string{"X:Title": "v"}},
			wantErr: true,
		},
		{
			name: "header token characters",
			in: models.Provider{Name: "x", ChatEndpoint: "https://x.example.com/v1/chat/completions", Headers: map[string]string{
				"X-Client-V2":   "2",
				"X_Trace.Id~1!": "abc",
			}},
			check: func(t *testing.T, p models.Provider) {
				assert.Equal(t, "2", p.Headers["X-Client-V2"])
			},
		},
		{
			name:    "fallback model without id",
			in:      models.Provider{Name: "x", ChatEndpoint: "https://x.example.com/v1/chat/completions", FallbackModels: []models.Model{{Name: "nameless"}}},
			wantErr: true,
		},
		{
			name: "fallback models filled",
			in: models.Provider{Name: "Local", ChatEndpoint: "https://x.example.com/v1/chat/completions", FallbackModels: []models.Model{
				{ID: " llama3 ", MaxTokens: 8192},
			}},
			check: func(t *testing.T, p models.Provider) {
				assert.Equal(t, []models.Model{{ID: "llama3", Name: "llama3", ProviderName: "Local", MaxTokens: 8192}}, p.FallbackModels)
			},
		},
		{
			name: "anthropic base url",
			in:   models.Provider{Name: "Claude", Kind: models.KindAnthropic, BaseURL: "https://api.anthropic.com/v1/"},
			check: func(t *testing.T, p models.Provider) {
				assert.Equal(t, "https://api.anthropic.com/v1/messages", p.ChatEndpoint)
				assert.Empty(t, p.ModelsEndpoint)
			},
		},
		{
			name: "explicit fields kept",
			in: models.Provider{
				ID:             "fixed",
				Name:           "Custom",
				ChatEndpoint:   "https://x.example.com/chat",
				ModelsEndpoint: "https://x.example.com/catalog",
				APIKeyRef:      "CUSTOM_KEY",
				ModelNameField: "display_name",
			},
			check: func(t *testing.T, p models.Provider) {
				assert.Equal(t, "fixed", p.ID)
				assert.Equal(t, "https://x.example.com/catalog", p.ModelsEndpoint)
				assert.Equal(t, "CUSTOM_KEY", p.APIKeyRef)
				assert.Equal(t, "display_name", p.ModelNameField)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Prepare(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrBadRequest)
				return
			}
			require.NoError(t, err)
			if tt.check != nil {
				tt.check(t, got)
			}
		})
	}
}
