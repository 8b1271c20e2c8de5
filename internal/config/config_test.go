package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lyricgen/internal/models"
	"lyricgen/internal/provider"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 0.85, cfg.Generation.Temperature)
	assert.Equal(t, 4000, cfg.Generation.MaxTokens)
	assert.Equal(t, 90*time.Second, cfg.Generation.Timeout)
	assert.Equal(t, 10*time.Second, cfg.Generation.CatalogTimeout)
	assert.Equal(t, 0, cfg.Generation.MinLyricChars)
	assert.Equal(t, 1, cfg.Generation.RetryAttempts)
	require.Len(t, cfg.Providers, 3)
	assert.Equal(t, []string{"OpenRouter", "OpenAI", "Anthropic"}, []string{cfg.Providers[0].Name, cfg.Providers[1].Name, cfg.Providers[2].Name})
}

func TestLoadOverridesDefaults(t *testing.T) {
	dataDir := t.TempDir()
	path := writeConfig(t, `
server:
  port: 9090
storage:
  data_dir: `+dataDir+`
generation:
  timeout: 30s
  min_lyric_chars: 50
  retry_attempts: 3
logging:
  level: debug
  format: json
credentials:
  OPENAI_API_KEY: sk-from-file
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, dataDir, cfg.Storage.DataDir)
	assert.Equal(t, filepath.Join(dataDir, "lyricgen.db"), cfg.DatabasePath())
	assert.Equal(t, filepath.Join(dataDir, "lyricgen.lock"), cfg.LockPath())
	assert.Equal(t, 30*time.Second, cfg.Generation.Timeout)
	assert.Equal(t, 4000, cfg.Generation.MaxTokens)
	assert.Equal(t, 50, cfg.Generation.MinLyricChars)
	assert.Equal(t, 3, cfg.Generation.RetryAttempts)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Len(t, cfg.Providers, 3)
	assert.Equal(t, "sk-from-file", cfg.APIKeys["OPENAI_API_KEY"])
}

func TestLoadReplacesProviders(t *testing.T) {
	path := writeConfig(t, `
providers:
  - name: Local
    kind: openai
    base_url: http://localhost:11434/v1
    filter_chat_models: false
  - name: Claude
    kind: anthropic
    chat_endpoint: https://api.anthropic.com/v1/messages
    models_endpoint: https://api.anthropic.com/v1/models
    model_name_field: display_name
    headers:
      X-Team: lyrics
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Len(t, cfg.Providers, 2)
	assert.Equal(t, "Local", cfg.Providers[0].Name)
	assert.Equal(t, "http://localhost:11434/v1", cfg.Providers[0].BaseURL)
	assert.Equal(t, models.KindAnthropic, cfg.Providers[1].Kind)
	assert.Equal(t, "lyrics", cfg.Providers[1].Headers["X-Team"])
}

func TestLoadErrors(t *testing.T) {
	tests := map[string]string{
		"bad yaml":           "server: [",
		"bad port":           "server:\n  port: 70000",
		"bad temperature":    "generation:\n  temperature: 3",
		"bad retry attempts": "generation:\n  retry_attempts: 0",
		"negative min chars": "generation:\n  min_lyric_chars: -1",
		"bad log level":      "logging:\n  level: loud",
		"bad log format":     "logging:\n  format: xml",
		"duplicate provider": "providers:\n  - name: A\n    base_url: https://a.example.com/v1\n  - name: A\n    base_url: https://b.example.com/v1",
		"invalid provider":   "providers:\n  - name: A",
	}

	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadDuplicateProviderError(t *testing.T) {
	_, err := Load(writeConfig(t, "providers:\n  - name: A\n    base_url: https://a.example.com/v1\n  - name: A\n    base_url: https://b.example.com/v1"))
	assert.ErrorIs(t, err, provider.ErrDuplicateProviderName)
}

func TestCredentialsPrecedence(t *testing.T) {
	env := map[string]string{"OPENAI_API_KEY": "sk-env", "EMPTY_KEY": ""}
	creds := newCredentials(
		map[string]string{"OPENAI_API_KEY": "sk-file", "ANTHROPIC_API_KEY": "sk-ant", "EMPTY_KEY": "sk-file-empty"},
		func(k string) (string, bool) {
			v, ok := env[k]
			return v, ok
		},
	)

	v, ok := creds.Lookup("OPENAI_API_KEY")
	assert.True(t, ok)
	assert.Equal(t, "sk-env", v)

	v, ok = creds.Lookup("ANTHROPIC_API_KEY")
	assert.True(t, ok)
	assert.Equal(t, "sk-ant", v)

	v, ok = creds.Lookup("EMPTY_KEY")
	assert.True(t, ok)
	assert.Equal(t, "sk-file-empty", v)

	_, ok = creds.Lookup("MISSING")
	assert.False(t, ok)
}

func TestConfigCredentialsReadsEnvironment(t *testing.T) {
	t.Setenv("LYRICGEN_TEST_KEY", "from-env")

	cfg := Default()
	cfg.APIKeys = map[string]string{"LYRICGEN_TEST_KEY": "from-file"}

	v, ok := cfg.Credentials().Lookup("LYRICGEN_TEST_KEY")
	assert.True(t, ok)
	assert.Equal(t, "from-env", v)
}

func TestDefaultProvidersAreValid(t *testing.T) {
	for _, p := range DefaultProviders() {
		_, err := provider.Prepare(p)
		assert.NoError(t, err, p.Name)
	}
}
