package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"lyricgen/internal/logging"
	"lyricgen/internal/models"
	"lyricgen/internal/provider"
)

const (
	defaultPort           = 8080
	defaultTemperature    = 0.85
	defaultMaxTokens      = 4000
	defaultGenTimeout     = 90 * time.Second
	defaultCatalogTimeout = 10 * time.Second
	defaultRetryAttempts  = 1
	defaultRetryBaseDelay = time.Second
)

// Config represents the application configuration parsed from YAML.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Storage    StorageConfig    `yaml:"storage"`
	Generation GenerationConfig `yaml:"generation"`
	Prompt     PromptConfig     `yaml:"prompt"`
	Logging    LoggingConfig    `yaml:"logging"`

	// Providers replaces the built-in provider list when non-empty.
	Providers []models.Provider `yaml:"providers"`
	// APIKeys maps API key references to keys. Environment variables
	// with the same name take precedence.
	APIKeys map[string]string `yaml:"credentials"`
}

// ServerConfig defines listener configuration.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig locates persisted state.
type StorageConfig struct {
	DataDir string `yaml:"data_dir"`
}

// GenerationConfig holds request settings and the retry and length policies.
type GenerationConfig struct {
	Temperature    float64       `yaml:"temperature"`
	MaxTokens      int           `yaml:"max_tokens"`
	Timeout        time.Duration `yaml:"timeout"`
	CatalogTimeout time.Duration `yaml:"catalog_timeout"`
	// MinLyricChars rejects shorter normalized lyrics. Zero disables the check.
	MinLyricChars  int           `yaml:"min_lyric_chars"`
	RetryAttempts  int           `yaml:"retry_attempts"`
	RetryBaseDelay time.Duration `yaml:"retry_base_delay"`
}

// PromptConfig locates the system prompt document.
type PromptConfig struct {
	SystemPromptPath string `yaml:"system_prompt_path"`
}

// LoggingConfig selects the log level and handler.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Server:  ServerConfig{Port: defaultPort},
		Storage: StorageConfig{DataDir: defaultDataDir()},
		Generation: GenerationConfig{
			Temperature:    defaultTemperature,
			MaxTokens:      defaultMaxTokens,
			Timeout:        defaultGenTimeout,
			CatalogTimeout: defaultCatalogTimeout,
			RetryAttempts:  defaultRetryAttempts,
			RetryBaseDelay: defaultRetryBaseDelay,
		},
		Logging:   LoggingConfig{Level: "info", Format: "auto"},
		Providers: DefaultProviders(),
	}
}

// Load reads YAML configuration from disk over the defaults and validates
// the result. An empty path yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) == "" {
		return cfg, cfg.Validate()
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return Config{}, fmt.Errorf("resolve config path: %w", err)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return Config{}, fmt.Errorf("read config file %q: %w", absPath, err)
	}

	cfg.Providers = nil
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config file %q: %w", absPath, err)
	}
	if len(cfg.Providers) == 0 {
		cfg.Providers = DefaultProviders()
	}

	cfg.Storage.DataDir, err = expandPath(cfg.Storage.DataDir)
	if err != nil {
		return Config{}, err
	}
	cfg.Prompt.SystemPromptPath, err = expandPath(cfg.Prompt.SystemPromptPath)
	if err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate performs strict sanity checks on the configuration.
func (c Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be a valid TCP port, got %d", c.Server.Port)
	}
	if strings.TrimSpace(c.Storage.DataDir) == "" {
		return errors.New("storage.data_dir must be provided")
	}

	g := c.Generation
	if g.Temperature < 0 || g.Temperature > 2 {
		return fmt.Errorf("generation.temperature must be between 0 and 2, got %v", g.Temperature)
	}
	if g.MaxTokens <= 0 {
		return fmt.Errorf("generation.max_tokens must be positive, got %d", g.MaxTokens)
	}
	if g.Timeout <= 0 {
		return fmt.Errorf("generation.timeout must be positive, got %s", g.Timeout)
	}
	if g.CatalogTimeout <= 0 {
		return fmt.Errorf("generation.catalog_timeout must be positive, got %s", g.CatalogTimeout)
	}
	if g.MinLyricChars < 0 {
		return fmt.Errorf("generation.min_lyric_chars must not be negative, got %d", g.MinLyricChars)
	}
	if g.RetryAttempts < 1 {
		return fmt.Errorf("generation.retry_attempts must be at least 1, got %d", g.RetryAttempts)
	}
	if g.RetryBaseDelay < 0 {
		return fmt.Errorf("generation.retry_base_delay must not be negative, got %s", g.RetryBaseDelay)
	}

	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(c.Logging.Format)) {
	case "", "auto", "text", "json":
	default:
		return fmt.Errorf("logging.format must be one of auto, text or json, got %q", c.Logging.Format)
	}

	seen := make(map[string]struct{}, len(c.Providers))
	for i, p := range c.Providers {
		prepared, err := provider.Prepare(p)
		if err != nil {
			return fmt.Errorf("providers[%d]: %w", i, err)
		}
		if _, dup := seen[prepared.Name]; dup {
			return fmt.Errorf("providers[%d]: %w: %s", i, provider.ErrDuplicateProviderName, prepared.Name)
		}
		seen[prepared.Name] = struct{}{}
	}
	return nil
}

// DatabasePath is the SQLite file holding persisted state.
func (c Config) DatabasePath() string {
	return filepath.Join(c.Storage.DataDir, "lyricgen.db")
}

// LockPath guards the data directory against concurrent servers.
func (c Config) LockPath() string {
	return filepath.Join(c.Storage.DataDir, "lyricgen.lock")
}

// Credentials returns the API key resolver for this configuration.
func (c Config) Credentials() Credentials {
	static := make(map[string]string, len(c.APIKeys))
	for k, v := range c.APIKeys {
		static[k] = v
	}
	return newCredentials(static, os.LookupEnv)
}

// Credentials resolves API key references against the environment first and
// the configuration file second.
type Credentials struct {
	static    map[string]string
	lookupEnv func(string) (string, bool)
}

var _ provider.Credentials = Credentials{}

// A nil lookupEnv disables environment overrides.
func newCredentials(static map[string]string, lookupEnv func(string) (string, bool)) Credentials {
	return Credentials{static: static, lookupEnv: lookupEnv}
}

func (c Credentials) Lookup(ref string) (string, bool) {
	if c.lookupEnv != nil {
		if v, ok := c.lookupEnv(ref); ok && strings.TrimSpace(v) != "" {
			return v, true
		}
	}
	v, ok := c.static[ref]
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return v, true
}

// DefaultProviders returns the built-in providers.
func DefaultProviders() []models.Provider {
	return []models.Provider{
		{
			ID:                  "openrouter",
			Name:                "OpenRouter",
			Kind:                models.KindOpenRouter,
			APIKeyRef:           "OPENROUTER_API_KEY",
			ChatEndpoint:        "https://openrouter.ai/api/v1/chat/completions",
			ModelsEndpoint:      "https://openrouter.ai/api/v1/models",
			AuthHeaderPrefix:    "Bearer ",
			ResponseModelsPath:  "data",
			ModelIDField:        "id",
			ModelNameField:      "name",
			FilterChatModels:    false,
			NameFromDescription: true,
			Headers: map[string]string{
				"HTTP-Referer": "http://localhost:3000",
				"X-Title":      "Suno AI Lyric Generator v2",
			},
			FallbackModels: []models.Model{
				{ID: "anthropic/claude-v1", Name: "Claude v1", MaxTokens: 4096},
			},
		},
		{
			ID:                 "openai",
			Name:               "OpenAI",
			Kind:               models.KindOpenAI,
			APIKeyRef:          "OPENAI_API_KEY",
			ChatEndpoint:       "https://api.openai.com/v1/chat/completions",
			ModelsEndpoint:     "https://api.openai.com/v1/models",
			AuthHeaderPrefix:   "Bearer ",
			ResponseModelsPath: "data",
			ModelIDField:       "id",
			ModelNameField:     "id",
			FilterChatModels:   true,
			FallbackModels: []models.Model{
				{ID: "gpt-3.5-turbo", Name: "GPT-3.5 Turbo", MaxTokens: 4096},
				{ID: "gpt-4", Name: "GPT-4", MaxTokens: 8192},
			},
		},
		{
			ID:                 "anthropic",
			Name:               "Anthropic",
			Kind:               models.KindAnthropic,
			APIKeyRef:          "ANTHROPIC_API_KEY",
			ChatEndpoint:       "https://api.anthropic.com/v1/messages",
			ModelsEndpoint:     "https://api.anthropic.com/v1/models",
			ResponseModelsPath: "data",
			ModelIDField:       "id",
			ModelNameField:     "display_name",
			FilterChatModels:   true,
			FallbackModels: []models.Model{
				{ID: "claude-2.1", Name: "Claude 2.1", MaxTokens: 100000},
				{ID: "claude-instant-1.2", Name: "Claude Instant 1.2", MaxTokens: 100000},
			},
		},
	}
}

func defaultDataDir() string {
	if base, ok := os.LookupEnv("XDG_DATA_HOME"); ok && strings.TrimSpace(base) != "" {
		return filepath.Join(base, "lyricgen")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".lyricgen"
	}
	return filepath.Join(home, ".local", "share", "lyricgen")
}

func expandPath(pathValue string) (string, error) {
	pathValue = strings.TrimSpace(pathValue)
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	absolute, err := filepath.Abs(filepath.Clean(pathValue))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", pathValue, err)
	}
	return absolute, nil
}
