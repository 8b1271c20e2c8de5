package generator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"lyricgen/internal/lyrics"
	"lyricgen/internal/metrics"
	"lyricgen/internal/models"
	"lyricgen/internal/prompt"
	"lyricgen/internal/provider"
	"lyricgen/internal/provider/factory"
)

const maxRetryDelay = 10 * time.Second

// ErrCompletionTooShort indicates normalized lyrics below the configured minimum length.
var ErrCompletionTooShort = errors.New("completion too short")

// Settings are the request parameters and the retry and length policies.
type Settings struct {
	Temperature float64
	MaxTokens   int
	// MinLyricChars rejects shorter normalized lyrics. Zero disables the check.
	MinLyricChars  int
	RetryAttempts  int
	RetryBaseDelay time.Duration
}

// PromptSource supplies the current system prompt.
type PromptSource interface {
	Load() (string, error)
}

// SessionRecorder remembers the last provider and model used.
type SessionRecorder interface {
	Save(ctx context.Context, last models.LastUsed) error
}

// Result is a successful generation.
type Result struct {
	Lyrics   string
	Provider string
	Model    string
	Attempts int
	Duration time.Duration
}

// Generator turns a GenerationRequest into normalized lyrics.
type Generator struct {
	registry *provider.Registry
	creds    provider.Credentials
	client   provider.HTTPClient
	prompts  PromptSource
	session  SessionRecorder
	settings Settings
	logger   *slog.Logger
	sleeper  func(context.Context, time.Duration) error
}

// Option customizes a Generator.
type Option func(*Generator)

// WithSession records the provider and model after each successful generation.
func WithSession(s SessionRecorder) Option {
	return func(g *Generator) {
		g.session = s
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Generator) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithSleeper overrides how retry delays are waited out.
func WithSleeper(sleeper func(context.Context, time.Duration) error) Option {
	return func(g *Generator) {
		if sleeper != nil {
			g.sleeper = sleeper
		}
	}
}

// New constructs a generator. The client's timeout bounds each attempt.
func New(registry *provider.Registry, creds provider.Credentials, client provider.HTTPClient, prompts PromptSource, settings Settings, opts ...Option) *Generator {
	if settings.RetryAttempts < 1 {
		settings.RetryAttempts = 1
	}
	g := &Generator{
		registry: registry,
		creds:    creds,
		client:   client,
		prompts:  prompts,
		settings: settings,
		logger:   slog.Default(),
		sleeper:  sleepContext,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate requests lyrics from the selected provider and returns them normalized.
func (g *Generator) Generate(ctx context.Context, req models.GenerationRequest) (Result, error) {
	start := time.Now()

	if err := req.Validate(); err != nil {
		return Result{}, fmt.Errorf("%w: %v", provider.ErrBadRequest, err)
	}

	p, err := g.registry.Lookup(req.ProviderName)
	if err != nil {
		return Result{}, err
	}
	apiKey, err := provider.ResolveKey(g.creds, p)
	if err != nil {
		return Result{}, err
	}
	dialect, err := factory.DialectFor(p.Kind)
	if err != nil {
		return Result{}, err
	}

	chat, err := g.buildPrompt(req)
	if err != nil {
		return Result{}, err
	}

	text, attempts, err := g.generateWithRetry(ctx, p, dialect, apiKey, chat)
	elapsed := time.Since(start)

	metrics.GenerationsTotal.WithLabelValues(p.Name, outcome(err)).Inc()
	metrics.GenerationDuration.WithLabelValues(p.Name).Observe(elapsed.Seconds())
	if err != nil {
		g.logger.Warn("generation failed",
			"provider", p.Name,
			"model", req.ModelID,
			"attempts", attempts,
			"error", err,
		)
		return Result{}, err
	}
	metrics.LyricChars.Observe(float64(utf8.RuneCountInString(text)))

	g.logger.Info("generation complete",
		"provider", p.Name,
		"model", req.ModelID,
		"attempts", attempts,
		"chars", len(text),
		"duration_ms", elapsed.Milliseconds(),
	)

	if g.session != nil {
		if err := g.session.Save(ctx, models.LastUsed{Provider: p.Name, Model: req.ModelID}); err != nil {
			g.logger.Warn("save last used selection", "error", err)
		}
	}

	return Result{
		Lyrics:   text,
		Provider: p.Name,
		Model:    req.ModelID,
		Attempts: attempts,
		Duration: elapsed,
	}, nil
}

func (g *Generator) buildPrompt(req models.GenerationRequest) (models.ChatPrompt, error) {
	base := req.SystemPrompt
	if base == "" {
		loaded, err := g.prompts.Load()
		if err != nil {
			return models.ChatPrompt{}, err
		}
		base = loaded
	}
	system, err := prompt.SystemMessage(base, req.Persona)
	if err != nil {
		return models.ChatPrompt{}, err
	}
	return models.ChatPrompt{
		Model:       req.ModelID,
		System:      system,
		User:        prompt.UserMessage(req),
		Temperature: g.settings.Temperature,
		MaxTokens:   g.settings.MaxTokens,
	}, nil
}

func (g *Generator) generateWithRetry(ctx context.Context, p models.Provider, dialect provider.Dialect, apiKey string, chat models.ChatPrompt) (string, int, error) {
	attempts := g.settings.RetryAttempts
	for attempt := 1; ; attempt++ {
		text, err := g.attempt(ctx, p, dialect, apiKey, chat)
		if err == nil {
			return text, attempt, nil
		}

		delay, retry := g.retryDelay(ctx, err, attempt, attempts)
		if !retry {
			if attempt > 1 {
				err = fmt.Errorf("failed after %d attempts: %w", attempt, err)
			}
			return "", attempt, err
		}

		metrics.RetriesTotal.WithLabelValues(p.Name).Inc()
		g.logger.Info("retrying generation",
			"provider", p.Name,
			"attempt", attempt,
			"delay", delay,
			"error", err,
		)
		if err := g.sleeper(ctx, delay); err != nil {
			return "", attempt, err
		}
	}
}

func (g *Generator) attempt(ctx context.Context, p models.Provider, dialect provider.Dialect, apiKey string, chat models.ChatPrompt) (string, error) {
	req, err := dialect.ChatRequest(ctx, p, apiKey, chat)
	if err != nil {
		return "", fmt.Errorf("%s: build chat request: %w", p.Name, err)
	}
	body, err := provider.Send(g.client, p.Name, req)
	if err != nil {
		return "", err
	}
	raw, err := dialect.ExtractCompletion(body)
	if err != nil {
		return "", fmt.Errorf("%s: %w", p.Name, err)
	}

	text := lyrics.CleanupFormat(raw)
	if text == "" {
		return "", fmt.Errorf("%s: normalized lyrics are empty: %w", p.Name, provider.ErrEmptyCompletion)
	}
	if minChars := g.settings.MinLyricChars; minChars > 0 {
		if n := utf8.RuneCountInString(text); n < minChars {
			return "", fmt.Errorf("%s: got %d characters, need at least %d: %w", p.Name, n, minChars, ErrCompletionTooShort)
		}
	}
	return text, nil
}

func (g *Generator) retryDelay(ctx context.Context, err error, attempt, attempts int) (time.Duration, bool) {
	if attempt >= attempts || ctx.Err() != nil {
		return 0, false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return 0, false
	}

	switch {
	case errors.Is(err, provider.ErrRateLimited),
		errors.Is(err, provider.ErrServiceUnavailable),
		errors.Is(err, provider.ErrNetworkUnreachable),
		errors.Is(err, provider.ErrEmptyCompletion):
	default:
		return 0, false
	}

	var apiErr *provider.APIError
	if errors.As(err, &apiErr) && apiErr.RetryAfter > 0 {
		return capDelay(apiErr.RetryAfter), true
	}
	return g.backoffDelay(attempt), true
}

// backoffDelay doubles the base delay per attempt: base, base*2, base*4, ...
func (g *Generator) backoffDelay(attempt int) time.Duration {
	base := g.settings.RetryBaseDelay
	if base <= 0 {
		return 0
	}
	delay := base
	for i := 1; i < attempt; i++ {
		if delay > maxRetryDelay/2 {
			return maxRetryDelay
		}
		delay *= 2
	}
	return capDelay(delay)
}

func capDelay(delay time.Duration) time.Duration {
	if delay < 0 {
		return 0
	}
	if delay > maxRetryDelay {
		return maxRetryDelay
	}
	return delay
}

func sleepContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrCompletionTooShort):
		return "completion_too_short"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return provider.ErrorType(err)
	}
}
