package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"lyricgen/internal/metrics"
	"lyricgen/internal/models"
	"lyricgen/internal/provider"
	"lyricgen/internal/provider/factory"
)

// Fetcher retrieves and normalizes a provider's model catalog.
type Fetcher struct {
	client provider.HTTPClient
	creds  provider.Credentials
	logger *slog.Logger
}

// NewFetcher constructs a Fetcher. The client's timeout bounds each fetch.
func NewFetcher(client provider.HTTPClient, creds provider.Credentials, logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{client: client, creds: creds, logger: logger}
}

// Fetch lists the models p currently offers. When discovery fails for a
// reason other than a missing credential and p has fallback models, those
// are returned instead, each marked Fallback.
func (f *Fetcher) Fetch(ctx context.Context, p models.Provider) (list []models.Model, err error) {
	var usedFallback bool
	defer func() {
		result := outcome(err)
		if usedFallback {
			result = "fallback"
		}
		metrics.CatalogFetchesTotal.WithLabelValues(p.Name, result).Inc()
	}()

	list, err = f.discover(ctx, p)
	if err == nil || len(p.FallbackModels) == 0 || errors.Is(err, provider.ErrMissingCredential) {
		return list, err
	}

	f.logger.Warn("model discovery failed, serving fallback list",
		"provider", p.Name,
		"error", err,
		"fallback_count", len(p.FallbackModels),
	)
	usedFallback = true
	return fallbackModels(p), nil
}

// ConnectionReport is the outcome of a catalog connection check.
type ConnectionReport struct {
	Provider string
	OK       bool
	Models   int
	Duration time.Duration
	Err      error
}

// Test checks that p's models endpoint answers with a usable catalog using
// the configured credential. Fallback lists are never consulted.
func (f *Fetcher) Test(ctx context.Context, p models.Provider) ConnectionReport {
	start := time.Now()
	list, err := f.discover(ctx, p)
	report := ConnectionReport{
		Provider: p.Name,
		OK:       err == nil,
		Models:   len(list),
		Duration: time.Since(start),
		Err:      err,
	}
	metrics.CatalogFetchesTotal.WithLabelValues(p.Name, "test_"+outcome(err)).Inc()
	if err != nil {
		f.logger.Warn("provider connection test failed", "provider", p.Name, "error", err)
	} else {
		f.logger.Info("provider connection test passed", "provider", p.Name, "models", len(list))
	}
	return report
}

func (f *Fetcher) discover(ctx context.Context, p models.Provider) ([]models.Model, error) {
	start := time.Now()

	if p.ModelsEndpoint == "" {
		return nil, fmt.Errorf("%s: %w", p.Name, ErrNoModelsEndpoint)
	}

	apiKey, err := provider.ResolveKey(f.creds, p)
	if err != nil {
		return nil, err
	}

	dialect, err := factory.DialectFor(p.Kind)
	if err != nil {
		return nil, err
	}
	req, err := dialect.ModelsRequest(ctx, p, apiKey)
	if err != nil {
		return nil, fmt.Errorf("%s: build models request: %w", p.Name, err)
	}

	body, err := provider.Send(f.client, p.Name, req)
	if err != nil {
		f.logger.Warn("fetch models failed", "provider", p.Name, "error", err)
		return nil, err
	}

	list, err := ListModels(p, body)
	if err != nil {
		return nil, err
	}

	f.logger.Debug("fetched models",
		"provider", p.Name,
		"count", len(list),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return list, nil
}

func fallbackModels(p models.Provider) []models.Model {
	out := make([]models.Model, len(p.FallbackModels))
	for i, m := range p.FallbackModels {
		m.ProviderName = p.Name
		if m.Name == "" {
			m.Name = m.ID
		}
		m.Fallback = true
		out[i] = m
	}
	return out
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	if errors.Is(err, ErrNoModelsEndpoint) {
		return "no_models_endpoint"
	}
	return provider.ErrorType(err)
}
