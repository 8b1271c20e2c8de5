package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal counts HTTP requests by method, route, and status code.
	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lyricgen_requests_total",
		Help: "Total HTTP requests processed.",
	}, []string{"method", "path", "status"})

	// GenerationsTotal counts generation attempts by provider and outcome.
	GenerationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lyricgen_generations_total",
		Help: "Lyric generations by provider and outcome.",
	}, []string{"provider", "outcome"})

	// GenerationDuration tracks end-to-end generation latency per provider.
	GenerationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "lyricgen_generation_duration_seconds",
		Help:    "Time spent waiting for a completion.",
		Buckets: []float64{1, 2, 5, 10, 20, 30, 60, 90, 120},
	}, []string{"provider"})

	// LyricChars tracks the length of normalized lyrics.
	LyricChars = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "lyricgen_lyric_chars",
		Help:    "Number of characters in normalized lyrics.",
		Buckets: []float64{100, 250, 500, 1000, 2000, 4000, 8000},
	})

	// CatalogFetchesTotal counts model catalog fetches by provider and outcome.
	CatalogFetchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lyricgen_catalog_fetches_total",
		Help: "Model catalog fetches by provider and outcome.",
	}, []string{"provider", "outcome"})

	// RetriesTotal counts generation retries by provider.
	RetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lyricgen_generation_retries_total",
		Help: "Generation attempts retried after a transient failure.",
	}, []string{"provider"})
)
