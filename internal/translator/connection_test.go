package translator

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lyricgen/internal/catalog"
	"lyricgen/internal/models"
	"lyricgen/internal/provider"
)

func TestFromModelsFlagsFallback(t *testing.T) {
	live := FromModels("OpenAI", []models.Model{{ID: "gpt-4o"}})
	assert.False(t, live.Fallback)

	fallback := FromModels("OpenAI", []models.Model{{ID: "gpt-4", Fallback: true}})
	assert.True(t, fallback.Fallback)

	empty := FromModels("OpenAI", []models.Model{})
	assert.False(t, empty.Fallback)
	assert.NotNil(t, empty.Models)
}

func TestFromConnectionReport(t *testing.T) {
	ok := FromConnectionReport(catalog.ConnectionReport{
		Provider: "OpenAI",
		OK:       true,
		Models:   12,
		Duration: 1500 * time.Millisecond,
	})
	assert.Equal(t, ConnectionTestResponse{Provider: "OpenAI", OK: true, Models: 12, DurationMs: 1500}, ok)

	upstream := provider.ClassifyStatus("OpenAI", http.StatusUnauthorized, []byte(`{"error":{"message":"bad key"}}`))
	failed := FromConnectionReport(catalog.ConnectionReport{Provider: "OpenAI", Err: upstream})
	require.NotNil(t, failed.Error)
	assert.False(t, failed.OK)
	assert.Equal(t, "auth_failed", failed.Error.Type)
	assert.Equal(t, upstream.Message, failed.Error.Message)

	missing := FromConnectionReport(catalog.ConnectionReport{
		Provider: "Local",
		Err:      fmt.Errorf("Local: %w", catalog.ErrNoModelsEndpoint),
	})
	require.NotNil(t, missing.Error)
	assert.Equal(t, "no_models_endpoint", missing.Error.Type)
	assert.Contains(t, missing.Error.Message, "Local")
}
