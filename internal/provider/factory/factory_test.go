package factory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lyricgen/internal/models"
	"lyricgen/internal/provider"
)

func TestDialectFor(t *testing.T) {
	for _, kind := range []models.Kind{models.KindOpenAI, models.KindOpenRouter, models.KindAnthropic} {
		d, err := DialectFor(kind)
		require.NoError(t, err)
		assert.Equal(t, kind, d.Kind())
	}

	_, err := DialectFor("gemini")
	assert.ErrorIs(t, err, provider.ErrBadRequest)
}

func TestNewHTTPClient(t *testing.T) {
	client := NewHTTPClient(10 * time.Second)
	assert.Equal(t, 10*time.Second, client.Timeout)
	assert.NotNil(t, client.Transport)
}
