package openrouter

import (
	"context"
	"net/http"

	"lyricgen/internal/models"
	"lyricgen/internal/provider"
	openaiProvider "lyricgen/internal/provider/openai"
)

const (
	// DefaultReferer identifies the calling application to OpenRouter.
	DefaultReferer = "http://localhost:3000"
	// DefaultTitle is shown in the OpenRouter dashboard.
	DefaultTitle = "Suno AI Lyric Generator v2"
)

// Dialect delegates to the OpenAI wire format and adds OpenRouter's
// attribution headers when the provider does not configure its own.
type Dialect struct {
	openai openaiProvider.Dialect
}

var _ provider.Dialect = Dialect{}

// New returns the OpenRouter dialect.
func New() Dialect {
	return Dialect{openai: openaiProvider.New()}
}

func (Dialect) Kind() models.Kind {
	return models.KindOpenRouter
}

func (d Dialect) ChatRequest(ctx context.Context, p models.Provider, apiKey string, prompt models.ChatPrompt) (*http.Request, error) {
	req, err := d.openai.ChatRequest(ctx, p, apiKey, prompt)
	if err != nil {
		return nil, err
	}
	setAttribution(req)
	return req, nil
}

func (d Dialect) ModelsRequest(ctx context.Context, p models.Provider, apiKey string) (*http.Request, error) {
	req, err := d.openai.ModelsRequest(ctx, p, apiKey)
	if err != nil {
		return nil, err
	}
	setAttribution(req)
	return req, nil
}

func (d Dialect) ExtractCompletion(body []byte) (string, error) {
	return d.openai.ExtractCompletion(body)
}

func setAttribution(req *http.Request) {
	if req.Header.Get("HTTP-Referer") == "" {
		req.Header.Set("HTTP-Referer", DefaultReferer)
	}
	if req.Header.Get("X-Title") == "" {
		req.Header.Set("X-Title", DefaultTitle)
	}
}
