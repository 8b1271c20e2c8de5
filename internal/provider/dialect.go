package provider

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"lyricgen/internal/models"
)

// Dialect maps provider-neutral prompts onto one API family's wire format.
type Dialect interface {
	Kind() models.Kind
	ChatRequest(ctx context.Context, p models.Provider, apiKey string, prompt models.ChatPrompt) (*http.Request, error)
	ExtractCompletion(body []byte) (string, error)
	ModelsRequest(ctx context.Context, p models.Provider, apiKey string) (*http.Request, error)
}

// Credentials resolves an API key reference to the key itself.
type Credentials interface {
	Lookup(ref string) (string, bool)
}

// ResolveKey returns the API key for p or ErrMissingCredential.
func ResolveKey(creds Credentials, p models.Provider) (string, error) {
	if creds == nil || strings.TrimSpace(p.APIKeyRef) == "" {
		return "", fmt.Errorf("no API key found for %s: %w", p.Name, ErrMissingCredential)
	}
	key, ok := creds.Lookup(p.APIKeyRef)
	if !ok || strings.TrimSpace(key) == "" {
		return "", fmt.Errorf("no API key found for %s (%s): %w", p.Name, p.APIKeyRef, ErrMissingCredential)
	}
	return strings.TrimSpace(key), nil
}

// ApplyHeaders copies the provider's static headers onto req.
func ApplyHeaders(req *http.Request, p models.Provider) {
	for k, v := range p.Headers {
		req.Header.Set(k, v)
	}
}
