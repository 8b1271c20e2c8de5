package factory

import (
	"fmt"
	"net"
	"net/http"
	"time"

	"lyricgen/internal/models"
	"lyricgen/internal/provider"
	claudeProvider "lyricgen/internal/provider/claude"
	openaiProvider "lyricgen/internal/provider/openai"
	openrouterProvider "lyricgen/internal/provider/openrouter"
)

const (
	defaultDialTimeout     = 10 * time.Second
	defaultKeepAlive       = 30 * time.Second
	defaultIdleConnTimeout = 90 * time.Second
)

// DialectFor returns the wire dialect for kind.
func DialectFor(kind models.Kind) (provider.Dialect, error) {
	switch kind {
	case models.KindOpenAI:
		return openaiProvider.New(), nil
	case models.KindOpenRouter:
		return openrouterProvider.New(), nil
	case models.KindAnthropic:
		return claudeProvider.New(), nil
	default:
		return nil, fmt.Errorf("%w: unsupported provider kind %q", provider.ErrBadRequest, kind)
	}
}

// NewHTTPClient returns a client whose overall request deadline is timeout.
func NewHTTPClient(timeout time.Duration) *http.Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: defaultDialTimeout, KeepAlive: defaultKeepAlive}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          50,
		IdleConnTimeout:       defaultIdleConnTimeout,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}
