package provider

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lyricgen/internal/models"
)

func TestSendSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, userAgent, r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	req, err := NewJSONRequest(context.Background(), http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	body, err := Send(srv.Client(), "Acme", req)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(body))
}

func TestSendClassifiesStatusAndRetryAfter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	req, err := NewJSONRequest(context.Background(), http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	_, err = Send(srv.Client(), "Acme", req)
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusTooManyRequests, apiErr.Status)
	assert.Equal(t, 7*time.Second, apiErr.RetryAfter)
	assert.ErrorIs(t, err, ErrRateLimited)
}

func TestSendNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	req, err := NewJSONRequest(context.Background(), http.MethodGet, url, nil)
	require.NoError(t, err)

	_, err = Send(http.DefaultClient, "Acme", req)
	assert.ErrorIs(t, err, ErrNetworkUnreachable)
}

func TestSendCanceledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	req, err := NewJSONRequest(ctx, http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	_, err = Send(srv.Client(), "Acme", req)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrNetworkUnreachable)
}

func TestParseRetryAfter(t *testing.T) {
	d, ok := parseRetryAfter("3")
	assert.True(t, ok)
	assert.Equal(t, 3*time.Second, d)

	_, ok = parseRetryAfter("")
	assert.False(t, ok)
	_, ok = parseRetryAfter("-1")
	assert.False(t, ok)
	_, ok = parseRetryAfter("soon")
	assert.False(t, ok)

	d, ok = parseRetryAfter(time.Now().Add(time.Hour).UTC().Format(http.TimeFormat))
	assert.True(t, ok)
	assert.Greater(t, d, 50*time.Minute)
}

type mapCreds map[string]string

func (m mapCreds) Lookup(ref string) (string, bool) {
	v, ok := m[ref]
	return v, ok
}

func TestResolveKey(t *testing.T) {
	p := models.Provider{Name: "OpenAI", APIKeyRef: "OPENAI_API_KEY"}

	key, err := ResolveKey(mapCreds{"OPENAI_API_KEY": " sk-test \n"}, p)
	require.NoError(t, err)
	assert.Equal(t, "sk-test", key)

	_, err = ResolveKey(mapCreds{}, p)
	assert.ErrorIs(t, err, ErrMissingCredential)

	_, err = ResolveKey(mapCreds{"OPENAI_API_KEY": "  "}, p)
	assert.ErrorIs(t, err, ErrMissingCredential)

	_, err = ResolveKey(nil, p)
	assert.ErrorIs(t, err, ErrMissingCredential)
}
