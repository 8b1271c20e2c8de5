package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const maxResponseBytes = 8 << 20

// HTTPClient is the subset of *http.Client used to talk to providers.
type HTTPClient interface {
	Do(*http.Request) (*http.Response, error)
}

var _ HTTPClient = (*http.Client)(nil)

// Send performs req and returns the body of a 2xx response. Transport failures
// wrap ErrNetworkUnreachable; HTTP failures are returned as *APIError.
func Send(client HTTPClient, providerName string, req *http.Request) ([]byte, error) {
	resp, err := client.Do(req)
	if err != nil {
		if ctxErr := req.Context().Err(); errors.Is(ctxErr, context.Canceled) {
			return nil, ctxErr
		}
		return nil, &APIError{
			Provider: providerName,
			Message:  "network error, please check your internet connection and try again: " + err.Error(),
			Err:      ErrNetworkUnreachable,
		}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &APIError{
			Provider: providerName,
			Status:   resp.StatusCode,
			Message:  "read response body: " + err.Error(),
			Err:      ErrNetworkUnreachable,
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := ClassifyStatus(providerName, resp.StatusCode, body)
		if after, ok := parseRetryAfter(resp.Header.Get("Retry-After")); ok {
			apiErr.RetryAfter = after
		}
		return nil, apiErr
	}
	return body, nil
}

// NewJSONRequest builds a request carrying body as application/json.
func NewJSONRequest(ctx context.Context, method, url string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("construct request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	return req, nil
}

const userAgent = "lyricgen/0.1"

func parseRetryAfter(value string) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return 0, false
		}
		return time.Duration(seconds) * time.Second, true
	}
	if when, err := http.ParseTime(value); err == nil {
		delay := time.Until(when)
		if delay < 0 {
			return 0, false
		}
		return delay, true
	}
	return 0, false
}
