package provider

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"
)

var (
	// ErrMissingCredential indicates no API key is configured for the provider.
	ErrMissingCredential = errors.New("missing credential")
	// ErrInvalidResponseShape indicates a catalog or completion payload had an unexpected structure.
	ErrInvalidResponseShape = errors.New("invalid response shape")
	// ErrEmptyCompletion indicates the model returned no usable text.
	ErrEmptyCompletion = errors.New("empty completion")
	// ErrRateLimited maps HTTP 429.
	ErrRateLimited = errors.New("rate limited")
	// ErrAuthFailed maps HTTP 401 and 403.
	ErrAuthFailed = errors.New("authentication failed")
	// ErrModelUnavailable maps HTTP 404.
	ErrModelUnavailable = errors.New("model unavailable")
	// ErrBadRequest maps HTTP 400 and locally rejected requests.
	ErrBadRequest = errors.New("bad request")
	// ErrServiceUnavailable maps HTTP 503.
	ErrServiceUnavailable = errors.New("service unavailable")
	// ErrNetworkUnreachable indicates a transport failure before any HTTP status was received.
	ErrNetworkUnreachable = errors.New("network unreachable")
	// ErrUnknownProviderError is the catch-all for unclassified HTTP failures.
	ErrUnknownProviderError = errors.New("provider api error")
	// ErrDuplicateProviderName indicates a provider with the same name is already registered.
	ErrDuplicateProviderName = errors.New("provider name already registered")
	// ErrUnknownProvider indicates the named provider is not registered.
	ErrUnknownProvider = errors.New("unknown provider")
)

// APIError describes a failed upstream HTTP exchange.
type APIError struct {
	Provider string
	Status   int
	Message  string
	Err      error

	// RetryAfter is the server-suggested delay, when one was sent.
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("%s: %s", e.Provider, e.Message)
	}
	return fmt.Sprintf("%s: http %d: %s", e.Provider, e.Status, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// ClassifyStatus maps a non-2xx upstream response to the error taxonomy.
func ClassifyStatus(providerName string, status int, body []byte) *APIError {
	detail := upstreamMessage(body)
	apiErr := &APIError{Provider: providerName, Status: status}

	switch {
	case status == http.StatusTooManyRequests:
		apiErr.Err = ErrRateLimited
		apiErr.Message = "rate limit exceeded, please wait a moment before trying again"
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		apiErr.Err = ErrAuthFailed
		apiErr.Message = fmt.Sprintf("authentication failed for %s, please check your API key", providerName)
	case status == http.StatusNotFound:
		apiErr.Err = ErrModelUnavailable
		apiErr.Message = "model not found or unavailable"
	case status == http.StatusBadRequest:
		apiErr.Err = ErrBadRequest
		apiErr.Message = "invalid request: " + detail
	case status == http.StatusServiceUnavailable:
		apiErr.Err = ErrServiceUnavailable
		apiErr.Message = fmt.Sprintf("%s service is currently unavailable, please try again later", providerName)
	default:
		apiErr.Err = ErrUnknownProviderError
		apiErr.Message = "api error: " + detail
	}
	return apiErr
}

type upstreamErrorBody struct {
	Error json.RawMessage `json:"error"`
}

// upstreamMessage extracts error.message, a string error, or the raw body.
func upstreamMessage(body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return "no details provided"
	}

	var envelope upstreamErrorBody
	if err := json.Unmarshal(body, &envelope); err == nil && len(envelope.Error) > 0 {
		var obj struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(envelope.Error, &obj); err == nil && obj.Message != "" {
			return obj.Message
		}
		var str string
		if err := json.Unmarshal(envelope.Error, &str); err == nil && str != "" {
			return str
		}
	}

	const limit = 200
	if len(trimmed) <= limit {
		return trimmed
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(trimmed[cut]) {
		cut--
	}
	return trimmed[:cut] + "..."
}

var errorTypes = []struct {
	err  error
	name string
}{
	{ErrMissingCredential, "missing_credential"},
	{ErrInvalidResponseShape, "invalid_response_shape"},
	{ErrEmptyCompletion, "empty_completion"},
	{ErrRateLimited, "rate_limited"},
	{ErrAuthFailed, "auth_failed"},
	{ErrModelUnavailable, "model_unavailable"},
	{ErrBadRequest, "bad_request"},
	{ErrServiceUnavailable, "service_unavailable"},
	{ErrNetworkUnreachable, "network_unreachable"},
	{ErrUnknownProviderError, "provider_error"},
	{ErrDuplicateProviderName, "duplicate_provider"},
	{ErrUnknownProvider, "unknown_provider"},
}

// ErrorType names the taxonomy entry err belongs to. Nil maps to "ok" and
// errors outside the taxonomy to "internal".
func ErrorType(err error) string {
	if err == nil {
		return "ok"
	}
	for _, et := range errorTypes {
		if errors.Is(err, et.err) {
			return et.name
		}
	}
	return "internal"
}
