package claude

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"lyricgen/internal/models"
	"lyricgen/internal/provider"
)

const apiVersion = "2023-06-01"

// Dialect speaks the Anthropic Messages API.
type Dialect struct{}

var _ provider.Dialect = Dialect{}

// New returns the Anthropic dialect.
func New() Dialect {
	return Dialect{}
}

func (Dialect) Kind() models.Kind {
	return models.KindAnthropic
}

// ChatRequest sends a single user message with the system prompt prepended.
func (Dialect) ChatRequest(ctx context.Context, p models.Provider, apiKey string, prompt models.ChatPrompt) (*http.Request, error) {
	payload, err := buildMessagePayload(prompt)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	req, err := provider.NewJSONRequest(ctx, http.MethodPost, p.ChatEndpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	setAuth(req, p, apiKey)
	return req, nil
}

func (Dialect) ModelsRequest(ctx context.Context, p models.Provider, apiKey string) (*http.Request, error) {
	if p.ModelsEndpoint == "" {
		return nil, errors.New("models endpoint must not be empty")
	}
	req, err := provider.NewJSONRequest(ctx, http.MethodGet, p.ModelsEndpoint, nil)
	if err != nil {
		return nil, err
	}
	setAuth(req, p, apiKey)
	return req, nil
}

// ExtractCompletion reads content[0].text.
func (Dialect) ExtractCompletion(body []byte) (string, error) {
	var resp messageResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("decode message response: %v: %w", err, provider.ErrInvalidResponseShape)
	}
	if resp.Error != nil && resp.Error.Message != "" {
		return "", fmt.Errorf("claude error (%s): %s: %w", resp.Error.Type, resp.Error.Message, provider.ErrUnknownProviderError)
	}
	if len(resp.Content) == 0 {
		return "", fmt.Errorf("response missing content blocks: %w", provider.ErrEmptyCompletion)
	}

	text := strings.TrimSpace(resp.Content[0].Text)
	if text == "" {
		return "", fmt.Errorf("stop_reason=%q: %w", resp.StopReason, provider.ErrEmptyCompletion)
	}
	return text, nil
}

func setAuth(req *http.Request, p models.Provider, apiKey string) {
	req.Header.Set("x-api-key", apiKey)
	req.Header.Set("anthropic-version", apiVersion)
	provider.ApplyHeaders(req, p)
}

type messagePayload struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func buildMessagePayload(prompt models.ChatPrompt) (messagePayload, error) {
	if strings.TrimSpace(prompt.Model) == "" {
		return messagePayload{}, fmt.Errorf("model must not be empty: %w", provider.ErrBadRequest)
	}
	user := strings.TrimSpace(prompt.User)
	if user == "" {
		return messagePayload{}, fmt.Errorf("claude request requires a user message: %w", provider.ErrBadRequest)
	}
	if prompt.MaxTokens <= 0 {
		return messagePayload{}, fmt.Errorf("claude requests require a positive max_tokens value: %w", provider.ErrBadRequest)
	}

	content := prompt.User
	if system := strings.TrimSpace(prompt.System); system != "" {
		content = prompt.System + "\n\n" + prompt.User
	}

	return messagePayload{
		Model: prompt.Model,
		Messages: []message{
			{Role: "user", Content: content},
		},
		MaxTokens:   prompt.MaxTokens,
		Temperature: prompt.Temperature,
	}, nil
}

type messageResponse struct {
	ID         string         `json:"id"`
	Role       string         `json:"role"`
	Content    []contentBlock `json:"content"`
	StopReason string         `json:"stop_reason"`
	Error      *apiError      `json:"error,omitempty"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type apiError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
