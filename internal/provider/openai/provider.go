package openai

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

// Dialect speaks the OpenAI chat/completions wire format.
type Dialect struct{}

var _ provider.Dialect = Dialect{}

// New returns the OpenAI dialect.
func New() Dialect {
	return Dialect{}
}

func (Dialect) Kind() models.Kind {
	return models.KindOpenAI
}

func (Dialect) ChatRequest(ctx context.Context, p models.Provider, apiKey string, prompt models.ChatPrompt) (*http.Request, error) {
	payload, err := buildChatPayload(prompt)
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

func (Dialect) ExtractCompletion(body []byte) (string, error) {
	var resp chatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("decode chat response: %v: %w", err, provider.ErrInvalidResponseShape)
	}
	if resp.Error != nil && resp.Error.Message != "" {
		return "", fmt.Errorf("openai error (%s): %s: %w", resp.Error.Type, resp.Error.Message, provider.ErrUnknownProviderError)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("response did not include choices: %w", provider.ErrEmptyCompletion)
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", fmt.Errorf("finish_reason=%q: %w", resp.Choices[0].FinishReason, provider.ErrEmptyCompletion)
	}
	return content, nil
}

// setAuth sets Authorization to the provider's prefix followed by the key,
// then applies the provider's static headers.
func setAuth(req *http.Request, p models.Provider, apiKey string) {
	req.Header.Set("Authorization", p.AuthHeaderPrefix+apiKey)
	provider.ApplyHeaders(req, p)
}

type chatPayload struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	Temperature float64         `json:"temperature"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func buildChatPayload(prompt models.ChatPrompt) (chatPayload, error) {
	if strings.TrimSpace(prompt.Model) == "" {
		return chatPayload{}, fmt.Errorf("model must not be empty: %w", provider.ErrBadRequest)
	}
	if strings.TrimSpace(prompt.User) == "" {
		return chatPayload{}, fmt.Errorf("user message must not be empty: %w", provider.ErrBadRequest)
	}

	messages := make([]openAIMessage, 0, 2)
	if strings.TrimSpace(prompt.System) != "" {
		messages = append(messages, openAIMessage{Role: "system", Content: prompt.System})
	}
	messages = append(messages, openAIMessage{Role: "user", Content: prompt.User})

	return chatPayload{
		Model:       prompt.Model,
		Messages:    messages,
		Temperature: prompt.Temperature,
		MaxTokens:   prompt.MaxTokens,
	}, nil
}

type chatResponse struct {
	ID      string          `json:"id"`
	Choices []chatChoice    `json:"choices"`
	Error   *apiErrorObject `json:"error,omitempty"`
}

type chatChoice struct {
	Index        int           `json:"index"`
	Message      openAIMessage `json:"message"`
	FinishReason string        `json:"finish_reason"`
}

type apiErrorObject struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}
