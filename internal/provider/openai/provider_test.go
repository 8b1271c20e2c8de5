package openai

import (
	"context"
	"encoding/json"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lyricgen/internal/models"
	"lyricgen/internal/provider"
)

var testProvider = models.Provider{
	Name:             "OpenAI",
	Kind:             models.KindOpenAI,
	ChatEndpoint:     "https://api.openai.com/v1/chat/completions",
	ModelsEndpoint:   "https://api.openai.com/v1/models",
	AuthHeaderPrefix: "Bearer ",
	Headers:          map[string]string{"X-Trace": "abc"},
}

func TestChatRequest(t *testing.T) {
	req, err := New().ChatRequest(context.Background(), testProvider, "sk-test", models.ChatPrompt{
		Model:       "gpt-4o",
		System:      "You write lyrics.",
		User:        "Write about rain.",
		Temperature: 0.85,
		MaxTokens:   4000,
	})
	require.NoError(t, err)

	assert.Equal(t, "POST", req.Method)
	assert.Equal(t, testProvider.ChatEndpoint, req.URL.String())
	assert.Equal(t, "Bearer sk-test", req.Header.Get("Authorization"))
	assert.Equal(t, "abc", req.Header.Get("X-Trace"))
	assert.Equal(t, "application/json", req.Header.Get("Content-Type"))

	raw, err := io.ReadAll(req.Body)
	require.NoError(t, err)

	var payload chatPayload
	require.NoError(t, json.Unmarshal(raw, &payload))
	assert.Equal(t, "gpt-4o", payload.Model)
	assert.Equal(t, 0.85, payload.Temperature)
	assert.Equal(t, 4000, payload.MaxTokens)
	require.Len(t, payload.Messages, 2)
	assert.Equal(t, openAIMessage{Role: "system", Content: "You write lyrics."}, payload.Messages[0])
	assert.Equal(t, openAIMessage{Role: "user", Content: "Write about rain."}, payload.Messages[1])
}

func TestChatRequestWithoutSystemOrModel(t *testing.T) {
	req, err := New().ChatRequest(context.Background(), testProvider, "k", models.ChatPrompt{Model: "m", User: "hi"})
	require.NoError(t, err)
	raw, err := io.ReadAll(req.Body)
	require.NoError(t, err)
	var payload chatPayload
	require.NoError(t, json.Unmarshal(raw, &payload))
	assert.Len(t, payload.Messages, 1)

	_, err = New().ChatRequest(context.Background(), testProvider, "k", models.ChatPrompt{User: "hi"})
	assert.ErrorIs(t, err, provider.ErrBadRequest)
}

func TestModelsRequest(t *testing.T) {
	req, err := New().ModelsRequest(context.Background(), testProvider, "sk-test")
	require.NoError(t, err)
	assert.Equal(t, "GET", req.Method)
	assert.Equal(t, testProvider.ModelsEndpoint, req.URL.String())
	assert.Equal(t, "Bearer sk-test", req.Header.Get("Authorization"))

	noModels := testProvider
	noModels.ModelsEndpoint = ""
	_, err = New().ModelsRequest(context.Background(), noModels, "sk-test")
	assert.Error(t, err)
}

func TestExtractCompletion(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    string
		wantErr error
	}{
		{"content", `{"choices":[{"message":{"role":"assistant","content":"  [Verse]\nline  "}}]}`, "[Verse]\nline", nil},
		{"not json", `<html>`, "", provider.ErrInvalidResponseShape},
		{"no choices", `{"choices":[]}`, "", provider.ErrEmptyCompletion},
		{"blank content", `{"choices":[{"message":{"content":"   "},"finish_reason":"length"}]}`, "", provider.ErrEmptyCompletion},
		{"error object", `{"error":{"message":"overloaded","type":"server_error"}}`, "", provider.ErrUnknownProviderError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := New().ExtractCompletion([]byte(tt.body))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
