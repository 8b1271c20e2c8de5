package models

import (
	"fmt"
	"strings"
	"time"
)

// Kind selects the request/response dialect spoken by a provider.
type Kind string

const (
	KindOpenAI     Kind = "openai"
	KindOpenRouter Kind = "openrouter"
	KindAnthropic  Kind = "anthropic"
)

// Valid reports whether k is one of the supported dialects.
func (k Kind) Valid() bool {
	switch k {
	case KindOpenAI, KindOpenRouter, KindAnthropic:
		return true
	default:
		return false
	}
}

// Provider describes a remote chat-completion API and how to read its model catalog.
type Provider struct {
	ID                  string            `json:"id" yaml:"id"`
	Name                string            `json:"name" yaml:"name"`
	Kind                Kind              `json:"kind" yaml:"kind"`
	APIKeyRef           string            `json:"apiKeyReference" yaml:"api_key_ref"`
	BaseURL             string            `json:"baseURL,omitempty" yaml:"base_url"`
	ChatEndpoint        string            `json:"chatEndpoint" yaml:"chat_endpoint"`
	ModelsEndpoint      string            `json:"modelsEndpoint,omitempty" yaml:"models_endpoint"`
	AuthHeaderPrefix    string            `json:"authHeaderPrefix,omitempty" yaml:"auth_header_prefix"`
	ResponseModelsPath  string            `json:"responseModelsPath,omitempty" yaml:"response_models_path"`
	ModelIDField        string            `json:"modelIdField,omitempty" yaml:"model_id_field"`
	ModelNameField      string            `json:"modelNameField,omitempty" yaml:"model_name_field"`
	FilterChatModels    bool              `json:"filterChatModels" yaml:"filter_chat_models"`
	NameFromDescription bool              `json:"nameFromDescription" yaml:"name_from_description"`
	Headers             map[string]string `json:"headers,omitempty" yaml:"headers"`

	// FallbackModels is served by the catalog when discovery fails.
	FallbackModels []Model `json:"fallbackModels,omitempty" yaml:"fallback_models"`

	// Default marks built-in providers; they are never persisted.
	Default bool `json:"-" yaml:"-"`
}

// Clone returns a deep copy of p.
func (p Provider) Clone() Provider {
	out := p
	if p.Headers != nil {
		out.Headers = make(map[string]string, len(p.Headers))
		for k, v := range p.Headers {
			out.Headers[k] = v
		}
	}
	if p.FallbackModels != nil {
		out.FallbackModels = append([]Model(nil), p.FallbackModels...)
	}
	return out
}

// Model is a selectable completion engine exposed by a provider.
type Model struct {
	ID           string `json:"id" yaml:"id"`
	Name         string `json:"name" yaml:"name"`
	ProviderName string `json:"providerName" yaml:"-"`
	MaxTokens    int    `json:"maxTokens,omitempty" yaml:"max_tokens"`

	// Fallback marks entries taken from the provider's static list.
	Fallback bool `json:"fallback,omitempty" yaml:"-"`
}

// GenerationRequest carries the user's lyric parameters for a single generation.
type GenerationRequest struct {
	ProviderName   string
	ModelID        string
	Theme          string
	Mood           string
	RhymeDensity   int
	ProfanityLevel int
	Persona        string
	// SystemPrompt overrides the loaded system prompt when non-empty.
	SystemPrompt string
}

// Validate checks the request parameters are within their documented ranges.
func (r GenerationRequest) Validate() error {
	if strings.TrimSpace(r.ProviderName) == "" {
		return fmt.Errorf("provider must be selected")
	}
	if strings.TrimSpace(r.ModelID) == "" {
		return fmt.Errorf("model must be selected")
	}
	if strings.TrimSpace(r.Theme) == "" {
		return fmt.Errorf("theme must not be empty")
	}
	if r.RhymeDensity < 1 || r.RhymeDensity > 10 {
		return fmt.Errorf("rhyme density %d must be between 1 and 10", r.RhymeDensity)
	}
	if r.ProfanityLevel < 0 || r.ProfanityLevel > 10 {
		return fmt.Errorf("profanity level %d must be between 0 and 10", r.ProfanityLevel)
	}
	return nil
}

// ChatPrompt is the provider-neutral conversation sent to a dialect.
type ChatPrompt struct {
	Model       string
	System      string
	User        string
	Temperature float64
	MaxTokens   int
}

// Draft is a saved piece of lyric text.
type Draft struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Folder    string    `json:"folder"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
}

// LastUsed records the provider/model pair selected most recently.
type LastUsed struct {
	Provider string `json:"provider"`
	Model    string `json:"model,omitempty"`
}
