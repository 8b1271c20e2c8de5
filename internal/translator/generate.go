package translator

import (
	"encoding/json"
	"errors"
	"strings"

	"lyricgen/internal/generator"
	"lyricgen/internal/lyrics"
	"lyricgen/internal/models"
)

const (
	defaultRhymeDensity   = 5
	defaultProfanityLevel = 5
)

var (
	errEmptyProvider = errors.New("provider must be provided")
	errEmptyModel    = errors.New("model must be provided")
	errEmptyTheme    = errors.New("theme must be provided")
)

// GenerateRequest is the POST /api/generate payload.
type GenerateRequest struct {
	Provider       string
	Model          string
	Theme          string
	Mood           string
	RhymeDensity   int
	ProfanityLevel int
	Persona        string
	SystemPrompt   string
	SaveDraft      bool
	DraftTitle     string
	DraftFolder    string
}

// UnmarshalJSON applies the form defaults and enforces required fields.
func (r *GenerateRequest) UnmarshalJSON(data []byte) error {
	type alias struct {
		Provider       string `json:"provider"`
		Model          string `json:"model"`
		Theme          string `json:"theme"`
		Mood           string `json:"mood"`
		RhymeDensity   *int   `json:"rhymeDensity"`
		ProfanityLevel *int   `json:"profanityLevel"`
		Persona        string `json:"persona"`
		SystemPrompt   string `json:"systemPrompt"`
		SaveDraft      bool   `json:"saveDraft"`
		DraftTitle     string `json:"draftTitle"`
		DraftFolder    string `json:"draftFolder"`
	}

	var payload alias
	if err := json.Unmarshal(data, &payload); err != nil {
		return err
	}

	provider := strings.TrimSpace(payload.Provider)
	if provider == "" {
		return errEmptyProvider
	}
	model := strings.TrimSpace(payload.Model)
	if model == "" {
		return errEmptyModel
	}
	theme := strings.TrimSpace(payload.Theme)
	if theme == "" {
		return errEmptyTheme
	}

	*r = GenerateRequest{
		Provider:       provider,
		Model:          model,
		Theme:          theme,
		Mood:           strings.TrimSpace(payload.Mood),
		RhymeDensity:   intOr(payload.RhymeDensity, defaultRhymeDensity),
		ProfanityLevel: intOr(payload.ProfanityLevel, defaultProfanityLevel),
		Persona:        strings.TrimSpace(payload.Persona),
		SystemPrompt:   payload.SystemPrompt,
		SaveDraft:      payload.SaveDraft,
		DraftTitle:     payload.DraftTitle,
		DraftFolder:    payload.DraftFolder,
	}
	return nil
}

// ToDomain converts the payload into a generation request.
func (r GenerateRequest) ToDomain() models.GenerationRequest {
	return models.GenerationRequest{
		ProviderName:   r.Provider,
		ModelID:        r.Model,
		Theme:          r.Theme,
		Mood:           r.Mood,
		RhymeDensity:   r.RhymeDensity,
		ProfanityLevel: r.ProfanityLevel,
		Persona:        r.Persona,
		SystemPrompt:   r.SystemPrompt,
	}
}

// GenerateResponse is returned by POST /api/generate.
type GenerateResponse struct {
	Lyrics     string        `json:"lyrics"`
	Provider   string        `json:"provider"`
	Model      string        `json:"model"`
	Attempts   int           `json:"attempts"`
	DurationMS int64         `json:"durationMs"`
	Draft      *models.Draft `json:"draft,omitempty"`
}

// FromResult builds the response for a completed generation.
func FromResult(res generator.Result, draft *models.Draft) GenerateResponse {
	return GenerateResponse{
		Lyrics:     res.Lyrics,
		Provider:   res.Provider,
		Model:      res.Model,
		Attempts:   res.Attempts,
		DurationMS: res.Duration.Milliseconds(),
		Draft:      draft,
	}
}

// AnalyzeRequest is the POST /api/analyze payload.
type AnalyzeRequest struct {
	Text string `json:"text"`
	// Normalize runs the lyric formatter before analysis.
	Normalize bool `json:"normalize"`
}

// AnalyzeResponse carries the formatted text and its rhyme breakdown.
type AnalyzeResponse struct {
	Text     string          `json:"text"`
	Analysis lyrics.Analysis `json:"analysis"`
}

// ModelsResponse lists a provider's catalog. Fallback is set when the list
// is the provider's static fallback rather than a live catalog.
type ModelsResponse struct {
	Provider string         `json:"provider"`
	Models   []models.Model `json:"models"`
	Fallback bool           `json:"fallback"`
}

// FromModels builds the catalog payload for providerName.
func FromModels(providerName string, list []models.Model) ModelsResponse {
	resp := ModelsResponse{Provider: providerName, Models: list}
	for _, m := range list {
		if m.Fallback {
			resp.Fallback = true
			break
		}
	}
	return resp
}

// PromptResponse carries the current system prompt.
type PromptResponse struct {
	Prompt string `json:"prompt"`
}

func intOr(v *int, fallback int) int {
	if v == nil {
		return fallback
	}
	return *v
}
