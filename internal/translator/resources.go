package translator

import (
	"encoding/json"
	"errors"
	"strings"

	"lyricgen/internal/drafts"
	"lyricgen/internal/models"
)

var (
	errEmptyName     = errors.New("name must be provided")
	errEmptyContent  = errors.New("content must be provided")
	errEmptySelected = errors.New("provider must be provided")
)

// ProviderRequest is the POST /api/providers payload.
type ProviderRequest struct {
	models.Provider
}

// UnmarshalJSON decodes a provider definition and requires a name.
func (r *ProviderRequest) UnmarshalJSON(data []byte) error {
	var p models.Provider
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	if strings.TrimSpace(p.Name) == "" {
		return errEmptyName
	}
	p.Default = false
	r.Provider = p
	return nil
}

// ProviderView is a provider as listed by the API.
type ProviderView struct {
	models.Provider
	Default bool `json:"default"`
}

// FromProviders wraps providers for listing.
func FromProviders(list []models.Provider) []ProviderView {
	out := make([]ProviderView, len(list))
	for i, p := range list {
		out[i] = ProviderView{Provider: p, Default: p.Default}
	}
	return out
}

// DraftRequest is the POST /api/drafts payload.
type DraftRequest struct {
	Title   string
	Content string
	Folder  string
}

// UnmarshalJSON decodes a draft and requires content.
func (r *DraftRequest) UnmarshalJSON(data []byte) error {
	type alias struct {
		Title   string `json:"title"`
		Content string `json:"content"`
		Folder  string `json:"folder"`
	}
	var payload alias
	if err := json.Unmarshal(data, &payload); err != nil {
		return err
	}
	if strings.TrimSpace(payload.Content) == "" {
		return errEmptyContent
	}
	*r = DraftRequest(payload)
	return nil
}

// ToInput converts the payload for the draft library.
func (r DraftRequest) ToInput() drafts.Input {
	return drafts.Input{Title: r.Title, Content: r.Content, Folder: r.Folder}
}

// DraftsResponse lists drafts with their folders.
type DraftsResponse struct {
	Drafts  []models.Draft `json:"drafts"`
	Folders []string       `json:"folders"`
}

// LastUsedRequest is the PUT /api/session/last-used payload.
type LastUsedRequest struct {
	models.LastUsed
}

// UnmarshalJSON decodes the selection and requires a provider.
func (r *LastUsedRequest) UnmarshalJSON(data []byte) error {
	var last models.LastUsed
	if err := json.Unmarshal(data, &last); err != nil {
		return err
	}
	last.Provider = strings.TrimSpace(last.Provider)
	last.Model = strings.TrimSpace(last.Model)
	if last.Provider == "" {
		return errEmptySelected
	}
	r.LastUsed = last
	return nil
}
