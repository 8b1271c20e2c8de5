package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"lyricgen/internal/models"
	"lyricgen/internal/provider"
)

// ErrNoModelsEndpoint indicates the provider does not publish a model catalog.
var ErrNoModelsEndpoint = errors.New("provider has no models endpoint")

// chatMarkers are the family substrings kept by providers with FilterChatModels set.
var chatMarkers = []string{
	"gpt-4",
	"gpt-3.5-turbo",
	"claude",
	"llama",
	"mixtral",
	"mistral",
	"gemini",
	"chat",
	"completion",
}

var lower = cases.Lower(language.Und)

// ListModels normalizes a raw models-endpoint response into the provider's
// selectable models. No surviving entries yields an empty list.
func ListModels(p models.Provider, raw []byte) ([]models.Model, error) {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%s: decode models response: %v: %w", p.Name, err, provider.ErrInvalidResponseShape)
	}

	entries, err := locateEntries(doc, p.ResponseModelsPath)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p.Name, err)
	}

	idField := p.ModelIDField
	if idField == "" {
		idField = "id"
	}
	nameField := p.ModelNameField
	if nameField == "" {
		nameField = "name"
	}

	out := make([]models.Model, 0, len(entries))
	seen := make(map[string]struct{}, len(entries))
	for _, item := range entries {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}

		id := stringField(entry, idField)
		if id == "" {
			continue
		}
		name := stringField(entry, nameField)
		if name == "" {
			name = id
		}
		if p.NameFromDescription {
			if desc := strings.TrimSpace(stringField(entry, "description")); desc != "" {
				if derived := nameFromDescription(desc); derived != "" {
					name = derived
				}
			}
		}

		if p.FilterChatModels && !isChatModel(id, name) {
			continue
		}

		base := baseName(name)
		if _, dup := seen[base]; dup {
			continue
		}
		seen[base] = struct{}{}

		model := models.Model{ID: id, Name: name, ProviderName: p.Name}
		if n, ok := entry["context_length"].(float64); ok && n > 0 {
			model.MaxTokens = int(n)
		}
		out = append(out, model)
	}
	return out, nil
}

// locateEntries walks the dotted path, or falls back to a top-level array or
// the conventional "data" array.
func locateEntries(doc any, path string) ([]any, error) {
	path = strings.TrimSpace(path)
	if path != "" {
		cur := doc
		for _, key := range strings.Split(path, ".") {
			obj, ok := cur.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("path %q: %q is not an object: %w", path, key, provider.ErrInvalidResponseShape)
			}
			cur = obj[key]
		}
		list, ok := cur.([]any)
		if !ok {
			return nil, fmt.Errorf("path %q does not hold an array: %w", path, provider.ErrInvalidResponseShape)
		}
		return list, nil
	}

	switch v := doc.(type) {
	case []any:
		return v, nil
	case map[string]any:
		if list, ok := v["data"].([]any); ok {
			return list, nil
		}
	}
	return nil, fmt.Errorf("response is not a model array: %w", provider.ErrInvalidResponseShape)
}

func stringField(entry map[string]any, field string) string {
	s, _ := entry[field].(string)
	return strings.TrimSpace(s)
}

// nameFromDescription shortens a free-text description: the text before
// " is ", else before the first ':', else the first three words.
func nameFromDescription(desc string) string {
	if before, _, ok := strings.Cut(desc, " is "); ok {
		return strings.TrimSpace(before)
	}
	if before, _, ok := strings.Cut(desc, ":"); ok {
		return strings.TrimSpace(before)
	}

	words := strings.Fields(desc)
	if len(words) > 0 && lower.String(words[0]) == "the" {
		words = words[1:]
	}
	if len(words) > 3 {
		words = words[:3]
	}
	return strings.Join(words, " ")
}

func isChatModel(id, name string) bool {
	id = lower.String(id)
	name = lower.String(name)
	for _, marker := range chatMarkers {
		if strings.Contains(id, marker) || strings.Contains(name, marker) {
			return true
		}
	}
	return false
}

// baseName strips a ":variant" suffix and keeps the last path segment.
func baseName(name string) string {
	name, _, _ = strings.Cut(name, ":")
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	return strings.TrimSpace(name)
}
