package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lyricgen/internal/models"
	"lyricgen/internal/provider"
)

func TestListModelsDataPath(t *testing.T) {
	p := models.Provider{Name: "OpenAI", ResponseModelsPath: "data"}

	got, err := ListModels(p, []byte(`{"data":[{"id":"gpt-4","name":"GPT-4"}]}`))
	require.NoError(t, err)
	assert.Equal(t, []models.Model{{ID: "gpt-4", Name: "GPT-4", ProviderName: "OpenAI"}}, got)
}

func TestListModelsLocatesEntries(t *testing.T) {
	tests := []struct {
		name string
		path string
		body string
		want []string
	}{
		{"top level array", "", `[{"id":"a"},{"id":"b"}]`, []string{"a", "b"}},
		{"conventional data", "", `{"object":"list","data":[{"id":"a"}]}`, []string{"a"}},
		{"nested dotted path", "result.items", `{"result":{"items":[{"id":"x"}]}}`, []string{"x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ListModels(models.Provider{Name: "p", ResponseModelsPath: tt.path}, []byte(tt.body))
			require.NoError(t, err)
			ids := make([]string, len(got))
			for i, m := range got {
				ids[i] = m.ID
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestListModelsInvalidShape(t *testing.T) {
	for name, tc := range map[string]struct {
		path string
		body string
	}{
		"object without data": {"", `{"models":[]}`},
		"path to object":       {"data", `{"data":{"id":"x"}}`},
		"path through scalar":  {"data.items", `{"data":"nope"}`},
		"not json":             {"", `<!doctype html>`},
		"scalar":               {"", `42`},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ListModels(models.Provider{Name: "p", ResponseModelsPath: tc.path}, []byte(tc.body))
			assert.ErrorIs(t, err, provider.ErrInvalidResponseShape)
		})
	}
}

func TestListModelsNameFallbacks(t *testing.T) {
	p := models.Provider{Name: "p", ModelIDField: "slug", ModelNameField: "title"}

	got, err := ListModels(p, []byte(`[{"slug":"m1","title":"Model One"},{"slug":"m2"},{"title":"orphan"},"junk"]`))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Model One", got[0].Name)
	assert.Equal(t, "m2", got[1].Name)
}

func TestListModelsFilteringPolicy(t *testing.T) {
	body := []byte(`{"data":[{"id":"anthropic/claude-v1"},{"id":"acme/poet-7b"},{"id":"text-embedding-ada-002"},{"id":"gpt-4o"}]}`)

	unfiltered := models.Provider{Name: "OpenRouter"}
	got, err := ListModels(unfiltered, body)
	require.NoError(t, err)
	assert.Len(t, got, 4)

	filtered := models.Provider{Name: "OpenAI", FilterChatModels: true}
	got, err = ListModels(filtered, body)
	require.NoError(t, err)
	ids := make([]string, len(got))
	for i, m := range got {
		ids[i] = m.ID
	}
	assert.Equal(t, []string{"anthropic/claude-v1", "gpt-4o"}, ids)
}

func TestListModelsFilterMatchesNameCaseInsensitively(t *testing.T) {
	p := models.Provider{Name: "Anthropic", FilterChatModels: true, ModelNameField: "display_name"}

	got, err := ListModels(p, []byte(`{"data":[{"id":"model-x","display_name":"Claude Sonnet"},{"id":"embed-1","display_name":"Embedder"}]}`))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "model-x", got[0].ID)
}

func TestListModelsFilterEverythingOut(t *testing.T) {
	got, err := ListModels(models.Provider{Name: "p", FilterChatModels: true}, []byte(`[{"id":"whisper-1"}]`))
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestListModelsDedupesByBaseName(t *testing.T) {
	body := []byte(`[
		{"id":"meta-llama/llama-3-8b","name":"meta-llama/llama-3-8b"},
		{"id":"meta-llama/llama-3-8b:free","name":"meta-llama/llama-3-8b:free"},
		{"id":"other/llama-3-8b","name":"other/llama-3-8b"},
		{"id":"mistral/mistral-7b","name":"mistral/mistral-7b"}
	]`)

	got, err := ListModels(models.Provider{Name: "OpenRouter"}, body)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "meta-llama/llama-3-8b", got[0].ID)
	assert.Equal(t, "mistral/mistral-7b", got[1].ID)
}

func TestListModelsNameFromDescription(t *testing.T) {
	p := models.Provider{Name: "OpenRouter", NameFromDescription: true}
	body := []byte(`{"data":[
		{"id":"a/one","name":"A One","description":"Llama 3 Instruct is a chat model tuned for dialogue."},
		{"id":"b/two","name":"B Two","description":"Mixtral 8x7B: sparse mixture of experts"},
		{"id":"c/three","name":"C Three","description":"The fast poetic writer model from C"},
		{"id":"d/four","name":"D Four","description":""},
		{"id":"e/five","name":"E Five","context_length":8192}
	]}`)

	got, err := ListModels(p, body)
	require.NoError(t, err)
	require.Len(t, got, 5)
	assert.Equal(t, "Llama 3 Instruct", got[0].Name)
	assert.Equal(t, "Mixtral 8x7B", got[1].Name)
	assert.Equal(t, "fast poetic writer", got[2].Name)
	assert.Equal(t, "D Four", got[3].Name)
	assert.Equal(t, 8192, got[4].MaxTokens)
}

func TestBaseName(t *testing.T) {
	assert.Equal(t, "llama-3-8b", baseName("meta-llama/llama-3-8b:free"))
	assert.Equal(t, "gpt-4", baseName("gpt-4"))
	assert.Equal(t, "c", baseName("a/b/c:x:y"))
}
