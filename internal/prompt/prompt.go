package prompt

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"lyricgen/internal/models"
	"lyricgen/internal/provider"
)

//go:embed default_prompt.md
var defaultPrompt string

// DefaultMood is used when a request leaves the mood empty.
const DefaultMood = "Gritty"

// Moods lists the moods offered to users. Free text is accepted as well.
var Moods = []string{"Gritty", "Reflective", "Energetic", "Smooth"}

// Persona is a named style instruction appended to the system prompt.
type Persona struct {
	Name     string `json:"name"`
	Template string `json:"template"`
}

var personas = []Persona{
	{Name: "None"},
	{Name: "Old-school Rapper", Template: "Use a classic, old-school hip-hop style with storytelling elements."},
	{Name: "Trap Artist", Template: "Use modern trap slang and rhythm patterns."},
	{Name: "Storytelling Poet", Template: "Adopt a poetic narrative style with vivid imagery."},
}

// Personas returns the available personas in display order.
func Personas() []Persona {
	out := make([]Persona, len(personas))
	copy(out, personas)
	return out
}

// PersonaTemplate returns the style instruction for name. An empty name or
// "None" has no template.
func PersonaTemplate(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", nil
	}
	for _, p := range personas {
		if p.Name == name {
			return p.Template, nil
		}
	}
	return "", fmt.Errorf("%w: unknown persona %q", provider.ErrBadRequest, name)
}

// Default returns the embedded system prompt.
func Default() string {
	return strings.TrimSpace(defaultPrompt)
}

// Loader reads the system prompt document from disk on every call so edits
// take effect without a restart.
type Loader struct {
	path   string
	logger *slog.Logger
}

// NewLoader returns a loader for path. An empty path always yields the
// embedded prompt.
func NewLoader(path string, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{path: strings.TrimSpace(path), logger: logger}
}

// Load returns the current system prompt.
func (l *Loader) Load() (string, error) {
	if l.path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(l.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			l.logger.Warn("system prompt file missing, using built-in prompt", "path", l.path)
			return Default(), nil
		}
		return "", fmt.Errorf("read system prompt %s: %w", l.path, err)
	}

	text := strings.TrimSpace(string(data))
	if text == "" {
		l.logger.Warn("system prompt file empty, using built-in prompt", "path", l.path)
		return Default(), nil
	}
	return text, nil
}

// SystemMessage joins the base prompt with the persona's template.
func SystemMessage(base, persona string) (string, error) {
	template, err := PersonaTemplate(persona)
	if err != nil {
		return "", err
	}
	if template == "" {
		return base, nil
	}
	return base + "\n\n" + template, nil
}

var lowerMood = cases.Lower(language.Und)

// UserMessage builds the generation instruction for req.
func UserMessage(req models.GenerationRequest) string {
	mood := strings.TrimSpace(req.Mood)
	if mood == "" {
		mood = DefaultMood
	}
	return fmt.Sprintf(
		"Generate complete song lyrics about \"%s\" in a %s mood. "+
			"Use a rhyme density of %d/10 and a profanity level of %d/10. "+
			"Follow all formatting rules, structure requirements, and advanced techniques defined in the system prompt. "+
			"Pay close attention to your flow and rhyme scheme. Make sure syllable counts are accurate.",
		strings.TrimSpace(req.Theme), lowerMood.String(mood), req.RhymeDensity, req.ProfanityLevel,
	)
}
