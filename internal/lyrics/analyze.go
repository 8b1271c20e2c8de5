package lyrics

import (
	"sort"
	"strings"
	"unicode"

	"github.com/jdkato/prose/summarize"
)

// LineAnalysis annotates one lyric line.
type LineAnalysis struct {
	Text      string `json:"text"`
	Syllables int    `json:"syllables"`
	RhymeKey  string `json:"rhymeKey,omitempty"`
}

// RhymeGroup lists the line-final words sharing a rhyme key.
type RhymeGroup struct {
	Key   string   `json:"key"`
	Words []string `json:"words"`
}

// Analysis is the rhyme and cadence breakdown of a lyric.
type Analysis struct {
	Lines  []LineAnalysis `json:"lines"`
	Groups []RhymeGroup   `json:"groups"`
}

// Analyze estimates syllables per line and groups end words by rhyme.
// Section headers and blank lines are skipped.
func Analyze(text string) Analysis {
	var result Analysis
	groups := make(map[string][]string)
	var order []string

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || IsSectionHeader(trimmed) {
			continue
		}

		entry := LineAnalysis{Text: trimmed}
		for _, word := range strings.Fields(trimmed) {
			entry.Syllables += countSyllables(word)
		}

		if last := lastWord(trimmed); last != "" {
			entry.RhymeKey = rhymeKey(last)
			if _, ok := groups[entry.RhymeKey]; !ok {
				order = append(order, entry.RhymeKey)
			}
			groups[entry.RhymeKey] = append(groups[entry.RhymeKey], last)
		}
		result.Lines = append(result.Lines, entry)
	}

	for _, key := range order {
		if len(groups[key]) < 2 {
			continue
		}
		result.Groups = append(result.Groups, RhymeGroup{Key: key, Words: groups[key]})
	}
	sort.SliceStable(result.Groups, func(i, j int) bool {
		return len(result.Groups[i].Words) > len(result.Groups[j].Words)
	})
	return result
}

func lastWord(line string) string {
	fields := strings.Fields(line)
	for i := len(fields) - 1; i >= 0; i-- {
		word := strings.Map(func(r rune) rune {
			if unicode.IsLetter(r) || r == '\'' {
				return unicode.ToLower(r)
			}
			return -1
		}, fields[i])
		word = strings.Trim(word, "'")
		if word != "" {
			return word
		}
	}
	return ""
}

func isVowel(r rune) bool {
	switch r {
	case 'a', 'e', 'i', 'o', 'u', 'y':
		return true
	}
	return false
}

// countSyllables counts the syllables of one whitespace-delimited token.
// Punctuation and digits are dropped first since the counter expects a bare
// word.
func countSyllables(word string) int {
	letters := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || r == '\'' {
			return unicode.ToLower(r)
		}
		return -1
	}, word)
	letters = strings.Trim(letters, "'")
	if letters == "" {
		return 0
	}
	return summarize.Syllables(letters)
}

// rhymeKey is the last vowel group plus any trailing consonants.
func rhymeKey(word string) string {
	runes := []rune(word)
	end := len(runes)
	i := end - 1
	if end > 2 && runes[end-1] == 'e' && !isVowel(runes[end-2]) {
		i = end - 2
	}
	for i >= 0 && !isVowel(runes[i]) {
		i--
	}
	if i < 0 {
		if len(runes) > 3 {
			return string(runes[len(runes)-3:])
		}
		return word
	}
	for i > 0 && isVowel(runes[i-1]) {
		i--
	}
	return string(runes[i:end])
}
