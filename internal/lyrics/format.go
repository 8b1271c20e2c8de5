package lyrics

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	sectionHeader = regexp.MustCompile(`^\[(.*?)\]$`)
	blankRuns     = regexp.MustCompile(`\n{3,}`)
)

// CleanupFormat normalizes model output: repeated section headers are dropped
// (first occurrence wins, compared case-insensitively), every new section is
// preceded by one blank line, and runs of blank lines collapse to one.
func CleanupFormat(raw string) string {
	lower := cases.Lower(language.Und)
	seen := make(map[string]struct{})
	out := make([]string, 0, strings.Count(raw, "\n")+1)

	for _, line := range strings.Split(raw, "\n") {
		trimmed := strings.TrimSpace(line)

		if match := sectionHeader.FindStringSubmatch(trimmed); match != nil {
			key := lower.String(match[1])
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			if len(out) > 0 {
				out = append(out, "")
			}
			out = append(out, "["+match[1]+"]")
			continue
		}

		// Ad-lib lines start with "(" and are kept as written.
		if trimmed != "" || strings.HasPrefix(trimmed, "(") {
			out = append(out, line)
			continue
		}
		if len(out) > 0 && out[len(out)-1] != "" {
			out = append(out, "")
		}
	}

	joined := blankRuns.ReplaceAllString(strings.Join(out, "\n"), "\n\n")
	return strings.TrimSpace(joined)
}

// IsSectionHeader reports whether line, once trimmed, is a bare [Section] tag.
func IsSectionHeader(line string) bool {
	return sectionHeader.MatchString(strings.TrimSpace(line))
}
