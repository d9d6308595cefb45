package extraction

import (
	"regexp"
	"strings"
)

// Catalog numbers are alphanumeric tokens at least three characters long
// mixing letters and digits, with dash/dot/slash allowed ("SHVL 804" arrives
// as the token "SHVL804" only when spacing is lost; both halves still match).
var (
	catalogTokenPattern = regexp.MustCompile(`^[A-Z0-9][A-Z0-9\-./]{2,}$`)
	hasLetterPattern    = regexp.MustCompile(`[A-Za-z]`)
	hasDigitPattern     = regexp.MustCompile(`\d`)
	spineSeparators     = regexp.MustCompile(`[-·•–—:]`)
	whitespaceRun       = regexp.MustCompile(`\s+`)
)

func textTokens(text string) []string {
	fields := strings.Fields(strings.ToUpper(text))
	tokens := make([]string, 0, len(fields))
	for _, field := range fields {
		if trimmed := strings.TrimSpace(field); trimmed != "" {
			tokens = append(tokens, trimmed)
		}
	}
	return tokens
}

func textLines(text string) []string {
	rawLines := strings.Split(text, "\n")
	lines := make([]string, 0, len(rawLines))
	for _, line := range rawLines {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			lines = append(lines, trimmed)
		}
	}
	return lines
}

func findCatalogNumber(tokens []string) string {
	for _, token := range tokens {
		if catalogTokenPattern.MatchString(token) &&
			hasLetterPattern.MatchString(token) &&
			hasDigitPattern.MatchString(token) {
			return strings.ToUpper(token)
		}
	}
	return ""
}

func normalizeText(value string) string {
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(value, " "))
}

// guessFromText applies line-position heuristics: the first line is usually
// the artist and the second the title. Spine text instead reads as one run
// split by a separator character.
func guessFromText(text string, mode Mode) Guess {
	lines := textLines(text)
	catalogNumber := findCatalogNumber(textTokens(text))

	artistCandidate := ""
	titleCandidate := ""
	if len(lines) > 0 {
		artistCandidate = lines[0]
	}
	if len(lines) > 1 {
		titleCandidate = lines[1]
	}

	if mode == ModeSpine {
		parts := spineSeparators.Split(text, -1)
		if len(parts) >= 2 {
			artistCandidate = strings.TrimSpace(parts[0])
			titleCandidate = strings.TrimSpace(parts[1])
		}
	} else if len(lines) >= 2 {
		artistCandidate = lines[0]
		end := 3
		if end > len(lines) {
			end = len(lines)
		}
		titleCandidate = strings.Join(lines[1:end], " ")
	}

	return Guess{
		Artist:        normalizeText(artistCandidate),
		Title:         normalizeText(titleCandidate),
		CatalogNumber: catalogNumber,
	}
}
