package utils

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	nonSlugChars = regexp.MustCompile(`[^a-z0-9-]+`)
	dashRuns     = regexp.MustCompile(`-+`)
)

// RemoveDiacritics strips combining marks after NFD decomposition,
// so "Ligéia" becomes "Ligeia".
func RemoveDiacritics(input string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, input)
	if err != nil {
		return input
	}
	return out
}

// GenerateSlug turns a story title into a lowercase ascii file-safe slug
func GenerateSlug(input string) string {
	lower := strings.ToLower(RemoveDiacritics(input))
	hyphenated := strings.Join(strings.Fields(lower), "-")
	cleaned := nonSlugChars.ReplaceAllString(hyphenated, "")
	return strings.Trim(dashRuns.ReplaceAllString(cleaned, "-"), "-")
}

// ParseStringToUUID returns uuid.Nil for empty or malformed input
func ParseStringToUUID(s string) uuid.UUID {
	uid, err := uuid.Parse(s)
	if err != nil || s == "" {
		return uuid.Nil
	}
	return uid
}
