// Package slug generates and validates the URL-friendly identifiers that
// name categories among their siblings.
package slug

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	// separators become hyphens: whitespace, underscores, slashes and dots
	separators = regexp.MustCompile(`[\s_/.]+`)
	// nonSlug matches anything that isn't a lowercase letter, digit or hyphen
	nonSlug = regexp.MustCompile(`[^a-z0-9-]`)
	// multipleHyphens collapses consecutive hyphens into one
	multipleHyphens = regexp.MustCompile(`-{2,}`)
	// valid is the canonical slug shape
	valid = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)
)

// Generate creates a slug from a display name, folding accents and capping the length.
// Example: "Crème Brûlée & Co." → "creme-brulee-co"
// A result of "" means the name has no usable characters.
func Generate(s string, maxLen int) string {
	result := strings.ToLower(strings.TrimSpace(foldAccents(s)))
	result = separators.ReplaceAllString(result, "-")
	result = nonSlug.ReplaceAllString(result, "")
	result = multipleHyphens.ReplaceAllString(result, "-")
	result = strings.Trim(result, "-")

	if maxLen > 0 && len(result) > maxLen {
		result = strings.TrimRight(result[:maxLen], "-")
	}
	return result
}

// Valid reports whether s is already a canonical slug
func Valid(s string) bool {
	return valid.MatchString(s)
}

// foldAccents strips combining marks after canonical decomposition ("é" → "e")
func foldAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}
