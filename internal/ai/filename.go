package ai

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// RemoveDiacritics removes diacritical marks from a string (e.g., "Jiří" -> "Jiri").
func RemoveDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, _ := transform.String(t, s)
	return result
}

// Slug turns a hairstyle name into a lowercase ASCII slug ("Côté Bob" -> "cote-bob").
func Slug(s string) string {
	s = strings.ToLower(RemoveDiacritics(s))
	var b strings.Builder
	dash := false
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// OutputFileName names an edited result, e.g. "maneifest-textured-crop-1735732800.png".
func OutputFileName(style string, t time.Time) string {
	slug := Slug(style)
	if slug == "" {
		return fmt.Sprintf("maneifest-%d.png", t.Unix())
	}
	return fmt.Sprintf("maneifest-%s-%d.png", slug, t.Unix())
}
