package render

import (
	"fmt"
	"strings"
	"unicode"

	"ghp-go/internal/ghp"
)

// maxSlugLen bounds the slugified subject portion of a filename stem.
const maxSlugLen = 50

// Slug converts a change subject into a filesystem- and URL-safe token:
// lowercased, with every run of whitespace or punctuation collapsed to a
// single underscore, truncated to maxSlugLen runes.
func Slug(subject string) string {
	var b strings.Builder
	lastUnderscore := true // swallow leading separators

	for _, r := range strings.ToLower(subject) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			lastUnderscore = false
			continue
		}
		if !lastUnderscore {
			b.WriteByte('_')
			lastUnderscore = true
		}
	}

	slug := strings.TrimRight(b.String(), "_")
	if runes := []rune(slug); len(runes) > maxSlugLen {
		slug = strings.TrimRight(string(runes[:maxSlugLen]), "_")
	}
	if slug == "" {
		slug = "change"
	}
	return slug
}

// Stem derives the artifact filename stem for a change. The change number
// prefix makes stems collision-free by construction: two changes with
// identical subjects (or subjects equal after truncation) still produce
// distinct stems.
func Stem(change *ghp.ChangeRecord) string {
	return fmt.Sprintf("%04d-%s", change.Number, Slug(change.Subject))
}
