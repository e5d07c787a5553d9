package archive

import (
	"strings"
	"unicode"
)

const (
	slugMaxLen   = 40
	slugFallback = "wyniki"
	keyTimeFmt   = "20060102_150405"
	docExt       = ".json"
)

// Slug reduces a title to a file-name-safe token. ASCII letters, digits,
// '-' and '_' are kept, whitespace and .,;:/\| become '_', everything else
// is dropped. Leading and trailing underscores are trimmed.
func Slug(title string) string {
	var b strings.Builder
	for _, r := range title {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_'):
			b.WriteRune(r)
		case unicode.IsSpace(r) || strings.ContainsRune(".,;:/\\|", r):
			b.WriteByte('_')
		}
	}
	s := strings.Trim(b.String(), "_")
	if s == "" {
		return slugFallback
	}
	return s
}

// truncatedSlug is the slug part of a storage key.
func truncatedSlug(title string) string {
	s := Slug(title)
	if len(s) > slugMaxLen {
		s = s[:slugMaxLen]
	}
	return s
}
