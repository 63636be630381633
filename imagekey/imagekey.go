// Package imagekey canonicalizes image file names into the stable keys
// shared by usage records, blacklist entries, and database rows. Two
// names that refer to the same file must normalize to the same key.
package imagekey

import (
	"net/url"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var thumbPrefix = regexp.MustCompile(`^\d+px-`)

// Normalize converts a raw file name into its canonical key:
// namespace prefix stripped, unicode NFC, spaces collapsed to single
// underscores, first letter upper-cased. Diacritics are preserved;
// "café du nord.jpg" and "Café_du_nord.jpg" are the same key.
func Normalize(name string) string {
	s := strings.TrimSpace(name)
	if s == "" {
		return ""
	}

	// Strip a leading file-namespace prefix if present
	for _, prefix := range []string{"File:", "Image:"} {
		if len(s) > len(prefix) && strings.EqualFold(s[:len(prefix)], prefix) {
			s = strings.TrimSpace(s[len(prefix):])
			break
		}
	}

	// Canonical unicode form
	s = norm.NFC.String(s)

	// Collapse whitespace runs and store as underscores
	s = strings.Join(strings.Fields(s), "_")
	s = strings.Trim(s, "_")
	if s == "" {
		return ""
	}

	// First letter is case-insensitive in the key namespace
	r, size := utf8.DecodeRuneInString(s)
	if r != utf8.RuneError && unicode.IsLower(r) {
		s = string(unicode.ToUpper(r)) + s[size:]
	}

	return s
}

// Display converts a canonical key back to its human-readable form.
func Display(key string) string {
	return strings.ReplaceAll(key, "_", " ")
}

// PathSafe derives a lowercase ASCII slug from a key for use in
// filesystem and object-store paths. Lossy; never use it as an identity.
func PathSafe(key string) string {
	if key == "" {
		return ""
	}

	s := strings.ToLower(key)
	s = transliterate(s)

	s = strings.ReplaceAll(s, " ", "-")
	s = strings.ReplaceAll(s, "_", "-")

	reg := regexp.MustCompile("[^a-z0-9-]+")
	s = reg.ReplaceAllString(s, "")

	reg = regexp.MustCompile("-+")
	s = reg.ReplaceAllString(s, "-")

	s = strings.Trim(s, "-")

	// Keep object keys short
	if len(s) > 100 {
		s = s[:100]
		s = strings.TrimRight(s, "-")
	}

	return s
}

// transliterate converts unicode characters to ASCII equivalents
func transliterate(s string) string {
	// Normalize unicode characters to NFD form (decomposed)
	t := transform.Chain(norm.NFD, transform.RemoveFunc(isMn), norm.NFC)
	result, _, _ := transform.String(t, s)
	return result
}

// isMn checks if a rune is a nonspacing mark (accents, diacritics)
func isMn(r rune) bool {
	return unicode.Is(unicode.Mn, r)
}

// FromImageURL extracts a file key from an image URL. Handles
// percent-encoded names and derived-thumbnail paths whose basename
// carries a "NNNpx-" size prefix.
func FromImageURL(rawurl string) string {
	s := rawurl
	if idx := strings.IndexAny(s, "?#"); idx != -1 {
		s = s[:idx]
	}

	parts := strings.Split(s, "/")
	if len(parts) == 0 {
		return ""
	}
	name := parts[len(parts)-1]

	if decoded, err := url.PathUnescape(name); err == nil {
		name = decoded
	}

	name = thumbPrefix.ReplaceAllString(name, "")

	return Normalize(name)
}
