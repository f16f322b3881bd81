package domain

import "strings"

// maxLocationKeyLen caps cache keys so pathological messages can't produce
// unbounded store row keys.
const maxLocationKeyLen = 100

// LocationKey canonicalizes a free-text location into a stable cache key:
// upper-cased, whitespace collapsed, non-alphanumerics stripped, capped at
// 100 characters. Two spellings of the same place ("Churchill Rd,
// Yarrawonga" / "CHURCHILL RD YARRAWONGA") normalize to the same key.
func LocationKey(location string) string {
	var b strings.Builder
	b.Grow(len(location))

	lastSpace := true // suppress leading whitespace
	for _, r := range strings.ToUpper(location) {
		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastSpace = false
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			if !lastSpace {
				b.WriteByte(' ')
				lastSpace = true
			}
		default:
			// Punctuation contributes nothing to identity.
		}
	}

	key := strings.TrimRight(b.String(), " ")
	if len(key) > maxLocationKeyLen {
		key = key[:maxLocationKeyLen]
	}
	return key
}
