// Package dispatch cleans raw pager-dispatch message fragments and extracts
// a best-guess location string from the CFA dispatch grammar.
package dispatch

import (
	"regexp"
	"strings"
)

var (
	// tagRe matches one angle-bracket tag span with no nested brackets.
	// Applied repeatedly so malformed nesting like "<<b>i>" still unwinds.
	tagRe = regexp.MustCompile(`<[^<>]*>`)

	// entityRe matches any HTML entity-shaped sequence.
	entityRe = regexp.MustCompile(`&#?[0-9a-zA-Z]+;`)
)

// knownEntities are decoded to their characters; every other entity becomes
// a single space. "&amp;" is handled separately, after this table, so that
// "&amp;lt;" ends up as the literal text "&lt;" rather than "<".
var knownEntities = [][2]string{
	{"&lt;", "<"},
	{"&gt;", ">"},
	{"&quot;", `"`},
	{"&#39;", "'"},
}

// StripMarkup removes HTML tags and decodes entities from a raw message
// fragment. It always returns a string, possibly empty.
func StripMarkup(raw string) string {
	s := raw

	// Repeated passes unwind nested or broken markup that a single
	// replacement would miss.
	for {
		next := tagRe.ReplaceAllString(s, "")
		if next == s {
			break
		}
		s = next
	}

	for _, e := range knownEntities {
		s = strings.ReplaceAll(s, e[0], e[1])
	}

	s = entityRe.ReplaceAllStringFunc(s, func(m string) string {
		if m == "&amp;" {
			return m
		}
		return " "
	})
	s = strings.ReplaceAll(s, "&amp;", "&")

	// Stripping brackets last also removes the ones &lt;/&gt; decoded to, so
	// the output never contains a bracket and a second pass is a no-op.
	s = strings.ReplaceAll(s, "<", "")
	s = strings.ReplaceAll(s, ">", "")

	return strings.TrimSpace(s)
}
