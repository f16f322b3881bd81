package dispatch

import (
	"regexp"
	"strings"
)

// The extractor applies a strictly ordered list of structural patterns over
// the dispatch grammar and returns the first candidate that survives the
// reject filter. Higher-numbered patterns are progressively less specific;
// testing specific-to-general keeps a generic fallback from mis-extracting
// when a precise match was available. The ordering is a behavioral
// contract: reordering changes output on ambiguous input.

// rejectKeywords are incident terminology, not place names. A candidate
// token is discarded when it starts with any of these (case-sensitive).
var rejectKeywords = []string{
	"FIRE", "GRASS", "HOUSE", "BATTERY", "STRUCTURE", "VEHICLE", "UNDEFINED",
	"SPREADING", "INCIDENT", "STRIKE", "TEAM", "CODE", "TANKER", "REQUIRED",
	"ASSEMBLE", "ALERT", "NOW", "EXTINGUISHED", "ISSUING", "SMOKE", "COLUMN",
	"ALARM", "OPERATING", "LEAKING", "DOWN", "POWERLINES", "SPREAD", "BUSH",
	"SCRUB",
}

var rejectRe = regexp.MustCompile(`^(?:` + strings.Join(rejectKeywords, "|") + `)`)

const (
	// streetTypes are suffixes that terminate a street name. Longer
	// spellings come first so the alternation never stops at a prefix.
	streetTypes = `(?:ROAD|RD|STREET|ST|AVENUE|AVE|AV|CRESCENT|CRES|COURT|CRT|CT|DRIVE|DRV|DR|GROVE|GV|HIGHWAY|HWY|LANE|LN|PARADE|PDE|PLACE|PL|TERRACE|TCE|TRACK|TRK|WAY)`

	// mapRef matches the map-book references that close most dispatch
	// messages: a region code like "SVC 6339 D1" or a grid reference like
	// "M 315 G7".
	mapRef = `(?:SV[A-Z]{0,2} ?\d{1,4}(?: [A-Z]\d{1,2})?|M \d{1,3}(?: [A-Z]\d{1,2})?)`
)

// remnantRe matches a trailing grid-reference remnant token ("M3", "E").
var remnantRe = regexp.MustCompile(`^[A-Z]\d*$`)

// matcher pairs one structural pattern with the formatter that turns its
// submatches into a candidate, so the ordering contract stays explicit and
// each pattern is testable in isolation.
type matcher struct {
	name  string
	re    *regexp.Regexp
	build func(sub []string) (string, bool)
}

var matchers = []matcher{
	{
		// 1. Assembly point: "ASSEMBLE AT <desc> STATION ... <suburb> /".
		name: "assembly-point",
		re:   regexp.MustCompile(`ASSEMBLE AT .+?(?: FIRE STATION| STATION| SHOWGROUNDS| RESERVE)\b.*?([A-Z][A-Z ]{1,28}[A-Z]) ?/`),
		build: func(sub []string) (string, bool) {
			suburb := stripSaintPrefix(sub[1])
			return suburbOnly(suburb)
		},
	},
	{
		// 2. Numbered street address: "<number> <street> <type> <suburb> /".
		name: "street-address",
		re:   regexp.MustCompile(`\b(\d+[A-Z]?) ((?:[A-Z]+ )+` + streetTypes + `) ([A-Z][A-Z ]*?) ?/`),
		build: func(sub []string) (string, bool) {
			return streetAndSuburb(sub[2], sub[3])
		},
	},
	{
		// 3. Corner of two roads: "CNR <road1>/<road2> <suburb> <map ref>".
		name: "corner",
		re:   regexp.MustCompile(`CNR [A-Z' ]+/((?:[A-Z']+ )+` + streetTypes + `) ([A-Z][A-Z ]*?) ?(?:` + mapRef + `|/)`),
		build: func(sub []string) (string, bool) {
			return suburbOnly(sub[2])
		},
	},
	{
		// 4. Bare road name: "<road> RD <suburb>" before a slash or map ref.
		name: "bare-road",
		re:   regexp.MustCompile(`\b([A-Z][A-Z ]*?) RD ([A-Z][A-Z ]*?) ?(?:/|` + mapRef + `)`),
		build: func(sub []string) (string, bool) {
			// Lazy matching still lets incident phrasing leak into the road
			// group ("HOUSE FIRE SMITH RD"); keep only the trailing words
			// that aren't incident keywords.
			road := trailingWords(sub[1], 3)
			if road == "" {
				return "", false
			}
			suburb := stripGridRemnant(sub[2])
			if suburb == "" || rejectRe.MatchString(suburb) {
				return "", false
			}
			return titleCase(road) + " Rd, " + titleCase(suburb), true
		},
	},
	{
		// 5. "AT <desc> <number> <street> <suburb>" before a slash or map ref.
		name: "at-description",
		re:   regexp.MustCompile(`\bAT [A-Z' ]+? (\d+[A-Z]?) ((?:[A-Z]+ )+` + streetTypes + `) ([A-Z][A-Z ]*?) ?(?:/|` + mapRef + `)`),
		build: func(sub []string) (string, bool) {
			addr, ok := streetAndSuburb(sub[2], sub[3])
			if !ok {
				return "", false
			}
			return sub[1] + " " + addr, true
		},
	},
	{
		// 6. Fallback: uppercase run immediately before a map reference,
		// scanned right-to-left for the longest trailing non-keyword run.
		name: "suburb-before-map-ref",
		re:   regexp.MustCompile(`([A-Z][A-Z ]{2,28}[A-Z]) (?:` + mapRef + `)`),
		build: func(sub []string) (string, bool) {
			return scanTrailingWords(sub[1], 0)
		},
	},
	{
		// 7. Fallback: same scan anchored before a bare slash, last 1-3 words.
		name: "suburb-before-slash",
		re:   regexp.MustCompile(`([A-Z][A-Z ]{2,28}[A-Z]) ?/`),
		build: func(sub []string) (string, bool) {
			return scanTrailingWords(sub[1], 3)
		},
	},
}

// ExtractLocation returns the best-guess location for a cleaned dispatch
// message, or "" when no pattern yields an acceptable candidate. It is a
// pure function of its input; the same message always produces the same
// result.
func ExtractLocation(message string) string {
	for _, m := range matchers {
		sub := m.re.FindStringSubmatch(message)
		if sub == nil {
			continue
		}
		cand, ok := m.build(sub)
		if !ok {
			continue
		}
		cand = strings.TrimSpace(cand)
		if len(cand) < 3 {
			// Too short to be anything but noise.
			continue
		}
		return cand
	}
	return ""
}

// suburbOnly validates and formats a bare suburb candidate.
func suburbOnly(token string) (string, bool) {
	token = stripGridRemnant(token)
	if token == "" || rejectRe.MatchString(token) {
		return "", false
	}
	return titleCase(token), true
}

// streetAndSuburb validates and formats a "<street>, <suburb>" candidate.
func streetAndSuburb(street, suburb string) (string, bool) {
	street = strings.TrimSpace(street)
	if street == "" || rejectRe.MatchString(street) {
		return "", false
	}
	suburb = stripGridRemnant(suburb)
	if suburb == "" || rejectRe.MatchString(suburb) {
		return "", false
	}
	return titleCase(street) + ", " + titleCase(suburb), true
}

// scanTrailingWords walks the words of an uppercase run right-to-left,
// keeping the longest trailing sequence free of reject keywords. maxWords
// of 0 means unbounded. Single-word candidates shorter than six characters
// are refused: a lone short token next to a map reference is more often a
// dispatch code than a suburb, while multi-word runs only need to clear the
// overall four-character floor.
func scanTrailingWords(run string, maxWords int) (string, bool) {
	cand := stripGridRemnant(trailingWords(run, maxWords))
	kept := strings.Fields(cand)
	switch {
	case len(kept) == 0:
		return "", false
	case len(kept) == 1 && len(kept[0]) < 6:
		return "", false
	case len(cand) < 4:
		return "", false
	}
	return titleCase(cand), true
}

// stripSaintPrefix drops a leading "ST " from an assembly-point suburb, but
// only when the remainder is longer than the prefix itself.
func stripSaintPrefix(suburb string) string {
	if rest, ok := strings.CutPrefix(suburb, "ST "); ok && len(rest) > len("ST ") {
		return rest
	}
	return suburb
}

// stripGridRemnant removes trailing single-letter-plus-digits tokens left
// over from map references, e.g. "YARRAWONGA M3" -> "YARRAWONGA".
func stripGridRemnant(token string) string {
	words := strings.Fields(token)
	for len(words) > 0 && remnantRe.MatchString(words[len(words)-1]) {
		words = words[:len(words)-1]
	}
	return strings.Join(words, " ")
}

// trailingWords returns the longest trailing run of words free of reject
// keywords. A max of 0 means unbounded.
func trailingWords(run string, max int) string {
	words := strings.Fields(run)
	var kept []string
	for i := len(words) - 1; i >= 0; i-- {
		if rejectRe.MatchString(words[i]) {
			break
		}
		kept = append([]string{words[i]}, kept...)
		if max > 0 && len(kept) == max {
			break
		}
	}
	return strings.Join(kept, " ")
}

// titleCase converts an uppercase token to display casing, word by word.
func titleCase(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
