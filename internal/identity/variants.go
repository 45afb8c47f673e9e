package identity

import (
	"regexp"
	"strings"
)

// variantTerms maps semantically-equivalent title terms to one canonical
// term. Creators name the same physical work differently depending on
// context (a series painted at different times of day is the classic case);
// without collapsing these, the cache silently duplicates entries for the
// same artwork.
var variantTerms = map[string]string{
	"sunrise":  "sunset",
	"dawn":     "sunset",
	"dusk":     "sunset",
	"twilight": "sunset",
	"daybreak": "sunset",

	"morning": "evening",
	"midday":  "evening",
	"noon":    "evening",

	"nympheas":    "water lilies",
	"waterlilies": "water lilies",

	"grey": "gray",
}

var variantPatterns = compileVariantPatterns()

type variantPattern struct {
	re        *regexp.Regexp
	canonical string
}

func compileVariantPatterns() []variantPattern {
	patterns := make([]variantPattern, 0, len(variantTerms))
	for term, canonical := range variantTerms {
		re := regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(term) + `\b`)
		patterns = append(patterns, variantPattern{re: re, canonical: canonical})
	}
	return patterns
}

// canonicalizeVariants applies every matching substitution, not just the
// first, so multiple variant terms in one title all collapse correctly.
func canonicalizeVariants(title string) string {
	if strings.TrimSpace(title) == "" {
		return title
	}
	for _, p := range variantPatterns {
		title = p.re.ReplaceAllString(title, p.canonical)
	}
	return title
}
