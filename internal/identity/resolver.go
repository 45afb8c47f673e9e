package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Identity is the canonical, hashable form of a (title, artist) pair.
type Identity struct {
	NormalizedTitle  string
	NormalizedArtist string
	Hash             string
	Year             string
}

// fuzzyThreshold is the similarity both title and artist must strictly
// exceed for an approximate match.
const fuzzyThreshold = 0.85

// titleMarkers is the paired glyphs conventionally used to set off artwork
// titles; CleanTitle strips this pair, normalization removes any further
// marker glyphs.
var titleMarkers = [2]rune{'《', '》'}

// markerGlyphs are all bracket/quote glyphs removed during normalization.
var markerGlyphs = map[rune]struct{}{
	'《': {}, '》': {}, '〈': {}, '〉': {},
	'「': {}, '」': {}, '『': {}, '』': {},
	'“': {}, '”': {}, '‘': {}, '’': {},
	'"': {}, '\'': {},
}

// fillerWords are articles stripped from the title when they appear as
// whole-word prefixes or suffixes of the normalized form.
var fillerWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {},
	"le": {}, "la": {}, "les": {}, "un": {}, "une": {},
	"der": {}, "die": {}, "das": {},
	"el": {}, "los": {}, "las": {},
}

// Resolve normalizes a free-text title/artist pair into an Identity. The
// hash is the sha256 digest of normalizedTitle + "|" + normalizedArtist in
// lowercase hex, so identical normalized inputs always produce the
// identical hash regardless of original casing or whitespace.
func Resolve(title, artist, year string) Identity {
	cleaned := CleanTitle(title)
	cleaned = canonicalizeVariants(cleaned)

	normTitle := stripFillerWords(normalize(cleaned))
	normArtist := normalize(artist)

	digest := sha256.Sum256([]byte(normTitle + "|" + normArtist))

	return Identity{
		NormalizedTitle:  normTitle,
		NormalizedArtist: normArtist,
		Hash:             hex.EncodeToString(digest[:]),
		Year:             strings.TrimSpace(year),
	}
}

// Matches reports whether two identities refer to the same artwork. Exact
// matching compares hashes. When fuzzy is requested and the hashes differ,
// both the title and artist similarities must strictly exceed the fuzzy
// threshold.
func Matches(a, b Identity, fuzzy bool) bool {
	if a.Hash == b.Hash {
		return true
	}
	if !fuzzy {
		return false
	}
	titleSim := Similarity(a.NormalizedTitle, b.NormalizedTitle)
	artistSim := Similarity(a.NormalizedArtist, b.NormalizedArtist)
	return titleSim > fuzzyThreshold && artistSim > fuzzyThreshold
}

// Similarity returns 1 - Levenshtein(a, b) / max(len(a), len(b)), measured
// over code points. Two empty strings are identical.
func Similarity(a, b string) float64 {
	lenA := len([]rune(a))
	lenB := len([]rune(b))
	if lenA == 0 && lenB == 0 {
		return 1
	}
	longest := lenA
	if lenB > longest {
		longest = lenB
	}
	return 1 - float64(Levenshtein(a, b))/float64(longest)
}

// CleanTitle strips the paired title marker glyphs and trims surrounding
// whitespace. Inner text is preserved verbatim.
func CleanTitle(title string) string {
	title = strings.TrimSpace(title)
	var sb strings.Builder
	sb.Grow(len(title))
	for _, r := range title {
		if r == titleMarkers[0] || r == titleMarkers[1] {
			continue
		}
		sb.WriteRune(r)
	}
	return strings.TrimSpace(sb.String())
}

// normalize removes the remaining marker glyphs, collapses whitespace runs
// to a single space, and lower-cases ASCII letters. Non-ASCII script
// characters pass through verbatim: they are never case-folded or
// transliterated.
func normalize(input string) string {
	var sb strings.Builder
	sb.Grow(len(input))
	for _, r := range input {
		if _, marker := markerGlyphs[r]; marker {
			continue
		}
		if r >= 'A' && r <= 'Z' {
			r += 'a' - 'A'
		}
		sb.WriteRune(r)
	}
	return strings.Join(strings.Fields(sb.String()), " ")
}

// stripFillerWords removes leading and trailing articles, whole words only,
// repeating until neither end carries one.
func stripFillerWords(normalized string) string {
	words := strings.Fields(normalized)
	for len(words) > 1 {
		if _, ok := fillerWords[words[0]]; ok {
			words = words[1:]
			continue
		}
		if _, ok := fillerWords[words[len(words)-1]]; ok {
			words = words[:len(words)-1]
			continue
		}
		break
	}
	return strings.Join(words, " ")
}
