package identity

import (
	"strings"
	"testing"
)

func TestResolveDeterministicAcrossASCIIVariants(t *testing.T) {
	base := Resolve("Water Lilies", "Claude Monet", "")
	variants := []struct {
		title  string
		artist string
	}{
		{"water lilies", "claude monet"},
		{"WATER  LILIES", "CLAUDE MONET"},
		{"  Water Lilies  ", " Claude  Monet "},
		{"water\tlilies", "claude\nmonet"},
	}
	for _, v := range variants {
		got := Resolve(v.title, v.artist, "")
		if got.Hash != base.Hash {
			t.Fatalf("Resolve(%q, %q) hash %s != base %s", v.title, v.artist, got.Hash, base.Hash)
		}
	}
}

func TestResolveHashShape(t *testing.T) {
	id := Resolve("Starry Night", "Vincent van Gogh", "1889")
	if len(id.Hash) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(id.Hash))
	}
	if id.Hash != strings.ToLower(id.Hash) {
		t.Fatal("hash must be lowercase hex")
	}
	if id.Year != "1889" {
		t.Fatalf("year not carried: %q", id.Year)
	}
}

func TestResolveCollapsesVariantTerms(t *testing.T) {
	a := Resolve("Capitol, sunset", "Monet", "")
	b := Resolve("Capitol, sunrise", "Monet", "")
	if a.Hash != b.Hash {
		t.Fatalf("variant titles should share a hash: %s vs %s", a.Hash, b.Hash)
	}
}

func TestResolveAppliesAllVariantSubstitutions(t *testing.T) {
	a := Resolve("Dawn over the harbor, morning", "Monet", "")
	b := Resolve("Sunset over the harbor, evening", "Monet", "")
	if a.Hash != b.Hash {
		t.Fatalf("all variant terms should collapse: %q vs %q", a.NormalizedTitle, b.NormalizedTitle)
	}
}

func TestResolveStripsMarkerGlyphs(t *testing.T) {
	a := Resolve("《Starry Night》", "van Gogh", "")
	b := Resolve("Starry Night", "van Gogh", "")
	if a.Hash != b.Hash {
		t.Fatalf("marker glyphs should not affect the hash: %q vs %q", a.NormalizedTitle, b.NormalizedTitle)
	}
}

func TestResolveStripsFillerArticles(t *testing.T) {
	a := Resolve("The Starry Night", "van Gogh", "")
	b := Resolve("Starry Night", "van Gogh", "")
	if a.Hash != b.Hash {
		t.Fatalf("leading article should be stripped: %q vs %q", a.NormalizedTitle, b.NormalizedTitle)
	}
	c := Resolve("Anthem", "someone", "")
	if c.NormalizedTitle != "anthem" {
		t.Fatalf("whole-word matching broken: %q", c.NormalizedTitle)
	}
}

func TestResolvePreservesNonASCIIVerbatim(t *testing.T) {
	id := Resolve("神奈川沖浪裏", "葛飾北斎", "")
	if id.NormalizedTitle != "神奈川沖浪裏" {
		t.Fatalf("non-ASCII title mangled: %q", id.NormalizedTitle)
	}
	if id.NormalizedArtist != "葛飾北斎" {
		t.Fatalf("non-ASCII artist mangled: %q", id.NormalizedArtist)
	}
	mixed := Resolve("The Great Wave 神奈川", "Hokusai 北斎", "")
	if mixed.NormalizedTitle != "great wave 神奈川" {
		t.Fatalf("mixed-script normalization wrong: %q", mixed.NormalizedTitle)
	}
}

func TestCleanTitle(t *testing.T) {
	if got := CleanTitle("  《Impression, Sunrise》 "); got != "Impression, Sunrise" {
		t.Fatalf("CleanTitle = %q", got)
	}
	if got := CleanTitle("No markers here"); got != "No markers here" {
		t.Fatalf("CleanTitle = %q", got)
	}
}

func TestMatchesExact(t *testing.T) {
	a := Resolve("Water Lilies", "Monet", "")
	if !Matches(a, a, false) {
		t.Fatal("identity must match itself without fuzzy")
	}
	b := Resolve("Haystacks", "Monet", "")
	if Matches(a, b, false) {
		t.Fatal("different artworks must not match exactly")
	}
}

func TestMatchesFuzzyRequiresBothSimilarities(t *testing.T) {
	a := Resolve("Water Lilies", "Claude Monet", "")
	// Close title (one typo), close artist: should match.
	b := Resolve("Water Lilied", "Claude Mones", "")
	if !Matches(a, b, true) {
		t.Fatalf("near-identical pair should fuzzy match (title sim %.3f, artist sim %.3f)",
			Similarity(a.NormalizedTitle, b.NormalizedTitle),
			Similarity(a.NormalizedArtist, b.NormalizedArtist))
	}
	// Title similarity high, artist similarity at or below 0.85: must not match.
	c := Resolve("Water Lilied", "Claude Degas", "")
	if Matches(a, c, true) {
		t.Fatalf("low artist similarity must veto the match (artist sim %.3f)",
			Similarity(a.NormalizedArtist, c.NormalizedArtist))
	}
	// Fuzzy disabled: near-identical pair must not match.
	if Matches(a, b, false) {
		t.Fatal("fuzzy pair must not match when fuzzy is off")
	}
}

func TestSimilarityBounds(t *testing.T) {
	if sim := Similarity("", ""); sim != 1 {
		t.Fatalf("empty strings should be identical, got %f", sim)
	}
	if sim := Similarity("abc", "xyz"); sim != 0 {
		t.Fatalf("disjoint strings of equal length should score 0, got %f", sim)
	}
	// Boundary case: a 0.90 title with a 0.80 artist must not match.
	title := Similarity("la grenouillere", "la grenouillern") // 1 edit in 15 runes ≈ 0.933
	artist := Similarity("abcdefghij", "abcdefgh__")          // 2 edits in 10 runes = 0.8
	if title <= fuzzyThreshold {
		t.Fatalf("title fixture should exceed the threshold, got %f", title)
	}
	if artist > fuzzyThreshold {
		t.Fatalf("artist fixture should not exceed the threshold, got %f", artist)
	}
}
