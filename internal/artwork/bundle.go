package artwork

import "strings"

// Bundle is the complete structured result for one artwork: metadata plus
// narration text, either retrieved from cache or freshly generated.
type Bundle struct {
	Record
	Summary            string  `json:"summary"`
	Narration          string  `json:"narration"`
	ArtistIntroduction string  `json:"artist_introduction,omitempty"`
	Confidence         float64 `json:"confidence"`
}

// CachePersistable reports whether the bundle satisfies the shared-cache
// invariant: confidence at least 0.8 and a specifically recognized artwork.
func (b Bundle) CachePersistable() bool {
	return b.Confidence >= 0.8 && b.Recognized
}

// WithRecord derives a copy with the embedded record replaced.
func (b Bundle) WithRecord(rec Record) Bundle {
	b.Record = rec
	return b
}

// WithArtistIntroduction derives a copy with the artist introduction
// replaced.
func (b Bundle) WithArtistIntroduction(intro string) Bundle {
	b.Record.Sources = cloneSources(b.Record.Sources)
	b.ArtistIntroduction = intro
	return b
}

// WithConfidence derives a copy with the confidence replaced, clamped to
// [0, 1].
func (b Bundle) WithConfidence(score float64) Bundle {
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	b.Record.Sources = cloneSources(b.Record.Sources)
	b.Confidence = score
	return b
}

// HasNarration reports whether the bundle carries a non-empty narration
// body.
func (b Bundle) HasNarration() bool {
	return strings.TrimSpace(b.Narration) != ""
}
