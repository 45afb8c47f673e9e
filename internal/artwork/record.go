// Package artwork defines the recognition result records shared across the
// pipeline: artwork metadata, narration bundles, and the unresolved-value
// sentinels external services use for fields they could not identify.
package artwork

import "strings"

// Sentinel values the vision service returns for fields it could not
// resolve. They are control values, never display text.
const (
	UnresolvedTitle  = "Unknown"
	UnresolvedArtist = "Unknown Artist"
)

// IsUnresolved reports whether a field value is empty or one of the
// unresolved sentinels, compared case-insensitively after trimming.
func IsUnresolved(value string) bool {
	value = strings.TrimSpace(value)
	if value == "" {
		return true
	}
	return strings.EqualFold(value, UnresolvedTitle) || strings.EqualFold(value, UnresolvedArtist)
}

// Record describes an identified artwork. Values are treated as immutable;
// derive changed copies with the With helpers instead of mutating fields at
// call sites.
type Record struct {
	Title             string   `json:"title"`
	Artist            string   `json:"artist"`
	Year              string   `json:"year,omitempty"`
	Style             string   `json:"style,omitempty"`
	Medium            string   `json:"medium,omitempty"`
	Museum            string   `json:"museum,omitempty"`
	Sources           []string `json:"sources,omitempty"`
	ReferenceImageURL string   `json:"reference_image_url,omitempty"`
	// Recognized is true for a specific identified artwork and false for a
	// style-level description only.
	Recognized bool `json:"recognized"`
}

// WithTitle derives a copy with the title replaced.
func (r Record) WithTitle(title string) Record {
	r.Sources = cloneSources(r.Sources)
	r.Title = title
	return r
}

// WithArtist derives a copy with the artist replaced.
func (r Record) WithArtist(artist string) Record {
	r.Sources = cloneSources(r.Sources)
	r.Artist = artist
	return r
}

// WithYear derives a copy with the year replaced.
func (r Record) WithYear(year string) Record {
	r.Sources = cloneSources(r.Sources)
	r.Year = year
	return r
}

// WithStyle derives a copy with the style replaced.
func (r Record) WithStyle(style string) Record {
	r.Sources = cloneSources(r.Sources)
	r.Style = style
	return r
}

// MergeSources derives a copy whose source list is the union of the
// existing sources and the provided ones, without duplicates. Order is not
// significant.
func (r Record) MergeSources(more []string) Record {
	seen := make(map[string]struct{}, len(r.Sources)+len(more))
	merged := make([]string, 0, len(r.Sources)+len(more))
	for _, lists := range [][]string{r.Sources, more} {
		for _, src := range lists {
			src = strings.TrimSpace(src)
			if src == "" {
				continue
			}
			if _, dup := seen[src]; dup {
				continue
			}
			seen[src] = struct{}{}
			merged = append(merged, src)
		}
	}
	r.Sources = merged
	return r
}

func cloneSources(sources []string) []string {
	if len(sources) == 0 {
		return nil
	}
	return append([]string(nil), sources...)
}
