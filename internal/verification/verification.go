// Package verification cross-checks generated narration bundles against
// reference catalogs. Verification is best-effort: it can fill gaps and
// corroborate an identification, but a generated field that is already
// populated always wins over reference data.
package verification

import (
	"context"
	"log/slog"
	"strings"

	"lumen/internal/artwork"
	"lumen/internal/identity"
	"lumen/internal/logging"
	"lumen/internal/services/reference"
)

// corroborationBonus is added to a bundle's confidence when a reference
// catalog confirms the identification.
const corroborationBonus = 0.1

// Searcher is the slice of reference.Lookup verification needs.
type Searcher interface {
	Search(ctx context.Context, candidate reference.Candidate) (*reference.Result, error)
}

// Verifier runs reference cross-checks for narration bundles.
type Verifier struct {
	lookup Searcher
	logger *slog.Logger
}

// NewVerifier constructs a verifier over a reference lookup.
func NewVerifier(lookup Searcher, logger *slog.Logger) *Verifier {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Verifier{lookup: lookup, logger: logger}
}

// CrossCheck derives recognition candidates from the bundle and searches
// the reference providers for each until one returns a hit. No hit is
// (nil, nil); the caller proceeds without reference data.
func (v *Verifier) CrossCheck(ctx context.Context, bundle artwork.Bundle) (*reference.Result, error) {
	for _, candidate := range DeriveCandidates(bundle) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		result, err := v.lookup.Search(ctx, candidate)
		if err != nil {
			v.logger.Debug("candidate lookup failed",
				slog.String("title", candidate.Title),
				logging.Error(err))
			continue
		}
		if result != nil {
			return result, nil
		}
	}
	return nil, nil
}

// DeriveCandidates produces the lookup permutations for a bundle, most
// specific first. Unresolved sentinel fields are left out of candidates
// entirely.
func DeriveCandidates(bundle artwork.Bundle) []reference.Candidate {
	title := strings.TrimSpace(bundle.Title)
	artist := strings.TrimSpace(bundle.Artist)
	year := strings.TrimSpace(bundle.Year)
	if artwork.IsUnresolved(title) {
		return nil
	}
	if artwork.IsUnresolved(artist) {
		artist = ""
	}

	var candidates []reference.Candidate
	add := func(c reference.Candidate) {
		for _, existing := range candidates {
			if existing == c {
				return
			}
		}
		candidates = append(candidates, c)
	}

	add(reference.Candidate{Title: title, Artist: artist, Year: year})
	add(reference.Candidate{Title: title, Artist: artist})
	if cleaned := identity.CleanTitle(title); cleaned != title {
		add(reference.Candidate{Title: cleaned, Artist: artist})
	}
	add(reference.Candidate{Title: title})
	return candidates
}

// Apply merges a reference hit into a bundle. Populated non-sentinel
// fields in the bundle win; only gaps are filled from the reference.
// Source URLs are unioned, and a corroborating hit nudges confidence up
// by a fixed bonus, capped at 1.0.
func Apply(bundle artwork.Bundle, found *reference.Result) artwork.Bundle {
	if found == nil {
		return bundle
	}

	rec := bundle.Record
	if artwork.IsUnresolved(rec.Title) && !artwork.IsUnresolved(found.Title) {
		rec = rec.WithTitle(found.Title)
	}
	if artwork.IsUnresolved(rec.Artist) && !artwork.IsUnresolved(found.Artist) {
		rec = rec.WithArtist(found.Artist)
	}
	if strings.TrimSpace(rec.Year) == "" && found.Year != "" {
		rec = rec.WithYear(found.Year)
	}
	if strings.TrimSpace(rec.Medium) == "" {
		rec.Medium = found.Medium
	}
	if strings.TrimSpace(rec.Museum) == "" {
		rec.Museum = found.Museum
	}
	if strings.TrimSpace(rec.ReferenceImageURL) == "" {
		rec.ReferenceImageURL = found.ImageURL
	}
	if found.PageURL != "" {
		rec = rec.MergeSources([]string{found.PageURL})
	}

	merged := bundle.WithRecord(rec)
	if Corroborates(bundle, found) {
		merged = merged.WithConfidence(merged.Confidence + corroborationBonus)
	}
	return merged
}

// Corroborates reports whether a reference hit names the same work the
// bundle does, using the identity resolver's approximate matching.
func Corroborates(bundle artwork.Bundle, found *reference.Result) bool {
	if found == nil {
		return false
	}
	if artwork.IsUnresolved(bundle.Title) || artwork.IsUnresolved(found.Title) {
		return false
	}
	generated := identity.Resolve(bundle.Title, bundle.Artist, bundle.Year)
	confirmed := identity.Resolve(found.Title, found.Artist, found.Year)
	return identity.Matches(generated, confirmed, true)
}
