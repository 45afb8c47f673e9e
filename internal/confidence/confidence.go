// Package confidence maps numeric recognition scores to the discrete tiers
// that gate caching, verification, and narration presentation.
package confidence

// Level is the discrete confidence tier derived from a recognition score.
// It is derived on demand and never stored.
type Level string

const (
	High   Level = "high"
	Medium Level = "medium"
	Low    Level = "low"
)

// Template hints which narration framing the presentation layer should
// request for a given tier.
type Template string

const (
	// TemplateFull is the unqualified narration.
	TemplateFull Template = "full"
	// TemplateDisclaimer wraps the narration in an uncertainty disclaimer.
	TemplateDisclaimer Template = "disclaimer"
	// TemplateFallback is the apologetic could-not-identify framing.
	TemplateFallback Template = "fallback"
)

// CachePersistenceThreshold is the minimum confidence for a bundle to be
// eligible for shared cache persistence.
const CachePersistenceThreshold = 0.8

// Classify maps a recognition score in [0,1] to its tier: high when the
// score is at least 0.8, medium in [0.5, 0.8), low otherwise.
func Classify(score float64) Level {
	switch {
	case score >= CachePersistenceThreshold:
		return High
	case score >= 0.5:
		return Medium
	default:
		return Low
	}
}

// CacheEligible reports whether bundles at this tier may be persisted to
// the shared cache.
func (l Level) CacheEligible() bool {
	return l == High
}

// AsyncVerification reports whether verification runs as a detached side
// task (high tier) instead of blocking the pipeline.
func (l Level) AsyncVerification() bool {
	return l == High
}

// NarrationTemplate returns the presentation template hint for this tier.
func (l Level) NarrationTemplate() Template {
	switch l {
	case High:
		return TemplateFull
	case Medium:
		return TemplateDisclaimer
	default:
		return TemplateFallback
	}
}
