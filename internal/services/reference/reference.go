// Package reference resolves artwork candidates against public reference
// catalogs. Providers are consulted in a configured priority order and the
// first one that returns a record wins; providers that find nothing return
// nil rather than an error.
package reference

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"lumen/internal/config"
	"lumen/internal/logging"
)

const defaultTimeout = 5 * time.Second

// Candidate names the artwork a lookup should try to confirm.
type Candidate struct {
	Title  string
	Artist string
	Year   string
}

// Empty reports whether the candidate carries nothing searchable.
func (c Candidate) Empty() bool {
	return strings.TrimSpace(c.Title) == "" && strings.TrimSpace(c.Artist) == ""
}

// Result is one reference hit together with the provider that produced it.
type Result struct {
	Provider string
	Title    string
	Artist   string
	Year     string
	Medium   string
	Museum   string
	PageURL  string
	ImageURL string
}

// Provider searches one external catalog for a candidate.
type Provider interface {
	Name() string
	Search(ctx context.Context, candidate Candidate) (*Result, error)
}

// Lookup fans a candidate out to providers in priority order.
type Lookup struct {
	providers []Provider
	logger    *slog.Logger
}

// NewLookup builds a lookup from the configured provider order. Unknown
// names are rejected by config validation before this point.
func NewLookup(cfg config.Reference, logger *slog.Logger) *Lookup {
	if logger == nil {
		logger = logging.NewNop()
	}
	timeout := defaultTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}

	providers := make([]Provider, 0, len(cfg.Order))
	for _, name := range cfg.Order {
		switch name {
		case "museum":
			providers = append(providers, NewMuseumProvider(cfg.MuseumBaseURL, timeout))
		case "encyclopedia":
			providers = append(providers, NewEncyclopediaProvider(cfg.EncyclopediaBaseURL, timeout))
		}
	}
	return &Lookup{providers: providers, logger: logger}
}

// NewLookupWithProviders builds a lookup over an explicit provider list.
func NewLookupWithProviders(logger *slog.Logger, providers ...Provider) *Lookup {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Lookup{providers: providers, logger: logger}
}

// Search consults providers in order and returns the first hit. A provider
// error does not fail the lookup; the next provider is tried. Exhausting
// all providers without a hit returns (nil, nil).
func (l *Lookup) Search(ctx context.Context, candidate Candidate) (*Result, error) {
	if candidate.Empty() {
		return nil, nil
	}
	for _, provider := range l.providers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		result, err := provider.Search(ctx, candidate)
		if err != nil {
			l.logger.Warn("reference provider failed",
				slog.String("provider", provider.Name()),
				logging.Error(err))
			continue
		}
		if result != nil {
			result.Provider = provider.Name()
			return result, nil
		}
	}
	return nil, nil
}
