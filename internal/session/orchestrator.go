// Package session drives the artwork recognition pipeline: quick
// identification, cache lookup, narration generation, verification, and
// persistence, all bounded by a single wall-clock deadline per session.
package session

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"lumen/internal/artwork"
	"lumen/internal/confidence"
	"lumen/internal/history"
	"lumen/internal/identity"
	"lumen/internal/logging"
	"lumen/internal/photos"
	"lumen/internal/services"
	"lumen/internal/services/artcache"
	"lumen/internal/services/reference"
	"lumen/internal/services/vision"
	"lumen/internal/verification"
)

// VisionClient is the vision/narration surface the pipeline consumes.
type VisionClient interface {
	QuickIdentify(ctx context.Context, imageJPEG []byte) (vision.Guess, error)
	Generate(ctx context.Context, imageJPEG []byte, lang string) (artwork.Bundle, error)
	GenerateStreaming(ctx context.Context, imageJPEG []byte, lang string, onDelta func(accumulated int)) (artwork.Bundle, error)
}

// CacheClient is the backend cache surface the pipeline consumes.
type CacheClient interface {
	FindArtwork(ctx context.Context, identityHash string) (*artcache.CachedArtwork, error)
	SaveArtwork(ctx context.Context, identityHash string, bundle artwork.Bundle) error
	IncrementViewCount(ctx context.Context, id string) error
	FindArtistIntroduction(ctx context.Context, artistName string) (*artcache.ArtistIntroduction, error)
	SaveArtistIntroduction(ctx context.Context, intro artcache.ArtistIntroduction) error
}

// Verifier cross-checks a bundle against reference catalogs.
type Verifier interface {
	CrossCheck(ctx context.Context, bundle artwork.Bundle) (*reference.Result, error)
}

// AudioPreparer pre-warms narration audio.
type AudioPreparer interface {
	Prepare(ctx context.Context, text, lang string) (string, error)
}

// HistoryAppender records completed sessions.
type HistoryAppender interface {
	Append(ctx context.Context, entry history.Entry) (history.Entry, error)
}

// minGenerateBudget is the least remaining wall-clock time generation may
// start with. Below this the session times out up front rather than
// launching a request that cannot complete.
const minGenerateBudget = 2 * time.Second

// Settings carries the per-session timing and language configuration.
type Settings struct {
	Deadline        time.Duration
	GenerateTimeout time.Duration
	Language        string
	MaxImageEdge    int
}

// Deps are the collaborating clients, injected so tests can substitute
// doubles. Cache, Verifier, Audio, and History may be nil; the matching
// stages are skipped.
type Deps struct {
	Vision   VisionClient
	Cache    CacheClient
	Verifier Verifier
	Audio    AudioPreparer
	Photos   *photos.Store
	History  HistoryAppender
	Logger   *slog.Logger
}

// Result is a completed session.
type Result struct {
	SessionID string
	Bundle    artwork.Bundle
	Identity  *identity.Identity
	FromCache bool
	PhotoPath string
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithClock overrides the time source for deadline checks.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// WithRegistry shares a background-task registry across orchestrators.
func WithRegistry(registry *Registry) Option {
	return func(o *Orchestrator) {
		if registry != nil {
			o.registry = registry
		}
	}
}

// Orchestrator runs recognition sessions. Safe to reuse across sessions;
// starting a new session supersedes the background work of earlier ones.
type Orchestrator struct {
	settings Settings
	deps     Deps
	logger   *slog.Logger
	registry *Registry
	now      func() time.Time
}

// NewOrchestrator constructs a session orchestrator.
func NewOrchestrator(settings Settings, deps Deps, opts ...Option) *Orchestrator {
	if settings.Deadline <= 0 {
		settings.Deadline = 20 * time.Second
	}
	if settings.GenerateTimeout <= 0 || settings.GenerateTimeout > settings.Deadline {
		settings.GenerateTimeout = 12 * time.Second
	}
	if settings.Language == "" {
		settings.Language = "en"
	}
	logger := deps.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	o := &Orchestrator{
		settings: settings,
		deps:     deps,
		logger:   logger,
		registry: NewRegistry(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Registry exposes the background-task registry, mainly so callers can
// wait for detached work in tests and on shutdown.
func (o *Orchestrator) Registry() *Registry {
	return o.registry
}

// session is the mutable state of one in-flight run. It is only ever
// touched from the Run goroutine; results computed concurrently are
// marshaled back before being applied.
type session struct {
	id         string
	start      time.Time
	image      []byte
	identity   *identity.Identity
	cachedID   string
	cachedBio  *artcache.ArtistIntroduction
	onProgress ProgressFunc
}

func (o *Orchestrator) elapsed(s *session) time.Duration {
	return o.now().Sub(s.start)
}

func (o *Orchestrator) remaining(s *session) time.Duration {
	return o.settings.Deadline - o.elapsed(s)
}

// checkBudget aborts the pipeline with a timeout before a stage starts if
// the global deadline has already passed.
func (o *Orchestrator) checkBudget(s *session, stage string) error {
	if o.remaining(s) <= 0 {
		return services.Wrap(services.ErrTimeout, stage, "budget check", "session deadline exceeded", nil)
	}
	return nil
}

func (s *session) emit(p Progress) {
	p.SessionID = s.id
	if s.onProgress != nil {
		s.onProgress(p)
	}
}

// Run executes one recognition session over raw captured image bytes.
// Progress transitions are delivered via onProgress. On failure the last
// emitted progress carries the failure kind; any provisional content shown
// so far is deliberately left to the presentation layer to keep or clear.
func (o *Orchestrator) Run(ctx context.Context, rawImage []byte, onProgress ProgressFunc) (Result, error) {
	s := &session{
		id:         uuid.NewString(),
		start:      o.now(),
		onProgress: onProgress,
	}
	o.registry.Supersede(s.id)

	ctx = services.WithSessionID(ctx, s.id)
	ctx, cancel := context.WithTimeout(ctx, o.settings.Deadline)
	defer cancel()

	logger := o.logger.With(slog.String(logging.FieldSessionID, s.id))

	result, err := o.run(ctx, s, rawImage, logger)
	if err != nil {
		kind := services.Classify(err)
		logger.Error("session failed",
			slog.String("kind", string(kind)),
			logging.Error(err))
		s.emit(Progress{Stage: StageFailed, Failure: kind})
		return Result{SessionID: s.id}, err
	}
	return result, nil
}

func (o *Orchestrator) run(ctx context.Context, s *session, rawImage []byte, logger *slog.Logger) (Result, error) {
	prepared, err := photos.PrepareForUpload(rawImage, o.settings.MaxImageEdge)
	if err != nil {
		return Result{}, err
	}
	s.image = prepared

	// QuickIdentify. Failure is non-fatal: with no identity to key on the
	// pipeline skips the cache and generates directly.
	s.emit(Progress{Stage: StageIdentifying})
	if err := o.checkBudget(s, "quick identify"); err != nil {
		return Result{}, err
	}
	guess := o.quickIdentify(ctx, s, logger)

	if guess.Usable() {
		id := identity.Resolve(guess.Title, guess.Artist, guess.Year)
		s.identity = &id
		if cached := o.lookupCache(ctx, s, guess, logger); cached != nil {
			return o.finishFromCache(ctx, s, *cached, logger)
		}
	}

	bundle, err := o.generate(ctx, s, logger)
	if err != nil {
		return Result{}, err
	}

	bundle, err = o.verifyAndMerge(ctx, s, bundle, logger)
	if err != nil {
		return Result{}, err
	}

	bundle = o.persist(ctx, s, bundle, logger)
	return o.finish(ctx, s, bundle, false, logger)
}

func (o *Orchestrator) quickIdentify(ctx context.Context, s *session, logger *slog.Logger) vision.Guess {
	guess, err := o.deps.Vision.QuickIdentify(ctx, s.image)
	if err != nil {
		logger.Warn("quick identify failed, skipping cache", logging.Error(err))
		return vision.Guess{}
	}
	return guess
}

// lookupCache issues the two cache reads concurrently: the artwork bundle
// by identity hash and the artist biography by name. Either read failing
// is a miss for that read, never a pipeline error.
func (o *Orchestrator) lookupCache(ctx context.Context, s *session, guess vision.Guess, logger *slog.Logger) *artcache.CachedArtwork {
	if o.deps.Cache == nil {
		return nil
	}
	s.emit(Progress{Stage: StageLoadingCache})
	if err := o.checkBudget(s, "cache lookup"); err != nil {
		return nil
	}

	artworkCh := make(chan *artcache.CachedArtwork, 1)
	bioCh := make(chan *artcache.ArtistIntroduction, 1)

	go func() {
		cached, err := o.deps.Cache.FindArtwork(ctx, s.identity.Hash)
		if err != nil {
			logger.Warn("cache artwork read failed, treating as miss", logging.Error(err))
			cached = nil
		}
		artworkCh <- cached
	}()
	go func() {
		if artwork.IsUnresolved(guess.Artist) {
			bioCh <- nil
			return
		}
		bio, err := o.deps.Cache.FindArtistIntroduction(ctx, guess.Artist)
		if err != nil {
			logger.Warn("cache biography read failed, treating as miss", logging.Error(err))
			bio = nil
		}
		bioCh <- bio
	}()

	cached := <-artworkCh
	s.cachedBio = <-bioCh

	if cached != nil {
		s.cachedID = cached.ID
	}
	return cached
}

// finishFromCache assembles the final bundle from a cache hit. The
// separately fetched biography is authoritative over any biography
// embedded in the cached artwork record, since biographies are keyed by
// artist, not artwork.
func (o *Orchestrator) finishFromCache(ctx context.Context, s *session, cached artcache.CachedArtwork, logger *slog.Logger) (Result, error) {
	bundle := cached.Bundle
	if s.cachedBio != nil {
		bundle = bundle.WithArtistIntroduction(s.cachedBio.Introduction)
	}

	if cached.ID != "" {
		id := cached.ID
		o.registry.Spawn(ctx, s.id, func(taskCtx context.Context) {
			if err := o.deps.Cache.IncrementViewCount(taskCtx, id); err != nil {
				logger.Debug("view count increment failed", logging.Error(err))
			}
		})
	}

	logger.Info("cache hit", slog.String(logging.FieldIdentityHash, s.identity.Hash))
	return o.finish(ctx, s, bundle, true, logger)
}

// generate requests the narration bundle, streaming first. Streamed
// partial content only drives the progress signal. A streaming timeout
// fails immediately; any other streaming failure earns exactly one
// non-streaming fallback within the remaining global budget.
func (o *Orchestrator) generate(ctx context.Context, s *session, logger *slog.Logger) (artwork.Bundle, error) {
	s.emit(Progress{Stage: StageGenerating})
	if err := o.checkBudget(s, "generate"); err != nil {
		return artwork.Bundle{}, err
	}
	if o.remaining(s) < minGenerateBudget {
		// Too little budget left to produce anything useful; time out now
		// instead of starting a generation that cannot finish.
		return artwork.Bundle{}, services.Wrap(services.ErrTimeout, "generate", "budget check", "insufficient budget for generation", nil)
	}

	budget := o.settings.GenerateTimeout
	if remaining := o.remaining(s); remaining < budget {
		budget = remaining
	}
	streamCtx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	bundle, err := o.deps.Vision.GenerateStreaming(streamCtx, s.image, o.settings.Language, func(accumulated int) {
		s.emit(Progress{Stage: StageGenerating, GeneratedChars: accumulated})
	})
	if err == nil {
		return bundle, nil
	}
	if errors.Is(err, services.ErrTimeout) {
		// A fallback would double latency against an already-blown
		// sub-budget; surface the timeout instead.
		return artwork.Bundle{}, err
	}

	logger.Warn("streaming generation failed, falling back", logging.Error(err))
	if err := o.checkBudget(s, "generate fallback"); err != nil {
		return artwork.Bundle{}, err
	}
	return o.deps.Vision.Generate(ctx, s.image, o.settings.Language)
}

// verifyAndMerge runs the reference cross-check. High-confidence bundles
// verify on a detached task whose outcome only feeds the cache for future
// sessions; the bundle being shown now is never mutated. Medium and low
// confidence verify synchronously and merge before finalizing.
func (o *Orchestrator) verifyAndMerge(ctx context.Context, s *session, bundle artwork.Bundle, logger *slog.Logger) (artwork.Bundle, error) {
	if o.deps.Verifier == nil {
		return bundle, nil
	}
	level := confidence.Classify(bundle.Confidence)

	if level.AsyncVerification() {
		o.spawnAsyncVerify(ctx, s, bundle, logger)
		return bundle, nil
	}

	s.emit(Progress{Stage: StageVerifying})
	if err := o.checkBudget(s, "verify"); err != nil {
		return artwork.Bundle{}, err
	}
	found, err := o.deps.Verifier.CrossCheck(ctx, bundle)
	if err != nil {
		logger.Warn("verification failed, proceeding unverified", logging.Error(err))
		return bundle, nil
	}
	return verification.Apply(bundle, found), nil
}

// spawnAsyncVerify cross-checks a high-confidence bundle off the session's
// critical path. A corroborated merge that clears the persistence bar is
// written to the cache for future sessions.
func (o *Orchestrator) spawnAsyncVerify(ctx context.Context, s *session, bundle artwork.Bundle, logger *slog.Logger) {
	var hash string
	if s.identity != nil {
		hash = s.identity.Hash
	}
	o.registry.Spawn(ctx, s.id, func(taskCtx context.Context) {
		found, err := o.deps.Verifier.CrossCheck(taskCtx, bundle)
		if err != nil || found == nil {
			return
		}
		merged := verification.Apply(bundle, found)
		if o.deps.Cache == nil || hash == "" || !merged.CachePersistable() {
			return
		}
		if err := o.deps.Cache.SaveArtwork(taskCtx, hash, merged); err != nil {
			logger.Debug("async verify cache write failed", logging.Error(err))
		}
	})
}

// persist writes a high-confidence bundle back to the shared cache keyed
// by identity hash. An already-cached biography for this artist is
// preferred over the freshly generated one so the cache keeps exactly one
// canonical biography per artist.
func (o *Orchestrator) persist(ctx context.Context, s *session, bundle artwork.Bundle, logger *slog.Logger) artwork.Bundle {
	if s.cachedBio != nil {
		bundle = bundle.WithArtistIntroduction(s.cachedBio.Introduction)
	}
	if o.deps.Cache == nil || !bundle.CachePersistable() {
		return bundle
	}

	if s.identity == nil {
		id := identity.Resolve(bundle.Title, bundle.Artist, bundle.Year)
		s.identity = &id
	}

	s.emit(Progress{Stage: StagePersisting})
	if err := o.checkBudget(s, "persist"); err != nil {
		return bundle
	}

	if s.cachedBio == nil && !artwork.IsUnresolved(bundle.Artist) {
		if bio, err := o.deps.Cache.FindArtistIntroduction(ctx, bundle.Artist); err == nil && bio != nil {
			bundle = bundle.WithArtistIntroduction(bio.Introduction)
		} else if bundle.ArtistIntroduction != "" {
			intro := artcache.ArtistIntroduction{
				ArtistName:   bundle.Artist,
				Introduction: bundle.ArtistIntroduction,
				Language:     o.settings.Language,
			}
			if err := o.deps.Cache.SaveArtistIntroduction(ctx, intro); err != nil {
				logger.Debug("biography cache write failed", logging.Error(err))
			}
		}
	}

	if err := o.deps.Cache.SaveArtwork(ctx, s.identity.Hash, bundle); err != nil {
		logger.Warn("cache write failed", logging.Error(err))
	}
	return bundle
}

// finish stores the photo, appends the history entry, kicks off audio
// pre-generation, and emits the terminal Ready progress.
func (o *Orchestrator) finish(ctx context.Context, s *session, bundle artwork.Bundle, fromCache bool, logger *slog.Logger) (Result, error) {
	result := Result{
		SessionID: s.id,
		Bundle:    bundle,
		Identity:  s.identity,
		FromCache: fromCache,
	}

	if o.deps.Photos != nil {
		path, err := o.deps.Photos.Save(s.id, s.image)
		if err != nil {
			logger.Warn("photo store failed", logging.Error(err))
		} else {
			result.PhotoPath = path
		}
	}

	if o.deps.History != nil {
		entry := history.Entry{
			ID:                 s.id,
			Artwork:            bundle.Record,
			Narration:          bundle.Narration,
			ArtistIntroduction: bundle.ArtistIntroduction,
			Language:           o.settings.Language,
			Confidence:         bundle.Confidence,
			CreatedAt:          o.now().UTC(),
			PhotoPath:          result.PhotoPath,
		}
		if result.PhotoPath != "" {
			if hash, err := photos.Blurhash(s.image); err == nil {
				entry.PhotoBlurhash = hash
			}
		}
		if _, err := o.deps.History.Append(ctx, entry); err != nil {
			logger.Warn("history append failed", logging.Error(err))
		}
	}

	if o.deps.Audio != nil && bundle.HasNarration() {
		narration := bundle.Narration
		o.registry.Spawn(ctx, s.id, func(taskCtx context.Context) {
			if _, err := o.deps.Audio.Prepare(taskCtx, narration, o.settings.Language); err != nil {
				logger.Debug("audio pre-generation failed", logging.Error(err))
			}
		})
	}

	s.emit(Progress{Stage: StageReady, Bundle: &bundle})
	logger.Info("session complete",
		slog.Bool("from_cache", fromCache),
		slog.Float64("confidence", bundle.Confidence))
	return result, nil
}
