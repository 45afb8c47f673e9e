package session

import (
	"lumen/internal/artwork"
	"lumen/internal/services"
)

// Stage is the tagged pipeline state consumed by the presentation layer.
// Stages are control values, never display text; rendering decides what
// each one looks like.
type Stage int

const (
	StageIdle Stage = iota
	StageIdentifying
	StageLoadingCache
	StageGenerating
	StageVerifying
	StagePersisting
	StageReady
	StageFailed
)

var stageNames = map[Stage]string{
	StageIdle:         "idle",
	StageIdentifying:  "identifying",
	StageLoadingCache: "loading_cache",
	StageGenerating:   "generating",
	StageVerifying:    "verifying",
	StagePersisting:   "persisting",
	StageReady:        "ready",
	StageFailed:       "failed",
}

func (s Stage) String() string {
	if name, ok := stageNames[s]; ok {
		return name
	}
	return "unknown"
}

// Progress is one pipeline transition signal. Bundle is set only on
// StageReady; Failure only on StageFailed. GeneratedChars grows during
// StageGenerating as streamed content accumulates; it drives a progress
// indicator and is never the content itself.
type Progress struct {
	SessionID      string
	Stage          Stage
	GeneratedChars int
	Bundle         *artwork.Bundle
	Failure        services.Kind
}

// ProgressFunc receives pipeline transitions. Implementations must be
// fast; the pipeline calls them inline.
type ProgressFunc func(Progress)
