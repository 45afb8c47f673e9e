// Package history persists completed recognition sessions in an ordered
// local log backed by SQLite. Entries are append-only: created once per
// session, never mutated, deleted only by explicit user action.
//
// Rows carry a schema version. Older installations stored the captured
// photo inline in the row; loading such a row migrates it exactly once to
// a file-backed reference (see migrate.go).
package history

import (
	"time"

	"lumen/internal/artwork"
)

// Schema versions for stored rows. Legacy rows carry the photo inline and
// no language tag; current rows reference a photo file and record the
// narration language explicitly.
const (
	legacySchemaVersion  = 1
	currentSchemaVersion = 2
)

// defaultLanguage is assumed for legacy rows, which predate language tags.
const defaultLanguage = "en"

// Entry is one completed recognition session.
type Entry struct {
	ID                 string
	Artwork            artwork.Record
	Narration          string
	ArtistIntroduction string
	// Language is the BCP-47 tag the narration was generated in.
	Language      string
	Confidence    float64
	CreatedAt     time.Time
	PhotoPath     string
	PhotoBlurhash string
}
