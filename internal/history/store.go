package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"lumen/internal/artwork"
	"lumen/internal/config"
	"lumen/internal/logging"
	"lumen/internal/photos"
)

// ErrIndexOutOfRange reports a delete index outside the stored log.
var ErrIndexOutOfRange = errors.New("history index out of range")

// Store manages history persistence backed by SQLite. A file lock on the
// database guards against a second process writing the same log.
type Store struct {
	db     *sql.DB
	path   string
	lock   *flock.Flock
	photos *photos.Store
	logger *slog.Logger
}

// Open initializes or connects to the history database, acquires the
// single-writer lock, and applies migrations. Legacy photo blobs are
// extracted into photoStore as rows are loaded.
func Open(cfg *config.Config, photoStore *photos.Store, logger *slog.Logger) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	dbPath := filepath.Join(cfg.Paths.DataDir, "history.db")
	lock := flock.New(dbPath + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire history lock: %w", err)
	}
	if !locked {
		return nil, errors.New("history database is locked by another lumen process")
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		_ = lock.Unlock()
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			_ = lock.Unlock()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath, lock: lock, photos: photoStore, logger: logger}
	if err := store.applyMigrations(context.Background()); err != nil {
		_ = db.Close()
		_ = lock.Unlock()
		return nil, err
	}
	return store, nil
}

// Close releases the database connection and the writer lock.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	var err error
	if s.db != nil {
		err = s.db.Close()
	}
	if s.lock != nil {
		if unlockErr := s.lock.Unlock(); err == nil {
			err = unlockErr
		}
	}
	return err
}

// Append stores a completed session. A missing id or timestamp is filled
// in; the stored entry is returned.
func (s *Store) Append(ctx context.Context, entry Entry) (Entry, error) {
	if strings.TrimSpace(entry.ID) == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if strings.TrimSpace(entry.Language) == "" {
		entry.Language = defaultLanguage
	}

	sourcesJSON, err := json.Marshal(entry.Artwork.Sources)
	if err != nil {
		return Entry{}, fmt.Errorf("marshal sources: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO history_entries (
            id, schema_version, title, artist, year, style, medium, museum,
            sources_json, reference_image_url, recognized, narration,
            artist_introduction, language, confidence, created_at,
            photo_path, photo_blurhash
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		currentSchemaVersion,
		entry.Artwork.Title,
		entry.Artwork.Artist,
		nullableString(entry.Artwork.Year),
		nullableString(entry.Artwork.Style),
		nullableString(entry.Artwork.Medium),
		nullableString(entry.Artwork.Museum),
		string(sourcesJSON),
		nullableString(entry.Artwork.ReferenceImageURL),
		boolToInt(entry.Artwork.Recognized),
		entry.Narration,
		nullableString(entry.ArtistIntroduction),
		entry.Language,
		entry.Confidence,
		entry.CreatedAt.Format(time.RFC3339Nano),
		nullableString(entry.PhotoPath),
		nullableString(entry.PhotoBlurhash),
	)
	if err != nil {
		return Entry{}, fmt.Errorf("insert history entry: %w", err)
	}
	return entry, nil
}

// LoadAll returns every stored entry, most recent first. Rows are decoded
// through the versioned-schema registry, so loading is also where legacy
// rows get migrated.
func (s *Store) LoadAll(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, schema_version, title, artist, year, style, medium, museum,
            sources_json, reference_image_url, recognized, narration,
            artist_introduction, language, confidence, created_at,
            photo_path, photo_blurhash, photo_inline
         FROM history_entries
         ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var raws []rawEntry
	for rows.Next() {
		raw, err := scanRawEntry(rows)
		if err != nil {
			return nil, err
		}
		raws = append(raws, raw)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}

	entries := make([]Entry, 0, len(raws))
	for _, raw := range raws {
		decode, ok := schemaDecoders[raw.schemaVersion]
		if !ok {
			return nil, fmt.Errorf("history entry %s: unsupported schema version %d", raw.id, raw.schemaVersion)
		}
		entry, err := decode(ctx, s, raw)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Delete removes the entry at index into the LoadAll ordering. The photo
// file, if any, is removed alongside the row; nothing else cascades.
func (s *Store) Delete(ctx context.Context, index int) error {
	if index < 0 {
		return ErrIndexOutOfRange
	}

	var id string
	var photoPath sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT id, photo_path FROM history_entries
         ORDER BY created_at DESC, id DESC
         LIMIT 1 OFFSET ?`, index).Scan(&id, &photoPath)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrIndexOutOfRange
	}
	if err != nil {
		return fmt.Errorf("locate history entry: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, "DELETE FROM history_entries WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete history entry: %w", err)
	}
	if photoPath.Valid && s.photos != nil {
		if err := s.photos.Delete(id); err != nil {
			s.logger.Warn("delete history photo", slog.String("id", id), logging.Error(err))
		}
	}
	return nil
}

// Count returns the number of stored entries.
func (s *Store) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM history_entries").Scan(&count); err != nil {
		return 0, fmt.Errorf("count history: %w", err)
	}
	return count, nil
}

// rawEntry is one undecoded row, as stored.
type rawEntry struct {
	id                 string
	schemaVersion      int
	title              string
	artist             string
	year               sql.NullString
	style              sql.NullString
	medium             sql.NullString
	museum             sql.NullString
	sourcesJSON        sql.NullString
	referenceImageURL  sql.NullString
	recognized         int
	narration          string
	artistIntroduction sql.NullString
	language           sql.NullString
	confidence         sql.NullFloat64
	createdAt          string
	photoPath          sql.NullString
	photoBlurhash      sql.NullString
	photoInline        []byte
}

func scanRawEntry(rows *sql.Rows) (rawEntry, error) {
	var raw rawEntry
	err := rows.Scan(
		&raw.id, &raw.schemaVersion, &raw.title, &raw.artist,
		&raw.year, &raw.style, &raw.medium, &raw.museum,
		&raw.sourcesJSON, &raw.referenceImageURL, &raw.recognized,
		&raw.narration, &raw.artistIntroduction, &raw.language,
		&raw.confidence, &raw.createdAt,
		&raw.photoPath, &raw.photoBlurhash, &raw.photoInline,
	)
	if err != nil {
		return rawEntry{}, fmt.Errorf("scan history row: %w", err)
	}
	return raw, nil
}

func (raw rawEntry) record() (artwork.Record, error) {
	var sources []string
	if raw.sourcesJSON.Valid && raw.sourcesJSON.String != "" {
		if err := json.Unmarshal([]byte(raw.sourcesJSON.String), &sources); err != nil {
			return artwork.Record{}, fmt.Errorf("history entry %s: decode sources: %w", raw.id, err)
		}
	}
	return artwork.Record{
		Title:             raw.title,
		Artist:            raw.artist,
		Year:              raw.year.String,
		Style:             raw.style.String,
		Medium:            raw.medium.String,
		Museum:            raw.museum.String,
		Sources:           sources,
		ReferenceImageURL: raw.referenceImageURL.String,
		Recognized:        raw.recognized != 0,
	}, nil
}

func (raw rawEntry) createdTime() time.Time {
	ts, err := time.Parse(time.RFC3339Nano, raw.createdAt)
	if err != nil {
		return time.Time{}
	}
	return ts
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
