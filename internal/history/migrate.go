package history

import (
	"context"
	"embed"
	"fmt"
	"log/slog"
	"sort"
	"strings"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

type migration struct {
	version string
	sql     string
}

func loadMigrations() ([]migration, error) {
	entries, err := migrationFS.ReadDir("migrations")
	if err != nil {
		return nil, fmt.Errorf("read migrations dir: %w", err)
	}
	versions := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		versions = append(versions, entry.Name())
	}
	sort.Strings(versions)

	migrations := make([]migration, 0, len(versions))
	for _, name := range versions {
		data, err := migrationFS.ReadFile("migrations/" + name)
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", name, err)
		}
		version := strings.TrimSuffix(name, ".sql")
		migrations = append(migrations, migration{version: version, sql: string(data)})
	}
	return migrations, nil
}

func (s *Store) applyMigrations(ctx context.Context) error {
	migrations, err := loadMigrations()
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS schema_migrations (version TEXT PRIMARY KEY)"); err != nil {
		return fmt.Errorf("ensure schema_migrations: %w", err)
	}

	for _, migration := range migrations {
		var count int
		row := tx.QueryRowContext(ctx, "SELECT COUNT(1) FROM schema_migrations WHERE version = ?", migration.version)
		if err := row.Scan(&count); err != nil {
			return fmt.Errorf("scan migration version: %w", err)
		}
		if count > 0 {
			continue
		}
		if _, err := tx.ExecContext(ctx, migration.sql); err != nil {
			return fmt.Errorf("apply migration %s: %w", migration.version, err)
		}
		if _, err := tx.ExecContext(ctx, "INSERT INTO schema_migrations (version) VALUES (?)", migration.version); err != nil {
			return fmt.Errorf("record migration %s: %w", migration.version, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migrations: %w", err)
	}
	return nil
}

// schemaDecoders dispatches row decoding by stored schema version. Adding
// a schema means adding a version constant and an entry here.
var schemaDecoders = map[int]func(context.Context, *Store, rawEntry) (Entry, error){
	legacySchemaVersion:  decodeLegacyEntry,
	currentSchemaVersion: decodeCurrentEntry,
}

func decodeCurrentEntry(_ context.Context, _ *Store, raw rawEntry) (Entry, error) {
	rec, err := raw.record()
	if err != nil {
		return Entry{}, err
	}
	language := raw.language.String
	if strings.TrimSpace(language) == "" {
		language = defaultLanguage
	}
	return Entry{
		ID:                 raw.id,
		Artwork:            rec,
		Narration:          raw.narration,
		ArtistIntroduction: raw.artistIntroduction.String,
		Language:           language,
		Confidence:         raw.confidence.Float64,
		CreatedAt:          raw.createdTime(),
		PhotoPath:          raw.photoPath.String,
		PhotoBlurhash:      raw.photoBlurhash.String,
	}, nil
}

// decodeLegacyEntry upgrades a legacy row in place: the inline photo blob
// is written once to the photo store, the row is rewritten as the current
// schema, and the in-memory entry comes back already normalized. A second
// load of the same entry takes the current-schema path and performs no
// writes.
func decodeLegacyEntry(ctx context.Context, s *Store, raw rawEntry) (Entry, error) {
	photoPath := raw.photoPath.String
	if len(raw.photoInline) > 0 && s.photos != nil {
		path, err := s.photos.Save(raw.id, raw.photoInline)
		if err != nil {
			return Entry{}, fmt.Errorf("history entry %s: extract legacy photo: %w", raw.id, err)
		}
		photoPath = path
	}

	language := raw.language.String
	if strings.TrimSpace(language) == "" {
		language = defaultLanguage
	}

	_, err := s.db.ExecContext(ctx,
		`UPDATE history_entries
         SET schema_version = ?, photo_path = ?, photo_inline = NULL, language = ?
         WHERE id = ?`,
		currentSchemaVersion, nullableString(photoPath), language, raw.id)
	if err != nil {
		return Entry{}, fmt.Errorf("history entry %s: rewrite legacy row: %w", raw.id, err)
	}
	s.logger.Info("migrated legacy history entry",
		slog.String("id", raw.id),
		slog.Bool("photo_extracted", len(raw.photoInline) > 0))

	raw.schemaVersion = currentSchemaVersion
	raw.photoPath.String = photoPath
	raw.photoPath.Valid = photoPath != ""
	raw.language.String = language
	raw.language.Valid = true
	raw.photoInline = nil
	return decodeCurrentEntry(ctx, s, raw)
}
