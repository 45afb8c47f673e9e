// Package photos stores captured artwork photos on disk and prepares them
// for the vision service: downscaling oversized captures and computing the
// blurhash placeholder history entries carry.
package photos

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"lumen/internal/services"
)

// Store manages photo files under a single directory. Safe for concurrent
// use.
type Store struct {
	dir string
	mu  sync.RWMutex
}

// NewStore creates a photo store rooted at dir, creating it if needed.
func NewStore(dir string) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, services.Wrap(services.ErrInvalidConfiguration, "photos", "new store", "photo directory cannot be empty", nil)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, services.Wrap(services.ErrInvalidConfiguration, "photos", "new store", "create photo directory", err)
	}
	return &Store{dir: dir}, nil
}

// Path returns the on-disk location for an id without touching the disk.
func (s *Store) Path(id string) string {
	return filepath.Join(s.dir, id+".jpg")
}

// Save writes JPEG bytes for an id atomically and returns the file path.
// A crash mid-write leaves either the previous content or none, never a
// truncated file.
func (s *Store) Save(id string, jpeg []byte) (string, error) {
	if strings.TrimSpace(id) == "" {
		return "", services.Wrap(services.ErrImageProcessing, "photos", "save", "empty photo id", nil)
	}
	if len(jpeg) == 0 {
		return "", services.Wrap(services.ErrImageProcessing, "photos", "save", "empty photo data", nil)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.Path(id)
	tmp, err := os.CreateTemp(s.dir, ".photo-*.tmp")
	if err != nil {
		return "", services.Wrap(services.ErrImageProcessing, "photos", "save", "create temp file", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(jpeg); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", services.Wrap(services.ErrImageProcessing, "photos", "save", "write photo", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", services.Wrap(services.ErrImageProcessing, "photos", "save", "close photo", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return "", services.Wrap(services.ErrImageProcessing, "photos", "save", "rename photo", err)
	}
	return path, nil
}

// Get reads the stored bytes for an id.
func (s *Store) Get(id string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.Path(id))
	if err != nil {
		return nil, services.Wrap(services.ErrImageProcessing, "photos", "get", "read photo", err)
	}
	return data, nil
}

// Exists reports whether a photo file is present for an id.
func (s *Store) Exists(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, err := os.Stat(s.Path(id))
	return err == nil
}

// Delete removes a photo file. Deleting a missing photo is not an error.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.Path(id)); err != nil && !os.IsNotExist(err) {
		return services.Wrap(services.ErrImageProcessing, "photos", "delete", "remove photo", err)
	}
	return nil
}
