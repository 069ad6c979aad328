package local

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

const ext = ".json"

// Store provides thread-safe JSON document storage. Documents are grouped
// into collections (directories) and written atomically via rename.
type Store struct {
	basePath string
	mu       sync.RWMutex
}

// NewStore creates a new local JSON store
func NewStore(basePath string) (*Store, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}
	return &Store{basePath: basePath}, nil
}

// Path returns the store root
func (s *Store) Path() string {
	return s.basePath
}

// Save persists a document
func (s *Store) Save(collection, id string, data any) error {
	if err := validName(collection, id); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return writeJSON(filepath.Join(s.basePath, collection), id+ext, data)
}

// Load reads a document into data
func (s *Store) Load(collection, id string, data any) error {
	if err := validName(collection, id); err != nil {
		return err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return readJSON(filepath.Join(s.basePath, collection, id+ext), data)
}

// Delete removes a document
func (s *Store) Delete(collection, id string) error {
	if err := validName(collection, id); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.basePath, collection, id+ext)
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("remove file: %w", err)
	}
	// nested documents (SaveDir) live beside the file
	if err := os.RemoveAll(filepath.Join(s.basePath, collection, id)); err != nil {
		return fmt.Errorf("remove nested documents: %w", err)
	}
	return nil
}

// List returns all document IDs in a collection, sorted
func (s *Store) List(collection string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return listJSON(filepath.Join(s.basePath, collection))
}

// Exists checks if a document exists
func (s *Store) Exists(collection, id string) bool {
	if validName(collection, id) != nil {
		return false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	_, err := os.Stat(filepath.Join(s.basePath, collection, id+ext))
	return err == nil
}

// SaveDir saves a nested document under collection/id/subdir
func (s *Store) SaveDir(collection, id, subdir, filename string, data any) error {
	if err := validName(collection, id, subdir, filename); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return writeJSON(filepath.Join(s.basePath, collection, id, subdir), filename+ext, data)
}

// LoadDir loads a nested document
func (s *Store) LoadDir(collection, id, subdir, filename string, data any) error {
	if err := validName(collection, id, subdir, filename); err != nil {
		return err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return readJSON(filepath.Join(s.basePath, collection, id, subdir, filename+ext), data)
}

// ListDir lists nested document names, sorted
func (s *Store) ListDir(collection, id, subdir string) ([]string, error) {
	if err := validName(collection, id, subdir); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return listJSON(filepath.Join(s.basePath, collection, id, subdir))
}

func validName(parts ...string) error {
	for _, p := range parts {
		if p == "" || p == "." || p == ".." || strings.ContainsAny(p, `/\`) {
			return fmt.Errorf("%w: %q", ErrInvalidName, p)
		}
	}
	return nil
}

func writeJSON(dir, name string, data any) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create collection directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+name+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	encoder := json.NewEncoder(tmp)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		tmp.Close()
		return fmt.Errorf("encode json: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmp.Name(), filepath.Join(dir, name)); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

func readJSON(path string, data any) error {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("open file: %w", err)
	}
	defer file.Close()

	if err := json.NewDecoder(file).Decode(data); err != nil {
		return fmt.Errorf("decode json: %w", err)
	}
	return nil
}

func listJSON(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("read directory: %w", err)
	}

	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || filepath.Ext(name) != ext {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, ext))
	}
	sort.Strings(ids)
	return ids, nil
}
