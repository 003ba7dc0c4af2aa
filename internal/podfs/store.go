package podfs

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// ErrNotFound is returned by Read when no document exists at the path.
var ErrNotFound = errors.New("document not found")

// DecodeError indicates a file exists but does not hold valid JSON.
type DecodeError struct {
	Path string
	Err  error
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Path, e.Err)
}

// Unwrap allows errors.Is and errors.As to reach the underlying error.
func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Store reads and writes JSON documents with atomicity guarantees.
// The zero value is not usable; construct with NewStore.
type Store struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewStore creates a document store.
func NewStore() *Store {
	return &Store{locks: make(map[string]*sync.Mutex)}
}

// WriteAtomic serializes doc and writes it to path via a sibling
// temporary file and a single rename, holding a mutual-exclusion lock
// scoped to the path so concurrent writers of one document serialize.
// Readers opening path at any moment observe either the complete
// prior document or the complete new one. Parent directories are
// created as needed. On failure the temporary file is removed and
// path is left untouched.
func (s *Store) WriteAtomic(path string, doc any) error {
	lock := s.lockFor(path)
	lock.Lock()
	defer lock.Unlock()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create parent directories for %s: %w", path, err)
	}

	data, err := marshal(doc)
	if err != nil {
		return fmt.Errorf("serialize document for %s: %w", path, err)
	}

	// Temp file in the same directory guarantees same-filesystem rename.
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", path, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file for %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("sync temp file for %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file for %s: %w", path, err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename temp file onto %s: %w", path, err)
	}
	return nil
}

// Read parses the document at path into out. Returns ErrNotFound if
// the file is absent and a *DecodeError if its content is not valid
// JSON. Permission and disk errors propagate unchanged.
func (s *Store) Read(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &DecodeError{Path: path, Err: err}
	}
	return nil
}

// ReadDocument is a convenience Read into a generic document map.
func (s *Store) ReadDocument(path string) (map[string]any, error) {
	var doc map[string]any
	if err := s.Read(path, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// lockFor returns the mutex guarding a path, keyed by its cleaned
// absolute form so distinct spellings of one path share a lock.
func (s *Store) lockFor(path string) *sync.Mutex {
	key := path
	if abs, err := filepath.Abs(path); err == nil {
		key = abs
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[key] = lock
	}
	return lock
}

func marshal(doc any) ([]byte, error) {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}
