package repository

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
)

// JSONFileStore keeps mapping records in a single JSON list file
type JSONFileStore struct {
	mu   sync.Mutex
	path string
}

// NewJSONFileStore creates a store backed by path. Nothing is read or
// written until Load or Save is called.
func NewJSONFileStore(path string) *JSONFileStore {
	return &JSONFileStore{path: path}
}

// Path returns the backing file
func (s *JSONFileStore) Path() string {
	return s.path
}

// Load reads the mapping list. A missing or blank file is initialised to
// an empty list.
func (s *JSONFileStore) Load() ([]Mapping, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil && !os.IsNotExist(err) {
		return nil, errors.Wrapf(err, "failed to read %s", s.path)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		if err := s.write([]Mapping{}); err != nil {
			return nil, err
		}
		return []Mapping{}, nil
	}

	var out []Mapping
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, errors.Wrapf(err, "failed to parse %s", s.path)
	}
	return out, nil
}

// Save replaces the file contents with mappings
func (s *JSONFileStore) Save(mappings []Mapping) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if mappings == nil {
		mappings = []Mapping{}
	}
	return s.write(mappings)
}

func (s *JSONFileStore) write(mappings []Mapping) error {
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return errors.Wrapf(err, "failed to create %s", dir)
		}
	}

	data, err := json.MarshalIndent(mappings, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to encode mappings")
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return errors.Wrapf(err, "failed to write %s", tmp)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return errors.Wrapf(err, "failed to replace %s", s.path)
	}
	return nil
}
