package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	corestore "github.com/CWILDMOUNTAIN/ha-wattwise/core/store"
)

// JSONFileStore persists one JSON document per key as a file in dir.
// Writes replace the whole file; there is no cross-document
// transactionality.
type JSONFileStore struct {
	dir string
}

// NewJSONFileStore creates dir if needed and returns a store over it.
func NewJSONFileStore(dir string) (*JSONFileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("store dir %s: %w", dir, err)
	}
	return &JSONFileStore{dir: dir}, nil
}

func (s *JSONFileStore) path(key string) string {
	// Keys are logical names, not paths.
	safe := strings.ReplaceAll(key, string(filepath.Separator), "_")
	return filepath.Join(s.dir, safe+".json")
}

func (s *JSONFileStore) Load(key string, doc any) error {
	raw, err := os.ReadFile(s.path(key))
	if os.IsNotExist(err) {
		return corestore.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("load %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, doc); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

func (s *JSONFileStore) Save(key string, doc any) error {
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	tmp := s.path(key) + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	if err := os.Rename(tmp, s.path(key)); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

var _ corestore.Store = (*JSONFileStore)(nil)
