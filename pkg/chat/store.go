package chat

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// FileStore persists conversation memory as a single human-formatted
// JSON document, rewritten in full on every save.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (fs *FileStore) Save(snapshot Snapshot) error {
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal history: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(fs.path), 0755); err != nil {
		return fmt.Errorf("create history dir: %w", err)
	}

	// Write-then-rename so a crash mid-write never truncates the
	// previous snapshot.
	tmp := fs.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("write history: %w", err)
	}
	if err := os.Rename(tmp, fs.path); err != nil {
		return fmt.Errorf("replace history: %w", err)
	}
	return nil
}

// Load reads the whole snapshot. A missing file is an empty snapshot,
// not an error.
func (fs *FileStore) Load() (Snapshot, error) {
	data, err := os.ReadFile(fs.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Snapshot{}, nil
		}
		return nil, fmt.Errorf("read history: %w", err)
	}

	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("parse history: %w", err)
	}
	return snapshot, nil
}
