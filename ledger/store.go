/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// FileStore persists an exported ledger as indented JSON.
type FileStore struct {
	Path string
}

// Save writes data to a temporary file next to Path and renames it into
// place, so a crash never leaves a truncated score file.
func (s FileStore) Save(data map[string]map[string]int) error {
	body, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("encode scores: %w", err)
	}

	dir := filepath.Dir(s.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create score dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.Path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp score file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(append(body, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("write scores: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close scores: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.Path); err != nil {
		return fmt.Errorf("replace scores: %w", err)
	}

	return nil
}

// Load reads a previously saved ledger. A missing file yields an empty map.
func (s FileStore) Load() (map[string]map[string]int, error) {
	body, err := os.ReadFile(s.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]map[string]int{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read scores: %w", err)
	}

	var data map[string]map[string]int
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("decode scores: %w", err)
	}
	if data == nil {
		data = map[string]map[string]int{}
	}

	return data, nil
}
