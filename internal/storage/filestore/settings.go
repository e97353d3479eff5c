package filestore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/ramonehamilton/commander-vault/internal/storage"
)

// SettingsFile is the settings document kept beside the deck files.
const SettingsFile = "settings.json"

// Settings stores JSON-encoded values in a single file.
type Settings struct {
	path string
	mu   sync.Mutex
}

// NewSettings creates settings persisted at dir/settings.json.
func NewSettings(dir string) *Settings {
	return &Settings{path: filepath.Join(dir, SettingsFile)}
}

func (s *Settings) read() (map[string]json.RawMessage, error) {
	values := map[string]json.RawMessage{}
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return values, nil
		}
		return nil, fmt.Errorf("failed to read settings: %w", err)
	}
	if len(data) == 0 {
		return values, nil
	}
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("failed to parse settings: %w", err)
	}
	return values, nil
}

func (s *Settings) write(values map[string]json.RawMessage) error {
	data, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	return writeAtomic(filepath.Dir(s.path), s.path, data)
}

// GetTyped unmarshals the value stored for key into target.
func (s *Settings) GetTyped(ctx context.Context, key string, target interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.read()
	if err != nil {
		return err
	}
	raw, ok := values[key]
	if !ok {
		return fmt.Errorf("%w: %s", storage.ErrSettingNotFound, key)
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("failed to unmarshal setting %s: %w", key, err)
	}
	return nil
}

// Set stores value under key.
func (s *Settings) Set(ctx context.Context, key string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal setting %s: %w", key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.read()
	if err != nil {
		return err
	}
	values[key] = raw
	return s.write(values)
}

// Delete removes key. Deleting a missing key is not an error.
func (s *Settings) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.read()
	if err != nil {
		return err
	}
	if _, ok := values[key]; !ok {
		return nil
	}
	delete(values, key)
	return s.write(values)
}
