package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Store persists section data between runs.
type Store interface {
	Load() error
	Save() error

	// GetSection returns a copy of the stored data for a section, or an
	// empty map when nothing is stored under sectionID
	GetSection(sectionID string) (map[string]interface{}, error)

	SetSection(sectionID string, data map[string]interface{}) error
}

// StoreVersion is the layout Save writes.
//
// Version 1 files have the same sections layout with a string version.
// Files without sections are the flat profiles document of the first
// release: last_profile and profiles at the top level. Both are read and
// rewritten as the current version on the next save.
const StoreVersion = 2

// legacyFlat is the version reported for a flat profiles document.
const legacyFlat = 0

type storeDocument struct {
	Version  int                               `json:"version"`
	Sections map[string]map[string]interface{} `json:"sections"`
}

// FileStore keeps the profile store as JSON on disk. A file that cannot be
// decoded is moved aside on load and the store starts empty.
type FileStore struct {
	path     string
	sections map[string]map[string]interface{}
	mu       sync.RWMutex

	// found and version describe the file as it was read
	found   bool
	version int
	backup  string
}

// DefaultStorePath returns ~/.renewbot/config.json.
func DefaultStorePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(home, ".renewbot", "config.json"), nil
}

// NewFileStore opens the store at path, or at DefaultStorePath when path is
// empty. A missing file is not an error.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		p, err := DefaultStorePath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	s := &FileStore{path: path, sections: make(map[string]map[string]interface{})}
	if err := s.Load(); err != nil {
		return nil, fmt.Errorf("failed to load profile store from %s: %w", path, err)
	}
	return s, nil
}

// Load reads the file, upgrading older layouts in memory.
func (s *FileStore) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sections = make(map[string]map[string]interface{})
	s.found, s.version = false, StoreVersion

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read profile store: %w", err)
	}

	sections, version, err := decodeStore(data)
	if err != nil {
		backup, moveErr := s.moveAside()
		if moveErr != nil {
			return fmt.Errorf("unreadable profile store (%v) could not be moved aside: %w", err, moveErr)
		}
		s.backup = backup
		return nil
	}

	s.sections = sections
	s.found, s.version = true, version
	return nil
}

// decodeStore reads any supported layout into sections.
func decodeStore(data []byte) (map[string]map[string]interface{}, int, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return make(map[string]map[string]interface{}), StoreVersion, nil
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, 0, err
	}

	rawSections, ok := top["sections"]
	if !ok {
		_, hasProfiles := top["profiles"]
		_, hasLast := top["last_profile"]
		if !hasProfiles && !hasLast {
			return nil, 0, errors.New("neither sections nor profiles present")
		}
		var flat map[string]interface{}
		if err := json.Unmarshal(data, &flat); err != nil {
			return nil, 0, err
		}
		return map[string]map[string]interface{}{SectionIDProfiles: flat}, legacyFlat, nil
	}

	var sections map[string]map[string]interface{}
	if err := json.Unmarshal(rawSections, &sections); err != nil {
		return nil, 0, fmt.Errorf("sections: %w", err)
	}
	if sections == nil {
		sections = make(map[string]map[string]interface{})
	}

	// "1.0" and other non-integer versions are the first sections layout
	version := 1
	var v int
	if raw, ok := top["version"]; ok && json.Unmarshal(raw, &v) == nil && v > 0 {
		version = v
	}
	return sections, version, nil
}

func (s *FileStore) moveAside() (string, error) {
	backup := fmt.Sprintf("%s.corrupt-%s", s.path, time.Now().Format("20060102-150405"))
	if err := os.Rename(s.path, backup); err != nil {
		return "", err
	}
	return backup, nil
}

// Save writes the store atomically in the current layout. The file holds
// local paths, so it is readable by its owner only.
func (s *FileStore) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0750); err != nil {
		return fmt.Errorf("failed to create profile store directory: %w", err)
	}

	data, err := json.MarshalIndent(storeDocument{Version: StoreVersion, Sections: s.sections}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode profile store: %w", err)
	}
	data = append(data, '\n')

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write profile store: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace profile store: %w", err)
	}

	s.found, s.version = true, StoreVersion
	return nil
}

func (s *FileStore) GetSection(sectionID string) (map[string]interface{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.sections[sectionID]
	if !ok {
		return make(map[string]interface{}), nil
	}
	return cloneSection(data), nil
}

func (s *FileStore) SetSection(sectionID string, data map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sections[sectionID] = cloneSection(data)
	return nil
}

// Path returns the file path of the store.
func (s *FileStore) Path() string {
	return s.path
}

// Backup returns where an unreadable store file was moved, or "".
func (s *FileStore) Backup() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.backup
}

// Notice describes what happened to the file on load, for the operator.
// It is empty when the file was missing or already current.
func (s *FileStore) Notice() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	switch {
	case s.backup != "":
		return fmt.Sprintf("profile store was unreadable and was moved to %s; starting from the default profiles", s.backup)
	case s.found && s.version == legacyFlat:
		return "profile store is in the original flat layout; it will be upgraded on save"
	case s.found && s.version < StoreVersion:
		return fmt.Sprintf("profile store is version %d; it will be upgraded on save", s.version)
	default:
		return ""
	}
}

// cloneSection copies the top level of a section. Nested values such as the
// profiles map are replaced wholesale by SetData, never mutated in place.
func cloneSection(data map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(data))
	for k, v := range data {
		out[k] = v
	}
	return out
}
