package config

import (
	"sync"
)

var (
	// globalManager is the singleton configuration manager instance
	globalManager *Manager
	globalMu      sync.Mutex
)

// Initialize creates and initializes the global configuration manager.
// This should be called once at application startup.
func Initialize(configPath string) error {
	globalMu.Lock()
	defer globalMu.Unlock()

	manager, err := Open(configPath)
	if err != nil {
		return err
	}

	globalManager = manager
	return nil
}

// Open creates a manager over the file store at configPath with every
// section registered and loaded.
func Open(configPath string) (*Manager, error) {
	store, err := NewFileStore(configPath)
	if err != nil {
		return nil, err
	}

	manager := NewManager(store)
	if err := manager.RegisterSection(NewProfilesSection()); err != nil {
		return nil, err
	}

	if err := manager.LoadAll(); err != nil {
		return nil, err
	}
	return manager, nil
}

// Global returns the global configuration manager.
// Panics if Initialize has not been called.
func Global() *Manager {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalManager == nil {
		panic("config not initialized: call config.Initialize first")
	}

	return globalManager
}

// IsInitialized returns true if the global configuration has been initialized.
func IsInitialized() bool {
	globalMu.Lock()
	defer globalMu.Unlock()
	return globalManager != nil
}

// Profiles returns the profiles section of m, or nil if it is not registered.
func (m *Manager) Profiles() *ProfilesSection {
	section, ok := m.GetSection(SectionIDProfiles)
	if !ok {
		return nil
	}
	profiles, _ := section.(*ProfilesSection)
	return profiles
}

// GetProfiles returns the profiles section from global config.
// Returns nil if config is not initialized.
func GetProfiles() *ProfilesSection {
	if !IsInitialized() {
		return nil
	}
	return Global().Profiles()
}
