package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/entrhq/renewbot/pkg/plan"
)

func resetGlobal() {
	globalMu.Lock()
	globalManager = nil
	globalMu.Unlock()
}

func TestInitialize(t *testing.T) {
	t.Run("initializes global manager successfully", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.json")
		resetGlobal()

		if err := Initialize(configPath); err != nil {
			t.Fatalf("Initialize failed: %v", err)
		}

		if !IsInitialized() {
			t.Error("Global manager should be initialized")
		}

		section, ok := Global().GetSection(SectionIDProfiles)
		if !ok || section == nil {
			t.Fatal("profiles section not registered")
		}
	})

	t.Run("fresh store has default profiles", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.json")
		resetGlobal()

		if err := Initialize(configPath); err != nil {
			t.Fatalf("Initialize failed: %v", err)
		}

		profiles := GetProfiles()
		if profiles.LastProfile() != "Swole" {
			t.Errorf("Expected last profile Swole, got %q", profiles.LastProfile())
		}
		names := profiles.Names()
		if len(names) != 2 || names[0] != "Swole" || names[1] != "El Capii" {
			t.Errorf("Unexpected default profiles: %v", names)
		}
	})

	t.Run("recovers from an unreadable config file", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.json")
		if err := os.WriteFile(configPath, []byte("{not json"), 0600); err != nil {
			t.Fatalf("Failed to write config: %v", err)
		}
		resetGlobal()

		if err := Initialize(configPath); err != nil {
			t.Fatalf("Initialize failed: %v", err)
		}
		store, ok := Global().Store().(*FileStore)
		if !ok || store.Backup() == "" {
			t.Fatal("Expected the unreadable file to be moved aside")
		}
		if GetProfiles().LastProfile() != DefaultProfile {
			t.Errorf("Expected default profiles after recovery, got %q", GetProfiles().LastProfile())
		}
	})

	t.Run("rejects profiles of the wrong shape", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.json")
		content := `{"version": 2, "sections": {"profiles": {"profiles": "Swole"}}}`
		if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
			t.Fatalf("Failed to write config: %v", err)
		}
		resetGlobal()

		if err := Initialize(configPath); err == nil {
			t.Error("Expected error for malformed profiles")
		}
		if IsInitialized() {
			t.Error("Global manager should not be set after a failed Initialize")
		}
	})
}

func TestGlobal(t *testing.T) {
	t.Run("panics when not initialized", func(t *testing.T) {
		resetGlobal()

		defer func() {
			if r := recover(); r == nil {
				t.Error("Global should panic when not initialized")
			}
		}()
		Global()
	})
}

func TestGetProfiles_NotInitialized(t *testing.T) {
	resetGlobal()

	if GetProfiles() != nil {
		t.Error("GetProfiles should return nil when not initialized")
	}
}

func TestGlobalConfig_Persistence(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.json")
	resetGlobal()

	if err := Initialize(configPath); err != nil {
		t.Fatalf("First initialize failed: %v", err)
	}

	err := GetProfiles().Remember(Profile{
		Name:         "Night Shift",
		Carriers:     []plan.Carrier{plan.Oscar, plan.Blue},
		LastFilePath: "/data/ListsCompiled.txt",
	})
	if err != nil {
		t.Fatalf("Remember failed: %v", err)
	}
	if err := Global().SaveAll(); err != nil {
		t.Fatalf("SaveAll failed: %v", err)
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		t.Fatal("Config file was not created")
	}

	resetGlobal()
	if err := Initialize(configPath); err != nil {
		t.Fatalf("Re-initialize failed: %v", err)
	}

	profiles := GetProfiles()
	if profiles.LastProfile() != "Night Shift" {
		t.Errorf("Expected last profile Night Shift, got %q", profiles.LastProfile())
	}
	p, ok := profiles.Profile("Night Shift")
	if !ok {
		t.Fatal("Night Shift profile not persisted")
	}
	if len(p.Carriers) != 2 || p.Carriers[0] != plan.Oscar || p.Carriers[1] != plan.Blue {
		t.Errorf("Unexpected carriers: %v", p.Carriers)
	}
	if p.LastFilePath != "/data/ListsCompiled.txt" {
		t.Errorf("Unexpected file path: %q", p.LastFilePath)
	}
	if _, ok := profiles.Profile("Swole"); !ok {
		t.Error("Default profile lost on reload")
	}
}
