package config

import (
	"os"
	"path/filepath"
	"testing"
)

// TestLoadConfigMissingFile verifies defaults are returned when no file exists
func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Expected defaults for missing file, got error: %v", err)
	}
	if cfg.Display.WindowCenter != 40 || cfg.Display.WindowWidth != 1000 {
		t.Errorf("Expected default windowing (40, 1000), got (%g, %g)",
			cfg.Display.WindowCenter, cfg.Display.WindowWidth)
	}
	if cfg.Processing.NumCores < 1 {
		t.Errorf("Expected at least one core, got %d", cfg.Processing.NumCores)
	}
}

// TestSaveAndLoadConfig verifies a saved configuration loads back unchanged
func TestSaveAndLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.Display.ScrollStep = 0.5
	cfg.Storage.MappingFile = "/tmp/mappings.json"
	cfg.Logging.Debug = true
	if err := SaveConfig(cfg, path); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}

	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if loaded.Display.ScrollStep != 0.5 {
		t.Errorf("Expected scroll step 0.5, got %g", loaded.Display.ScrollStep)
	}
	if loaded.Storage.MappingFile != "/tmp/mappings.json" {
		t.Errorf("Expected mapping file to round trip, got %q", loaded.Storage.MappingFile)
	}
	if !loaded.Logging.Debug {
		t.Error("Expected debug logging to round trip")
	}
}

// TestLoadConfigPartialAndInvalid checks partial files keep defaults and bad values are rejected
func TestLoadConfigPartialAndInvalid(t *testing.T) {
	dir := t.TempDir()

	partial := filepath.Join(dir, "partial.yaml")
	os.WriteFile(partial, []byte("display:\n  windowCenter: -600\n"), 0644)
	cfg, err := LoadConfig(partial)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Display.WindowCenter != -600 || cfg.Display.WindowWidth != 1000 {
		t.Errorf("Expected (-600, 1000), got (%g, %g)", cfg.Display.WindowCenter, cfg.Display.WindowWidth)
	}

	invalid := filepath.Join(dir, "invalid.yaml")
	os.WriteFile(invalid, []byte("display:\n  windowWidth: 0\n"), 0644)
	if _, err := LoadConfig(invalid); err == nil {
		t.Error("Expected error for zero window width, got nil")
	}

	broken := filepath.Join(dir, "broken.yaml")
	os.WriteFile(broken, []byte("display: [unclosed"), 0644)
	if _, err := LoadConfig(broken); err == nil {
		t.Error("Expected parse error, got nil")
	}
}
