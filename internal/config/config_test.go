// ABOUTME: Tests for fitcore configuration management.
// ABOUTME: Covers defaults, env overrides, load/save, key validation and backend selection.
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func useTempConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	return dir
}

func TestGetBackendDefault(t *testing.T) {
	cfg := &Config{}
	if got := cfg.GetBackend(); got != "badger" {
		t.Errorf("GetBackend() = %q, want %q", got, "badger")
	}
}

func TestGetBackendExplicit(t *testing.T) {
	cfg := &Config{Backend: "sqlite"}
	if got := cfg.GetBackend(); got != "sqlite" {
		t.Errorf("GetBackend() = %q, want %q", got, "sqlite")
	}
}

func TestGetDataDirDefault(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/tmp/xdg-data")
	cfg := &Config{}
	if got := cfg.GetDataDir(); got != "/tmp/xdg-data/fitcore" {
		t.Errorf("GetDataDir() = %q", got)
	}
}

func TestGetDataDirExpandsTilde(t *testing.T) {
	home, _ := os.UserHomeDir()

	cfg := &Config{DataDir: "~/fitcore-data"}
	got := cfg.GetDataDir()
	want := filepath.Join(home, "fitcore-data")
	if got != want {
		t.Errorf("GetDataDir() = %q, want %q", got, want)
	}
}

func TestExpandPath(t *testing.T) {
	home, _ := os.UserHomeDir()
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"/tmp/foo", "/tmp/foo"},
		{"~", home},
		{"~/data/fitcore", filepath.Join(home, "data/fitcore")},
		{"data/fitcore", "data/fitcore"},
	}
	for _, tt := range tests {
		if got := ExpandPath(tt.in); got != tt.want {
			t.Errorf("ExpandPath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestIntervals(t *testing.T) {
	cfg := &Config{}
	if got := cfg.GetTickInterval(); got != time.Second {
		t.Errorf("GetTickInterval() = %v, want 1s", got)
	}
	cfg.TickInterval = "250ms"
	if got := cfg.GetTickInterval(); got != 250*time.Millisecond {
		t.Errorf("GetTickInterval() = %v, want 250ms", got)
	}
	cfg.QueuePollInterval = "nonsense"
	if got := cfg.GetQueuePollInterval(); got != DefaultQueuePollInterval {
		t.Errorf("GetQueuePollInterval() = %v, want default", got)
	}
}

func TestLoadNonExistentConfig(t *testing.T) {
	useTempConfig(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() with no config file should not error: %v", err)
	}
	if cfg.Backend != "badger" {
		t.Errorf("Expected default backend, got %q", cfg.Backend)
	}
	if !cfg.RestTimers {
		t.Error("Expected rest timers enabled by default")
	}
	if cfg.CharmDB != "fitcore" {
		t.Errorf("Expected default charm db, got %q", cfg.CharmDB)
	}
}

func TestSaveAndLoad(t *testing.T) {
	useTempConfig(t)

	cfg := &Config{
		Backend:    "sqlite",
		DataDir:    "/tmp/fitcore-data",
		DeviceID:   "phone",
		PeerID:     "watch",
		RestTimers: false,
	}
	if err := cfg.Save(); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	loaded, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if loaded.Backend != "sqlite" || loaded.DataDir != "/tmp/fitcore-data" {
		t.Errorf("Loaded %+v", loaded)
	}
	if loaded.RestTimers {
		t.Error("Expected saved rest_timers=false to survive the default")
	}
	if !loaded.PeerConfigured() {
		t.Error("Expected peer to be configured")
	}
}

func TestEnvOverridesFile(t *testing.T) {
	useTempConfig(t)
	if err := (&Config{Backend: "sqlite", RestTimers: true}).Save(); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
	t.Setenv("FITCORE_BACKEND", "badger")
	t.Setenv("FITCORE_REST_TIMERS", "false")
	t.Setenv("FITCORE_PEER_ID", "watch")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Backend != "badger" {
		t.Errorf("Backend = %q, want env override", cfg.Backend)
	}
	if cfg.RestTimers {
		t.Error("Expected env to disable rest timers")
	}
	if cfg.PeerID != "watch" {
		t.Errorf("PeerID = %q", cfg.PeerID)
	}
}

func TestSaveCreatesDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(tmpDir, "nonexistent"))

	cfg := &Config{Backend: "sqlite"}
	if err := cfg.Save(); err != nil {
		t.Fatalf("Save() should create directory: %v", err)
	}

	configDir := filepath.Join(tmpDir, "nonexistent", "fitcore")
	if _, err := os.Stat(configDir); os.IsNotExist(err) {
		t.Error("Expected config directory to be created")
	}
}

func TestLoadInvalidJSON(t *testing.T) {
	tmpDir := useTempConfig(t)

	configDir := filepath.Join(tmpDir, "fitcore")
	_ = os.MkdirAll(configDir, 0755)
	_ = os.WriteFile(filepath.Join(configDir, "config.json"), []byte("invalid json"), 0600)

	if _, err := Load(); err == nil {
		t.Error("Expected error for invalid JSON config")
	}
}

func TestGetConfigPath(t *testing.T) {
	tmpDir := useTempConfig(t)

	got := GetConfigPath()
	want := filepath.Join(tmpDir, "fitcore", "config.json")
	if got != want {
		t.Errorf("GetConfigPath() = %q, want %q", got, want)
	}
}

func TestSetValidates(t *testing.T) {
	tests := []struct {
		key, value string
		wantErr    bool
	}{
		{"backend", "sqlite", false},
		{"backend", "markdown", true},
		{"rest_timers", "false", false},
		{"rest_timers", "maybe", true},
		{"tick_interval", "500ms", false},
		{"tick_interval", "-1s", true},
		{"weekly_goal", "4", false},
		{"weekly_goal", "-2", true},
		{"log_level", "debug", false},
		{"log_level", "loud", true},
		{"peer_id", "watch", false},
		{"colour", "blue", true},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			cfg := &Config{}
			err := cfg.Set(tt.key, tt.value)
			if (err != nil) != tt.wantErr {
				t.Errorf("Set(%q, %q) error = %v, wantErr %v", tt.key, tt.value, err, tt.wantErr)
			}
		})
	}
}

func TestKeysCoversSet(t *testing.T) {
	cfg := &Config{}
	for _, key := range Keys() {
		if err := cfg.Set(key, "x"); err != nil && err.Error() == `unknown config key: "`+key+`"` {
			t.Errorf("Keys() lists %q but Set does not accept it", key)
		}
	}
}

func TestEnsureDeviceID(t *testing.T) {
	cfg := &Config{}
	if !cfg.EnsureDeviceID() {
		t.Fatal("Expected a device id to be generated")
	}
	if len(cfg.DeviceID) != 26 {
		t.Errorf("Device id %q is not a ULID", cfg.DeviceID)
	}
	if cfg.EnsureDeviceID() {
		t.Error("Expected existing device id to be kept")
	}
}

func TestOpenStorage(t *testing.T) {
	for _, backend := range []string{"badger", "sqlite"} {
		t.Run(backend, func(t *testing.T) {
			cfg := &Config{Backend: backend, DataDir: t.TempDir()}
			g, err := cfg.OpenStorage(nil)
			if err != nil {
				t.Fatalf("OpenStorage() failed: %v", err)
			}
			defer g.Close()
			if err := g.Set("k", []byte("v")); err != nil {
				t.Errorf("Set failed: %v", err)
			}
		})
	}
}

func TestOpenStorageSQLiteCreatesFile(t *testing.T) {
	dir := t.TempDir()
	cfg := &Config{Backend: "sqlite", DataDir: dir}

	g, err := cfg.OpenStorage(nil)
	if err != nil {
		t.Fatalf("OpenStorage() failed: %v", err)
	}
	defer g.Close()

	if _, err := os.Stat(filepath.Join(dir, "fitcore.db")); os.IsNotExist(err) {
		t.Error("Expected fitcore.db to be created")
	}
}

func TestOpenStorageInvalidBackend(t *testing.T) {
	cfg := &Config{Backend: "invalid", DataDir: t.TempDir()}
	if _, err := cfg.OpenStorage(nil); err == nil {
		t.Error("Expected error for invalid backend")
	}
}

func TestOpenStorageCharmNeedsClient(t *testing.T) {
	cfg := &Config{Backend: "charm", DeviceID: "phone"}
	if _, err := cfg.OpenStorage(nil); err == nil {
		t.Error("Expected error without a charm client")
	}
	if !cfg.NeedsCharm() {
		t.Error("Expected charm backend to need charm")
	}
}
