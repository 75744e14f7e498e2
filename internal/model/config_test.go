package model

import (
	"path/filepath"
	"testing"
)

func TestLoadConfig_MissingFileGivesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "config.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.BaseURL == "" || cfg.Server.PushURL == "" {
		t.Errorf("defaults missing: %+v", cfg.Server)
	}
	if cfg.Server.ConfirmTimeoutSec != 15 {
		t.Errorf("confirm timeout = %d, want 15", cfg.Server.ConfirmTimeoutSec)
	}
	if cfg.CachePath == "" {
		t.Error("cache path not defaulted")
	}
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	// Parent directory does not exist yet; SaveConfig creates it, which
	// is what the first-run path relies on.
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	want := &AppConfig{
		Server: ServerConfig{
			BaseURL:           "https://tasks.example.com/api",
			PushURL:           "wss://tasks.example.com/ws",
			ConfirmTimeoutSec: 20,
		},
		Display:   DisplayConfig{Theme: "dark"},
		CachePath: filepath.Join(t.TempDir(), "cache.db"),
	}
	if err := SaveConfig(path, want); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Server != want.Server {
		t.Errorf("server = %+v, want %+v", got.Server, want.Server)
	}
	if got.Display != want.Display {
		t.Errorf("display = %+v, want %+v", got.Display, want.Display)
	}
	if got.CachePath != want.CachePath {
		t.Errorf("cache path = %q, want %q", got.CachePath, want.CachePath)
	}
}
