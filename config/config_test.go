package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RPCAddress != ":8080" {
		t.Fatalf("unexpected default rpc address %q", cfg.RPCAddress)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected default config written: %v", err)
	}

	// A second load reads the file it just wrote.
	again, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if again.NetworkName != cfg.NetworkName {
		t.Fatalf("reload mismatch: %q vs %q", again.NetworkName, cfg.NetworkName)
	}
}

func TestLoadBackfillsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	contents := "MetricsAddress = \":9191\"\nPausedModules = [\"swap.listing\"]\n"
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.MetricsAddress != ":9191" {
		t.Fatalf("unexpected metrics address %q", cfg.MetricsAddress)
	}
	if cfg.RPCAddress != ":8080" {
		t.Fatalf("expected backfilled rpc address, got %q", cfg.RPCAddress)
	}
	if len(cfg.PausedModules) != 1 || cfg.PausedModules[0] != "swap.listing" {
		t.Fatalf("unexpected paused modules %v", cfg.PausedModules)
	}
}
