package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadEmptyPathYieldsDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Scan.Workers != 4 {
		t.Fatalf("workers = %d, want 4", cfg.Scan.Workers)
	}
	if cfg.Scan.PerFileTimeout.Std() != 30*time.Second {
		t.Fatalf("per-file timeout = %s", cfg.Scan.PerFileTimeout.Std())
	}
	if cfg.Threat.AlertCooldown.Std() != 15*time.Minute {
		t.Fatalf("alert cooldown = %s", cfg.Threat.AlertCooldown.Std())
	}
}

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Version != "1" {
		t.Fatalf("version = %q", cfg.Version)
	}
}

func TestLoadOverlaysFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	doc := `scan:
  rules_path: rules/
  workers: 8
threat:
  block_ttl: 2h
notify:
  - name: ops
    url: https://hooks.example.com/ops
`
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Scan.Workers != 8 {
		t.Fatalf("workers = %d, want 8", cfg.Scan.Workers)
	}
	if cfg.Scan.RulesPath != "rules/" {
		t.Fatalf("rules path = %q", cfg.Scan.RulesPath)
	}
	if cfg.Threat.BlockTTL.Std() != 2*time.Hour {
		t.Fatalf("block ttl = %s", cfg.Threat.BlockTTL.Std())
	}
	// Fields the file doesn't set keep their defaults.
	if cfg.Scan.PerFileTimeout.Std() != 30*time.Second {
		t.Fatalf("per-file timeout = %s", cfg.Scan.PerFileTimeout.Std())
	}
	if len(cfg.Notify) != 1 || cfg.Notify[0].Name != "ops" {
		t.Fatalf("notify = %+v", cfg.Notify)
	}
}

func TestLoadBackfillsInvalidValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	doc := `scan:
  workers: 0
  per_file_timeout: -1s
`
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Scan.Workers != 4 {
		t.Fatalf("workers = %d, want default 4", cfg.Scan.Workers)
	}
	if cfg.Scan.PerFileTimeout.Std() != 30*time.Second {
		t.Fatalf("per-file timeout = %s, want default 30s", cfg.Scan.PerFileTimeout.Std())
	}
}

func TestLoadParseError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte("scan: [not: a, mapping"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}
