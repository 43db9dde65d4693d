package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaultsWhenMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Detection.Threshold != 45 || cfg.Shots.NewStart != 101 || cfg.Concurrency != 4 {
		t.Fatalf("defaults = %+v", cfg)
	}
	if !cfg.Export.Thumbnails || !cfg.Export.EDL || !cfg.Export.ShotList || cfg.Export.FCPXML || cfg.Export.ThumbnailWidth != 320 {
		t.Fatalf("export defaults = %+v", cfg.Export)
	}
}

func TestLoadOverridesSomeKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shotlist.yaml")
	data := []byte(`
concurrency: 2
detection:
  threshold: 30
shots:
  prefix: ep01
export:
  movies: false
`)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Concurrency != 2 || cfg.Detection.Threshold != 30 || cfg.Shots.Prefix != "ep01" {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.Export.Movies {
		t.Fatal("export.movies should be false")
	}
	// untouched keys keep their defaults
	if cfg.Shots.NewStart != 101 || !cfg.Export.Audio {
		t.Fatalf("defaults lost: %+v", cfg)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := map[string]string{
		"threshold":   "detection:\n  threshold: 140\n",
		"concurrency": "concurrency: 0\n",
		"yaml":        "detection: [\n",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "shotlist.yaml")
			if err := os.WriteFile(path, []byte(body), 0644); err != nil {
				t.Fatal(err)
			}
			if _, err := Load(path); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.yaml")
	cfg := Default()
	cfg.Server.Addr = ":9000"
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Server.Addr != ":9000" {
		t.Fatalf("Server.Addr = %q", got.Server.Addr)
	}
}

func TestContext(t *testing.T) {
	cfg := Default()
	cfg.Concurrency = 9
	ctx := WithConfig(context.Background(), cfg)
	if FromContext(ctx).Concurrency != 9 {
		t.Fatal("FromContext did not return stored config")
	}
	if FromContext(context.Background()).Concurrency != 4 {
		t.Fatal("FromContext should fall back to defaults")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SHOTLIST_THRESHOLD", "12.5")
	t.Setenv("SHOTLIST_SERVER_ADDR", ":7000")
	t.Setenv("SHOTLIST_CONCURRENCY", "8")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Detection.Threshold != 12.5 || cfg.Server.Addr != ":7000" || cfg.Concurrency != 8 {
		t.Fatalf("cfg = %+v", cfg)
	}

	t.Setenv("SHOTLIST_CONCURRENCY", "many")
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for bad SHOTLIST_CONCURRENCY")
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("SHOTLIST_EXPORT_DIR=/exports\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Chdir(dir)
	t.Setenv("SHOTLIST_EXPORT_DIR", "")
	os.Unsetenv("SHOTLIST_EXPORT_DIR")

	if !LoadDotEnv() {
		t.Fatal("LoadDotEnv did not read .env")
	}
	cfg, err := Load(filepath.Join(dir, "missing.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Export.Directory != "/exports" {
		t.Fatalf("export directory = %q", cfg.Export.Directory)
	}
}
