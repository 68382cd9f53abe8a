package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/pflag"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catastro.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if diff := cmp.Diff(Default(), cfg); diff != "" {
		t.Fatalf("defaults (-want +got):\n%s", diff)
	}
	if cfg.Rules().MaxImageBytes != ServerMaxImageBytes {
		t.Fatalf("expected server image bound, got %d", cfg.Rules().MaxImageBytes)
	}
}

func TestLoadFileAndEnvironment(t *testing.T) {
	path := writeConfig(t, `
store:
  kind: sqlite
  path: /tmp/arboles.db
map:
  heatmap_zoom_threshold: 16
  heat:
    radius: 30
sync:
  timeout: 5s
`)
	t.Setenv("CATASTRO_LOG_LEVEL", "debug")
	t.Setenv("CATASTRO_IMAGES_MAX_BYTES", "1000")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Store.Kind != StoreSQLite || cfg.Store.Path != "/tmp/arboles.db" {
		t.Fatalf("store not read from file: %+v", cfg.Store)
	}
	if cfg.Map.HeatmapZoomThreshold != 16 || cfg.Map.Heat.Radius != 30 || cfg.Map.Heat.Blur != 18 {
		t.Fatalf("map settings not merged: %+v", cfg.Map)
	}
	if cfg.Sync.Timeout != 5*time.Second {
		t.Fatalf("expected 5s timeout, got %s", cfg.Sync.Timeout)
	}
	if cfg.Log.Level != "debug" {
		t.Fatalf("env override ignored: %q", cfg.Log.Level)
	}
	if cfg.Rules().MaxImageBytes != 1000 {
		t.Fatalf("expected explicit image bound, got %d", cfg.Rules().MaxImageBytes)
	}
	if s := cfg.MapSettings(); s.Threshold != 16 || s.Heat.Radius != 30 {
		t.Fatalf("unexpected map settings %+v", s)
	}
}

func TestLoadOfflineProfile(t *testing.T) {
	path := writeConfig(t, "profile: offline\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Store.Kind != StoreFile || !cfg.Filter.LegacyHealthFallback || !cfg.Sync.SpeciesFallback {
		t.Fatalf("offline profile not applied: %+v", cfg)
	}
	if cfg.Rules().MaxImageBytes != OfflineMaxImageBytes {
		t.Fatalf("expected offline image bound, got %d", cfg.Rules().MaxImageBytes)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := map[string]string{
		"store kind":    "store:\n  kind: redis\n",
		"image profile": "images:\n  profile: huge\n",
		"zoom range":    "map:\n  min_zoom: 18\n  max_zoom: 12\n",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, body)); err == nil {
				t.Fatalf("expected an error")
			}
		})
	}
}

func TestLoadExplicitMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatalf("expected an error for a missing explicit config file")
	}
}

func TestLoadFlagsOverrideEnvironment(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())
	t.Setenv("CATASTRO_STORE_KIND", "sqlite")

	fs := pflag.NewFlagSet("catastro", pflag.ContinueOnError)
	fs.String("profile", "", "")
	fs.String("store", "", "")
	fs.String("file", "", "")
	if err := fs.Parse([]string{"--profile", "offline", "--file", "campo.json"}); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFlags("", fs)
	if err != nil {
		t.Fatalf("LoadFlags: %v", err)
	}
	if cfg.Store.Kind != StoreSQLite {
		t.Fatalf("unset flag should not hide the environment, got %q", cfg.Store.Kind)
	}
	if cfg.Store.Path != "campo.json" || cfg.Images.Profile != ProfileOffline {
		t.Fatalf("flags not applied: %+v", cfg)
	}
	if !cfg.Filter.LegacyHealthFallback {
		t.Fatalf("offline profile defaults not applied")
	}
}
