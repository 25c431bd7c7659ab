package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := Default()
	if cfg != want {
		t.Errorf("cfg = %+v, want defaults %+v", cfg, want)
	}
}

func TestLoadOverridesOnlySetFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".vstore.toml")
	content := "model-dir = \"/opt/models\"\nthreads = 4\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ModelDir != "/opt/models" {
		t.Errorf("ModelDir = %q", cfg.ModelDir)
	}
	if cfg.Threads != 4 {
		t.Errorf("Threads = %d", cfg.Threads)
	}
	if cfg.MaxFileKB != Default().MaxFileKB {
		t.Errorf("MaxFileKB = %d, want untouched default %d", cfg.MaxFileKB, Default().MaxFileKB)
	}
	if cfg.OrtLib != Default().OrtLib {
		t.Errorf("OrtLib = %q, want untouched default %q", cfg.OrtLib, Default().OrtLib)
	}
}

func TestLoadInvalidTOMLReturnsError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".vstore.toml")
	if err := os.WriteFile(path, []byte("not = [valid toml"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for malformed TOML")
	}
}

func TestLoadStoreConfigMissingFileIsZeroValue(t *testing.T) {
	sc, err := LoadStoreConfig(filepath.Join(t.TempDir(), "config.json"))
	if err != nil {
		t.Fatalf("LoadStoreConfig: %v", err)
	}
	if sc != (StoreConfig{}) {
		t.Errorf("sc = %+v, want zero value", sc)
	}
}

func TestLoadStoreConfigParsesFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	body := `{"max_chunk_size": 800, "overlap_size": 150, "strategy": "hybrid"}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	sc, err := LoadStoreConfig(path)
	if err != nil {
		t.Fatalf("LoadStoreConfig: %v", err)
	}
	if sc.MaxChunkSize != 800 || sc.OverlapSize != 150 || sc.Strategy != "hybrid" {
		t.Errorf("sc = %+v", sc)
	}
}
