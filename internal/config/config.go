// Package config loads vstore's ambient configuration: an optional
// project-root TOML file overriding a handful of CLI defaults, never
// required to run, plus a store directory's own config.json, which is
// user-written and never consulted by the core — this package is strictly
// outer-surface configuration for the CLI and store defaults.
package config

import (
	"encoding/json"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/screenager/vecstore/internal/chunk"
)

// Config holds the values .vstore.toml may override.
type Config struct {
	ModelDir   string `toml:"model-dir"`
	ModelID    string `toml:"model-id"`
	ModelURL   string `toml:"model-url"`
	TokenURL   string `toml:"tokenizer-url"`
	OrtLib     string `toml:"ort-lib"`
	Threads    int    `toml:"threads"`
	MaxFileKB  int    `toml:"max-file-kb"`
	CacheItems int    `toml:"cache-items"`
}

// Default returns vstore's built-in defaults, used when no .vstore.toml is
// present or a field is left unset.
func Default() Config {
	return Config{
		ModelDir:   "./models",
		OrtLib:     "./lib/onnxruntime.so",
		Threads:    0,
		MaxFileKB:  512,
		CacheItems: 1000,
	}
}

// Load reads path (typically ".vstore.toml" in the working directory) and
// overlays any set fields onto Default(). A missing file is not an error:
// the defaults are returned unchanged, since this file is best-effort and
// never required to run.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}

	var override Config
	if err := toml.Unmarshal(data, &override); err != nil {
		return cfg, err
	}

	if override.ModelDir != "" {
		cfg.ModelDir = override.ModelDir
	}
	if override.ModelID != "" {
		cfg.ModelID = override.ModelID
	}
	if override.ModelURL != "" {
		cfg.ModelURL = override.ModelURL
	}
	if override.TokenURL != "" {
		cfg.TokenURL = override.TokenURL
	}
	if override.OrtLib != "" {
		cfg.OrtLib = override.OrtLib
	}
	if override.Threads > 0 {
		cfg.Threads = override.Threads
	}
	if override.MaxFileKB > 0 {
		cfg.MaxFileKB = override.MaxFileKB
	}
	if override.CacheItems > 0 {
		cfg.CacheItems = override.CacheItems
	}
	return cfg, nil
}

// StoreConfig is the optional, user-written config.json inside a store
// directory. The core never requires it; vstore's CLI reads it
// only to seed chunking defaults for ingestion commands.
type StoreConfig struct {
	MaxChunkSize int    `json:"max_chunk_size,omitempty"`
	MinChunkSize int    `json:"min_chunk_size,omitempty"`
	OverlapSize  int    `json:"overlap_size,omitempty"`
	Strategy     string `json:"strategy,omitempty"`
}

// LoadStoreConfig reads <store>/config.json, returning a zero-value
// StoreConfig (no error) if the file does not exist.
func LoadStoreConfig(path string) (StoreConfig, error) {
	var sc StoreConfig
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return sc, nil
		}
		return sc, err
	}
	if err := json.Unmarshal(data, &sc); err != nil {
		return sc, err
	}
	return sc, nil
}

// ChunkOptions overlays sc's set fields onto chunk.DefaultOptions(), the
// same semantics Load uses for .vstore.toml: a zero field leaves the
// default untouched.
func (sc StoreConfig) ChunkOptions() chunk.Options {
	opts := chunk.DefaultOptions()
	if sc.MaxChunkSize > 0 {
		opts.MaxChunkSize = sc.MaxChunkSize
	}
	if sc.MinChunkSize > 0 {
		opts.MinChunkSize = sc.MinChunkSize
	}
	if sc.OverlapSize > 0 {
		opts.OverlapSize = sc.OverlapSize
	}
	if sc.Strategy != "" {
		opts.Strategy = chunk.Strategy(sc.Strategy)
	}
	return opts
}
