// Package config reads the engine's TOML configuration file: reconciliation
// mode, hash algorithm, conflation and batching policy, and worker count.
package config

import (
	"fmt"
	"io"
	"os"

	"github.com/BurntSushi/toml"
)

// EngineConfig holds the engine's tunable settings.
type EngineConfig struct {
	Mode            string `toml:"mode"`
	HashAlgorithm   string `toml:"hash_algorithm"`
	ConflateInputs  bool   `toml:"conflate_inputs"`
	TargetBatchRows int    `toml:"target_batch_rows"`
	Parallelism     int    `toml:"parallelism"`
}

// DefaultEngineConfig returns the documented engine defaults.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		Mode:            "delta",
		HashAlgorithm:   "xxhash",
		ConflateInputs:  false,
		TargetBatchRows: 10_000,
		Parallelism:     0, // 0 => runtime.GOMAXPROCS(0)
	}
}

// Load opens the file at path and parses it as an EngineConfig, starting
// from DefaultEngineConfig so an omitted field keeps its documented default.
func Load(path string) (EngineConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return EngineConfig{}, fmt.Errorf("config: open file %q: %w", path, err)
	}
	defer f.Close()

	return Parse(f)
}

// Parse reads TOML content from r into an EngineConfig.
func Parse(r io.Reader) (EngineConfig, error) {
	cfg := DefaultEngineConfig()
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return EngineConfig{}, fmt.Errorf("config: decode error: %w", err)
	}
	return cfg, nil
}
