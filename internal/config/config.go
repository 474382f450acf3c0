// Package config resolves the merge engine's session-wide tunables: a
// small struct populated once at startup from environment overrides,
// with a verbose-gated log helper.
package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds the session's ambient settings.
type Config struct {
	WorkDir   string // scratch dir for downloaded blobs awaiting emit
	BatchSize int    // bounded concurrent fetch/parse batch size
	Verbose   bool
}

var current Config

// Load populates Config from the environment, applying defaults for
// anything unset. Mirrors initEnv's probe-then-default shape.
func Load() (Config, error) {
	cfg := Config{BatchSize: 5}

	if dir := os.Getenv("MODMERGE_WORKDIR"); dir != "" {
		cfg.WorkDir = dir
	} else {
		dir, err := os.MkdirTemp("", "modmerge-")
		if err != nil {
			return cfg, fmt.Errorf("failed to create work dir: %w", err)
		}
		cfg.WorkDir = dir
	}

	if n := os.Getenv("MODMERGE_BATCH_SIZE"); n != "" {
		if v, err := strconv.Atoi(n); err == nil && v > 0 {
			cfg.BatchSize = v
		}
	}

	cfg.Verbose = os.Getenv("MODMERGE_VERBOSE") != ""

	current = cfg
	return cfg, nil
}

// Current returns the last Config returned by Load, or the zero-value
// default (BatchSize 0) if Load was never called.
func Current() Config { return current }

// VLog prints only when the session is running verbose.
func VLog(format string, args ...interface{}) {
	if current.Verbose {
		fmt.Printf("V: "+format, args...)
	}
}
