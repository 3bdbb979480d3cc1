// Package config provides configuration management for the lusque CLI.
//
// Values are layered from defaults, a lusque.yaml file, LUSQUE_ environment
// variables and explicitly set command-line flags, in increasing priority.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/leapstack-labs/lusque/internal/artifact"
)

// Config holds all CLI configuration options.
type Config struct {
	OutputFormat   string        `koanf:"output" yaml:"output"`
	Verbose        bool          `koanf:"verbose" yaml:"verbose"`
	LogLevel       string        `koanf:"log_level" yaml:"log_level"`
	LogFormat      string        `koanf:"log_format" yaml:"log_format"`
	TempDir        string        `koanf:"temp_dir" yaml:"temp_dir"`
	ArtifactPrefix string        `koanf:"artifact_prefix" yaml:"artifact_prefix"`
	KeepArtifact   bool          `koanf:"keep_artifact" yaml:"keep_artifact"`
	Isolate        bool          `koanf:"isolate" yaml:"isolate"`
	Timeout        time.Duration `koanf:"timeout" yaml:"timeout"`
	Library        string        `koanf:"library" yaml:"library"`
	StatePath      string        `koanf:"state_path" yaml:"state_path"`
	History        bool          `koanf:"history" yaml:"history"`
	HistoryLimit   int           `koanf:"history_limit" yaml:"history_limit"`
}

// Default configuration values.
const (
	DefaultOutput       = "auto"
	DefaultLogLevel     = "warn"
	DefaultLogFormat    = "text"
	DefaultHistoryLimit = 1000
	DefaultStateFile    = "state.db"
)

// Config file names searched for, in order.
var configFileNames = []string{"lusque.yaml", "lusque.yml"}

// DefaultStatePath returns <user cache dir>/lusque/state.db, falling back to
// the temp dir when no cache dir is available.
func DefaultStatePath() string {
	dir, err := os.UserCacheDir()
	if err != nil || dir == "" {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "lusque", DefaultStateFile)
}

// Defaults returns a Config populated with default values.
func Defaults() *Config {
	return &Config{
		OutputFormat:   DefaultOutput,
		LogLevel:       DefaultLogLevel,
		LogFormat:      DefaultLogFormat,
		ArtifactPrefix: artifact.DefaultPrefix,
		Isolate:        true,
		StatePath:      DefaultStatePath(),
		History:        true,
		HistoryLimit:   DefaultHistoryLimit,
	}
}

func defaultsMap() map[string]interface{} {
	d := Defaults()
	return map[string]interface{}{
		"output":          d.OutputFormat,
		"verbose":         d.Verbose,
		"log_level":       d.LogLevel,
		"log_format":      d.LogFormat,
		"temp_dir":        d.TempDir,
		"artifact_prefix": d.ArtifactPrefix,
		"keep_artifact":   d.KeepArtifact,
		"isolate":         d.Isolate,
		"timeout":         d.Timeout,
		"library":         d.Library,
		"state_path":      d.StatePath,
		"history":         d.History,
		"history_limit":   d.HistoryLimit,
	}
}
