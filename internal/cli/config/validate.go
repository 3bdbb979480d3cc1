package config

import (
	"fmt"
	"slices"
	"strings"
)

// Accepted values for enumerated keys.
var (
	OutputModes = []string{"auto", "text", "hex", "json", "markdown", "raw"}
	LogLevels   = []string{"debug", "info", "warn", "error"}
	LogFormats  = []string{"text", "json"}
)

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if !slices.Contains(OutputModes, c.OutputFormat) {
		return fmt.Errorf("invalid output %q (expected one of: %s)", c.OutputFormat, strings.Join(OutputModes, ", "))
	}
	if !slices.Contains(LogLevels, strings.ToLower(c.LogLevel)) {
		return fmt.Errorf("invalid log_level %q (expected one of: %s)", c.LogLevel, strings.Join(LogLevels, ", "))
	}
	if !slices.Contains(LogFormats, strings.ToLower(c.LogFormat)) {
		return fmt.Errorf("invalid log_format %q (expected one of: %s)", c.LogFormat, strings.Join(LogFormats, ", "))
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative, got %s", c.Timeout)
	}
	if c.HistoryLimit < 0 {
		return fmt.Errorf("history_limit must not be negative, got %d", c.HistoryLimit)
	}
	if c.ArtifactPrefix == "" {
		return fmt.Errorf("artifact_prefix must not be empty")
	}
	if strings.ContainsAny(c.ArtifactPrefix, `/\`) {
		return fmt.Errorf("artifact_prefix must not contain path separators: %q", c.ArtifactPrefix)
	}
	return nil
}
