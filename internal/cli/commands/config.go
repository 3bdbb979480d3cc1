package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/leapstack-labs/lusque/internal/cli/config"
	"github.com/leapstack-labs/lusque/internal/cli/output"
)

// NewConfigCommand creates the config command.
func NewConfigCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Long: `Print the configuration after defaults, lusque.yaml, LUSQUE_* environment
variables and flags have been merged. The output is valid lusque.yaml.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfig(cmd)
		},
	}
}

func runConfig(cmd *cobra.Command) error {
	cmdCtx := NewCommandContext(cmd)
	r := cmdCtx.Renderer
	cfg := cmdCtx.Cfg

	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(configView(cfg))
	}

	b, err := yaml.Marshal(configView(cfg))
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	source := config.GetConfigFileUsed()
	if source == "" {
		source = "(none)"
	}
	if r.EffectiveMode() == output.ModeMarkdown {
		r.Printf("Config file: `%s`\n\n```yaml\n%s```\n", source, b)
		return nil
	}
	r.Printf("# config file: %s\n%s", source, b)
	return nil
}

// configView renders durations as strings so the YAML round-trips through the loader.
func configView(cfg *config.Config) map[string]any {
	return map[string]any{
		"output":          cfg.OutputFormat,
		"verbose":         cfg.Verbose,
		"log_level":       cfg.LogLevel,
		"log_format":      cfg.LogFormat,
		"temp_dir":        cfg.TempDir,
		"artifact_prefix": cfg.ArtifactPrefix,
		"keep_artifact":   cfg.KeepArtifact,
		"isolate":         cfg.Isolate,
		"timeout":         cfg.Timeout.String(),
		"library":         cfg.Library,
		"state_path":      cfg.StatePath,
		"history":         cfg.History,
		"history_limit":   cfg.HistoryLimit,
	}
}
