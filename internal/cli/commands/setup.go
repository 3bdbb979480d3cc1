package commands

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/lusque/internal/artifact"
	"github.com/leapstack-labs/lusque/internal/bootstrap"
	"github.com/leapstack-labs/lusque/internal/cli/config"
	"github.com/leapstack-labs/lusque/internal/cli/output"
	"github.com/leapstack-labs/lusque/internal/native"
	"github.com/leapstack-labs/lusque/internal/state"
)

// Package-level hooks so tests can swap the embedded artifact and loader.
var (
	artifactSource = artifact.Embedded
	nativeLoader   = func() native.Loader { return native.SystemLoader }
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Renderer *output.Renderer
}

// NewCommandContext creates a CommandContext from the loaded configuration.
func NewCommandContext(cmd *cobra.Command) *CommandContext {
	cfg := getConfig()
	logger := config.GetLogger(cmd.Context())
	mode := output.Mode(cfg.OutputFormat)
	r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode)

	return &CommandContext{
		Cfg:      cfg,
		Logger:   logger,
		Renderer: r,
	}
}

// getConfig returns the current configuration, or defaults when none was loaded.
func getConfig() *config.Config {
	if cfg := config.GetCurrentConfig(); cfg != nil {
		return cfg
	}
	return config.Defaults()
}

// OpenHistory opens the invocation history database.
func (c *CommandContext) OpenHistory() (state.Store, error) {
	return state.OpenStore(c.Cfg.StatePath)
}

// RunnerConfig builds a runner configuration from the CLI configuration.
func (c *CommandContext) RunnerConfig() bootstrap.Config {
	return bootstrap.Config{
		Source:       artifactSource(),
		TempDir:      c.Cfg.TempDir,
		Prefix:       c.Cfg.ArtifactPrefix,
		KeepArtifact: c.Cfg.KeepArtifact,
		LibraryPath:  c.Cfg.Library,
		Isolate:      c.Cfg.Isolate,
		Timeout:      c.Cfg.Timeout,
		Loader:       nativeLoader(),
		Logger:       c.Logger,
	}
}

// NewRunner creates a runner that records into the history database when
// history is enabled. The returned cleanup function must be called.
func (c *CommandContext) NewRunner() (*bootstrap.Runner, func()) {
	runCfg := c.RunnerConfig()
	cleanup := func() {}

	if c.Cfg.History {
		store, err := c.OpenHistory()
		if err != nil {
			// History is best effort; a broken database never blocks a compile.
			c.Logger.Warn("invocation history disabled", slog.String("path", c.Cfg.StatePath), slog.Any("error", err))
		} else {
			runCfg.Recorder = &historyRecorder{store: store, limit: c.Cfg.HistoryLimit, logger: c.Logger}
			cleanup = func() { _ = store.Close() }
		}
	}

	return bootstrap.New(runCfg), cleanup
}

// historyRecorder records runs and keeps the table at most limit rows long.
type historyRecorder struct {
	store  state.Store
	limit  int
	logger *slog.Logger
}

func (h *historyRecorder) Record(ctx context.Context, res *bootstrap.Result) error {
	if err := h.store.Record(ctx, res); err != nil {
		return err
	}
	if h.limit <= 0 {
		return nil
	}
	n, err := h.store.Prune(ctx, h.limit)
	if err != nil {
		return err
	}
	if n > 0 {
		h.logger.Debug("pruned invocation history", slog.Int64("removed", n), slog.Int("limit", h.limit))
	}
	return nil
}
