package commands

import (
	"log/slog"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/lusque/internal/artifact"
	"github.com/leapstack-labs/lusque/internal/cli/output"
)

// ExtractOutput is the JSON output for the extract command.
type ExtractOutput struct {
	Path   string `json:"path"`
	Size   int64  `json:"size"`
	SHA256 string `json:"sha256"`
}

// NewExtractCommand creates the extract command.
func NewExtractCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "extract",
		Short: "Write the embedded compiler library to a temporary file",
		Long: `Materialize the embedded compiler library without loading it and print
the path of the new file. The file is left in place for inspection or for
use with --library.`,
		Example: `  lusque extract
  lusque extract --temp-dir ./build -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runExtract(cmd)
		},
	}
}

func runExtract(cmd *cobra.Command) error {
	cmdCtx := NewCommandContext(cmd)
	r := cmdCtx.Renderer

	m, err := artifact.Materialize(artifactSource(), artifact.Options{
		Dir:    cmdCtx.Cfg.TempDir,
		Prefix: cmdCtx.Cfg.ArtifactPrefix,
		Logger: cmdCtx.Logger,
	})
	if err != nil {
		return err
	}

	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(ExtractOutput{Path: m.Path, Size: m.Size, SHA256: m.SHA256})
	case output.ModeMarkdown:
		r.Printf("- **path:** `%s`\n- **size:** %s\n- **sha256:** `%s`\n", m.Path, humanize.IBytes(uint64(m.Size)), m.SHA256) //nolint:gosec // size is non-negative
	default:
		r.Println(m.Path)
		cmdCtx.Logger.Info("extracted compiler library",
			slog.String("size", humanize.IBytes(uint64(m.Size))), //nolint:gosec // size is non-negative
			slog.String("sha256", m.SHA256),
		)
	}
	return nil
}
