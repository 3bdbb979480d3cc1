package commands

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/lusque/internal/cli/output"
	"github.com/leapstack-labs/lusque/internal/state"
)

// HistoryOptions holds options for the history command.
type HistoryOptions struct {
	Limit int
}

// NewHistoryCommand creates the history command and its subcommands.
func NewHistoryCommand() *cobra.Command {
	opts := &HistoryOptions{}
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded compiler invocations",
		Long: `Show invocations recorded in the local history database, newest first.

Every compile run records its id, timing, mode, library digest, source and
output sizes, a prefix of the output and the outcome. Disable recording with
--no-history or "history: false" in lusque.yaml.`,
		Example: `  lusque history
  lusque history -n 5 -o json
  lusque history show 1f2e
  lusque history prune --keep 100`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runHistoryList(cmd, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 20, "Maximum number of invocations to show (0 for all)")

	cmd.AddCommand(newHistoryShowCommand())
	cmd.AddCommand(newHistoryPruneCommand())

	return cmd
}

func newHistoryShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one recorded invocation",
		Long:  `Show one recorded invocation. The id may be any unique prefix.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistoryShow(cmd, args[0])
		},
	}
}

func newHistoryPruneCommand() *cobra.Command {
	var keep int
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete old invocations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runHistoryPrune(cmd, keep)
		},
	}
	cmd.Flags().IntVar(&keep, "keep", 0, "Number of most recent invocations to keep (required; 0 clears the history)")
	_ = cmd.MarkFlagRequired("keep")
	return cmd
}

func runHistoryList(cmd *cobra.Command, opts *HistoryOptions) error {
	cmdCtx := NewCommandContext(cmd)
	r := cmdCtx.Renderer

	store, err := cmdCtx.OpenHistory()
	if err != nil {
		return fmt.Errorf("failed to open history: %w", err)
	}
	defer func() { _ = store.Close() }()

	invs, err := store.List(cmd.Context(), opts.Limit)
	if err != nil {
		return err
	}

	if r.EffectiveMode() == output.ModeJSON {
		if invs == nil {
			invs = []*state.Invocation{}
		}
		return r.JSON(invs)
	}

	if len(invs) == 0 {
		r.Println("No invocations recorded.")
		return nil
	}

	rows := make([][]string, 0, len(invs))
	for _, inv := range invs {
		rows = append(rows, []string{
			shortID(inv.ID),
			humanize.Time(inv.StartedAt),
			inv.Mode,
			inv.Status,
			humanize.IBytes(uint64(inv.OutputLen)), //nolint:gosec // lengths are non-negative
			inv.Duration.Round(time.Millisecond).String(),
		})
	}
	r.Table([]string{"ID", "Started", "Mode", "Status", "Output", "Duration"}, rows)
	return nil
}

func runHistoryShow(cmd *cobra.Command, id string) error {
	cmdCtx := NewCommandContext(cmd)
	r := cmdCtx.Renderer

	store, err := cmdCtx.OpenHistory()
	if err != nil {
		return fmt.Errorf("failed to open history: %w", err)
	}
	defer func() { _ = store.Close() }()

	inv, err := store.Get(cmd.Context(), id)
	if err != nil {
		return err
	}

	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(inv)
	case output.ModeRaw:
		b, err := hex.DecodeString(inv.OutputHex)
		if err != nil {
			return fmt.Errorf("corrupt stored output: %w", err)
		}
		_, err = r.Out().Write(b)
		return err
	}

	styles := r.Styles()
	status := styles.Success.Render(inv.Status)
	if inv.Status != "success" {
		status = styles.Error.Render(inv.Status)
	}

	r.Println(styles.Header1.Render("Invocation " + inv.ID))
	r.Printf("  Started:   %s (%s)\n", inv.StartedAt.Local().Format(time.RFC3339), humanize.Time(inv.StartedAt))
	r.Printf("  Duration:  %s\n", inv.Duration)
	r.Printf("  Mode:      %s\n", inv.Mode)
	r.Printf("  Status:    %s\n", status)
	if inv.ErrorKind != "" {
		r.Printf("  Error:     %s (%s)\n", inv.Error, inv.ErrorKind)
	}
	r.Printf("  Library:   %s\n", styles.Path.Render(inv.LibraryPath))
	if inv.ArtifactSHA256 != "" {
		r.Printf("  SHA-256:   %s\n", inv.ArtifactSHA256)
	}
	r.Printf("  Source:    %s\n", humanize.IBytes(uint64(inv.SourceLen))) //nolint:gosec // lengths are non-negative
	r.Printf("  Output:    %s\n", humanize.IBytes(uint64(inv.OutputLen))) //nolint:gosec // lengths are non-negative

	if inv.OutputLen > 0 {
		b, err := hex.DecodeString(inv.OutputHex)
		if err != nil {
			return fmt.Errorf("corrupt stored output: %w", err)
		}
		r.Println("")
		r.Printf("%s", output.FormatHex(b))
		if inv.Truncated() {
			r.Println(styles.Muted.Render(fmt.Sprintf("... %d more bytes not stored", inv.OutputLen-len(b))))
		}
	}
	return nil
}

func runHistoryPrune(cmd *cobra.Command, keep int) error {
	cmdCtx := NewCommandContext(cmd)

	store, err := cmdCtx.OpenHistory()
	if err != nil {
		return fmt.Errorf("failed to open history: %w", err)
	}
	defer func() { _ = store.Close() }()

	n, err := store.Prune(cmd.Context(), keep)
	if err != nil {
		return err
	}
	cmdCtx.Renderer.Success(fmt.Sprintf("Removed %d invocation(s), kept at most %d", n, keep))
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
