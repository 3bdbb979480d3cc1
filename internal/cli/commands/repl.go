package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/lusque/internal/bootstrap"
	"github.com/leapstack-labs/lusque/internal/cli/config"
	"github.com/leapstack-labs/lusque/internal/cli/output"
)

const (
	replPrompt         = "lusque> "
	replContinuePrompt = "   ...> "
)

// NewREPLCommand creates the repl command.
func NewREPLCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Compile sources interactively, one line at a time",
		Long: `Start an interactive loop that compiles each entered line and prints
the result. End a line with a backslash to continue the source on the next
line. Every entry is a fresh, independent run of the compiler.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runREPL(cmd)
		},
	}
}

// lineReader is the part of readline the loop needs.
type lineReader interface {
	Readline() (string, error)
	SetPrompt(prompt string)
}

func runREPL(cmd *cobra.Command) error {
	cmdCtx := NewCommandContext(cmd)
	runner, cleanup := cmdCtx.NewRunner()
	defer cleanup()

	var historyFile string
	if cmdCtx.Cfg.StatePath != "" && cmdCtx.Cfg.StatePath != ":memory:" {
		historyFile = filepath.Join(filepath.Dir(cmdCtx.Cfg.StatePath), "repl_history")
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          replPrompt,
		HistoryFile:     historyFile,
		AutoComplete:    newDotCompleter(),
		InterruptPrompt: "^C",
		EOFPrompt:       ".quit",
	})
	if err != nil {
		return fmt.Errorf("failed to initialize REPL: %w", err)
	}
	defer func() { _ = rl.Close() }()

	_, _ = fmt.Fprintln(cmd.OutOrStdout(), "lusque REPL")
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Type .help for commands, .quit to exit")
	_, _ = fmt.Fprintln(cmd.OutOrStdout())

	s := &replSession{cmd: cmd, cmdCtx: cmdCtx, runner: runner}
	return s.loop(cmd.Context(), rl)
}

type replSession struct {
	cmd    *cobra.Command
	cmdCtx *CommandContext
	runner *bootstrap.Runner
}

func (s *replSession) loop(ctx context.Context, rl lineReader) error {
	var buf strings.Builder
	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			buf.Reset()
			rl.SetPrompt(replPrompt)
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		if buf.Len() == 0 {
			trimmed := strings.TrimSpace(line)
			if trimmed == "" {
				continue
			}
			if strings.HasPrefix(trimmed, ".") {
				if quit := s.handleDotCommand(trimmed); quit {
					return nil
				}
				continue
			}
		}

		if strings.HasSuffix(line, `\`) {
			buf.WriteString(strings.TrimSuffix(line, `\`))
			buf.WriteString("\n")
			rl.SetPrompt(replContinuePrompt)
			continue
		}
		buf.WriteString(line)
		source := buf.String()
		buf.Reset()
		rl.SetPrompt(replPrompt)

		s.compile(ctx, source)
	}
}

func (s *replSession) compile(ctx context.Context, source string) {
	r := s.cmdCtx.Renderer
	res, err := s.runner.Run(ctx, source)
	if err != nil {
		_, _ = fmt.Fprintf(s.cmd.ErrOrStderr(), "Error: %v\n", err)
		return
	}
	if err := r.Bytes(res.ID, res.Output); err != nil {
		_, _ = fmt.Fprintf(s.cmd.ErrOrStderr(), "Error: %v\n", err)
		return
	}
	if r.EffectiveMode() == output.ModeRaw {
		_, _ = fmt.Fprintln(s.cmd.OutOrStdout())
	}
}

// handleDotCommand runs a dot-command and reports whether the loop should end.
func (s *replSession) handleDotCommand(line string) bool {
	parts := strings.Fields(line)
	command := strings.ToLower(parts[0])
	out := s.cmd.OutOrStdout()
	errOut := s.cmd.ErrOrStderr()

	switch command {
	case ".quit", ".exit":
		return true

	case ".help":
		printREPLHelp(out)

	case ".mode":
		if len(parts) < 2 {
			_, _ = fmt.Fprintf(out, "Output mode: %s\n", s.cmdCtx.Renderer.Mode())
			return false
		}
		mode := strings.ToLower(parts[1])
		if !slices.Contains(config.OutputModes, mode) {
			_, _ = fmt.Fprintf(errOut, "Unknown mode: %s (expected one of: %s)\n", mode, strings.Join(config.OutputModes, ", "))
			return false
		}
		s.cmdCtx.Renderer = output.NewRenderer(out, errOut, output.Mode(mode))

	case ".clear":
		_, _ = fmt.Fprint(out, "\033[H\033[2J")

	default:
		_, _ = fmt.Fprintf(errOut, "Unknown command: %s (type .help for commands)\n", command)
	}
	return false
}

func printREPLHelp(w io.Writer) {
	help := `
Commands:
  .help           Show this help message
  .mode [mode]    Show or set the output mode (auto, text, hex, json, markdown, raw)
  .clear          Clear the screen
  .quit / .exit   Exit the REPL

Tips:
  - Each line is compiled as one source
  - End a line with \ to continue on the next line
  - Use arrow keys to navigate history
`
	_, _ = fmt.Fprintln(w, help)
}

func newDotCompleter() *readline.PrefixCompleter {
	return readline.NewPrefixCompleter(
		readline.PcItem(".help"),
		readline.PcItem(".mode",
			readline.PcItem("auto"),
			readline.PcItem("text"),
			readline.PcItem("hex"),
			readline.PcItem("json"),
			readline.PcItem("markdown"),
			readline.PcItem("raw"),
		),
		readline.PcItem(".clear"),
		readline.PcItem(".quit"),
		readline.PcItem(".exit"),
	)
}
