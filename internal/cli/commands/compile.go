package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// CompileOptions holds options for the compile command.
type CompileOptions struct {
	File string // Read source from this file; "-" reads stdin
}

// NewCompileCommand creates the compile command.
func NewCompileCommand() *cobra.Command {
	opts := &CompileOptions{}
	cmd := &cobra.Command{
		Use:   "compile [source]",
		Short: "Compile source with the embedded compiler",
		Long: `Extract the embedded compiler library to a temporary file, load it,
call its compile entry point once and print the returned bytes.

The source is the first argument, the contents of --file, or the empty
string when neither is given. Running lusque without a subcommand does
the same thing.`,
		Example: `  # Compile the empty program
  lusque compile

  # Compile a file and show a hex dump
  lusque compile -f main.lq -o hex

  # Read from stdin and write the raw bytes
  cat main.lq | lusque compile -f - -o raw > main.out`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return RunCompile(cmd, opts, args)
		},
	}

	BindCompileFlags(cmd.Flags(), opts)

	return cmd
}

// BindCompileFlags registers the compile flags on fs.
func BindCompileFlags(fs *pflag.FlagSet, opts *CompileOptions) {
	fs.StringVarP(&opts.File, "file", "f", "", `Read source from file ("-" for stdin)`)
}

// RunCompile compiles the source selected by opts and args and renders the result.
func RunCompile(cmd *cobra.Command, opts *CompileOptions, args []string) error {
	source, err := readSource(cmd.InOrStdin(), opts.File, args)
	if err != nil {
		return err
	}

	cmdCtx := NewCommandContext(cmd)
	runner, cleanup := cmdCtx.NewRunner()
	defer cleanup()

	res, err := runner.Run(cmd.Context(), source)
	if err != nil {
		return err
	}
	return cmdCtx.Renderer.Bytes(res.ID, res.Output)
}

func readSource(stdin io.Reader, file string, args []string) (string, error) {
	if file != "" && len(args) > 0 {
		return "", fmt.Errorf("source given both as argument and --file")
	}
	switch {
	case file == "-":
		b, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read source from stdin: %w", err)
		}
		return string(b), nil
	case file != "":
		b, err := os.ReadFile(file) //nolint:gosec // user-selected source file
		if err != nil {
			return "", fmt.Errorf("failed to read source file: %w", err)
		}
		return string(b), nil
	case len(args) > 0:
		return args[0], nil
	default:
		return "", nil
	}
}
