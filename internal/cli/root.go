// Package cli provides the command-line interface for lusque.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/lusque/internal/bootstrap"
	"github.com/leapstack-labs/lusque/internal/cli/commands"
	"github.com/leapstack-labs/lusque/internal/cli/config"
)

var (
	cfgFile string
	cfg     *config.Config
)

// Version information (set at build time).
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// skipsConfig reports whether cmd runs without loading configuration.
func skipsConfig(cmd *cobra.Command) bool {
	switch cmd.Name() {
	case "help", "completion", cobra.ShellCompRequestCmd, cobra.ShellCompNoDescRequestCmd, bootstrap.InvokeCommand:
		return true
	}
	return false
}

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	compileOpts := &commands.CompileOptions{}

	rootCmd := &cobra.Command{
		Use:   "lusque [source]",
		Short: "lusque - bootstrap for the embedded lusque compiler",
		Long: `lusque carries its compiler as an embedded native library.

Each run writes the library to a fresh temporary file, loads it, calls its
compile entry point once with the source and prints the returned bytes.
By default the call runs in a child process so a crash inside the compiler
is reported as an error instead of taking lusque down.

Running lusque without a subcommand is the same as "lusque compile".`,
		Version: Version,
		Args:    cobra.MaximumNArgs(1),
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// Skip config loading for help, completion and the isolated child
			if skipsConfig(cmd) {
				return nil
			}

			// Load configuration with CLI flags
			var err error
			cfg, err = config.LoadConfig(cfgFile, cmd.Root().PersistentFlags())
			if err != nil {
				return err
			}

			logger := cfg.NewLogger(cmd.ErrOrStderr())

			// Commands read the config through config.GetCurrentConfig and
			// the logger through the context.
			cmd.SetContext(context.WithValue(cmd.Context(), config.LoggerKey(), logger))

			if configFile := config.GetConfigFileUsed(); configFile != "" {
				logger.Debug("using config file", slog.String("path", configFile))
			}

			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return commands.RunCompile(cmd, compileOpts, args)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Set version template
	rootCmd.SetVersionTemplate(`{{.Name}} {{.Version}}
`)

	// Global persistent flags
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default: lusque.yaml in the current or a parent directory)")
	pf.StringP("output", "o", "", "Output format (auto|text|hex|json|markdown|raw)")
	pf.BoolP("verbose", "v", false, "Verbose output (debug logging)")
	pf.String("log-level", "", "Log level (debug|info|warn|error)")
	pf.String("log-format", "", "Log format (text|json)")
	pf.String("temp-dir", "", "Directory for the extracted library (default: system temp dir)")
	pf.Bool("keep-artifact", false, "Leave the extracted library on disk after the run")
	pf.Bool("isolate", true, "Run the native call in a child process")
	pf.Duration("timeout", 0, "Abort an isolated native call after this long (0 for no limit)")
	pf.String("library", "", "Load this library instead of the embedded one")
	pf.String("state", "", "Path to the invocation history database")
	pf.Bool("no-history", false, "Do not record this run in the history database")

	// Compile flags on the root, for "lusque -f file"
	commands.BindCompileFlags(rootCmd.Flags(), compileOpts)

	// Register completion for enumerated flags
	_ = rootCmd.RegisterFlagCompletionFunc("output", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return config.OutputModes, cobra.ShellCompDirectiveNoFileComp
	})
	_ = rootCmd.RegisterFlagCompletionFunc("log-level", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return config.LogLevels, cobra.ShellCompDirectiveNoFileComp
	})
	_ = rootCmd.RegisterFlagCompletionFunc("log-format", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return config.LogFormats, cobra.ShellCompDirectiveNoFileComp
	})

	// Add subcommands
	rootCmd.AddCommand(commands.NewCompileCommand())
	rootCmd.AddCommand(commands.NewExtractCommand())
	rootCmd.AddCommand(commands.NewDoctorCommand())
	rootCmd.AddCommand(commands.NewHistoryCommand())
	rootCmd.AddCommand(commands.NewWatchCommand())
	rootCmd.AddCommand(commands.NewREPLCommand())
	rootCmd.AddCommand(commands.NewConfigCommand())
	rootCmd.AddCommand(commands.NewVersionCommand(Version))
	rootCmd.AddCommand(commands.NewInvokeCommand())
	rootCmd.AddCommand(NewCompletionCommand())

	return rootCmd
}

// Execute runs the root command.
func Execute() error {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

// NewCompletionCommand creates the completion command.
func NewCompletionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for lusque.

To load completions:

Bash:
  $ source <(lusque completion bash)

  # To load completions for each session, execute once:
  # Linux:
  $ lusque completion bash > /etc/bash_completion.d/lusque
  # macOS:
  $ lusque completion bash > $(brew --prefix)/etc/bash_completion.d/lusque

Zsh:
  # If shell completion is not already enabled in your environment,
  # you will need to enable it. Execute the following once:
  $ echo "autoload -U compinit; compinit" >> ~/.zshrc

  # To load completions for each session, execute once:
  $ lusque completion zsh > "${fpath[1]}/_lusque"

  # You will need to start a new shell for this setup to take effect.

Fish:
  $ lusque completion fish | source

  # To load completions for each session, execute once:
  $ lusque completion fish > ~/.config/fish/completions/lusque.fish

PowerShell:
  PS> lusque completion powershell | Out-String | Invoke-Expression

  # To load completions for every new session, run:
  PS> lusque completion powershell > lusque.ps1
  # and source this file from your PowerShell profile.
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(out)
			case "zsh":
				return cmd.Root().GenZshCompletion(out)
			case "fish":
				return cmd.Root().GenFishCompletion(out, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(out)
			}
			return nil
		},
	}
	return cmd
}
