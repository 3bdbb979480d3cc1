package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/lusque/internal/bootstrap"
)

// WatchOptions holds options for the watch command.
type WatchOptions struct {
	Debounce time.Duration
}

// NewWatchCommand creates the watch command.
func NewWatchCommand() *cobra.Command {
	opts := &WatchOptions{}
	cmd := &cobra.Command{
		Use:   "watch <file>",
		Short: "Recompile a file whenever it changes",
		Long: `Compile FILE once, then again after every change until interrupted.

Each compile is a full, independent run: the library is extracted, loaded,
called once and released, so a compiler that keeps global state never sees
two calls on the same load. Errors are reported and watching continues.`,
		Example: `  lusque watch main.lq
  lusque watch main.lq -o hex --debounce 250ms`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, opts, args[0])
		},
	}

	cmd.Flags().DurationVar(&opts.Debounce, "debounce", 100*time.Millisecond, "Wait this long after the last change before compiling")

	return cmd
}

func runWatch(cmd *cobra.Command, opts *WatchOptions, file string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmdCtx := NewCommandContext(cmd)
	runner, cleanup := cmdCtx.NewRunner()
	defer cleanup()

	cmdCtx.Renderer.Info(fmt.Sprintf("Watching %s (Ctrl-C to stop)", file))
	return watchFile(ctx, cmdCtx, runner, file, opts.Debounce)
}

// watchFile compiles path now and after every debounced change until ctx ends.
func watchFile(ctx context.Context, cmdCtx *CommandContext, runner *bootstrap.Runner, path string, debounce time.Duration) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if _, err := os.Stat(abs); err != nil {
		return fmt.Errorf("cannot watch %s: %w", path, err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to start file watcher: %w", err)
	}
	defer func() { _ = w.Close() }()

	// Watch the directory so editors that replace the file on save are seen.
	if err := w.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}

	trigger := make(chan struct{}, 1)
	trigger <- struct{}{}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var timer *time.Timer
		var fire <-chan time.Time
		defer func() {
			if timer != nil {
				timer.Stop()
			}
		}()

		for {
			select {
			case <-gctx.Done():
				return nil
			case ev, ok := <-w.Events:
				if !ok {
					return nil
				}
				if filepath.Clean(ev.Name) != abs || (!ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create)) {
					continue
				}
				cmdCtx.Logger.Debug("source changed", slog.String("path", ev.Name), slog.String("op", ev.Op.String()))
				if timer == nil {
					timer = time.NewTimer(debounce)
				} else {
					timer.Reset(debounce)
				}
				fire = timer.C
			case err, ok := <-w.Errors:
				if !ok {
					return nil
				}
				cmdCtx.Logger.Warn("file watcher error", slog.Any("error", err))
			case <-fire:
				fire = nil
				select {
				case trigger <- struct{}{}:
				default:
				}
			}
		}
	})

	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-trigger:
				compileWatched(gctx, cmdCtx, runner, abs)
			}
		}
	})

	return g.Wait()
}

func compileWatched(ctx context.Context, cmdCtx *CommandContext, runner *bootstrap.Runner, path string) {
	r := cmdCtx.Renderer

	src, err := os.ReadFile(path) //nolint:gosec // user-selected source file
	if err != nil {
		r.Error(fmt.Sprintf("Error: failed to read source file: %v", err))
		return
	}

	res, err := runner.Run(ctx, string(src))
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		r.Error(fmt.Sprintf("Error: %v", err))
		return
	}
	if err := r.Bytes(res.ID, res.Output); err != nil {
		cmdCtx.Logger.Warn("failed to render output", slog.Any("error", err))
	}
}
