package bootstrap

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/lusque/internal/native"
)

// InvokeCommand is the hidden subcommand the isolated child runs.
const InvokeCommand = "__invoke"

// stderrTail bounds how much child stderr is kept for error messages.
const stderrTail = 4 << 10

func (r *Runner) childCommand() ([]string, error) {
	if len(r.cfg.Command) > 0 {
		return r.cfg.Command, nil
	}
	exe, err := os.Executable()
	if err != nil {
		return nil, err
	}
	return []string{exe, InvokeCommand}, nil
}

// invokeIsolated runs the native call in a child process. The child loads
// path exactly once, so a crash inside the compiler only ends the child.
func (r *Runner) invokeIsolated(ctx context.Context, logger *slog.Logger, path, source string) ([]byte, error) {
	if r.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.Timeout)
		defer cancel()
	}

	argv, err := r.childCommand()
	if err != nil {
		return nil, fmt.Errorf("%w: locate executable: %w", native.ErrNativeCall, err)
	}
	args := append(append([]string(nil), argv[1:]...), path)

	cmd := exec.CommandContext(ctx, argv[0], args...) //nolint:gosec // argv is our own executable
	cmd.Env = append(os.Environ(), r.cfg.Env...)
	cmd.Stdin = strings.NewReader(source)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", native.ErrNativeCall, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", native.ErrNativeCall, err)
	}

	logger.Debug("starting isolated child", slog.String("command", argv[0]), slog.String("library", path))
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: start isolated child: %w", native.ErrNativeCall, err)
	}

	var out bytes.Buffer
	errOut := &tailBuffer{max: stderrTail}
	var g errgroup.Group
	g.Go(func() error {
		_, err := io.Copy(&out, stdout)
		return err
	})
	g.Go(func() error {
		_, err := io.Copy(errOut, stderr)
		return err
	})
	copyErr := g.Wait()
	waitErr := cmd.Wait()

	if waitErr != nil && ctx.Err() != nil {
		return nil, fmt.Errorf("%w: %s: isolated child stopped: %w", native.ErrNativeCall, path, ctx.Err())
	}

	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		code := exitErr.ExitCode()
		sentinel := childError(code)
		var msg string
		if childReported(code) {
			msg = childMessage(errOut.String(), sentinel)
		}
		if msg == "" {
			msg = exitErr.String()
		}
		logger.Debug("isolated child failed", slog.Int("exit_code", code), slog.String("stderr", errOut.String()))
		return nil, fmt.Errorf("%w: isolated child: %s", sentinel, msg)
	}
	if waitErr != nil {
		return nil, fmt.Errorf("%w: %s: %w", native.ErrNativeCall, path, waitErr)
	}
	if copyErr != nil {
		return nil, fmt.Errorf("%w: %s: read child output: %w", native.ErrNativeCall, path, copyErr)
	}

	if s := errOut.String(); s != "" {
		logger.Debug("isolated child stderr", slog.String("stderr", s))
	}
	return out.Bytes(), nil
}

// childReported reports whether code is one the child exits with after
// printing its own error. Anything else is a crash or a signal.
func childReported(code int) bool {
	switch code {
	case ExitFailure, ExitLibraryLoad, ExitSymbolResolution, ExitNativeCall:
		return true
	}
	return false
}

// childMessage picks the last "Error: " line of the child's stderr and drops
// the prefix and the repeated sentinel text.
func childMessage(stderr string, sentinel error) string {
	lines := strings.Split(strings.TrimSpace(stderr), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line, ok := strings.CutPrefix(strings.TrimSpace(lines[i]), "Error: ")
		if !ok {
			continue
		}
		return strings.TrimPrefix(line, sentinel.Error()+": ")
	}
	return ""
}

// Serve is the isolated child's side of the protocol: read the source from
// in, load path once, call compile and write the raw result to out.
func Serve(in io.Reader, out io.Writer, path string, loader native.Loader, logger *slog.Logger) error {
	if loader == nil {
		loader = native.SystemLoader
	}
	src, err := io.ReadAll(in)
	if err != nil {
		return fmt.Errorf("read source: %w", err)
	}
	res, err := native.LoadAndCompileWith(loader, path, string(src), native.WithLogger(logger))
	if err != nil {
		return err
	}
	if _, err := out.Write(res); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	max int
	buf []byte
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.buf = append(b.buf, p...)
	if over := len(b.buf) - b.max; over > 0 {
		b.buf = b.buf[over:]
	}
	return len(p), nil
}

func (b *tailBuffer) String() string { return string(b.buf) }
