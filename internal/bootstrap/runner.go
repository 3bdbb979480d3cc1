// Package bootstrap runs the full shim sequence: materialize the embedded
// compiler library, load it, call compile once and release everything.
//
// The native call runs either in this process, where a fault inside the
// compiler takes the process down, or in a re-executed child process, where
// the same fault becomes an ErrNativeCall reported to the caller.
package bootstrap

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/leapstack-labs/lusque/internal/artifact"
	"github.com/leapstack-labs/lusque/internal/native"
)

// Mode selects where the native call runs.
type Mode string

// Supported modes.
const (
	ModeInProcess Mode = "in-process"
	ModeIsolated  Mode = "isolated"
)

// Status is the outcome of a run.
type Status string

// Run outcomes.
const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// Result describes one run of the sequence.
type Result struct {
	ID             string        `json:"id"`
	StartedAt      time.Time     `json:"started_at"`
	Duration       time.Duration `json:"duration"`
	Mode           Mode          `json:"mode"`
	LibraryPath    string        `json:"library_path"`
	ArtifactSHA256 string        `json:"artifact_sha256,omitempty"`
	SourceLen      int           `json:"source_len"`
	SourceSHA256   string        `json:"source_sha256"`
	Output         []byte        `json:"-"`
	Status         Status        `json:"status"`
	ErrorKind      string        `json:"error_kind,omitempty"`
	Error          string        `json:"error,omitempty"`
}

// Recorder persists finished runs.
type Recorder interface {
	Record(ctx context.Context, res *Result) error
}

// Config holds runner settings.
type Config struct {
	// Source is the artifact to materialize. Ignored when LibraryPath is set.
	Source artifact.Source
	// TempDir and Prefix control the materialized file name.
	TempDir string
	Prefix  string
	// KeepArtifact leaves the materialized file on disk after the run.
	KeepArtifact bool
	// LibraryPath loads an existing library instead of the embedded one.
	// The file is never removed.
	LibraryPath string

	// Isolate runs the native call in a child process.
	Isolate bool
	// Timeout bounds an isolated child. Zero means no limit.
	Timeout time.Duration
	// Command is the child command prefix; the library path is appended.
	// Empty means the current executable with InvokeCommand.
	Command []string
	// Env is appended to the child's environment.
	Env []string

	// Loader loads libraries for in-process runs. Nil means native.SystemLoader.
	Loader native.Loader
	// Recorder, when set, receives every finished run.
	Recorder Recorder
	Logger   *slog.Logger
}

// Runner executes the bootstrap sequence.
type Runner struct {
	cfg    Config
	logger *slog.Logger
}

// New creates a runner.
func New(cfg Config) *Runner {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if cfg.Loader == nil {
		cfg.Loader = native.SystemLoader
	}
	return &Runner{cfg: cfg, logger: logger}
}

// Mode reports where the native call will run.
func (r *Runner) Mode() Mode {
	if r.cfg.Isolate {
		return ModeIsolated
	}
	return ModeInProcess
}

// Run materializes the library, compiles source with it and releases the
// temporary file and load handle on every path. The Result is returned even
// when err is non-nil.
func (r *Runner) Run(ctx context.Context, source string) (*Result, error) {
	start := time.Now()
	sum := sha256.Sum256([]byte(source))
	res := &Result{
		ID:           uuid.NewString(),
		StartedAt:    start.UTC(),
		Mode:         r.Mode(),
		SourceLen:    len(source),
		SourceSHA256: hex.EncodeToString(sum[:]),
	}
	logger := r.logger.With(slog.String("run_id", res.ID), slog.String("mode", string(res.Mode)))

	out, err := r.run(ctx, logger, res, source)
	res.Duration = time.Since(start)
	if err != nil {
		res.Status = StatusFailed
		res.ErrorKind = ErrorKind(err)
		res.Error = err.Error()
		logger.Debug("run failed", slog.String("error_kind", res.ErrorKind), slog.Any("error", err))
	} else {
		res.Status = StatusSuccess
		res.Output = out
		logger.Info("run completed",
			slog.Int("source_len", res.SourceLen),
			slog.Int("output_len", len(out)),
			slog.Duration("duration", res.Duration),
		)
	}

	if r.cfg.Recorder != nil {
		// Record even when the caller's context was cancelled mid-run.
		if rerr := r.cfg.Recorder.Record(context.WithoutCancel(ctx), res); rerr != nil {
			logger.Warn("failed to record invocation", slog.Any("error", rerr))
		}
	}
	return res, err
}

func (r *Runner) run(ctx context.Context, logger *slog.Logger, res *Result, source string) ([]byte, error) {
	path, release, err := r.prepare(logger, res)
	if err != nil {
		return nil, err
	}
	defer release()
	res.LibraryPath = path

	if r.cfg.Isolate {
		return r.invokeIsolated(ctx, logger, path, source)
	}
	return r.invokeInProcess(logger, path, source)
}

// prepare returns the library path and a release function.
func (r *Runner) prepare(logger *slog.Logger, res *Result) (string, func(), error) {
	if p := r.cfg.LibraryPath; p != "" {
		info, err := artifact.Describe(artifact.Source{FS: os.DirFS(filepath.Dir(p)), Name: filepath.Base(p)})
		if err == nil {
			res.ArtifactSHA256 = info.SHA256
		}
		return p, func() {}, nil
	}

	m, err := artifact.Materialize(r.cfg.Source, artifact.Options{
		Dir:    r.cfg.TempDir,
		Prefix: r.cfg.Prefix,
		Logger: logger,
	})
	if err != nil {
		return "", nil, err
	}
	res.ArtifactSHA256 = m.SHA256

	release := func() {
		if r.cfg.KeepArtifact {
			logger.Info("keeping materialized artifact", slog.String("path", m.Path))
			return
		}
		if err := m.Remove(); err != nil {
			logger.Warn("failed to remove materialized artifact", slog.String("path", m.Path), slog.Any("error", err))
		}
	}
	return m.Path, release, nil
}

func (r *Runner) invokeInProcess(logger *slog.Logger, path, source string) ([]byte, error) {
	lib, err := native.OpenWith(r.cfg.Loader, path, native.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := lib.Close(); err != nil {
			logger.Warn("failed to unload library", slog.String("path", path), slog.Any("error", err))
		}
	}()
	return lib.Compile(source)
}
