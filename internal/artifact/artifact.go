// Package artifact materializes the embedded native compiler library onto
// the local filesystem so the dynamic loader can open it by path.
//
// Every materialization claims its own uniquely named file in the temporary
// area, so concurrent processes sharing the same embedded artifact never
// collide. The caller owns the file and releases it with Materialized.Remove.
package artifact

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// DefaultPrefix is the file name prefix of materialized libraries.
const DefaultPrefix = "liblusque-"

var (
	// ErrResourceNotFound is returned when the artifact is absent from its source.
	ErrResourceNotFound = errors.New("embedded artifact not found")

	// ErrIO is returned when the temporary file cannot be created or written.
	ErrIO = errors.New("artifact i/o failure")
)

// Source locates an artifact inside a read-only filesystem.
type Source struct {
	FS   fs.FS
	Name string
}

// Info describes an artifact's content.
type Info struct {
	Name   string `json:"name"`
	Size   int64  `json:"size"`
	SHA256 string `json:"sha256"`
}

// Options controls where and how an artifact is materialized.
type Options struct {
	// Dir is the directory for the temporary file. Empty means os.TempDir().
	Dir string
	// Prefix is prepended to the random file name. Empty means DefaultPrefix.
	Prefix string
	// Logger receives debug output. Nil discards.
	Logger *slog.Logger
}

// Materialized is an artifact written to the filesystem.
type Materialized struct {
	Path   string
	Size   int64
	SHA256 string

	removed bool
}

// Remove deletes the materialized file. Calling it more than once is a no-op.
func (m *Materialized) Remove() error {
	if m == nil || m.removed {
		return nil
	}
	m.removed = true
	if err := os.Remove(m.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: remove %s: %w", ErrIO, m.Path, err)
	}
	return nil
}

// open returns the artifact's content, or ErrResourceNotFound.
func (s Source) open() (fs.File, error) {
	if s.FS == nil || s.Name == "" {
		return nil, fmt.Errorf("%w: no source configured", ErrResourceNotFound)
	}
	f, err := s.FS.Open(s.Name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrResourceNotFound, s.Name)
		}
		return nil, fmt.Errorf("%w: open %s: %w", ErrIO, s.Name, err)
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("%w: stat %s: %w", ErrIO, s.Name, err)
	}
	if st.IsDir() {
		_ = f.Close()
		return nil, fmt.Errorf("%w: %s is a directory", ErrResourceNotFound, s.Name)
	}
	return f, nil
}

// Describe reports the size and digest of the artifact without writing it out.
func Describe(src Source) (*Info, error) {
	in, err := src.open()
	if err != nil {
		return nil, err
	}
	defer func() { _ = in.Close() }()

	h := sha256.New()
	n, err := io.Copy(h, in)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", ErrIO, src.Name, err)
	}
	return &Info{Name: src.Name, Size: n, SHA256: hex.EncodeToString(h.Sum(nil))}, nil
}

// Materialize copies the artifact into a new uniquely named file and returns
// its absolute path. No file is created when the artifact is missing, and a
// partially written file is removed before an error is returned.
func Materialize(src Source, opts Options) (*Materialized, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	prefix := opts.Prefix
	if prefix == "" {
		prefix = DefaultPrefix
	}

	in, err := src.open()
	if err != nil {
		return nil, err
	}
	defer func() { _ = in.Close() }()

	start := time.Now()
	f, err := os.CreateTemp(opts.Dir, prefix+"*"+LibraryExt())
	if err != nil {
		return nil, fmt.Errorf("%w: create temp file: %w", ErrIO, err)
	}
	path := f.Name()

	h := sha256.New()
	n, err := io.Copy(io.MultiWriter(f, h), in)
	if err == nil {
		err = f.Sync()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		// The loader maps the file executable on some platforms.
		err = os.Chmod(path, 0o700)
	}
	if err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("%w: write %s: %w", ErrIO, path, err)
	}

	if abs, aerr := filepath.Abs(path); aerr == nil {
		path = abs
	}

	m := &Materialized{Path: path, Size: n, SHA256: hex.EncodeToString(h.Sum(nil))}
	logger.Debug("artifact materialized",
		slog.String("name", src.Name),
		slog.String("path", m.Path),
		slog.Int64("size", m.Size),
		slog.Duration("elapsed", time.Since(start)),
	)
	return m, nil
}

// Verify re-reads path and checks it against the expected SHA-256 digest.
func Verify(path, wantSHA256 string) error {
	f, err := os.Open(path) //nolint:gosec // path is produced by Materialize
	if err != nil {
		return fmt.Errorf("%w: open %s: %w", ErrIO, path, err)
	}
	defer func() { _ = f.Close() }()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return fmt.Errorf("%w: read %s: %w", ErrIO, path, err)
	}
	if got := hex.EncodeToString(h.Sum(nil)); got != wantSHA256 {
		return fmt.Errorf("%w: %s: digest mismatch: got %s, want %s", ErrIO, path, got, wantSHA256)
	}
	return nil
}
