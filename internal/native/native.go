// Package native loads the compiler library into the process and calls its
// single exported entry point.
//
// The library must export, with the platform's C calling convention:
//
//	const uint8_t *compile(const char *source, size_t source_len, size_t *out_len);
//
// source is NUL-terminated and length-delimited. The returned buffer is owned
// by the library; it is copied before Compile returns. A NULL return is a
// failed call, while a non-NULL return with *out_len == 0 is an empty result.
package native

import (
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// CompileSymbol is the only symbol resolved from the library.
const CompileSymbol = "compile"

var (
	// ErrLibraryLoad is returned when the file cannot be loaded as a library.
	ErrLibraryLoad = errors.New("library load failure")

	// ErrSymbolResolution is returned when the compile entry point is absent.
	ErrSymbolResolution = errors.New("symbol resolution failure")

	// ErrNativeCall is returned when the native call reports a failure.
	ErrNativeCall = errors.New("native call failure")

	// ErrUnsupportedPlatform is wrapped in ErrLibraryLoad where no loader exists.
	ErrUnsupportedPlatform = errors.New("dynamic loading is not supported on this platform")

	// ErrClosed is returned by Compile after Close.
	ErrClosed = errors.New("library is closed")

	// errNoResult is reported by loaders when compile returns NULL.
	errNoResult = errors.New("compiler returned no result")
)

// CompileFunc is the Go binding of the compile entry point.
type CompileFunc func(source string) ([]byte, error)

// Module is a dynamically loaded native library.
type Module interface {
	// ResolveCompile looks up name and binds it to the compile signature.
	ResolveCompile(name string) (CompileFunc, error)
	// Close unloads the library.
	Close() error
}

// Loader maps a library file into the process.
type Loader interface {
	Load(path string) (Module, error)
}

// LoaderFunc adapts a function to the Loader interface.
type LoaderFunc func(path string) (Module, error)

// Load implements Loader.
func (f LoaderFunc) Load(path string) (Module, error) { return f(path) }

// SystemLoader uses the platform's dynamic loader.
var SystemLoader Loader = systemLoader{}

// Supported reports whether SystemLoader can load libraries on this platform.
func Supported() bool { return supported }

// Library is a loaded compiler library with its entry point resolved.
type Library struct {
	path    string
	mod     Module
	compile CompileFunc
	logger  *slog.Logger
	closed  bool
}

// Option configures Open.
type Option func(*Library)

// WithLogger sets the logger used for load and call diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Library) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// Open loads the library at path with the system loader and resolves compile.
func Open(path string, opts ...Option) (*Library, error) {
	return OpenWith(SystemLoader, path, opts...)
}

// OpenWith is Open with an explicit loader.
func OpenWith(loader Loader, path string, opts ...Option) (*Library, error) {
	lib := &Library{path: path, logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(lib)
	}

	mod, err := loader.Load(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrLibraryLoad, path, err)
	}
	if mod == nil {
		return nil, fmt.Errorf("%w: %s: loader returned no module", ErrLibraryLoad, path)
	}

	fn, err := mod.ResolveCompile(CompileSymbol)
	if err == nil && fn == nil {
		err = errors.New("resolved to nil")
	}
	if err != nil {
		_ = mod.Close()
		return nil, fmt.Errorf("%w: %q in %s: %w", ErrSymbolResolution, CompileSymbol, path, err)
	}

	lib.mod = mod
	lib.compile = fn
	lib.logger.Debug("library loaded", slog.String("path", path))
	return lib, nil
}

// Path returns the file the library was loaded from.
func (l *Library) Path() string { return l.path }

// Compile calls the native compile function once with source and returns a
// copy of its output.
func (l *Library) Compile(source string) ([]byte, error) {
	if l.closed {
		return nil, fmt.Errorf("%w: %s", ErrClosed, l.path)
	}

	start := time.Now()
	out, err := l.call(source)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrNativeCall, l.path, err)
	}
	l.logger.Debug("native compile returned",
		slog.Int("source_len", len(source)),
		slog.Int("output_len", len(out)),
		slog.Duration("elapsed", time.Since(start)),
	)
	return out, nil
}

// call converts Go panics raised by the binding into errors. Faults inside
// the native code itself are not recoverable here.
func (l *Library) call(source string) (out []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in native binding: %v", r)
		}
	}()
	return l.compile(source)
}

// Close unloads the library. Calling it more than once is a no-op.
func (l *Library) Close() error {
	if l == nil || l.closed {
		return nil
	}
	l.closed = true
	if err := l.mod.Close(); err != nil {
		return fmt.Errorf("unload %s: %w", l.path, err)
	}
	l.logger.Debug("library unloaded", slog.String("path", l.path))
	return nil
}

// LoadAndCompile opens path, calls compile once with source and unloads.
func LoadAndCompile(path, source string, opts ...Option) ([]byte, error) {
	return LoadAndCompileWith(SystemLoader, path, source, opts...)
}

// LoadAndCompileWith is LoadAndCompile with an explicit loader.
func LoadAndCompileWith(loader Loader, path, source string, opts ...Option) ([]byte, error) {
	lib, err := OpenWith(loader, path, opts...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = lib.Close() }()
	return lib.Compile(source)
}
