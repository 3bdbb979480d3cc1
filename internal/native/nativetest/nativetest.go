// Package nativetest provides in-memory native.Loader implementations for
// tests that exercise the bridge without a real shared library.
package nativetest

import (
	"errors"
	"fmt"
	"sync"

	"github.com/leapstack-labs/lusque/internal/native"
)

// Loader is a fake native.Loader. Every path loads the same fake library.
type Loader struct {
	// LoadErr, when set, fails every Load.
	LoadErr error
	// Symbols maps exported names to their implementation.
	Symbols map[string]native.CompileFunc

	mu     sync.Mutex
	loads  []string
	closes int
	calls  []string
}

// NewLoader returns a loader whose library exports compile as fn.
func NewLoader(fn native.CompileFunc) *Loader {
	return &Loader{Symbols: map[string]native.CompileFunc{native.CompileSymbol: fn}}
}

// Load implements native.Loader.
func (l *Loader) Load(path string) (native.Module, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.LoadErr != nil {
		return nil, l.LoadErr
	}
	l.loads = append(l.loads, path)
	return &module{loader: l}, nil
}

// Loads returns the paths passed to Load, in order.
func (l *Loader) Loads() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.loads...)
}

// Closes returns how many modules were closed.
func (l *Loader) Closes() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closes
}

// Calls returns the sources compile was called with, in order.
func (l *Loader) Calls() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

type module struct {
	loader *Loader
}

func (m *module) ResolveCompile(name string) (native.CompileFunc, error) {
	fn, ok := m.loader.Symbols[name]
	if !ok {
		return nil, fmt.Errorf("undefined symbol: %s", name)
	}
	return func(source string) ([]byte, error) {
		m.loader.mu.Lock()
		m.loader.calls = append(m.loader.calls, source)
		m.loader.mu.Unlock()
		return fn(source)
	}, nil
}

func (m *module) Close() error {
	m.loader.mu.Lock()
	defer m.loader.mu.Unlock()
	m.loader.closes++
	return nil
}

// Fixed returns a compile function that always yields out.
func Fixed(out []byte) native.CompileFunc {
	return func(string) ([]byte, error) {
		return append([]byte(nil), out...), nil
	}
}

// Echo returns a compile function that yields the source bytes.
func Echo() native.CompileFunc {
	return func(source string) ([]byte, error) {
		return []byte(source), nil
	}
}

// ErrNoResult mirrors a library returning NULL.
var ErrNoResult = errors.New("compiler returned no result")

// Failing returns a compile function that reports err.
func Failing(err error) native.CompileFunc {
	return func(string) ([]byte, error) {
		return nil, err
	}
}
