//go:build (darwin || freebsd || linux) && !android

package native

import (
	"fmt"
	"unsafe"

	"github.com/ebitengine/purego"
)

const supported = true

type systemLoader struct{}

type dlModule struct {
	handle uintptr
}

// Load opens path with RTLD_NOW so unresolved dependencies fail here rather
// than on first call, and RTLD_LOCAL so the compiler's symbols stay private.
func (systemLoader) Load(path string) (Module, error) {
	handle, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_LOCAL)
	if err != nil {
		return nil, err
	}
	return &dlModule{handle: handle}, nil
}

func (m *dlModule) ResolveCompile(name string) (CompileFunc, error) {
	sym, err := purego.Dlsym(m.handle, name)
	if err != nil {
		return nil, err
	}
	if sym == 0 {
		return nil, fmt.Errorf("symbol %q has a nil address", name)
	}

	var compile func(source string, sourceLen uintptr, outLen *uintptr) unsafe.Pointer
	purego.RegisterFunc(&compile, sym)

	return func(source string) ([]byte, error) {
		var n uintptr
		p := compile(source, uintptr(len(source)), &n)
		if p == nil {
			return nil, errNoResult
		}
		out := make([]byte, n)
		copy(out, unsafe.Slice((*byte)(p), n))
		return out, nil
	}, nil
}

func (m *dlModule) Close() error {
	return purego.Dlclose(m.handle)
}
