//go:build windows

package native

import (
	"unsafe"

	"golang.org/x/sys/windows"
)

const supported = true

type systemLoader struct{}

type dllModule struct {
	dll *windows.DLL
}

func (systemLoader) Load(path string) (Module, error) {
	dll, err := windows.LoadDLL(path)
	if err != nil {
		return nil, err
	}
	return &dllModule{dll: dll}, nil
}

func (m *dllModule) ResolveCompile(name string) (CompileFunc, error) {
	proc, err := m.dll.FindProc(name)
	if err != nil {
		return nil, err
	}

	return func(source string) ([]byte, error) {
		src, err := windows.BytePtrFromString(source)
		if err != nil {
			return nil, err
		}
		var n uintptr
		r, _, _ := proc.Call(
			uintptr(unsafe.Pointer(src)),
			uintptr(len(source)),
			uintptr(unsafe.Pointer(&n)),
		)
		if r == 0 {
			return nil, errNoResult
		}
		out := make([]byte, n)
		copy(out, unsafe.Slice((*byte)(unsafe.Pointer(r)), n)) //nolint:govet // r is a pointer owned by the library
		return out, nil
	}, nil
}

func (m *dllModule) Close() error {
	return m.dll.Release()
}
