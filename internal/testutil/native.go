package testutil

import (
	"embed"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"
)

//go:embed testdata/*.c
var librarySources embed.FS

// Native test libraries available to BuildNativeLibrary.
const (
	// LibFixed returns {1, 2, 3} for empty input and aborts for anything else.
	LibFixed = "fixed"
	// LibEcho returns 0xEC followed by the source bytes.
	LibEcho = "echo"
	// LibNoSymbol exports no compile function.
	LibNoSymbol = "nosymbol"
)

// FixedResult is what LibFixed returns for the empty program.
var FixedResult = []byte{1, 2, 3}

// BuildNativeLibrary compiles one of the C test libraries into a shared
// library under t.TempDir() and returns its path. The test is skipped when no
// C compiler is available or the platform is not a unix.
func BuildNativeLibrary(t testing.TB, name string) string {
	t.Helper()

	if runtime.GOOS != "linux" && runtime.GOOS != "darwin" && runtime.GOOS != "freebsd" {
		t.Skipf("native test libraries are not built on %s", runtime.GOOS)
	}
	cc := os.Getenv("CC")
	if cc == "" {
		cc = "cc"
	}
	ccPath, err := exec.LookPath(cc)
	if err != nil {
		t.Skipf("no C compiler available (%s): %v", cc, err)
	}

	src, err := librarySources.ReadFile("testdata/" + name + ".c")
	if err != nil {
		t.Fatalf("unknown test library %q: %v", name, err)
	}

	dir := t.TempDir()
	srcPath := filepath.Join(dir, name+".c")
	if err := os.WriteFile(srcPath, src, 0o600); err != nil {
		t.Fatalf("failed to write %s: %v", srcPath, err)
	}

	ext := ".so"
	args := []string{"-shared", "-fPIC", "-o"}
	if runtime.GOOS == "darwin" {
		ext = ".dylib"
		args = []string{"-dynamiclib", "-o"}
	}
	libPath := filepath.Join(dir, "lib"+name+ext)
	args = append(args, libPath, srcPath)

	out, err := exec.Command(ccPath, args...).CombinedOutput() //nolint:gosec // test-only compiler invocation
	if err != nil {
		t.Skipf("failed to build test library %s: %v\n%s", name, err, out)
	}
	return libPath
}

// ReadNativeLibrary builds name and returns its bytes, for tests that embed
// the library through an fs.FS.
func ReadNativeLibrary(t testing.TB, name string) []byte {
	t.Helper()
	data, err := os.ReadFile(BuildNativeLibrary(t, name))
	if err != nil {
		t.Fatalf("failed to read test library %s: %v", name, err)
	}
	return data
}
