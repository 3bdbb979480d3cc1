package artifact

import "runtime"

// LibraryName returns the logical name of the embedded compiler library for
// the running platform.
func LibraryName() string {
	return libraryName(runtime.GOOS)
}

// LibraryExt returns the dynamic-library extension for the running platform,
// including the leading dot.
func LibraryExt() string {
	return libraryExt(runtime.GOOS)
}

func libraryName(goos string) string {
	if goos == "windows" {
		return "lusque" + libraryExt(goos)
	}
	return "liblusque" + libraryExt(goos)
}

func libraryExt(goos string) string {
	switch goos {
	case "darwin", "ios":
		return ".dylib"
	case "windows":
		return ".dll"
	default:
		return ".so"
	}
}
