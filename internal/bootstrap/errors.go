package bootstrap

import (
	"errors"

	"github.com/leapstack-labs/lusque/internal/artifact"
	"github.com/leapstack-labs/lusque/internal/native"
)

// Process exit codes, one per failure stage. The isolated child uses the
// native codes to report which stage failed to its parent.
const (
	ExitOK               = 0
	ExitFailure          = 1
	ExitResourceNotFound = 3
	ExitIO               = 4
	ExitLibraryLoad      = 5
	ExitSymbolResolution = 6
	ExitNativeCall       = 7
)

// ErrorKind names the failure stage of err: "" for nil, "other" when the
// error carries no stage sentinel.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, artifact.ErrResourceNotFound):
		return "resource_not_found"
	case errors.Is(err, artifact.ErrIO):
		return "io"
	case errors.Is(err, native.ErrLibraryLoad):
		return "library_load"
	case errors.Is(err, native.ErrSymbolResolution):
		return "symbol_resolution"
	case errors.Is(err, native.ErrNativeCall):
		return "native_call"
	default:
		return "other"
	}
}

// ExitCode maps err to the process exit code for its failure stage.
func ExitCode(err error) int {
	switch ErrorKind(err) {
	case "":
		return ExitOK
	case "resource_not_found":
		return ExitResourceNotFound
	case "io":
		return ExitIO
	case "library_load":
		return ExitLibraryLoad
	case "symbol_resolution":
		return ExitSymbolResolution
	case "native_call":
		return ExitNativeCall
	default:
		return ExitFailure
	}
}

// childError maps an isolated child's exit code back to a sentinel. Any code
// the child does not emit itself (runtime crash, signal) is a native call
// failure.
func childError(code int) error {
	switch code {
	case ExitLibraryLoad:
		return native.ErrLibraryLoad
	case ExitSymbolResolution:
		return native.ErrSymbolResolution
	default:
		return native.ErrNativeCall
	}
}
