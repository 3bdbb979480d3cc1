package artifact

import (
	"embed"
	"io/fs"
)

// The release build drops the compiler library into native/ before
// compiling; the README keeps the pattern matching in development trees.
//
//go:embed native
var nativeFS embed.FS

// Embedded returns the artifact source compiled into this binary.
func Embedded() Source {
	sub, err := fs.Sub(nativeFS, "native")
	if err != nil {
		// fs.Sub only fails on an invalid directory name.
		panic(err)
	}
	return Source{FS: sub, Name: LibraryName()}
}
