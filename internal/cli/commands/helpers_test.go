package commands

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/lusque/internal/artifact"
	"github.com/leapstack-labs/lusque/internal/cli/config"
	"github.com/leapstack-labs/lusque/internal/native"
	"github.com/leapstack-labs/lusque/internal/native/nativetest"
	"github.com/leapstack-labs/lusque/internal/testutil"
)

// fakeLibrary stands in for the embedded library bytes.
var fakeLibrary = []byte("\x7fELF not really a library")

type testEnv struct {
	cmd    *cobra.Command
	out    *bytes.Buffer
	errOut *bytes.Buffer
	loader *nativetest.Loader
	dir    string
	cfg    *config.Config
}

// newTestEnv loads configuration from args on top of test defaults, installs
// a fake artifact and loader, and returns a command wired to buffers.
// Runs default to in-process with history in dir/state.db.
func newTestEnv(t *testing.T, loader *nativetest.Loader, args ...string) *testEnv {
	t.Helper()

	dir := t.TempDir()
	t.Chdir(dir)
	config.ResetConfig()
	t.Cleanup(config.ResetConfig)

	flags := testFlags()
	base := []string{"--temp-dir", dir, "--isolate=false", "--state", filepath.Join(dir, "state.db")}
	require.NoError(t, flags.Parse(append(base, args...)))
	cfg, err := config.LoadConfig("", flags)
	require.NoError(t, err)

	setArtifact(t, fstest.MapFS{artifact.LibraryName(): &fstest.MapFile{Data: fakeLibrary}})
	if loader != nil {
		prev := nativeLoader
		nativeLoader = func() native.Loader { return loader }
		t.Cleanup(func() { nativeLoader = prev })
	}

	out := new(bytes.Buffer)
	errOut := new(bytes.Buffer)
	cmd := &cobra.Command{Use: "test"}
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetIn(new(bytes.Buffer))
	cmd.SetContext(context.WithValue(context.Background(), config.LoggerKey(), testutil.NewTestLogger(t)))

	return &testEnv{cmd: cmd, out: out, errOut: errOut, loader: loader, dir: dir, cfg: cfg}
}

// setArtifact replaces the embedded artifact with fsys for the rest of the test.
func setArtifact(t *testing.T, fsys fstest.MapFS) {
	t.Helper()
	prev := artifactSource
	artifactSource = func() artifact.Source {
		return artifact.Source{FS: fsys, Name: artifact.LibraryName()}
	}
	t.Cleanup(func() { artifactSource = prev })
}

// testFlags mirrors the root command's persistent flags.
func testFlags() *pflag.FlagSet {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.StringP("output", "o", "", "")
	flags.BoolP("verbose", "v", false, "")
	flags.String("log-level", "", "")
	flags.String("log-format", "", "")
	flags.String("temp-dir", "", "")
	flags.Bool("keep-artifact", false, "")
	flags.Bool("isolate", true, "")
	flags.Duration("timeout", 0, "")
	flags.String("library", "", "")
	flags.String("state", "", "")
	flags.Bool("no-history", false, "")
	return flags
}

// artifacts lists materialized library files left in dir.
func artifacts(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), artifact.DefaultPrefix) {
			names = append(names, e.Name())
		}
	}
	return names
}
