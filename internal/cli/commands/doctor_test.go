package commands

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/lusque/internal/artifact"
	"github.com/leapstack-labs/lusque/internal/cli/testutil"
	"github.com/leapstack-labs/lusque/internal/native"
	"github.com/leapstack-labs/lusque/internal/native/nativetest"
)

func checkStatuses(out *DoctorOutput) map[string]string {
	m := make(map[string]string, len(out.Checks))
	for _, c := range out.Checks {
		m[c.Name] = c.Status
	}
	return m
}

func TestRunDoctorChecks(t *testing.T) {
	if !native.Supported() {
		t.Skip("native loading is not supported on this platform")
	}

	tests := []struct {
		name    string
		loader  *nativetest.Loader
		args    []string
		missing bool
		want    map[string]string
	}{
		{
			name:   "all pass",
			loader: nativetest.NewLoader(nativetest.Fixed(nil)),
			want: map[string]string{
				"platform": checkPass, "artifact": checkPass, "temp_dir": checkPass,
				"materialize": checkPass, "load": checkPass, "symbol": checkPass, "history": checkPass,
			},
		},
		{
			name:    "artifact missing",
			loader:  nativetest.NewLoader(nativetest.Fixed(nil)),
			missing: true,
			want: map[string]string{
				"platform": checkPass, "artifact": checkFail, "temp_dir": checkPass,
				"materialize": checkSkip, "load": checkSkip, "symbol": checkSkip, "history": checkPass,
			},
		},
		{
			name:   "load fails",
			loader: &nativetest.Loader{LoadErr: assert.AnError},
			want: map[string]string{
				"platform": checkPass, "artifact": checkPass, "temp_dir": checkPass,
				"materialize": checkPass, "load": checkFail, "symbol": checkSkip, "history": checkPass,
			},
		},
		{
			name:   "symbol missing",
			loader: &nativetest.Loader{Symbols: map[string]native.CompileFunc{}},
			want: map[string]string{
				"platform": checkPass, "artifact": checkPass, "temp_dir": checkPass,
				"materialize": checkPass, "load": checkPass, "symbol": checkFail, "history": checkPass,
			},
		},
		{
			name:   "history disabled",
			loader: nativetest.NewLoader(nativetest.Fixed(nil)),
			args:   []string{"--no-history"},
			want: map[string]string{
				"platform": checkPass, "artifact": checkPass, "temp_dir": checkPass,
				"materialize": checkPass, "load": checkPass, "symbol": checkPass, "history": checkSkip,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, tt.loader, tt.args...)
			if tt.missing {
				setArtifact(t, fstest.MapFS{})
			}

			out := runDoctorChecks(env.cfg, artifactSource(), tt.loader, nil)

			assert.Equal(t, tt.want, checkStatuses(out))
			assert.Equal(t, len(out.Checks), out.Passed+out.Failed+out.Skipped)
			assert.Empty(t, artifacts(t, env.dir), "doctor removes what it materializes")
		})
	}
}

func TestRunDoctorChecks_Library(t *testing.T) {
	if !native.Supported() {
		t.Skip("native loading is not supported on this platform")
	}
	lib := filepath.Join(t.TempDir(), "libcustom.so")
	require.NoError(t, os.WriteFile(lib, []byte("custom"), 0o600))

	loader := nativetest.NewLoader(nativetest.Fixed(nil))
	env := newTestEnv(t, loader, "--library", lib)

	out := runDoctorChecks(env.cfg, artifactSource(), loader, nil)

	statuses := checkStatuses(out)
	assert.Equal(t, checkSkip, statuses["materialize"])
	assert.Equal(t, checkPass, statuses["load"])
	assert.Equal(t, lib, out.Library)
	assert.Equal(t, []string{lib}, loader.Loads())
}

func TestRunDoctor_ExitsWithFirstFailure(t *testing.T) {
	if !native.Supported() {
		t.Skip("native loading is not supported on this platform")
	}
	env := newTestEnv(t, nativetest.NewLoader(nativetest.Fixed(nil)), "-o", "text")
	setArtifact(t, fstest.MapFS{})

	err := runDoctor(env.cmd)
	require.Error(t, err)
	assert.ErrorIs(t, err, artifact.ErrResourceNotFound)
	assert.Contains(t, err.Error(), "1 doctor check(s) failed")

	out := env.out.String()
	testutil.AssertNoANSI(t, out)
	assert.Contains(t, out, "lusque doctor")
	assert.Contains(t, out, "3 passed, 1 failed, 3 skipped")
}

func TestRunDoctor_Output(t *testing.T) {
	if !native.Supported() {
		t.Skip("native loading is not supported on this platform")
	}

	t.Run("json", func(t *testing.T) {
		env := newTestEnv(t, nativetest.NewLoader(nativetest.Fixed(nil)), "-o", "json")
		require.NoError(t, runDoctor(env.cmd))

		var got DoctorOutput
		require.NoError(t, json.Unmarshal(env.out.Bytes(), &got))
		assert.Equal(t, 7, got.Passed)
		assert.Zero(t, got.Failed)
		assert.Len(t, got.Checks, 7)
	})

	t.Run("markdown", func(t *testing.T) {
		env := newTestEnv(t, nativetest.NewLoader(nativetest.Fixed(nil)), "-o", "markdown")
		require.NoError(t, runDoctor(env.cmd))

		out := env.out.String()
		testutil.AssertValidMarkdown(t, out)
		testutil.AssertNoANSI(t, out)
		assert.Contains(t, out, "# lusque doctor")
		assert.Contains(t, out, "| materialize | Pass |")
		assert.Contains(t, out, "**7 passed, 0 failed, 0 skipped**")
	})
}

func TestCheckTempDir(t *testing.T) {
	require.NoError(t, checkTempDir(t.TempDir(), artifact.DefaultPrefix))

	err := checkTempDir(filepath.Join(t.TempDir(), "missing"), artifact.DefaultPrefix)
	require.ErrorIs(t, err, artifact.ErrIO)
}
