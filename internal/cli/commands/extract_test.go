package commands

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/lusque/internal/artifact"
)

func TestRunExtract(t *testing.T) {
	tests := []struct {
		mode  string
		check func(t *testing.T, out, path string)
	}{
		{
			mode: "text",
			check: func(t *testing.T, out, path string) {
				assert.Equal(t, path+"\n", out)
			},
		},
		{
			mode: "markdown",
			check: func(t *testing.T, out, path string) {
				assert.Contains(t, out, "- **path:** `"+path+"`")
				assert.Contains(t, out, "- **size:** 25 B")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.mode, func(t *testing.T) {
			env := newTestEnv(t, nil, "-o", tt.mode)

			require.NoError(t, runExtract(env.cmd))

			kept := artifacts(t, env.dir)
			require.Len(t, kept, 1, "extract leaves the file in place")
			path := filepath.Join(env.dir, kept[0])
			tt.check(t, env.out.String(), path)
		})
	}
}

func TestRunExtract_JSON(t *testing.T) {
	env := newTestEnv(t, nil, "-o", "json")

	require.NoError(t, runExtract(env.cmd))

	var got ExtractOutput
	require.NoError(t, json.Unmarshal(env.out.Bytes(), &got))
	assert.Equal(t, int64(len(fakeLibrary)), got.Size)
	assert.Len(t, got.SHA256, 64)
	require.NoError(t, artifact.Verify(got.Path, got.SHA256))
	assert.True(t, strings.HasSuffix(got.Path, artifact.LibraryExt()))
}

func TestRunExtract_Missing(t *testing.T) {
	env := newTestEnv(t, nil)
	setArtifact(t, fstest.MapFS{})

	err := runExtract(env.cmd)
	require.ErrorIs(t, err, artifact.ErrResourceNotFound)
	assert.Empty(t, artifacts(t, env.dir))
	assert.Empty(t, env.out.String())
}
