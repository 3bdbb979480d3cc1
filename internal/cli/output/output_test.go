package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTest(mode Mode, isTTY bool) (*Renderer, *bytes.Buffer, *bytes.Buffer) {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	return NewRendererWithTTY(out, errOut, isTTY, mode), out, errOut
}

func TestFormatText(t *testing.T) {
	tests := []struct {
		in   []byte
		want string
	}{
		{nil, "[]"},
		{[]byte{}, "[]"},
		{[]byte{1, 2, 3}, "[1, 2, 3]"},
		{[]byte{0, 255}, "[0, 255]"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatText(tt.in))
		})
	}
}

func TestFormatHex(t *testing.T) {
	got := FormatHex([]byte{1, 2, 3})
	assert.True(t, strings.HasPrefix(got, "00000000  01 02 03"), got)
	assert.Contains(t, got, "|...|")
	assert.Empty(t, FormatHex(nil))
}

func TestRenderer_EffectiveMode(t *testing.T) {
	tests := []struct {
		mode Mode
		want Mode
	}{
		{ModeAuto, ModeText},
		{"", ModeText},
		{ModeText, ModeText},
		{ModeHex, ModeHex},
		{ModeJSON, ModeJSON},
		{ModeMarkdown, ModeMarkdown},
		{ModeRaw, ModeRaw},
	}
	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			r, _, _ := newTest(tt.mode, false)
			assert.Equal(t, tt.want, r.EffectiveMode())
		})
	}
}

func TestRenderer_Bytes(t *testing.T) {
	payload := []byte{1, 2, 3}

	t.Run("text", func(t *testing.T) {
		r, out, _ := newTest(ModeText, false)
		require.NoError(t, r.Bytes("run-1", payload))
		assert.Equal(t, "[1, 2, 3]\n", out.String())
	})

	t.Run("auto is text", func(t *testing.T) {
		r, out, _ := newTest(ModeAuto, true)
		require.NoError(t, r.Bytes("", payload))
		assert.Equal(t, "[1, 2, 3]\n", out.String())
	})

	t.Run("empty text", func(t *testing.T) {
		r, out, _ := newTest(ModeText, false)
		require.NoError(t, r.Bytes("", nil))
		assert.Equal(t, "[]\n", out.String())
	})

	t.Run("raw", func(t *testing.T) {
		r, out, _ := newTest(ModeRaw, false)
		require.NoError(t, r.Bytes("", []byte{0, 0xff, '\n'}))
		assert.Equal(t, []byte{0, 0xff, '\n'}, out.Bytes())
	})

	t.Run("hex", func(t *testing.T) {
		r, out, _ := newTest(ModeHex, false)
		require.NoError(t, r.Bytes("", payload))
		assert.Equal(t, FormatHex(payload), out.String())
	})

	t.Run("json", func(t *testing.T) {
		r, out, _ := newTest(ModeJSON, false)
		require.NoError(t, r.Bytes("run-1", payload))

		var got BytesOutput
		require.NoError(t, json.Unmarshal(out.Bytes(), &got))
		assert.Equal(t, "run-1", got.ID)
		assert.Equal(t, 3, got.Length)
		assert.Equal(t, []int{1, 2, 3}, got.Bytes)
		assert.Equal(t, "010203", got.Hex)
	})

	t.Run("json empty has empty array", func(t *testing.T) {
		r, out, _ := newTest(ModeJSON, false)
		require.NoError(t, r.Bytes("", nil))
		assert.Contains(t, out.String(), `"bytes": []`)
	})

	t.Run("markdown", func(t *testing.T) {
		r, out, _ := newTest(ModeMarkdown, false)
		require.NoError(t, r.Bytes("run-1", payload))
		s := out.String()
		assert.True(t, strings.HasPrefix(s, "```\n00000000  01 02 03"), s)
		assert.Contains(t, s, "**3 B** (3 bytes)")
		assert.Contains(t, s, "`run-1`")
	})
}

func TestRenderer_NoANSIWhenPiped(t *testing.T) {
	r, out, errOut := newTest(ModeText, false)
	r.Println(r.Header("Header"))
	r.Success("done")
	r.Warning("careful")
	r.Error("bad")
	r.Info("fyi")

	assert.NotContains(t, out.String(), "\x1b[")
	assert.NotContains(t, errOut.String(), "\x1b[")
	assert.Contains(t, out.String(), "Header")
	assert.Contains(t, errOut.String(), "✓ done")
	assert.Contains(t, errOut.String(), "Warning: careful")
	assert.Contains(t, errOut.String(), "bad")
	assert.Contains(t, errOut.String(), "fyi")
}

func TestRenderer_NoColorEnv(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	r, out, _ := newTest(ModeText, true)
	r.Println(r.Styles().Error.Render("red"))
	assert.Equal(t, "red\n", out.String())
}

func TestRenderer_Table(t *testing.T) {
	header := []string{"ID", "Status"}
	rows := [][]string{{"abc", "success"}, {"def", "failed"}}

	t.Run("text", func(t *testing.T) {
		r, out, _ := newTest(ModeText, false)
		r.Table(header, rows)
		s := out.String()
		assert.Contains(t, s, "┌")
		assert.Contains(t, s, "abc")
		assert.Contains(t, s, "failed")
	})

	t.Run("markdown", func(t *testing.T) {
		r, out, _ := newTest(ModeMarkdown, false)
		r.Table(header, rows)
		s := out.String()
		assert.Contains(t, s, "| abc | success |")
		assert.NotContains(t, s, "┌")
	})
}

func TestRenderer_JSON(t *testing.T) {
	r, out, _ := newTest(ModeJSON, false)
	require.NoError(t, r.JSON(map[string]int{"a": 1}))
	assert.Equal(t, "{\n  \"a\": 1\n}\n", out.String())
}

func TestNewRenderer_NonFileIsNotTTY(t *testing.T) {
	r := NewRenderer(&bytes.Buffer{}, &bytes.Buffer{}, ModeAuto)
	assert.False(t, r.IsTTY())
	assert.Equal(t, ModeAuto, r.Mode())
}
