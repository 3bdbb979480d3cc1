package output

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
)

// BytesOutput is the JSON shape of a compile result.
type BytesOutput struct {
	ID     string `json:"id,omitempty"`
	Length int    `json:"length"`
	Bytes  []int  `json:"bytes"`
	Hex    string `json:"hex"`
}

// FormatText renders b as a decimal list, e.g. "[1, 2, 3]".
func FormatText(b []byte) string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, v := range b {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(strconv.Itoa(int(v)))
	}
	sb.WriteByte(']')
	return sb.String()
}

// FormatHex renders b in canonical hexdump layout: offset, sixteen hex
// bytes and the printable characters.
func FormatHex(b []byte) string {
	return hex.Dump(b)
}

// NewBytesOutput builds the JSON view of b.
func NewBytesOutput(id string, b []byte) *BytesOutput {
	ints := make([]int, len(b))
	for i, v := range b {
		ints[i] = int(v)
	}
	return &BytesOutput{
		ID:     id,
		Length: len(b),
		Bytes:  ints,
		Hex:    hex.EncodeToString(b),
	}
}

// Bytes renders a compile result. id identifies the run and may be empty.
func (r *Renderer) Bytes(id string, b []byte) error {
	switch r.EffectiveMode() {
	case ModeRaw:
		_, err := r.out.Write(b)
		return err
	case ModeHex:
		_, err := fmt.Fprint(r.out, FormatHex(b))
		return err
	case ModeJSON:
		return r.JSON(NewBytesOutput(id, b))
	case ModeMarkdown:
		return r.bytesMarkdown(id, b)
	default:
		_, err := fmt.Fprintln(r.out, FormatText(b))
		return err
	}
}

func (r *Renderer) bytesMarkdown(id string, b []byte) error {
	var sb strings.Builder
	sb.WriteString("```\n")
	sb.WriteString(FormatHex(b))
	sb.WriteString("```\n\n")
	fmt.Fprintf(&sb, "**%s** (%d bytes)", humanize.IBytes(uint64(len(b))), len(b))
	if id != "" {
		fmt.Fprintf(&sb, " from run `%s`", id)
	}
	sb.WriteString("\n")
	_, err := fmt.Fprint(r.out, sb.String())
	return err
}
