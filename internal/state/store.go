// Package state records compiler invocations in a local SQLite database so
// past runs can be listed and inspected.
package state

import (
	"context"
	"encoding/hex"
	"time"

	"github.com/leapstack-labs/lusque/internal/bootstrap"
)

// maxOutputHex caps how many output bytes are stored per invocation.
const maxOutputHex = 4 << 10

// Invocation is one recorded run.
type Invocation struct {
	ID             string        `json:"id"`
	StartedAt      time.Time     `json:"started_at"`
	Duration       time.Duration `json:"duration"`
	Mode           string        `json:"mode"`
	LibraryPath    string        `json:"library_path"`
	ArtifactSHA256 string        `json:"artifact_sha256,omitempty"`
	SourceLen      int           `json:"source_len"`
	SourceSHA256   string        `json:"source_sha256,omitempty"`
	OutputLen      int           `json:"output_len"`
	OutputHex      string        `json:"output_hex,omitempty"`
	Status         string        `json:"status"`
	ErrorKind      string        `json:"error_kind,omitempty"`
	Error          string        `json:"error,omitempty"`
}

// Truncated reports whether OutputHex holds less than the full output.
func (inv *Invocation) Truncated() bool {
	return len(inv.OutputHex)/2 < inv.OutputLen
}

// Store persists invocations.
type Store interface {
	Record(ctx context.Context, res *bootstrap.Result) error
	List(ctx context.Context, limit int) ([]*Invocation, error)
	Get(ctx context.Context, id string) (*Invocation, error)
	Prune(ctx context.Context, keep int) (int64, error)
	Close() error
}

var (
	_ Store              = (*SQLiteStore)(nil)
	_ bootstrap.Recorder = (*SQLiteStore)(nil)
)

// FromResult converts a runner result into a storable invocation.
func FromResult(res *bootstrap.Result) *Invocation {
	out := res.Output
	if len(out) > maxOutputHex {
		out = out[:maxOutputHex]
	}
	return &Invocation{
		ID:             res.ID,
		StartedAt:      res.StartedAt,
		Duration:       res.Duration,
		Mode:           string(res.Mode),
		LibraryPath:    res.LibraryPath,
		ArtifactSHA256: res.ArtifactSHA256,
		SourceLen:      res.SourceLen,
		SourceSHA256:   res.SourceSHA256,
		OutputLen:      len(res.Output),
		OutputHex:      hex.EncodeToString(out),
		Status:         string(res.Status),
		ErrorKind:      res.ErrorKind,
		Error:          res.Error,
	}
}
