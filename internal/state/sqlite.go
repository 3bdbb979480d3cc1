package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/leapstack-labs/lusque/internal/bootstrap"
)

// ErrNotFound is returned by Get for unknown ids.
var ErrNotFound = errors.New("invocation not found")

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteStore creates a new SQLite state store instance.
func NewSQLiteStore() *SQLiteStore {
	return &SQLiteStore{}
}

// Open opens a connection to the SQLite database, creating its directory.
// Use ":memory:" for an in-memory database.
func (s *SQLiteStore) Open(path string) error {
	dsn := ":memory:"
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return fmt.Errorf("failed to create state directory: %w", err)
			}
		}
		dsn = "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open sqlite database: %w", err)
	}
	if path == ":memory:" {
		// Each connection would otherwise see its own empty database.
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	s.db = db
	s.path = path
	return nil
}

// OpenStore opens path and applies pending migrations.
func OpenStore(path string) (*SQLiteStore, error) {
	s := NewSQLiteStore()
	if err := s.Open(path); err != nil {
		return nil, err
	}
	if err := s.Migrate(); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// Path returns the database path passed to Open.
func (s *SQLiteStore) Path() string { return s.path }

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Record stores a finished run.
func (s *SQLiteStore) Record(ctx context.Context, res *bootstrap.Result) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}
	inv := FromResult(res)

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO invocations (
			id, started_at, duration_ms, mode, library_path, artifact_sha256,
			source_len, source_sha256, output_len, output_hex, status, error_kind, error
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		inv.ID, inv.StartedAt.UnixMilli(), inv.Duration.Milliseconds(), inv.Mode,
		inv.LibraryPath, inv.ArtifactSHA256, inv.SourceLen, inv.SourceSHA256,
		inv.OutputLen, inv.OutputHex, inv.Status, inv.ErrorKind, inv.Error,
	)
	if err != nil {
		return fmt.Errorf("failed to record invocation: %w", err)
	}
	return nil
}

const selectInvocation = `SELECT id, started_at, duration_ms, mode, library_path, artifact_sha256,
	source_len, source_sha256, output_len, output_hex, status, error_kind, error
	FROM invocations`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInvocation(row rowScanner) (*Invocation, error) {
	inv := &Invocation{}
	var startedMs, durationMs int64
	err := row.Scan(&inv.ID, &startedMs, &durationMs, &inv.Mode, &inv.LibraryPath,
		&inv.ArtifactSHA256, &inv.SourceLen, &inv.SourceSHA256, &inv.OutputLen,
		&inv.OutputHex, &inv.Status, &inv.ErrorKind, &inv.Error)
	if err != nil {
		return nil, err
	}
	inv.StartedAt = time.UnixMilli(startedMs).UTC()
	inv.Duration = time.Duration(durationMs) * time.Millisecond
	return inv, nil
}

// List returns the most recent invocations, newest first. A non-positive
// limit returns all of them.
func (s *SQLiteStore) List(ctx context.Context, limit int) ([]*Invocation, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx, selectInvocation+` ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list invocations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*Invocation
	for rows.Next() {
		inv, err := scanInvocation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invocation: %w", err)
		}
		out = append(out, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list invocations: %w", err)
	}
	return out, nil
}

// Get returns one invocation. id may be a unique prefix of the full id.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*Invocation, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	if id == "" {
		return nil, fmt.Errorf("%w: empty id", ErrNotFound)
	}

	// A literal prefix match; LIKE would treat % and _ in id as wildcards.
	rows, err := s.db.QueryContext(ctx, selectInvocation+` WHERE substr(id, 1, length(?)) = ? ORDER BY started_at DESC LIMIT 2`, id, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get invocation: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var found []*Invocation
	for rows.Next() {
		inv, err := scanInvocation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invocation: %w", err)
		}
		found = append(found, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to get invocation: %w", err)
	}

	switch len(found) {
	case 0:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	case 1:
		return found[0], nil
	default:
		return nil, fmt.Errorf("ambiguous invocation id prefix: %s", id)
	}
}

// Prune deletes all but the newest keep invocations and returns how many
// rows were removed.
func (s *SQLiteStore) Prune(ctx context.Context, keep int) (int64, error) {
	if s.db == nil {
		return 0, fmt.Errorf("database not opened")
	}
	if keep < 0 {
		return 0, fmt.Errorf("keep must be non-negative, got %d", keep)
	}

	result, err := s.db.ExecContext(ctx,
		`DELETE FROM invocations WHERE id NOT IN (
			SELECT id FROM invocations ORDER BY started_at DESC, rowid DESC LIMIT ?
		)`, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to prune invocations: %w", err)
	}
	n, _ := result.RowsAffected()
	return n, nil
}
