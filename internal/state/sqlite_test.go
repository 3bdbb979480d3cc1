package state

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/lusque/internal/bootstrap"
)

func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := OpenStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func result(id string, startedAt time.Time, output []byte, runErr error) *bootstrap.Result {
	res := &bootstrap.Result{
		ID:             id,
		StartedAt:      startedAt,
		Duration:       42 * time.Millisecond,
		Mode:           bootstrap.ModeIsolated,
		LibraryPath:    "/tmp/liblusque-123.so",
		ArtifactSHA256: "abc123",
		SourceLen:      7,
		SourceSHA256:   "def456",
		Output:         output,
		Status:         bootstrap.StatusSuccess,
	}
	if runErr != nil {
		res.Status = bootstrap.StatusFailed
		res.ErrorKind = bootstrap.ErrorKind(runErr)
		res.Error = runErr.Error()
	}
	return res
}

func TestSQLiteStore_OpenClose(t *testing.T) {
	store := NewSQLiteStore()
	require.NoError(t, store.Open(":memory:"))
	require.NoError(t, store.Close())
}

func TestSQLiteStore_OpenCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "state.db")
	store, err := OpenStore(path)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	assert.Equal(t, path, store.Path())
	require.NoError(t, store.Record(context.Background(), result("on-disk", time.Now(), []byte{1}, nil)))
}

func TestSQLiteStore_Migrate(t *testing.T) {
	store := setupTestStore(t)

	version, err := store.GetMigrationVersion()
	require.NoError(t, err)
	assert.Equal(t, int64(2), version)

	// Re-running is a no-op.
	require.NoError(t, store.Migrate())
}

func TestSQLiteStore_NotOpened(t *testing.T) {
	store := NewSQLiteStore()
	ctx := context.Background()

	assert.Error(t, store.Migrate())
	assert.Error(t, store.Record(ctx, result("x", time.Now(), nil, nil)))
	_, err := store.List(ctx, 10)
	assert.Error(t, err)
	_, err = store.Get(ctx, "x")
	assert.Error(t, err)
	_, err = store.Prune(ctx, 1)
	assert.Error(t, err)
	assert.NoError(t, store.Close())
}

func TestSQLiteStore_RecordAndGet(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	started := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.Record(ctx, result("11111111-aaaa", started, []byte{1, 2, 3}, nil)))

	inv, err := store.Get(ctx, "11111111-aaaa")
	require.NoError(t, err)
	assert.Equal(t, "11111111-aaaa", inv.ID)
	assert.True(t, started.Equal(inv.StartedAt), "started_at = %v", inv.StartedAt)
	assert.Equal(t, 42*time.Millisecond, inv.Duration)
	assert.Equal(t, "isolated", inv.Mode)
	assert.Equal(t, "/tmp/liblusque-123.so", inv.LibraryPath)
	assert.Equal(t, "abc123", inv.ArtifactSHA256)
	assert.Equal(t, 7, inv.SourceLen)
	assert.Equal(t, "def456", inv.SourceSHA256)
	assert.Equal(t, 3, inv.OutputLen)
	assert.Equal(t, "010203", inv.OutputHex)
	assert.Equal(t, "success", inv.Status)
	assert.False(t, inv.Truncated())

	byPrefix, err := store.Get(ctx, "1111")
	require.NoError(t, err)
	assert.Equal(t, inv.ID, byPrefix.ID)
}

func TestSQLiteStore_RecordFailure(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	runErr := errors.New("boom")
	require.NoError(t, store.Record(ctx, result("failed-run", time.Now(), nil, runErr)))

	inv, err := store.Get(ctx, "failed-run")
	require.NoError(t, err)
	assert.Equal(t, "failed", inv.Status)
	assert.Equal(t, "other", inv.ErrorKind)
	assert.Equal(t, "boom", inv.Error)
	assert.Equal(t, 0, inv.OutputLen)
}

func TestSQLiteStore_GetErrors(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, store.Record(ctx, result("abc-1", now, nil, nil)))
	require.NoError(t, store.Record(ctx, result("abc-2", now, nil, nil)))

	_, err := store.Get(ctx, "zzz")
	assert.True(t, errors.Is(err, ErrNotFound), "got %v", err)

	_, err = store.Get(ctx, "abc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ambiguous")
}

func TestSQLiteStore_GetPrefixIsLiteral(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, store.Record(ctx, result("a1b2c3", now, nil, nil)))
	require.NoError(t, store.Record(ctx, result("a_%d", now.Add(time.Second), nil, nil)))

	tests := []struct {
		prefix string
		want   string
	}{
		{prefix: "a1", want: "a1b2c3"},
		{prefix: "a_", want: "a_%d"},
		{prefix: "a_%", want: "a_%d"},
		{prefix: "_"},
		{prefix: "%"},
		{prefix: "a%"},
		{prefix: "a1b2c3x"},
		{prefix: ""},
	}

	for _, tt := range tests {
		t.Run(tt.prefix, func(t *testing.T) {
			inv, err := store.Get(ctx, tt.prefix)
			if tt.want == "" {
				assert.True(t, errors.Is(err, ErrNotFound), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, inv.ID)
		})
	}
}

func TestSQLiteStore_DuplicateID(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Record(ctx, result("dup", time.Now(), nil, nil)))
	assert.Error(t, store.Record(ctx, result("dup", time.Now(), nil, nil)))
}

func TestSQLiteStore_OutputTruncation(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	big := make([]byte, maxOutputHex+100)
	require.NoError(t, store.Record(ctx, result("big", time.Now(), big, nil)))

	inv, err := store.Get(ctx, "big")
	require.NoError(t, err)
	assert.Equal(t, len(big), inv.OutputLen)
	assert.Len(t, inv.OutputHex, maxOutputHex*2)
	assert.True(t, inv.Truncated())
}

func TestSQLiteStore_ListAndPrune(t *testing.T) {
	tests := []struct {
		name     string
		limit    int
		wantIDs  []string
		keep     int
		wantLeft int
		wantGone int64
	}{
		{name: "limit two", limit: 2, wantIDs: []string{"run-4", "run-3"}, keep: 3, wantLeft: 3, wantGone: 1},
		{name: "no limit", limit: 0, wantIDs: []string{"run-4", "run-3", "run-2", "run-1"}, keep: 0, wantLeft: 0, wantGone: 4},
		{name: "limit beyond size", limit: 10, wantIDs: []string{"run-4", "run-3", "run-2", "run-1"}, keep: 10, wantLeft: 4, wantGone: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := setupTestStore(t)
			ctx := context.Background()
			base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
			for i := 1; i <= 4; i++ {
				id := "run-" + string(rune('0'+i))
				require.NoError(t, store.Record(ctx, result(id, base.Add(time.Duration(i)*time.Minute), nil, nil)))
			}

			list, err := store.List(ctx, tt.limit)
			require.NoError(t, err)
			ids := make([]string, 0, len(list))
			for _, inv := range list {
				ids = append(ids, inv.ID)
			}
			assert.Equal(t, tt.wantIDs, ids)

			gone, err := store.Prune(ctx, tt.keep)
			require.NoError(t, err)
			assert.Equal(t, tt.wantGone, gone)

			left, err := store.List(ctx, 0)
			require.NoError(t, err)
			assert.Len(t, left, tt.wantLeft)
			for _, inv := range left {
				assert.False(t, strings.HasSuffix(inv.ID, "-1") && tt.keep == 3, "oldest run should be pruned first")
			}
		})
	}
}

func TestSQLiteStore_PruneNegative(t *testing.T) {
	store := setupTestStore(t)
	_, err := store.Prune(context.Background(), -1)
	assert.Error(t, err)
}

func TestSQLiteStore_RecorderWithRunner(t *testing.T) {
	store := setupTestStore(t)
	var rec bootstrap.Recorder = store

	res := result("via-recorder", time.Now(), []byte("ok"), nil)
	require.NoError(t, rec.Record(context.Background(), res))

	list, err := store.List(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "6f6b", list[0].OutputHex)
}
