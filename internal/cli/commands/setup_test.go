package commands

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/lusque/internal/bootstrap"
	"github.com/leapstack-labs/lusque/internal/state"
	"github.com/leapstack-labs/lusque/internal/testutil"
)

// memStore is an in-memory state.Store.
type memStore struct {
	invs      []*state.Invocation
	recordErr error
	prunes    []int
}

func (m *memStore) Record(_ context.Context, res *bootstrap.Result) error {
	if m.recordErr != nil {
		return m.recordErr
	}
	m.invs = append(m.invs, state.FromResult(res))
	return nil
}

func (m *memStore) List(_ context.Context, _ int) ([]*state.Invocation, error) {
	return m.invs, nil
}

func (m *memStore) Get(_ context.Context, id string) (*state.Invocation, error) {
	for _, inv := range m.invs {
		if inv.ID == id {
			return inv, nil
		}
	}
	return nil, state.ErrNotFound
}

func (m *memStore) Prune(_ context.Context, keep int) (int64, error) {
	m.prunes = append(m.prunes, keep)
	if len(m.invs) <= keep {
		return 0, nil
	}
	n := len(m.invs) - keep
	m.invs = m.invs[n:]
	return int64(n), nil
}

func (m *memStore) Close() error { return nil }

func TestHistoryRecorder(t *testing.T) {
	tests := []struct {
		name       string
		limit      int
		runs       int
		wantKept   int
		wantPrunes int
	}{
		{name: "no limit", limit: 0, runs: 3, wantKept: 3, wantPrunes: 0},
		{name: "under limit", limit: 5, runs: 3, wantKept: 3, wantPrunes: 3},
		{name: "over limit", limit: 2, runs: 4, wantKept: 2, wantPrunes: 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &memStore{}
			rec := &historyRecorder{store: store, limit: tt.limit, logger: testutil.NewTestLogger(t)}

			for i := range tt.runs {
				res := &bootstrap.Result{ID: string(rune('a' + i)), Status: bootstrap.StatusSuccess}
				require.NoError(t, rec.Record(context.Background(), res))
			}

			assert.Len(t, store.invs, tt.wantKept)
			assert.Len(t, store.prunes, tt.wantPrunes)
		})
	}
}

func TestHistoryRecorder_RecordError(t *testing.T) {
	store := &memStore{recordErr: assert.AnError}
	rec := &historyRecorder{store: store, limit: 1, logger: testutil.NewTestLogger(t)}

	err := rec.Record(context.Background(), &bootstrap.Result{ID: "x"})
	require.ErrorIs(t, err, assert.AnError)
	assert.Empty(t, store.prunes, "no prune after a failed record")
}

func TestCommandContext_OpenHistory(t *testing.T) {
	env := newTestEnv(t, nil)

	store, err := NewCommandContext(env.cmd).OpenHistory()
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	_, err = store.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, state.ErrNotFound)
}
