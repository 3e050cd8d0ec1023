package client

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orgsync/internal/domain/sync"
)

var t0 = time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)

func newStorage(t *testing.T) *SQLiteStorage {
	t.Helper()
	s, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "nested", "client.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func op(key string, intent sync.Intent, id string, data map[string]any) sync.Operation {
	return sync.Operation{
		IdempotencyKey:  key,
		EntityType:      "customer",
		EntityID:        id,
		Intent:          intent,
		ClientTimestamp: t0,
		Data:            data,
	}
}

func TestSQLiteStorage_EnqueueAppliesLocally(t *testing.T) {
	ctx := context.Background()
	s := newStorage(t)

	require.NoError(t, s.Enqueue(ctx, op("k-1", sync.IntentCreate, "c-1", map[string]any{"name": "Acme"})))
	require.NoError(t, s.Enqueue(ctx, op("k-2", sync.IntentUpdate, "c-1", map[string]any{"phone": "111"})))

	item, err := s.Get(ctx, "customer", "c-1")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"name": "Acme", "phone": "111"}, item.Data)
	assert.Equal(t, int64(0), item.Version)

	require.NoError(t, s.Enqueue(ctx, op("k-3", sync.IntentDelete, "c-1", nil)))
	_, err = s.Get(ctx, "customer", "c-1")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Enqueue(ctx, op("k-4", sync.IntentDelete, "ghost", nil)))
	_, err = s.Get(ctx, "customer", "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStorage_OutboxLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newStorage(t)

	base := int64(3)
	withBase := op("k-2", sync.IntentUpdate, "c-1", map[string]any{"name": "B"})
	withBase.BaseVersion = &base

	require.NoError(t, s.Enqueue(ctx, op("k-1", sync.IntentCreate, "c-1", map[string]any{"name": "A"})))
	require.NoError(t, s.Enqueue(ctx, withBase))
	require.NoError(t, s.Enqueue(ctx, op("k-3", sync.IntentDelete, "c-1", nil)))
	assert.Error(t, s.Enqueue(ctx, op("k-1", sync.IntentCreate, "c-2", nil)), "idempotency keys are unique")

	pending, err := s.Pending(ctx, 0, 10)
	require.NoError(t, err)
	require.Len(t, pending, 3)
	assert.Equal(t, "k-1", pending[0].Op.IdempotencyKey)
	assert.Equal(t, t0, pending[0].Op.ClientTimestamp)
	assert.Equal(t, "A", pending[0].Op.Data["name"])
	assert.Nil(t, pending[0].Op.BaseVersion)
	assert.Equal(t, int64(3), *pending[1].Op.BaseVersion)
	assert.Nil(t, pending[2].Op.Data)

	page, err := s.Pending(ctx, pending[0].Seq, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "k-2", page[0].Op.IdempotencyKey)

	require.NoError(t, s.Complete(ctx, "k-1"))
	require.NoError(t, s.Fail(ctx, "k-2", "VALIDATION_ERROR", "base_version does not match current version"))
	require.NoError(t, s.Retry(ctx, "k-3"))
	require.NoError(t, s.Retry(ctx, "k-3"))

	pending, err = s.Pending(ctx, 0, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "k-3", pending[0].Op.IdempotencyKey)
	assert.Equal(t, 2, pending[0].Op.RetryCount)

	failed, err := s.Failed(ctx)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, OutboxFailed, failed[0].Status)
	assert.Equal(t, "VALIDATION_ERROR", failed[0].ErrorCode)

	n, err := s.CountPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSQLiteStorage_ApplyPage(t *testing.T) {
	ctx := context.Background()
	s := newStorage(t)

	err := s.ApplyPage(ctx, []sync.Change{
		{EntityType: "customer", EntityID: "c-1", Operation: sync.ChangeUpsert, Version: 2, UpdatedAt: t0, Data: map[string]any{"name": "Acme"}},
		{EntityType: "customer", EntityID: "c-2", Operation: sync.ChangeUpsert, Version: 1, UpdatedAt: t0, Data: map[string]any{"name": "Beta"}},
		{EntityType: "job", EntityID: "j-1", Operation: sync.ChangeDelete, Version: 4, UpdatedAt: t0},
	}, "cursor-1")
	require.NoError(t, err)

	cursor, err := s.State(ctx, stateCursor)
	require.NoError(t, err)
	assert.Equal(t, "cursor-1", cursor)

	item, err := s.Get(ctx, "customer", "c-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), item.Version)
	assert.Equal(t, t0, item.UpdatedAt)

	_, err = s.Get(ctx, "job", "j-1")
	assert.ErrorIs(t, err, ErrNotFound)

	items, err := s.List(ctx, "customer")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "c-1", items[0].EntityID)
	assert.Equal(t, "c-2", items[1].EntityID)

	require.NoError(t, s.ApplyPage(ctx, []sync.Change{
		{EntityType: "customer", EntityID: "c-2", Operation: sync.ChangeDelete, Version: 2, UpdatedAt: t0.Add(time.Second)},
	}, "cursor-2"))

	items, err = s.List(ctx, "customer")
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestSQLiteStorage_State(t *testing.T) {
	ctx := context.Background()
	s := newStorage(t)

	v, err := s.State(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, v)

	require.NoError(t, s.SetState(ctx, stateToken, "a"))
	require.NoError(t, s.SetState(ctx, stateToken, "b"))

	v, err = s.State(ctx, stateToken)
	require.NoError(t, err)
	assert.Equal(t, "b", v)
}

func TestSQLiteStorage_Rekey(t *testing.T) {
	ctx := context.Background()
	s := newStorage(t)

	require.NoError(t, s.Enqueue(ctx, op("k-1", sync.IntentCreate, "c-1", map[string]any{"name": "Acme"})))
	require.NoError(t, s.Rekey(ctx, "k-1", "k-2"))

	pending, err := s.Pending(ctx, 0, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "k-2", pending[0].Op.IdempotencyKey)
	assert.Equal(t, 1, pending[0].Op.RetryCount)
	assert.Equal(t, map[string]any{"name": "Acme"}, pending[0].Op.Data)

	assert.ErrorIs(t, s.Rekey(ctx, "k-1", "k-3"), ErrNotFound)

	require.NoError(t, s.Complete(ctx, "k-2"))
	assert.ErrorIs(t, s.Rekey(ctx, "k-2", "k-3"), ErrNotFound)
}
