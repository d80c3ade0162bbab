package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/kernelfinder/internal/events"
)

func newTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()
	store, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func eventAt(id string, typ events.EventType, ts time.Time) *events.RegistryEvent {
	return &events.RegistryEvent{
		ID:        id,
		Type:      typ,
		Timestamp: ts,
		SessionID: "session-1",
		Severity:  events.SeverityInfo,
		Message:   string(typ),
	}
}

func TestStoreAndReadEvents(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	listed, err := events.NewKernelsListedEvent("session-1", events.KernelsListedData{
		KernelCount: 3,
		FinderCount: 2,
		DurationMs:  12,
	})
	require.NoError(t, err)
	require.NoError(t, store.StoreEvent(ctx, listed))

	got, err := store.RecentEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)

	assert.Equal(t, listed.ID, got[0].ID)
	assert.Equal(t, events.EventTypeKernelsListed, got[0].Type)
	assert.Equal(t, listed.Message, got[0].Message)
	assert.WithinDuration(t, listed.Timestamp, got[0].Timestamp, time.Millisecond)

	data, err := got[0].GetKernelsListedData()
	require.NoError(t, err)
	assert.Equal(t, 3, data.KernelCount)
	assert.Equal(t, 2, data.FinderCount)
}

func TestStoreEventRejectsUnknownType(t *testing.T) {
	store := newTestStorage(t)
	err := store.StoreEvent(context.Background(), eventAt("e1", "bogus", time.Now()))
	assert.Error(t, err)
}

func TestStoreEventWithoutData(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	require.NoError(t, store.StoreEvent(ctx, eventAt("e1", events.EventTypeKernelsChanged, time.Now())))

	got, err := store.RecentEvents(ctx, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Empty(t, got[0].Data)
}

func TestGetEventsFilterAndOrder(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)

	require.NoError(t, store.StoreEvent(ctx, eventAt("e1", events.EventTypeFinderRegistered, base)))
	require.NoError(t, store.StoreEvent(ctx, eventAt("e2", events.EventTypeKernelsChanged, base.Add(time.Minute))))
	require.NoError(t, store.StoreEvent(ctx, eventAt("e3", events.EventTypeKernelsChanged, base.Add(2*time.Minute))))
	other := eventAt("e4", events.EventTypeKernelsChanged, base.Add(3*time.Minute))
	other.SessionID = "session-2"
	require.NoError(t, store.StoreEvent(ctx, other))

	t.Run("most recent first", func(t *testing.T) {
		got, err := store.RecentEvents(ctx, 2)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "e4", got[0].ID)
		assert.Equal(t, "e3", got[1].ID)
	})

	t.Run("by type and session", func(t *testing.T) {
		got, err := store.GetEvents(ctx, events.EventFilter{
			SessionID: "session-1",
			Type:      events.EventTypeKernelsChanged,
		})
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "e3", got[0].ID)
		assert.Equal(t, "e2", got[1].ID)
	})

	t.Run("after time", func(t *testing.T) {
		got, err := store.GetEvents(ctx, events.EventFilter{AfterTime: base.Add(90 * time.Second)})
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})

	t.Run("counts", func(t *testing.T) {
		counts, err := store.CountEvents(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, counts[events.EventTypeFinderRegistered])
		assert.Equal(t, 3, counts[events.EventTypeKernelsChanged])
	})
}

func TestRecentEventsRejectsBadLimit(t *testing.T) {
	store := newTestStorage(t)
	_, err := store.RecentEvents(context.Background(), 0)
	assert.Error(t, err)
}

func TestCleanupOlderThan(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, store.StoreEvent(ctx, eventAt("old-1", events.EventTypeKernelsChanged, now.Add(-48*time.Hour))))
	require.NoError(t, store.StoreEvent(ctx, eventAt("old-2", events.EventTypeKernelsChanged, now.Add(-25*time.Hour))))
	require.NoError(t, store.StoreEvent(ctx, eventAt("new", events.EventTypeKernelsChanged, now.Add(-time.Hour))))

	deleted, err := store.CleanupOlderThan(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	got, err := store.RecentEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "new", got[0].ID)

	_, err = store.CleanupOlderThan(ctx, 0)
	assert.Error(t, err)
}

func TestNewCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "history.db")
	store, err := New(path)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	assert.Equal(t, path, store.Path())
	require.NoError(t, store.StoreEvent(context.Background(), eventAt("e1", events.EventTypeKernelsChanged, time.Now())))
}
