package audit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lineage/pkg/requestcontext"
)

func TestPublisher_SyncMode(t *testing.T) {
	store := NewInMemoryStore()
	pub := NewPublisher(store)
	defer pub.Close()

	err := pub.Emit(context.Background(), Event{
		Action:   ActionPersonCreated,
		ChartID:  "c1",
		PersonID: 1,
	})
	require.NoError(t, err)

	events, err := store.ListByChart(context.Background(), "c1")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, ActionPersonCreated, events[0].Action)
	assert.False(t, events[0].Timestamp.IsZero(), "publisher stamps timestamp")
}

func TestPublisher_FillsRequestScopedFields(t *testing.T) {
	store := NewInMemoryStore()
	pub := NewPublisher(store)
	defer pub.Close()

	ctx := requestcontext.WithRequestID(context.Background(), "req-9")
	ctx = requestcontext.WithCallerID(ctx, "user-3")

	require.NoError(t, pub.Emit(ctx, Event{Action: ActionEdgeAdded, ChartID: "c1"}))

	events, err := store.ListByChart(context.Background(), "c1")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "req-9", events[0].RequestID)
	assert.Equal(t, "user-3", events[0].CallerID)
}

func TestPublisher_AsyncMode(t *testing.T) {
	store := NewInMemoryStore()
	pub := NewPublisher(store, WithAsyncBuffer(10))
	defer pub.Close()

	err := pub.Emit(context.Background(), Event{Action: ActionEdgeRemoved, ChartID: "c1"})
	require.NoError(t, err)

	// Wait for async processing
	assert.Eventually(t, func() bool {
		events, err := store.ListByChart(context.Background(), "c1")
		return err == nil && len(events) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestPublisher_AsyncDrainsOnClose(t *testing.T) {
	store := NewInMemoryStore()
	pub := NewPublisher(store, WithAsyncBuffer(100))

	for range 10 {
		err := pub.Emit(context.Background(), Event{Action: ActionPersonDeleted, ChartID: "c1"})
		require.NoError(t, err)
	}

	// Close should drain all events
	pub.Close()

	events, err := store.ListByChart(context.Background(), "c1")
	require.NoError(t, err)
	assert.Len(t, events, 10)
}

func TestPublisher_CloseTwiceIsSafe(t *testing.T) {
	pub := NewPublisher(NewInMemoryStore(), WithAsyncBuffer(1))
	pub.Close()
	pub.Close()
}
