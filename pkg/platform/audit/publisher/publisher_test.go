package publisher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	id "peoplehub/pkg/domain"
	audit "peoplehub/pkg/platform/audit"
	"peoplehub/pkg/platform/audit/store/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublisher_SyncMode(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store)
	defer pub.Close()

	profileID := id.ProfileID("p-1")
	err := pub.Emit(context.Background(), audit.Event{
		ProfileID: profileID,
		Action:    string(audit.EventEmailLinked),
	})
	require.NoError(t, err)

	events, err := pub.List(context.Background(), profileID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, string(audit.EventEmailLinked), events[0].Action)
	assert.Equal(t, audit.CategoryCompliance, events[0].Category)
}

func TestPublisher_AsyncDrainsOnClose(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, WithAsyncBuffer(100))

	profileID := id.ProfileID("p-1")
	for range 10 {
		require.NoError(t, pub.Emit(context.Background(), audit.Event{
			ProfileID: profileID,
			Action:    string(audit.EventSignedIn),
		}))
	}

	pub.Close()

	events, err := store.ListByProfile(context.Background(), profileID)
	require.NoError(t, err)
	assert.Len(t, events, 10, "all events should be drained on close")
}

func TestPublisher_BufferFull(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, WithAsyncBuffer(1))
	defer pub.Close()

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := pub.Emit(context.Background(), audit.Event{Action: string(audit.EventSignedIn)})
			if err != nil {
				assert.True(t, errors.Is(err, ErrBufferFull))
			}
		}()
	}
	wg.Wait()
}

func TestPublisher_Timestamp(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store)
	defer pub.Close()
	profileID := id.ProfileID("p-1")

	t.Run("sets timestamp when missing", func(t *testing.T) {
		before := time.Now()
		require.NoError(t, pub.Emit(context.Background(), audit.Event{ProfileID: profileID, Action: "a"}))
		events, err := pub.List(context.Background(), profileID)
		require.NoError(t, err)
		require.NotEmpty(t, events)
		assert.False(t, events[len(events)-1].Timestamp.Before(before))
	})

	t.Run("preserves existing timestamp", func(t *testing.T) {
		custom := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
		require.NoError(t, pub.Emit(context.Background(), audit.Event{ProfileID: profileID, Action: "b", Timestamp: custom}))
		events, err := pub.List(context.Background(), profileID)
		require.NoError(t, err)
		assert.Equal(t, custom, events[len(events)-1].Timestamp)
	})
}

type appendOnly struct{}

func (appendOnly) Append(context.Context, audit.Event) error { return nil }

func TestPublisher_ListUnsupported(t *testing.T) {
	pub := NewPublisher(appendOnly{})
	_, err := pub.List(context.Background(), "p-1")
	assert.Error(t, err)
}
