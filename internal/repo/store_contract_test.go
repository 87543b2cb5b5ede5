package repo

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const feedTimeout = 5 * time.Second

type feedEvent struct {
	docs Documents
	err  error
}

// collect subscribes to collection and returns the deliveries as a channel.
func collect(t *testing.T, store DocumentStore, collection string) (Subscription, <-chan feedEvent) {
	t.Helper()
	events := make(chan feedEvent, 256)
	sub, err := store.Subscribe(context.Background(), collection, func(docs Documents, err error) {
		events <- feedEvent{docs: docs, err: err}
	})
	require.NoError(t, err)
	t.Cleanup(sub.Unsubscribe)
	return sub, events
}

// waitFor returns the first delivery matching match. Deliveries may be
// coalesced, so intermediate states can be skipped.
func waitFor(t *testing.T, events <-chan feedEvent, match func(feedEvent) bool) feedEvent {
	t.Helper()
	timeout := time.After(feedTimeout)
	for {
		select {
		case ev := <-events:
			if match(ev) {
				return ev
			}
		case <-timeout:
			t.Fatal("timed out waiting for delivery")
			return feedEvent{}
		}
	}
}

func hasDoc(id string) func(feedEvent) bool {
	return func(ev feedEvent) bool {
		_, ok := ev.docs[id]
		return ev.err == nil && ok
	}
}

func quantityOf(t *testing.T, raw []byte) int {
	t.Helper()
	var doc struct {
		Quantity int `json:"quantity"`
	}
	require.NoError(t, json.Unmarshal(raw, &doc))
	return doc.Quantity
}

func testCollection(name string) string {
	return "test-" + uuid.NewString()[:8] + "/" + name
}

// runStoreContract checks the behaviour every DocumentStore backend shares.
func runStoreContract(t *testing.T, store DocumentStore, withFeed bool) {
	ctx := context.Background()

	t.Run("get missing", func(t *testing.T) {
		_, err := store.Get(ctx, testCollection("inventory"), "nothing")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("put then get", func(t *testing.T) {
		c := testCollection("inventory")
		require.NoError(t, store.Put(ctx, c, "Widget", []byte(`{"itemName":"Widget","quantity":4}`)))

		raw, err := store.Get(ctx, c, "Widget")
		require.NoError(t, err)
		assert.JSONEq(t, `{"itemName":"Widget","quantity":4}`, string(raw))
	})

	t.Run("put overwrites wholesale", func(t *testing.T) {
		c := testCollection("inventory")
		require.NoError(t, store.Put(ctx, c, "Widget", []byte(`{"quantity":4,"date":"2024-01-01"}`)))
		require.NoError(t, store.Put(ctx, c, "Widget", []byte(`{"quantity":9}`)))

		raw, err := store.Get(ctx, c, "Widget")
		require.NoError(t, err)
		assert.JSONEq(t, `{"quantity":9}`, string(raw))
	})

	t.Run("create twice", func(t *testing.T) {
		c := testCollection("notifications")
		require.NoError(t, store.Create(ctx, c, "Widget", []byte(`{"threshold":5}`)))
		err := store.Create(ctx, c, "Widget", []byte(`{"threshold":6}`))
		assert.ErrorIs(t, err, ErrAlreadyExists)

		raw, err := store.Get(ctx, c, "Widget")
		require.NoError(t, err)
		assert.JSONEq(t, `{"threshold":5}`, string(raw))
	})

	t.Run("merge keeps other fields", func(t *testing.T) {
		c := testCollection("inventory")
		require.NoError(t, store.Put(ctx, c, "Widget", []byte(`{"itemName":"Widget","quantity":4,"date":"2024-01-01","locationId":"a"}`)))
		require.NoError(t, store.Merge(ctx, c, "Widget", map[string]any{"quantity": 2, "date": "2024-02-02"}))

		raw, err := store.Get(ctx, c, "Widget")
		require.NoError(t, err)
		assert.JSONEq(t, `{"itemName":"Widget","quantity":2,"date":"2024-02-02","locationId":"a"}`, string(raw))
	})

	t.Run("merge missing", func(t *testing.T) {
		err := store.Merge(ctx, testCollection("inventory"), "nothing", map[string]any{"quantity": 1})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("delete", func(t *testing.T) {
		c := testCollection("inventory")
		require.NoError(t, store.Put(ctx, c, "Widget", []byte(`{"quantity":1}`)))
		require.NoError(t, store.Delete(ctx, c, "Widget"))

		_, err := store.Get(ctx, c, "Widget")
		assert.ErrorIs(t, err, ErrNotFound)
		assert.ErrorIs(t, store.Delete(ctx, c, "Widget"), ErrNotFound)
	})

	t.Run("list is scoped to the collection", func(t *testing.T) {
		c := testCollection("inventory")
		other := testCollection("inventory")
		require.NoError(t, store.Put(ctx, c, "A", []byte(`{"quantity":1}`)))
		require.NoError(t, store.Put(ctx, c, "B", []byte(`{"quantity":2}`)))
		require.NoError(t, store.Put(ctx, other, "C", []byte(`{"quantity":3}`)))

		docs, err := store.List(ctx, c)
		require.NoError(t, err)
		assert.Len(t, docs, 2)
		assert.Contains(t, docs, "A")
		assert.Contains(t, docs, "B")

		empty, err := store.List(ctx, testCollection("inventory"))
		require.NoError(t, err)
		assert.Empty(t, empty)
	})

	if !withFeed {
		return
	}

	t.Run("subscribe delivers initial and changed collection", func(t *testing.T) {
		c := testCollection("inventory")
		require.NoError(t, store.Put(ctx, c, "A", []byte(`{"quantity":1}`)))

		sub, events := collect(t, store, c)
		assert.NotEmpty(t, sub.ID())

		first := waitFor(t, events, hasDoc("A"))
		assert.Len(t, first.docs, 1)

		require.NoError(t, store.Put(ctx, c, "B", []byte(`{"quantity":2}`)))
		second := waitFor(t, events, hasDoc("B"))
		assert.Len(t, second.docs, 2)

		require.NoError(t, store.Merge(ctx, c, "A", map[string]any{"quantity": 7}))
		merged := waitFor(t, events, func(ev feedEvent) bool {
			return ev.err == nil && ev.docs["A"] != nil && quantityOf(t, ev.docs["A"]) == 7
		})
		assert.Len(t, merged.docs, 2)

		require.NoError(t, store.Delete(ctx, c, "B"))
		deleted := waitFor(t, events, func(ev feedEvent) bool {
			_, ok := ev.docs["B"]
			return ev.err == nil && !ok
		})
		assert.Contains(t, deleted.docs, "A")
	})

	t.Run("subscription ignores other collections", func(t *testing.T) {
		c := testCollection("inventory")
		other := testCollection("inventory")

		_, events := collect(t, store, c)
		waitFor(t, events, func(ev feedEvent) bool { return ev.err == nil })

		require.NoError(t, store.Put(ctx, other, "X", []byte(`{"quantity":1}`)))
		require.NoError(t, store.Put(ctx, c, "Y", []byte(`{"quantity":1}`)))

		ev := waitFor(t, events, hasDoc("Y"))
		assert.NotContains(t, ev.docs, "X")
	})

	t.Run("no delivery after unsubscribe", func(t *testing.T) {
		c := testCollection("inventory")
		events := make(chan feedEvent, 64)
		sub, err := store.Subscribe(ctx, c, func(docs Documents, err error) {
			events <- feedEvent{docs: docs, err: err}
		})
		require.NoError(t, err)
		waitFor(t, events, func(ev feedEvent) bool { return ev.err == nil })

		sub.Unsubscribe()
		for len(events) > 0 {
			<-events
		}

		require.NoError(t, store.Put(ctx, c, "late", []byte(`{"quantity":1}`)))
		select {
		case ev := <-events:
			t.Fatalf("unexpected delivery after unsubscribe: %+v", ev)
		case <-time.After(200 * time.Millisecond):
		}
	})

	t.Run("cancelled context ends the subscription", func(t *testing.T) {
		c := testCollection("inventory")
		subCtx, cancel := context.WithCancel(ctx)
		events := make(chan feedEvent, 64)
		sub, err := store.Subscribe(subCtx, c, func(docs Documents, err error) {
			events <- feedEvent{docs: docs, err: err}
		})
		require.NoError(t, err)
		waitFor(t, events, func(ev feedEvent) bool { return ev.err == nil })

		cancel()
		sub.Unsubscribe()
		for len(events) > 0 {
			<-events
		}

		require.NoError(t, store.Put(ctx, c, "late", []byte(`{"quantity":1}`)))
		select {
		case ev := <-events:
			t.Fatalf("unexpected delivery after cancel: %+v", ev)
		case <-time.After(200 * time.Millisecond):
		}
	})
}
