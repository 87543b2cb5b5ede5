package alert

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/rogerio-castellano/inventory-sync/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func delivery(i int) models.AlertDelivery {
	return models.AlertDelivery{
		Event:  models.AlertEvent{ID: fmt.Sprintf("ev-%d", i), ItemKey: "Widget", Quantity: i},
		Status: models.DeliverySent,
	}
}

func ids(ds []models.AlertDelivery) []string {
	out := make([]string, 0, len(ds))
	for _, d := range ds {
		out = append(out, d.Event.ID)
	}
	return out
}

func testHistory(t *testing.T, h History) {
	ctx := context.Background()

	empty, err := h.Recent(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, empty)

	for i := 1; i <= 5; i++ {
		require.NoError(t, h.Record(ctx, delivery(i)))
	}

	recent, err := h.Recent(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"ev-5", "ev-4"}, ids(recent))

	// capacity is 3
	all, err := h.Recent(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"ev-5", "ev-4", "ev-3"}, ids(all))

	all, err = h.Recent(ctx, 50)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestMemoryHistory(t *testing.T) {
	testHistory(t, NewMemoryHistory(3))
}

func TestMemoryHistory_DefaultSize(t *testing.T) {
	h := NewMemoryHistory(0)
	for i := 0; i < 150; i++ {
		require.NoError(t, h.Record(context.Background(), delivery(i)))
	}
	all, err := h.Recent(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, all, 100)
	assert.Equal(t, "ev-149", all[0].Event.ID)
}

func getRedisClient(t *testing.T) *redis.Client {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		client.Close()
		t.Skipf("Redis not available: %v", err)
	}
	return client
}

func TestRedisHistory(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	require.NoError(t, client.Del(ctx, HistoryKey).Err())
	defer client.Del(ctx, HistoryKey)

	testHistory(t, NewRedisHistory(client, 3))
}
