package alert

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rogerio-castellano/inventory-sync/internal/models"
)

// History keeps the most recent delivery outcomes.
type History interface {
	Record(ctx context.Context, d models.AlertDelivery) error
	// Recent returns up to limit deliveries, newest first. A limit <= 0
	// returns everything kept.
	Recent(ctx context.Context, limit int) ([]models.AlertDelivery, error)
}

type MemoryHistory struct {
	mu      sync.Mutex
	entries []models.AlertDelivery
	size    int
}

func NewMemoryHistory(size int) *MemoryHistory {
	if size <= 0 {
		size = 100
	}
	return &MemoryHistory{size: size}
}

func (h *MemoryHistory) Record(_ context.Context, d models.AlertDelivery) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.entries = append(h.entries, d)
	if over := len(h.entries) - h.size; over > 0 {
		h.entries = append([]models.AlertDelivery(nil), h.entries[over:]...)
	}
	return nil
}

func (h *MemoryHistory) Recent(_ context.Context, limit int) ([]models.AlertDelivery, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	n := len(h.entries)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]models.AlertDelivery, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, h.entries[i])
	}
	return out, nil
}

const HistoryKey = "alerts:history"

// RedisHistory stores deliveries in a capped Redis list shared by every
// instance of the service.
type RedisHistory struct {
	rdb  *redis.Client
	size int64
}

func NewRedisHistory(rdb *redis.Client, size int) *RedisHistory {
	if size <= 0 {
		size = 100
	}
	return &RedisHistory{rdb: rdb, size: int64(size)}
}

func (h *RedisHistory) Record(ctx context.Context, d models.AlertDelivery) error {
	data, err := json.Marshal(d)
	if err != nil {
		return err
	}
	pipe := h.rdb.TxPipeline()
	pipe.RPush(ctx, HistoryKey, data)
	pipe.LTrim(ctx, HistoryKey, -h.size, -1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("record alert history: %w", err)
	}
	return nil
}

func (h *RedisHistory) Recent(ctx context.Context, limit int) ([]models.AlertDelivery, error) {
	if limit <= 0 || int64(limit) > h.size {
		limit = int(h.size)
	}
	entries, err := h.rdb.LRange(ctx, HistoryKey, -int64(limit), -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read alert history: %w", err)
	}

	out := make([]models.AlertDelivery, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		var d models.AlertDelivery
		if err := json.Unmarshal([]byte(entries[i]), &d); err == nil {
			out = append(out, d)
		}
	}
	return out, nil
}
