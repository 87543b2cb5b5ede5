package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "docs:"

// Writes go through scripts so that the change and its notification are
// applied atomically and published in commit order.
var (
	putScript = redis.NewScript(`
redis.call('HSET', KEYS[1], ARGV[1], ARGV[2])
redis.call('PUBLISH', KEYS[2], ARGV[1])
return 1
`)

	createScript = redis.NewScript(`
if redis.call('HSETNX', KEYS[1], ARGV[1], ARGV[2]) == 0 then
	return 0
end
redis.call('PUBLISH', KEYS[2], ARGV[1])
return 1
`)

	mergeScript = redis.NewScript(`
local current = redis.call('HGET', KEYS[1], ARGV[1])
if not current then
	return 0
end
local doc = cjson.decode(current)
local fields = cjson.decode(ARGV[2])
for k, v in pairs(fields) do
	doc[k] = v
end
redis.call('HSET', KEYS[1], ARGV[1], cjson.encode(doc))
redis.call('PUBLISH', KEYS[2], ARGV[1])
return 1
`)

	deleteScript = redis.NewScript(`
if redis.call('HDEL', KEYS[1], ARGV[1]) == 0 then
	return 0
end
redis.call('PUBLISH', KEYS[2], ARGV[1])
return 1
`)
)

// RedisStore keeps each collection in one hash and announces changes on a
// pub/sub channel next to it.
type RedisStore struct {
	rdb *redis.Client
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func hashKey(collection string) string {
	return redisKeyPrefix + collection
}

func changesChannel(collection string) string {
	return redisKeyPrefix + collection + ":changes"
}

func (s *RedisStore) Get(ctx context.Context, collection, id string) ([]byte, error) {
	doc, err := s.rdb.HGet(ctx, hashKey(collection), id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, unavailable("get", err)
	}
	return doc, nil
}

func (s *RedisStore) Put(ctx context.Context, collection, id string, doc []byte) error {
	keys := []string{hashKey(collection), changesChannel(collection)}
	if err := putScript.Run(ctx, s.rdb, keys, id, doc).Err(); err != nil {
		return unavailable("put", err)
	}
	return nil
}

func (s *RedisStore) Create(ctx context.Context, collection, id string, doc []byte) error {
	keys := []string{hashKey(collection), changesChannel(collection)}
	created, err := createScript.Run(ctx, s.rdb, keys, id, doc).Int()
	if err != nil {
		return unavailable("create", err)
	}
	if created == 0 {
		return ErrAlreadyExists
	}
	return nil
}

func (s *RedisStore) Merge(ctx context.Context, collection, id string, fields map[string]any) error {
	patch, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("failed to encode fields: %w", err)
	}

	keys := []string{hashKey(collection), changesChannel(collection)}
	merged, err := mergeScript.Run(ctx, s.rdb, keys, id, patch).Int()
	if err != nil {
		return unavailable("merge", err)
	}
	if merged == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, collection, id string) error {
	keys := []string{hashKey(collection), changesChannel(collection)}
	deleted, err := deleteScript.Run(ctx, s.rdb, keys, id).Int()
	if err != nil {
		return unavailable("delete", err)
	}
	if deleted == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *RedisStore) List(ctx context.Context, collection string) (Documents, error) {
	all, err := s.rdb.HGetAll(ctx, hashKey(collection)).Result()
	if err != nil {
		return nil, unavailable("list", err)
	}

	docs := make(Documents, len(all))
	for id, doc := range all {
		docs[id] = []byte(doc)
	}
	return docs, nil
}

func (s *RedisStore) Subscribe(ctx context.Context, collection string, fn SnapshotFunc) (Subscription, error) {
	pubsub := s.rdb.Subscribe(ctx, changesChannel(collection))

	// Wait for the subscription to be confirmed so that no change committed
	// after the initial read can be missed.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, unavailable("subscribe", err)
	}

	signals := make(chan error, 1)
	// go-redis reconnects and resubscribes on its own; a new subscription
	// confirmation means changes may have been missed in between.
	messages := pubsub.ChannelWithSubscriptions()

	fetch := func(ctx context.Context) (Documents, error) {
		return s.List(ctx, collection)
	}
	sub := startFeed(ctx, fetch, signals, fn)

	go func() {
		defer pubsub.Close()
		for {
			select {
			case <-sub.done:
				return
			case msg, ok := <-messages:
				if !ok {
					close(signals)
					return
				}
				switch msg.(type) {
				case *redis.Message, *redis.Subscription:
					signal(signals, nil)
				}
			}
		}
	}()

	return sub, nil
}
