package drafts

import (
	"context"
	"fmt"
	"time"

	"alertdesk/metrics"

	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"
)

// Draft keys are namespaced per session so Clear can drop a whole session
// without scanning.
const (
	draftKeyPrefix   = "draft:"
	sessionSetPrefix = "draftkeys:"
)

// RedisStore keeps drafts in Redis with a TTL, msgpack-encoded. Used when the
// service runs with more than one replica behind a balancer, so a session's
// drafts follow it to any instance.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.SugaredLogger
}

// NewRedisStore creates a Redis-backed draft store.
func NewRedisStore(addr, password string, db int, ttl time.Duration, logger *zap.SugaredLogger) *RedisStore {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &RedisStore{client: client, ttl: ttl, logger: logger}
}

// Ping tests the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func draftKey(session, key string) string {
	return draftKeyPrefix + session + ":" + key
}

func sessionSetKey(session string) string {
	return sessionSetPrefix + session
}

func (s *RedisStore) Get(ctx context.Context, session, key string) (*Draft, error) {
	data, err := s.client.Get(ctx, draftKey(session, key)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		metrics.DraftStoreErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("failed to get draft for %s: %w", key, err)
	}

	var draft Draft
	if err := msgpack.Unmarshal(data, &draft); err != nil {
		metrics.DraftStoreErrors.WithLabelValues("decode").Inc()
		return nil, fmt.Errorf("failed to decode draft for %s: %w", key, err)
	}
	return &draft, nil
}

func (s *RedisStore) Put(ctx context.Context, session, key string, draft *Draft) error {
	data, err := msgpack.Marshal(draft)
	if err != nil {
		metrics.DraftStoreErrors.WithLabelValues("encode").Inc()
		return fmt.Errorf("failed to encode draft for %s: %w", key, err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, draftKey(session, key), data, s.ttl)
	pipe.SAdd(ctx, sessionSetKey(session), key)
	pipe.Expire(ctx, sessionSetKey(session), s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		metrics.DraftStoreErrors.WithLabelValues("put").Inc()
		return fmt.Errorf("failed to store draft for %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, session string, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	draftKeys := make([]string, len(keys))
	for i, key := range keys {
		draftKeys[i] = draftKey(session, key)
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, draftKeys...)
	pipe.SRem(ctx, sessionSetKey(session), toInterfaces(keys)...)
	if _, err := pipe.Exec(ctx); err != nil {
		metrics.DraftStoreErrors.WithLabelValues("delete").Inc()
		return fmt.Errorf("failed to delete drafts: %w", err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context, session string) error {
	keys, err := s.client.SMembers(ctx, sessionSetKey(session)).Result()
	if err != nil {
		metrics.DraftStoreErrors.WithLabelValues("clear").Inc()
		return fmt.Errorf("failed to list session drafts: %w", err)
	}
	if err := s.Delete(ctx, session, keys...); err != nil {
		return err
	}
	if err := s.client.Del(ctx, sessionSetKey(session)).Err(); err != nil {
		metrics.DraftStoreErrors.WithLabelValues("clear").Inc()
		return fmt.Errorf("failed to clear session drafts: %w", err)
	}
	return nil
}

func toInterfaces(keys []string) []interface{} {
	out := make([]interface{}, len(keys))
	for i, k := range keys {
		out[i] = k
	}
	return out
}
