package storage

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/meftunca/postbench/pkg/config"
	"github.com/meftunca/postbench/pkg/types"
)

// RedisStore keeps records in Redis or Dragonfly under a key prefix
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisStore creates a store for cfg. The connection is established
// lazily; call Ping to verify it.
func NewRedisStore(cfg config.RedisConfig) *RedisStore {
	addresses := cfg.Addresses
	if len(addresses) == 0 {
		addresses = []string{"localhost:6379"}
	}

	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:        addresses,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     32,
		MinIdleConns: 4,
	})

	return NewRedisStoreWithClient(client, cfg.KeyPrefix)
}

// NewRedisStoreWithClient wraps an existing client
func NewRedisStoreWithClient(client redis.UniversalClient, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) key(k string) string {
	return s.prefix + k
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := s.client.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, notFound(key)
	}
	if err != nil {
		return nil, types.ErrStorageError("get", err)
	}
	return value, nil
}

func (s *RedisStore) Put(ctx context.Context, key string, value []byte) error {
	if err := s.client.Set(ctx, s.key(key), value, 0).Err(); err != nil {
		return types.ErrStorageError("set", err)
	}
	return nil
}

// Delete removes key and returns its previous value in one round trip
func (s *RedisStore) Delete(ctx context.Context, key string) ([]byte, error) {
	value, err := s.client.GetDel(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, notFound(key)
	}
	if err != nil {
		return nil, types.ErrStorageError("getdel", err)
	}
	return value, nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return types.ErrStorageError("ping", err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
