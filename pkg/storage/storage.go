// Package storage holds the key/value records of the collections server.
package storage

import (
	"context"
	"fmt"

	"github.com/meftunca/postbench/pkg/config"
	"github.com/meftunca/postbench/pkg/types"
)

// Store is a flat byte-valued key/value store. Get and Delete return an
// error matching types.ErrKeyNotFound for unknown keys.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) ([]byte, error)
	Ping(ctx context.Context) error
	Close() error
}

// Storage types
const (
	TypeMemory = "memory"
	TypeRedis  = "redis"
)

// New creates the store selected by cfg.Storage
func New(ctx context.Context, cfg config.ServerConfig) (Store, error) {
	switch cfg.Storage {
	case "", TypeMemory:
		return NewMemoryStore(), nil
	case TypeRedis:
		store := NewRedisStore(cfg.Redis)
		if err := store.Ping(ctx); err != nil {
			_ = store.Close()
			return nil, err
		}
		return store, nil
	default:
		return nil, types.ErrInvalidConfig("server.storage", cfg.Storage)
	}
}

func notFound(key string) error {
	return types.NewProbeError(types.ErrCodeKeyNotFound, fmt.Sprintf("Key %q not found", key)).
		WithDetail("key", key)
}
