// Package store provides the byte store the filesystem snapshot is persisted
// to. A store maps string keys to opaque byte values.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/brettbedarf/webvfs/config"
)

var ErrNotExists = errors.New("key does not exist in store")

// Store is a durable key/value byte store. Implementations are safe for
// concurrent use.
type Store interface {
	// Get returns the value under key or ErrNotExists
	Get(ctx context.Context, key string) ([]byte, error)
	// Set replaces the value under key
	Set(ctx context.Context, key string, value []byte) error
	Close() error
}

func IsNotExists(err error) bool {
	return errors.Is(err, ErrNotExists)
}

// Open creates the backend selected by cfg.StoreBackend
func Open(cfg *config.Config) (Store, error) {
	switch cfg.StoreBackend {
	case config.StoreMemory:
		return NewMemoryStore(), nil
	case config.StoreLevelDB:
		return NewLevelDBStore(cfg.StorePath)
	case config.StoreDisk:
		return NewDiskStore(cfg.StorePath, cfg.DiskCacheSize)
	default:
		return nil, fmt.Errorf("unknown store backend: %q", cfg.StoreBackend)
	}
}
