package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
)

// LevelDBStore persists values in a LevelDB database directory
type LevelDBStore struct {
	db *leveldb.DB
}

func NewLevelDBStore(dir string) (*LevelDBStore, error) {
	db, err := leveldb.OpenFile(dir, nil)
	if err != nil {
		return nil, fmt.Errorf("open leveldb %s: %w", dir, err)
	}
	return &LevelDBStore{db}, nil
}

func (ldb *LevelDBStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := ldb.db.Get([]byte(key), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, ErrNotExists
	} else if err != nil {
		return nil, err
	}
	return data, nil
}

// Set writes synchronously so an acknowledged snapshot survives a crash
func (ldb *LevelDBStore) Set(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return ldb.db.Put([]byte(key), value, &opt.WriteOptions{Sync: true})
}

func (ldb *LevelDBStore) Close() error {
	return ldb.db.Close()
}
