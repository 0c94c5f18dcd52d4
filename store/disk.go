package store

import (
	"context"
	"crypto/md5"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/peterbourgon/diskv/v3"
)

// DiskStore keeps one file per key in a flat directory, with an in-memory
// read cache of up to cacheSize bytes.
type DiskStore struct {
	d *diskv.Diskv
}

func NewDiskStore(dir string, cacheSize uint64) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store dir %s: %w", dir, err)
	}
	flatTransform := func(s string) []string {
		return []string{}
	}

	d := diskv.New(diskv.Options{
		BasePath:     dir,
		TempDir:      filepath.Join(dir, ".tmp"),
		Transform:    flatTransform,
		CacheSizeMax: cacheSize,
	})

	return &DiskStore{d}, nil
}

func (ds *DiskStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b, err := ds.d.Read(hashKey(key))
	if os.IsNotExist(err) {
		return nil, ErrNotExists
	}
	return b, err
}

// Set writes to a temp file and renames it into place
func (ds *DiskStore) Set(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return ds.d.Write(hashKey(key), value)
}

func (ds *DiskStore) Close() error { return nil }

func hashKey(key string) string {
	h := md5.New()
	io.WriteString(h, key)
	return fmt.Sprintf("%x", h.Sum(nil))
}
