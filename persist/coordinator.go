// Package persist keeps the in-memory filesystem and its stored snapshot
// in step. The Coordinator is the only writer of both: it serializes every
// call, applies the mutation to the tree and then rewrites the snapshot.
package persist

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/brettbedarf/webvfs/config"
	"github.com/brettbedarf/webvfs/filesystem"
	"github.com/brettbedarf/webvfs/internal/util"
	"github.com/brettbedarf/webvfs/store"
)

// Op names for mutations that have no engine counterpart
const (
	OpBoot  = "boot"
	OpClose = "close"
)

type Coordinator struct {
	mu     sync.Mutex
	fs     *filesystem.FileSystem
	store  store.Store
	key    string
	seed   bool
	app    AppConfig
	booted bool
	logger util.Logger
}

// New creates a coordinator over st. Nothing is read until [Coordinator.Boot].
func New(st store.Store, cfg *config.Config) *Coordinator {
	return &Coordinator{
		fs:     filesystem.NewFS(),
		store:  st,
		key:    cfg.StateKey,
		seed:   cfg.Seed,
		app:    DefaultAppConfig(cfg.Prompt, cfg.StateKey),
		logger: util.GetLogger("persist"),
	}
}

// Boot loads the stored snapshot. When the store has none, the baseline
// layout is seeded (if enabled) and written out immediately. A corrupt
// snapshot fails with [filesystem.CorruptState] and is left untouched in
// the store. The returned error may be a [PersistError] warning, in which
// case the coordinator is booted and usable.
func (c *Coordinator) Boot(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.booted {
		return errors.New("already booted")
	}

	data, err := c.store.Get(ctx, c.key)
	switch {
	case store.IsNotExists(err):
		fs := filesystem.NewFS()
		if c.seed {
			if err := Seed(fs, c.app); err != nil {
				return err
			}
		}
		c.fs = fs
		c.booted = true
		c.logger.Info().Str("key", c.key).Bool("seeded", c.seed).Msg("No stored state, starting fresh")
		return c.persist(ctx, OpBoot, "")

	case err != nil:
		return fmt.Errorf("read state %q: %w", c.key, err)
	}

	fs := filesystem.NewFS()
	if err := fs.Load(data); err != nil {
		c.logger.Error().Err(err).Str("key", c.key).Int("bytes", len(data)).Msg("Stored state is corrupt")
		return err
	}
	c.fs = fs
	c.booted = true

	u := fs.Usage()
	c.logger.Info().
		Str("key", c.key).
		Int("bytes", len(data)).
		Int("dirs", u.Dirs).
		Int("files", u.Files).
		Msg("Restored filesystem from store")
	return nil
}

// Booted reports whether Boot has completed
func (c *Coordinator) Booted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.booted
}

// persist writes the current snapshot. Callers hold c.mu.
func (c *Coordinator) persist(ctx context.Context, op, path string) error {
	data := c.fs.Dump()
	if err := c.store.Set(ctx, c.key, data); err != nil {
		c.logger.Warn().Err(err).Str("op", op).Str("path", path).Msg("Failed to persist snapshot")
		return &PersistError{Op: op, Path: path, Err: err}
	}
	c.logger.Trace().Str("op", op).Str("path", path).Int("bytes", len(data)).Msg("Snapshot persisted")
	return nil
}

// mutate runs fn under the lock and persists when it succeeds
func (c *Coordinator) mutate(ctx context.Context, op, path string, fn func(fs *filesystem.FileSystem) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.booted {
		return ErrNotBooted
	}
	if err := fn(c.fs); err != nil {
		c.logger.Debug().Err(err).Str("op", op).Str("path", path).Msg("Operation failed")
		return err
	}
	return c.persist(ctx, op, path)
}

// read runs fn under the lock
func (c *Coordinator) read(fn func(fs *filesystem.FileSystem) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.booted {
		return ErrNotBooted
	}
	return fn(c.fs)
}

func (c *Coordinator) Mkdir(ctx context.Context, p string) error {
	return c.mutate(ctx, filesystem.OpMkdir, p, func(fs *filesystem.FileSystem) error {
		return fs.Mkdir(p)
	})
}

func (c *Coordinator) WriteFile(ctx context.Context, p string, data []byte) error {
	return c.mutate(ctx, filesystem.OpWriteFile, p, func(fs *filesystem.FileSystem) error {
		return fs.WriteFile(p, data)
	})
}

func (c *Coordinator) Remove(ctx context.Context, p string) error {
	return c.mutate(ctx, filesystem.OpRemove, p, func(fs *filesystem.FileSystem) error {
		return fs.Remove(p)
	})
}

func (c *Coordinator) RemoveDir(ctx context.Context, p string) error {
	return c.mutate(ctx, filesystem.OpRemoveDir, p, func(fs *filesystem.FileSystem) error {
		return fs.RemoveDir(p)
	})
}

func (c *Coordinator) Move(ctx context.Context, from, to string) error {
	return c.mutate(ctx, filesystem.OpMove, from, func(fs *filesystem.FileSystem) error {
		return fs.Move(from, to)
	})
}

func (c *Coordinator) Copy(ctx context.Context, from, to string) error {
	return c.mutate(ctx, filesystem.OpCopy, to, func(fs *filesystem.FileSystem) error {
		return fs.Copy(from, to)
	})
}

func (c *Coordinator) ReadDir(_ context.Context, p string) (names []string, err error) {
	err = c.read(func(fs *filesystem.FileSystem) error {
		names, err = fs.ReadDir(p)
		return err
	})
	return names, err
}

func (c *Coordinator) ReadFile(_ context.Context, p string) (data []byte, err error) {
	err = c.read(func(fs *filesystem.FileSystem) error {
		data, err = fs.ReadFile(p)
		return err
	})
	return data, err
}

func (c *Coordinator) Stat(_ context.Context, p string) (st filesystem.Stat, err error) {
	err = c.read(func(fs *filesystem.FileSystem) error {
		st, err = fs.Stat(p)
		return err
	})
	return st, err
}

// DumpState returns the current snapshot bytes without writing them
func (c *Coordinator) DumpState(_ context.Context) (data []byte, err error) {
	err = c.read(func(fs *filesystem.FileSystem) error {
		data = fs.Dump()
		return nil
	})
	return data, err
}

// Usage summarizes the tree
func (c *Coordinator) Usage(_ context.Context) (u filesystem.Usage, err error) {
	err = c.read(func(fs *filesystem.FileSystem) error {
		u = fs.Usage()
		return nil
	})
	return u, err
}

// Close writes a final snapshot. Further calls fail with [ErrNotBooted].
// The store itself is not closed.
func (c *Coordinator) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.booted {
		return nil
	}
	err := c.persist(ctx, OpClose, "")
	c.booted = false
	return err
}
