// Package webvfs wires the virtual filesystem together: a byte store, the
// persistence coordinator in front of it and the operation contract the
// shell, RPC and FUSE front ends are written against.
package webvfs

import (
	"context"
	"errors"
	"fmt"

	"github.com/brettbedarf/webvfs/config"
	"github.com/brettbedarf/webvfs/persist"
	"github.com/brettbedarf/webvfs/store"
)

// Kernel owns the store and the coordinator for the life of the process
type Kernel struct {
	*persist.Coordinator
	store store.Store
}

var _ Operator = (*Kernel)(nil)

// New opens the configured store. Call [Kernel.Boot] before use.
func New(cfg *config.Config) (*Kernel, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	st, err := store.Open(cfg)
	if err != nil {
		return nil, err
	}
	return NewWithStore(st, cfg), nil
}

// NewWithStore builds a kernel over an already opened store
func NewWithStore(st store.Store, cfg *config.Config) *Kernel {
	return &Kernel{
		Coordinator: persist.New(st, cfg),
		store:       st,
	}
}

// Close writes a final snapshot and closes the store
func (k *Kernel) Close(ctx context.Context) error {
	return errors.Join(k.Coordinator.Close(ctx), k.store.Close())
}
