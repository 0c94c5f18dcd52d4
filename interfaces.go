package webvfs

import (
	"context"

	"github.com/brettbedarf/webvfs/filesystem"
)

// Operator is the operation surface of the filesystem, shared by the
// in-process coordinator and the RPC client. Paths are normalized by the
// implementation; relative paths are treated as rooted.
//
// Mutating methods may return a warning (see persist.IsWarning) when the
// change was applied but could not be saved.
type Operator interface {
	Mkdir(ctx context.Context, p string) error
	ReadDir(ctx context.Context, p string) ([]string, error)
	ReadFile(ctx context.Context, p string) ([]byte, error)
	WriteFile(ctx context.Context, p string, data []byte) error
	Stat(ctx context.Context, p string) (filesystem.Stat, error)
	Remove(ctx context.Context, p string) error
	RemoveDir(ctx context.Context, p string) error
	Move(ctx context.Context, from, to string) error
	Copy(ctx context.Context, from, to string) error
	// DumpState returns the current snapshot bytes
	DumpState(ctx context.Context) ([]byte, error)
}
