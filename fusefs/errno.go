package fusefs

import (
	"context"
	"errors"
	"syscall"

	"github.com/brettbedarf/webvfs/filesystem"
	"github.com/brettbedarf/webvfs/persist"
	"github.com/brettbedarf/webvfs/rpc"
	"github.com/hanwen/go-fuse/v2/fs"
)

var kindErrno = map[filesystem.Kind]syscall.Errno{
	filesystem.NotFound:          syscall.ENOENT,
	filesystem.NotADirectory:     syscall.ENOTDIR,
	filesystem.IsADirectory:      syscall.EISDIR,
	filesystem.AlreadyExists:     syscall.EEXIST,
	filesystem.DirectoryNotEmpty: syscall.ENOTEMPTY,
	filesystem.InvalidOperation:  syscall.EINVAL,
	filesystem.CorruptState:      syscall.EIO,
}

// ToErrno maps an operation error to the errno reported to the kernel.
// A persistence warning means the operation itself succeeded.
func ToErrno(err error) syscall.Errno {
	if err == nil || persist.IsWarning(err) {
		return fs.OK
	}
	if kind, ok := filesystem.KindOf(err); ok {
		if errno, found := kindErrno[kind]; found {
			return errno
		}
	}
	switch {
	case errors.Is(err, rpc.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return syscall.ETIMEDOUT
	case errors.Is(err, context.Canceled):
		return syscall.EINTR
	case errors.Is(err, persist.ErrNotBooted), errors.Is(err, rpc.ErrClosed):
		return syscall.ENODEV
	}
	return syscall.EIO
}
