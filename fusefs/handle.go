package fusefs

import (
	"context"
	"sync"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
)

// handle buffers the whole content of an open file. Writes stay in the
// buffer until Flush, Fsync or Release sends it back with one WriteFile.
type handle struct {
	mu    sync.Mutex
	b     *bridge
	path  string
	data  []byte
	dirty bool
}

var (
	_ fs.FileReader   = (*handle)(nil)
	_ fs.FileWriter   = (*handle)(nil)
	_ fs.FileFlusher  = (*handle)(nil)
	_ fs.FileFsyncer  = (*handle)(nil)
	_ fs.FileReleaser = (*handle)(nil)
)

func newHandle(b *bridge, p string, data []byte, dirty bool) *handle {
	return &handle{b: b, path: p, data: data, dirty: dirty}
}

func (h *handle) size() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return uint64(len(h.data))
}

func (h *handle) truncate(size uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.data = resize(h.data, size)
	h.dirty = true
}

func (h *handle) Read(ctx context.Context, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if off < 0 {
		return nil, syscall.EINVAL
	}
	if off >= int64(len(h.data)) {
		return fuse.ReadResultData(nil), fs.OK
	}
	end := min(off+int64(len(dest)), int64(len(h.data)))
	n := copy(dest, h.data[off:end])
	return fuse.ReadResultData(dest[:n]), fs.OK
}

// Write fills any gap past the end with zeros
func (h *handle) Write(ctx context.Context, data []byte, off int64) (uint32, syscall.Errno) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if off < 0 {
		return 0, syscall.EINVAL
	}
	end := off + int64(len(data))
	if end > int64(len(h.data)) {
		h.data = resize(h.data, uint64(end))
	}
	copy(h.data[off:], data)
	h.dirty = true
	return uint32(len(data)), fs.OK
}

func (h *handle) Flush(ctx context.Context) syscall.Errno {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.dirty {
		return fs.OK
	}
	errno := h.b.errno("write_file", h.path, h.b.op.WriteFile(ctx, h.path, h.data))
	if errno == fs.OK {
		h.dirty = false
	}
	return errno
}

func (h *handle) Fsync(ctx context.Context, flags uint32) syscall.Errno {
	return h.Flush(ctx)
}

func (h *handle) Release(ctx context.Context) syscall.Errno {
	return h.Flush(ctx)
}
