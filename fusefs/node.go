// Package fusefs exposes an Operator as a mountable FUSE filesystem.
//
// Nodes are path based: every kernel request is translated into the path
// of the inode and forwarded to the operator, so the operator stays the
// single source of truth. Open files are buffered whole and written back
// on flush.
package fusefs

import (
	"context"
	"os"
	"syscall"

	"github.com/brettbedarf/webvfs"
	"github.com/brettbedarf/webvfs/filesystem"
	"github.com/brettbedarf/webvfs/internal/util"
	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
)

const (
	dirMode  = syscall.S_IFDIR | 0o755
	fileMode = syscall.S_IFREG | 0o644

	blockSize = 512

	// renameNoReplace is RENAME_NOREPLACE, the only rename flag the
	// engine can honor since it never replaces a target
	renameNoReplace = 0x1
)

// bridge is shared by every node of a mount
type bridge struct {
	op     webvfs.Operator
	owner  fuse.Owner
	logger util.Logger
}

func newBridge(op webvfs.Operator) *bridge {
	return &bridge{
		op:     op,
		owner:  fuse.Owner{Uid: uint32(os.Getuid()), Gid: uint32(os.Getgid())},
		logger: util.GetLogger("fusefs"),
	}
}

// errno maps err and logs warnings, which the kernel cannot be told about
func (b *bridge) errno(op, p string, err error) syscall.Errno {
	if err != nil {
		ev := b.logger.Debug()
		if ToErrno(err) == fs.OK {
			ev = b.logger.Warn()
		}
		ev.Err(err).Str("op", op).Str("path", p).Msg("Operation returned error")
	}
	return ToErrno(err)
}

func (b *bridge) fillAttr(st filesystem.Stat, a *fuse.Attr) {
	a.Owner = b.owner
	if st.IsDir {
		a.Mode = dirMode
		a.Nlink = 2
		a.Size = 0
	} else {
		a.Mode = fileMode
		a.Nlink = 1
		a.Size = st.Size
	}
	a.Blksize = blockSize
	a.Blocks = (a.Size + blockSize - 1) / blockSize
}

func (b *bridge) lookup(ctx context.Context, p string) (filesystem.Stat, syscall.Errno) {
	st, err := b.op.Stat(ctx, p)
	if err != nil {
		// misses are routine, keep them out of the log
		return filesystem.Stat{}, ToErrno(err)
	}
	return st, fs.OK
}

func (b *bridge) truncate(ctx context.Context, p string, size uint64) syscall.Errno {
	data, err := b.op.ReadFile(ctx, p)
	if err != nil {
		return b.errno("truncate", p, err)
	}
	return b.errno("truncate", p, b.op.WriteFile(ctx, p, resize(data, size)))
}

// readdir lists p, skipping entries removed between listing and stat
func (b *bridge) readdir(ctx context.Context, p string) ([]fuse.DirEntry, syscall.Errno) {
	names, err := b.op.ReadDir(ctx, p)
	if err != nil {
		return nil, b.errno("readdir", p, err)
	}
	entries := make([]fuse.DirEntry, 0, len(names))
	for _, name := range names {
		st, err := b.op.Stat(ctx, filesystem.Join(p, name))
		if err != nil {
			continue
		}
		mode := uint32(syscall.S_IFREG)
		if st.IsDir {
			mode = syscall.S_IFDIR
		}
		entries = append(entries, fuse.DirEntry{Name: name, Mode: mode})
	}
	return entries, fs.OK
}

// open buffers the content of p; O_TRUNC starts from an empty dirty buffer
func (b *bridge) open(ctx context.Context, p string, flags uint32) (*handle, syscall.Errno) {
	if flags&syscall.O_TRUNC != 0 {
		return newHandle(b, p, nil, true), fs.OK
	}
	data, err := b.op.ReadFile(ctx, p)
	if err != nil {
		return nil, b.errno("open", p, err)
	}
	return newHandle(b, p, data, false), fs.OK
}

// create opens p for writing, creating it empty when absent. An existing
// file keeps its content unless O_TRUNC is set.
func (b *bridge) create(ctx context.Context, p string, flags uint32) (*handle, syscall.Errno) {
	st, err := b.op.Stat(ctx, p)
	switch {
	case err == nil && st.IsDir:
		return nil, syscall.EISDIR
	case err == nil && flags&syscall.O_EXCL != 0:
		return nil, syscall.EEXIST
	case err == nil && flags&syscall.O_TRUNC == 0:
		data, err := b.op.ReadFile(ctx, p)
		if err != nil {
			return nil, b.errno("create", p, err)
		}
		return newHandle(b, p, data, false), fs.OK
	}
	if errno := b.errno("create", p, b.op.WriteFile(ctx, p, nil)); errno != fs.OK {
		return nil, errno
	}
	return newHandle(b, p, nil, false), fs.OK
}

// mkdir fails with EEXIST on any existing path, unlike the engine which
// accepts an existing directory
func (b *bridge) mkdir(ctx context.Context, p string) syscall.Errno {
	if _, err := b.op.Stat(ctx, p); err == nil {
		return syscall.EEXIST
	}
	return b.errno("mkdir", p, b.op.Mkdir(ctx, p))
}

// rename never replaces an existing target and fails with EEXIST instead
func (b *bridge) rename(ctx context.Context, from, to string, flags uint32) syscall.Errno {
	if flags&^renameNoReplace != 0 {
		return syscall.EINVAL
	}
	return b.errno("rename", from, b.op.Move(ctx, from, to))
}

// Node is one file or directory of the mount
type Node struct {
	fs.Inode
	b *bridge
}

var (
	_ fs.NodeLookuper  = (*Node)(nil)
	_ fs.NodeGetattrer = (*Node)(nil)
	_ fs.NodeSetattrer = (*Node)(nil)
	_ fs.NodeReaddirer = (*Node)(nil)
	_ fs.NodeOpener    = (*Node)(nil)
	_ fs.NodeCreater   = (*Node)(nil)
	_ fs.NodeMkdirer   = (*Node)(nil)
	_ fs.NodeUnlinker  = (*Node)(nil)
	_ fs.NodeRmdirer   = (*Node)(nil)
	_ fs.NodeRenamer   = (*Node)(nil)
	_ fs.NodeStatfser  = (*Node)(nil)
)

// NewRoot returns the root node for op
func NewRoot(op webvfs.Operator) *Node {
	return &Node{b: newBridge(op)}
}

// path returns the absolute filesystem path of n
func (n *Node) path() string {
	return filesystem.Normalize(n.Path(nil))
}

func (n *Node) child(name string) string {
	return filesystem.Join(n.path(), name)
}

func (n *Node) newChild(ctx context.Context, st filesystem.Stat) *fs.Inode {
	mode := uint32(syscall.S_IFREG)
	if st.IsDir {
		mode = syscall.S_IFDIR
	}
	return n.NewInode(ctx, &Node{b: n.b}, fs.StableAttr{Mode: mode})
}

func (n *Node) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	st, errno := n.b.lookup(ctx, n.child(name))
	if errno != fs.OK {
		return nil, errno
	}
	n.b.fillAttr(st, &out.Attr)
	return n.newChild(ctx, st), fs.OK
}

func (n *Node) Getattr(ctx context.Context, f fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	if h, ok := f.(*handle); ok {
		n.b.fillAttr(filesystem.Stat{IsFile: true, Size: h.size()}, &out.Attr)
		return fs.OK
	}
	p := n.path()
	st, err := n.b.op.Stat(ctx, p)
	if err != nil {
		return n.b.errno("getattr", p, err)
	}
	n.b.fillAttr(st, &out.Attr)
	return fs.OK
}

// Setattr supports truncation only; mode, owner and times are fixed
func (n *Node) Setattr(ctx context.Context, f fs.FileHandle, in *fuse.SetAttrIn, out *fuse.AttrOut) syscall.Errno {
	if size, ok := in.GetSize(); ok {
		if h, isHandle := f.(*handle); isHandle {
			h.truncate(size)
		} else if errno := n.b.truncate(ctx, n.path(), size); errno != fs.OK {
			return errno
		}
	}
	return n.Getattr(ctx, f, out)
}

func (n *Node) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	entries, errno := n.b.readdir(ctx, n.path())
	if errno != fs.OK {
		return nil, errno
	}
	return fs.NewListDirStream(entries), fs.OK
}

func (n *Node) Open(ctx context.Context, flags uint32) (fs.FileHandle, uint32, syscall.Errno) {
	h, errno := n.b.open(ctx, n.path(), flags)
	if errno != fs.OK {
		return nil, 0, errno
	}
	return h, fuse.FOPEN_DIRECT_IO, fs.OK
}

func (n *Node) Create(ctx context.Context, name string, flags uint32, mode uint32, out *fuse.EntryOut) (*fs.Inode, fs.FileHandle, uint32, syscall.Errno) {
	h, errno := n.b.create(ctx, n.child(name), flags)
	if errno != fs.OK {
		return nil, nil, 0, errno
	}
	st := filesystem.Stat{IsFile: true, Size: h.size()}
	n.b.fillAttr(st, &out.Attr)
	return n.newChild(ctx, st), h, fuse.FOPEN_DIRECT_IO, fs.OK
}

func (n *Node) Mkdir(ctx context.Context, name string, mode uint32, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	if errno := n.b.mkdir(ctx, n.child(name)); errno != fs.OK {
		return nil, errno
	}
	st := filesystem.Stat{IsDir: true}
	n.b.fillAttr(st, &out.Attr)
	return n.newChild(ctx, st), fs.OK
}

func (n *Node) Unlink(ctx context.Context, name string) syscall.Errno {
	p := n.child(name)
	return n.b.errno("unlink", p, n.b.op.Remove(ctx, p))
}

func (n *Node) Rmdir(ctx context.Context, name string) syscall.Errno {
	p := n.child(name)
	return n.b.errno("rmdir", p, n.b.op.RemoveDir(ctx, p))
}

func (n *Node) Rename(ctx context.Context, name string, newParent fs.InodeEmbedder, newName string, flags uint32) syscall.Errno {
	to := filesystem.Join(newParent.EmbeddedInode().Path(nil), newName)
	return n.b.rename(ctx, n.child(name), to, flags)
}

func (n *Node) Statfs(ctx context.Context, out *fuse.StatfsOut) syscall.Errno {
	u, err := usage(ctx, n.b.op)
	if err != nil {
		return n.b.errno("statfs", n.path(), err)
	}
	out.Bsize = blockSize
	out.Frsize = blockSize
	out.Blocks = (u.Bytes + blockSize - 1) / blockSize
	out.Files = uint64(u.Dirs + u.Files)
	out.NameLen = 255
	return fs.OK
}

// usage asks op for a tree summary, decoding a snapshot when op cannot
// report one directly
func usage(ctx context.Context, op webvfs.Operator) (filesystem.Usage, error) {
	if u, ok := op.(interface {
		Usage(context.Context) (filesystem.Usage, error)
	}); ok {
		return u.Usage(ctx)
	}
	data, err := op.DumpState(ctx)
	if err != nil {
		return filesystem.Usage{}, err
	}
	tree := filesystem.NewFS()
	if err := tree.Load(data); err != nil {
		return filesystem.Usage{}, err
	}
	return tree.Usage(), nil
}

func resize(data []byte, size uint64) []byte {
	if size <= uint64(len(data)) {
		return data[:size]
	}
	return append(data, make([]byte, size-uint64(len(data)))...)
}
