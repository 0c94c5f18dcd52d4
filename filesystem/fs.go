// Package filesystem implements the in-memory virtual filesystem: path
// resolution, the node tree, the operation layer and the snapshot codec.
//
// A FileSystem is not safe for concurrent use. Callers serialize access,
// see the persist package for the arbitration layer.
package filesystem

import "fmt"

// Stat describes a node
type Stat struct {
	IsDir  bool   `json:"is_dir"`
	IsFile bool   `json:"is_file"`
	Size   uint64 `json:"size"`
}

// Usage summarizes the tree contents
type Usage struct {
	Dirs  int    `json:"dirs"` // includes root
	Files int    `json:"files"`
	Bytes uint64 `json:"bytes"`
}

// FileSystem owns the node tree for its whole lifetime. Every operation
// either completes or leaves the tree exactly as it was.
type FileSystem struct {
	root *Dir
}

// NewFS creates a filesystem containing only an empty root
func NewFS() *FileSystem {
	return &FileSystem{root: NewDir()}
}

// checkDepth refuses to place a subtree of the given height at p when the
// result would nest deeper than a snapshot may
func checkDepth(op, p string, h int) error {
	if len(Segments(p))+h > MaxDepth {
		return &Error{Op: op, Path: p, Kind: InvalidOperation, Err: fmt.Errorf("nesting deeper than %d", MaxDepth)}
	}
	return nil
}

// Mkdir creates an empty directory at p. The parent chain must exist and
// p may be at most [MaxDepth] levels deep.
// Creating a directory that already exists is a successful no-op.
func (fs *FileSystem) Mkdir(p string) error {
	p = Normalize(p)
	if p == Root {
		return nil
	}
	if err := checkDepth(OpMkdir, p, 0); err != nil {
		return err
	}
	parent, name, err := lookupParent(fs.root, OpMkdir, p)
	if err != nil {
		return err
	}
	if existing, ok := parent.Child(name); ok {
		if _, isDir := existing.(*Dir); isDir {
			return nil
		}
		return newError(OpMkdir, p, AlreadyExists)
	}
	parent.attach(name, NewDir())
	return nil
}

// ReadDir lists the children of the directory at p in lexicographic order
func (fs *FileSystem) ReadDir(p string) ([]string, error) {
	dir, err := lookupDir(fs.root, OpReadDir, p)
	if err != nil {
		return nil, err
	}
	return dir.Names(), nil
}

// ReadFile returns a copy of the content of the file at p
func (fs *FileSystem) ReadFile(p string) ([]byte, error) {
	p = Normalize(p)
	n, err := lookup(fs.root, OpReadFile, p)
	if err != nil {
		return nil, err
	}
	switch n := n.(type) {
	case *File:
		return n.Bytes(), nil
	case *Dir:
		return nil, newError(OpReadFile, p, IsADirectory)
	}
	panic("filesystem: unknown node type")
}

// WriteFile creates or overwrites the file at p with a copy of data.
// Missing parent directories are not created.
func (fs *FileSystem) WriteFile(p string, data []byte) error {
	p = Normalize(p)
	if p == Root {
		return newError(OpWriteFile, p, IsADirectory)
	}
	if err := checkDepth(OpWriteFile, p, 0); err != nil {
		return err
	}
	parent, name, err := lookupParent(fs.root, OpWriteFile, p)
	if err != nil {
		return err
	}
	if existing, ok := parent.Child(name); ok {
		switch existing := existing.(type) {
		case *Dir:
			return newError(OpWriteFile, p, IsADirectory)
		case *File:
			existing.content = NewFile(data).content
			return nil
		}
	}
	parent.attach(name, NewFile(data))
	return nil
}

// Stat describes the node at p
func (fs *FileSystem) Stat(p string) (Stat, error) {
	n, err := lookup(fs.root, OpStat, p)
	if err != nil {
		return Stat{}, err
	}
	switch n := n.(type) {
	case *File:
		return Stat{IsFile: true, Size: n.Size()}, nil
	case *Dir:
		return Stat{IsDir: true}, nil
	}
	panic("filesystem: unknown node type")
}

// Remove deletes the file at p. Directories need [FileSystem.RemoveDir].
func (fs *FileSystem) Remove(p string) error {
	p = Normalize(p)
	if p == Root {
		return newError(OpRemove, p, IsADirectory)
	}
	parent, name, err := findParent(fs.root, OpRemove, p)
	if err != nil {
		return err
	}
	existing, ok := parent.Child(name)
	if !ok {
		return newError(OpRemove, p, NotFound)
	}
	if _, isDir := existing.(*Dir); isDir {
		return newError(OpRemove, p, IsADirectory)
	}
	parent.detach(name)
	return nil
}

// RemoveDir deletes the empty directory at p. Root can never be removed.
func (fs *FileSystem) RemoveDir(p string) error {
	p = Normalize(p)
	if p == Root {
		return newError(OpRemoveDir, p, InvalidOperation)
	}
	parent, name, err := findParent(fs.root, OpRemoveDir, p)
	if err != nil {
		return err
	}
	existing, ok := parent.Child(name)
	if !ok {
		return newError(OpRemoveDir, p, NotFound)
	}
	dir, isDir := existing.(*Dir)
	if !isDir {
		return newError(OpRemoveDir, p, NotADirectory)
	}
	if dir.Len() > 0 {
		return newError(OpRemoveDir, p, DirectoryNotEmpty)
	}
	parent.detach(name)
	return nil
}

// Move re-links the node at from under to's parent with to's name.
// An existing target is never replaced. Moving a path onto itself is a no-op.
func (fs *FileSystem) Move(from, to string) error {
	from, to = Normalize(from), Normalize(to)
	if from == Root {
		return newError(OpMove, from, InvalidOperation)
	}
	srcParent, srcName, err := findParent(fs.root, OpMove, from)
	if err != nil {
		return err
	}
	node, ok := srcParent.Child(srcName)
	if !ok {
		return newError(OpMove, from, NotFound)
	}
	if from == to {
		return nil
	}
	if IsWithin(to, from) {
		return newError(OpMove, to, InvalidOperation)
	}
	if to == Root {
		return newError(OpMove, to, AlreadyExists)
	}
	if err := checkDepth(OpMove, to, height(node)); err != nil {
		return err
	}
	dstParent, dstName, err := lookupParent(fs.root, OpMove, to)
	if err != nil {
		return err
	}
	if _, exists := dstParent.Child(dstName); exists {
		return newError(OpMove, to, AlreadyExists)
	}
	srcParent.detach(srcName)
	dstParent.attach(dstName, node)
	return nil
}

// Copy deep-copies the file at from to to. An existing file at to is
// overwritten; a directory at to is never replaced.
func (fs *FileSystem) Copy(from, to string) error {
	from, to = Normalize(from), Normalize(to)
	src, err := lookup(fs.root, OpCopy, from)
	if err != nil {
		return err
	}
	file, ok := src.(*File)
	if !ok {
		return newError(OpCopy, from, IsADirectory)
	}
	if from == to {
		return nil
	}
	if to == Root {
		return newError(OpCopy, to, AlreadyExists)
	}
	if err := checkDepth(OpCopy, to, 0); err != nil {
		return err
	}
	dstParent, dstName, err := lookupParent(fs.root, OpCopy, to)
	if err != nil {
		return err
	}
	if existing, exists := dstParent.Child(dstName); exists {
		if _, isDir := existing.(*Dir); isDir {
			return newError(OpCopy, to, AlreadyExists)
		}
	}
	dstParent.attach(dstName, clone(file))
	return nil
}

// Dump serializes the whole tree, see [Encode]
func (fs *FileSystem) Dump() []byte {
	return Encode(fs.root)
}

// Load replaces the tree with the one decoded from b. Empty input yields a
// fresh root. On failure the current tree is kept unchanged.
func (fs *FileSystem) Load(b []byte) error {
	root, err := Decode(b)
	if err != nil {
		return err
	}
	fs.root = root
	return nil
}

// Walk calls fn for every node in depth-first, lexicographic order,
// starting with root. Returning a non-nil error stops the walk.
func (fs *FileSystem) Walk(fn func(p string, st Stat) error) error {
	return walk(fs.root, Root, fn)
}

func walk(n Node, p string, fn func(string, Stat) error) error {
	switch n := n.(type) {
	case *File:
		return fn(p, Stat{IsFile: true, Size: n.Size()})
	case *Dir:
		if err := fn(p, Stat{IsDir: true}); err != nil {
			return err
		}
		for _, name := range n.Names() {
			if err := walk(n.children[name], Join(p, name), fn); err != nil {
				return err
			}
		}
		return nil
	}
	panic("filesystem: unknown node type")
}

// Usage counts directories, files and content bytes
func (fs *FileSystem) Usage() Usage {
	var u Usage
	_ = fs.Walk(func(_ string, st Stat) error {
		if st.IsDir {
			u.Dirs++
		} else {
			u.Files++
			u.Bytes += st.Size
		}
		return nil
	})
	return u
}
