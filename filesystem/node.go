package filesystem

import (
	"slices"
	"sort"
)

// Node is a File or a Dir. The set is closed: only this package can add
// variants, so a type switch over *File and *Dir is exhaustive.
//
// Nodes carry no name and no parent; a name is the key of the edge in the
// parent's child map and lookups always walk down from the root.
type Node interface {
	// Size returns the content length for files and 0 for directories
	Size() uint64
	isNode()
}

// File owns its byte content exclusively
type File struct {
	content []byte
}

// NewFile creates a file holding a private copy of data
func NewFile(data []byte) *File {
	return &File{content: slices.Clone(data)}
}

func (f *File) Size() uint64 { return uint64(len(f.content)) }

// Bytes returns a copy of the file content
func (f *File) Bytes() []byte {
	out := make([]byte, len(f.content))
	copy(out, f.content)
	return out
}

func (f *File) isNode() {}

// Dir owns a name -> Node mapping. Names are unique and never contain "/".
type Dir struct {
	children map[string]Node
}

// NewDir creates an empty directory
func NewDir() *Dir {
	return &Dir{children: make(map[string]Node)}
}

func (d *Dir) Size() uint64 { return 0 }

func (d *Dir) isNode() {}

// Child returns the named child
func (d *Dir) Child(name string) (Node, bool) {
	n, ok := d.children[name]
	return n, ok
}

// Names returns the child names in lexicographic order
func (d *Dir) Names() []string {
	names := make([]string, 0, len(d.children))
	for name := range d.children {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of children
func (d *Dir) Len() int { return len(d.children) }

// attach links child under name, replacing any existing entry.
// Callers validate collisions first.
func (d *Dir) attach(name string, child Node) {
	d.children[name] = child
}

// detach unlinks and returns the named child
func (d *Dir) detach(name string) (Node, bool) {
	child, ok := d.children[name]
	if ok {
		delete(d.children, name)
	}
	return child, ok
}

// clone returns a deep copy of n sharing no memory with the original
func clone(n Node) Node {
	switch n := n.(type) {
	case *File:
		return NewFile(n.content)
	case *Dir:
		out := NewDir()
		for name, child := range n.children {
			out.children[name] = clone(child)
		}
		return out
	default:
		panic("filesystem: unknown node type")
	}
}

// lookup walks from root to the node at path. A path that tries to
// descend through a file does not resolve: it is NotFound.
func lookup(root *Dir, op, path string) (Node, error) {
	return walkTo(root, op, path, NotFound)
}

// walkTo is lookup with throughFile reported when a segment past a file
// is requested
func walkTo(root *Dir, op, path string, throughFile Kind) (Node, error) {
	var cur Node = root
	walked := ""
	for _, seg := range Segments(path) {
		dir, ok := cur.(*Dir)
		if !ok {
			if throughFile == NotFound {
				return nil, newError(op, walked+"/"+seg, NotFound)
			}
			return nil, newError(op, Normalize(walked), throughFile)
		}
		walked += "/" + seg
		if cur, ok = dir.Child(seg); !ok {
			return nil, newError(op, walked, NotFound)
		}
	}
	return cur, nil
}

// lookupDir walks to path and requires it to be a directory
func lookupDir(root *Dir, op, path string) (*Dir, error) {
	n, err := lookup(root, op, path)
	if err != nil {
		return nil, err
	}
	dir, ok := n.(*Dir)
	if !ok {
		return nil, newError(op, Normalize(path), NotADirectory)
	}
	return dir, nil
}

// lookupParent resolves all but the last segment of path to a directory
// and returns it with the final name. Root has no parent. A file in the
// parent chain is NotADirectory; use it where path is being created.
func lookupParent(root *Dir, op, path string) (*Dir, string, error) {
	return parentOf(root, op, path, NotADirectory)
}

// findParent is lookupParent for paths that must already exist, where a
// file in the chain means the path does not resolve
func findParent(root *Dir, op, path string) (*Dir, string, error) {
	return parentOf(root, op, path, NotFound)
}

func parentOf(root *Dir, op, path string, throughFile Kind) (*Dir, string, error) {
	parentPath, name := Split(path)
	if name == "" {
		return nil, "", newError(op, Root, InvalidOperation)
	}
	n, err := walkTo(root, op, parentPath, throughFile)
	if err != nil {
		return nil, "", err
	}
	parent, ok := n.(*Dir)
	if !ok {
		if throughFile == NotFound {
			return nil, "", newError(op, Normalize(path), NotFound)
		}
		return nil, "", newError(op, Normalize(parentPath), throughFile)
	}
	return parent, name, nil
}

// height is the number of levels below n
func height(n Node) int {
	dir, ok := n.(*Dir)
	if !ok {
		return 0
	}
	h := 0
	for _, child := range dir.children {
		h = max(h, height(child)+1)
	}
	return h
}
