package filesystem

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
)

// Snapshot layout (all integers big-endian):
//
//	header:  magic "WVFS" | version uint16
//	body:    node (the root: a directory with an empty name)
//	trailer: crc32 (IEEE) of header and body, uint32
//
//	node:    tag uint8 | nameLen uint32 | name
//	  file:  contentLen uint64 | content
//	  dir:   childCount uint32 | childCount nodes, ordered by name
const (
	SnapshotVersion uint16 = 1

	// MaxDepth bounds directory nesting. [Decode] rejects deeper trees and
	// the engine refuses to build them.
	MaxDepth = 1024

	tagFile uint8 = 1
	tagDir  uint8 = 2

	headerSize  = 6
	trailerSize = 4
)

var snapshotMagic = [4]byte{'W', 'V', 'F', 'S'}

// Encode serializes root and its whole subtree
func Encode(root *Dir) []byte {
	buf := make([]byte, 0, headerSize+trailerSize+64)
	buf = append(buf, snapshotMagic[:]...)
	buf = binary.BigEndian.AppendUint16(buf, SnapshotVersion)
	buf = appendNode(buf, "", root)
	return binary.BigEndian.AppendUint32(buf, crc32.ChecksumIEEE(buf))
}

func appendNode(buf []byte, name string, n Node) []byte {
	switch n := n.(type) {
	case *File:
		buf = append(buf, tagFile)
		buf = appendString(buf, name)
		buf = binary.BigEndian.AppendUint64(buf, uint64(len(n.content)))
		return append(buf, n.content...)
	case *Dir:
		buf = append(buf, tagDir)
		buf = appendString(buf, name)
		buf = binary.BigEndian.AppendUint32(buf, uint32(len(n.children)))
		for _, child := range n.Names() {
			buf = appendNode(buf, child, n.children[child])
		}
		return buf
	}
	panic("filesystem: unknown node type")
}

func appendString(buf []byte, s string) []byte {
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(s)))
	return append(buf, s...)
}

// Decode rebuilds a tree from [Encode] output. Empty input is a fresh boot
// and yields an empty root. Any malformed input fails with [CorruptState]
// and no tree is returned.
func Decode(b []byte) (*Dir, error) {
	if len(b) == 0 {
		return NewDir(), nil
	}
	if len(b) < headerSize+trailerSize {
		return nil, corrupt(errors.New("snapshot too short"))
	}
	if [4]byte(b[:4]) != snapshotMagic {
		return nil, corrupt(errors.New("bad magic"))
	}
	if v := binary.BigEndian.Uint16(b[4:6]); v != SnapshotVersion {
		return nil, corrupt(fmt.Errorf("unsupported snapshot version %d", v))
	}
	body, trailer := b[:len(b)-trailerSize], b[len(b)-trailerSize:]
	if want, got := binary.BigEndian.Uint32(trailer), crc32.ChecksumIEEE(body); want != got {
		return nil, corrupt(fmt.Errorf("checksum mismatch: stored %08x, computed %08x", want, got))
	}

	d := &decoder{buf: body, pos: headerSize}
	name, root, err := d.node(0)
	if err != nil {
		return nil, corrupt(err)
	}
	if d.pos != len(d.buf) {
		return nil, corrupt(fmt.Errorf("%d trailing bytes", len(d.buf)-d.pos))
	}
	dir, ok := root.(*Dir)
	if !ok {
		return nil, corrupt(errors.New("root is not a directory"))
	}
	if name != "" {
		return nil, corrupt(fmt.Errorf("root has name %q", name))
	}
	return dir, nil
}

func corrupt(err error) error {
	return &Error{Op: OpLoad, Kind: CorruptState, Err: err}
}

// decoder is a bounds-checked read cursor over a snapshot body
type decoder struct {
	buf []byte
	pos int
}

func (d *decoder) take(n uint64) ([]byte, error) {
	if n > uint64(len(d.buf)-d.pos) {
		return nil, fmt.Errorf("truncated at offset %d: need %d bytes, have %d", d.pos, n, len(d.buf)-d.pos)
	}
	b := d.buf[d.pos : d.pos+int(n)]
	d.pos += int(n)
	return b, nil
}

func (d *decoder) uint8() (uint8, error) {
	b, err := d.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (d *decoder) uint32() (uint32, error) {
	b, err := d.take(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (d *decoder) uint64() (uint64, error) {
	b, err := d.take(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

func (d *decoder) string() (string, error) {
	n, err := d.uint32()
	if err != nil {
		return "", err
	}
	b, err := d.take(uint64(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (d *decoder) node(depth int) (string, Node, error) {
	if depth > MaxDepth {
		return "", nil, fmt.Errorf("nesting deeper than %d", MaxDepth)
	}
	at := d.pos
	tag, err := d.uint8()
	if err != nil {
		return "", nil, err
	}
	name, err := d.string()
	if err != nil {
		return "", nil, err
	}

	switch tag {
	case tagFile:
		size, err := d.uint64()
		if err != nil {
			return "", nil, err
		}
		content, err := d.take(size)
		if err != nil {
			return "", nil, err
		}
		return name, NewFile(content), nil

	case tagDir:
		count, err := d.uint32()
		if err != nil {
			return "", nil, err
		}
		dir := NewDir()
		for i := uint32(0); i < count; i++ {
			childName, child, err := d.node(depth + 1)
			if err != nil {
				return "", nil, err
			}
			if !validName(childName) {
				return "", nil, fmt.Errorf("invalid child name %q", childName)
			}
			if _, dup := dir.children[childName]; dup {
				return "", nil, fmt.Errorf("duplicate child name %q", childName)
			}
			dir.children[childName] = child
		}
		return name, dir, nil

	default:
		return "", nil, fmt.Errorf("unknown node tag %d at offset %d", tag, at)
	}
}
