package rpc

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
)

// MaxFrameSize bounds a single frame on a stream connection
const MaxFrameSize = 64 << 20

// ErrClosed is returned by a Conn after Close
var ErrClosed = errors.New("rpc: connection closed")

// Conn moves whole frames. ReadFrame blocks until a frame arrives or the
// connection is closed, in which case it returns io.EOF or ErrClosed.
// WriteFrame is safe for concurrent use.
type Conn interface {
	ReadFrame() ([]byte, error)
	WriteFrame(b []byte) error
	Close() error
}

// chanConn is one end of an in-process pipe
type chanConn struct {
	in     <-chan []byte
	out    chan<- []byte
	closed chan struct{}
	once   *sync.Once
}

// Pipe returns two connected in-process ends. Closing either end closes both.
func Pipe() (Conn, Conn) {
	a2b := make(chan []byte, 16)
	b2a := make(chan []byte, 16)
	closed := make(chan struct{})
	once := &sync.Once{}
	return &chanConn{in: b2a, out: a2b, closed: closed, once: once},
		&chanConn{in: a2b, out: b2a, closed: closed, once: once}
}

func (c *chanConn) ReadFrame() ([]byte, error) {
	select {
	case b := <-c.in:
		return b, nil
	case <-c.closed:
		return nil, ErrClosed
	}
}

func (c *chanConn) WriteFrame(b []byte) error {
	frame := append([]byte(nil), b...)
	select {
	case <-c.closed:
		return ErrClosed
	default:
	}
	select {
	case c.out <- frame:
		return nil
	case <-c.closed:
		return ErrClosed
	}
}

func (c *chanConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

// streamConn frames messages over a byte stream with a uint32 big-endian
// length prefix
type streamConn struct {
	rwc io.ReadWriteCloser
	r   *bufio.Reader
	wmu sync.Mutex
}

// NewStreamConn frames messages over rwc, e.g. a net.Conn or a pipe
func NewStreamConn(rwc io.ReadWriteCloser) Conn {
	return &streamConn{rwc: rwc, r: bufio.NewReader(rwc)}
}

func (c *streamConn) ReadFrame() ([]byte, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(c.r, hdr[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(hdr[:])
	if n > MaxFrameSize {
		return nil, fmt.Errorf("rpc: frame of %d bytes exceeds limit of %d", n, MaxFrameSize)
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(c.r, b); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return b, nil
}

func (c *streamConn) WriteFrame(b []byte) error {
	if len(b) > MaxFrameSize {
		return fmt.Errorf("rpc: frame of %d bytes exceeds limit of %d", len(b), MaxFrameSize)
	}
	buf := make([]byte, 4, 4+len(b))
	binary.BigEndian.PutUint32(buf, uint32(len(b)))
	buf = append(buf, b...)

	c.wmu.Lock()
	defer c.wmu.Unlock()
	_, err := c.rwc.Write(buf)
	return err
}

func (c *streamConn) Close() error {
	return c.rwc.Close()
}

// isClosed reports whether err means the peer went away
func isClosed(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, ErrClosed) || errors.Is(err, io.ErrClosedPipe) ||
		errors.Is(err, net.ErrClosed)
}
