package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/brettbedarf/webvfs/filesystem"
	"github.com/brettbedarf/webvfs/internal/util"
	"github.com/brettbedarf/webvfs/persist"
	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v4"
)

// ErrTimeout is wrapped by calls that got no response in time
var ErrTimeout = errors.New("rpc: request timed out")

// RemoteError is a failure reported by the server. It matches the
// filesystem Kind it was reported with, so errors.Is(err, filesystem.NotFound)
// works across the connection. A not-booted server matches
// persist.ErrNotBooted.
type RemoteError struct {
	Kind    filesystem.Kind // zero when the server sent no filesystem kind
	Err     error           // sentinel for kinds outside the filesystem taxonomy
	Message string
}

func (e *RemoteError) Error() string { return e.Message }

func (e *RemoteError) Unwrap() error {
	if e.Kind != 0 {
		return e.Kind
	}
	return e.Err
}

func remoteError(body *ErrorBody) *RemoteError {
	kind, _ := filesystem.ParseKind(body.Kind)
	re := &RemoteError{Kind: kind, Message: body.Message}
	if body.Kind == KindNotBooted {
		re.Err = persist.ErrNotBooted
	}
	return re
}

// Client issues requests over a Conn. It is safe for concurrent use;
// responses are matched to calls by request ID.
type Client struct {
	conn    Conn
	timeout time.Duration
	pending *xsync.Map[string, chan *Response]
	logger  util.Logger

	readyOnce sync.Once
	ready     chan struct{}
	fatal     error // set before ready is closed

	closeOnce sync.Once
	done      chan struct{}
	err       error // set before done is closed
}

// NewClient starts reading from conn. Every call waits up to timeout for
// its response.
func NewClient(conn Conn, timeout time.Duration) *Client {
	c := &Client{
		conn:    conn,
		timeout: timeout,
		pending: xsync.NewMap[string, chan *Response](),
		logger:  util.GetLogger("rpc.client"),
		ready:   make(chan struct{}),
		done:    make(chan struct{}),
	}
	go c.readLoop()
	return c
}

func (c *Client) readLoop() {
	for {
		frame, err := c.conn.ReadFrame()
		if err != nil {
			if isClosed(err) {
				err = ErrClosed
			}
			c.shutdown(err)
			return
		}

		var resp Response
		if err := json.Unmarshal(frame, &resp); err != nil {
			c.logger.Warn().Err(err).Int("bytes", len(frame)).Msg("Malformed response")
			continue
		}
		if resp.IsControl() {
			c.control(&resp)
			continue
		}

		ch, ok := c.pending.LoadAndDelete(resp.ID)
		if !ok {
			c.logger.Debug().Str("id", resp.ID).Msg("Dropping response for unknown or expired request")
			continue
		}
		ch <- &resp
	}
}

func (c *Client) control(resp *Response) {
	switch resp.Type {
	case ControlReady:
		c.readyOnce.Do(func() { close(c.ready) })
	case ControlFatal:
		c.readyOnce.Do(func() {
			body := resp.Error
			if body == nil {
				body = &ErrorBody{Message: "server failed to boot"}
			}
			c.fatal = fmt.Errorf("boot failed: %w", remoteError(body))
			close(c.ready)
		})
	default:
		c.logger.Warn().Str("type", resp.Type).Msg("Unknown control frame")
	}
}

func (c *Client) shutdown(err error) {
	c.closeOnce.Do(func() {
		c.err = err
		close(c.done)
		c.logger.Debug().Err(err).Int("pending", c.pending.Size()).Msg("Client shut down")
	})
}

// WaitReady blocks until the server announced ready. It returns the boot
// failure when the server announced fatal instead.
func (c *Client) WaitReady(ctx context.Context) error {
	select {
	case <-c.ready:
		return c.fatal
	case <-c.done:
		// a ready frame may have raced the close
		select {
		case <-c.ready:
			return c.fatal
		default:
			return c.err
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close closes the connection and fails every pending call
func (c *Client) Close() error {
	err := c.conn.Close()
	c.shutdown(ErrClosed)
	return err
}

func (c *Client) call(ctx context.Context, req *Request) (*Response, error) {
	if err := c.WaitReady(ctx); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req.ID = uuid.NewString()
	ch := make(chan *Response, 1)
	c.pending.Store(req.ID, ch)
	defer c.pending.Delete(req.ID)

	b, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode %s request: %w", req.Type, err)
	}
	if err := c.conn.WriteFrame(b); err != nil {
		return nil, fmt.Errorf("send %s request: %w", req.Type, err)
	}

	select {
	case resp := <-ch:
		return resp, nil
	case <-c.done:
		return nil, c.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %s after %s", ErrTimeout, req.Type, c.timeout)
		}
		return nil, ctx.Err()
	}
}

// do runs req and decodes its result into out, if non-nil
func (c *Client) do(ctx context.Context, req *Request, out any) error {
	resp, err := c.call(ctx, req)
	if err != nil {
		return err
	}
	if resp.Error != nil {
		return remoteError(resp.Error)
	}
	if out != nil && len(resp.Result) > 0 {
		if err := json.Unmarshal(resp.Result, out); err != nil {
			return fmt.Errorf("decode %s result: %w", req.Type, err)
		}
	}
	if resp.Warning != "" {
		path := req.Path
		if path == "" {
			path = req.From
		}
		return &persist.PersistError{Op: string(req.Type), Path: path, Err: errors.New(resp.Warning)}
	}
	return nil
}

func (c *Client) Mkdir(ctx context.Context, p string) error {
	return c.do(ctx, &Request{Type: TypeMkdir, Path: p}, nil)
}

func (c *Client) ReadDir(ctx context.Context, p string) ([]string, error) {
	var names []string
	if err := c.do(ctx, &Request{Type: TypeReadDir, Path: p}, &names); err != nil {
		return nil, err
	}
	return names, nil
}

func (c *Client) ReadFile(ctx context.Context, p string) ([]byte, error) {
	var data []byte
	if err := c.do(ctx, &Request{Type: TypeReadFile, Path: p}, &data); err != nil {
		return nil, err
	}
	return data, nil
}

func (c *Client) WriteFile(ctx context.Context, p string, data []byte) error {
	return c.do(ctx, &Request{Type: TypeWriteFile, Path: p, Data: data}, nil)
}

func (c *Client) Stat(ctx context.Context, p string) (filesystem.Stat, error) {
	var st filesystem.Stat
	if err := c.do(ctx, &Request{Type: TypeStat, Path: p}, &st); err != nil {
		return filesystem.Stat{}, err
	}
	return st, nil
}

func (c *Client) Remove(ctx context.Context, p string) error {
	return c.do(ctx, &Request{Type: TypeRemove, Path: p}, nil)
}

func (c *Client) RemoveDir(ctx context.Context, p string) error {
	return c.do(ctx, &Request{Type: TypeRemoveDir, Path: p}, nil)
}

func (c *Client) Move(ctx context.Context, from, to string) error {
	return c.do(ctx, &Request{Type: TypeMove, From: from, To: to}, nil)
}

func (c *Client) Copy(ctx context.Context, from, to string) error {
	return c.do(ctx, &Request{Type: TypeCopy, From: from, To: to}, nil)
}

func (c *Client) DumpState(ctx context.Context) ([]byte, error) {
	var data []byte
	if err := c.do(ctx, &Request{Type: TypeDumpState}, &data); err != nil {
		return nil, err
	}
	return data, nil
}
