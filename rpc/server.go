package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"

	"github.com/brettbedarf/webvfs"
	"github.com/brettbedarf/webvfs/filesystem"
	"github.com/brettbedarf/webvfs/internal/util"
	"github.com/brettbedarf/webvfs/persist"
)

// Server answers requests from a single connection with an Operator.
// Requests are handled one at a time in arrival order.
type Server struct {
	op     webvfs.Operator
	logger util.Logger
}

func NewServer(op webvfs.Operator) *Server {
	return &Server{op: op, logger: util.GetLogger("rpc.server")}
}

// Serve runs boot (if non-nil), announces the outcome on conn and then
// answers requests until conn is closed or ctx is done. A boot failure is
// sent as a fatal frame and returned; a boot warning is logged and the
// server still reports ready.
func (s *Server) Serve(ctx context.Context, conn Conn, boot func(context.Context) error) error {
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	if boot != nil {
		if err := boot(ctx); err != nil {
			if !persist.IsWarning(err) {
				s.logger.Error().Err(err).Msg("Boot failed")
				if werr := s.send(conn, &Response{Type: ControlFatal, Error: errorBody(err)}); werr != nil {
					s.logger.Debug().Err(werr).Msg("Failed to send fatal frame")
				}
				return err
			}
			s.logger.Warn().Err(err).Msg("Booted with warning")
		}
	}
	if err := s.send(conn, &Response{Type: ControlReady, OK: true}); err != nil {
		return fmt.Errorf("send ready: %w", err)
	}
	s.logger.Debug().Msg("Ready")

	for {
		frame, err := conn.ReadFrame()
		if err != nil {
			if isClosed(err) || ctx.Err() != nil {
				s.logger.Debug().Msg("Connection closed")
				return nil
			}
			return fmt.Errorf("read frame: %w", err)
		}

		var req Request
		if err := json.Unmarshal(frame, &req); err != nil {
			s.logger.Warn().Err(err).Int("bytes", len(frame)).Msg("Malformed request")
			resp := &Response{Error: &ErrorBody{Message: fmt.Sprintf("malformed request: %v", err)}}
			if err := s.send(conn, resp); err != nil {
				return err
			}
			continue
		}

		resp := s.Handle(ctx, &req)
		if err := s.send(conn, resp); err != nil {
			if isClosed(err) {
				return nil
			}
			return fmt.Errorf("send response %s: %w", req.ID, err)
		}
	}
}

// ServeListener accepts connections and serves each one on its own
// goroutine until ctx is done. The operator must already be booted.
func (s *Server) ServeListener(ctx context.Context, ln net.Listener) error {
	stop := context.AfterFunc(ctx, func() { ln.Close() })
	defer stop()

	for {
		nc, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}
		s.logger.Info().Str("remote", nc.RemoteAddr().String()).Msg("Client connected")
		go func() {
			conn := NewStreamConn(nc)
			defer conn.Close()
			if err := s.Serve(ctx, conn, nil); err != nil {
				s.logger.Error().Err(err).Str("remote", nc.RemoteAddr().String()).Msg("Connection failed")
			}
		}()
	}
}

// Handle executes a single request and builds its response
func (s *Server) Handle(ctx context.Context, req *Request) *Response {
	result, err := s.dispatch(ctx, req)

	resp := &Response{ID: req.ID, OK: true}
	switch {
	case err == nil:
	case persist.IsWarning(err):
		var pe *persist.PersistError
		errors.As(err, &pe)
		resp.Warning = pe.Err.Error()
	default:
		s.logger.Debug().Err(err).Str("id", req.ID).Str("type", string(req.Type)).Msg("Request failed")
		return &Response{ID: req.ID, Error: errorBody(err)}
	}

	raw, err := encodeResult(result)
	if err != nil {
		return &Response{ID: req.ID, Error: errorBody(err)}
	}
	resp.Result = raw
	return resp
}

func (s *Server) dispatch(ctx context.Context, req *Request) (any, error) {
	switch req.Type {
	case TypeMkdir:
		return nil, s.op.Mkdir(ctx, req.Path)
	case TypeReadDir:
		names, err := s.op.ReadDir(ctx, req.Path)
		if err != nil {
			return nil, err
		}
		return names, nil
	case TypeReadFile:
		data, err := s.op.ReadFile(ctx, req.Path)
		if err != nil {
			return nil, err
		}
		return data, nil
	case TypeWriteFile:
		return nil, s.op.WriteFile(ctx, req.Path, req.Data)
	case TypeStat:
		st, err := s.op.Stat(ctx, req.Path)
		if err != nil {
			return nil, err
		}
		return st, nil
	case TypeRemove:
		return nil, s.op.Remove(ctx, req.Path)
	case TypeRemoveDir:
		return nil, s.op.RemoveDir(ctx, req.Path)
	case TypeMove:
		return nil, s.op.Move(ctx, req.From, req.To)
	case TypeCopy:
		return nil, s.op.Copy(ctx, req.From, req.To)
	case TypeDumpState:
		data, err := s.op.DumpState(ctx)
		if err != nil {
			return nil, err
		}
		return data, nil
	default:
		return nil, fmt.Errorf("unknown request type %q", req.Type)
	}
}

func (s *Server) send(conn Conn, resp *Response) error {
	b, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("encode response: %w", err)
	}
	return conn.WriteFrame(b)
}

func errorBody(err error) *ErrorBody {
	body := &ErrorBody{Message: err.Error()}
	if kind, ok := filesystem.KindOf(err); ok {
		body.Kind = kind.String()
	} else if errors.Is(err, persist.ErrNotBooted) {
		body.Kind = KindNotBooted
	}
	return body
}
