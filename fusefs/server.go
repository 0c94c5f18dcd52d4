package fusefs

import (
	"github.com/brettbedarf/webvfs"
	"github.com/brettbedarf/webvfs/config"
	"github.com/brettbedarf/webvfs/internal/util"
	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
)

// Server wraps the underlying fuse.Server.
type Server struct {
	server *fuse.Server
}

// Options translates cfg into go-fuse options
func Options(cfg *config.Config) *fs.Options {
	attr := cfg.AttrTimeoutDuration()
	entry := cfg.EntryTimeoutDuration()

	debugLvl := util.DebugLevel
	if cfg.LogLvl == util.TraceLevel {
		debugLvl = util.TraceLevel
	}
	return &fs.Options{
		MountOptions: fuse.MountOptions{
			FsName:   cfg.FsName,
			Name:     cfg.Name,
			Debug:    cfg.Debug || cfg.LogLvl == util.TraceLevel,
			MaxWrite: cfg.MaxWrite,
			Logger:   util.NewLogLogger("FuseServer", debugLvl),
		},
		AttrTimeout:  &attr,
		EntryTimeout: &entry,
		Logger:       util.NewLogLogger("FuseNodes", util.WarnLevel),
	}
}

// Mount prepares op to be served at mountPoint according to cfg.
// Returns a Server you can Serve() and Unmount().
func Mount(op webvfs.Operator, mountPoint string, cfg *config.Config) (*Server, error) {
	if cfg == nil {
		cfg = config.NewDefaultConfig()
	}
	opts := Options(cfg)
	raw := fs.NewNodeFS(NewRoot(op), opts)
	srv, err := fuse.NewServer(raw, mountPoint, &opts.MountOptions)
	if err != nil {
		return nil, err
	}
	return &Server{server: srv}, nil
}

// Serve starts serving and waits until the filesystem is mounted.
func (s *Server) Serve() error {
	go s.server.Serve()
	return s.server.WaitMount()
}

// Wait blocks until the filesystem is unmounted
func (s *Server) Wait() {
	s.server.Wait()
}

// Unmount cleanly unmounts the filesystem.
func (s *Server) Unmount() error {
	return s.server.Unmount()
}
