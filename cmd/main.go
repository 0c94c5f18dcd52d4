package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	"github.com/brettbedarf/webvfs"
	"github.com/brettbedarf/webvfs/adapters"
	"github.com/brettbedarf/webvfs/config"
	"github.com/brettbedarf/webvfs/fusefs"
	"github.com/brettbedarf/webvfs/internal/util"
	"github.com/brettbedarf/webvfs/persist"
	"github.com/brettbedarf/webvfs/requests"
	"github.com/brettbedarf/webvfs/rpc"
	"github.com/brettbedarf/webvfs/shell"
)

func main() {
	// Parse command line arguments
	var (
		configPath string
		verbose    int
		backend    string
		storePath  string
		noSeed     bool
		listen     string
		connect    string
		mnt        string
		umount     bool
		nodesDef   string
	)
	flag.StringVar(&configPath, "config", "", "Path to a YAML or JSON config file")
	flag.StringVar(&configPath, "c", "", "--config (shorthand)")
	flag.IntVar(&verbose, "verbose", config.InfoVerbose, "Log verbosity level between 1 (error) and 5 (trace). Default is 3 (info).")
	flag.IntVar(&verbose, "v", config.InfoVerbose, "--verbose (shorthand)")
	flag.StringVar(&nodesDef, "nodes", "", "Path to a JSON node definitions file applied after boot")
	flag.StringVar(&nodesDef, "n", "", "--nodes (shorthand)")
	flag.StringVar(&backend, "store", "", "Store backend: memory, leveldb or disk")
	flag.StringVar(&storePath, "store-path", "", "Directory of the leveldb or disk store")
	flag.BoolVar(&noSeed, "no-seed", false, "Start from an empty tree on first boot")
	flag.StringVar(&listen, "listen", "", "Serve the RPC protocol on this TCP address instead of starting a shell")
	flag.StringVar(&connect, "connect", "", "Run the shell against a server listening on this TCP address")
	flag.StringVar(&mnt, "mount", "", "Mount the filesystem through FUSE at this directory")
	flag.BoolVar(&umount, "umount", false,
		"Unmount the fs first if needed before mounting again. Useful for debuggers that don't exit properly.")
	flag.BoolVar(&umount, "u", false, "--umount (shorthand)")
	flag.Parse()

	cfg := config.NewDefaultConfig()
	if configPath != "" {
		fileCfg, err := config.NewConfigFromFile(configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to load config %s: %v\n", configPath, err)
			os.Exit(2)
		}
		cfg = fileCfg
	}
	// flags given explicitly win over the config file
	override := &config.ConfigOverride{}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "verbose", "v":
			override.LogLvl = &verbose
		case "store":
			override.StoreBackend = &backend
		case "store-path":
			override.StorePath = &storePath
		case "no-seed":
			override.Seed = util.Pointer(!noSeed)
		}
	})
	cfg.Merge(override)

	// Initialize logger
	util.InitializeLogger(cfg.LogLvl, os.Stderr)
	logger := util.GetLogger("main")
	logger.Debug().
		Str("store", cfg.StoreBackend).
		Str("storePath", cfg.StorePath).
		Str("stateKey", cfg.StateKey).
		Bool("seed", cfg.Seed).
		Msg("WebVFS initializing")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	var err error
	switch {
	case connect != "":
		err = runRemoteShell(ctx, cfg, connect, nodesDef)
	case listen != "":
		err = withKernel(ctx, cfg, nodesDef, func(k *webvfs.Kernel) error { return serveTCP(ctx, k, listen) })
	case mnt != "":
		err = withKernel(ctx, cfg, nodesDef, func(k *webvfs.Kernel) error { return serveMount(ctx, k, cfg, mnt, umount) })
	default:
		err = runLocalShell(ctx, cfg, nodesDef)
	}
	if err != nil {
		logger.Error().Err(err).Msg("Exiting with error")
		os.Exit(1)
	}
}

// withKernel opens and boots the kernel, runs fn and writes a final
// snapshot on the way out
func withKernel(ctx context.Context, cfg *config.Config, nodesDef string, fn func(*webvfs.Kernel) error) error {
	logger := util.GetLogger("main")
	k, err := webvfs.New(cfg)
	if err != nil {
		return err
	}
	if err := k.Boot(ctx); err != nil {
		if !persist.IsWarning(err) {
			k.Close(context.WithoutCancel(ctx)) // nolint:errcheck
			return fmt.Errorf("boot: %w", err)
		}
		logger.Warn().Err(err).Msg("Booted with warning")
	}
	defer func() {
		if err := k.Close(context.WithoutCancel(ctx)); err != nil {
			logger.Error().Err(err).Msg("Failed to close filesystem")
		}
	}()
	importNodes(ctx, k, nodesDef)
	return fn(k)
}

func serveTCP(ctx context.Context, k *webvfs.Kernel, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	util.GetLogger("main").Info().Str("addr", ln.Addr().String()).Msg("Listening for RPC clients")
	return rpc.NewServer(k).ServeListener(ctx, ln)
}

func serveMount(ctx context.Context, k *webvfs.Kernel, cfg *config.Config, mnt string, umount bool) error {
	logger := util.GetLogger("main")
	// Try unmount if requested
	if umount { // send cli command
		cmd := exec.Command("fusermount", "-u", mnt)
		// we ignore error here if not already mounted
		cmd.Run() // nolint:errcheck
	}

	srv, err := fusefs.Mount(k, mnt, cfg)
	if err != nil {
		return fmt.Errorf("mount %s: %w", mnt, err)
	}
	if err := srv.Serve(); err != nil {
		return fmt.Errorf("serve %s: %w", mnt, err)
	}
	logger.Info().Str("mountpoint", mnt).Msg("Filesystem mounted successfully")

	unmounted := make(chan struct{})
	go func() {
		srv.Wait()
		close(unmounted)
	}()

	select {
	case <-ctx.Done():
		logger.Info().Msg("Received signal, unmounting filesystem")
		if err := srv.Unmount(); err != nil {
			return fmt.Errorf("unmount %s: %w", mnt, err)
		}
		<-unmounted
	case <-unmounted:
	}
	logger.Info().Msg("Filesystem unmounted successfully")
	return nil
}

// runLocalShell boots the kernel behind an in-process pipe so the shell
// talks the same protocol a remote client does
func runLocalShell(ctx context.Context, cfg *config.Config, nodesDef string) error {
	k, err := webvfs.New(cfg)
	if err != nil {
		return err
	}

	serverConn, clientConn := rpc.Pipe()
	serveCtx, cancel := context.WithCancel(ctx)
	served := make(chan error, 1)
	go func() { served <- rpc.NewServer(k).Serve(serveCtx, serverConn, k.Boot) }()

	client := rpc.NewClient(clientConn, cfg.RequestTimeout)
	shellErr := runShell(ctx, cfg, client, nodesDef)

	client.Close()
	cancel()
	serveErr := <-served
	if err := k.Close(context.WithoutCancel(ctx)); err != nil {
		util.GetLogger("main").Error().Err(err).Msg("Failed to close filesystem")
	}
	if shellErr != nil {
		return shellErr
	}
	return serveErr
}

func runRemoteShell(ctx context.Context, cfg *config.Config, addr, nodesDef string) error {
	var d net.Dialer
	nc, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	client := rpc.NewClient(rpc.NewStreamConn(nc), cfg.RequestTimeout)
	defer client.Close()
	return runShell(ctx, cfg, client, nodesDef)
}

func runShell(ctx context.Context, cfg *config.Config, client *rpc.Client, nodesDef string) error {
	if err := client.WaitReady(ctx); err != nil {
		return fmt.Errorf("filesystem not ready: %w", err)
	}
	importNodes(ctx, client, nodesDef)

	cwd := "/"
	if st, err := client.Stat(ctx, persist.HomeDir); err == nil && st.IsDir {
		cwd = persist.HomeDir
	}
	if motd, err := client.ReadFile(ctx, persist.MotdPath); err == nil {
		fmt.Fprint(os.Stdout, string(motd))
	}
	return shell.New(client, cfg.Prompt, cwd).Run(ctx, os.Stdin, os.Stdout, os.Stderr)
}

// importNodes applies a node definitions file. Failures are logged and the
// valid nodes are still added.
func importNodes(ctx context.Context, op webvfs.Operator, nodesDef string) {
	logger := util.GetLogger("main")
	if nodesDef == "" {
		logger.Debug().Msg("No nodes file provided")
		return
	}
	defData, err := os.ReadFile(nodesDef)
	if err != nil {
		logger.Error().Err(err).Str("nodes", nodesDef).Msg("Failed to read nodes file")
		return
	}
	logger.Debug().Str("nodes", nodesDef).Msg("Nodes file loaded successfully")

	reg := adapters.NewRegistry()
	adapters.RegisterBuiltins(reg)
	reqs, err := requests.Parse(defData, reg)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to unmarshal some node definitions")
		if reqs == nil {
			return
		}
	}
	logger.Debug().
		Int("files", len(reqs.Files)).
		Int("directories", len(reqs.Dirs)).
		Msg("Successfully loaded node requests")

	if _, err := requests.Apply(ctx, op, reqs); err != nil {
		logger.Error().Err(err).Msg("Failed to add some nodes")
	}
}
