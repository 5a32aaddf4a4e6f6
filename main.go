// fgp-neon is a local daemon exposing Neon serverless Postgres
// operations over a Unix socket, plus an MCP bridge over stdio.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/fgp-dev/fgp-neon/pkg/config"
	"github.com/fgp-dev/fgp-neon/pkg/fgp"
	"github.com/fgp-dev/fgp-neon/pkg/logging"
	"github.com/fgp-dev/fgp-neon/pkg/mcp"
	"github.com/fgp-dev/fgp-neon/pkg/neon"
	"github.com/fgp-dev/fgp-neon/pkg/service"
)

// Version is set at build time via ldflags
var Version = "dev"

const usage = `fgp-neon - FGP daemon for Neon serverless Postgres operations

Usage:
  fgp-neon start [--socket PATH] [--foreground]   Start the daemon
  fgp-neon stop [--socket PATH]                   Stop the running daemon
  fgp-neon status [--socket PATH]                 Check daemon status
  fgp-neon mcp                                    Serve MCP over stdio
  fgp-neon version                                Print the version
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "start":
		err = cmdStart(os.Args[2:])
	case "stop":
		err = cmdStop(os.Args[2:])
	case "status":
		err = cmdStatus(os.Args[2:])
	case "mcp":
		err = cmdMCP(os.Args[2:])
	case "version":
		fmt.Printf("fgp-neon %s\n", Version)
	case "help", "-h", "--help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", os.Args[1], usage)
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func socketFlag(fs *flag.FlagSet) *string {
	return fs.String("socket", "", "socket path (default ~/.fgp/services/neon/daemon.sock)")
}

func cmdStart(args []string) error {
	fs := flag.NewFlagSet("start", flag.ExitOnError)
	socket := socketFlag(fs)
	foreground := fs.Bool("foreground", false, "run in the foreground instead of daemonizing")
	if err := fs.Parse(args); err != nil {
		return err
	}

	// Resolve configuration and credentials before any detach so a
	// broken environment fails in the invoking terminal.
	cfg, err := config.Load(Version)
	if err != nil {
		return err
	}
	if *socket != "" {
		cfg.SocketPath = config.ExpandHome(*socket)
	}

	if fgp.IsDaemonChild() {
		return serveDaemon(cfg, true)
	}

	fmt.Println("Starting fgp-neon daemon...")
	fmt.Printf("Socket: %s\n", cfg.SocketPath)
	fmt.Printf("Org ID: %s\n", cfg.OrgID)

	if *foreground {
		return serveDaemon(cfg, false)
	}

	pid, err := fgp.SpawnDetached(cfg.SocketPath,
		[]string{"start", "--socket", cfg.SocketPath, "--foreground"})
	if err != nil {
		return fmt.Errorf("daemonizing: %w", err)
	}
	fmt.Printf("Daemon started (PID: %d)\n", pid)
	return nil
}

// serveDaemon wires the client, service and server together and blocks
// until shutdown. The detached child records its PID first so stop can
// find it even when the socket stops answering.
func serveDaemon(cfg *config.Config, asChild bool) error {
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	client, err := neon.NewClient(&neon.Config{
		APIKey:       cfg.APIKey,
		OrgID:        cfg.OrgID,
		BaseURL:      cfg.BaseURL,
		Timeout:      cfg.HTTPTimeout(),
		MaxIdleConns: cfg.MaxIdleConns,
	}, logger)
	if err != nil {
		return err
	}

	svc := service.New(client, cfg.Version, logger)

	var opts []fgp.ServerOption
	if asChild {
		pidFile := fgp.PIDFilePath(cfg.SocketPath)
		if err := fgp.WritePID(pidFile, os.Getpid()); err != nil {
			return fmt.Errorf("writing PID file: %w", err)
		}
		opts = append(opts, fgp.WithPIDFile(pidFile))
	}

	srv, err := fgp.NewServer(svc, cfg.SocketPath, logger, opts...)
	if err != nil {
		return err
	}
	return srv.Serve(context.Background())
}

func cmdStop(args []string) error {
	fs := flag.NewFlagSet("stop", flag.ExitOnError)
	socket := socketFlag(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	socketPath, err := config.ResolveSocketPath(*socket)
	if err != nil {
		return err
	}

	// Ask the daemon to stop itself first.
	if _, statErr := os.Stat(socketPath); statErr == nil {
		if client, dialErr := fgp.Dial(socketPath); dialErr == nil {
			resp, callErr := client.Stop()
			client.Close()
			if callErr == nil && resp.OK {
				fmt.Println("Daemon stopped.")
				return nil
			}
		}
	}

	// Socket is gone or unresponsive; fall back to the PID file.
	pid, err := fgp.ReadPID(fgp.PIDFilePath(socketPath))
	if err != nil {
		return fmt.Errorf("reading PID file (daemon may not be running): %w", err)
	}

	if !fgp.PIDMatches(pid, "fgp-neon") {
		return fmt.Errorf("refusing to stop PID %d: unexpected process", pid)
	}

	fmt.Printf("Stopping fgp-neon daemon (PID: %d)...\n", pid)
	if err := syscall.Kill(pid, syscall.SIGTERM); err != nil {
		return fmt.Errorf("signaling PID %d: %w", pid, err)
	}
	time.Sleep(500 * time.Millisecond)
	fgp.CleanupSocket(socketPath)

	fmt.Println("Daemon stopped.")
	return nil
}

func cmdStatus(args []string) error {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	socket := socketFlag(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	socketPath, err := config.ResolveSocketPath(*socket)
	if err != nil {
		return err
	}

	if _, err := os.Stat(socketPath); err != nil {
		fmt.Println("Status: NOT RUNNING")
		fmt.Printf("Socket %s does not exist\n", socketPath)
		return nil
	}

	client, err := fgp.Dial(socketPath)
	if err != nil {
		fmt.Println("Status: NOT RESPONDING")
		fmt.Printf("Socket exists but connection failed: %v\n", err)
		return nil
	}
	defer client.Close()

	raw, err := client.CallRaw("status", "health", map[string]any{})
	if err != nil {
		fmt.Println("Status: NOT RESPONDING")
		fmt.Printf("Socket exists but health check failed: %v\n", err)
		return nil
	}

	fmt.Println("Status: RUNNING")
	fmt.Printf("Socket: %s\n", socketPath)
	fmt.Printf("Health: %s\n", raw)
	return nil
}

func cmdMCP(args []string) error {
	fs := flag.NewFlagSet("mcp", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(Version)
	if err != nil {
		return err
	}

	// stdout carries the MCP protocol; logs go to stderr.
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	client, err := neon.NewClient(&neon.Config{
		APIKey:       cfg.APIKey,
		OrgID:        cfg.OrgID,
		BaseURL:      cfg.BaseURL,
		Timeout:      cfg.HTTPTimeout(),
		MaxIdleConns: cfg.MaxIdleConns,
	}, logger)
	if err != nil {
		return err
	}

	svc := service.New(client, cfg.Version, logger)
	if err := svc.OnStart(context.Background()); err != nil {
		return err
	}
	return mcp.NewServer(svc, logger).ServeStdio()
}
