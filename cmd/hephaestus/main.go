// Command hephaestus serves the scene tools over stdio, HTTP or WebSocket,
// or runs as a stdio daemon proxying tool calls to a remote provider.
//
// Usage:
//
//	hephaestus [-config file] [-version] [stdio|http|serve|daemon]
//
// Logs go to stderr; in stdio modes stdout carries only responses.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/felixgeelhaar/hephaestus"
	"github.com/felixgeelhaar/hephaestus/client"
	"github.com/felixgeelhaar/hephaestus/config"
	"github.com/felixgeelhaar/hephaestus/logging"
	"github.com/felixgeelhaar/hephaestus/middleware"
	"github.com/felixgeelhaar/hephaestus/server"
	"github.com/felixgeelhaar/hephaestus/tools"
	"github.com/felixgeelhaar/hephaestus/transport"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "hephaestus: %v\n", err)
		stop()
		os.Exit(1)
	}
}

// app holds what every sub-command needs.
type app struct {
	cfg    config.Config
	logger middleware.Logger
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("hephaestus", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "path to a YAML config file (default $"+config.EnvConfigFile+")")
	showVersion := fs.Bool("version", false, "print the version and exit")
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "usage: hephaestus [flags] [stdio|http|serve|daemon]")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	if *showVersion {
		info := server.DefaultInfo()
		fmt.Fprintf(stdout, "%s %s\n", info.Name, info.Version)
		return nil
	}

	mode := "stdio"
	switch fs.NArg() {
	case 0:
	case 1:
		mode = fs.Arg(0)
	default:
		fs.Usage()
		return fmt.Errorf("unexpected arguments: %v", fs.Args()[1:])
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	a := &app{
		cfg:    cfg,
		logger: logging.Adapt(logging.New(stderr, cfg.Log.Level, cfg.Log.Format)),
		stdin:  stdin,
		stdout: stdout,
		stderr: stderr,
	}

	switch mode {
	case "stdio":
		err = a.runStdio(ctx)
	case "http":
		err = a.runHTTP(ctx)
	case "serve":
		err = a.runServe(ctx)
	case "daemon":
		err = a.runDaemon(ctx)
	default:
		fs.Usage()
		return fmt.Errorf("unknown command %q", mode)
	}

	if errors.Is(err, context.Canceled) {
		a.logger.Info("shutdown complete", middleware.F("mode", mode))
		return nil
	}
	return err
}

// handlerOptions returns the protocol options selected by configuration.
func (a *app) handlerOptions() []server.Option {
	return []server.Option{
		server.WithIDPolicy(a.cfg.IDPolicy()),
		server.WithLegacyToolName(a.cfg.Protocol.LegacyToolName),
	}
}

// wrap applies the production middleware stack.
func (a *app) wrap(h transport.Handler) transport.Handler {
	stack := middleware.Stack(a.logger, middleware.StackConfig{
		Timeout:   a.cfg.RequestTimeout,
		RateLimit: a.cfg.Limits.Rate,
		RateBurst: a.cfg.Limits.Burst,
		OTel:      []middleware.OTelOption{middleware.WithOTelServiceName(server.DefaultName)},
		IDPolicy:  a.cfg.IDPolicy(),
	})
	return hephaestus.Wrap(h, hephaestus.WithMiddleware(stack...))
}

func (a *app) newStdio() *transport.Stdio {
	return transport.NewStdio(
		transport.WithStdin(a.stdin),
		transport.WithStdout(a.stdout),
		transport.WithStdioLogger(a.logger),
		transport.WithStdioMaxMessageBytes(int(a.cfg.Limits.MaxMessageBytes)),
	)
}

func (a *app) newHTTP() *transport.HTTP {
	return transport.NewHTTP(a.cfg.HTTP.Addr,
		transport.WithReadTimeout(a.cfg.HTTP.ReadTimeout),
		transport.WithWriteTimeout(a.cfg.HTTP.WriteTimeout),
		transport.WithShutdownTimeout(a.cfg.HTTP.ShutdownTimeout),
		transport.WithShutdownDrainDelay(a.cfg.HTTP.DrainDelay),
		transport.WithHTTPMaxMessageBytes(a.cfg.Limits.MaxMessageBytes),
		transport.WithCORSOrigins(a.cfg.HTTP.CORSOrigins...),
		transport.WithHTTPLogger(a.logger),
	)
}

func (a *app) newWebSocket() *transport.WebSocket {
	return transport.NewWebSocket(a.cfg.WebSocket.Addr,
		transport.WithWebSocketMaxMessageBytes(a.cfg.Limits.MaxMessageBytes),
		transport.WithWebSocketAllowedOrigins(a.cfg.HTTP.CORSOrigins...),
		transport.WithWebSocketWriteTimeout(a.cfg.HTTP.WriteTimeout),
		transport.WithWebSocketLogger(a.logger),
	)
}

func (a *app) sceneHandler(scene tools.Scene) transport.Handler {
	return a.wrap(hephaestus.NewSceneHandler(scene, a.handlerOptions()...))
}

func (a *app) runStdio(ctx context.Context) error {
	a.logger.Info("serving scene tools", middleware.F("transport", "stdio"))
	return a.newStdio().Serve(ctx, a.sceneHandler(nil))
}

func (a *app) runHTTP(ctx context.Context) error {
	return a.newHTTP().Serve(ctx, a.sceneHandler(nil))
}

// runServe runs HTTP and, when configured, WebSocket against one scene.
// The first listener to fail stops the other.
func (a *app) runServe(ctx context.Context) error {
	h := a.sceneHandler(tools.NewMemoryScene())

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.newHTTP().Serve(ctx, h)
	})
	if a.cfg.WebSocket.Addr != "" {
		g.Go(func() error {
			return a.newWebSocket().Serve(ctx, h)
		})
	}
	return g.Wait()
}

// runDaemon answers on stdio, listing the static catalog and forwarding
// tool calls to the configured provider.
func (a *app) runDaemon(ctx context.Context) error {
	remote, err := a.providerTransport()
	if err != nil {
		return err
	}
	c := client.New(remote, client.WithTimeout(a.cfg.Provider.Timeout))
	defer func() {
		if err := c.Close(); err != nil {
			a.logger.Warn("closing provider", middleware.F("error", err.Error()))
		}
	}()

	opts := append([]server.Option{
		server.WithToolExecutor(c),
		server.WithToolLister(tools.CatalogLister()),
	}, a.handlerOptions()...)

	return a.newStdio().Serve(ctx, a.wrap(server.New(server.DefaultInfo(), opts...)))
}

func (a *app) providerTransport() (client.Transport, error) {
	if name, args, ok := a.cfg.ProviderCommand(); ok {
		a.logger.Info("starting provider", middleware.F("command", a.cfg.Provider.Command))
		tr, err := client.NewStdioTransport(name, args, client.WithProviderStderr(a.stderr))
		if err != nil {
			return nil, fmt.Errorf("provider: %w", err)
		}
		return tr, nil
	}

	a.logger.Info("proxying to provider", middleware.F("url", a.cfg.Provider.URL))
	return client.NewHTTPTransport(a.cfg.Provider.URL,
		client.WithHTTPTimeout(a.cfg.Provider.Timeout),
		client.WithResponseLimit(a.cfg.Limits.MaxMessageBytes),
	), nil
}
