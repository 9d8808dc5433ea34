package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/crossfade/internal/server"
	"github.com/desertthunder/crossfade/internal/shared"
)

// Serve runs the HTTP API until SIGINT or SIGTERM.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}

	serverConfig := config.Server
	if addr := cmd.String("addr"); addr != "" {
		host, portStr, err := net.SplitHostPort(addr)
		if err != nil {
			return fmt.Errorf("%w: addr: %w", shared.ErrInvalidArgument, err)
		}
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return fmt.Errorf("%w: addr port %q", shared.ErrInvalidArgument, portStr)
		}
		serverConfig.Host, serverConfig.Port = host, port
	}

	engine, err := r.openEngine(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.New(serverConfig, server.NewRouter(engine, r.logger), r.logger)
	return srv.Run(ctx)
}
