package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/subwave-fm/subwave/internal/proxy"
	"github.com/subwave-fm/subwave/internal/server"
	"github.com/subwave-fm/subwave/internal/shared"
	"github.com/urfave/cli/v3"
)

func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the caching feed proxy",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
			},
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to listen on (overrides config)",
			},
		},
		Action: r.Serve,
	}
}

// Serve runs the proxy server until the context ends.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	config := r.loadConfig(cmd)

	db, err := shared.NewDatabase(config.Cache.Path)
	if err != nil {
		return fmt.Errorf("failed to open cache database: %w", err)
	}
	defer db.Close()

	cache, err := proxy.NewCache(db)
	if err != nil {
		return fmt.Errorf("failed to initialize cache: %w", err)
	}

	upstream := proxy.NewUpstream(config.Upstream, r.logger)
	handler := proxy.NewHandler(upstream, cache, config.Cache.Freshness(), r.logger)

	router := server.NewBasicRouter()
	router.Use(server.Logging(r.logger), server.Recovery(r.logger))
	router.Handler(handler)

	port := config.Server.Port
	if cmd.Int("port") > 0 {
		port = int(cmd.Int("port"))
	}
	addr := fmt.Sprintf("%s:%d", config.Server.Host, port)

	srv := &http.Server{Addr: addr, Handler: router}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	r.logger.Info("proxy listening", "addr", addr, "upstream", config.Upstream.BaseURL)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}
