// protohackers runs the Smoke Test, Prime Time and Means to an End servers.
// Usage: go run ./cmd/protohackers --config configs/protohackers.example.yaml
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rickgao/protohackers/internal/archive"
	"github.com/rickgao/protohackers/internal/config"
	"github.com/rickgao/protohackers/internal/database"
	"github.com/rickgao/protohackers/internal/echo"
	"github.com/rickgao/protohackers/internal/means"
	"github.com/rickgao/protohackers/internal/monitor"
	"github.com/rickgao/protohackers/internal/primetime"
	"github.com/rickgao/protohackers/internal/server"
	"github.com/rickgao/protohackers/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/protohackers.example.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err, "config", *configPath)
		os.Exit(1)
	}

	// Set up structured logging
	logger := newLogger(cfg.Logging, os.Stdout)
	slog.SetDefault(logger)

	logger.Info("starting protohackers",
		"version", version.Version,
		"commit", version.Commit,
		"go", version.GoVersion(),
		"instance_id", cfg.Instance.ID,
		"config", *configPath,
	)

	if err := run(cfg, logger); err != nil {
		logger.Error("protohackers failed", "error", err)
		os.Exit(1)
	}

	logger.Info("protohackers stopped")
}

func run(cfg *config.Config, logger *slog.Logger) error {
	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("received shutdown signal", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	hub := monitor.NewHub()
	defer hub.Close()

	// Optional traffic archive
	var writer *archive.Writer
	if cfg.Archive.Enabled {
		logger.Info("connecting to archive database",
			"host", cfg.Archive.Database.Host,
			"port", cfg.Archive.Database.Port,
			"database", cfg.Archive.Database.Name,
		)

		pool, err := database.Connect(ctx, cfg.Archive.Database)
		if err != nil {
			return fmt.Errorf("connect archive database: %w", err)
		}
		defer pool.Close()

		if err := archive.EnsureSchema(ctx, pool); err != nil {
			return err
		}

		writer = archive.NewWriter(archive.WriterConfig{
			BatchSize:     cfg.Archive.BatchSize,
			FlushInterval: cfg.Archive.FlushInterval,
			BufferSize:    cfg.Archive.BufferSize,
		}, pool, logger.With("component", "archive"))
		if err := writer.Start(ctx); err != nil {
			return fmt.Errorf("start archive writer: %w", err)
		}
		defer func() {
			stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer stopCancel()
			writer.Stop(stopCtx)
		}()
	}

	servers := buildServers(cfg, hub, writer, logger)
	for i, s := range servers {
		if err := s.Start(ctx); err != nil {
			for _, started := range servers[:i] {
				started.Stop(ctx)
			}
			return fmt.Errorf("start %s server: %w", s.Name(), err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	var healthServer *http.Server
	if cfg.Health.IsEnabled() {
		monitored := make([]monitor.Server, 0, len(servers))
		for _, s := range servers {
			monitored = append(monitored, s)
		}
		var archiveStatus monitor.Archive
		if writer != nil {
			archiveStatus = writer
		}

		healthServer = &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Health.Port),
			Handler:           monitor.NewHandler(hub, monitored, archiveStatus, logger.With("component", "monitor")),
			ReadHeaderTimeout: 10 * time.Second,
		}

		g.Go(func() error {
			logger.Info("starting health server", "port", cfg.Health.Port)
			if err := healthServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("health server: %w", err)
			}
			return nil
		})
	}

	logger.Info("protohackers running", "servers", len(servers))

	// Wait for shutdown, then stop everything
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down...")

		stopCtx, stopCancel := context.WithTimeout(context.Background(), cfg.Shutdown.GracePeriod+5*time.Second)
		defer stopCancel()

		var stops errgroup.Group
		for _, s := range servers {
			stops.Go(func() error {
				return s.Stop(stopCtx)
			})
		}
		stopErr := stops.Wait()

		// Watchers are told to go away before the HTTP server stops
		hub.Close()
		if healthServer != nil {
			if err := healthServer.Shutdown(stopCtx); err != nil {
				logger.Warn("health server shutdown failed", "error", err)
			}
		}
		return stopErr
	})

	return g.Wait()
}

// buildServers creates a listener for every enabled protocol.
func buildServers(cfg *config.Config, hub *monitor.Hub, writer *archive.Writer, logger *slog.Logger) []*server.Server {
	type entry struct {
		name    string
		address string
		enabled bool
		handler server.Handler
	}

	var meansOpts []means.Option
	if writer != nil {
		meansOpts = append(meansOpts, means.WithRecorder(writer))
	}

	entries := []entry{
		{
			name:    "smoke",
			address: cfg.Servers.Smoke.Address,
			enabled: cfg.Servers.Smoke.IsEnabled(),
			handler: echo.NewHandler(logger),
		},
		{
			name:    "prime",
			address: cfg.Servers.Prime.Address,
			enabled: cfg.Servers.Prime.IsEnabled(),
			handler: primetime.NewHandler(cfg.Servers.Prime.MaxLineBytes, logger),
		},
		{
			name:    "means",
			address: cfg.Servers.Means.Address,
			enabled: cfg.Servers.Means.IsEnabled(),
			handler: means.NewHandler(logger, meansOpts...),
		},
	}

	var servers []*server.Server
	for _, e := range entries {
		if !e.enabled {
			logger.Info("server disabled", "server", e.name)
			continue
		}
		servers = append(servers, server.New(server.Config{
			Name:        e.name,
			Address:     e.address,
			GracePeriod: cfg.Shutdown.GracePeriod,
		}, e.handler, logger, server.WithPublisher(hub)))
	}
	return servers
}
