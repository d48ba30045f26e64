package main

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ekisa-team/dlrshim/internal/config"
	"github.com/ekisa-team/dlrshim/internal/env"
	"github.com/ekisa-team/dlrshim/internal/logger"
	"github.com/ekisa-team/dlrshim/internal/model"
	grpcserver "github.com/ekisa-team/dlrshim/internal/server/grpc"
	httpserver "github.com/ekisa-team/dlrshim/internal/server/http"
	"github.com/ekisa-team/dlrshim/internal/service"
)

func newServeCmd() *cobra.Command {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Load models from config and serve them over HTTP and gRPC",
		Args:  cobra.NoArgs,
		RunE:  serveHandler,
	}
	serveCmd.Flags().String("config", filepath.Join(config.DefaultConfigPath(), "config.yaml"), "Path to config file")
	serveCmd.Flags().String("schema", "", "Path to schema file (bundled schema when empty)")
	serveCmd.Flags().String("log-file", "", "Also write JSON logs to this rotated file")
	return serveCmd
}

func serveHandler(cmd *cobra.Command, _ []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	schemaPath, _ := cmd.Flags().GetString("schema")
	logFile, _ := cmd.Flags().GetString("log-file")

	opts := []logger.Option{logger.WithLevel(logger.LevelFromEnv())}
	if logFile != "" {
		opts = append(opts, logger.WithLogToFile(true), logger.WithLogFile(logFile))
	}
	slog.SetDefault(logger.New(env.FromEnv(), opts...))

	backends, err := newBackends()
	if err != nil {
		return err
	}

	ctx := cmd.Context()

	manager := model.NewManager(backends)
	defer manager.Close()

	watcher, err := config.NewWatcher(configPath, schemaPath, func(cfg *config.Config, err error) {
		if err != nil {
			slog.Error("Failed to reload config", "error", err)
			return
		}
		if err := manager.LoadModelsFromConfig(ctx, cfg); err != nil {
			slog.Error("Failed to load models from config", "error", err)
		}
	})
	if err != nil {
		return err
	}
	defer watcher.Close()

	cfg := watcher.Snapshot()
	if err := manager.LoadModelsFromConfig(ctx, cfg); err != nil {
		// Failed models stay registered with status failed; keep serving the rest.
		slog.Error("Failed to load models from config", "error", err)
	}

	slog.Info("Config loaded successfully", "config", configPath, "models", manager.Registry().Len())

	inference := service.NewInference(manager)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return httpserver.NewServer(cfg.HTTPAddr(), inference).Run(gctx)
	})
	g.Go(func() error {
		return grpcserver.NewServer(cfg.GRPCAddr(), inference).Run(gctx)
	})

	err = g.Wait()
	if err == nil || ctx.Err() == context.Canceled {
		slog.Info("Shutting down")
		return nil
	}
	return err
}
