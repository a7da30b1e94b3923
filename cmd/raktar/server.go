package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/raktar-project/raktar/pkg/api"
	"github.com/raktar-project/raktar/pkg/archive"
	"github.com/raktar-project/raktar/pkg/config"
	"github.com/raktar-project/raktar/pkg/log"
	"github.com/raktar-project/raktar/pkg/repository"
	"github.com/raktar-project/raktar/pkg/storage"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Run the registry server",
	Long: `Run the registry HTTP server.

The server speaks the cargo registry protocol under /api/v1 and the
sparse index paths, and serves the web API under /v1. It shuts down
gracefully on SIGINT or SIGTERM.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		allowAnonymous, _ := cmd.Flags().GetBool("allow-anonymous-web")

		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		log.Init(log.Config{Level: log.Level(cfg.LogLevel), JSONOutput: cfg.LogJSON})
		logger := log.WithComponent("main")

		store, err := storage.NewBoltStore(cfg.DataDir)
		if err != nil {
			return err
		}
		defer store.Close()

		archives, err := newArchiveStore(cmd.Context(), cfg)
		if err != nil {
			return err
		}

		repo := repository.New(store)
		server := api.NewServer(cfg, repo, archives, api.Options{
			AllowAnonymousWeb: allowAnonymous,
		})

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		err = server.Start(ctx)
		logger.Info().Msg("registry stopped")
		return err
	},
}

func newArchiveStore(ctx context.Context, cfg config.Config) (archive.Store, error) {
	switch cfg.ArchiveBackend {
	case config.ArchiveLocal:
		return archive.NewLocalStore(cfg.DataDir)
	case config.ArchiveS3:
		return archive.NewS3Store(ctx, cfg.CratesBucketName)
	default:
		return nil, fmt.Errorf("unknown archive backend %q", cfg.ArchiveBackend)
	}
}

func init() {
	serverCmd.Flags().Bool("allow-anonymous-web", false, "Serve the web API without JWT authentication (development only)")
}
