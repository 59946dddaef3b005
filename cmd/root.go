// Package cmd defines the CLI commands for the radiocrate executable.
package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/radiocrate/radiocrate/internal/config"
	"github.com/radiocrate/radiocrate/internal/logging"
	"github.com/radiocrate/radiocrate/internal/store"
)

var cfgFile string

// app bundles the services every command needs.
type app struct {
	cfg    config.Config
	logger *zap.Logger
	store  *store.Postgres
}

func buildApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	st, err := store.NewPostgres(ctx, store.PostgresConfig{
		DSN:             cfg.DB.DSN,
		MaxConns:        cfg.DB.MaxConns,
		MinConns:        cfg.DB.MinConns,
		MaxConnLifetime: cfg.DB.MaxConnLifetimeDuration(),
	})
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &app{cfg: cfg, logger: logger, store: st}, nil
}

func (a *app) close() {
	a.store.Close()
	_ = a.logger.Sync()
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "radiocrate",
		Short: "Archive crawler and catalog for community radio broadcasts",
		Long: `radiocrate crawls a station's public broadcast archive, persists
playlists and their tracks, and maintains a deduplicated catalog of the
artists, songs, albums, and labels heard on air.`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to config file")

	cmd.AddCommand(newIngestCmd())
	cmd.AddCommand(newMergeCmd())
	cmd.AddCommand(newServeCmd())
	return cmd
}

// Execute runs the CLI.
func Execute(ctx context.Context) error {
	return newRootCmd().ExecuteContext(ctx)
}
