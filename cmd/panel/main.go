package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/xaenox/botpanel/internal/storage"
	"github.com/xaenox/botpanel/pkg/config"
	"github.com/xaenox/botpanel/pkg/logger"
	"go.uber.org/zap"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "panel",
		Short:         "Control panel for remote chat bots",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().String("config", "config.yaml", "Path to the YAML config file (empty to use environment only)")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newMigrateCmd())
	cmd.AddCommand(newAgentCmd())
	cmd.AddCommand(newKeygenCmd())
	cmd.AddCommand(newTokenCmd())
	return cmd
}

// setup loads the config named by --config and builds the logger from it.
func setup(cmd *cobra.Command) (*config.Config, *zap.Logger, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, nil, err
	}
	log, err := logger.New(cfg.Log)
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}

func openStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (storage.Storage, error) {
	if cfg.Database.UseInMemory {
		log.Info("Using in-memory storage")
		return storage.NewMemoryStorage(), nil
	}

	log.Info("Using PostgreSQL storage",
		zap.String("host", cfg.Database.Host),
		zap.String("dbname", cfg.Database.DBName))
	store, err := storage.NewPostgresStorage(ctx, cfg.Database.Postgres(), log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	return store, nil
}
