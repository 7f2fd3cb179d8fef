package main

import (
	"errors"

	"github.com/spf13/cobra"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup(cmd)
			if err != nil {
				return err
			}
			defer log.Sync()

			if cfg.Database.UseInMemory {
				return errors.New("migrate needs a PostgreSQL database, not in-memory storage")
			}

			// Opening the store applies the schema.
			store, err := openStore(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			log.Info("Schema is up to date")
			return store.Close()
		},
	}
}
