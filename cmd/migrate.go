package cmd

import (
	"fmt"
	"io"

	"github.com/jon4hz/botconsole/internal/config"
	"github.com/jon4hz/botconsole/internal/session"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run session database migrations",
	Long:  `Run database migrations to set up or update the sqlite session store schema.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if cfg.Store.Type != config.StoreTypeSQLite {
			fmt.Printf("Store %q has no schema, nothing to migrate.\n", cfg.Store.Type)
			return nil
		}

		// opening the sqlite backend creates the directory and migrates the schema
		backend, err := session.NewBackend(cfg)
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		if closer, ok := backend.(io.Closer); ok {
			defer closer.Close() //nolint: errcheck
		}

		fmt.Println("Database migrations completed successfully!")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
