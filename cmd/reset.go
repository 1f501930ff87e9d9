package cmd

import (
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/jon4hz/botconsole/internal/session"
	"github.com/spf13/cobra"
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Sign out every browser",
	Long:  `This command removes every persisted console session. Browsers have to sign in again with a new link from the bot.`,
	RunE:  reset,
}

func init() {
	rootCmd.AddCommand(resetCmd)
}

func reset(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	backend, err := session.NewBackend(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize session store: %w", err)
	}

	log.Info("Removing all persisted sessions...", "store", cfg.Store.Type)
	if err := backend.Clear(cmd.Context()); err != nil {
		return fmt.Errorf("failed to reset sessions: %w", err)
	}

	log.Info("Successfully removed all sessions!")
	return nil
}
