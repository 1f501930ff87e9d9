package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/jon4hz/botconsole/internal/api"
	"github.com/jon4hz/botconsole/internal/avatar"
	"github.com/jon4hz/botconsole/internal/platform"
	"github.com/jon4hz/botconsole/internal/scheduler"
	"github.com/jon4hz/botconsole/internal/session"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the console server",
	Long:  `Start the console server that hosts the sign-in gate and forwards authenticated API calls to the platform.`,
	Example: `botconsole serve --config config.yml
botconsole serve -c /path/to/config.yml --log-level debug
`,
	RunE: startServer,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func startServer(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := avatar.Validate(cfg.Gravatar); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	backend, err := session.NewBackend(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize session store: %w", err)
	}

	sched, err := scheduler.New()
	if err != nil {
		return err
	}
	janitor, err := session.RegisterJanitor(sched, backend, cfg.SessionMaxAgeDuration(), cfg.Store.PurgeInterval)
	if err != nil {
		return fmt.Errorf("failed to schedule session janitor: %w", err)
	}

	server, err := api.New(cfg, backend, platform.New(cfg.Platform), log.GetLevel() == log.DebugLevel)
	if err != nil {
		return fmt.Errorf("failed to create API server: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sched.Start()
	defer func() {
		if err := sched.Stop(); err != nil {
			log.Error("failed to stop scheduler", "error", err)
		}
	}()
	if janitor {
		log.Debug("Scheduled session janitor", "interval", cfg.Store.PurgeInterval)
		if err := sched.RunJobNow(session.JanitorJobID); err != nil {
			log.Warn("Initial session purge failed", "error", err)
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Run(ctx)
	})

	log.Info("botconsole started successfully", "platform", cfg.Platform.URL, "store", cfg.Store.Type)
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("shut down gracefully")
	return nil
}
