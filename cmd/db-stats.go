package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ccoveille/go-safecast"
	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/jon4hz/botconsole/internal/config"
	"github.com/jon4hz/botconsole/internal/database"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/spf13/cobra"
)

var dbStatsCmd = &cobra.Command{
	Use:   "db-stats",
	Short: "Show session database statistics",
	Long:  `Display statistics about the sqlite session store and the volume it lives on.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		stats, err := collectStoreStats(cmd.Context(), cfg)
		if err != nil {
			return err
		}

		fmt.Println("Session Database Statistics:")
		fmt.Printf("Path: %s\n", stats.Path)
		fmt.Printf("Size: %s\n", humanize.Bytes(stats.Size))
		if stats.VolumeTotal > 0 {
			fmt.Printf("Volume Free: %s of %s (%.1f%% used)\n",
				humanize.Bytes(stats.VolumeFree), humanize.Bytes(stats.VolumeTotal), stats.VolumeUsedPercent)
		}
		fmt.Printf("Persisted Sessions: %d\n", stats.Sessions)
		fmt.Printf("Session Max Age: %s\n", stats.MaxAge)
		fmt.Printf("Expired Before: %s\n", time.Now().Add(-stats.MaxAge).Format(time.RFC3339))

		return nil
	},
}

func init() {
	rootCmd.AddCommand(dbStatsCmd)
}

type storeStats struct {
	Path     string
	Size     uint64
	Sessions int64
	MaxAge   time.Duration

	// volume figures are zero when the disk usage could not be read
	VolumeFree        uint64
	VolumeTotal       uint64
	VolumeUsedPercent float64
}

func collectStoreStats(ctx context.Context, cfg *config.Config) (*storeStats, error) {
	if cfg.Store == nil || cfg.Store.Type != config.StoreTypeSQLite {
		return nil, fmt.Errorf("db-stats requires the sqlite store")
	}

	db, err := database.New(cfg.Store.Path, cfg.SessionMaxAgeDuration())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close() //nolint: errcheck

	stats := &storeStats{
		Path:   cfg.Store.Path,
		MaxAge: cfg.SessionMaxAgeDuration(),
	}

	stats.Sessions, err = db.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count sessions: %w", err)
	}

	info, err := os.Stat(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat database: %w", err)
	}
	stats.Size, err = safecast.ToUint64(info.Size())
	if err != nil {
		return nil, fmt.Errorf("invalid database size: %w", err)
	}

	usage, err := disk.UsageWithContext(ctx, filepath.Dir(cfg.Store.Path))
	if err != nil {
		log.Warn("failed to get disk usage", "path", cfg.Store.Path, "error", err)
		return stats, nil
	}
	stats.VolumeFree = usage.Free
	stats.VolumeTotal = usage.Total
	stats.VolumeUsedPercent = usage.UsedPercent

	return stats, nil
}
