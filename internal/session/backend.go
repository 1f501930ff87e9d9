package session

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jon4hz/botconsole/internal/cache"
	"github.com/jon4hz/botconsole/internal/config"
	"github.com/jon4hz/botconsole/internal/database"
	"github.com/jon4hz/botconsole/internal/scheduler"
)

const (
	// keyPrefix namespaces console records in shared cache backends.
	keyPrefix = "botconsole-session-"

	// JanitorJobID is the scheduler id of the expired session purge.
	JanitorJobID = "session-janitor"
)

// Backend is the durable key/value storage behind the session store.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
}

// Purger is implemented by backends that cannot expire records on their own.
type Purger interface {
	PurgeExpired(ctx context.Context, before time.Time) (int64, error)
}

// NewBackend opens the backend selected by the store configuration.
// Records expire after the browser session max age.
func NewBackend(cfg *config.Config) (Backend, error) {
	store := cfg.Store
	if store == nil {
		store = &config.StoreConfig{Type: config.StoreTypeMemory}
	}

	switch store.Type {
	case config.StoreTypeMemory, config.StoreTypeRedis:
		c, err := cache.New(store, keyPrefix, cfg.SessionMaxAgeDuration())
		if err != nil {
			return nil, err
		}
		log.Info("Using cache session store", "type", c.GetType())
		return c, nil
	case config.StoreTypeSQLite:
		if dir := filepath.Dir(store.Path); dir != "" {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
		db, err := database.New(store.Path, cfg.SessionMaxAgeDuration())
		if err != nil {
			return nil, err
		}
		log.Info("Using sqlite session store", "path", store.Path)
		return db, nil
	default:
		return nil, fmt.Errorf("unknown store type %q", store.Type)
	}
}

// RegisterJanitor schedules the periodic removal of expired records when the backend needs it.
// It reports whether a job was added.
func RegisterJanitor(s *scheduler.Scheduler, backend Backend, maxAge, interval time.Duration) (bool, error) {
	purger, ok := backend.(Purger)
	if !ok {
		return false, nil
	}
	err := s.AddSingletonJob(JanitorJobID, "Purge expired sessions", interval, func(ctx context.Context) error {
		purged, err := purger.PurgeExpired(ctx, time.Now().Add(-maxAge))
		if err != nil {
			return err
		}
		if purged > 0 {
			log.Info("Purged expired sessions", "count", purged)
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return true, nil
}
