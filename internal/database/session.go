package database

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/log"
	"gorm.io/gorm"
)

// ErrNotFound is returned when no record is stored for a browser.
var ErrNotFound = errors.New("record not found")

// PersistedSession is the durable session record of one browser.
// The payload is opaque to the database, it is encoded and validated by the session store.
type PersistedSession struct {
	BrowserID string    `gorm:"primaryKey;size:64"`
	Payload   []byte    `gorm:"not null"`
	UpdatedAt time.Time `gorm:"index"`
}

// Get returns the payload stored for the browser. Expired records are reported as ErrNotFound.
func (c *Client) Get(ctx context.Context, browserID string) ([]byte, error) {
	var record PersistedSession
	query := c.db.WithContext(ctx).Where("browser_id = ?", browserID)
	if c.maxAge > 0 {
		// expired rows linger until the janitor runs
		query = query.Where("updated_at >= ?", time.Now().Add(-c.maxAge))
	}
	if err := query.First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		log.Error("failed to get persisted session", "error", err)
		return nil, err
	}
	return record.Payload, nil
}

// Set creates or replaces the payload stored for the browser.
func (c *Client) Set(ctx context.Context, browserID string, payload []byte) error {
	record := PersistedSession{
		BrowserID: browserID,
		Payload:   payload,
	}
	if err := c.db.WithContext(ctx).Save(&record).Error; err != nil {
		log.Error("failed to save persisted session", "error", err)
		return err
	}
	return nil
}

// Delete removes the record of the browser.
func (c *Client) Delete(ctx context.Context, browserID string) error {
	if err := c.db.WithContext(ctx).Where("browser_id = ?", browserID).Delete(&PersistedSession{}).Error; err != nil {
		log.Error("failed to delete persisted session", "error", err)
		return err
	}
	return nil
}

// Clear removes every persisted session.
func (c *Client) Clear(ctx context.Context) error {
	if err := c.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&PersistedSession{}).Error; err != nil {
		log.Error("failed to clear persisted sessions", "error", err)
		return err
	}
	return nil
}

// PurgeExpired removes records that were not written since the given time and returns how many were removed.
func (c *Client) PurgeExpired(ctx context.Context, before time.Time) (int64, error) {
	result := c.db.WithContext(ctx).Where("updated_at < ?", before).Delete(&PersistedSession{})
	if result.Error != nil {
		log.Error("failed to purge expired sessions", "error", result.Error)
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// Count returns the number of persisted sessions.
func (c *Client) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := c.db.WithContext(ctx).Model(&PersistedSession{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
