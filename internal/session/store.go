// Package session persists the per-browser session record: the user, the bearer token and the
// cloud password verified flag.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/eko/gocache/lib/v4/store"
	"github.com/jon4hz/botconsole/internal/database"
	"github.com/jon4hz/botconsole/internal/platform"
)

// Record is the persisted session of one browser.
// All slots are written and cleared together.
type Record struct {
	User       *platform.User `json:"user"`
	Token      string         `json:"token"`
	Verified   *bool          `json:"verified"`
	SignedInAt time.Time      `json:"signed_in_at,omitempty"`
}

func (r *Record) valid() bool {
	return r.User.Valid() && strings.TrimSpace(r.Token) != "" && r.Verified != nil
}

// Store is the persisted session store of a single browser.
// Writes are best-effort: failures are logged and never returned.
type Store struct {
	backend Backend
	key     string
	log     *log.Logger
}

// NewStore returns the store of the given browser.
func NewStore(backend Backend, browserID string) *Store {
	return &Store{
		backend: backend,
		key:     browserID,
		log:     log.WithPrefix("session"),
	}
}

// Save persists a fresh login. The verified flag is reset.
func (s *Store) Save(ctx context.Context, user platform.User, token string) {
	verified := false
	s.write(ctx, &Record{
		User:       &user,
		Token:      token,
		Verified:   &verified,
		SignedInAt: time.Now().UTC(),
	})
}

// SaveVerified marks the persisted session as verified. Without a valid record it does nothing.
func (s *Store) SaveVerified(ctx context.Context) {
	record, ok := s.Load(ctx)
	if !ok {
		s.log.Warn("No session to mark as verified")
		return
	}
	verified := true
	record.Verified = &verified
	s.write(ctx, record)
}

// Clear removes the persisted session.
func (s *Store) Clear(ctx context.Context) {
	if err := s.backend.Delete(ctx, s.key); err != nil && !isNotFound(err) {
		s.log.Error("Failed to clear session", "error", err)
	}
}

// Load returns the persisted session. Corrupt or partial records are deleted and reported as missing.
func (s *Store) Load(ctx context.Context) (*Record, bool) {
	data, err := s.backend.Get(ctx, s.key)
	if err != nil {
		if !isNotFound(err) {
			s.log.Warn("Failed to load session", "error", err)
		}
		return nil, false
	}

	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		s.log.Warn("Discarding corrupt session record", "error", err)
		s.Clear(ctx)
		return nil, false
	}
	if !record.valid() {
		s.log.Warn("Discarding incomplete session record")
		s.Clear(ctx)
		return nil, false
	}
	return &record, true
}

func (s *Store) write(ctx context.Context, record *Record) {
	data, err := json.Marshal(record)
	if err != nil {
		s.log.Error("Failed to encode session", "error", err)
		return
	}
	if err := s.backend.Set(ctx, s.key, data); err != nil {
		s.log.Error("Failed to save session", "error", err)
	}
}

func isNotFound(err error) bool {
	var notFound *store.NotFound
	return errors.Is(err, database.ErrNotFound) || errors.As(err, &notFound)
}
