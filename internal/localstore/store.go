// Package localstore is the durable local equivalent of the browser's
// localStorage: a small SQLite key/value table holding the cached profile
// snapshot and the one-time device identifier. Both survive restarts; only
// the profile is ever cleared.
package localstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"earnzy/internal/repo"
)

const (
	keyProfile  = "userProfile"
	keyDeviceID = "deviceId"
)

// Store is a durable local key/value store backed by SQLite.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
	mu     sync.Mutex
}

// Open creates (or reuses) the SQLite database at path and applies the
// local schema from the provided filesystem.
func Open(ctx context.Context, path string, filesystem fs.FS, logger *slog.Logger) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("local store path is empty")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure store dir: %w", err)
		}
	}

	dsn := path
	if !strings.HasPrefix(dsn, "file:") {
		dsn = "file:" + dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	dsn = fmt.Sprintf("%s%s_pragma=busy_timeout=10000&_pragma=journal_mode=WAL", dsn, sep)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	schema, err := fs.ReadFile(filesystem, "sqlite/001_init.sql")
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("read local schema: %w", err)
	}
	if _, err := db.ExecContext(ctx, string(schema)); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply local schema: %w", err)
	}

	return &Store{
		db:     db,
		logger: logger.With("component", "localstore"),
	}, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveProfile overwrites the cached profile snapshot wholesale.
func (s *Store) SaveProfile(ctx context.Context, user *repo.User) error {
	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("marshal profile: %w", err)
	}
	return s.set(ctx, keyProfile, string(data))
}

// LoadProfile returns the last cached profile snapshot. The boolean reports
// whether a snapshot exists.
func (s *Store) LoadProfile(ctx context.Context) (*repo.User, bool, error) {
	raw, ok, err := s.get(ctx, keyProfile)
	if err != nil || !ok {
		return nil, false, err
	}
	var user repo.User
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		return nil, false, fmt.Errorf("unmarshal profile: %w", err)
	}
	return &user, true, nil
}

// ClearProfile removes the cached profile snapshot. The device id is
// deliberately left in place.
func (s *Store) ClearProfile(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.ExecContext(ctx, `DELETE FROM local_store WHERE key = ?`, keyProfile); err != nil {
		return fmt.Errorf("clear profile: %w", err)
	}
	return nil
}

// DeviceID returns the persistent device identifier, generating and storing
// one on first use.
func (s *Store) DeviceID(ctx context.Context) (string, error) {
	if id, ok, err := s.get(ctx, keyDeviceID); err != nil {
		return "", err
	} else if ok {
		return id, nil
	}

	id := "device_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
	if err := s.set(ctx, keyDeviceID, id); err != nil {
		return "", err
	}
	s.logger.Info("generated device id", "device_id", id)
	return id, nil
}

func (s *Store) set(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	const q = `
INSERT INTO local_store (key, value, updated_at)
VALUES (?, ?, strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
ON CONFLICT (key) DO UPDATE SET
    value = excluded.value,
    updated_at = excluded.updated_at;
`
	if _, err := s.db.ExecContext(ctx, q, key, value); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func (s *Store) get(ctx context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM local_store WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %s: %w", key, err)
	}
	return value, true, nil
}
