// Package kvstore provides the durable key-value store backing stream
// snapshots, watcher registrations, and link redirects. It is SQLite through
// GORM with the pure Go driver.
package kvstore

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/OdielDomanie/clipper-bot/internal/config"
)

// ErrNotFound indicates the requested key is absent.
var ErrNotFound = errors.New("kvstore: not found")

// Store wraps a GORM connection over the clipper database.
type Store struct {
	db     *gorm.DB
	logger *slog.Logger
}

// Open opens (creating if necessary) the database at the configured path and
// ensures the schema exists.
func Open(cfg config.DatabaseConfig, log *slog.Logger) (*Store, error) {
	if log == nil {
		log = slog.Default()
	}

	dsn := cfg.Path
	if strings.Contains(dsn, "?") {
		dsn += "&"
	} else {
		dsn += "?"
	}
	// WAL keeps clip reads from blocking watcher writes.
	dsn += "_pragma=busy_timeout(30000)" +
		"&_pragma=journal_mode(WAL)" +
		"&_pragma=synchronous(NORMAL)"

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                 newGormLogger(cfg.LogLevel, log),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db, logger: log}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

// migrate creates the tables. Set-valued tables use
// UNIQUE (keys..., value) ON CONFLICT REPLACE so re-adding a member is an
// idempotent overwrite.
func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS all_streams (
			uid TEXT PRIMARY KEY ON CONFLICT REPLACE,
			state BLOB NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS registers (
			chn_id INTEGER NOT NULL,
			registration BLOB NOT NULL,
			UNIQUE (chn_id, registration) ON CONFLICT REPLACE
		)`,
		`CREATE TABLE IF NOT EXISTS captured_streams (
			chn_id INTEGER NOT NULL,
			priority REAL NOT NULL,
			uid TEXT NOT NULL,
			UNIQUE (chn_id, priority, uid) ON CONFLICT REPLACE
		)`,
		`CREATE TABLE IF NOT EXISTS sent_clips (
			msg_id INTEGER PRIMARY KEY ON CONFLICT REPLACE,
			record BLOB NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS sent_screenshots (
			msg_id INTEGER PRIMARY KEY ON CONFLICT REPLACE,
			record BLOB NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS blocked_streams (
			guild_id INTEGER NOT NULL,
			unblock_epoch INTEGER NOT NULL,
			url TEXT NOT NULL,
			UNIQUE (guild_id, unblock_epoch, url) ON CONFLICT REPLACE
		)`,
		`CREATE TABLE IF NOT EXISTS link_perms (
			guild_id INTEGER PRIMARY KEY ON CONFLICT REPLACE,
			allowed TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS redirects (
			alias TEXT PRIMARY KEY ON CONFLICT REPLACE,
			target TEXT NOT NULL
		)`,
	}

	for _, stmt := range stmts {
		if err := s.db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("creating schema: %w", err)
		}
	}
	return nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("getting underlying sql.DB: %w", err)
	}
	return sqlDB.Close()
}
