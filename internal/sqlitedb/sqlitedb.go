// Package sqlitedb opens the SQLite database backing the sync journal.
//
// Adapted from the teacher's internal/db package: a thin sqlx wrapper with
// sane default pragmas, plus a build-tag switch between a pure-Go driver
// (default) and a cgo driver (opt-in, for environments where cgo is cheap
// and the extra throughput is worth it).
package sqlitedb

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/oc-sync/davsync/internal/pathutil"
)

// defaultPragma tunes SQLite for a single-writer, durable, low-latency
// journal: WAL so readers never block the writer, a busy timeout so a
// contended lock retries instead of failing, and a generous page cache
// since the journal is small relative to available memory.
const defaultPragma = `
PRAGMA journal_mode=WAL;
PRAGMA busy_timeout=5000;
PRAGMA foreign_keys=ON;
PRAGMA synchronous=NORMAL;
PRAGMA temp_store=MEMORY;
PRAGMA cache_size=8000;
`

type config struct {
	path            string
	pragmas         string
	maxOpenConns    int
	maxIdleConns    int
	connMaxLifetime time.Duration
}

// Option configures Open.
type Option func(*config)

// WithPath sets the database file path. Use ":memory:" for an in-memory
// database (tests).
func WithPath(path string) Option {
	return func(c *config) { c.path = path }
}

// WithMaxOpenConns caps the number of open connections. The journal is
// single-writer by design (internal/journal serializes writes with a
// mutex and a cross-process flock), so callers typically pass 1.
func WithMaxOpenConns(n int) Option {
	return func(c *config) { c.maxOpenConns = n }
}

// Open creates or opens a SQLite database with the given options.
func Open(opts ...Option) (*sqlx.DB, error) {
	cfg := &config{
		path:         ":memory:",
		pragmas:      defaultPragma,
		maxOpenConns: 0,
		maxIdleConns: 2,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	var dsn string
	if cfg.path != ":memory:" {
		if err := pathutil.EnsureParent(cfg.path); err != nil {
			return nil, fmt.Errorf("ensure parent directory: %w", err)
		}
		dsn = fmt.Sprintf("file:%s?_txlock=immediate&mode=rwc", cfg.path)
	} else {
		dsn = ":memory:"
	}

	slog.Debug("sqlitedb open", "driver", driverID, "path", cfg.path)
	db, err := sqlx.Connect(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if cfg.maxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.maxOpenConns)
	}
	if cfg.maxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.maxIdleConns)
	}
	if cfg.connMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.connMaxLifetime)
	}

	if _, err := db.Exec(cfg.pragmas); err != nil {
		db.Close()
		return nil, fmt.Errorf("set pragmas: %w", err)
	}

	return db, nil
}
