package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
	"github.com/rs/zerolog"
)

const defaultBusyTimeoutMS = 5000

// DB is the relational store. Writers are serialized by SQLite: every
// transaction takes the reserved lock at BEGIN (_txlock=immediate) and waits
// up to the busy timeout for it.
type DB struct {
	*sql.DB
	path   string
	logger *zerolog.Logger
}

type Option func(*options)

type options struct {
	busyTimeoutMS int
}

func WithBusyTimeout(ms int) Option {
	return func(o *options) {
		if ms > 0 {
			o.busyTimeoutMS = ms
		}
	}
}

func NewDB(path string, logger *zerolog.Logger, opts ...Option) (*DB, error) {
	o := options{busyTimeoutMS: defaultBusyTimeoutMS}
	for _, opt := range opts {
		opt(&o)
	}

	inMemory := isMemoryPath(path)
	if !inMemory {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("%s?_busy_timeout=%d&_txlock=immediate", path, o.busyTimeoutMS)
	if !inMemory {
		dsn += "&_journal_mode=WAL"
	}

	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Each connection to :memory: is its own database.
	if inMemory {
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetMaxIdleConns(1)
	}

	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db := &DB{DB: sqlDB, path: path, logger: logger}
	if err := db.createTables(context.Background()); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	if logger != nil {
		logger.Info().Str("path", path).Msg("Database initialized")
	}
	return db, nil
}

func (db *DB) Path() string {
	return db.path
}

func isMemoryPath(path string) bool {
	return path == ":memory:"
}

func (db *DB) createTables(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS users (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            email TEXT NOT NULL UNIQUE COLLATE NOCASE,
            name TEXT NOT NULL,
            password_hash TEXT NOT NULL,
            role TEXT NOT NULL DEFAULT 'USER',
            created_at DATETIME NOT NULL,
            updated_at DATETIME NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS parkings (
            code TEXT PRIMARY KEY,
            name TEXT NOT NULL,
            location TEXT NOT NULL DEFAULT '',
            total_spaces INTEGER NOT NULL CHECK (total_spaces >= 0),
            available_spaces INTEGER NOT NULL CHECK (available_spaces >= 0 AND available_spaces <= total_spaces),
            hourly_fee REAL NOT NULL CHECK (hourly_fee >= 0),
            created_at DATETIME NOT NULL,
            updated_at DATETIME NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS entries (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            parking_code TEXT NOT NULL,
            plate_number TEXT NOT NULL,
            entry_date_time DATETIME NOT NULL,
            exit_date_time DATETIME,
            charged_amount REAL,
            registered_by TEXT NOT NULL DEFAULT '',
            closed_by TEXT NOT NULL DEFAULT '',
            version INTEGER NOT NULL DEFAULT 1,
            CHECK ((exit_date_time IS NULL) = (charged_amount IS NULL))
        )`,
		`CREATE TABLE IF NOT EXISTS notification_queue (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            task_type TEXT NOT NULL,
            entry_id INTEGER NOT NULL,
            payload TEXT NOT NULL DEFAULT '',
            status TEXT NOT NULL DEFAULT 'pending',
            retry_count INTEGER NOT NULL DEFAULT 0,
            last_error TEXT,
            created_at DATETIME NOT NULL,
            processed_at DATETIME,
            next_retry_at DATETIME
        )`,

		// At most one open entry per plate and parking.
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_entries_open_plate
            ON entries(plate_number, parking_code) WHERE exit_date_time IS NULL`,
		`CREATE INDEX IF NOT EXISTS idx_entries_parking_code ON entries(parking_code)`,
		`CREATE INDEX IF NOT EXISTS idx_entries_entry_date_time ON entries(entry_date_time)`,
		`CREATE INDEX IF NOT EXISTS idx_entries_exit_date_time ON entries(exit_date_time)`,
		`CREATE INDEX IF NOT EXISTS idx_notification_queue_status ON notification_queue(status, next_retry_at)`,
	}

	for _, query := range queries {
		if _, err := db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("error executing query %s: %w", query, err)
		}
	}
	return nil
}
