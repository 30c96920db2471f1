// Package store keeps meetings and call records in SQLite.
package store

import (
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/soyeahso/meetbot/internal/logging"
	_ "modernc.org/sqlite"
)

const memoryPath = ":memory:"

// DB is a migrated SQLite database.
type DB struct {
	sql *sql.DB
	log *logging.Logger
}

// dsnFor builds the modernc DSN. Pragmas ride on the DSN so every pooled
// connection gets them, not just the first.
func dsnFor(path string) string {
	if path == memoryPath {
		return memoryPath
	}
	q := url.Values{}
	for _, p := range []string{"busy_timeout(5000)", "journal_mode(WAL)", "foreign_keys(1)"} {
		q.Add("_pragma", p)
	}
	return "file:" + path + "?" + q.Encode()
}

// Open opens or creates the database at path and applies pending
// migrations. ":memory:" gives a private database for tests.
func Open(path string, log *logging.Logger) (*DB, error) {
	if path != memoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	handle, err := sql.Open("sqlite", dsnFor(path))
	if err != nil {
		return nil, fmt.Errorf("opening sqlite: %w", err)
	}
	if path == memoryPath {
		// one connection, one database
		handle.SetMaxOpenConns(1)
	}

	db := &DB{sql: handle, log: log.Sub("store")}
	if err := db.migrate(); err != nil {
		handle.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	v, _ := db.SchemaVersion()
	db.log.Info().Str("path", path).Int("schema", v).Msg("database opened")
	return db, nil
}

func (db *DB) Close() error {
	db.log.Debug().Msg("closing database")
	return db.sql.Close()
}

// SQL returns the underlying handle.
func (db *DB) SQL() *sql.DB {
	return db.sql
}

// InTx runs fn inside a transaction, committing when fn returns nil and
// rolling back otherwise.
func (db *DB) InTx(fn func(tx *sql.Tx) error) error {
	tx, err := db.sql.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// SchemaVersion returns the highest applied migration.
func (db *DB) SchemaVersion() (int, error) {
	var v sql.NullInt64
	if err := db.sql.QueryRow("SELECT MAX(version) FROM schema_migrations").Scan(&v); err != nil {
		return 0, err
	}
	return int(v.Int64), nil
}

const migrationsTable = `CREATE TABLE IF NOT EXISTS schema_migrations (
	version    INTEGER PRIMARY KEY,
	applied_at TEXT NOT NULL DEFAULT (datetime('now'))
)`

// migrate applies every migration newer than the recorded schema version,
// each in its own transaction.
func (db *DB) migrate() error {
	if _, err := db.sql.Exec(migrationsTable); err != nil {
		return fmt.Errorf("creating migrations table: %w", err)
	}
	current, err := db.SchemaVersion()
	if err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}
	for _, m := range migrations {
		if m.Version <= current {
			continue
		}
		db.log.Info().Int("version", m.Version).Str("name", m.Name).Msg("applying migration")
		if err := db.InTx(m.apply); err != nil {
			return err
		}
	}
	return nil
}
