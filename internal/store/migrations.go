package store

import (
	"database/sql"
	"fmt"
)

type migration struct {
	Version int
	Name    string
	SQL     string
}

// apply runs the migration and records it in schema_migrations.
func (m migration) apply(tx *sql.Tx) error {
	if _, err := tx.Exec(m.SQL); err != nil {
		return fmt.Errorf("migration %d (%s): %w", m.Version, m.Name, err)
	}
	if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", m.Version); err != nil {
		return fmt.Errorf("recording migration %d: %w", m.Version, err)
	}
	return nil
}

// migrations run in order; never edit one that has shipped.
var migrations = []migration{
	{
		Version: 1,
		Name:    "create meetings",
		SQL: `
			CREATE TABLE meetings (
				seq          INTEGER PRIMARY KEY AUTOINCREMENT,
				id           TEXT NOT NULL UNIQUE,
				slot         TEXT NOT NULL,
				call_id      TEXT NOT NULL DEFAULT '',
				name         TEXT NOT NULL DEFAULT '',
				email        TEXT NOT NULL DEFAULT '',
				phone        TEXT NOT NULL DEFAULT '',
				notes        TEXT NOT NULL DEFAULT '',
				timezone     TEXT NOT NULL DEFAULT '',
				duration_min INTEGER NOT NULL DEFAULT 0,
				source       TEXT NOT NULL DEFAULT '',
				status       TEXT NOT NULL DEFAULT 'active',
				pending_name INTEGER NOT NULL DEFAULT 0,
				logged_at    TEXT NOT NULL
			);

			CREATE UNIQUE INDEX idx_meetings_active_slot ON meetings (slot) WHERE status = 'active';
			CREATE INDEX idx_meetings_call ON meetings (call_id);
		`,
	},
	{
		Version: 2,
		Name:    "create call log",
		SQL: `
			CREATE TABLE calls (
				call_id      TEXT PRIMARY KEY,
				prospect     TEXT NOT NULL DEFAULT '',
				caller       TEXT NOT NULL DEFAULT '',
				status       TEXT NOT NULL DEFAULT '',
				disposition  TEXT NOT NULL DEFAULT '',
				end_reason   TEXT NOT NULL DEFAULT '',
				turns        INTEGER NOT NULL DEFAULT 0,
				started_at   TEXT NOT NULL,
				updated_at   TEXT NOT NULL,
				ended_at     TEXT
			);

			CREATE INDEX idx_calls_updated ON calls (updated_at);
		`,
	},
}
