package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// archiveSchemaV1 defines the task archive schema. Request bodies, stage
// outputs, and warnings are stored as JSON text; timestamps as unix seconds.
const archiveSchemaV1 = `
CREATE TABLE IF NOT EXISTS tasks (
	task_id         TEXT PRIMARY KEY,
	tenant_id       TEXT NOT NULL,
	request_json    TEXT NOT NULL DEFAULT '{}',
	status          TEXT NOT NULL DEFAULT 'running',
	failure_phase   TEXT NOT NULL DEFAULT '',
	failure_kind    TEXT NOT NULL DEFAULT '',
	created_at_unix INTEGER NOT NULL DEFAULT 0,
	updated_at_unix INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_tasks_tenant ON tasks(tenant_id);
CREATE INDEX IF NOT EXISTS idx_tasks_created ON tasks(created_at_unix);

CREATE TABLE IF NOT EXISTS stages (
	id                INTEGER PRIMARY KEY AUTOINCREMENT,
	task_id           TEXT NOT NULL,
	phase             TEXT NOT NULL,
	outputs_json      TEXT NOT NULL DEFAULT '{}',
	progress          REAL NOT NULL DEFAULT 0.0,
	started_at_unix   INTEGER NOT NULL DEFAULT 0,
	completed_at_unix INTEGER NOT NULL DEFAULT 0,
	warnings_json     TEXT NOT NULL DEFAULT '[]',
	UNIQUE(task_id, phase)
);
CREATE INDEX IF NOT EXISTS idx_stages_task ON stages(task_id);

CREATE TABLE IF NOT EXISTS artifacts (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	task_id         TEXT NOT NULL,
	key             TEXT NOT NULL,
	kind            TEXT NOT NULL,
	size            INTEGER NOT NULL DEFAULT 0,
	created_at_unix INTEGER NOT NULL DEFAULT 0,
	UNIQUE(task_id, key)
);
CREATE INDEX IF NOT EXISTS idx_artifacts_task ON artifacts(task_id);
`

// NewDB opens the archive database at the given path with recommended pragmas
// and runs the V1 schema migration.
func NewDB(path string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Limit connections to 1 for SQLite (WAL allows concurrent reads but single writer).
	db.SetMaxOpenConns(1)

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	return db, nil
}

func migrate(db *sql.DB) error {
	_, err := db.ExecContext(context.Background(), archiveSchemaV1)
	return err
}
