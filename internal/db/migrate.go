package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// Migrate runs all schema migrations.
func Migrate(db *sql.DB) error {
	for i, stmt := range migrations {
		if _, err := db.Exec(stmt); err != nil {
			// Tolerate "duplicate column name" errors from ALTER TABLE
			// since the migration system re-runs all statements.
			if strings.Contains(err.Error(), "duplicate column name") {
				continue
			}
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	if err := migrateBackfillRevisions(db); err != nil {
		return fmt.Errorf("backfilling form revisions: %w", err)
	}
	return nil
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS forms (
		id             TEXT PRIMARY KEY,
		internal_name  TEXT NOT NULL,
		slug           TEXT NOT NULL,
		service_tree   TEXT NOT NULL,
		base_questions TEXT NOT NULL DEFAULT '[]',
		theme          TEXT NOT NULL DEFAULT ''
		               CHECK(theme IN ('','light','dark')),
		primary_color  TEXT NOT NULL DEFAULT '',
		is_enabled     INTEGER NOT NULL DEFAULT 0,
		version        INTEGER NOT NULL DEFAULT 1 CHECK(version > 0),
		created_at     TEXT NOT NULL,
		updated_at     TEXT NOT NULL
	)`,

	`CREATE UNIQUE INDEX IF NOT EXISTS idx_forms_slug ON forms(slug)`,

	`CREATE TABLE IF NOT EXISTS form_revisions (
		form_id    TEXT NOT NULL REFERENCES forms(id) ON DELETE CASCADE,
		version    INTEGER NOT NULL,
		snapshot   TEXT NOT NULL,
		hash       TEXT NOT NULL,
		created_at TEXT NOT NULL,
		PRIMARY KEY (form_id, version)
	)`,

	`CREATE INDEX IF NOT EXISTS idx_form_revisions_created ON form_revisions(created_at)`,

	// Track when a form was last enabled for public booking
	`ALTER TABLE forms ADD COLUMN published_at TEXT`,
}

// migrateBackfillRevisions records a revision for every form whose current
// version has none, so history always ends at the live row. Older databases
// stored forms before revisions existed. Idempotent.
func migrateBackfillRevisions(db *sql.DB) error {
	ctx := context.Background()

	query := `INSERT INTO form_revisions (form_id, version, snapshot, hash, created_at)
		SELECT f.id, f.version,
		       json_object('serviceTree', json(f.service_tree), 'baseQuestions', json(f.base_questions)),
		       '', f.updated_at
		FROM forms f
		LEFT JOIN form_revisions r ON r.form_id = f.id AND r.version = f.version
		WHERE r.form_id IS NULL`
	if _, err := db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("inserting missing revision rows: %w", err)
	}
	return nil
}
