package db

import (
	"database/sql"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestMigrate_UpgradePath_FormsWithoutRevisions simulates a database created
// before revision history and published_at existed. Verifies that:
// 1. Existing forms survive migration
// 2. The new column is added
// 3. Each form gets a revision for its current version
func TestMigrate_UpgradePath_FormsWithoutRevisions(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`PRAGMA foreign_keys = ON`)
	require.NoError(t, err)

	legacyStatements := []string{
		`CREATE TABLE forms (
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
		`INSERT INTO forms (id, internal_name, slug, service_tree, base_questions, version, created_at, updated_at)
			VALUES ('f1', 'Legacy Salon', 'legacy', '{"id":"root","type":"root","label":"Services"}',
			        '[{"id":"q1","name":"email","label":"Email","type":"short-text"}]', 4,
			        '2025-01-01T00:00:00Z', '2025-03-01T00:00:00Z')`,
	}
	for i, stmt := range legacyStatements {
		_, err := db.Exec(stmt)
		require.NoError(t, err, "legacy statement %d failed", i)
	}

	require.NoError(t, Migrate(db), "migration on legacy schema should succeed")

	var name string
	var version int
	var publishedAt sql.NullString
	err = db.QueryRow(`SELECT internal_name, version, published_at FROM forms WHERE id = 'f1'`).Scan(&name, &version, &publishedAt)
	require.NoError(t, err)
	assert.Equal(t, "Legacy Salon", name)
	assert.Equal(t, 4, version)
	assert.False(t, publishedAt.Valid)

	var revVersion int
	var snapshot, createdAt string
	err = db.QueryRow(`SELECT version, snapshot, created_at FROM form_revisions WHERE form_id = 'f1'`).
		Scan(&revVersion, &snapshot, &createdAt)
	require.NoError(t, err, "backfill should record the current version")
	assert.Equal(t, 4, revVersion)
	assert.Equal(t, "2025-03-01T00:00:00Z", createdAt)

	var snap struct {
		ServiceTree   map[string]any   `json:"serviceTree"`
		BaseQuestions []map[string]any `json:"baseQuestions"`
	}
	require.NoError(t, json.Unmarshal([]byte(snapshot), &snap))
	assert.Equal(t, "root", snap.ServiceTree["id"])
	require.Len(t, snap.BaseQuestions, 1)
	assert.Equal(t, "email", snap.BaseQuestions[0]["name"])

	// Re-running must not duplicate the backfilled revision.
	require.NoError(t, Migrate(db))
	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM form_revisions`).Scan(&n))
	assert.Equal(t, 1, n)
}
