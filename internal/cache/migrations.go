package cache

// migration is a single versioned schema change.
type migration struct {
	version int
	sql     string
}

// migrations are applied in order; each bumps schema_version.
var migrations = []migration{
	{
		version: 1,
		sql: `
			CREATE TABLE IF NOT EXISTS schema_version (
				version INTEGER PRIMARY KEY
			);

			CREATE TABLE IF NOT EXISTS tasks (
				id            TEXT PRIMARY KEY,
				title         TEXT NOT NULL,
				description   TEXT NOT NULL DEFAULT '',
				status        TEXT NOT NULL,
				priority      TEXT NOT NULL,
				assignee_id   TEXT NOT NULL DEFAULT '',
				assignee_name TEXT NOT NULL DEFAULT '',
				creator_id    TEXT NOT NULL DEFAULT '',
				created_at    TEXT NOT NULL,
				updated_at    TEXT NOT NULL,
				position      INTEGER NOT NULL DEFAULT 0
			);

			CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);

			CREATE TABLE IF NOT EXISTS snapshot_meta (
				key   TEXT PRIMARY KEY,
				value TEXT NOT NULL
			);

			INSERT INTO schema_version (version) VALUES (1);
		`,
	},
}
