package store

// migration represents a single schema migration step.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version    INTEGER NOT NULL,
	applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS actions (
	id          TEXT PRIMARY KEY,
	session_id  TEXT NOT NULL DEFAULT '',
	kind        TEXT NOT NULL CHECK(kind IN ('ListMail', 'ReadMail', 'SendMail', 'DeleteMail')),
	target      TEXT NOT NULL DEFAULT '',
	ok          INTEGER NOT NULL DEFAULT 0 CHECK(ok IN (0, 1)),
	outcome     TEXT NOT NULL DEFAULT '',
	duration_ms INTEGER NOT NULL DEFAULT 0,
	created_at  DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_actions_session_id ON actions(session_id);
CREATE INDEX IF NOT EXISTS idx_actions_created_at ON actions(created_at);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
}
