package store

// SchemaVersion is the current database schema version.
const SchemaVersion = 2

// sqliteSchema creates the SQLite schema.
const sqliteSchema = `
CREATE TABLE IF NOT EXISTS jailed_players (
    subject_id TEXT PRIMARY KEY,
    display_name TEXT NOT NULL,
    reason TEXT,
    confined_at INTEGER NOT NULL,
    confined_by TEXT,
    original_location TEXT,
    inventory_backup TEXT,
    armor_backup TEXT,
    release_requested_at INTEGER,
    restored_at INTEGER
);

CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at INTEGER NOT NULL
);
`

// postgresSchema creates the PostgreSQL schema.
const postgresSchema = `
CREATE TABLE IF NOT EXISTS jailed_players (
    subject_id TEXT PRIMARY KEY,
    display_name TEXT NOT NULL,
    reason TEXT,
    confined_at BIGINT NOT NULL,
    confined_by TEXT,
    original_location TEXT,
    inventory_backup TEXT,
    armor_backup TEXT,
    release_requested_at BIGINT,
    restored_at BIGINT
);

CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at BIGINT NOT NULL
);
`

// dialect holds the statements that differ between SQL engines.
type dialect struct {
	name          string
	schema        string
	insertVersion string
	getVersion    string
	save          string
	get           string
	exists        string
	remove        string
	list          string
	markReleasing string
	markRestored  string

	// migrations upgrade an existing database; the key is the version the
	// statement upgrades to.
	migrations map[int]string
}

const recordColumns = `subject_id, display_name, reason, confined_at, confined_by,
		original_location, inventory_backup, armor_backup, release_requested_at, restored_at`

var sqliteDialect = dialect{
	name:          "sqlite",
	schema:        sqliteSchema,
	insertVersion: `INSERT INTO schema_version (version, applied_at) VALUES (?, ?) ON CONFLICT(version) DO NOTHING`,
	getVersion:    `SELECT version FROM schema_version ORDER BY version DESC LIMIT 1`,
	save: `
		INSERT INTO jailed_players (` + recordColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(subject_id) DO UPDATE SET
			display_name = excluded.display_name,
			reason = excluded.reason,
			confined_at = excluded.confined_at,
			confined_by = excluded.confined_by,
			original_location = excluded.original_location,
			inventory_backup = excluded.inventory_backup,
			armor_backup = excluded.armor_backup,
			release_requested_at = excluded.release_requested_at,
			restored_at = excluded.restored_at
	`,
	get:           `SELECT ` + recordColumns + ` FROM jailed_players WHERE subject_id = ?`,
	exists:        `SELECT 1 FROM jailed_players WHERE subject_id = ?`,
	remove:        `DELETE FROM jailed_players WHERE subject_id = ?`,
	list:          `SELECT subject_id FROM jailed_players ORDER BY subject_id`,
	markReleasing: `UPDATE jailed_players SET release_requested_at = ? WHERE subject_id = ?`,
	markRestored:  `UPDATE jailed_players SET restored_at = ? WHERE subject_id = ?`,
	migrations: map[int]string{
		2: `ALTER TABLE jailed_players ADD COLUMN restored_at INTEGER`,
	},
}

var postgresDialect = dialect{
	name:          "postgres",
	schema:        postgresSchema,
	insertVersion: `INSERT INTO schema_version (version, applied_at) VALUES ($1, $2) ON CONFLICT (version) DO NOTHING`,
	getVersion:    `SELECT version FROM schema_version ORDER BY version DESC LIMIT 1`,
	save: `
		INSERT INTO jailed_players (` + recordColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (subject_id) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			reason = EXCLUDED.reason,
			confined_at = EXCLUDED.confined_at,
			confined_by = EXCLUDED.confined_by,
			original_location = EXCLUDED.original_location,
			inventory_backup = EXCLUDED.inventory_backup,
			armor_backup = EXCLUDED.armor_backup,
			release_requested_at = EXCLUDED.release_requested_at,
			restored_at = EXCLUDED.restored_at
	`,
	get:           `SELECT ` + recordColumns + ` FROM jailed_players WHERE subject_id = $1`,
	exists:        `SELECT 1 FROM jailed_players WHERE subject_id = $1`,
	remove:        `DELETE FROM jailed_players WHERE subject_id = $1`,
	list:          `SELECT subject_id FROM jailed_players ORDER BY subject_id`,
	markReleasing: `UPDATE jailed_players SET release_requested_at = $1 WHERE subject_id = $2`,
	markRestored:  `UPDATE jailed_players SET restored_at = $1 WHERE subject_id = $2`,
	migrations: map[int]string{
		2: `ALTER TABLE jailed_players ADD COLUMN IF NOT EXISTS restored_at BIGINT`,
	},
}
