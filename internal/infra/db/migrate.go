package db

import (
	"database/sql"
)

func MigrateUp(db *sql.DB) error {
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS counting_windows (
    id           BIGSERIAL PRIMARY KEY,
    identifier   TEXT NOT NULL,
    kind         VARCHAR(12) NOT NULL,
    count        INTEGER NOT NULL DEFAULT 0,
    window_start TIMESTAMPTZ NOT NULL,
    window_end   TIMESTAMPTZ NOT NULL
)`); err != nil {
		return err
	}

	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS quota_periods (
    id              BIGSERIAL PRIMARY KEY,
    organization_id TEXT NOT NULL,
    period_key      CHAR(7) NOT NULL,
    used            BIGINT NOT NULL DEFAULT 0,
    quota_limit     BIGINT NOT NULL,
    created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    UNIQUE (organization_id, period_key)
)`); err != nil {
		return err
	}

	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS violations (
    id              UUID PRIMARY KEY,
    identifier      TEXT NOT NULL,
    kind            VARCHAR(12) NOT NULL,
    violation_type  VARCHAR(12) NOT NULL,
    attempted_count BIGINT NOT NULL,
    quota_limit     BIGINT NOT NULL,
    endpoint        TEXT NOT NULL DEFAULT '',
    user_agent      TEXT NOT NULL DEFAULT '',
    created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`); err != nil {
		return err
	}

	indexes := []string{
		// Active-window lookup: WHERE identifier = ? AND kind = ? AND window_end > ?
		`CREATE INDEX IF NOT EXISTS idx_counting_windows_lookup ON counting_windows(identifier, kind, window_end DESC)`,
		// Retention sweep: WHERE window_end < ?
		`CREATE INDEX IF NOT EXISTS idx_counting_windows_window_end ON counting_windows(window_end)`,
		// Recent violations per identifier
		`CREATE INDEX IF NOT EXISTS idx_violations_identifier_created_at ON violations(identifier, created_at DESC)`,
		// Top-violators aggregation and retention sweep scan by created_at
		`CREATE INDEX IF NOT EXISTS idx_violations_created_at ON violations(created_at DESC)`,
		// Per-type stats: WHERE created_at >= ? AND violation_type = ?
		`CREATE INDEX IF NOT EXISTS idx_violations_type_created_at ON violations(violation_type, created_at DESC)`,
	}
	for _, idx := range indexes {
		if _, err := db.Exec(idx); err != nil {
			return err
		}
	}

	// Enum-like guards on the kind/type columns. Errors are ignored when
	// the constraint already exists.
	_, _ = db.Exec(`
DO $$
BEGIN
    IF NOT EXISTS (
        SELECT 1 FROM pg_constraint
        WHERE conname = 'chk_counting_windows_kind'
    ) THEN
        ALTER TABLE counting_windows ADD CONSTRAINT chk_counting_windows_kind
        CHECK (kind IN ('IP', 'USER'));
    END IF;
END $$;
`)
	_, _ = db.Exec(`
DO $$
BEGIN
    IF NOT EXISTS (
        SELECT 1 FROM pg_constraint
        WHERE conname = 'chk_violations_type'
    ) THEN
        ALTER TABLE violations ADD CONSTRAINT chk_violations_type
        CHECK (violation_type IN ('ip_rate', 'user_rate', 'quota'));
    END IF;
END $$;
`)

	return nil
}

// MigrateDown rolls back the database schema.
// Use with caution: this will delete all enforcement data, including quota
// periods, which are otherwise never deleted.
func MigrateDown(db *sql.DB) error {
	dropStatements := []string{
		`DROP TABLE IF EXISTS violations`,
		`DROP TABLE IF EXISTS counting_windows`,
		`DROP TABLE IF EXISTS quota_periods`,
	}

	for _, stmt := range dropStatements {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}

	return nil
}
