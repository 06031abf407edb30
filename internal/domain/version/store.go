package version

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// openStore opens (or creates) the version-history database. Any failure
// here is treated by the Tracker as "no durable store".
func openStore(path string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create version store dir: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open version store: %w", err)
	}

	if err := initTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("init version store: %w", err)
	}

	return db, nil
}

func initTables(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS current_versions (
			file_id TEXT PRIMARY KEY,
			version INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS history (
			file_id     TEXT NOT NULL,
			version     INTEGER NOT NULL,
			timestamp   TEXT NOT NULL,
			author      TEXT NOT NULL,
			change_kind TEXT NOT NULL,
			resource_id TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (file_id, version)
		);

		CREATE INDEX IF NOT EXISTS idx_history_file ON history(file_id, version);
	`)
	return err
}

// loadHistory reads the full store into memory.
func loadHistory(db *sql.DB) (map[string]int, map[string][]VersionInfo, error) {
	versions := make(map[string]int)
	history := make(map[string][]VersionInfo)

	rows, err := db.Query("SELECT file_id, version FROM current_versions")
	if err != nil {
		return nil, nil, fmt.Errorf("load current versions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var fileID string
		var v int
		if err := rows.Scan(&fileID, &v); err != nil {
			return nil, nil, fmt.Errorf("scan current version: %w", err)
		}
		versions[fileID] = v
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate current versions: %w", err)
	}

	histRows, err := db.Query(`
		SELECT file_id, version, timestamp, author, change_kind, resource_id, description
		FROM history
		ORDER BY file_id, version ASC
	`)
	if err != nil {
		return nil, nil, fmt.Errorf("load history: %w", err)
	}
	defer histRows.Close()

	for histRows.Next() {
		var fileID, ts, kind string
		var info VersionInfo
		if err := histRows.Scan(&fileID, &info.Version, &ts, &info.Author,
			&kind, &info.ResourceID, &info.Description); err != nil {
			return nil, nil, fmt.Errorf("scan history entry: %w", err)
		}

		info.ChangeKind = ChangeKind(kind)
		info.Timestamp, err = time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, nil, fmt.Errorf("parse history timestamp: %w", err)
		}

		history[fileID] = append(history[fileID], info)
	}
	if err := histRows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate history: %w", err)
	}

	return versions, history, nil
}

// persistChange writes the new current version and history entry in one
// transaction so the two never diverge on disk.
func persistChange(db *sql.DB, fileID string, info VersionInfo) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin version tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`
		INSERT INTO current_versions (file_id, version) VALUES (?, ?)
		ON CONFLICT(file_id) DO UPDATE SET version = excluded.version
	`, fileID, info.Version); err != nil {
		return fmt.Errorf("update current version: %w", err)
	}

	if _, err := tx.Exec(`
		INSERT INTO history (file_id, version, timestamp, author, change_kind, resource_id, description)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, fileID, info.Version, info.Timestamp.Format(time.RFC3339Nano),
		info.Author, string(info.ChangeKind), info.ResourceID, info.Description); err != nil {
		return fmt.Errorf("append history entry: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit version tx: %w", err)
	}
	return nil
}
