// Package db is the local activity cache: a sqlite file holding the last
// known timeline window and version cursor so a restarted client starts
// warm instead of empty. The backend remains the source of truth; the
// cache is write-behind and safe to delete.
package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/marcus/tl/internal/models"
	_ "modernc.org/sqlite"
)

const dbFile = "cache.db"

// DB wraps the cache database connection.
type DB struct {
	conn *sql.DB
	path string
}

const schema = `
CREATE TABLE IF NOT EXISTS activities (
	id               TEXT PRIMARY KEY,
	title            TEXT NOT NULL,
	description      TEXT NOT NULL DEFAULT '',
	start_time       INTEGER NOT NULL,
	end_time         INTEGER NOT NULL,
	event_summaries  TEXT NOT NULL DEFAULT '[]',
	source_event_ids TEXT NOT NULL DEFAULT '[]',
	version          INTEGER NOT NULL,
	date             TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_activities_date ON activities(date DESC, start_time DESC);

CREATE TABLE IF NOT EXISTS sync_state (
	id         INTEGER PRIMARY KEY CHECK (id = 1),
	cursor     INTEGER NOT NULL DEFAULT 0,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
`

// DefaultPath returns the cache location under the user's data directory.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".local", "share", "tl", dbFile), nil
}

// Open opens (creating if necessary) the cache database at path.
func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}

	// WAL lets the TUI read while a merge is being persisted.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA busy_timeout=500"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	conn.Exec("PRAGMA synchronous=NORMAL")

	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("init cache schema: %w", err)
	}

	return &DB{conn: conn, path: path}, nil
}

// Close closes the underlying connection.
func (d *DB) Close() error {
	return d.conn.Close()
}

// Path returns the cache file location.
func (d *DB) Path() string { return d.path }

// SaveBuckets upserts every activity in the given window snapshot and
// records the cursor, in one transaction. Implements the sync core's
// Cache interface.
func (d *DB) SaveBuckets(buckets []models.DateBucket, cursor int64) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin cache save: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO activities (id, title, description, start_time, end_time, event_summaries, source_event_ids, version, date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			description = excluded.description,
			start_time = excluded.start_time,
			end_time = excluded.end_time,
			event_summaries = excluded.event_summaries,
			source_event_ids = excluded.source_event_ids,
			version = excluded.version,
			date = excluded.date`)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, b := range buckets {
		for _, a := range b.Activities {
			summaries, err := json.Marshal(a.EventSummaries)
			if err != nil {
				return fmt.Errorf("marshal summaries %s: %w", a.ID, err)
			}
			sources, err := json.Marshal(a.SourceEventIDs)
			if err != nil {
				return fmt.Errorf("marshal source ids %s: %w", a.ID, err)
			}
			if _, err := stmt.Exec(a.ID, a.Title, a.Description, a.StartTime, a.EndTime,
				string(summaries), string(sources), a.Version, b.Date); err != nil {
				return fmt.Errorf("upsert activity %s: %w", a.ID, err)
			}
		}
	}

	if _, err := tx.Exec(`
		INSERT INTO sync_state (id, cursor, updated_at) VALUES (1, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET cursor = excluded.cursor, updated_at = CURRENT_TIMESTAMP`,
		cursor); err != nil {
		return fmt.Errorf("save cursor: %w", err)
	}

	return tx.Commit()
}

// LoadWindow rebuilds date buckets from the cache, newest dates first,
// covering at most maxBuckets distinct dates. Returns the persisted
// cursor alongside.
func (d *DB) LoadWindow(maxBuckets int) ([]models.DateBucket, int64, error) {
	rows, err := d.conn.Query(`
		SELECT id, title, description, start_time, end_time, event_summaries, source_event_ids, version, date
		FROM activities
		WHERE date IN (SELECT DISTINCT date FROM activities ORDER BY date DESC LIMIT ?)
		ORDER BY date DESC, start_time DESC`, maxBuckets)
	if err != nil {
		return nil, 0, fmt.Errorf("query activities: %w", err)
	}
	defer rows.Close()

	var buckets []models.DateBucket
	for rows.Next() {
		var a models.ActivityRecord
		var summaries, sources, date string
		if err := rows.Scan(&a.ID, &a.Title, &a.Description, &a.StartTime, &a.EndTime,
			&summaries, &sources, &a.Version, &date); err != nil {
			return nil, 0, fmt.Errorf("scan activity: %w", err)
		}
		if err := json.Unmarshal([]byte(summaries), &a.EventSummaries); err != nil {
			return nil, 0, fmt.Errorf("parse summaries %s: %w", a.ID, err)
		}
		if err := json.Unmarshal([]byte(sources), &a.SourceEventIDs); err != nil {
			return nil, 0, fmt.Errorf("parse source ids %s: %w", a.ID, err)
		}

		if len(buckets) == 0 || buckets[len(buckets)-1].Date != date {
			buckets = append(buckets, models.DateBucket{Date: date})
		}
		last := len(buckets) - 1
		buckets[last].Activities = append(buckets[last].Activities, a)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("rows iteration: %w", err)
	}

	cursor, err := d.LoadCursor()
	if err != nil {
		return nil, 0, err
	}
	return buckets, cursor, nil
}

// LoadCursor returns the persisted cursor, 0 when none was saved yet.
func (d *DB) LoadCursor() (int64, error) {
	var cursor int64
	err := d.conn.QueryRow(`SELECT cursor FROM sync_state WHERE id = 1`).Scan(&cursor)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("load cursor: %w", err)
	}
	return cursor, nil
}

// Clear wipes all cached activities and resets the cursor. Called by the
// destructive-reset recovery strategy.
func (d *DB) Clear() error {
	tx, err := d.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin cache clear: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM activities`); err != nil {
		return fmt.Errorf("clear activities: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM sync_state`); err != nil {
		return fmt.Errorf("clear sync state: %w", err)
	}
	return tx.Commit()
}
