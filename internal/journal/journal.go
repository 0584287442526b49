package journal

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Event is one journaled device event, feeding the diagnostics page.
type Event struct {
	ID        int64     `json:"id"`
	Kind      string    `json:"kind"`
	ScreenID  string    `json:"screen_id,omitempty"`
	Detail    string    `json:"detail"`
	CreatedAt time.Time `json:"created_at"`
}

// Event kinds.
const (
	KindCapture   = "capture"
	KindNavigate  = "navigate"
	KindReconnect = "reconnect"
	KindHotplug   = "hotplug"
	KindPatch     = "patch"
	KindReboot    = "reboot"
)

// Journal is the local event log. Write failures are logged and
// swallowed: the journal is a diagnostic aid, never a reason to fail
// the operation being journaled.
type Journal struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open creates (if needed) and opens the journal database.
func Open(path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal database: %w", err)
	}

	schema := `CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		kind TEXT NOT NULL,
		screen_id TEXT NOT NULL DEFAULT '',
		detail TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_events_created_at ON events(created_at);`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize journal schema: %w", err)
	}

	return &Journal{
		db:     db,
		logger: slog.With("component", "journal"),
	}, nil
}

// Record appends an event.
func (j *Journal) Record(kind, screenID, detail string) {
	_, err := j.db.Exec(
		`INSERT INTO events (kind, screen_id, detail, created_at) VALUES (?, ?, ?, ?)`,
		kind, screenID, detail, time.Now().UTC(),
	)
	if err != nil {
		j.logger.Warn("failed to record event", "kind", kind, "error", err)
	}
}

// Recent returns the newest events, newest first.
func (j *Journal) Recent(limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := j.db.Query(
		`SELECT id, kind, screen_id, detail, created_at FROM events ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.Kind, &e.ScreenID, &e.Detail, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// Prune deletes events older than the retention window. Returns the
// number of rows removed.
func (j *Journal) Prune(olderThan time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	res, err := j.db.Exec(`DELETE FROM events WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune events: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	return j.db.Close()
}
