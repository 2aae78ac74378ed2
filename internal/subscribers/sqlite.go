package subscribers

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const schema = `CREATE TABLE IF NOT EXISTS subscribers (
	phone      TEXT PRIMARY KEY,
	name       TEXT NOT NULL DEFAULT '',
	approved   INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL
)`

// Directory reads approved subscribers from a SQLite database. Registration
// and approval are done by the admin tooling that owns the same file.
type Directory struct {
	db *sql.DB
}

// Open opens (or creates) the subscriber database at path.
// Pass ":memory:" for an in-memory database (used by tests).
func Open(path string) (*Directory, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Single connection; also keeps ":memory:" pointing at one database.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating subscribers table: %w", err)
	}

	return &Directory{db: db}, nil
}

// Close closes the underlying database connection.
func (d *Directory) Close() error {
	return d.db.Close()
}

// ApprovedRecipients lists the phone numbers of approved subscribers, oldest first.
func (d *Directory) ApprovedRecipients(ctx context.Context) ([]string, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT phone FROM subscribers WHERE approved = 1 ORDER BY created_at, phone`)
	if err != nil {
		return nil, fmt.Errorf("querying subscribers: %w", err)
	}
	defer rows.Close()

	var phones []string
	for rows.Next() {
		var phone string
		if err := rows.Scan(&phone); err != nil {
			return nil, fmt.Errorf("scanning subscriber: %w", err)
		}
		phones = append(phones, phone)
	}
	return phones, rows.Err()
}
