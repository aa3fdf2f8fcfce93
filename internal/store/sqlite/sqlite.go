package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/vovakirdan/formrelay-server/internal/record"
)

const schema = `
CREATE TABLE IF NOT EXISTS messages (
	id       TEXT PRIMARY KEY,
	username TEXT NOT NULL,
	message  TEXT NOT NULL,
	date     TEXT NOT NULL
);
`

// SQLiteStore implements store.Store for SQLite. It exists for local
// development and tests, where running a MongoDB instance is overkill.
type SQLiteStore struct {
	db *sql.DB
}

// New creates a new SQLite store and applies the messages schema.
// dbPath is the path to the SQLite database file (":memory:" works).
func New(dbPath string) (*SQLiteStore, error) {
	return NewWithSetup(dbPath, func(db *sql.DB) error {
		_, err := db.Exec(schema)
		return err
	})
}

// NewWithSetup creates a new SQLite store and runs a setup function.
// Useful for tests that need a custom schema.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection; this also keeps an
	// in-memory database alive across calls.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// InsertMessage writes one record as a row.
func (s *SQLiteStore) InsertMessage(ctx context.Context, rec *record.Record) error {
	query := `
		INSERT INTO messages (id, username, message, date)
		VALUES (?, ?, ?, ?)
	`
	if _, err := s.db.ExecContext(ctx, query, rec.ID, rec.Username, rec.Message, rec.Date); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// ListMessages returns all persisted records in insertion order.
func (s *SQLiteStore) ListMessages(ctx context.Context) ([]*record.Record, error) {
	query := `
		SELECT id, username, message, date
		FROM messages
		ORDER BY rowid
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var records []*record.Record
	for rows.Next() {
		rec := &record.Record{}
		if err := rows.Scan(&rec.ID, &rec.Username, &rec.Message, &rec.Date); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Ping verifies the database file is usable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
