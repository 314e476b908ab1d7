package eventlog

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// SQLiteSink stores records in an SQLite table keyed by log index.
type SQLiteSink struct {
	db *sql.DB
}

// OpenSQLite opens or creates the database at path.
func OpenSQLite(path string) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS events (
		idx  INTEGER PRIMARY KEY,
		kind INTEGER NOT NULL,
		data BLOB NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating table: %w", err)
	}
	return &SQLiteSink{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteSink) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Write implements Sink.
func (s *SQLiteSink) Write(index int, kind Kind, record []byte) error {
	_, err := s.db.Exec(
		"INSERT OR REPLACE INTO events (idx, kind, data) VALUES (?, ?, ?)",
		index, int64(kind), record,
	)
	if err != nil {
		return fmt.Errorf("saving event: %w", err)
	}
	return nil
}

// Count returns the number of stored records.
func (s *SQLiteSink) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM events").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting events: %w", err)
	}
	return n, nil
}

// CountKind returns the number of stored records of one kind.
func (s *SQLiteSink) CountKind(ctx context.Context, kind Kind) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM events WHERE kind = ?", int64(kind)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting events: %w", err)
	}
	return n, nil
}

// Restore rebuilds a log from the stored records in index order. The
// returned log mirrors further appends to sinks.
func (s *SQLiteSink) Restore(ctx context.Context, sinks ...Sink) (*Log, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT data FROM events ORDER BY idx")
	if err != nil {
		return nil, fmt.Errorf("querying events: %w", err)
	}
	defer rows.Close()

	l := New(sinks...)
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}
		rec, n, err := Unmarshal(data)
		if err != nil {
			return nil, fmt.Errorf("event %d: %w", len(l.offsets), err)
		}
		if n != len(data) {
			return nil, fmt.Errorf("event %d: %d trailing bytes", len(l.offsets), len(data)-n)
		}
		l.offsets = append(l.offsets, len(l.data))
		l.kinds = append(l.kinds, rec.Kind())
		l.data = append(l.data, data...)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating events: %w", err)
	}
	return l, nil
}
