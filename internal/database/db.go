package database

import (
	"database/sql"
	"fmt"

	"github.com/jonboulle/clockwork"
	_ "modernc.org/sqlite"
)

// DB is the SQLite sample store. Timestamps are assigned from the clock at
// insert time and stored as Unix milliseconds.
type DB struct {
	*sql.DB
	clock clockwork.Clock
}

// New opens a SQLite database with a bounded connection pool
func New(path string, maxConns int, clock clockwork.Clock) (*DB, error) {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	// WAL lets the samplers write while the dashboard reads; busy_timeout
	// covers the short window where two writers meet.
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("database open failed: %w", err)
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(maxConns)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	return &DB{DB: db, clock: clock}, nil
}

// InitSchema creates all necessary tables
func (db *DB) InitSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS pings (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        destination TEXT NOT NULL,
        recorded_at INTEGER NOT NULL, -- unix milliseconds, UTC
        pingtime REAL,
        ttl INTEGER,
        bytes_received INTEGER
    );

    CREATE INDEX IF NOT EXISTS idx_pings_recorded_at ON pings(recorded_at);
    CREATE INDEX IF NOT EXISTS idx_pings_destination_recorded_at ON pings(destination, recorded_at);

    CREATE TABLE IF NOT EXISTS traffic (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        recorded_at INTEGER NOT NULL,
        upload REAL NOT NULL,
        download REAL NOT NULL
    );

    CREATE INDEX IF NOT EXISTS idx_traffic_recorded_at ON traffic(recorded_at);
    `

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("schema creation failed: %w", err)
	}

	return nil
}
