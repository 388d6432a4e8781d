// Package sqlite implements the repository interfaces using SQLite as the storage backend.
//
// modernc.org/sqlite is a pure Go translation of SQLite, so no C toolchain is
// needed to build or cross-compile the server.
//
// DATABASE/SQL OVERVIEW:
//   - sql.DB     : a connection pool (NOT a single connection!)
//   - sql.Tx     : a transaction, pinned to one pooled connection until Commit/Rollback
//   - sql.Row    : a single result row
//
// Every repository call checks a connection out of the pool and returns it
// when the call finishes, on success and on failure alike. The pool size is
// configured on its own (DB_MAX_CONNS) and has nothing to do with how many
// HTTP requests are in flight.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	// Registers the "sqlite" driver with database/sql.
	_ "modernc.org/sqlite"
)

// MemoryPath opens a private in-memory database. Used by tests.
const MemoryPath = ":memory:"

// filePragmas are applied by the driver to every new connection in the pool.
// Running PRAGMA through db.Exec would only configure whichever connection
// happened to serve that one statement.
var filePragmas = []string{
	"busy_timeout(5000)",
	"journal_mode(WAL)",
	"foreign_keys(1)",
}

// DB wraps a sql.DB connection pool and provides repository methods.
type DB struct {
	conn *sql.DB
}

// New opens the SQLite database at dbPath, sizes the pool and runs migrations.
//
// dbPath examples:
//   - "data/anilink.db"  → file-based database (persistent)
//   - ":memory:"         → in-memory database (tests; lost on close)
//
// An in-memory database exists per connection, so its pool is always capped
// at one connection regardless of maxConns.
func New(dbPath string, maxConns int) (*DB, error) {
	if maxConns < 1 {
		return nil, fmt.Errorf("sqlite: pool size must be at least 1, got %d", maxConns)
	}

	dsn := dbPath
	if dbPath == MemoryPath {
		maxConns = 1
	} else {
		dsn = fileDSN(dbPath)
	}

	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	conn.SetMaxOpenConns(maxConns)
	conn.SetMaxIdleConns(maxConns)

	// sql.Open does not connect; Ping forces one connection so a bad path
	// fails here instead of on the first request.
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

func fileDSN(path string) string {
	params := make([]string, 0, len(filePragmas))
	for _, p := range filePragmas {
		params = append(params, "_pragma="+p)
	}
	return "file:" + path + "?" + strings.Join(params, "&")
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping checks that a connection can be obtained and used.
func (db *DB) Ping(ctx context.Context) error {
	if err := db.conn.PingContext(ctx); err != nil {
		return fmt.Errorf("sqlite: ping: %w", err)
	}
	return nil
}

// migrate creates the schema. CREATE ... IF NOT EXISTS makes it safe to run
// on every start.
//
// external_id is indexed but NOT unique: relinking an account adds a new row
// and lookups pick the row with the largest id.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS user_links (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			external_id INTEGER NOT NULL,
			username    TEXT NOT NULL,
			created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_user_links_external_id ON user_links(external_id, id);
	`)
	if err != nil {
		return fmt.Errorf("creating user_links table: %w", err)
	}

	return nil
}
