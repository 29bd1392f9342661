package shared

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// NewDatabase opens a connection to a SQLite database at the specified path.
// The path can be ":memory:" for an in-memory database.
// Returns an open database connection or an error if connection fails.
func NewDatabase(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// each in-memory connection is its own database
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	return db, nil
}

// ConfigureDatabase sets connection pool settings for the database.
// Recommended for production use to limit connections and improve performance.
func ConfigureDatabase(db *sql.DB, maxOpenConns, maxIdleConns int) {
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
}

// Databases holds the two handles opened against the shared schema.
//
// Tokens is used only by the OAuth token cache, which is called synchronously from the HTTP transport.
// Registry serves the device registry on the command worker and the cache refresher.
type Databases struct {
	Tokens   *sql.DB
	Registry *sql.DB
}

// OpenDatabases opens both handles against path and runs migrations once through the registry handle.
func OpenDatabases(cfg DatabaseConfig) (*Databases, error) {
	registry, err := NewDatabase(cfg.Path)
	if err != nil {
		return nil, err
	}
	ConfigureDatabase(registry, cfg.MaxOpenConns, cfg.MaxIdleConns)

	if err := RunMigrations(registry); err != nil {
		registry.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	tokens, err := NewDatabase(cfg.Path)
	if err != nil {
		registry.Close()
		return nil, err
	}
	ConfigureDatabase(tokens, 1, 1)

	return &Databases{Tokens: tokens, Registry: registry}, nil
}

// Close closes both handles.
func (d *Databases) Close() error {
	errTokens := d.Tokens.Close()
	errRegistry := d.Registry.Close()
	if errTokens != nil {
		return errTokens
	}
	return errRegistry
}

// dsn enables WAL and a busy timeout for file databases so the two handles can share the file.
func dsn(path string) string {
	if path == ":memory:" {
		return path
	}
	return "file:" + path + "?_journal_mode=WAL&_busy_timeout=5000"
}
