// Package statestore keeps saved state containers in a SQL database.
//
// The default driver is the pure Go SQLite driver. "duckdb" works too when
// the binary links github.com/marcboeker/go-duckdb.
package statestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/tliron/commonlog"
	_ "modernc.org/sqlite"

	"github.com/chazu/scriptbridge/errs"
)

var log = commonlog.GetLogger("scriptbridge.statestore")

// Entry describes one stored state.
type Entry struct {
	Name    string
	Size    int
	Updated time.Time
}

// Store is a named blob table.
type Store struct {
	db     *sql.DB
	driver string
}

// driverName maps a configured store type to its database/sql driver.
func driverName(kind string) (string, error) {
	switch kind {
	case "", "sqlite", "sqlite3":
		return "sqlite", nil
	case "duckdb":
		return "duckdb", nil
	}
	return "", fmt.Errorf("unsupported store driver: %s", kind)
}

// Open opens (creating if needed) the state table at dsn.
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	name, err := driverName(driver)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(name, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	if name == "sqlite" {
		if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting busy timeout: %w", err)
		}
		// In-memory databases are per connection.
		db.SetMaxOpenConns(1)
	}
	_, err = db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS states (
		name TEXT PRIMARY KEY,
		data BLOB NOT NULL,
		size INTEGER NOT NULL,
		updated BIGINT NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating table: %w", err)
	}
	log.Infof("state store open (%s)", name)
	return &Store{db: db, driver: name}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Put stores blob under name, replacing any previous state.
func (s *Store) Put(ctx context.Context, name string, blob []byte) error {
	if name == "" {
		return errs.New(errs.TypeMismatch, "statestore put", "empty state name")
	}
	if blob == nil {
		blob = []byte{}
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO states (name, data, size, updated) VALUES (?, ?, ?, ?)",
		name, blob, len(blob), time.Now().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("saving state %s: %w", name, err)
	}
	log.Debugf("put %s (%d bytes)", name, len(blob))
	return nil
}

// Get returns the state stored under name.
func (s *Store) Get(ctx context.Context, name string) ([]byte, error) {
	var blob []byte
	err := s.db.QueryRowContext(ctx, "SELECT data FROM states WHERE name = ?", name).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.New(errs.NotFound, "statestore get", "no state named %q", name)
	}
	if err != nil {
		return nil, fmt.Errorf("loading state %s: %w", name, err)
	}
	return blob, nil
}

// Delete removes name. It reports whether anything was removed.
func (s *Store) Delete(ctx context.Context, name string) (bool, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM states WHERE name = ?", name)
	if err != nil {
		return false, fmt.Errorf("deleting state %s: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// List returns all stored states ordered by name.
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT name, size, updated FROM states ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("listing states: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e       Entry
			updated int64
		)
		if err := rows.Scan(&e.Name, &e.Size, &updated); err != nil {
			return nil, err
		}
		e.Updated = time.Unix(0, updated)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Driver returns the database/sql driver name in use.
func (s *Store) Driver() string { return s.driver }
