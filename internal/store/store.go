package store

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

// Drivers accepted by Open. "sqlite" is the pure-Go modernc driver,
// "sqlite3" is the cgo mattn driver.
const (
	DriverModernc = "sqlite"
	DriverMattn   = "sqlite3"
)

// Store is the relational collaborator behind the companion pipeline.
// It only performs point reads, ordered/limited reads, inserts and updates;
// no operation spans more than one table.
type Store struct {
	db     *sql.DB
	driver string
	now    func() time.Time
}

// Open opens (or creates) a SQLite database at the given path and applies
// migrations.
func Open(driver, dbPath string) (*Store, error) {
	switch driver {
	case "":
		driver = DriverModernc
	case DriverModernc, DriverMattn:
	default:
		return nil, &Error{Op: "open", Err: fmt.Errorf("unsupported driver %q", driver)}
	}

	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, &Error{Op: "open", Err: err}
	}

	db, err := sql.Open(driver, dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, &Error{Op: "open", Err: err}
	}

	s := &Store{db: db, driver: driver, now: time.Now}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

func (s *Store) migrate() error {
	if _, err := s.db.Exec(schemaVersionTable); err != nil {
		return &Error{Op: "migrate", Table: "schema_version", Err: err}
	}
	current, err := s.SchemaVersion(context.Background())
	if err != nil {
		return err
	}
	if current >= len(migrations) {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return &Error{Op: "migrate", Err: err}
	}
	defer tx.Rollback()

	for _, stmt := range migrations[current:] {
		if _, err := tx.Exec(stmt); err != nil {
			return &Error{Op: "migrate", Err: err}
		}
	}
	if _, err := tx.Exec(`INSERT INTO schema_version (version) VALUES (?)`, len(migrations)); err != nil {
		return &Error{Op: "migrate", Table: "schema_version", Err: err}
	}
	if err := tx.Commit(); err != nil {
		return &Error{Op: "migrate", Err: err}
	}
	log.Printf("[store] schema migrated from version %d to %d", current, len(migrations))
	return nil
}

// SchemaVersion returns the number of migrations applied, 0 for a new database.
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	var v int
	err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_version`).Scan(&v)
	return v, wrap("select", "schema_version", err)
}

// Driver returns the database/sql driver name in use.
func (s *Store) Driver() string { return s.driver }

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return wrap("ping", "", s.db.PingContext(ctx))
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) timestamp() string {
	return formatTime(s.now())
}
