package db

import (
	"database/sql"
	"errors"
	"fmt"
	"os"

	_ "github.com/lib/pq"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrAlreadyRunning = errors.New("job already has an open run")
	ErrNotRunning     = errors.New("no active job run found")
)

// Store is the single handle to the persisted Job/Run/Alert state. The HTTP
// handlers and the compliance poller share one Store; every read-then-write
// runs in a transaction so both writers agree on the open-run and alert
// dedup invariants.
type Store struct {
	db *sql.DB
}

func Open(connStr string) (*Store, error) {
	if connStr == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable not set")
	}

	conn, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}
	if err := conn.Ping(); err != nil {
		return nil, err
	}
	return &Store{db: conn}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate applies schema.sql. The schema is written to be idempotent, so
// this runs on every boot.
func (s *Store) Migrate(path string) error {
	sqlBytes, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read schema: %w", err)
	}
	if _, err := s.db.Exec(string(sqlBytes)); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
