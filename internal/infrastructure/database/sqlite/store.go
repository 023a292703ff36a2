// Package sqlite stores documents in a single-table SQLite database using the
// pure Go modernc driver.
package sqlite

import (
	"context"
	"database/sql"
	stderrors "errors"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"github.com/turtacn/KinKeep/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/KinKeep/pkg/errors"
)

const schema = `CREATE TABLE IF NOT EXISTS documents (
	key TEXT PRIMARY KEY,
	payload BLOB NOT NULL,
	updated_at INTEGER NOT NULL DEFAULT (strftime('%s','now'))
)`

// Store is a key-value table inside one SQLite file.
type Store struct {
	db     *sql.DB
	path   string
	logger logging.Logger
}

// Open opens or creates the database at path.
func Open(path string, log logging.Logger) (*Store, error) {
	if path == "" {
		path = "kinkeep.db"
	}
	if log == nil {
		log = logging.NewNopLogger()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !stderrors.Is(err, os.ErrExist) {
		return nil, errors.Wrap(err, errors.ErrCodeStorageError, "failed to create database directory")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to open sqlite")
	}
	// A single connection keeps writers from tripping SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	return newStore(db, path, log)
}

func newStore(db *sql.DB, path string, log logging.Logger) (*Store, error) {
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to create documents table")
	}
	log.Info("SQLite store opened", logging.String("path", path))
	return &Store{db: db, path: path, logger: log}, nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM documents WHERE key = ?`, key).Scan(&payload)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.New(errors.ErrCodeDocumentNotFound, "key not found").WithDetail(key)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to read document")
	}
	return payload, nil
}

func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (key, payload, updated_at) VALUES (?, ?, strftime('%s','now'))
		 ON CONFLICT(key) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`,
		key, value)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to write document")
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}
