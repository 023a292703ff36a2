package postgres

import (
	"context"
	"database/sql"
	stderrors "errors"

	"github.com/turtacn/KinKeep/pkg/errors"
)

// DocumentStore keeps documents in the family_documents table, one row per key.
type DocumentStore struct {
	conn *Connection
}

func NewDocumentStore(conn *Connection) *DocumentStore {
	return &DocumentStore{conn: conn}
}

func (s *DocumentStore) Get(ctx context.Context, key string) ([]byte, error) {
	var payload []byte
	err := s.conn.DB().QueryRowContext(ctx,
		`SELECT payload FROM family_documents WHERE doc_key = $1`, key).Scan(&payload)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.New(errors.ErrCodeDocumentNotFound, "key not found").WithDetail(key)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to read document")
	}
	return payload, nil
}

// Put upserts the row. The payload column is JSONB, so values that are not
// valid JSON are rejected by the server.
func (s *DocumentStore) Put(ctx context.Context, key string, value []byte) error {
	_, err := s.conn.DB().ExecContext(ctx,
		`INSERT INTO family_documents (doc_key, payload, updated_at) VALUES ($1, $2, NOW())
		 ON CONFLICT (doc_key) DO UPDATE SET payload = EXCLUDED.payload, updated_at = NOW()`,
		key, string(value))
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to write document")
	}
	return nil
}

func (s *DocumentStore) Ping(ctx context.Context) error {
	return s.conn.HealthCheck(ctx)
}
