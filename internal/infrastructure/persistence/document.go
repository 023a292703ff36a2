// Package persistence adapts a key-value backend to the member.Repository
// port. The whole family is stored as one JSON document under a fixed key.
package persistence

import (
	"context"
	"encoding/json"

	"github.com/turtacn/KinKeep/internal/domain/member"
	"github.com/turtacn/KinKeep/internal/infrastructure/monitoring/logging"
	pkgerrors "github.com/turtacn/KinKeep/pkg/errors"
)

// KeyValueStore is a durable key-value namespace. Get must return an error
// satisfying pkgerrors.IsNotFound when the key has never been written.
type KeyValueStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
}

// Pinger is implemented by backends that can report their reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// DocumentRepository implements member.Repository over a KeyValueStore.
type DocumentRepository struct {
	kv     KeyValueStore
	key    string
	logger logging.Logger
}

var _ member.Repository = (*DocumentRepository)(nil)

// NewDocumentRepository stores the document under key in kv.
func NewDocumentRepository(kv KeyValueStore, key string, logger logging.Logger) *DocumentRepository {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &DocumentRepository{kv: kv, key: key, logger: logger.Named("document")}
}

// Key returns the storage key of the document.
func (r *DocumentRepository) Key() string { return r.key }

// Load reads the document. A missing key or an undecodable value yields an
// empty document; backend failures are returned.
func (r *DocumentRepository) Load(ctx context.Context) (*member.Document, error) {
	raw, err := r.kv.Get(ctx, r.key)
	if err != nil {
		if pkgerrors.IsNotFound(err) {
			return member.NewDocument(), nil
		}
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrCodeStorageError, "failed to read family document").
			WithDetail("key=" + r.key)
	}
	if len(raw) == 0 {
		return member.NewDocument(), nil
	}

	doc := member.NewDocument()
	if err := json.Unmarshal(raw, doc); err != nil {
		r.logger.Warn("family document is not valid JSON, treating as empty",
			logging.String("key", r.key), logging.Int("bytes", len(raw)), logging.Err(err))
		return member.NewDocument(), nil
	}
	if doc.Members == nil {
		doc.Members = []member.Member{}
	}
	for i := range doc.Members {
		if doc.Members[i].Memories == nil {
			doc.Members[i].Memories = []member.Memory{}
		}
	}
	return doc, nil
}

// Save replaces the stored document with doc.
func (r *DocumentRepository) Save(ctx context.Context, doc *member.Document) error {
	if doc == nil {
		doc = member.NewDocument()
	}
	if doc.Members == nil {
		doc.Members = []member.Member{}
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return pkgerrors.Wrap(err, pkgerrors.ErrCodeSerialization, "failed to encode family document")
	}
	if err := r.kv.Put(ctx, r.key, raw); err != nil {
		return pkgerrors.Wrap(err, pkgerrors.ErrCodeStorageError, "failed to write family document").
			WithDetail("key=" + r.key)
	}
	r.logger.Debug("family document saved",
		logging.String("key", r.key), logging.Int("members", len(doc.Members)), logging.Int("bytes", len(raw)))
	return nil
}

// Ping checks the backend when it supports it.
func (r *DocumentRepository) Ping(ctx context.Context) error {
	if p, ok := r.kv.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}
