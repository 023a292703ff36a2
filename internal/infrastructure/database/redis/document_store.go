package redis

import (
	"context"
	stderrors "errors"

	"github.com/redis/go-redis/v9"

	"github.com/turtacn/KinKeep/pkg/errors"
)

// DocumentStore keeps raw document bytes under plain string keys.
type DocumentStore struct {
	client *Client
}

// NewDocumentStore returns a DocumentStore backed by client.
func NewDocumentStore(client *Client) *DocumentStore {
	return &DocumentStore{client: client}
}

func (s *DocumentStore) Get(ctx context.Context, key string) ([]byte, error) {
	raw, err := s.client.Get(ctx, s.client.Key(key)).Bytes()
	if stderrors.Is(err, redis.Nil) {
		return nil, errors.New(errors.ErrCodeDocumentNotFound, "key not found").WithDetail(key)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeCacheError, "redis GET failed")
	}
	return raw, nil
}

// Put stores value without expiry.
func (s *DocumentStore) Put(ctx context.Context, key string, value []byte) error {
	if err := s.client.Set(ctx, s.client.Key(key), value, 0).Err(); err != nil {
		return errors.Wrap(err, errors.ErrCodeCacheError, "redis SET failed")
	}
	return nil
}

func (s *DocumentStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx)
}
