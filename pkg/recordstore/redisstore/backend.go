package redisstore

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

// Backend keeps each collection snapshot under a single string key.
// SET replaces the value atomically.
type Backend struct {
	client redis.UniversalClient
	prefix string
}

// New returns a backend using keys of the form <prefix><collection>.
func New(client redis.UniversalClient, prefix string) *Backend {
	if client == nil {
		panic(ErrNilClient)
	}
	return &Backend{client: client, prefix: prefix}
}

// Key returns the redis key holding a collection.
func (b *Backend) Key(collection string) string {
	return b.prefix + collection
}

func (b *Backend) Load(ctx context.Context, collection string) ([]byte, error) {
	val, err := b.client.Get(ctx, b.Key(collection)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return val, nil
}

func (b *Backend) Save(ctx context.Context, collection string, snapshot []byte) error {
	return b.client.Set(ctx, b.Key(collection), snapshot, 0).Err()
}
