package recordstore

import (
	"context"
	"maps"
	"slices"
	"sync"
)

// Backend persists whole collection snapshots.
// Save must replace the previous snapshot atomically: a reader never observes
// a partially written collection.
type Backend interface {
	// Load returns the last saved snapshot, or nil with no error when the
	// collection has never been saved.
	Load(ctx context.Context, collection string) ([]byte, error)
	Save(ctx context.Context, collection string, snapshot []byte) error
}

// MemoryBackend keeps snapshots in process memory. Useful for tests and
// ephemeral deployments.
type MemoryBackend struct {
	mu        sync.RWMutex
	snapshots map[string][]byte
}

// NewMemoryBackend returns an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{snapshots: make(map[string][]byte)}
}

func (b *MemoryBackend) Load(ctx context.Context, collection string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return slices.Clone(b.snapshots[collection]), nil
}

func (b *MemoryBackend) Save(ctx context.Context, collection string, snapshot []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.snapshots[collection] = slices.Clone(snapshot)
	return nil
}

// Collections lists the names of saved collections.
func (b *MemoryBackend) Collections() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return slices.Sorted(maps.Keys(b.snapshots))
}
