package mirror

import (
	"context"
)

// Storage is a secondary destination for metadata snapshots. Keys are
// slash-separated relative paths mirroring the local export tree.
type Storage interface {
	// Write stores snapshot bytes under the given key, overwriting.
	Write(ctx context.Context, key string, data []byte) error

	// Read retrieves the snapshot for the given key.
	// Returns os.ErrNotExist if the key does not exist.
	Read(ctx context.Context, key string) ([]byte, error)

	// List returns keys matching the given prefix, sorted ascending.
	List(ctx context.Context, prefix string) ([]string, error)

	// Close releases any resources held by the storage backend.
	Close() error
}
