package repository

import "context"

// DraftStore persists one raw draft value per storage key.
// Get returns (nil, nil) when nothing is stored at key.
type DraftStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}
