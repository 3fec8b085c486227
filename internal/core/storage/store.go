// Package storage persists owner snapshots between runs.
package storage

import (
	"context"
	"errors"
)

var ErrClosed = errors.New("storage: store is closed")

// SnapshotStore keeps one opaque snapshot per owner id.
type SnapshotStore interface {
	Save(ctx context.Context, ownerID string, data []byte) error
	// Load returns (nil, false, nil) when no snapshot exists.
	Load(ctx context.Context, ownerID string) ([]byte, bool, error)
	Delete(ctx context.Context, ownerID string) error
	// Owners lists the ids that have a snapshot.
	Owners(ctx context.Context) ([]string, error)
	Close() error
}
