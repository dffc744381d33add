package driven

import (
	"context"

	"github.com/kernelkit/test-system-status/internal/domain/model"
)

// SnapshotStore defines the driven port for persisting the latest dashboard snapshot.
// Uses full replacement strategy: only the most recent snapshot is kept.
type SnapshotStore interface {
	// ReplaceSnapshot atomically replaces the stored snapshot with the given one.
	ReplaceSnapshot(ctx context.Context, snapshot model.Snapshot) error
	// GetLatest returns the stored snapshot, or nil if none has been saved yet.
	GetLatest(ctx context.Context) (*model.Snapshot, error)
}
