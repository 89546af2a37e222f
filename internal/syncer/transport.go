package syncer

import (
	"context"
	"time"

	"github.com/at-ishikawa/tango/internal/syncqueue"
)

//go:generate mockgen -source=transport.go -destination=../mocks/syncer/mock_transport.go -package=mock_syncer

type PushStatus string

const (
	// PushAccepted means the server stored the snapshot.
	PushAccepted PushStatus = "accepted"
	// PushConflict means the server holds a copy that is at least as new.
	PushConflict PushStatus = "conflict"
)

type PushResult struct {
	Status PushStatus
	// ServerUpdatedAt is the timestamp of the server copy. Set on conflicts.
	ServerUpdatedAt time.Time
}

// Transport ships one queued snapshot to the sync server.
// An error means the outcome is unknown and the push should be retried later.
type Transport interface {
	Push(ctx context.Context, item syncqueue.Item) (PushResult, error)
}
