package syncqueue

import (
	"context"
	"time"

	"github.com/at-ishikawa/tango/internal/timestamp"
)

// Item is one pending outbound change. There is at most one item per entity.
type Item struct {
	// Seq orders items by first insertion.
	Seq             int64          `json:"-" yaml:"-"`
	ID              string         `json:"id" yaml:"id"`
	EntityType      EntityType     `json:"entity_type" yaml:"entity_type"`
	EntityID        string         `json:"entity_id" yaml:"entity_id"`
	Payload         Payload        `json:"payload" yaml:"payload"`
	ClientUpdatedAt timestamp.Time `json:"client_updated_at" yaml:"client_updated_at"`
	Attempt         int            `json:"attempt" yaml:"attempt"`
	NextAttemptAt   timestamp.Time `json:"next_attempt_at" yaml:"next_attempt_at"`
	LastError       *string        `json:"last_error" yaml:"last_error"`
}

// Store persists queue items. Every engine operation runs inside exactly one Transact call.
type Store interface {
	Transact(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	// ListDue returns items with NextAttemptAt <= now in insertion order.
	ListDue(ctx context.Context, now time.Time) ([]Item, error)
	ListAll(ctx context.Context) ([]Item, error)
}

// Tx is the view of the store inside a transaction. Lookups return nil when nothing matches.
type Tx interface {
	Get(ctx context.Context, id string) (*Item, error)
	FindByEntity(ctx context.Context, entityType EntityType, entityID string) (*Item, error)
	// Insert stores a new item and sets its Seq.
	Insert(ctx context.Context, item *Item) error
	Update(ctx context.Context, item *Item) error
	Delete(ctx context.Context, id string) (bool, error)
}
