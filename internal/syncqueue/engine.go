// Package syncqueue is the durable outbound queue of entity changes waiting to reach the sync server.
//
// Edits to the same entity coalesce into one item. Failed pushes back off exponentially and
// conflicts are resolved last-writer-wins on the client timestamp.
package syncqueue

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/at-ishikawa/tango/internal/timestamp"
)

const (
	// BaseBackoff is the delay after the first failure.
	BaseBackoff = time.Second
	// maxBackoffExponent keeps BaseBackoff<<n inside time.Duration. It is not a retry limit.
	maxBackoffExponent = 33
)

// Backoff returns the delay after the nth consecutive failure: 1s, 2s, 4s, ...
func Backoff(attempt int) time.Duration {
	if attempt < 1 {
		return 0
	}
	exponent := attempt - 1
	if exponent > maxBackoffExponent {
		exponent = maxBackoffExponent
	}
	return BaseBackoff << uint(exponent)
}

// Resolution is the outcome of a conflict.
type Resolution string

const (
	// ResolutionServerWins drops the local change.
	ResolutionServerWins Resolution = "server_wins"
	// ResolutionRetry keeps the local change and makes it due immediately.
	ResolutionRetry Resolution = "retry"
)

// Stats describes the queue backlog.
type Stats struct {
	Total      int `json:"total" yaml:"total"`
	Due        int `json:"due" yaml:"due"`
	Failing    int `json:"failing" yaml:"failing"`
	MaxAttempt int `json:"max_attempt" yaml:"max_attempt"`
}

type Engine struct {
	store Store
	clock timestamp.Clock
}

// NewEngine creates an engine over store. A nil clock uses the system clock.
func NewEngine(store Store, clock timestamp.Clock) *Engine {
	if clock == nil {
		clock = timestamp.SystemClock{}
	}
	return &Engine{store: store, clock: clock}
}

func (e *Engine) now(now time.Time) time.Time {
	if now.IsZero() {
		return e.clock.Now()
	}
	return now
}

// Enqueue records the latest snapshot of an entity. An existing item for the same entity keeps
// its id, attempt, schedule and last error; only payload and clientUpdatedAt are replaced.
func (e *Engine) Enqueue(ctx context.Context, payload Payload, clientUpdatedAt time.Time) (*Item, error) {
	if payload == nil {
		return nil, fmt.Errorf("%w: payload is nil", ErrInvalidPayload)
	}
	if _, err := ParseEntityType(string(payload.EntityType())); err != nil {
		return nil, err
	}
	if payload.EntityID() == "" {
		return nil, fmt.Errorf("%w: entity id is empty", ErrInvalidPayload)
	}
	if clientUpdatedAt.IsZero() {
		return nil, fmt.Errorf("%w: client updated at is zero", ErrInvalidPayload)
	}
	// every store must be able to persist the payload
	if _, err := EncodePayload(payload); err != nil {
		return nil, err
	}

	var result Item
	err := e.store.Transact(ctx, func(ctx context.Context, tx Tx) error {
		existing, err := tx.FindByEntity(ctx, payload.EntityType(), payload.EntityID())
		if err != nil {
			return err
		}
		if existing != nil {
			existing.Payload = payload
			existing.ClientUpdatedAt = timestamp.New(clientUpdatedAt)
			if err := tx.Update(ctx, existing); err != nil {
				return err
			}
			result = *existing
			return nil
		}

		item := &Item{
			ID:              uuid.Must(uuid.NewV7()).String(),
			EntityType:      payload.EntityType(),
			EntityID:        payload.EntityID(),
			Payload:         payload,
			ClientUpdatedAt: timestamp.New(clientUpdatedAt),
			Attempt:         0,
			NextAttemptAt:   timestamp.New(e.clock.Now()),
		}
		if err := tx.Insert(ctx, item); err != nil {
			return err
		}
		result = *item
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("enqueue %s %s > %w", payload.EntityType(), payload.EntityID(), err)
	}
	return &result, nil
}

// Discard removes the queued change of an entity without pushing it and reports whether one existed.
func (e *Engine) Discard(ctx context.Context, entityType EntityType, entityID string) (bool, error) {
	var deleted bool
	err := e.store.Transact(ctx, func(ctx context.Context, tx Tx) error {
		item, err := tx.FindByEntity(ctx, entityType, entityID)
		if err != nil || item == nil {
			return err
		}
		deleted, err = tx.Delete(ctx, item.ID)
		return err
	})
	if err != nil {
		return false, fmt.Errorf("discard %s %s > %w", entityType, entityID, err)
	}
	return deleted, nil
}

// ListDue returns the items whose next attempt is at or before now, in insertion order.
// A zero now means the engine clock.
func (e *Engine) ListDue(ctx context.Context, now time.Time) ([]Item, error) {
	items, err := e.store.ListDue(ctx, e.now(now))
	if err != nil {
		return nil, fmt.Errorf("store.ListDue > %w", err)
	}
	return items, nil
}

// ListAll returns every item in insertion order.
func (e *Engine) ListAll(ctx context.Context) ([]Item, error) {
	items, err := e.store.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("store.ListAll > %w", err)
	}
	return items, nil
}

// RecordFailure counts a failed push and schedules the next attempt with exponential backoff.
// It returns nil without error when the item no longer exists.
func (e *Engine) RecordFailure(ctx context.Context, id string, message string, now time.Time) (*Item, error) {
	now = e.now(now)

	var result *Item
	err := e.store.Transact(ctx, func(ctx context.Context, tx Tx) error {
		item, err := tx.Get(ctx, id)
		if err != nil || item == nil {
			return err
		}
		item.Attempt++
		item.NextAttemptAt = timestamp.New(now.Add(Backoff(item.Attempt)))
		item.LastError = &message
		if err := tx.Update(ctx, item); err != nil {
			return err
		}
		result = item
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("record failure of %s > %w", id, err)
	}
	return result, nil
}

// MarkSuccess removes the item and reports whether it existed.
func (e *Engine) MarkSuccess(ctx context.Context, id string) (bool, error) {
	var deleted bool
	err := e.store.Transact(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		deleted, err = tx.Delete(ctx, id)
		return err
	})
	if err != nil {
		return false, fmt.Errorf("mark success of %s > %w", id, err)
	}
	return deleted, nil
}

// MarkSynced removes the item only if it still holds the snapshot that was pushed.
// When the entity was enqueued again during the push, the newer snapshot stays queued and false is returned.
func (e *Engine) MarkSynced(ctx context.Context, pushed Item) (bool, error) {
	pushedPayload, err := EncodePayload(pushed.Payload)
	if err != nil {
		return false, err
	}

	var deleted bool
	err = e.store.Transact(ctx, func(ctx context.Context, tx Tx) error {
		current, err := tx.Get(ctx, pushed.ID)
		if err != nil || current == nil {
			return err
		}
		if !current.ClientUpdatedAt.Equal(pushed.ClientUpdatedAt) {
			return nil
		}
		currentPayload, err := EncodePayload(current.Payload)
		if err != nil {
			return err
		}
		if !bytes.Equal(currentPayload, pushedPayload) {
			return nil
		}
		deleted, err = tx.Delete(ctx, pushed.ID)
		return err
	})
	if err != nil {
		return false, fmt.Errorf("mark synced of %s > %w", pushed.ID, err)
	}
	return deleted, nil
}

// ResolveConflict applies last-writer-wins after the server rejected a push.
// When the server copy is as new as the local one or newer, the item is dropped. Otherwise it is
// made due at now without counting an attempt. A missing item resolves as server wins.
func (e *Engine) ResolveConflict(ctx context.Context, id string, serverUpdatedAt time.Time, now time.Time) (Resolution, error) {
	now = e.now(now)
	server := timestamp.New(serverUpdatedAt)

	resolution := ResolutionServerWins
	err := e.store.Transact(ctx, func(ctx context.Context, tx Tx) error {
		item, err := tx.Get(ctx, id)
		if err != nil || item == nil {
			return err
		}
		if !server.Before(item.ClientUpdatedAt) {
			_, err := tx.Delete(ctx, id)
			return err
		}

		resolution = ResolutionRetry
		item.NextAttemptAt = timestamp.New(now)
		return tx.Update(ctx, item)
	})
	if err != nil {
		return "", fmt.Errorf("resolve conflict of %s > %w", id, err)
	}
	return resolution, nil
}

// Stats summarizes the queue at now. A zero now means the engine clock.
func (e *Engine) Stats(ctx context.Context, now time.Time) (Stats, error) {
	now = e.now(now)
	items, err := e.ListAll(ctx)
	if err != nil {
		return Stats{}, err
	}

	stats := Stats{Total: len(items)}
	for _, item := range items {
		if !item.NextAttemptAt.Time.After(now) {
			stats.Due++
		}
		if item.Attempt > 0 {
			stats.Failing++
		}
		if item.Attempt > stats.MaxAttempt {
			stats.MaxAttempt = item.Attempt
		}
	}
	return stats, nil
}
