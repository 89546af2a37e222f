package syncqueue

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps items in memory. A transaction works on a copy that replaces the state on commit.
type MemoryStore struct {
	mu    sync.Mutex
	items map[string]Item
	seq   int64
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]Item)}
}

func (s *MemoryStore) Transact(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memoryTx{
		items: make(map[string]Item, len(s.items)),
		seq:   s.seq,
	}
	for id, item := range s.items {
		tx.items[id] = item
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	s.items = tx.items
	s.seq = tx.seq
	return nil
}

func (s *MemoryStore) ListDue(_ context.Context, now time.Time) ([]Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]Item, 0, len(s.items))
	for _, item := range s.items {
		if !item.NextAttemptAt.Time.After(now) {
			result = append(result, item)
		}
	}
	sortBySeq(result)
	return result, nil
}

func (s *MemoryStore) ListAll(_ context.Context) ([]Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]Item, 0, len(s.items))
	for _, item := range s.items {
		result = append(result, item)
	}
	sortBySeq(result)
	return result, nil
}

func sortBySeq(items []Item) {
	sort.Slice(items, func(i, j int) bool {
		return items[i].Seq < items[j].Seq
	})
}

type memoryTx struct {
	items map[string]Item
	seq   int64
}

func (tx *memoryTx) Get(_ context.Context, id string) (*Item, error) {
	item, ok := tx.items[id]
	if !ok {
		return nil, nil
	}
	return &item, nil
}

func (tx *memoryTx) FindByEntity(_ context.Context, entityType EntityType, entityID string) (*Item, error) {
	for _, item := range tx.items {
		if item.EntityType == entityType && item.EntityID == entityID {
			return &item, nil
		}
	}
	return nil, nil
}

func (tx *memoryTx) Insert(_ context.Context, item *Item) error {
	if _, ok := tx.items[item.ID]; ok {
		return fmt.Errorf("sync queue item %s already exists", item.ID)
	}
	for _, existing := range tx.items {
		if existing.EntityType == item.EntityType && existing.EntityID == item.EntityID {
			return fmt.Errorf("sync queue item for %s %s already exists", item.EntityType, item.EntityID)
		}
	}
	tx.seq++
	item.Seq = tx.seq
	tx.items[item.ID] = *item
	return nil
}

func (tx *memoryTx) Update(_ context.Context, item *Item) error {
	if _, ok := tx.items[item.ID]; !ok {
		return fmt.Errorf("sync queue item %s does not exist", item.ID)
	}
	tx.items[item.ID] = *item
	return nil
}

func (tx *memoryTx) Delete(_ context.Context, id string) (bool, error) {
	if _, ok := tx.items[id]; !ok {
		return false, nil
	}
	delete(tx.items, id)
	return true, nil
}
