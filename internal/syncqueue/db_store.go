package syncqueue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/at-ishikawa/tango/internal/database"
	"github.com/at-ishikawa/tango/internal/timestamp"
)

type itemRow struct {
	Seq             int64          `db:"seq"`
	ID              string         `db:"id"`
	EntityType      string         `db:"entity_type"`
	EntityID        string         `db:"entity_id"`
	Payload         string         `db:"payload"`
	ClientUpdatedAt timestamp.Time `db:"client_updated_at"`
	Attempt         int            `db:"attempt"`
	NextAttemptAt   timestamp.Time `db:"next_attempt_at"`
	LastError       *string        `db:"last_error"`
}

func (row itemRow) toItem() (Item, error) {
	entityType, err := ParseEntityType(row.EntityType)
	if err != nil {
		return Item{}, err
	}
	payload, err := DecodePayload(entityType, []byte(row.Payload))
	if err != nil {
		return Item{}, fmt.Errorf("sync queue item %s > %w", row.ID, err)
	}
	return Item{
		Seq:             row.Seq,
		ID:              row.ID,
		EntityType:      entityType,
		EntityID:        row.EntityID,
		Payload:         payload,
		ClientUpdatedAt: row.ClientUpdatedAt,
		Attempt:         row.Attempt,
		NextAttemptAt:   row.NextAttemptAt,
		LastError:       row.LastError,
	}, nil
}

func toItems(rows []itemRow) ([]Item, error) {
	items := make([]Item, 0, len(rows))
	for _, row := range rows {
		item, err := row.toItem()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

// DBStore persists the queue in the sync_queue table.
type DBStore struct {
	db *sqlx.DB
}

// NewDBStore creates a new DBStore.
func NewDBStore(db *sqlx.DB) *DBStore {
	return &DBStore{db: db}
}

func (s *DBStore) Transact(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	return database.RunInTx(ctx, s.db, func(ctx context.Context, tx *sqlx.Tx) error {
		return fn(ctx, &dbTx{tx: tx})
	})
}

func (s *DBStore) ListDue(ctx context.Context, now time.Time) ([]Item, error) {
	var rows []itemRow
	if err := database.Conn(ctx, s.db).SelectContext(ctx, &rows,
		"SELECT * FROM sync_queue WHERE next_attempt_at <= ? ORDER BY seq",
		timestamp.New(now)); err != nil {
		return nil, fmt.Errorf("db.SelectContext(due sync_queue) > %w", err)
	}
	return toItems(rows)
}

func (s *DBStore) ListAll(ctx context.Context) ([]Item, error) {
	var rows []itemRow
	if err := database.Conn(ctx, s.db).SelectContext(ctx, &rows, "SELECT * FROM sync_queue ORDER BY seq"); err != nil {
		return nil, fmt.Errorf("db.SelectContext(sync_queue) > %w", err)
	}
	return toItems(rows)
}

type dbTx struct {
	tx *sqlx.Tx
}

func (t *dbTx) get(ctx context.Context, query string, args ...any) (*Item, error) {
	var row itemRow
	err := t.tx.GetContext(ctx, &row, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("tx.GetContext(sync_queue) > %w", err)
	}
	item, err := row.toItem()
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (t *dbTx) Get(ctx context.Context, id string) (*Item, error) {
	return t.get(ctx, "SELECT * FROM sync_queue WHERE id = ?", id)
}

func (t *dbTx) FindByEntity(ctx context.Context, entityType EntityType, entityID string) (*Item, error) {
	return t.get(ctx, "SELECT * FROM sync_queue WHERE entity_type = ? AND entity_id = ?", string(entityType), entityID)
}

func (t *dbTx) Insert(ctx context.Context, item *Item) error {
	payload, err := EncodePayload(item.Payload)
	if err != nil {
		return err
	}
	result, err := t.tx.ExecContext(ctx,
		`INSERT INTO sync_queue (id, entity_type, entity_id, payload, client_updated_at, attempt, next_attempt_at, last_error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID, string(item.EntityType), item.EntityID, string(payload),
		item.ClientUpdatedAt, item.Attempt, item.NextAttemptAt, item.LastError)
	if err != nil {
		return fmt.Errorf("tx.ExecContext(insert sync_queue) > %w", err)
	}
	seq, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("result.LastInsertId() > %w", err)
	}
	item.Seq = seq
	return nil
}

func (t *dbTx) Update(ctx context.Context, item *Item) error {
	payload, err := EncodePayload(item.Payload)
	if err != nil {
		return err
	}
	if _, err := t.tx.ExecContext(ctx,
		`UPDATE sync_queue SET payload = ?, client_updated_at = ?, attempt = ?, next_attempt_at = ?, last_error = ?
		WHERE id = ?`,
		string(payload), item.ClientUpdatedAt, item.Attempt, item.NextAttemptAt, item.LastError, item.ID); err != nil {
		return fmt.Errorf("tx.ExecContext(update sync_queue) > %w", err)
	}
	return nil
}

func (t *dbTx) Delete(ctx context.Context, id string) (bool, error) {
	result, err := t.tx.ExecContext(ctx, "DELETE FROM sync_queue WHERE id = ?", id)
	if err != nil {
		return false, fmt.Errorf("tx.ExecContext(delete sync_queue) > %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("result.RowsAffected() > %w", err)
	}
	return affected > 0, nil
}
