package server

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/at-ishikawa/tango/internal/database"
	"github.com/at-ishikawa/tango/internal/syncapi"
	"github.com/at-ishikawa/tango/internal/timestamp"
)

// PushOutcome is the decision taken for one push.
type PushOutcome struct {
	Accepted bool
	// Current is the stored record after the push. On a rejected push it is the newer server copy.
	Current syncapi.Record
}

// RecordRepository stores the server copies of synced entities.
type RecordRepository interface {
	Get(ctx context.Context, entityType, entityID string) (*syncapi.Record, error)
	// Push stores record unless the stored copy is at least as new (last writer wins).
	// Pushing the stored copy again with the same timestamp is accepted without a write.
	Push(ctx context.Context, record syncapi.Record) (PushOutcome, error)
}

type DBRecordRepository struct {
	db *sqlx.DB
}

func NewDBRecordRepository(db *sqlx.DB) *DBRecordRepository {
	return &DBRecordRepository{db: db}
}

const recordColumns = "entity_type, entity_id, payload, updated_at, received_at"

type recordRow struct {
	EntityType string         `db:"entity_type"`
	EntityID   string         `db:"entity_id"`
	Payload    string         `db:"payload"`
	UpdatedAt  timestamp.Time `db:"updated_at"`
	ReceivedAt timestamp.Time `db:"received_at"`
}

func (row recordRow) toRecord() syncapi.Record {
	return syncapi.Record{
		EntityType: row.EntityType,
		EntityID:   row.EntityID,
		Payload:    []byte(row.Payload),
		UpdatedAt:  row.UpdatedAt,
		ReceivedAt: row.ReceivedAt,
	}
}

type queryer interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

func getRecord(ctx context.Context, q queryer, entityType, entityID string) (*syncapi.Record, error) {
	var row recordRow
	query := "SELECT " + recordColumns + " FROM remote_entities WHERE entity_type = ? AND entity_id = ?"
	if err := q.GetContext(ctx, &row, query, entityType, entityID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("db.GetContext(remote_entities) > %w", err)
	}
	record := row.toRecord()
	return &record, nil
}

// Get returns the record, or nil if the server never received it.
func (r *DBRecordRepository) Get(ctx context.Context, entityType, entityID string) (*syncapi.Record, error) {
	return getRecord(ctx, r.db, entityType, entityID)
}

func (r *DBRecordRepository) Push(ctx context.Context, record syncapi.Record) (PushOutcome, error) {
	var outcome PushOutcome
	err := database.RunInTx(ctx, r.db, func(ctx context.Context, tx *sqlx.Tx) error {
		current, err := getRecord(ctx, tx, record.EntityType, record.EntityID)
		if err != nil {
			return err
		}

		if current == nil {
			query := "INSERT INTO remote_entities (" + recordColumns + ") VALUES (?, ?, ?, ?, ?)"
			if _, err := tx.ExecContext(ctx, query,
				record.EntityType, record.EntityID, string(record.Payload), record.UpdatedAt, record.ReceivedAt,
			); err != nil {
				return fmt.Errorf("tx.ExecContext(insert remote_entities) > %w", err)
			}
			outcome = PushOutcome{Accepted: true, Current: record}
			return nil
		}

		if current.UpdatedAt.Equal(record.UpdatedAt) && bytes.Equal(current.Payload, record.Payload) {
			outcome = PushOutcome{Accepted: true, Current: *current}
			return nil
		}
		if !current.UpdatedAt.Before(record.UpdatedAt) {
			outcome = PushOutcome{Accepted: false, Current: *current}
			return nil
		}

		query := "UPDATE remote_entities SET payload = ?, updated_at = ?, received_at = ? WHERE entity_type = ? AND entity_id = ?"
		if _, err := tx.ExecContext(ctx, query,
			string(record.Payload), record.UpdatedAt, record.ReceivedAt, record.EntityType, record.EntityID,
		); err != nil {
			return fmt.Errorf("tx.ExecContext(update remote_entities) > %w", err)
		}
		outcome = PushOutcome{Accepted: true, Current: record}
		return nil
	})
	if err != nil {
		return PushOutcome{}, err
	}
	return outcome, nil
}
