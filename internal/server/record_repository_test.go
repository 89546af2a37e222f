package server

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/at-ishikawa/tango/internal/database"
	"github.com/at-ishikawa/tango/internal/syncapi"
	"github.com/at-ishikawa/tango/internal/testutil"
	"github.com/at-ishikawa/tango/internal/timestamp"
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newRecord(id, payload string, updatedAt time.Time) syncapi.Record {
	return syncapi.Record{
		EntityType: "word",
		EntityID:   id,
		Payload:    []byte(payload),
		UpdatedAt:  timestamp.New(updatedAt),
		ReceivedAt: timestamp.New(t0),
	}
}

func TestDBRecordRepository_Push(t *testing.T) {
	tests := []struct {
		name         string
		stored       *syncapi.Record
		push         syncapi.Record
		wantAccepted bool
		wantPayload  string
		wantUpdated  time.Time
	}{
		{
			name:         "first push is stored",
			push:         newRecord("w1", `{"v":1}`, t0),
			wantAccepted: true,
			wantPayload:  `{"v":1}`,
			wantUpdated:  t0,
		},
		{
			name:         "newer push replaces the stored copy",
			stored:       ptr(newRecord("w1", `{"v":1}`, t0)),
			push:         newRecord("w1", `{"v":2}`, t0.Add(time.Millisecond)),
			wantAccepted: true,
			wantPayload:  `{"v":2}`,
			wantUpdated:  t0.Add(time.Millisecond),
		},
		{
			name:         "older push is rejected",
			stored:       ptr(newRecord("w1", `{"v":2}`, t0.Add(time.Minute))),
			push:         newRecord("w1", `{"v":1}`, t0),
			wantAccepted: false,
			wantPayload:  `{"v":2}`,
			wantUpdated:  t0.Add(time.Minute),
		},
		{
			name:         "different payload with the same timestamp is rejected",
			stored:       ptr(newRecord("w1", `{"v":2}`, t0)),
			push:         newRecord("w1", `{"v":1}`, t0),
			wantAccepted: false,
			wantPayload:  `{"v":2}`,
			wantUpdated:  t0,
		},
		{
			name:         "resending the stored copy is accepted",
			stored:       ptr(newRecord("w1", `{"v":1}`, t0)),
			push:         newRecord("w1", `{"v":1}`, t0),
			wantAccepted: true,
			wantPayload:  `{"v":1}`,
			wantUpdated:  t0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			repo := NewDBRecordRepository(testutil.NewTestDB(t, database.SchemaServer))
			if tt.stored != nil {
				outcome, err := repo.Push(ctx, *tt.stored)
				require.NoError(t, err)
				require.True(t, outcome.Accepted)
			}

			outcome, err := repo.Push(ctx, tt.push)
			require.NoError(t, err)
			assert.Equal(t, tt.wantAccepted, outcome.Accepted)
			assert.Equal(t, tt.wantPayload, string(outcome.Current.Payload))
			assert.True(t, outcome.Current.UpdatedAt.Equal(timestamp.New(tt.wantUpdated)))

			got, err := repo.Get(ctx, "word", "w1")
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, tt.wantPayload, string(got.Payload))
			assert.Equal(t, timestamp.New(tt.wantUpdated).String(), got.UpdatedAt.String())
		})
	}
}

func TestDBRecordRepository_Get(t *testing.T) {
	repo := NewDBRecordRepository(testutil.NewTestDB(t, database.SchemaServer))
	ctx := context.Background()

	got, err := repo.Get(ctx, "word", "missing")
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = repo.Push(ctx, newRecord("e1", `{"v":1}`, t0))
	require.NoError(t, err)
	got, err = repo.Get(ctx, "review_event", "e1")
	require.NoError(t, err)
	assert.Nil(t, got, "records are keyed by type and id")
}

func TestDBRecordRepository_Push_DBError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	repo := NewDBRecordRepository(sqlx.NewDb(db, "sqlite3"))

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT entity_type, entity_id, payload, updated_at, received_at FROM remote_entities").
		WithArgs("word", "w1").
		WillReturnRows(sqlmock.NewRows([]string{"entity_type", "entity_id", "payload", "updated_at", "received_at"}))
	mock.ExpectExec("INSERT INTO remote_entities").
		WillReturnError(fmt.Errorf("disk full"))
	mock.ExpectRollback()

	_, err = repo.Push(context.Background(), newRecord("w1", `{"v":1}`, t0))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func ptr[T any](v T) *T {
	return &v
}
