package learning

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/at-ishikawa/tango/internal/timestamp"
	"github.com/at-ishikawa/tango/internal/word"
)

var eventColumns = []string{"id", "word_id", "result", "score", "reviewed_at"}

func newMockRepository(t *testing.T) (*DBRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewDBRepository(sqlx.NewDb(db, "sqlite3")), mock
}

func TestNewReviewEvent(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 999_999, time.UTC)
	event := NewReviewEvent("w1", word.FamiliarityFamiliar, 4, now)

	assert.NotEmpty(t, event.ID)
	assert.Equal(t, "w1", event.WordID)
	assert.Equal(t, word.FamiliarityFamiliar, event.Result)
	assert.Equal(t, 4, event.Score)
	assert.Equal(t, "2025-03-01T12:00:00.000Z", event.ReviewedAt.String())
}

func TestDBRepository_Get(t *testing.T) {
	tests := []struct {
		name      string
		setupMock func(mock sqlmock.Sqlmock)
		want      *ReviewEvent
		wantErr   bool
	}{
		{
			name: "found",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("SELECT \\* FROM review_events WHERE id = \\?").
					WithArgs("e1").
					WillReturnRows(sqlmock.NewRows(eventColumns).
						AddRow("e1", "w1", "learning", 1, "2025-03-01T12:00:00.000Z"))
			},
			want: &ReviewEvent{
				ID:         "e1",
				WordID:     "w1",
				Result:     word.FamiliarityLearning,
				Score:      1,
				ReviewedAt: timestamp.New(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)),
			},
		},
		{
			name: "not found",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("SELECT \\* FROM review_events WHERE id = \\?").
					WithArgs("e1").
					WillReturnRows(sqlmock.NewRows(eventColumns))
			},
			want: nil,
		},
		{
			name: "db error",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("SELECT \\* FROM review_events WHERE id = \\?").
					WithArgs("e1").
					WillReturnError(fmt.Errorf("connection refused"))
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock := newMockRepository(t)
			tt.setupMock(mock)

			got, err := repo.Get(context.Background(), "e1")
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestDBRepository_FindAll(t *testing.T) {
	repo, mock := newMockRepository(t)
	mock.ExpectQuery("SELECT \\* FROM review_events ORDER BY reviewed_at, id").
		WillReturnRows(sqlmock.NewRows(eventColumns).
			AddRow("e1", "w1", "learning", 2, "2025-03-01T12:00:00.000Z").
			AddRow("e2", "w2", "familiar", 5, "2025-03-02T12:00:00.000Z"))

	got, err := repo.FindAll(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "e1", got[0].ID)
	assert.Equal(t, word.FamiliarityFamiliar, got[1].Result)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDBRepository_FindByWord(t *testing.T) {
	tests := []struct {
		name      string
		setupMock func(mock sqlmock.Sqlmock)
		wantIDs   []string
		wantErr   bool
	}{
		{
			name: "returns history most recent first",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("SELECT \\* FROM review_events WHERE word_id = \\? ORDER BY reviewed_at DESC, id DESC").
					WithArgs("w1").
					WillReturnRows(sqlmock.NewRows(eventColumns).
						AddRow("e2", "w1", "familiar", 4, "2025-03-02T12:00:00.000Z").
						AddRow("e1", "w1", "learning", 2, "2025-03-01T12:00:00.000Z"))
			},
			wantIDs: []string{"e2", "e1"},
		},
		{
			name: "db error",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("SELECT \\* FROM review_events WHERE word_id = \\?").
					WithArgs("w1").
					WillReturnError(fmt.Errorf("connection refused"))
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock := newMockRepository(t)
			tt.setupMock(mock)

			got, err := repo.FindByWord(context.Background(), "w1")
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			var ids []string
			for _, e := range got {
				ids = append(ids, e.ID)
			}
			assert.Equal(t, tt.wantIDs, ids)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestDBRepository_Create(t *testing.T) {
	event := &ReviewEvent{
		ID:         "e1",
		WordID:     "w1",
		Result:     word.FamiliarityLearning,
		Score:      2,
		ReviewedAt: timestamp.New(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)),
	}

	tests := []struct {
		name      string
		setupMock func(mock sqlmock.Sqlmock)
		wantErr   bool
	}{
		{
			name: "successful insert",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("INSERT INTO review_events").
					WithArgs("e1", "w1", "learning", 2, "2025-03-01T12:00:00.000Z").
					WillReturnResult(sqlmock.NewResult(0, 1))
			},
		},
		{
			name: "foreign key violation",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("INSERT INTO review_events").
					WillReturnError(fmt.Errorf("FOREIGN KEY constraint failed"))
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock := newMockRepository(t)
			tt.setupMock(mock)

			err := repo.Create(context.Background(), event)
			if tt.wantErr {
				assert.ErrorContains(t, err, "insert review_event")
				return
			}
			require.NoError(t, err)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}
