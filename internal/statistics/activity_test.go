package statistics

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/at-ishikawa/tango/internal/validation"
)

func TestDayKey(t *testing.T) {
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)
	at := time.Date(2025, 3, 1, 20, 0, 0, 0, time.UTC)

	assert.Equal(t, "2025-03-01", DayKey(at, nil))
	assert.Equal(t, "2025-03-01", DayKey(at, time.UTC))
	assert.Equal(t, "2025-03-02", DayKey(at, tokyo))
}

func TestDBActivityRepository_Increment(t *testing.T) {
	tests := []struct {
		name      string
		date      string
		adds      int
		reviews   int
		setupMock func(mock sqlmock.Sqlmock)
		wantErr   error
	}{
		{
			name:    "existing day is updated",
			date:    "2025-03-01",
			reviews: 1,
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec("UPDATE activity_log SET add_count = add_count \\+ \\?, review_count = review_count \\+ \\? WHERE activity_date = \\?").
					WithArgs(0, 1, "2025-03-01").
					WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectCommit()
			},
		},
		{
			name: "new day is inserted",
			date: "2025-03-02",
			adds: 1,
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec("UPDATE activity_log").
					WithArgs(1, 0, "2025-03-02").
					WillReturnResult(sqlmock.NewResult(0, 0))
				mock.ExpectExec("INSERT INTO activity_log \\(activity_date, add_count, review_count\\) VALUES \\(\\?, \\?, \\?\\)").
					WithArgs("2025-03-02", 1, 0).
					WillReturnResult(sqlmock.NewResult(1, 1))
				mock.ExpectCommit()
			},
		},
		{
			name:      "zero deltas touch nothing",
			date:      "2025-03-02",
			setupMock: func(mock sqlmock.Sqlmock) {},
		},
		{
			name:      "negative deltas are rejected",
			date:      "2025-03-02",
			reviews:   -1,
			setupMock: func(mock sqlmock.Sqlmock) {},
			wantErr:   validation.ErrInvalid,
		},
		{
			name:      "malformed date is rejected",
			date:      "2025/03/02",
			adds:      1,
			setupMock: func(mock sqlmock.Sqlmock) {},
			wantErr:   validation.ErrInvalid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()

			repo := NewDBActivityRepository(sqlx.NewDb(db, "sqlite3"))
			tt.setupMock(mock)

			err = repo.Increment(context.Background(), tt.date, tt.adds, tt.reviews)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestDBActivityRepository_Increment_RollsBack(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE activity_log").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO activity_log").WillReturnError(fmt.Errorf("database is locked"))
	mock.ExpectRollback()

	repo := NewDBActivityRepository(sqlx.NewDb(db, "sqlite3"))
	err = repo.Increment(context.Background(), "2025-03-01", 1, 0)
	assert.ErrorContains(t, err, "insert activity_log")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDBActivityRepository_Find(t *testing.T) {
	columns := []string{"activity_date", "add_count", "review_count"}

	t.Run("all", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery("SELECT \\* FROM activity_log ORDER BY activity_date").
			WillReturnRows(sqlmock.NewRows(columns).
				AddRow("2025-03-01", 2, 5).
				AddRow("2025-03-02", 0, 3))

		repo := NewDBActivityRepository(sqlx.NewDb(db, "sqlite3"))
		got, err := repo.FindAll(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []ActivityEntry{
			{Date: "2025-03-01", AddCount: 2, ReviewCount: 5},
			{Date: "2025-03-02", AddCount: 0, ReviewCount: 3},
		}, got)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("range", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery("SELECT \\* FROM activity_log WHERE activity_date BETWEEN \\? AND \\?").
			WithArgs("2025-03-01", "2025-03-31").
			WillReturnRows(sqlmock.NewRows(columns).AddRow("2025-03-10", 1, 0))

		repo := NewDBActivityRepository(sqlx.NewDb(db, "sqlite3"))
		got, err := repo.FindRange(context.Background(), "2025-03-01", "2025-03-31")
		require.NoError(t, err)
		assert.Equal(t, []ActivityEntry{{Date: "2025-03-10", AddCount: 1}}, got)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
