package statistics

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/at-ishikawa/tango/internal/database"
	"github.com/at-ishikawa/tango/internal/validation"
)

//go:generate mockgen -source=activity.go -destination=../mocks/statistics/mock_activity.go -package=mock_statistics

// DateLayout is the layout of an activity day key.
const DateLayout = "2006-01-02"

// ActivityEntry counts what happened on one calendar day.
type ActivityEntry struct {
	Date        string `json:"date" yaml:"date" db:"activity_date"`
	AddCount    int    `json:"add_count" yaml:"add_count" db:"add_count"`
	ReviewCount int    `json:"review_count" yaml:"review_count" db:"review_count"`
}

// DayKey returns the activity day of t in loc.
func DayKey(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(DateLayout)
}

// ActivityRepository stores the per-day activity log. Counts only grow.
type ActivityRepository interface {
	Increment(ctx context.Context, date string, adds, reviews int) error
	FindAll(ctx context.Context) ([]ActivityEntry, error)
	// FindRange returns the entries between from and to, both inclusive.
	FindRange(ctx context.Context, from, to string) ([]ActivityEntry, error)
}

// DBActivityRepository implements ActivityRepository using sqlx.
type DBActivityRepository struct {
	db *sqlx.DB
}

// NewDBActivityRepository creates a new DBActivityRepository.
func NewDBActivityRepository(db *sqlx.DB) *DBActivityRepository {
	return &DBActivityRepository{db: db}
}

// Increment adds to the counters of date, creating the entry on first use.
func (r *DBActivityRepository) Increment(ctx context.Context, date string, adds, reviews int) error {
	if adds < 0 || reviews < 0 {
		return validation.NewError(fmt.Sprintf("activity counts must not be negative: adds=%d, reviews=%d", adds, reviews))
	}
	if _, err := time.Parse(DateLayout, date); err != nil {
		return validation.NewError(fmt.Sprintf("activity date must be in %s format: %q", DateLayout, date))
	}
	if adds == 0 && reviews == 0 {
		return nil
	}

	return database.RunInTx(ctx, r.db, func(ctx context.Context, tx *sqlx.Tx) error {
		result, err := tx.ExecContext(ctx,
			"UPDATE activity_log SET add_count = add_count + ?, review_count = review_count + ? WHERE activity_date = ?",
			adds, reviews, date)
		if err != nil {
			return fmt.Errorf("tx.ExecContext(update activity_log) > %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("result.RowsAffected() > %w", err)
		}
		if affected > 0 {
			return nil
		}

		if _, err := tx.ExecContext(ctx,
			"INSERT INTO activity_log (activity_date, add_count, review_count) VALUES (?, ?, ?)",
			date, adds, reviews); err != nil {
			return fmt.Errorf("tx.ExecContext(insert activity_log) > %w", err)
		}
		return nil
	})
}

// FindAll returns every entry ordered by date.
func (r *DBActivityRepository) FindAll(ctx context.Context) ([]ActivityEntry, error) {
	var entries []ActivityEntry
	if err := database.Conn(ctx, r.db).SelectContext(ctx, &entries, "SELECT * FROM activity_log ORDER BY activity_date"); err != nil {
		return nil, fmt.Errorf("db.SelectContext(activity_log) > %w", err)
	}
	return entries, nil
}

func (r *DBActivityRepository) FindRange(ctx context.Context, from, to string) ([]ActivityEntry, error) {
	var entries []ActivityEntry
	if err := database.Conn(ctx, r.db).SelectContext(ctx, &entries,
		"SELECT * FROM activity_log WHERE activity_date BETWEEN ? AND ? ORDER BY activity_date",
		from, to); err != nil {
		return nil, fmt.Errorf("db.SelectContext(activity_log range) > %w", err)
	}
	return entries, nil
}
