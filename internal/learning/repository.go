// Package learning provides the review event history and its repository.
package learning

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/at-ishikawa/tango/internal/database"
	"github.com/at-ishikawa/tango/internal/timestamp"
	"github.com/at-ishikawa/tango/internal/word"
)

//go:generate mockgen -source=repository.go -destination=../mocks/learning/mock_repository.go -package=mock_learning

// ReviewEvent records one review of a word. Events are never updated.
type ReviewEvent struct {
	ID         string           `json:"id" yaml:"id" db:"id" validate:"required"`
	WordID     string           `json:"word_id" yaml:"word_id" db:"word_id" validate:"required"`
	Result     word.Familiarity `json:"result" yaml:"result" db:"result" validate:"required,oneof=new learning familiar mastered"`
	Score      int              `json:"score" yaml:"score" db:"score" validate:"min=0,max=5"`
	ReviewedAt timestamp.Time   `json:"reviewed_at" yaml:"reviewed_at" db:"reviewed_at"`
}

// NewReviewEvent creates an event for a review of wordID at now.
func NewReviewEvent(wordID string, result word.Familiarity, score int, now time.Time) *ReviewEvent {
	return &ReviewEvent{
		ID:         uuid.Must(uuid.NewV7()).String(),
		WordID:     wordID,
		Result:     result,
		Score:      score,
		ReviewedAt: timestamp.New(now),
	}
}

// Repository defines operations for review events.
type Repository interface {
	Get(ctx context.Context, id string) (*ReviewEvent, error)
	FindAll(ctx context.Context) ([]ReviewEvent, error)
	FindByWord(ctx context.Context, wordID string) ([]ReviewEvent, error)
	Create(ctx context.Context, event *ReviewEvent) error
}

// DBRepository implements Repository using sqlx.
type DBRepository struct {
	db *sqlx.DB
}

// NewDBRepository creates a new DBRepository.
func NewDBRepository(db *sqlx.DB) *DBRepository {
	return &DBRepository{db: db}
}

// Get returns the review event with the given id, or nil if not found.
func (r *DBRepository) Get(ctx context.Context, id string) (*ReviewEvent, error) {
	var event ReviewEvent
	err := database.Conn(ctx, r.db).GetContext(ctx, &event, "SELECT * FROM review_events WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("db.GetContext(review_event) > %w", err)
	}
	return &event, nil
}

// FindAll returns all review events, oldest first.
func (r *DBRepository) FindAll(ctx context.Context) ([]ReviewEvent, error) {
	var events []ReviewEvent
	if err := database.Conn(ctx, r.db).SelectContext(ctx, &events, "SELECT * FROM review_events ORDER BY reviewed_at, id"); err != nil {
		return nil, fmt.Errorf("db.SelectContext(review_events) > %w", err)
	}
	return events, nil
}

// FindByWord returns the review history of a word, most recent first.
func (r *DBRepository) FindByWord(ctx context.Context, wordID string) ([]ReviewEvent, error) {
	var events []ReviewEvent
	if err := database.Conn(ctx, r.db).SelectContext(ctx, &events,
		"SELECT * FROM review_events WHERE word_id = ? ORDER BY reviewed_at DESC, id DESC",
		wordID); err != nil {
		return nil, fmt.Errorf("db.SelectContext(review_events by word) > %w", err)
	}
	return events, nil
}

// Create inserts a new review event.
func (r *DBRepository) Create(ctx context.Context, event *ReviewEvent) error {
	if _, err := database.Conn(ctx, r.db).ExecContext(ctx,
		`INSERT INTO review_events (id, word_id, result, score, reviewed_at) VALUES (?, ?, ?, ?, ?)`,
		event.ID, event.WordID, event.Result, event.Score, event.ReviewedAt); err != nil {
		return fmt.Errorf("db.ExecContext(insert review_event) > %w", err)
	}
	return nil
}
