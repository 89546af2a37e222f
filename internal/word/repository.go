package word

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/at-ishikawa/tango/internal/database"
)

//go:generate mockgen -source=repository.go -destination=../mocks/word/mock_repository.go -package=mock_word

// Repository defines operations for managing words.
type Repository interface {
	Get(ctx context.Context, id string) (*Word, error)
	FindAll(ctx context.Context) ([]Word, error)
	Create(ctx context.Context, word *Word) error
	Update(ctx context.Context, word *Word) error
	// Delete removes the word and its review events. It reports whether the word existed.
	Delete(ctx context.Context, id string) (bool, error)
}

// DBRepository implements Repository using sqlx.
type DBRepository struct {
	db *sqlx.DB
}

// NewDBRepository creates a new DBRepository.
func NewDBRepository(db *sqlx.DB) *DBRepository {
	return &DBRepository{db: db}
}

// Get returns the word with the given id, or nil if not found.
func (r *DBRepository) Get(ctx context.Context, id string) (*Word, error) {
	var w Word
	err := database.Conn(ctx, r.db).GetContext(ctx, &w, "SELECT * FROM words WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("db.GetContext(word) > %w", err)
	}
	return &w, nil
}

// FindAll returns all words in creation order.
func (r *DBRepository) FindAll(ctx context.Context) ([]Word, error) {
	var words []Word
	if err := database.Conn(ctx, r.db).SelectContext(ctx, &words, "SELECT * FROM words ORDER BY created_at, id"); err != nil {
		return nil, fmt.Errorf("db.SelectContext(words) > %w", err)
	}
	return words, nil
}

// Create inserts a new word.
func (r *DBRepository) Create(ctx context.Context, w *Word) error {
	if _, err := database.Conn(ctx, r.db).ExecContext(ctx,
		`INSERT INTO words (id, text, reading, meaning, example, ai_metadata, familiarity, review_count,
		repetition, interval_days, ease_factor, next_review_at, last_score, created_at, updated_at, last_reviewed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		w.ID, w.Text, w.Reading, w.Meaning, w.Example, w.AIMetadata, w.Familiarity, w.ReviewCount,
		w.Repetition, w.IntervalDays, w.EaseFactor, w.NextReviewAt, w.LastScore,
		w.CreatedAt, w.UpdatedAt, w.LastReviewedAt); err != nil {
		return fmt.Errorf("db.ExecContext(insert word) > %w", err)
	}
	return nil
}

// Update overwrites every mutable column of an existing word.
func (r *DBRepository) Update(ctx context.Context, w *Word) error {
	if _, err := database.Conn(ctx, r.db).ExecContext(ctx,
		`UPDATE words SET text = ?, reading = ?, meaning = ?, example = ?, ai_metadata = ?, familiarity = ?,
		review_count = ?, repetition = ?, interval_days = ?, ease_factor = ?, next_review_at = ?, last_score = ?,
		updated_at = ?, last_reviewed_at = ?
		WHERE id = ?`,
		w.Text, w.Reading, w.Meaning, w.Example, w.AIMetadata, w.Familiarity,
		w.ReviewCount, w.Repetition, w.IntervalDays, w.EaseFactor, w.NextReviewAt, w.LastScore,
		w.UpdatedAt, w.LastReviewedAt, w.ID); err != nil {
		return fmt.Errorf("db.ExecContext(update word) > %w", err)
	}
	return nil
}

// Delete removes the word and cascades to its review events in one transaction.
func (r *DBRepository) Delete(ctx context.Context, id string) (bool, error) {
	var deleted bool
	err := database.RunInTx(ctx, r.db, func(ctx context.Context, tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM review_events WHERE word_id = ?", id); err != nil {
			return fmt.Errorf("tx.ExecContext(delete review_events) > %w", err)
		}
		result, err := tx.ExecContext(ctx, "DELETE FROM words WHERE id = ?", id)
		if err != nil {
			return fmt.Errorf("tx.ExecContext(delete word) > %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("result.RowsAffected() > %w", err)
		}
		deleted = affected > 0
		return nil
	})
	if err != nil {
		return false, err
	}
	return deleted, nil
}
