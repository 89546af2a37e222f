// Package study applies user actions to words: adding, editing, deleting and reviewing them.
//
// Every mutation persists the entity and enqueues its new snapshot for sync in one transaction.
package study

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/at-ishikawa/tango/internal/inference"
	"github.com/at-ishikawa/tango/internal/learning"
	"github.com/at-ishikawa/tango/internal/logger"
	"github.com/at-ishikawa/tango/internal/scheduler"
	"github.com/at-ishikawa/tango/internal/statistics"
	"github.com/at-ishikawa/tango/internal/syncqueue"
	"github.com/at-ishikawa/tango/internal/timestamp"
	"github.com/at-ishikawa/tango/internal/validation"
	"github.com/at-ishikawa/tango/internal/word"
)

var ErrWordNotFound = errors.New("word not found")

// Enqueuer stages entity snapshots for sync. *syncqueue.Engine implements it.
type Enqueuer interface {
	Enqueue(ctx context.Context, payload syncqueue.Payload, clientUpdatedAt time.Time) (*syncqueue.Item, error)
	Discard(ctx context.Context, entityType syncqueue.EntityType, entityID string) (bool, error)
}

// Transactor runs fn so that every repository and queue write inside it commits or rolls back together.
// *database.Transactor implements it.
type Transactor interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type noTx struct{}

func (noTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type Service struct {
	words     word.Repository
	events    learning.Repository
	activity  statistics.ActivityRepository
	queue     Enqueuer
	tx        Transactor
	validator *validation.Validator

	clock      timestamp.Clock
	location   *time.Location
	dailyLimit int
	generator  inference.Client
	logger     *logger.Logger
}

type Option func(*Service)

func WithClock(clock timestamp.Clock) Option {
	return func(s *Service) { s.clock = clock }
}

// WithLocation sets the timezone that decides which day an activity counts for.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) { s.location = loc }
}

// WithDailyLimit caps DueWords. Zero means no limit.
func WithDailyLimit(limit int) Option {
	return func(s *Service) { s.dailyLimit = limit }
}

// WithGenerator enables AI generation of missing word fields.
func WithGenerator(client inference.Client) Option {
	return func(s *Service) { s.generator = client }
}

// WithTransactor makes every mutation atomic with its enqueue.
func WithTransactor(tx Transactor) Option {
	return func(s *Service) { s.tx = tx }
}

func WithLogger(l *logger.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func NewService(
	words word.Repository,
	events learning.Repository,
	activity statistics.ActivityRepository,
	queue Enqueuer,
	opts ...Option,
) *Service {
	s := &Service{
		words:     words,
		events:    events,
		activity:  activity,
		queue:     queue,
		tx:        noTx{},
		validator: validation.Must("json"),
		clock:     timestamp.SystemClock{},
		location:  time.UTC,
		logger:    logger.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type AddWordInput struct {
	Text    string
	Reading string
	Meaning string
	Example string
	// Generate fills empty fields with the configured generator.
	Generate bool
}

// AddWord creates a word that is due immediately and counts it in today's activity.
func (s *Service) AddWord(ctx context.Context, input AddWordInput) (*word.Word, error) {
	input.Text = strings.TrimSpace(input.Text)
	if input.Text == "" {
		return nil, validation.NewError("text is a required field")
	}

	var metadata word.Metadata
	if input.Generate {
		if s.generator == nil {
			return nil, fmt.Errorf("word generation is not configured")
		}
		generated, err := s.generator.GenerateWordDetails(ctx, inference.GenerateWordDetailsRequest{
			Text:    input.Text,
			Reading: input.Reading,
			Meaning: input.Meaning,
			Example: input.Example,
		})
		if err != nil {
			return nil, fmt.Errorf("generator.GenerateWordDetails(%s) > %w", input.Text, err)
		}
		input.Reading = firstNonEmpty(input.Reading, generated.Reading)
		input.Meaning = firstNonEmpty(input.Meaning, generated.Meaning)
		input.Example = firstNonEmpty(input.Example, generated.Example)
		if len(generated.Metadata) > 0 {
			metadata = word.Metadata(generated.Metadata)
		}
	}

	now := s.clock.Now()
	w := word.New(input.Text, input.Reading, input.Meaning, input.Example, now)
	w.AIMetadata = metadata
	if err := w.Validate(s.validator); err != nil {
		return nil, err
	}

	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.words.Create(ctx, w); err != nil {
			return fmt.Errorf("words.Create > %w", err)
		}
		if err := s.activity.Increment(ctx, statistics.DayKey(now, s.location), 1, 0); err != nil {
			return fmt.Errorf("activity.Increment > %w", err)
		}
		if _, err := s.queue.Enqueue(ctx, syncqueue.WordPayload{Word: *w}, w.UpdatedAt.Time); err != nil {
			return fmt.Errorf("queue.Enqueue > %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Debug("word added", "word_id", w.ID, "text", w.Text)
	return w, nil
}

// UpdateWordInput holds the fields to change. Nil fields are left as they are.
type UpdateWordInput struct {
	Text    *string
	Reading *string
	Meaning *string
	Example *string
}

func (s *Service) UpdateWord(ctx context.Context, id string, input UpdateWordInput) (*word.Word, error) {
	var w *word.Word
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		w, err = s.updateWord(ctx, id, input)
		return err
	})
	if err != nil {
		return nil, err
	}
	return w, nil
}

func (s *Service) updateWord(ctx context.Context, id string, input UpdateWordInput) (*word.Word, error) {
	w, err := s.getWord(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.Text != nil {
		w.Text = strings.TrimSpace(*input.Text)
	}
	if input.Reading != nil {
		w.Reading = *input.Reading
	}
	if input.Meaning != nil {
		w.Meaning = *input.Meaning
	}
	if input.Example != nil {
		w.Example = *input.Example
	}
	w.UpdatedAt = timestamp.New(s.clock.Now())
	if err := w.Validate(s.validator); err != nil {
		return nil, err
	}

	if err := s.words.Update(ctx, w); err != nil {
		return nil, fmt.Errorf("words.Update > %w", err)
	}
	if _, err := s.queue.Enqueue(ctx, syncqueue.WordPayload{Word: *w}, w.UpdatedAt.Time); err != nil {
		return nil, fmt.Errorf("queue.Enqueue > %w", err)
	}
	return w, nil
}

// DeleteWord removes the word with its review events and enqueues a tombstone.
// Review events of the word that are still waiting in the queue are dropped with it.
func (s *Service) DeleteWord(ctx context.Context, id string) error {
	if err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		return s.deleteWord(ctx, id)
	}); err != nil {
		return err
	}
	s.logger.Debug("word deleted", "word_id", id)
	return nil
}

func (s *Service) deleteWord(ctx context.Context, id string) error {
	w, err := s.getWord(ctx, id)
	if err != nil {
		return err
	}
	events, err := s.events.FindByWord(ctx, id)
	if err != nil {
		return fmt.Errorf("events.FindByWord(%s) > %w", id, err)
	}

	deleted, err := s.words.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("words.Delete(%s) > %w", id, err)
	}
	if !deleted {
		return fmt.Errorf("%w: %s", ErrWordNotFound, id)
	}

	w.UpdatedAt = timestamp.New(s.clock.Now())
	if w.UpdatedAt.Before(w.CreatedAt) {
		w.UpdatedAt = w.CreatedAt
	}
	for _, event := range events {
		if _, err := s.queue.Discard(ctx, syncqueue.EntityTypeReviewEvent, event.ID); err != nil {
			return fmt.Errorf("queue.Discard(%s) > %w", event.ID, err)
		}
	}
	if _, err := s.queue.Enqueue(ctx, syncqueue.WordPayload{Word: *w, Deleted: true}, w.UpdatedAt.Time); err != nil {
		return fmt.Errorf("queue.Enqueue > %w", err)
	}
	return nil
}

type ReviewResult struct {
	Word  *word.Word             `json:"word" yaml:"word"`
	Event *learning.ReviewEvent `json:"event" yaml:"event"`
}

// ApplyReview schedules the next review of a word from score and records the review.
// An invalid score is rejected before anything is written.
func (s *Service) ApplyReview(ctx context.Context, wordID string, score int) (*ReviewResult, error) {
	var result *ReviewResult
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		result, err = s.applyReview(ctx, wordID, score)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug("review applied",
		"word_id", result.Word.ID,
		"score", score,
		"interval_days", result.Word.IntervalDays,
		"next_review_at", result.Word.NextReviewAt.String(),
	)
	return result, nil
}

func (s *Service) applyReview(ctx context.Context, wordID string, score int) (*ReviewResult, error) {
	w, err := s.getWord(ctx, wordID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	state, err := scheduler.Update(w.State, score, now)
	if err != nil {
		return nil, err
	}

	reviewedAt := timestamp.New(now)
	w.State = state
	w.ReviewCount++
	w.Familiarity = word.FamiliarityOf(state)
	w.LastReviewedAt = reviewedAt
	w.UpdatedAt = reviewedAt
	if err := w.Validate(s.validator); err != nil {
		return nil, err
	}
	event := learning.NewReviewEvent(w.ID, w.Familiarity, score, now)
	if err := s.validator.Struct(event); err != nil {
		return nil, err
	}

	if err := s.words.Update(ctx, w); err != nil {
		return nil, fmt.Errorf("words.Update > %w", err)
	}
	if err := s.events.Create(ctx, event); err != nil {
		return nil, fmt.Errorf("events.Create > %w", err)
	}
	if err := s.activity.Increment(ctx, statistics.DayKey(now, s.location), 0, 1); err != nil {
		return nil, fmt.Errorf("activity.Increment > %w", err)
	}
	if _, err := s.queue.Enqueue(ctx, syncqueue.WordPayload{Word: *w}, w.LastReviewedAt.Time); err != nil {
		return nil, fmt.Errorf("queue.Enqueue(word) > %w", err)
	}
	if _, err := s.queue.Enqueue(ctx, syncqueue.ReviewEventPayload{Event: *event}, event.ReviewedAt.Time); err != nil {
		return nil, fmt.Errorf("queue.Enqueue(review_event) > %w", err)
	}
	return &ReviewResult{Word: w, Event: event}, nil
}

// DueWords returns the words due now, earliest first, capped at the daily limit.
func (s *Service) DueWords(ctx context.Context) ([]word.Word, error) {
	words, err := s.words.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("words.FindAll > %w", err)
	}
	return scheduler.DueQueue(words, s.clock.Now(), scheduler.DueOptions{Limit: s.dailyLimit}), nil
}

func (s *Service) Words(ctx context.Context) ([]word.Word, error) {
	words, err := s.words.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("words.FindAll > %w", err)
	}
	return words, nil
}

func (s *Service) Word(ctx context.Context, id string) (*word.Word, error) {
	return s.getWord(ctx, id)
}

// ReviewHistory returns the reviews of a word, newest first.
func (s *Service) ReviewHistory(ctx context.Context, wordID string) ([]learning.ReviewEvent, error) {
	if _, err := s.getWord(ctx, wordID); err != nil {
		return nil, err
	}
	events, err := s.events.FindByWord(ctx, wordID)
	if err != nil {
		return nil, fmt.Errorf("events.FindByWord(%s) > %w", wordID, err)
	}
	return events, nil
}

// Statistics summarizes the activity log. Zero year and month select everything.
func (s *Service) Statistics(ctx context.Context, year, month int) (statistics.StatisticsResult, error) {
	entries, err := s.activity.FindAll(ctx)
	if err != nil {
		return statistics.StatisticsResult{}, fmt.Errorf("activity.FindAll > %w", err)
	}
	today := statistics.DayKey(s.clock.Now(), s.location)
	return statistics.Summarize(entries, year, month, today), nil
}

func (s *Service) getWord(ctx context.Context, id string) (*word.Word, error) {
	w, err := s.words.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("words.Get(%s) > %w", id, err)
	}
	if w == nil {
		return nil, fmt.Errorf("%w: %s", ErrWordNotFound, id)
	}
	return w, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
