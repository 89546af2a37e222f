// Package scheduler implements SM-2 spaced repetition and due-queue selection.
package scheduler

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/at-ishikawa/tango/internal/timestamp"
)

const (
	DefaultEasinessFactor = 2.5
	MinEasinessFactor     = 1.3

	// PassThreshold is the lowest score that counts as a successful recall.
	PassThreshold = 3
	MinScore      = 0
	MaxScore      = 5

	day = 24 * time.Hour
)

var ErrInvalidScore = errors.New("score must be between 0 and 5")

// State is the SM-2 scheduling state carried by a reviewable entity.
type State struct {
	Repetition   int            `json:"repetition" yaml:"repetition" db:"repetition" validate:"min=0"`
	IntervalDays int            `json:"interval_days" yaml:"interval_days" db:"interval_days" validate:"min=1"`
	EaseFactor   float64        `json:"ease_factor" yaml:"ease_factor" db:"ease_factor" validate:"min=1.3"`
	NextReviewAt timestamp.Time `json:"next_review_at" yaml:"next_review_at" db:"next_review_at"`
	LastScore    *int           `json:"last_score" yaml:"last_score" db:"last_score" validate:"omitempty,min=0,max=5"`
}

// NewState returns the state of an entity that has never been reviewed. It is due at now.
func NewState(now time.Time) State {
	return State{
		Repetition:   0,
		IntervalDays: 1,
		EaseFactor:   DefaultEasinessFactor,
		NextReviewAt: timestamp.New(now),
	}
}

// NextReview reports when the entity is due; false when it has no schedule yet.
func (s State) NextReview() (time.Time, bool) {
	if s.NextReviewAt.IsZero() {
		return time.Time{}, false
	}
	return s.NextReviewAt.Time, true
}

// Update applies one review with the given score at now and returns the new state.
// The input is not modified.
func Update(state State, score int, now time.Time) (State, error) {
	if score < MinScore || score > MaxScore {
		return State{}, fmt.Errorf("%w: got %d", ErrInvalidScore, score)
	}

	ef := state.EaseFactor
	if ef == 0 {
		ef = DefaultEasinessFactor
	}
	previousInterval := state.IntervalDays
	if previousInterval < 1 {
		previousInterval = 1
	}

	next := State{
		EaseFactor: UpdateEasinessFactor(ef, score),
		LastScore:  &score,
	}
	if score < PassThreshold {
		next.Repetition = 0
		next.IntervalDays = 1
	} else {
		next.Repetition = state.Repetition + 1
		next.IntervalDays = CalculateNextInterval(next.Repetition, previousInterval, ef)
	}
	next.NextReviewAt = timestamp.New(now.Add(time.Duration(next.IntervalDays) * day))
	return next, nil
}

// UpdateEasinessFactor applies the SM-2 delta for quality q and clamps to MinEasinessFactor.
func UpdateEasinessFactor(ef float64, quality int) float64 {
	q := float64(quality)
	delta := 0.1 - (5-q)*(0.08+(5-q)*0.02)
	return math.Max(ef+delta, MinEasinessFactor)
}

// CalculateNextInterval returns the interval in days after a successful review.
// ef is the ease factor in effect before the review.
func CalculateNextInterval(repetition int, previousInterval int, ef float64) int {
	switch repetition {
	case 1:
		return 1
	case 2:
		return 6
	default:
		interval := int(math.Round(float64(previousInterval) * ef))
		if interval < 1 {
			return 1
		}
		return interval
	}
}
