// Package word provides the vocabulary word entity and its repository.
package word

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/at-ishikawa/tango/internal/scheduler"
	"github.com/at-ishikawa/tango/internal/timestamp"
	"github.com/at-ishikawa/tango/internal/validation"
)

// Familiarity is the coarse learning stage shown to the user.
type Familiarity string

const (
	FamiliarityNew      Familiarity = "new"
	FamiliarityLearning Familiarity = "learning"
	FamiliarityFamiliar Familiarity = "familiar"
	FamiliarityMastered Familiarity = "mastered"

	// masteredInterval is the interval in days from which a word counts as mastered.
	masteredInterval   = 21
	masteredRepetition = 3
)

var familiarities = []Familiarity{FamiliarityNew, FamiliarityLearning, FamiliarityFamiliar, FamiliarityMastered}

// ParseFamiliarity returns the familiarity named by value.
func ParseFamiliarity(value string) (Familiarity, error) {
	for _, f := range familiarities {
		if string(f) == value {
			return f, nil
		}
	}
	return "", validation.NewError(fmt.Sprintf("familiarity must be one of [new learning familiar mastered], got %q", value))
}

// FamiliarityOf derives the familiarity of a word from its state right after a review.
func FamiliarityOf(state scheduler.State) Familiarity {
	if state.LastScore == nil {
		return FamiliarityNew
	}
	if *state.LastScore < scheduler.PassThreshold {
		return FamiliarityLearning
	}
	if state.Repetition >= masteredRepetition && state.IntervalDays >= masteredInterval {
		return FamiliarityMastered
	}
	return FamiliarityFamiliar
}

// Metadata is free-form data attached by AI generation. Stored as a JSON column.
type Metadata map[string]any

// Scan implements sql.Scanner.
func (m *Metadata) Scan(src any) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*m = nil
		return nil
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		return fmt.Errorf("unsupported metadata column type %T", src)
	}
	if len(data) == 0 {
		*m = nil
		return nil
	}

	var result Metadata
	if err := json.Unmarshal(data, &result); err != nil {
		return fmt.Errorf("json.Unmarshal(metadata) > %w", err)
	}
	*m = result
	return nil
}

// Value implements driver.Valuer.
func (m Metadata) Value() (driver.Value, error) {
	if len(m) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("json.Marshal(metadata) > %w", err)
	}
	return string(data), nil
}

// Word is a vocabulary entry together with its scheduling state.
type Word struct {
	ID          string      `json:"id" yaml:"id" db:"id" validate:"required"`
	Text        string      `json:"text" yaml:"text" db:"text" validate:"required,max=255"`
	Reading     string      `json:"reading" yaml:"reading" db:"reading" validate:"max=255"`
	Meaning     string      `json:"meaning" yaml:"meaning" db:"meaning"`
	Example     string      `json:"example" yaml:"example" db:"example"`
	AIMetadata  Metadata    `json:"ai_metadata,omitempty" yaml:"ai_metadata,omitempty" db:"ai_metadata"`
	Familiarity Familiarity `json:"familiarity" yaml:"familiarity" db:"familiarity" validate:"required,oneof=new learning familiar mastered"`
	ReviewCount int         `json:"review_count" yaml:"review_count" db:"review_count" validate:"min=0"`

	scheduler.State `yaml:",inline"`

	CreatedAt      timestamp.Time `json:"created_at" yaml:"created_at" db:"created_at"`
	UpdatedAt      timestamp.Time `json:"updated_at" yaml:"updated_at" db:"updated_at"`
	LastReviewedAt timestamp.Time `json:"last_reviewed_at" yaml:"last_reviewed_at" db:"last_reviewed_at"`
}

// New creates a word that has never been reviewed. It is due immediately.
func New(text, reading, meaning, example string, now time.Time) *Word {
	created := timestamp.New(now)
	return &Word{
		ID:             uuid.Must(uuid.NewV7()).String(),
		Text:           text,
		Reading:        reading,
		Meaning:        meaning,
		Example:        example,
		Familiarity:    FamiliarityNew,
		State:          scheduler.NewState(now),
		CreatedAt:      created,
		UpdatedAt:      created,
		LastReviewedAt: created,
	}
}

// SchedulingKey orders ties in the due queue.
func (w Word) SchedulingKey() string {
	return w.ID
}

// Validate checks field constraints and timestamp ordering.
func (w *Word) Validate(v *validation.Validator) error {
	if err := v.Struct(w); err != nil {
		return err
	}
	if w.CreatedAt.IsZero() {
		return validation.NewError("created_at is a required field")
	}
	if w.UpdatedAt.Before(w.CreatedAt) {
		return validation.NewError("updated_at must not be before created_at")
	}
	return nil
}
