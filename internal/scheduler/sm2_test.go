package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/at-ishikawa/tango/internal/timestamp"
)

func intPtr(v int) *int {
	return &v
}

func TestUpdateEasinessFactor(t *testing.T) {
	tests := []struct {
		name     string
		ef       float64
		quality  int
		expected float64
	}{
		{name: "quality 5 increases EF", ef: 2.5, quality: 5, expected: 2.6},
		{name: "quality 4 maintains EF", ef: 2.5, quality: 4, expected: 2.5},
		{name: "quality 3 decreases EF slightly", ef: 2.5, quality: 3, expected: 2.36},
		{name: "quality 2 decreases EF", ef: 2.5, quality: 2, expected: 2.18},
		{name: "quality 0 decreases EF most", ef: 2.5, quality: 0, expected: 1.7},
		{name: "never goes below MinEasinessFactor", ef: 1.3, quality: 1, expected: MinEasinessFactor},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, UpdateEasinessFactor(tt.ef, tt.quality), 1e-9)
		})
	}
}

func TestUpdate(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		state State
		score int
		want  State
	}{
		{
			name:  "failed recall resets repetition and interval",
			state: State{Repetition: 2, IntervalDays: 6, EaseFactor: 2.5},
			score: 2,
			want: State{
				Repetition:   0,
				IntervalDays: 1,
				EaseFactor:   2.18,
				NextReviewAt: timestamp.New(time.Date(2025, 3, 2, 12, 0, 0, 0, time.UTC)),
				LastScore:    intPtr(2),
			},
		},
		{
			name:  "first successful review",
			state: NewState(now),
			score: 4,
			want: State{
				Repetition:   1,
				IntervalDays: 1,
				EaseFactor:   2.5,
				NextReviewAt: timestamp.New(time.Date(2025, 3, 2, 12, 0, 0, 0, time.UTC)),
				LastScore:    intPtr(4),
			},
		},
		{
			name:  "second successful review",
			state: State{Repetition: 1, IntervalDays: 1, EaseFactor: 2.5},
			score: 5,
			want: State{
				Repetition:   2,
				IntervalDays: 6,
				EaseFactor:   2.6,
				NextReviewAt: timestamp.New(time.Date(2025, 3, 7, 12, 0, 0, 0, time.UTC)),
				LastScore:    intPtr(5),
			},
		},
		{
			name:  "later reviews multiply the previous interval by the previous EF",
			state: State{Repetition: 2, IntervalDays: 6, EaseFactor: 2.5},
			score: 3,
			want: State{
				Repetition:   3,
				IntervalDays: 15,
				EaseFactor:   2.36,
				NextReviewAt: timestamp.New(time.Date(2025, 3, 16, 12, 0, 0, 0, time.UTC)),
				LastScore:    intPtr(3),
			},
		},
		{
			name:  "ease factor stays at the floor",
			state: State{Repetition: 4, IntervalDays: 10, EaseFactor: 1.3},
			score: 0,
			want: State{
				Repetition:   0,
				IntervalDays: 1,
				EaseFactor:   1.3,
				NextReviewAt: timestamp.New(time.Date(2025, 3, 2, 12, 0, 0, 0, time.UTC)),
				LastScore:    intPtr(0),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Update(tt.state, tt.score, now)
			require.NoError(t, err)

			assert.Equal(t, tt.want.Repetition, got.Repetition)
			assert.Equal(t, tt.want.IntervalDays, got.IntervalDays)
			assert.InDelta(t, tt.want.EaseFactor, got.EaseFactor, 1e-9)
			assert.Equal(t, tt.want.NextReviewAt.String(), got.NextReviewAt.String())
			assert.Equal(t, tt.want.LastScore, got.LastScore)
		})
	}
}

func TestUpdate_InvalidScore(t *testing.T) {
	state := State{Repetition: 2, IntervalDays: 6, EaseFactor: 2.5}
	for _, score := range []int{-1, 6, 100} {
		_, err := Update(state, score, time.Now())
		assert.ErrorIs(t, err, ErrInvalidScore)
	}
	assert.Equal(t, State{Repetition: 2, IntervalDays: 6, EaseFactor: 2.5}, state)
}

func TestUpdate_Invariants(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	state := NewState(now)

	// walk through every score sequence of length 4
	var walk func(s State, depth int)
	walk = func(s State, depth int) {
		if depth == 0 {
			return
		}
		for score := MinScore; score <= MaxScore; score++ {
			next, err := Update(s, score, now)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, next.IntervalDays, 1)
			assert.GreaterOrEqual(t, next.EaseFactor, MinEasinessFactor)
			if score < PassThreshold {
				assert.Equal(t, 0, next.Repetition)
			} else {
				assert.Equal(t, s.Repetition+1, next.Repetition)
			}
			require.NotNil(t, next.LastScore)
			assert.Equal(t, score, *next.LastScore)
			walk(next, depth-1)
		}
	}
	walk(state, 4)
}

func TestState_NextReview(t *testing.T) {
	_, ok := State{}.NextReview()
	assert.False(t, ok)

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	at, ok := NewState(now).NextReview()
	assert.True(t, ok)
	assert.Equal(t, now, at)
}
