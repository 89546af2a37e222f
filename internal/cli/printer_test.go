package cli

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/at-ishikawa/tango/internal/learning"
	"github.com/at-ishikawa/tango/internal/scheduler"
	"github.com/at-ishikawa/tango/internal/statistics"
	"github.com/at-ishikawa/tango/internal/syncer"
	"github.com/at-ishikawa/tango/internal/syncqueue"
	"github.com/at-ishikawa/tango/internal/testutil"
	"github.com/at-ishikawa/tango/internal/timestamp"
	"github.com/at-ishikawa/tango/internal/word"
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newGoldie(t *testing.T) *goldie.Goldie {
	t.Helper()
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

func fixtureWords() []word.Word {
	score := 5
	first := testutil.NewWord("serendipity", t0, testutil.WithID("w1"))
	first.Meaning = "a happy accident"
	second := testutil.NewWord("ephemeral", t0, testutil.WithID("w2"), testutil.WithState(scheduler.State{
		Repetition:   2,
		IntervalDays: 6,
		EaseFactor:   2.6,
		NextReviewAt: timestamp.New(t0.Add(6 * 24 * time.Hour)),
		LastScore:    &score,
	}))
	second.Meaning = "lasting for a very short time"
	second.ReviewCount = 2
	return []word.Word{*first, *second}
}

func fixtureQueue() []syncqueue.Item {
	words := fixtureWords()
	lastError := "response error 503: Service Unavailable"
	event := learning.ReviewEvent{
		ID:         "e1",
		WordID:     "w1",
		Result:     word.FamiliarityLearning,
		Score:      2,
		ReviewedAt: timestamp.New(t0.Add(time.Minute)),
	}
	return []syncqueue.Item{
		{
			ID:              "q1",
			EntityType:      syncqueue.EntityTypeWord,
			EntityID:        "w1",
			Payload:         syncqueue.WordPayload{Word: words[0]},
			ClientUpdatedAt: timestamp.New(t0),
			NextAttemptAt:   timestamp.New(t0),
		},
		{
			ID:              "q2",
			EntityType:      syncqueue.EntityTypeReviewEvent,
			EntityID:        "e1",
			Payload:         syncqueue.ReviewEventPayload{Event: event},
			ClientUpdatedAt: timestamp.New(t0.Add(time.Minute)),
			Attempt:         2,
			NextAttemptAt:   timestamp.New(t0.Add(time.Minute + 3*time.Second)),
			LastError:       &lastError,
		},
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		input   string
		want    Format
		wantErr bool
	}{
		{input: "", want: FormatTable},
		{input: "table", want: FormatTable},
		{input: "YAML", want: FormatYAML},
		{input: "yml", want: FormatYAML},
		{input: "json", want: FormatJSON},
		{input: "csv", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseFormat(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPrinter_Table(t *testing.T) {
	words := fixtureWords()
	history := []learning.ReviewEvent{
		{ID: "e2", WordID: "w2", Result: word.FamiliarityFamiliar, Score: 5, ReviewedAt: timestamp.New(t0.Add(24 * time.Hour))},
		{ID: "e1", WordID: "w2", Result: word.FamiliarityFamiliar, Score: 4, ReviewedAt: timestamp.New(t0)},
	}

	tests := []struct {
		name  string
		print func(p *Printer) error
	}{
		{name: "words_table", print: func(p *Printer) error { return p.Words(words) }},
		{name: "words_empty", print: func(p *Printer) error { return p.Words(nil) }},
		{name: "word_detail_table", print: func(p *Printer) error {
			return p.Word(WordDetail{Word: &words[1], History: history})
		}},
		{name: "queue_table", print: func(p *Printer) error { return p.Queue(fixtureQueue()) }},
		{name: "queue_stats_table", print: func(p *Printer) error {
			return p.QueueStats(syncqueue.Stats{Total: 2, Due: 1, Failing: 1, MaxAttempt: 2})
		}},
		{name: "sync_summary_table", print: func(p *Printer) error {
			return p.SyncSummary(syncer.Summary{Due: 5, Synced: 2, Superseded: 1, ServerWins: 1, Failed: 1})
		}},
		{name: "statistics_table", print: func(p *Printer) error {
			return p.Statistics(statistics.StatisticsResult{
				Periods: []statistics.PeriodStatistics{
					{Period: "2025-03", AddCount: 4, ReviewCount: 12, ActiveDays: 3},
					{Period: "2025-02", AddCount: 10, ReviewCount: 0, ActiveDays: 2},
				},
				Aggregate: statistics.AggregateStatistics{AddCount: 14, ReviewCount: 12, ActiveDays: 5, CurrentStreak: 2},
			})
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			require.NoError(t, tt.print(NewPrinter(&out, FormatTable)))
			newGoldie(t).Assert(t, tt.name, out.Bytes())
		})
	}
}

func TestPrinter_YAML(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, NewPrinter(&out, FormatYAML).Queue(fixtureQueue()))

	var got []map[string]any
	require.NoError(t, yaml.Unmarshal(out.Bytes(), &got))
	require.Len(t, got, 2)
	assert.Equal(t, "q2", got[1]["id"])
	assert.Equal(t, "review_event", got[1]["entity_type"])
	assert.Equal(t, 2, got[1]["attempt"])
	assert.Equal(t, "2025-03-01T12:01:03.000Z", got[1]["next_attempt_at"])
	assert.Equal(t, "response error 503: Service Unavailable", got[1]["last_error"])
	assert.Nil(t, got[0]["last_error"])

	payload := got[0]["payload"].(map[string]any)["word"].(map[string]any)
	assert.Equal(t, "serendipity", payload["text"])
	assert.Equal(t, 1, payload["interval_days"])
}

func TestPrinter_JSON(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, NewPrinter(&out, FormatJSON).Statistics(statistics.StatisticsResult{
		Periods:   []statistics.PeriodStatistics{{Period: "2025-03", AddCount: 1, ReviewCount: 2, ActiveDays: 1}},
		Aggregate: statistics.AggregateStatistics{AddCount: 1, ReviewCount: 2, ActiveDays: 1, CurrentStreak: 1},
	}))
	assert.JSONEq(t, `{
		"periods": [{"period": "2025-03", "add_count": 1, "review_count": 2, "active_days": 1}],
		"aggregate": {"add_count": 1, "review_count": 2, "active_days": 1, "current_streak": 1}
	}`, out.String())

	out.Reset()
	require.NoError(t, NewPrinter(&out, FormatJSON).Words(fixtureWords()[:1]))
	var words []map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &words))
	require.Len(t, words, 1)
	assert.Equal(t, "w1", words[0]["id"])
	assert.Equal(t, "new", words[0]["familiarity"])
	assert.Equal(t, 2.5, words[0]["ease_factor"])
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcd…", truncate("abcdefgh", 5))
	assert.Equal(t, "猫", truncate("猫", 1))
}
