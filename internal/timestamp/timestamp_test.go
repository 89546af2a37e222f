package timestamp

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{
			name:  "canonical layout",
			input: "2025-03-01T12:00:00.000Z",
			want:  "2025-03-01T12:00:00.000Z",
		},
		{
			name:  "RFC3339 with offset is normalized to UTC",
			input: "2025-03-01T21:00:00+09:00",
			want:  "2025-03-01T12:00:00.000Z",
		},
		{
			name:  "RFC3339Nano is truncated to milliseconds",
			input: "2025-03-01T12:00:00.123456789Z",
			want:  "2025-03-01T12:00:00.123Z",
		},
		{
			name:    "invalid date",
			input:   "2025-13-40",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestTime_StringOrdering(t *testing.T) {
	earlier := New(time.Date(2025, 3, 1, 9, 59, 59, 999_000_000, time.UTC))
	later := New(time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC))

	assert.True(t, earlier.Before(later))
	assert.Less(t, earlier.String(), later.String())
}

func TestTime_JSON(t *testing.T) {
	var record struct {
		At Time `json:"at"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"at":"2025-03-02T12:00:00.000Z"}`), &record))
	assert.Equal(t, New(time.Date(2025, 3, 2, 12, 0, 0, 0, time.UTC)), record.At)

	data, err := json.Marshal(record)
	require.NoError(t, err)
	assert.JSONEq(t, `{"at":"2025-03-02T12:00:00.000Z"}`, string(data))

	assert.Error(t, json.Unmarshal([]byte(`{"at":"yesterday"}`), &record))
}

func TestTime_YAML(t *testing.T) {
	var record struct {
		At Time `yaml:"at"`
	}
	require.NoError(t, yaml.Unmarshal([]byte(`at: "2025-03-02T12:00:00.000Z"`), &record))
	assert.Equal(t, "2025-03-02T12:00:00.000Z", record.At.String())

	data, err := yaml.Marshal(record)
	require.NoError(t, err)
	assert.Contains(t, string(data), "2025-03-02T12:00:00.000Z")
}

func TestTime_Scan(t *testing.T) {
	want := New(time.Date(2025, 3, 2, 12, 0, 0, 0, time.UTC))

	tests := []struct {
		name    string
		src     any
		want    Time
		wantErr bool
	}{
		{name: "string", src: "2025-03-02T12:00:00.000Z", want: want},
		{name: "bytes", src: []byte("2025-03-02T12:00:00.000Z"), want: want},
		{name: "time", src: time.Date(2025, 3, 2, 21, 0, 0, 0, time.FixedZone("JST", 9*60*60)), want: want},
		{name: "null", src: nil, want: Time{}},
		{name: "unsupported type", src: 42, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got Time
			err := got.Scan(tt.src)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "want %s, got %s", tt.want, got)
		})
	}
}

func TestTime_Value(t *testing.T) {
	v, err := New(time.Date(2025, 3, 2, 12, 0, 0, 7_000_000, time.UTC)).Value()
	require.NoError(t, err)
	assert.Equal(t, "2025-03-02T12:00:00.007Z", v)
}

func TestFixedClock(t *testing.T) {
	clock := NewFixedClock(time.Date(2025, 3, 1, 12, 0, 0, 123_456_789, time.UTC))
	assert.Equal(t, time.Date(2025, 3, 1, 12, 0, 0, 123_000_000, time.UTC), clock.Now())

	clock.Advance(time.Second)
	assert.Equal(t, time.Date(2025, 3, 1, 12, 0, 1, 123_000_000, time.UTC), clock.Now())

	clock.Set(time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC), clock.Now())
}
