// Package timestamp provides the millisecond-precision UTC timestamp used by every persisted and synced entity.
package timestamp

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Layout is the ISO-8601 layout for all stored and transmitted timestamps.
// Values in this layout compare correctly as strings.
const Layout = "2006-01-02T15:04:05.000Z"

// Time is a UTC instant truncated to milliseconds.
type Time struct {
	time.Time
}

// New normalizes t to UTC with millisecond precision.
func New(t time.Time) Time {
	if t.IsZero() {
		return Time{}
	}
	return Time{Time: t.UTC().Truncate(time.Millisecond)}
}

// Parse parses the canonical layout, falling back to RFC3339 and RFC3339Nano.
func Parse(value string) (Time, error) {
	for _, layout := range []string{Layout, time.RFC3339Nano, time.RFC3339} {
		t, err := time.Parse(layout, value)
		if err == nil {
			return New(t), nil
		}
	}
	return Time{}, fmt.Errorf("unable to parse timestamp %q: expected %s or RFC3339", value, Layout)
}

// String formats the time in Layout.
func (t Time) String() string {
	return t.UTC().Format(Layout)
}

// Before reports whether t is before u.
func (t Time) Before(u Time) bool {
	return t.Time.Before(u.Time)
}

// After reports whether t is after u.
func (t Time) After(u Time) bool {
	return t.Time.After(u.Time)
}

// Equal reports whether t and u represent the same instant.
func (t Time) Equal(u Time) bool {
	return t.Time.Equal(u.Time)
}

// Add returns t+d.
func (t Time) Add(d time.Duration) Time {
	return New(t.Time.Add(d))
}

// MarshalJSON implements json.Marshaler
func (t Time) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON implements json.Unmarshaler
func (t *Time) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("json.Unmarshal(timestamp) > %w", err)
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// MarshalYAML implements the yaml.Marshaler interface
func (t Time) MarshalYAML() (interface{}, error) {
	return t.String(), nil
}

// UnmarshalYAML implements the yaml.Unmarshaler interface
func (t *Time) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := Parse(value.Value)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Scan implements sql.Scanner. Text columns and driver-parsed times are both accepted.
func (t *Time) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*t = Time{}
		return nil
	case string:
		parsed, err := Parse(v)
		if err != nil {
			return err
		}
		*t = parsed
		return nil
	case []byte:
		parsed, err := Parse(string(v))
		if err != nil {
			return err
		}
		*t = parsed
		return nil
	case time.Time:
		*t = New(v)
		return nil
	default:
		return fmt.Errorf("unsupported timestamp column type %T", src)
	}
}

// Value implements driver.Valuer.
func (t Time) Value() (driver.Value, error) {
	return t.String(), nil
}
