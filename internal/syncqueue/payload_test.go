package syncqueue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEntityType(t *testing.T) {
	got, err := ParseEntityType("review_event")
	require.NoError(t, err)
	assert.Equal(t, EntityTypeReviewEvent, got)

	_, err = ParseEntityType("note")
	assert.ErrorIs(t, err, ErrUnknownEntityType)
}

type unknownPayload struct{}

func (unknownPayload) EntityType() EntityType { return "note" }
func (unknownPayload) EntityID() string { return "n1" }
func (unknownPayload) isPayload() {}

func TestEncodeDecodePayload(t *testing.T) {
	tests := []struct {
		name    string
		payload Payload
	}{
		{name: "word", payload: wordPayload("w1", "cat", t0)},
		{name: "word tombstone", payload: WordPayload{Word: wordPayload("w1", "cat", t0).Word, Deleted: true}},
		{name: "review event", payload: eventPayload("e1", "w1", t0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := EncodePayload(tt.payload)
			require.NoError(t, err)

			got, err := DecodePayload(tt.payload.EntityType(), data)
			require.NoError(t, err)
			assert.Equal(t, tt.payload, got)
		})
	}
}

func TestEncodePayload_WireFormat(t *testing.T) {
	data, err := EncodePayload(eventPayload("e1", "w1", t0))
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":{"id":"e1","word_id":"w1","result":"familiar","score":4,"reviewed_at":"2025-03-01T12:00:00.000Z"}}`, string(data))

	tombstone, err := EncodePayload(WordPayload{Word: wordPayload("w1", "cat", t0).Word, Deleted: true})
	require.NoError(t, err)
	assert.Contains(t, string(tombstone), `"deleted":true`)
}

func TestEncodePayload_Errors(t *testing.T) {
	_, err := EncodePayload(nil)
	assert.ErrorIs(t, err, ErrInvalidPayload)

	_, err = EncodePayload(unknownPayload{})
	assert.ErrorIs(t, err, ErrUnknownEntityType)
}

func TestDecodePayload_Errors(t *testing.T) {
	tests := []struct {
		name       string
		entityType EntityType
		data       string
		wantErr    error
	}{
		{name: "unknown type", entityType: "note", data: `{}`, wantErr: ErrUnknownEntityType},
		{name: "malformed word", entityType: EntityTypeWord, data: `{"word":`, wantErr: ErrInvalidPayload},
		{name: "word without id", entityType: EntityTypeWord, data: `{"word":{"text":"猫"}}`, wantErr: ErrInvalidPayload},
		{name: "event without id", entityType: EntityTypeReviewEvent, data: `{"event":{"word_id":"w1"}}`, wantErr: ErrInvalidPayload},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodePayload(tt.entityType, []byte(tt.data))
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}
