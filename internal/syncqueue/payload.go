package syncqueue

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/at-ishikawa/tango/internal/learning"
	"github.com/at-ishikawa/tango/internal/word"
)

var (
	ErrUnknownEntityType = errors.New("unknown entity type")
	ErrInvalidPayload    = errors.New("invalid payload")
)

// EntityType discriminates what a queue item carries.
type EntityType string

const (
	EntityTypeWord        EntityType = "word"
	EntityTypeReviewEvent EntityType = "review_event"
)

// ParseEntityType returns the entity type named by value.
func ParseEntityType(value string) (EntityType, error) {
	switch EntityType(value) {
	case EntityTypeWord, EntityTypeReviewEvent:
		return EntityType(value), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownEntityType, value)
	}
}

// Payload is the snapshot of an entity sent to the server.
// The set of implementations is closed: WordPayload and ReviewEventPayload.
type Payload interface {
	EntityType() EntityType
	EntityID() string
	isPayload()
}

// WordPayload carries a word. Deleted marks a tombstone for a removed word.
type WordPayload struct {
	Word    word.Word `json:"word" yaml:"word"`
	Deleted bool      `json:"deleted,omitempty" yaml:"deleted,omitempty"`
}

func (WordPayload) EntityType() EntityType { return EntityTypeWord }
func (p WordPayload) EntityID() string { return p.Word.ID }
func (WordPayload) isPayload() {}

// ReviewEventPayload carries one review event.
type ReviewEventPayload struct {
	Event learning.ReviewEvent `json:"event" yaml:"event"`
}

func (ReviewEventPayload) EntityType() EntityType { return EntityTypeReviewEvent }
func (p ReviewEventPayload) EntityID() string { return p.Event.ID }
func (ReviewEventPayload) isPayload() {}

// EncodePayload serializes a payload as JSON.
func EncodePayload(payload Payload) ([]byte, error) {
	switch p := payload.(type) {
	case WordPayload:
		data, err := json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("json.Marshal(word payload) > %w", err)
		}
		return data, nil
	case ReviewEventPayload:
		data, err := json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("json.Marshal(review_event payload) > %w", err)
		}
		return data, nil
	case nil:
		return nil, fmt.Errorf("%w: payload is nil", ErrInvalidPayload)
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownEntityType, payload)
	}
}

// DecodePayload parses data as the payload of entityType.
func DecodePayload(entityType EntityType, data []byte) (Payload, error) {
	switch entityType {
	case EntityTypeWord:
		var p WordPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("%w: json.Unmarshal(word payload) > %v", ErrInvalidPayload, err)
		}
		if p.Word.ID == "" {
			return nil, fmt.Errorf("%w: word id is empty", ErrInvalidPayload)
		}
		return p, nil
	case EntityTypeReviewEvent:
		var p ReviewEventPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("%w: json.Unmarshal(review_event payload) > %v", ErrInvalidPayload, err)
		}
		if p.Event.ID == "" {
			return nil, fmt.Errorf("%w: review event id is empty", ErrInvalidPayload)
		}
		return p, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEntityType, entityType)
	}
}
