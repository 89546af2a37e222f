package inference

import (
	"context"
)

//go:generate mockgen -source=interface.go -destination=../mocks/inference/mock_client.go -package=mock_inference

// Client interface defines the methods for AI inference operations
type Client interface {
	GenerateWordDetails(ctx context.Context, params GenerateWordDetailsRequest) (GenerateWordDetailsResponse, error)
}

// GenerateWordDetailsRequest asks for the missing fields of a word the user typed in.
type GenerateWordDetailsRequest struct {
	Text string `json:"text"`
	// Optional: values the user already filled in; the model keeps them as they are
	Reading string `json:"reading,omitempty"`
	Meaning string `json:"meaning,omitempty"`
	Example string `json:"example,omitempty"`
	// Optional: the language meanings should be written in, e.g. "English"
	MeaningLanguage string `json:"meaning_language,omitempty"`
}

type GenerateWordDetailsResponse struct {
	Reading string `json:"reading"`
	Meaning string `json:"meaning"`
	Example string `json:"example"`
	// Anything else the model returned, e.g. part of speech or synonyms
	Metadata map[string]any `json:"metadata,omitempty"`
}

const (
	DefaultMaxRetryAttempts = 3
)
