// Package syncapi defines the JSON messages exchanged between the sync client and the sync server.
package syncapi

import (
	"encoding/json"

	"github.com/at-ishikawa/tango/internal/timestamp"
)

const (
	// RecordPath addresses one entity. Push is a POST, fetch is a GET.
	RecordPath = "/v1/sync/{entity_type}/{entity_id}"
	HealthPath = "/healthz"

	StatusAccepted = "accepted"
)

type PushRequest struct {
	Payload         json.RawMessage `json:"payload"`
	ClientUpdatedAt timestamp.Time  `json:"client_updated_at"`
}

type PushResponse struct {
	Status     string         `json:"status"`
	EntityType string         `json:"entity_type"`
	EntityID   string         `json:"entity_id"`
	UpdatedAt  timestamp.Time `json:"updated_at"`
}

// ErrorResponse is returned with every non-2xx status. ServerUpdatedAt is set on 409 Conflict.
type ErrorResponse struct {
	Error           string          `json:"error"`
	ServerUpdatedAt *timestamp.Time `json:"server_updated_at,omitempty"`
}

// Record is the server copy of an entity.
type Record struct {
	EntityType string          `json:"entity_type" db:"entity_type"`
	EntityID   string          `json:"entity_id" db:"entity_id"`
	Payload    json.RawMessage `json:"payload" db:"payload"`
	UpdatedAt  timestamp.Time  `json:"updated_at" db:"updated_at"`
	ReceivedAt timestamp.Time  `json:"received_at" db:"received_at"`
}
