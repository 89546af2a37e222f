package syncapi

import (
	"encoding/json"
	"fmt"

	"connectrpc.com/connect"

	"github.com/at-ishikawa/tango/internal/timestamp"
)

const (
	// SyncServiceName is the fully-qualified name of the sync RPC service.
	SyncServiceName = "tango.sync.v1.SyncService"

	SyncServicePushProcedure = "/" + SyncServiceName + "/Push"
	SyncServiceGetProcedure  = "/" + SyncServiceName + "/Get"

	StatusConflict = "conflict"
)

// PushRecordRequest is the RPC form of PushRequest. The entity is named in the body instead of the path.
type PushRecordRequest struct {
	EntityType      string          `json:"entity_type"`
	EntityID        string          `json:"entity_id"`
	Payload         json.RawMessage `json:"payload"`
	ClientUpdatedAt timestamp.Time  `json:"client_updated_at"`
}

// PushRecordResponse reports the outcome of a push.
// A conflict is a regular response with Status "conflict" and ServerUpdatedAt set.
type PushRecordResponse struct {
	Status          string          `json:"status"`
	EntityType      string          `json:"entity_type"`
	EntityID        string          `json:"entity_id"`
	UpdatedAt       timestamp.Time  `json:"updated_at"`
	ServerUpdatedAt *timestamp.Time `json:"server_updated_at,omitempty"`
}

type GetRecordRequest struct {
	EntityType string `json:"entity_type"`
	EntityID   string `json:"entity_id"`
}

type GetRecordResponse struct {
	Record Record `json:"record"`
}

// JSONCodec serializes the RPC messages with encoding/json.
// It is registered under the name "json" so clients and handlers exchange application/json bodies.
type JSONCodec struct{}

var _ connect.Codec = JSONCodec{}

func (JSONCodec) Name() string { return "json" }

func (JSONCodec) Marshal(message any) ([]byte, error) {
	data, err := json.Marshal(message)
	if err != nil {
		return nil, fmt.Errorf("json.Marshal(%T) > %w", message, err)
	}
	return data, nil
}

func (JSONCodec) Unmarshal(data []byte, message any) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, message); err != nil {
		return fmt.Errorf("json.Unmarshal(%T) > %w", message, err)
	}
	return nil
}
