// Package server is the reference sync server. It keeps the last-writer-wins copy of every entity
// pushed by clients.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/at-ishikawa/tango/internal/logger"
	"github.com/at-ishikawa/tango/internal/syncapi"
	"github.com/at-ishikawa/tango/internal/syncqueue"
	"github.com/at-ishikawa/tango/internal/timestamp"
)

type SyncHandler struct {
	records RecordRepository
	clock   timestamp.Clock
	logger  *logger.Logger
}

func NewSyncHandler(records RecordRepository, clock timestamp.Clock, log *logger.Logger) *SyncHandler {
	if clock == nil {
		clock = timestamp.SystemClock{}
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &SyncHandler{records: records, clock: clock, logger: log.With("handler", "SyncHandler")}
}

func respondError(c *gin.Context, status int, err error) {
	c.JSON(status, syncapi.ErrorResponse{Error: err.Error()})
}

// errInvalidRecord marks a push the server refuses to store.
var errInvalidRecord = errors.New("invalid record")

// push validates a pushed snapshot and stores it unless the server copy is at least as new.
func (h *SyncHandler) push(ctx context.Context, entityType syncqueue.EntityType, entityID string, data json.RawMessage, clientUpdatedAt timestamp.Time) (PushOutcome, error) {
	if clientUpdatedAt.IsZero() {
		return PushOutcome{}, fmt.Errorf("%w: client_updated_at is required", errInvalidRecord)
	}
	payload, err := syncqueue.DecodePayload(entityType, data)
	if err != nil {
		return PushOutcome{}, fmt.Errorf("%w: %w", errInvalidRecord, err)
	}
	if payload.EntityID() != entityID {
		return PushOutcome{}, fmt.Errorf("%w: payload id %q does not match %q", errInvalidRecord, payload.EntityID(), entityID)
	}

	outcome, err := h.records.Push(ctx, syncapi.Record{
		EntityType: string(entityType),
		EntityID:   entityID,
		Payload:    data,
		UpdatedAt:  clientUpdatedAt,
		ReceivedAt: timestamp.New(h.clock.Now()),
	})
	if err != nil {
		h.logger.Error("failed to store record", "entity_type", entityType, "entity_id", entityID, "error", err)
		return PushOutcome{}, errors.New("failed to store record")
	}
	if !outcome.Accepted {
		h.logger.Info("push rejected by newer server copy",
			"entity_type", entityType,
			"entity_id", entityID,
			"client_updated_at", clientUpdatedAt.String(),
			"server_updated_at", outcome.Current.UpdatedAt.String(),
		)
	}
	return outcome, nil
}

func (h *SyncHandler) get(ctx context.Context, entityType syncqueue.EntityType, entityID string) (*syncapi.Record, error) {
	record, err := h.records.Get(ctx, string(entityType), entityID)
	if err != nil {
		h.logger.Error("failed to get record", "entity_type", entityType, "entity_id", entityID, "error", err)
		return nil, errors.New("failed to get record")
	}
	return record, nil
}

// Push handles POST /v1/sync/:entity_type/:entity_id.
func (h *SyncHandler) Push(c *gin.Context) {
	entityType, err := syncqueue.ParseEntityType(c.Param("entity_type"))
	if err != nil {
		respondError(c, http.StatusNotFound, err)
		return
	}
	entityID := c.Param("entity_id")

	var req syncapi.PushRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	outcome, err := h.push(c.Request.Context(), entityType, entityID, req.Payload, req.ClientUpdatedAt)
	if errors.Is(err, errInvalidRecord) {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}

	if !outcome.Accepted {
		serverUpdatedAt := outcome.Current.UpdatedAt
		c.JSON(http.StatusConflict, syncapi.ErrorResponse{
			Error:           "server copy is newer",
			ServerUpdatedAt: &serverUpdatedAt,
		})
		return
	}

	c.JSON(http.StatusOK, syncapi.PushResponse{
		Status:     syncapi.StatusAccepted,
		EntityType: string(entityType),
		EntityID:   entityID,
		UpdatedAt:  outcome.Current.UpdatedAt,
	})
}

// Get handles GET /v1/sync/:entity_type/:entity_id.
func (h *SyncHandler) Get(c *gin.Context) {
	entityType, err := syncqueue.ParseEntityType(c.Param("entity_type"))
	if err != nil {
		respondError(c, http.StatusNotFound, err)
		return
	}
	entityID := c.Param("entity_id")

	record, err := h.get(c.Request.Context(), entityType, entityID)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	if record == nil {
		respondError(c, http.StatusNotFound, fmt.Errorf("%s %s not found", entityType, entityID))
		return
	}
	c.JSON(http.StatusOK, record)
}

func Health(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}
