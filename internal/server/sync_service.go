package server

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"connectrpc.com/connect"

	"github.com/at-ishikawa/tango/internal/syncapi"
	"github.com/at-ishikawa/tango/internal/syncqueue"
)

// SyncService serves the sync API over the Connect protocol.
type SyncService struct {
	handler *SyncHandler
}

func NewSyncService(handler *SyncHandler) *SyncService {
	return &SyncService{handler: handler}
}

// NewSyncServiceHandler returns the path prefix of the service and the handler serving its procedures.
// A non-empty token requires every call to carry it as a bearer token.
func NewSyncServiceHandler(service *SyncService, token string, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(syncapi.JSONCodec{})}, opts...)
	if token != "" {
		opts = append(opts, connect.WithInterceptors(NewTokenInterceptor(token)))
	}

	mux := http.NewServeMux()
	mux.Handle(syncapi.SyncServicePushProcedure, connect.NewUnaryHandler(syncapi.SyncServicePushProcedure, service.Push, opts...))
	mux.Handle(syncapi.SyncServiceGetProcedure, connect.NewUnaryHandler(syncapi.SyncServiceGetProcedure, service.Get, opts...))
	return "/" + syncapi.SyncServiceName + "/", mux
}

func (s *SyncService) Push(
	ctx context.Context,
	req *connect.Request[syncapi.PushRecordRequest],
) (*connect.Response[syncapi.PushRecordResponse], error) {
	entityType, err := syncqueue.ParseEntityType(req.Msg.EntityType)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	if req.Msg.EntityID == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("entity_id is required"))
	}

	outcome, err := s.handler.push(ctx, entityType, req.Msg.EntityID, req.Msg.Payload, req.Msg.ClientUpdatedAt)
	if errors.Is(err, errInvalidRecord) {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	res := &syncapi.PushRecordResponse{
		Status:     syncapi.StatusAccepted,
		EntityType: string(entityType),
		EntityID:   req.Msg.EntityID,
		UpdatedAt:  outcome.Current.UpdatedAt,
	}
	if !outcome.Accepted {
		serverUpdatedAt := outcome.Current.UpdatedAt
		res.Status = syncapi.StatusConflict
		res.ServerUpdatedAt = &serverUpdatedAt
	}
	return connect.NewResponse(res), nil
}

func (s *SyncService) Get(
	ctx context.Context,
	req *connect.Request[syncapi.GetRecordRequest],
) (*connect.Response[syncapi.GetRecordResponse], error) {
	entityType, err := syncqueue.ParseEntityType(req.Msg.EntityType)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}

	record, err := s.handler.get(ctx, entityType, req.Msg.EntityID)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	if record == nil {
		return nil, connect.NewError(connect.CodeNotFound, fmt.Errorf("%s %s not found", entityType, req.Msg.EntityID))
	}
	return connect.NewResponse(&syncapi.GetRecordResponse{Record: *record}), nil
}

// NewTokenInterceptor rejects calls whose bearer token is not token.
func NewTokenInterceptor(token string) connect.UnaryInterceptorFunc {
	expected := []byte(token)
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			got := bearerToken(req.Header().Get("Authorization"))
			if got == "" || subtle.ConstantTimeCompare([]byte(got), expected) != 1 {
				return nil, connect.NewError(connect.CodeUnauthenticated, errors.New("missing or invalid token"))
			}
			return next(ctx, req)
		}
	}
}

func bearerToken(header string) string {
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		return header[7:]
	}
	return ""
}
