package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/at-ishikawa/tango/internal/database"
	"github.com/at-ishikawa/tango/internal/syncapi"
	"github.com/at-ishikawa/tango/internal/syncqueue"
	"github.com/at-ishikawa/tango/internal/testutil"
	"github.com/at-ishikawa/tango/internal/timestamp"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter(t *testing.T, token string) (*gin.Engine, *DBRecordRepository) {
	t.Helper()
	records := NewDBRecordRepository(testutil.NewTestDB(t, database.SchemaServer))
	handler := NewSyncHandler(records, timestamp.NewFixedClock(t0.Add(time.Hour)), nil)
	return NewRouter(RouterConfig{SyncHandler: handler, Token: token}), records
}

func wordPushBody(t *testing.T, id, meaning string, updatedAt time.Time) []byte {
	t.Helper()
	w := testutil.NewWord("serendipity", t0, testutil.WithID(id), testutil.WithUpdatedAt(updatedAt))
	w.Meaning = meaning
	payload, err := syncqueue.EncodePayload(syncqueue.WordPayload{Word: *w})
	require.NoError(t, err)
	body, err := json.Marshal(syncapi.PushRequest{Payload: payload, ClientUpdatedAt: timestamp.New(updatedAt)})
	require.NoError(t, err)
	return body
}

func doRequest(router http.Handler, method, path string, body []byte, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestSyncHandler_Push(t *testing.T) {
	router, records := newTestRouter(t, "")

	rec := doRequest(router, http.MethodPost, "/v1/sync/word/w1", wordPushBody(t, "w1", "first", t0), "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var accepted syncapi.PushResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &accepted))
	assert.Equal(t, syncapi.PushResponse{
		Status:     syncapi.StatusAccepted,
		EntityType: "word",
		EntityID:   "w1",
		UpdatedAt:  timestamp.New(t0),
	}, accepted)

	rec = doRequest(router, http.MethodPost, "/v1/sync/word/w1", wordPushBody(t, "w1", "stale", t0.Add(-time.Minute)), "")
	require.Equal(t, http.StatusConflict, rec.Code)
	var conflict syncapi.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &conflict))
	require.NotNil(t, conflict.ServerUpdatedAt)
	assert.Equal(t, "2025-03-01T12:00:00.000Z", conflict.ServerUpdatedAt.String())

	rec = doRequest(router, http.MethodPost, "/v1/sync/word/w1", wordPushBody(t, "w1", "second", t0.Add(time.Second)), "")
	require.Equal(t, http.StatusOK, rec.Code)

	stored, err := records.Get(context.Background(), "word", "w1")
	require.NoError(t, err)
	require.NotNil(t, stored)
	payload, err := syncqueue.DecodePayload(syncqueue.EntityTypeWord, stored.Payload)
	require.NoError(t, err)
	assert.Equal(t, "second", payload.(syncqueue.WordPayload).Word.Meaning)
	assert.Equal(t, "2025-03-01T13:00:00.000Z", stored.ReceivedAt.String())
}

func TestSyncHandler_Push_BadRequest(t *testing.T) {
	router, _ := newTestRouter(t, "")
	valid := wordPushBody(t, "w1", "m", t0)

	tests := []struct {
		name       string
		path       string
		body       []byte
		wantStatus int
	}{
		{name: "unknown entity type", path: "/v1/sync/deck/w1", body: valid, wantStatus: http.StatusNotFound},
		{name: "malformed json", path: "/v1/sync/word/w1", body: []byte(`{`), wantStatus: http.StatusBadRequest},
		{name: "missing client_updated_at", path: "/v1/sync/word/w1", body: []byte(`{"payload":{"word":{"id":"w1"}}}`), wantStatus: http.StatusBadRequest},
		{name: "payload of another entity", path: "/v1/sync/word/w2", body: valid, wantStatus: http.StatusBadRequest},
		{name: "payload without id", path: "/v1/sync/word/w1", body: []byte(`{"payload":{"word":{}},"client_updated_at":"2025-03-01T12:00:00.000Z"}`), wantStatus: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(router, http.MethodPost, tt.path, tt.body, "")
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			var resp syncapi.ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.NotEmpty(t, resp.Error)
		})
	}
}

func TestSyncHandler_Get(t *testing.T) {
	router, _ := newTestRouter(t, "")

	rec := doRequest(router, http.MethodGet, "/v1/sync/word/w1", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	require.Equal(t, http.StatusOK, doRequest(router, http.MethodPost, "/v1/sync/word/w1", wordPushBody(t, "w1", "m", t0), "").Code)

	rec = doRequest(router, http.MethodGet, "/v1/sync/word/w1", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var record syncapi.Record
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &record))
	assert.Equal(t, "word", record.EntityType)
	assert.Equal(t, "w1", record.EntityID)
	assert.Equal(t, "2025-03-01T12:00:00.000Z", record.UpdatedAt.String())
}

func TestRouter_Auth(t *testing.T) {
	router, _ := newTestRouter(t, "s3cret")
	body := wordPushBody(t, "w1", "m", t0)

	tests := []struct {
		name       string
		method     string
		path       string
		token      string
		wantStatus int
	}{
		{name: "health is public", method: http.MethodGet, path: syncapi.HealthPath, wantStatus: http.StatusOK},
		{name: "missing token", method: http.MethodPost, path: "/v1/sync/word/w1", wantStatus: http.StatusUnauthorized},
		{name: "wrong token", method: http.MethodPost, path: "/v1/sync/word/w1", token: "nope", wantStatus: http.StatusUnauthorized},
		{name: "valid token", method: http.MethodPost, path: "/v1/sync/word/w1", token: "s3cret", wantStatus: http.StatusOK},
		{name: "get needs a token too", method: http.MethodGet, path: "/v1/sync/word/w1", wantStatus: http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(router, tt.method, tt.path, body, tt.token)
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
		})
	}
}

func TestHealth(t *testing.T) {
	router, _ := newTestRouter(t, "")
	rec := doRequest(router, http.MethodGet, syncapi.HealthPath, nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestRouter_CORS(t *testing.T) {
	records := NewDBRecordRepository(testutil.NewTestDB(t, database.SchemaServer))
	router := NewRouter(RouterConfig{
		SyncHandler:    NewSyncHandler(records, nil, nil),
		AllowedOrigins: []string{"http://localhost:3000"},
	})

	req := httptest.NewRequest(http.MethodOptions, "/v1/sync/word/w1", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
}
