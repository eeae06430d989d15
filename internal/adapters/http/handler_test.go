package httpadapter_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpadapter "github.com/danielsoto/norte-agent/internal/adapters/http"
	"github.com/danielsoto/norte-agent/internal/adapters/llm"
	"github.com/danielsoto/norte-agent/internal/adapters/storage/memory"
	"github.com/danielsoto/norte-agent/internal/adapters/telemetry"
	"github.com/danielsoto/norte-agent/internal/app/conversation"
	"github.com/danielsoto/norte-agent/internal/app/knowledge"
	"github.com/danielsoto/norte-agent/internal/app/stage"
)

func newTestServer(t *testing.T) (http.Handler, *llm.MockModel) {
	t.Helper()
	model := llm.NewMockModel()
	svc := conversation.NewService(
		model,
		memory.NewSessionStore(),
		telemetry.NewCaptureSink(),
		stage.DefaultTable(),
		knowledge.DefaultParams(),
	)
	return httpadapter.NewServer(svc), model
}

func doJSON(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(rec.Body).Decode(v))
}

func TestHealthz(t *testing.T) {
	h, _ := newTestServer(t)
	rec := doJSON(t, h, http.MethodGet, "/healthz", "")

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	decodeBody(t, rec, &body)
	assert.Equal(t, "ok", body["status"])
}

func TestCreateSession(t *testing.T) {
	h, _ := newTestServer(t)
	rec := doJSON(t, h, http.MethodPost, "/sessions", "")

	require.Equal(t, http.StatusCreated, rec.Code)

	var body struct {
		SessionID string `json:"session_id"`
		Stage     string `json:"stage"`
		AgentText string `json:"agent_text"`
	}
	decodeBody(t, rec, &body)
	assert.NotEmpty(t, body.SessionID)
	assert.Equal(t, "introduction", body.Stage)
	assert.NotEmpty(t, body.AgentText)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestCreateSessionConflict(t *testing.T) {
	h, _ := newTestServer(t)

	rec := doJSON(t, h, http.MethodPost, "/sessions", `{"session_id": "fixed"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, h, http.MethodPost, "/sessions", `{"session_id": "fixed"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestSendMessageAdvancesStage(t *testing.T) {
	h, _ := newTestServer(t)
	doJSON(t, h, http.MethodPost, "/sessions", `{"session_id": "s-1"}`)

	rec := doJSON(t, h, http.MethodPost, "/sessions/s-1/messages", `{"text": "hello there"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Stage        string `json:"stage"`
		Transitioned bool   `json:"transitioned"`
		AgentText    string `json:"agent_text"`
	}
	decodeBody(t, rec, &body)
	assert.True(t, body.Transitioned)
	assert.Equal(t, "rapport_building", body.Stage)
	assert.NotEmpty(t, body.AgentText)
}

func TestSendMessageValidation(t *testing.T) {
	h, _ := newTestServer(t)
	doJSON(t, h, http.MethodPost, "/sessions", `{"session_id": "s-1"}`)

	rec := doJSON(t, h, http.MethodPost, "/sessions/s-1/messages", `{"text": "   "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, h, http.MethodPost, "/sessions/s-1/messages", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSendMessageUnknownSession(t *testing.T) {
	h, _ := newTestServer(t)
	rec := doJSON(t, h, http.MethodPost, "/sessions/ghost/messages", `{"text": "hi"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSendMessageGenerationOutage(t *testing.T) {
	h, model := newTestServer(t)
	doJSON(t, h, http.MethodPost, "/sessions", `{"session_id": "s-1"}`)

	model.FailGenerate = true
	rec := doJSON(t, h, http.MethodPost, "/sessions/s-1/messages", `{"text": "hi"}`)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))

	// The failed turn left no trace; the retry succeeds cleanly.
	model.FailGenerate = false
	rec = doJSON(t, h, http.MethodPost, "/sessions/s-1/messages", `{"text": "hi"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGetSessionState(t *testing.T) {
	h, _ := newTestServer(t)
	doJSON(t, h, http.MethodPost, "/sessions", `{"session_id": "s-1"}`)
	doJSON(t, h, http.MethodPost, "/sessions/s-1/messages", `{"text": "hello"}`)

	rec := doJSON(t, h, http.MethodGet, "/sessions/s-1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		SessionID      string `json:"session_id"`
		Stage          string `json:"stage"`
		TotalTurnCount int    `json:"total_turn_count"`
		History        []struct {
			Role string `json:"role"`
			Text string `json:"text"`
		} `json:"history"`
	}
	decodeBody(t, rec, &body)
	assert.Equal(t, "s-1", body.SessionID)
	assert.Equal(t, "rapport_building", body.Stage)
	assert.Equal(t, 1, body.TotalTurnCount)
	// Opening prompt, user message, reply.
	require.Len(t, body.History, 3)
	assert.Equal(t, "user", body.History[1].Role)
}

func TestGetSessionNotFound(t *testing.T) {
	h, _ := newTestServer(t)
	rec := doJSON(t, h, http.MethodGet, "/sessions/ghost", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSummaryNotReadyUntilMaterialized(t *testing.T) {
	h, model := newTestServer(t)
	doJSON(t, h, http.MethodPost, "/sessions", `{"session_id": "s-1"}`)

	rec := doJSON(t, h, http.MethodGet, "/sessions/s-1/summary", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Drive the session to completion; the summary then becomes available.
	model.FailValidate = true
	bound := stage.DefaultTable().MaxTotalTurns()
	for i := 0; i < bound; i++ {
		r := doJSON(t, h, http.MethodPost, "/sessions/s-1/messages", `{"text": "just exploring"}`)
		require.Equal(t, http.StatusOK, r.Code)
	}

	rec = doJSON(t, h, http.MethodGet, "/sessions/s-1/summary", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		SessionID string          `json:"session_id"`
		Summary   json.RawMessage `json:"summary"`
		Text      string          `json:"text"`
	}
	decodeBody(t, rec, &body)
	assert.Equal(t, "s-1", body.SessionID)
	assert.NotEmpty(t, body.Summary)
	assert.NotEmpty(t, body.Text)
}

func TestMethodNotAllowed(t *testing.T) {
	h, _ := newTestServer(t)
	doJSON(t, h, http.MethodPost, "/sessions", `{"session_id": "s-1"}`)

	assert.Equal(t, http.StatusMethodNotAllowed, doJSON(t, h, http.MethodDelete, "/sessions", "").Code)
	assert.Equal(t, http.StatusMethodNotAllowed, doJSON(t, h, http.MethodGet, "/sessions/s-1/messages", "").Code)
	assert.Equal(t, http.StatusMethodNotAllowed, doJSON(t, h, http.MethodPost, "/sessions/s-1/summary", "").Code)
}

func TestCORSPreflight(t *testing.T) {
	h, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodOptions, "/sessions", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
