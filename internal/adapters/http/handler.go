package httpadapter

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/danielsoto/norte-agent/internal/app/conversation"
	"github.com/danielsoto/norte-agent/internal/domain"
	"github.com/danielsoto/norte-agent/internal/observability"
)

type Server struct {
	svc *conversation.Service
}

func NewServer(svc *conversation.Service) http.Handler {
	s := &Server{svc: svc}
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", s.handleHealthz)

	// /sessions → create session (POST)
	mux.HandleFunc("/sessions", s.handleSessions)

	// /sessions/{id}          →  GET: session state + graph snapshot
	// /sessions/{id}/messages → POST: advance the conversation one turn
	// /sessions/{id}/summary  →  GET: materialized summary
	mux.HandleFunc("/sessions/", s.handleSessionWithID)

	return chainMiddlewares(mux, withLogging, withCORS, withRequestID)
}

// ─────────────────────────────────────────────
// DTOs (request/response)
// ─────────────────────────────────────────────

type createSessionRequest struct {
	SessionID string `json:"session_id,omitempty"`
}

type createSessionResponse struct {
	SessionID string `json:"session_id"`
	Stage     string `json:"stage"`
	AgentText string `json:"agent_text"`
}

type sendMessageRequest struct {
	Text string `json:"text"`
}

type sendMessageResponse struct {
	SessionID    string `json:"session_id"`
	Stage        string `json:"stage"`
	Transitioned bool   `json:"transitioned"`
	AgentText    string `json:"agent_text"`
}

type messageResponse struct {
	Role      string    `json:"role"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

type getSessionResponse struct {
	SessionID        string                 `json:"session_id"`
	Stage            string                 `json:"stage"`
	TurnCountInStage int                    `json:"turn_count_in_stage"`
	TotalTurnCount   int                    `json:"total_turn_count"`
	Graph            *domain.KnowledgeGraph `json:"graph"`
	History          []messageResponse      `json:"history"`
}

type getSummaryResponse struct {
	SessionID string          `json:"session_id"`
	Summary   *domain.Summary `json:"summary"`
	Text      string          `json:"text,omitempty"`
	Feedback  string          `json:"feedback,omitempty"`
}

// ─────────────────────────────────────────────
// Basic routing
// ─────────────────────────────────────────────

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// /sessions
func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleCreateSession(w, r)
	default:
		methodNotAllowed(w)
	}
}

// /sessions/{id}, /sessions/{id}/messages or /sessions/{id}/summary
func (s *Server) handleSessionWithID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/sessions/")
	if path == "" {
		http.NotFound(w, r)
		return
	}

	parts := strings.Split(path, "/")
	id := parts[0]
	if id == "" {
		http.NotFound(w, r)
		return
	}

	if len(parts) == 1 {
		switch r.Method {
		case http.MethodGet:
			s.handleGetSession(w, r, domain.SessionID(id))
		default:
			methodNotAllowed(w)
		}
		return
	}

	if len(parts) == 2 {
		switch parts[1] {
		case "messages":
			if r.Method != http.MethodPost {
				methodNotAllowed(w)
				return
			}
			s.handleSendMessage(w, r, domain.SessionID(id))
			return
		case "summary":
			if r.Method != http.MethodGet {
				methodNotAllowed(w)
				return
			}
			s.handleGetSummary(w, r, domain.SessionID(id))
			return
		}
	}

	http.NotFound(w, r)
}

// ─────────────────────────────────────────────
// Concrete handlers
// ─────────────────────────────────────────────

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			badRequest(w, "invalid JSON body")
			return
		}
	}

	out, err := s.svc.StartSession(r.Context(), conversation.StartSessionInput{
		ID: domain.SessionID(req.SessionID),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, createSessionResponse{
		SessionID: string(out.Session.ID),
		Stage:     out.Session.Stage.String(),
		AgentText: out.AgentText,
	})
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request, id domain.SessionID) {
	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		badRequest(w, "text is required")
		return
	}

	out, err := s.svc.ProcessTurn(r.Context(), id, req.Text)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, sendMessageResponse{
		SessionID:    string(out.Session.ID),
		Stage:        out.Session.Stage.String(),
		Transitioned: out.Transitioned,
		AgentText:    out.AgentText,
	})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request, id domain.SessionID) {
	sess, err := s.svc.GetSession(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	history := make([]messageResponse, 0, len(sess.History))
	for _, m := range sess.History {
		history = append(history, messageResponse{
			Role:      string(m.Role),
			Text:      m.Text,
			CreatedAt: m.CreatedAt,
		})
	}

	writeJSON(w, http.StatusOK, getSessionResponse{
		SessionID:        string(sess.ID),
		Stage:            sess.Stage.String(),
		TurnCountInStage: sess.TurnCountInStage,
		TotalTurnCount:   sess.TotalTurnCount,
		Graph:            sess.Graph,
		History:          history,
	})
}

func (s *Server) handleGetSummary(w http.ResponseWriter, r *http.Request, id domain.SessionID) {
	sess, err := s.svc.GetSession(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if sess.Summary == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "summary not materialized yet",
		})
		return
	}

	writeJSON(w, http.StatusOK, getSummaryResponse{
		SessionID: string(sess.ID),
		Summary:   sess.Summary,
		Text:      sess.FinalSummaryText,
		Feedback:  sess.FinalFeedback,
	})
}

// ─────────────────────────────────────────────
// HTTP Helpers
// ─────────────────────────────────────────────

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "session not found"})
	case errors.Is(err, domain.ErrSessionExists):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "session already exists"})
	case errors.Is(err, domain.ErrGeneration):
		// Retryable: nothing was persisted for this turn.
		w.Header().Set("Retry-After", "1")
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "generation unavailable, retry"})
	default:
		observability.LoggerFromContext(r.Context()).Error("request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{
		"error": msg,
	})
}

func methodNotAllowed(w http.ResponseWriter) {
	writeJSON(w, http.StatusMethodNotAllowed, map[string]string{
		"error": "method not allowed",
	})
}

func newRequestID() string {
	return uuid.NewString()
}
