package telemetry

import (
	"context"
	"log/slog"
	"sync"

	"github.com/danielsoto/norte-agent/internal/domain"
)

// LogSink emits transition records and session-end payloads as structured log
// lines. Fire-and-forget: it never returns an error, so a telemetry problem
// can never fail a turn.
type LogSink struct {
	log *slog.Logger
}

func NewLogSink(log *slog.Logger) *LogSink {
	return &LogSink{log: log}
}

func (s *LogSink) RecordTransition(ctx context.Context, t domain.StageTransition) {
	s.log.Info("stage_transition",
		"session_id", t.SessionID,
		"from", t.From.String(),
		"to", t.To.String(),
		"reason", string(t.Reason),
		"turns", t.Turns,
		"at", t.At,
	)
}

func (s *LogSink) RecordSessionEnd(ctx context.Context, sess *domain.Session) {
	values := sess.Graph.RankedValues()
	topValues := make([]string, 0, len(values))
	for _, v := range values {
		topValues = append(topValues, v.Name)
	}

	s.log.Info("session_end",
		"session_id", sess.ID,
		"total_turns", sess.TotalTurnCount,
		"goals", len(sess.Graph.Goals),
		"confirmed_goals", len(sess.Graph.ConfirmedGoals()),
		"values", topValues,
		"actions", len(sess.Graph.Actions),
		"actions_with_feedback", sess.Graph.ActionsWithFeedback(),
		"final_feedback", sess.FinalFeedback,
	)
}

// CaptureSink records everything it receives, for tests and for offline
// comparison of finalized sessions. It only ever sees immutable records.
type CaptureSink struct {
	mu          sync.Mutex
	transitions []domain.StageTransition
	ended       []domain.SessionID
}

func NewCaptureSink() *CaptureSink {
	return &CaptureSink{}
}

func (s *CaptureSink) RecordTransition(ctx context.Context, t domain.StageTransition) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transitions = append(s.transitions, t)
}

func (s *CaptureSink) RecordSessionEnd(ctx context.Context, sess *domain.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ended = append(s.ended, sess.ID)
}

func (s *CaptureSink) Transitions() []domain.StageTransition {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.StageTransition(nil), s.transitions...)
}

func (s *CaptureSink) EndedSessions() []domain.SessionID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.SessionID(nil), s.ended...)
}
