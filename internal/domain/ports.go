package domain

import "context"

// ModelClient defines how the core interacts with the external language-model
// service. All three calls may fail or time out; callers must degrade
// gracefully (empty delta, deterministic fallback) rather than stall a turn.
type ModelClient interface {
	// Extract turns the latest user utterance into a structured Delta. The
	// graph snapshot lets the model tell new facts from restated ones.
	Extract(ctx context.Context, history []Message, latest string, graph *KnowledgeGraph) (Delta, error)

	// ValidateStage judges whether the current stage is content-complete.
	ValidateStage(ctx context.Context, stage Stage, graph *KnowledgeGraph, turnsInStage int) (Verdict, error)

	// GeneratePrompt produces the agent's next user-facing message.
	GeneratePrompt(ctx context.Context, stage Stage, history []Message, graph *KnowledgeGraph) (string, error)
}

// SessionStore defines session persistence. The core calls it at entry and
// exit of a turn and owns no storage format itself.
type SessionStore interface {
	CreateSession(ctx context.Context, session *Session) error
	SaveSession(ctx context.Context, session *Session) error
	GetSession(ctx context.Context, id SessionID) (*Session, error)
}

// TelemetrySink receives immutable stage-transition records and the final
// session payload. Fire-and-forget: a sink failure must never fail a turn.
type TelemetrySink interface {
	RecordTransition(ctx context.Context, t StageTransition)
	RecordSessionEnd(ctx context.Context, session *Session)
}
