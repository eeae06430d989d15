package domain

// Message is one entry in a session's conversation history.
type Message struct {
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	CreatedAt Timestamp `json:"created_at"`
}

// StageMetrics tracks one stage's elapsed turns and time. The record is
// immutable once EndedAt is set.
type StageMetrics struct {
	Stage     Stage     `json:"stage"`
	Turns     int       `json:"turns"`
	StartedAt Timestamp `json:"started_at"`
	EndedAt   Timestamp `json:"ended_at,omitempty"`
}

func (m StageMetrics) Closed() bool {
	return !m.EndedAt.IsZero()
}

// StageTransition is the immutable record emitted when a session leaves a
// stage, consumed by the telemetry collaborator.
type StageTransition struct {
	SessionID SessionID `json:"session_id"`
	From      Stage     `json:"from"`
	To        Stage     `json:"to"`
	Reason    Decision  `json:"reason"`
	Turns     int       `json:"turns"`
	At        Timestamp `json:"at"`
}

// Session is the isolated, single-writer unit of conversation state. Only the
// turn pipeline mutates it, and only for one in-flight turn at a time.
type Session struct {
	ID               SessionID       `json:"id"`
	Stage            Stage           `json:"stage"`
	TurnCountInStage int             `json:"turn_count_in_stage"`
	TotalTurnCount   int             `json:"total_turn_count"`
	Graph            *KnowledgeGraph `json:"graph"`
	History          []Message       `json:"history"`
	Metrics          []StageMetrics  `json:"metrics,omitempty"`
	Summary          *Summary        `json:"summary,omitempty"`
	FinalSummaryText string          `json:"final_summary_text,omitempty"`
	FinalFeedback    string          `json:"final_feedback,omitempty"`
	CreatedAt        Timestamp       `json:"created_at"`
	UpdatedAt        Timestamp       `json:"updated_at"`
}

func NewSession(id SessionID, now Timestamp) *Session {
	return &Session{
		ID:        id,
		Stage:     StageIntroduction,
		Graph:     NewKnowledgeGraph(),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (s *Session) Append(role Role, text string, at Timestamp) {
	s.History = append(s.History, Message{Role: role, Text: text, CreatedAt: at})
}

// OpenMetrics returns the unclosed metric record for the given stage,
// creating one if the stage has none yet. Closed records are never reopened.
func (s *Session) OpenMetrics(stage Stage, now Timestamp) *StageMetrics {
	for i := range s.Metrics {
		if s.Metrics[i].Stage == stage && !s.Metrics[i].Closed() {
			return &s.Metrics[i]
		}
	}
	s.Metrics = append(s.Metrics, StageMetrics{Stage: stage, StartedAt: now})
	return &s.Metrics[len(s.Metrics)-1]
}

// Clone returns a deep copy of the session, so stores can hand out state
// without aliasing the live copy.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	c.Graph = s.Graph.Clone()
	c.History = append([]Message(nil), s.History...)
	c.Metrics = append([]StageMetrics(nil), s.Metrics...)
	if s.Summary != nil {
		sum := *s.Summary
		sum.Values = append([]SummaryValue(nil), s.Summary.Values...)
		sum.Goals = append([]SummaryGoal(nil), s.Summary.Goals...)
		sum.Actions = append([]SummaryAction(nil), s.Summary.Actions...)
		c.Summary = &sum
	}
	return &c
}
