package firestore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/danielsoto/norte-agent/internal/domain"
)

type Store struct {
	client *firestore.Client
}

// NewStore creates a Firestore store.
// Uses the project passed (NORTE_GCP_PROJECT).
func NewStore(ctx context.Context, projectID string) (*Store, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID is required for Firestore store")
	}

	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("creating firestore client: %w", err)
	}

	return &Store{client: client}, nil
}

// ─────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────

func (s *Store) sessionsCol() *firestore.CollectionRef {
	return s.client.Collection("sessions")
}

func (s *Store) sessionDoc(id domain.SessionID) *firestore.DocumentRef {
	return s.sessionsCol().Doc(string(id))
}

// ─────────────────────────────────────────
// Firestore Types
// ─────────────────────────────────────────

// sessionDoc stores the graph, history and metrics as JSON blobs: the core
// owns their shape and Firestore only needs to round-trip them.
type sessionDoc struct {
	Stage            string    `firestore:"stage"`
	TurnCountInStage int       `firestore:"turn_count_in_stage"`
	TotalTurnCount   int       `firestore:"total_turn_count"`
	Graph            string    `firestore:"graph"`
	History          string    `firestore:"history"`
	Metrics          string    `firestore:"metrics"`
	Summary          string    `firestore:"summary"`
	FinalSummaryText string    `firestore:"final_summary_text"`
	FinalFeedback    string    `firestore:"final_feedback"`
	CreatedAt        time.Time `firestore:"created_at"`
	UpdatedAt        time.Time `firestore:"updated_at"`
}

func encodeSession(session *domain.Session) (sessionDoc, error) {
	graph, err := json.Marshal(session.Graph)
	if err != nil {
		return sessionDoc{}, fmt.Errorf("marshal graph: %w", err)
	}
	history, err := json.Marshal(session.History)
	if err != nil {
		return sessionDoc{}, fmt.Errorf("marshal history: %w", err)
	}
	metrics, err := json.Marshal(session.Metrics)
	if err != nil {
		return sessionDoc{}, fmt.Errorf("marshal metrics: %w", err)
	}

	doc := sessionDoc{
		Stage:            session.Stage.String(),
		TurnCountInStage: session.TurnCountInStage,
		TotalTurnCount:   session.TotalTurnCount,
		Graph:            string(graph),
		History:          string(history),
		Metrics:          string(metrics),
		FinalSummaryText: session.FinalSummaryText,
		FinalFeedback:    session.FinalFeedback,
		CreatedAt:        session.CreatedAt,
		UpdatedAt:        session.UpdatedAt,
	}
	if session.Summary != nil {
		summary, err := json.Marshal(session.Summary)
		if err != nil {
			return sessionDoc{}, fmt.Errorf("marshal summary: %w", err)
		}
		doc.Summary = string(summary)
	}
	return doc, nil
}

func (d sessionDoc) decode(id domain.SessionID) (*domain.Session, error) {
	stage, err := domain.ParseStage(d.Stage)
	if err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}

	sess := &domain.Session{
		ID:               id,
		Stage:            stage,
		TurnCountInStage: d.TurnCountInStage,
		TotalTurnCount:   d.TotalTurnCount,
		FinalSummaryText: d.FinalSummaryText,
		FinalFeedback:    d.FinalFeedback,
		CreatedAt:        d.CreatedAt,
		UpdatedAt:        d.UpdatedAt,
	}
	if err := json.Unmarshal([]byte(d.Graph), &sess.Graph); err != nil {
		return nil, fmt.Errorf("unmarshal graph: %w", err)
	}
	if sess.Graph == nil {
		sess.Graph = domain.NewKnowledgeGraph()
	}
	if sess.Graph.Goals == nil {
		sess.Graph.Goals = make(map[domain.GoalID]*domain.Goal)
	}
	if sess.Graph.Values == nil {
		sess.Graph.Values = make(map[string]*domain.Value)
	}
	if err := json.Unmarshal([]byte(d.History), &sess.History); err != nil {
		return nil, fmt.Errorf("unmarshal history: %w", err)
	}
	if err := json.Unmarshal([]byte(d.Metrics), &sess.Metrics); err != nil {
		return nil, fmt.Errorf("unmarshal metrics: %w", err)
	}
	if d.Summary != "" {
		if err := json.Unmarshal([]byte(d.Summary), &sess.Summary); err != nil {
			return nil, fmt.Errorf("unmarshal summary: %w", err)
		}
	}
	return sess, nil
}

// ─────────────────────────────────────────
// SessionStore implementation
// ─────────────────────────────────────────

func (s *Store) CreateSession(ctx context.Context, session *domain.Session) error {
	doc, err := encodeSession(session)
	if err != nil {
		return err
	}

	if _, err := s.sessionDoc(session.ID).Create(ctx, doc); err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return domain.ErrSessionExists
		}
		return fmt.Errorf("firestore CreateSession: %w", err)
	}
	return nil
}

func (s *Store) SaveSession(ctx context.Context, session *domain.Session) error {
	doc, err := encodeSession(session)
	if err != nil {
		return err
	}

	if _, err := s.sessionDoc(session.ID).Set(ctx, doc); err != nil {
		return fmt.Errorf("firestore SaveSession: %w", err)
	}
	return nil
}

func (s *Store) GetSession(ctx context.Context, id domain.SessionID) (*domain.Session, error) {
	snap, err := s.sessionDoc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("firestore GetSession: %w", err)
	}

	var doc sessionDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("firestore GetSession decode: %w", err)
	}
	return doc.decode(id)
}
