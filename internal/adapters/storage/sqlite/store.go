package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/danielsoto/norte-agent/internal/domain"
)

// Store persists sessions in a single SQLite table. The graph, history and
// metrics are stored as JSON columns; the core owns the shape, the store only
// round-trips it.
type Store struct {
	db *sql.DB
}

func NewStore(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	store := &Store{db: db}
	if err := store.ensureSchema(context.Background()); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS sessions (
  id TEXT PRIMARY KEY,
  stage TEXT NOT NULL,
  turn_count_in_stage INTEGER NOT NULL,
  total_turn_count INTEGER NOT NULL,
  graph TEXT NOT NULL,
  history TEXT NOT NULL,
  metrics TEXT NOT NULL,
  summary TEXT,
  final_summary_text TEXT NOT NULL DEFAULT '',
  final_feedback TEXT NOT NULL DEFAULT '',
  created_at TEXT NOT NULL,
  updated_at TEXT NOT NULL
);
`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create sessions table: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) CreateSession(ctx context.Context, session *domain.Session) error {
	row, err := encodeSession(session)
	if err != nil {
		return err
	}

	const stmt = `
INSERT INTO sessions (id, stage, turn_count_in_stage, total_turn_count, graph, history, metrics, summary, final_summary_text, final_feedback, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
`
	_, err = s.db.ExecContext(ctx, stmt, row.args()...)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrSessionExists
		}
		return fmt.Errorf("sqlite CreateSession: %w", err)
	}
	return nil
}

func (s *Store) SaveSession(ctx context.Context, session *domain.Session) error {
	row, err := encodeSession(session)
	if err != nil {
		return err
	}

	const stmt = `
INSERT INTO sessions (id, stage, turn_count_in_stage, total_turn_count, graph, history, metrics, summary, final_summary_text, final_feedback, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
  stage=excluded.stage,
  turn_count_in_stage=excluded.turn_count_in_stage,
  total_turn_count=excluded.total_turn_count,
  graph=excluded.graph,
  history=excluded.history,
  metrics=excluded.metrics,
  summary=excluded.summary,
  final_summary_text=excluded.final_summary_text,
  final_feedback=excluded.final_feedback,
  updated_at=excluded.updated_at;
`
	if _, err := s.db.ExecContext(ctx, stmt, row.args()...); err != nil {
		return fmt.Errorf("sqlite SaveSession: %w", err)
	}
	return nil
}

func (s *Store) GetSession(ctx context.Context, id domain.SessionID) (*domain.Session, error) {
	const query = `
SELECT id, stage, turn_count_in_stage, total_turn_count, graph, history, metrics, summary, final_summary_text, final_feedback, created_at, updated_at
FROM sessions WHERE id = ?;
`
	var row sessionRow
	err := s.db.QueryRowContext(ctx, query, string(id)).Scan(
		&row.ID, &row.Stage, &row.TurnCountInStage, &row.TotalTurnCount,
		&row.Graph, &row.History, &row.Metrics, &row.Summary,
		&row.FinalSummaryText, &row.FinalFeedback, &row.CreatedAt, &row.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("sqlite GetSession: %w", err)
	}
	return row.decode()
}

// ─────────────────────────────────────────
// Row mapping
// ─────────────────────────────────────────

type sessionRow struct {
	ID               string
	Stage            string
	TurnCountInStage int
	TotalTurnCount   int
	Graph            string
	History          string
	Metrics          string
	Summary          sql.NullString
	FinalSummaryText string
	FinalFeedback    string
	CreatedAt        string
	UpdatedAt        string
}

func (r sessionRow) args() []any {
	var summary any
	if r.Summary.Valid {
		summary = r.Summary.String
	}
	return []any{
		r.ID, r.Stage, r.TurnCountInStage, r.TotalTurnCount,
		r.Graph, r.History, r.Metrics, summary,
		r.FinalSummaryText, r.FinalFeedback, r.CreatedAt, r.UpdatedAt,
	}
}

func encodeSession(session *domain.Session) (sessionRow, error) {
	graph, err := json.Marshal(session.Graph)
	if err != nil {
		return sessionRow{}, fmt.Errorf("marshal graph: %w", err)
	}
	history, err := json.Marshal(session.History)
	if err != nil {
		return sessionRow{}, fmt.Errorf("marshal history: %w", err)
	}
	metrics, err := json.Marshal(session.Metrics)
	if err != nil {
		return sessionRow{}, fmt.Errorf("marshal metrics: %w", err)
	}

	row := sessionRow{
		ID:               string(session.ID),
		Stage:            session.Stage.String(),
		TurnCountInStage: session.TurnCountInStage,
		TotalTurnCount:   session.TotalTurnCount,
		Graph:            string(graph),
		History:          string(history),
		Metrics:          string(metrics),
		FinalSummaryText: session.FinalSummaryText,
		FinalFeedback:    session.FinalFeedback,
		CreatedAt:        session.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:        session.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
	if session.Summary != nil {
		summary, err := json.Marshal(session.Summary)
		if err != nil {
			return sessionRow{}, fmt.Errorf("marshal summary: %w", err)
		}
		row.Summary = sql.NullString{String: string(summary), Valid: true}
	}
	return row, nil
}

func (r sessionRow) decode() (*domain.Session, error) {
	stage, err := domain.ParseStage(r.Stage)
	if err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}

	sess := &domain.Session{
		ID:               domain.SessionID(r.ID),
		Stage:            stage,
		TurnCountInStage: r.TurnCountInStage,
		TotalTurnCount:   r.TotalTurnCount,
		FinalSummaryText: r.FinalSummaryText,
		FinalFeedback:    r.FinalFeedback,
	}

	if err := json.Unmarshal([]byte(r.Graph), &sess.Graph); err != nil {
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
	if err := json.Unmarshal([]byte(r.History), &sess.History); err != nil {
		return nil, fmt.Errorf("unmarshal history: %w", err)
	}
	if err := json.Unmarshal([]byte(r.Metrics), &sess.Metrics); err != nil {
		return nil, fmt.Errorf("unmarshal metrics: %w", err)
	}
	if r.Summary.Valid && r.Summary.String != "" {
		if err := json.Unmarshal([]byte(r.Summary.String), &sess.Summary); err != nil {
			return nil, fmt.Errorf("unmarshal summary: %w", err)
		}
	}
	if sess.CreatedAt, err = time.Parse(time.RFC3339Nano, r.CreatedAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if sess.UpdatedAt, err = time.Parse(time.RFC3339Nano, r.UpdatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	return sess, nil
}

func isUniqueViolation(err error) bool {
	// modernc.org/sqlite surfaces constraint failures by message; the driver
	// error type is internal.
	return err != nil && strings.Contains(err.Error(), "constraint failed")
}
