package conversation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/danielsoto/norte-agent/internal/app/knowledge"
	"github.com/danielsoto/norte-agent/internal/app/stage"
	"github.com/danielsoto/norte-agent/internal/domain"
	"github.com/danielsoto/norte-agent/internal/observability"
)

// Service is the turn pipeline: for every user message it runs
// extract → merge → validate → sequence → generate, then suspends the session
// until the next message arrives. The registry guarantees at most one turn in
// flight per session.
type Service struct {
	model     domain.ModelClient
	store     domain.SessionStore
	merger    *knowledge.Merger
	validator *stage.Validator
	sequencer *stage.Sequencer
	registry  *registry
	now       func() time.Time
}

func NewService(
	model domain.ModelClient,
	store domain.SessionStore,
	telemetry domain.TelemetrySink,
	table stage.Table,
	params knowledge.Params,
) *Service {
	return &Service{
		model:     model,
		store:     store,
		merger:    knowledge.NewMerger(params),
		validator: stage.NewValidator(model, table),
		sequencer: stage.NewSequencer(telemetry),
		registry:  newRegistry(),
		now:       time.Now,
	}
}

type StartSessionInput struct {
	// ID is optional; a UUID is assigned when empty.
	ID domain.SessionID
}

type StartSessionOutput struct {
	Session   *domain.Session
	AgentText string
}

// StartSession creates a session at the introduction stage and generates the
// opening prompt. Nothing is persisted if generation fails, so a retry starts
// clean.
func (s *Service) StartSession(ctx context.Context, in StartSessionInput) (*StartSessionOutput, error) {
	id := in.ID
	if id == "" {
		id = domain.SessionID(uuid.NewString())
	}

	log := observability.LoggerFromContext(ctx).With("session_id", id)
	log.Info("starting new session")

	sess := domain.NewSession(id, s.now())

	intro, err := s.model.GeneratePrompt(ctx, sess.Stage, sess.History, sess.Graph.Clone())
	if err != nil {
		log.Error("intro prompt generation failed", "error", err)
		return nil, fmt.Errorf("%w: %s", domain.ErrGeneration, err)
	}
	sess.Append(domain.RoleAgent, intro, s.now())

	if err := s.store.CreateSession(ctx, sess); err != nil {
		log.Error("failed to create session", "error", err)
		if errors.Is(err, domain.ErrSessionExists) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s", domain.ErrPersistence, err)
	}

	log.Info("session started")
	return &StartSessionOutput{Session: sess, AgentText: intro}, nil
}

type TurnOutput struct {
	Session      *domain.Session
	AgentText    string
	Transitioned bool
}

// ProcessTurn advances the conversation by exactly one turn. The step order
// is fixed: append user text, extract a delta, merge it, validate the stage,
// apply the verdict, generate the next prompt, persist, suspend.
func (s *Service) ProcessTurn(ctx context.Context, sessionID domain.SessionID, userText string) (*TurnOutput, error) {
	release := s.registry.acquire(sessionID)
	defer release()

	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s", domain.ErrPersistence, err)
	}

	log := observability.LoggerFromContext(ctx).With(
		"session_id", sess.ID,
		"stage", sess.Stage.String(),
		"turn_in_stage", sess.TurnCountInStage,
	)

	if sess.Stage.Terminal() {
		// The session is frozen: answer from the materialized summary
		// without reprocessing or persisting anything.
		log.Info("message after completion, replying from summary")
		return &TurnOutput{Session: sess, AgentText: s.closingText(sess)}, nil
	}

	log.Info("processing turn")
	sess.Append(domain.RoleUser, userText, s.now())

	// While collecting feedback on an already-delivered summary, the user's
	// text is the final feedback itself.
	if sess.Stage == domain.StageSummaryFeedback && sess.FinalSummaryText != "" {
		sess.FinalFeedback = userText
	}

	delta, err := s.model.Extract(ctx, sess.History, userText, sess.Graph.Clone())
	if err != nil {
		// Extraction failure degrades to an empty delta; the turn goes on.
		log.Warn("extraction failed, merging empty delta", "error", err)
		delta = domain.Delta{}
	}

	s.merger.Merge(sess.Graph, delta, sess.Stage)

	verdict := s.validator.Validate(ctx, sess)
	transitioned := s.sequencer.Apply(ctx, sess, verdict)

	var reply string
	if sess.Stage.Terminal() {
		reply = s.closingText(sess)
	} else {
		reply, err = s.model.GeneratePrompt(ctx, sess.Stage, sess.History, sess.Graph.Clone())
		if err != nil {
			// No fallback text exists. Surface as retryable and persist
			// nothing, so the session is never stuck mid-turn.
			log.Error("prompt generation failed", "error", err)
			return nil, fmt.Errorf("%w: %s", domain.ErrGeneration, err)
		}
	}

	if transitioned && sess.Stage == domain.StageSummaryFeedback {
		// The first prompt of the summary stage is the summary itself.
		sess.FinalSummaryText = reply
	}

	sess.Append(domain.RoleAgent, reply, s.now())
	sess.UpdatedAt = s.now()

	if err := s.store.SaveSession(ctx, sess); err != nil {
		// The prompt was generated; a save failure is logged and left to the
		// persistence collaborator's retry policy rather than failing the turn.
		log.Error("failed to save session", "error", err)
	}

	log.Info("turn completed", "stage", sess.Stage.String(), "transitioned", transitioned)
	return &TurnOutput{Session: sess, AgentText: reply, Transitioned: transitioned}, nil
}

// GetSession returns the current session state for read-only surfaces.
func (s *Service) GetSession(ctx context.Context, sessionID domain.SessionID) (*domain.Session, error) {
	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s", domain.ErrPersistence, err)
	}
	return sess, nil
}

// closingText renders the frozen session's answer from the materialized
// summary; no model call is involved.
func (s *Service) closingText(sess *domain.Session) string {
	if sess.FinalSummaryText != "" {
		return "This conversation is complete. Here is the summary we arrived at:\n\n" + sess.FinalSummaryText
	}
	return "This conversation is complete. Thank you for exploring your goals and values."
}
