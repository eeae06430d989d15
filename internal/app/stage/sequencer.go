package stage

import (
	"context"
	"time"

	"github.com/danielsoto/norte-agent/internal/domain"
	"github.com/danielsoto/norte-agent/internal/observability"
)

// Sequencer owns the stage state machine: strictly forward transitions along
// the fixed order, no skipping, no regression. Done accepts no further turns.
type Sequencer struct {
	telemetry domain.TelemetrySink
	now       func() time.Time
}

func NewSequencer(telemetry domain.TelemetrySink) *Sequencer {
	return &Sequencer{
		telemetry: telemetry,
		now:       time.Now,
	}
}

// Apply consumes the verdict for the turn being processed, updating counters
// and possibly transitioning the stage. Returns true if a transition fired.
func (s *Sequencer) Apply(ctx context.Context, sess *domain.Session, verdict domain.Verdict) bool {
	if sess.Stage.Terminal() {
		return false
	}

	now := s.now()
	from := sess.Stage

	// Count the turn in either case; a transitioning turn still belongs to
	// the stage it closes.
	sess.TurnCountInStage++
	sess.TotalTurnCount++

	if verdict.Decision == domain.DecisionStay {
		// The validator only finalizes metrics on advancement, so the open
		// record is still ours to update here.
		m := sess.OpenMetrics(from, now)
		m.Turns = sess.TurnCountInStage
		return false
	}

	to := from.Next()
	transition := domain.StageTransition{
		SessionID: sess.ID,
		From:      from,
		To:        to,
		Reason:    verdict.Decision,
		Turns:     sess.TurnCountInStage,
		At:        now,
	}

	sess.Stage = to
	sess.TurnCountInStage = 0

	log := observability.LoggerFromContext(ctx).With("session_id", sess.ID)
	log.Info("stage transition",
		"from", from.String(),
		"to", to.String(),
		"reason", string(verdict.Decision),
		"detail", verdict.Reason,
		"turns", transition.Turns,
	)

	if s.telemetry != nil {
		s.telemetry.RecordTransition(ctx, transition)
	}

	switch to {
	case domain.StageSummaryFeedback:
		// Materialize the read-only view the generation step works from.
		sess.Summary = domain.BuildSummary(sess.Graph, now)
	case domain.StageDone:
		if sess.Summary == nil {
			sess.Summary = domain.BuildSummary(sess.Graph, now)
		}
		if s.telemetry != nil {
			s.telemetry.RecordSessionEnd(ctx, sess)
		}
	}

	return true
}
