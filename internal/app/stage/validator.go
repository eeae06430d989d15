package stage

import (
	"context"
	"time"

	"github.com/danielsoto/norte-agent/internal/domain"
	"github.com/danielsoto/norte-agent/internal/observability"
)

// Validator decides, after every user turn, whether the session stays in its
// stage or advances. Model-assisted with a deterministic fallback: if the
// model collaborator fails or answers nonsense, the criteria table alone
// produces the verdict, so a verdict is always returned and the session still
// terminates within the turn ceiling.
type Validator struct {
	model domain.ModelClient
	table Table
	now   func() time.Time
}

func NewValidator(model domain.ModelClient, table Table) *Validator {
	return &Validator{
		model: model,
		table: table,
		now:   time.Now,
	}
}

// Validate produces the verdict for the turn currently being processed. The
// session's turn counter has not been bumped for this turn yet, so the count
// including it is TurnCountInStage + 1.
func (v *Validator) Validate(ctx context.Context, sess *domain.Session) domain.Verdict {
	log := observability.LoggerFromContext(ctx).With(
		"session_id", sess.ID,
		"stage", sess.Stage.String(),
	)

	if sess.Stage.Terminal() {
		return domain.Verdict{Decision: domain.DecisionStay, Reason: "terminal stage"}
	}

	c, ok := v.table[sess.Stage]
	if !ok {
		// Unknown stage in the table would otherwise loop forever.
		return domain.Verdict{Decision: domain.DecisionForceAdvance, Reason: "no criteria configured"}
	}

	turns := sess.TurnCountInStage + 1

	if c.AutoAdvance {
		v.finalize(sess, turns)
		return domain.Verdict{Decision: domain.DecisionAdvance, Reason: "auto-advance stage"}
	}

	if turns >= c.MaxTurns {
		log.Info("turn ceiling reached, forcing advance", "turns", turns, "max_turns", c.MaxTurns)
		v.finalize(sess, turns)
		return domain.Verdict{Decision: domain.DecisionForceAdvance, Reason: "turn ceiling reached"}
	}

	if turns < c.MinTurns {
		return domain.Verdict{Decision: domain.DecisionStay, Reason: "below stage minimum turns"}
	}

	verdict, err := v.model.ValidateStage(ctx, sess.Stage, sess.Graph.Clone(), turns)
	if err != nil || !validDecision(verdict.Decision) {
		if err != nil {
			log.Warn("model validation failed, using fallback rule", "error", err)
		}
		verdict = v.fallback(c, sess)
	}

	if verdict.Decision != domain.DecisionStay {
		v.finalize(sess, turns)
	}
	return verdict
}

// fallback is the deterministic per-stage rule: advance once the graph meets
// the stage's content minimums, otherwise stay.
func (v *Validator) fallback(c Criteria, sess *domain.Session) domain.Verdict {
	if c.ContentSatisfied(sess) {
		return domain.Verdict{Decision: domain.DecisionAdvance, Reason: "fallback: content complete"}
	}
	return domain.Verdict{Decision: domain.DecisionStay, Reason: "fallback: content incomplete"}
}

// finalize closes the stage's metric record. Once closed it is immutable; the
// sequencer only ever opens a fresh record for the next stage.
func (v *Validator) finalize(sess *domain.Session, turns int) {
	m := sess.OpenMetrics(sess.Stage, v.now())
	m.Turns = turns
	m.EndedAt = v.now()
}

func validDecision(d domain.Decision) bool {
	switch d {
	case domain.DecisionStay, domain.DecisionAdvance, domain.DecisionForceAdvance:
		return true
	}
	return false
}
