package knowledge

import (
	"strings"

	"github.com/google/uuid"

	"github.com/danielsoto/norte-agent/internal/domain"
)

// Params holds the merge constants. The defaults are documented values, not
// ground truth; tune them per deployment.
type Params struct {
	// BaseWeight is the weight a value starts at on first mention.
	BaseWeight float64
	// Increment drives re-mention growth: weight += (1 - weight) * Increment.
	Increment float64
}

func DefaultParams() Params {
	return Params{BaseWeight: 0.5, Increment: 0.3}
}

// Merger applies extraction deltas onto a session's knowledge graph using
// deterministic update rules. Merge is total: a malformed or empty delta is a
// no-op, never a fault.
type Merger struct {
	params Params
}

func NewMerger(p Params) *Merger {
	if p.BaseWeight <= 0 || p.BaseWeight > 1 {
		p.BaseWeight = DefaultParams().BaseWeight
	}
	if p.Increment <= 0 || p.Increment >= 1 {
		p.Increment = DefaultParams().Increment
	}
	return &Merger{params: p}
}

// Merge applies d onto g. Actions are only accepted while the session is in
// the action-planning stage; everything else merges in any non-terminal stage.
func (m *Merger) Merge(g *domain.KnowledgeGraph, d domain.Delta, stage domain.Stage) {
	if g == nil || d.Empty() || stage.Terminal() {
		return
	}

	m.mergeGoals(g, d)
	m.mergeValues(g, d)
	m.applyConfirmations(g, d.Confirmations)
	m.applyCorrections(g, d.Corrections)
	m.applyLinks(g, d.Links)
	m.mergeObstacles(g, d.Obstacles)

	if d.Tone != nil && d.Tone.Label != "" {
		g.Tone = *d.Tone
	}

	if stage == domain.StageActionPlanning {
		m.mergeActions(g, d)
	}
	m.applyActionFeedback(g, d.Feedback)
}

func (m *Merger) mergeGoals(g *domain.KnowledgeGraph, d domain.Delta) {
	for _, statement := range d.Goals {
		statement = strings.TrimSpace(statement)
		if len(statement) < 5 {
			continue
		}
		if goal := findGoal(g, statement); goal != nil {
			appendUnique(&goal.Rationale, d.KeyPhrases)
			continue
		}
		goal := &domain.Goal{
			ID:        domain.GoalID("g-" + uuid.NewString()),
			Statement: statement,
		}
		appendUnique(&goal.Rationale, d.KeyPhrases)
		g.Goals[goal.ID] = goal
	}
}

func (m *Merger) mergeValues(g *domain.KnowledgeGraph, d domain.Delta) {
	for _, raw := range d.Values {
		name := normalize(raw)
		if len(name) < 2 {
			continue
		}
		v, ok := g.Values[name]
		if !ok {
			v = &domain.Value{Name: name, Weight: m.params.BaseWeight}
			g.Values[name] = v
		} else if !v.Confirmed {
			// Diminishing increment: converges toward 1 without overshoot.
			v.Weight += (1 - v.Weight) * m.params.Increment
		}
		appendUnique(&v.Rationale, d.KeyPhrases)
	}
}

func (m *Merger) applyConfirmations(g *domain.KnowledgeGraph, confirmations []domain.Confirmation) {
	for _, c := range confirmations {
		switch c.Kind {
		case domain.RefValue:
			if v, ok := g.Values[normalize(c.Key)]; ok {
				v.Confirmed = true
			}
		case domain.RefGoal:
			if goal := lookupGoal(g, c.Key); goal != nil {
				goal.Confirmed = true
			}
		}
	}
}

func (m *Merger) applyCorrections(g *domain.KnowledgeGraph, corrections []domain.Correction) {
	for _, c := range corrections {
		switch c.Kind {
		case domain.RefValue:
			v, ok := g.Values[normalize(c.Key)]
			if !ok {
				continue
			}
			if c.NewWeight != nil {
				v.Weight = clamp01(*c.NewWeight)
			}
			// A correction always reopens the value for re-confirmation.
			v.Confirmed = false
		case domain.RefGoal:
			if goal := lookupGoal(g, c.Key); goal != nil {
				goal.Confirmed = false
			}
		}
	}
}

func (m *Merger) applyLinks(g *domain.KnowledgeGraph, links []domain.GoalValueLink) {
	for _, l := range links {
		goal, ok := g.Goals[l.Goal]
		if !ok {
			goal = findGoal(g, string(l.Goal))
			if goal == nil {
				continue
			}
		}
		name := normalize(l.Value)
		if l.Contradicted {
			goal.LinkedValues = remove(goal.LinkedValues, name)
			continue
		}
		if _, known := g.Values[name]; !known {
			continue
		}
		if !contains(goal.LinkedValues, name) {
			goal.LinkedValues = append(goal.LinkedValues, name)
		}
	}
}

func (m *Merger) mergeObstacles(g *domain.KnowledgeGraph, obstacles []domain.Obstacle) {
	for _, o := range obstacles {
		o.Description = strings.TrimSpace(o.Description)
		if o.Description == "" || hasObstacle(g, o.Description) {
			continue
		}
		if o.RelatedGoal != "" {
			if _, ok := g.Goals[o.RelatedGoal]; !ok {
				o.RelatedGoal = ""
			}
		}
		g.Obstacles = append(g.Obstacles, o)
	}
}

func (m *Merger) mergeActions(g *domain.KnowledgeGraph, d domain.Delta) {
	for _, a := range d.Actions {
		desc := strings.TrimSpace(a.Description)
		if desc == "" || findAction(g, desc) != nil {
			continue
		}
		action := &domain.Action{
			Description: desc,
			FitScore:    clamp01(a.FitScore),
		}
		for _, lv := range a.LinkedValues {
			name := normalize(lv)
			if _, ok := g.Values[name]; ok && !contains(action.LinkedValues, name) {
				action.LinkedValues = append(action.LinkedValues, name)
			}
		}
		g.Actions = append(g.Actions, action)
	}
}

func (m *Merger) applyActionFeedback(g *domain.KnowledgeGraph, feedback []domain.ActionFeedback) {
	for _, f := range feedback {
		if f.Feedback == "" || len(g.Actions) == 0 {
			continue
		}
		target := findAction(g, f.Description)
		if target == nil {
			// Unmatched feedback attaches to the most recent suggestion.
			target = g.Actions[len(g.Actions)-1]
		}
		target.UserFeedback = f.Feedback
	}
}

// findGoal matches by normalized statement containment in either direction,
// so restated goals fold into the existing entry instead of duplicating.
func findGoal(g *domain.KnowledgeGraph, statement string) *domain.Goal {
	norm := normalize(statement)
	if norm == "" {
		return nil
	}
	for _, goal := range g.Goals {
		existing := normalize(goal.Statement)
		if strings.Contains(existing, norm) || strings.Contains(norm, existing) {
			return goal
		}
	}
	return nil
}

// lookupGoal resolves a reference that may be an id or a statement.
func lookupGoal(g *domain.KnowledgeGraph, key string) *domain.Goal {
	if goal, ok := g.Goals[domain.GoalID(key)]; ok {
		return goal
	}
	return findGoal(g, key)
}

func findAction(g *domain.KnowledgeGraph, description string) *domain.Action {
	norm := normalize(description)
	if norm == "" {
		return nil
	}
	for _, a := range g.Actions {
		if normalize(a.Description) == norm {
			return a
		}
	}
	return nil
}

func hasObstacle(g *domain.KnowledgeGraph, description string) bool {
	for _, o := range g.Obstacles {
		if o.Description == description {
			return true
		}
	}
	return false
}

func appendUnique(dst *[]string, phrases []string) {
	for _, p := range phrases {
		p = strings.TrimSpace(p)
		if p == "" || contains(*dst, p) {
			continue
		}
		*dst = append(*dst, p)
	}
}

func contains(list []string, s string) bool {
	for _, e := range list {
		if e == s {
			return true
		}
	}
	return false
}

func remove(list []string, s string) []string {
	out := list[:0]
	for _, e := range list {
		if e != s {
			out = append(out, e)
		}
	}
	return out
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
