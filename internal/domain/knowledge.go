package domain

import "sort"

// Value is something the user cares about, discovered during conversation.
// Weight only grows while unconfirmed; once confirmed it is frozen until an
// explicit correction arrives.
type Value struct {
	Name      string   `json:"name"`
	Weight    float64  `json:"weight"`
	Confirmed bool     `json:"confirmed"`
	Rationale []string `json:"rationale,omitempty"`
}

// Goal is a stated objective, optionally linked to the values that support it.
type Goal struct {
	ID           GoalID   `json:"id"`
	Statement    string   `json:"statement"`
	Confirmed    bool     `json:"confirmed"`
	LinkedValues []string `json:"linked_values,omitempty"`
	Rationale    []string `json:"rationale,omitempty"`
}

type Obstacle struct {
	Description string `json:"description"`
	RelatedGoal GoalID `json:"related_goal,omitempty"`
}

// EmotionalTone is a latest-wins signal, overwritten each turn.
type EmotionalTone struct {
	Label string `json:"label"`
	Note  string `json:"note,omitempty"`
}

// Action is a suggested step, created only during action planning.
type Action struct {
	Description  string   `json:"description"`
	LinkedValues []string `json:"linked_values,omitempty"`
	FitScore     float64  `json:"fit_score"`
	UserFeedback string   `json:"user_feedback,omitempty"`
}

// KnowledgeGraph holds everything learned about one session's user. It is
// exclusively owned by that session.
type KnowledgeGraph struct {
	Goals     map[GoalID]*Goal  `json:"goals"`
	Values    map[string]*Value `json:"values"`
	Obstacles []Obstacle        `json:"obstacles,omitempty"`
	Tone      EmotionalTone     `json:"tone"`
	Actions   []*Action         `json:"actions,omitempty"`
}

func NewKnowledgeGraph() *KnowledgeGraph {
	return &KnowledgeGraph{
		Goals:  make(map[GoalID]*Goal),
		Values: make(map[string]*Value),
	}
}

// Clone returns a deep copy, used for snapshots handed to external
// collaborators so they can never mutate live session state.
func (g *KnowledgeGraph) Clone() *KnowledgeGraph {
	if g == nil {
		return nil
	}
	out := NewKnowledgeGraph()
	for id, goal := range g.Goals {
		c := *goal
		c.LinkedValues = append([]string(nil), goal.LinkedValues...)
		c.Rationale = append([]string(nil), goal.Rationale...)
		out.Goals[id] = &c
	}
	for name, v := range g.Values {
		c := *v
		c.Rationale = append([]string(nil), v.Rationale...)
		out.Values[name] = &c
	}
	out.Obstacles = append([]Obstacle(nil), g.Obstacles...)
	out.Tone = g.Tone
	for _, a := range g.Actions {
		c := *a
		c.LinkedValues = append([]string(nil), a.LinkedValues...)
		out.Actions = append(out.Actions, &c)
	}
	return out
}

// RankedValues returns the values sorted by weight, highest first. Ties break
// by name so the order is stable.
func (g *KnowledgeGraph) RankedValues() []*Value {
	out := make([]*Value, 0, len(g.Values))
	for _, v := range g.Values {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Weight != out[j].Weight {
			return out[i].Weight > out[j].Weight
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func (g *KnowledgeGraph) ConfirmedGoals() []*Goal {
	var out []*Goal
	for _, goal := range g.Goals {
		if goal.Confirmed {
			out = append(out, goal)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ActionsWithFeedback counts the suggested actions the user has reacted to.
func (g *KnowledgeGraph) ActionsWithFeedback() int {
	n := 0
	for _, a := range g.Actions {
		if a.UserFeedback != "" {
			n++
		}
	}
	return n
}

// ─────────────────────────────────────────
// Delta: structured facts from one turn
// ─────────────────────────────────────────

type RefKind string

const (
	RefGoal  RefKind = "goal"
	RefValue RefKind = "value"
)

// Confirmation is an explicit user confirmation of a goal or value, detected
// by the extractor as a distinct signal, never inferred from repetition.
type Confirmation struct {
	Kind RefKind
	Key  string
}

// Correction is an explicit user correction. For values it may lower the
// weight; either way it reopens the confirmed flag.
type Correction struct {
	Kind      RefKind
	Key       string
	NewWeight *float64
}

// GoalValueLink links a value to a goal. Contradicted marks an explicit
// contradiction, which is the only way a link is removed.
type GoalValueLink struct {
	Goal         GoalID
	Value        string
	Contradicted bool
}

type ActionSuggestion struct {
	Description  string
	LinkedValues []string
	FitScore     float64
}

// ActionFeedback records the user's reaction to a suggested action. An empty
// Description attaches to the most recently suggested action.
type ActionFeedback struct {
	Description string
	Feedback    string
}

// Delta is the structured set of new facts extracted from one user
// utterance. The zero value is the empty delta: merging it is a no-op.
type Delta struct {
	Goals         []string
	Values        []string
	Obstacles     []Obstacle
	Tone          *EmotionalTone
	KeyPhrases    []string
	Confirmations []Confirmation
	Corrections   []Correction
	Links         []GoalValueLink
	Actions       []ActionSuggestion
	Feedback      []ActionFeedback
}

func (d Delta) Empty() bool {
	return len(d.Goals) == 0 && len(d.Values) == 0 && len(d.Obstacles) == 0 &&
		d.Tone == nil && len(d.KeyPhrases) == 0 && len(d.Confirmations) == 0 &&
		len(d.Corrections) == 0 && len(d.Links) == 0 && len(d.Actions) == 0 &&
		len(d.Feedback) == 0
}

// ─────────────────────────────────────────
// Summary: read-only view for the final stages
// ─────────────────────────────────────────

type SummaryValue struct {
	Name      string  `json:"name"`
	Weight    float64 `json:"weight"`
	Confirmed bool    `json:"confirmed"`
}

type SummaryGoal struct {
	Statement    string   `json:"statement"`
	LinkedValues []string `json:"linked_values,omitempty"`
}

type SummaryAction struct {
	Description  string  `json:"description"`
	FitScore     float64 `json:"fit_score"`
	UserFeedback string  `json:"user_feedback,omitempty"`
}

// Summary is the materialized view synthesized when the session enters the
// summary stage. It is never recomputed afterwards.
type Summary struct {
	Values      []SummaryValue  `json:"values"`
	Goals       []SummaryGoal   `json:"goals"`
	Actions     []SummaryAction `json:"actions"`
	Tone        EmotionalTone   `json:"tone"`
	GeneratedAt Timestamp       `json:"generated_at"`
}

// BuildSummary materializes the read-only summary view from a graph.
func BuildSummary(g *KnowledgeGraph, at Timestamp) *Summary {
	s := &Summary{Tone: g.Tone, GeneratedAt: at}
	for _, v := range g.RankedValues() {
		s.Values = append(s.Values, SummaryValue{Name: v.Name, Weight: v.Weight, Confirmed: v.Confirmed})
	}
	for _, goal := range g.ConfirmedGoals() {
		s.Goals = append(s.Goals, SummaryGoal{
			Statement:    goal.Statement,
			LinkedValues: append([]string(nil), goal.LinkedValues...),
		})
	}
	for _, a := range g.Actions {
		s.Actions = append(s.Actions, SummaryAction{
			Description:  a.Description,
			FitScore:     a.FitScore,
			UserFeedback: a.UserFeedback,
		})
	}
	return s
}
