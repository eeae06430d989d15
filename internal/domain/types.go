package domain

import (
	"fmt"
	"time"
)

type SessionID string
type GoalID string

type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
)

// Stage is one phase of the fixed conversation sequence. Transitions only
// move forward; StageDone is terminal.
type Stage int

const (
	StageIntroduction Stage = iota
	StageRapportBuilding
	StageValueDiscovery
	StageActionPlanning
	StageSummaryFeedback
	StageDone
)

var stageNames = map[Stage]string{
	StageIntroduction:    "introduction",
	StageRapportBuilding: "rapport_building",
	StageValueDiscovery:  "value_discovery",
	StageActionPlanning:  "action_planning",
	StageSummaryFeedback: "summary_feedback",
	StageDone:            "done",
}

func (s Stage) String() string {
	if name, ok := stageNames[s]; ok {
		return name
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// Next returns the successor stage. StageDone has no successor and returns
// itself.
func (s Stage) Next() Stage {
	if s >= StageDone {
		return StageDone
	}
	return s + 1
}

func (s Stage) Terminal() bool {
	return s == StageDone
}

// ParseStage maps a stored stage name back to its enum value.
func ParseStage(name string) (Stage, error) {
	for s, n := range stageNames {
		if n == name {
			return s, nil
		}
	}
	return StageIntroduction, fmt.Errorf("unknown stage %q", name)
}

// Decision is the per-turn stage verdict.
type Decision string

const (
	DecisionStay         Decision = "stay"
	DecisionAdvance      Decision = "advance"
	DecisionForceAdvance Decision = "force_advance"
)

// Verdict is the decision produced after every user turn, with a short
// reason used for telemetry.
type Verdict struct {
	Decision Decision
	Reason   string
}

type Timestamp = time.Time
