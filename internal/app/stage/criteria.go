package stage

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/danielsoto/norte-agent/internal/domain"
)

// Criteria is the completion rule set for one stage. The whole stage machine
// is parameterized by data, so behavior variants are configuration, not code.
type Criteria struct {
	Stage domain.Stage

	// MinTurns gates any advancement; below it the verdict is always Stay.
	MinTurns int
	// MaxTurns is the hard ceiling: reaching it forces advancement no matter
	// what the graph contains. This is the termination guarantee.
	MaxTurns int

	// AutoAdvance stages leave after their first turn with no content checks.
	AutoAdvance bool

	// Content minimums used by the deterministic fallback rule.
	MinGoals              int
	MinValues             int
	MinActions            int
	RequireActionFeedback bool
	RequireFinalFeedback  bool
}

// Table maps each non-terminal stage to its criteria.
type Table map[domain.Stage]Criteria

// DefaultTable carries the consolidated thresholds of the agent variants this
// design grew out of: rapport needs a stated goal within 3-8 turns, value
// discovery three distinct values within 3-10, action planning three actions
// with feedback within 2-7, summary waits for final feedback.
func DefaultTable() Table {
	return Table{
		domain.StageIntroduction: {
			Stage:       domain.StageIntroduction,
			MaxTurns:    1,
			AutoAdvance: true,
		},
		domain.StageRapportBuilding: {
			Stage:    domain.StageRapportBuilding,
			MinTurns: 3,
			MaxTurns: 8,
			MinGoals: 1,
		},
		domain.StageValueDiscovery: {
			Stage:     domain.StageValueDiscovery,
			MinTurns:  3,
			MaxTurns:  10,
			MinValues: 3,
		},
		domain.StageActionPlanning: {
			Stage:                 domain.StageActionPlanning,
			MinTurns:              2,
			MaxTurns:              7,
			MinActions:            3,
			RequireActionFeedback: true,
		},
		domain.StageSummaryFeedback: {
			Stage:                domain.StageSummaryFeedback,
			MinTurns:             1,
			MaxTurns:             3,
			RequireFinalFeedback: true,
		},
	}
}

// MaxTotalTurns is the upper bound on turns before a session reaches Done.
func (t Table) MaxTotalTurns() int {
	total := 0
	for _, c := range t {
		total += c.MaxTurns
	}
	return total
}

// ContentSatisfied is the deterministic fallback judgment: a pure function of
// the session's graph and counters, implementable with no external call.
func (c Criteria) ContentSatisfied(sess *domain.Session) bool {
	g := sess.Graph
	if len(g.Goals) < c.MinGoals {
		return false
	}
	if len(g.Values) < c.MinValues {
		return false
	}
	if len(g.Actions) < c.MinActions {
		return false
	}
	if c.RequireActionFeedback && g.ActionsWithFeedback() < 1 {
		return false
	}
	if c.RequireFinalFeedback && sess.FinalFeedback == "" {
		return false
	}
	return true
}

// ─────────────────────────────────────────
// YAML loading
// ─────────────────────────────────────────

type criteriaFile struct {
	Stages []criteriaEntry `yaml:"stages"`
}

type criteriaEntry struct {
	Stage                 string `yaml:"stage"`
	MinTurns              int    `yaml:"min_turns"`
	MaxTurns              int    `yaml:"max_turns"`
	AutoAdvance           bool   `yaml:"auto_advance"`
	MinGoals              int    `yaml:"min_goals"`
	MinValues             int    `yaml:"min_values"`
	MinActions            int    `yaml:"min_actions"`
	RequireActionFeedback bool   `yaml:"require_action_feedback"`
	RequireFinalFeedback  bool   `yaml:"require_final_feedback"`
}

// LoadTable reads a stage criteria table from a YAML file. Entries override
// the defaults stage by stage, so a file may tune a single threshold.
func LoadTable(path string) (Table, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read stage config: %w", err)
	}
	var file criteriaFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("unmarshal stage config: %w", err)
	}

	table := DefaultTable()
	for _, e := range file.Stages {
		st, err := domain.ParseStage(e.Stage)
		if err != nil {
			return nil, fmt.Errorf("stage config: %w", err)
		}
		if st.Terminal() {
			return nil, fmt.Errorf("stage config: %s has no criteria", st)
		}
		if e.MaxTurns < 1 {
			return nil, fmt.Errorf("stage config: %s needs max_turns >= 1", st)
		}
		table[st] = Criteria{
			Stage:                 st,
			MinTurns:              e.MinTurns,
			MaxTurns:              e.MaxTurns,
			AutoAdvance:           e.AutoAdvance,
			MinGoals:              e.MinGoals,
			MinValues:             e.MinValues,
			MinActions:            e.MinActions,
			RequireActionFeedback: e.RequireActionFeedback,
			RequireFinalFeedback:  e.RequireFinalFeedback,
		}
	}
	return table, nil
}
