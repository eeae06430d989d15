package knowledge_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielsoto/norte-agent/internal/app/knowledge"
	"github.com/danielsoto/norte-agent/internal/domain"
)

func newMerger() *knowledge.Merger {
	return knowledge.NewMerger(knowledge.DefaultParams())
}

func mention(name string) domain.Delta {
	return domain.Delta{Values: []string{name}}
}

func TestWeightConvergenceSequence(t *testing.T) {
	m := newMerger()
	g := domain.NewKnowledgeGraph()

	// First mention inserts at the base weight; each re-mention applies the
	// diminishing increment with k=0.3.
	expected := []float64{0.5, 0.65, 0.755, 0.8285}

	for i, want := range expected {
		m.Merge(g, mention("autonomy"), domain.StageValueDiscovery)
		v := g.Values["autonomy"]
		require.NotNil(t, v, "mention %d", i)
		assert.InDelta(t, want, v.Weight, 1e-9, "mention %d", i+1)
	}
	assert.Less(t, g.Values["autonomy"].Weight, 1.0)
}

func TestRepeatedMergeDiminishes(t *testing.T) {
	m := newMerger()
	g := domain.NewKnowledgeGraph()

	m.Merge(g, mention("growth"), domain.StageValueDiscovery)
	w0 := g.Values["growth"].Weight

	m.Merge(g, mention("growth"), domain.StageValueDiscovery)
	w1 := g.Values["growth"].Weight

	m.Merge(g, mention("growth"), domain.StageValueDiscovery)
	w2 := g.Values["growth"].Weight

	assert.Greater(t, w1, w0)
	assert.Greater(t, w2, w1)
	// Strictly smaller increase the second time.
	assert.Less(t, w2-w1, w1-w0)

	for i := 0; i < 100; i++ {
		m.Merge(g, mention("growth"), domain.StageValueDiscovery)
	}
	assert.Less(t, g.Values["growth"].Weight, 1.0)
}

func TestConfirmationFreezesWeight(t *testing.T) {
	m := newMerger()
	g := domain.NewKnowledgeGraph()

	m.Merge(g, mention("freedom"), domain.StageValueDiscovery)
	m.Merge(g, domain.Delta{
		Confirmations: []domain.Confirmation{{Kind: domain.RefValue, Key: "freedom"}},
	}, domain.StageValueDiscovery)

	v := g.Values["freedom"]
	require.True(t, v.Confirmed)
	frozen := v.Weight

	// Passive re-mentions must not move a confirmed weight.
	m.Merge(g, mention("freedom"), domain.StageValueDiscovery)
	m.Merge(g, mention("freedom"), domain.StageValueDiscovery)
	assert.Equal(t, frozen, v.Weight)
}

func TestCorrectionReopensValue(t *testing.T) {
	m := newMerger()
	g := domain.NewKnowledgeGraph()

	m.Merge(g, mention("security"), domain.StageValueDiscovery)
	m.Merge(g, domain.Delta{
		Confirmations: []domain.Confirmation{{Kind: domain.RefValue, Key: "security"}},
	}, domain.StageValueDiscovery)

	lower := 0.2
	m.Merge(g, domain.Delta{
		Corrections: []domain.Correction{{Kind: domain.RefValue, Key: "security", NewWeight: &lower}},
	}, domain.StageValueDiscovery)

	v := g.Values["security"]
	assert.False(t, v.Confirmed)
	assert.InDelta(t, 0.2, v.Weight, 1e-9)

	// Re-mentions grow again after the correction.
	m.Merge(g, mention("security"), domain.StageValueDiscovery)
	assert.Greater(t, v.Weight, 0.2)
}

func TestGoalDedupByStatement(t *testing.T) {
	m := newMerger()
	g := domain.NewKnowledgeGraph()

	m.Merge(g, domain.Delta{Goals: []string{"start an online business"}}, domain.StageRapportBuilding)
	m.Merge(g, domain.Delta{Goals: []string{"Start an online business"}}, domain.StageRapportBuilding)
	m.Merge(g, domain.Delta{Goals: []string{"online business"}}, domain.StageRapportBuilding)

	assert.Len(t, g.Goals, 1)
	for _, goal := range g.Goals {
		assert.False(t, goal.Confirmed)
	}
}

func TestRationaleAppendedAndDeduped(t *testing.T) {
	m := newMerger()
	g := domain.NewKnowledgeGraph()

	d := domain.Delta{
		Values:     []string{"autonomy"},
		KeyPhrases: []string{"control over my time"},
	}
	m.Merge(g, d, domain.StageValueDiscovery)
	m.Merge(g, d, domain.StageValueDiscovery)
	m.Merge(g, domain.Delta{
		Values:     []string{"autonomy"},
		KeyPhrases: []string{"be my own boss"},
	}, domain.StageValueDiscovery)

	assert.Equal(t,
		[]string{"control over my time", "be my own boss"},
		g.Values["autonomy"].Rationale,
	)
}

func TestActionsOnlyDuringPlanning(t *testing.T) {
	m := newMerger()
	g := domain.NewKnowledgeGraph()

	action := domain.Delta{
		Actions: []domain.ActionSuggestion{{Description: "write a one-page plan", FitScore: 0.8}},
	}

	m.Merge(g, action, domain.StageValueDiscovery)
	assert.Empty(t, g.Actions)

	m.Merge(g, action, domain.StageActionPlanning)
	require.Len(t, g.Actions, 1)

	// Duplicate suggestions fold into the existing action.
	m.Merge(g, action, domain.StageActionPlanning)
	assert.Len(t, g.Actions, 1)
}

func TestActionFeedbackAttachesToMostRecent(t *testing.T) {
	m := newMerger()
	g := domain.NewKnowledgeGraph()

	m.Merge(g, domain.Delta{
		Actions: []domain.ActionSuggestion{
			{Description: "block two hours weekly"},
			{Description: "talk to a mentor"},
		},
	}, domain.StageActionPlanning)

	m.Merge(g, domain.Delta{
		Feedback: []domain.ActionFeedback{{Feedback: "that feels doable"}},
	}, domain.StageActionPlanning)

	assert.Equal(t, "that feels doable", g.Actions[1].UserFeedback)
	assert.Empty(t, g.Actions[0].UserFeedback)
}

func TestLinkingAdditiveAndContradiction(t *testing.T) {
	m := newMerger()
	g := domain.NewKnowledgeGraph()

	m.Merge(g, domain.Delta{
		Goals:  []string{"start an online business"},
		Values: []string{"autonomy"},
	}, domain.StageRapportBuilding)

	var goalID domain.GoalID
	for id := range g.Goals {
		goalID = id
	}

	link := domain.Delta{Links: []domain.GoalValueLink{{Goal: goalID, Value: "autonomy"}}}
	m.Merge(g, link, domain.StageValueDiscovery)
	m.Merge(g, link, domain.StageValueDiscovery)
	assert.Equal(t, []string{"autonomy"}, g.Goals[goalID].LinkedValues)

	m.Merge(g, domain.Delta{
		Links: []domain.GoalValueLink{{Goal: goalID, Value: "autonomy", Contradicted: true}},
	}, domain.StageValueDiscovery)
	assert.Empty(t, g.Goals[goalID].LinkedValues)
}

func TestToneLatestWins(t *testing.T) {
	m := newMerger()
	g := domain.NewKnowledgeGraph()

	m.Merge(g, domain.Delta{Tone: &domain.EmotionalTone{Label: "anxious"}}, domain.StageRapportBuilding)
	m.Merge(g, domain.Delta{Tone: &domain.EmotionalTone{Label: "hopeful", Note: "after talking it through"}}, domain.StageRapportBuilding)

	assert.Equal(t, "hopeful", g.Tone.Label)
	assert.Equal(t, "after talking it through", g.Tone.Note)
}

func TestEmptyDeltaIsNoOp(t *testing.T) {
	m := newMerger()
	g := domain.NewKnowledgeGraph()

	m.Merge(g, domain.Delta{Values: []string{"health"}}, domain.StageValueDiscovery)
	before := g.Values["health"].Weight

	m.Merge(g, domain.Delta{}, domain.StageValueDiscovery)

	assert.Len(t, g.Values, 1)
	assert.Equal(t, before, g.Values["health"].Weight)
	assert.Empty(t, g.Obstacles)
}

func TestTerminalStageRejectsMerge(t *testing.T) {
	m := newMerger()
	g := domain.NewKnowledgeGraph()

	m.Merge(g, domain.Delta{Values: []string{"health"}}, domain.StageDone)
	assert.Empty(t, g.Values)
}

func TestObstaclesAppendWithGoalReference(t *testing.T) {
	m := newMerger()
	g := domain.NewKnowledgeGraph()

	m.Merge(g, domain.Delta{Goals: []string{"change careers"}}, domain.StageRapportBuilding)
	var goalID domain.GoalID
	for id := range g.Goals {
		goalID = id
	}

	m.Merge(g, domain.Delta{
		Obstacles: []domain.Obstacle{
			{Description: "fear of losing income", RelatedGoal: goalID},
			{Description: "fear of losing income", RelatedGoal: goalID}, // duplicate
			{Description: "no time to study", RelatedGoal: "missing-goal"},
		},
	}, domain.StageRapportBuilding)

	require.Len(t, g.Obstacles, 2)
	assert.Equal(t, goalID, g.Obstacles[0].RelatedGoal)
	// Unknown goal references are dropped, not invented.
	assert.Empty(t, g.Obstacles[1].RelatedGoal)
}
