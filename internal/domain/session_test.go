package domain_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielsoto/norte-agent/internal/domain"
)

func TestStageOrderAndTerminal(t *testing.T) {
	order := []domain.Stage{
		domain.StageIntroduction,
		domain.StageRapportBuilding,
		domain.StageValueDiscovery,
		domain.StageActionPlanning,
		domain.StageSummaryFeedback,
		domain.StageDone,
	}
	for i := 0; i < len(order)-1; i++ {
		assert.Equal(t, order[i+1], order[i].Next())
		assert.False(t, order[i].Terminal())
	}
	assert.True(t, domain.StageDone.Terminal())
	assert.Equal(t, domain.StageDone, domain.StageDone.Next())
}

func TestParseStageRoundTrip(t *testing.T) {
	for st := domain.StageIntroduction; ; st = st.Next() {
		parsed, err := domain.ParseStage(st.String())
		require.NoError(t, err)
		assert.Equal(t, st, parsed)
		if st.Terminal() {
			break
		}
	}

	_, err := domain.ParseStage("warmup")
	assert.Error(t, err)
}

func TestSessionCloneIsDeep(t *testing.T) {
	now := time.Now()
	sess := domain.NewSession("s-1", now)
	sess.Graph.Values["autonomy"] = &domain.Value{Name: "autonomy", Weight: 0.5}
	sess.Append(domain.RoleUser, "hello", now)
	sess.Metrics = append(sess.Metrics, domain.StageMetrics{Stage: domain.StageIntroduction, StartedAt: now})

	clone := sess.Clone()
	clone.Graph.Values["autonomy"].Weight = 0.9
	clone.Graph.Values["new"] = &domain.Value{Name: "new"}
	clone.History[0].Text = "changed"
	clone.Metrics[0].Turns = 99

	assert.InDelta(t, 0.5, sess.Graph.Values["autonomy"].Weight, 1e-9)
	assert.Len(t, sess.Graph.Values, 1)
	assert.Equal(t, "hello", sess.History[0].Text)
	assert.Equal(t, 0, sess.Metrics[0].Turns)
}

func TestOpenMetricsReusesUnclosedRecord(t *testing.T) {
	now := time.Now()
	sess := domain.NewSession("s-1", now)

	m1 := sess.OpenMetrics(domain.StageRapportBuilding, now)
	m1.Turns = 2
	m2 := sess.OpenMetrics(domain.StageRapportBuilding, now.Add(time.Minute))

	assert.Same(t, m1, m2)
	require.Len(t, sess.Metrics, 1)

	// Once closed the record is immutable; a new open record is created.
	m1.EndedAt = now.Add(2 * time.Minute)
	m3 := sess.OpenMetrics(domain.StageRapportBuilding, now.Add(3*time.Minute))
	assert.NotSame(t, m1, m3)
	assert.Len(t, sess.Metrics, 2)
}

func TestRankedValuesStableOrder(t *testing.T) {
	g := domain.NewKnowledgeGraph()
	g.Values["b"] = &domain.Value{Name: "b", Weight: 0.5}
	g.Values["a"] = &domain.Value{Name: "a", Weight: 0.5}
	g.Values["c"] = &domain.Value{Name: "c", Weight: 0.9}

	ranked := g.RankedValues()
	require.Len(t, ranked, 3)
	assert.Equal(t, "c", ranked[0].Name)
	assert.Equal(t, "a", ranked[1].Name)
	assert.Equal(t, "b", ranked[2].Name)
}

func TestBuildSummarySnapshotsGraph(t *testing.T) {
	g := domain.NewKnowledgeGraph()
	g.Values["autonomy"] = &domain.Value{Name: "autonomy", Weight: 0.8, Confirmed: true}
	g.Goals["g-1"] = &domain.Goal{ID: "g-1", Statement: "change careers", Confirmed: true, LinkedValues: []string{"autonomy"}}
	g.Goals["g-2"] = &domain.Goal{ID: "g-2", Statement: "unconfirmed idea"}
	g.Actions = append(g.Actions, &domain.Action{Description: "talk to a mentor", FitScore: 0.7, UserFeedback: "yes"})

	at := time.Now()
	s := domain.BuildSummary(g, at)

	require.Len(t, s.Values, 1)
	assert.True(t, s.Values[0].Confirmed)
	// Only confirmed goals make the summary.
	require.Len(t, s.Goals, 1)
	assert.Equal(t, "change careers", s.Goals[0].Statement)
	require.Len(t, s.Actions, 1)
	assert.Equal(t, "yes", s.Actions[0].UserFeedback)
	assert.Equal(t, at, s.GeneratedAt)

	// Later graph mutation does not reach the summary.
	g.Goals["g-1"].LinkedValues[0] = "mutated"
	assert.Equal(t, "autonomy", s.Goals[0].LinkedValues[0])
}
