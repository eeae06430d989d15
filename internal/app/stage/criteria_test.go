package stage_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielsoto/norte-agent/internal/app/stage"
	"github.com/danielsoto/norte-agent/internal/domain"
)

func TestDefaultTableCoversAllActiveStages(t *testing.T) {
	table := stage.DefaultTable()

	for st := domain.StageIntroduction; !st.Terminal(); st = st.Next() {
		c, ok := table[st]
		require.True(t, ok, "missing criteria for %s", st)
		assert.GreaterOrEqual(t, c.MaxTurns, 1, "%s", st)
		assert.LessOrEqual(t, c.MinTurns, c.MaxTurns, "%s", st)
	}
	assert.Equal(t, 29, table.MaxTotalTurns())
}

func TestContentSatisfied(t *testing.T) {
	c := stage.DefaultTable()[domain.StageValueDiscovery]
	sess := domain.NewSession("s-1", time.Now())

	assert.False(t, c.ContentSatisfied(sess))

	for _, name := range []string{"autonomy", "growth", "security"} {
		sess.Graph.Values[name] = &domain.Value{Name: name, Weight: 0.5}
	}
	assert.True(t, c.ContentSatisfied(sess))
}

func TestContentSatisfiedActionFeedback(t *testing.T) {
	c := stage.DefaultTable()[domain.StageActionPlanning]
	sess := domain.NewSession("s-1", time.Now())
	for _, desc := range []string{"a", "b", "c"} {
		sess.Graph.Actions = append(sess.Graph.Actions, &domain.Action{Description: desc})
	}

	assert.False(t, c.ContentSatisfied(sess))

	sess.Graph.Actions[0].UserFeedback = "sounds good"
	assert.True(t, c.ContentSatisfied(sess))
}

func TestLoadTableOverridesSingleStage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stages.yaml")
	data := `stages:
  - stage: rapport_building
    min_turns: 1
    max_turns: 4
    min_goals: 1
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	table, err := stage.LoadTable(path)
	require.NoError(t, err)

	c := table[domain.StageRapportBuilding]
	assert.Equal(t, 1, c.MinTurns)
	assert.Equal(t, 4, c.MaxTurns)
	assert.Equal(t, 1, c.MinGoals)

	// Untouched stages keep their defaults.
	assert.Equal(t, 10, table[domain.StageValueDiscovery].MaxTurns)
}

func TestLoadTableRejectsBadInput(t *testing.T) {
	dir := t.TempDir()

	cases := map[string]string{
		"unknown stage": `stages:
  - stage: warmup
    max_turns: 3
`,
		"terminal stage": `stages:
  - stage: done
    max_turns: 3
`,
		"zero ceiling": `stages:
  - stage: value_discovery
    max_turns: 0
`,
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name+".yaml")
			require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
			_, err := stage.LoadTable(path)
			assert.Error(t, err)
		})
	}
}

func TestLoadTableMissingFile(t *testing.T) {
	_, err := stage.LoadTable(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
