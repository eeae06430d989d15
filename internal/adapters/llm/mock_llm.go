package llm

import (
	"context"
	"fmt"
	"sync"

	"github.com/danielsoto/norte-agent/internal/domain"
)

// MockModel is a deterministic ModelClient for local mode and tests. Deltas
// and verdicts can be queued turn by turn; the Fail switches simulate a model
// collaborator outage to exercise the fallback paths.
type MockModel struct {
	mu       sync.Mutex
	deltas   []domain.Delta
	verdicts []domain.Verdict

	FailExtract  bool
	FailValidate bool
	FailGenerate bool
}

func NewMockModel() *MockModel {
	return &MockModel{}
}

// QueueDelta schedules the delta returned by the next Extract call.
func (m *MockModel) QueueDelta(d domain.Delta) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deltas = append(m.deltas, d)
}

// QueueVerdict schedules the verdict returned by the next ValidateStage call.
func (m *MockModel) QueueVerdict(v domain.Verdict) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.verdicts = append(m.verdicts, v)
}

func (m *MockModel) Extract(
	ctx context.Context,
	history []domain.Message,
	latest string,
	graph *domain.KnowledgeGraph,
) (domain.Delta, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailExtract {
		return domain.Delta{}, fmt.Errorf("%w: mock extract failure", domain.ErrExtraction)
	}
	if len(m.deltas) > 0 {
		d := m.deltas[0]
		m.deltas = m.deltas[1:]
		return d, nil
	}
	return domain.Delta{}, nil
}

func (m *MockModel) ValidateStage(
	ctx context.Context,
	stage domain.Stage,
	graph *domain.KnowledgeGraph,
	turnsInStage int,
) (domain.Verdict, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailValidate {
		return domain.Verdict{}, fmt.Errorf("%w: mock validate failure", domain.ErrValidation)
	}
	if len(m.verdicts) > 0 {
		v := m.verdicts[0]
		m.verdicts = m.verdicts[1:]
		return v, nil
	}
	return domain.Verdict{Decision: domain.DecisionStay, Reason: "mock default"}, nil
}

func (m *MockModel) GeneratePrompt(
	ctx context.Context,
	stage domain.Stage,
	history []domain.Message,
	graph *domain.KnowledgeGraph,
) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailGenerate {
		return "", fmt.Errorf("%w: mock generate failure", domain.ErrGeneration)
	}

	switch stage {
	case domain.StageIntroduction:
		return "Hi, I'm Norte. We'll move through a few short stages to explore your goals and values. What brought you here today?", nil
	case domain.StageRapportBuilding:
		return "Tell me a bit more about your situation. What outcome are you hoping for?", nil
	case domain.StageValueDiscovery:
		return "Why does that matter to you? What does it serve underneath?", nil
	case domain.StageActionPlanning:
		return "Here are some next steps connected to your values. How do these feel to you?", nil
	case domain.StageSummaryFeedback:
		return "Here is a summary of your goals and values:\n" + KnowledgeContext(graph) + "\nHow was this process for you?", nil
	default:
		return "Thank you for sharing this journey. Your values are your compass.", nil
	}
}
