package llm

import (
	"context"
	"fmt"
	"os"

	"google.golang.org/genai"

	"github.com/danielsoto/norte-agent/internal/domain"
)

type VertexClient struct {
	client    *genai.Client
	modelName string
}

// NewVertexClient creates a ModelClient based on Vertex AI (Gemini).
// Uses environment variables for project and region to simplify.
func NewVertexClient(ctx context.Context) (*VertexClient, error) {
	projectID := os.Getenv("NORTE_GCP_PROJECT")
	location := os.Getenv("NORTE_GCP_LOCATION")
	if projectID == "" || location == "" {
		return nil, fmt.Errorf("NORTE_GCP_PROJECT and NORTE_GCP_LOCATION must be set")
	}

	modelName := os.Getenv("NORTE_MODEL_NAME")
	if modelName == "" {
		modelName = "gemini-2.5-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		Project:  projectID,
		Location: location,
		Backend:  genai.BackendVertexAI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating Vertex AI client: %w", err)
	}

	return &VertexClient{
		client:    client,
		modelName: modelName,
	}, nil
}

// Extract implements domain.ModelClient. A failed or unparsable call returns
// an extraction error; the caller degrades it to an empty delta.
func (v *VertexClient) Extract(
	ctx context.Context,
	history []domain.Message,
	latest string,
	graph *domain.KnowledgeGraph,
) (domain.Delta, error) {
	prompt := BuildExtractionPrompt(latest, graph)

	text, err := v.generate(ctx, "You are a precise knowledge extraction system. Always return valid JSON only.", nil, prompt, 0.2)
	if err != nil {
		return domain.Delta{}, fmt.Errorf("%w: %s", domain.ErrExtraction, err)
	}

	delta, err := parseDelta(text)
	if err != nil {
		return domain.Delta{}, fmt.Errorf("%w: %s", domain.ErrExtraction, err)
	}
	return delta, nil
}

// ValidateStage implements domain.ModelClient using a low temperature for a
// stable judgment.
func (v *VertexClient) ValidateStage(
	ctx context.Context,
	stage domain.Stage,
	graph *domain.KnowledgeGraph,
	turnsInStage int,
) (domain.Verdict, error) {
	prompt := BuildValidationPrompt(stage, graph, turnsInStage)

	text, err := v.generate(ctx, "You are an assessment system. Return only valid JSON.", nil, prompt, 0.3)
	if err != nil {
		return domain.Verdict{}, fmt.Errorf("%w: %s", domain.ErrValidation, err)
	}

	verdict, err := parseVerdict(text)
	if err != nil {
		return domain.Verdict{}, fmt.Errorf("%w: %s", domain.ErrValidation, err)
	}
	return verdict, nil
}

// GeneratePrompt implements domain.ModelClient.
func (v *VertexClient) GeneratePrompt(
	ctx context.Context,
	stage domain.Stage,
	history []domain.Message,
	graph *domain.KnowledgeGraph,
) (string, error) {
	prompt := BuildGenerationPrompt(stage, graph)

	text, err := v.generate(ctx, systemPrompt, history, prompt, 0.7)
	if err != nil {
		return "", fmt.Errorf("%w: %s", domain.ErrGeneration, err)
	}
	return text, nil
}

// generate runs one model call: system instruction, optional history, and a
// final user-role prompt.
func (v *VertexClient) generate(
	ctx context.Context,
	system string,
	history []domain.Message,
	prompt string,
	temperature float32,
) (string, error) {
	var contents []*genai.Content
	for _, m := range tail(history, 10) {
		var role genai.Role = genai.RoleUser
		if m.Role == domain.RoleAgent {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Text, role))
	}
	contents = append(contents, genai.NewContentFromText(prompt, genai.RoleUser))

	temp := temperature
	topP := float32(0.9)
	outputTokens := int32(8192)

	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
		Temperature:       &temp,
		TopP:              &topP,
		MaxOutputTokens:   outputTokens,
	}

	res, err := v.client.Models.GenerateContent(ctx, v.modelName, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("vertex generate content: %w", err)
	}

	text := res.Text()
	if text == "" {
		return "", fmt.Errorf("vertex returned empty text")
	}
	return text, nil
}

func tail(msgs []domain.Message, n int) []domain.Message {
	if len(msgs) <= n {
		return msgs
	}
	return msgs[len(msgs)-n:]
}
