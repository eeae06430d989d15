package llm

import (
	"fmt"
	"strings"

	"github.com/danielsoto/norte-agent/internal/domain"
)

const systemPrompt = `
You are "Norte", a coaching companion that helps people discover what they
truly value and connect their goals to those values.

Your role:
- You guide a structured conversation through fixed stages: introduction,
  rapport building, value discovery, action planning, and a final summary.
- You listen with genuine curiosity and without judgment.
- You ask one question at a time and keep every message short.

General style guidelines:
- Answer in the SAME LANGUAGE as the user.
- Use simple, everyday language, not technical jargon.
- Reflect back what you understood before asking the next question.
- Use the user's own words when summarizing their goals and values.
- Invite correction: your understanding is a draft, not a verdict.
`

const introductionPrompt = `Write a short, warm opening message that:
1. Introduces yourself as Norte, a guide for discovering goals and values.
2. Explains that the conversation moves through a few short stages.
3. Ends with one open question inviting the user to share what brought them here.

Output only the message, nothing else.`

const rapportPrompt = `You are building trust and context with the user.
Generate one warm, open question that deepens your understanding of their
situation and what outcome they seek.

Guidelines:
- Avoid judgment or assumptions
- Use language that communicates curiosity and autonomy
- Keep it conversational and genuine

Output only the question, nothing else.`

const valueDiscoveryPrompt = `Explore *why* the user's goals matter and which
underlying values they serve.

Guidelines:
- If the user already gave a reason, go one level deeper ("Why is that
  important to you?")
- Keep the question open and emotionally safe
- Avoid an interrogation tone; use genuine curiosity
- Where values might conflict, probe the trade-off with a concrete scenario

Output only the question.`

const actionPlanningPrompt = `Based on the confirmed goals and values in the
knowledge map below, produce 2-3 next-step suggestions that clearly connect to
those values. Each suggestion must explicitly link to at least one value.

Then ask one follow-up question about how these steps feel.

Format:
"Based on your values of [values], here are some potential next steps:
1. [Action] - this aligns with your value of [value]
2. [Action] - this supports your [value]

How do these feel to you? What resonates or what would you change?"`

const summaryPrompt = `Write a complete, readable summary of this session:
the user's goals in their own words, their values ranked by importance, and
the action steps you explored together.

Close by asking for their honest feedback on the process.`

const closingPrompt = `The session is complete. Write a short, warm closing
message thanking the user and reminding them that their values are their
compass when decisions feel difficult.`

// BuildGenerationPrompt assembles the stage-specific meta-prompt plus the
// current knowledge map for the generation call.
func BuildGenerationPrompt(stage domain.Stage, graph *domain.KnowledgeGraph) string {
	var meta string
	switch stage {
	case domain.StageIntroduction:
		return introductionPrompt
	case domain.StageRapportBuilding:
		meta = rapportPrompt
	case domain.StageValueDiscovery:
		meta = valueDiscoveryPrompt
	case domain.StageActionPlanning:
		meta = actionPlanningPrompt
	case domain.StageSummaryFeedback:
		meta = summaryPrompt
	default:
		meta = closingPrompt
	}
	return meta + "\n\nCurrent knowledge map:\n" + KnowledgeContext(graph)
}

// BuildExtractionPrompt asks the model to turn the latest utterance into the
// fixed delta schema. The knowledge map snapshot lets it tell new facts from
// restated ones.
func BuildExtractionPrompt(latest string, graph *domain.KnowledgeGraph) string {
	return fmt.Sprintf(`Analyze the user's response and extract structured information.

User's response: %q

Already-known knowledge map (do not re-extract unchanged facts):
%s

Extract and return ONLY valid JSON (no markdown, no explanation):
{
  "goals_mentioned": ["new goals or objectives, if any"],
  "values_mentioned": ["underlying values or motivations, one or two words each"],
  "emotional_tone": "one word for the emotional tone (e.g. excited, anxious, hopeful)",
  "tone_note": "short free-text note on the tone, may be empty",
  "obstacles_mentioned": ["barriers or concerns mentioned"],
  "key_phrases": ["important phrases in their own words, max 3"],
  "confirmations": [{"kind": "goal|value", "key": "statement or value name the user explicitly confirmed"}],
  "corrections": [{"kind": "goal|value", "key": "what the user corrected", "new_weight": 0.0}],
  "value_links": [{"goal": "goal statement", "value": "value name", "contradicted": false}],
  "suggested_actions": [{"description": "...", "linked_values": ["..."], "fit_score": 0.8}],
  "action_feedback": [{"description": "action the feedback refers to, may be empty", "feedback": "the user's reaction"}]
}

Guidelines:
- Only include what is clearly present in the response.
- A confirmation is an explicit yes, never inferred from repetition.
- suggested_actions only when the user commits to or proposes a concrete step.
- Omit empty lists entirely.`, latest, KnowledgeContext(graph))
}

// BuildValidationPrompt asks for a stage-completion judgment with the
// stage-specific criteria spelled out.
func BuildValidationPrompt(stage domain.Stage, graph *domain.KnowledgeGraph, turns int) string {
	return fmt.Sprintf(`You are an assessment system judging whether a coaching
conversation stage is complete. Return only valid JSON.

Stage: %s (turn %d in this stage)
Completion criteria: %s

Current knowledge map:
%s

Return ONLY:
{"decision": "stay|advance", "reason": "one short sentence"}`,
		stage, turns, stageCriteriaText(stage), KnowledgeContext(graph))
}

func stageCriteriaText(stage domain.Stage) string {
	switch stage {
	case domain.StageRapportBuilding:
		return "a clear goal statement plus enough contextual detail about the user's situation"
	case domain.StageValueDiscovery:
		return "several distinct values with explored reasons why they matter, ideally some confirmed"
	case domain.StageActionPlanning:
		return "concrete suggested actions with recorded user feedback on at least one"
	case domain.StageSummaryFeedback:
		return "the summary was delivered and the user gave final feedback"
	default:
		return "no content requirements"
	}
}

// KnowledgeContext formats the knowledge graph as plain text for prompt
// injection.
func KnowledgeContext(g *domain.KnowledgeGraph) string {
	if g == nil {
		return "No knowledge extracted yet."
	}

	var parts []string

	if len(g.Goals) > 0 {
		var b strings.Builder
		b.WriteString("Identified Goals:\n")
		for _, goal := range g.Goals {
			status := ""
			if goal.Confirmed {
				status = " [CONFIRMED]"
			}
			fmt.Fprintf(&b, "  - %s%s\n", goal.Statement, status)
			if len(goal.LinkedValues) > 0 {
				fmt.Fprintf(&b, "    Supported by: %s\n", strings.Join(goal.LinkedValues, ", "))
			}
		}
		parts = append(parts, b.String())
	}

	if len(g.Values) > 0 {
		var b strings.Builder
		b.WriteString("Discovered Values:\n")
		for _, v := range g.RankedValues() {
			status := ""
			if v.Confirmed {
				status = " [CONFIRMED]"
			}
			fmt.Fprintf(&b, "  - %s (weight: %.2f)%s\n", v.Name, v.Weight, status)
			if len(v.Rationale) > 0 {
				fmt.Fprintf(&b, "    Context: %s\n", v.Rationale[len(v.Rationale)-1])
			}
		}
		parts = append(parts, b.String())
	}

	if len(g.Obstacles) > 0 {
		var b strings.Builder
		b.WriteString("Obstacles:\n")
		for _, o := range g.Obstacles {
			fmt.Fprintf(&b, "  - %s\n", o.Description)
		}
		parts = append(parts, b.String())
	}

	if g.Tone.Label != "" {
		parts = append(parts, "Emotional tone: "+g.Tone.Label+"\n")
	}

	if len(g.Actions) > 0 {
		var b strings.Builder
		b.WriteString("Suggested Actions:\n")
		for _, a := range g.Actions {
			fmt.Fprintf(&b, "  - %s\n", a.Description)
			if len(a.LinkedValues) > 0 {
				fmt.Fprintf(&b, "    Aligns with: %s\n", strings.Join(a.LinkedValues, ", "))
			}
			if a.UserFeedback != "" {
				fmt.Fprintf(&b, "    Feedback: %s\n", a.UserFeedback)
			}
		}
		parts = append(parts, b.String())
	}

	if len(parts) == 0 {
		return "No knowledge extracted yet."
	}
	return strings.Join(parts, "\n")
}
