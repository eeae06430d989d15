package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/danielsoto/norte-agent/internal/domain"
)

var fencedJSON = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")

// extractJSONBlock pulls the JSON object out of a model reply that may wrap
// it in a markdown fence or surrounding prose.
func extractJSONBlock(content string) string {
	if m := fencedJSON.FindStringSubmatch(content); m != nil {
		return m[1]
	}
	return strings.TrimSpace(content)
}

// deltaPayload is the fixed wire schema for extraction responses. Unknown
// fields are rejected so malformed model output becomes an extraction
// failure instead of leaking ad hoc shapes into the graph.
type deltaPayload struct {
	Goals         []string            `json:"goals_mentioned"`
	Values        []string            `json:"values_mentioned"`
	EmotionalTone string              `json:"emotional_tone"`
	ToneNote      string              `json:"tone_note"`
	Obstacles     []string            `json:"obstacles_mentioned"`
	KeyPhrases    []string            `json:"key_phrases"`
	Confirmations []refPayload        `json:"confirmations"`
	Corrections   []correctionPayload `json:"corrections"`
	Links         []linkPayload       `json:"value_links"`
	Actions       []actionPayload     `json:"suggested_actions"`
	Feedback      []feedbackPayload   `json:"action_feedback"`
}

type refPayload struct {
	Kind string `json:"kind"`
	Key  string `json:"key"`
}

type correctionPayload struct {
	Kind      string   `json:"kind"`
	Key       string   `json:"key"`
	NewWeight *float64 `json:"new_weight"`
}

type linkPayload struct {
	Goal         string `json:"goal"`
	Value        string `json:"value"`
	Contradicted bool   `json:"contradicted"`
}

type actionPayload struct {
	Description  string   `json:"description"`
	LinkedValues []string `json:"linked_values"`
	FitScore     float64  `json:"fit_score"`
}

type feedbackPayload struct {
	Description string `json:"description"`
	Feedback    string `json:"feedback"`
}

// parseDelta decodes a model extraction reply against the fixed schema.
func parseDelta(content string) (domain.Delta, error) {
	raw := extractJSONBlock(content)

	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.DisallowUnknownFields()

	var p deltaPayload
	if err := dec.Decode(&p); err != nil {
		return domain.Delta{}, fmt.Errorf("decode delta: %w", err)
	}

	d := domain.Delta{
		Goals:      p.Goals,
		Values:     p.Values,
		KeyPhrases: p.KeyPhrases,
	}
	if p.EmotionalTone != "" {
		d.Tone = &domain.EmotionalTone{Label: p.EmotionalTone, Note: p.ToneNote}
	}
	for _, o := range p.Obstacles {
		d.Obstacles = append(d.Obstacles, domain.Obstacle{Description: o})
	}
	for _, c := range p.Confirmations {
		kind, err := parseRefKind(c.Kind)
		if err != nil {
			return domain.Delta{}, err
		}
		d.Confirmations = append(d.Confirmations, domain.Confirmation{Kind: kind, Key: c.Key})
	}
	for _, c := range p.Corrections {
		kind, err := parseRefKind(c.Kind)
		if err != nil {
			return domain.Delta{}, err
		}
		d.Corrections = append(d.Corrections, domain.Correction{Kind: kind, Key: c.Key, NewWeight: c.NewWeight})
	}
	for _, l := range p.Links {
		d.Links = append(d.Links, domain.GoalValueLink{
			Goal:         domain.GoalID(l.Goal),
			Value:        l.Value,
			Contradicted: l.Contradicted,
		})
	}
	for _, a := range p.Actions {
		d.Actions = append(d.Actions, domain.ActionSuggestion{
			Description:  a.Description,
			LinkedValues: a.LinkedValues,
			FitScore:     a.FitScore,
		})
	}
	for _, f := range p.Feedback {
		d.Feedback = append(d.Feedback, domain.ActionFeedback{Description: f.Description, Feedback: f.Feedback})
	}
	return d, nil
}

func parseRefKind(s string) (domain.RefKind, error) {
	switch s {
	case "goal":
		return domain.RefGoal, nil
	case "value":
		return domain.RefValue, nil
	}
	return "", fmt.Errorf("unknown reference kind %q", s)
}

// verdictPayload is the wire schema for stage validation responses.
type verdictPayload struct {
	Decision string `json:"decision"`
	Reason   string `json:"reason"`
}

func parseVerdict(content string) (domain.Verdict, error) {
	raw := extractJSONBlock(content)

	var p verdictPayload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return domain.Verdict{}, fmt.Errorf("decode verdict: %w", err)
	}

	switch strings.ToLower(strings.TrimSpace(p.Decision)) {
	case "stay":
		return domain.Verdict{Decision: domain.DecisionStay, Reason: p.Reason}, nil
	case "advance":
		return domain.Verdict{Decision: domain.DecisionAdvance, Reason: p.Reason}, nil
	}
	return domain.Verdict{}, fmt.Errorf("unknown decision %q", p.Decision)
}
