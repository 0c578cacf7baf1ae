package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"prepdeck/internal/config"
)

// OpenAIMatcher asks a chat model for per-phrase coverage verdicts through a
// single function call, so the response is structured rather than free text.
type OpenAIMatcher struct {
	client *openai.Client
	model  string
}

// NewOpenAIMatcher creates the generative matcher from config.
func NewOpenAIMatcher(cfg *config.MatcherConfig) *OpenAIMatcher {
	return &OpenAIMatcher{
		client: openai.NewClient(cfg.APIKey),
		model:  cfg.Model,
	}
}

type phraseVerdictArgs struct {
	Phrase     string  `json:"phrase"`
	Covered    bool    `json:"covered"`
	Confidence float64 `json:"confidence"`
}

type coverageArgs struct {
	MustHave   []phraseVerdictArgs `json:"must_have"`
	GoodToHave []phraseVerdictArgs `json:"good_to_have"`
	RedFlags   []phraseVerdictArgs `json:"red_flags"`
}

func (m *OpenAIMatcher) Match(ctx context.Context, req *MatchRequest) (*MatchResult, error) {
	resp, err := m.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model: m.model,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleSystem,
					Content: "You are grading a technical interview answer against a rubric. For each rubric phrase decide whether the answer semantically covers it. For red flag phrases decide whether the answer asserts that misconception.",
				},
				{
					Role:    openai.ChatMessageRoleUser,
					Content: m.buildPrompt(req),
				},
			},
			Tools: []openai.Tool{
				{
					Type: openai.ToolTypeFunction,
					Function: &openai.FunctionDefinition{
						Name:        "report_coverage",
						Description: "Report a coverage verdict and confidence for every rubric phrase",
						Parameters: map[string]interface{}{
							"type": "object",
							"properties": map[string]interface{}{
								"must_have":    verdictArraySchema("Verdicts for the must-have phrases, in the given order"),
								"good_to_have": verdictArraySchema("Verdicts for the good-to-have phrases, in the given order"),
								"red_flags":    verdictArraySchema("Verdicts for the red flag phrases; covered means the answer asserts the misconception"),
							},
							"required": []string{"must_have"},
						},
					},
				},
			},
			ToolChoice: openai.ToolChoice{
				Type:     openai.ToolTypeFunction,
				Function: openai.ToolFunction{Name: "report_coverage"},
			},
		},
	)
	if err != nil {
		return nil, fmt.Errorf("coverage call failed: %w", err)
	}

	if len(resp.Choices) == 0 || len(resp.Choices[0].Message.ToolCalls) == 0 {
		return nil, fmt.Errorf("no tool call in model response")
	}
	toolCall := resp.Choices[0].Message.ToolCalls[0]
	if toolCall.Function.Name != "report_coverage" {
		return nil, fmt.Errorf("unexpected tool call: %s", toolCall.Function.Name)
	}

	var args coverageArgs
	if err := json.Unmarshal([]byte(toolCall.Function.Arguments), &args); err != nil {
		return nil, fmt.Errorf("failed to parse tool arguments: %w", err)
	}

	result := &MatchResult{
		MustHave:   alignVerdicts(req.MustHave, args.MustHave),
		GoodToHave: alignVerdicts(req.GoodToHave, args.GoodToHave),
		RedFlags:   alignVerdicts(req.RedFlags, args.RedFlags),
	}
	return result, nil
}

func verdictArraySchema(description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "array",
		"description": description,
		"items": map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"phrase":     map[string]interface{}{"type": "string"},
				"covered":    map[string]interface{}{"type": "boolean"},
				"confidence": map[string]interface{}{"type": "number", "description": "0.0 to 1.0"},
			},
			"required": []string{"phrase", "covered", "confidence"},
		},
	}
}

func (m *OpenAIMatcher) buildPrompt(req *MatchRequest) string {
	var sb strings.Builder
	sb.WriteString("Candidate answer:\n")
	sb.WriteString(req.AnswerText)
	sb.WriteString("\n\nMust-have phrases:\n")
	for _, p := range req.MustHave {
		sb.WriteString("- " + p + "\n")
	}
	if len(req.GoodToHave) > 0 {
		sb.WriteString("\nGood-to-have phrases:\n")
		for _, p := range req.GoodToHave {
			sb.WriteString("- " + p + "\n")
		}
	}
	if len(req.RedFlags) > 0 {
		sb.WriteString("\nRed flag phrases (misconceptions):\n")
		for _, p := range req.RedFlags {
			sb.WriteString("- " + p + "\n")
		}
	}
	sb.WriteString("\nJudge semantic coverage, not literal wording. A phrase is covered when the answer demonstrates the idea, even with different terms.")
	return sb.String()
}

// alignVerdicts maps the model's verdicts back onto the requested phrases by
// position, falling back to phrase-text lookup when the model reorders them.
// Missing phrases default to not covered with low confidence.
func alignVerdicts(phrases []string, got []phraseVerdictArgs) []PhraseVerdict {
	byPhrase := make(map[string]phraseVerdictArgs, len(got))
	for _, v := range got {
		byPhrase[strings.ToLower(strings.TrimSpace(v.Phrase))] = v
	}

	verdicts := make([]PhraseVerdict, 0, len(phrases))
	for i, phrase := range phrases {
		var v phraseVerdictArgs
		switch {
		case i < len(got) && strings.EqualFold(strings.TrimSpace(got[i].Phrase), strings.TrimSpace(phrase)):
			v = got[i]
		default:
			var ok bool
			v, ok = byPhrase[strings.ToLower(strings.TrimSpace(phrase))]
			if !ok {
				verdicts = append(verdicts, PhraseVerdict{Phrase: phrase, Covered: false, Confidence: 0.3})
				continue
			}
		}
		verdicts = append(verdicts, PhraseVerdict{
			Phrase:     phrase,
			Covered:    v.Covered,
			Confidence: clamp01(v.Confidence),
		})
	}
	return verdicts
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
