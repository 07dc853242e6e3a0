// Package evaluators implements the evaluation strategies of the comparison
// pipeline: interactive human scoring and LLM-judge ("reasoning") scoring.
// Strategies are selected through a factory keyed on a method tag; the
// variant set is closed and the orchestrator never special-cases a strategy.
package evaluators

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"text/template"

	"go.uber.org/zap"

	"github.com/modelmatch/modelmatch/internal/domain"
	"github.com/modelmatch/modelmatch/internal/ports"
)

// MethodReasoning is the factory tag for the LLM-judge strategy.
const MethodReasoning = "reasoning"

// judgeFormatExample is the fixed JSON schema the judge must follow.
// It is embedded verbatim into every judge prompt.
const judgeFormatExample = `{
  "scores": {
    "Output A": { "score": <score_A>, "reasoning": "<brief_reasoning_A>" },
    "Output B": { "score": <score_B>, "reasoning": "<brief_reasoning_B>" }
  }
}`

// Default request settings for judge calls. Temperature stays at zero so
// repeated runs score consistently.
const (
	defaultJudgeTemperature = 0.0
	defaultJudgeMaxTokens   = 1024
)

var _ ports.Evaluator = (*ReasoningEvaluator)(nil)

// ReasoningConfig configures the LLM-judge strategy.
type ReasoningConfig struct {
	// PromptPath locates the judging-prompt template file. The file is a
	// required asset: a missing or empty file fails evaluator construction.
	PromptPath string `validate:"required"`

	// Window bounds accepted judge scores. Zero value selects the default
	// 1-10 window.
	Window domain.ScoreWindow

	// MaxTokens bounds the judge's response length.
	MaxTokens int
}

// judgePromptData is the substitution payload for the judging template.
type judgePromptData struct {
	OriginalPrompt string
	DataPoint      string
	OutputsSection string
	FormatExample  string
}

// ReasoningEvaluator scores model outputs by asking a designated judge
// model to rate all of a data point's outputs in a single call. Outputs are
// shown to the judge under anonymized temporary labels so model identity
// cannot bias the scores; labels map back to real model ids after parsing.
type ReasoningEvaluator struct {
	judge     ports.LLMClient
	template  *template.Template
	window    domain.ScoreWindow
	maxTokens int
	logger    *zap.Logger
}

// NewReasoningEvaluator builds the judge strategy. The judge client and a
// readable, non-empty prompt template are hard requirements; failing either
// terminates the run before any generation work is attempted.
func NewReasoningEvaluator(judge ports.LLMClient, config ReasoningConfig, logger *zap.Logger) (*ReasoningEvaluator, error) {
	if judge == nil {
		return nil, domain.NewConfigError("reasoning evaluator", fmt.Errorf("judge model client is required"))
	}

	raw, err := os.ReadFile(config.PromptPath)
	if err != nil {
		return nil, domain.NewConfigError("reasoning evaluator",
			fmt.Errorf("failed to load judging prompt %s: %w", config.PromptPath, err))
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, domain.NewConfigError("reasoning evaluator",
			fmt.Errorf("judging prompt %s is empty", config.PromptPath))
	}

	tmpl, err := template.New("judgePrompt").Parse(string(raw))
	if err != nil {
		return nil, domain.NewConfigError("reasoning evaluator",
			fmt.Errorf("failed to parse judging prompt %s: %w", config.PromptPath, err))
	}

	window := config.Window
	if window == (domain.ScoreWindow{}) {
		window = domain.DefaultScoreWindow
	}
	if err := window.Validate(); err != nil {
		return nil, domain.NewConfigError("reasoning evaluator", err)
	}

	maxTokens := config.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultJudgeMaxTokens
	}

	return &ReasoningEvaluator{
		judge:     judge,
		template:  tmpl,
		window:    window,
		maxTokens: maxTokens,
		logger:    logger,
	}, nil
}

// Name returns the method tag for this strategy.
func (e *ReasoningEvaluator) Name() string { return MethodReasoning }

// Evaluate scores every point's valid outputs through the judge model.
// Per-point failures (judge call errors, unparseable responses) null that
// point's scores with an explanatory reasoning string and the run
// continues; only context cancellation stops the loop.
func (e *ReasoningEvaluator) Evaluate(ctx context.Context, results []domain.PointResult, promptTemplate string) (*domain.EvaluationResult, error) {
	e.logger.Info("starting reasoning evaluation",
		zap.String("judge_model", e.judge.GetModel()),
		zap.Int("data_points", len(results)))

	detailed := make([]domain.DetailedScoreItem, 0, len(results))

	for _, result := range results {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		detailed = append(detailed, e.evaluatePoint(ctx, result, promptTemplate))
	}

	res := domain.NewEvaluationResult(detailed)
	e.logger.Info("reasoning evaluation complete",
		zap.Any("average_scores", res.AverageScores))
	return res, nil
}

// evaluatePoint judges a single data point's outputs.
func (e *ReasoningEvaluator) evaluatePoint(ctx context.Context, result domain.PointResult, promptTemplate string) domain.DetailedScoreItem {
	item := domain.DetailedScoreItem{
		Index:     result.Index,
		Data:      result.Data,
		Scores:    make(map[string]*int),
		Reasoning: make(map[string]string),
	}

	valid := result.ValidOutputs()
	if len(valid) == 0 {
		e.logger.Warn("no valid outputs to judge",
			zap.Int("data_point_index", result.Index))
		return item
	}

	// Anonymize outputs under temporary labels. Label order follows sorted
	// model ids: deterministic across runs, unlike map iteration. The human
	// path randomizes instead; see the factory docs for the tradeoff.
	labels, labelToModel := assignLabels(valid)

	formattedPrompt, err := domain.FormatPrompt(promptTemplate, result.Data)
	if err != nil {
		e.logger.Error("failed to reconstruct prompt for judging, skipping point",
			zap.Int("data_point_index", result.Index), zap.Error(err))
		return item
	}

	judgePrompt, err := e.buildJudgePrompt(formattedPrompt, result.Data, labels, labelToModel, valid)
	if err != nil {
		e.nullAllScores(&item, valid, fmt.Sprintf("ERROR: failed to build judge prompt - %v", err))
		return item
	}

	response, err := e.judge.Complete(ctx, judgePrompt, map[string]any{
		"temperature": defaultJudgeTemperature,
		"max_tokens":  e.maxTokens,
	})
	if err != nil {
		e.logger.Error("judge call failed, nulling scores for point",
			zap.Int("data_point_index", result.Index), zap.Error(err))
		e.nullAllScores(&item, valid, fmt.Sprintf("ERROR: judge call failed - %v", err))
		return item
	}

	parsed := e.parseJudgeResponse(response, labels)

	for _, label := range labels {
		modelID := labelToModel[label]
		entry := parsed[label]
		item.Scores[modelID] = entry.score
		if entry.reasoning != "" {
			item.Reasoning[modelID] = entry.reasoning
		}
	}

	return item
}

// assignLabels maps valid outputs to "Output A", "Output B", … in sorted
// model-id order. Returns the ordered labels and the label-to-model lookup.
func assignLabels(valid map[string]string) ([]string, map[string]string) {
	modelIDs := make([]string, 0, len(valid))
	for modelID := range valid {
		modelIDs = append(modelIDs, modelID)
	}
	sort.Strings(modelIDs)

	labels := make([]string, len(modelIDs))
	labelToModel := make(map[string]string, len(modelIDs))
	for i, modelID := range modelIDs {
		label := fmt.Sprintf("Output %c", rune('A'+i))
		labels[i] = label
		labelToModel[label] = modelID
	}
	return labels, labelToModel
}

// buildJudgePrompt renders the judging template with the original prompt,
// the data point, the labeled outputs section, and the schema example.
func (e *ReasoningEvaluator) buildJudgePrompt(
	originalPrompt string,
	data domain.DataPoint,
	labels []string,
	labelToModel map[string]string,
	valid map[string]string,
) (string, error) {
	var outputs strings.Builder
	for _, label := range labels {
		fmt.Fprintf(&outputs, "--- %s ---\n%s\n\n", label, valid[labelToModel[label]])
	}

	var buf bytes.Buffer
	err := e.template.Execute(&buf, judgePromptData{
		OriginalPrompt: originalPrompt,
		DataPoint:      domain.Stringify(data),
		OutputsSection: strings.TrimSpace(outputs.String()),
		FormatExample:  judgeFormatExample,
	})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}

// nullAllScores marks every valid output's model as unscored with the given
// reasoning text.
func (e *ReasoningEvaluator) nullAllScores(item *domain.DetailedScoreItem, valid map[string]string, reason string) {
	for modelID := range valid {
		item.Scores[modelID] = nil
		item.Reasoning[modelID] = reason
	}
}

// labelScore is one parsed judge verdict for a temporary label.
type labelScore struct {
	score     *int
	reasoning string
}

// judgeResponse is the expected JSON shape of a judge reply. Entries are
// kept raw because judges take liberties with the schema.
type judgeResponse struct {
	Scores map[string]json.RawMessage `json:"scores"`
}

// judgeScoreEntry is the canonical per-label entry. Score stays untyped so
// ints, floats, and numeric strings all coerce.
type judgeScoreEntry struct {
	Score     any    `json:"score"`
	Reasoning string `json:"reasoning"`
}

// parseJudgeResponse defensively parses the judge's raw reply. Every label
// starts as unscored; a failure to locate or decode the JSON object leaves
// all labels at (nil, parse-failure note) without raising.
func (e *ReasoningEvaluator) parseJudgeResponse(response string, labels []string) map[string]labelScore {
	parsed := make(map[string]labelScore, len(labels))
	for _, label := range labels {
		parsed[label] = labelScore{}
	}

	jsonStr := extractJSON(response)
	if jsonStr == "" {
		e.logger.Error("no JSON object found in judge response",
			zap.Int("response_length", len(response)))
		return e.markParseFailure(parsed, "ERROR: no JSON object found in judge response")
	}

	var decoded judgeResponse
	if err := json.Unmarshal([]byte(jsonStr), &decoded); err != nil {
		e.logger.Error("failed to decode judge response JSON", zap.Error(err))
		return e.markParseFailure(parsed, fmt.Sprintf("ERROR: judge response JSON invalid - %v", err))
	}
	if decoded.Scores == nil {
		e.logger.Warn("judge response JSON missing scores mapping")
		return e.markParseFailure(parsed, "ERROR: judge response missing scores mapping")
	}

	for _, label := range labels {
		raw, ok := decoded.Scores[label]
		if !ok {
			e.logger.Warn("label absent from judge scores", zap.String("label", label))
			continue
		}
		parsed[label] = e.parseScoreEntry(label, raw)
	}

	return parsed
}

// markParseFailure stamps a parse-failure reasoning onto every label.
func (e *ReasoningEvaluator) markParseFailure(parsed map[string]labelScore, reason string) map[string]labelScore {
	for label := range parsed {
		parsed[label] = labelScore{reasoning: reason}
	}
	return parsed
}

// parseScoreEntry decodes one label's entry, accepting either the canonical
// object shape or a bare number. A null or absent score never discards the
// reasoning text: the judge's explanation of why it could not score is
// exactly what the detail view needs.
func (e *ReasoningEvaluator) parseScoreEntry(label string, raw json.RawMessage) labelScore {
	var entry judgeScoreEntry
	if err := json.Unmarshal(raw, &entry); err == nil && (entry.Score != nil || entry.Reasoning != "") {
		parsed := labelScore{reasoning: entry.Reasoning}
		if entry.Score != nil {
			parsed.score = e.coerceScore(label, entry.Score)
		} else {
			e.logger.Warn("judge entry has no score", zap.String("label", label))
		}
		return parsed
	}

	// Some judges answer {"Output A": 7} despite the schema example.
	var bare float64
	if err := json.Unmarshal(raw, &bare); err == nil {
		return labelScore{score: e.coerceScore(label, bare), reasoning: "N/A"}
	}

	e.logger.Warn("unexpected score entry shape", zap.String("label", label))
	return labelScore{}
}

// coerceScore converts a raw score value into a validated integer score.
// Ints, floats, and numeric strings are accepted; anything else, and any
// value outside the score window, becomes nil with a logged warning.
func (e *ReasoningEvaluator) coerceScore(label string, raw any) *int {
	var score int
	switch v := raw.(type) {
	case float64:
		score = int(v)
	case int:
		score = v
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			e.logger.Warn("non-numeric score string from judge",
				zap.String("label", label), zap.String("value", v))
			return nil
		}
		score = int(parsed)
	default:
		e.logger.Warn("invalid score type from judge",
			zap.String("label", label), zap.Any("value", raw))
		return nil
	}

	if !e.window.Contains(score) {
		e.logger.Warn("judge score outside accepted window, discarding",
			zap.String("label", label),
			zap.Int("score", score),
			zap.String("window", e.window.String()))
		return nil
	}

	return &score
}
