package evaluators

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/modelmatch/modelmatch/internal/domain"
	"github.com/modelmatch/modelmatch/internal/ports"
)

// scriptedPrompter answers PromptScore from a function keyed on the output
// text, and records everything it was shown.
type scriptedPrompter struct {
	answer     func(output string) (int, bool, error)
	shown      []string
	seenPoints int
}

func (p *scriptedPrompter) ShowPoint(_, _ int, _ string, _ domain.DataPoint) {
	p.seenPoints++
}

func (p *scriptedPrompter) PromptScore(output string, _, _ int, _ domain.ScoreWindow) (int, bool, error) {
	p.shown = append(p.shown, output)
	return p.answer(output)
}

var _ ports.ScorePrompter = (*scriptedPrompter)(nil)

func newTestHumanEvaluator(t *testing.T, prompter ports.ScorePrompter, seed int64) *HumanEvaluator {
	t.Helper()
	eval, err := NewHumanEvaluator(prompter, HumanConfig{Seed: seed}, zap.NewNop())
	require.NoError(t, err)
	return eval
}

func TestNewHumanEvaluator_Validation(t *testing.T) {
	_, err := NewHumanEvaluator(nil, HumanConfig{}, zap.NewNop())
	var cfgErr *domain.ConfigError
	require.ErrorAs(t, err, &cfgErr)

	_, err = NewHumanEvaluator(&scriptedPrompter{}, HumanConfig{
		Window: domain.ScoreWindow{Min: 1, Max: 10, Skip: 5},
	}, zap.NewNop())
	require.Error(t, err)
}

func TestHumanEvaluate_ScoresFollowTheModelNotThePosition(t *testing.T) {
	// Scores keyed on output text, so the assertion holds for any shuffle.
	prompter := &scriptedPrompter{answer: func(output string) (int, bool, error) {
		switch output {
		case "out-a":
			return 9, false, nil
		case "out-b":
			return 3, false, nil
		default:
			return 5, false, nil
		}
	}}
	eval := newTestHumanEvaluator(t, prompter, 42)

	res, err := eval.Evaluate(context.Background(), []domain.PointResult{
		{Index: 0, Data: map[string]any{"q": "x"}, Outputs: map[string]string{
			"model-a": "out-a",
			"model-b": "out-b",
		}},
	}, "Q: {q}")
	require.NoError(t, err)

	require.Len(t, res.DetailedScores, 1)
	item := res.DetailedScores[0]
	require.NotNil(t, item.Scores["model-a"])
	require.NotNil(t, item.Scores["model-b"])
	assert.Equal(t, 9, *item.Scores["model-a"])
	assert.Equal(t, 3, *item.Scores["model-b"])
	assert.Equal(t, 1, prompter.seenPoints)
	assert.ElementsMatch(t, []string{"out-a", "out-b"}, prompter.shown)
}

func TestHumanEvaluate_SkipRecordsNilScore(t *testing.T) {
	prompter := &scriptedPrompter{answer: func(output string) (int, bool, error) {
		if output == "skip-me" {
			return 0, true, nil
		}
		return 7, false, nil
	}}
	eval := newTestHumanEvaluator(t, prompter, 1)

	res, err := eval.Evaluate(context.Background(), []domain.PointResult{
		{Index: 0, Data: "x", Outputs: map[string]string{
			"kept":    "score-me",
			"skipped": "skip-me",
		}},
	}, "p: {data}")
	require.NoError(t, err)

	item := res.DetailedScores[0]
	require.NotNil(t, item.Scores["kept"])
	assert.Equal(t, 7, *item.Scores["kept"])

	score, present := item.Scores["skipped"]
	assert.True(t, present)
	assert.Nil(t, score)

	// Skipped outputs contribute nothing to averages.
	assert.Equal(t, map[string]float64{"kept": 7}, res.AverageScores)
}

func TestHumanEvaluate_InterruptAbortsEvaluation(t *testing.T) {
	calls := 0
	prompter := &scriptedPrompter{answer: func(string) (int, bool, error) {
		calls++
		if calls >= 2 {
			return 0, false, domain.ErrEvaluationInterrupted
		}
		return 8, false, nil
	}}
	eval := newTestHumanEvaluator(t, prompter, 1)

	_, err := eval.Evaluate(context.Background(), []domain.PointResult{
		{Index: 0, Data: "x", Outputs: map[string]string{"m1": "a", "m2": "b"}},
		{Index: 1, Data: "y", Outputs: map[string]string{"m1": "c", "m2": "d"}},
	}, "p: {data}")
	require.ErrorIs(t, err, domain.ErrEvaluationInterrupted)
	assert.Equal(t, 2, calls)
}

func TestHumanEvaluate_ErrorMarkersNeverShown(t *testing.T) {
	prompter := &scriptedPrompter{answer: func(string) (int, bool, error) {
		return 6, false, nil
	}}
	eval := newTestHumanEvaluator(t, prompter, 1)

	res, err := eval.Evaluate(context.Background(), []domain.PointResult{
		{Index: 0, Data: "x", Outputs: map[string]string{
			"ok":     "real output",
			"broken": "ERROR: provider exploded",
		}},
	}, "p: {data}")
	require.NoError(t, err)

	assert.Equal(t, []string{"real output"}, prompter.shown)
	_, scored := res.DetailedScores[0].Scores["broken"]
	assert.False(t, scored)
}

func TestHumanEvaluate_ShuffleIsSeedDeterministic(t *testing.T) {
	outputs := map[string]string{"a": "o1", "b": "o2", "c": "o3"}
	presentationOrder := func(seed int64) []string {
		prompter := &scriptedPrompter{answer: func(string) (int, bool, error) {
			return 5, false, nil
		}}
		eval := newTestHumanEvaluator(t, prompter, seed)
		_, err := eval.Evaluate(context.Background(), []domain.PointResult{
			{Index: 0, Data: "x", Outputs: outputs},
		}, "p: {data}")
		require.NoError(t, err)
		return prompter.shown
	}

	assert.Equal(t, presentationOrder(7), presentationOrder(7))
}

func TestHumanEvaluate_PointWithNoValidOutputs(t *testing.T) {
	prompter := &scriptedPrompter{answer: func(string) (int, bool, error) {
		t.Fatal("prompter must not be called")
		return 0, false, nil
	}}
	eval := newTestHumanEvaluator(t, prompter, 1)

	res, err := eval.Evaluate(context.Background(), []domain.PointResult{
		{Index: 0, Data: "x", Outputs: map[string]string{}},
	}, "p: {data}")
	require.NoError(t, err)
	assert.Empty(t, res.DetailedScores[0].Scores)
	assert.Equal(t, 0, prompter.seenPoints)
}
