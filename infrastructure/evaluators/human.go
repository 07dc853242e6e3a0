package evaluators

import (
	"context"
	"errors"
	"math/rand"
	"sort"

	"go.uber.org/zap"

	"github.com/modelmatch/modelmatch/internal/domain"
	"github.com/modelmatch/modelmatch/internal/ports"
)

// MethodHuman is the factory tag for the interactive strategy.
const MethodHuman = "human"

var _ ports.Evaluator = (*HumanEvaluator)(nil)

// HumanEvaluator collects scores interactively. For every data point the
// valid outputs are presented in a freshly shuffled order with no model
// attribution, so the rater cannot develop a per-model bias across points.
type HumanEvaluator struct {
	prompter ports.ScorePrompter
	window   domain.ScoreWindow
	rng      *rand.Rand
	logger   *zap.Logger
}

// HumanConfig configures the interactive strategy.
type HumanConfig struct {
	// Window bounds accepted scores. Zero value selects the default 1-10
	// window with 0 as the skip sentinel.
	Window domain.ScoreWindow

	// Seed fixes the presentation shuffle when non-zero. Zero seeds from
	// entropy; tests pass a fixed seed to script the order.
	Seed int64
}

// NewHumanEvaluator builds the interactive strategy around a prompter.
func NewHumanEvaluator(prompter ports.ScorePrompter, config HumanConfig, logger *zap.Logger) (*HumanEvaluator, error) {
	if prompter == nil {
		return nil, domain.NewConfigError("human evaluator", errors.New("score prompter is required"))
	}

	window := config.Window
	if window == (domain.ScoreWindow{}) {
		window = domain.DefaultScoreWindow
	}
	if err := window.Validate(); err != nil {
		return nil, domain.NewConfigError("human evaluator", err)
	}

	var rng *rand.Rand
	if config.Seed != 0 {
		rng = rand.New(rand.NewSource(config.Seed))
	} else {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}

	return &HumanEvaluator{
		prompter: prompter,
		window:   window,
		rng:      rng,
		logger:   logger,
	}, nil
}

// Name returns the method tag for this strategy.
func (e *HumanEvaluator) Name() string { return MethodHuman }

// Evaluate walks every data point, prompting for a score per valid output.
// A skip sentinel records the output as unscored and the walk continues; an
// interrupt from the prompter aborts the whole evaluation, which the caller
// reports as a partial run.
func (e *HumanEvaluator) Evaluate(ctx context.Context, results []domain.PointResult, promptTemplate string) (*domain.EvaluationResult, error) {
	e.logger.Info("starting interactive evaluation",
		zap.Int("data_points", len(results)),
		zap.String("score_window", e.window.String()))

	detailed := make([]domain.DetailedScoreItem, 0, len(results))

	for _, result := range results {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		item, err := e.evaluatePoint(result, promptTemplate, len(results))
		if err != nil {
			return nil, err
		}
		detailed = append(detailed, item)
	}

	return domain.NewEvaluationResult(detailed), nil
}

// evaluatePoint scores one data point's outputs in shuffled order.
func (e *HumanEvaluator) evaluatePoint(result domain.PointResult, promptTemplate string, total int) (domain.DetailedScoreItem, error) {
	item := domain.DetailedScoreItem{
		Index:  result.Index,
		Data:   result.Data,
		Scores: make(map[string]*int),
	}

	valid := result.ValidOutputs()
	if len(valid) == 0 {
		e.logger.Warn("no valid outputs to score",
			zap.Int("data_point_index", result.Index))
		return item, nil
	}

	prompt, err := domain.FormatPrompt(promptTemplate, result.Data)
	if err != nil {
		e.logger.Error("failed to reconstruct prompt for scoring, skipping point",
			zap.Int("data_point_index", result.Index), zap.Error(err))
		return item, nil
	}

	e.prompter.ShowPoint(result.Index, total, prompt, result.Data)

	// Shuffle from a sorted base so the permutation depends only on the
	// seed, not on map iteration order.
	order := sortedModelIDs(valid)
	e.rng.Shuffle(len(order), func(i, j int) {
		order[i], order[j] = order[j], order[i]
	})

	for displayIdx, modelID := range order {
		score, skipped, err := e.prompter.PromptScore(valid[modelID], displayIdx+1, len(order), e.window)
		if err != nil {
			return item, err
		}
		if skipped {
			item.Scores[modelID] = nil
			continue
		}
		item.Scores[modelID] = &score
	}

	return item, nil
}

// sortedModelIDs returns the map's keys in ascending order.
func sortedModelIDs(outputs map[string]string) []string {
	ids := make([]string, 0, len(outputs))
	for id := range outputs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
