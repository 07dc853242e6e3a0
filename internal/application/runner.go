package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/modelmatch/modelmatch/internal/domain"
	"github.com/modelmatch/modelmatch/internal/ports"
)

// ModelSource resolves model ids to ready clients. The model catalog
// implements it; tests inject a stub.
type ModelSource interface {
	ClientFor(modelID string) (ports.LLMClient, error)
}

// EvaluatorFactory builds the evaluation strategy for a method tag. The
// judge client is non-nil only when the method needs one; construction
// failures are fatal for the run.
type EvaluatorFactory func(method string, judge ports.LLMClient) (ports.Evaluator, error)

// RunParams are the caller-facing parameters of one comparison run.
type RunParams struct {
	PromptTemplate string
	DataPoints     []domain.DataPoint

	// ModelIDs are the catalog ids of the models under comparison.
	ModelIDs []string

	// EvalMethod selects the evaluation strategy.
	EvalMethod string

	// JudgeModelID names the judge for the reasoning method; empty otherwise.
	JudgeModelID string

	// MaxConcurrency bounds the per-point generation fan-out. Zero or
	// negative means one slot per model, so every model runs concurrently.
	MaxConcurrency int
}

// Runner executes comparison runs end to end: generation across all
// requested models per data point, then evaluation, then result assembly.
type Runner struct {
	models       ModelSource
	newEvaluator EvaluatorFactory
	logger       *zap.Logger
}

// NewRunner builds a Runner.
func NewRunner(models ModelSource, newEvaluator EvaluatorFactory, logger *zap.Logger) *Runner {
	return &Runner{models: models, newEvaluator: newEvaluator, logger: logger}
}

// Run executes one comparison run.
//
// Setup failures (unknown model, unbuildable client, unknown evaluation
// method, missing judge assets) abort before any provider call and return a
// nil result. Once generation has started, per-model and per-point failures
// are recorded inline and never abort the run. An interrupted interactive
// evaluation returns the partial result alongside
// domain.ErrEvaluationInterrupted; any other evaluation-phase failure is
// recorded in the result's evaluation section and Run returns it with a nil
// error.
func (r *Runner) Run(ctx context.Context, params RunParams) (*domain.RunResult, error) {
	clients, err := r.buildClients(params.ModelIDs)
	if err != nil {
		return nil, err
	}

	var judge ports.LLMClient
	if params.JudgeModelID != "" {
		judge, err = r.models.ClientFor(params.JudgeModelID)
		if err != nil {
			return nil, domain.NewConfigError("judge model", err)
		}
	}

	evaluator, err := r.newEvaluator(params.EvalMethod, judge)
	if err != nil {
		return nil, err
	}

	r.logger.Info("starting comparison run",
		zap.Strings("models", params.ModelIDs),
		zap.String("eval_method", params.EvalMethod),
		zap.Int("data_points", len(params.DataPoints)))

	start := time.Now()
	rawOutputs, err := r.generate(ctx, params, clients)
	if err != nil {
		r.logger.Warn("generation phase canceled", zap.Error(err))
		return nil, err
	}
	r.logger.Info("generation phase complete",
		zap.Duration("elapsed", time.Since(start)))

	result := &domain.RunResult{
		RunID: uuid.NewString(),
		Parameters: domain.RunParameters{
			PromptTemplate:   params.PromptTemplate,
			ModelsCompared:   params.ModelIDs,
			EvaluationMethod: params.EvalMethod,
			ReasoningModelID: judgeModelRef(params),
			NumDataPoints:    len(params.DataPoints),
		},
		RawOutputs: rawOutputs,
	}

	evalStart := time.Now()
	evalResult, err := evaluator.Evaluate(ctx, rawOutputs, params.PromptTemplate)
	switch {
	case errors.Is(err, domain.ErrEvaluationInterrupted):
		r.logger.Warn("evaluation interrupted, finalizing partial result")
		result.Evaluation = domain.OutcomeFromError("Evaluation interrupted by user")
		return result, err
	case err != nil:
		r.logger.Error("evaluation phase failed", zap.Error(err))
		result.Evaluation = domain.OutcomeFromError(err.Error())
		return result, nil
	}

	result.Evaluation = domain.OutcomeFromResult(evalResult)
	r.logger.Info("evaluation phase complete",
		zap.Duration("elapsed", time.Since(evalStart)))
	return result, nil
}

// buildClients resolves every requested model up front so a broken
// configuration fails before the first provider call.
func (r *Runner) buildClients(modelIDs []string) (map[string]ports.LLMClient, error) {
	if len(modelIDs) == 0 {
		return nil, domain.NewConfigError("models", fmt.Errorf("no models requested"))
	}

	clients := make(map[string]ports.LLMClient, len(modelIDs))
	for _, modelID := range modelIDs {
		if _, dup := clients[modelID]; dup {
			return nil, domain.NewConfigError("models", fmt.Errorf("model %q requested twice", modelID))
		}
		client, err := r.models.ClientFor(modelID)
		if err != nil {
			return nil, domain.NewConfigError("models", err)
		}
		clients[modelID] = client
	}
	return clients, nil
}

// generate runs the generation phase: data points sequentially, models
// concurrently within each point. Provider failures become error-marker
// outputs; a prompt-formatting failure records the point with no outputs
// and costs no provider calls. Context cancellation between points is
// fatal: a half-canceled run would otherwise fill the remaining points
// with marker noise and score it.
func (r *Runner) generate(ctx context.Context, params RunParams, clients map[string]ports.LLMClient) ([]domain.PointResult, error) {
	limit := params.MaxConcurrency
	if limit <= 0 {
		limit = len(clients)
	}

	results := make([]domain.PointResult, 0, len(params.DataPoints))

	for i, dp := range params.DataPoints {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		result := domain.PointResult{
			Index:   i,
			Data:    dp,
			Outputs: make(map[string]string, len(clients)),
		}

		prompt, err := domain.FormatPrompt(params.PromptTemplate, dp)
		if err != nil {
			r.logger.Error("prompt formatting failed, skipping data point",
				zap.Int("data_point_index", i), zap.Error(err))
			result.Error = err.Error()
			results = append(results, result)
			continue
		}

		var mu sync.Mutex
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(limit)

		for modelID, client := range clients {
			g.Go(func() error {
				output, err := client.Complete(gctx, prompt, nil)
				if err != nil {
					r.logger.Warn("generation failed",
						zap.String("model_id", modelID),
						zap.Int("data_point_index", i),
						zap.Error(err))
					output = domain.ErrorMarker(err)
				}

				mu.Lock()
				result.Outputs[modelID] = output
				mu.Unlock()
				return nil
			})
		}

		// Tasks never return an error; failures are encoded as markers.
		_ = g.Wait()

		results = append(results, result)
		r.logger.Debug("data point generated",
			zap.Int("data_point_index", i),
			zap.Int("outputs", len(result.Outputs)))
	}

	return results, nil
}

// judgeModelRef returns the judge model id as a pointer, nil when the run
// has no judge.
func judgeModelRef(params RunParams) *string {
	if params.JudgeModelID == "" {
		return nil
	}
	id := params.JudgeModelID
	return &id
}
