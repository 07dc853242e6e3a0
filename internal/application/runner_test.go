package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/modelmatch/modelmatch/internal/domain"
	"github.com/modelmatch/modelmatch/internal/ports"
)

// stubClient is a scriptable LLMClient. complete receives the prompt and a
// per-client call counter.
type stubClient struct {
	model    string
	mu       sync.Mutex
	calls    int
	complete func(call int, prompt string) (string, error)
}

func (s *stubClient) Complete(_ context.Context, prompt string, _ map[string]any) (string, error) {
	s.mu.Lock()
	s.calls++
	call := s.calls
	s.mu.Unlock()
	return s.complete(call, prompt)
}

func (s *stubClient) EstimateTokens(text string) (int, error) { return len(text) / 4, nil }
func (s *stubClient) GetModel() string                        { return s.model }

func (s *stubClient) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// stubSource resolves model ids from a fixed map.
type stubSource struct {
	clients map[string]ports.LLMClient
}

func (s *stubSource) ClientFor(modelID string) (ports.LLMClient, error) {
	client, ok := s.clients[modelID]
	if !ok {
		return nil, fmt.Errorf("model %q: %w", modelID, domain.ErrUnknownModel)
	}
	return client, nil
}

// stubEvaluator records what it was handed and returns a scripted result.
type stubEvaluator struct {
	got    []domain.PointResult
	result *domain.EvaluationResult
	err    error
}

func (s *stubEvaluator) Name() string { return "stub" }

func (s *stubEvaluator) Evaluate(_ context.Context, results []domain.PointResult, _ string) (*domain.EvaluationResult, error) {
	s.got = results
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func passthroughFactory(eval ports.Evaluator) EvaluatorFactory {
	return func(string, ports.LLMClient) (ports.Evaluator, error) { return eval, nil }
}

func echoClient(model string) *stubClient {
	return &stubClient{
		model: model,
		complete: func(_ int, prompt string) (string, error) {
			return model + ": " + prompt, nil
		},
	}
}

func TestRunnerRun_GenerationAndEvaluation(t *testing.T) {
	m1 := echoClient("m1")

	// m2 fails on its second call only.
	m2 := &stubClient{
		model: "m2",
		complete: func(call int, prompt string) (string, error) {
			if call == 2 {
				return "", errors.New("provider exploded")
			}
			return "m2: " + prompt, nil
		},
	}

	eval := &stubEvaluator{result: domain.NewEvaluationResult([]domain.DetailedScoreItem{
		{Index: 0, Scores: map[string]*int{"m1": domain.IntPtr(9), "m2": domain.IntPtr(7)}},
	})}

	runner := NewRunner(
		&stubSource{clients: map[string]ports.LLMClient{"m1": m1, "m2": m2}},
		passthroughFactory(eval),
		zap.NewNop(),
	)

	result, err := runner.Run(context.Background(), RunParams{
		PromptTemplate: "Q: {q}",
		DataPoints: []domain.DataPoint{
			map[string]any{"q": "first"},
			map[string]any{"q": "second"},
		},
		ModelIDs:   []string{"m1", "m2"},
		EvalMethod: "stub",
	})
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.NotEmpty(t, result.RunID)
	assert.Equal(t, []string{"m1", "m2"}, result.Parameters.ModelsCompared)
	assert.Nil(t, result.Parameters.ReasoningModelID)
	assert.Equal(t, 2, result.Parameters.NumDataPoints)

	require.Len(t, result.RawOutputs, 2)
	assert.Equal(t, "m1: Q: first", result.RawOutputs[0].Outputs["m1"])
	assert.Equal(t, "m2: Q: first", result.RawOutputs[0].Outputs["m2"])
	assert.Equal(t, "m1: Q: second", result.RawOutputs[1].Outputs["m1"])

	// m2's failure on the second point is encoded inline, not fatal.
	assert.True(t, domain.IsErrorMarker(result.RawOutputs[1].Outputs["m2"]))
	assert.Contains(t, result.RawOutputs[1].Outputs["m2"], "provider exploded")

	// The evaluator saw exactly the raw outputs.
	assert.Equal(t, result.RawOutputs, eval.got)
	require.NotNil(t, result.Evaluation)
	assert.Empty(t, result.Evaluation.Error)
	assert.Equal(t, map[string]float64{"m1": 9, "m2": 7}, result.Evaluation.AverageScores)
}

func TestRunnerRun_FormatFailureSkipsProviderCalls(t *testing.T) {
	m1 := echoClient("m1")
	eval := &stubEvaluator{result: domain.NewEvaluationResult(nil)}

	runner := NewRunner(
		&stubSource{clients: map[string]ports.LLMClient{"m1": m1}},
		passthroughFactory(eval),
		zap.NewNop(),
	)

	result, err := runner.Run(context.Background(), RunParams{
		PromptTemplate: "Q: {q}",
		DataPoints: []domain.DataPoint{
			map[string]any{"q": "fine"},
			map[string]any{"other": "missing the q field"},
		},
		ModelIDs:   []string{"m1"},
		EvalMethod: "stub",
	})
	require.NoError(t, err)

	require.Len(t, result.RawOutputs, 2)
	assert.Empty(t, result.RawOutputs[0].Error)
	assert.Contains(t, result.RawOutputs[1].Error, `missing key "q"`)
	assert.Empty(t, result.RawOutputs[1].Outputs)

	// Only the well-formed point reached the provider.
	assert.Equal(t, 1, m1.callCount())
}

func TestRunnerRun_ConcurrencyBoundAndPointOrdering(t *testing.T) {
	var mu sync.Mutex
	active, peak := 0, 0
	activeByPrompt := make(map[string]int)
	crossPoint := false

	trackedClient := func(model string) *stubClient {
		return &stubClient{
			model: model,
			complete: func(_ int, prompt string) (string, error) {
				mu.Lock()
				active++
				if active > peak {
					peak = active
				}
				activeByPrompt[prompt]++
				if len(activeByPrompt) > 1 {
					crossPoint = true
				}
				mu.Unlock()

				time.Sleep(2 * time.Millisecond)

				mu.Lock()
				active--
				activeByPrompt[prompt]--
				if activeByPrompt[prompt] == 0 {
					delete(activeByPrompt, prompt)
				}
				mu.Unlock()
				return model + ": " + prompt, nil
			},
		}
	}

	eval := &stubEvaluator{result: domain.NewEvaluationResult(nil)}
	runner := NewRunner(
		&stubSource{clients: map[string]ports.LLMClient{
			"m1": trackedClient("m1"),
			"m2": trackedClient("m2"),
			"m3": trackedClient("m3"),
		}},
		passthroughFactory(eval),
		zap.NewNop(),
	)

	result, err := runner.Run(context.Background(), RunParams{
		PromptTemplate: "p: {data}",
		DataPoints:     []domain.DataPoint{"first", "second"},
		ModelIDs:       []string{"m1", "m2", "m3"},
		EvalMethod:     "stub",
		MaxConcurrency: 1,
	})
	require.NoError(t, err)

	// Every point reached every model despite the serialized fan-out.
	require.Len(t, result.RawOutputs, 2)
	assert.Len(t, result.RawOutputs[0].Outputs, 3)
	assert.Len(t, result.RawOutputs[1].Outputs, 3)

	// The limit caps in-flight requests, and no request for a later point
	// starts before the previous point's requests have all finished.
	assert.Equal(t, 1, peak)
	assert.False(t, crossPoint)
}

// Cancellation during generation is fatal: the run must not score a result
// padded with cancellation markers.
func TestRunnerRun_CanceledGenerationIsFatal(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	m1 := &stubClient{
		model: "m1",
		complete: func(_ int, prompt string) (string, error) {
			cancel()
			return "m1: " + prompt, nil
		},
	}
	eval := &stubEvaluator{result: domain.NewEvaluationResult(nil)}
	runner := NewRunner(
		&stubSource{clients: map[string]ports.LLMClient{"m1": m1}},
		passthroughFactory(eval),
		zap.NewNop(),
	)

	result, err := runner.Run(ctx, RunParams{
		PromptTemplate: "p: {data}",
		DataPoints:     []domain.DataPoint{"one", "two", "three"},
		ModelIDs:       []string{"m1"},
		EvalMethod:     "stub",
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, result)

	// The cancel landed during point one; nothing later ran and nothing
	// reached the evaluator.
	assert.Equal(t, 1, m1.callCount())
	assert.Nil(t, eval.got)
}

func TestRunnerRun_UnknownModelIsFatal(t *testing.T) {
	runner := NewRunner(
		&stubSource{clients: map[string]ports.LLMClient{"m1": echoClient("m1")}},
		passthroughFactory(&stubEvaluator{}),
		zap.NewNop(),
	)

	result, err := runner.Run(context.Background(), RunParams{
		PromptTemplate: "p",
		DataPoints:     []domain.DataPoint{"x"},
		ModelIDs:       []string{"m1", "nope"},
		EvalMethod:     "stub",
	})
	assert.Nil(t, result)

	var cfgErr *domain.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.ErrorIs(t, err, domain.ErrUnknownModel)
}

func TestRunnerRun_EvaluatorConstructionIsFatal(t *testing.T) {
	boom := domain.NewConfigError("evaluator factory", domain.ErrUnknownEvaluator)
	m1 := echoClient("m1")
	runner := NewRunner(
		&stubSource{clients: map[string]ports.LLMClient{"m1": m1}},
		func(string, ports.LLMClient) (ports.Evaluator, error) { return nil, boom },
		zap.NewNop(),
	)

	result, err := runner.Run(context.Background(), RunParams{
		PromptTemplate: "p",
		DataPoints:     []domain.DataPoint{"x"},
		ModelIDs:       []string{"m1"},
		EvalMethod:     "bogus",
	})
	assert.Nil(t, result)
	assert.ErrorIs(t, err, domain.ErrUnknownEvaluator)

	// Construction failures must precede generation.
	assert.Equal(t, 0, m1.callCount())
}

func TestRunnerRun_InterruptedEvaluationReturnsPartialResult(t *testing.T) {
	eval := &stubEvaluator{err: domain.ErrEvaluationInterrupted}
	runner := NewRunner(
		&stubSource{clients: map[string]ports.LLMClient{"m1": echoClient("m1")}},
		passthroughFactory(eval),
		zap.NewNop(),
	)

	result, err := runner.Run(context.Background(), RunParams{
		PromptTemplate: "p: {data}",
		DataPoints:     []domain.DataPoint{"one", "two"},
		ModelIDs:       []string{"m1"},
		EvalMethod:     "stub",
	})
	require.ErrorIs(t, err, domain.ErrEvaluationInterrupted)

	// Raw outputs survive the interrupt.
	require.NotNil(t, result)
	assert.Len(t, result.RawOutputs, 2)
	require.NotNil(t, result.Evaluation)
	assert.Equal(t, "Evaluation interrupted by user", result.Evaluation.Error)
}

func TestRunnerRun_EvaluationFailureRecordedInResult(t *testing.T) {
	eval := &stubEvaluator{err: errors.New("judge caught fire")}
	runner := NewRunner(
		&stubSource{clients: map[string]ports.LLMClient{"m1": echoClient("m1")}},
		passthroughFactory(eval),
		zap.NewNop(),
	)

	result, err := runner.Run(context.Background(), RunParams{
		PromptTemplate: "p: {data}",
		DataPoints:     []domain.DataPoint{"one"},
		ModelIDs:       []string{"m1"},
		EvalMethod:     "stub",
	})
	require.NoError(t, err)
	require.NotNil(t, result.Evaluation)
	assert.Equal(t, "judge caught fire", result.Evaluation.Error)
	assert.Len(t, result.RawOutputs, 1)
}

func TestRunnerRun_JudgeModelResolved(t *testing.T) {
	var gotJudge ports.LLMClient
	judge := echoClient("judge")

	runner := NewRunner(
		&stubSource{clients: map[string]ports.LLMClient{
			"m1":    echoClient("m1"),
			"judge": judge,
		}},
		func(_ string, j ports.LLMClient) (ports.Evaluator, error) {
			gotJudge = j
			return &stubEvaluator{result: domain.NewEvaluationResult(nil)}, nil
		},
		zap.NewNop(),
	)

	result, err := runner.Run(context.Background(), RunParams{
		PromptTemplate: "p: {data}",
		DataPoints:     []domain.DataPoint{"one"},
		ModelIDs:       []string{"m1"},
		EvalMethod:     "reasoning",
		JudgeModelID:   "judge",
	})
	require.NoError(t, err)
	assert.Same(t, judge, gotJudge)
	require.NotNil(t, result.Parameters.ReasoningModelID)
	assert.Equal(t, "judge", *result.Parameters.ReasoningModelID)
}
