// Package ports defines the interfaces between the comparison pipeline and
// its infrastructure: LLM providers, evaluation strategies, interactive
// scoring surfaces, and metrics sinks. Implementations live under
// infrastructure/; the application layer depends only on these contracts.
package ports

import (
	"context"
	"time"

	"github.com/modelmatch/modelmatch/internal/domain"
)

// LLMClient is the capability contract for a model backend.
// Implementations handle provider-specific authentication, request
// formatting, and response parsing. Complete must be safe for concurrent
// invocation: the generation orchestrator fans out calls to a single client
// instance from multiple goroutines without locking.
type LLMClient interface {
	// Complete sends a prompt to the provider and returns the generated
	// text. Failures surface as provider errors (auth, rate limit,
	// transport); the orchestrator treats them all identically.
	//
	// The options map carries provider-specific settings. Common keys:
	//   - "temperature": float64
	//   - "max_tokens": int
	//   - "model": string (overrides the configured model)
	Complete(ctx context.Context, prompt string, options map[string]any) (string, error)

	// EstimateTokens returns an approximate token count for the given text,
	// used for logging and cost estimation.
	EstimateTokens(text string) (int, error)

	// GetModel returns the model identifier this client is bound to.
	GetModel() string
}

// Evaluator is one evaluation strategy over a run's raw outputs.
// The variant set is closed (human, reasoning); strategies are selected by
// a factory keyed on the method tag, so adding a strategy means adding a
// registry entry, not touching the orchestrator.
type Evaluator interface {
	// Name returns the method tag this strategy registers under.
	Name() string

	// Evaluate consumes the raw per-point outputs and produces per-model
	// scores. The prompt template is passed so strategies can reconstruct
	// the exact prompt each model saw. A returned error is fatal for the
	// evaluation phase; per-point failures are encoded into the result
	// instead.
	Evaluate(ctx context.Context, results []domain.PointResult, promptTemplate string) (*domain.EvaluationResult, error)
}

// ScorePrompter is the interactive surface the human evaluation strategy
// scores through. Production wires a terminal implementation; tests inject
// a scripted one.
type ScorePrompter interface {
	// ShowPoint presents the data point and the prompt that was sent to the
	// models, giving the rater context before scoring begins.
	ShowPoint(index, total int, prompt string, data domain.DataPoint)

	// PromptScore asks for a score for one anonymized output. It blocks
	// until the rater enters a value inside the window, returns
	// skipped=true when the skip sentinel is entered, and returns
	// domain.ErrEvaluationInterrupted on end-of-input or cancellation.
	PromptScore(output string, displayIdx, total int, window domain.ScoreWindow) (score int, skipped bool, err error)
}

// MetricsCollector abstracts the metrics sink so provider middleware stays
// backend-agnostic. The Prometheus implementation lives in
// infrastructure/middleware.
type MetricsCollector interface {
	// RecordLatency records the execution time of an operation.
	RecordLatency(operation string, duration time.Duration, labels map[string]string)

	// RecordCounter increments a counter metric.
	RecordCounter(metric string, value float64, labels map[string]string)

	// RecordHistogram records a value in a histogram.
	RecordHistogram(metric string, value float64, labels map[string]string)
}
