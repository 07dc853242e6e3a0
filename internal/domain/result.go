package domain

// RunParameters echoes the inputs of a comparison run into its result record
// so a saved result is self-describing.
type RunParameters struct {
	PromptTemplate   string   `json:"prompt_template"`
	ModelsCompared   []string `json:"models_compared"`
	EvaluationMethod string   `json:"evaluation_method"`
	ReasoningModelID *string  `json:"reasoning_model_id"`
	NumDataPoints    int      `json:"num_data_points"`
}

// EvaluationOutcome is the evaluation section of a run result: either the
// strategy's scores or a single error message when the evaluation phase
// failed as a whole. Exactly one of the two shapes is populated.
type EvaluationOutcome struct {
	AverageScores  map[string]float64  `json:"average_scores,omitempty"`
	DetailedScores []DetailedScoreItem `json:"detailed_scores,omitempty"`
	Error          string              `json:"error,omitempty"`
}

// OutcomeFromResult wraps a successful EvaluationResult.
func OutcomeFromResult(res *EvaluationResult) *EvaluationOutcome {
	return &EvaluationOutcome{
		AverageScores:  res.AverageScores,
		DetailedScores: res.DetailedScores,
	}
}

// OutcomeFromError records an evaluation-phase failure.
func OutcomeFromError(msg string) *EvaluationOutcome {
	return &EvaluationOutcome{Error: msg}
}

// RunResult merges run parameters, raw per-point outputs, and the evaluation
// outcome into the single record handed to display and persistence. It holds
// no aggregation logic of its own.
type RunResult struct {
	// RunID uniquely identifies this run in logs and saved artifacts.
	RunID string `json:"run_id"`

	Parameters RunParameters      `json:"parameters"`
	RawOutputs []PointResult      `json:"raw_outputs_per_data_point"`
	Evaluation *EvaluationOutcome `json:"evaluation"`
}
