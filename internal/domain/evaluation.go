package domain

import "fmt"

// DefaultScoreWindow is the product-standard scoring range: integer scores
// from 1 to 10, with 0 reserved as the interactive "skip" sentinel.
var DefaultScoreWindow = ScoreWindow{Min: 1, Max: 10, Skip: 0}

// ScoreWindow defines the accepted range for evaluation scores.
// The window is a product decision rather than a technical constraint, so it
// is carried as configuration instead of hard-coded bounds.
type ScoreWindow struct {
	// Min is the lowest accepted score, inclusive.
	Min int `yaml:"min" json:"min" validate:"required"`

	// Max is the highest accepted score, inclusive.
	Max int `yaml:"max" json:"max" validate:"required,gtfield=Min"`

	// Skip is the sentinel value meaning "do not score this output".
	// It must fall outside [Min, Max].
	Skip int `yaml:"skip" json:"skip"`
}

// Contains reports whether a score falls inside the window.
func (w ScoreWindow) Contains(score int) bool {
	return score >= w.Min && score <= w.Max
}

// Validate checks internal consistency of the window.
func (w ScoreWindow) Validate() error {
	if w.Min >= w.Max {
		return fmt.Errorf("score window min %d must be below max %d", w.Min, w.Max)
	}
	if w.Contains(w.Skip) {
		return fmt.Errorf("skip sentinel %d must lie outside the score window %d-%d", w.Skip, w.Min, w.Max)
	}
	return nil
}

// String renders the window as "min-max".
func (w ScoreWindow) String() string { return fmt.Sprintf("%d-%d", w.Min, w.Max) }

// DetailedScoreItem records per-model scores for one data point.
// Scores maps model id to an integer score; a nil entry means the model's
// output went unscored (skipped, judge parse failure, or out-of-window).
// Only model ids whose output was a real generation for this point appear as
// keys; models that errored during generation are never scored.
type DetailedScoreItem struct {
	Index     int               `json:"data_point_index"`
	Data      DataPoint         `json:"data"`
	Scores    map[string]*int   `json:"scores"`
	Reasoning map[string]string `json:"reasoning,omitempty"`
}

// EvaluationResult is the immutable output of one evaluation pass.
// DetailedScores holds one item per PointResult in input order;
// AverageScores holds one entry per model that received at least one valid
// score across the run.
type EvaluationResult struct {
	AverageScores  map[string]float64  `json:"average_scores"`
	DetailedScores []DetailedScoreItem `json:"detailed_scores"`
}

// NewEvaluationResult assembles an EvaluationResult, deriving the average
// scores from the detailed items.
func NewEvaluationResult(detailed []DetailedScoreItem) *EvaluationResult {
	return &EvaluationResult{
		AverageScores:  AverageScores(detailed),
		DetailedScores: detailed,
	}
}

// IntPtr returns a pointer to score. Convenience for building score maps.
func IntPtr(score int) *int { return &score }
