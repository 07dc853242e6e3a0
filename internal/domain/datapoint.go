// Package domain contains the core types and pure logic of the comparison
// pipeline: data points, per-point generation results, evaluation scores,
// prompt formatting, and score aggregation. The package has no knowledge of
// providers, terminals, or transport concerns.
package domain

import (
	"fmt"
	"strings"
)

// DataPoint is one unit of input fed through the prompt template and compared
// across models. It is either a mapping of field name to value (decoded JSON
// object) or a scalar. Data points are treated as immutable once loaded.
type DataPoint any

// ErrorMarkerPrefix is the convention for encoding a failed generation as a
// string output rather than an error value, so downstream evaluation and
// aggregation can treat all outputs uniformly.
const ErrorMarkerPrefix = "ERROR: "

// ErrorMarker encodes a generation failure as a marker string output.
func ErrorMarker(err error) string {
	return ErrorMarkerPrefix + err.Error()
}

// IsErrorMarker reports whether an output string records a failed generation.
func IsErrorMarker(output string) bool {
	return strings.HasPrefix(output, ErrorMarkerPrefix)
}

// PointResult holds the raw generation outcome for a single data point.
// Outputs maps model id to generated text or an error marker string.
// Error records a prompt-formatting failure; when set, Outputs is empty and
// no generation was attempted for the point. A PointResult is immutable once
// appended to the run's output sequence.
type PointResult struct {
	Index   int               `json:"data_point_index"`
	Data    DataPoint         `json:"data"`
	Outputs map[string]string `json:"outputs"`
	Error   string            `json:"error,omitempty"`
}

// ValidOutputs returns the subset of Outputs that are real generations,
// filtering out error markers. The returned map is a copy.
func (pr PointResult) ValidOutputs() map[string]string {
	valid := make(map[string]string, len(pr.Outputs))
	for modelID, output := range pr.Outputs {
		if !IsErrorMarker(output) {
			valid[modelID] = output
		}
	}
	return valid
}

// Stringify renders a data point for display and for embedding into judge
// prompts. Mappings render as "key: value" lines in sorted key order so the
// representation is stable across runs.
func Stringify(dp DataPoint) string {
	fields, ok := dp.(map[string]any)
	if !ok {
		return fmt.Sprint(dp)
	}

	keys := sortedKeys(fields)
	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s: %v", k, fields[k])
	}
	return b.String()
}
