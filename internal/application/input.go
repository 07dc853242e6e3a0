// Package application orchestrates a comparison run: loading input, fanning
// generation out across the requested models, delegating to the selected
// evaluation strategy, and assembling the final result record.
package application

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/modelmatch/modelmatch/internal/domain"
)

// RunInput is the decoded input file: one prompt template applied to a list
// of data points.
type RunInput struct {
	PromptTemplate string             `json:"prompt_template"`
	Data           []domain.DataPoint `json:"data"`
}

// LoadInput reads and validates the run input from a JSON file. Both keys
// are required and data must be a non-empty list; anything else fails the
// run before any provider work.
func LoadInput(path string) (*RunInput, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, domain.NewConfigError("input", fmt.Errorf("failed to read input file %s: %w", path, err))
	}

	// Decode into a raw map first so a missing key and an empty value are
	// distinguishable.
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, domain.NewConfigError("input", fmt.Errorf("input file %s is not a JSON object: %w", path, err))
	}

	promptRaw, ok := envelope["prompt_template"]
	if !ok {
		return nil, domain.NewConfigError("input", fmt.Errorf("input file %s is missing %q", path, "prompt_template"))
	}
	dataRaw, ok := envelope["data"]
	if !ok {
		return nil, domain.NewConfigError("input", fmt.Errorf("input file %s is missing %q", path, "data"))
	}

	var input RunInput
	if err := json.Unmarshal(promptRaw, &input.PromptTemplate); err != nil {
		return nil, domain.NewConfigError("input", fmt.Errorf("prompt_template must be a string: %w", err))
	}
	if input.PromptTemplate == "" {
		return nil, domain.NewConfigError("input", fmt.Errorf("prompt_template is empty"))
	}
	if err := json.Unmarshal(dataRaw, &input.Data); err != nil {
		return nil, domain.NewConfigError("input", fmt.Errorf("data must be a JSON array: %w", err))
	}
	if len(input.Data) == 0 {
		return nil, domain.NewConfigError("input", fmt.Errorf("data contains no data points"))
	}

	return &input, nil
}
