package application

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/modelmatch/modelmatch/internal/domain"
)

// SaveResult writes the run result as indented JSON. The full record is
// persisted regardless of how much of it the terminal display showed.
func SaveResult(result *domain.RunResult, path string) error {
	encoded, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode run result: %w", err)
	}
	if err := os.WriteFile(path, append(encoded, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write run result to %s: %w", path, err)
	}
	return nil
}
