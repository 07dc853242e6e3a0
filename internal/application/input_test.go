package application

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelmatch/modelmatch/internal/domain"
)

func writeInput(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadInput(t *testing.T) {
	path := writeInput(t, `{
		"prompt_template": "Q: {question}",
		"data": [
			{"question": "first"},
			"a scalar point",
			42
		]
	}`)

	input, err := LoadInput(path)
	require.NoError(t, err)
	assert.Equal(t, "Q: {question}", input.PromptTemplate)
	require.Len(t, input.Data, 3)
	assert.Equal(t, map[string]any{"question": "first"}, input.Data[0])
	assert.Equal(t, "a scalar point", input.Data[1])
	assert.Equal(t, float64(42), input.Data[2])
}

func TestLoadInput_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "not json",
			content: "not json at all",
			wantErr: "not a JSON object",
		},
		{
			name:    "top-level array",
			content: `[1, 2, 3]`,
			wantErr: "not a JSON object",
		},
		{
			name:    "missing prompt_template",
			content: `{"data": ["x"]}`,
			wantErr: `missing "prompt_template"`,
		},
		{
			name:    "missing data",
			content: `{"prompt_template": "p"}`,
			wantErr: `missing "data"`,
		},
		{
			name:    "data not a list",
			content: `{"prompt_template": "p", "data": {"k": "v"}}`,
			wantErr: "data must be a JSON array",
		},
		{
			name:    "empty data",
			content: `{"prompt_template": "p", "data": []}`,
			wantErr: "no data points",
		},
		{
			name:    "empty prompt",
			content: `{"prompt_template": "", "data": ["x"]}`,
			wantErr: "prompt_template is empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadInput(writeInput(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)

			var cfgErr *domain.ConfigError
			assert.ErrorAs(t, err, &cfgErr)
		})
	}
}

func TestLoadInput_MissingFile(t *testing.T) {
	_, err := LoadInput(filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read input file")
}
