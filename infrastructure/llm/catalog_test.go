package llm

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writeCatalog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "models.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const testCatalogYAML = `
models:
  - model_id: gpt-test
    display_name: GPT Test
    provider: openai
    model: gpt-4o-mini
  - model_id: claude-test
    display_name: Claude Test
    provider: anthropic
  - model_id: bare-entry
    provider: google
`

func newTestCatalog(t *testing.T, keys APIKeys) *Catalog {
	t.Helper()
	cat, err := LoadCatalog(writeCatalog(t, testCatalogYAML), keys, ClientOptions{}, zap.NewNop())
	require.NoError(t, err)
	return cat
}

func TestLoadCatalog(t *testing.T) {
	cat := newTestCatalog(t, APIKeys{})

	spec, ok := cat.Spec("gpt-test")
	require.True(t, ok)
	assert.Equal(t, "GPT Test", spec.DisplayName)
	assert.Equal(t, "gpt-4o-mini", spec.Model)

	// Display name and provider model default to the model id.
	bare, ok := cat.Spec("bare-entry")
	require.True(t, ok)
	assert.Equal(t, "bare-entry", bare.DisplayName)
	assert.Equal(t, "bare-entry", bare.Model)

	// List is sorted by display name.
	list := cat.List()
	require.Len(t, list, 3)
	assert.Equal(t, "Claude Test", list[0].DisplayName)
	assert.Equal(t, "GPT Test", list[1].DisplayName)
	assert.Equal(t, "bare-entry", list[2].DisplayName)
}

func TestLoadCatalog_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "empty file", content: ""},
		{name: "no models", content: "models: []"},
		{name: "not yaml", content: "models: ["},
		{name: "missing model_id", content: "models:\n  - provider: openai"},
		{name: "unknown provider", content: "models:\n  - model_id: x\n    provider: watson"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadCatalog(writeCatalog(t, tt.content), APIKeys{}, ClientOptions{}, zap.NewNop())
			assert.Error(t, err)
		})
	}
}

func TestLoadCatalog_MissingFile(t *testing.T) {
	_, err := LoadCatalog(filepath.Join(t.TempDir(), "absent.yaml"), APIKeys{}, ClientOptions{}, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read model catalog")
}

func TestCatalogResolve(t *testing.T) {
	cat := newTestCatalog(t, APIKeys{})

	id, err := cat.Resolve("gpt-test")
	require.NoError(t, err)
	assert.Equal(t, "gpt-test", id)

	id, err = cat.Resolve("GPT Test")
	require.NoError(t, err)
	assert.Equal(t, "gpt-test", id)

	_, err = cat.Resolve("nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"nope"`)
}

func TestCatalogClientFor(t *testing.T) {
	t.Run("missing api key fails", func(t *testing.T) {
		cat := newTestCatalog(t, APIKeys{})
		_, err := cat.ClientFor("gpt-test")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no API key configured")
	})

	t.Run("unknown model fails", func(t *testing.T) {
		cat := newTestCatalog(t, APIKeys{OpenAI: "sk-test"})
		_, err := cat.ClientFor("absent")
		assert.Error(t, err)
	})

	t.Run("clients are cached per model id", func(t *testing.T) {
		cat := newTestCatalog(t, APIKeys{OpenAI: "sk-test"})

		first, err := cat.ClientFor("gpt-test")
		require.NoError(t, err)
		second, err := cat.ClientFor("gpt-test")
		require.NoError(t, err)
		assert.Same(t, first, second)
		assert.Equal(t, "gpt-4o-mini", first.GetModel())
	})
}

func TestAPIKeysForProvider(t *testing.T) {
	keys := APIKeys{OpenAI: "a", OpenRouter: "b", Anthropic: "c", Google: "d"}
	assert.Equal(t, "a", keys.ForProvider("openai"))
	assert.Equal(t, "b", keys.ForProvider("openrouter"))
	assert.Equal(t, "c", keys.ForProvider("anthropic"))
	assert.Equal(t, "d", keys.ForProvider("google"))
	assert.Empty(t, keys.ForProvider("watson"))
}
