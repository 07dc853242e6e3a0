package llm

// OpenRouterBaseURL is OpenRouter's OpenAI-compatible endpoint.
const OpenRouterBaseURL = "https://openrouter.ai/api/v1"

func init() {
	RegisterProviderFactory("openrouter", newOpenRouterProvider)
}

// newOpenRouterProvider builds a provider for OpenRouter-hosted models.
// OpenRouter exposes the OpenAI chat completion protocol, so the provider
// reuses the OpenAI transport with OpenRouter's base URL and its own error
// labels. Model ids keep OpenRouter's vendor-prefixed form
// (e.g. "deepseek/deepseek-chat-v3").
func newOpenRouterProvider(config ClientConfig) (CoreLLM, error) {
	return newOpenAICompatibleProvider("openrouter", config, OpenRouterBaseURL)
}
