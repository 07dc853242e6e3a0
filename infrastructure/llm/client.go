package llm

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/modelmatch/modelmatch/internal/ports"
)

// CoreLLM is the minimal interface a provider implementation must satisfy.
// Middleware wraps any conforming implementation, so cross-cutting features
// compose without the providers knowing about them.
type CoreLLM interface {
	// DoRequest sends a prompt to the provider and returns the response
	// text along with input and output token counts.
	DoRequest(ctx context.Context, prompt string, opts map[string]any) (response string, tokensIn, tokensOut int, err error)

	// GetModel returns the currently configured model name.
	GetModel() string

	// SetModel updates the model used for subsequent requests.
	SetModel(model string)
}

// Middleware wraps a CoreLLM to add cross-cutting functionality such as rate
// limiting, metrics collection, or tracing, without touching provider logic.
type Middleware func(CoreLLM) CoreLLM

// ClientConfig holds all settings needed to construct a provider client.
type ClientConfig struct {
	// APIKey authenticates requests to the provider.
	APIKey string

	// Model selects which model the client is bound to.
	Model string

	// BaseURL overrides the provider's default endpoint. Leave empty for
	// the default; OpenRouter relies on this to reuse the OpenAI transport.
	BaseURL string

	// Timeout bounds individual requests. Zero means no client-side bound;
	// the provider abstraction is the only layer that enforces latency
	// limits.
	Timeout time.Duration

	// Middleware is applied in the order given, first entry outermost.
	Middleware []Middleware
}

// Client adapts a middleware-wrapped CoreLLM to the ports.LLMClient
// contract used by the rest of the pipeline. It is safe for concurrent use
// as long as the underlying provider is; all shipped providers are
// stateless per call.
type Client struct {
	core      CoreLLM
	estimator *TokenCounter
}

var _ ports.LLMClient = (*Client)(nil)

// NewClient assembles a provider client with its middleware chain.
// The provider type must have been registered through
// RegisterProviderFactory; unknown types fail here, before any request is
// attempted.
func NewClient(providerType string, config ClientConfig) (*Client, error) {
	if config.APIKey == "" {
		return nil, ErrEmptyAPIKey
	}
	if config.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	factory, ok := providerFactories[providerType]
	if !ok {
		return nil, fmt.Errorf("unknown provider: %s", providerType)
	}

	core, err := factory(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s provider: %w", providerType, err)
	}

	// Apply middleware in reverse so the first entry is the outermost.
	for i := len(config.Middleware) - 1; i >= 0; i-- {
		core = config.Middleware[i](core)
	}

	return &Client{core: core, estimator: NewTokenCounter()}, nil
}

// Complete sends a prompt to the model and returns the generated text.
// Token usage is discarded here; middleware still observes it for metrics.
func (c *Client) Complete(ctx context.Context, prompt string, options map[string]any) (string, error) {
	response, _, _, err := c.core.DoRequest(ctx, prompt, options)
	return response, err
}

// EstimateTokens returns an approximate token count for the given text.
func (c *Client) EstimateTokens(text string) (int, error) {
	return c.estimator.EstimateTokens(text), nil
}

// GetModel returns the model name of the underlying provider.
func (c *Client) GetModel() string { return c.core.GetModel() }

// ProviderFactory creates a CoreLLM implementation from configuration.
type ProviderFactory func(ClientConfig) (CoreLLM, error)

// providerFactories maps provider type tags to their constructors.
// Providers register themselves in init, mirroring the closed variant set
// declared in the model catalog.
var providerFactories = map[string]ProviderFactory{}

// RegisterProviderFactory registers a provider constructor under a type tag.
func RegisterProviderFactory(providerType string, factory ProviderFactory) {
	providerFactories[providerType] = factory
}

// ValidateBaseURL validates and normalizes a base URL override.
// An empty string is valid and selects the provider default.
func ValidateBaseURL(baseURL string) (string, error) {
	if baseURL == "" {
		return "", nil
	}

	parsed, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid URL format: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", fmt.Errorf("URL scheme must be http or https, got: %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return "", fmt.Errorf("URL must include a host")
	}
	return parsed.String(), nil
}
