package llm

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sethvargo/go-envconfig"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"gopkg.in/yaml.v3"

	"github.com/modelmatch/modelmatch/internal/ports"
)

// APIKeys holds the provider credentials read from the environment.
type APIKeys struct {
	OpenAI     string `env:"OPENAI_API_KEY"`
	OpenRouter string `env:"OPENROUTER_API_KEY"`
	Anthropic  string `env:"ANTHROPIC_API_KEY"`
	Google     string `env:"GOOGLE_API_KEY"`
}

// LoadAPIKeys reads provider credentials from the environment.
// Missing keys are not an error here; they fail later, and only if a model
// backed by that provider is actually requested.
func LoadAPIKeys(ctx context.Context) (APIKeys, error) {
	var keys APIKeys
	if err := envconfig.Process(ctx, &keys); err != nil {
		return APIKeys{}, fmt.Errorf("failed to read provider credentials: %w", err)
	}
	return keys, nil
}

// ForProvider returns the credential for a provider type tag.
func (k APIKeys) ForProvider(provider string) string {
	switch provider {
	case "openai":
		return k.OpenAI
	case "openrouter":
		return k.OpenRouter
	case "anthropic":
		return k.Anthropic
	case "google":
		return k.Google
	default:
		return ""
	}
}

// ModelSpec is one catalog entry: a comparable model identified by a unique
// id, presented under a display name, and served by a registered provider.
type ModelSpec struct {
	// ModelID uniquely identifies the model across the pipeline. It is the
	// key used in results, scores, and rankings.
	ModelID string `yaml:"model_id" validate:"required"`

	// DisplayName is the human-facing name accepted on the command line.
	// Defaults to ModelID.
	DisplayName string `yaml:"display_name"`

	// Provider selects the backend implementation.
	Provider string `yaml:"provider" validate:"required,oneof=openai openrouter anthropic google"`

	// Model is the provider-side model name. Defaults to ModelID.
	Model string `yaml:"model"`

	// BaseURL overrides the provider's default endpoint.
	BaseURL string `yaml:"base_url"`
}

// catalogFile is the on-disk shape of the model catalog.
type catalogFile struct {
	Models []ModelSpec `yaml:"models"`
}

// ClientOptions carries the run-wide settings applied to every client the
// catalog builds: request timeout, rate limiting, and observability sinks.
type ClientOptions struct {
	// Timeout bounds individual provider requests. Zero disables the bound.
	Timeout time.Duration

	// RequestsPerSecond and Burst configure client-side rate limiting.
	// Zero RequestsPerSecond disables it.
	RequestsPerSecond float64
	Burst             int

	// Metrics receives per-request counters and latency histograms when
	// non-nil.
	Metrics ports.MetricsCollector

	// TracingService enables OpenTelemetry spans under this service name
	// when non-empty.
	TracingService string
}

// Catalog is the process-wide model registry: an immutable lookup table
// from model id to display name and provider, loaded once at startup and
// passed by reference into the components that need it. Clients are built
// lazily per model id and cached for reuse across data points, so each
// requested model gets exactly one handle per run.
type Catalog struct {
	specs     map[string]ModelSpec
	byDisplay map[string]string
	keys      APIKeys
	opts      ClientOptions
	logger    *zap.Logger

	mu      sync.Mutex
	clients map[string]ports.LLMClient
}

// LoadCatalog reads and validates the model catalog from a YAML file.
// Entries with duplicate ids overwrite earlier ones with a logged warning;
// duplicate display names keep the last mapping, matching how the catalog
// file is maintained by hand.
func LoadCatalog(path string, keys APIKeys, opts ClientOptions, logger *zap.Logger) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model catalog %s: %w", path, err)
	}

	var file catalogFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("failed to parse model catalog %s: %w", path, err)
	}
	if len(file.Models) == 0 {
		return nil, fmt.Errorf("model catalog %s defines no models", path)
	}

	v := validator.New()
	cat := &Catalog{
		specs:     make(map[string]ModelSpec, len(file.Models)),
		byDisplay: make(map[string]string, len(file.Models)),
		keys:      keys,
		opts:      opts,
		logger:    logger,
		clients:   make(map[string]ports.LLMClient),
	}

	for _, spec := range file.Models {
		if err := v.Struct(spec); err != nil {
			return nil, fmt.Errorf("invalid catalog entry %q: %w", spec.ModelID, err)
		}
		if spec.DisplayName == "" {
			spec.DisplayName = spec.ModelID
		}
		if spec.Model == "" {
			spec.Model = spec.ModelID
		}

		if _, exists := cat.specs[spec.ModelID]; exists {
			logger.Warn("duplicate model_id in catalog, overwriting",
				zap.String("model_id", spec.ModelID))
		}
		cat.specs[spec.ModelID] = spec

		if _, exists := cat.byDisplay[spec.DisplayName]; exists {
			logger.Warn("duplicate display_name in catalog, keeping last mapping",
				zap.String("display_name", spec.DisplayName))
		}
		cat.byDisplay[spec.DisplayName] = spec.ModelID
	}

	return cat, nil
}

// Resolve translates a model id or display name into a model id.
func (c *Catalog) Resolve(nameOrID string) (string, error) {
	if _, ok := c.specs[nameOrID]; ok {
		return nameOrID, nil
	}
	if id, ok := c.byDisplay[nameOrID]; ok {
		return id, nil
	}
	return "", fmt.Errorf("model %q: %w", nameOrID, errUnknownModel)
}

// errUnknownModel keeps the sentinel local; callers translate it into the
// domain taxonomy at the application boundary.
var errUnknownModel = fmt.Errorf("not found in model catalog")

// Spec returns the catalog entry for a model id.
func (c *Catalog) Spec(modelID string) (ModelSpec, bool) {
	spec, ok := c.specs[modelID]
	return spec, ok
}

// List returns all catalog entries sorted by display name.
func (c *Catalog) List() []ModelSpec {
	specs := make([]ModelSpec, 0, len(c.specs))
	for _, spec := range c.specs {
		specs = append(specs, spec)
	}
	sort.Slice(specs, func(i, j int) bool {
		return specs[i].DisplayName < specs[j].DisplayName
	})
	return specs
}

// ClientFor returns the LLM client for a model id, building and caching it
// on first request. Safe for concurrent use; clients are shared handles.
func (c *Catalog) ClientFor(modelID string) (ports.LLMClient, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if client, ok := c.clients[modelID]; ok {
		return client, nil
	}

	spec, ok := c.specs[modelID]
	if !ok {
		return nil, fmt.Errorf("model %q: %w", modelID, errUnknownModel)
	}

	apiKey := c.keys.ForProvider(spec.Provider)
	if apiKey == "" {
		return nil, fmt.Errorf("no API key configured for provider %q (model %q)", spec.Provider, modelID)
	}

	client, err := NewClient(spec.Provider, ClientConfig{
		APIKey:     apiKey,
		Model:      spec.Model,
		BaseURL:    spec.BaseURL,
		Timeout:    c.opts.Timeout,
		Middleware: c.middlewareFor(spec.Provider),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize model %q: %w", modelID, err)
	}

	c.logger.Info("initialized model client",
		zap.String("model_id", modelID),
		zap.String("provider", spec.Provider),
		zap.String("model", spec.Model))

	c.clients[modelID] = client
	return client, nil
}

// middlewareFor assembles the run-wide middleware chain for a provider.
// Tracing sits outermost so spans cover rate-limit waits; metrics wrap the
// provider call itself.
func (c *Catalog) middlewareFor(provider string) []Middleware {
	var chain []Middleware
	if c.opts.TracingService != "" {
		chain = append(chain, TracingMiddleware(c.opts.TracingService))
	}
	if c.opts.RequestsPerSecond > 0 {
		burst := c.opts.Burst
		if burst <= 0 {
			burst = 1
		}
		chain = append(chain, RateLimitMiddleware(rate.Limit(c.opts.RequestsPerSecond), burst))
	}
	if c.opts.Metrics != nil {
		chain = append(chain, MetricsMiddleware(provider, c.opts.Metrics))
	}
	return chain
}
