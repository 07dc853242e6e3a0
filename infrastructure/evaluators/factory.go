package evaluators

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/modelmatch/modelmatch/internal/domain"
	"github.com/modelmatch/modelmatch/internal/ports"
)

// Dependencies carries everything any strategy might need. Each factory
// picks what it uses and validates it at construction time, so a missing
// judge or prompter fails before generation starts.
type Dependencies struct {
	// Judge is the model client used by the reasoning strategy.
	Judge ports.LLMClient

	// Prompter is the interactive surface used by the human strategy.
	Prompter ports.ScorePrompter

	// Window bounds accepted scores for every strategy.
	Window domain.ScoreWindow

	// JudgePromptPath locates the judging-prompt template.
	JudgePromptPath string

	// Seed fixes the human strategy's presentation shuffle when non-zero.
	Seed int64

	// Logger is shared by all strategies.
	Logger *zap.Logger
}

type factoryFunc func(deps Dependencies) (ports.Evaluator, error)

// registry maps method tags to constructors. The set is closed; new
// strategies register here and the orchestrator stays untouched.
var registry = map[string]factoryFunc{
	MethodHuman: func(deps Dependencies) (ports.Evaluator, error) {
		return NewHumanEvaluator(deps.Prompter, HumanConfig{
			Window: deps.Window,
			Seed:   deps.Seed,
		}, deps.Logger)
	},
	MethodReasoning: func(deps Dependencies) (ports.Evaluator, error) {
		return NewReasoningEvaluator(deps.Judge, ReasoningConfig{
			PromptPath: deps.JudgePromptPath,
			Window:     deps.Window,
		}, deps.Logger)
	},
}

// New builds the evaluation strategy registered under method.
// An unregistered method is a configuration error carrying
// domain.ErrUnknownEvaluator.
func New(method string, deps Dependencies) (ports.Evaluator, error) {
	factory, ok := registry[method]
	if !ok {
		return nil, domain.NewConfigError("evaluator factory",
			fmt.Errorf("method %q: %w", method, domain.ErrUnknownEvaluator))
	}
	return factory(deps)
}

// Methods returns the registered method tags in sorted order.
func Methods() []string {
	methods := make([]string, 0, len(registry))
	for method := range registry {
		methods = append(methods, method)
	}
	sort.Strings(methods)
	return methods
}
