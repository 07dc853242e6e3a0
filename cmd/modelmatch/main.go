// Command modelmatch compares LLM outputs side by side: it runs every data
// point in an input file through a set of models, collects scores through an
// interactive session or an LLM judge, and reports ranked averages.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/modelmatch/modelmatch/infrastructure/evaluators"
	"github.com/modelmatch/modelmatch/infrastructure/llm"
	"github.com/modelmatch/modelmatch/infrastructure/middleware"
	"github.com/modelmatch/modelmatch/internal/application"
	"github.com/modelmatch/modelmatch/internal/domain"
	"github.com/modelmatch/modelmatch/internal/logging"
	"github.com/modelmatch/modelmatch/internal/ports"
)

// maxComparedModels caps how many models one run compares. More than this
// makes interactive scoring tedious and judge prompts unwieldy, so extras
// are dropped with a warning rather than rejected.
const maxComparedModels = 3

var (
	flagInputFile    string
	flagModels       []string
	flagEvalMethod   string
	flagJudgeModel   string
	flagOutputFile   string
	flagShowDetails  bool
	flagMaxWorkers   int
	flagListModels   bool
	flagModelsConfig string
	flagJudgePrompt  string
	flagLogLevel     string
	flagSeed         int64
	flagTimeout      int
	flagRPS          float64
	flagMetricsAddr  string
)

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "modelmatch",
		Short: "Compare LLM outputs across models and rank them by score",
		Long: `modelmatch runs every data point in an input file through a set of
models, gathers a score per output through interactive rating or an LLM
judge, and prints the models ranked by average score.

The input file is a JSON object with a "prompt_template" string and a
"data" array. Template placeholders like {question} are filled from each
data point's fields; scalar data points substitute into {data}.`,
		SilenceUsage: true,
		RunE:         runE,
	}

	cmd.Flags().StringVarP(&flagInputFile, "input-file", "i", "", "JSON input file with prompt_template and data")
	cmd.Flags().StringSliceVarP(&flagModels, "models", "m", nil, "models to compare, by display name or model id (max 3)")
	cmd.Flags().StringVarP(&flagEvalMethod, "eval-method", "e", evaluators.MethodHuman,
		fmt.Sprintf("evaluation method (%s)", strings.Join(evaluators.Methods(), ", ")))
	cmd.Flags().StringVarP(&flagJudgeModel, "reasoning-model", "r", "", "judge model for the reasoning method")
	cmd.Flags().StringVarP(&flagOutputFile, "output-file", "o", "results.json", "file to write the full run result to")
	cmd.Flags().BoolVar(&flagShowDetails, "show-details", false, "print per-data-point scores after the ranking")
	cmd.Flags().IntVar(&flagMaxWorkers, "max-workers", 0, "concurrent generation requests per data point (0 = one per model)")
	cmd.Flags().BoolVar(&flagListModels, "list-models", false, "list the configured models and exit")
	cmd.Flags().StringVar(&flagModelsConfig, "models-config", "configs/models.yaml", "model catalog file")
	cmd.Flags().StringVar(&flagJudgePrompt, "judge-prompt", "configs/judge_prompt.txt", "judging prompt template for the reasoning method")
	cmd.Flags().StringVar(&flagLogLevel, "log-level", "info", "log level (debug, info, warn, error)")
	cmd.Flags().Int64Var(&flagSeed, "seed", 0, "fix the interactive presentation shuffle (0 = random)")
	cmd.Flags().IntVar(&flagTimeout, "request-timeout", 120, "per-request provider timeout in seconds (0 = none)")
	cmd.Flags().Float64Var(&flagRPS, "rate-limit", 0, "client-side requests per second per provider (0 = unlimited)")
	cmd.Flags().StringVar(&flagMetricsAddr, "metrics-listen", "", "expose Prometheus metrics on this address (e.g. :9090)")

	return cmd
}

func runE(cmd *cobra.Command, _ []string) error {
	logger, err := logging.New(flagLogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx := cmd.Context()

	keys, err := llm.LoadAPIKeys(ctx)
	if err != nil {
		return err
	}

	opts, err := clientOptions(logger)
	if err != nil {
		return err
	}

	catalog, err := llm.LoadCatalog(flagModelsConfig, keys, opts, logger)
	if err != nil {
		return err
	}

	if flagListModels {
		printModelList(cmd.OutOrStdout(), catalog)
		return nil
	}

	if flagInputFile == "" {
		return fmt.Errorf("--input-file is required")
	}
	if len(flagModels) == 0 {
		return fmt.Errorf("--models is required (use --list-models to see what is configured)")
	}

	input, err := application.LoadInput(flagInputFile)
	if err != nil {
		return err
	}

	modelIDs, err := resolveModels(catalog, flagModels, logger)
	if err != nil {
		return err
	}

	judgeID := ""
	if flagEvalMethod == evaluators.MethodReasoning {
		if flagJudgeModel == "" {
			return fmt.Errorf("--reasoning-model is required with --eval-method=%s", evaluators.MethodReasoning)
		}
		judgeID, err = catalog.Resolve(flagJudgeModel)
		if err != nil {
			return err
		}
	}

	factory := func(method string, judge ports.LLMClient) (ports.Evaluator, error) {
		return evaluators.New(method, evaluators.Dependencies{
			Judge:           judge,
			Prompter:        evaluators.NewConsolePrompter(cmd.OutOrStdout()),
			Window:          domain.DefaultScoreWindow,
			JudgePromptPath: flagJudgePrompt,
			Seed:            flagSeed,
			Logger:          logger,
		})
	}

	runner := application.NewRunner(catalog, factory, logger)

	result, runErr := runner.Run(ctx, application.RunParams{
		PromptTemplate: input.PromptTemplate,
		DataPoints:     input.Data,
		ModelIDs:       modelIDs,
		EvalMethod:     flagEvalMethod,
		JudgeModelID:   judgeID,
		MaxConcurrency: flagMaxWorkers,
	})

	// An interrupted evaluation still yields a partial result worth keeping.
	if result != nil {
		printResult(cmd.OutOrStdout(), catalog, result, flagShowDetails)
		if err := application.SaveResult(result, flagOutputFile); err != nil {
			logger.Error("failed to save run result", zap.Error(err))
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "\nFull results written to %s\n", flagOutputFile)
		}
	}

	if runErr != nil && !errors.Is(runErr, domain.ErrEvaluationInterrupted) {
		return runErr
	}
	if errors.Is(runErr, domain.ErrEvaluationInterrupted) {
		fmt.Fprintln(cmd.OutOrStdout(), "\nEvaluation interrupted; partial results saved.")
	}
	return nil
}

// clientOptions assembles the run-wide client settings from flags, starting
// the metrics endpoint when one is requested.
func clientOptions(logger *zap.Logger) (llm.ClientOptions, error) {
	opts := llm.ClientOptions{
		RequestsPerSecond: flagRPS,
		TracingService:    "modelmatch",
	}
	if flagTimeout > 0 {
		opts.Timeout = time.Duration(flagTimeout) * time.Second
	}

	if flagMetricsAddr != "" {
		opts.Metrics = middleware.NewPrometheusMetrics(nil)
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			if err := http.ListenAndServe(flagMetricsAddr, mux); err != nil {
				logger.Error("metrics endpoint failed", zap.Error(err))
			}
		}()
		logger.Info("serving Prometheus metrics", zap.String("addr", flagMetricsAddr))
	}

	return opts, nil
}

// resolveModels maps display names or ids to catalog ids, de-duplicating
// while preserving order and enforcing the comparison cap.
func resolveModels(catalog *llm.Catalog, requested []string, logger *zap.Logger) ([]string, error) {
	seen := make(map[string]bool, len(requested))
	ids := make([]string, 0, len(requested))

	for _, name := range requested {
		id, err := catalog.Resolve(strings.TrimSpace(name))
		if err != nil {
			return nil, err
		}
		if seen[id] {
			logger.Warn("model requested more than once, ignoring duplicate",
				zap.String("model_id", id))
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}

	if len(ids) > maxComparedModels {
		logger.Warn("too many models requested, comparing only the first",
			zap.Int("requested", len(ids)),
			zap.Int("max", maxComparedModels))
		ids = ids[:maxComparedModels]
	}
	return ids, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
