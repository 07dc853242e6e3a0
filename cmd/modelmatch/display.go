package main

import (
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/modelmatch/modelmatch/infrastructure/llm"
	"github.com/modelmatch/modelmatch/internal/domain"
)

// newDisplayTable builds a table writer with the formatting shared by the
// model list and the results display.
func newDisplayTable(w io.Writer, headers []string) *tablewriter.Table {
	cfg := tablewriter.Config{
		Header: tw.CellConfig{
			Alignment:  tw.CellAlignment{Global: tw.AlignLeft},
			Formatting: tw.CellFormatting{AutoFormat: tw.Off},
		},
		Row: tw.CellConfig{
			Alignment: tw.CellAlignment{Global: tw.AlignLeft},
		},
		MaxWidth: 100,
	}
	return tablewriter.NewTable(w,
		tablewriter.WithConfig(cfg),
		tablewriter.WithHeader(headers),
		tablewriter.WithRenderer(renderer.NewBlueprint()),
		tablewriter.WithRendition(tw.Rendition{
			Symbols: tw.NewSymbols(tw.StyleLight),
		}),
	)
}

// printModelList renders the catalog sorted by display name.
func printModelList(w io.Writer, catalog *llm.Catalog) {
	table := newDisplayTable(w, []string{"Name", "Model ID", "Provider", "Provider model"})
	for _, spec := range catalog.List() {
		_ = table.Append([]string{spec.DisplayName, spec.ModelID, spec.Provider, spec.Model})
	}
	_ = table.Render()
}

// printResult renders the ranked averages, then optionally the per-point
// breakdown. Evaluation-phase failures print the recorded error instead of
// an empty table.
func printResult(w io.Writer, catalog *llm.Catalog, result *domain.RunResult, showDetails bool) {
	fmt.Fprintf(w, "\nRun %s — %d models, %d data points, %s evaluation\n\n",
		result.RunID,
		len(result.Parameters.ModelsCompared),
		result.Parameters.NumDataPoints,
		result.Parameters.EvaluationMethod)

	if result.Evaluation == nil || result.Evaluation.Error != "" {
		msg := "evaluation produced no scores"
		if result.Evaluation != nil {
			msg = result.Evaluation.Error
		}
		fmt.Fprintf(w, "Evaluation failed: %s\n", msg)
		return
	}

	if len(result.Evaluation.AverageScores) == 0 {
		fmt.Fprintln(w, "No model received a valid score.")
		return
	}

	table := newDisplayTable(w, []string{"Rank", "Model", "Average score"})
	for _, ranking := range domain.Rankings(result.Evaluation.AverageScores) {
		_ = table.Append([]string{
			strconv.Itoa(ranking.Rank),
			displayName(catalog, ranking.ModelID),
			fmt.Sprintf("%.2f", ranking.Score),
		})
	}
	_ = table.Render()

	if showDetails {
		printDetails(w, catalog, result.Evaluation.DetailedScores)
	}
}

// printDetails renders per-data-point scores and, when present, the judge's
// reasoning.
func printDetails(w io.Writer, catalog *llm.Catalog, detailed []domain.DetailedScoreItem) {
	fmt.Fprintf(w, "\nPer-data-point scores:\n")

	for _, item := range detailed {
		fmt.Fprintf(w, "\n[%d] %s\n", item.Index+1,
			domain.TrimForDisplay(domain.Stringify(item.Data), 120))

		table := newDisplayTable(w, []string{"Model", "Score", "Reasoning"})
		for _, ranking := range domain.Rankings(scoredAverages(item)) {
			_ = table.Append([]string{
				displayName(catalog, ranking.ModelID),
				fmt.Sprintf("%.0f", ranking.Score),
				domain.TrimForDisplay(item.Reasoning[ranking.ModelID], 80),
			})
		}
		for _, modelID := range unscoredModels(item) {
			_ = table.Append([]string{
				displayName(catalog, modelID),
				"—",
				domain.TrimForDisplay(item.Reasoning[modelID], 80),
			})
		}
		_ = table.Render()
	}
}

// scoredAverages lifts one item's non-nil scores into the averages shape so
// the ranking sort can order them.
func scoredAverages(item domain.DetailedScoreItem) map[string]float64 {
	scores := make(map[string]float64, len(item.Scores))
	for modelID, score := range item.Scores {
		if score != nil {
			scores[modelID] = float64(*score)
		}
	}
	return scores
}

// unscoredModels returns the item's nil-scored model ids in sorted order.
func unscoredModels(item domain.DetailedScoreItem) []string {
	ids := make([]string, 0, len(item.Scores))
	for modelID, score := range item.Scores {
		if score == nil {
			ids = append(ids, modelID)
		}
	}
	sort.Strings(ids)
	return ids
}

// displayName maps a model id to its catalog display name, falling back to
// the id itself.
func displayName(catalog *llm.Catalog, modelID string) string {
	if spec, ok := catalog.Spec(modelID); ok {
		return spec.DisplayName
	}
	return modelID
}
