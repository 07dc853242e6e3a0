package domain

import (
	"math"
	"sort"
)

// AverageScores reduces detailed per-point scores into per-model averages.
// For each model id appearing in any item with a non-nil score, the result
// holds sum(valid scores)/count(valid scores) rounded to 2 decimal places.
// Models that never received a valid score are absent from the result, not
// zero: an always-failing model must not rank as if it scored.
func AverageScores(detailed []DetailedScoreItem) map[string]float64 {
	totals := make(map[string]int)
	counts := make(map[string]int)

	for _, item := range detailed {
		for modelID, score := range item.Scores {
			if score == nil {
				continue
			}
			totals[modelID] += *score
			counts[modelID]++
		}
	}

	averages := make(map[string]float64, len(totals))
	for modelID, total := range totals {
		averages[modelID] = round2(float64(total) / float64(counts[modelID]))
	}
	return averages
}

// round2 rounds to 2 decimal places. Sums of small integers divided by
// counts keep this commutative across item orderings.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Ranking pairs a model id with its average score and competition rank.
type Ranking struct {
	ModelID string  `json:"model_id"`
	Score   float64 `json:"score"`
	Rank    int     `json:"rank"`
}

// Rankings orders average scores descending and assigns competition ranks:
// models with identical averages share a rank, and the next distinct lower
// score takes the rank equal to its 1-based position in the sorted sequence
// (1, 2, 2, 4 — not 1, 2, 2, 3). Ties are listed in model-id order so the
// output is deterministic.
func Rankings(averages map[string]float64) []Ranking {
	ranked := make([]Ranking, 0, len(averages))
	for modelID, score := range averages {
		ranked = append(ranked, Ranking{ModelID: modelID, Score: score})
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].ModelID < ranked[j].ModelID
	})

	lastScore := math.Inf(1)
	currentRank := 0
	for i := range ranked {
		if ranked[i].Score != lastScore {
			currentRank = i + 1
			lastScore = ranked[i].Score
		}
		ranked[i].Rank = currentRank
	}
	return ranked
}
