package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAverageScores(t *testing.T) {
	tests := []struct {
		name     string
		detailed []DetailedScoreItem
		want     map[string]float64
	}{
		{
			name: "simple average over two points",
			detailed: []DetailedScoreItem{
				{Scores: map[string]*int{"m1": IntPtr(8), "m2": IntPtr(6)}},
				{Scores: map[string]*int{"m1": IntPtr(9), "m2": IntPtr(7)}},
			},
			want: map[string]float64{"m1": 8.5, "m2": 6.5},
		},
		{
			name: "nil scores excluded from both sum and count",
			detailed: []DetailedScoreItem{
				{Scores: map[string]*int{"m1": IntPtr(10), "m2": nil}},
				{Scores: map[string]*int{"m1": IntPtr(5), "m2": IntPtr(4)}},
			},
			want: map[string]float64{"m1": 7.5, "m2": 4},
		},
		{
			name: "never-scored model absent, not zero",
			detailed: []DetailedScoreItem{
				{Scores: map[string]*int{"m1": IntPtr(6), "m2": nil}},
				{Scores: map[string]*int{"m1": IntPtr(6), "m2": nil}},
			},
			want: map[string]float64{"m1": 6},
		},
		{
			name: "rounded to two decimals",
			detailed: []DetailedScoreItem{
				{Scores: map[string]*int{"m1": IntPtr(10)}},
				{Scores: map[string]*int{"m1": IntPtr(9)}},
				{Scores: map[string]*int{"m1": IntPtr(9)}},
			},
			want: map[string]float64{"m1": 9.33},
		},
		{
			name:     "no items",
			detailed: nil,
			want:     map[string]float64{},
		},
		{
			name: "model appearing in only some items",
			detailed: []DetailedScoreItem{
				{Scores: map[string]*int{"m1": IntPtr(8)}},
				{Scores: map[string]*int{"m1": IntPtr(4), "m2": IntPtr(10)}},
			},
			want: map[string]float64{"m1": 6, "m2": 10},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AverageScores(tt.detailed))
		})
	}
}

// Averages must not depend on the order detailed items arrive in.
func TestAverageScores_OrderIndependent(t *testing.T) {
	items := []DetailedScoreItem{
		{Scores: map[string]*int{"m1": IntPtr(7), "m2": IntPtr(3)}},
		{Scores: map[string]*int{"m1": IntPtr(2), "m2": nil}},
		{Scores: map[string]*int{"m1": nil, "m2": IntPtr(9)}},
	}
	reversed := []DetailedScoreItem{items[2], items[1], items[0]}

	assert.Equal(t, AverageScores(items), AverageScores(reversed))
}

func TestRankings(t *testing.T) {
	tests := []struct {
		name     string
		averages map[string]float64
		want     []Ranking
	}{
		{
			name:     "distinct scores rank descending",
			averages: map[string]float64{"m1": 7.5, "m2": 9.0, "m3": 4.2},
			want: []Ranking{
				{ModelID: "m2", Score: 9.0, Rank: 1},
				{ModelID: "m1", Score: 7.5, Rank: 2},
				{ModelID: "m3", Score: 4.2, Rank: 3},
			},
		},
		{
			name:     "ties share rank and skip the next",
			averages: map[string]float64{"a": 8, "b": 8, "c": 5, "d": 9},
			want: []Ranking{
				{ModelID: "d", Score: 9, Rank: 1},
				{ModelID: "a", Score: 8, Rank: 2},
				{ModelID: "b", Score: 8, Rank: 2},
				{ModelID: "c", Score: 5, Rank: 4},
			},
		},
		{
			name:     "all tied",
			averages: map[string]float64{"x": 6, "y": 6, "z": 6},
			want: []Ranking{
				{ModelID: "x", Score: 6, Rank: 1},
				{ModelID: "y", Score: 6, Rank: 1},
				{ModelID: "z", Score: 6, Rank: 1},
			},
		},
		{
			name:     "single model",
			averages: map[string]float64{"only": 3.3},
			want:     []Ranking{{ModelID: "only", Score: 3.3, Rank: 1}},
		},
		{
			name:     "empty",
			averages: map[string]float64{},
			want:     []Ranking{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Rankings(tt.averages))
		})
	}
}
