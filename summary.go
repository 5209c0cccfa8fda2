package luckypick

import (
	"slices"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// DistributionSummary condenses a FrequencyTable into a few numbers
type DistributionSummary struct {
	Window    int     `json:"window"`
	Mean      float64 `json:"mean"`
	StdDev    float64 `json:"std_dev"`
	ChiSquare float64 `json:"chi_square"`
	// PValue of the chi-square goodness-of-fit test against a uniform pool.
	// Small values mean some numbers came up noticeably more than others.
	PValue float64 `json:"p_value"`
	Hot    []int   `json:"hot"`
	Cold   []int   `json:"cold"`
}

// DefaultHotColdSize is how many hot and cold numbers a summary lists
const DefaultHotColdSize = 5

// Summarize computes mean, spread and a uniformity test of the table
func Summarize(table *FrequencyTable) DistributionSummary {
	summary := DistributionSummary{PValue: 1}
	if table == nil || len(table.Entries) == 0 {
		return summary
	}
	summary.Window = table.Window

	freqs := make([]float64, len(table.Entries))
	total := 0.0
	for i, e := range table.Entries {
		freqs[i] = float64(e.Frequency)
		total += freqs[i]
	}

	summary.Mean, summary.StdDev = stat.MeanStdDev(freqs, nil)
	summary.Hot = table.Hot(DefaultHotColdSize)
	summary.Cold = table.Cold(DefaultHotColdSize)

	if total == 0 || len(freqs) < 2 {
		summary.StdDev = 0
		return summary
	}

	expected := make([]float64, len(freqs))
	for i := range expected {
		expected[i] = total / float64(len(freqs))
	}
	summary.ChiSquare = stat.ChiSquare(freqs, expected)
	summary.PValue = distuv.ChiSquared{K: float64(len(freqs) - 1)}.Survival(summary.ChiSquare)

	return summary
}

// Hot returns up to n numbers with the highest frequency; ties go to the lower number
func (t *FrequencyTable) Hot(n int) []int {
	return t.rank(n, func(a, b NumberStat) int {
		if a.Frequency != b.Frequency {
			return b.Frequency - a.Frequency
		}
		return a.Number - b.Number
	})
}

// Cold returns up to n numbers with the longest current missing streak
func (t *FrequencyTable) Cold(n int) []int {
	return t.rank(n, func(a, b NumberStat) int {
		if a.CurrentMissing != b.CurrentMissing {
			return b.CurrentMissing - a.CurrentMissing
		}
		if a.Frequency != b.Frequency {
			return a.Frequency - b.Frequency
		}
		return a.Number - b.Number
	})
}

func (t *FrequencyTable) rank(n int, cmp func(a, b NumberStat) int) []int {
	if t.Window == 0 || n <= 0 {
		return nil
	}
	entries := slices.Clone(t.Entries)
	slices.SortFunc(entries, cmp)

	out := make([]int, 0, min(n, len(entries)))
	for _, e := range entries[:min(n, len(entries))] {
		out = append(out, e.Number)
	}
	return out
}
