package luckypick

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSummarize(t *testing.T) {
	t.Run("uniform_history", func(t *testing.T) {
		table := ComputeDistribution(history([]int{1, 2, 3}, []int{4, 5, 6}), 2, sixPool)
		s := Summarize(table)
		assert.Equal(t, 2, s.Window)
		assert.InDelta(t, 1.0, s.Mean, 1e-9)
		assert.InDelta(t, 0.0, s.StdDev, 1e-9)
		assert.InDelta(t, 0.0, s.ChiSquare, 1e-9)
		assert.InDelta(t, 1.0, s.PValue, 1e-9)
	})

	t.Run("skewed_history", func(t *testing.T) {
		rows := make([][]int, 0, 40)
		for range 40 {
			rows = append(rows, []int{1, 2, 3})
		}
		s := Summarize(ComputeDistribution(history(rows...), 40, sixPool))
		assert.Greater(t, s.ChiSquare, 100.0)
		assert.Less(t, s.PValue, 0.001)
		assert.Equal(t, []int{1, 2, 3, 4, 5}, s.Hot)
		assert.Equal(t, []int{4, 5, 6, 1, 2}, s.Cold)
	})

	t.Run("empty_table", func(t *testing.T) {
		s := Summarize(ComputeDistribution(nil, 30, sixPool))
		assert.Equal(t, DistributionSummary{PValue: 1, Mean: 0}, s)
	})

	t.Run("nil_table", func(t *testing.T) {
		assert.Equal(t, 1.0, Summarize(nil).PValue)
	})
}

func TestFrequencyTable_HotCold(t *testing.T) {
	table := ComputeDistribution(history([]int{1, 2, 3}, []int{4, 5, 6}, []int{1, 3, 5}), 3, sixPool)

	assert.Equal(t, []int{1, 3, 5}, table.Hot(3))
	// current missing: 4,5,6 -> 1; ties broken by lower frequency then number
	assert.Equal(t, []int{4, 6, 5}, table.Cold(3))
	assert.Len(t, table.Hot(100), 6)
	assert.Nil(t, table.Hot(0))
}
