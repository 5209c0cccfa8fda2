package luckypick

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPerformanceMonitor_RecordGeneration(t *testing.T) {
	pm := NewPerformanceMonitor()

	pm.RecordGeneration(5, nil, 2*time.Millisecond)
	pm.RecordGeneration(0, ErrInsufficientPool, time.Millisecond)
	pm.RecordGeneration(0, ErrInvalidConstraint, 3*time.Millisecond)

	m := pm.GetMetrics()
	assert.Equal(t, int64(3), m.GenerationRequests)
	assert.Equal(t, int64(1), m.SuccessfulGenerations)
	assert.Equal(t, int64(2), m.FailedGenerations)
	assert.Equal(t, int64(1), m.InfeasibleDraws)
	assert.Equal(t, int64(5), m.TicketsGenerated)
	assert.Equal(t, int64(2*time.Millisecond), m.AverageGenerationTime)
	assert.InDelta(t, 33.33, m.GetSuccessRate(), 0.01)
}

func TestPerformanceMonitor_Counters(t *testing.T) {
	pm := NewPerformanceMonitor()

	pm.RecordDistribution()
	pm.RecordWinningCheck()
	pm.RecordLockAcquisition(true, 4*time.Millisecond)
	pm.RecordLockAcquisition(true, 2*time.Millisecond)
	pm.RecordLockAcquisition(false, time.Millisecond)
	pm.RecordLockRelease()
	pm.RecordStoreError()

	m := pm.GetMetrics()
	assert.Equal(t, int64(1), m.DistributionComputations)
	assert.Equal(t, int64(1), m.WinningChecks)
	assert.Equal(t, int64(2), m.LockAcquisitions)
	assert.Equal(t, int64(1), m.LockFailures)
	assert.Equal(t, int64(1), m.LockReleases)
	assert.Equal(t, int64(1), m.StoreErrors)
	assert.Equal(t, 3*time.Millisecond, m.GetAverageLockTime())
	assert.GreaterOrEqual(t, m.LastUpdateTime, m.StartTime)
}

func TestPerformanceMonitor_EnableDisable(t *testing.T) {
	pm := NewPerformanceMonitor()
	assert.True(t, pm.IsEnabled())

	pm.Disable()
	pm.RecordGeneration(1, nil, time.Millisecond)
	pm.RecordStoreError()
	assert.Zero(t, pm.GetMetrics().GenerationRequests)
	assert.Zero(t, pm.GetMetrics().StoreErrors)

	pm.Enable()
	pm.RecordGeneration(1, nil, time.Millisecond)
	assert.Equal(t, int64(1), pm.GetMetrics().GenerationRequests)

	pm.ResetMetrics()
	m := pm.GetMetrics()
	assert.Zero(t, m.GenerationRequests)
	assert.Zero(t, m.GetSuccessRate())
	assert.Zero(t, m.GetAverageLockTime())
}

func TestPerformanceMonitor_Concurrent(t *testing.T) {
	pm := NewPerformanceMonitor()

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				pm.RecordGeneration(2, nil, time.Microsecond)
			}
		}()
	}
	wg.Wait()

	m := pm.GetMetrics()
	assert.Equal(t, int64(5000), m.GenerationRequests)
	assert.Equal(t, int64(10000), m.TicketsGenerated)
	assert.Greater(t, m.GetThroughput(), 0.0)
}
