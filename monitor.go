package luckypick

import (
	"errors"
	"sync/atomic"
	"time"
)

// PerformanceMetrics 性能指标
type PerformanceMetrics struct {
	// 选号统计
	GenerationRequests    int64 `json:"generation_requests"`     // 选号请求次数
	SuccessfulGenerations int64 `json:"successful_generations"`  // 成功请求次数
	FailedGenerations     int64 `json:"failed_generations"`      // 失败请求次数
	InfeasibleDraws       int64 `json:"infeasible_draws"`        // 因锁定/排除导致号码不足的次数
	TicketsGenerated      int64 `json:"tickets_generated"`       // 生成的注数
	TotalGenerationTime   int64 `json:"total_generation_time"`   // 总选号时间(纳秒)
	AverageGenerationTime int64 `json:"average_generation_time"` // 平均选号时间(纳秒)

	// 统计与兑奖
	DistributionComputations int64 `json:"distribution_computations"`
	WinningChecks            int64 `json:"winning_checks"`

	// 锁操作统计
	LockAcquisitions    int64 `json:"lock_acquisitions"`     // 锁获取次数
	LockAcquisitionTime int64 `json:"lock_acquisition_time"` // 锁获取总时间(纳秒)
	LockReleases        int64 `json:"lock_releases"`         // 锁释放次数
	LockFailures        int64 `json:"lock_failures"`         // 锁获取失败次数

	// 存储错误数
	StoreErrors int64 `json:"store_errors"`

	// 时间戳
	StartTime      int64 `json:"start_time"`       // 开始时间
	LastUpdateTime int64 `json:"last_update_time"` // 最后更新时间
}

// GetSuccessRate 获取选号成功率(百分比)
func (pm *PerformanceMetrics) GetSuccessRate() float64 {
	if pm.GenerationRequests == 0 {
		return 0.0
	}
	return float64(pm.SuccessfulGenerations) / float64(pm.GenerationRequests) * 100.0
}

// GetAverageLockTime 获取平均锁获取时间
func (pm *PerformanceMetrics) GetAverageLockTime() time.Duration {
	if pm.LockAcquisitions == 0 {
		return 0
	}
	return time.Duration(pm.LockAcquisitionTime / pm.LockAcquisitions)
}

// GetThroughput 获取吞吐量(每秒生成注数)
func (pm *PerformanceMetrics) GetThroughput() float64 {
	if pm.StartTime == 0 || pm.LastUpdateTime <= pm.StartTime {
		return 0.0
	}
	duration := time.Duration(pm.LastUpdateTime - pm.StartTime)
	return float64(pm.TicketsGenerated) / duration.Seconds()
}

// PerformanceMonitor 性能监控器, 所有计数器均为原子操作
type PerformanceMonitor struct {
	metrics PerformanceMetrics
	enabled atomic.Bool
}

// NewPerformanceMonitor 创建新的性能监控器
func NewPerformanceMonitor() *PerformanceMonitor {
	pm := &PerformanceMonitor{}
	pm.enabled.Store(true)
	pm.ResetMetrics()
	return pm
}

// Enable 启用性能监控
func (pm *PerformanceMonitor) Enable() { pm.enabled.Store(true) }

// Disable 禁用性能监控
func (pm *PerformanceMonitor) Disable() { pm.enabled.Store(false) }

// IsEnabled 检查是否启用了性能监控
func (pm *PerformanceMonitor) IsEnabled() bool { return pm.enabled.Load() }

func (pm *PerformanceMonitor) touch() {
	atomic.StoreInt64(&pm.metrics.LastUpdateTime, time.Now().UnixNano())
}

// RecordGeneration 记录一次选号请求
func (pm *PerformanceMonitor) RecordGeneration(tickets int, err error, duration time.Duration) {
	if !pm.IsEnabled() {
		return
	}

	requests := atomic.AddInt64(&pm.metrics.GenerationRequests, 1)
	total := atomic.AddInt64(&pm.metrics.TotalGenerationTime, int64(duration))
	atomic.StoreInt64(&pm.metrics.AverageGenerationTime, total/requests)

	if err != nil {
		atomic.AddInt64(&pm.metrics.FailedGenerations, 1)
		if errors.Is(err, ErrInsufficientPool) {
			atomic.AddInt64(&pm.metrics.InfeasibleDraws, 1)
		}
	} else {
		atomic.AddInt64(&pm.metrics.SuccessfulGenerations, 1)
		atomic.AddInt64(&pm.metrics.TicketsGenerated, int64(tickets))
	}

	pm.touch()
}

// RecordDistribution 记录一次分布统计
func (pm *PerformanceMonitor) RecordDistribution() {
	if !pm.IsEnabled() {
		return
	}
	atomic.AddInt64(&pm.metrics.DistributionComputations, 1)
	pm.touch()
}

// RecordWinningCheck 记录一次兑奖查询
func (pm *PerformanceMonitor) RecordWinningCheck() {
	if !pm.IsEnabled() {
		return
	}
	atomic.AddInt64(&pm.metrics.WinningChecks, 1)
	pm.touch()
}

// RecordLockAcquisition 记录锁获取操作
func (pm *PerformanceMonitor) RecordLockAcquisition(success bool, duration time.Duration) {
	if !pm.IsEnabled() {
		return
	}

	if success {
		atomic.AddInt64(&pm.metrics.LockAcquisitions, 1)
		atomic.AddInt64(&pm.metrics.LockAcquisitionTime, int64(duration))
	} else {
		atomic.AddInt64(&pm.metrics.LockFailures, 1)
	}
	pm.touch()
}

// RecordLockRelease 记录锁释放操作
func (pm *PerformanceMonitor) RecordLockRelease() {
	if !pm.IsEnabled() {
		return
	}
	atomic.AddInt64(&pm.metrics.LockReleases, 1)
	pm.touch()
}

// RecordStoreError 记录存储错误
func (pm *PerformanceMonitor) RecordStoreError() {
	if !pm.IsEnabled() {
		return
	}
	atomic.AddInt64(&pm.metrics.StoreErrors, 1)
	pm.touch()
}

// GetMetrics 获取性能指标的副本
func (pm *PerformanceMonitor) GetMetrics() PerformanceMetrics {
	m := &pm.metrics
	return PerformanceMetrics{
		GenerationRequests:       atomic.LoadInt64(&m.GenerationRequests),
		SuccessfulGenerations:    atomic.LoadInt64(&m.SuccessfulGenerations),
		FailedGenerations:        atomic.LoadInt64(&m.FailedGenerations),
		InfeasibleDraws:          atomic.LoadInt64(&m.InfeasibleDraws),
		TicketsGenerated:         atomic.LoadInt64(&m.TicketsGenerated),
		TotalGenerationTime:      atomic.LoadInt64(&m.TotalGenerationTime),
		AverageGenerationTime:    atomic.LoadInt64(&m.AverageGenerationTime),
		DistributionComputations: atomic.LoadInt64(&m.DistributionComputations),
		WinningChecks:            atomic.LoadInt64(&m.WinningChecks),
		LockAcquisitions:         atomic.LoadInt64(&m.LockAcquisitions),
		LockAcquisitionTime:      atomic.LoadInt64(&m.LockAcquisitionTime),
		LockReleases:             atomic.LoadInt64(&m.LockReleases),
		LockFailures:             atomic.LoadInt64(&m.LockFailures),
		StoreErrors:              atomic.LoadInt64(&m.StoreErrors),
		StartTime:                atomic.LoadInt64(&m.StartTime),
		LastUpdateTime:           atomic.LoadInt64(&m.LastUpdateTime),
	}
}

// ResetMetrics 重置性能指标
func (pm *PerformanceMonitor) ResetMetrics() {
	m := &pm.metrics
	for _, p := range []*int64{
		&m.GenerationRequests, &m.SuccessfulGenerations, &m.FailedGenerations,
		&m.InfeasibleDraws, &m.TicketsGenerated, &m.TotalGenerationTime,
		&m.AverageGenerationTime, &m.DistributionComputations, &m.WinningChecks,
		&m.LockAcquisitions, &m.LockAcquisitionTime, &m.LockReleases,
		&m.LockFailures, &m.StoreErrors,
	} {
		atomic.StoreInt64(p, 0)
	}
	now := time.Now().UnixNano()
	atomic.StoreInt64(&m.StartTime, now)
	atomic.StoreInt64(&m.LastUpdateTime, now)
}
