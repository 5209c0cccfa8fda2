package luckypick

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sony/gobreaker"
)

// CircuitBreakerStore 带熔断器的开奖历史存储
type CircuitBreakerStore struct {
	repo HistoryRepository

	mu      sync.RWMutex
	breaker *gobreaker.CircuitBreaker
	logger  Logger
	config  *CircuitBreakerConfig
}

// NewCircuitBreakerStore 创建带熔断器的历史存储
func NewCircuitBreakerStore(repo HistoryRepository, config *CircuitBreakerConfig, logger Logger) *CircuitBreakerStore {
	if config == nil {
		config = DefaultCircuitBreakerConfig()
	}
	if logger == nil {
		logger = NewSilentLogger()
	}

	s := &CircuitBreakerStore{
		repo:   repo,
		logger: logger,
		config: config,
	}
	// 未启用时为透传包装器
	if config.Enabled {
		s.breaker = s.newBreaker()
	}
	return s
}

func (s *CircuitBreakerStore) newBreaker() *gobreaker.CircuitBreaker {
	config := s.config
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        config.Name,
		MaxRequests: config.MaxRequests,
		Interval:    config.Interval,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			// 当请求数达到最小要求且失败率超过阈值时触发熔断
			return counts.Requests >= config.MinRequests &&
				float64(counts.TotalFailures)/float64(counts.Requests) >= config.FailureRatio
		},
		// 参数或业务错误 (重复期号、未知彩种等) 不计入失败
		IsSuccessful: func(err error) bool {
			return err == nil || !IsRetryableError(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if config.OnStateChange {
				s.logger.Info("Circuit breaker '%s' state changed from %s to %s", name, from, to)
			}
		},
	})
}

// executeWithBreaker 使用熔断器执行操作
func (s *CircuitBreakerStore) executeWithBreaker(operation func() (any, error)) (any, error) {
	s.mu.RLock()
	breaker := s.breaker
	s.mu.RUnlock()

	if breaker == nil {
		return operation()
	}

	result, err := breaker.Execute(operation)
	switch {
	case errors.Is(err, gobreaker.ErrOpenState):
		return nil, ErrCircuitBreakerOpen.WithDetails("circuit breaker is open, requests are being rejected")
	case errors.Is(err, gobreaker.ErrTooManyRequests):
		return nil, ErrCircuitBreakerOpen.WithDetails("too many requests, circuit breaker is half-open")
	}
	return result, err
}

// Append 追加开奖记录
func (s *CircuitBreakerStore) Append(ctx context.Context, gameCode string, record DrawRecord) error {
	_, err := s.executeWithBreaker(func() (any, error) {
		return nil, s.repo.Append(ctx, gameCode, record)
	})
	return err
}

// Latest 读取最近 n 期开奖记录
func (s *CircuitBreakerStore) Latest(ctx context.Context, gameCode string, n int) ([]DrawRecord, error) {
	result, err := s.executeWithBreaker(func() (any, error) {
		return s.repo.Latest(ctx, gameCode, n)
	})
	if err != nil {
		return nil, err
	}
	return result.([]DrawRecord), nil
}

// Count 返回已存储的期数
func (s *CircuitBreakerStore) Count(ctx context.Context, gameCode string) (int64, error) {
	result, err := s.executeWithBreaker(func() (any, error) {
		return s.repo.Count(ctx, gameCode)
	})
	if err != nil {
		return 0, err
	}
	return result.(int64), nil
}

// GetCircuitBreakerState 获取熔断器状态
func (s *CircuitBreakerStore) GetCircuitBreakerState() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.breaker == nil {
		return "disabled"
	}

	switch s.breaker.State() {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// GetCircuitBreakerCounts 获取熔断器统计信息
func (s *CircuitBreakerStore) GetCircuitBreakerCounts() gobreaker.Counts {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.breaker == nil {
		return gobreaker.Counts{}
	}
	return s.breaker.Counts()
}

// ResetCircuitBreaker 重置熔断器 (gobreaker 没有 Reset 方法, 重新创建实例)
func (s *CircuitBreakerStore) ResetCircuitBreaker() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.breaker == nil {
		return
	}
	s.breaker = s.newBreaker()
	s.logger.Info("Circuit breaker '%s' has been reset (recreated)", s.config.Name)
}

// HealthCheck 熔断器健康检查
func (s *CircuitBreakerStore) HealthCheck() map[string]any {
	result := map[string]any{
		"circuit_breaker_enabled": s.config.Enabled,
	}

	state := s.GetCircuitBreakerState()
	if state == "disabled" {
		result["state"] = state
		result["healthy"] = true
		return result
	}

	counts := s.GetCircuitBreakerCounts()
	result["state"] = state
	result["requests"] = counts.Requests
	result["total_successes"] = counts.TotalSuccesses
	result["total_failures"] = counts.TotalFailures
	result["consecutive_failures"] = counts.ConsecutiveFailures
	result["success_rate"], result["failure_rate"] = rates(counts)

	healthy := true
	switch state {
	case "open":
		healthy = false
	case "half-open":
		// 半开状态下连续失败过多视为不健康
		healthy = counts.ConsecutiveFailures <= 2
	}
	result["healthy"] = healthy

	return result
}

// CollectMetrics 收集熔断器指标
func (s *CircuitBreakerStore) CollectMetrics() map[string]any {
	metrics := map[string]any{
		"circuit_breaker_enabled": s.config.Enabled,
		"timestamp":               time.Now().Unix(),
	}

	state := s.GetCircuitBreakerState()
	if state == "disabled" {
		return metrics
	}

	counts := s.GetCircuitBreakerCounts()
	metrics["circuit_breaker_state"] = state
	metrics["circuit_breaker_state_numeric"] = stateToNumeric(state)
	metrics["circuit_breaker_requests_total"] = counts.Requests
	metrics["circuit_breaker_successes_total"] = counts.TotalSuccesses
	metrics["circuit_breaker_failures_total"] = counts.TotalFailures
	metrics["circuit_breaker_consecutive_successes"] = counts.ConsecutiveSuccesses
	metrics["circuit_breaker_consecutive_failures"] = counts.ConsecutiveFailures
	metrics["circuit_breaker_success_rate"], metrics["circuit_breaker_failure_rate"] = rates(counts)
	metrics["circuit_breaker_max_requests"] = s.config.MaxRequests
	metrics["circuit_breaker_failure_ratio_threshold"] = s.config.FailureRatio
	metrics["circuit_breaker_min_requests"] = s.config.MinRequests
	metrics["circuit_breaker_timeout_seconds"] = s.config.Timeout.Seconds()

	return metrics
}

func rates(counts gobreaker.Counts) (success, failure float64) {
	if counts.Requests == 0 {
		return 0, 0
	}
	return float64(counts.TotalSuccesses) / float64(counts.Requests),
		float64(counts.TotalFailures) / float64(counts.Requests)
}

// stateToNumeric 将状态转换为数值
func stateToNumeric(state string) int {
	switch state {
	case "closed":
		return 0
	case "half-open":
		return 1
	case "open":
		return 2
	default:
		return -1
	}
}
