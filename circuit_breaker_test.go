package luckypick

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyHistory fails every call with err while err is set
type flakyHistory struct {
	*MemoryHistoryStore
	err   error
	calls int
}

func (f *flakyHistory) Append(ctx context.Context, gameCode string, record DrawRecord) error {
	f.calls++
	if f.err != nil {
		return f.err
	}
	return f.MemoryHistoryStore.Append(ctx, gameCode, record)
}

func (f *flakyHistory) Latest(ctx context.Context, gameCode string, n int) ([]DrawRecord, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.MemoryHistoryStore.Latest(ctx, gameCode, n)
}

func testBreakerConfig() *CircuitBreakerConfig {
	cfg := DefaultCircuitBreakerConfig()
	cfg.MinRequests = 3
	cfg.FailureRatio = 0.6
	cfg.MaxRequests = 1
	cfg.Timeout = 50 * time.Millisecond
	return cfg
}

func TestCircuitBreakerStore_Trips(t *testing.T) {
	ctx := context.Background()
	repo := &flakyHistory{MemoryHistoryStore: NewMemoryHistoryStore(nil), err: ErrRedisConnectionFailed}
	store := NewCircuitBreakerStore(repo, testBreakerConfig(), nil)

	for range 3 {
		_, err := store.Latest(ctx, GameSSQ, 10)
		assert.ErrorIs(t, err, ErrRedisConnectionFailed)
	}
	assert.Equal(t, "open", store.GetCircuitBreakerState())

	_, err := store.Latest(ctx, GameSSQ, 10)
	assert.ErrorIs(t, err, ErrCircuitBreakerOpen)
	assert.Equal(t, 3, repo.calls)
	assert.False(t, store.HealthCheck()["healthy"].(bool))

	repo.err = nil
	time.Sleep(80 * time.Millisecond)

	require.NoError(t, store.Append(ctx, GameSSQ, ssqRecord("2024001")))
	assert.Equal(t, "closed", store.GetCircuitBreakerState())

	n, err := store.Count(ctx, GameSSQ)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestCircuitBreakerStore_DomainErrorsDoNotTrip(t *testing.T) {
	ctx := context.Background()
	store := NewCircuitBreakerStore(NewMemoryHistoryStore(nil), testBreakerConfig(), nil)

	require.NoError(t, store.Append(ctx, GameSSQ, ssqRecord("2024001")))
	for range 5 {
		err := store.Append(ctx, GameSSQ, ssqRecord("2024001"))
		assert.ErrorIs(t, err, ErrDuplicatePeriod)
	}

	assert.Equal(t, "closed", store.GetCircuitBreakerState())
	counts := store.GetCircuitBreakerCounts()
	assert.Equal(t, uint32(6), counts.TotalSuccesses)
	assert.Zero(t, counts.TotalFailures)
}

func TestCircuitBreakerStore_Reset(t *testing.T) {
	ctx := context.Background()
	repo := &flakyHistory{MemoryHistoryStore: NewMemoryHistoryStore(nil), err: ErrRedisTimeout}
	store := NewCircuitBreakerStore(repo, testBreakerConfig(), nil)

	for range 3 {
		_, _ = store.Latest(ctx, GameDLT, 5)
	}
	require.Equal(t, "open", store.GetCircuitBreakerState())

	store.ResetCircuitBreaker()
	assert.Equal(t, "closed", store.GetCircuitBreakerState())
	assert.Zero(t, store.GetCircuitBreakerCounts().Requests)
}

func TestCircuitBreakerStore_Disabled(t *testing.T) {
	cfg := testBreakerConfig()
	cfg.Enabled = false
	repo := &flakyHistory{MemoryHistoryStore: NewMemoryHistoryStore(nil), err: ErrRedisConnectionFailed}
	store := NewCircuitBreakerStore(repo, cfg, nil)

	for range 5 {
		_, err := store.Latest(context.Background(), GameSSQ, 1)
		assert.ErrorIs(t, err, ErrRedisConnectionFailed)
	}
	assert.Equal(t, 5, repo.calls)
	assert.Equal(t, "disabled", store.GetCircuitBreakerState())

	health := store.HealthCheck()
	assert.Equal(t, true, health["healthy"])
	assert.NotContains(t, store.CollectMetrics(), "circuit_breaker_state")
}

func TestCircuitBreakerStore_Metrics(t *testing.T) {
	store := NewCircuitBreakerStore(NewMemoryHistoryStore(nil), testBreakerConfig(), nil)
	_, err := store.Latest(context.Background(), GameSSQ, 1)
	require.NoError(t, err)

	metrics := store.CollectMetrics()
	assert.Equal(t, "closed", metrics["circuit_breaker_state"])
	assert.Equal(t, 0, metrics["circuit_breaker_state_numeric"])
	assert.Equal(t, uint32(1), metrics["circuit_breaker_requests_total"])
	assert.Equal(t, 1.0, metrics["circuit_breaker_success_rate"])
	assert.Equal(t, -1, stateToNumeric("bogus"))
}
