package luckypick

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// MaxSerializationSize bounds a single stored JSON value (1MB)
const MaxSerializationSize = 1 << 20

// redisStore is the Redis plumbing shared by the repositories: JSON codec,
// retry with exponential backoff for transient errors, and error metrics.
type redisStore struct {
	client         *redis.Client
	logger         Logger
	monitor        *PerformanceMonitor
	retryAttempts  int
	retryBaseDelay time.Duration
}

func newRedisStore(client *redis.Client, logger Logger) redisStore {
	if logger == nil {
		logger = NewSilentLogger()
	}
	return redisStore{
		client:         client,
		logger:         logger,
		monitor:        NewPerformanceMonitor(),
		retryAttempts:  DefaultRetryAttempts,
		retryBaseDelay: DefaultRetryInterval,
	}
}

// executeWithRetry runs fn, retrying transient Redis errors with backoff
// baseDelay * 2^(attempt-1), capped at maxRetryDelay.
func (s *redisStore) executeWithRetry(ctx context.Context, operation string, fn func() error) error {
	var lastErr error
	startTime := time.Now()

	for attempt := 0; attempt <= s.retryAttempts; attempt++ {
		if attempt > 0 {
			delay := min(time.Duration(1<<(attempt-1))*s.retryBaseDelay, maxRetryDelay)

			s.logger.Debug("Retrying %s (attempt %d/%d) after %v, elapsed %v",
				operation, attempt, s.retryAttempts, delay, time.Since(startTime))

			select {
			case <-ctx.Done():
				return fmt.Errorf("context cancelled during retry for %s after %v: %w",
					operation, time.Since(startTime), ctx.Err())
			case <-time.After(delay):
			}
		}

		err := fn()
		if err == nil {
			if attempt > 0 {
				s.logger.Info("%s succeeded after %d retries in %v", operation, attempt, time.Since(startTime))
			}
			return nil
		}

		if err == redis.Nil {
			return err
		}

		lastErr = err
		s.monitor.RecordStoreError()

		if !IsRetryableError(err) {
			s.logger.Debug("Non-retriable error for %s: %v", operation, err)
			return err
		}

		if attempt == s.retryAttempts {
			s.logger.Error("Final retry attempt failed for %s (attempt %d/%d): %v",
				operation, attempt+1, s.retryAttempts+1, err)
		}
	}

	return ErrRedisConnectionFailed.WithCause(lastErr).WithOperation(operation).
		WithDetailsf("%s failed after %d attempts in %v: %v", operation, s.retryAttempts+1, time.Since(startTime), lastErr)
}

func encodeJSON(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, ErrSerializationFailed.WithCause(err)
	}
	if len(data) > MaxSerializationSize {
		return nil, ErrSerializationFailed.WithDetailsf("%d bytes exceeds limit of %d", len(data), MaxSerializationSize)
	}
	return data, nil
}

func decodeJSON(data []byte, v any) error {
	if len(data) == 0 {
		return ErrStateCorrupted.WithDetails("empty value")
	}
	if len(data) > MaxSerializationSize {
		return ErrStateCorrupted.WithDetailsf("%d bytes exceeds limit of %d", len(data), MaxSerializationSize)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return ErrStateCorrupted.WithCause(err).WithDetails(err.Error())
	}
	return nil
}
