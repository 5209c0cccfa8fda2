package luckypick

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
)

// Acquisition uses SET NX, release uses a Lua compare-and-delete so only
// the owner can release.
const (
	// releaseLockScript deletes the key only when it still holds our value,
	// so an expired lock re-acquired by another client is left alone.
	releaseLockScript = `
		if redis.call("GET", KEYS[1]) == ARGV[1] then
			return redis.call("DEL", KEYS[1])
		else
			return 0
		end
	`
)

// DistributedLockManager manages Redis distributed locks
type DistributedLockManager struct {
	redisClient   *redis.Client
	lockTimeout   time.Duration
	retryAttempts int
	retryInterval time.Duration

	monitor *PerformanceMonitor
}

// NewLockManager creates a new distributed lock manager
func NewLockManager(redisClient *redis.Client, lockTimeout time.Duration) *DistributedLockManager {
	return NewLockManagerWithRetry(redisClient, lockTimeout, DefaultRetryAttempts, DefaultRetryInterval)
}

// NewLockManagerWithRetry creates a new distributed lock manager with custom retry settings
func NewLockManagerWithRetry(
	redisClient *redis.Client, lockTimeout time.Duration, retryAttempts int, retryInterval time.Duration,
) *DistributedLockManager {
	return &DistributedLockManager{
		redisClient:   redisClient,
		lockTimeout:   lockTimeout,
		retryAttempts: retryAttempts,
		retryInterval: retryInterval,

		monitor: NewPerformanceMonitor(),
	}
}

// SetPerformanceMonitor 设置性能监控器
func (m *DistributedLockManager) SetPerformanceMonitor(monitor *PerformanceMonitor) {
	if monitor != nil {
		m.monitor = monitor
	}
}

func validateLockArgs(lockKey, lockValue string) error {
	if lockKey == "" || lockValue == "" {
		return ErrInvalidParameters.WithDetails("lock key and value cannot be empty")
	}
	return nil
}

// AcquireLock attempts to acquire a distributed lock, retrying a fixed number of times
func (m *DistributedLockManager) AcquireLock(ctx context.Context, lockKey, lockValue string, expireTime time.Duration) (bool, error) {
	if err := validateLockArgs(lockKey, lockValue); err != nil {
		return false, err
	}
	if expireTime <= 0 {
		expireTime = DefaultLockExpiration
	}

	fullLockKey := LockKeyPrefix + lockKey
	start := time.Now()

	for attempt := 0; attempt <= m.retryAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		default:
		}

		acquired, err := m.redisClient.SetNX(ctx, fullLockKey, lockValue, expireTime).Result()
		if err != nil {
			m.monitor.RecordStoreError()
			if attempt == m.retryAttempts {
				return false, ErrRedisConnectionFailed.WithCause(err)
			}
			time.Sleep(m.retryInterval)
			continue
		}

		if acquired {
			m.monitor.RecordLockAcquisition(true, time.Since(start))
			return true, nil
		}

		if attempt < m.retryAttempts {
			time.Sleep(m.retryInterval)
		}
	}

	m.monitor.RecordLockAcquisition(false, time.Since(start))
	return false, ErrLockAcquisitionFailed.WithDetailsf("lock %s is held", lockKey)
}

// ReleaseLock releases the lock if lockValue still owns it. It returns false
// without error when the lock had expired or belongs to someone else.
func (m *DistributedLockManager) ReleaseLock(ctx context.Context, lockKey, lockValue string) (bool, error) {
	if err := validateLockArgs(lockKey, lockValue); err != nil {
		return false, err
	}

	fullLockKey := LockKeyPrefix + lockKey

	for attempt := 0; attempt <= m.retryAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		default:
		}

		result, err := m.redisClient.Eval(ctx, releaseLockScript, []string{fullLockKey}, lockValue).Int64()
		if err != nil {
			m.monitor.RecordStoreError()
			if attempt == m.retryAttempts {
				return false, ErrLockReleaseFailure.WithCause(err)
			}
			time.Sleep(m.retryInterval)
			continue
		}

		if result == 1 {
			m.monitor.RecordLockRelease()
			return true, nil
		}
		return false, nil
	}

	return false, ErrLockReleaseFailure
}

// AcquireLockWithTimeout keeps trying until the lock is acquired or timeout elapses
func (m *DistributedLockManager) AcquireLockWithTimeout(ctx context.Context, lockKey, lockValue string, expireTime, timeout time.Duration) (bool, error) {
	if err := validateLockArgs(lockKey, lockValue); err != nil {
		return false, err
	}
	if expireTime <= 0 {
		expireTime = DefaultLockExpiration
	}
	if timeout <= 0 {
		timeout = m.lockTimeout
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	fullLockKey := LockKeyPrefix + lockKey
	start := time.Now()

	for {
		select {
		case <-timeoutCtx.Done():
			m.monitor.RecordLockAcquisition(false, time.Since(start))
			return false, ErrLockTimeout.WithDetailsf("lock %s not acquired within %v", lockKey, timeout)
		default:
		}

		acquired, err := m.redisClient.SetNX(timeoutCtx, fullLockKey, lockValue, expireTime).Result()
		if err != nil {
			if timeoutCtx.Err() != nil {
				m.monitor.RecordLockAcquisition(false, time.Since(start))
				return false, ErrLockTimeout.WithCause(err)
			}
			m.monitor.RecordStoreError()
		} else if acquired {
			m.monitor.RecordLockAcquisition(true, time.Since(start))
			return true, nil
		}

		select {
		case <-timeoutCtx.Done():
		case <-time.After(m.retryInterval):
		}
	}
}

// TryAcquireLock attempts to acquire a lock once, without retries
func (m *DistributedLockManager) TryAcquireLock(ctx context.Context, lockKey, lockValue string, expireTime time.Duration) (bool, error) {
	if err := validateLockArgs(lockKey, lockValue); err != nil {
		return false, err
	}
	if expireTime <= 0 {
		expireTime = DefaultLockExpiration
	}

	acquired, err := m.redisClient.SetNX(ctx, LockKeyPrefix+lockKey, lockValue, expireTime).Result()
	if err != nil {
		m.monitor.RecordStoreError()
		return false, ErrRedisConnectionFailed.WithCause(err)
	}

	m.monitor.RecordLockAcquisition(acquired, 0)
	return acquired, nil
}
