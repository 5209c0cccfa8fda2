package luckypick

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// HistoryStore keeps draw results in Redis. Per game:
//
//	lottery:history:<game>          list of JSON DrawRecord, newest first
//	lottery:history:<game>:periods  set of recorded periods
type HistoryStore struct {
	redisStore
	games       map[string]*GameConfig
	locker      Locker
	lockTimeout time.Duration
}

// NewHistoryStore creates a history store. A nil locker disables cross-process locking.
func NewHistoryStore(client *redis.Client, games map[string]*GameConfig, locker Locker, logger Logger) *HistoryStore {
	if games == nil {
		games = DefaultGames()
	}
	return &HistoryStore{
		redisStore:  newRedisStore(client, logger),
		games:       games,
		locker:      locker,
		lockTimeout: DefaultLockTimeout,
	}
}

// SetPerformanceMonitor 设置性能监控器
func (s *HistoryStore) SetPerformanceMonitor(monitor *PerformanceMonitor) {
	if monitor != nil {
		s.monitor = monitor
	}
}

func historyKey(gameCode string) string {
	return HistoryKeyPrefix + gameCode
}

func periodsKey(gameCode string) string {
	return HistoryKeyPrefix + gameCode + ":periods"
}

func historyLockKey(gameCode string) string {
	return "history:" + gameCode
}

// Append records a draw as the newest entry. Records must be appended in
// chronological order; a period seen before fails with ErrDuplicatePeriod.
func (s *HistoryStore) Append(ctx context.Context, gameCode string, record DrawRecord) error {
	game, err := LookupGame(s.games, gameCode)
	if err != nil {
		return err
	}
	if err := record.Validate(game); err != nil {
		return err
	}

	data, err := encodeJSON(record)
	if err != nil {
		return err
	}

	if s.locker != nil {
		lockKey, lockValue := historyLockKey(gameCode), uuid.NewString()
		acquired, err := s.locker.AcquireLockWithTimeout(ctx, lockKey, lockValue, DefaultLockExpiration, s.lockTimeout)
		if err != nil {
			return err
		}
		if !acquired {
			return ErrLockAcquisitionFailed.WithGame(gameCode)
		}
		defer func() {
			if _, err := s.locker.ReleaseLock(context.WithoutCancel(ctx), lockKey, lockValue); err != nil {
				s.logger.Error("Failed to release history lock for %s: %v", gameCode, err)
			}
		}()
	}

	var added int64
	err = s.executeWithRetry(ctx, "history.sadd", func() error {
		var err error
		added, err = s.client.SAdd(ctx, periodsKey(gameCode), record.Period).Result()
		return err
	})
	if err != nil {
		return err
	}
	if added == 0 {
		return ErrDuplicatePeriod.WithGame(gameCode).WithDetailsf("period %s", record.Period)
	}

	err = s.executeWithRetry(ctx, "history.lpush", func() error {
		return s.client.LPush(ctx, historyKey(gameCode), data).Err()
	})
	if err != nil {
		// keep the period set consistent with the list
		if rerr := s.client.SRem(context.WithoutCancel(ctx), periodsKey(gameCode), record.Period).Err(); rerr != nil {
			s.logger.Error("Failed to roll back period %s of %s: %v", record.Period, gameCode, rerr)
		}
		return err
	}

	s.logger.Debug("Recorded %s period %s", gameCode, record.Period)
	return nil
}

// Latest returns up to n records, most recent first
func (s *HistoryStore) Latest(ctx context.Context, gameCode string, n int) ([]DrawRecord, error) {
	if _, err := LookupGame(s.games, gameCode); err != nil {
		return nil, err
	}
	if n <= 0 {
		return []DrawRecord{}, nil
	}

	var raw []string
	err := s.executeWithRetry(ctx, "history.lrange", func() error {
		var err error
		raw, err = s.client.LRange(ctx, historyKey(gameCode), 0, int64(n-1)).Result()
		return err
	})
	if err != nil {
		return nil, err
	}

	records := make([]DrawRecord, 0, len(raw))
	for i, item := range raw {
		var r DrawRecord
		if err := decodeJSON([]byte(item), &r); err != nil {
			return nil, fmt.Errorf("history %s entry %d: %w", gameCode, i, err)
		}
		records = append(records, r)
	}
	return records, nil
}

// Count returns the number of stored records of a game
func (s *HistoryStore) Count(ctx context.Context, gameCode string) (int64, error) {
	if _, err := LookupGame(s.games, gameCode); err != nil {
		return 0, err
	}

	var n int64
	err := s.executeWithRetry(ctx, "history.llen", func() error {
		var err error
		n, err = s.client.LLen(ctx, historyKey(gameCode)).Result()
		return err
	})
	return n, err
}
