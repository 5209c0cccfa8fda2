package luckypick

import (
	"context"
	"time"
)

// RandomGenerator is the entropy source consumed by Draw
type RandomGenerator interface {
	// GenerateInRange returns a uniform number in [min, max] (inclusive)
	GenerateInRange(min, max int) (int, error)
}

// HistoryRepository stores official draw results per game, newest first
type HistoryRepository interface {
	// Append records a new draw. A period that was already recorded yields ErrDuplicatePeriod.
	Append(ctx context.Context, gameCode string, record DrawRecord) error

	// Latest returns up to n records, most recent first
	Latest(ctx context.Context, gameCode string, n int) ([]DrawRecord, error)

	// Count returns the number of stored records
	Count(ctx context.Context, gameCode string) (int64, error)
}

// FavoriteRepository persists user favorite tickets
type FavoriteRepository interface {
	Save(ctx context.Context, fav *Favorite) (*Favorite, error)
	List(ctx context.Context, userID, gameCode string) ([]*Favorite, error)
	Rename(ctx context.Context, userID, id, nickname string) (*Favorite, error)
	Delete(ctx context.Context, userID, id string) error
}

// Locker serialises writers across processes
type Locker interface {
	AcquireLockWithTimeout(ctx context.Context, lockKey, lockValue string, expireTime, timeout time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, lockKey, lockValue string) (bool, error)
}
