package luckypick

import "time"

const (
	// GameSSQ is the 6+1 game code (red 1-33 pick 6, blue 1-16 pick 1)
	GameSSQ = "ssq"

	// GameDLT is the 5+2 game code (front 1-35 pick 5, back 1-12 pick 2)
	GameDLT = "dlt"

	// MaxPoolSize bounds how many numbers a zone's pool may hold
	MaxPoolSize = 100

	// MaxTicketsPerRequest is the upper bound of tickets generated in one call
	MaxTicketsPerRequest = 20

	// DefaultTicketsPerRequest is used when the caller does not ask for a count
	DefaultTicketsPerRequest = 5

	// DefaultStatsWindow is the default number of recent draws analysed
	DefaultStatsWindow = 30

	// DefaultWinningCheckPeriods is the number of recent draws a ticket is checked against
	DefaultWinningCheckPeriods = 15

	// MaxStatsWindow bounds how many recent draws may be loaded for statistics
	MaxStatsWindow = 500
)

// DefaultAllowedWindows are the statistic windows offered to callers
var DefaultAllowedWindows = []int{10, 30, 50}

const (
	// DefaultLockTimeout is the default timeout for acquiring distributed locks
	DefaultLockTimeout = 30 * time.Second

	// DefaultRetryAttempts is the default number of retry attempts
	DefaultRetryAttempts = 3

	// DefaultRetryInterval is the default interval between retry attempts
	DefaultRetryInterval = 100 * time.Millisecond

	// LockKeyPrefix is the prefix for Redis lock keys
	LockKeyPrefix = "lottery:lock:"

	// HistoryKeyPrefix is the prefix for Redis draw history lists
	HistoryKeyPrefix = "lottery:history:"

	// FavoriteKeyPrefix is the prefix for Redis favorite hashes
	FavoriteKeyPrefix = "lottery:favorites:"

	// DefaultLockExpiration is the default expiration time for locks
	DefaultLockExpiration = 30 * time.Second

	// MaxRetryAttempts is the maximum number of retry attempts allowed
	MaxRetryAttempts = 10

	// MinLockTimeout is the minimum lock timeout allowed
	MinLockTimeout = 1 * time.Second

	// MaxLockTimeout is the maximum lock timeout allowed
	MaxLockTimeout = 5 * time.Minute

	// maxRetryDelay caps the exponential backoff between Redis retries
	maxRetryDelay = 5 * time.Second
)

const (
	// DefaultCircuitBreakerName is the default name for Circuit Breaker
	DefaultCircuitBreakerName = "luckypick-history"

	// DefaultCircuitBreakerMaxRequests is the default max requests
	DefaultCircuitBreakerMaxRequests = 3

	// DefaultCircuitBreakerInterval is the default interval
	DefaultCircuitBreakerInterval = 60 * time.Second

	// DefaultCircuitBreakerTimeout is the default timeout
	DefaultCircuitBreakerTimeout = 30 * time.Second

	// DefaultCircuitBreakerFailureRatio is the default failure ratio
	DefaultCircuitBreakerFailureRatio = 0.6

	// DefaultCircuitBreakerMinRequests is the default min requests
	DefaultCircuitBreakerMinRequests = 3

	// DefaultCircuitBreakerOnStateChange is the default on state change
	DefaultCircuitBreakerOnStateChange = true
)

const (
	DefaultRedisAddr         = "localhost:6379"
	DefaultRedisPassword     = ""
	DefaultRedisDB           = 0
	DefaultRedisPoolSize     = 50
	DefaultRedisMinIdleConns = 10
	DefaultRedisMaxRetries   = 3
	DefaultRedisDialTimeout  = 5 * time.Second
	DefaultRedisReadTimeout  = 3 * time.Second
	DefaultRedisWriteTimeout = 3 * time.Second
	DefaultRedisPoolTimeout  = 4 * time.Second
)

const (
	DefaultLogLevel  = "info"
	DefaultLogFormat = "text"
)

const (
	// DefaultFucaiURL is the China Welfare Lottery site serving ssq results
	DefaultFucaiURL = "https://www.cwl.gov.cn"

	// DefaultTicaiURL is the China Sports Lottery API serving dlt results
	DefaultTicaiURL = "https://webapi.sporttery.cn"

	DefaultFetchTimeout           = 30 * time.Second
	DefaultFetchPageSize          = 30
	DefaultFetchMaxPages          = 5
	DefaultFetchRequestsPerSecond = 1.0

	// DefaultFetchSchedule runs a sync every 30 minutes
	DefaultFetchSchedule = "*/30 * * * *"

	MaxFetchPageSize = 100
	MaxFetchPages    = 100

	// DefaultSyncTimeout bounds one scheduled sync of every game
	DefaultSyncTimeout = 5 * time.Minute
)
