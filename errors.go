package luckypick

import (
	"errors"
	"fmt"
	"maps"
	"runtime"
	"strings"
	"time"
)

// ErrorCode 错误代码类型
type ErrorCode string

// 错误代码常量
const (
	// 系统级错误 (1000-1999)
	ErrCodeSystem             ErrorCode = "LOTTERY_1000"
	ErrCodeRedisConnection    ErrorCode = "LOTTERY_1001"
	ErrCodeRedisTimeout       ErrorCode = "LOTTERY_1002"
	ErrCodeConfigInvalid      ErrorCode = "LOTTERY_1004"
	ErrCodeServiceUnavailable ErrorCode = "LOTTERY_1005"

	// 业务级错误 (2000-2999)
	ErrCodeInvalidParameters    ErrorCode = "LOTTERY_2000"
	ErrCodeInvalidRange         ErrorCode = "LOTTERY_2001"
	ErrCodeInvalidCount         ErrorCode = "LOTTERY_2002"
	ErrCodeInvalidLockTimeout   ErrorCode = "LOTTERY_2010"
	ErrCodeInvalidRetryAttempts ErrorCode = "LOTTERY_2011"
	ErrCodeInvalidRetryInterval ErrorCode = "LOTTERY_2012"
	ErrCodeInvalidConstraint    ErrorCode = "LOTTERY_2100"
	ErrCodeInsufficientPool     ErrorCode = "LOTTERY_2101"
	ErrCodeUnknownGame          ErrorCode = "LOTTERY_2102"
	ErrCodeInvalidWindow        ErrorCode = "LOTTERY_2103"
	ErrCodeInvalidTicket        ErrorCode = "LOTTERY_2104"
	ErrCodeInvalidDrawRecord    ErrorCode = "LOTTERY_2105"
	ErrCodeDuplicatePeriod      ErrorCode = "LOTTERY_2106"
	ErrCodeFavoriteNotFound     ErrorCode = "LOTTERY_2107"

	// 锁相关错误 (3000-3999)
	ErrCodeLockAcquisitionFailed ErrorCode = "LOTTERY_3000"
	ErrCodeLockTimeout           ErrorCode = "LOTTERY_3001"
	ErrCodeLockReleaseFailure    ErrorCode = "LOTTERY_3002"

	// 限流相关错误 (5000-5999)
	ErrCodeCircuitBreakerOpen ErrorCode = "LOTTERY_5002"

	// 状态相关错误 (6000-6999)
	ErrCodeStateCorrupted        ErrorCode = "LOTTERY_6003"
	ErrCodeSerializationFailed   ErrorCode = "LOTTERY_6004"
	ErrCodeDeserializationFailed ErrorCode = "LOTTERY_6005"
	ErrCodeStoreUnavailable      ErrorCode = "LOTTERY_6006"
	ErrCodeFetchFailed           ErrorCode = "LOTTERY_6007"
)

// ErrorSeverity 错误严重程度
type ErrorSeverity string

const (
	SeverityCritical ErrorSeverity = "critical"
	SeverityHigh     ErrorSeverity = "high"
	SeverityMedium   ErrorSeverity = "medium"
	SeverityLow      ErrorSeverity = "low"
	SeverityInfo     ErrorSeverity = "info"
)

// LotteryError 增强的错误类型
type LotteryError struct {
	Code       ErrorCode      `json:"code"`
	Message    string         `json:"message"`
	Details    string         `json:"details,omitempty"`
	Severity   ErrorSeverity  `json:"severity"`
	Timestamp  time.Time      `json:"timestamp"`
	UserID     string         `json:"user_id,omitempty"`
	GameCode   string         `json:"game_code,omitempty"`
	Operation  string         `json:"operation,omitempty"`
	StackTrace string         `json:"stack_trace,omitempty"`
	Cause      error          `json:"-"`
	Retryable  bool           `json:"retryable"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// Error 实现 error 接口
func (e *LotteryError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap 实现 errors.Unwrap 接口
func (e *LotteryError) Unwrap() error {
	return e.Cause
}

// Is 实现 errors.Is 接口, 以错误代码匹配
func (e *LotteryError) Is(target error) bool {
	if t, ok := target.(*LotteryError); ok {
		return e.Code == t.Code
	}
	return false
}

// clone 复制错误, 预定义的错误实例为包级共享变量, 不能被原地修改
func (e *LotteryError) clone() *LotteryError {
	c := *e
	c.Timestamp = time.Now()
	if e.Metadata != nil {
		c.Metadata = maps.Clone(e.Metadata)
	}
	return &c
}

// WithCause 添加原因错误
func (e *LotteryError) WithCause(cause error) *LotteryError {
	c := e.clone()
	c.Cause = cause
	return c
}

// WithDetails 添加详细信息
func (e *LotteryError) WithDetails(details string) *LotteryError {
	c := e.clone()
	c.Details = details
	return c
}

// WithDetailsf 以格式化字符串添加详细信息
func (e *LotteryError) WithDetailsf(format string, args ...any) *LotteryError {
	return e.WithDetails(fmt.Sprintf(format, args...))
}

// WithUserID 添加用户ID
func (e *LotteryError) WithUserID(userID string) *LotteryError {
	c := e.clone()
	c.UserID = userID
	return c
}

// WithGame 添加彩种代码
func (e *LotteryError) WithGame(gameCode string) *LotteryError {
	c := e.clone()
	c.GameCode = gameCode
	return c
}

// WithOperation 添加操作信息
func (e *LotteryError) WithOperation(operation string) *LotteryError {
	c := e.clone()
	c.Operation = operation
	return c
}

// WithMetadata 添加元数据
func (e *LotteryError) WithMetadata(key string, value any) *LotteryError {
	c := e.clone()
	if c.Metadata == nil {
		c.Metadata = make(map[string]any)
	}
	c.Metadata[key] = value
	return c
}

// WithStackTrace 添加堆栈跟踪
func (e *LotteryError) WithStackTrace() *LotteryError {
	c := e.clone()
	buf := make([]byte, 4096)
	n := runtime.Stack(buf, false)
	c.StackTrace = string(buf[:n])
	return c
}

// NewError 创建新的错误
func NewError(code ErrorCode, message string) *LotteryError {
	return &LotteryError{
		Code:      code,
		Message:   message,
		Severity:  SeverityMedium,
		Timestamp: time.Now(),
		Retryable: false,
	}
}

// NewRetryableError 创建可重试的错误
func NewRetryableError(code ErrorCode, message string) *LotteryError {
	return &LotteryError{
		Code:      code,
		Message:   message,
		Severity:  SeverityMedium,
		Timestamp: time.Now(),
		Retryable: true,
	}
}

// NewCriticalError 创建严重错误
func NewCriticalError(code ErrorCode, message string) *LotteryError {
	err := &LotteryError{
		Code:      code,
		Message:   message,
		Severity:  SeverityCritical,
		Timestamp: time.Now(),
		Retryable: false,
	}
	return err.WithStackTrace()
}

// 预定义的错误实例
var (
	// 系统级错误
	ErrSystemError           = NewCriticalError(ErrCodeSystem, "system error occurred")
	ErrRedisConnectionFailed = NewRetryableError(ErrCodeRedisConnection, "Redis connection failed")
	ErrRedisTimeout          = NewRetryableError(ErrCodeRedisTimeout, "Redis operation timeout")
	ErrConfigInvalid         = NewCriticalError(ErrCodeConfigInvalid, "configuration is invalid")
	ErrServiceUnavailable    = NewRetryableError(ErrCodeServiceUnavailable, "service temporarily unavailable")

	// 业务级错误
	ErrInvalidParameters    = NewError(ErrCodeInvalidParameters, "invalid parameters provided")
	ErrInvalidRange         = NewError(ErrCodeInvalidRange, "invalid range: min must be less than or equal to max")
	ErrInvalidCount         = NewError(ErrCodeInvalidCount, "invalid count: must be between 1 and the configured maximum")
	ErrInvalidLockTimeout   = NewError(ErrCodeInvalidLockTimeout, "invalid lock timeout: must be between 1s and 5m")
	ErrInvalidRetryAttempts = NewError(ErrCodeInvalidRetryAttempts, "invalid retry attempts: must be between 0 and 10")
	ErrInvalidRetryInterval = NewError(ErrCodeInvalidRetryInterval, "invalid retry interval: cannot be negative")
	ErrInvalidConstraint    = NewError(ErrCodeInvalidConstraint, "invalid number constraints")
	ErrInsufficientPool     = NewError(ErrCodeInsufficientPool, "not enough eligible numbers left to complete the draw")
	ErrUnknownGame          = NewError(ErrCodeUnknownGame, "unknown game")
	ErrInvalidWindow        = NewError(ErrCodeInvalidWindow, "invalid statistics window")
	ErrInvalidTicket        = NewError(ErrCodeInvalidTicket, "invalid ticket numbers")
	ErrInvalidDrawRecord    = NewError(ErrCodeInvalidDrawRecord, "invalid draw record")
	ErrDuplicatePeriod      = NewError(ErrCodeDuplicatePeriod, "draw period already recorded")
	ErrFavoriteNotFound     = NewError(ErrCodeFavoriteNotFound, "favorite not found")

	// 锁相关错误
	ErrLockAcquisitionFailed = NewRetryableError(ErrCodeLockAcquisitionFailed, "failed to acquire distributed lock")
	ErrLockTimeout           = NewRetryableError(ErrCodeLockTimeout, "lock acquisition timeout")
	ErrLockReleaseFailure    = NewError(ErrCodeLockReleaseFailure, "failed to release lock")

	// 限流相关错误
	ErrCircuitBreakerOpen = NewRetryableError(ErrCodeCircuitBreakerOpen, "circuit breaker is open")

	// 状态相关错误
	ErrStateCorrupted        = NewError(ErrCodeStateCorrupted, "stored data is corrupted")
	ErrSerializationFailed   = NewError(ErrCodeSerializationFailed, "serialization failed")
	ErrDeserializationFailed = NewError(ErrCodeDeserializationFailed, "deserialization failed")
	ErrStoreUnavailable      = NewError(ErrCodeStoreUnavailable, "no store configured for this operation")
	ErrFetchFailed           = NewRetryableError(ErrCodeFetchFailed, "fetching draw results failed")
)

// retryablePatterns 可重试的网络/Redis错误特征
var retryablePatterns = []string{
	"connection refused",
	"connection reset",
	"timeout",
	"network is unreachable",
	"temporary failure",
	"server closed",
	"broken pipe",
	"i/o timeout",
	"dial tcp",
	"read tcp",
	"write tcp",
	"connection timed out",
	"no route to host",
	"host is down",
	"connection aborted",
	"socket is not connected",
	"operation timed out",
	"redis: connection pool timeout",
	"redis: client is closed",
	"context deadline exceeded",
}

// IsRetryableError 检查是否为可重试错误
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}

	var le *LotteryError
	if errors.As(err, &le) {
		return le.Retryable
	}

	errStr := strings.ToLower(err.Error())
	for _, pattern := range retryablePatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}

	return false
}
