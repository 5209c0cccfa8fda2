package luckypick

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-redis/redis/v8"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

// Config 配置结构
type Config struct {
	// Engine config
	Engine *EngineConfig `mapstructure:"engine"`

	// Redis 配置
	Redis *RedisConfig `mapstructure:"redis"`

	// 熔断器配置
	CircuitBreaker *CircuitBreakerConfig `mapstructure:"circuit_breaker"`

	// 日志配置
	Log *LogConfig `mapstructure:"log"`

	// 开奖结果抓取配置
	Fetch *FetchConfig `mapstructure:"fetch"`

	// 彩种配置, 按彩种代码覆盖内置配置
	Games map[string]*GameConfig `mapstructure:"games"`
}

// Validate 验证配置
func (c *Config) Validate() error {
	if c.Engine == nil || c.Redis == nil || c.CircuitBreaker == nil {
		return ErrConfigInvalid.WithDetails("engine, redis and circuit_breaker sections are required")
	}
	if err := c.Engine.Validate(); err != nil {
		return err
	}

	// 验证 Redis 配置
	if c.Redis.Addr == "" {
		return ErrConfigInvalid.WithDetails("redis address is required")
	}
	if c.Redis.PoolSize <= 0 {
		return ErrConfigInvalid.WithDetails("redis pool size must be positive")
	}

	if c.CircuitBreaker.Enabled {
		if c.CircuitBreaker.FailureRatio <= 0 || c.CircuitBreaker.FailureRatio > 1 {
			return ErrConfigInvalid.WithDetailsf("circuit breaker failure ratio %.2f must be in (0, 1]", c.CircuitBreaker.FailureRatio)
		}
	}

	if c.Fetch != nil {
		if err := c.Fetch.Validate(); err != nil {
			return err
		}
	}

	if len(c.Games) == 0 {
		return ErrConfigInvalid.WithDetails("at least one game must be configured")
	}
	for code, g := range c.Games {
		if g == nil || g.Code != code {
			return ErrConfigInvalid.WithDetailsf("game %q: code mismatch", code)
		}
		if err := g.Validate(); err != nil {
			return err
		}
	}

	return nil
}

// EngineConfig 引擎配置
type EngineConfig struct {
	MaxTickets          int           `mapstructure:"max_tickets"`
	DefaultWindow       int           `mapstructure:"default_window"`
	AllowedWindows      []int         `mapstructure:"allowed_windows"`
	WinningCheckPeriods int           `mapstructure:"winning_check_periods"`
	LockTimeout         time.Duration `mapstructure:"lock_timeout"`
	RetryAttempts       int           `mapstructure:"retry_attempts"`
	RetryInterval       time.Duration `mapstructure:"retry_interval"`
}

// Validate 验证引擎配置
func (c *EngineConfig) Validate() error {
	if c.MaxTickets < 1 || c.MaxTickets > MaxTicketsPerRequest {
		return ErrConfigInvalid.WithDetailsf("max_tickets %d must be in [1, %d]", c.MaxTickets, MaxTicketsPerRequest)
	}
	if len(c.AllowedWindows) == 0 {
		return ErrConfigInvalid.WithDetails("allowed_windows cannot be empty")
	}
	for _, w := range c.AllowedWindows {
		if w <= 0 || w > MaxStatsWindow {
			return ErrConfigInvalid.WithDetailsf("window %d must be in [1, %d]", w, MaxStatsWindow)
		}
	}
	if !slices.Contains(c.AllowedWindows, c.DefaultWindow) {
		return ErrConfigInvalid.WithDetailsf("default_window %d is not one of %v", c.DefaultWindow, c.AllowedWindows)
	}
	if c.WinningCheckPeriods <= 0 || c.WinningCheckPeriods > MaxStatsWindow {
		return ErrConfigInvalid.WithDetailsf("winning_check_periods %d must be in [1, %d]", c.WinningCheckPeriods, MaxStatsWindow)
	}
	if c.LockTimeout < MinLockTimeout || c.LockTimeout > MaxLockTimeout {
		return ErrInvalidLockTimeout
	}
	if c.RetryAttempts < 0 || c.RetryAttempts > MaxRetryAttempts {
		return ErrInvalidRetryAttempts
	}
	if c.RetryInterval < 0 {
		return ErrInvalidRetryInterval
	}
	return nil
}

// DefaultEngineConfig 返回默认引擎配置
func DefaultEngineConfig() *EngineConfig {
	return &EngineConfig{
		MaxTickets:          MaxTicketsPerRequest,
		DefaultWindow:       DefaultStatsWindow,
		AllowedWindows:      slices.Clone(DefaultAllowedWindows),
		WinningCheckPeriods: DefaultWinningCheckPeriods,
		LockTimeout:         DefaultLockTimeout,
		RetryAttempts:       DefaultRetryAttempts,
		RetryInterval:       DefaultRetryInterval,
	}
}

// RedisConfig Redis 配置
type RedisConfig struct {
	// 连接配置
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`

	// 连接池配置
	PoolSize     int `mapstructure:"pool_size"`
	MinIdleConns int `mapstructure:"min_idle_conns"`
	MaxRetries   int `mapstructure:"max_retries"`

	// 超时配置
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	PoolTimeout  time.Duration `mapstructure:"pool_timeout"`
}

// DefaultRedisConfig 返回默认的Redis配置
func DefaultRedisConfig() *RedisConfig {
	return &RedisConfig{
		Addr:         DefaultRedisAddr,
		Password:     DefaultRedisPassword,
		DB:           DefaultRedisDB,
		PoolSize:     DefaultRedisPoolSize,
		MinIdleConns: DefaultRedisMinIdleConns,
		MaxRetries:   DefaultRedisMaxRetries,
		DialTimeout:  DefaultRedisDialTimeout,
		ReadTimeout:  DefaultRedisReadTimeout,
		WriteTimeout: DefaultRedisWriteTimeout,
		PoolTimeout:  DefaultRedisPoolTimeout,
	}
}

// NewRedisClientFromConfig 从配置创建Redis客户端
func NewRedisClientFromConfig(config *RedisConfig) *redis.Client {
	if config == nil {
		config = DefaultRedisConfig()
	}

	return redis.NewClient(&redis.Options{
		Addr:         config.Addr,
		Password:     config.Password,
		DB:           config.DB,
		PoolSize:     config.PoolSize,
		MinIdleConns: config.MinIdleConns,
		MaxRetries:   config.MaxRetries,
		DialTimeout:  config.DialTimeout,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		PoolTimeout:  config.PoolTimeout,
	})
}

// CircuitBreakerConfig 熔断器配置
type CircuitBreakerConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	Name          string        `mapstructure:"name"`
	MaxRequests   uint32        `mapstructure:"max_requests"`
	Interval      time.Duration `mapstructure:"interval"`
	Timeout       time.Duration `mapstructure:"timeout"`
	FailureRatio  float64       `mapstructure:"failure_ratio"`
	MinRequests   uint32        `mapstructure:"min_requests"`
	OnStateChange bool          `mapstructure:"on_state_change"`
}

// DefaultCircuitBreakerConfig 返回默认熔断器配置
func DefaultCircuitBreakerConfig() *CircuitBreakerConfig {
	return &CircuitBreakerConfig{
		Enabled:       true,
		Name:          DefaultCircuitBreakerName,
		MaxRequests:   DefaultCircuitBreakerMaxRequests,
		Interval:      DefaultCircuitBreakerInterval,
		Timeout:       DefaultCircuitBreakerTimeout,
		FailureRatio:  DefaultCircuitBreakerFailureRatio,
		MinRequests:   DefaultCircuitBreakerMinRequests,
		OnStateChange: DefaultCircuitBreakerOnStateChange,
	}
}

// FetchConfig 开奖结果抓取配置
type FetchConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	FucaiURL          string        `mapstructure:"fucai_url"` // 福彩 (双色球)
	TicaiURL          string        `mapstructure:"ticai_url"` // 体彩 (大乐透)
	Timeout           time.Duration `mapstructure:"timeout"`
	PageSize          int           `mapstructure:"page_size"`
	MaxPages          int           `mapstructure:"max_pages"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Schedule          string        `mapstructure:"schedule"` // 标准 cron 表达式
}

// Validate 验证抓取配置
func (c *FetchConfig) Validate() error {
	if c.PageSize < 1 || c.PageSize > MaxFetchPageSize {
		return ErrConfigInvalid.WithDetailsf("fetch page_size %d must be in [1, %d]", c.PageSize, MaxFetchPageSize)
	}
	if c.MaxPages < 1 || c.MaxPages > MaxFetchPages {
		return ErrConfigInvalid.WithDetailsf("fetch max_pages %d must be in [1, %d]", c.MaxPages, MaxFetchPages)
	}
	if c.RequestsPerSecond <= 0 {
		return ErrConfigInvalid.WithDetails("fetch requests_per_second must be positive")
	}
	if c.Timeout <= 0 {
		return ErrConfigInvalid.WithDetails("fetch timeout must be positive")
	}
	if !c.Enabled {
		return nil
	}
	if c.FucaiURL == "" || c.TicaiURL == "" {
		return ErrConfigInvalid.WithDetails("fetch urls are required when fetching is enabled")
	}
	if _, err := cron.ParseStandard(c.Schedule); err != nil {
		return ErrConfigInvalid.WithCause(err).WithDetailsf("fetch schedule %q: %v", c.Schedule, err)
	}
	return nil
}

// DefaultFetchConfig 返回默认抓取配置, 默认关闭
func DefaultFetchConfig() *FetchConfig {
	return &FetchConfig{
		Enabled:           false,
		FucaiURL:          DefaultFucaiURL,
		TicaiURL:          DefaultTicaiURL,
		Timeout:           DefaultFetchTimeout,
		PageSize:          DefaultFetchPageSize,
		MaxPages:          DefaultFetchMaxPages,
		RequestsPerSecond: DefaultFetchRequestsPerSecond,
		Schedule:          DefaultFetchSchedule,
	}
}

// DefaultConfig 返回完整的默认配置
func DefaultConfig() *Config {
	return &Config{
		Engine:         DefaultEngineConfig(),
		Redis:          DefaultRedisConfig(),
		CircuitBreaker: DefaultCircuitBreakerConfig(),
		Log:            DefaultLogConfig(),
		Fetch:          DefaultFetchConfig(),
		Games:          DefaultGames(),
	}
}

// ConfigManager 配置管理器
type ConfigManager struct {
	viper  *viper.Viper
	mu     sync.RWMutex
	config *Config
	logger Logger
}

// NewConfigManager 创建配置管理器
func NewConfigManager() *ConfigManager {
	v := viper.New()

	// 设置配置文件名和路径
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/luckypick")
	v.AddConfigPath("$HOME/.luckypick")

	// 设置环境变量前缀
	v.SetEnvPrefix("LUCKYPICK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cm := &ConfigManager{viper: v, logger: NewSilentLogger()}
	cm.setDefaults()
	return cm
}

// NewConfigManagerFromFile 创建只读取指定配置文件的配置管理器
func NewConfigManagerFromFile(path string) *ConfigManager {
	cm := NewConfigManager()
	cm.viper.SetConfigFile(path)
	return cm
}

// NewDefaultConfigManager 创建使用默认配置的配置管理器, 不读取文件
func NewDefaultConfigManager() *ConfigManager {
	cm := NewConfigManager()
	cm.config = DefaultConfig()
	return cm
}

// NewConfigManagerWithConfig 使用给定配置创建配置管理器
func NewConfigManagerWithConfig(config *Config) (*ConfigManager, error) {
	if config == nil {
		return nil, ErrInvalidParameters.WithDetails("config cannot be nil")
	}
	config = withDefaultGames(config)
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	cm := NewConfigManager()
	cm.config = config
	return cm, nil
}

// SetLogger 设置日志记录器, 用于记录配置热加载结果
func (cm *ConfigManager) SetLogger(logger Logger) {
	if logger == nil {
		return
	}
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.logger = logger
}

// LoadConfig 加载配置
func (cm *ConfigManager) LoadConfig() (*Config, error) {
	// 读取配置文件
	if err := cm.viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// 配置文件不存在时使用默认配置
	}

	config, err := cm.decode()
	if err != nil {
		return nil, err
	}

	cm.mu.Lock()
	cm.config = config
	cm.mu.Unlock()

	return config, nil
}

// decode 解析并验证当前 viper 中的配置
func (cm *ConfigManager) decode() (*Config, error) {
	config := &Config{}
	if err := cm.viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	config = withDefaultGames(config)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return config, nil
}

// withDefaultGames 以配置中的彩种覆盖内置彩种
func withDefaultGames(config *Config) *Config {
	games := DefaultGames()
	for code, g := range config.Games {
		if g == nil {
			continue
		}
		if g.Code == "" {
			g.Code = code
		}
		games[code] = g
	}
	config.Games = games

	if config.Log == nil {
		config.Log = DefaultLogConfig()
	}
	if config.Fetch == nil {
		config.Fetch = DefaultFetchConfig()
	}
	return config
}

// setDefaults 设置默认配置值
func (cm *ConfigManager) setDefaults() {
	// 引擎默认配置
	cm.viper.SetDefault("engine.max_tickets", MaxTicketsPerRequest)
	cm.viper.SetDefault("engine.default_window", DefaultStatsWindow)
	cm.viper.SetDefault("engine.allowed_windows", DefaultAllowedWindows)
	cm.viper.SetDefault("engine.winning_check_periods", DefaultWinningCheckPeriods)
	cm.viper.SetDefault("engine.lock_timeout", "30s")
	cm.viper.SetDefault("engine.retry_attempts", DefaultRetryAttempts)
	cm.viper.SetDefault("engine.retry_interval", "100ms")

	// Redis 默认配置
	cm.viper.SetDefault("redis.addr", DefaultRedisAddr)
	cm.viper.SetDefault("redis.password", "")
	cm.viper.SetDefault("redis.db", 0)
	cm.viper.SetDefault("redis.pool_size", DefaultRedisPoolSize)
	cm.viper.SetDefault("redis.min_idle_conns", DefaultRedisMinIdleConns)
	cm.viper.SetDefault("redis.max_retries", DefaultRedisMaxRetries)
	cm.viper.SetDefault("redis.dial_timeout", "5s")
	cm.viper.SetDefault("redis.read_timeout", "3s")
	cm.viper.SetDefault("redis.write_timeout", "3s")
	cm.viper.SetDefault("redis.pool_timeout", "4s")

	// 熔断器默认配置
	cm.viper.SetDefault("circuit_breaker.enabled", true)
	cm.viper.SetDefault("circuit_breaker.name", DefaultCircuitBreakerName)
	cm.viper.SetDefault("circuit_breaker.max_requests", DefaultCircuitBreakerMaxRequests)
	cm.viper.SetDefault("circuit_breaker.interval", "60s")
	cm.viper.SetDefault("circuit_breaker.timeout", "30s")
	cm.viper.SetDefault("circuit_breaker.failure_ratio", DefaultCircuitBreakerFailureRatio)
	cm.viper.SetDefault("circuit_breaker.min_requests", DefaultCircuitBreakerMinRequests)
	cm.viper.SetDefault("circuit_breaker.on_state_change", true)

	// 日志默认配置
	cm.viper.SetDefault("log.level", DefaultLogLevel)
	cm.viper.SetDefault("log.format", DefaultLogFormat)
	cm.viper.SetDefault("log.file", "")

	// 抓取默认配置
	cm.viper.SetDefault("fetch.enabled", false)
	cm.viper.SetDefault("fetch.fucai_url", DefaultFucaiURL)
	cm.viper.SetDefault("fetch.ticai_url", DefaultTicaiURL)
	cm.viper.SetDefault("fetch.timeout", "30s")
	cm.viper.SetDefault("fetch.page_size", DefaultFetchPageSize)
	cm.viper.SetDefault("fetch.max_pages", DefaultFetchMaxPages)
	cm.viper.SetDefault("fetch.requests_per_second", DefaultFetchRequestsPerSecond)
	cm.viper.SetDefault("fetch.schedule", DefaultFetchSchedule)
}

// WatchConfig 监听配置变化, 新配置通过验证后才会生效
func (cm *ConfigManager) WatchConfig(callback func(*Config)) {
	cm.viper.OnConfigChange(func(e fsnotify.Event) {
		cm.mu.RLock()
		logger := cm.logger
		cm.mu.RUnlock()

		config, err := cm.decode()
		if err != nil {
			// 记录错误但不中断服务
			logger.Error("Ignoring config change from %s: %v", e.Name, err)
			return
		}

		cm.mu.Lock()
		cm.config = config
		cm.mu.Unlock()

		logger.Info("Config reloaded from %s (%s)", e.Name, e.Op)
		if callback != nil {
			callback(config)
		}
	})
	cm.viper.WatchConfig()
}

// GetConfig 获取当前配置
func (cm *ConfigManager) GetConfig() *Config {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.config
}

// SetConfig 验证并替换当前配置
func (cm *ConfigManager) SetConfig(config *Config) error {
	if config == nil {
		return ErrInvalidParameters.WithDetails("config cannot be nil")
	}
	config = withDefaultGames(config)
	if err := config.Validate(); err != nil {
		return err
	}

	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.config = config
	return nil
}

// ReloadConfig 重新加载配置
func (cm *ConfigManager) ReloadConfig() (*Config, error) { return cm.LoadConfig() }
