package luckypick

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// Engine ties the game catalog, random source, history and favorites together
type Engine struct {
	configManager *ConfigManager
	logger        Logger
	generator     RandomGenerator
	history       HistoryRepository
	favorites     FavoriteRepository
	fetchers      map[string]ResultFetcher
	mu            sync.RWMutex // 保护配置和依赖的并发访问

	performanceMonitor *PerformanceMonitor
}

// NewEngine creates an engine over the given repositories. A nil configManager
// uses the built-in defaults; a nil history falls back to an in-memory store.
func NewEngine(configManager *ConfigManager, history HistoryRepository, favorites FavoriteRepository) *Engine {
	return NewEngineWithLogger(configManager, history, favorites, NewDefaultLogger())
}

// NewEngineWithLogger creates an engine with a custom logger
func NewEngineWithLogger(
	configManager *ConfigManager, history HistoryRepository, favorites FavoriteRepository, logger Logger,
) *Engine {
	if configManager == nil {
		configManager = NewDefaultConfigManager()
	}
	if configManager.GetConfig() == nil {
		_ = configManager.SetConfig(DefaultConfig())
	}
	if history == nil {
		history = NewMemoryHistoryStore(configManager.GetConfig().Games)
	}
	if logger == nil {
		logger = NewSilentLogger()
	}

	return &Engine{
		configManager: configManager,
		logger:        logger,
		generator:     NewSecureRandomGenerator(),
		history:       history,
		favorites:     favorites,
		fetchers:      make(map[string]ResultFetcher),

		performanceMonitor: NewPerformanceMonitor(),
	}
}

// NewRedisEngine wires the Redis-backed history (behind the circuit breaker and
// the distributed lock) and favorite stores from the manager's configuration.
func NewRedisEngine(redisClient *redis.Client, configManager *ConfigManager, logger Logger) *Engine {
	if configManager == nil {
		configManager = NewDefaultConfigManager()
	}
	if configManager.GetConfig() == nil {
		_ = configManager.SetConfig(DefaultConfig())
	}
	if logger == nil {
		logger = NewDefaultLogger()
	}
	config := configManager.GetConfig()
	monitor := NewPerformanceMonitor()

	lockManager := NewLockManagerWithRetry(
		redisClient,
		config.Engine.LockTimeout,
		config.Engine.RetryAttempts,
		config.Engine.RetryInterval,
	)
	lockManager.SetPerformanceMonitor(monitor)

	historyStore := NewHistoryStore(redisClient, config.Games, lockManager, logger)
	historyStore.lockTimeout = config.Engine.LockTimeout
	historyStore.retryAttempts = config.Engine.RetryAttempts
	historyStore.retryBaseDelay = config.Engine.RetryInterval
	historyStore.SetPerformanceMonitor(monitor)

	favoriteStore := NewFavoriteStore(redisClient, config.Games, logger)
	favoriteStore.retryAttempts = config.Engine.RetryAttempts
	favoriteStore.retryBaseDelay = config.Engine.RetryInterval
	favoriteStore.monitor = monitor

	e := NewEngineWithLogger(
		configManager,
		NewCircuitBreakerStore(historyStore, config.CircuitBreaker, logger),
		favoriteStore,
		logger,
	)
	e.performanceMonitor = monitor

	if config.Fetch != nil && config.Fetch.Enabled {
		for _, f := range []ResultFetcher{NewFucaiFetcher(config.Fetch, logger), NewTicaiFetcher(config.Fetch, logger)} {
			if _, ok := config.Games[f.GameCode()]; ok {
				e.SetResultFetcher(f)
			}
		}
	}
	return e
}

// GetConfig returns the current configuration
func (e *Engine) GetConfig() *Config {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.configManager.GetConfig()
}

// UpdateConfig validates and applies a new configuration at runtime
func (e *Engine) UpdateConfig(newConfig *Config) error {
	e.logger.Debug("UpdateConfig called")

	if newConfig == nil {
		e.logger.Error("UpdateConfig failed: nil configuration")
		return ErrInvalidParameters.WithDetails("config cannot be nil")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.configManager.SetConfig(newConfig); err != nil {
		e.logger.Error("UpdateConfig validation failed: %v", err)
		return err
	}

	e.logger.Info("Configuration updated successfully: MaxTickets=%d, AllowedWindows=%v, WinningCheckPeriods=%d, Games=%v",
		newConfig.Engine.MaxTickets,
		newConfig.Engine.AllowedWindows,
		newConfig.Engine.WinningCheckPeriods,
		GameCodes(newConfig.Games))
	return nil
}

// SetRandomGenerator replaces the entropy source, e.g. with a seeded one in tests
func (e *Engine) SetRandomGenerator(gen RandomGenerator) {
	if gen == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.generator = gen
}

// SetResultFetcher registers the fetcher used to sync f.GameCode()
func (e *Engine) SetResultFetcher(f ResultFetcher) {
	if f == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.fetchers[f.GameCode()] = f
}

// SyncableGames returns the codes with a registered fetcher, sorted
func (e *Engine) SyncableGames() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	codes := make([]string, 0, len(e.fetchers))
	for code := range e.fetchers {
		codes = append(codes, code)
	}
	slices.Sort(codes)
	return codes
}

// SetLogger updates the logger at runtime
func (e *Engine) SetLogger(logger Logger) {
	if logger == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if logger != e.logger {
		e.logger.Info("Logger updated")
		e.logger = logger
		e.logger.Info("New logger activated")
	}
}

// GetLogger returns the current logger
func (e *Engine) GetLogger() Logger {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.logger
}

// PerformanceMetrics 获取性能指标
func (e *Engine) PerformanceMetrics() PerformanceMetrics {
	return e.performanceMonitor.GetMetrics()
}

// ResetPerformanceMetrics 重置性能指标
func (e *Engine) ResetPerformanceMetrics() {
	e.performanceMonitor.ResetMetrics()
}

// EnablePerformanceMonitoring 启用性能监控
func (e *Engine) EnablePerformanceMonitoring() {
	e.performanceMonitor.Enable()
}

// DisablePerformanceMonitoring 禁用性能监控
func (e *Engine) DisablePerformanceMonitoring() {
	e.performanceMonitor.Disable()
}

// HealthCheck reports the engine's configuration and, when the history is
// behind a circuit breaker, the breaker's health.
func (e *Engine) HealthCheck() map[string]any {
	config, _, _ := e.snapshot()
	result := map[string]any{
		"games":           GameCodes(config.Games),
		"allowed_windows": config.Engine.AllowedWindows,
		"favorites":       e.favorites != nil,
		"sync_games":      e.SyncableGames(),
		"healthy":         true,
	}
	if cb, ok := e.history.(*CircuitBreakerStore); ok {
		health := cb.HealthCheck()
		result["circuit_breaker"] = health
		result["healthy"] = health["healthy"]
	}
	return result
}

// snapshot returns the dependencies under one read lock
func (e *Engine) snapshot() (*Config, RandomGenerator, Logger) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.configManager.GetConfig(), e.generator, e.logger
}

// Game returns the configuration of a game
func (e *Engine) Game(code string) (*GameConfig, error) {
	config, _, _ := e.snapshot()
	return LookupGame(config.Games, code)
}

// Games returns every configured game ordered by code
func (e *Engine) Games() []*GameConfig {
	config, _, _ := e.snapshot()
	games := make([]*GameConfig, 0, len(config.Games))
	for _, code := range GameCodes(config.Games) {
		games = append(games, config.Games[code])
	}
	return games
}

// NewBoard returns an empty selection board for a game
func (e *Engine) NewBoard(code string) (*GameBoard, error) {
	game, err := e.Game(code)
	if err != nil {
		return nil, err
	}
	return NewGameBoard(game), nil
}

// GenerateTickets draws count tickets under the board's constraints. A zero
// count yields DefaultTicketsPerRequest tickets, capped at the configured
// maximum; a nil board means no constraints.
func (e *Engine) GenerateTickets(code string, board *GameBoard, count int) ([]Ticket, error) {
	config, gen, logger := e.snapshot()
	start := time.Now()

	game, err := LookupGame(config.Games, code)
	if err != nil {
		return nil, err
	}
	if board != nil && board.Game.Code != code {
		return nil, ErrInvalidParameters.WithGame(code).WithDetailsf("board belongs to %q", board.Game.Code)
	}
	if count == 0 {
		count = min(DefaultTicketsPerRequest, config.Engine.MaxTickets)
	}

	tickets, err := generateTickets(game, board, gen, count, config.Engine.MaxTickets)
	e.performanceMonitor.RecordGeneration(len(tickets), err, time.Since(start))
	if err != nil {
		logger.Debug("GenerateTickets %s x%d failed: %v", code, count, err)
		return nil, err
	}

	logger.Debug("Generated %d %s tickets in %v", len(tickets), code, time.Since(start))
	return tickets, nil
}

// RecordDraw stores an official result
func (e *Engine) RecordDraw(ctx context.Context, code string, record DrawRecord) error {
	config, _, logger := e.snapshot()

	game, err := LookupGame(config.Games, code)
	if err != nil {
		return err
	}
	if err := record.Validate(game); err != nil {
		return err
	}

	if err := e.history.Append(ctx, code, record); err != nil {
		logger.Error("RecordDraw %s period %s failed: %v", code, record.Period, err)
		return err
	}

	logger.Info("Recorded %s period %s: %v | %v", code, record.Period, record.Red, record.Blue)
	return nil
}

// ImportHistory loads a history file into the history repository, skipping
// periods already recorded. It returns how many draws were added.
func (e *Engine) ImportHistory(ctx context.Context, f *HistoryFile) (int, error) {
	if f == nil {
		return 0, ErrInvalidParameters.WithDetails("history file cannot be nil")
	}
	config, _, logger := e.snapshot()

	if err := f.Validate(config.Games); err != nil {
		return 0, err
	}

	added, err := ImportHistory(ctx, e.history, f)
	if err != nil {
		logger.Error("ImportHistory %s stopped after %d draws: %v", f.Game, added, err)
		return added, err
	}

	logger.Info("Imported %d of %d %s draws", added, len(f.Draws), f.Game)
	return added, nil
}

// SyncResults pulls the game's newly published results through its fetcher
// and records them, paging as configured under fetch.
func (e *Engine) SyncResults(ctx context.Context, code string) (*SyncReport, error) {
	config, _, logger := e.snapshot()

	game, err := LookupGame(config.Games, code)
	if err != nil {
		return nil, err
	}
	e.mu.RLock()
	fetcher := e.fetchers[code]
	e.mu.RUnlock()
	if fetcher == nil {
		return nil, ErrStoreUnavailable.WithGame(code).WithOperation("fetch")
	}

	fetch := config.Fetch
	if fetch == nil {
		fetch = DefaultFetchConfig()
	}

	start := time.Now()
	report, err := SyncResults(ctx, e.history, game, fetcher, fetch.MaxPages, fetch.PageSize, logger)
	if err != nil {
		logger.Error("SyncResults %s failed: %v", code, err)
		return report, err
	}

	logger.Info("Synced %s: %d new of %d fetched over %d pages in %v",
		code, report.Added, report.Fetched, report.Pages, time.Since(start))
	return report, nil
}

// HistoryCount returns how many draws of a game are recorded
func (e *Engine) HistoryCount(ctx context.Context, code string) (int64, error) {
	if _, err := e.Game(code); err != nil {
		return 0, err
	}
	return e.history.Count(ctx, code)
}

// resolveWindow maps 0 to the default window and rejects windows not offered
func resolveWindow(config *EngineConfig, window int) (int, error) {
	if window == 0 {
		window = config.DefaultWindow
	}
	if !slices.Contains(config.AllowedWindows, window) {
		return 0, ErrInvalidWindow.WithDetailsf("window %d is not one of %v", window, config.AllowedWindows)
	}
	return window, nil
}

// Distribution computes the frequency table of one zone over the latest window draws
func (e *Engine) Distribution(ctx context.Context, code string, zone Zone, window int) (*FrequencyTable, error) {
	config, _, logger := e.snapshot()

	game, err := LookupGame(config.Games, code)
	if err != nil {
		return nil, err
	}
	zc, err := game.Zone(zone)
	if err != nil {
		return nil, err
	}
	window, err = resolveWindow(config.Engine, window)
	if err != nil {
		return nil, err
	}

	records, err := e.history.Latest(ctx, code, window)
	if err != nil {
		logger.Error("Distribution %s: loading history failed: %v", code, err)
		return nil, err
	}

	table := ComputeDistribution(ProjectZone(records, zone), window, zc)
	e.performanceMonitor.RecordDistribution()

	logger.Debug("Distribution %s %s over %d of %d requested draws", code, zone, table.Window, window)
	return table, nil
}

// Summary condenses the distribution of one zone
func (e *Engine) Summary(ctx context.Context, code string, zone Zone, window int) (*DistributionSummary, error) {
	table, err := e.Distribution(ctx, code, zone, window)
	if err != nil {
		return nil, err
	}
	summary := Summarize(table)
	return &summary, nil
}

// CheckWinning checks a ticket against the most recent draws
func (e *Engine) CheckWinning(ctx context.Context, code string, ticket Ticket) (*WinningReport, error) {
	config, _, logger := e.snapshot()

	game, err := LookupGame(config.Games, code)
	if err != nil {
		return nil, err
	}
	if err := ValidateTicket(game, ticket); err != nil {
		return nil, err
	}

	records, err := e.history.Latest(ctx, code, config.Engine.WinningCheckPeriods)
	if err != nil {
		logger.Error("CheckWinning %s: loading history failed: %v", code, err)
		return nil, err
	}

	report, err := CheckWinning(game, ticket, records)
	if err != nil {
		return nil, err
	}
	e.performanceMonitor.RecordWinningCheck()

	logger.Debug("CheckWinning %s %s: %d prizes in %d draws", code, ticket, report.TotalMatches, report.CheckedDraws)
	return report, nil
}

func (e *Engine) favoriteRepo() (FavoriteRepository, error) {
	if e.favorites == nil {
		return nil, ErrStoreUnavailable.WithOperation("favorites")
	}
	return e.favorites, nil
}

// SaveFavorite stores a ticket for a user
func (e *Engine) SaveFavorite(ctx context.Context, fav *Favorite) (*Favorite, error) {
	repo, err := e.favoriteRepo()
	if err != nil {
		return nil, err
	}
	if fav == nil {
		return nil, ErrInvalidParameters.WithDetails("favorite cannot be nil")
	}
	game, err := e.Game(fav.Ticket.GameCode)
	if err != nil {
		return nil, err
	}
	if err := ValidateTicket(game, fav.Ticket); err != nil {
		return nil, err
	}
	return repo.Save(ctx, fav)
}

// ListFavorites lists a user's favorites newest first; empty code lists every game
func (e *Engine) ListFavorites(ctx context.Context, userID, code string) ([]*Favorite, error) {
	repo, err := e.favoriteRepo()
	if err != nil {
		return nil, err
	}
	if code != "" {
		if _, err := e.Game(code); err != nil {
			return nil, err
		}
	}
	return repo.List(ctx, userID, code)
}

// RenameFavorite changes a favorite's nickname
func (e *Engine) RenameFavorite(ctx context.Context, userID, id, nickname string) (*Favorite, error) {
	repo, err := e.favoriteRepo()
	if err != nil {
		return nil, err
	}
	return repo.Rename(ctx, userID, id, nickname)
}

// DeleteFavorite removes a favorite
func (e *Engine) DeleteFavorite(ctx context.Context, userID, id string) error {
	repo, err := e.favoriteRepo()
	if err != nil {
		return err
	}
	return repo.Delete(ctx, userID, id)
}
