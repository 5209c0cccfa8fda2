package luckypick

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// SyncReport summarises one sync of a game's published results
type SyncReport struct {
	Game    string `json:"game"`
	Pages   int    `json:"pages"`   // pages requested
	Fetched int    `json:"fetched"` // records returned by the fetcher
	Invalid int    `json:"invalid"` // records rejected by validation
	Added   int    `json:"added"`
	// CaughtUp is set when the latest recorded period was found, so older
	// pages were not requested.
	CaughtUp bool `json:"caughtUp"`
}

// SyncResults pages through fetcher newest first until it meets the latest
// recorded period, an empty page or maxPages, then appends the new draws to
// repo oldest first. Invalid records are logged and skipped. A fetch error
// aborts the sync before anything is written.
func SyncResults(
	ctx context.Context, repo HistoryRepository, game *GameConfig, fetcher ResultFetcher,
	maxPages, pageSize int, logger Logger,
) (*SyncReport, error) {
	if repo == nil || game == nil || fetcher == nil {
		return nil, ErrInvalidParameters.WithDetails("repository, game and fetcher are required")
	}
	if fetcher.GameCode() != game.Code {
		return nil, ErrInvalidParameters.WithGame(game.Code).WithDetailsf("fetcher serves %q", fetcher.GameCode())
	}
	if maxPages < 1 || maxPages > MaxFetchPages {
		return nil, ErrInvalidParameters.WithDetailsf("max pages %d must be in [1, %d]", maxPages, MaxFetchPages)
	}
	if logger == nil {
		logger = NewSilentLogger()
	}

	latest, err := repo.Latest(ctx, game.Code, 1)
	if err != nil {
		return nil, err
	}
	var known string
	if len(latest) > 0 {
		known = latest[0].Period
	}

	report := &SyncReport{Game: game.Code}
	seen := make(map[string]struct{})
	var fresh []DrawRecord // newest first

	for page := 1; page <= maxPages && !report.CaughtUp; page++ {
		records, err := fetcher.FetchPage(ctx, page, pageSize)
		report.Pages++
		if err != nil {
			return report, fmt.Errorf("%s page %d: %w", game.Code, page, err)
		}
		if len(records) == 0 {
			break
		}
		report.Fetched += len(records)

		for _, r := range records {
			if r.Period == known {
				report.CaughtUp = true
				break
			}
			if _, dup := seen[r.Period]; dup {
				continue
			}
			if err := r.Validate(game); err != nil {
				report.Invalid++
				logger.Error("Skipping fetched %s period %s: %v", game.Code, r.Period, err)
				continue
			}
			seen[r.Period] = struct{}{}
			fresh = append(fresh, r)
		}
	}

	added, err := ImportHistory(ctx, repo, &HistoryFile{Game: game.Code, Draws: fresh})
	report.Added = added
	if err != nil {
		return report, err
	}
	return report, nil
}

// ResultScheduler runs Engine.SyncResults for every game with a registered
// fetcher on a cron schedule.
type ResultScheduler struct {
	engine  *Engine
	cron    *cron.Cron
	logger  Logger
	timeout time.Duration

	mu      sync.Mutex
	reports map[string]*SyncReport // last report per game
}

// NewResultScheduler parses schedule, a standard five-field cron expression.
// Overlapping runs are skipped.
func NewResultScheduler(engine *Engine, schedule string, logger Logger) (*ResultScheduler, error) {
	if engine == nil {
		return nil, ErrInvalidParameters.WithDetails("engine cannot be nil")
	}
	if logger == nil {
		logger = NewSilentLogger()
	}

	cl := cronLogger{logger: logger}
	s := &ResultScheduler{
		engine:  engine,
		logger:  logger,
		timeout: DefaultSyncTimeout,
		reports: make(map[string]*SyncReport),
		cron:    cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl))),
	}

	if _, err := s.cron.AddFunc(schedule, s.run); err != nil {
		return nil, ErrConfigInvalid.WithCause(err).WithDetailsf("schedule %q: %v", schedule, err)
	}
	return s, nil
}

func (s *ResultScheduler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	_, _ = s.RunOnce(ctx)
}

// RunOnce syncs every game now. Games are synced independently; the
// returned error joins the failures.
func (s *ResultScheduler) RunOnce(ctx context.Context) (map[string]*SyncReport, error) {
	reports := make(map[string]*SyncReport)
	var errs []error

	for _, code := range s.engine.SyncableGames() {
		report, err := s.engine.SyncResults(ctx, code)
		if report != nil {
			reports[code] = report
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", code, err))
		}
	}

	s.mu.Lock()
	for code, r := range reports {
		s.reports[code] = r
	}
	s.mu.Unlock()

	return reports, errors.Join(errs...)
}

// LastReport returns the latest report of a game
func (s *ResultScheduler) LastReport(code string) (*SyncReport, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reports[code]
	return r, ok
}

// Start runs the schedule in the background
func (s *ResultScheduler) Start() {
	s.logger.Info("Result scheduler started for %v", s.engine.SyncableGames())
	s.cron.Start()
}

// Stop stops the schedule and waits for a running sync, or for ctx
func (s *ResultScheduler) Stop(ctx context.Context) error {
	select {
	case <-s.cron.Stop().Done():
		s.logger.Info("Result scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// cronLogger adapts Logger to cron.Logger
type cronLogger struct {
	logger Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron %s %v", msg, keysAndValues)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron %s %v: %v", msg, keysAndValues, err)
}
