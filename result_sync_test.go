package luckypick

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pagedFetcher serves fixed pages and counts requests
type pagedFetcher struct {
	game  string
	pages map[int][]DrawRecord
	err   map[int]error

	mu    sync.Mutex
	calls []int
}

func (f *pagedFetcher) GameCode() string { return f.game }

func (f *pagedFetcher) FetchPage(_ context.Context, page, _ int) ([]DrawRecord, error) {
	f.mu.Lock()
	f.calls = append(f.calls, page)
	f.mu.Unlock()
	if err := f.err[page]; err != nil {
		return nil, err
	}
	return f.pages[page], nil
}

// ssqPages builds pages of ssq records counting down from newest
func ssqPages(newest, perPage, pages int) map[int][]DrawRecord {
	out := make(map[int][]DrawRecord, pages)
	p := newest
	for page := 1; page <= pages; page++ {
		for range perPage {
			out[page] = append(out[page], ssqRecord(fmt.Sprintf("2025%03d", p)))
			p--
		}
	}
	return out
}

func periods(records []DrawRecord) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.Period
	}
	return out
}

func TestSyncResults(t *testing.T) {
	ctx := context.Background()
	game := DefaultGames()[GameSSQ]

	t.Run("empty_history_imports_all_pages", func(t *testing.T) {
		repo := NewMemoryHistoryStore(nil)
		f := &pagedFetcher{game: GameSSQ, pages: ssqPages(106, 2, 3)}

		report, err := SyncResults(ctx, repo, game, f, 5, 2, nil)
		require.NoError(t, err)
		assert.Equal(t, 6, report.Added)
		assert.Equal(t, 6, report.Fetched)
		assert.False(t, report.CaughtUp)
		// page 4 came back empty and ended the walk
		assert.Equal(t, []int{1, 2, 3, 4}, f.calls)

		latest, err := repo.Latest(ctx, GameSSQ, 10)
		require.NoError(t, err)
		assert.Equal(t, []string{"2025106", "2025105", "2025104", "2025103", "2025102", "2025101"}, periods(latest))
	})

	t.Run("stops_at_latest_recorded_period", func(t *testing.T) {
		repo := NewMemoryHistoryStore(nil)
		require.NoError(t, repo.Append(ctx, GameSSQ, ssqRecord("2025103")))
		f := &pagedFetcher{game: GameSSQ, pages: ssqPages(106, 2, 3)}

		report, err := SyncResults(ctx, repo, game, f, 5, 2, nil)
		require.NoError(t, err)
		assert.True(t, report.CaughtUp)
		assert.Equal(t, 3, report.Added)
		assert.Equal(t, []int{1, 2}, f.calls)

		latest, err := repo.Latest(ctx, GameSSQ, 10)
		require.NoError(t, err)
		assert.Equal(t, []string{"2025106", "2025105", "2025104", "2025103"}, periods(latest))
	})

	t.Run("up_to_date", func(t *testing.T) {
		repo := NewMemoryHistoryStore(nil)
		require.NoError(t, repo.Append(ctx, GameSSQ, ssqRecord("2025106")))
		f := &pagedFetcher{game: GameSSQ, pages: ssqPages(106, 2, 3)}

		report, err := SyncResults(ctx, repo, game, f, 5, 2, nil)
		require.NoError(t, err)
		assert.True(t, report.CaughtUp)
		assert.Zero(t, report.Added)
		assert.Equal(t, []int{1}, f.calls)
	})

	t.Run("respects_max_pages", func(t *testing.T) {
		repo := NewMemoryHistoryStore(nil)
		f := &pagedFetcher{game: GameSSQ, pages: ssqPages(106, 2, 3)}

		report, err := SyncResults(ctx, repo, game, f, 1, 2, nil)
		require.NoError(t, err)
		assert.Equal(t, 1, report.Pages)
		assert.Equal(t, 2, report.Added)
	})

	t.Run("skips_invalid_and_repeated", func(t *testing.T) {
		repo := NewMemoryHistoryStore(nil)
		bad := ssqRecord("2025105")
		bad.Blue = []int{17}
		f := &pagedFetcher{game: GameSSQ, pages: map[int][]DrawRecord{
			1: {ssqRecord("2025106"), bad},
			2: {ssqRecord("2025106"), ssqRecord("2025104")},
		}}

		report, err := SyncResults(ctx, repo, game, f, 5, 2, nil)
		require.NoError(t, err)
		assert.Equal(t, 1, report.Invalid)
		assert.Equal(t, 2, report.Added)

		latest, err := repo.Latest(ctx, GameSSQ, 10)
		require.NoError(t, err)
		assert.Equal(t, []string{"2025106", "2025104"}, periods(latest))
	})

	t.Run("fetch_error_writes_nothing", func(t *testing.T) {
		repo := NewMemoryHistoryStore(nil)
		f := &pagedFetcher{
			game:  GameSSQ,
			pages: ssqPages(106, 2, 3),
			err:   map[int]error{2: ErrFetchFailed.WithDetails("status 502")},
		}

		report, err := SyncResults(ctx, repo, game, f, 5, 2, nil)
		assert.ErrorIs(t, err, ErrFetchFailed)
		require.NotNil(t, report)
		assert.Zero(t, report.Added)

		n, err := repo.Count(ctx, GameSSQ)
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("invalid_arguments", func(t *testing.T) {
		repo := NewMemoryHistoryStore(nil)
		f := &pagedFetcher{game: GameDLT}

		_, err := SyncResults(ctx, repo, game, f, 5, 2, nil)
		assert.ErrorIs(t, err, ErrInvalidParameters)
		_, err = SyncResults(ctx, nil, game, f, 5, 2, nil)
		assert.ErrorIs(t, err, ErrInvalidParameters)
		_, err = SyncResults(ctx, repo, game, &pagedFetcher{game: GameSSQ}, 0, 2, nil)
		assert.ErrorIs(t, err, ErrInvalidParameters)
	})
}

func TestEngine_SyncResults(t *testing.T) {
	ctx := context.Background()

	t.Run("no_fetcher", func(t *testing.T) {
		e := newTestEngine(t)
		_, err := e.SyncResults(ctx, GameSSQ)
		assert.ErrorIs(t, err, ErrStoreUnavailable)
		_, err = e.SyncResults(ctx, "kl8")
		assert.ErrorIs(t, err, ErrUnknownGame)
		assert.Empty(t, e.SyncableGames())
	})

	t.Run("ticai_over_http", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Query().Get("pageNo") != "1" {
				_, _ = w.Write([]byte(`{"value": {"list": []}, "errorCode": "0"}`))
				return
			}
			_, _ = w.Write([]byte(ticaiPageJSON))
		}))
		defer srv.Close()

		e := newTestEngine(t)
		e.SetResultFetcher(NewTicaiFetcher(testFetchConfig(srv.URL), nil))
		assert.Equal(t, []string{GameDLT}, e.SyncableGames())
		assert.Equal(t, []string{GameDLT}, e.HealthCheck()["sync_games"])

		report, err := e.SyncResults(ctx, GameDLT)
		require.NoError(t, err)
		assert.Equal(t, 1, report.Added)

		n, err := e.HistoryCount(ctx, GameDLT)
		require.NoError(t, err)
		assert.EqualValues(t, 1, n)

		// a second run finds the period already recorded
		report, err = e.SyncResults(ctx, GameDLT)
		require.NoError(t, err)
		assert.True(t, report.CaughtUp)
		assert.Zero(t, report.Added)
	})
}

func TestResultScheduler(t *testing.T) {
	ctx := context.Background()

	t.Run("invalid_schedule", func(t *testing.T) {
		_, err := NewResultScheduler(newTestEngine(t), "every now and then", nil)
		assert.ErrorIs(t, err, ErrConfigInvalid)
		_, err = NewResultScheduler(nil, DefaultFetchSchedule, nil)
		assert.ErrorIs(t, err, ErrInvalidParameters)
	})

	t.Run("run_once_syncs_every_game", func(t *testing.T) {
		e := newTestEngine(t)
		e.SetResultFetcher(&pagedFetcher{game: GameSSQ, pages: ssqPages(103, 3, 1)})
		e.SetResultFetcher(&pagedFetcher{game: GameDLT, err: map[int]error{1: ErrFetchFailed}})

		s, err := NewResultScheduler(e, DefaultFetchSchedule, NewSilentLogger())
		require.NoError(t, err)

		reports, err := s.RunOnce(ctx)
		assert.ErrorIs(t, err, ErrFetchFailed)
		require.Contains(t, reports, GameSSQ)
		assert.Equal(t, 3, reports[GameSSQ].Added)

		last, ok := s.LastReport(GameSSQ)
		require.True(t, ok)
		assert.Same(t, reports[GameSSQ], last)
	})

	t.Run("start_stop", func(t *testing.T) {
		s, err := NewResultScheduler(newTestEngine(t), DefaultFetchSchedule, nil)
		require.NoError(t, err)

		s.Start()
		stopCtx, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		assert.NoError(t, s.Stop(stopCtx))
	})
}
