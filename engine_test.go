package luckypick

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memoryFavorites is a FavoriteRepository backed by a map
type memoryFavorites struct {
	mu   sync.Mutex
	next int
	favs map[string]*Favorite
}

func newMemoryFavorites() *memoryFavorites {
	return &memoryFavorites{favs: make(map[string]*Favorite)}
}

func (m *memoryFavorites) Save(_ context.Context, fav *Favorite) (*Favorite, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next++
	saved := *fav
	saved.ID = fmt.Sprintf("fav-%d", m.next)
	m.favs[saved.ID] = &saved
	return &saved, nil
}

func (m *memoryFavorites) List(_ context.Context, userID, gameCode string) ([]*Favorite, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Favorite
	for _, f := range m.favs {
		if f.UserID == userID && (gameCode == "" || f.Ticket.GameCode == gameCode) {
			out = append(out, f)
		}
	}
	return out, nil
}

func (m *memoryFavorites) Rename(_ context.Context, userID, id, nickname string) (*Favorite, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.favs[id]
	if !ok || f.UserID != userID {
		return nil, ErrFavoriteNotFound
	}
	f.Nickname = nickname
	return f, nil
}

func (m *memoryFavorites) Delete(_ context.Context, userID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if f, ok := m.favs[id]; !ok || f.UserID != userID {
		return ErrFavoriteNotFound
	}
	delete(m.favs, id)
	return nil
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e := NewEngineWithLogger(nil, nil, newMemoryFavorites(), NewSilentLogger())
	e.SetRandomGenerator(NewSeededRandomGenerator(1, 2))
	return e
}

func TestEngine_Games(t *testing.T) {
	e := newTestEngine(t)

	game, err := e.Game(GameSSQ)
	require.NoError(t, err)
	assert.Equal(t, 33, game.Red.PoolMax)

	_, err = e.Game("kl8")
	assert.ErrorIs(t, err, ErrUnknownGame)

	games := e.Games()
	require.Len(t, games, 2)
	assert.Equal(t, GameDLT, games[0].Code)
	assert.Equal(t, GameSSQ, games[1].Code)

	board, err := e.NewBoard(GameDLT)
	require.NoError(t, err)
	assert.Equal(t, GameDLT, board.Game.Code)
}

func TestEngine_GenerateTickets(t *testing.T) {
	e := newTestEngine(t)

	t.Run("default_count", func(t *testing.T) {
		tickets, err := e.GenerateTickets(GameSSQ, nil, 0)
		require.NoError(t, err)
		assert.Len(t, tickets, DefaultTicketsPerRequest)
		game, _ := e.Game(GameSSQ)
		for _, tk := range tickets {
			assert.NoError(t, ValidateTicket(game, tk))
		}
	})

	t.Run("honours_board", func(t *testing.T) {
		board, err := e.NewBoard(GameSSQ)
		require.NoError(t, err)
		_, err = board.Red.Toggle(7, ModeLock)
		require.NoError(t, err)
		_, err = board.Red.Toggle(8, ModeExclude)
		require.NoError(t, err)
		_, err = board.Blue.Toggle(16, ModeLock)
		require.NoError(t, err)

		tickets, err := e.GenerateTickets(GameSSQ, board, 20)
		require.NoError(t, err)
		require.Len(t, tickets, 20)
		for _, tk := range tickets {
			assert.True(t, tk.Red.Contains(7))
			assert.False(t, tk.Red.Contains(8))
			assert.Equal(t, Combination{16}, tk.Blue)
		}
	})

	t.Run("infeasible", func(t *testing.T) {
		e.ResetPerformanceMetrics()
		board, _ := e.NewBoard(GameSSQ)
		for n := 1; n <= 28; n++ {
			_, err := board.Red.Toggle(n, ModeExclude)
			require.NoError(t, err)
		}

		_, err := e.GenerateTickets(GameSSQ, board, 1)
		assert.ErrorIs(t, err, ErrInsufficientPool)

		m := e.PerformanceMetrics()
		assert.Equal(t, int64(1), m.FailedGenerations)
		assert.Equal(t, int64(1), m.InfeasibleDraws)
	})

	t.Run("invalid", func(t *testing.T) {
		_, err := e.GenerateTickets(GameSSQ, nil, MaxTicketsPerRequest+1)
		assert.ErrorIs(t, err, ErrInvalidCount)
		_, err = e.GenerateTickets(GameSSQ, nil, -1)
		assert.ErrorIs(t, err, ErrInvalidCount)
		_, err = e.GenerateTickets("kl8", nil, 1)
		assert.ErrorIs(t, err, ErrUnknownGame)

		dltBoard, _ := e.NewBoard(GameDLT)
		_, err = e.GenerateTickets(GameSSQ, dltBoard, 1)
		assert.ErrorIs(t, err, ErrInvalidParameters)
	})

	t.Run("deterministic_with_seed", func(t *testing.T) {
		a, b := newTestEngine(t), newTestEngine(t)
		ta, err := a.GenerateTickets(GameDLT, nil, 3)
		require.NoError(t, err)
		tb, err := b.GenerateTickets(GameDLT, nil, 3)
		require.NoError(t, err)
		assert.Equal(t, ta, tb)
	})
}

func TestEngine_Distribution(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, e.RecordDraw(ctx, GameSSQ, DrawRecord{Period: "2024001", Red: []int{1, 2, 3, 4, 5, 6}, Blue: []int{1}}))
	require.NoError(t, e.RecordDraw(ctx, GameSSQ, DrawRecord{Period: "2024002", Red: []int{1, 7, 8, 9, 10, 11}, Blue: []int{2}}))

	n, err := e.HistoryCount(ctx, GameSSQ)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	table, err := e.Distribution(ctx, GameSSQ, ZoneRed, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, table.Window)

	one, _ := table.Get(1)
	assert.Equal(t, NumberStat{Number: 1, Frequency: 2}, one)
	two, _ := table.Get(2)
	assert.Equal(t, NumberStat{Number: 2, Frequency: 1, CurrentMissing: 1, MaxMissing: 1}, two)
	never, _ := table.Get(33)
	assert.Equal(t, 2, never.CurrentMissing)

	blue, err := e.Distribution(ctx, GameSSQ, ZoneBlue, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, blue.Window)
	assert.Equal(t, BigSmallRatio{Big: 0, Small: 2}, blue.BigSmall)

	_, err = e.Distribution(ctx, GameSSQ, ZoneRed, 7)
	assert.ErrorIs(t, err, ErrInvalidWindow)
	_, err = e.Distribution(ctx, GameSSQ, Zone("green"), 10)
	assert.ErrorIs(t, err, ErrInvalidParameters)
	_, err = e.Distribution(ctx, "kl8", ZoneRed, 10)
	assert.ErrorIs(t, err, ErrUnknownGame)

	summary, err := e.Summary(ctx, GameSSQ, ZoneRed, 30)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Window)
	assert.Equal(t, 1, summary.Hot[0])

	assert.Equal(t, int64(3), e.PerformanceMetrics().DistributionComputations)
}

func TestEngine_RecordDraw(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, e.RecordDraw(ctx, GameSSQ, ssqRecord("2024001")))
	assert.ErrorIs(t, e.RecordDraw(ctx, GameSSQ, ssqRecord("2024001")), ErrDuplicatePeriod)
	assert.ErrorIs(t, e.RecordDraw(ctx, GameDLT, ssqRecord("2024001")), ErrInvalidDrawRecord)
	assert.ErrorIs(t, e.RecordDraw(ctx, "kl8", ssqRecord("2024001")), ErrUnknownGame)
}

func TestEngine_ImportHistory(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	f, err := DecodeHistory(strings.NewReader(ssqHistoryYAML))
	require.NoError(t, err)

	added, err := e.ImportHistory(ctx, f)
	require.NoError(t, err)
	assert.Equal(t, 3, added)

	added, err = e.ImportHistory(ctx, f)
	require.NoError(t, err)
	assert.Zero(t, added)

	_, err = e.ImportHistory(ctx, nil)
	assert.ErrorIs(t, err, ErrInvalidParameters)
	_, err = e.ImportHistory(ctx, &HistoryFile{Game: "kl8"})
	assert.ErrorIs(t, err, ErrUnknownGame)
}

func TestEngine_CheckWinning(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, e.RecordDraw(ctx, GameSSQ, ssqRecord("2024001")))
	require.NoError(t, e.RecordDraw(ctx, GameSSQ, DrawRecord{Period: "2024002", Red: []int{1, 2, 4, 5, 6, 7}, Blue: []int{9}}))
	require.NoError(t, e.RecordDraw(ctx, GameSSQ, DrawRecord{Period: "2024003", Red: []int{1, 2, 4, 5, 6, 7}, Blue: []int{10}}))

	ticket := Ticket{GameCode: GameSSQ, Red: Combination{3, 8, 15, 21, 27, 33}, Blue: Combination{9}}
	report, err := e.CheckWinning(ctx, GameSSQ, ticket)
	require.NoError(t, err)

	assert.Equal(t, 3, report.CheckedDraws)
	require.Equal(t, 2, report.TotalMatches)
	assert.Equal(t, "2024002", report.Matches[0].Period)
	assert.Equal(t, 6, report.Matches[0].Tier.Level)
	assert.Equal(t, "2024001", report.Matches[1].Period)
	assert.Equal(t, 1, report.Matches[1].Tier.Level)
	assert.Equal(t, int64(500000000+500), report.TotalPrize)

	_, err = e.CheckWinning(ctx, GameSSQ, Ticket{GameCode: GameSSQ, Red: Combination{1}, Blue: Combination{9}})
	assert.ErrorIs(t, err, ErrInvalidTicket)
	assert.Equal(t, int64(1), e.PerformanceMetrics().WinningChecks)
}

func TestEngine_CheckWinningWindow(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	for i := range DefaultWinningCheckPeriods + 5 {
		rec := ssqRecord(fmt.Sprintf("2024%03d", i+1))
		require.NoError(t, e.RecordDraw(ctx, GameSSQ, rec))
	}

	report, err := e.CheckWinning(ctx, GameSSQ, Ticket{GameCode: GameSSQ, Red: Combination{3, 8, 15, 21, 27, 33}, Blue: Combination{9}})
	require.NoError(t, err)
	assert.Equal(t, DefaultWinningCheckPeriods, report.CheckedDraws)
	assert.Equal(t, DefaultWinningCheckPeriods, report.TotalMatches)
	assert.Equal(t, "2024020", report.Matches[0].Period)
}

func TestEngine_Favorites(t *testing.T) {
	ctx := context.Background()

	t.Run("unavailable", func(t *testing.T) {
		e := NewEngineWithLogger(nil, nil, nil, nil)
		_, err := e.SaveFavorite(ctx, &Favorite{UserID: "u1", Ticket: ssqTicket()})
		assert.ErrorIs(t, err, ErrStoreUnavailable)
		_, err = e.ListFavorites(ctx, "u1", "")
		assert.ErrorIs(t, err, ErrStoreUnavailable)
		_, err = e.RenameFavorite(ctx, "u1", "x", "y")
		assert.ErrorIs(t, err, ErrStoreUnavailable)
		assert.ErrorIs(t, e.DeleteFavorite(ctx, "u1", "x"), ErrStoreUnavailable)
	})

	t.Run("crud", func(t *testing.T) {
		e := newTestEngine(t)

		saved, err := e.SaveFavorite(ctx, &Favorite{UserID: "u1", Ticket: ssqTicket(), Source: SourceRandom})
		require.NoError(t, err)
		assert.NotEmpty(t, saved.ID)

		_, err = e.SaveFavorite(ctx, &Favorite{UserID: "u1", Ticket: Ticket{GameCode: GameSSQ}})
		assert.ErrorIs(t, err, ErrInvalidTicket)
		_, err = e.SaveFavorite(ctx, nil)
		assert.ErrorIs(t, err, ErrInvalidParameters)

		list, err := e.ListFavorites(ctx, "u1", GameSSQ)
		require.NoError(t, err)
		assert.Len(t, list, 1)
		_, err = e.ListFavorites(ctx, "u1", "kl8")
		assert.ErrorIs(t, err, ErrUnknownGame)

		renamed, err := e.RenameFavorite(ctx, "u1", saved.ID, "幸运")
		require.NoError(t, err)
		assert.Equal(t, "幸运", renamed.Nickname)

		require.NoError(t, e.DeleteFavorite(ctx, "u1", saved.ID))
		assert.ErrorIs(t, e.DeleteFavorite(ctx, "u1", saved.ID), ErrFavoriteNotFound)
	})
}

func TestEngine_UpdateConfig(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	assert.ErrorIs(t, e.UpdateConfig(nil), ErrInvalidParameters)

	bad := DefaultConfig()
	bad.Engine.MaxTickets = 0
	assert.ErrorIs(t, e.UpdateConfig(bad), ErrConfigInvalid)

	cfg := DefaultConfig()
	cfg.Engine.AllowedWindows = []int{5, 100}
	cfg.Engine.DefaultWindow = 5
	cfg.Engine.MaxTickets = 2
	require.NoError(t, e.UpdateConfig(cfg))
	assert.Equal(t, cfg, e.GetConfig())

	_, err := e.Distribution(ctx, GameSSQ, ZoneRed, 30)
	assert.ErrorIs(t, err, ErrInvalidWindow)
	table, err := e.Distribution(ctx, GameSSQ, ZoneRed, 0)
	require.NoError(t, err)
	assert.Zero(t, table.Window)

	_, err = e.GenerateTickets(GameSSQ, nil, 3)
	assert.ErrorIs(t, err, ErrInvalidCount)
}

func TestEngine_Logger(t *testing.T) {
	e := newTestEngine(t)

	var buf bytes.Buffer
	logger := NewLogger(&LogConfig{Level: "debug", Format: "text"}, &buf)
	e.SetLogger(logger)
	assert.Same(t, logger, e.GetLogger())

	_, err := e.GenerateTickets(GameSSQ, nil, 1)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Generated 1 ssq tickets")

	e.SetLogger(nil)
	assert.Same(t, logger, e.GetLogger())
}

func TestEngine_PerformanceMonitoringToggle(t *testing.T) {
	e := newTestEngine(t)

	e.DisablePerformanceMonitoring()
	_, err := e.GenerateTickets(GameSSQ, nil, 1)
	require.NoError(t, err)
	assert.Zero(t, e.PerformanceMetrics().GenerationRequests)

	e.EnablePerformanceMonitoring()
	_, err = e.GenerateTickets(GameSSQ, nil, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(2), e.PerformanceMetrics().TicketsGenerated)
}

func TestEngine_ConcurrentUse(t *testing.T) {
	e := NewEngineWithLogger(nil, nil, nil, NewSilentLogger())
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := e.GenerateTickets(GameDLT, nil, 5)
			assert.NoError(t, err)
			assert.NoError(t, e.RecordDraw(ctx, GameSSQ, ssqRecord(fmt.Sprintf("p%02d", i))))
			_, err = e.Distribution(ctx, GameSSQ, ZoneRed, 50)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	n, err := e.HistoryCount(ctx, GameSSQ)
	require.NoError(t, err)
	assert.Equal(t, int64(20), n)
	assert.Equal(t, int64(100), e.PerformanceMetrics().TicketsGenerated)
}

func TestNewRedisEngine(t *testing.T) {
	db, mock := redismock.NewClientMock()
	e := NewRedisEngine(db, nil, NewSilentLogger())
	ctx := context.Background()

	newer := ssqRecord("2024002")
	mock.ExpectLRange("lottery:history:ssq", 0, 9).SetVal([]string{string(mustJSON(t, newer))})
	mock.ExpectLLen("lottery:history:ssq").SetVal(1)
	mock.ExpectHDel("lottery:favorites:u1", "fav-1").SetVal(1)

	table, err := e.Distribution(ctx, GameSSQ, ZoneBlue, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, table.Window)
	nine, _ := table.Get(9)
	assert.Equal(t, 1, nine.Frequency)

	n, err := e.HistoryCount(ctx, GameSSQ)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	require.NoError(t, e.DeleteFavorite(ctx, "u1", "fav-1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEngine_HealthCheck(t *testing.T) {
	e := newTestEngine(t)
	health := e.HealthCheck()
	assert.Equal(t, true, health["healthy"])
	assert.Equal(t, []string{GameDLT, GameSSQ}, health["games"])
	assert.NotContains(t, health, "circuit_breaker")

	db, _ := redismock.NewClientMock()
	re := NewRedisEngine(db, nil, NewSilentLogger())
	health = re.HealthCheck()
	assert.Equal(t, true, health["healthy"])
	require.Contains(t, health, "circuit_breaker")
	assert.Equal(t, "closed", health["circuit_breaker"].(map[string]any)["state"])
}
