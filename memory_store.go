package luckypick

import (
	"context"
	"slices"
	"sync"
)

// MemoryHistoryStore is a process-local HistoryRepository, used when no Redis
// is configured and for seeding from history files.
type MemoryHistoryStore struct {
	mu      sync.RWMutex
	games   map[string]*GameConfig
	records map[string][]DrawRecord // newest first
	periods map[string]map[string]struct{}
}

// NewMemoryHistoryStore creates an empty in-memory history
func NewMemoryHistoryStore(games map[string]*GameConfig) *MemoryHistoryStore {
	if games == nil {
		games = DefaultGames()
	}
	return &MemoryHistoryStore{
		games:   games,
		records: make(map[string][]DrawRecord),
		periods: make(map[string]map[string]struct{}),
	}
}

// Append records a draw as the newest entry
func (s *MemoryHistoryStore) Append(_ context.Context, gameCode string, record DrawRecord) error {
	game, err := LookupGame(s.games, gameCode)
	if err != nil {
		return err
	}
	if err := record.Validate(game); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	seen := s.periods[gameCode]
	if seen == nil {
		seen = make(map[string]struct{})
		s.periods[gameCode] = seen
	}
	if _, dup := seen[record.Period]; dup {
		return ErrDuplicatePeriod.WithGame(gameCode).WithDetailsf("period %s", record.Period)
	}
	seen[record.Period] = struct{}{}

	record.Red, record.Blue = slices.Clone(record.Red), slices.Clone(record.Blue)
	s.records[gameCode] = slices.Insert(s.records[gameCode], 0, record)
	return nil
}

// Latest returns up to n records, most recent first
func (s *MemoryHistoryStore) Latest(_ context.Context, gameCode string, n int) ([]DrawRecord, error) {
	if _, err := LookupGame(s.games, gameCode); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.records[gameCode]
	n = max(0, min(n, len(all)))
	out := make([]DrawRecord, n)
	for i, r := range all[:n] {
		r.Red, r.Blue = slices.Clone(r.Red), slices.Clone(r.Blue)
		out[i] = r
	}
	return out, nil
}

// Count returns the number of stored records of a game
func (s *MemoryHistoryStore) Count(_ context.Context, gameCode string) (int64, error) {
	if _, err := LookupGame(s.games, gameCode); err != nil {
		return 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.records[gameCode])), nil
}
