package luckypick

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// FavoriteSource records how a favorite ticket was created
type FavoriteSource string

const (
	SourceManual  FavoriteSource = "manual"
	SourceRandom  FavoriteSource = "random"
	SourceCollect FavoriteSource = "collect"
)

// MaxNicknameLength bounds a favorite's nickname, in runes
const MaxNicknameLength = 50

// replaceFavoriteScript overwrites a hash field only while it still exists,
// so a rename racing a delete cannot resurrect the favorite.
const replaceFavoriteScript = `
	if redis.call("HEXISTS", KEYS[1], ARGV[1]) == 1 then
		redis.call("HSET", KEYS[1], ARGV[1], ARGV[2])
		return 1
	end
	return 0
`

// Favorite is a ticket saved by a user
type Favorite struct {
	ID        string         `json:"id"`
	UserID    string         `json:"userId"`
	Ticket    Ticket         `json:"ticket"`
	Nickname  string         `json:"nickname,omitempty"`
	Source    FavoriteSource `json:"source"`
	CreatedAt time.Time      `json:"createdAt"`
}

// FavoriteStore keeps favorites in one Redis hash per user,
// lottery:favorites:<userID>, field = favorite ID, value = JSON Favorite.
type FavoriteStore struct {
	redisStore
	games map[string]*GameConfig
	newID func() string
	now   func() time.Time
}

// NewFavoriteStore creates a favorite store
func NewFavoriteStore(client *redis.Client, games map[string]*GameConfig, logger Logger) *FavoriteStore {
	if games == nil {
		games = DefaultGames()
	}
	return &FavoriteStore{
		redisStore: newRedisStore(client, logger),
		games:      games,
		newID:      uuid.NewString,
		now:        time.Now,
	}
}

func favoriteKey(userID string) string {
	return FavoriteKeyPrefix + userID
}

func validateNickname(nickname string) error {
	if len([]rune(nickname)) > MaxNicknameLength {
		return ErrInvalidParameters.WithDetailsf("nickname longer than %d characters", MaxNicknameLength)
	}
	return nil
}

// Save validates and stores a new favorite, assigning its ID and creation time
func (s *FavoriteStore) Save(ctx context.Context, fav *Favorite) (*Favorite, error) {
	if fav == nil || strings.TrimSpace(fav.UserID) == "" {
		return nil, ErrInvalidParameters.WithDetails("favorite and user id are required")
	}
	game, err := LookupGame(s.games, fav.Ticket.GameCode)
	if err != nil {
		return nil, err
	}
	if err := ValidateTicket(game, fav.Ticket); err != nil {
		return nil, err
	}
	if err := validateNickname(fav.Nickname); err != nil {
		return nil, err
	}

	saved := *fav
	saved.ID = s.newID()
	saved.CreatedAt = s.now().UTC()
	if saved.Source == "" {
		saved.Source = SourceManual
	}

	if err := s.put(ctx, &saved); err != nil {
		return nil, err
	}

	s.logger.Debug("Saved favorite %s for user %s", saved.ID, saved.UserID)
	return &saved, nil
}

func (s *FavoriteStore) put(ctx context.Context, fav *Favorite) error {
	data, err := encodeJSON(fav)
	if err != nil {
		return err
	}
	return s.executeWithRetry(ctx, "favorites.hset", func() error {
		return s.client.HSet(ctx, favoriteKey(fav.UserID), fav.ID, data).Err()
	})
}

// List returns a user's favorites newest first; an empty gameCode lists every game
func (s *FavoriteStore) List(ctx context.Context, userID, gameCode string) ([]*Favorite, error) {
	if userID == "" {
		return nil, ErrInvalidParameters.WithDetails("user id is required")
	}

	var raw map[string]string
	err := s.executeWithRetry(ctx, "favorites.hgetall", func() error {
		var err error
		raw, err = s.client.HGetAll(ctx, favoriteKey(userID)).Result()
		return err
	})
	if err != nil {
		return nil, err
	}

	favs := make([]*Favorite, 0, len(raw))
	for id, item := range raw {
		var f Favorite
		if err := decodeJSON([]byte(item), &f); err != nil {
			s.logger.Error("Skipping corrupted favorite %s of user %s: %v", id, userID, err)
			continue
		}
		if gameCode != "" && f.Ticket.GameCode != gameCode {
			continue
		}
		favs = append(favs, &f)
	}

	slices.SortFunc(favs, func(a, b *Favorite) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return favs, nil
}

func (s *FavoriteStore) get(ctx context.Context, userID, id string) (*Favorite, error) {
	var data string
	err := s.executeWithRetry(ctx, "favorites.hget", func() error {
		var err error
		data, err = s.client.HGet(ctx, favoriteKey(userID), id).Result()
		return err
	})
	if err == redis.Nil {
		return nil, ErrFavoriteNotFound.WithUserID(userID).WithDetailsf("id %s", id)
	}
	if err != nil {
		return nil, err
	}

	var f Favorite
	if err := decodeJSON([]byte(data), &f); err != nil {
		return nil, err
	}
	return &f, nil
}

// Rename changes a favorite's nickname
func (s *FavoriteStore) Rename(ctx context.Context, userID, id, nickname string) (*Favorite, error) {
	if userID == "" || id == "" {
		return nil, ErrInvalidParameters.WithDetails("user id and favorite id are required")
	}
	if err := validateNickname(nickname); err != nil {
		return nil, err
	}

	f, err := s.get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	f.Nickname = nickname

	data, err := encodeJSON(f)
	if err != nil {
		return nil, err
	}
	var replaced int64
	err = s.executeWithRetry(ctx, "favorites.replace", func() error {
		var err error
		replaced, err = s.client.Eval(ctx, replaceFavoriteScript, []string{favoriteKey(userID)}, id, string(data)).Int64()
		return err
	})
	if err != nil {
		return nil, err
	}
	if replaced == 0 {
		return nil, ErrFavoriteNotFound.WithUserID(userID).WithDetailsf("id %s deleted during rename", id)
	}
	return f, nil
}

// Delete removes a favorite; a missing one yields ErrFavoriteNotFound
func (s *FavoriteStore) Delete(ctx context.Context, userID, id string) error {
	if userID == "" || id == "" {
		return ErrInvalidParameters.WithDetails("user id and favorite id are required")
	}

	var removed int64
	err := s.executeWithRetry(ctx, "favorites.hdel", func() error {
		var err error
		removed, err = s.client.HDel(ctx, favoriteKey(userID), id).Result()
		return err
	})
	if err != nil {
		return err
	}
	if removed == 0 {
		return ErrFavoriteNotFound.WithUserID(userID).WithDetailsf("id %s", id)
	}
	return nil
}
