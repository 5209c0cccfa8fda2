package luckypick

import (
	"fmt"
	"sort"
)

// Zone identifies one of the two number areas of a ticket
type Zone string

const (
	ZoneRed  Zone = "red"  // 红球 / 前区
	ZoneBlue Zone = "blue" // 蓝球 / 后区
)

// Valid reports whether z is a known zone
func (z Zone) Valid() bool { return z == ZoneRed || z == ZoneBlue }

// DrawSpec describes one zone of a lottery: numbers [PoolMin, PoolMax], pick SelectCount
type DrawSpec struct {
	PoolMin     int `json:"pool_min" yaml:"pool_min" mapstructure:"pool_min"`
	PoolMax     int `json:"pool_max" yaml:"pool_max" mapstructure:"pool_max"`
	SelectCount int `json:"select_count" yaml:"select_count" mapstructure:"select_count"`
}

// PoolSize returns the number of candidates in the pool
func (s DrawSpec) PoolSize() int { return s.PoolMax - s.PoolMin + 1 }

// Contains reports whether n lies inside the pool
func (s DrawSpec) Contains(n int) bool { return n >= s.PoolMin && n <= s.PoolMax }

// poolTooLarge compares in uint64 so extreme bounds cannot overflow
func (s DrawSpec) poolTooLarge() bool {
	return s.PoolMax >= s.PoolMin && uint64(s.PoolMax)-uint64(s.PoolMin) >= MaxPoolSize
}

// boundedPoolSize is PoolSize, or 0 for an empty or oversized pool
func (s DrawSpec) boundedPoolSize() int {
	if s.PoolMax < s.PoolMin || s.poolTooLarge() {
		return 0
	}
	return s.PoolSize()
}

// Validate checks poolMax >= poolMin, pool size <= MaxPoolSize and
// 0 < selectCount <= pool size
func (s DrawSpec) Validate() error {
	if s.PoolMax < s.PoolMin {
		return ErrInvalidConstraint.WithDetailsf("pool max %d is below pool min %d", s.PoolMax, s.PoolMin)
	}
	if s.poolTooLarge() {
		return ErrInvalidConstraint.WithDetailsf("pool [%d, %d] exceeds %d numbers", s.PoolMin, s.PoolMax, MaxPoolSize)
	}
	if s.SelectCount <= 0 || s.SelectCount > s.PoolSize() {
		return ErrInvalidConstraint.WithDetailsf("select count %d must be in [1, %d]", s.SelectCount, s.PoolSize())
	}
	return nil
}

// ZoneConfig is a DrawSpec plus the big/small split used by statistics.
// A number n is big when n >= BigThreshold.
type ZoneConfig struct {
	Name         string `json:"name" yaml:"name" mapstructure:"name"`
	DrawSpec     `yaml:",inline" mapstructure:",squash"`
	BigThreshold int `json:"big_threshold" yaml:"big_threshold" mapstructure:"big_threshold"`
}

// IsBig reports whether n falls in the big bucket
func (z ZoneConfig) IsBig(n int) bool { return n >= z.BigThreshold }

// Validate checks the embedded spec and the threshold
func (z ZoneConfig) Validate() error {
	if err := z.DrawSpec.Validate(); err != nil {
		return err
	}
	if z.BigThreshold <= z.PoolMin || z.BigThreshold > z.PoolMax {
		return ErrConfigInvalid.WithDetailsf("zone %q big threshold %d must be in (%d, %d]",
			z.Name, z.BigThreshold, z.PoolMin, z.PoolMax)
	}
	return nil
}

// GameConfig 彩种配置
type GameConfig struct {
	Code string     `json:"code" yaml:"code" mapstructure:"code"`
	Name string     `json:"name" yaml:"name" mapstructure:"name"`
	Red  ZoneConfig `json:"red" yaml:"red" mapstructure:"red"`
	Blue ZoneConfig `json:"blue" yaml:"blue" mapstructure:"blue"`
}

// Validate checks both zones
func (g *GameConfig) Validate() error {
	if g == nil {
		return ErrInvalidParameters.WithDetails("nil game config")
	}
	if g.Code == "" {
		return ErrConfigInvalid.WithDetails("game code cannot be empty")
	}
	if err := g.Red.Validate(); err != nil {
		return fmt.Errorf("game %s red zone: %w", g.Code, err)
	}
	if err := g.Blue.Validate(); err != nil {
		return fmt.Errorf("game %s blue zone: %w", g.Code, err)
	}
	return nil
}

// Zone returns the config of the requested zone
func (g *GameConfig) Zone(z Zone) (ZoneConfig, error) {
	switch z {
	case ZoneRed:
		return g.Red, nil
	case ZoneBlue:
		return g.Blue, nil
	default:
		return ZoneConfig{}, ErrInvalidParameters.WithDetailsf("unknown zone %q", z)
	}
}

// DefaultGames returns the built-in catalog. Thresholds are per-game constants.
func DefaultGames() map[string]*GameConfig {
	return map[string]*GameConfig{
		GameSSQ: {
			Code: GameSSQ,
			Name: "双色球",
			Red: ZoneConfig{
				Name:         "红球",
				DrawSpec:     DrawSpec{PoolMin: 1, PoolMax: 33, SelectCount: 6},
				BigThreshold: 17,
			},
			Blue: ZoneConfig{
				Name:         "蓝球",
				DrawSpec:     DrawSpec{PoolMin: 1, PoolMax: 16, SelectCount: 1},
				BigThreshold: 9,
			},
		},
		GameDLT: {
			Code: GameDLT,
			Name: "大乐透",
			Red: ZoneConfig{
				Name:         "前区",
				DrawSpec:     DrawSpec{PoolMin: 1, PoolMax: 35, SelectCount: 5},
				BigThreshold: 18,
			},
			Blue: ZoneConfig{
				Name:         "后区",
				DrawSpec:     DrawSpec{PoolMin: 1, PoolMax: 12, SelectCount: 2},
				BigThreshold: 7,
			},
		},
	}
}

// LookupGame finds a game by code
func LookupGame(games map[string]*GameConfig, code string) (*GameConfig, error) {
	g, ok := games[code]
	if !ok || g == nil {
		return nil, ErrUnknownGame.WithGame(code).WithDetailsf("game %q is not configured", code)
	}
	return g, nil
}

// GameCodes returns the configured codes in sorted order
func GameCodes(games map[string]*GameConfig) []string {
	codes := make([]string, 0, len(games))
	for code := range games {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}
