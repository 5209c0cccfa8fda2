package luckypick

import (
	"fmt"
	"sync"
)

// BallStatus is the selection state of one number on a board
type BallStatus int

const (
	BallNormal BallStatus = iota
	BallLocked
	BallExcluded
)

func (s BallStatus) String() string {
	switch s {
	case BallNormal:
		return "normal"
	case BallLocked:
		return "locked"
	case BallExcluded:
		return "excluded"
	default:
		return fmt.Sprintf("BallStatus(%d)", int(s))
	}
}

// BallMode decides what a tap on a ball does
type BallMode int

const (
	ModeLock BallMode = iota
	ModeExclude
)

// BallBoard tracks per-number status for one zone and derives the
// NumberConstraints passed to Draw. Safe for concurrent use.
type BallBoard struct {
	zone   ZoneConfig
	mu     sync.RWMutex
	status []BallStatus
}

// NewBallBoard creates a board with every number normal
func NewBallBoard(zone ZoneConfig) *BallBoard {
	return &BallBoard{
		zone:   zone,
		status: make([]BallStatus, zone.boundedPoolSize()),
	}
}

// Zone returns the zone the board covers
func (b *BallBoard) Zone() ZoneConfig { return b.zone }

func (b *BallBoard) index(n int) (int, error) {
	if !b.zone.Contains(n) || n-b.zone.PoolMin >= len(b.status) {
		return 0, ErrInvalidConstraint.WithDetailsf("number %d outside pool [%d, %d]", n, b.zone.PoolMin, b.zone.PoolMax)
	}
	return n - b.zone.PoolMin, nil
}

// Status returns the status of n
func (b *BallBoard) Status(n int) (BallStatus, error) {
	i, err := b.index(n)
	if err != nil {
		return BallNormal, err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.status[i], nil
}

// Toggle applies one tap in the given mode and returns the new status.
//
//	lock mode:    normal -> locked,   locked -> normal,   excluded -> locked
//	exclude mode: normal -> excluded, excluded -> normal, locked -> excluded
//
// Locking beyond the zone's select count is refused with ErrInvalidConstraint.
func (b *BallBoard) Toggle(n int, mode BallMode) (BallStatus, error) {
	i, err := b.index(n)
	if err != nil {
		return BallNormal, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	cur := b.status[i]
	var next BallStatus
	switch mode {
	case ModeLock:
		next = BallLocked
		if cur == BallLocked {
			next = BallNormal
		}
	case ModeExclude:
		next = BallExcluded
		if cur == BallExcluded {
			next = BallNormal
		}
	default:
		return cur, ErrInvalidParameters.WithDetailsf("unknown ball mode %d", mode)
	}

	return b.set(i, cur, next)
}

// Cycle advances n through normal -> locked -> excluded -> normal. When the
// zone's lock set is already full the locked step is skipped.
func (b *BallBoard) Cycle(n int) (BallStatus, error) {
	i, err := b.index(n)
	if err != nil {
		return BallNormal, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	cur := b.status[i]
	next := (cur + 1) % 3
	if next == BallLocked && b.countLocked() >= b.zone.SelectCount {
		next = BallExcluded
	}
	return b.set(i, cur, next)
}

// set must be called with mu held
func (b *BallBoard) set(i int, cur, next BallStatus) (BallStatus, error) {
	if next == BallLocked && cur != BallLocked && b.countLocked() >= b.zone.SelectCount {
		return cur, ErrInvalidConstraint.WithDetailsf("at most %d numbers can be locked in %s", b.zone.SelectCount, b.zone.Name)
	}
	b.status[i] = next
	return next, nil
}

func (b *BallBoard) countLocked() int {
	c := 0
	for _, s := range b.status {
		if s == BallLocked {
			c++
		}
	}
	return c
}

// Clear resets every number to normal
func (b *BallBoard) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	clear(b.status)
}

// Constraints snapshots the board as an immutable NumberConstraints
func (b *BallBoard) Constraints() NumberConstraints {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var c NumberConstraints
	for i, s := range b.status {
		switch s {
		case BallLocked:
			c.Locked = append(c.Locked, b.zone.PoolMin+i)
		case BallExcluded:
			c.Excluded = append(c.Excluded, b.zone.PoolMin+i)
		}
	}
	return c
}

// GameBoard holds the two zone boards of one game
type GameBoard struct {
	Game *GameConfig
	Red  *BallBoard
	Blue *BallBoard
}

// NewGameBoard creates empty boards for both zones of game
func NewGameBoard(game *GameConfig) *GameBoard {
	return &GameBoard{
		Game: game,
		Red:  NewBallBoard(game.Red),
		Blue: NewBallBoard(game.Blue),
	}
}

// Board returns the board of zone z
func (g *GameBoard) Board(z Zone) (*BallBoard, error) {
	switch z {
	case ZoneRed:
		return g.Red, nil
	case ZoneBlue:
		return g.Blue, nil
	default:
		return nil, ErrInvalidParameters.WithDetailsf("unknown zone %q", z)
	}
}

// Clear resets both zones
func (g *GameBoard) Clear() {
	g.Red.Clear()
	g.Blue.Clear()
}
