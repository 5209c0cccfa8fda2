package luckypick

import (
	"fmt"
	"slices"
	"strings"
	"sync"
)

// Ticket is one complete bet: a red and a blue combination of one game
type Ticket struct {
	GameCode string      `json:"gameCode"`
	Red      Combination `json:"redBalls"`
	Blue     Combination `json:"blueBalls"`
}

// String renders the ticket as "01 02 03 04 05 06 | 07"
func (t Ticket) String() string {
	return t.Red.String() + " | " + t.Blue.String()
}

// Clone returns a ticket that shares no backing arrays with t
func (t Ticket) Clone() Ticket {
	return Ticket{GameCode: t.GameCode, Red: slices.Clone(t.Red), Blue: slices.Clone(t.Blue)}
}

// GenerateTicket draws one ticket honouring the board's lock/exclude state
func GenerateTicket(game *GameConfig, board *GameBoard, gen RandomGenerator) (Ticket, error) {
	var redC, blueC NumberConstraints
	if board != nil {
		redC = board.Red.Constraints()
		blueC = board.Blue.Constraints()
	}
	return generateTicket(game, redC, blueC, gen)
}

func generateTicket(game *GameConfig, redC, blueC NumberConstraints, gen RandomGenerator) (Ticket, error) {
	red, err := Draw(game.Red.DrawSpec, redC, gen)
	if err != nil {
		return Ticket{}, fmt.Errorf("%s %s: %w", game.Code, game.Red.Name, err)
	}
	blue, err := Draw(game.Blue.DrawSpec, blueC, gen)
	if err != nil {
		return Ticket{}, fmt.Errorf("%s %s: %w", game.Code, game.Blue.Name, err)
	}
	return Ticket{GameCode: game.Code, Red: red, Blue: blue}, nil
}

// GenerateTickets draws count tickets, 1 <= count <= MaxTicketsPerRequest.
// The board is snapshotted once so every ticket sees the same constraints.
func GenerateTickets(game *GameConfig, board *GameBoard, gen RandomGenerator, count int) ([]Ticket, error) {
	return generateTickets(game, board, gen, count, MaxTicketsPerRequest)
}

func generateTickets(game *GameConfig, board *GameBoard, gen RandomGenerator, count, limit int) ([]Ticket, error) {
	if game == nil {
		return nil, ErrInvalidParameters.WithDetails("nil game config")
	}
	if count < 1 || count > limit {
		return nil, ErrInvalidCount.WithDetailsf("count %d must be in [1, %d]", count, limit)
	}

	var redC, blueC NumberConstraints
	if board != nil {
		redC = board.Red.Constraints()
		blueC = board.Blue.Constraints()
	}

	tickets := make([]Ticket, 0, count)
	for range count {
		t, err := generateTicket(game, redC, blueC, gen)
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, t)
	}
	return tickets, nil
}

// ValidateTicket checks counts, ranges and uniqueness of both zones. The
// stored combinations must also be ascending.
func ValidateTicket(game *GameConfig, t Ticket) error {
	if game == nil {
		return ErrInvalidParameters.WithDetails("nil game config")
	}
	if t.GameCode != game.Code {
		return ErrInvalidTicket.WithGame(t.GameCode).WithDetailsf("ticket is for %q, not %q", t.GameCode, game.Code)
	}
	if err := t.Red.Validate(game.Red.DrawSpec, NumberConstraints{}); err != nil {
		return fmt.Errorf("%s: %w", game.Red.Name, err)
	}
	if err := t.Blue.Validate(game.Blue.DrawSpec, NumberConstraints{}); err != nil {
		return fmt.Errorf("%s: %w", game.Blue.Name, err)
	}
	return nil
}

// NewTicket builds a ticket from unordered user input and validates it
func NewTicket(game *GameConfig, red, blue []int) (Ticket, error) {
	if game == nil {
		return Ticket{}, ErrInvalidParameters.WithDetails("nil game config")
	}
	r, b := slices.Clone(red), slices.Clone(blue)
	slices.Sort(r)
	slices.Sort(b)

	t := Ticket{GameCode: game.Code, Red: r, Blue: b}
	if err := ValidateTicket(game, t); err != nil {
		return Ticket{}, err
	}
	return t, nil
}

// FormatTickets renders tickets one per line as "第N注: 01 02 ... | 07"
func FormatTickets(tickets []Ticket) string {
	var sb strings.Builder
	for i, t := range tickets {
		fmt.Fprintf(&sb, "第%d注: %s\n", i+1, t)
	}
	return sb.String()
}

// PendingList is the user's curated list of tickets awaiting use.
// Safe for concurrent use.
type PendingList struct {
	game    *GameConfig
	mu      sync.RWMutex
	tickets []Ticket
}

// NewPendingList creates an empty list for one game
func NewPendingList(game *GameConfig) *PendingList {
	return &PendingList{game: game}
}

// Add validates and stores a copy of t; tickets of another game are rejected
func (p *PendingList) Add(t Ticket) error {
	if err := ValidateTicket(p.game, t); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.tickets = append(p.tickets, t.Clone())
	return nil
}

// Remove deletes the ticket at index i
func (p *PendingList) Remove(i int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if i < 0 || i >= len(p.tickets) {
		return ErrInvalidParameters.WithDetailsf("index %d out of range [0, %d)", i, len(p.tickets))
	}
	p.tickets = slices.Delete(p.tickets, i, i+1)
	return nil
}

// Clear empties the list
func (p *PendingList) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tickets = nil
}

// Len returns the number of pending tickets
func (p *PendingList) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.tickets)
}

// Tickets returns deep copies of the pending tickets
func (p *PendingList) Tickets() []Ticket {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]Ticket, len(p.tickets))
	for i, t := range p.tickets {
		out[i] = t.Clone()
	}
	return out
}

// Text renders the list in clipboard format, empty when nothing is pending
func (p *PendingList) Text() string {
	return FormatTickets(p.Tickets())
}
