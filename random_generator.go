package luckypick

import (
	"crypto/rand"
	"math/big"
	mrand "math/rand/v2"
	"sync"
)

// SecureRandomGenerator draws from crypto/rand. Safe for concurrent use.
type SecureRandomGenerator struct{}

// NewSecureRandomGenerator creates a new secure random generator
func NewSecureRandomGenerator() *SecureRandomGenerator {
	return &SecureRandomGenerator{}
}

// GenerateInRange returns a uniform number in [min, max] (inclusive)
func (g *SecureRandomGenerator) GenerateInRange(min, max int) (int, error) {
	if min > max {
		return 0, ErrInvalidRange
	}
	if min == max {
		return min, nil
	}

	n, err := rand.Int(rand.Reader, big.NewInt(int64(max-min)+1))
	if err != nil {
		return 0, ErrSystemError.WithCause(err).WithDetails("crypto/rand read failed")
	}

	return min + int(n.Int64()), nil
}

// GenerateFloat generates a secure random float between 0 and 1 (exclusive of 1)
func (g *SecureRandomGenerator) GenerateFloat() (float64, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1<<53)) // 53 bits of mantissa
	if err != nil {
		return 0, ErrSystemError.WithCause(err).WithDetails("crypto/rand read failed")
	}

	return float64(n.Int64()) / float64(1<<53), nil
}

// SeededRandomGenerator is a reproducible PCG source, for tests and replays.
type SeededRandomGenerator struct {
	mu  sync.Mutex
	rng *mrand.Rand
}

// NewSeededRandomGenerator creates a deterministic generator from two seed words
func NewSeededRandomGenerator(seed1, seed2 uint64) *SeededRandomGenerator {
	return &SeededRandomGenerator{rng: mrand.New(mrand.NewPCG(seed1, seed2))}
}

// GenerateInRange returns a uniform number in [min, max] (inclusive)
func (g *SeededRandomGenerator) GenerateInRange(min, max int) (int, error) {
	if min > max {
		return 0, ErrInvalidRange
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	return min + g.rng.IntN(max-min+1), nil
}

// GenerateFloat returns a float in [0, 1)
func (g *SeededRandomGenerator) GenerateFloat() (float64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.rng.Float64(), nil
}
