package luckypick

import (
	"fmt"
	"slices"
	"strings"
)

// NumberConstraints holds the numbers forced into (Locked) and forbidden from
// (Excluded) a draw. Values are sorted and unique; treat it as immutable.
type NumberConstraints struct {
	Locked   []int `json:"locked,omitempty"`
	Excluded []int `json:"excluded,omitempty"`
}

// NewNumberConstraints copies, sorts and de-duplicates its inputs
func NewNumberConstraints(locked, excluded []int) NumberConstraints {
	return NumberConstraints{
		Locked:   normalizeNumbers(locked),
		Excluded: normalizeNumbers(excluded),
	}
}

func normalizeNumbers(nums []int) []int {
	if len(nums) == 0 {
		return nil
	}
	out := slices.Clone(nums)
	slices.Sort(out)
	return slices.Compact(out)
}

// normalized tolerates constraints built as struct literals
func (c NumberConstraints) normalized() NumberConstraints {
	return NewNumberConstraints(c.Locked, c.Excluded)
}

// IsLocked reports whether n is locked
func (c NumberConstraints) IsLocked(n int) bool {
	_, ok := slices.BinarySearch(c.Locked, n)
	return ok
}

// IsExcluded reports whether n is excluded
func (c NumberConstraints) IsExcluded(n int) bool {
	_, ok := slices.BinarySearch(c.Excluded, n)
	return ok
}

// Validate checks the constraints against spec. Every failure is ErrInvalidConstraint.
func (c NumberConstraints) Validate(spec DrawSpec) error {
	c = c.normalized()
	if err := spec.Validate(); err != nil {
		return err
	}

	for _, n := range c.Locked {
		if !spec.Contains(n) {
			return ErrInvalidConstraint.WithDetailsf("locked number %d outside pool [%d, %d]", n, spec.PoolMin, spec.PoolMax)
		}
		if c.IsExcluded(n) {
			return ErrInvalidConstraint.WithDetailsf("number %d is both locked and excluded", n)
		}
	}
	for _, n := range c.Excluded {
		if !spec.Contains(n) {
			return ErrInvalidConstraint.WithDetailsf("excluded number %d outside pool [%d, %d]", n, spec.PoolMin, spec.PoolMax)
		}
	}

	if len(c.Locked) > spec.SelectCount {
		return ErrInvalidConstraint.WithDetailsf("%d locked numbers exceed select count %d", len(c.Locked), spec.SelectCount)
	}

	return nil
}

// Combination is a strictly ascending set of drawn numbers
type Combination []int

// String renders the combination as zero-padded, space separated numbers
func (c Combination) String() string {
	parts := make([]string, len(c))
	for i, n := range c {
		parts[i] = fmt.Sprintf("%02d", n)
	}
	return strings.Join(parts, " ")
}

// Contains reports whether n is part of the combination
func (c Combination) Contains(n int) bool {
	_, ok := slices.BinarySearch(c, n)
	return ok
}

// Validate checks length, ordering, range, and the constraints
func (c Combination) Validate(spec DrawSpec, constraints NumberConstraints) error {
	constraints = constraints.normalized()
	if len(c) != spec.SelectCount {
		return ErrInvalidTicket.WithDetailsf("expected %d numbers, got %d", spec.SelectCount, len(c))
	}
	for i, n := range c {
		if !spec.Contains(n) {
			return ErrInvalidTicket.WithDetailsf("number %d outside pool [%d, %d]", n, spec.PoolMin, spec.PoolMax)
		}
		if i > 0 && c[i-1] >= n {
			return ErrInvalidTicket.WithDetailsf("numbers must be strictly ascending, got %v", []int(c))
		}
		if constraints.IsExcluded(n) {
			return ErrInvalidTicket.WithDetailsf("number %d is excluded", n)
		}
	}
	for _, n := range constraints.Locked {
		if !c.Contains(n) {
			return ErrInvalidTicket.WithDetailsf("locked number %d is missing", n)
		}
	}
	return nil
}

// Draw picks spec.SelectCount distinct numbers from the pool: every locked
// number plus a uniform sample of the eligible rest. Invalid input fails with
// ErrInvalidConstraint; too few eligible numbers fails with ErrInsufficientPool.
// When the locked set already fills the combination gen is never called.
func Draw(spec DrawSpec, constraints NumberConstraints, gen RandomGenerator) (Combination, error) {
	constraints = constraints.normalized()
	if err := constraints.Validate(spec); err != nil {
		return nil, err
	}

	result := make(Combination, 0, spec.SelectCount)
	result = append(result, constraints.Locked...)

	need := spec.SelectCount - len(constraints.Locked)
	if need == 0 {
		return result, nil
	}

	eligible := make([]int, 0, spec.PoolSize())
	for n := spec.PoolMin; n <= spec.PoolMax; n++ {
		if constraints.IsLocked(n) || constraints.IsExcluded(n) {
			continue
		}
		eligible = append(eligible, n)
	}

	if len(eligible) < need {
		return nil, ErrInsufficientPool.WithDetailsf("need %d more numbers but only %d eligible remain", need, len(eligible))
	}
	if gen == nil {
		return nil, ErrInvalidParameters.WithDetails("nil random generator")
	}

	// partial Fisher-Yates: eligible[:i] holds the picks so far
	for i := range need {
		j, err := gen.GenerateInRange(i, len(eligible)-1)
		if err != nil {
			return nil, fmt.Errorf("draw position %d: %w", i, err)
		}
		if j < i || j >= len(eligible) {
			return nil, ErrInvalidRange.WithDetailsf("generator returned %d outside [%d, %d]", j, i, len(eligible)-1)
		}
		eligible[i], eligible[j] = eligible[j], eligible[i]
	}

	result = append(result, eligible[:need]...)
	slices.Sort(result)

	return result, nil
}
