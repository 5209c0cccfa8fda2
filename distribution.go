package luckypick

import (
	"fmt"
	"slices"
)

// HistoricalDraw is one past result of a single zone
type HistoricalDraw struct {
	Period  string `json:"period" yaml:"period"`
	Date    string `json:"date" yaml:"date"`
	Numbers []int  `json:"numbers" yaml:"numbers"`
}

// DrawRecord is one official result of a game with both zones
type DrawRecord struct {
	Period string `json:"period" yaml:"period"`
	Date   string `json:"date" yaml:"date"`
	Red    []int  `json:"red" yaml:"red"`
	Blue   []int  `json:"blue" yaml:"blue"`
}

// Zone projects the record onto one zone
func (r DrawRecord) Zone(z Zone) HistoricalDraw {
	nums := r.Red
	if z == ZoneBlue {
		nums = r.Blue
	}
	return HistoricalDraw{Period: r.Period, Date: r.Date, Numbers: slices.Clone(nums)}
}

// Validate checks the record against the game's zones
func (r DrawRecord) Validate(game *GameConfig) error {
	if r.Period == "" {
		return ErrInvalidDrawRecord.WithDetails("period cannot be empty")
	}
	if err := validateZoneNumbers(game.Red.DrawSpec, r.Red); err != nil {
		return ErrInvalidDrawRecord.WithCause(err).WithDetailsf("period %s red: %v", r.Period, err)
	}
	if err := validateZoneNumbers(game.Blue.DrawSpec, r.Blue); err != nil {
		return ErrInvalidDrawRecord.WithCause(err).WithDetailsf("period %s blue: %v", r.Period, err)
	}
	return nil
}

// validateZoneNumbers checks count, range and uniqueness; order does not matter
func validateZoneNumbers(spec DrawSpec, nums []int) error {
	if len(nums) != spec.SelectCount {
		return fmt.Errorf("expected %d numbers, got %d", spec.SelectCount, len(nums))
	}
	seen := make(map[int]struct{}, len(nums))
	for _, n := range nums {
		if !spec.Contains(n) {
			return fmt.Errorf("number %d outside [%d, %d]", n, spec.PoolMin, spec.PoolMax)
		}
		if _, dup := seen[n]; dup {
			return fmt.Errorf("duplicate number %d", n)
		}
		seen[n] = struct{}{}
	}
	return nil
}

// ProjectZone projects records onto one zone, keeping their order
func ProjectZone(records []DrawRecord, z Zone) []HistoricalDraw {
	out := make([]HistoricalDraw, len(records))
	for i, r := range records {
		out[i] = r.Zone(z)
	}
	return out
}

// NumberStat 单个号码的统计
type NumberStat struct {
	Number         int `json:"number"`
	Frequency      int `json:"frequency"`
	CurrentMissing int `json:"current_missing"`
	MaxMissing     int `json:"max_missing"`
}

// OddEvenRatio is the frequency-weighted parity split
type OddEvenRatio struct {
	Odd  int `json:"odd"`
	Even int `json:"even"`
}

// Ratio renders the split as "odd:even"
func (r OddEvenRatio) Ratio() string { return fmt.Sprintf("%d:%d", r.Odd, r.Even) }

// BigSmallRatio is the frequency-weighted split around the zone threshold
type BigSmallRatio struct {
	Big   int `json:"big"`
	Small int `json:"small"`
}

// Ratio renders the split as "big:small"
func (r BigSmallRatio) Ratio() string { return fmt.Sprintf("%d:%d", r.Big, r.Small) }

// FrequencyTable holds one entry per pool number in ascending order
type FrequencyTable struct {
	Window       int           `json:"window"` // effective window
	Entries      []NumberStat  `json:"entries"`
	MaxFrequency int           `json:"max_frequency"`
	OddEven      OddEvenRatio  `json:"odd_even"`
	BigSmall     BigSmallRatio `json:"big_small"`
}

// Get returns the stat of n
func (t *FrequencyTable) Get(n int) (NumberStat, bool) {
	i, ok := slices.BinarySearchFunc(t.Entries, n, func(s NumberStat, n int) int { return s.Number - n })
	if !ok {
		return NumberStat{}, false
	}
	return t.Entries[i], true
}

// Heat returns frequency / MaxFrequency in [0, 1], for heatmap shading
func (t *FrequencyTable) Heat(n int) float64 {
	s, ok := t.Get(n)
	if !ok || t.MaxFrequency == 0 {
		return 0
	}
	return float64(s.Frequency) / float64(t.MaxFrequency)
}

// ComputeDistribution analyses the first window entries of history (most
// recent first) for every number of the zone's pool. window <= 0 or an empty
// history yields an all-zero table; a pool larger than MaxPoolSize yields an
// empty one. Numbers outside the pool are ignored.
func ComputeDistribution(history []HistoricalDraw, window int, zone ZoneConfig) *FrequencyTable {
	spec := zone.DrawSpec
	size := spec.boundedPoolSize()

	table := &FrequencyTable{Entries: make([]NumberStat, size)}
	for i := range table.Entries {
		table.Entries[i].Number = spec.PoolMin + i
	}

	if window <= 0 || len(history) == 0 {
		return table
	}

	w := min(window, len(history))
	table.Window = w

	// presence[i][k]: number PoolMin+k appeared in draw i
	presence := make([][]bool, w)
	for i := range w {
		presence[i] = make([]bool, size)
		for _, n := range history[i].Numbers {
			if k := n - spec.PoolMin; spec.Contains(n) && k >= 0 && k < size {
				presence[i][k] = true
			}
		}
	}

	for k := range table.Entries {
		e := &table.Entries[k]
		run, leading := 0, true
		for i := range w {
			if presence[i][k] {
				e.Frequency++
				leading = false
				run = 0
				continue
			}
			run++
			if leading {
				e.CurrentMissing++
			}
			e.MaxMissing = max(e.MaxMissing, run)
		}

		table.MaxFrequency = max(table.MaxFrequency, e.Frequency)
		if e.Number%2 != 0 {
			table.OddEven.Odd += e.Frequency
		} else {
			table.OddEven.Even += e.Frequency
		}
		if zone.IsBig(e.Number) {
			table.BigSmall.Big += e.Frequency
		} else {
			table.BigSmall.Small += e.Frequency
		}
	}

	return table
}
