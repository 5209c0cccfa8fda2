package luckypick

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// HistoryFile is a YAML document of published results, newest first:
//
//	game: ssq
//	draws:
//	  - period: "2024015"
//	    date: "2024-02-06"
//	    red: [2, 9, 14, 20, 26, 31]
//	    blue: [7]
type HistoryFile struct {
	Game  string       `yaml:"game"`
	Draws []DrawRecord `yaml:"draws"`
}

// DecodeHistory reads a history document from r
func DecodeHistory(r io.Reader) (*HistoryFile, error) {
	var f HistoryFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrDeserializationFailed.WithDetails("empty history document")
		}
		return nil, ErrDeserializationFailed.WithCause(err).WithDetails(err.Error())
	}
	if f.Game == "" {
		return nil, ErrDeserializationFailed.WithDetails("history document has no game")
	}
	return &f, nil
}

// LoadHistoryFile reads a history document from path
func LoadHistoryFile(path string) (*HistoryFile, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open history file: %w", err)
	}
	defer fh.Close()

	f, err := DecodeHistory(fh)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Validate checks every draw against the game and rejects repeated periods
func (f *HistoryFile) Validate(games map[string]*GameConfig) error {
	game, err := LookupGame(games, f.Game)
	if err != nil {
		return err
	}
	seen := make(map[string]struct{}, len(f.Draws))
	for _, d := range f.Draws {
		if err := d.Validate(game); err != nil {
			return err
		}
		if _, dup := seen[d.Period]; dup {
			return ErrDuplicatePeriod.WithGame(f.Game).WithDetailsf("period %s", d.Period)
		}
		seen[d.Period] = struct{}{}
	}
	return nil
}

// ImportHistory appends the file's draws to repo oldest first. Periods the
// repository already holds are skipped; it returns how many were added.
func ImportHistory(ctx context.Context, repo HistoryRepository, f *HistoryFile) (int, error) {
	added := 0
	for i := len(f.Draws) - 1; i >= 0; i-- {
		err := repo.Append(ctx, f.Game, f.Draws[i])
		switch {
		case err == nil:
			added++
		case errors.Is(err, ErrDuplicatePeriod):
		default:
			return added, err
		}
	}
	return added, nil
}
