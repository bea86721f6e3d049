// Package catalog reads the list of game ids to mirror.
package catalog

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math/rand/v2"
	"os"
	"strings"

	"github.com/vertextoedge/romhustler-mirror/internal/domain"
)

// DefaultListFile is the popular games list shipped next to the binary
const DefaultListFile = "games_popular.txt"

// DefaultExcludeFile lists game ids that are never mirrored
const DefaultExcludeFile = "games_bad.txt"

// ReadFile reads a game list file
func ReadFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open game list: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// ReadOptionalFile reads a game list file, returning nothing if it is missing
func ReadOptionalFile(path string) ([]string, error) {
	ids, err := ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return ids, err
}

// Parse reads one game id per line. Blank lines and lines starting with #
// are skipped, duplicates keep their first position.
func Parse(r io.Reader) ([]string, error) {
	var ids []string
	seen := make(map[string]struct{})

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if err := ValidateID(line); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		if _, dup := seen[line]; dup {
			continue
		}
		seen[line] = struct{}{}
		ids = append(ids, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read game list: %w", err)
	}
	return ids, nil
}

// ValidateID rejects ids that would escape the data directory.
// Ids are paths below the site's listing root, like "snes/super-mario-world".
// Parts starting with "_" are reserved for the data dir's own entries.
func ValidateID(id string) error {
	if strings.HasPrefix(id, "/") || strings.Contains(id, `\`) {
		return fmt.Errorf("%w: game id %q", domain.ErrInvalidInput, id)
	}
	for _, part := range strings.Split(id, "/") {
		if part == "" || part == "." || part == ".." || strings.HasPrefix(part, "_") {
			return fmt.Errorf("%w: game id %q", domain.ErrInvalidInput, id)
		}
	}
	return nil
}

// Exclude returns ids without the excluded ones, keeping order
func Exclude(ids, excluded []string) []string {
	if len(excluded) == 0 {
		return ids
	}
	skip := make(map[string]struct{}, len(excluded))
	for _, id := range excluded {
		skip[id] = struct{}{}
	}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := skip[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}

// SampleSize picks a number in [lo, hi], capped by available
func SampleSize(rng *rand.Rand, lo, hi, available int) int {
	if hi < lo {
		hi = lo
	}
	n := lo
	if hi > lo {
		n = lo + rng.IntN(hi-lo+1)
	}
	if n > available {
		n = available
	}
	if n < 0 {
		n = 0
	}
	return n
}

// Sample returns n ids chosen at random without repetition
func Sample(rng *rand.Rand, ids []string, n int) []string {
	if n >= len(ids) {
		n = len(ids)
	}
	shuffled := make([]string, len(ids))
	copy(shuffled, ids)
	rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	return shuffled[:n]
}
