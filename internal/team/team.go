// Package team partitions event participants into fixed-size teams.
package team

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
)

// Errors returned by team operations. Bad team input is a caller bug, not a
// user-reachable state, so this package signals it with errors rather than
// the boolean contract the event mutators use.
var (
	ErrNoParticipants = errors.New("no participants to assign to teams")
	ErrInvalidSize    = errors.New("team size must be 1, 2, 3, 4 or 6 players")
	ErrNotEnough      = errors.New("not enough participants for the requested team size")
	ErrNoTeams        = errors.New("no teams to redistribute")
)

// ValidSizes are the supported team sizes.
var ValidSizes = []int{1, 2, 3, 4, 6}

// validSize reports whether size is a supported team size.
func validSize(size int) bool {
	return slices.Contains(ValidSizes, size)
}

// Randomize shuffles participants uniformly and partitions them into
// consecutive teams of size players. A trailing partial team is discarded;
// callers reconcile the leftover count from
// len(participants) - len(teams)*size.
func Randomize(participants []string, size int) ([][]string, error) {
	if len(participants) == 0 {
		return nil, ErrNoParticipants
	}
	if !validSize(size) {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidSize, size)
	}
	if size > 1 && len(participants) < size {
		return nil, fmt.Errorf("%w: %d participants, size %d", ErrNotEnough, len(participants), size)
	}

	shuffled := slices.Clone(participants)
	rand.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	var teams [][]string
	for i := 0; i+size <= len(shuffled); i += size {
		// Each team owns its members; no shared backing with its neighbors.
		teams = append(teams, slices.Clone(shuffled[i:i+size]))
	}
	return teams, nil
}

// Balanced shuffles participants into teams of size players without
// discarding anyone. When allowIncomplete is true the leftovers form a
// trailing short team; otherwise they are distributed round-robin over the
// complete teams.
func Balanced(participants []string, size int, allowIncomplete bool) ([][]string, error) {
	if len(participants) == 0 {
		return nil, ErrNoParticipants
	}
	if !validSize(size) {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidSize, size)
	}

	shuffled := slices.Clone(participants)
	rand.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	var teams [][]string
	complete := len(shuffled) / size
	for i := 0; i < complete; i++ {
		teams = append(teams, slices.Clone(shuffled[i*size:(i+1)*size]))
	}

	leftovers := shuffled[complete*size:]
	switch {
	case len(leftovers) == 0:
	case allowIncomplete || len(teams) == 0:
		teams = append(teams, slices.Clone(leftovers))
	default:
		for i, p := range leftovers {
			idx := i % len(teams)
			teams[idx] = append(teams[idx], p)
		}
	}
	return teams, nil
}

// Redistribute flattens the current teams and re-randomizes every member at
// the new size.
func Redistribute(teams [][]string, newSize int) ([][]string, error) {
	if len(teams) == 0 {
		return nil, ErrNoTeams
	}
	if !validSize(newSize) {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidSize, newSize)
	}

	var all []string
	for _, t := range teams {
		all = append(all, t...)
	}
	return Randomize(all, newSize)
}

// Validation is the result of a structural team check.
type Validation struct {
	Valid           bool
	Issues          []string
	TotalTeams      int
	TotalMembers    int
	CompleteTeams   int
	IncompleteTeams int
	Duplicates      []string
}

// Validate checks teams for empty teams, size mismatches against
// expectedSize, and members appearing in more than one team.
func Validate(teams [][]string, expectedSize int) Validation {
	v := Validation{Valid: true, TotalTeams: len(teams)}
	if len(teams) == 0 {
		v.Valid = false
		v.Issues = append(v.Issues, "no teams provided")
		return v
	}

	seen := make(map[string]struct{})
	for i, t := range teams {
		n := i + 1
		if len(t) == expectedSize {
			v.CompleteTeams++
		} else {
			v.IncompleteTeams++
			v.Issues = append(v.Issues, fmt.Sprintf("team %d has %d players (expected %d)", n, len(t), expectedSize))
		}
		if len(t) == 0 {
			v.Valid = false
			v.Issues = append(v.Issues, fmt.Sprintf("team %d is empty", n))
		}
		for _, p := range t {
			if _, dup := seen[p]; dup {
				v.Valid = false
				v.Duplicates = append(v.Duplicates, p)
				v.Issues = append(v.Issues, fmt.Sprintf("player %s is assigned to multiple teams", p))
			}
			seen[p] = struct{}{}
			v.TotalMembers++
		}
	}
	return v
}

// Assignments maps every member to their 1-indexed team number.
func Assignments(teams [][]string) map[string]int {
	out := make(map[string]int)
	for i, t := range teams {
		for _, p := range t {
			out[p] = i + 1
		}
	}
	return out
}

// ShuffleOrder reorders the team list without touching team membership.
func ShuffleOrder(teams [][]string) [][]string {
	shuffled := slices.Clone(teams)
	rand.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	return shuffled
}

// Stats summarizes team size distribution.
type Stats struct {
	TotalTeams   int
	TotalMembers int
	AverageSize  float64
	MinSize      int
	MaxSize      int
	Sizes        []int
}

// Statistics computes size statistics over teams.
func Statistics(teams [][]string) Stats {
	if len(teams) == 0 {
		return Stats{}
	}

	s := Stats{TotalTeams: len(teams)}
	s.MinSize = len(teams[0])
	for _, t := range teams {
		size := len(t)
		s.Sizes = append(s.Sizes, size)
		s.TotalMembers += size
		if size < s.MinSize {
			s.MinSize = size
		}
		if size > s.MaxSize {
			s.MaxSize = size
		}
	}
	s.AverageSize = float64(s.TotalMembers) / float64(len(teams))
	return s
}
