// Package position computes the relative position of stamps under a view
// coordinate and selects the latest visible stamp set of a chronicle.
//
// The calculator is a pure function of the stamp registry and the path
// graph; it holds no state of its own.
package position

import (
	"slices"

	"github.com/roach88/isaac/internal/ir"
	"github.com/roach88/isaac/internal/stamp"
)

// StampResolver resolves a stamp sequence to its tuple.
type StampResolver interface {
	Resolve(seq int32) (ir.Stamp, error)
}

// PathGraph answers path ancestry questions.
type PathGraph interface {
	ReachBound(from, to ir.Nid) (int64, bool)
}

var (
	_ StampResolver = (*stamp.Registry)(nil)
	_ PathGraph     = (*stamp.Paths)(nil)
)

// Calculator orders stamps across paths.
type Calculator struct {
	stamps StampResolver
	paths  PathGraph
}

// NewCalculator creates a calculator over the given registry and paths.
func NewCalculator(stamps StampResolver, paths PathGraph) *Calculator {
	return &Calculator{stamps: stamps, paths: paths}
}

// Relative returns the position of s1 relative to s2 under coord.
//
// Stamps on one path are totally ordered by time, then by sequence. A stamp
// is BEFORE a stamp on a descendant path when its time is within the
// descendant's reach bound. Otherwise the branches are disjoint: TIME
// precedence yields UNREACHABLE, PATH precedence lets the stamp on the
// viewing path win, and anything else is a CONTRADICTION.
func (c *Calculator) Relative(s1, s2 int32, coord ir.StampCoordinate) (ir.RelativePosition, error) {
	st1, err := c.stamps.Resolve(s1)
	if err != nil {
		return 0, err
	}
	st2, err := c.stamps.Resolve(s2)
	if err != nil {
		return 0, err
	}
	return c.relative(s1, st1, s2, st2, coord), nil
}

func (c *Calculator) relative(s1 int32, st1 ir.Stamp, s2 int32, st2 ir.Stamp, coord ir.StampCoordinate) ir.RelativePosition {
	if s1 == s2 {
		return ir.Equal
	}

	if st1.Path == st2.Path {
		switch {
		case st1.Time < st2.Time:
			return ir.Before
		case st1.Time > st2.Time:
			return ir.After
		case s1 < s2:
			return ir.Before
		default:
			return ir.After
		}
	}

	if bound, ok := c.paths.ReachBound(st1.Path, st2.Path); ok && st1.Time <= bound {
		return ir.Before
	}
	if bound, ok := c.paths.ReachBound(st2.Path, st1.Path); ok && st2.Time <= bound {
		return ir.After
	}

	if coord.Precedence == ir.PrecedenceTime {
		return ir.Unreachable
	}
	switch {
	case st1.Path == coord.Path:
		return ir.After
	case st2.Path == coord.Path:
		return ir.Before
	default:
		return ir.Contradiction
	}
}

// OnRoute reports whether seq is visible under coord: not canceled, status
// allowed, time within the horizon, and on a path whose history reaches
// the viewing path at that time.
func (c *Calculator) OnRoute(seq int32, coord ir.StampCoordinate) (bool, error) {
	if seq == ir.CanceledStampSequence {
		return false, nil
	}
	st, err := c.stamps.Resolve(seq)
	if err != nil {
		return false, err
	}
	return c.onRoute(st, coord), nil
}

func (c *Calculator) onRoute(st ir.Stamp, coord ir.StampCoordinate) bool {
	if st.IsCanceled() || !coord.Allows(st.Status) || st.Time > coord.Time {
		return false
	}
	bound, ok := c.paths.ReachBound(st.Path, coord.Path)
	return ok && st.Time <= bound
}

// LatestStampSequences returns the maximal visible stamps of all under
// coord, sorted by sequence. The result has no elements when nothing is
// visible, one in the resolved case, and several when visible stamps
// contradict each other. Choosing among several is left to the caller.
func (c *Calculator) LatestStampSequences(coord ir.StampCoordinate, all []int32) ([]int32, error) {
	type visible struct {
		seq int32
		st  ir.Stamp
	}

	var candidates []visible
	seen := make(map[int32]bool, len(all))
	for _, seq := range all {
		if seen[seq] || seq == ir.CanceledStampSequence {
			continue
		}
		seen[seq] = true

		st, err := c.stamps.Resolve(seq)
		if err != nil {
			return nil, err
		}
		if c.onRoute(st, coord) {
			candidates = append(candidates, visible{seq: seq, st: st})
		}
	}

	latest := make([]int32, 0, 1)
	for i, x := range candidates {
		superseded := false
		for j, y := range candidates {
			if i != j && c.relative(x.seq, x.st, y.seq, y.st, coord) == ir.Before {
				superseded = true
				break
			}
		}
		if !superseded {
			latest = append(latest, x.seq)
		}
	}
	slices.Sort(latest)
	return latest, nil
}

// IsLatestActive reports whether any stamp in the latest set is ACTIVE.
func (c *Calculator) IsLatestActive(coord ir.StampCoordinate, all []int32) (bool, error) {
	latest, err := c.LatestStampSequences(coord, all)
	if err != nil {
		return false, err
	}
	for _, seq := range latest {
		st, err := c.stamps.Resolve(seq)
		if err != nil {
			return false, err
		}
		if st.Status == ir.StatusActive {
			return true, nil
		}
	}
	return false, nil
}
