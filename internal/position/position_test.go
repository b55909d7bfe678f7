package position

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/isaac/internal/ir"
	"github.com/roach88/isaac/internal/stamp"
)

const (
	author  ir.Nid = 100
	module  ir.Nid = 101
	master  ir.Nid = 1
	devel   ir.Nid = 2
	feature ir.Nid = 3
	other   ir.Nid = 4
)

type fixture struct {
	stamps *stamp.Registry
	paths  *stamp.Paths
	calc   *Calculator
}

// newFixture builds master ← devel (origin master@5000), an unrelated
// path "other", and feature with origins on both devel and other.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	reg := stamp.NewRegistry(nil)
	paths := stamp.NewPaths()
	require.NoError(t, paths.AddPath(master))
	require.NoError(t, paths.AddPath(devel, stamp.Origin{Path: master, Time: 5000}))
	require.NoError(t, paths.AddPath(other))
	require.NoError(t, paths.AddPath(feature,
		stamp.Origin{Path: devel, Time: ir.TimeMax},
		stamp.Origin{Path: other, Time: ir.TimeMax},
	))
	return &fixture{stamps: reg, paths: paths, calc: NewCalculator(reg, paths)}
}

func (f *fixture) committed(t *testing.T, status ir.Status, time int64, path ir.Nid) int32 {
	t.Helper()
	seq, err := f.stamps.InternCommitted(status, time, author, module, path)
	require.NoError(t, err)
	return seq
}

func TestRelative_SamePathOrdersByTime(t *testing.T) {
	f := newFixture(t)
	coord := ir.NewStampCoordinate(master)

	early := f.committed(t, ir.StatusActive, 1000, master)
	late := f.committed(t, ir.StatusActive, 2000, master)

	pos, err := f.calc.Relative(early, late, coord)
	require.NoError(t, err)
	assert.Equal(t, ir.Before, pos)

	pos, err = f.calc.Relative(late, early, coord)
	require.NoError(t, err)
	assert.Equal(t, ir.After, pos)

	pos, err = f.calc.Relative(early, early, coord)
	require.NoError(t, err)
	assert.Equal(t, ir.Equal, pos)
}

func TestRelative_SameTimeTieBreaksBySequence(t *testing.T) {
	f := newFixture(t)
	coord := ir.NewStampCoordinate(master)

	a := f.committed(t, ir.StatusActive, 1000, master)
	b := f.committed(t, ir.StatusInactive, 1000, master)
	require.Less(t, a, b)

	pos, err := f.calc.Relative(a, b, coord)
	require.NoError(t, err)
	assert.Equal(t, ir.Before, pos)

	pos, err = f.calc.Relative(b, a, coord)
	require.NoError(t, err)
	assert.Equal(t, ir.After, pos)
}

func TestRelative_SamePathTotalOrder(t *testing.T) {
	f := newFixture(t)
	coord := ir.NewStampCoordinate(master)

	seqs := []int32{
		f.committed(t, ir.StatusActive, 3000, master),
		f.committed(t, ir.StatusActive, 1000, master),
		f.committed(t, ir.StatusInactive, 1000, master),
		f.committed(t, ir.StatusActive, 2000, master),
	}
	for _, a := range seqs {
		for _, b := range seqs {
			ab, err := f.calc.Relative(a, b, coord)
			require.NoError(t, err)
			ba, err := f.calc.Relative(b, a, coord)
			require.NoError(t, err)
			assert.Contains(t, []ir.RelativePosition{ir.Before, ir.Equal, ir.After}, ab)
			assert.Equal(t, ab.Invert(), ba, "antisymmetric for %d,%d", a, b)
		}
	}
}

func TestRelative_InheritedHistoryIsBefore(t *testing.T) {
	f := newFixture(t)
	coord := ir.NewStampCoordinate(devel)

	base := f.committed(t, ir.StatusActive, 4000, master)
	edit := f.committed(t, ir.StatusActive, 1000, devel)

	pos, err := f.calc.Relative(base, edit, coord)
	require.NoError(t, err)
	assert.Equal(t, ir.Before, pos, "master history before the origin time is inherited")

	pos, err = f.calc.Relative(edit, base, coord)
	require.NoError(t, err)
	assert.Equal(t, ir.After, pos)
}

func TestRelative_PastOriginTimeIsDisjoint(t *testing.T) {
	f := newFixture(t)

	late := f.committed(t, ir.StatusActive, 6000, master)
	edit := f.committed(t, ir.StatusActive, 1000, devel)

	pos, err := f.calc.Relative(late, edit, ir.StampCoordinate{Path: devel, Time: ir.TimeMax, Precedence: ir.PrecedenceTime})
	require.NoError(t, err)
	assert.Equal(t, ir.Unreachable, pos)
}

func TestRelative_DisjointPaths(t *testing.T) {
	f := newFixture(t)

	onDevel := f.committed(t, ir.StatusActive, 1000, devel)
	onOther := f.committed(t, ir.StatusActive, 2000, other)

	timeCoord := ir.StampCoordinate{Path: other, Time: ir.TimeMax, Precedence: ir.PrecedenceTime}
	pos, err := f.calc.Relative(onDevel, onOther, timeCoord)
	require.NoError(t, err)
	assert.Equal(t, ir.Unreachable, pos)

	pathCoord := ir.StampCoordinate{Path: other, Time: ir.TimeMax, Precedence: ir.PrecedencePath}
	pos, err = f.calc.Relative(onOther, onDevel, pathCoord)
	require.NoError(t, err)
	assert.Equal(t, ir.After, pos, "the stamp on the viewing path wins")

	pos, err = f.calc.Relative(onDevel, onOther, pathCoord)
	require.NoError(t, err)
	assert.Equal(t, ir.Before, pos)

	pos, err = f.calc.Relative(onDevel, onOther, ir.NewStampCoordinate(feature))
	require.NoError(t, err)
	assert.Equal(t, ir.Contradiction, pos, "neither stamp is on the viewing path")
}

func TestRelative_UnknownStamp(t *testing.T) {
	f := newFixture(t)
	known := f.committed(t, ir.StatusActive, 1, master)

	_, err := f.calc.Relative(known, 999, ir.NewStampCoordinate(master))
	assert.True(t, ir.IsUnknownStamp(err))
}

func TestOnRoute(t *testing.T) {
	f := newFixture(t)

	inherited := f.committed(t, ir.StatusActive, 4000, master)
	tooLate := f.committed(t, ir.StatusActive, 6000, master)
	inactive := f.committed(t, ir.StatusInactive, 1000, devel)
	pending := f.stamps.InternPending(ir.StatusActive, author, module, devel)
	unrelated := f.committed(t, ir.StatusActive, 1000, other)

	coord := ir.NewStampCoordinate(devel)
	cases := []struct {
		name  string
		seq   int32
		coord ir.StampCoordinate
		want  bool
	}{
		{"inherited", inherited, coord, true},
		{"after origin time", tooLate, coord, false},
		{"own path", inactive, coord, true},
		{"pending within TimeMax horizon", pending, coord, true},
		{"pending beyond horizon", pending, ir.StampCoordinate{Path: devel, Time: 9000}, false},
		{"status filtered", inactive, ir.StampCoordinate{Path: devel, Time: ir.TimeMax, AllowedStatus: []ir.Status{ir.StatusActive}}, false},
		{"unrelated path", unrelated, coord, false},
		{"canceled sentinel", ir.CanceledStampSequence, coord, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := f.calc.OnRoute(tc.seq, tc.coord)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestLatestStampSequences_SinglePath(t *testing.T) {
	f := newFixture(t)

	v1 := f.committed(t, ir.StatusActive, 1000, master)
	v2 := f.committed(t, ir.StatusActive, 2000, master)
	v3 := f.committed(t, ir.StatusInactive, 3000, master)
	all := []int32{v3, v1, v2}

	latest, err := f.calc.LatestStampSequences(ir.NewStampCoordinate(master), all)
	require.NoError(t, err)
	assert.Equal(t, []int32{v3}, latest)

	horizon := ir.StampCoordinate{Path: master, Time: 2500}
	latest, err = f.calc.LatestStampSequences(horizon, all)
	require.NoError(t, err)
	assert.Equal(t, []int32{v2}, latest)

	active, err := f.calc.IsLatestActive(horizon, all)
	require.NoError(t, err)
	assert.True(t, active)

	active, err = f.calc.IsLatestActive(ir.NewStampCoordinate(master), all)
	require.NoError(t, err)
	assert.False(t, active)
}

func TestLatestStampSequences_BranchOverridesBase(t *testing.T) {
	f := newFixture(t)

	base := f.committed(t, ir.StatusActive, 1000, master)
	edit := f.committed(t, ir.StatusInactive, 1500, devel)
	all := []int32{base, edit}

	latest, err := f.calc.LatestStampSequences(ir.NewStampCoordinate(devel), all)
	require.NoError(t, err)
	assert.Equal(t, []int32{edit}, latest)

	latest, err = f.calc.LatestStampSequences(ir.NewStampCoordinate(master), all)
	require.NoError(t, err)
	assert.Equal(t, []int32{base}, latest, "devel edits are invisible on master")
}

func TestLatestStampSequences_Contradiction(t *testing.T) {
	f := newFixture(t)

	onDevel := f.committed(t, ir.StatusActive, 1000, devel)
	onOther := f.committed(t, ir.StatusInactive, 1000, other)

	latest, err := f.calc.LatestStampSequences(ir.NewStampCoordinate(feature), []int32{onDevel, onOther})
	require.NoError(t, err)
	assert.ElementsMatch(t, []int32{onDevel, onOther}, latest)

	active, err := f.calc.IsLatestActive(ir.NewStampCoordinate(feature), []int32{onDevel, onOther})
	require.NoError(t, err)
	assert.True(t, active)
}

func TestLatestStampSequences_NothingVisible(t *testing.T) {
	f := newFixture(t)

	onOther := f.committed(t, ir.StatusActive, 1000, other)

	latest, err := f.calc.LatestStampSequences(ir.NewStampCoordinate(master), []int32{onOther, ir.CanceledStampSequence})
	require.NoError(t, err)
	assert.Empty(t, latest)
}

func TestLatestStampSequences_UnknownStampFails(t *testing.T) {
	f := newFixture(t)

	_, err := f.calc.LatestStampSequences(ir.NewStampCoordinate(master), []int32{12345})
	assert.True(t, ir.IsUnknownStamp(err))
}
