package chronicle

import (
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/roach88/isaac/internal/identifier"
	"github.com/roach88/isaac/internal/ir"
	"github.com/roach88/isaac/internal/metrics"
	"github.com/roach88/isaac/internal/stamp"
)

var (
	u1 = uuid.MustParse("11111111-1111-1111-1111-111111111111")
	u2 = uuid.MustParse("22222222-2222-2222-2222-222222222222")
	u3 = uuid.MustParse("33333333-3333-3333-3333-333333333333")

	authorUUID     = uuid.MustParse("aaaaaaaa-aaaa-aaaa-aaaa-aaaaaaaaaaaa")
	moduleUUID     = uuid.MustParse("bbbbbbbb-bbbb-bbbb-bbbb-bbbbbbbbbbbb")
	masterUUID     = uuid.MustParse("cccccccc-cccc-cccc-cccc-cccccccccccc")
	assemblageUUID = uuid.MustParse("dddddddd-dddd-dddd-dddd-dddddddddddd")
	develUUID      = uuid.MustParse("eeeeeeee-eeee-eeee-eeee-eeeeeeeeeeee")
)

type fixture struct {
	ids     *identifier.Service
	stamps  *stamp.Registry
	paths   *stamp.Paths
	metrics *metrics.Metrics
	env     *Env

	author, module, master, assemblage, devel ir.Nid
}

// newFixture assigns nids in a fixed order: author, module, master,
// assemblage, devel. devel originates from master at TimeMax.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		ids:     identifier.New(),
		paths:   stamp.NewPaths(),
		metrics: metrics.New(prometheus.NewRegistry()),
	}
	f.stamps = stamp.NewRegistry(f.metrics)
	f.env = NewEnv(f.stamps, f.paths, f.ids, nil, f.metrics)

	var err error
	for _, bind := range []struct {
		nid *ir.Nid
		id  uuid.UUID
	}{
		{&f.author, authorUUID},
		{&f.module, moduleUUID},
		{&f.master, masterUUID},
		{&f.assemblage, assemblageUUID},
		{&f.devel, develUUID},
	} {
		*bind.nid, err = f.ids.AssignNid(bind.id)
		require.NoError(t, err)
	}
	require.NoError(t, f.paths.AddPath(f.master))
	require.NoError(t, f.paths.AddPath(f.devel, stamp.Origin{Path: f.master, Time: ir.TimeMax}))
	return f
}

func (f *fixture) stamp(status ir.Status, time int64, path ir.Nid) ir.Stamp {
	return ir.Stamp{Status: status, Time: time, Author: f.author, Module: f.module, Path: path}
}

func (f *fixture) newConcept(t *testing.T, primordial uuid.UUID, additional ...uuid.UUID) *Chronicle {
	t.Helper()
	nid, err := f.ids.AssignNid(append([]uuid.UUID{primordial}, additional...)...)
	require.NoError(t, err)
	c, err := New(f.env, Header{
		Nid:         nid,
		VersionType: ir.VersionTypeConcept,
		Assemblage:  f.assemblage,
		Primordial:  primordial,
		Additional:  additional,
	})
	require.NoError(t, err)
	return c
}

func (f *fixture) addVersion(t *testing.T, c *Chronicle, st ir.Stamp, p Payload) *Version {
	t.Helper()
	v, err := c.NewVersion(st, p)
	require.NoError(t, err)
	return v
}
