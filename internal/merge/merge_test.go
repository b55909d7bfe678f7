package merge

import (
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/isaac/internal/codec"
	"github.com/roach88/isaac/internal/ir"
	"github.com/roach88/isaac/internal/metrics"
)

var (
	u1 = uuid.MustParse("11111111-1111-1111-1111-111111111111")
	u2 = uuid.MustParse("22222222-2222-2222-2222-222222222222")
	u3 = uuid.MustParse("33333333-3333-3333-3333-333333333333")
	u4 = uuid.MustParse("44444444-4444-4444-4444-444444444444")
)

// blob builds an INTERNAL string-semantic chronicle with one record per
// stamp sequence, each carrying payload as its string field.
type blob struct {
	primordial uuid.UUID
	additional []uuid.UUID
	assemblage ir.Nid
	records    []record
}

type record struct {
	seq   int32
	value string
}

func (bl blob) bytes() []byte {
	b := codec.NewBuffer(128)
	codec.WritePrefix(b, ir.ObjectTypeSemantic, ir.VersionTypeString, codec.ModeInternal)
	b.PutUUID(bl.primordial)
	b.PutInt32(int32(len(bl.additional)))
	for _, id := range bl.additional {
		b.PutUUID(id)
	}
	b.PutNid(bl.assemblage)
	b.PutNid(-2147483000)
	b.PutNid(-2147482000)
	for _, r := range bl.records {
		off := codec.BeginRecord(b)
		b.PutInt32(r.seq)
		b.PutString(r.value)
		codec.EndRecord(b, off)
	}
	codec.WriteTerminator(b)
	return b.Bytes()
}

func stampSequences(t *testing.T, data []byte) []int32 {
	t.Helper()
	h, err := readHeader(data)
	require.NoError(t, err)
	seqs := make([]int32, len(h.records))
	for i, r := range h.records {
		seqs[i] = codec.Wrap(codec.StampRef(r, codec.ModeInternal)).GetInt32()
	}
	return seqs
}

func TestChronicles_IdenticalFastPath(t *testing.T) {
	x := blob{primordial: u1, assemblage: 7, records: []record{{3, "c"}, {1, "a"}}}.bytes()

	merged, err := Chronicles(x, x, Options{})
	require.NoError(t, err)
	assert.Equal(t, x, merged)
}

func TestChronicles_UnionsVersionsAndUUIDs(t *testing.T) {
	base := []record{{1, "base"}}
	a := blob{primordial: u1, additional: []uuid.UUID{u3}, assemblage: 7, records: append(base, record{2, "replica-1"})}.bytes()
	b := blob{primordial: u1, additional: []uuid.UUID{u2, u3}, assemblage: 7, records: append(base, record{3, "replica-2"})}.bytes()

	merged, err := Chronicles(a, b, Options{})
	require.NoError(t, err)
	assert.Equal(t, []int32{1, 2, 3}, stampSequences(t, merged))

	h, err := readHeader(merged)
	require.NoError(t, err)
	assert.Equal(t, u1, h.primordial)
	assert.Equal(t, []uuid.UUID{u2, u3}, h.additional)

	want := blob{primordial: u1, additional: []uuid.UUID{u2, u3}, assemblage: 7,
		records: []record{{1, "base"}, {2, "replica-1"}, {3, "replica-2"}}}.bytes()
	assert.Equal(t, want, merged)
}

func TestChronicles_Commutative(t *testing.T) {
	a := blob{primordial: u1, additional: []uuid.UUID{u4}, assemblage: 7, records: []record{{5, "e"}, {1, "a"}}}.bytes()
	b := blob{primordial: u1, additional: []uuid.UUID{u2}, assemblage: 7, records: []record{{2, "b"}, {1, "a"}}}.bytes()

	ab, err := Chronicles(a, b, Options{})
	require.NoError(t, err)
	ba, err := Chronicles(b, a, Options{})
	require.NoError(t, err)
	assert.Equal(t, ab, ba)
}

func TestChronicles_Associative(t *testing.T) {
	a := blob{primordial: u1, assemblage: 7, records: []record{{1, "a"}}}.bytes()
	b := blob{primordial: u1, additional: []uuid.UUID{u2}, assemblage: 7, records: []record{{2, "b"}}}.bytes()
	c := blob{primordial: u1, additional: []uuid.UUID{u3}, assemblage: 7, records: []record{{3, "c"}, {1, "a"}}}.bytes()

	ab, err := Chronicles(a, b, Options{})
	require.NoError(t, err)
	left, err := Chronicles(ab, c, Options{})
	require.NoError(t, err)

	bc, err := Chronicles(b, c, Options{})
	require.NoError(t, err)
	right, err := Chronicles(a, bc, Options{})
	require.NoError(t, err)

	assert.Equal(t, left, right)
	assert.Equal(t, []int32{1, 2, 3}, stampSequences(t, left))
}

func TestChronicles_Idempotent(t *testing.T) {
	a := blob{primordial: u1, assemblage: 7, records: []record{{1, "a"}}}.bytes()
	b := blob{primordial: u1, assemblage: 7, records: []record{{2, "b"}}}.bytes()

	ab, err := Chronicles(a, b, Options{})
	require.NoError(t, err)
	again, err := Chronicles(ab, b, Options{})
	require.NoError(t, err)
	assert.Equal(t, ab, again)
}

func TestChronicles_DropsCanceled(t *testing.T) {
	a := blob{primordial: u1, assemblage: 7, records: []record{{1, "a"}, {-1, "gone"}}}.bytes()
	b := blob{primordial: u1, assemblage: 7, records: []record{{2, "b"}, {4, "retired"}}}.bytes()

	merged, err := Chronicles(a, b, Options{Canceled: func(seq int32) bool { return seq == 4 }})
	require.NoError(t, err)
	assert.Equal(t, []int32{1, 2}, stampSequences(t, merged))
}

func TestChronicles_PrimordialMismatch(t *testing.T) {
	a := blob{primordial: u1, assemblage: 7, records: []record{{1, "a"}}}.bytes()
	b := blob{primordial: u2, assemblage: 7, records: []record{{2, "b"}}}.bytes()

	merged, err := Chronicles(a, b, Options{})
	require.Error(t, err)
	assert.True(t, ir.IsUnmergeable(err))
	assert.Nil(t, merged, "no partial output")
}

func TestChronicles_HeaderPrefixMismatch(t *testing.T) {
	a := blob{primordial: u1, assemblage: 7, records: []record{{1, "a"}}}.bytes()
	b := blob{primordial: u1, assemblage: 7, records: []record{{2, "b"}}}.bytes()
	b[1] = byte(ir.VersionTypeLong)

	_, err := Chronicles(a, b, Options{})
	assert.True(t, ir.IsUnmergeable(err))
}

func TestChronicles_FixedFieldMismatch(t *testing.T) {
	a := blob{primordial: u1, assemblage: 7, records: []record{{1, "a"}}}.bytes()
	b := blob{primordial: u1, assemblage: 8, records: []record{{2, "b"}}}.bytes()

	_, err := Chronicles(a, b, Options{})
	assert.True(t, ir.IsUnmergeable(err))
}

func TestChronicles_UnsupportedFormat(t *testing.T) {
	a := blob{primordial: u1, assemblage: 7, records: []record{{1, "a"}}}.bytes()
	b := blob{primordial: u1, assemblage: 7, records: []record{{2, "b"}}}.bytes()
	a[3], b[3] = 9, 9

	_, err := Chronicles(a, b, Options{})
	assert.True(t, ir.IsUnsupportedFormat(err))
}

func TestChronicles_Metrics(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	opts := Options{Metrics: m}

	a := blob{primordial: u1, assemblage: 7, records: []record{{1, "a"}}}.bytes()
	b := blob{primordial: u1, assemblage: 7, records: []record{{2, "b"}}}.bytes()
	c := blob{primordial: u2, assemblage: 7, records: []record{{2, "b"}}}.bytes()

	_, _ = Chronicles(a, a, opts)
	_, _ = Chronicles(a, b, opts)
	_, _ = Chronicles(a, c, opts)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Merges.WithLabelValues(metrics.MergeIdentical)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Merges.WithLabelValues(metrics.MergeCombined)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Merges.WithLabelValues(metrics.MergeUnmergeable)))
}

func TestVersionStreams_KeepsSmallerOnConflict(t *testing.T) {
	a := blob{primordial: u1, records: []record{{1, "b"}}}.bytes()
	b := blob{primordial: u1, records: []record{{1, "a"}}}.bytes()
	ha, err := readHeader(a)
	require.NoError(t, err)
	hb, err := readHeader(b)
	require.NoError(t, err)

	ab := VersionStreams(ha.records, hb.records, codec.ModeInternal, nil)
	ba := VersionStreams(hb.records, ha.records, codec.ModeInternal, nil)
	require.Len(t, ab, 1)
	assert.Equal(t, ab, ba)
	assert.Equal(t, hb.records[0], ab[0])
}

func TestVersionStreams_External(t *testing.T) {
	rec := func(status ir.Status, time int64) []byte {
		b := codec.NewBuffer(64)
		off := codec.BeginRecord(b)
		codec.PutExternalStampRef(b, codec.ExternalStampRef{Status: status, Time: time, Author: u2, Module: u3, Path: u4})
		codec.EndRecord(b, off)
		return b.Bytes()
	}
	live := rec(ir.StatusActive, 1000)
	later := rec(ir.StatusActive, 2000)
	dead := rec(ir.StatusCanceled, ir.TimeMin)

	out := VersionStreams([][]byte{later, dead}, [][]byte{live, later}, codec.ModeExternal, nil)
	assert.Equal(t, [][]byte{live, later}, out)
}
