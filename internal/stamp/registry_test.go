package stamp

import (
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/isaac/internal/ir"
	"github.com/roach88/isaac/internal/metrics"
)

const (
	author ir.Nid = -2147483600
	module ir.Nid = -2147483601
	master ir.Nid = -2147483602
	devel  ir.Nid = -2147483603
)

func TestRegistry_InternCommittedDedups(t *testing.T) {
	r := NewRegistry(nil)

	s1, err := r.InternCommitted(ir.StatusActive, 1000, author, module, master)
	require.NoError(t, err)
	s2, err := r.InternCommitted(ir.StatusActive, 1000, author, module, master)
	require.NoError(t, err)
	s3, err := r.InternCommitted(ir.StatusActive, 1001, author, module, master)
	require.NoError(t, err)

	assert.Equal(t, int32(1), s1, "sequences start at 1")
	assert.Equal(t, s1, s2)
	assert.NotEqual(t, s1, s3)
	assert.Equal(t, 2, r.Len())
}

func TestRegistry_InternCommittedRejectsSentinelTimes(t *testing.T) {
	r := NewRegistry(nil)

	_, err := r.InternCommitted(ir.StatusActive, ir.TimeMax, author, module, master)
	assert.True(t, ir.IsIllegalState(err))

	_, err = r.InternCommitted(ir.StatusActive, -5, author, module, master)
	assert.True(t, ir.IsIllegalState(err))

	_, err = r.InternCommitted(ir.StatusCanceled, 10, author, module, master)
	assert.True(t, ir.IsIllegalState(err))
	assert.Equal(t, 0, r.Len())
}

func TestRegistry_InternPendingIgnoresTime(t *testing.T) {
	r := NewRegistry(nil)

	p1 := r.InternPending(ir.StatusActive, author, module, devel)
	p2 := r.InternPending(ir.StatusActive, author, module, devel)
	p3 := r.InternPending(ir.StatusInactive, author, module, devel)
	assert.Equal(t, p1, p2)
	assert.NotEqual(t, p1, p3)

	st, err := r.Resolve(p1)
	require.NoError(t, err)
	assert.True(t, st.IsUncommitted())
	assert.Equal(t, devel, st.Path)
	assert.True(t, r.IsPending(p1))
}

func TestRegistry_PendingAndCommittedAreSeparate(t *testing.T) {
	r := NewRegistry(nil)

	c, err := r.InternCommitted(ir.StatusActive, 5, author, module, master)
	require.NoError(t, err)
	p := r.InternPending(ir.StatusActive, author, module, master)
	assert.NotEqual(t, c, p)

	viaIntern, err := r.Intern(ir.Stamp{Status: ir.StatusActive, Time: ir.TimeMax, Author: author, Module: module, Path: master})
	require.NoError(t, err)
	assert.Equal(t, p, viaIntern)
}

func TestRegistry_ResolveUnknown(t *testing.T) {
	r := NewRegistry(nil)

	_, err := r.Resolve(42)
	require.Error(t, err)
	assert.True(t, ir.IsUnknownStamp(err))

	st, err := r.Resolve(ir.CanceledStampSequence)
	require.NoError(t, err)
	assert.Equal(t, ir.CanceledStamp, st)
}

func TestRegistry_Cancel(t *testing.T) {
	r := NewRegistry(nil)

	p := r.InternPending(ir.StatusActive, author, module, devel)
	got, err := r.Cancel(p)
	require.NoError(t, err)
	assert.Equal(t, ir.CanceledStampSequence, got)
	assert.True(t, r.IsCanceled(p))
	assert.True(t, r.IsRetired(p))
	assert.False(t, r.IsPending(p))

	// A retired pending tuple is never reused.
	fresh := r.InternPending(ir.StatusActive, author, module, devel)
	assert.NotEqual(t, p, fresh)
}

func TestRegistry_CancelCommittedFails(t *testing.T) {
	r := NewRegistry(nil)

	c, err := r.InternCommitted(ir.StatusActive, 5, author, module, master)
	require.NoError(t, err)

	_, err = r.Cancel(c)
	assert.True(t, ir.IsIllegalState(err))
	assert.False(t, r.IsCanceled(c))
}

func TestRegistry_Commit(t *testing.T) {
	r := NewRegistry(nil)

	p := r.InternPending(ir.StatusActive, author, module, devel)
	c, err := r.Commit(p, 2000)
	require.NoError(t, err)

	st, err := r.Resolve(c)
	require.NoError(t, err)
	assert.Equal(t, int64(2000), st.Time)
	assert.Equal(t, devel, st.Path)
	assert.True(t, r.IsRetired(p))

	again, err := r.Commit(p, 3000)
	require.NoError(t, err)
	assert.Equal(t, c, again, "commit is idempotent per pending stamp")

	promoted, ok := r.Promoted(p)
	assert.True(t, ok)
	assert.Equal(t, c, promoted)

	_, err = r.Commit(c, 3000)
	assert.True(t, ir.IsIllegalState(err))
}

func TestRegistry_CommitCanceledFails(t *testing.T) {
	r := NewRegistry(nil)

	p := r.InternPending(ir.StatusActive, author, module, devel)
	_, err := r.Cancel(p)
	require.NoError(t, err)

	_, err = r.Commit(p, 10)
	assert.True(t, ir.IsIllegalState(err))
}

func TestRegistry_ConcurrentIntern(t *testing.T) {
	r := NewRegistry(nil)

	const workers = 16
	results := make([]int32, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			seq, err := r.InternCommitted(ir.StatusActive, 777, author, module, master)
			assert.NoError(t, err)
			results[i] = seq
		}(i)
	}
	wg.Wait()

	for _, seq := range results {
		assert.Equal(t, results[0], seq)
	}
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRegistry(metrics.New(reg))

	_, err := r.InternCommitted(ir.StatusActive, 1, author, module, master)
	require.NoError(t, err)
	_, err = r.InternCommitted(ir.StatusActive, 1, author, module, master)
	require.NoError(t, err)
	r.InternPending(ir.StatusActive, author, module, master)

	m := r.metrics
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StampsInterned.WithLabelValues(metrics.StampCommitted)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StampsInterned.WithLabelValues(metrics.StampPending)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StampLookups))
}
