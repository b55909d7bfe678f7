package stamp

import (
	"sync"

	"github.com/roach88/isaac/internal/ir"
	"github.com/roach88/isaac/internal/metrics"
)

// pendingKey identifies a pending tuple independently of time.
type pendingKey struct {
	status ir.Status
	author ir.Nid
	module ir.Nid
	path   ir.Nid
}

// Registry interns STAMP tuples.
//
// Thread-safety: all methods are safe for concurrent use.
type Registry struct {
	committed sync.Map // ir.Stamp -> int32
	pending   sync.Map // pendingKey -> int32
	bySeq     sync.Map // int32 -> ir.Stamp
	canceled  sync.Map // int32 -> struct{}
	promoted  sync.Map // int32 (pending) -> int32 (committed)

	mu   sync.Mutex // guards next; held only to allocate
	next int32

	metrics *metrics.Metrics
}

// NewRegistry creates an empty registry. m may be nil.
func NewRegistry(m *metrics.Metrics) *Registry {
	return &Registry{next: 1, metrics: m}
}

// InternCommitted returns the sequence of a committed tuple, allocating one
// if the tuple is new. time must be a real, non-negative millisecond value.
func (r *Registry) InternCommitted(status ir.Status, time int64, author, module, path ir.Nid) (int32, error) {
	if time < 0 || time == ir.TimeMax {
		return 0, ir.Errorf(ir.ErrCodeIllegalState, "committed stamp needs a real time, got %s", ir.FormatTime(time))
	}
	if status == ir.StatusCanceled || !status.Valid() {
		return 0, ir.Errorf(ir.ErrCodeIllegalState, "cannot intern committed stamp with status %s", status)
	}

	st := ir.Stamp{Status: status, Time: time, Author: author, Module: module, Path: path}
	if seq, ok := r.committed.Load(st); ok {
		r.metrics.StampFastPath()
		return seq.(int32), nil
	}
	return r.allocate(&r.committed, st, st, metrics.StampCommitted), nil
}

// InternPending returns the sequence of a pending tuple, allocating one if
// no live pending stamp matches.
func (r *Registry) InternPending(status ir.Status, author, module, path ir.Nid) int32 {
	key := pendingKey{status: status, author: author, module: module, path: path}
	if seq, ok := r.pending.Load(key); ok {
		r.metrics.StampFastPath()
		return seq.(int32)
	}
	st := ir.Stamp{Status: status, Time: ir.TimeMax, Author: author, Module: module, Path: path}
	return r.allocate(&r.pending, key, st, metrics.StampPending)
}

// Intern dispatches to InternPending when st is uncommitted and to
// InternCommitted otherwise.
func (r *Registry) Intern(st ir.Stamp) (int32, error) {
	if st.IsUncommitted() {
		return r.InternPending(st.Status, st.Author, st.Module, st.Path), nil
	}
	return r.InternCommitted(st.Status, st.Time, st.Author, st.Module, st.Path)
}

// allocate registers st under key, unless a concurrent caller won the race.
func (r *Registry) allocate(table *sync.Map, key any, st ir.Stamp, kind string) int32 {
	r.mu.Lock()
	defer r.mu.Unlock()

	if seq, ok := table.Load(key); ok {
		return seq.(int32)
	}
	seq := r.next
	r.next++
	r.bySeq.Store(seq, st)
	table.Store(key, seq)
	r.metrics.StampInterned(kind)
	return seq
}

// Resolve returns the tuple of a sequence. CanceledStampSequence resolves
// to ir.CanceledStamp; any sequence the registry never issued is an
// UNKNOWN_STAMP error.
func (r *Registry) Resolve(seq int32) (ir.Stamp, error) {
	if seq == ir.CanceledStampSequence {
		return ir.CanceledStamp, nil
	}
	st, ok := r.bySeq.Load(seq)
	if !ok {
		return ir.Stamp{}, ir.Errorf(ir.ErrCodeUnknownStamp, "unresolvable stamp sequence").WithStamp(seq)
	}
	return st.(ir.Stamp), nil
}

// Cancel retires a pending stamp and returns CanceledStampSequence for the
// owning version. Canceling a committed stamp is ILLEGAL_STATE.
func (r *Registry) Cancel(seq int32) (int32, error) {
	st, err := r.Resolve(seq)
	if err != nil {
		return 0, err
	}
	if seq == ir.CanceledStampSequence {
		return ir.CanceledStampSequence, nil
	}
	if !st.IsUncommitted() {
		return 0, ir.Errorf(ir.ErrCodeIllegalState, "cannot cancel committed stamp").WithStamp(seq)
	}
	r.canceled.Store(seq, struct{}{})
	r.pending.CompareAndDelete(pendingKeyOf(st), seq)
	return ir.CanceledStampSequence, nil
}

// Commit assigns time to a pending stamp and returns the committed
// sequence. The pending stamp is retired. Committing an already promoted
// stamp returns the same committed sequence; committing a canceled one is
// ILLEGAL_STATE.
func (r *Registry) Commit(seq int32, time int64) (int32, error) {
	if committed, ok := r.promoted.Load(seq); ok {
		return committed.(int32), nil
	}
	st, err := r.Resolve(seq)
	if err != nil {
		return 0, err
	}
	if !st.IsUncommitted() {
		return 0, ir.Errorf(ir.ErrCodeIllegalState, "stamp is already committed").WithStamp(seq)
	}
	if r.IsCanceled(seq) {
		return 0, ir.Errorf(ir.ErrCodeIllegalState, "cannot commit canceled stamp").WithStamp(seq)
	}
	committed, err := r.InternCommitted(st.Status, time, st.Author, st.Module, st.Path)
	if err != nil {
		return 0, err
	}
	actual, _ := r.promoted.LoadOrStore(seq, committed)
	r.pending.CompareAndDelete(pendingKeyOf(st), seq)
	return actual.(int32), nil
}

// Promoted returns the committed sequence a pending stamp was committed as.
func (r *Registry) Promoted(seq int32) (int32, bool) {
	committed, ok := r.promoted.Load(seq)
	if !ok {
		return 0, false
	}
	return committed.(int32), true
}

// IsCanceled reports whether seq is the canceled sentinel or a canceled
// pending stamp.
func (r *Registry) IsCanceled(seq int32) bool {
	if seq == ir.CanceledStampSequence {
		return true
	}
	_, ok := r.canceled.Load(seq)
	return ok
}

// IsRetired reports whether seq is a pending stamp that was canceled or
// committed.
func (r *Registry) IsRetired(seq int32) bool {
	if r.IsCanceled(seq) {
		return true
	}
	_, ok := r.promoted.Load(seq)
	return ok
}

// IsPending reports whether seq resolves to a live pending stamp.
func (r *Registry) IsPending(seq int32) bool {
	st, err := r.Resolve(seq)
	return err == nil && st.IsUncommitted() && !r.IsRetired(seq)
}

// Len returns the number of sequences allocated so far.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int(r.next - 1)
}

func pendingKeyOf(st ir.Stamp) pendingKey {
	return pendingKey{status: st.Status, author: st.Author, module: st.Module, path: st.Path}
}
