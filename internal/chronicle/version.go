package chronicle

import (
	"fmt"
	"sync"

	"github.com/roach88/isaac/internal/ir"
)

// Version is one snapshot of a chronicle, bound to a stamp sequence.
//
// Stamp fields are resolved through the registry on every access. While
// the stamp is uncommitted the setters re-intern a new tuple and replace
// the sequence; once committed the version is immutable.
type Version struct {
	chronicle *Chronicle

	mu      sync.RWMutex
	seq     int32
	payload Payload
}

// Chronicle returns the owning chronicle.
func (v *Version) Chronicle() *Chronicle { return v.chronicle }

// StampSequence returns the current stamp sequence.
func (v *Version) StampSequence() int32 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.seq
}

// Payload returns the version's payload.
func (v *Version) Payload() Payload {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.payload
}

// Stamp resolves the version's stamp tuple.
func (v *Version) Stamp() (ir.Stamp, error) {
	return v.chronicle.env.Stamps.Resolve(v.StampSequence())
}

// IsUncommitted reports whether the stamp time is still pending.
func (v *Version) IsUncommitted() bool {
	st, err := v.Stamp()
	return err == nil && st.IsUncommitted()
}

// IsCanceled reports whether the version has been retracted.
func (v *Version) IsCanceled() bool {
	seq := v.StampSequence()
	return v.chronicle.env.Stamps.IsCanceled(seq)
}

// Cancel retracts an uncommitted version; its sequence becomes -1.
func (v *Version) Cancel() error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.requireUncommittedLocked(); err != nil {
		return err
	}
	seq, err := v.chronicle.env.Stamps.Cancel(v.seq)
	if err != nil {
		return err
	}
	v.seq = seq
	v.chronicle.touch()
	return nil
}

// SetStatus replaces the stamp status. CANCELED is set only through Cancel.
func (v *Version) SetStatus(status ir.Status) error {
	if status == ir.StatusCanceled || !status.Valid() {
		return ir.Errorf(ir.ErrCodeIllegalState, "cannot set status %s; use Cancel", status).WithNid(v.chronicle.nid)
	}
	return v.restamp(func(st *ir.Stamp) { st.Status = status })
}

// SetTime replaces the stamp time. ir.TimeMax keeps the version pending;
// any other time commits it, as CommitPending does for the whole chronicle.
func (v *Version) SetTime(time int64) error {
	if time == ir.TimeMax {
		return v.restamp(func(st *ir.Stamp) { st.Time = time })
	}
	c := v.chronicle
	c.removeMu.Lock()
	defer c.removeMu.Unlock()

	if err := v.commitAt(time); err != nil {
		return err
	}
	moved := removeVersions(&c.uncommitted, func(x *Version) bool { return x == v })
	for _, x := range moved {
		appendVersion(&c.committed, x)
	}
	c.touch()
	return nil
}

// commitAt commits the pending stamp through the registry, so bytes still
// carrying the pending sequence read back as the committed one.
func (v *Version) commitAt(time int64) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.requireUncommittedLocked(); err != nil {
		return err
	}
	seq, err := v.chronicle.env.Stamps.Commit(v.seq, time)
	if err != nil {
		return fmt.Errorf("commit version of %d: %w", v.chronicle.nid, err)
	}
	v.seq = seq
	return nil
}

// SetAuthor replaces the stamp author.
func (v *Version) SetAuthor(author ir.Nid) error {
	return v.restamp(func(st *ir.Stamp) { st.Author = author })
}

// SetModule replaces the stamp module.
func (v *Version) SetModule(module ir.Nid) error {
	return v.restamp(func(st *ir.Stamp) { st.Module = module })
}

// SetPath replaces the stamp path.
func (v *Version) SetPath(path ir.Nid) error {
	return v.restamp(func(st *ir.Stamp) { st.Path = path })
}

// SetPayload replaces the payload of an uncommitted version.
func (v *Version) SetPayload(p Payload) error {
	if err := v.chronicle.checkPayload(p); err != nil {
		return err
	}
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.requireUncommittedLocked(); err != nil {
		return err
	}
	v.payload = p
	v.chronicle.touch()
	return nil
}

func (v *Version) restamp(edit func(*ir.Stamp)) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.requireUncommittedLocked(); err != nil {
		return err
	}
	st, err := v.chronicle.env.Stamps.Resolve(v.seq)
	if err != nil {
		return err
	}
	edit(&st)
	seq, err := v.chronicle.env.Stamps.Intern(st)
	if err != nil {
		return err
	}
	if seq != v.seq {
		v.chronicle.abandon(v.seq, seq)
	}
	v.seq = seq
	v.chronicle.touch()
	return nil
}

func (v *Version) requireUncommittedLocked() error {
	st, err := v.chronicle.env.Stamps.Resolve(v.seq)
	if err != nil {
		return err
	}
	if !st.IsUncommitted() {
		return ir.Errorf(ir.ErrCodeIllegalState, "version is not uncommitted").
			WithNid(v.chronicle.nid).WithStamp(v.seq)
	}
	return nil
}

// Equal reports whether both versions carry the same stamp sequence.
func (v *Version) Equal(other *Version) bool {
	if other == nil {
		return false
	}
	return v.StampSequence() == other.StampSequence()
}

// DeepEqual compares the stamp sequence and every payload field.
func (v *Version) DeepEqual(other *Version) bool {
	if !v.Equal(other) {
		return false
	}
	return v.Payload().equal(other.Payload())
}
