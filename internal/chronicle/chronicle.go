package chronicle

import (
	"bytes"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/roach88/isaac/internal/ir"
)

// Header holds the identity of a chronicle, fixed at creation.
type Header struct {
	Nid                 ir.Nid
	VersionType         ir.VersionType
	Assemblage          ir.Nid
	ReferencedComponent ir.Nid // semantics only
	Primordial          uuid.UUID
	Additional          []uuid.UUID
}

// Chronicle is the versioned container of one concept or semantic.
//
// Thread-safety: all methods are safe for concurrent use.
type Chronicle struct {
	env *Env

	nid                 ir.Nid
	objectType          ir.ObjectType
	versionType         ir.VersionType
	assemblage          ir.Nid
	referencedComponent ir.Nid
	primordial          uuid.UUID

	uuidMu     sync.Mutex // serializes AddUUID
	additional atomic.Pointer[[]uuid.UUID]

	committed   atomic.Pointer[[]*Version]
	uncommitted atomic.Pointer[[]*Version]
	removeMu    sync.Mutex // serializes removals and moves between collections

	generation atomic.Uint64
	memo       atomic.Pointer[versionList]

	writeSequence atomic.Int32

	abandoned sync.Map // int32 -> struct{}; pending sequences versions were restamped away from
}

// versionList is a memoized VersionList result for one generation.
type versionList struct {
	generation uint64
	versions   []*Version
}

// New creates an empty chronicle.
func New(env *Env, h Header) (*Chronicle, error) {
	if !h.VersionType.Valid() {
		return nil, fmt.Errorf("invalid version type %d", h.VersionType)
	}
	if h.Primordial == uuid.Nil {
		return nil, fmt.Errorf("chronicle %d needs a primordial UUID", h.Nid)
	}
	c := &Chronicle{
		env:         env,
		nid:         h.Nid,
		objectType:  h.VersionType.ObjectType(),
		versionType: h.VersionType,
		assemblage:  h.Assemblage,
		primordial:  h.Primordial,
	}
	if c.objectType == ir.ObjectTypeSemantic {
		c.referencedComponent = h.ReferencedComponent
	}
	for _, id := range h.Additional {
		c.AddUUID(id)
	}
	return c, nil
}

func (c *Chronicle) Nid() ir.Nid                    { return c.nid }
func (c *Chronicle) ObjectType() ir.ObjectType      { return c.objectType }
func (c *Chronicle) VersionType() ir.VersionType    { return c.versionType }
func (c *Chronicle) AssemblageNid() ir.Nid          { return c.assemblage }
func (c *Chronicle) ReferencedComponentNid() ir.Nid { return c.referencedComponent }
func (c *Chronicle) PrimordialUUID() uuid.UUID      { return c.primordial }
func (c *Chronicle) WriteSequence() int32           { return c.writeSequence.Load() }
func (c *Chronicle) SetWriteSequence(seq int32)     { c.writeSequence.Store(seq) }

// AdditionalUUIDs returns the alias UUIDs in ascending order.
func (c *Chronicle) AdditionalUUIDs() []uuid.UUID {
	p := c.additional.Load()
	if p == nil {
		return nil
	}
	return slices.Clone(*p)
}

// UUIDs returns the primordial UUID followed by the additional UUIDs.
func (c *Chronicle) UUIDs() []uuid.UUID {
	return append([]uuid.UUID{c.primordial}, c.AdditionalUUIDs()...)
}

// AddUUID adds an alias UUID. Duplicates and the primordial UUID are
// ignored. It reports whether the set grew.
func (c *Chronicle) AddUUID(id uuid.UUID) bool {
	if id == c.primordial || id == uuid.Nil {
		return false
	}
	c.uuidMu.Lock()
	defer c.uuidMu.Unlock()

	var current []uuid.UUID
	if p := c.additional.Load(); p != nil {
		current = *p
	}
	i, found := slices.BinarySearchFunc(current, id, compareUUID)
	if found {
		return false
	}
	next := slices.Insert(slices.Clone(current), i, id)
	c.additional.Store(&next)
	return true
}

// NewVersion interns st, creates a version with payload and adds it.
// A chronicle holds at most one version per stamp sequence.
func (c *Chronicle) NewVersion(st ir.Stamp, p Payload) (*Version, error) {
	if err := c.checkPayload(p); err != nil {
		return nil, err
	}
	seq, err := c.env.Stamps.Intern(st)
	if err != nil {
		return nil, fmt.Errorf("intern stamp for chronicle %d: %w", c.nid, err)
	}
	if _, exists := c.Version(seq); exists {
		return nil, ir.Errorf(ir.ErrCodeIllegalState, "chronicle already has a version for this stamp").
			WithNid(c.nid).WithStamp(seq)
	}
	v := &Version{chronicle: c, seq: seq, payload: p}
	c.AddVersion(v)
	return v, nil
}

// AddVersion adds v to the uncommitted or committed collection depending
// on its stamp. The version is bound to c.
func (c *Chronicle) AddVersion(v *Version) {
	v.chronicle = c
	if v.IsUncommitted() {
		appendVersion(&c.uncommitted, v)
	} else {
		appendVersion(&c.committed, v)
	}
	c.touch()
}

// VersionList returns uncommitted versions followed by committed ones.
// The slice must not be modified.
func (c *Chronicle) VersionList() []*Version {
	gen := c.generation.Load()
	if m := c.memo.Load(); m != nil && m.generation == gen {
		return m.versions
	}
	list := slices.Concat(load(&c.uncommitted), load(&c.committed))
	c.memo.Store(&versionList{generation: gen, versions: list})
	return list
}

// CommittedVersions returns a snapshot of the committed collection.
func (c *Chronicle) CommittedVersions() []*Version {
	return slices.Clone(load(&c.committed))
}

// UncommittedVersions returns a snapshot of the uncommitted collection.
func (c *Chronicle) UncommittedVersions() []*Version {
	return slices.Clone(load(&c.uncommitted))
}

// VersionStampSequences returns the stamp sequence of every version.
func (c *Chronicle) VersionStampSequences() []int32 {
	list := c.VersionList()
	seqs := make([]int32, len(list))
	for i, v := range list {
		seqs[i] = v.StampSequence()
	}
	return seqs
}

// Version returns the version bound to seq.
func (c *Chronicle) Version(seq int32) (*Version, bool) {
	for _, v := range c.VersionList() {
		if v.StampSequence() == seq {
			return v, true
		}
	}
	return nil, false
}

// LatestVersion returns the latest versions visible under coord. An empty
// result means nothing is visible; more than one means the visible
// versions contradict each other.
func (c *Chronicle) LatestVersion(coord ir.StampCoordinate) ([]*Version, error) {
	list := c.VersionList()
	seqs := make([]int32, len(list))
	bySeq := make(map[int32]*Version, len(list))
	for i, v := range list {
		seqs[i] = v.StampSequence()
		if _, ok := bySeq[seqs[i]]; !ok {
			bySeq[seqs[i]] = v
		}
	}
	latest, err := c.env.Calculator.LatestStampSequences(coord, seqs)
	if err != nil {
		return nil, fmt.Errorf("latest version of %d: %w", c.nid, err)
	}
	out := make([]*Version, len(latest))
	for i, seq := range latest {
		out[i] = bySeq[seq]
	}
	return out, nil
}

// IsLatestActive reports whether any latest version under coord is ACTIVE.
func (c *Chronicle) IsLatestActive(coord ir.StampCoordinate) (bool, error) {
	return c.env.Calculator.IsLatestActive(coord, c.VersionStampSequences())
}

// PruneStaleUncommitted removes canceled versions and versions whose
// pending stamp was canceled out from under them. It reports whether
// anything was removed.
func (c *Chronicle) PruneStaleUncommitted() bool {
	c.removeMu.Lock()
	defer c.removeMu.Unlock()

	stale := func(v *Version) bool {
		seq := v.StampSequence()
		if seq == ir.CanceledStampSequence {
			return true
		}
		st, err := c.env.Stamps.Resolve(seq)
		return err == nil && st.IsUncommitted() && c.env.Stamps.IsCanceled(seq)
	}
	removed := len(removeVersions(&c.uncommitted, stale)) + len(removeVersions(&c.committed, stale))
	if removed > 0 {
		c.touch()
		c.env.logger().Debug("pruned stale versions", "nid", c.nid, "count", removed)
	}
	return removed > 0
}

// CommitPending commits every uncommitted version at time and moves it to
// the committed collection. It returns the number of versions moved.
func (c *Chronicle) CommitPending(time int64) (int, error) {
	c.removeMu.Lock()
	defer c.removeMu.Unlock()

	for _, v := range load(&c.uncommitted) {
		if err := v.commit(time); err != nil {
			return 0, err
		}
	}
	moved := removeVersions(&c.uncommitted, func(v *Version) bool {
		return !v.IsUncommitted() && v.StampSequence() != ir.CanceledStampSequence
	})
	for _, v := range moved {
		appendVersion(&c.committed, v)
	}
	if len(moved) > 0 {
		c.touch()
	}
	return len(moved), nil
}

func (v *Version) commit(time int64) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.seq == ir.CanceledStampSequence {
		return nil
	}
	st, err := v.chronicle.env.Stamps.Resolve(v.seq)
	if err != nil {
		return err
	}
	if !st.IsUncommitted() {
		return nil
	}
	seq, err := v.chronicle.env.Stamps.Commit(v.seq, time)
	if err != nil {
		return fmt.Errorf("commit version of %d: %w", v.chronicle.nid, err)
	}
	v.seq = seq
	return nil
}

// Equal reports whether both chronicles have the same nid and the same set
// of stamp sequences. Canceled versions are not compared.
func (c *Chronicle) Equal(other *Chronicle) bool {
	if other == nil || c.nid != other.nid {
		return false
	}
	a := liveSorted(c.VersionStampSequences())
	b := liveSorted(other.VersionStampSequences())
	return slices.Equal(a, b)
}

// abandon records that a version moved from pending sequence old to seq.
// Moving back to a sequence revives it.
func (c *Chronicle) abandon(old, seq int32) {
	c.abandoned.Store(old, struct{}{})
	c.abandoned.Delete(seq)
}

// isStale reports whether INTERNAL bytes carrying seq must not bring a
// version back: the stamp was canceled, or a version of c left it.
func (c *Chronicle) isStale(seq int32) bool {
	if c.env.Stamps.IsCanceled(seq) {
		return true
	}
	_, ok := c.abandoned.Load(seq)
	return ok
}

func (c *Chronicle) checkPayload(p Payload) error {
	if p == nil {
		return fmt.Errorf("chronicle %d: nil payload", c.nid)
	}
	if p.VersionType() != c.versionType {
		return ir.Errorf(ir.ErrCodeIllegalState, "payload %s does not match version type %s",
			p.VersionType(), c.versionType).WithNid(c.nid)
	}
	return nil
}

// touch invalidates the memoized version list.
func (c *Chronicle) touch() {
	c.generation.Add(1)
}

func load(p *atomic.Pointer[[]*Version]) []*Version {
	if s := p.Load(); s != nil {
		return *s
	}
	return nil
}

// appendVersion publishes a copy of the collection with v appended.
func appendVersion(p *atomic.Pointer[[]*Version], v *Version) {
	for {
		old := p.Load()
		var next []*Version
		if old != nil {
			next = make([]*Version, len(*old), len(*old)+1)
			copy(next, *old)
		}
		next = append(next, v)
		if p.CompareAndSwap(old, &next) {
			return
		}
	}
}

// removeVersions publishes a copy of the collection without the versions
// drop selects and returns them. Callers hold removeMu; concurrent appends
// are retried over.
func removeVersions(p *atomic.Pointer[[]*Version], drop func(*Version) bool) []*Version {
	for {
		old := p.Load()
		if old == nil {
			return nil
		}
		var kept, removed []*Version
		for _, v := range *old {
			if drop(v) {
				removed = append(removed, v)
			} else {
				kept = append(kept, v)
			}
		}
		if len(removed) == 0 {
			return nil
		}
		if p.CompareAndSwap(old, &kept) {
			return removed
		}
	}
}

// liveSorted returns the distinct sequences other than the canceled one.
func liveSorted(seqs []int32) []int32 {
	out := slices.DeleteFunc(slices.Clone(seqs), func(seq int32) bool {
		return seq == ir.CanceledStampSequence
	})
	slices.Sort(out)
	return slices.Compact(out)
}

func compareUUID(a, b uuid.UUID) int {
	return bytes.Compare(a[:], b[:])
}
