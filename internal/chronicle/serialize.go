package chronicle

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/roach88/isaac/internal/codec"
	"github.com/roach88/isaac/internal/ir"
	"github.com/roach88/isaac/internal/merge"
)

// SerializeInternal writes the compact, nid-based form.
func (c *Chronicle) SerializeInternal() ([]byte, error) {
	return c.serialize(codec.ModeInternal)
}

// SerializeExternal writes the portable, UUID-based form.
func (c *Chronicle) SerializeExternal() ([]byte, error) {
	return c.serialize(codec.ModeExternal)
}

// serialize writes the header and the canonical version stream. Canceled
// versions are never written. A chronicle with nothing left to write is
// ILLEGAL_STATE since it could not be read back.
func (c *Chronicle) serialize(mode codec.Mode) ([]byte, error) {
	records, err := c.records(mode)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ir.Errorf(ir.ErrCodeIllegalState, "chronicle has no versions to serialize").WithNid(c.nid)
	}

	b := codec.NewBuffer(64 + 64*len(records))
	codec.WritePrefix(b, c.objectType, c.versionType, mode)
	codec.WriteUUIDs(b, c.primordial, c.AdditionalUUIDs())
	if err := c.writeFixedFields(b, mode); err != nil {
		return nil, err
	}
	for _, r := range records {
		b.PutBytes(r)
	}
	codec.WriteTerminator(b)
	return b.Bytes(), nil
}

func (c *Chronicle) writeFixedFields(b *codec.Buffer, mode codec.Mode) error {
	f := &fields{b: b, mode: mode, ids: c.env.Identifiers}
	f.putNid(c.assemblage)
	if mode == codec.ModeInternal {
		b.PutNid(c.nid)
	}
	if c.objectType == ir.ObjectTypeSemantic {
		f.putNid(c.referencedComponent)
	}
	if err := f.err(); err != nil {
		return fmt.Errorf("write header of %d: %w", c.nid, err)
	}
	return nil
}

// records encodes every live version, sorted by stamp reference, one
// record per reference.
func (c *Chronicle) records(mode codec.Mode) ([][]byte, error) {
	var records [][]byte
	seen := make(map[string]bool)
	for _, v := range c.VersionList() {
		seq := v.StampSequence()
		if c.env.Stamps.IsCanceled(seq) {
			continue
		}
		r, err := c.encodeVersion(v, seq, mode)
		if err != nil {
			return nil, err
		}
		key := string(codec.StampRef(r, mode))
		if seen[key] {
			continue
		}
		seen[key] = true
		records = append(records, r)
	}
	codec.SortRecords(records, mode)
	return records, nil
}

func (c *Chronicle) encodeVersion(v *Version, seq int32, mode codec.Mode) ([]byte, error) {
	b := codec.NewBuffer(64)
	f := &fields{b: b, mode: mode, ids: c.env.Identifiers}

	off := codec.BeginRecord(b)
	if mode == codec.ModeInternal {
		b.PutInt32(seq)
	} else {
		ref, err := c.externalStampRef(seq)
		if err != nil {
			return nil, err
		}
		codec.PutExternalStampRef(b, ref)
	}
	v.Payload().encode(f)
	codec.EndRecord(b, off)

	if err := f.err(); err != nil {
		return nil, fmt.Errorf("encode version of %d: %w", c.nid, err)
	}
	return b.Bytes(), nil
}

func (c *Chronicle) externalStampRef(seq int32) (codec.ExternalStampRef, error) {
	st, err := c.env.Stamps.Resolve(seq)
	if err != nil {
		return codec.ExternalStampRef{}, err
	}
	ref := codec.ExternalStampRef{Status: st.Status, Time: st.Time}
	ids := c.env.Identifiers
	if ref.Author, err = ids.PrimordialUUID(st.Author); err != nil {
		return ref, fmt.Errorf("stamp author: %w", err)
	}
	if ref.Module, err = ids.PrimordialUUID(st.Module); err != nil {
		return ref, fmt.Errorf("stamp module: %w", err)
	}
	if ref.Path, err = ids.PrimordialUUID(st.Path); err != nil {
		return ref, fmt.Errorf("stamp path: %w", err)
	}
	return ref, nil
}

// Read deserializes a chronicle in either mode.
//
// INTERNAL stamp sequences the registry cannot resolve are skipped and
// logged; the chronicle stays usable with reduced history. EXTERNAL stamps
// and component references are interned and assigned nids. A chronicle
// with no versions is CORRUPT_RECORD.
func Read(env *Env, data []byte) (*Chronicle, error) {
	b := codec.Wrap(data)
	prefix, err := codec.ReadPrefix(b)
	if err != nil {
		return nil, err
	}
	primordial, additional, err := codec.ReadUUIDs(b)
	if err != nil {
		return nil, err
	}

	h := Header{VersionType: prefix.VersionType, Primordial: primordial, Additional: additional}
	f := &fields{b: b, mode: prefix.Mode, ids: env.Identifiers}
	h.Assemblage = f.getNid()
	if prefix.Mode == codec.ModeInternal {
		h.Nid = b.GetNid()
	}
	if prefix.ObjectType == ir.ObjectTypeSemantic {
		h.ReferencedComponent = f.getNid()
	}
	if err := f.err(); err != nil {
		return nil, fmt.Errorf("read chronicle header: %w", err)
	}
	if prefix.Mode == codec.ModeExternal {
		if h.Nid, err = env.Identifiers.AssignNid(append([]uuid.UUID{primordial}, additional...)...); err != nil {
			return nil, fmt.Errorf("assign chronicle nid: %w", err)
		}
	}

	c, err := New(env, h)
	if err != nil {
		return nil, &ir.Error{Code: ir.ErrCodeCorruptRecord, Message: "invalid chronicle header", Err: err}
	}

	records, err := codec.ReadRecords(b, prefix.Mode)
	if err != nil {
		return nil, fmt.Errorf("read versions of %d: %w", c.nid, err)
	}
	if b.Remaining() != 0 {
		return nil, ir.Errorf(ir.ErrCodeCorruptRecord, "%d bytes after version stream terminator", b.Remaining()).WithNid(c.nid)
	}
	for _, r := range records {
		if err := c.readVersion(r, prefix.Mode); err != nil {
			return nil, err
		}
	}

	if len(c.VersionList()) == 0 {
		return nil, ir.Errorf(ir.ErrCodeCorruptRecord, "chronicle has no versions").WithNid(c.nid)
	}
	return c, nil
}

// readVersion decodes one record and adds it, unless its stamp is canceled,
// unresolvable or already present.
func (c *Chronicle) readVersion(record []byte, mode codec.Mode) error {
	b := codec.Wrap(record)
	b.SetPosition(codec.RecordLengthSize)

	var seq int32
	if mode == codec.ModeInternal {
		seq = b.GetInt32()
		if seq == ir.CanceledStampSequence {
			return nil
		}
		// Bytes written before a commit still carry the pending sequence.
		if committed, ok := c.env.Stamps.Promoted(seq); ok {
			seq = committed
		}
		if _, err := c.env.Stamps.Resolve(seq); err != nil {
			c.env.logger().Warn("skipping version with unresolvable stamp",
				"nid", c.nid, "stamp_sequence", seq, "error", err)
			c.env.Metrics.RecordSkipped()
			return nil
		}
	} else {
		ref := codec.GetExternalStampRef(b)
		if ref.Status == ir.StatusCanceled || ref.Time == ir.TimeMin {
			return nil
		}
		var err error
		if seq, err = c.internExternalStamp(ref); err != nil {
			return err
		}
	}

	f := &fields{b: b, mode: mode, ids: c.env.Identifiers}
	p, err := decodePayload(c.versionType, f)
	if err != nil {
		return fmt.Errorf("read version of %d: %w", c.nid, err)
	}
	if b.Remaining() != 0 {
		return ir.Errorf(ir.ErrCodeCorruptRecord, "%d unread bytes in version record", b.Remaining()).
			WithNid(c.nid).WithStamp(seq)
	}

	if _, exists := c.Version(seq); exists {
		return nil
	}
	c.AddVersion(&Version{chronicle: c, seq: seq, payload: p})
	return nil
}

func (c *Chronicle) internExternalStamp(ref codec.ExternalStampRef) (int32, error) {
	ids := c.env.Identifiers
	author, err := ids.AssignNid(ref.Author)
	if err != nil {
		return 0, fmt.Errorf("stamp author: %w", err)
	}
	module, err := ids.AssignNid(ref.Module)
	if err != nil {
		return 0, fmt.Errorf("stamp module: %w", err)
	}
	path, err := ids.AssignNid(ref.Path)
	if err != nil {
		return 0, fmt.Errorf("stamp path: %w", err)
	}
	seq, err := c.env.Stamps.Intern(ir.Stamp{Status: ref.Status, Time: ref.Time, Author: author, Module: module, Path: path})
	if err != nil {
		return 0, &ir.Error{Code: ir.ErrCodeCorruptRecord, Message: "invalid stamp in version record", Nid: c.nid, Err: err}
	}
	return seq, nil
}

// MergeStampData merges other, an INTERNAL serialization of the same
// chronicle, with this chronicle's data and returns the merged bytes.
// Versions and UUIDs only present in other are added to c, and c takes
// writeSequence as its write sequence.
func (c *Chronicle) MergeStampData(writeSequence int32, other []byte) ([]byte, error) {
	own, err := c.SerializeInternal()
	if err != nil {
		return nil, err
	}
	merged, err := merge.Chronicles(own, other, merge.Options{
		Canceled: c.isStale,
		Metrics:  c.env.Metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("merge chronicle %d: %w", c.nid, err)
	}

	combined, err := Read(c.env, merged)
	if err != nil {
		return nil, fmt.Errorf("read merged chronicle %d: %w", c.nid, err)
	}
	for _, id := range combined.AdditionalUUIDs() {
		c.AddUUID(id)
	}
	for _, v := range combined.VersionList() {
		if _, exists := c.Version(v.StampSequence()); !exists {
			c.AddVersion(&Version{chronicle: c, seq: v.StampSequence(), payload: v.Payload()})
		}
	}
	c.SetWriteSequence(writeSequence)
	return merged, nil
}
