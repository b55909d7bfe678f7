// Package merge reconciles independently written serializations of the
// same chronicle.
//
// Merging is a grow-only set union: headers must agree on everything but
// the additional UUIDs, which are unioned, and version records are unioned
// by stamp reference. The result is emitted in canonical order, so the
// merge is idempotent, commutative and associative over version sets.
package merge

import (
	"bytes"
	"fmt"

	"github.com/google/uuid"

	"github.com/roach88/isaac/internal/codec"
	"github.com/roach88/isaac/internal/ir"
	"github.com/roach88/isaac/internal/metrics"
)

// Options tune a merge.
type Options struct {
	// Canceled reports whether an INTERNAL stamp sequence has been retired.
	// The reserved sequence -1 is always canceled. nil means no other
	// sequence is.
	Canceled func(seq int32) bool

	// Metrics records merge outcomes. May be nil.
	Metrics *metrics.Metrics
}

// header is the decoded leading part of a serialized chronicle.
type header struct {
	prefix     []byte
	mode       codec.Mode
	primordial uuid.UUID
	additional []uuid.UUID
	fixed      []byte
	records    [][]byte
}

// Chronicles merges two serializations of the same chronicle.
//
// Byte-identical inputs are returned unchanged. Otherwise the header prefix
// must match exactly, the primordial UUIDs must match, and the fixed fields
// after the UUID section must be byte-identical; any mismatch is an
// UNMERGEABLE error and no output is produced.
func Chronicles(a, b []byte, opts Options) ([]byte, error) {
	if bytes.Equal(a, b) {
		opts.Metrics.Merge(metrics.MergeIdentical)
		return a, nil
	}

	merged, err := chronicles(a, b, opts)
	if err != nil {
		if ir.IsUnmergeable(err) {
			opts.Metrics.Merge(metrics.MergeUnmergeable)
		}
		return nil, err
	}
	opts.Metrics.Merge(metrics.MergeCombined)
	return merged, nil
}

func chronicles(a, b []byte, opts Options) ([]byte, error) {
	if len(a) < codec.PrefixLength || len(b) < codec.PrefixLength {
		return nil, ir.Errorf(ir.ErrCodeUnmergeable, "input shorter than header prefix")
	}
	if !bytes.Equal(a[:codec.PrefixLength], b[:codec.PrefixLength]) {
		return nil, ir.Errorf(ir.ErrCodeUnmergeable,
			"header prefix mismatch: % x vs % x", a[:codec.PrefixLength], b[:codec.PrefixLength])
	}

	ha, err := readHeader(a)
	if err != nil {
		return nil, fmt.Errorf("left input: %w", err)
	}
	hb, err := readHeader(b)
	if err != nil {
		return nil, fmt.Errorf("right input: %w", err)
	}

	if ha.primordial != hb.primordial {
		return nil, ir.Errorf(ir.ErrCodeUnmergeable,
			"primordial UUID mismatch: %s vs %s", ha.primordial, hb.primordial)
	}
	if !bytes.Equal(ha.fixed, hb.fixed) {
		return nil, ir.Errorf(ir.ErrCodeUnmergeable, "chronicle fields differ outside the UUID section")
	}

	records := VersionStreams(ha.records, hb.records, ha.mode, opts.Canceled)

	out := codec.NewBuffer(len(a) + len(b))
	out.PutBytes(ha.prefix)
	codec.WriteUUIDs(out, ha.primordial, append(ha.additional, hb.additional...))
	out.PutBytes(ha.fixed)
	for _, r := range records {
		out.PutBytes(r)
	}
	codec.WriteTerminator(out)
	return out.Bytes(), nil
}

func readHeader(data []byte) (*header, error) {
	b := codec.Wrap(data)
	prefix, err := codec.ReadPrefix(b)
	if err != nil {
		return nil, err
	}
	primordial, additional, err := codec.ReadUUIDs(b)
	if err != nil {
		return nil, err
	}

	fixed := b.GetBytes(codec.FixedFieldsLength(prefix.ObjectType, prefix.Mode))
	if err := b.Err(); err != nil {
		return nil, &ir.Error{Code: ir.ErrCodeCorruptRecord, Message: "truncated chronicle fields", Err: err}
	}
	records, err := codec.ReadRecords(b, prefix.Mode)
	if err != nil {
		return nil, err
	}
	if b.Remaining() != 0 {
		return nil, ir.Errorf(ir.ErrCodeCorruptRecord, "%d bytes after version stream terminator", b.Remaining())
	}

	return &header{
		prefix:     data[:codec.PrefixLength],
		mode:       prefix.Mode,
		primordial: primordial,
		additional: additional,
		fixed:      fixed,
		records:    records,
	}, nil
}

// VersionStreams unions two sets of version records by stamp reference.
//
// Records whose stamp is canceled are dropped. Each stamp reference
// contributes at most one record; stamps are immutable, so equal
// references normally carry equal bytes, and when they do not the
// bytewise smaller record is kept so the result stays order-independent.
// The result is sorted canonically.
func VersionStreams(a, b [][]byte, mode codec.Mode, canceled func(seq int32) bool) [][]byte {
	byRef := make(map[string][]byte, len(a)+len(b))
	add := func(records [][]byte) {
		for _, r := range records {
			ref := codec.StampRef(r, mode)
			if isCanceled(ref, mode, canceled) {
				continue
			}
			key := string(ref)
			if prev, ok := byRef[key]; ok && bytes.Compare(prev, r) <= 0 {
				continue
			}
			byRef[key] = r
		}
	}
	add(a)
	add(b)

	out := make([][]byte, 0, len(byRef))
	for _, r := range byRef {
		out = append(out, r)
	}
	codec.SortRecords(out, mode)
	return out
}

func isCanceled(ref []byte, mode codec.Mode, canceled func(seq int32) bool) bool {
	if mode == codec.ModeExternal {
		return codec.IsCanceledExternalRef(ref)
	}
	seq := codec.Wrap(ref).GetInt32()
	return seq == ir.CanceledStampSequence || (canceled != nil && canceled(seq))
}
