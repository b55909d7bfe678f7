package codec

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/roach88/isaac/internal/ir"
)

// Mode selects the internal (compact, nid-based) or external (portable,
// UUID-based) layout. Stored as the third header byte.
type Mode byte

const (
	// ModeInternal references stamps and components by native id.
	ModeInternal Mode = 0
	// ModeExternal references stamps and components by UUID.
	ModeExternal Mode = 1
)

// String returns the lower-case name of the mode.
func (m Mode) String() string {
	switch m {
	case ModeInternal:
		return "internal"
	case ModeExternal:
		return "external"
	default:
		return fmt.Sprintf("unknown(%d)", byte(m))
	}
}

// Layout sizes, in bytes.
const (
	// PrefixLength covers object type, version type, mode and format version.
	PrefixLength = 4

	// RecordLengthSize is the size of a record length field.
	RecordLengthSize = 4

	uuidSize = 16
	nidSize  = 4
)

// Prefix is the fixed leading part of every chronicle header.
type Prefix struct {
	ObjectType    ir.ObjectType
	VersionType   ir.VersionType
	Mode          Mode
	FormatVersion byte
}

// WritePrefix writes the header prefix with the current format version.
func WritePrefix(b *Buffer, objectType ir.ObjectType, versionType ir.VersionType, mode Mode) {
	b.PutByte(byte(objectType))
	b.PutByte(byte(versionType))
	b.PutByte(byte(mode))
	b.PutByte(ir.FormatVersion)
}

// ReadPrefix reads the header prefix. A format version other than
// ir.FormatVersion is an UNSUPPORTED_FORMAT error.
func ReadPrefix(b *Buffer) (Prefix, error) {
	p := Prefix{
		ObjectType:  ir.ObjectType(b.GetByte()),
		VersionType: ir.VersionType(b.GetByte()),
		Mode:        Mode(b.GetByte()),
	}
	p.FormatVersion = b.GetByte()
	if err := b.Err(); err != nil {
		return Prefix{}, &ir.Error{Code: ir.ErrCodeCorruptRecord, Message: "truncated header prefix", Err: err}
	}
	if p.FormatVersion != ir.FormatVersion {
		return Prefix{}, ir.Errorf(ir.ErrCodeUnsupportedFormat,
			"format version %d, expected %d", p.FormatVersion, ir.FormatVersion)
	}
	if p.Mode != ModeInternal && p.Mode != ModeExternal {
		return Prefix{}, ir.Errorf(ir.ErrCodeCorruptRecord, "unknown data source mode %d", p.Mode)
	}
	if !p.VersionType.Valid() || p.VersionType.ObjectType() != p.ObjectType {
		return Prefix{}, ir.Errorf(ir.ErrCodeCorruptRecord,
			"version type %s does not belong to object type %s", p.VersionType, p.ObjectType)
	}
	return p, nil
}

// CanonicalUUIDs returns additional UUIDs deduplicated, with the primordial
// UUID removed, in ascending byte order.
func CanonicalUUIDs(primordial uuid.UUID, additional []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(additional))
	out := make([]uuid.UUID, 0, len(additional))
	for _, id := range additional {
		if id == primordial || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i][:], out[j][:]) < 0
	})
	return out
}

// WriteUUIDs writes the primordial UUID followed by the counted, canonical
// additional UUID list.
func WriteUUIDs(b *Buffer, primordial uuid.UUID, additional []uuid.UUID) {
	canonical := CanonicalUUIDs(primordial, additional)
	b.PutUUID(primordial)
	b.PutInt32(int32(len(canonical)))
	for _, id := range canonical {
		b.PutUUID(id)
	}
}

// ReadUUIDs reads the UUID section written by WriteUUIDs.
func ReadUUIDs(b *Buffer) (uuid.UUID, []uuid.UUID, error) {
	primordial := b.GetUUID()
	count := b.GetInt32()
	if err := b.Err(); err != nil {
		return uuid.Nil, nil, &ir.Error{Code: ir.ErrCodeCorruptRecord, Message: "truncated UUID section", Err: err}
	}
	if count < 0 || int(count)*uuidSize > b.Remaining() {
		return uuid.Nil, nil, ir.Errorf(ir.ErrCodeCorruptRecord, "additional UUID count %d exceeds record", count)
	}
	additional := make([]uuid.UUID, count)
	for i := range additional {
		additional[i] = b.GetUUID()
	}
	return primordial, additional, b.Err()
}

// FixedFieldsLength returns the size of the header fields that follow the
// UUID section: assemblage, nid (internal only) and subtype fields.
func FixedFieldsLength(objectType ir.ObjectType, mode Mode) int {
	var n int
	if mode == ModeInternal {
		n = nidSize + nidSize
		if objectType == ir.ObjectTypeSemantic {
			n += nidSize
		}
		return n
	}
	n = uuidSize
	if objectType == ir.ObjectTypeSemantic {
		n += uuidSize
	}
	return n
}

// StampRefLength returns the size of a record's stamp reference.
func StampRefLength(mode Mode) int {
	if mode == ModeInternal {
		return 4
	}
	return 1 + 8 + 3*uuidSize
}

// BeginRecord reserves a record length field and returns its offset.
func BeginRecord(b *Buffer) int {
	offset := b.Position()
	b.PutInt32(0)
	return offset
}

// EndRecord backpatches the length of the record started at offset.
func EndRecord(b *Buffer, offset int) {
	b.PutInt32At(offset, int32(b.Position()-offset))
}

// WriteTerminator writes the zero-length record ending a version stream.
func WriteTerminator(b *Buffer) {
	b.PutInt32(0)
}

// ReadRecords reads the version stream at the buffer position and returns
// each record, length field included. The slices alias the buffer. A
// record shorter than its length field plus stamp reference, or a stream
// without terminator, is CORRUPT_RECORD.
func ReadRecords(b *Buffer, mode Mode) ([][]byte, error) {
	minimum := RecordLengthSize + StampRefLength(mode)
	var records [][]byte
	for {
		start := b.Position()
		length := b.GetInt32()
		if err := b.Err(); err != nil {
			return nil, &ir.Error{Code: ir.ErrCodeCorruptRecord, Message: "version stream has no terminator", Err: err}
		}
		if length == 0 {
			return records, nil
		}
		if int(length) < minimum || start+int(length) > b.Limit() {
			return nil, ir.Errorf(ir.ErrCodeCorruptRecord, "record length %d at offset %d is invalid", length, start)
		}
		records = append(records, b.Slice(start, start+int(length)))
		b.SetPosition(start + int(length))
	}
}

// StampRef returns the stamp reference bytes of a record.
func StampRef(record []byte, mode Mode) []byte {
	return record[RecordLengthSize : RecordLengthSize+StampRefLength(mode)]
}

// SortRecords orders records by stamp reference bytes, then by content.
func SortRecords(records [][]byte, mode Mode) {
	sort.SliceStable(records, func(i, j int) bool {
		c := CompareStampRefs(StampRef(records[i], mode), StampRef(records[j], mode), mode)
		if c != 0 {
			return c < 0
		}
		return bytes.Compare(records[i], records[j]) < 0
	})
}

// CompareStampRefs orders stamp references. Internal references compare as
// signed stamp sequences; external references compare bytewise.
func CompareStampRefs(a, b []byte, mode Mode) int {
	if mode == ModeInternal {
		sa, sb := Wrap(a).GetInt32(), Wrap(b).GetInt32()
		switch {
		case sa < sb:
			return -1
		case sa > sb:
			return 1
		default:
			return 0
		}
	}
	return bytes.Compare(a, b)
}

// ExternalStampRef is the decoded EXTERNAL-mode stamp reference.
type ExternalStampRef struct {
	Status ir.Status
	Time   int64
	Author uuid.UUID
	Module uuid.UUID
	Path   uuid.UUID
}

// PutExternalStampRef writes an EXTERNAL-mode stamp reference.
func PutExternalStampRef(b *Buffer, ref ExternalStampRef) {
	b.PutByte(byte(ref.Status))
	b.PutInt64(ref.Time)
	b.PutUUID(ref.Author)
	b.PutUUID(ref.Module)
	b.PutUUID(ref.Path)
}

// GetExternalStampRef reads an EXTERNAL-mode stamp reference.
func GetExternalStampRef(b *Buffer) ExternalStampRef {
	return ExternalStampRef{
		Status: ir.Status(b.GetByte()),
		Time:   b.GetInt64(),
		Author: b.GetUUID(),
		Module: b.GetUUID(),
		Path:   b.GetUUID(),
	}
}

// IsCanceledExternalRef reports whether an EXTERNAL stamp reference is
// canceled, from its bytes alone.
func IsCanceledExternalRef(ref []byte) bool {
	r := GetExternalStampRef(Wrap(ref))
	return r.Status == ir.StatusCanceled || r.Time == ir.TimeMin
}
