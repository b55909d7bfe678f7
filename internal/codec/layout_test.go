package codec

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/isaac/internal/ir"
)

var (
	uuidA = uuid.MustParse("aaaaaaaa-0000-0000-0000-000000000000")
	uuidB = uuid.MustParse("bbbbbbbb-0000-0000-0000-000000000000")
	uuidC = uuid.MustParse("cccccccc-0000-0000-0000-000000000000")
)

func TestPrefix_RoundTrip(t *testing.T) {
	b := NewBuffer(4)
	WritePrefix(b, ir.ObjectTypeSemantic, ir.VersionTypeString, ModeExternal)
	assert.Equal(t, []byte{2, 4, 1, ir.FormatVersion}, b.Bytes())

	b.Flip()
	p, err := ReadPrefix(b)
	require.NoError(t, err)
	assert.Equal(t, Prefix{
		ObjectType:    ir.ObjectTypeSemantic,
		VersionType:   ir.VersionTypeString,
		Mode:          ModeExternal,
		FormatVersion: ir.FormatVersion,
	}, p)
}

func TestPrefix_FormatMismatch(t *testing.T) {
	_, err := ReadPrefix(Wrap([]byte{1, 1, 0, ir.FormatVersion + 1}))
	require.Error(t, err)
	assert.True(t, ir.IsUnsupportedFormat(err))
}

func TestPrefix_Rejects(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"truncated", []byte{1, 1}},
		{"bad mode", []byte{1, 1, 9, ir.FormatVersion}},
		{"concept with semantic payload", []byte{1, 4, 0, ir.FormatVersion}},
		{"unknown version type", []byte{2, 0, 0, ir.FormatVersion}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadPrefix(Wrap(tt.data))
			require.Error(t, err)
			assert.True(t, ir.IsCorruptRecord(err))
		})
	}
}

func TestCanonicalUUIDs_SortsAndDeduplicates(t *testing.T) {
	got := CanonicalUUIDs(uuidA, []uuid.UUID{uuidC, uuidA, uuidB, uuidC})
	assert.Equal(t, []uuid.UUID{uuidB, uuidC}, got)
}

func TestUUIDs_RoundTrip(t *testing.T) {
	b := NewBuffer(0)
	WriteUUIDs(b, uuidA, []uuid.UUID{uuidC, uuidB})
	b.Flip()

	primordial, additional, err := ReadUUIDs(b)
	require.NoError(t, err)
	assert.Equal(t, uuidA, primordial)
	assert.Equal(t, []uuid.UUID{uuidB, uuidC}, additional)
}

func TestUUIDs_CountExceedsRecord(t *testing.T) {
	b := NewBuffer(0)
	b.PutUUID(uuidA)
	b.PutInt32(1000)
	b.Flip()

	_, _, err := ReadUUIDs(b)
	require.Error(t, err)
	assert.True(t, ir.IsCorruptRecord(err))
}

func TestFixedFieldsLength(t *testing.T) {
	assert.Equal(t, 8, FixedFieldsLength(ir.ObjectTypeConcept, ModeInternal))
	assert.Equal(t, 12, FixedFieldsLength(ir.ObjectTypeSemantic, ModeInternal))
	assert.Equal(t, 16, FixedFieldsLength(ir.ObjectTypeConcept, ModeExternal))
	assert.Equal(t, 32, FixedFieldsLength(ir.ObjectTypeSemantic, ModeExternal))
}

func TestRecords_RoundTrip(t *testing.T) {
	b := NewBuffer(0)
	for _, seq := range []int32{5, 3} {
		offset := BeginRecord(b)
		b.PutInt32(seq)
		b.PutString("x")
		EndRecord(b, offset)
	}
	WriteTerminator(b)
	b.Flip()

	records, err := ReadRecords(b, ModeInternal)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Len(t, records[0], 4+4+4+1)
	assert.Equal(t, []byte{0, 0, 0, 5}, StampRef(records[0], ModeInternal))
	assert.Equal(t, 0, b.Remaining())

	SortRecords(records, ModeInternal)
	assert.Equal(t, []byte{0, 0, 0, 3}, StampRef(records[0], ModeInternal))
}

func TestRecords_MissingTerminator(t *testing.T) {
	b := NewBuffer(0)
	offset := BeginRecord(b)
	b.PutInt32(1)
	EndRecord(b, offset)
	b.Flip()

	_, err := ReadRecords(b, ModeInternal)
	require.Error(t, err)
	assert.True(t, ir.IsCorruptRecord(err))
}

func TestRecords_LengthTooShort(t *testing.T) {
	b := NewBuffer(0)
	b.PutInt32(6)
	b.PutInt32(1)
	WriteTerminator(b)
	b.Flip()

	_, err := ReadRecords(b, ModeInternal)
	require.Error(t, err)
	assert.True(t, ir.IsCorruptRecord(err))
}

func TestCompareStampRefs_InternalIsSigned(t *testing.T) {
	neg := []byte{0xff, 0xff, 0xff, 0xff}
	pos := []byte{0, 0, 0, 1}
	assert.Equal(t, -1, CompareStampRefs(neg, pos, ModeInternal))
	assert.Equal(t, 1, CompareStampRefs(neg, pos, ModeExternal))
	assert.Equal(t, 0, CompareStampRefs(pos, pos, ModeInternal))
}

func TestExternalStampRef_RoundTripAndCanceled(t *testing.T) {
	ref := ExternalStampRef{Status: ir.StatusActive, Time: 1000, Author: uuidA, Module: uuidB, Path: uuidC}
	b := NewBuffer(0)
	PutExternalStampRef(b, ref)
	assert.Equal(t, StampRefLength(ModeExternal), len(b.Bytes()))
	assert.False(t, IsCanceledExternalRef(b.Bytes()))

	b.Flip()
	assert.Equal(t, ref, GetExternalStampRef(b))

	canceled := NewBuffer(0)
	PutExternalStampRef(canceled, ExternalStampRef{Status: ir.StatusCanceled, Time: ir.TimeMin})
	assert.True(t, IsCanceledExternalRef(canceled.Bytes()))
}
