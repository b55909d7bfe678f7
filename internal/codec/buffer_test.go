package codec

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/isaac/internal/ir"
)

func TestBuffer_WriteFlipRead(t *testing.T) {
	id := uuid.MustParse("00112233-4455-6677-8899-aabbccddeeff")

	b := NewBuffer(0)
	b.PutByte(7)
	b.PutInt32(-2)
	b.PutInt64(1 << 40)
	b.PutNid(ir.Nid(-2147483647))
	b.PutUUID(id)
	b.PutString("héllo")
	require.NoError(t, b.Err())

	b.Flip()
	assert.Equal(t, 0, b.Position())
	assert.Equal(t, 1+4+8+4+16+4+len("héllo"), b.Limit())

	assert.Equal(t, byte(7), b.GetByte())
	assert.Equal(t, int32(-2), b.GetInt32())
	assert.Equal(t, int64(1<<40), b.GetInt64())
	assert.Equal(t, ir.Nid(-2147483647), b.GetNid())
	assert.Equal(t, id, b.GetUUID())
	assert.Equal(t, "héllo", b.GetString())
	assert.Equal(t, 0, b.Remaining())
	require.NoError(t, b.Err())
}

func TestBuffer_BigEndianLayout(t *testing.T) {
	b := NewBuffer(8)
	b.PutInt32(0x01020304)
	assert.Equal(t, []byte{1, 2, 3, 4}, b.Bytes())

	id := uuid.MustParse("00112233-4455-6677-8899-aabbccddeeff")
	b = NewBuffer(16)
	b.PutUUID(id)
	assert.Equal(t, []byte{0x00, 0x11, 0x22, 0x33, 0x44, 0x55, 0x66, 0x77,
		0x88, 0x99, 0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0xff}, b.Bytes())
}

func TestBuffer_UnderflowIsSticky(t *testing.T) {
	b := Wrap([]byte{0, 0, 0})

	assert.Equal(t, int32(0), b.GetInt32())
	require.Error(t, b.Err())
	assert.True(t, ir.HasCode(b.Err(), ir.ErrCodeBufferUnderflow))

	// Later reads keep failing even though a byte is available.
	assert.Equal(t, byte(0), b.GetByte())
	assert.Equal(t, 0, b.Position())
}

func TestBuffer_StringLengthBeyondLimit(t *testing.T) {
	b := NewBuffer(8)
	b.PutInt32(100)
	b.PutByte('x')
	b.Flip()

	assert.Equal(t, "", b.GetString())
	assert.Error(t, b.Err())
}

func TestBuffer_NegativeStringLength(t *testing.T) {
	b := NewBuffer(4)
	b.PutInt32(-1)
	b.Flip()

	assert.Equal(t, "", b.GetString())
	assert.Error(t, b.Err())
}

func TestBuffer_PatchAndPeek(t *testing.T) {
	b := NewBuffer(0)
	offset := BeginRecord(b)
	b.PutInt32(99)
	EndRecord(b, offset)
	b.Flip()

	assert.Equal(t, int32(8), b.PeekInt32())
	assert.Equal(t, 0, b.Position())
	assert.Equal(t, int32(8), b.GetInt32())
	assert.Equal(t, int32(99), b.GetInt32())
}

func TestBuffer_SetPositionBounds(t *testing.T) {
	b := Wrap([]byte{1, 2})
	b.SetPosition(2)
	require.NoError(t, b.Err())
	b.SetPosition(3)
	assert.Error(t, b.Err())
}

func TestBuffer_SliceBounds(t *testing.T) {
	b := Wrap([]byte{1, 2, 3})
	assert.Equal(t, []byte{2, 3}, b.Slice(1, 3))
	assert.Nil(t, b.Slice(2, 5))
	assert.Error(t, b.Err())
}
