package codec

import (
	"encoding/binary"

	"github.com/google/uuid"

	"github.com/roach88/isaac/internal/ir"
)

// Buffer is a bounds-checked binary reader/writer with an explicit
// position and limit.
//
// Writes append at the current position, growing the backing slice; while
// writing, the limit follows the high-water mark. Flip prepares a written
// buffer for reading. Reads never pass the limit.
//
// Thread-safety: Buffer is not safe for concurrent use.
type Buffer struct {
	data  []byte
	pos   int
	limit int
	err   error
}

// NewBuffer creates an empty writable buffer with the given capacity hint.
func NewBuffer(capacity int) *Buffer {
	return &Buffer{data: make([]byte, 0, capacity)}
}

// Wrap creates a buffer for reading data. The buffer does not copy data.
func Wrap(data []byte) *Buffer {
	return &Buffer{data: data, limit: len(data)}
}

// Position returns the current read/write offset.
func (b *Buffer) Position() int { return b.pos }

// Limit returns the offset reads may not pass.
func (b *Buffer) Limit() int { return b.limit }

// Remaining returns the number of readable bytes left.
func (b *Buffer) Remaining() int { return b.limit - b.pos }

// Err returns the first bounds error encountered, if any.
func (b *Buffer) Err() error { return b.err }

// SetPosition moves the offset. Positions beyond the limit are an error.
func (b *Buffer) SetPosition(pos int) {
	if pos < 0 || pos > b.limit {
		b.fail("set position %d outside [0,%d]", pos, b.limit)
		return
	}
	b.pos = pos
}

// Flip sets the limit to the current position and rewinds to zero.
func (b *Buffer) Flip() {
	b.limit = b.pos
	b.pos = 0
}

// Bytes returns the bytes up to the limit. The slice aliases the buffer.
func (b *Buffer) Bytes() []byte {
	return b.data[:b.limit]
}

// Slice returns the bytes in [from, to). The slice aliases the buffer.
func (b *Buffer) Slice(from, to int) []byte {
	if from < 0 || to > b.limit || from > to {
		b.fail("slice [%d,%d) outside [0,%d]", from, to, b.limit)
		return nil
	}
	return b.data[from:to]
}

func (b *Buffer) fail(format string, args ...any) {
	if b.err == nil {
		b.err = ir.Errorf(ir.ErrCodeBufferUnderflow, format, args...)
	}
}

// grow makes room for n bytes at the position and returns the window.
func (b *Buffer) grow(n int) []byte {
	end := b.pos + n
	if end > len(b.data) {
		if end > cap(b.data) {
			next := make([]byte, len(b.data), 2*cap(b.data)+n)
			copy(next, b.data)
			b.data = next
		}
		b.data = b.data[:end]
	}
	window := b.data[b.pos:end]
	b.pos = end
	if b.pos > b.limit {
		b.limit = b.pos
	}
	return window
}

// take consumes n readable bytes, or fails.
func (b *Buffer) take(n int) []byte {
	if b.err != nil {
		return nil
	}
	if n < 0 || b.pos+n > b.limit {
		b.fail("read %d bytes at %d exceeds limit %d", n, b.pos, b.limit)
		return nil
	}
	window := b.data[b.pos : b.pos+n]
	b.pos += n
	return window
}

// PutByte writes one byte.
func (b *Buffer) PutByte(v byte) {
	b.grow(1)[0] = v
}

// PutInt32 writes a big-endian int32.
func (b *Buffer) PutInt32(v int32) {
	binary.BigEndian.PutUint32(b.grow(4), uint32(v))
}

// PutInt32At overwrites a big-endian int32 at offset without moving the
// position. Used to backpatch record lengths.
func (b *Buffer) PutInt32At(offset int, v int32) {
	if offset < 0 || offset+4 > len(b.data) {
		b.fail("patch at %d outside written range %d", offset, len(b.data))
		return
	}
	binary.BigEndian.PutUint32(b.data[offset:offset+4], uint32(v))
}

// PutInt64 writes a big-endian int64.
func (b *Buffer) PutInt64(v int64) {
	binary.BigEndian.PutUint64(b.grow(8), uint64(v))
}

// PutNid writes a nid as a big-endian int32.
func (b *Buffer) PutNid(nid ir.Nid) {
	b.PutInt32(int32(nid))
}

// PutUUID writes a UUID as its most- then least-significant 8 bytes.
func (b *Buffer) PutUUID(id uuid.UUID) {
	copy(b.grow(16), id[:])
}

// PutString writes a 4-byte length followed by the UTF-8 bytes.
func (b *Buffer) PutString(s string) {
	b.PutInt32(int32(len(s)))
	copy(b.grow(len(s)), s)
}

// PutBytes writes raw bytes with no length prefix.
func (b *Buffer) PutBytes(p []byte) {
	copy(b.grow(len(p)), p)
}

// GetByte reads one byte.
func (b *Buffer) GetByte() byte {
	p := b.take(1)
	if p == nil {
		return 0
	}
	return p[0]
}

// GetInt32 reads a big-endian int32.
func (b *Buffer) GetInt32() int32 {
	p := b.take(4)
	if p == nil {
		return 0
	}
	return int32(binary.BigEndian.Uint32(p))
}

// PeekInt32 reads a big-endian int32 without consuming it.
func (b *Buffer) PeekInt32() int32 {
	v := b.GetInt32()
	if b.err == nil {
		b.pos -= 4
	}
	return v
}

// GetInt64 reads a big-endian int64.
func (b *Buffer) GetInt64() int64 {
	p := b.take(8)
	if p == nil {
		return 0
	}
	return int64(binary.BigEndian.Uint64(p))
}

// GetNid reads a nid.
func (b *Buffer) GetNid() ir.Nid {
	return ir.Nid(b.GetInt32())
}

// GetUUID reads a UUID.
func (b *Buffer) GetUUID() uuid.UUID {
	var id uuid.UUID
	if p := b.take(16); p != nil {
		copy(id[:], p)
	}
	return id
}

// GetString reads a length-prefixed UTF-8 string.
func (b *Buffer) GetString() string {
	n := b.GetInt32()
	if b.err != nil {
		return ""
	}
	p := b.take(int(n))
	if p == nil {
		return ""
	}
	return string(p)
}

// GetBytes reads n raw bytes. The slice aliases the buffer.
func (b *Buffer) GetBytes(n int) []byte {
	return b.take(n)
}
