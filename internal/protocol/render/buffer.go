// Package render implements the zero-allocation output formatter: a
// caller-provided byte buffer with a cursor and a hard end, appended to
// without allocation and truncated cleanly when it runs out of room.
package render

import "strconv"

// Buffer is a cursor-bounded append target. It never allocates on Append;
// the caller sizes buf for the worst case up front and reuses it across
// datagrams.
type Buffer struct {
	buf    []byte
	cursor int
	end    int
}

// NewBuffer wraps buf as an output target with cursor 0 and end len(buf).
func NewBuffer(buf []byte) *Buffer {
	return &Buffer{buf: buf, end: len(buf)}
}

// Reset rewinds the cursor to 0 without reallocating the backing array.
func (b *Buffer) Reset() {
	b.cursor = 0
}

// Len returns the number of bytes written so far.
func (b *Buffer) Len() int {
	return b.cursor
}

// Truncated reports whether the cursor has reached the hard end. Output
// that fills the buffer exactly, with nothing dropped, also reports true.
func (b *Buffer) Truncated() bool {
	return b.cursor >= b.end
}

// Bytes returns the written region, buf[:cursor]. The slice aliases the
// backing array and is invalidated by the next Reset/Append call.
func (b *Buffer) Bytes() []byte {
	return b.buf[:b.cursor]
}

// appendBytes copies as many leading bytes of src as fit in the remaining
// capacity. If src does not fully fit, the cursor advances exactly to end
// (a partial, truncated copy) and every subsequent append becomes a no-op.
func (b *Buffer) appendBytes(src []byte) {
	remaining := b.end - b.cursor
	if remaining <= 0 {
		return
	}
	n := len(src)
	if n > remaining {
		n = remaining
	}
	copy(b.buf[b.cursor:b.cursor+n], src[:n])
	b.cursor += n
}

// AppendRaw appends literal formatting text (braces, commas, quotes).
func (b *Buffer) AppendRaw(s string) {
	b.appendBytes([]byte(s))
}

// AppendByte appends a single raw byte (CHAR field rendering).
func (b *Buffer) AppendByte(c byte) {
	b.appendBytes([]byte{c})
}

// AppendUint appends v as decimal ASCII.
func (b *Buffer) AppendUint(v uint64) {
	var scratch [20]byte
	s := strconv.AppendUint(scratch[:0], v, 10)
	b.appendBytes(s)
}

// AppendInt appends v as decimal ASCII, signed.
func (b *Buffer) AppendInt(v int64) {
	var scratch [20]byte
	s := strconv.AppendInt(scratch[:0], v, 10)
	b.appendBytes(s)
}

// AppendSanitized sanitizes n bytes of src (0x00 -> 0x20) and appends the
// result directly, without building an intermediate string, so embedded
// NULs and raw bytes stay structurally in place.
func (b *Buffer) AppendSanitized(src []byte, n int) {
	remaining := b.end - b.cursor
	if remaining <= 0 {
		return
	}
	write := n
	if write > remaining {
		write = remaining
	}
	dst := b.buf[b.cursor : b.cursor+write]
	for i := 0; i < write; i++ {
		c := src[i]
		if c == 0x00 {
			c = 0x20
		}
		dst[i] = c
	}
	b.cursor += write
}

// AppendFieldName appends "<name>: " for verbose-mode field rendering.
func (b *Buffer) AppendFieldName(name string) {
	b.AppendRaw(name)
	b.AppendRaw(": ")
}
