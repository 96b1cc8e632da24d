package core

// BufferSize is the capacity shared by the inbound and outbound buffers.
const BufferSize = 16

// Sentinel bytes returned to a master that reads past the outbound data
const (
	SentinelHold   = 0xFE
	SentinelNoHold = 0xFF
)

// Buffer is a fixed-capacity transfer buffer. It never allocates.
type Buffer struct {
	data [BufferSize]byte
	n    uint8
}

// Len returns the number of valid bytes
func (b *Buffer) Len() int {
	return int(b.n)
}

// Bytes returns the valid bytes. The slice aliases the buffer.
func (b *Buffer) Bytes() []byte {
	return b.data[:b.n]
}

// Reset clears the buffer
func (b *Buffer) Reset() {
	b.n = 0
}

// Append stores v unless the buffer already holds BufferSize-1 bytes, in which
// case v is dropped and false is returned.
func (b *Buffer) Append(v byte) bool {
	if b.n >= BufferSize-1 {
		return false
	}
	b.data[b.n] = v
	b.n++
	return true
}

// Next returns the byte at *cursor and advances it, or sentinel once the
// cursor has reached the valid length.
func (b *Buffer) Next(cursor *uint8, sentinel byte) byte {
	if *cursor < b.n {
		v := b.data[*cursor]
		*cursor++
		return v
	}
	return sentinel
}

// fill exposes the whole backing array to a writer and records how much of it
// was used, clamped to capacity.
func (b *Buffer) fill(write func(p []byte) int) {
	n := write(b.data[:])
	if n < 0 {
		n = 0
	}
	if n > BufferSize {
		n = BufferSize
	}
	b.n = uint8(n)
}
