package protocol

// OutputBuffer is where frames are encoded. EncodeFrame writes a length
// placeholder first and patches it once the payload is known.
type OutputBuffer interface {
	Output(data []byte)
	CurPosition() int
	Update(pos int, val byte)
	DataSince(pos int) []byte
}

// FrameOutput holds one encoded trace frame. It lives inside the firmware's
// tracer, so it is a fixed array and the zero value is ready to use. Bytes
// past MessageMax are dropped and reported by Truncated.
type FrameOutput struct {
	buf       [MessageMax]byte
	pos       uint8
	truncated bool
}

func (f *FrameOutput) Output(data []byte) {
	n := copy(f.buf[f.pos:], data)
	f.pos += uint8(n)
	if n < len(data) {
		f.truncated = true
	}
}

func (f *FrameOutput) CurPosition() int {
	return int(f.pos)
}

func (f *FrameOutput) Update(pos int, val byte) {
	if pos < int(f.pos) {
		f.buf[pos] = val
	}
}

func (f *FrameOutput) DataSince(pos int) []byte {
	if pos > int(f.pos) {
		return nil
	}
	return f.buf[pos:f.pos]
}

// Result returns the encoded frame
func (f *FrameOutput) Result() []byte {
	return f.buf[:f.pos]
}

// Truncated reports whether a write did not fit since the last Reset
func (f *FrameOutput) Truncated() bool {
	return f.truncated
}

// Reset empties the frame
func (f *FrameOutput) Reset() {
	f.pos = 0
	f.truncated = false
}

// StreamBuffer collects bytes from the trace UART until FrameScanner can cut
// whole frames from them. Consumed bytes are compacted away on the next
// Write, so Data is always one contiguous slice and never allocates.
type StreamBuffer struct {
	buf   []byte
	start int
	end   int
}

// NewStreamBuffer returns a buffer that holds frames maximum-length frames
func NewStreamBuffer(frames int) *StreamBuffer {
	if frames < 2 {
		frames = 2
	}
	return &StreamBuffer{buf: make([]byte, frames*MessageMax)}
}

// Write appends as much of data as fits and returns how much that was
func (b *StreamBuffer) Write(data []byte) int {
	if b.start > 0 {
		b.end = copy(b.buf, b.buf[b.start:b.end])
		b.start = 0
	}
	n := copy(b.buf[b.end:], data)
	b.end += n
	return n
}

// Data returns the unconsumed bytes. The slice aliases the buffer.
func (b *StreamBuffer) Data() []byte {
	return b.buf[b.start:b.end]
}

// Len returns the number of unconsumed bytes
func (b *StreamBuffer) Len() int {
	return b.end - b.start
}

// Pop consumes n bytes from the front
func (b *StreamBuffer) Pop(n int) {
	if n > b.Len() {
		n = b.Len()
	}
	b.start += n
	if b.start == b.end {
		b.start, b.end = 0, 0
	}
}

// Reset discards everything buffered
func (b *StreamBuffer) Reset() {
	b.start, b.end = 0, 0
}
