package core

import "usitwi/protocol"

// TraceKind classifies how a transaction ended
type TraceKind uint8

const (
	TraceNone        TraceKind = iota
	TraceTransaction           // data moved, handler ran
	TraceAborted               // START followed directly by STOP
	TraceIgnored               // STOP without a data phase
)

func (k TraceKind) String() string {
	switch k {
	case TraceTransaction:
		return "transaction"
	case TraceAborted:
		return "aborted"
	case TraceIgnored:
		return "ignored"
	}
	return "none"
}

// TraceRecord is a snapshot of one finished transaction. It has fixed
// storage so the dispatcher can fill it with interrupts disabled.
type TraceRecord struct {
	Seq     uint8
	Kind    TraceKind
	Phase   Phase
	Dropped uint8 // inbound bytes lost to a full buffer

	in   [BufferSize]byte
	inN  uint8
	out  [BufferSize]byte
	outN uint8
}

// In returns the bytes written by the master
func (r *TraceRecord) In() []byte { return r.in[:r.inN] }

// Out returns the response the handler prepared
func (r *TraceRecord) Out() []byte { return r.out[:r.outN] }

func (r *TraceRecord) InLen() int  { return int(r.inN) }
func (r *TraceRecord) OutLen() int { return int(r.outN) }

// Tracer receives a record after every STOP. The record is reused; copy what
// must outlive the call.
type Tracer interface {
	Trace(rec *TraceRecord)
}

// capture fills s.record. Called with interrupts disabled.
func (s *Slave) capture(phase Phase) {
	r := &s.record
	r.Seq = s.seq
	s.seq++
	r.Phase = phase
	r.Dropped = 0
	r.inN = 0
	r.outN = 0

	switch phase {
	case PhaseDataProcessed:
		r.Kind = TraceTransaction
		r.inN = uint8(copy(r.in[:], s.in.Bytes()))
		r.outN = uint8(copy(r.out[:], s.out.Bytes()))
		r.Dropped = s.dropped
	case PhaseAfterStart:
		r.Kind = TraceAborted
	default:
		r.Kind = TraceIgnored
	}
}

// TraceRingSize is the number of records kept by a TraceRing
const TraceRingSize = 8

// TraceRing keeps the most recent records for post-mortem dumps.
type TraceRing struct {
	ring [TraceRingSize]TraceRecord
	head uint8
	n    uint8
}

// Trace implements Tracer.
func (t *TraceRing) Trace(rec *TraceRecord) {
	t.ring[t.head] = *rec
	t.head = (t.head + 1) % TraceRingSize
	if t.n < TraceRingSize {
		t.n++
	}
}

// Len returns the number of records held
func (t *TraceRing) Len() int {
	return int(t.n)
}

// At returns the i-th oldest record held
func (t *TraceRing) At(i int) *TraceRecord {
	start := (int(t.head) + TraceRingSize - int(t.n)) % TraceRingSize
	return &t.ring[(start+i)%TraceRingSize]
}

// Dump writes the ring, oldest first, to the debug writer
func (t *TraceRing) Dump() {
	if debugPrintln == nil {
		return
	}

	debugPrintln("[TRACE] === Trace Ring Dump ===")
	for i := 0; i < t.Len(); i++ {
		r := t.At(i)
		debugPrintln("[TRACE] #" + itoa(int(r.Seq)) +
			" " + r.Kind.String() +
			" phase=" + r.Phase.String() +
			" in=" + hexBytes(r.In()) +
			" out=" + hexBytes(r.Out()) +
			" dropped=" + itoa(int(r.Dropped)))
	}
	debugPrintln("[TRACE] === End Dump ===")
}

// Clear empties the ring
func (t *TraceRing) Clear() {
	t.head = 0
	t.n = 0
}

// FrameTracer encodes each record as a protocol trace frame and hands it to
// Write, typically a UART transmit function.
type FrameTracer struct {
	Write  func(frame []byte)
	output protocol.FrameOutput
}

// Trace implements Tracer.
func (f *FrameTracer) Trace(rec *TraceRecord) {
	if f.Write == nil {
		return
	}
	f.output.Reset()
	protocol.EncodeTrace(&f.output, &protocol.TraceRecord{
		Seq:     rec.Seq,
		Kind:    uint8(rec.Kind),
		Phase:   uint8(rec.Phase),
		Dropped: rec.Dropped,
		In:      rec.In(),
		Out:     rec.Out(),
	})
	if f.output.Truncated() {
		return
	}
	f.Write(f.output.Result())
}
