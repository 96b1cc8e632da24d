package protocol

import "errors"

var (
	ErrFrameTooLong = errors.New("trace frame exceeds maximum length")
	ErrTraceKind    = errors.New("unknown trace kind")
)

// TraceRecord is the wire form of one finished bus transaction. Kind and
// Phase carry the numeric values of the firmware's enums.
type TraceRecord struct {
	Seq     uint8
	Kind    uint8
	Phase   uint8
	Dropped uint8
	In      []byte
	Out     []byte
}

// traceKindMax is the highest kind value the firmware emits
const traceKindMax = 3

// TraceBaud is the rate of the firmware's trace UART
const TraceBaud = 9600

// EncodeTrace writes rec as one complete frame
func EncodeTrace(output OutputBuffer, rec *TraceRecord) {
	EncodeFrame(output, MessageDest|rec.Seq&MessageSeqMask, func(output OutputBuffer) {
		EncodeVLQUint(output, uint32(rec.Seq))
		EncodeVLQUint(output, uint32(rec.Kind))
		EncodeVLQUint(output, uint32(rec.Phase))
		EncodeVLQUint(output, uint32(rec.Dropped))
		EncodeVLQBytes(output, rec.In)
		EncodeVLQBytes(output, rec.Out)
	})
}

// DecodeTrace parses a frame payload produced by EncodeTrace. The returned
// slices alias payload.
func DecodeTrace(payload []byte) (*TraceRecord, error) {
	var rec TraceRecord
	fields := []*uint8{&rec.Seq, &rec.Kind, &rec.Phase, &rec.Dropped}
	for _, f := range fields {
		v, err := DecodeVLQUint(&payload)
		if err != nil {
			return nil, err
		}
		*f = uint8(v)
	}
	if rec.Kind == 0 || rec.Kind > traceKindMax {
		return nil, ErrTraceKind
	}

	var err error
	if rec.In, err = DecodeVLQBytes(&payload); err != nil {
		return nil, err
	}
	if rec.Out, err = DecodeVLQBytes(&payload); err != nil {
		return nil, err
	}
	return &rec, nil
}

// EncodeFrame wraps the bytes produced by frameData in a frame header and
// trailer
func EncodeFrame(output OutputBuffer, seq uint8, frameData func(output OutputBuffer)) {
	cursor := output.CurPosition()

	// Write header (length placeholder and sequence)
	output.Output([]byte{0, seq})

	// Write frame contents
	frameData(output)

	// Update length field
	changed := len(output.DataSince(cursor))
	output.Update(cursor, uint8(changed+MessageTrailerSize))

	// Calculate and write CRC
	crc := CRC16(output.DataSince(cursor))
	output.Output([]byte{
		uint8((crc & 0xFF00) >> 8),
		uint8(crc & 0xFF),
		MessageValueSync,
	})
}

// FrameScanner splits a byte stream into frames, resynchronising on the sync
// byte after corruption.
type FrameScanner struct {
	desynced bool
	errors   uint32
}

// Errors returns how many times the scanner lost synchronisation
func (f *FrameScanner) Errors() uint32 {
	return f.errors
}

// Scan consumes every complete frame in input and passes it to fn. A partial
// frame at the end is left in input for the next call.
func (f *FrameScanner) Scan(input *StreamBuffer, fn func(msg *Message)) {
	data := input.Data()

	for len(data) > 0 {
		if f.desynced {
			// Look for sync byte
			syncPos := -1
			for i, b := range data {
				if b == MessageValueSync {
					syncPos = i
					break
				}
			}

			if syncPos >= 0 {
				data = data[syncPos+1:]
				f.desynced = false
			} else {
				data = nil
			}
			continue
		}

		// Skip leading sync bytes
		if data[0] == MessageValueSync {
			data = data[1:]
			continue
		}

		// Need minimum message length
		if len(data) < MessageLengthMin {
			break
		}

		msgLen := int(data[MessagePositionLen])
		if msgLen < MessageLengthMin || msgLen > MessageLengthMax {
			f.desync()
			continue
		}

		seq := data[MessagePositionSeq]
		if seq&^MessageSeqMask != MessageDest {
			f.desync()
			continue
		}

		// Wait for full message
		if len(data) < msgLen {
			break
		}

		if data[msgLen-MessageTrailerSync] != MessageValueSync {
			f.desync()
			continue
		}

		frameCRC := uint16(data[msgLen-MessageTrailerCRC])<<8 |
			uint16(data[msgLen-MessageTrailerCRC+1])
		if frameCRC != CRC16(data[:msgLen-MessageTrailerSize]) {
			f.desync()
			continue
		}

		payload := make([]byte, msgLen-MessageHeaderSize-MessageTrailerSize)
		copy(payload, data[MessageHeaderSize:msgLen-MessageTrailerSize])

		msg := &Message{
			Length:   data[MessagePositionLen],
			Sequence: seq,
			Payload:  payload,
			CRC:      frameCRC,
		}
		data = data[msgLen:]

		fn(msg)
	}

	// Remove consumed bytes from input
	consumed := input.Len() - len(data)
	if consumed > 0 {
		input.Pop(consumed)
	}
}

func (f *FrameScanner) desync() {
	f.desynced = true
	f.errors++
}
