// Package protocol implements the framing used to report bus transactions
// from the firmware to a host: VLQ encoded fields inside CRC protected blocks.
package protocol

// Version represents the trace format version
const Version = "1"

// Frame layout: length, sequence, payload, CRC16 (hi, lo), sync byte.
const (
	MessageMax         = 64 // FrameOutput size, one frame
	MessageHeaderSize  = 2
	MessageTrailerSize = 3
	MessageLengthMin   = MessageHeaderSize + MessageTrailerSize
	MessageLengthMax   = 64
	MessagePositionLen = 0
	MessagePositionSeq = 1
	MessageTrailerCRC  = 3
	MessageTrailerSync = 1
	MessageValueSync   = 0x7E

	// Message sequence masks
	MessageSeqMask = 0x0F
	MessageDest    = 0x10
)

// Message is one decoded frame
type Message struct {
	Length   uint8
	Sequence uint8
	Payload  []byte // Frame data without header/trailer
	CRC      uint16
}
