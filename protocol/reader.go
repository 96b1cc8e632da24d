//go:build !tinygo

package protocol

import (
	"errors"
	"io"
	"sync"
	"time"
)

const (
	traceStreamFrames = 8
	readChunk         = 2 * MessageMax
)

// TraceReader decodes trace frames from a byte stream (the firmware's debug
// UART) on a background goroutine.
type TraceReader struct {
	port io.ReadCloser

	stream  *StreamBuffer
	scanner FrameScanner

	records chan *TraceRecord

	mu      sync.Mutex
	dropped uint32 // records lost because the consumer was slow
	invalid uint32 // frames with a bad payload

	stopChan chan struct{}
	doneChan chan struct{}
	stopOnce sync.Once
}

// NewTraceReader starts reading from port
func NewTraceReader(port io.ReadCloser) *TraceReader {
	r := &TraceReader{
		port:     port,
		stream:   NewStreamBuffer(traceStreamFrames),
		records:  make(chan *TraceRecord, 16),
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}
	go r.readLoop()
	return r
}

// Records returns the decoded records. The channel is closed when the reader
// stops.
func (r *TraceReader) Records() <-chan *TraceRecord {
	return r.records
}

// Stats returns the count of dropped records, invalid payloads and
// resynchronisations
func (r *TraceReader) Stats() (dropped, invalid, resyncs uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped, r.invalid, r.scanner.Errors()
}

// readLoop continuously reads from the port and decodes frames
func (r *TraceReader) readLoop() {
	defer close(r.doneChan)
	defer close(r.records)

	buffer := make([]byte, readChunk)

	for {
		select {
		case <-r.stopChan:
			return
		default:
		}

		n, err := r.port.Read(buffer)
		if n > 0 {
			r.feed(buffer[:n])
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) {
				return
			}
			// Transient error, retry
			time.Sleep(10 * time.Millisecond)
		}
	}
}

// feed hands data to the scanner, in pieces if the stream is short of room
func (r *TraceReader) feed(data []byte) {
	for len(data) > 0 {
		n := r.stream.Write(data)
		data = data[n:]
		r.processFrames()
		if n == 0 {
			// only a garbage-filled stream can be full after a scan
			r.stream.Reset()
		}
	}
}

func (r *TraceReader) processFrames() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.scanner.Scan(r.stream, func(msg *Message) {
		rec, err := DecodeTrace(msg.Payload)
		if err != nil {
			r.invalid++
			return
		}
		select {
		case r.records <- rec:
		case <-r.stopChan:
		default:
			r.dropped++
		}
	})
}

// Close stops the reader and closes the port
func (r *TraceReader) Close() error {
	var err error
	r.stopOnce.Do(func() {
		close(r.stopChan)
		if r.port != nil {
			err = r.port.Close()
		}
		<-r.doneChan // Wait for read loop to finish
	})
	return err
}
