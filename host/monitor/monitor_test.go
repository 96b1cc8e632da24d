package monitor

import (
	"errors"
	"io"
	"testing"
	"time"

	"usitwi/protocol"
)

// pipePort is a serial.Port over an in-memory pipe
type pipePort struct {
	*io.PipeReader
	flushErr error
	flushed  bool
}

func (p *pipePort) Write(b []byte) (int, error) { return 0, errors.New("read only") }
func (p *pipePort) Flush() error {
	p.flushed = true
	return p.flushErr
}

func frame(rec *protocol.TraceRecord) []byte {
	out := &protocol.FrameOutput{}
	protocol.EncodeTrace(out, rec)
	return append([]byte(nil), out.Result()...)
}

func TestMonitorDecodes(t *testing.T) {
	pr, pw := io.Pipe()
	port := &pipePort{PipeReader: pr}

	m := NewMonitor()
	if err := m.Attach(port); err != nil {
		t.Fatalf("Attach failed: %v", err)
	}
	defer m.Close()

	if !port.flushed {
		t.Error("Expected port flushed on attach")
	}
	if err := m.Attach(port); err == nil {
		t.Error("Expected error attaching twice")
	}

	go pw.Write(frame(&protocol.TraceRecord{Seq: 4, Kind: 1, Phase: 4, In: []byte{0x11, 0x22}}))

	rec, err := m.Next(2 * time.Second)
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	want := "#4 transaction phase=data_processed in=[11 22] out=[]"
	if got := Format(rec); got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
}

func TestMonitorTimeout(t *testing.T) {
	pr, _ := io.Pipe()
	m := NewMonitor()
	if err := m.Attach(&pipePort{PipeReader: pr}); err != nil {
		t.Fatalf("Attach failed: %v", err)
	}
	defer m.Close()

	if _, err := m.Next(10 * time.Millisecond); err == nil {
		t.Error("Expected timeout error")
	}
}

func TestMonitorFlushError(t *testing.T) {
	pr, _ := io.Pipe()
	m := NewMonitor()
	if err := m.Attach(&pipePort{PipeReader: pr, flushErr: errors.New("boom")}); err == nil {
		t.Error("Expected flush error")
	}
	if _, err := m.Next(time.Millisecond); err == nil {
		t.Error("Expected not connected error")
	}
}

func TestFormatDropped(t *testing.T) {
	rec := &protocol.TraceRecord{Seq: 1, Kind: 2, Phase: 1, Dropped: 3}
	want := "#1 aborted phase=after_start in=[] out=[] dropped=3"
	if got := Format(rec); got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
}
