// Package monitor follows the trace output of a running slave and turns it
// into decoded transaction records.
package monitor

import (
	"fmt"
	"strings"
	"time"

	"usitwi/core"
	"usitwi/host/serial"
	"usitwi/protocol"
)

// Monitor represents a connection to the firmware's trace UART
type Monitor struct {
	port   serial.Port
	reader *protocol.TraceReader

	connected bool
}

// NewMonitor creates a new Monitor instance (not yet connected)
func NewMonitor() *Monitor {
	return &Monitor{}
}

// Connect opens device with the default trace settings
func (m *Monitor) Connect(device string) error {
	return m.ConnectWithConfig(serial.DefaultConfig(device))
}

// ConnectWithConfig opens a serial port with a custom config
func (m *Monitor) ConnectWithConfig(cfg *serial.Config) error {
	port, err := serial.Open(cfg)
	if err != nil {
		return fmt.Errorf("failed to open serial port: %w", err)
	}
	return m.Attach(port)
}

// Attach starts decoding from an already open port
func (m *Monitor) Attach(port serial.Port) error {
	if m.connected {
		return fmt.Errorf("monitor already connected")
	}

	// whatever sat in the driver buffer is likely a partial frame
	if err := port.Flush(); err != nil {
		port.Close()
		return fmt.Errorf("failed to flush serial port: %w", err)
	}

	m.port = port
	m.reader = protocol.NewTraceReader(port)
	m.connected = true
	return nil
}

// Records returns the decoded records; closed when the port ends
func (m *Monitor) Records() <-chan *protocol.TraceRecord {
	if m.reader == nil {
		return nil
	}
	return m.reader.Records()
}

// Next waits up to timeout for the next record
func (m *Monitor) Next(timeout time.Duration) (*protocol.TraceRecord, error) {
	if !m.connected {
		return nil, fmt.Errorf("not connected")
	}

	select {
	case rec, ok := <-m.reader.Records():
		if !ok {
			return nil, fmt.Errorf("trace stream closed")
		}
		return rec, nil
	case <-time.After(timeout):
		return nil, fmt.Errorf("no trace record within %v", timeout)
	}
}

// Stats summarises decoder health
func (m *Monitor) Stats() string {
	if m.reader == nil {
		return "not connected"
	}
	dropped, invalid, resyncs := m.reader.Stats()
	return fmt.Sprintf("dropped=%d invalid=%d resyncs=%d", dropped, invalid, resyncs)
}

// Close stops decoding and closes the port
func (m *Monitor) Close() error {
	if m.reader != nil {
		if err := m.reader.Close(); err != nil {
			return err
		}
	}
	m.connected = false
	return nil
}

// Format renders a record the way the firmware's debug dump does
func Format(rec *protocol.TraceRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "#%d %s phase=%s in=%s out=%s",
		rec.Seq,
		core.TraceKind(rec.Kind),
		core.Phase(rec.Phase),
		hexList(rec.In),
		hexList(rec.Out))
	if rec.Dropped > 0 {
		fmt.Fprintf(&b, " dropped=%d", rec.Dropped)
	}
	return b.String()
}

func hexList(p []byte) string {
	parts := make([]string, len(p))
	for i, v := range p {
		parts[i] = fmt.Sprintf("%02x", v)
	}
	return "[" + strings.Join(parts, " ") + "]"
}
