package serial

import (
	"io"

	"usitwi/protocol"
)

// Port represents a serial port interface
// This abstraction allows for different implementations:
// - Native serial (using github.com/tarm/serial)
// - io.Pipe or a simulated link (for testing)
type Port interface {
	io.ReadWriteCloser

	// Flush discards anything received but not yet read
	Flush() error
}

// Config holds serial port configuration
type Config struct {
	// Device path (e.g., "/dev/ttyUSB0", "COM3")
	Device string

	// Baud rate of the firmware's trace output
	Baud int

	// Read timeout in milliseconds (0 = blocking)
	ReadTimeout int
}

// TraceBaud is the rate of the software UART on the firmware target
const TraceBaud = protocol.TraceBaud

// DefaultConfig returns a configuration for the firmware's trace output
func DefaultConfig(device string) *Config {
	return &Config{
		Device:      device,
		Baud:        TraceBaud,
		ReadTimeout: 100, // 100ms read timeout
	}
}
