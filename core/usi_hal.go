package core

import "usitwi/irq"

// Line identifies one of the two open-drain bus lines.
type Line uint8

const (
	LineSDA Line = iota // Data line
	LineSCL             // Clock line
)

// USICR bits (control register)
const (
	USISIE = 1 << 7 // Start condition interrupt enable
	USIOIE = 1 << 6 // Counter overflow interrupt enable
	USIWM1 = 1 << 5 // Wire mode bit 1 (two-wire mode)
	USIWM0 = 1 << 4 // Wire mode bit 0 (hold SCL low on counter overflow)
	USICS1 = 1 << 3 // Clock source: external
	USICS0 = 1 << 2 // Clock source edge select (0 = positive edge)
	USICLK = 1 << 1 // Clock strobe
	USITC  = 1 << 0 // Toggle clock port pin
)

// USISR bits (status register). Flags are cleared by writing a one.
const (
	USISIF = 1 << 7 // Start condition flag
	USIOIF = 1 << 6 // Counter overflow flag
	USIPF  = 1 << 5 // Stop condition flag
	USIDC  = 1 << 4 // Data output collision (arbitration error)

	USIFlagMask    = USISIF | USIOIF | USIPF | USIDC
	USICounterMask = 0x0F
)

// 4-bit counter presets. The counter ticks on both clock edges and overflows
// when it wraps to zero.
const (
	CounterByte = 0x00 // 16 edges, one byte
	CounterBit  = 0x0E // 2 edges, one ack bit
)

// USIPort is the register-level view of the USI peripheral and its two pins
// that the slave state machine drives. Implementations must be callable from
// interrupt context.
type USIPort interface {
	// Control returns USICR
	Control() uint8
	// SetControl writes USICR
	SetControl(v uint8)

	// Status returns USISR (flags and counter)
	Status() uint8
	// SetStatus writes USISR. Flag bits written as one are cleared, the low
	// nibble loads the counter.
	SetStatus(v uint8)

	// Data returns USIDR
	Data() uint8
	// SetData writes USIDR
	SetData(v uint8)

	// SetOutput configures the line as driven (true) or released (false)
	SetOutput(l Line, out bool)
	// SetHigh sets the port latch of the line
	SetHigh(l Line, high bool)
	// High reads the current level of the line
	High(l Line) bool

	// Sleep re-enables interrupts as Restore(state) would and halts until the
	// next interrupt, with no window in between where an interrupt could be
	// taken before the halt.
	Sleep(state irq.State)
}
