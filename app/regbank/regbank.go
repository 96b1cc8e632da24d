// Package regbank is a register file served as the slave's data handler.
//
// The first byte a master writes selects the register pointer; any further
// bytes are stored from there with auto-increment, wrapping at Size. After
// every transaction the response is loaded with the registers starting at
// the pointer, so a read returns the window the last write selected. A pure
// read leaves the pointer where it was.
package regbank

import "usitwi/irq"

// Size is the number of registers.
const Size = 32

// Bank implements core.DataHandler.
type Bank struct {
	regs    [Size]byte
	ptr     uint8
	ro      [Size / 8]uint8
	onWrite func(reg, v uint8)
	writes  uint16
}

// New returns a bank with all registers zero and writable.
func New() *Bank {
	return &Bank{}
}

// Protect makes reg read-only for the master. Local Set still works.
func (b *Bank) Protect(reg uint8) {
	reg %= Size
	b.ro[reg/8] |= 1 << (reg % 8)
}

func (b *Bank) protected(reg uint8) bool {
	return b.ro[reg/8]&(1<<(reg%8)) != 0
}

// OnWrite registers fn to be called for every register the master writes.
// fn runs with interrupts disabled and must not call Set or Get.
func (b *Bank) OnWrite(fn func(reg, v uint8)) {
	b.onWrite = fn
}

// Set stores v in reg from the application side.
func (b *Bank) Set(reg, v uint8) {
	irq.Do(func() { b.regs[reg%Size] = v })
}

// Get returns the current value of reg.
func (b *Bank) Get(reg uint8) (v uint8) {
	irq.Do(func() { v = b.regs[reg%Size] })
	return v
}

// Pointer returns the register pointer.
func (b *Bank) Pointer() (p uint8) {
	irq.Do(func() { p = b.ptr })
	return p
}

// Writes returns how many register writes the master has made.
func (b *Bank) Writes() (n uint16) {
	irq.Do(func() { n = b.writes })
	return n
}

// HandleData implements core.DataHandler.
func (b *Bank) HandleData(in, out []byte) int {
	if len(in) > 0 {
		b.ptr = in[0] % Size
		reg := b.ptr
		for _, v := range in[1:] {
			if !b.protected(reg) {
				b.regs[reg] = v
				b.writes++
				if b.onWrite != nil {
					b.onWrite(reg, v)
				}
			}
			reg = (reg + 1) % Size
		}
	}

	n := len(out)
	if n > Size {
		n = Size
	}
	reg := b.ptr
	for i := 0; i < n; i++ {
		out[i] = b.regs[reg]
		reg = (reg + 1) % Size
	}
	return n
}
