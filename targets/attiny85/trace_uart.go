//go:build attiny85

package main

import (
	"device/avr"
	"machine"

	"usitwi/protocol"
)

// The ATtiny85 has no UART. Trace frames go out on PB3 as 8N1 at
// protocol.TraceBaud, bit-banged against Timer1.
const (
	traceTX = machine.PB3

	// Timer1 at CK/8 gives 1 MHz on an 8 MHz clock
	timer1Prescale8 = 0x04
	ticksPerBit     = 1000000 / protocol.TraceBaud
)

func initTraceUART() {
	traceTX.Configure(machine.PinConfig{Mode: machine.PinOutput})
	traceTX.High()
	avr.TCCR1.Set(timer1Prescale8)
}

// writeTrace sends frame with interrupts left on. The bus ISRs are short
// compared to one bit time.
func writeTrace(frame []byte) {
	for _, b := range frame {
		// start bit, eight data bits LSB first, stop bit
		bits := uint16(b)<<1 | 1<<9
		next := avr.TCNT1.Get()
		for i := 0; i < 10; i++ {
			traceTX.Set(bits&1 != 0)
			bits >>= 1
			next += ticksPerBit
			for int8(avr.TCNT1.Get()-next) < 0 {
			}
		}
	}
}
