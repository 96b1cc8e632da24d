//go:build attiny85

package main

import (
	"device/avr"

	"usitwi/core"
	"usitwi/irq"
)

// USI pins on port B
const (
	pinSDA = 0 // PB0
	pinSCL = 2 // PB2
)

// avrUSI is the USI peripheral of the ATtiny85, with SDA on PB0 and SCL on PB2.
type avrUSI struct{}

var _ core.USIPort = avrUSI{}

func linePin(l core.Line) uint8 {
	if l == core.LineSCL {
		return 1 << pinSCL
	}
	return 1 << pinSDA
}

func (avrUSI) Control() uint8     { return avr.USICR.Get() }
func (avrUSI) SetControl(v uint8) { avr.USICR.Set(v) }
func (avrUSI) Status() uint8      { return avr.USISR.Get() }
func (avrUSI) SetStatus(v uint8)  { avr.USISR.Set(v) }
func (avrUSI) Data() uint8        { return avr.USIDR.Get() }
func (avrUSI) SetData(v uint8)    { avr.USIDR.Set(v) }

func (avrUSI) SetOutput(l core.Line, out bool) {
	if out {
		avr.DDRB.SetBits(linePin(l))
	} else {
		avr.DDRB.ClearBits(linePin(l))
	}
}

func (avrUSI) SetHigh(l core.Line, high bool) {
	if high {
		avr.PORTB.SetBits(linePin(l))
	} else {
		avr.PORTB.ClearBits(linePin(l))
	}
}

func (avrUSI) High(l core.Line) bool {
	return avr.PINB.HasBits(linePin(l))
}

// Sleep enters idle mode. sei delays the interrupt by one instruction so the
// sleep is always reached first. The saved state is not needed: the
// dispatcher only sleeps from a section entered with interrupts on, and sei
// restores exactly that.
func (avrUSI) Sleep(_ irq.State) {
	avr.MCUCR.SetBits(avr.MCUCR_SE)
	avr.Asm("sei\n\tsleep")
	avr.MCUCR.ClearBits(avr.MCUCR_SE)
}
