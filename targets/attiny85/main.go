//go:build attiny85

package main

import (
	"context"
	"device/avr"
	"machine"
	"runtime/interrupt"

	"usitwi/app/regbank"
	"usitwi/client"
	"usitwi/core"
)

const (
	deviceID = 0xA5

	regID  = 0x00 // read-only device id
	regLED = 0x01 // bit 0 drives the LED on PB1
)

const led = machine.PB1

var slave *core.Slave

func main() {
	led.Configure(machine.PinConfig{Mode: machine.PinOutput})
	led.Low()

	initTraceUART()

	bank := regbank.New()
	bank.Set(regID, deviceID)
	bank.Protect(regID)
	bank.OnWrite(func(reg, v uint8) {
		if reg == regLED {
			led.Set(v&1 != 0)
		}
	})

	var err error
	slave, err = core.New(avrUSI{}, core.Config{
		Address:     client.DefaultAddress,
		SleepOnIdle: true,
		Data:        bank,
		Trace:       &core.FrameTracer{Write: writeTrace},
	})
	if err != nil {
		fail()
	}

	// USICR gates both vectors; nothing fires until the slave arms
	interrupt.New(avr.IRQ_USI_START, func(interrupt.Interrupt) {
		slave.HandleStart()
	})
	interrupt.New(avr.IRQ_USI_OVF, func(interrupt.Interrupt) {
		slave.HandleOverflow()
	})

	slave.Run(context.Background())
}

// fail blinks the LED forever
func fail() {
	for {
		led.Set(!led.Get())
		for i := 0; i < 60000; i++ {
			avr.Asm("nop")
		}
	}
}
