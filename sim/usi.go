//go:build !tinygo

// Package sim models the USI peripheral in two-wire mode together with a
// bit-banged bus master, so the slave can be exercised on a host without
// hardware. The model is event driven: every line change made by the master
// is resolved immediately and any interrupt it raises is delivered before the
// master call returns.
package sim

import (
	"sync"

	"usitwi/core"
	"usitwi/irq"
)

// Handlers are the two interrupt vectors of the peripheral. *core.Slave
// implements it.
type Handlers interface {
	HandleStart()
	HandleOverflow()
}

// USI implements core.USIPort.
type USI struct {
	mu sync.Mutex

	cr, sr, dr uint8
	ddr        [2]bool // slave pin driven
	port       [2]bool // slave port latch
	latch      bool    // SDA output latch, follows dr bit 7 while SCL is low

	masterSDA bool
	masterSCL bool
	scl       bool // last resolved SCL level
	startHold bool // start detector holds SCL low

	isr Handlers

	wake      chan struct{}
	closed    chan struct{}
	closeOnce sync.Once
}

var _ core.USIPort = (*USI)(nil)

// NewUSI returns an idle peripheral on a released bus.
func NewUSI() *USI {
	return &USI{
		masterSDA: true,
		masterSCL: true,
		scl:       true,
		wake:      make(chan struct{}, 1),
		closed:    make(chan struct{}),
	}
}

// Attach registers the interrupt handlers.
func (u *USI) Attach(h Handlers) {
	u.mu.Lock()
	u.isr = h
	u.mu.Unlock()
}

// Close releases a dispatcher blocked in Sleep. Later Sleep calls return
// immediately.
func (u *USI) Close() error {
	u.closeOnce.Do(func() { close(u.closed) })
	return nil
}

func (u *USI) Control() uint8 {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.cr
}

func (u *USI) SetControl(v uint8) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.cr = v
	u.update()
}

func (u *USI) Status() uint8 {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.sr
}

func (u *USI) SetStatus(v uint8) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.sr = u.sr&^(v&core.USIFlagMask)&^core.USICounterMask | v&core.USICounterMask
	if u.sr&core.USISIF == 0 {
		u.startHold = false
	}
	u.update()
}

func (u *USI) Data() uint8 {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.dr
}

func (u *USI) SetData(v uint8) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.dr = v
	if !u.scl {
		u.latch = v&0x80 != 0
	}
}

func (u *USI) SetOutput(l core.Line, out bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.ddr[l] = out
	u.update()
}

func (u *USI) SetHigh(l core.Line, high bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.port[l] = high
	u.update()
}

func (u *USI) High(l core.Line) bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	if l == core.LineSCL {
		return u.scl
	}
	return u.sdaLevel()
}

// Sleep restores interrupts and blocks until the next delivered interrupt or
// Close.
func (u *USI) Sleep(state irq.State) {
	irq.Restore(state)
	select {
	case <-u.wake:
	case <-u.closed:
	}
}

// Lines returns the resolved bus levels.
func (u *USI) Lines() (sda, scl bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.sdaLevel(), u.scl
}

// driveSDA sets the master's SDA drive. A change while SCL is high is a bus
// condition: falling is START, rising is STOP.
func (u *USI) driveSDA(high bool) {
	u.mu.Lock()
	if u.masterSDA != high && u.scl && u.cr&core.USIWM1 != 0 {
		if high {
			u.sr |= core.USIPF
		} else {
			u.sr |= core.USISIF
		}
	}
	u.masterSDA = high
	u.mu.Unlock()

	u.service()
}

func (u *USI) driveSCL(high bool) {
	u.mu.Lock()
	u.masterSCL = high
	u.update()
	u.mu.Unlock()

	u.service()
}

// The start detector only watches the master's drive. SDA glitches the slave
// causes itself during a bus reset are not modelled as conditions.

func (u *USI) sdaLevel() bool {
	pulled := u.ddr[core.LineSDA] && (!u.port[core.LineSDA] || !u.latch)
	return u.masterSDA && !pulled
}

func (u *USI) held() bool {
	return u.startHold || (u.cr&core.USIWM0 != 0 && u.sr&core.USIOIF != 0)
}

func (u *USI) sclLevel() bool {
	pulled := u.ddr[core.LineSCL] && !u.port[core.LineSCL]
	return u.masterSCL && !pulled && !u.held()
}

// update resolves SCL and runs the shift register and counter on an edge.
// Called with u.mu held.
func (u *USI) update() {
	scl := u.sclLevel()
	if scl == u.scl {
		return
	}
	u.scl = scl

	if scl {
		// sample on the rising edge, the output latch is closed while high
		var bit uint8
		if u.sdaLevel() {
			bit = 1
		}
		if u.cr&core.USICS1 != 0 {
			u.dr = u.dr<<1 | bit
		}
	} else {
		u.latch = u.dr&0x80 != 0
		if u.sr&core.USISIF != 0 {
			u.startHold = true
		}
	}
	if u.cr&core.USICS1 != 0 {
		u.tick()
	}

	// a hold applied by the edge above can pull SCL back down
	if u.sclLevel() != u.scl {
		u.update()
	}
}

func (u *USI) tick() {
	cnt := (u.sr + 1) & core.USICounterMask
	u.sr = u.sr&^core.USICounterMask | cnt
	if cnt == 0 {
		u.sr |= core.USIOIF
	}
}

// pending returns the interrupt vector that would be taken now, if any.
// Called with u.mu held.
func (u *USI) pending() func() {
	if u.isr == nil {
		return nil
	}
	if u.sr&core.USISIF != 0 && u.cr&core.USISIE != 0 {
		// the start vector fires once the condition has resolved
		if u.sdaLevel() || !u.scl {
			return u.isr.HandleStart
		}
	}
	if u.sr&core.USIOIF != 0 && u.cr&core.USIOIE != 0 {
		return u.isr.HandleOverflow
	}
	return nil
}

// service delivers pending interrupts one at a time with interrupts disabled,
// the start vector first.
func (u *USI) service() {
	for {
		state := irq.Disable()
		u.mu.Lock()
		isr := u.pending()
		u.mu.Unlock()
		if isr == nil {
			irq.Restore(state)
			return
		}
		isr()
		irq.Restore(state)

		select {
		case u.wake <- struct{}{}:
		default:
		}
	}
}
