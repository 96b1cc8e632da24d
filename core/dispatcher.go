package core

import (
	"context"

	"usitwi/irq"
)

// Serve validates cfg, arms the bus on port and runs the dispatcher until ctx
// is done. Firmware passes context.Background() and never returns.
func Serve(ctx context.Context, port USIPort, cfg Config) error {
	s, err := New(port, cfg)
	if err != nil {
		return err
	}
	return s.Run(ctx)
}

// Run arms the bus and runs the dispatcher loop until ctx is done.
func (s *Slave) Run(ctx context.Context) error {
	irq.Do(s.Init)

	DebugPrintln("[TWI] slave 0x" + hex8(s.address) + " armed")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		s.Poll()
	}
}

// Poll runs one dispatcher iteration: optional sleep, STOP processing, idle
// callback.
func (s *Slave) Poll() {
	if s.sleep {
		s.sleepIfIdle()
	}

	if s.port.Status()&USIPF != 0 {
		s.processStop()
	}

	if s.idle != nil {
		s.idle.Idle()
	}
}

// sleepIfIdle halts until the next interrupt when no transaction is in
// flight. The check and the halt happen with interrupts disabled so a START
// arriving in between cannot be slept through.
func (s *Slave) sleepIfIdle() {
	state := irq.Disable()
	if s.phase == PhaseBeforeStart && s.port.Status()&USIPF == 0 {
		s.port.Sleep(state)
		return
	}
	irq.Restore(state)
}

// processStop handles a latched STOP condition and returns the phase the
// transaction ended in.
func (s *Slave) processStop() Phase {
	var phase Phase

	func() {
		state := irq.Disable()
		defer irq.Restore(state)

		// write back the counter so a transfer already under way is not disturbed
		s.port.SetStatus(USIPF | s.port.Status()&USICounterMask)

		phase = s.phase
		if phase == PhaseDataProcessed {
			s.out.Reset()
			s.cursor = 0

			in := s.in.Bytes()
			s.out.fill(func(p []byte) int {
				return s.data.HandleData(in, p)
			})
		}

		s.capture(phase)

		switch phase {
		case PhaseAfterStart:
			// aborted: drop whatever a previous segment left behind
			s.in.Reset()
			s.dropped = 0
			s.resetBus()

		case PhaseDataProcessed:
			s.in.Reset()
			s.dropped = 0

		case PhaseAddressSelected, PhaseAddressNotSelected:
			// a repeated START to another address ends the transaction;
			// bytes written before it must not reach the next one
			s.in.Reset()
			s.dropped = 0

		case PhaseBeforeStart:
			// nothing moved
		}

		s.phase = PhaseBeforeStart
	}()

	if s.trace != nil {
		s.trace.Trace(&s.record)
	}

	if IsDebugEnabled() {
		DebugPrintln("[TWI] stop " + s.record.Kind.String() +
			" phase=" + phase.String() +
			" in=" + itoa(s.record.InLen()) +
			" out=" + itoa(s.record.OutLen()) +
			" dropped=" + itoa(int(s.record.Dropped)))
	}

	return phase
}
