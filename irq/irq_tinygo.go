//go:build tinygo

package irq

import "runtime/interrupt"

// State is the saved interrupt-enable state returned by Disable.
type State = interrupt.State

// Disable disables interrupts and returns the previous state
func Disable() State {
	return interrupt.Disable()
}

// Restore restores the interrupt state
func Restore(state State) {
	interrupt.Restore(state)
}
