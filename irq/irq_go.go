//go:build !tinygo

package irq

import "sync"

// State is a placeholder for interrupt state on regular Go.
type State uintptr

// On the host there are no interrupts. Simulated interrupt handlers and the
// foreground loop serialise on this mutex instead, which gives tests the same
// exclusion the global interrupt flag gives on hardware.
var global sync.Mutex

// Disable enters the critical section (blocks while a simulated ISR runs)
func Disable() State {
	global.Lock()
	return 1
}

// Restore leaves the critical section entered by Disable
func Restore(state State) {
	global.Unlock()
}
