// Package irq provides the global interrupt-enable critical section shared by
// interrupt handlers and the foreground loop.
package irq

// Do runs fn with interrupts disabled.
func Do(fn func()) {
	state := Disable()
	defer Restore(state)
	fn()
}
