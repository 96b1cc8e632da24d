//go:build !tinygo

package sim

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
	"tinygo.org/x/drivers"

	"usitwi/core"
)

var (
	ErrNack         = errors.New("sim-i2c: got NACK")
	ErrClockHeld    = errors.New("sim-i2c: clock held low")
	ErrBusBusy      = errors.New("sim-i2c: data line held low")
	ErrInvalidAddr  = errors.New("sim-i2c: invalid address")
	ErrStopNotTaken = errors.New("sim-i2c: stop not processed in time")
)

// Master is a bit-banged bus master wired to a simulated USI. It implements
// both the TinyGo drivers.I2C and the periph i2c.Bus interfaces.
type Master struct {
	mu   sync.Mutex
	usi  *USI
	freq physic.Frequency

	// StopTimeout, when set, makes Tx wait after the STOP until the slave's
	// dispatcher has consumed it. A slave prepares its response at STOP, so a
	// read issued before that sees the previous response.
	StopTimeout time.Duration
}

var (
	_ drivers.I2C   = (*Master)(nil)
	_ i2c.BusCloser = (*Master)(nil)
)

// NewMaster returns a master driving the bus of u.
func NewMaster(u *USI) *Master {
	return &Master{
		usi:  u,
		freq: 100 * physic.KiloHertz,
	}
}

func (m *Master) String() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fmt.Sprintf("sim/i2c(%s)", m.freq)
}

// SetSpeed implements i2c.Bus. The simulated bus has no timing, the value is
// only reported.
func (m *Master) SetSpeed(f physic.Frequency) error {
	if f <= 0 {
		return errors.New("sim-i2c: invalid speed")
	}
	m.mu.Lock()
	m.freq = f
	m.mu.Unlock()
	return nil
}

// Close implements i2c.BusCloser.
func (m *Master) Close() error {
	return nil
}

// Tx implements i2c.Bus and drivers.I2C.
//
// With w set it addresses the slave for writing and sends w. With r set it
// then addresses the slave for reading (after a repeated START if w was
// sent) and reads len(r) bytes, ACKing all but the last. Both empty is an
// address probe. The transaction always ends with STOP.
func (m *Master) Tx(addr uint16, w, r []byte) error {
	if addr > 0x7F {
		return ErrInvalidAddr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	err := m.tx(uint8(addr), w, r)
	if serr := m.stop(); err == nil {
		err = serr
	}
	if err == nil {
		err = m.settle()
	}
	return err
}

func (m *Master) tx(addr uint8, w, r []byte) error {
	if err := m.start(); err != nil {
		return err
	}

	if len(w) > 0 || len(r) == 0 {
		if err := m.address(addr, false); err != nil {
			return err
		}
		for _, b := range w {
			ack, err := m.writeByte(b)
			if err != nil {
				return err
			}
			if !ack {
				return ErrNack
			}
		}
		if len(r) == 0 {
			return nil
		}
		if err := m.start(); err != nil {
			return err
		}
	}

	if err := m.address(addr, true); err != nil {
		return err
	}
	for x := range r {
		b, err := m.readByte(x < len(r)-1)
		if err != nil {
			return err
		}
		r[x] = b
	}
	return nil
}

// Start issues a START (or repeated START) on its own, for scripting
// malformed transactions. Do not mix with a concurrent Tx.
func (m *Master) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.start()
}

// Stop issues a STOP on its own.
func (m *Master) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stop()
}

// SendByte clocks out one byte and reports whether it was ACKed.
func (m *Master) SendByte(b byte) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writeByte(b)
}

// ReceiveByte clocks in one byte and answers with ACK or NACK.
func (m *Master) ReceiveByte(ack bool) (byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.readByte(ack)
}

func (m *Master) address(addr uint8, read bool) error {
	b := addr << 1
	if read {
		b |= 1
	}
	ack, err := m.writeByte(b)
	if err != nil {
		return err
	}
	if !ack {
		return ErrNack
	}
	return nil
}

// sclHigh releases SCL and checks that nothing stretches it.
func (m *Master) sclHigh() error {
	m.usi.driveSCL(true)
	if _, scl := m.usi.Lines(); !scl {
		return ErrClockHeld
	}
	return nil
}

func (m *Master) sclLow() {
	m.usi.driveSCL(false)
}

func (m *Master) sda(high bool) {
	m.usi.driveSDA(high)
}

func (m *Master) sdaHigh() bool {
	sda, _ := m.usi.Lines()
	return sda
}

// start issues START, or repeated START when called mid-transaction.
//
// Ends with SDA and SCL low.
func (m *Master) start() error {
	m.sda(true)
	if err := m.sclHigh(); err != nil {
		return err
	}
	if !m.sdaHigh() {
		return ErrBusBusy
	}
	m.sda(false)
	m.sclLow()
	return nil
}

// stop issues STOP from any line state and leaves the bus released.
func (m *Master) stop() error {
	m.sclLow()
	m.sda(false)
	err := m.sclHigh()
	m.sda(true)
	if err != nil {
		// SCL is stuck, release it anyway
		m.usi.driveSCL(true)
	}
	return err
}

// writeByte writes 8 bits MSB first then clocks the ACK bit.
//
// Expects SCL low. Ends with SDA released and SCL low.
func (m *Master) writeByte(b byte) (bool, error) {
	for x := 0; x < 8; x++ {
		m.sda(b&byte(1<<byte(7-x)) != 0)
		if err := m.sclHigh(); err != nil {
			return false, err
		}
		m.sclLow()
	}

	// 9th clock is ACK
	m.sda(true)
	if err := m.sclHigh(); err != nil {
		return false, err
	}
	ack := !m.sdaHigh()
	m.sclLow()
	return ack, nil
}

// readByte reads 8 bits MSB first then sends ACK (more to come) or NACK.
//
// Expects SCL low. Ends with SDA released and SCL low.
func (m *Master) readByte(ack bool) (byte, error) {
	m.sda(true)

	var b byte
	for x := 0; x < 8; x++ {
		if err := m.sclHigh(); err != nil {
			return 0, err
		}
		b <<= 1
		if m.sdaHigh() {
			b |= 1
		}
		m.sclLow()
	}

	m.sda(!ack)
	if err := m.sclHigh(); err != nil {
		return 0, err
	}
	m.sclLow()
	m.sda(true)
	return b, nil
}

// settle waits for the slave's dispatcher to consume the STOP flag.
func (m *Master) settle() error {
	if m.StopTimeout <= 0 {
		return nil
	}
	deadline := time.Now().Add(m.StopTimeout)
	for m.usi.Status()&core.USIPF != 0 {
		if time.Now().After(deadline) {
			return ErrStopNotTaken
		}
		time.Sleep(20 * time.Microsecond)
	}
	return nil
}
