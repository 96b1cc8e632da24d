// Package core implements a TWI (I2C) slave on top of a USI shift-register
// peripheral: the start and overflow interrupt handlers that run the bus
// protocol, the transfer buffers, and the foreground dispatcher that hands
// finished transactions to the application.
package core

import "errors"

// Phase is the outer lifecycle of one bus transaction.
type Phase uint8

const (
	PhaseBeforeStart Phase = iota
	PhaseAfterStart
	PhaseAddressSelected
	PhaseAddressNotSelected
	PhaseDataProcessed
)

func (p Phase) String() string {
	switch p {
	case PhaseBeforeStart:
		return "before_start"
	case PhaseAfterStart:
		return "after_start"
	case PhaseAddressSelected:
		return "address_selected"
	case PhaseAddressNotSelected:
		return "address_not_selected"
	case PhaseDataProcessed:
		return "data_processed"
	}
	return "unknown"
}

// TransferState is the bit/byte sequencing state inside a transaction.
// Only the interrupt handlers change it.
type TransferState uint8

const (
	StateCheckAddress TransferState = iota
	StateSendData
	StateRequestAck
	StateCheckAck
	StateReceiveData
	StateStoreDataAndSendAck
)

func (t TransferState) String() string {
	switch t {
	case StateCheckAddress:
		return "check_address"
	case StateSendData:
		return "send_data"
	case StateRequestAck:
		return "request_ack"
	case StateCheckAck:
		return "check_ack"
	case StateReceiveData:
		return "receive_data"
	case StateStoreDataAndSendAck:
		return "store_data_and_send_ack"
	}
	return "unknown"
}

// Variant selects how the peripheral paces the handlers.
type Variant uint8

const (
	// VariantHold holds SCL low on counter overflow until the handler has
	// re-armed the counter. Underflow reads return SentinelHold.
	VariantHold Variant = iota
	// VariantNoHold relies on the handler finishing within half a bit time.
	// Underflow reads return SentinelNoHold.
	VariantNoHold
)

// Sentinel returns the byte sent when the outbound buffer is exhausted
func (v Variant) Sentinel() byte {
	if v == VariantNoHold {
		return SentinelNoHold
	}
	return SentinelHold
}

// DataHandler receives every completed transaction in which data moved.
//
// in holds the bytes written by the master. out has length BufferSize and
// receives the bytes the master will read next; HandleData returns how many
// it wrote. Neither slice may be retained after the call, and the call must
// not block: it runs with interrupts disabled.
type DataHandler interface {
	HandleData(in, out []byte) int
}

// DataHandlerFunc is an adapter to allow the use of ordinary functions as
// DataHandler.
type DataHandlerFunc func(in, out []byte) int

// HandleData implements DataHandler.
func (f DataHandlerFunc) HandleData(in, out []byte) int {
	return f(in, out)
}

// IdleHandler is called once per dispatcher iteration.
type IdleHandler interface {
	Idle()
}

// IdleFunc is an adapter to allow the use of ordinary functions as IdleHandler.
type IdleFunc func()

// Idle implements IdleHandler.
func (f IdleFunc) Idle() {
	f()
}

// Config holds the fixed startup configuration of a slave.
type Config struct {
	Address     uint8 // 7-bit bus address
	SleepOnIdle bool  // halt the CPU between transactions
	Data        DataHandler
	Idle        IdleHandler // optional
	Variant     Variant
	Trace       Tracer // optional, receives one record per STOP
}

var (
	ErrInvalidAddress = errors.New("slave address does not fit in 7 bits")
	ErrNoDataHandler  = errors.New("data handler is required")
)

// Slave is the complete protocol context shared by the two interrupt handlers
// and the dispatcher.
type Slave struct {
	port     USIPort
	address  uint8
	variant  Variant
	sentinel byte

	data  DataHandler
	idle  IdleHandler
	sleep bool
	trace Tracer

	// Shared with interrupt context
	phase   Phase
	state   TransferState
	in      Buffer
	out     Buffer
	cursor  uint8
	dropped uint8

	seq    uint8
	record TraceRecord
}

// New validates cfg and binds a slave to port. The bus is not touched until
// Init or Run.
func New(port USIPort, cfg Config) (*Slave, error) {
	if cfg.Address > 0x7F {
		return nil, ErrInvalidAddress
	}
	if cfg.Data == nil {
		return nil, ErrNoDataHandler
	}
	return &Slave{
		port:     port,
		address:  cfg.Address,
		variant:  cfg.Variant,
		sentinel: cfg.Variant.Sentinel(),
		data:     cfg.Data,
		idle:     cfg.Idle,
		sleep:    cfg.SleepOnIdle,
		trace:    cfg.Trace,
	}, nil
}

// Address returns the configured 7-bit address
func (s *Slave) Address() uint8 {
	return s.address
}

// Phase returns the current bus phase
func (s *Slave) Phase() Phase {
	return s.phase
}

// State returns the current transfer state
func (s *Slave) State() TransferState {
	return s.state
}

// Init clears the buffers and puts the bus into the idle-armed state.
func (s *Slave) Init() {
	s.in.Reset()
	s.out.Reset()
	s.cursor = 0
	s.dropped = 0
	s.Reset()
}

// Reset forces the bus back to idle-armed and the protocol back to
// BeforeStart/CheckAddress from any state.
func (s *Slave) Reset() {
	s.resetBus()
	s.phase = PhaseBeforeStart
}

// HandleStart is the start-condition interrupt handler.
//
// The start detector holds SCL low once the master pulls it low, so the wait
// below ends as soon as the START completes. A STOP (SDA back high) also ends
// it. A master that stalls with SDA low and SCL high keeps the handler
// spinning; there is no timeout.
func (s *Slave) HandleStart() {
	s.sdaInput()

	for !s.port.High(LineSDA) && s.port.High(LineSCL) {
	}

	if s.port.High(LineSDA) {
		// stop condition
		s.resetBus()
		return
	}

	s.state = StateCheckAddress
	s.phase = PhaseAfterStart

	s.port.SetData(0)
	// a stale overflow from idle bus traffic must not fire once armed; the
	// stop flag stays latched for the dispatcher
	s.port.SetStatus(USISIF | USIOIF | CounterByte)
	s.armOverflow()
}

// HandleOverflow is the counter-overflow interrupt handler. Each call
// consumes one completed byte or ack bit and arms the next one.
func (s *Slave) HandleOverflow() {
	for {
		switch s.state {
		case StateCheckAddress:
			v := s.port.Data()
			if v>>1 != s.address {
				s.resetBus()
				s.phase = PhaseAddressNotSelected
				return
			}
			s.phase = PhaseAddressSelected
			if v&0x01 != 0 {
				// every read segment starts from the first prepared byte
				s.cursor = 0
				s.state = StateSendData
			} else {
				s.state = StateReceiveData
			}
			s.initiateSendAck()

		case StateSendData:
			s.phase = PhaseDataProcessed
			s.port.SetData(s.out.Next(&s.cursor, s.sentinel))
			s.initiateSendData()
			s.state = StateRequestAck

		case StateRequestAck:
			s.state = StateCheckAck
			s.initiateReceiveAck()

		case StateCheckAck:
			if s.port.Data() != 0 {
				// NACK: master is done reading
				s.resetBus()
				return
			}
			// the slave drives the next byte itself, no overflow will come
			s.state = StateSendData
			continue

		case StateReceiveData:
			s.phase = PhaseDataProcessed
			s.state = StateStoreDataAndSendAck
			s.initiateReceiveData()

		case StateStoreDataAndSendAck:
			if !s.in.Append(s.port.Data()) && s.dropped < 0xFF {
				s.dropped++
			}
			s.state = StateReceiveData
			s.initiateSendAck()
		}
		return
	}
}
