package core

// Bus control primitives. Everything here may run inside an interrupt handler.

func (s *Slave) sdaInput()  { s.port.SetOutput(LineSDA, false) }
func (s *Slave) sdaOutput() { s.port.SetOutput(LineSDA, true) }
func (s *Slave) sclInput()  { s.port.SetOutput(LineSCL, false) }
func (s *Slave) sclOutput() { s.port.SetOutput(LineSCL, true) }

func (s *Slave) sdaLow()  { s.port.SetHigh(LineSDA, false) }
func (s *Slave) sdaHigh() { s.port.SetHigh(LineSDA, true) }
func (s *Slave) sclLow()  { s.port.SetHigh(LineSCL, false) }
func (s *Slave) sclHigh() { s.port.SetHigh(LineSCL, true) }

// resetBus returns the peripheral to idle-armed: only start detection is
// enabled and the transfer state is back to CheckAddress. The bus phase is
// left alone; a read ended by NACK must still reach the dispatcher as
// DataProcessed.
func (s *Slave) resetBus() {
	s.port.SetData(0)

	// make sure no line stays pulled, pull-ups off
	s.sdaInput()
	s.sdaLow()
	s.sclInput()
	s.sclLow()

	// release both lines
	s.sdaOutput()
	s.sdaHigh()
	s.sdaInput()
	s.sclOutput()
	s.sclHigh()

	s.port.SetControl(controlIdle)
	// stop flag stays latched for the dispatcher
	s.port.SetStatus(USISIF | USIOIF | USIDC | CounterByte)

	s.state = StateCheckAddress
}

// controlIdle: start interrupt on, overflow interrupt off, two-wire mode
// without overflow hold, external positive-edge shift clock, counter on both
// edges.
const controlIdle = USISIE | USIWM1 | USICS1

// armOverflow enables the overflow interrupt for the next transfer, plus the
// clock hold in the hold variant.
func (s *Slave) armOverflow() {
	cr := s.port.Control() | USIOIE
	if s.variant == VariantHold {
		cr |= USIWM0
	}
	s.port.SetControl(cr)
}

// initiateAck arms the counter for a single bit with the data register
// preloaded to zero (ACK when driven, cleared sample when received).
func (s *Slave) initiateAck() {
	s.port.SetData(0)
	s.port.SetStatus(USIOIF | USIDC | CounterBit)
}

func (s *Slave) initiateSendAck() {
	s.sdaOutput()
	s.initiateAck()
}

func (s *Slave) initiateReceiveAck() {
	s.sdaInput()
	s.initiateAck()
}

// initiateData arms the counter for a full byte. Clearing the overflow flag
// releases the held clock, so the data register must already be loaded.
func (s *Slave) initiateData() {
	s.port.SetStatus(USIOIF | USIDC | CounterByte)
}

func (s *Slave) initiateSendData() {
	s.sdaOutput()
	s.initiateData()
}

func (s *Slave) initiateReceiveData() {
	s.sdaInput()
	s.initiateData()
}
