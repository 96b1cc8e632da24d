package core

import (
	"testing"

	"usitwi/irq"
)

// MockUSIPort is a register-only USIPort. Lines read high unless the slave
// drives them low.
type MockUSIPort struct {
	cr, sr, dr uint8
	ddr        [2]bool
	port       [2]bool
}

func (m *MockUSIPort) Control() uint8     { return m.cr }
func (m *MockUSIPort) SetControl(v uint8) { m.cr = v }
func (m *MockUSIPort) Status() uint8      { return m.sr }
func (m *MockUSIPort) Data() uint8        { return m.dr }
func (m *MockUSIPort) SetData(v uint8)    { m.dr = v }

func (m *MockUSIPort) SetStatus(v uint8) {
	m.sr = m.sr&^(v&USIFlagMask)&^USICounterMask | v&USICounterMask
}

func (m *MockUSIPort) SetOutput(l Line, out bool) { m.ddr[l] = out }
func (m *MockUSIPort) SetHigh(l Line, high bool)  { m.port[l] = high }

func (m *MockUSIPort) High(l Line) bool {
	return !(m.ddr[l] && !m.port[l])
}

func (m *MockUSIPort) Sleep(state irq.State) { irq.Restore(state) }

func newMockSlave(t *testing.T, variant Variant) (*Slave, *MockUSIPort) {
	t.Helper()
	port := &MockUSIPort{}
	s, err := New(port, Config{
		Address: 0x28,
		Data:    DataHandlerFunc(func(in, out []byte) int { return 0 }),
		Variant: variant,
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return s, port
}

func checkIdleArmed(t *testing.T, s *Slave, port *MockUSIPort) {
	t.Helper()
	if s.Phase() != PhaseBeforeStart {
		t.Errorf("Expected phase before_start, got %s", s.Phase())
	}
	if s.State() != StateCheckAddress {
		t.Errorf("Expected state check_address, got %s", s.State())
	}
	if port.cr != controlIdle {
		t.Errorf("Expected control 0x%02X, got 0x%02X", controlIdle, port.cr)
	}
	if port.sr&(USISIF|USIOIF|USIDC) != 0 {
		t.Errorf("Expected start/overflow/collision flags cleared, got 0x%02X", port.sr)
	}
	if port.sr&USICounterMask != CounterByte {
		t.Errorf("Expected counter cleared, got %d", port.sr&USICounterMask)
	}
	if port.ddr[LineSDA] {
		t.Error("Expected SDA released (input)")
	}
	if !port.High(LineSDA) || !port.High(LineSCL) {
		t.Error("Expected both lines released")
	}
	if port.dr != 0 {
		t.Errorf("Expected data register cleared, got 0x%02X", port.dr)
	}
}

func TestResetFromEveryState(t *testing.T) {
	phases := []Phase{
		PhaseBeforeStart, PhaseAfterStart, PhaseAddressSelected,
		PhaseAddressNotSelected, PhaseDataProcessed,
	}
	states := []TransferState{
		StateCheckAddress, StateSendData, StateRequestAck,
		StateCheckAck, StateReceiveData, StateStoreDataAndSendAck,
	}

	for _, phase := range phases {
		for _, state := range states {
			s, port := newMockSlave(t, VariantHold)

			s.phase = phase
			s.state = state
			port.cr = 0xFF
			port.sr = USIFlagMask | 0x07
			port.dr = 0x5A
			port.ddr = [2]bool{true, true}
			port.port = [2]bool{false, false}

			s.Reset()
			checkIdleArmed(t, s, port)

			// a second reset changes nothing
			s.Reset()
			checkIdleArmed(t, s, port)
		}
	}
}

func TestResetKeepsStopFlag(t *testing.T) {
	s, port := newMockSlave(t, VariantHold)
	port.sr = USIPF | USIOIF

	s.Reset()
	if port.sr&USIPF == 0 {
		t.Error("Expected stop flag left for the dispatcher")
	}
}

func TestResetBusKeepsPhase(t *testing.T) {
	s, _ := newMockSlave(t, VariantHold)
	s.phase = PhaseDataProcessed
	s.state = StateCheckAck

	s.resetBus()
	if s.Phase() != PhaseDataProcessed {
		t.Errorf("Expected phase kept, got %s", s.Phase())
	}
	if s.State() != StateCheckAddress {
		t.Errorf("Expected state check_address, got %s", s.State())
	}
}

func TestArmOverflow(t *testing.T) {
	tests := []struct {
		variant Variant
		want    uint8
	}{
		{VariantHold, controlIdle | USIOIE | USIWM0},
		{VariantNoHold, controlIdle | USIOIE},
	}

	for _, tt := range tests {
		s, port := newMockSlave(t, tt.variant)
		s.Reset()
		s.armOverflow()
		if port.cr != tt.want {
			t.Errorf("Variant %d: expected control 0x%02X, got 0x%02X", tt.variant, tt.want, port.cr)
		}
	}
}

func TestHandleStartConfirmed(t *testing.T) {
	s, port := newMockSlave(t, VariantHold)
	s.Init()
	// SDA low, SCL held low by the start detector
	port.ddr[LineSDA] = false
	port.ddr[LineSCL] = true
	port.port[LineSCL] = false
	port.sr = USISIF | USIOIF | USIPF | 0x03

	// make SDA read low
	s.port = &lowSDA{port}
	s.HandleStart()

	if s.Phase() != PhaseAfterStart {
		t.Errorf("Expected phase after_start, got %s", s.Phase())
	}
	if s.State() != StateCheckAddress {
		t.Errorf("Expected state check_address, got %s", s.State())
	}
	if port.sr&(USISIF|USIOIF) != 0 {
		t.Errorf("Expected start and overflow flags cleared, got 0x%02X", port.sr)
	}
	if port.sr&USIPF == 0 {
		t.Error("Expected stop flag kept")
	}
	if port.sr&USICounterMask != CounterByte {
		t.Errorf("Expected counter armed for a byte, got %d", port.sr&USICounterMask)
	}
	if port.cr&(USIOIE|USIWM0) != USIOIE|USIWM0 {
		t.Errorf("Expected overflow armed with hold, got 0x%02X", port.cr)
	}
}

func TestHandleStartSeesStop(t *testing.T) {
	s, port := newMockSlave(t, VariantHold)
	s.Init()
	port.sr = USISIF | USIPF

	// both lines read high: the START turned into a STOP
	s.HandleStart()

	if s.Phase() != PhaseBeforeStart {
		t.Errorf("Expected phase before_start, got %s", s.Phase())
	}
	if port.cr != controlIdle {
		t.Errorf("Expected idle-armed control, got 0x%02X", port.cr)
	}
	if port.sr&USISIF != 0 {
		t.Error("Expected start flag cleared")
	}
}

// lowSDA forces SDA to read low.
type lowSDA struct {
	*MockUSIPort
}

func (p *lowSDA) High(l Line) bool {
	if l == LineSDA {
		return false
	}
	return p.MockUSIPort.High(l)
}
