package core

import (
	"bytes"
	"testing"
)

func TestBufferAppendSaturates(t *testing.T) {
	var b Buffer

	for i := 0; i < BufferSize+4; i++ {
		ok := b.Append(byte(i))
		if want := i < BufferSize-1; ok != want {
			t.Errorf("Append #%d: expected %v, got %v", i, want, ok)
		}
	}

	if b.Len() != BufferSize-1 {
		t.Errorf("Expected length %d, got %d", BufferSize-1, b.Len())
	}
	for i, v := range b.Bytes() {
		if v != byte(i) {
			t.Errorf("Byte %d: expected %d, got %d", i, i, v)
		}
	}

	b.Reset()
	if b.Len() != 0 {
		t.Errorf("Expected empty buffer after reset, got %d", b.Len())
	}
}

func TestBufferNextSentinel(t *testing.T) {
	var b Buffer
	b.Append(0xAB)
	b.Append(0xCD)

	var cursor uint8
	got := []byte{
		b.Next(&cursor, SentinelHold),
		b.Next(&cursor, SentinelHold),
		b.Next(&cursor, SentinelHold),
		b.Next(&cursor, SentinelHold),
	}
	want := []byte{0xAB, 0xCD, 0xFE, 0xFE}
	if !bytes.Equal(got, want) {
		t.Errorf("Expected %X, got %X", want, got)
	}
	if cursor != 2 {
		t.Errorf("Expected cursor to stop at 2, got %d", cursor)
	}
}

func TestBufferFill(t *testing.T) {
	tests := []struct {
		name string
		n    int
		want int
	}{
		{"none", 0, 0},
		{"some", 3, 3},
		{"full", BufferSize, BufferSize},
		{"over", BufferSize + 10, BufferSize},
		{"negative", -1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var b Buffer
			b.fill(func(p []byte) int {
				if len(p) != BufferSize {
					t.Errorf("Expected writer to see %d bytes, got %d", BufferSize, len(p))
				}
				return tt.n
			})
			if b.Len() != tt.want {
				t.Errorf("Expected length %d, got %d", tt.want, b.Len())
			}
		})
	}
}

func TestVariantSentinel(t *testing.T) {
	if VariantHold.Sentinel() != 0xFE {
		t.Errorf("Expected 0xFE, got 0x%02X", VariantHold.Sentinel())
	}
	if VariantNoHold.Sentinel() != 0xFF {
		t.Errorf("Expected 0xFF, got 0x%02X", VariantNoHold.Sentinel())
	}
}

func TestNewValidatesConfig(t *testing.T) {
	data := DataHandlerFunc(func(in, out []byte) int { return 0 })

	if _, err := New(&MockUSIPort{}, Config{Address: 0x80, Data: data}); err != ErrInvalidAddress {
		t.Errorf("Expected ErrInvalidAddress, got %v", err)
	}
	if _, err := New(&MockUSIPort{}, Config{Address: 0x28}); err != ErrNoDataHandler {
		t.Errorf("Expected ErrNoDataHandler, got %v", err)
	}
	s, err := New(&MockUSIPort{}, Config{Address: 0x7F, Data: data})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if s.Address() != 0x7F {
		t.Errorf("Expected address 0x7F, got 0x%02X", s.Address())
	}
}
