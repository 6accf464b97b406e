package strip

import (
	"bytes"
	"errors"
	"testing"

	"github.com/sweeney/zonelight/internal/logic"
)

func TestEncode(t *testing.T) {
	got := Encode([]logic.RGB{{R: 1, G: 2, B: 3}, {R: 255}}, 31)
	want := []byte{
		0, 0, 0, 0,
		0xFF, 3, 2, 1,
		0xFF, 0, 0, 255,
		0xFF, 0xFF, 0xFF, 0xFF,
	}
	if !bytes.Equal(got, want) {
		t.Errorf("Encode:\n got %x\nwant %x", got, want)
	}
}

func TestEncodeBrightness(t *testing.T) {
	got := Encode([]logic.RGB{{}}, 7)
	if got[4] != 0xE7 {
		t.Errorf("brightness byte: got %#x, want 0xe7", got[4])
	}
	got = Encode([]logic.RGB{{}}, 200)
	if got[4] != 0xFF {
		t.Errorf("brightness should clamp to 31: got %#x", got[4])
	}
}

func TestEncodeEndFrameGrows(t *testing.T) {
	got := Encode(make([]logic.RGB, 100), 31)
	// 4 start + 400 pixel + ceil(100/16)=7 end bytes.
	if len(got) != 4+400+7 {
		t.Errorf("length: got %d, want %d", len(got), 411)
	}
}

// fakeLine records every value set on it.
type fakeLine struct {
	values []int
	err    error
}

func (l *fakeLine) SetValue(v int) error {
	if l.err != nil {
		return l.err
	}
	l.values = append(l.values, v)
	return nil
}

func TestAPA102WriterClocksBits(t *testing.T) {
	data, clock := &fakeLine{}, &fakeLine{}
	w := newAPA102Writer(data, clock, 31, nil)

	frame := []logic.RGB{{R: 0x80, G: 0x01, B: 0xAA}}
	if err := w.Write(frame); err != nil {
		t.Fatalf("Write: %v", err)
	}

	encoded := Encode(frame, 31)
	if len(data.values) != len(encoded)*8 {
		t.Fatalf("expected %d data bits, got %d", len(encoded)*8, len(data.values))
	}
	if len(clock.values) != 2*len(data.values) {
		t.Fatalf("expected two clock edges per bit, got %d", len(clock.values))
	}

	// Reassemble bytes MSB first.
	for i, b := range encoded {
		var got byte
		for bit := 0; bit < 8; bit++ {
			got = got<<1 | byte(data.values[i*8+bit])
		}
		if got != b {
			t.Errorf("byte %d: got %#x, want %#x", i, got, b)
		}
	}
	for i := 0; i < len(clock.values); i += 2 {
		if clock.values[i] != 1 || clock.values[i+1] != 0 {
			t.Fatalf("clock edge %d: got %v", i/2, clock.values[i:i+2])
		}
	}
}

func TestAPA102WriterLineError(t *testing.T) {
	w := newAPA102Writer(&fakeLine{err: errors.New("ebusy")}, &fakeLine{}, 31, nil)
	if err := w.Write([]logic.RGB{{}}); err == nil {
		t.Error("expected error from data line")
	}
}

func TestAPA102WriterClose(t *testing.T) {
	calls := 0
	w := newAPA102Writer(&fakeLine{}, &fakeLine{}, 31, func() error {
		calls++
		return nil
	})
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if calls != 1 {
		t.Errorf("closer called %d times, want 1", calls)
	}
}
