package strip

import (
	"fmt"

	"github.com/sweeney/zonelight/internal/logic"
)

// MaxBrightness is the APA102 global brightness ceiling (5 bits).
const MaxBrightness = 31

// Encode builds an APA102 frame: a 32-bit zero start frame, one
// brightness+BGR word per LED, then an end frame long enough to clock the
// data through the whole chain.
func Encode(frame []logic.RGB, brightness uint8) []byte {
	if brightness > MaxBrightness {
		brightness = MaxBrightness
	}
	end := max((len(frame)+15)/16, 4)
	buf := make([]byte, 4, 4+4*len(frame)+end)
	for _, c := range frame {
		buf = append(buf, 0xE0|brightness, c.B, c.G, c.R)
	}
	for i := 0; i < end; i++ {
		buf = append(buf, 0xFF)
	}
	return buf
}

// lineSetter is the part of a GPIO output line the writer needs.
type lineSetter interface {
	SetValue(value int) error
}

// APA102Writer clocks frames out on a data and a clock line, MSB first.
type APA102Writer struct {
	data       lineSetter
	clock      lineSetter
	brightness uint8
	closer     func() error
}

func newAPA102Writer(data, clock lineSetter, brightness int, closer func() error) *APA102Writer {
	return &APA102Writer{
		data:       data,
		clock:      clock,
		brightness: uint8(min(max(brightness, 0), MaxBrightness)),
		closer:     closer,
	}
}

// Write shifts the encoded frame out. Data is latched on the rising edge.
func (w *APA102Writer) Write(frame []logic.RGB) error {
	for _, b := range Encode(frame, w.brightness) {
		for bit := 7; bit >= 0; bit-- {
			if err := w.data.SetValue(int(b>>bit) & 1); err != nil {
				return fmt.Errorf("set data line: %w", err)
			}
			if err := w.clock.SetValue(1); err != nil {
				return fmt.Errorf("set clock line: %w", err)
			}
			if err := w.clock.SetValue(0); err != nil {
				return fmt.Errorf("set clock line: %w", err)
			}
		}
	}
	return nil
}

// Close releases the lines.
func (w *APA102Writer) Close() error {
	if w.closer == nil {
		return nil
	}
	err := w.closer()
	w.closer = nil
	if err != nil {
		return fmt.Errorf("apa102 close: %w", err)
	}
	return nil
}
