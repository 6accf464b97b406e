//go:build linux

package strip

import (
	"errors"
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// NewGPIOWriter opens two output lines on the named chip and returns an
// APA102 writer that bit-bangs frames over them.
func NewGPIOWriter(chipName string, dataPin, clockPin, brightness int) (*APA102Writer, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip %s: %w", chipName, err)
	}

	dataLine, err := chip.RequestLine(dataPin, gpiocdev.AsOutput(0))
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request data pin %d: %w", dataPin, err)
	}

	clockLine, err := chip.RequestLine(clockPin, gpiocdev.AsOutput(0))
	if err != nil {
		dataLine.Close()
		chip.Close()
		return nil, fmt.Errorf("request clock pin %d: %w", clockPin, err)
	}

	closer := func() error {
		var errs []error
		// Return both lines to input with pull-down, the Pi boot default.
		for name, l := range map[string]*gpiocdev.Line{"data": dataLine, "clock": clockLine} {
			if err := l.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
				errs = append(errs, fmt.Errorf("reconfigure %s pin: %w", name, err))
			}
			if err := l.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close %s pin: %w", name, err))
			}
		}
		if err := chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
		return errors.Join(errs...)
	}

	return newAPA102Writer(dataLine, clockLine, brightness, closer), nil
}
