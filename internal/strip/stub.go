//go:build !linux

package strip

import "errors"

// NewGPIOWriter returns an error on non-Linux platforms.
func NewGPIOWriter(chipName string, dataPin, clockPin, brightness int) (*APA102Writer, error) {
	return nil, errors.New("strip: gpio not supported on this platform (requires Linux)")
}
