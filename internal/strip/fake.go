package strip

import "github.com/sweeney/zonelight/internal/logic"

// FakeWriter is a test double that records every frame written.
type FakeWriter struct {
	// Frames holds a copy of each frame in write order.
	Frames [][]logic.RGB

	// Closed tracks if Close was called
	Closed bool

	// WriteError, if set, will be returned by Write()
	WriteError error
}

// NewFakeWriter creates an empty FakeWriter.
func NewFakeWriter() *FakeWriter {
	return &FakeWriter{}
}

// Write records a copy of frame.
func (f *FakeWriter) Write(frame []logic.RGB) error {
	if f.WriteError != nil {
		return f.WriteError
	}
	f.Frames = append(f.Frames, append([]logic.RGB(nil), frame...))
	return nil
}

// Close marks the writer as closed.
func (f *FakeWriter) Close() error {
	f.Closed = true
	return nil
}

// Last returns the most recent frame, or nil.
func (f *FakeWriter) Last() []logic.RGB {
	if len(f.Frames) == 0 {
		return nil
	}
	return f.Frames[len(f.Frames)-1]
}

// Reset forgets recorded frames.
func (f *FakeWriter) Reset() {
	f.Frames = nil
	f.Closed = false
}
