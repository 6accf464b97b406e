// Package strip drives the LED strip with hardware abstraction.
// The real writer bit-bangs APA102 frames over two GPIO lines via the Linux
// GPIO character device. The terminal writer previews frames with lipgloss.
// The fake writer records frames for tests.
package strip

import (
	"sync"
	"time"

	"github.com/sweeney/zonelight/internal/logic"
)

// Writer pushes one complete frame to the LEDs.
type Writer interface {
	// Write shows frame. len(frame) is the strip length.
	Write(frame []logic.RGB) error

	// Close releases hardware resources.
	Close() error
}

// Sink consumes arbiter emissions.
type Sink interface {
	Emit(e logic.Emission) error
	// Flush draws an emission held back by MinInterval once it is due.
	Flush() error
	Clear() error
	Close() error
}

// Options controls the animations.
type Options struct {
	FlashCount  int
	FlashPeriod time.Duration
	// WipeDelay > 0 paints the final frame one pixel at a time.
	WipeDelay time.Duration
	// MinInterval > 0 holds back redraws that arrive sooner than this
	// after the previous one. Flashes are never held back.
	MinInterval time.Duration
}

// Strip renders descriptors and animations onto a Writer.
// It is not safe for concurrent use, except for Abort.
type Strip struct {
	w       Writer
	n       int
	opts    Options
	current []logic.RGB

	lastDraw time.Time
	pending  []logic.RGB

	abort     chan struct{}
	abortOnce sync.Once

	// Sleep and Now are replaced in tests.
	Sleep func(time.Duration)
	Now   func() time.Time
}

// New creates a strip of n LEDs. The strip starts dark.
func New(w Writer, n int, opts Options) *Strip {
	s := &Strip{
		w:       w,
		n:       n,
		opts:    opts,
		current: make([]logic.RGB, n),
		abort:   make(chan struct{}),
		Now:     time.Now,
	}
	s.Sleep = s.sleep
	return s
}

// Abort cuts short any running or later animation: flashes, wipes and
// the self test skip to their last frame. Safe to call from any goroutine.
func (s *Strip) Abort() {
	s.abortOnce.Do(func() { close(s.abort) })
}

func (s *Strip) aborted() bool {
	select {
	case <-s.abort:
		return true
	default:
		return false
	}
}

func (s *Strip) sleep(d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-s.abort:
	}
}

// Len returns the number of LEDs.
func (s *Strip) Len() int { return s.n }

// Frame returns a copy of what the strip currently shows.
func (s *Strip) Frame() []logic.RGB {
	return append([]logic.RGB(nil), s.current...)
}

// Render turns a descriptor into a frame of n LEDs. Split descriptors put
// Low.Count pixels of the low color at the start, the rest in the high color.
func Render(d logic.Descriptor, n int) []logic.RGB {
	frame := make([]logic.RGB, n)
	if d.Kind == logic.DescriptorSolid {
		for i := range frame {
			frame[i] = d.Color
		}
		return frame
	}

	low := min(max(d.Low.Count, 0), n)
	for i := 0; i < low; i++ {
		frame[i] = d.Low.Color
	}
	for i := low; i < n; i++ {
		frame[i] = d.High.Color
	}
	return frame
}

// Emit shows an emission, flashing first when requested. A redraw within
// MinInterval of the previous one is kept pending until Flush.
func (s *Strip) Emit(e logic.Emission) error {
	frame := Render(e.Descriptor, s.n)
	if !e.Flash && s.tooSoon() {
		s.pending = frame
		return nil
	}
	s.pending = nil
	if e.Flash {
		if err := s.flash(frame); err != nil {
			return err
		}
	}
	return s.draw(frame)
}

// Flush draws the pending frame if MinInterval has passed since the last
// draw. It does nothing when no frame is pending.
func (s *Strip) Flush() error {
	if s.pending == nil || s.tooSoon() {
		return nil
	}
	frame := s.pending
	s.pending = nil
	return s.draw(frame)
}

func (s *Strip) tooSoon() bool {
	if s.opts.MinInterval <= 0 || s.lastDraw.IsZero() {
		return false
	}
	return s.Now().Sub(s.lastDraw) < s.opts.MinInterval
}

func (s *Strip) draw(frame []logic.RGB) error {
	var err error
	if s.opts.WipeDelay > 0 {
		err = s.wipe(frame)
	} else {
		err = s.show(frame)
	}
	if err == nil {
		s.lastDraw = s.Now()
	}
	return err
}

// flash alternates frame and black FlashCount times.
func (s *Strip) flash(frame []logic.RGB) error {
	black := make([]logic.RGB, s.n)
	for i := 0; i < s.opts.FlashCount && !s.aborted(); i++ {
		if err := s.show(frame); err != nil {
			return err
		}
		s.Sleep(s.opts.FlashPeriod)
		if err := s.show(black); err != nil {
			return err
		}
		s.Sleep(s.opts.FlashPeriod)
	}
	return nil
}

// wipe paints frame over the current contents one pixel at a time.
func (s *Strip) wipe(frame []logic.RGB) error {
	next := s.Frame()
	for i := range frame {
		if s.aborted() {
			break
		}
		if next[i] == frame[i] {
			continue
		}
		next[i] = frame[i]
		if err := s.show(next); err != nil {
			return err
		}
		s.Sleep(s.opts.WipeDelay)
	}
	return s.show(frame)
}

func (s *Strip) show(frame []logic.RGB) error {
	if err := s.w.Write(frame); err != nil {
		return err
	}
	copy(s.current, frame)
	return nil
}

// SelfTest fills the strip with each palette color in turn, then blanks it.
func (s *Strip) SelfTest(p logic.Palette) error {
	for _, c := range p {
		if s.aborted() {
			break
		}
		if err := s.show(Render(logic.Solid(c), s.n)); err != nil {
			return err
		}
		s.Sleep(s.opts.FlashPeriod)
	}
	return s.Clear()
}

// Clear turns every LED off and drops any pending frame.
func (s *Strip) Clear() error {
	s.pending = nil
	return s.show(make([]logic.RGB, s.n))
}

// Close releases the writer.
func (s *Strip) Close() error {
	return s.w.Close()
}

// Discard is a Writer that shows nothing.
var Discard Writer = discard{}

type discard struct{}

func (discard) Write([]logic.RGB) error { return nil }
func (discard) Close() error            { return nil }
