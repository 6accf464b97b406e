package logic

import "errors"

// ErrInvalidCapacity is returned for a non-positive rolling average size.
var ErrInvalidCapacity = errors.New("rolling average capacity must be positive")

// RollingAverage is a fixed-capacity FIFO of the most recent values.
// The history starts filled with zeros, so the average ramps up from 0.
// Not safe for concurrent use — caller must synchronize.
type RollingAverage struct {
	buf  []int
	head int // next write position, which is also the oldest value
	sum  int
}

// NewRollingAverage creates a filter averaging the last capacity values.
func NewRollingAverage(capacity int) (*RollingAverage, error) {
	if capacity <= 0 {
		return nil, ErrInvalidCapacity
	}
	return &RollingAverage{buf: make([]int, capacity)}, nil
}

// Push inserts v, evicting the oldest value, and returns the floored average.
func (r *RollingAverage) Push(v int) int {
	r.sum += v - r.buf[r.head]
	r.buf[r.head] = v
	r.head = (r.head + 1) % len(r.buf)
	return r.Average()
}

// Average returns floor(sum/capacity) without inserting. Negative sums
// round down, not toward zero.
func (r *RollingAverage) Average() int {
	n := len(r.buf)
	q := r.sum / n
	if r.sum%n != 0 && r.sum < 0 {
		q--
	}
	return q
}

// Capacity returns the fixed window size.
func (r *RollingAverage) Capacity() int {
	return len(r.buf)
}

// Reset refills the history with zeros.
func (r *RollingAverage) Reset() {
	for i := range r.buf {
		r.buf[i] = 0
	}
	r.head = 0
	r.sum = 0
}
