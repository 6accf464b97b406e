package logic

import (
	"errors"
	"testing"
)

func TestNewRollingAverageInvalidCapacity(t *testing.T) {
	for _, c := range []int{0, -1} {
		f, err := NewRollingAverage(c)
		if !errors.Is(err, ErrInvalidCapacity) {
			t.Errorf("capacity %d: expected ErrInvalidCapacity, got %v", c, err)
		}
		if f != nil {
			t.Errorf("capacity %d: expected nil filter", c)
		}
	}
}

func TestRollingAverageSinglePush(t *testing.T) {
	f, _ := NewRollingAverage(3)
	if got := f.Push(250); got != 83 {
		t.Errorf("expected floor(250/3)=83, got %d", got)
	}
}

func TestRollingAverageConverges(t *testing.T) {
	k := 4
	f, _ := NewRollingAverage(k)
	var got int
	for i := 0; i < k; i++ {
		got = f.Push(217)
	}
	if got != 217 {
		t.Errorf("after %d pushes of 217 expected 217, got %d", k, got)
	}
}

func TestRollingAverageEvictsOldest(t *testing.T) {
	f, _ := NewRollingAverage(3)
	f.Push(100)
	f.Push(200)
	f.Push(300)
	if got := f.Average(); got != 200 {
		t.Errorf("expected 200, got %d", got)
	}
	// 100 is evicted: (200+300+400)/3
	if got := f.Push(400); got != 300 {
		t.Errorf("expected 300 after eviction, got %d", got)
	}
	// Spike is diluted.
	if got := f.Push(1000); got != 566 {
		t.Errorf("expected 566, got %d", got)
	}
}

func TestRollingAverageCapacityOne(t *testing.T) {
	f, _ := NewRollingAverage(1)
	for _, v := range []int{5, 17, 0, 250} {
		if got := f.Push(v); got != v {
			t.Errorf("capacity 1: Push(%d) returned %d", v, got)
		}
	}
}

func TestRollingAverageReset(t *testing.T) {
	f, _ := NewRollingAverage(2)
	f.Push(100)
	f.Push(100)
	f.Reset()
	if got := f.Average(); got != 0 {
		t.Errorf("expected 0 after reset, got %d", got)
	}
	if got := f.Push(100); got != 50 {
		t.Errorf("expected 50 after reset and one push, got %d", got)
	}
	if f.Capacity() != 2 {
		t.Errorf("capacity changed: %d", f.Capacity())
	}
}

func TestRollingAverageManyCycles(t *testing.T) {
	f, _ := NewRollingAverage(5)
	for i := 0; i < 1000; i++ {
		f.Push(i % 7)
	}
	// Last five values pushed: i=995..999 -> 1,2,3,4,5
	if got := f.Average(); got != 3 {
		t.Errorf("expected 3, got %d", got)
	}
}

func TestRollingAverageFloorsNegative(t *testing.T) {
	f, _ := NewRollingAverage(3)
	if got := f.Push(-1); got != -1 {
		t.Errorf("expected floor(-1/3)=-1, got %d", got)
	}
	f.Push(-1)
	if got := f.Push(-1); got != -1 {
		t.Errorf("expected -1 after three pushes of -1, got %d", got)
	}
	// -3+4 = 1 over 3 samples floors to 0.
	f.Reset()
	f.Push(-3)
	if got := f.Push(4); got != 0 {
		t.Errorf("expected 0, got %d", got)
	}
	if got := f.Push(-4); got != -1 {
		t.Errorf("expected floor(-3/3)=-1, got %d", got)
	}
}
