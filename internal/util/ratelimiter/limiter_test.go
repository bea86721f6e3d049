package ratelimiter

import (
	"sync"
	"testing"
	"time"
)

// fakeClock is advanced by hand
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestLimiter_DoInterval(t *testing.T) {
	tests := []struct {
		name     string
		interval time.Duration
		delays   []time.Duration // clock advance before each Do() call
		want     []bool          // whether fn ran
	}{
		{
			name:     "first call always runs",
			interval: 100 * time.Millisecond,
			delays:   []time.Duration{0},
			want:     []bool{true},
		},
		{
			name:     "second call immediately after is suppressed",
			interval: 100 * time.Millisecond,
			delays:   []time.Duration{0, 0},
			want:     []bool{true, false},
		},
		{
			name:     "call after interval runs",
			interval: 50 * time.Millisecond,
			delays:   []time.Duration{0, 60 * time.Millisecond},
			want:     []bool{true, true},
		},
		{
			name:     "call exactly at interval runs",
			interval: time.Second,
			delays:   []time.Duration{0, time.Second},
			want:     []bool{true, true},
		},
		{
			name:     "multiple rapid calls",
			interval: 100 * time.Millisecond,
			delays:   []time.Duration{0, 0, 0, 0},
			want:     []bool{true, false, false, false},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := newFakeClock()
			limiter := NewWithClock(tt.interval, clock.Now)

			for i, delay := range tt.delays {
				clock.Advance(delay)

				ran := false
				got := limiter.Do(func(int) { ran = true })
				if got != tt.want[i] || ran != tt.want[i] {
					t.Errorf("call %d: Do() = %v (ran %v), want %v", i, got, ran, tt.want[i])
				}
			}
		})
	}
}

func TestLimiter_Do(t *testing.T) {
	clock := newFakeClock()
	limiter := NewWithClock(time.Second, clock.Now)

	var runs []int
	record := func(suppressed int) { runs = append(runs, suppressed) }

	if !limiter.Do(record) {
		t.Error("first Do() should run")
	}
	for i := 0; i < 3; i++ {
		clock.Advance(200 * time.Millisecond)
		if limiter.Do(record) {
			t.Errorf("Do() %d should be suppressed", i)
		}
	}
	clock.Advance(time.Second)
	if !limiter.Do(record) {
		t.Error("Do() after interval should run")
	}

	if len(runs) != 2 || runs[0] != 0 || runs[1] != 3 {
		t.Errorf("runs = %v, want [0 3]", runs)
	}
}

func TestLimiter_Concurrent(t *testing.T) {
	limiter := New(time.Hour)

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowedCount := 0

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			limiter.Do(func(int) {
				mu.Lock()
				allowedCount++
				mu.Unlock()
			})
		}()
	}
	wg.Wait()

	if allowedCount != 1 {
		t.Errorf("allowedCount = %d, want 1", allowedCount)
	}
}
