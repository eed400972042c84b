package workpool

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestPoolRunsAllJobs(t *testing.T) {
	pool := New(4, nil)
	var ran atomic.Int64
	for i := 0; i < 100; i++ {
		pool.Push(func() { ran.Add(1) })
	}
	pool.Wait()
	if got := ran.Load(); got != 100 {
		t.Fatalf("ran %d jobs, want 100", got)
	}
}

func TestPoolNeverExceedsLimit(t *testing.T) {
	const limit = 3
	pool := New(limit, nil)

	var current, peak atomic.Int64
	release := make(chan struct{})

	for i := 0; i < limit+5; i++ {
		pool.Push(func() {
			now := current.Add(1)
			for {
				old := peak.Load()
				if now <= old || peak.CompareAndSwap(old, now) {
					break
				}
			}
			<-release
			current.Add(-1)
		})
	}

	// All admitted jobs park on the release channel, so the pool must fill
	// every slot it is allowed to.
	deadline := time.After(2 * time.Second)
	for peak.Load() < limit {
		select {
		case <-deadline:
			t.Fatalf("peak concurrency %d never reached the limit %d", peak.Load(), limit)
		case <-time.After(time.Millisecond):
		}
	}

	close(release)
	pool.Wait()

	if got := peak.Load(); got != limit {
		t.Fatalf("peak concurrency = %d, want exactly %d", got, limit)
	}
}

func TestPoolWritesCallerIndexedSlots(t *testing.T) {
	pool := New(2, nil)
	input := []int{5, 10, 15, 20, 25}
	results := make([]int, len(input))

	for i := range input {
		i := i
		pool.Push(func() {
			// Finish in roughly reverse order to show slot order is
			// independent of completion order.
			time.Sleep(time.Duration(len(input)-i) * time.Millisecond)
			results[i] = input[i] * 2
		})
	}
	pool.Wait()

	for i, value := range input {
		if results[i] != value*2 {
			t.Fatalf("results[%d] = %d, want %d", i, results[i], value*2)
		}
	}
}

func TestPoolRecoversPanickingJob(t *testing.T) {
	pool := New(2, nil)
	var ran atomic.Int64

	pool.Push(func() { panic("job exploded") })
	pool.Push(func() { ran.Add(1) })
	pool.Wait()

	if got := ran.Load(); got != 1 {
		t.Fatalf("surviving job did not run: %d", got)
	}
}

func TestPoolWaitWithoutJobs(t *testing.T) {
	pool := New(1, nil)
	done := make(chan struct{})
	go func() {
		pool.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Wait blocked with no jobs pushed")
	}
}

func TestPoolZeroLimitFallsBack(t *testing.T) {
	pool := New(0, nil)
	var ran atomic.Int64
	pool.Push(func() { ran.Add(1) })
	pool.Wait()
	if ran.Load() != 1 {
		t.Fatal("pool with defaulted limit did not run the job")
	}
}
