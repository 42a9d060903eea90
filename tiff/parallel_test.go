package tiff

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestParallelForWithError(t *testing.T) {
	n := 100

	var count int64
	err := ParallelForWithError(n, func(i int) error {
		atomic.AddInt64(&count, 1)
		return nil
	})
	if err != nil {
		t.Errorf("ParallelForWithError returned error: %v", err)
	}
	if count != int64(n) {
		t.Errorf("processed %d items, want %d", count, n)
	}

	err = ParallelForWithError(n, func(i int) error {
		if i == 50 {
			return ErrTruncatedSource
		}
		return nil
	})
	if !errors.Is(err, ErrTruncatedSource) {
		t.Errorf("ParallelForWithError returned %v, want %v", err, ErrTruncatedSource)
	}
}

func TestParallelForSequential(t *testing.T) {
	// A single worker must visit items in order.
	var order []int
	err := parallelFor(ParallelConfig{NumWorkers: 1, GrainSize: 1}, 5, func(i int) error {
		order = append(order, i)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	for i, v := range order {
		if v != i {
			t.Fatalf("visit order = %v", order)
		}
	}
}

func TestParallelForEveryIndexOnce(t *testing.T) {
	const n = 1000
	seen := make([]int32, n)
	err := parallelFor(ParallelConfig{NumWorkers: 8, GrainSize: 1}, n, func(i int) error {
		atomic.AddInt32(&seen[i], 1)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	for i, c := range seen {
		if c != 1 {
			t.Fatalf("index %d visited %d times", i, c)
		}
	}
}

func TestParallelForStopsAfterError(t *testing.T) {
	const n = 10000
	var started int64
	err := parallelFor(ParallelConfig{NumWorkers: 2, GrainSize: 1}, n, func(i int) error {
		atomic.AddInt64(&started, 1)
		if i == 0 {
			return ErrInvalidConfiguration
		}
		time.Sleep(10 * time.Microsecond)
		return nil
	})
	if !errors.Is(err, ErrInvalidConfiguration) {
		t.Fatalf("got %v, want ErrInvalidConfiguration", err)
	}
	if started == n {
		t.Error("every index ran after the first failure")
	}
}

func TestParallelConfig(t *testing.T) {
	original := GetParallelConfig()
	defer SetParallelConfig(original)

	SetParallelConfig(ParallelConfig{NumWorkers: 8, GrainSize: 16})
	got := GetParallelConfig()
	if got.NumWorkers != 8 {
		t.Errorf("NumWorkers = %d, want 8", got.NumWorkers)
	}
	if got.GrainSize != 16 {
		t.Errorf("GrainSize = %d, want 16", got.GrainSize)
	}
}

func TestEffectiveWorkers(t *testing.T) {
	if n := effectiveWorkers(ParallelConfig{NumWorkers: 3}); n != 3 {
		t.Errorf("effectiveWorkers = %d, want 3", n)
	}
	if n := effectiveWorkers(DefaultParallelConfig()); n < 1 {
		t.Errorf("effectiveWorkers = %d, want at least 1", n)
	}
}
