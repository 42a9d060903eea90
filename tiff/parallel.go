package tiff

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// ParallelConfig configures how many strips or tiles are decoded at once.
type ParallelConfig struct {
	// NumWorkers is the number of worker goroutines. 0 means
	// runtime.GOMAXPROCS(0).
	NumWorkers int

	// GrainSize is the minimum number of chunks per worker before work is
	// spread across goroutines.
	GrainSize int
}

// DefaultParallelConfig returns the default parallel configuration.
func DefaultParallelConfig() ParallelConfig {
	return ParallelConfig{GrainSize: 1}
}

var (
	parallelConfig   = DefaultParallelConfig()
	parallelConfigMu sync.RWMutex
)

// SetParallelConfig sets the package-wide parallel configuration used by
// readers created without their own.
func SetParallelConfig(config ParallelConfig) {
	parallelConfigMu.Lock()
	defer parallelConfigMu.Unlock()
	parallelConfig = config
}

// GetParallelConfig returns the package-wide parallel configuration.
func GetParallelConfig() ParallelConfig {
	parallelConfigMu.RLock()
	defer parallelConfigMu.RUnlock()
	return parallelConfig
}

func effectiveWorkers(config ParallelConfig) int {
	if config.NumWorkers <= 0 {
		return runtime.GOMAXPROCS(0)
	}
	return config.NumWorkers
}

// ParallelForWithError runs fn(i) for i in [0, n) using the package-wide
// configuration and returns the first error encountered.
func ParallelForWithError(n int, fn func(i int) error) error {
	return parallelFor(GetParallelConfig(), n, fn)
}

// parallelFor hands out indices one at a time so that workers stay busy
// when strips differ in cost. After the first error no new index is
// started.
func parallelFor(config ParallelConfig, n int, fn func(i int) error) error {
	workers := min(effectiveWorkers(config), n)
	if workers <= 1 || n <= config.GrainSize*workers {
		for i := 0; i < n; i++ {
			if err := fn(i); err != nil {
				return err
			}
		}
		return nil
	}

	var (
		next    atomic.Int64
		failed  atomic.Bool
		errOnce sync.Once
		first   error
		wg      sync.WaitGroup
	)
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for !failed.Load() {
				i := int(next.Add(1) - 1)
				if i >= n {
					return
				}
				if err := fn(i); err != nil {
					errOnce.Do(func() { first = err })
					failed.Store(true)
					return
				}
			}
		}()
	}
	wg.Wait()
	return first
}
