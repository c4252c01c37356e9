// Package parallel fans independent loop iterations out over goroutines.
package parallel

import (
	"runtime"
	"sync"
)

// Config controls parallel execution.
type Config struct {
	Enabled      bool // Whether to use goroutines at all.
	NumWorkers   int  // Upper bound on concurrent chunks.
	MinChunkSize int  // Fewer iterations than this run inline.
}

// DefaultConfig uses one worker per CPU.
func DefaultConfig() Config {
	n := runtime.NumCPU()
	return Config{
		Enabled:      n > 1,
		NumWorkers:   n,
		MinChunkSize: 8,
	}
}

// Sequential returns a Config that always runs inline.
func Sequential() Config {
	return Config{NumWorkers: 1, MinChunkSize: 1}
}

// For calls f(i) for every i in [0, n) and returns once all calls finish.
// Iterations must be independent.
func For(n int, f func(i int), cfg Config) {
	if !cfg.Enabled || cfg.NumWorkers < 2 || n < cfg.MinChunkSize || n < 2 {
		for i := 0; i < n; i++ {
			f(i)
		}
		return
	}

	chunk := max((n+cfg.NumWorkers-1)/cfg.NumWorkers, cfg.MinChunkSize, 1)
	var wg sync.WaitGroup
	for start := 0; start < n; start += chunk {
		end := min(start+chunk, n)
		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			for i := s; i < e; i++ {
				f(i)
			}
		}(start, end)
	}
	wg.Wait()
}
