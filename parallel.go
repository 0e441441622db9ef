package vaultcrypt

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
)

// ParallelConfig controls concurrent attachment staging
type ParallelConfig struct {
	// Enabled enables parallel staging
	Enabled bool

	// MaxWorkers is the maximum number of worker goroutines
	// If 0, defaults to runtime.NumCPU()
	MaxWorkers int

	// MinJobsForParallel is the minimum number of attachments to use
	// parallel staging. Below this threshold attachments are staged
	// sequentially.
	MinJobsForParallel int
}

// Validate checks if the parallel configuration is valid
func (p *ParallelConfig) Validate() error {
	if !p.Enabled {
		return nil
	}

	if p.MaxWorkers < 0 {
		return errors.New("parallel max workers cannot be negative")
	}
	if p.MaxWorkers > 1024 {
		return errors.New("parallel max workers must not exceed 1024")
	}
	if p.MinJobsForParallel < 1 {
		return errors.New("parallel min jobs threshold must be at least 1")
	}
	return nil
}

// DefaultParallelConfig returns the default parallel staging configuration
func DefaultParallelConfig() ParallelConfig {
	return ParallelConfig{
		Enabled:            true,
		MaxWorkers:         runtime.NumCPU(),
		MinJobsForParallel: 2,
	}
}

// runJobs calls work for every index in [0, n). Results are written by work
// into caller-owned slots, so completion order does not matter. The first
// failure cancels the remaining jobs and is returned; a panicking job is
// converted into an error. done is called after each successful job.
func runJobs(ctx context.Context, cfg ParallelConfig, n int, work func(ctx context.Context, i int) error, done func()) error {
	if n == 0 {
		return nil
	}

	numWorkers := cfg.MaxWorkers
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	numWorkers = min(numWorkers, n)

	if !cfg.Enabled || numWorkers < 2 || n < cfg.MinJobsForParallel {
		for i := range n {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := safeJob(ctx, i, work); err != nil {
				return err
			}
			done()
		}
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg      sync.WaitGroup
		doneMu  sync.Mutex
		jobChan = make(chan int, n)
		errChan = make(chan error, numWorkers)
	)

	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobChan {
				if ctx.Err() != nil {
					return
				}
				if err := safeJob(ctx, idx, work); err != nil {
					select {
					case errChan <- err:
					default:
					}
					cancel()
					return
				}
				doneMu.Lock()
				done()
				doneMu.Unlock()
			}
		}()
	}

	for i := range n {
		jobChan <- i
	}
	close(jobChan)

	wg.Wait()
	close(errChan)

	if err, ok := <-errChan; ok {
		return err
	}
	return context.Cause(ctx)
}

// safeJob runs one job, converting a panic into an error
func safeJob(ctx context.Context, i int, work func(ctx context.Context, i int) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in staging worker: %v", r)
		}
	}()
	return work(ctx, i)
}
