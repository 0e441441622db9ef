package vaultcrypt

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
)

var parallelConfigs = []struct {
	name   string
	config ParallelConfig
}{
	{"sequential", ParallelConfig{}},
	{"parallel", ParallelConfig{Enabled: true, MaxWorkers: 4, MinJobsForParallel: 2}},
}

// TestRunJobsPanicRecovery tests that a panicking job becomes an error
func TestRunJobsPanicRecovery(t *testing.T) {
	for _, pc := range parallelConfigs {
		t.Run(pc.name, func(t *testing.T) {
			err := runJobs(context.Background(), pc.config, 5, func(ctx context.Context, i int) error {
				if i == 2 {
					panic("test panic in staging")
				}
				return nil
			}, func() {})

			if err == nil {
				t.Fatal("Expected error from panic recovery, got nil")
			}
			if !strings.HasPrefix(err.Error(), "panic in staging worker") {
				t.Errorf("Expected panic error, got %q", err.Error())
			}
		})
	}
}

// TestRunJobsNoPanic tests that every job runs exactly once
func TestRunJobsNoPanic(t *testing.T) {
	for _, pc := range parallelConfigs {
		t.Run(pc.name, func(t *testing.T) {
			results := make([]int, 20)
			var done atomic.Int32

			err := runJobs(context.Background(), pc.config, len(results), func(ctx context.Context, i int) error {
				results[i] += i * i
				return nil
			}, func() { done.Add(1) })
			if err != nil {
				t.Fatalf("Expected no error, got: %v", err)
			}

			for i, r := range results {
				if r != i*i {
					t.Errorf("Job %d result = %d, want %d", i, r, i*i)
				}
			}
			if done.Load() != int32(len(results)) {
				t.Errorf("done called %d times, want %d", done.Load(), len(results))
			}
		})
	}
}

// TestRunJobsFirstErrorCancels tests that a failure stops the remaining jobs
func TestRunJobsFirstErrorCancels(t *testing.T) {
	errJob := errors.New("job failed")

	for _, pc := range parallelConfigs {
		t.Run(pc.name, func(t *testing.T) {
			var started atomic.Int32
			err := runJobs(context.Background(), pc.config, 100, func(ctx context.Context, i int) error {
				started.Add(1)
				if i == 0 {
					return errJob
				}
				<-ctx.Done()
				return ctx.Err()
			}, func() {})

			if !errors.Is(err, errJob) {
				t.Fatalf("runJobs error = %v, want %v", err, errJob)
			}
			if started.Load() == 100 {
				t.Error("all jobs started despite an early failure")
			}
		})
	}
}

func TestRunJobsCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for _, pc := range parallelConfigs {
		err := runJobs(ctx, pc.config, 3, func(ctx context.Context, i int) error { return nil }, func() {})
		if !errors.Is(err, context.Canceled) {
			t.Errorf("%s: error = %v, want context.Canceled", pc.name, err)
		}
	}

	if err := runJobs(ctx, ParallelConfig{}, 0, nil, nil); err != nil {
		t.Errorf("zero jobs error = %v", err)
	}
}

func TestParallelConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  ParallelConfig
		wantErr bool
	}{
		{"disabled - always valid", ParallelConfig{Enabled: false, MaxWorkers: -1}, false},
		{"negative workers", ParallelConfig{Enabled: true, MaxWorkers: -1, MinJobsForParallel: 2}, true},
		{"too many workers", ParallelConfig{Enabled: true, MaxWorkers: 2000, MinJobsForParallel: 2}, true},
		{"zero min jobs", ParallelConfig{Enabled: true, MaxWorkers: 4}, true},
		{"valid config", ParallelConfig{Enabled: true, MaxWorkers: 8, MinJobsForParallel: 4}, false},
		{"default config", DefaultParallelConfig(), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("ParallelConfig.Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
