package middleware

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	applogger "HelixPull/pkg/logger"
)

func pipelineLogger(t *testing.T) *applogger.Logger {
	t.Helper()
	log, err := applogger.New(&applogger.Config{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return log
}

func TestPipelineRunsJobs(t *testing.T) {
	p := NewPersistPipeline(2, 16, pipelineLogger(t), nil)
	p.Start(context.Background())

	var ran atomic.Int64
	for i := 0; i < 10; i++ {
		if !p.Dispatch(func(context.Context) { ran.Add(1) }) {
			t.Fatalf("dispatch %d rejected", i)
		}
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	p.Stop(stopCtx)

	if got := ran.Load(); got != 10 {
		t.Fatalf("ran %d jobs, want 10", got)
	}
}

func TestPipelineDropsWhenFull(t *testing.T) {
	p := NewPersistPipeline(1, 1, pipelineLogger(t), nil)
	// Not started, so the single buffer slot fills and stays full.
	if !p.Dispatch(func(context.Context) {}) {
		t.Fatalf("first dispatch should be buffered")
	}
	if p.Dispatch(func(context.Context) {}) {
		t.Fatalf("second dispatch should be dropped")
	}
}

func TestPipelineDispatchDuringStop(t *testing.T) {
	for i := 0; i < 200; i++ {
		p := NewPersistPipeline(2, 8, pipelineLogger(t), nil)
		p.Start(context.Background())

		var wg sync.WaitGroup
		start := make(chan struct{})
		for g := 0; g < 8; g++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				for j := 0; j < 50; j++ {
					p.Dispatch(func(context.Context) {})
				}
			}()
		}

		close(start)
		stopCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		p.Stop(stopCtx)
		cancel()
		wg.Wait()

		if p.Dispatch(func(context.Context) {}) {
			t.Fatalf("iteration %d: dispatch accepted after stop", i)
		}
	}
}

func TestPipelineRejectsAfterStop(t *testing.T) {
	p := NewPersistPipeline(1, 4, pipelineLogger(t), nil)
	p.Start(context.Background())

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	p.Stop(stopCtx)

	if p.Dispatch(func(context.Context) {}) {
		t.Fatalf("dispatch after stop should be rejected")
	}
}
