package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nao1215/privacygap/internal/model"
)

func countingFactory(count *atomic.Int32) Factory {
	return func(string) *Pipeline {
		p := New(WithLogger(discardLogger()))
		p.AddStep(&mockStep{
			name: "counter",
			doFunc: func(context.Context, *model.ScanReport) error {
				count.Add(1)
				return nil
			},
		})
		return p
	}
}

// TestBatchProcessorNew tests the BatchProcessor constructor.
func TestBatchProcessorNew(t *testing.T) {
	t.Parallel()

	t.Run("creates processor with defaults", func(t *testing.T) {
		t.Parallel()

		bp := NewBatchProcessor(func(string) *Pipeline { return New() })
		if bp.concurrency != DefaultConcurrency {
			t.Errorf("expected default concurrency %d, got %d", DefaultConcurrency, bp.concurrency)
		}
		if bp.logger == nil {
			t.Error("expected non-nil logger")
		}
	})

	t.Run("applies WithConcurrency option", func(t *testing.T) {
		t.Parallel()

		bp := NewBatchProcessor(func(string) *Pipeline { return New() }, WithConcurrency(9))
		if bp.concurrency != 9 {
			t.Errorf("expected concurrency 9, got %d", bp.concurrency)
		}
	})

	t.Run("ignores non-positive concurrency", func(t *testing.T) {
		t.Parallel()

		bp := NewBatchProcessor(func(string) *Pipeline { return New() }, WithConcurrency(-1))
		if bp.concurrency != DefaultConcurrency {
			t.Errorf("expected concurrency %d, got %d", DefaultConcurrency, bp.concurrency)
		}
	})
}

// TestBatchProcessorProcessBatch tests batch processing.
func TestBatchProcessorProcessBatch(t *testing.T) {
	t.Parallel()

	t.Run("processes all targets in order", func(t *testing.T) {
		t.Parallel()

		var processed atomic.Int32
		bp := NewBatchProcessor(countingFactory(&processed), WithBatchLogger(discardLogger()))
		targets := []string{"a.example", "b.example", "c.example"}

		results, err := bp.ProcessBatch(context.Background(), targets)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if processed.Load() != 3 {
			t.Errorf("expected 3 processed, got %d", processed.Load())
		}
		for i, r := range results {
			if r == nil || r.Target != targets[i] {
				t.Errorf("results[%d] = %+v", i, r)
			}
		}
	})

	t.Run("respects concurrency limit", func(t *testing.T) {
		t.Parallel()

		var current, peak atomic.Int32
		factory := func(string) *Pipeline {
			p := New(WithLogger(discardLogger()))
			p.AddStep(&mockStep{name: "slow", doFunc: func(context.Context, *model.ScanReport) error {
				n := current.Add(1)
				for {
					old := peak.Load()
					if n <= old || peak.CompareAndSwap(old, n) {
						break
					}
				}
				time.Sleep(20 * time.Millisecond)
				current.Add(-1)
				return nil
			}})
			return p
		}
		bp := NewBatchProcessor(factory, WithConcurrency(2), WithBatchLogger(discardLogger()))

		if _, err := bp.ProcessBatch(context.Background(), []string{"a", "b", "c", "d", "e", "f"}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if peak.Load() > 2 {
			t.Errorf("peak concurrency %d exceeds limit 2", peak.Load())
		}
	})

	t.Run("continues after individual scan failure", func(t *testing.T) {
		t.Parallel()

		boom := errors.New("boom")
		factory := func(target string) *Pipeline {
			p := New(WithLogger(discardLogger()))
			p.AddStep(&mockStep{name: "maybe", doFunc: func(context.Context, *model.ScanReport) error {
				if target == "bad.example" {
					return boom
				}
				return nil
			}})
			return p
		}
		bp := NewBatchProcessor(factory, WithBatchLogger(discardLogger()))

		results, err := bp.ProcessBatch(context.Background(), []string{"good.example", "bad.example", "fine.example"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !errors.Is(results[1].Error, boom) {
			t.Errorf("results[1].Error = %v", results[1].Error)
		}
		if results[0].Error != nil || results[2].Error != nil {
			t.Error("other scans should succeed")
		}
	})

	t.Run("handles context cancellation", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		var processed atomic.Int32
		bp := NewBatchProcessor(countingFactory(&processed), WithBatchLogger(discardLogger()))
		_, err := bp.ProcessBatch(ctx, []string{"a", "b", "c"})
		if !errors.Is(err, context.Canceled) {
			t.Errorf("err = %v", err)
		}
		if processed.Load() != 0 {
			t.Errorf("expected no scans after cancellation, got %d", processed.Load())
		}
	})
}

// TestBatchProcessorProcessBatchWithCallback tests streaming results.
func TestBatchProcessorProcessBatchWithCallback(t *testing.T) {
	t.Parallel()

	var processed atomic.Int32
	bp := NewBatchProcessor(countingFactory(&processed), WithBatchLogger(discardLogger()))

	var mu sync.Mutex
	seen := map[int]string{}
	err := bp.ProcessBatchWithCallback(context.Background(), []string{"a", "b"}, func(r *model.ScanReport, i int) {
		mu.Lock()
		defer mu.Unlock()
		seen[i] = r.Target
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(seen) != 2 || seen[0] != "a" || seen[1] != "b" {
		t.Errorf("callback results = %v", seen)
	}
}
