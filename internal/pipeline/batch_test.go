package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nao1215/sitediff/internal/config"
	"github.com/nao1215/sitediff/internal/model"
)

func testConfigs(names ...string) []*config.Config {
	cfgs := make([]*config.Config, len(names))
	for i, name := range names {
		cfg := config.NewConfig()
		cfg.Name = name
		cfg.Website = "https://" + name + ".example.com/"
		cfgs[i] = cfg
	}
	return cfgs
}

// TestBatchProcessorNew tests the BatchProcessor constructor.
func TestBatchProcessorNew(t *testing.T) {
	t.Parallel()

	bp := NewBatchProcessor(nil)
	if bp.concurrency != config.DefaultBatchSize {
		t.Errorf("expected default concurrency %d, got %d", config.DefaultBatchSize, bp.concurrency)
	}

	bp = NewBatchProcessor(nil, WithConcurrency(5), WithConcurrency(0))
	if bp.concurrency != 5 {
		t.Errorf("expected concurrency 5, got %d", bp.concurrency)
	}
}

// TestBatchProcessorProcessBatch tests concurrent site processing.
func TestBatchProcessorProcessBatch(t *testing.T) {
	t.Parallel()

	t.Run("returns runs in input order", func(t *testing.T) {
		t.Parallel()

		factory := func(_ context.Context, cfg *config.Config) (*Pipeline, error) {
			p := New()
			p.AddStep(&mockStep{name: "mark", doFunc: func(_ context.Context, run *model.Run) error {
				run.Manifest = model.Manifest{cfg.Website}
				return nil
			}})
			return p, nil
		}

		runs, err := NewBatchProcessor(factory, WithConcurrency(3)).ProcessBatch(context.Background(), testConfigs("a", "b", "c", "d"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(runs) != 4 {
			t.Fatalf("expected 4 runs, got %d", len(runs))
		}
		for i, name := range []string{"a", "b", "c", "d"} {
			if runs[i].Site != name || runs[i].Manifest[0] != "https://"+name+".example.com/" {
				t.Errorf("runs[%d] = %+v", i, runs[i])
			}
		}
	})

	t.Run("respects concurrency limit", func(t *testing.T) {
		t.Parallel()

		var current, peak int32
		factory := func(context.Context, *config.Config) (*Pipeline, error) {
			p := New()
			p.AddStep(&mockStep{name: "slow", doFunc: func(context.Context, *model.Run) error {
				n := atomic.AddInt32(&current, 1)
				for {
					old := atomic.LoadInt32(&peak)
					if n <= old || atomic.CompareAndSwapInt32(&peak, old, n) {
						break
					}
				}
				time.Sleep(20 * time.Millisecond)
				atomic.AddInt32(&current, -1)
				return nil
			}})
			return p, nil
		}

		if _, err := NewBatchProcessor(factory, WithConcurrency(2)).ProcessBatch(context.Background(), testConfigs("a", "b", "c", "d", "e")); err != nil {
			t.Fatal(err)
		}
		if peak > 2 {
			t.Errorf("expected at most 2 concurrent sites, got %d", peak)
		}
	})

	t.Run("failing site does not stop others", func(t *testing.T) {
		t.Parallel()

		setupErr := errors.New("no browser")
		var mu sync.Mutex
		closed := 0
		factory := func(_ context.Context, cfg *config.Config) (*Pipeline, error) {
			if cfg.Name == "broken" {
				return nil, setupErr
			}
			p := New(WithCloser(closerFunc(func() error {
				mu.Lock()
				closed++
				mu.Unlock()
				return nil
			})))
			p.AddStep(&mockStep{name: "ok"})
			return p, nil
		}

		runs, err := NewBatchProcessor(factory).ProcessBatch(context.Background(), testConfigs("ok1", "broken", "ok2"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(runs[1].Errors) != 1 || !errors.Is(runs[1].Errors[0], setupErr) {
			t.Errorf("expected setup error on broken site, got %v", runs[1].Errors)
		}
		if len(runs[0].Errors) != 0 || len(runs[2].Errors) != 0 {
			t.Error("expected healthy sites to succeed")
		}
		if closed != 2 {
			t.Errorf("expected 2 pipelines closed, got %d", closed)
		}
	})

	t.Run("cancelled batch records cancellation", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		factory := func(context.Context, *config.Config) (*Pipeline, error) { return New(), nil }
		runs, err := NewBatchProcessor(factory).ProcessBatch(ctx, testConfigs("a", "b"))
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
		for i, run := range runs {
			if run == nil || len(run.Errors) == 0 {
				t.Errorf("runs[%d] must record the cancellation, got %+v", i, run)
			}
		}
	})
}

// TestBatchProcessorProcessBatchWithCallback tests per-site callbacks.
func TestBatchProcessorProcessBatchWithCallback(t *testing.T) {
	t.Parallel()

	factory := func(context.Context, *config.Config) (*Pipeline, error) { return New(), nil }

	var mu sync.Mutex
	seen := make(map[int]string)
	_, err := NewBatchProcessor(factory).ProcessBatchWithCallback(context.Background(), testConfigs("x", "y", "z"),
		func(run *model.Run, index int) {
			mu.Lock()
			defer mu.Unlock()
			seen[index] = run.Site
		})
	if err != nil {
		t.Fatal(err)
	}
	if len(seen) != 3 || seen[0] != "x" || seen[2] != "z" {
		t.Errorf("unexpected callbacks %v", seen)
	}
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }
