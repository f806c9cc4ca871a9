package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/sitediff/internal/config"
	"github.com/nao1215/sitediff/internal/model"
)

// Factory builds the pipeline of one site. Each call must create its own
// renderer; pipelines are never shared between sites.
type Factory func(ctx context.Context, cfg *config.Config) (*Pipeline, error)

// BatchProcessor runs the pipelines of several sites concurrently.
// Within a site everything stays sequential.
type BatchProcessor struct {
	// factory creates a fresh pipeline for each site.
	factory Factory

	// concurrency is the maximum number of sites processed at once.
	concurrency int

	// logger is used for batch-level logging.
	logger *slog.Logger

	// results stores completed runs in input order.
	results []*model.Run
	mu      sync.Mutex
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithConcurrency sets the maximum number of concurrent sites.
// Default is config.DefaultBatchSize.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// NewBatchProcessor creates a new BatchProcessor.
func NewBatchProcessor(factory Factory, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		factory:     factory,
		concurrency: config.DefaultBatchSize,
	}

	for _, opt := range opts {
		opt(bp)
	}

	if bp.logger == nil {
		bp.logger = slog.Default()
	}

	return bp
}

// ProcessBatch runs the pipeline of every config and returns one run per
// config, in input order. A failing site never stops the others; its
// errors are recorded in its run. The error return reports cancellation.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, cfgs []*config.Config) ([]*model.Run, error) {
	return bp.ProcessBatchWithCallback(ctx, cfgs, nil)
}

// ProcessBatchWithCallback is ProcessBatch calling callback after each
// site. The callback runs on the goroutine of the site and must be safe
// for concurrent use.
func (bp *BatchProcessor) ProcessBatchWithCallback(
	ctx context.Context,
	cfgs []*config.Config,
	callback func(run *model.Run, index int),
) ([]*model.Run, error) {
	bp.logger.Info("starting batch processing",
		"total_sites", len(cfgs),
		"concurrency", bp.concurrency,
	)

	startTime := time.Now()

	bp.mu.Lock()
	bp.results = make([]*model.Run, len(cfgs))
	bp.mu.Unlock()

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(bp.concurrency)

	for i, cfg := range cfgs {
		g.Go(func() error {
			run := model.NewRun(cfg.SiteName(), cfg.Website)
			if err := ctx.Err(); err != nil {
				run.AddError(err)
				bp.mu.Lock()
				bp.results[i] = run
				bp.mu.Unlock()
				return err
			}

			bp.logger.Info("processing site",
				"site", run.Site,
				"index", i+1,
				"total", len(cfgs),
			)

			bp.runSite(ctx, cfg, run)

			bp.mu.Lock()
			bp.results[i] = run
			bp.mu.Unlock()

			if callback != nil {
				callback(run, i)
			}
			return nil
		})
	}

	err := g.Wait()

	bp.logger.Info("batch processing complete",
		"total_sites", len(cfgs),
		"elapsed", time.Since(startTime),
	)

	bp.mu.Lock()
	defer bp.mu.Unlock()
	return bp.results, err
}

// runSite builds and executes the pipeline of one site.
func (bp *BatchProcessor) runSite(ctx context.Context, cfg *config.Config, run *model.Run) {
	p, err := bp.factory(ctx, cfg)
	if err != nil {
		bp.logger.Warn("failed to set up site", "site", run.Site, "error", err)
		run.AddError(err)
		return
	}
	defer func() {
		if err := p.Close(); err != nil {
			bp.logger.Warn("failed to release site resources", "site", run.Site, "error", err)
		}
	}()

	if err := p.Execute(ctx, run); err != nil {
		bp.logger.Warn("site failed", "site", run.Site, "error", err)
		return
	}
	bp.logger.Info("site completed", "site", run.Site)
}
