package pipeline

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/privacygap/internal/model"
)

// DefaultConcurrency is the number of scans a BatchProcessor runs at once.
const DefaultConcurrency = 4

// Factory builds a fresh pipeline for one target, so per-site settings such
// as cookies or a known policy URL can differ between targets.
type Factory func(target string) *Pipeline

// BatchProcessor scans many targets concurrently.
//
// Each scan owns its pipeline and report; nothing mutable is shared between
// scans. Concurrency is bounded with errgroup.SetLimit.
type BatchProcessor struct {
	factory     Factory
	concurrency int
	logger      *slog.Logger
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithConcurrency sets the maximum number of concurrent scans.
// Non-positive values keep the default.
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
		concurrency: DefaultConcurrency,
	}

	for _, opt := range opts {
		opt(bp)
	}

	if bp.logger == nil {
		bp.logger = slog.Default()
	}

	return bp
}

// ProcessBatch scans every target and returns the reports in input order.
//
// A failed scan does not stop the others; its error is recorded in its
// report. The returned error is non-nil only when ctx was cancelled, in
// which case targets that never started have a nil report.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, targets []string) ([]*model.ScanReport, error) {
	results := make([]*model.ScanReport, len(targets))
	err := bp.ProcessBatchWithCallback(ctx, targets, func(report *model.ScanReport, index int) {
		results[index] = report
	})
	return results, err
}

// ProcessBatchWithCallback scans every target and calls callback as each
// scan completes. callback runs on the scan's goroutine, so it must be safe
// for concurrent use unless it only touches per-index state.
func (bp *BatchProcessor) ProcessBatchWithCallback(
	ctx context.Context,
	targets []string,
	callback func(report *model.ScanReport, index int),
) error {
	bp.logger.Info("starting batch processing",
		"total_targets", len(targets),
		"concurrency", bp.concurrency,
	)
	startTime := time.Now()

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(bp.concurrency)

	for i, target := range targets {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			bp.logger.Info("scanning target",
				"target", target,
				"index", i+1,
				"total", len(targets),
			)

			report := model.NewScanReport(target)
			if err := bp.factory(target).Execute(ctx, report); err != nil {
				bp.logger.Warn("scan failed",
					"target", target,
					"error", err,
				)
			} else {
				bp.logger.Info("scan completed", "target", target)
			}

			callback(report, i)
			return nil
		})
	}

	err := g.Wait()

	bp.logger.Info("batch processing complete",
		"total_targets", len(targets),
		"elapsed", time.Since(startTime),
	)

	return err
}
